// Package media wraps the external ffmpeg/ffprobe tools. It is the only
// package that interprets external-process exit codes.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics
)

// Transcoder is the contract the exporter and loader consume. Tools is the
// production implementation; tests substitute fakes.
type Transcoder interface {
	// Probe inspects a media file and returns its metadata.
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// ExtractSegment writes the [start, end) span of inputPath to
	// outputPath. With copyMode the streams are copied without re-encoding;
	// otherwise the segment is re-encoded (H.264/AAC).
	ExtractSegment(ctx context.Context, inputPath, outputPath string, start, end float64, copyMode bool) error

	// Concat joins the segment files, in order, into outputPath using the
	// concat demuxer without re-encoding.
	Concat(ctx context.Context, segmentPaths []string, outputPath string) error

	// DecodePCM streams inputPath's audio as mono 16-bit little-endian PCM
	// at sampleRate into w.
	DecodePCM(ctx context.Context, inputPath string, sampleRate int, w io.Writer) error
}

// Tools invokes ffmpeg and ffprobe as subprocesses.
type Tools struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// NewTools resolves the ffmpeg and ffprobe binaries. Empty paths fall back
// to PATH lookup.
func NewTools(ffmpegPath, ffprobePath string, logger *slog.Logger) (*Tools, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ffmpeg, err := resolveBinary(ffmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := resolveBinary(ffprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	logger.Info("media tools resolved", "ffmpeg", ffmpeg, "ffprobe", ffprobe)
	return &Tools{ffmpeg: ffmpeg, ffprobe: ffprobe, logger: logger}, nil
}

// ToolError is a nonzero exit from ffmpeg or ffprobe, carrying enough detail
// for the user to diagnose codec and path issues.
type ToolError struct {
	Tool       string
	Stage      string // "probe", "extract", "concat", "decode"
	ExitCode   int
	StderrTail string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s %s exited %d: %s", e.Tool, e.Stage, e.ExitCode, e.StderrTail)
}

func (t *Tools) ExtractSegment(ctx context.Context, inputPath, outputPath string, start, end float64, copyMode bool) error {
	duration := end - start
	if duration <= 0 {
		return fmt.Errorf("invalid segment range: start=%v end=%v", start, end)
	}

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.6f", start),
		"-i", inputPath,
		"-t", fmt.Sprintf("%.6f", duration),
	}
	if copyMode {
		args = append(args, "-c", "copy", "-avoid_negative_ts", "make_zero")
	} else {
		args = append(args,
			"-c:v", "libx264",
			"-c:a", "aac",
			"-preset", "fast",
		)
	}
	args = append(args, outputPath)

	return t.run(ctx, "extract", args, nil)
}

func (t *Tools) Concat(ctx context.Context, segmentPaths []string, outputPath string) error {
	if len(segmentPaths) == 0 {
		return fmt.Errorf("concat requires at least one segment")
	}

	listPath, cleanup, err := writeConcatList(segmentPaths)
	if err != nil {
		return err
	}
	defer cleanup()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
	return t.run(ctx, "concat", args, nil)
}

func (t *Tools) DecodePCM(ctx context.Context, inputPath string, sampleRate int, w io.Writer) error {
	args := []string{
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"pipe:1",
	}
	return t.run(ctx, "decode", args, w)
}

// run executes ffmpeg with bounded stderr capture. stdout goes to w when
// given, otherwise it is discarded.
func (t *Tools) run(ctx context.Context, stage string, args []string, stdout io.Writer) error {
	start := time.Now()

	cmd := exec.CommandContext(ctx, t.ffmpeg, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = io.Discard
	}

	t.logger.Debug("executing ffmpeg", "stage", stage, "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		t.logger.Warn("ffmpeg command failed",
			"stage", stage,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
		)
		return &ToolError{
			Tool:       "ffmpeg",
			Stage:      stage,
			ExitCode:   exitCode,
			StderrTail: stderrBuf.String(),
		}
	}

	t.logger.Debug("ffmpeg command succeeded",
		"stage", stage,
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH", name)
	}
	return p, nil
}

// limitedWriter keeps only the last `limit` bytes written.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
