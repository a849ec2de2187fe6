package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult is the metadata the agent needs from a loaded video.
type ProbeResult struct {
	Duration   float64
	FrameRate  float64
	Width      int
	Height     int
	Codec      string
	AudioCodec string
	HasAudio   bool
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe runs ffprobe and extracts duration and frame rate. The frame rate
// comes from the first video stream's r_frame_rate fraction, so 23.976fps
// material ("24000/1001") is preserved exactly.
func (t *Tools) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"--", path,
	)

	var stdout bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return nil, &ToolError{
			Tool:       "ffprobe",
			Stage:      "probe",
			ExitCode:   exitCode,
			StderrTail: stderrBuf.String(),
		}
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}

	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse duration %q: %w", out.Format.Duration, err)
		}
		result.Duration = d
	}
	if result.Duration <= 0 {
		return nil, fmt.Errorf("media has no usable duration")
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if result.Codec != "" {
				continue // first video stream wins
			}
			result.Codec = s.CodecName
			result.Width = s.Width
			result.Height = s.Height
			fps, err := parseFrameRate(s.RFrameRate)
			if err != nil {
				return nil, err
			}
			result.FrameRate = fps
		case "audio":
			if !result.HasAudio {
				result.HasAudio = true
				result.AudioCodec = s.CodecName
			}
		}
	}

	if result.FrameRate <= 0 {
		return nil, fmt.Errorf("media has no video stream")
	}
	return result, nil
}

// parseFrameRate parses ffprobe's fractional rate, e.g. "24000/1001".
func parseFrameRate(raw string) (float64, error) {
	num, den, ok := strings.Cut(raw, "/")
	if !ok {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse frame rate %q: %w", raw, err)
		}
		return f, nil
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse frame rate %q: %w", raw, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("cannot parse frame rate %q", raw)
	}
	return n / d, nil
}

// writeConcatList writes an ffmpeg concat-demuxer file list to a temp file
// and returns its path plus a cleanup func.
func writeConcatList(paths []string) (string, func(), error) {
	var b strings.Builder
	for _, p := range paths {
		// concat demuxer quoting: single quotes, embedded quotes escaped
		escaped := strings.ReplaceAll(p, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}

	f, err := os.CreateTemp("", "trimdeck-concat-*.txt")
	if err != nil {
		return "", nil, fmt.Errorf("cannot create concat list: %w", err)
	}
	if _, err := io.WriteString(f, b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("cannot write concat list: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("cannot write concat list: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
