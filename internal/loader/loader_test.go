package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/trimdeck/trimdeck-agent/internal/media"
	"github.com/trimdeck/trimdeck-agent/internal/waveform"
)

// fakeTranscoder serves canned probe results and PCM data, optionally
// holding every call until release is closed.
type fakeTranscoder struct {
	probe    media.ProbeResult
	probeErr error
	pcm      []byte
	release  chan struct{}
}

func (f *fakeTranscoder) wait(ctx context.Context) error {
	if f.release == nil {
		return nil
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTranscoder) Probe(ctx context.Context, path string) (*media.ProbeResult, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	p := f.probe
	return &p, nil
}

func (f *fakeTranscoder) ExtractSegment(ctx context.Context, in, out string, start, end float64, copyMode bool) error {
	return nil
}

func (f *fakeTranscoder) Concat(ctx context.Context, segments []string, out string) error {
	return nil
}

func (f *fakeTranscoder) DecodePCM(ctx context.Context, in string, rate int, w io.Writer) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	_, err := w.Write(f.pcm)
	return err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVideoFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestLoader(fake *fakeTranscoder) *Loader {
	logger := testLogger()
	return New(fake, waveform.NewExtractor(fake, logger), 4, logger)
}

func TestStart_LoadsVideo(t *testing.T) {
	fake := &fakeTranscoder{
		probe: media.ProbeResult{Duration: 120, FrameRate: 30, HasAudio: true},
		pcm:   []byte{0, 0, 0, 0, 0, 0, 0, 0},
	}
	l := newTestLoader(fake)

	load, err := l.Start(context.Background(), testVideoFile(t))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	<-load.Done()
	result, err := load.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if result.Probe.Duration != 120 || result.Probe.FrameRate != 30 {
		t.Errorf("probe = %+v, want duration 120 fps 30", result.Probe)
	}
	if len(result.Peaks) == 0 {
		t.Error("expected waveform peaks for media with audio")
	}
	if got := load.Progress(); got.Phase != PhaseDone || got.Percent != 100 {
		t.Errorf("progress = %+v, want done/100", got)
	}
}

func TestStart_NoAudioSkipsWaveform(t *testing.T) {
	fake := &fakeTranscoder{probe: media.ProbeResult{Duration: 10, FrameRate: 25, HasAudio: false}}
	l := newTestLoader(fake)

	load, err := l.Start(context.Background(), testVideoFile(t))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	<-load.Done()
	result, err := load.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if result.Peaks == nil || len(result.Peaks) != 0 {
		t.Errorf("peaks = %v, want empty non-nil slice", result.Peaks)
	}
}

func TestStart_RejectsSecondLoad(t *testing.T) {
	fake := &fakeTranscoder{
		probe:   media.ProbeResult{Duration: 10, FrameRate: 25},
		release: make(chan struct{}),
	}
	l := newTestLoader(fake)

	first, err := l.Start(context.Background(), testVideoFile(t))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := l.Start(context.Background(), testVideoFile(t)); !errors.Is(err, ErrLoadInFlight) {
		t.Fatalf("second Start() error = %v, want ErrLoadInFlight", err)
	}

	close(fake.release)
	<-first.Done()

	// The slot frees up once the first load finishes.
	if _, err := l.Start(context.Background(), testVideoFile(t)); err != nil {
		t.Fatalf("Start() after completion error = %v", err)
	}
}

func TestStart_CancelDiscardsResult(t *testing.T) {
	fake := &fakeTranscoder{
		probe:   media.ProbeResult{Duration: 10, FrameRate: 25},
		release: make(chan struct{}),
	}
	l := newTestLoader(fake)

	load, err := l.Start(context.Background(), testVideoFile(t))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	load.Cancel()
	<-load.Done()

	result, err := load.Result()
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("Result() error = %v, want ErrCanceled", err)
	}
	if result != nil {
		t.Error("cancelled load must not deliver a result")
	}

	if l.Current() != nil {
		t.Error("Current() should be nil after cancellation")
	}
}

func TestStart_ProbeFailureSurfaces(t *testing.T) {
	fake := &fakeTranscoder{probeErr: &media.ToolError{Tool: "ffprobe", Stage: "probe", ExitCode: 1, StderrTail: "moov atom not found"}}
	l := newTestLoader(fake)

	load, err := l.Start(context.Background(), testVideoFile(t))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	<-load.Done()
	if _, err := load.Result(); err == nil {
		t.Fatal("Result() should surface the probe failure")
	}
	if got := load.Progress(); got.Phase != PhaseFailed {
		t.Errorf("phase = %s, want failed", got.Phase)
	}
}

func TestStart_RejectsUnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}

	l := newTestLoader(&fakeTranscoder{})
	if _, err := l.Start(context.Background(), path); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("Start() error = %v, want ErrUnsupportedFile", err)
	}
}

func TestStart_RejectsMissingFile(t *testing.T) {
	l := newTestLoader(&fakeTranscoder{})
	if _, err := l.Start(context.Background(), filepath.Join(t.TempDir(), "gone.mp4")); err == nil {
		t.Fatal("Start() should fail for a missing file")
	}
}

func TestCurrent_TracksInFlightLoad(t *testing.T) {
	fake := &fakeTranscoder{
		probe:   media.ProbeResult{Duration: 10, FrameRate: 25},
		release: make(chan struct{}),
	}
	l := newTestLoader(fake)

	if l.Current() != nil {
		t.Fatal("Current() should start nil")
	}

	load, err := l.Start(context.Background(), testVideoFile(t))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if l.Current() != load {
		t.Error("Current() should return the in-flight load")
	}

	close(fake.release)
	<-load.Done()

	deadline := time.Now().Add(time.Second)
	for l.Current() != nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if l.Current() != nil {
		t.Error("Current() should be nil after completion")
	}
}
