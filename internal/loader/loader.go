// Package loader runs the open-video work (probe + waveform extraction) on
// a single background worker. Only one load runs at a time; cancelling a
// load discards its result instead of merging it into the session.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/trimdeck/trimdeck-agent/internal/media"
	"github.com/trimdeck/trimdeck-agent/internal/session"
	"github.com/trimdeck/trimdeck-agent/internal/waveform"
)

var (
	// ErrLoadInFlight means a load is already running; it must finish or be
	// cancelled before another starts.
	ErrLoadInFlight = errors.New("a video load is already in progress")

	// ErrCanceled is reported by a load whose result was discarded.
	ErrCanceled = errors.New("load canceled")

	// ErrUnsupportedFile rejects paths that are not known video files.
	ErrUnsupportedFile = errors.New("not a supported video file")
)

// Phase names the coarse steps the UI reports while loading.
type Phase string

const (
	PhaseProbing    Phase = "probing"
	PhaseWaveform   Phase = "extracting_audio"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Result is everything a completed load contributes to a new session.
type Result struct {
	MediaPath string
	Probe     *media.ProbeResult
	Peaks     []waveform.Peak
}

// Progress is a polled view of the running load.
type Progress struct {
	Phase   Phase  `json:"phase"`
	Percent int    `json:"percent"`
	Path    string `json:"path"`
}

// Load is a handle to one background load.
type Load struct {
	path   string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	prog   Progress
	result *Result
	err    error
}

// Done is closed when the load finished, failed, or was cancelled.
func (l *Load) Done() <-chan struct{} {
	return l.done
}

// Result returns the outcome; valid only after Done is closed.
func (l *Load) Result() (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.err
}

// Progress returns the current phase snapshot.
func (l *Load) Progress() Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prog
}

// Cancel aborts the load; its result is discarded.
func (l *Load) Cancel() {
	l.cancel()
}

func (l *Load) setPhase(p Phase, percent int) {
	l.mu.Lock()
	l.prog.Phase = p
	l.prog.Percent = percent
	l.mu.Unlock()
}

// Loader starts background loads, one at a time.
type Loader struct {
	transcoder media.Transcoder
	extractor  *waveform.Extractor
	buckets    int
	logger     *slog.Logger

	mu      sync.Mutex
	current *Load
}

func New(transcoder media.Transcoder, extractor *waveform.Extractor, buckets int, logger *slog.Logger) *Loader {
	if buckets <= 0 {
		buckets = waveform.DefaultBuckets
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		transcoder: transcoder,
		extractor:  extractor,
		buckets:    buckets,
		logger:     logger,
	}
}

// Start validates path and begins loading it in the background. It fails
// with ErrLoadInFlight while another load is running.
func (l *Loader) Start(ctx context.Context, path string) (*Load, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.current != nil {
		select {
		case <-l.current.done:
			// previous load finished, slot is free
		default:
			l.mu.Unlock()
			return nil, ErrLoadInFlight
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	load := &Load{
		path:   path,
		cancel: cancel,
		done:   make(chan struct{}),
		prog:   Progress{Phase: PhaseProbing, Path: path},
	}
	l.current = load
	l.mu.Unlock()

	go l.run(ctx, load)
	return load, nil
}

// Current returns the in-flight load, or nil.
func (l *Loader) Current() *Load {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	select {
	case <-l.current.done:
		return nil
	default:
		return l.current
	}
}

func (l *Loader) run(ctx context.Context, load *Load) {
	defer close(load.done)
	defer load.cancel()

	result, err := l.doLoad(ctx, load)

	load.mu.Lock()
	defer load.mu.Unlock()
	if ctx.Err() != nil {
		// A cancelled load never delivers a result, even if the work
		// happened to finish first.
		load.err = ErrCanceled
		load.prog.Phase = PhaseFailed
		l.logger.Info("video load canceled", "path", filepath.Base(load.path))
		return
	}
	if err != nil {
		load.err = err
		load.prog.Phase = PhaseFailed
		l.logger.Error("video load failed", "path", filepath.Base(load.path), "error", err)
		return
	}
	load.result = result
	load.prog.Phase = PhaseDone
	load.prog.Percent = 100
	l.logger.Info("video loaded",
		"path", filepath.Base(load.path),
		"duration", result.Probe.Duration,
		"frame_rate", result.Probe.FrameRate,
	)
}

func (l *Loader) doLoad(ctx context.Context, load *Load) (*Result, error) {
	load.setPhase(PhaseProbing, 10)
	probe, err := l.transcoder.Probe(ctx, load.path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filepath.Base(load.path), err)
	}

	var peaks []waveform.Peak
	if probe.HasAudio {
		load.setPhase(PhaseWaveform, 30)
		peaks, err = l.extractor.ExtractPeaks(ctx, load.path, l.buckets)
		if err != nil {
			return nil, fmt.Errorf("waveform extraction: %w", err)
		}
	} else {
		peaks = []waveform.Peak{}
	}

	load.setPhase(PhaseFinalizing, 90)
	return &Result{MediaPath: load.path, Probe: probe, Peaks: peaks}, nil
}

func validatePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !session.VideoExtensions[ext] {
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFile)
	}
	return nil
}
