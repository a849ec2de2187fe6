// Package exporter realizes a keep-segment plan as an output file: one
// ffmpeg extraction per kept segment, a single concat pass, then cleanup.
// The pipeline is Extract×N → Concat → Cleanup with a hard short-circuit on
// the first failure, and it never leaves a partial file at the destination.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trimdeck/trimdeck-agent/internal/media"
	"github.com/trimdeck/trimdeck-agent/internal/plan"
	"github.com/trimdeck/trimdeck-agent/internal/session"
)

// State of the export pipeline.
type State string

const (
	StateIdle          State = "idle"
	StateExtracting    State = "extracting"
	StateConcatenating State = "concatenating"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// ErrExportInFlight means an export is already running; marker mutations and
// further exports must wait for it.
var ErrExportInFlight = errors.New("an export is already in progress")

// Options control a single export run.
type Options struct {
	// CopyMode extracts with stream copy instead of re-encoding. Fast and
	// lossless, but cut points land on keyframes; re-encode when exact
	// boundaries matter more than speed.
	CopyMode bool

	// Parallelism bounds concurrent segment extractions. <= 0 means one at
	// a time.
	Parallelism int

	// Timeout bounds the whole export; the external processes are killed on
	// expiry. Zero means no overall timeout.
	Timeout time.Duration

	// WorkDir hosts the staging directory. Empty means the system temp dir.
	WorkDir string
}

// Progress is a polled snapshot of the pipeline state.
type Progress struct {
	State         State     `json:"state"`
	SegmentsDone  int       `json:"segments_done"`
	SegmentsTotal int       `json:"segments_total"`
	OutputPath    string    `json:"output_path,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
}

// SegmentError identifies which keep segment failed and why.
type SegmentError struct {
	Index   int // zero-based segment index
	Total   int
	Segment plan.Segment
	Err     error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d/%d (%.3fs-%.3fs): %v",
		e.Index+1, e.Total, e.Segment.Start, e.Segment.End, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// Exporter runs at most one export pipeline at a time.
type Exporter struct {
	transcoder media.Transcoder
	logger     *slog.Logger

	running atomic.Bool
	mu      sync.Mutex
	prog    Progress
}

func New(transcoder media.Transcoder, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{
		transcoder: transcoder,
		logger:     logger,
		prog:       Progress{State: StateIdle},
	}
}

// Progress returns a copy of the current pipeline state.
func (e *Exporter) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prog
}

// Export turns the session's cut regions into destPath. The region snapshot
// is read-only; callers must not mutate the session until Export returns.
// On any failure nothing exists at destPath and all temporary segment files
// are removed.
func (e *Exporter) Export(ctx context.Context, snap session.Snapshot, destPath string, opts Options) error {
	if e.running.Swap(true) {
		return ErrExportInFlight
	}
	defer e.running.Store(false)

	err := e.export(ctx, snap, destPath, opts)

	e.mu.Lock()
	e.prog.FinishedAt = time.Now()
	if err != nil {
		e.prog.State = StateFailed
		e.prog.Error = err.Error()
	} else {
		e.prog.State = StateDone
		e.prog.OutputPath = destPath
	}
	e.mu.Unlock()

	return err
}

func (e *Exporter) export(ctx context.Context, snap session.Snapshot, destPath string, opts Options) error {
	keeps, err := plan.Keep(snap.Timeline.Duration, regionsToSegments(snap.Regions))
	if err != nil {
		return err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	staging, err := os.MkdirTemp(opts.WorkDir, "trimdeck-export-*")
	if err != nil {
		return fmt.Errorf("cannot create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	e.mu.Lock()
	e.prog = Progress{
		State:         StateExtracting,
		SegmentsTotal: len(keeps),
		StartedAt:     time.Now(),
	}
	e.mu.Unlock()

	logger := e.logger.With("media", filepath.Base(snap.MediaPath), "segments", len(keeps))
	logger.Info("export started", "dest", destPath, "copy_mode", opts.CopyMode)

	segPaths, err := e.extractAll(ctx, snap.MediaPath, keeps, staging, opts)
	if err != nil {
		logger.Error("export failed during extraction", "error", err)
		return err
	}

	e.setState(StateConcatenating)

	staged := filepath.Join(staging, "output"+filepath.Ext(destPath))
	if err := e.transcoder.Concat(ctx, segPaths, staged); err != nil {
		logger.Error("export failed during concatenation", "error", err)
		return fmt.Errorf("concatenation: %w", err)
	}

	// The output reaches the destination only after the whole pipeline
	// succeeded, so a failure can never leave a partial file there.
	if err := moveFile(staged, destPath); err != nil {
		return fmt.Errorf("cannot place output: %w", err)
	}

	logger.Info("export complete", "output", destPath)
	return nil
}

// extractAll runs the per-segment extractions, bounded by opts.Parallelism.
// The first failure cancels the remaining extractions.
func (e *Exporter) extractAll(ctx context.Context, inputPath string, keeps []plan.Segment, staging string, opts Options) ([]string, error) {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	segPaths := make([]string, len(keeps))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, seg := range keeps {
		segPaths[i] = filepath.Join(staging, fmt.Sprintf("seg_%03d%s", i, filepath.Ext(inputPath)))

		g.Go(func() error {
			err := e.transcoder.ExtractSegment(gctx, inputPath, segPaths[i], seg.Start, seg.End, opts.CopyMode)
			if err != nil {
				return &SegmentError{Index: i, Total: len(keeps), Segment: seg, Err: err}
			}

			n := int(done.Add(1))
			e.mu.Lock()
			e.prog.SegmentsDone = n
			e.mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segPaths, nil
}

func (e *Exporter) setState(s State) {
	e.mu.Lock()
	e.prog.State = s
	e.mu.Unlock()
}

func regionsToSegments(regions []session.CutRegion) []plan.Segment {
	segs := make([]plan.Segment, len(regions))
	for i, r := range regions {
		segs[i] = plan.Segment{Start: r.Start, End: r.End}
	}
	return segs
}

// moveFile renames src to dst, falling back to copy+remove when the staging
// dir sits on a different filesystem than the destination.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
