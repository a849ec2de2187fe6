// Package trim coordinates the editing workflow: loading media into a
// session, marker edits, previews, and exports.
package trim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/trimdeck/trimdeck-agent/internal/export"
	"github.com/trimdeck/trimdeck-agent/internal/exporter"
	"github.com/trimdeck/trimdeck-agent/internal/loader"
	"github.com/trimdeck/trimdeck-agent/internal/plan"
	"github.com/trimdeck/trimdeck-agent/internal/player"
	"github.com/trimdeck/trimdeck-agent/internal/project"
	"github.com/trimdeck/trimdeck-agent/internal/session"
	"github.com/trimdeck/trimdeck-agent/internal/watcher"
	"github.com/trimdeck/trimdeck-agent/internal/waveform"
)

var ErrNoSession = errors.New("no video is loaded")

// Service owns the current session and wires the loader, exporter, watcher
// and player together behind one API.
type Service struct {
	loader   *loader.Loader
	exporter *exporter.Exporter
	repo     project.Repository
	watcher  watcher.Watcher
	player   player.Player
	logger   *slog.Logger

	exportOpts exporter.Options

	// baseCtx outlives any single request; background loads, exports and
	// previews run under it so they are not killed when the HTTP request
	// that started them returns.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	current *session.Session
	peaks   []waveform.Peak
}

func NewService(ld *loader.Loader, ex *exporter.Exporter, repo project.Repository,
	w watcher.Watcher, pl player.Player, exportOpts exporter.Options, logger *slog.Logger) *Service {
	s := &Service{
		loader:     ld,
		exporter:   ex,
		repo:       repo,
		watcher:    w,
		player:     pl,
		exportOpts: exportOpts,
		logger:     logger,
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	if w != nil {
		w.OnChange(s.onMediaChange)
	}
	return s
}

// LoadVideo starts a background load of path. The load is bound to the
// service lifetime rather than ctx, so it survives the request that started
// it. The returned handle can be polled for progress; once it completes
// successfully the service swaps in a fresh session, restoring any saved
// regions for that media path.
func (s *Service) LoadVideo(ctx context.Context, path string) (*loader.Load, error) {
	load, err := s.loader.Start(s.baseCtx, path)
	if err != nil {
		return nil, err
	}

	go func() {
		<-load.Done()
		result, err := load.Result()
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("video load failed", "path", path, "error", err)
			}
			return
		}
		s.installSession(result)
	}()

	return load, nil
}

func (s *Service) installSession(result *loader.Result) {
	tl := session.Timeline{
		Duration:  result.Probe.Duration,
		FrameRate: result.Probe.FrameRate,
	}
	sess := session.New(result.MediaPath, tl)

	// Restore saved regions if this media was trimmed before.
	if s.repo != nil {
		saved, err := s.repo.GetProjectByPath(context.Background(), result.MediaPath)
		if err == nil && saved != nil {
			if err := sess.RestoreRegions(saved.Regions); err != nil {
				if s.logger != nil {
					s.logger.Warn("saved regions no longer fit media, starting clean",
						"project_id", saved.ID, "error", err)
				}
			}
		}
	}

	s.mu.Lock()
	s.current = sess
	s.peaks = result.Peaks
	s.mu.Unlock()

	if s.watcher != nil {
		if err := s.watcher.Watch(context.Background(), result.MediaPath); err != nil && s.logger != nil {
			s.logger.Warn("cannot watch media file", "path", result.MediaPath, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("session ready",
			"session_id", sess.ID(),
			"path", result.MediaPath,
			"duration", result.Probe.Duration,
			"frame_rate", result.Probe.FrameRate,
		)
	}
}

func (s *Service) onMediaChange(path string, event watcher.EventType) {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()

	if sess == nil || sess.MediaPath() != path {
		return
	}
	sess.MarkStale()
	if s.logger != nil {
		s.logger.Warn("loaded media changed on disk", "path", path, "event", event.String())
	}
}

// Session returns the current session or ErrNoSession.
func (s *Service) Session() (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoSession
	}
	return s.current, nil
}

// Snapshot returns the current session state plus its waveform peaks.
func (s *Service) Snapshot() (session.Snapshot, []waveform.Peak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return session.Snapshot{}, nil, ErrNoSession
	}
	return s.current.Snapshot(), s.peaks, nil
}

// ClearSession drops the loaded video and stops watching its file.
func (s *Service) ClearSession() {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.peaks = nil
	s.mu.Unlock()

	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.player != nil {
		s.player.Stop()
	}
	if had && s.logger != nil {
		s.logger.Info("session cleared")
	}
}

// Close cancels every background load, export and preview the service owns.
func (s *Service) Close() {
	s.baseCancel()
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.player != nil {
		s.player.Stop()
	}
}

// LoadProgress reports the in-flight load, if any.
func (s *Service) LoadProgress() (loader.Progress, bool) {
	load := s.loader.Current()
	if load == nil {
		return loader.Progress{}, false
	}
	return load.Progress(), true
}

// ExportProgress reports the exporter pipeline state.
func (s *Service) ExportProgress() exporter.Progress {
	return s.exporter.Progress()
}

// Preview plays [start, end) of the loaded media in the external player.
// The player process keeps running after the caller's request completes.
func (s *Service) Preview(ctx context.Context, start, end float64) error {
	sess, err := s.Session()
	if err != nil {
		return err
	}
	return s.player.Preview(s.baseCtx, sess.MediaPath(), start, end)
}

// ExportVideo starts a background export of the loaded session into
// outputDir. The output name defaults to "<media>_trimmed<ext>". Returns the
// destination path the export will produce.
func (s *Service) ExportVideo(ctx context.Context, outputDir, name string, copyMode *bool) (string, error) {
	sess, err := s.Session()
	if err != nil {
		return "", err
	}
	if err := export.ValidateOutputDir(outputDir); err != nil {
		return "", err
	}

	snap := sess.Snapshot()
	destPath := filepath.Join(outputDir, export.VideoOutputName(snap.MediaPath, name))

	// Validate the cut plan up front so an empty result fails the request,
	// not the background run.
	segments, err := plan.Keep(snap.Timeline.Duration, regionsToSegments(snap.Regions))
	if err != nil {
		return "", err
	}

	opts := s.exportOpts
	if copyMode != nil {
		opts.CopyMode = *copyMode
	}

	record := &project.ExportRecord{
		ID:           session.NewID(),
		MediaPath:    snap.MediaPath,
		OutputPath:   destPath,
		CopyMode:     opts.CopyMode,
		SegmentCount: len(segments),
		Status:       project.ExportStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	if s.repo != nil {
		if err := s.repo.CreateExport(ctx, record); err != nil {
			return "", fmt.Errorf("failed to record export: %w", err)
		}
	}

	go func() {
		err := s.exporter.Export(s.baseCtx, snap, destPath, opts)
		if s.repo == nil {
			return
		}
		status, errMsg := project.ExportStatusCompleted, ""
		if err != nil {
			status, errMsg = project.ExportStatusFailed, err.Error()
		}
		if ferr := s.repo.FinishExport(context.Background(), record.ID, status, errMsg); ferr != nil && s.logger != nil {
			s.logger.Error("failed to finalize export record", "export_id", record.ID, "error", ferr)
		}
	}()

	return destPath, nil
}

// ExportEDL writes an edit decision list of the kept segments and returns
// its path.
func (s *Service) ExportEDL(outputDir, title string) (string, error) {
	sess, err := s.Session()
	if err != nil {
		return "", err
	}
	if err := export.ValidateOutputDir(outputDir); err != nil {
		return "", err
	}

	snap := sess.Snapshot()
	segments, err := plan.Keep(snap.Timeline.Duration, regionsToSegments(snap.Regions))
	if err != nil {
		return "", err
	}

	title = export.TitleOrBase(snap.MediaPath, title, 120)

	events := export.EventsFromSegments(segments, snap.MediaPath)
	edl := export.GenerateEDL(events, title, snap.Timeline.FrameRate)

	outputPath := filepath.Join(outputDir, title+".edl")
	if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
		return "", fmt.Errorf("failed to write EDL: %w", err)
	}
	return outputPath, nil
}

// SaveProject persists the current session's regions under the given name.
func (s *Service) SaveProject(ctx context.Context, name string) (*project.Project, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()

	name = export.TitleOrBase(snap.MediaPath, name, 120)

	p := &project.Project{
		MediaPath: snap.MediaPath,
		Name:      name,
		Duration:  snap.Timeline.Duration,
		FrameRate: snap.Timeline.FrameRate,
		Regions:   snap.Regions,
		CreatedAt: time.Now().UTC(),
	}

	// Resaving the same media updates the existing project.
	existing, err := s.repo.GetProjectByPath(ctx, snap.MediaPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = session.NewID()
	}

	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("project saved", "project_id", p.ID, "regions", len(p.Regions))
	}
	return p, nil
}

// OpenProject loads a saved project's media; its regions are restored when
// the load completes.
func (s *Service) OpenProject(ctx context.Context, id string) (*loader.Load, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s not found", id)
	}
	return s.LoadVideo(ctx, p.MediaPath)
}

func (s *Service) ListProjects(ctx context.Context) ([]*project.Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	return s.repo.DeleteProject(ctx, id)
}

func (s *Service) ExportHistory(ctx context.Context, limit int) ([]*project.ExportRecord, error) {
	return s.repo.ListExports(ctx, limit)
}

func regionsToSegments(regions []session.CutRegion) []plan.Segment {
	out := make([]plan.Segment, len(regions))
	for i, r := range regions {
		out[i] = plan.Segment{Start: r.Start, End: r.End}
	}
	return out
}
