// Package watcher notices changes to the loaded media file on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	}
	return "unknown"
}

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

// FileWatcher watches the directory containing a single media file and
// reports events for that file only. Watching the directory rather than
// the file itself survives editors that replace the file on save.
type FileWatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	fs       *fsnotify.Watcher
	target   string
	callback func(path string, event EventType)
	cancel   context.CancelFunc
}

func NewFileWatcher(logger *slog.Logger) *FileWatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileWatcher{logger: logger}
}

func (w *FileWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callback = callback
}

// Watch starts watching path. A previous watch is stopped first, so the
// watcher always tracks the most recently loaded media.
func (w *FileWatcher) Watch(ctx context.Context, path string) error {
	w.Stop()

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	ctx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.fs = fs
	w.target = path
	w.cancel = cancel
	w.mu.Unlock()

	go w.loop(ctx, fs, path)
	return nil
}

func (w *FileWatcher) loop(ctx context.Context, fs *fsnotify.Watcher, target string) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(target) {
				continue
			}
			et, relevant := classify(event.Op)
			if !relevant {
				continue
			}
			if w.logger != nil {
				w.logger.Info("media file changed", "path", target, "event", et.String())
			}
			w.mu.Lock()
			cb := w.callback
			w.mu.Unlock()
			if cb != nil {
				cb(target, et)
			}
		case err, ok := <-fs.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}
}

func classify(op fsnotify.Op) (EventType, bool) {
	switch {
	case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
		return EventDelete, true
	case op.Has(fsnotify.Write):
		return EventModify, true
	case op.Has(fsnotify.Create):
		return EventCreate, true
	}
	return 0, false
}

func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.fs != nil {
		err := w.fs.Close()
		w.fs = nil
		return err
	}
	return nil
}
