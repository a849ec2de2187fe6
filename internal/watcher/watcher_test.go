package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, ch <-chan EventType) EventType {
	t.Helper()
	select {
	case et := <-ch:
		return et
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return 0
	}
}

func TestWatchReportsModify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewFileWatcher(nil)
	events := make(chan EventType, 10)
	w.OnChange(func(p string, et EventType) {
		if p == path {
			events <- et
		}
	})

	if err := w.Watch(context.Background(), path); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("v2 longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	et := waitForEvent(t, events)
	if et != EventModify && et != EventCreate {
		t.Errorf("event = %v, want modify or create", et)
	}
}

func TestWatchReportsDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewFileWatcher(nil)
	events := make(chan EventType, 10)
	w.OnChange(func(p string, et EventType) { events <- et })

	if err := w.Watch(context.Background(), path); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if et := waitForEvent(t, events); et != EventDelete {
		t.Errorf("event = %v, want delete", et)
	}
}

func TestWatchIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	sibling := filepath.Join(dir, "other.mp4")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewFileWatcher(nil)
	var mu sync.Mutex
	var fired []string
	w.OnChange(func(p string, et EventType) {
		mu.Lock()
		fired = append(fired, p)
		mu.Unlock()
	})

	if err := w.Watch(context.Background(), path); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(sibling, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 0 {
		t.Errorf("callback fired for sibling file: %v", fired)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewFileWatcher(nil)
	if err := w.Stop(); err != nil {
		t.Errorf("Stop on unstarted watcher: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
