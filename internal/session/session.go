// Package session owns the in-memory editing state for one loaded video:
// its timeline, the ordered cut regions, and the at-most-one pending marker.
package session

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/trimdeck/trimdeck-agent/internal/timeline"
)

var (
	// ErrInvalidRegion means a pair was completed with end <= start. The
	// pending marker is kept; the user must pick a later point.
	ErrInvalidRegion = errors.New("region end must be after its start")

	// ErrOverlap means a completed pair intersects or touches an existing
	// region. Overlaps are rejected, never merged.
	ErrOverlap = errors.New("region overlaps an existing cut region")

	// ErrNoRegion is returned by DeleteRegionAt when no region covers the
	// given time.
	ErrNoRegion = errors.New("no cut region at that position")
)

// Session holds the editing state for exactly one loaded media file. All
// mutations are serialized internally; Snapshot hands out copies so an
// in-flight export never observes a mutation.
type Session struct {
	mu sync.Mutex

	id        string
	mediaPath string
	tl        Timeline
	loadedAt  time.Time

	regions []CutRegion // sorted by Start, pairwise disjoint
	pending *Marker
	order   []int // insertion order of regions, as indexes into regions

	playhead float64
	stale    bool
}

// New creates a session for a freshly loaded media file.
func New(mediaPath string, tl Timeline) *Session {
	return &Session{
		id:        NewID(),
		mediaPath: mediaPath,
		tl:        tl,
		loadedAt:  time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// MediaPath returns the loaded media file path.
func (s *Session) MediaPath() string {
	return s.mediaPath
}

// Timeline returns the immutable timeline for the loaded media.
func (s *Session) Timeline() Timeline {
	return s.tl
}

// PlaceMarker places a marker at t, frame-quantized. With no pending marker
// it opens a new pair as a start marker; with a pending start it completes
// the pair into a CutRegion. Completion fails with ErrInvalidRegion when
// t <= start and with ErrOverlap when the new region would intersect an
// existing one; in both cases session state is unchanged apart from keeping
// the pending marker.
func (s *Session) PlaceMarker(t float64) (*CutRegion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t = s.quantize(t)
	if t < 0 || t > s.tl.Duration {
		return nil, fmt.Errorf("marker at %v outside [0, %v]", t, s.tl.Duration)
	}

	if s.pending == nil {
		s.pending = &Marker{Time: t, Kind: MarkerStart}
		return nil, nil
	}

	region := CutRegion{Start: s.pending.Time, End: t}
	if region.End <= region.Start {
		return nil, ErrInvalidRegion
	}
	if s.overlapsLocked(region) {
		return nil, ErrOverlap
	}

	s.pending = nil
	s.insertLocked(region)
	return &region, nil
}

// RemoveLastMarker discards the pending marker if one exists, otherwise the
// most recently completed region. It reports whether anything was removed;
// calling it on an empty session is a no-op, not an error.
func (s *Session) RemoveLastMarker() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending = nil
		return true
	}
	if len(s.order) == 0 {
		return false
	}

	last := s.order[len(s.order)-1]
	s.order = s.order[:len(s.order)-1]
	s.regions = append(s.regions[:last], s.regions[last+1:]...)
	for i, idx := range s.order {
		if idx > last {
			s.order[i] = idx - 1
		}
	}
	return true
}

// DeleteRegionAt removes the region containing t (the region under the
// playhead for the DELETE shortcut). Returns ErrNoRegion when t is not
// inside any region.
func (s *Session) DeleteRegionAt(t float64) (CutRegion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.regions {
		if !r.Contains(t) {
			continue
		}
		s.regions = append(s.regions[:i], s.regions[i+1:]...)
		for j := 0; j < len(s.order); j++ {
			if s.order[j] == i {
				s.order = append(s.order[:j], s.order[j+1:]...)
				j--
				continue
			}
			if s.order[j] > i {
				s.order[j]--
			}
		}
		return r, nil
	}
	return CutRegion{}, ErrNoRegion
}

// Regions returns a copy of the cut regions, sorted by start.
func (s *Session) Regions() []CutRegion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CutRegion, len(s.regions))
	copy(out, s.regions)
	return out
}

// PendingMarker returns a copy of the incomplete marker, or nil.
func (s *Session) PendingMarker() *Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	m := *s.pending
	return &m
}

// Seek moves the playhead, clamped to the timeline.
func (s *Session) Seek(t float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playhead = clamp(t, 0, s.tl.Duration)
	return s.playhead
}

// Playhead returns the current playhead position.
func (s *Session) Playhead() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playhead
}

// StepFrames nudges the playhead by n frames (negative steps back), the
// arrow-key shortcut behavior.
func (s *Session) StepFrames(n int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tl.FrameRate <= 0 {
		return s.playhead
	}
	// Step in frame indexes rather than accumulating 1/frameRate
	// additions, so repeated steps never drift off the frame grid.
	frames := math.Round(s.playhead*s.tl.FrameRate) + float64(n)
	s.playhead = clamp(frames/s.tl.FrameRate, 0, s.tl.Duration)
	return s.playhead
}

// MarkStale flags the session after the media file changed on disk.
func (s *Session) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
}

// Stale reports whether the media file changed since load.
func (s *Session) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// RestoreRegions replaces the region set wholesale, validating each region
// against the timeline and the regions restored before it. Used when loading
// a saved project.
func (s *Session) RestoreRegions(regions []CutRegion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := &Session{tl: s.tl}
	for _, r := range regions {
		if r.End <= r.Start || r.Start < 0 || r.End > s.tl.Duration {
			return fmt.Errorf("saved region (%v, %v): %w", r.Start, r.End, ErrInvalidRegion)
		}
		if restored.overlapsLocked(r) {
			return fmt.Errorf("saved region (%v, %v): %w", r.Start, r.End, ErrOverlap)
		}
		restored.insertLocked(r)
	}

	s.regions = restored.regions
	s.order = restored.order
	s.pending = nil
	return nil
}

// Snapshot returns a consistent copy of the full session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		MediaPath: s.mediaPath,
		Timeline:  s.tl,
		Regions:   make([]CutRegion, len(s.regions)),
		Playhead:  s.playhead,
		Stale:     s.stale,
		LoadedAt:  s.loadedAt,
	}
	copy(snap.Regions, s.regions)
	if s.pending != nil {
		m := *s.pending
		snap.Pending = &m
	}
	return snap
}

func (s *Session) quantize(t float64) float64 {
	return timeline.QuantizeToFrame(t, s.tl.FrameRate)
}

// overlapsLocked reports whether r intersects or touches an existing region.
// Touching counts: two regions sharing a boundary would make export
// ambiguous, so the invariant keeps a strict gap between regions.
func (s *Session) overlapsLocked(r CutRegion) bool {
	for _, existing := range s.regions {
		if r.Start <= existing.End && existing.Start <= r.End {
			return true
		}
	}
	return false
}

func (s *Session) insertLocked(r CutRegion) {
	idx := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].Start > r.Start
	})
	s.regions = append(s.regions, CutRegion{})
	copy(s.regions[idx+1:], s.regions[idx:])
	s.regions[idx] = r

	for i, o := range s.order {
		if o >= idx {
			s.order[i] = o + 1
		}
	}
	s.order = append(s.order, idx)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
