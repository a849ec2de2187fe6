package session

import (
	"errors"
	"testing"
)

func newTestSession() *Session {
	return New("/videos/test.mp4", Timeline{Duration: 100, FrameRate: 25})
}

func TestPlaceMarker_CompletesPair(t *testing.T) {
	s := newTestSession()

	region, err := s.PlaceMarker(10)
	if err != nil {
		t.Fatalf("first PlaceMarker() error = %v", err)
	}
	if region != nil {
		t.Fatal("first marker should not complete a region")
	}
	if p := s.PendingMarker(); p == nil || p.Kind != MarkerStart || p.Time != 10 {
		t.Fatalf("pending marker = %+v, want start at 10", p)
	}

	region, err = s.PlaceMarker(20)
	if err != nil {
		t.Fatalf("second PlaceMarker() error = %v", err)
	}
	if region == nil || region.Start != 10 || region.End != 20 {
		t.Fatalf("completed region = %+v, want (10, 20)", region)
	}

	regions := s.Regions()
	if len(regions) != 1 || regions[0] != (CutRegion{Start: 10, End: 20}) {
		t.Fatalf("Regions() = %v, want exactly [(10, 20)]", regions)
	}
	if s.PendingMarker() != nil {
		t.Fatal("pending marker should be cleared after completion")
	}
}

func TestPlaceMarker_QuantizesToFrame(t *testing.T) {
	s := newTestSession() // 25fps, frame = 0.04s

	s.PlaceMarker(1.003) // nearest frame is 25 -> 1.0
	p := s.PendingMarker()
	if p == nil || p.Time != 1.0 {
		t.Fatalf("pending marker time = %+v, want 1.0", p)
	}
}

func TestPlaceMarker_RejectsInvertedPair(t *testing.T) {
	s := newTestSession()
	s.PlaceMarker(50)

	_, err := s.PlaceMarker(30)
	if !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("PlaceMarker() error = %v, want ErrInvalidRegion", err)
	}

	// Failed completion must leave state unchanged: pending start intact,
	// no region created.
	if len(s.Regions()) != 0 {
		t.Fatal("failed completion must not create a region")
	}
	if p := s.PendingMarker(); p == nil || p.Time != 50 {
		t.Fatalf("pending marker = %+v, want start at 50", p)
	}

	// The user picks a later point and the pair completes normally.
	region, err := s.PlaceMarker(60)
	if err != nil {
		t.Fatalf("retry PlaceMarker() error = %v", err)
	}
	if region == nil || *region != (CutRegion{Start: 50, End: 60}) {
		t.Fatalf("region = %+v, want (50, 60)", region)
	}
}

func TestPlaceMarker_EqualTimestampsRejected(t *testing.T) {
	s := newTestSession()
	s.PlaceMarker(50)
	if _, err := s.PlaceMarker(50); !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("PlaceMarker() error = %v, want ErrInvalidRegion", err)
	}
}

func TestPlaceMarker_RejectsOverlap(t *testing.T) {
	s := newTestSession()
	mustRegion(t, s, 20, 40)

	s.PlaceMarker(30)
	_, err := s.PlaceMarker(50)
	if !errors.Is(err, ErrOverlap) {
		t.Fatalf("PlaceMarker() error = %v, want ErrOverlap", err)
	}
	if got := len(s.Regions()); got != 1 {
		t.Fatalf("regions = %d, want 1 after rejected overlap", got)
	}
}

func TestPlaceMarker_RejectsTouchingRegion(t *testing.T) {
	s := newTestSession()
	mustRegion(t, s, 20, 40)

	s.PlaceMarker(40)
	if _, err := s.PlaceMarker(60); !errors.Is(err, ErrOverlap) {
		t.Fatalf("touching region error = %v, want ErrOverlap", err)
	}
}

func TestPlaceMarker_OutOfBounds(t *testing.T) {
	s := newTestSession()
	if _, err := s.PlaceMarker(150); err == nil {
		t.Fatal("PlaceMarker() past the duration should fail")
	}
}

func TestRemoveLastMarker_PendingFirst(t *testing.T) {
	s := newTestSession()
	mustRegion(t, s, 10, 20)
	s.PlaceMarker(50)

	if !s.RemoveLastMarker() {
		t.Fatal("RemoveLastMarker() should remove the pending marker")
	}
	if s.PendingMarker() != nil {
		t.Fatal("pending marker should be gone")
	}
	if got := len(s.Regions()); got != 1 {
		t.Fatalf("regions = %d, want region untouched", got)
	}
}

func TestRemoveLastMarker_MostRecentRegion(t *testing.T) {
	s := newTestSession()
	// Place out of timeline order: the second-placed region sorts first.
	mustRegion(t, s, 60, 70)
	mustRegion(t, s, 10, 20)

	if !s.RemoveLastMarker() {
		t.Fatal("RemoveLastMarker() should remove a region")
	}

	regions := s.Regions()
	if len(regions) != 1 || regions[0] != (CutRegion{Start: 60, End: 70}) {
		t.Fatalf("Regions() = %v, want the most recently added (10, 20) removed", regions)
	}
}

func TestRemoveLastMarker_EmptyIsNoop(t *testing.T) {
	s := newTestSession()
	if s.RemoveLastMarker() {
		t.Fatal("RemoveLastMarker() on an empty session should report false")
	}
}

func TestDeleteRegionAt(t *testing.T) {
	s := newTestSession()
	mustRegion(t, s, 10, 20)
	mustRegion(t, s, 60, 70)

	removed, err := s.DeleteRegionAt(65)
	if err != nil {
		t.Fatalf("DeleteRegionAt() error = %v", err)
	}
	if removed != (CutRegion{Start: 60, End: 70}) {
		t.Fatalf("removed = %v, want (60, 70)", removed)
	}

	regions := s.Regions()
	if len(regions) != 1 || regions[0] != (CutRegion{Start: 10, End: 20}) {
		t.Fatalf("Regions() = %v, want [(10, 20)]", regions)
	}
}

func TestDeleteRegionAt_NoRegion(t *testing.T) {
	s := newTestSession()
	mustRegion(t, s, 10, 20)

	if _, err := s.DeleteRegionAt(50); !errors.Is(err, ErrNoRegion) {
		t.Fatalf("DeleteRegionAt() error = %v, want ErrNoRegion", err)
	}
}

func TestRegions_SortedByStart(t *testing.T) {
	s := newTestSession()
	mustRegion(t, s, 60, 70)
	mustRegion(t, s, 10, 20)
	mustRegion(t, s, 30, 40)

	regions := s.Regions()
	for i := 1; i < len(regions); i++ {
		if regions[i].Start < regions[i-1].Start {
			t.Fatalf("Regions() not sorted: %v", regions)
		}
	}
}

func TestRemoveLastMarker_InsertionOrderAcrossSorting(t *testing.T) {
	s := newTestSession()
	mustRegion(t, s, 60, 70)
	mustRegion(t, s, 10, 20)
	mustRegion(t, s, 30, 40)

	// Removal order must be reverse insertion order regardless of sort
	// position: (30,40), then (10,20), then (60,70).
	s.RemoveLastMarker()
	s.RemoveLastMarker()

	regions := s.Regions()
	if len(regions) != 1 || regions[0] != (CutRegion{Start: 60, End: 70}) {
		t.Fatalf("Regions() = %v, want [(60, 70)]", regions)
	}
}

func TestStepFrames(t *testing.T) {
	s := newTestSession() // 25fps
	s.Seek(1.0)

	if got := s.StepFrames(1); got != 1.04 {
		t.Errorf("StepFrames(1) = %v, want 1.04", got)
	}
	if got := s.StepFrames(-2); got != 0.96 {
		t.Errorf("StepFrames(-2) = %v, want 0.96", got)
	}
}

func TestStepFrames_NoDrift(t *testing.T) {
	s := newTestSession() // 25fps
	s.Seek(1.0)

	// Stepping away and back must land exactly where it started; the
	// playhead moves on the frame grid, not by accumulated additions.
	for i := 0; i < 3; i++ {
		s.StepFrames(1)
	}
	for i := 0; i < 3; i++ {
		s.StepFrames(-1)
	}
	if got := s.Playhead(); got != 1.0 {
		t.Errorf("playhead after round trip = %v, want 1.0", got)
	}
}

func TestStepFrames_ClampsToTimeline(t *testing.T) {
	s := newTestSession()
	s.Seek(0)
	if got := s.StepFrames(-5); got != 0 {
		t.Errorf("stepping before 0 should clamp, got %v", got)
	}
	s.Seek(100)
	if got := s.StepFrames(5); got != 100 {
		t.Errorf("stepping past the end should clamp, got %v", got)
	}
}

func TestRestoreRegions(t *testing.T) {
	s := newTestSession()
	saved := []CutRegion{{Start: 40, End: 50}, {Start: 10, End: 20}}

	if err := s.RestoreRegions(saved); err != nil {
		t.Fatalf("RestoreRegions() error = %v", err)
	}

	regions := s.Regions()
	if len(regions) != 2 || regions[0].Start != 10 || regions[1].Start != 40 {
		t.Fatalf("Regions() = %v, want sorted restore", regions)
	}
}

func TestRestoreRegions_RejectsBadData(t *testing.T) {
	s := newTestSession()
	mustRegion(t, s, 5, 6)

	err := s.RestoreRegions([]CutRegion{{Start: 10, End: 20}, {Start: 15, End: 30}})
	if !errors.Is(err, ErrOverlap) {
		t.Fatalf("RestoreRegions() error = %v, want ErrOverlap", err)
	}
	// A failed restore must leave the existing set untouched.
	regions := s.Regions()
	if len(regions) != 1 || regions[0] != (CutRegion{Start: 5, End: 6}) {
		t.Fatalf("Regions() = %v, want original set after failed restore", regions)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := newTestSession()
	mustRegion(t, s, 10, 20)

	snap := s.Snapshot()
	snap.Regions[0].Start = 99

	if s.Regions()[0].Start != 10 {
		t.Fatal("mutating a snapshot must not touch the session")
	}
}

func mustRegion(t *testing.T, s *Session, start, end float64) {
	t.Helper()
	if _, err := s.PlaceMarker(start); err != nil {
		t.Fatalf("PlaceMarker(%v) error = %v", start, err)
	}
	if _, err := s.PlaceMarker(end); err != nil {
		t.Fatalf("PlaceMarker(%v) error = %v", end, err)
	}
}
