// Package plan turns a validated set of cut regions into the ordered list of
// keep segments the transcoder realizes.
package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult means the cut regions cover the entire media and the
	// export would produce an empty file.
	ErrEmptyResult = errors.New("cut regions cover the entire video")
)

// Segment is a half-open [Start, End) span of the source media, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Keep computes the complement of the cut regions over [0, duration]: the
// sorted keep segments that remain after every region is removed. Regions
// must be sorted by start, pairwise disjoint and contained in [0, duration];
// malformed input is rejected rather than repaired. Degenerate keep segments
// (a region starting at 0, or two regions that abut) are dropped. Returns
// ErrEmptyResult when nothing remains.
func Keep(duration float64, regions []Segment) ([]Segment, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("invalid duration %v", duration)
	}
	if err := validate(duration, regions); err != nil {
		return nil, err
	}

	keeps := make([]Segment, 0, len(regions)+1)
	cursor := 0.0
	for _, r := range regions {
		if r.Start > cursor {
			keeps = append(keeps, Segment{Start: cursor, End: r.Start})
		}
		cursor = r.End
	}
	if cursor < duration {
		keeps = append(keeps, Segment{Start: cursor, End: duration})
	}

	if len(keeps) == 0 {
		return nil, ErrEmptyResult
	}
	return keeps, nil
}

func validate(duration float64, regions []Segment) error {
	prevEnd := 0.0
	for i, r := range regions {
		if r.Start >= r.End {
			return fmt.Errorf("region %d: start %v is not before end %v", i, r.Start, r.End)
		}
		if r.Start < 0 || r.End > duration {
			return fmt.Errorf("region %d: (%v, %v) outside [0, %v]", i, r.Start, r.End, duration)
		}
		if i > 0 && r.Start < prevEnd {
			return fmt.Errorf("region %d: (%v, %v) overlaps or is unsorted", i, r.Start, r.End)
		}
		prevEnd = r.End
	}
	return nil
}
