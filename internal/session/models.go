package session

import (
	"crypto/rand"
	"fmt"
	"time"
)

// MarkerKind distinguishes the two halves of an in/out pair.
type MarkerKind string

const (
	MarkerStart MarkerKind = "start"
	MarkerEnd   MarkerKind = "end"
)

// Marker is a single user-placed, frame-quantized timestamp.
type Marker struct {
	Time float64    `json:"time"`
	Kind MarkerKind `json:"kind"`
}

// CutRegion is a completed (start, end) pair marked for removal from the
// exported output. Start < End always holds for regions held by a Session.
type CutRegion struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Contains reports whether t falls inside the region.
func (r CutRegion) Contains(t float64) bool {
	return t >= r.Start && t < r.End
}

// Timeline is the immutable shape of the loaded media.
type Timeline struct {
	Duration  float64 `json:"duration"`
	FrameRate float64 `json:"frame_rate"`
}

var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
	".avi": true,
	".m4v": true,
}

func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

// Snapshot is a read-only copy of session state handed to renderers and to
// the exporter. Mutating it has no effect on the session.
type Snapshot struct {
	ID        string      `json:"id"`
	MediaPath string      `json:"media_path"`
	Timeline  Timeline    `json:"timeline"`
	Regions   []CutRegion `json:"regions"`
	Pending   *Marker     `json:"pending,omitempty"`
	Playhead  float64     `json:"playhead"`
	Stale     bool        `json:"stale"`
	LoadedAt  time.Time   `json:"loaded_at"`
}
