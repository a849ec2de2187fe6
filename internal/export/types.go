// Package export generates edit decision lists and validates export
// destinations for trimmed video.
package export

// Event is one EDL event: a kept stretch of the source clip placed on the
// record timeline.
type Event struct {
	ClipName  string
	MediaPath string
	StartMs   int
	EndMs     int
}
