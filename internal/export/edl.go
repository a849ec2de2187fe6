package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/trimdeck/trimdeck-agent/internal/plan"
)

// EventsFromSegments converts planner keep segments (seconds) into EDL events
// against a single source clip.
func EventsFromSegments(segments []plan.Segment, mediaPath string) []Event {
	clipName := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	events := make([]Event, 0, len(segments))
	for _, seg := range segments {
		events = append(events, Event{
			ClipName:  clipName,
			MediaPath: mediaPath,
			StartMs:   int(math.Round(seg.Start * 1000)),
			EndMs:     int(math.Round(seg.End * 1000)),
		})
	}
	return events
}

func GenerateEDL(events []Event, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffsetMs := 0
	for i, ev := range events {
		srcIn := msToTimecode(ev.StartMs, fps)
		srcOut := msToTimecode(ev.EndMs, fps)
		recIn := msToTimecode(recordOffsetMs, fps)
		durationMs := ev.EndMs - ev.StartMs
		recOut := msToTimecode(recordOffsetMs+durationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", ev.MediaPath),
		)

		recordOffsetMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
