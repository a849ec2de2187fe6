// Package timeline maps between UI pixel coordinates and media timestamps.
// All functions are pure; the same mapping is used for waveform rendering
// and for snapping export boundaries onto frames.
package timeline

import "math"

// PixelToTime converts an x coordinate on a timeline strip of widthPx pixels
// into a timestamp in seconds, clamped to [0, duration].
func PixelToTime(x, widthPx, duration float64) float64 {
	if widthPx <= 0 || duration <= 0 {
		return 0
	}
	return clamp(x/widthPx*duration, 0, duration)
}

// TimeToPixel is the inverse of PixelToTime, with the same clamp.
func TimeToPixel(t, widthPx, duration float64) float64 {
	if widthPx <= 0 || duration <= 0 {
		return 0
	}
	return clamp(t/duration*widthPx, 0, widthPx)
}

// QuantizeToFrame snaps t to the nearest multiple of 1/frameRate so that cut
// boundaries land on frame boundaries. Exact half-frame values round away
// from zero (math.Round semantics): 1.5 frames becomes 2 frames.
func QuantizeToFrame(t, frameRate float64) float64 {
	if frameRate <= 0 {
		return t
	}
	return math.Round(t*frameRate) / frameRate
}

// FrameDuration returns the length of a single frame in seconds, or 0 for a
// non-positive frame rate.
func FrameDuration(frameRate float64) float64 {
	if frameRate <= 0 {
		return 0
	}
	return 1 / frameRate
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
