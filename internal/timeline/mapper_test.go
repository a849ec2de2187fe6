package timeline

import (
	"math"
	"testing"
)

func TestPixelToTime(t *testing.T) {
	got := PixelToTime(500, 1000, 120)
	if got != 60 {
		t.Errorf("PixelToTime(500, 1000, 120) = %v, want 60", got)
	}
}

func TestPixelToTime_Clamped(t *testing.T) {
	if got := PixelToTime(-40, 1000, 120); got != 0 {
		t.Errorf("negative x should clamp to 0, got %v", got)
	}
	if got := PixelToTime(1500, 1000, 120); got != 120 {
		t.Errorf("x past the strip should clamp to duration, got %v", got)
	}
}

func TestPixelToTime_DegenerateInputs(t *testing.T) {
	if got := PixelToTime(10, 0, 120); got != 0 {
		t.Errorf("zero width strip should map to 0, got %v", got)
	}
	if got := PixelToTime(10, 1000, 0); got != 0 {
		t.Errorf("zero duration should map to 0, got %v", got)
	}
}

func TestTimeToPixel(t *testing.T) {
	got := TimeToPixel(30, 1000, 120)
	if got != 250 {
		t.Errorf("TimeToPixel(30, 1000, 120) = %v, want 250", got)
	}
}

func TestTimeToPixel_Clamped(t *testing.T) {
	if got := TimeToPixel(-5, 1000, 120); got != 0 {
		t.Errorf("negative time should clamp to 0, got %v", got)
	}
	if got := TimeToPixel(500, 1000, 120); got != 1000 {
		t.Errorf("time past duration should clamp to width, got %v", got)
	}
}

func TestTimeToPixel_RoundTrip(t *testing.T) {
	const width, duration = 1280.0, 93.7
	for _, x := range []float64{0, 1, 333, 640, 1279, 1280} {
		back := TimeToPixel(PixelToTime(x, width, duration), width, duration)
		if math.Abs(back-x) > 1e-9 {
			t.Errorf("round trip of x=%v drifted to %v", x, back)
		}
	}
}

func TestQuantizeToFrame(t *testing.T) {
	got := QuantizeToFrame(1.004, 30)
	want := 30.0 / 30 // 1.004 * 30 = 30.12, rounds to frame 30
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("QuantizeToFrame(1.004, 30) = %v, want %v", got, want)
	}
}

func TestQuantizeToFrame_HalfFrameRoundsAwayFromZero(t *testing.T) {
	// 1.5 frames at 30fps is exactly 0.05s; it must round up to frame 2,
	// deterministically.
	got := QuantizeToFrame(0.05, 30)
	want := 2.0 / 30
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("QuantizeToFrame(0.05, 30) = %v, want %v (round half up)", got, want)
	}
}

func TestQuantizeToFrame_ExactFrameUnchanged(t *testing.T) {
	want := 10.0 / 24
	if got := QuantizeToFrame(want, 24); math.Abs(got-want) > 1e-12 {
		t.Errorf("exact frame boundary moved: got %v, want %v", got, want)
	}
}

func TestQuantizeToFrame_NonPositiveRate(t *testing.T) {
	if got := QuantizeToFrame(1.234, 0); got != 1.234 {
		t.Errorf("zero frame rate should pass t through, got %v", got)
	}
}

func TestFrameDuration(t *testing.T) {
	if got := FrameDuration(25); got != 0.04 {
		t.Errorf("FrameDuration(25) = %v, want 0.04", got)
	}
	if got := FrameDuration(0); got != 0 {
		t.Errorf("FrameDuration(0) = %v, want 0", got)
	}
}
