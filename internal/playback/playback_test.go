package playback

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   error
	}{
		{"empty header", "", 1000, 0, 0, true, nil},
		{"full range", "bytes=0-999", 1000, 0, 999, false, nil},
		{"partial start", "bytes=500-", 1000, 500, 999, false, nil},
		{"suffix range", "bytes=-500", 1000, 500, 999, false, nil},
		{"single byte", "bytes=0-0", 1000, 0, 0, false, nil},
		{"middle range", "bytes=100-199", 1000, 100, 199, false, nil},
		{"beyond size clamped", "bytes=0-2000", 1000, 0, 999, false, nil},
		{"suffix larger than file", "bytes=-2000", 500, 0, 499, false, nil},
		{"last byte", "bytes=999-", 1000, 999, 999, false, nil},
		{"multi range takes first", "bytes=0-99, 200-299", 1000, 0, 99, false, nil},

		{"unsatisfiable start", "bytes=1000-", 1000, 0, 0, false, ErrUnsatisfiable},
		{"unsatisfiable beyond", "bytes=1500-2000", 1000, 0, 0, false, ErrUnsatisfiable},
		{"invalid format no bytes", "invalid", 1000, 0, 0, false, ErrInvalidRange},
		{"wrong unit", "chars=0-100", 1000, 0, 0, false, ErrInvalidRange},
		{"invalid start", "bytes=abc-100", 1000, 0, 0, false, ErrInvalidRange},
		{"invalid end", "bytes=0-abc", 1000, 0, 0, false, ErrInvalidRange},
		{"negative suffix", "bytes=-0", 1000, 0, 0, false, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("ParseRange() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("ParseRange() unexpected error: %v", err)
				return
			}

			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseRange() = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Errorf("ParseRange() = nil, want non-nil")
				return
			}

			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Errorf("ParseRange() = {%d, %d}, want {%d, %d}", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func writeTestMedia(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServeMedia_Full(t *testing.T) {
	path := writeTestMedia(t, "0123456789")
	s := NewStreamer(nil)

	req := httptest.NewRequest("GET", "/media", nil)
	rec := httptest.NewRecorder()
	if err := s.ServeMedia(rec, req, path); err != nil {
		t.Fatalf("ServeMedia: %v", err)
	}

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("missing Accept-Ranges header")
	}
	if rec.Header().Get("Content-Type") != "video/mp4" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "0123456789" {
		t.Errorf("body = %q", body)
	}
}

func TestServeMedia_Partial(t *testing.T) {
	path := writeTestMedia(t, "0123456789")
	s := NewStreamer(nil)

	req := httptest.NewRequest("GET", "/media", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	if err := s.ServeMedia(rec, req, path); err != nil {
		t.Fatalf("ServeMedia: %v", err)
	}

	if rec.Code != 206 {
		t.Errorf("status = %d, want 206", rec.Code)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", cr)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "2345" {
		t.Errorf("body = %q", body)
	}
}

func TestServeMedia_Unsatisfiable(t *testing.T) {
	path := writeTestMedia(t, "0123456789")
	s := NewStreamer(nil)

	req := httptest.NewRequest("GET", "/media", nil)
	req.Header.Set("Range", "bytes=100-")
	rec := httptest.NewRecorder()
	if err := s.ServeMedia(rec, req, path); err != nil {
		t.Fatalf("ServeMedia: %v", err)
	}
	if rec.Code != 416 {
		t.Errorf("status = %d, want 416", rec.Code)
	}
}

func TestServeMedia_Missing(t *testing.T) {
	s := NewStreamer(nil)
	req := httptest.NewRequest("GET", "/media", nil)
	rec := httptest.NewRecorder()
	if err := s.ServeMedia(rec, req, filepath.Join(t.TempDir(), "nope.mp4")); err != nil {
		t.Fatalf("ServeMedia: %v", err)
	}
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
