// Package waveform reduces a video's audio track to per-bucket min/max peak
// pairs for timeline display. This is display-only data; export never reads
// it.
package waveform

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
)

const (
	// DefaultBuckets matches the display resolution the timeline renders at.
	DefaultBuckets = 1000

	// SampleRate for the decoded PCM stream. Peak extraction does not need
	// full fidelity, so the audio is downsampled aggressively.
	SampleRate = 8000
)

// Peak is the (min, max) normalized amplitude pair of one display bucket,
// both in [-1, 1].
type Peak struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PCMDecoder is the slice of the media toolchain the extractor needs.
// media.Tools satisfies it.
type PCMDecoder interface {
	DecodePCM(ctx context.Context, inputPath string, sampleRate int, w io.Writer) error
}

// Extractor pulls PCM from the decoder and buckets it.
type Extractor struct {
	decoder PCMDecoder
	logger  *slog.Logger
}

func NewExtractor(decoder PCMDecoder, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{decoder: decoder, logger: logger}
}

// ExtractPeaks decodes the file's audio to mono PCM and reduces it to
// buckets peak pairs. Callers skip this for media with no audio stream; the
// timeline then renders no waveform.
func (e *Extractor) ExtractPeaks(ctx context.Context, path string, buckets int) ([]Peak, error) {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}

	var pcm bytes.Buffer
	if err := e.decoder.DecodePCM(ctx, path, SampleRate, &pcm); err != nil {
		return nil, fmt.Errorf("waveform decode: %w", err)
	}

	samples, err := decodeSamples(&pcm)
	if err != nil {
		return nil, err
	}

	peaks := bucketPeaks(samples, buckets)
	e.logger.Debug("waveform extracted",
		"samples", len(samples),
		"buckets", len(peaks),
	)
	return peaks, nil
}

// decodeSamples converts s16le PCM bytes to normalized float samples.
func decodeSamples(r io.Reader) ([]float64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("waveform read: %w", err)
	}

	n := len(raw) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float64(v) / 32768.0
	}
	return samples, nil
}

// bucketPeaks reduces samples to per-bucket (min, max) pairs, preserving
// both peaks and troughs the way the display expects. Fewer samples than
// buckets yields one bucket per sample.
func bucketPeaks(samples []float64, buckets int) []Peak {
	if len(samples) == 0 {
		return []Peak{}
	}
	if buckets > len(samples) {
		buckets = len(samples)
	}

	chunk := len(samples) / buckets
	peaks := make([]Peak, buckets)
	for i := 0; i < buckets; i++ {
		lo := i * chunk
		hi := lo + chunk
		if i == buckets-1 {
			hi = len(samples) // last bucket absorbs the remainder
		}

		p := Peak{Min: samples[lo], Max: samples[lo]}
		for _, s := range samples[lo:hi] {
			if s < p.Min {
				p.Min = s
			}
			if s > p.Max {
				p.Max = s
			}
		}
		peaks[i] = p
	}
	return peaks
}
