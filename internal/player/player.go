// Package player previews segments of the loaded media in an external mpv
// process.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// Player launches previews of a time window in the loaded media.
type Player interface {
	Preview(ctx context.Context, mediaPath string, start, end float64) error
	Stop()
}

type MpvPlayer struct {
	binary string
	logger *slog.Logger

	mu      sync.Mutex
	current *exec.Cmd
}

func NewMpvPlayer(binary string, logger *slog.Logger) (*MpvPlayer, error) {
	if binary == "" {
		binary = "mpv"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MpvPlayer{binary: resolved, logger: logger}, nil
}

// Preview plays [start, end) of the media and returns once mpv has been
// started. A second preview while one is playing stops the first.
func (p *MpvPlayer) Preview(ctx context.Context, mediaPath string, start, end float64) error {
	if end <= start {
		return fmt.Errorf("preview window %0.3f-%0.3f is empty", start, end)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.current.Process != nil {
		p.current.Process.Kill()
		p.current = nil
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"--start="+strconv.FormatFloat(start, 'f', 3, 64),
		"--end="+strconv.FormatFloat(end, 'f', 3, 64),
		"--no-terminal",
		mediaPath,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start mpv: %w", err)
	}
	p.current = cmd

	if p.logger != nil {
		p.logger.Info("preview started", "start", start, "end", end)
	}

	go func() {
		cmd.Wait()
		p.mu.Lock()
		if p.current == cmd {
			p.current = nil
		}
		p.mu.Unlock()
	}()

	return nil
}

// Stop kills the running preview, if any.
func (p *MpvPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.Process != nil {
		p.current.Process.Kill()
		p.current = nil
	}
}

// NullPlayer satisfies Player when no mpv binary is available. Preview
// requests fail with a clear error instead of crashing the agent.
type NullPlayer struct{}

func (NullPlayer) Preview(ctx context.Context, mediaPath string, start, end float64) error {
	return errors.New("preview unavailable: mpv is not installed")
}

func (NullPlayer) Stop() {}
