// Package ui provides the system tray for the Trimdeck Agent.
package ui

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"

	"github.com/trimdeck/trimdeck-agent/internal/exporter"
	"github.com/trimdeck/trimdeck-agent/internal/trim"
)

type Tray struct {
	service *trim.Service
	logger  *slog.Logger

	statusItem *systray.MenuItem
	mediaItem  *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Service *trim.Service
	Logger  *slog.Logger
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		service: cfg.Service,
		logger:  cfg.Logger,
		onQuit:  cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Trimdeck")
	systray.SetTooltip("Trimdeck Agent")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.mediaItem = systray.AddMenuItem("No video loaded", "Loaded media file")
	t.mediaItem.Disable()
	t.mu.Unlock()

	systray.AddSeparator()

	clearItem := systray.AddMenuItem("Clear Session", "Unload the current video")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Trimdeck Agent")

	go func() {
		for {
			select {
			case <-clearItem.ClickedCh:
				t.service.ClearSession()
				t.UpdateMedia("")
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

// UpdateMedia shows the loaded file's name, or the empty state.
func (t *Tray) UpdateMedia(mediaPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mediaItem == nil {
		return
	}
	if mediaPath == "" {
		t.mediaItem.SetTitle("No video loaded")
		return
	}
	t.mediaItem.SetTitle(filepath.Base(mediaPath))
}

// UpdateExportState reflects the export pipeline in the status line.
func (t *Tray) UpdateExportState(prog exporter.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statusItem == nil {
		return
	}

	switch prog.State {
	case exporter.StateExtracting:
		t.statusItem.SetTitle(fmt.Sprintf("Status: Exporting %d/%d", prog.SegmentsDone, prog.SegmentsTotal))
	case exporter.StateConcatenating:
		t.statusItem.SetTitle("Status: Joining segments")
	case exporter.StateFailed:
		t.statusItem.SetTitle("Status: Export failed")
	case exporter.StateDone:
		t.statusItem.SetTitle("Status: Export complete")
	default:
		t.statusItem.SetTitle("Status: Idle")
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
