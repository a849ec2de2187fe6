package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/trimdeck/trimdeck-agent/internal/api"
	"github.com/trimdeck/trimdeck-agent/internal/config"
	"github.com/trimdeck/trimdeck-agent/internal/db"
	"github.com/trimdeck/trimdeck-agent/internal/exporter"
	"github.com/trimdeck/trimdeck-agent/internal/loader"
	"github.com/trimdeck/trimdeck-agent/internal/logging"
	"github.com/trimdeck/trimdeck-agent/internal/media"
	"github.com/trimdeck/trimdeck-agent/internal/playback"
	"github.com/trimdeck/trimdeck-agent/internal/player"
	"github.com/trimdeck/trimdeck-agent/internal/project"
	"github.com/trimdeck/trimdeck-agent/internal/session"
	"github.com/trimdeck/trimdeck-agent/internal/trim"
	"github.com/trimdeck/trimdeck-agent/internal/ui"
	"github.com/trimdeck/trimdeck-agent/internal/watcher"
	"github.com/trimdeck/trimdeck-agent/internal/waveform"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.StagingDir(), 0755); err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting trimdeck agent", "version", config.Version, "data_dir", cfg.DataDir())

	lock := flock.New(filepath.Join(cfg.DataDir(), "trimdeck.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return errors.New("another trimdeck agent instance is already running")
	}
	defer lock.Unlock()

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	deviceID, err := ensureConfigValue(repo, project.ConfigKeyDeviceID)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureConfigValue(repo, project.ConfigKeyAuthToken)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  TRIMDECK AGENT v%-8s                 ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	tools, err := media.NewTools(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
	if err != nil {
		return fmt.Errorf("failed to locate media tools: %w", err)
	}

	extractor := waveform.NewExtractor(tools, logger)
	ld := loader.New(tools, extractor, cfg.WaveformBuckets(), logger)
	ex := exporter.New(tools, logger)

	var pl player.Player
	if mpv, err := player.NewMpvPlayer(cfg.MpvPath(), logger); err != nil {
		logger.Warn("mpv not found, preview disabled", "error", err)
		pl = player.NullPlayer{}
	} else {
		pl = mpv
	}

	fw := watcher.NewFileWatcher(logger)
	defer fw.Stop()

	copyMode := cfg.ExportCopyMode()
	svc := trim.NewService(ld, ex, repo, fw, pl, exporter.Options{
		CopyMode:    copyMode,
		Parallelism: cfg.ExportParallelism(),
		Timeout:     cfg.ExportTimeout(),
		WorkDir:     cfg.StagingDir(),
	}, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Service:    svc,
		Streamer:   playback.NewStreamer(logger),
		Repository: repo,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
		Version:    config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Service: svc,
			Logger:  logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
		go refreshTray(tray, svc, quitCh)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	svc.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// refreshTray keeps the tray menu in sync with the loaded session and any
// running export.
func refreshTray(tray *ui.Tray, svc *trim.Service, quitCh <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-quitCh:
			return
		case <-ticker.C:
			if snap, _, err := svc.Snapshot(); err == nil {
				tray.UpdateMedia(snap.MediaPath)
			} else {
				tray.UpdateMedia("")
			}
			tray.UpdateExportState(svc.ExportProgress())
		}
	}
}

func ensureConfigValue(repo project.Repository, key string) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	value := session.NewID()
	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}

	return value, nil
}
