package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel() = %q, want %q", cfg.LogLevel(), DefaultLogLevel)
	}
	if !cfg.ExportCopyMode() {
		t.Error("ExportCopyMode() = false, want true by default")
	}
	if cfg.WaveformBuckets() != DefaultWaveformBuckets {
		t.Errorf("WaveformBuckets() = %d, want %d", cfg.WaveformBuckets(), DefaultWaveformBuckets)
	}
	if cfg.ExportTimeout() != DefaultExportTimeout*time.Second {
		t.Errorf("ExportTimeout() = %v, want %v", cfg.ExportTimeout(), DefaultExportTimeout*time.Second)
	}
}

func TestNewEnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvFFmpegPath, "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv(EnvHeadless, "true")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
	if cfg.FFmpegPath() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath() = %q", cfg.FFmpegPath())
	}
	if !cfg.Headless() {
		t.Error("Headless() = false, want true")
	}
}

func TestNewConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `port = 9100
log_level = "warn"

[tools]
ffprobe = "/usr/local/bin/ffprobe"

[export]
parallelism = 4
copy_mode = false
timeout_seconds = 120

[waveform]
buckets = 500
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFilename), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDataDir, dir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if cfg.Port() != 9100 {
		t.Errorf("Port() = %d, want 9100", cfg.Port())
	}
	if cfg.LogLevel() != "warn" {
		t.Errorf("LogLevel() = %q, want warn", cfg.LogLevel())
	}
	if cfg.FFprobePath() != "/usr/local/bin/ffprobe" {
		t.Errorf("FFprobePath() = %q", cfg.FFprobePath())
	}
	if cfg.ExportParallelism() != 4 {
		t.Errorf("ExportParallelism() = %d, want 4", cfg.ExportParallelism())
	}
	if cfg.ExportCopyMode() {
		t.Error("ExportCopyMode() = true, want false from file")
	}
	if cfg.ExportTimeout() != 120*time.Second {
		t.Errorf("ExportTimeout() = %v, want 2m", cfg.ExportTimeout())
	}
	if cfg.WaveformBuckets() != 500 {
		t.Errorf("WaveformBuckets() = %d, want 500", cfg.WaveformBuckets())
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFilename), []byte("port = 9100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDataDir, dir)
	t.Setenv(EnvPort, "9200")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if cfg.Port() != 9200 {
		t.Errorf("Port() = %d, want env override 9200", cfg.Port())
	}
}

func TestNewInvalidPort(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvPort, "not-a-number")
	if _, err := New(); err == nil {
		t.Error("expected error for non-numeric port")
	}

	t.Setenv(EnvPort, "70000")
	if _, err := New(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestNewMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFilename), []byte("port = [[["), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDataDir, dir)
	if _, err := New(); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if cfg.DBPath() != filepath.Join(dir, DBFilename) {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.StagingDir() != filepath.Join(dir, "staging") {
		t.Errorf("StagingDir() = %q", cfg.StagingDir())
	}
}
