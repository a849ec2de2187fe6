// Package config provides configuration management for the Trimdeck Agent.
// Configuration is loaded from an optional TOML file in the data directory,
// then overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort            = 8898
	DefaultLogLevel        = "info"
	DefaultDataDir         = ".trimdeck"
	DefaultWaveformBuckets = 1000
	DefaultParallelism     = 2
	DefaultExportTimeout   = 3600 // seconds

	// Environment variable names
	EnvPort        = "TRIMDECK_PORT"
	EnvLogLevel    = "TRIMDECK_LOG_LEVEL"
	EnvDataDir     = "TRIMDECK_DATA_DIR"
	EnvFFmpegPath  = "TRIMDECK_FFMPEG"
	EnvFFprobePath = "TRIMDECK_FFPROBE"
	EnvMpvPath     = "TRIMDECK_MPV"
	EnvHeadless    = "TRIMDECK_HEADLESS"

	// Database and config filenames inside the data directory
	DBFilename     = "trimdeck.db"
	ConfigFilename = "config.toml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	StagingDir() string
	FFmpegPath() string
	FFprobePath() string
	MpvPath() string
	Headless() bool
	WaveformBuckets() int
	ExportParallelism() int
	ExportCopyMode() bool
	ExportTimeout() time.Duration
}

// fileConfig mirrors the TOML file layout.
type fileConfig struct {
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
	Headless bool   `toml:"headless"`

	Tools struct {
		FFmpeg  string `toml:"ffmpeg"`
		FFprobe string `toml:"ffprobe"`
		Mpv     string `toml:"mpv"`
	} `toml:"tools"`

	Export struct {
		Parallelism    int   `toml:"parallelism"`
		CopyMode       *bool `toml:"copy_mode"`
		TimeoutSeconds int   `toml:"timeout_seconds"`
	} `toml:"export"`

	Waveform struct {
		Buckets int `toml:"buckets"`
	} `toml:"waveform"`
}

// AgentConfig is the resolved configuration.
type AgentConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	ffmpegPath  string
	ffprobePath string
	mpvPath     string

	waveformBuckets   int
	exportParallelism int
	exportCopyMode    bool
	exportTimeout     time.Duration
}

// New resolves configuration: defaults, then the TOML file in the data
// directory (if present), then environment variables. TRIMDECK_DATA_DIR is
// read first since it decides where the file lives.
func New() (*AgentConfig, error) {
	dataDir := defaultDataDir()
	if dd := os.Getenv(EnvDataDir); dd != "" {
		dataDir = dd
	}

	cfg := &AgentConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           dataDir,
		waveformBuckets:   DefaultWaveformBuckets,
		exportParallelism: DefaultParallelism,
		exportCopyMode:    true,
		exportTimeout:     DefaultExportTimeout * time.Second,
	}

	if err := cfg.loadFile(filepath.Join(dataDir, ConfigFilename)); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}
	return cfg, nil
}

func (c *AgentConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("cannot parse %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	c.headless = fc.Headless
	if fc.Tools.FFmpeg != "" {
		c.ffmpegPath = fc.Tools.FFmpeg
	}
	if fc.Tools.FFprobe != "" {
		c.ffprobePath = fc.Tools.FFprobe
	}
	if fc.Tools.Mpv != "" {
		c.mpvPath = fc.Tools.Mpv
	}
	if fc.Export.Parallelism != 0 {
		c.exportParallelism = fc.Export.Parallelism
	}
	if fc.Export.CopyMode != nil {
		c.exportCopyMode = *fc.Export.CopyMode
	}
	if fc.Export.TimeoutSeconds != 0 {
		c.exportTimeout = time.Duration(fc.Export.TimeoutSeconds) * time.Second
	}
	if fc.Waveform.Buckets != 0 {
		c.waveformBuckets = fc.Waveform.Buckets
	}
	return nil
}

func (c *AgentConfig) loadEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if f := os.Getenv(EnvFFmpegPath); f != "" {
		c.ffmpegPath = f
	}
	if f := os.Getenv(EnvFFprobePath); f != "" {
		c.ffprobePath = f
	}
	if m := os.Getenv(EnvMpvPath); m != "" {
		c.mpvPath = m
	}
	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = headless
	}
	return nil
}

// Port returns the HTTP server port
func (c *AgentConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *AgentConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *AgentConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *AgentConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// StagingDir returns the directory export pipelines stage segments in
func (c *AgentConfig) StagingDir() string {
	return filepath.Join(c.dataDir, "staging")
}

func (c *AgentConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *AgentConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *AgentConfig) MpvPath() string {
	return c.mpvPath
}

// Headless disables the system tray
func (c *AgentConfig) Headless() bool {
	return c.headless
}

func (c *AgentConfig) WaveformBuckets() int {
	return c.waveformBuckets
}

func (c *AgentConfig) ExportParallelism() int {
	return c.exportParallelism
}

func (c *AgentConfig) ExportCopyMode() bool {
	return c.exportCopyMode
}

func (c *AgentConfig) ExportTimeout() time.Duration {
	return c.exportTimeout
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
