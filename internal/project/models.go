// Package project persists saved trim projects and export history.
package project

import (
	"time"

	"github.com/trimdeck/trimdeck-agent/internal/session"
)

type Project struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	MediaPath string              `json:"media_path"`
	Duration  float64             `json:"duration"`
	FrameRate float64             `json:"frame_rate"`
	Regions   []session.CutRegion `json:"regions"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

const (
	ExportStatusRunning   = "running"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

type ExportRecord struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id,omitempty"`
	MediaPath    string    `json:"media_path"`
	OutputPath   string    `json:"output_path"`
	CopyMode     bool      `json:"copy_mode"`
	SegmentCount int       `json:"segment_count"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
}

// Config keys stored in the config table.
const (
	ConfigKeyAuthToken = "auth_token"
	ConfigKeyDeviceID  = "device_id"
)
