package api

import (
	"time"

	"github.com/trimdeck/trimdeck-agent/internal/exporter"
	"github.com/trimdeck/trimdeck-agent/internal/loader"
	"github.com/trimdeck/trimdeck-agent/internal/project"
	"github.com/trimdeck/trimdeck-agent/internal/session"
	"github.com/trimdeck/trimdeck-agent/internal/waveform"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State   string             `json:"state"`
	Session *session.Snapshot  `json:"session,omitempty"`
	Load    *loader.Progress   `json:"load,omitempty"`
	Export  *exporter.Progress `json:"export,omitempty"`
}

type LoadRequest struct {
	Path string `json:"path"`
}

type LoadResponse struct {
	Path  string `json:"path"`
	Phase string `json:"phase"`
}

type MarkerRequest struct {
	Time float64 `json:"time"`
}

type MarkerResponse struct {
	Pending *session.Marker     `json:"pending,omitempty"`
	Region  *session.CutRegion  `json:"region,omitempty"`
	Regions []session.CutRegion `json:"regions"`
}

type SeekRequest struct {
	Time float64 `json:"time"`
}

type StepRequest struct {
	Frames int `json:"frames"`
}

type PlayheadResponse struct {
	Playhead float64 `json:"playhead"`
}

type PreviewRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type ExportRequest struct {
	Format    string `json:"format,omitempty"` // "video" (default) or "edl"
	OutputDir string `json:"output_dir"`
	Name      string `json:"name,omitempty"`
	CopyMode  *bool  `json:"copy_mode,omitempty"`
}

type ExportResponse struct {
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
}

type WaveformResponse struct {
	Buckets int             `json:"buckets"`
	Peaks   []waveform.Peak `json:"peaks"`
}

type SaveProjectRequest struct {
	Name string `json:"name,omitempty"`
}

type ProjectResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	MediaPath string              `json:"media_path"`
	Duration  float64             `json:"duration"`
	FrameRate float64             `json:"frame_rate"`
	Regions   []session.CutRegion `json:"regions"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type ExportRecordResponse struct {
	ID           string `json:"id"`
	MediaPath    string `json:"media_path"`
	OutputPath   string `json:"output_path"`
	CopyMode     bool   `json:"copy_mode"`
	SegmentCount int    `json:"segment_count"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
}

type ExportsResponse struct {
	Exports []ExportRecordResponse `json:"exports"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ProjectToResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		MediaPath: p.MediaPath,
		Duration:  p.Duration,
		FrameRate: p.FrameRate,
		Regions:   p.Regions,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

func ExportRecordToResponse(e *project.ExportRecord) ExportRecordResponse {
	resp := ExportRecordResponse{
		ID:           e.ID,
		MediaPath:    e.MediaPath,
		OutputPath:   e.OutputPath,
		CopyMode:     e.CopyMode,
		SegmentCount: e.SegmentCount,
		Status:       e.Status,
		Error:        e.Error,
		StartedAt:    e.StartedAt.Format(time.RFC3339),
	}
	if !e.FinishedAt.IsZero() {
		resp.FinishedAt = e.FinishedAt.Format(time.RFC3339)
	}
	return resp
}
