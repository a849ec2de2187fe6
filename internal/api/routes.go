package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trimdeck/trimdeck-agent/internal/exporter"
	"github.com/trimdeck/trimdeck-agent/internal/loader"
	"github.com/trimdeck/trimdeck-agent/internal/plan"
	"github.com/trimdeck/trimdeck-agent/internal/session"
	"github.com/trimdeck/trimdeck-agent/internal/trim"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/session/load", loadHandler(cfg))
		r.Get("/session", getSessionHandler(cfg))
		r.Delete("/session", clearSessionHandler(cfg))
		r.Get("/session/waveform", waveformHandler(cfg))

		r.Post("/session/markers", placeMarkerHandler(cfg))
		r.Delete("/session/markers/last", removeLastMarkerHandler(cfg))
		r.Delete("/session/regions", deleteRegionHandler(cfg))

		r.Post("/session/seek", seekHandler(cfg))
		r.Post("/session/step", stepHandler(cfg))
		r.Post("/session/preview", previewHandler(cfg))

		r.With(LoopbackGuard()).Get("/playback/media", playbackHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Get("/exports", exportHistoryHandler(cfg))

		r.Post("/projects", saveProjectHandler(cfg))
		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects/{id}/open", openProjectHandler(cfg))
		r.Delete("/projects/{id}", deleteProjectHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{State: "idle"}

		if prog, ok := cfg.Service.LoadProgress(); ok {
			resp.Load = &prog
			if prog.Phase != "done" && prog.Phase != "failed" {
				resp.State = "loading"
			}
		}

		if snap, _, err := cfg.Service.Snapshot(); err == nil {
			resp.Session = &snap
			if resp.State == "idle" {
				resp.State = "editing"
			}
		}

		exportProg := cfg.Service.ExportProgress()
		if exportProg.State != exporter.StateIdle {
			resp.Export = &exportProg
			if exportProg.State == exporter.StateExtracting || exportProg.State == exporter.StateConcatenating {
				resp.State = "exporting"
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func loadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		load, err := cfg.Service.LoadVideo(r.Context(), req.Path)
		if err != nil {
			if errors.Is(err, loader.ErrLoadInFlight) {
				WriteError(w, http.StatusConflict, err.Error(), "LOAD_IN_FLIGHT")
				return
			}
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		prog := load.Progress()
		WriteJSON(w, http.StatusAccepted, LoadResponse{Path: req.Path, Phase: string(prog.Phase)})
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, _, err := cfg.Service.Snapshot()
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func clearSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Service.ClearSession()
		w.WriteHeader(http.StatusNoContent)
	}
}

func waveformHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, peaks, err := cfg.Service.Snapshot()
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
			return
		}
		WriteJSON(w, http.StatusOK, WaveformResponse{Buckets: len(peaks), Peaks: peaks})
	}
}

func placeMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MarkerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, err := cfg.Service.Session()
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
			return
		}

		region, err := sess.PlaceMarker(req.Time)
		if err != nil {
			code := "BAD_REQUEST"
			switch {
			case errors.Is(err, session.ErrInvalidRegion):
				code = "INVALID_REGION"
			case errors.Is(err, session.ErrOverlap):
				code = "REGION_OVERLAP"
			}
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), code)
			return
		}

		WriteJSON(w, http.StatusOK, MarkerResponse{
			Pending: sess.PendingMarker(),
			Region:  region,
			Regions: sess.Regions(),
		})
	}
}

func removeLastMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.Service.Session()
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
			return
		}

		sess.RemoveLastMarker()
		WriteJSON(w, http.StatusOK, MarkerResponse{
			Pending: sess.PendingMarker(),
			Regions: sess.Regions(),
		})
	}
}

func deleteRegionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at := r.URL.Query().Get("at")
		if at == "" {
			WriteError(w, http.StatusBadRequest, "at query parameter is required", "BAD_REQUEST")
			return
		}
		t, err := strconv.ParseFloat(at, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "at must be a number of seconds", "BAD_REQUEST")
			return
		}

		sess, err := cfg.Service.Session()
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
			return
		}

		if _, err := sess.DeleteRegionAt(t); err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NO_REGION")
			return
		}
		WriteJSON(w, http.StatusOK, MarkerResponse{
			Pending: sess.PendingMarker(),
			Regions: sess.Regions(),
		})
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, err := cfg.Service.Session()
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
			return
		}
		WriteJSON(w, http.StatusOK, PlayheadResponse{Playhead: sess.Seek(req.Time)})
	}
}

func stepHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StepRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, err := cfg.Service.Session()
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
			return
		}
		WriteJSON(w, http.StatusOK, PlayheadResponse{Playhead: sess.StepFrames(req.Frames)})
	}
}

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PreviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Service.Preview(r.Context(), req.Start, req.End); err != nil {
			if errors.Is(err, trim.ErrNoSession) {
				WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
				return
			}
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, _, err := cfg.Service.Snapshot()
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
			return
		}
		if err := cfg.Streamer.ServeMedia(w, r, snap.MediaPath); err != nil {
			cfg.Logger.Error("playback error", "error", err, "path", snap.MediaPath)
		}
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		format := strings.ToLower(req.Format)
		if format == "" {
			format = "video"
		}

		var outputPath string
		var err error
		switch format {
		case "video":
			outputPath, err = cfg.Service.ExportVideo(r.Context(), req.OutputDir, req.Name, req.CopyMode)
		case "edl":
			outputPath, err = cfg.Service.ExportEDL(req.OutputDir, req.Name)
		default:
			WriteError(w, http.StatusBadRequest, "format must be video or edl", "BAD_REQUEST")
			return
		}

		if err != nil {
			switch {
			case errors.Is(err, trim.ErrNoSession):
				WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
			case errors.Is(err, exporter.ErrExportInFlight):
				WriteError(w, http.StatusConflict, err.Error(), "EXPORT_IN_FLIGHT")
			case errors.Is(err, plan.ErrEmptyResult):
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "EMPTY_RESULT")
			default:
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			}
			return
		}

		status := http.StatusAccepted
		if format == "edl" {
			status = http.StatusOK
		}
		WriteJSON(w, status, ExportResponse{Format: format, OutputPath: outputPath})
	}
}

func exportHistoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := cfg.Service.ExportHistory(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
			return
		}
		resp := ExportsResponse{Exports: make([]ExportRecordResponse, len(records))}
		for i, rec := range records {
			resp.Exports[i] = ExportRecordToResponse(rec)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		p, err := cfg.Service.SaveProject(r.Context(), req.Name)
		if err != nil {
			if errors.Is(err, trim.ErrNoSession) {
				WriteError(w, http.StatusNotFound, err.Error(), "NO_SESSION")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, ProjectToResponse(p))
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Service.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}
		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func openProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "project id required", "BAD_REQUEST")
			return
		}

		load, err := cfg.Service.OpenProject(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		prog := load.Progress()
		WriteJSON(w, http.StatusAccepted, LoadResponse{Path: prog.Path, Phase: string(prog.Phase)})
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "project id required", "BAD_REQUEST")
			return
		}
		if err := cfg.Service.DeleteProject(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
