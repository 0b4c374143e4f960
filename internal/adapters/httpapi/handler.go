// Package httpapi serves dashboards over HTTP: descriptors, current bundles,
// UI events, grid downloads and export jobs.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"dashcore/internal/adapters/export"
	"dashcore/internal/core"
	"dashcore/internal/engine"
	"dashcore/pkg/dashboard"
)

const prefix = "/api/v1/dashboards"

// Catalog exposes installed dashboards and their engines.
type Catalog interface {
	Dashboards() []dashboard.Descriptor
	Engine(key string) (*engine.Engine, error)
}

// ExportScheduler queues export jobs.
type ExportScheduler interface {
	Enqueue(ctx context.Context, in export.Input) (export.Record, error)
	Get(id string) (export.Record, bool)
}

// Handler provides HTTP access to dashboards.
type Handler struct {
	Catalog Catalog
	Exports ExportScheduler
	Metrics http.Handler
	Logger  *zap.Logger
}

// NewHandler constructs a dashboard HTTP handler.
func NewHandler(c Catalog) *Handler {
	return &Handler{Catalog: c, Logger: zap.NewNop()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		writeError(w, http.StatusInternalServerError, "dashboard catalog not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/healthz":
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case path == "/metrics":
		if h.Metrics == nil {
			http.NotFound(w, r)
			return
		}
		h.Metrics.ServeHTTP(w, r)
	case path == prefix:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dashboards": h.Catalog.Dashboards()})
	case strings.HasPrefix(path, prefix+"/"):
		h.handleDashboard(w, r, strings.TrimPrefix(path, prefix+"/"))
	case strings.HasPrefix(path, "/api/v1/exports"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	key := segments[0]

	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		for _, d := range h.Catalog.Dashboards() {
			if d.Key == key {
				writeJSON(w, http.StatusOK, map[string]any{"dashboard": d})
				return
			}
		}
		writeError(w, http.StatusNotFound, "dashboard not found")
		return
	}

	eng, err := h.Catalog.Engine(key)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	switch action := segments[1]; {
	case action == "bundle" && len(segments) == 2:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bundle": eng.Bundle()})
	case action == "state" && len(segments) == 2:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": eng.State().Snapshot(), "cycle": eng.LastCycle()})
	case action == "events" && len(segments) == 2:
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleEvent(w, r, eng)
	case action == "grids" && len(segments) == 3:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		streamGrid(w, eng, strings.TrimSuffix(segments[2], ".csv"))
	default:
		writeError(w, http.StatusNotFound, "dashboard endpoint not found")
	}
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	ev, err := eng.Decode(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := eng.Dispatch(r.Context(), ev)
	// ErrNotRunning guarantees the event was not applied by the loop.
	if errors.Is(err, engine.ErrNotRunning) {
		b, err = eng.Process(r.Context(), ev)
	}
	if err != nil {
		h.Logger.Error("event failed", zap.String("dashboard", eng.Name()), zap.String("event", ev.EventName()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bundle": b, "cycle": b.Cycle})
}

func streamGrid(w http.ResponseWriter, eng *engine.Engine, id string) {
	grid, ok := eng.Bundle().Grid(id)
	if !ok {
		writeError(w, http.StatusNotFound, "grid not found")
		return
	}
	payload, err := export.GridCSV(grid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filename := fmt.Sprintf("%s-%s-%s.csv", eng.Name(), grid.ID, time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

type exportRequest struct {
	Dashboard   string   `json:"dashboard"`
	Formats     []string `json:"formats"`
	Chart       string   `json:"chart"`
	Grid        string   `json:"grid"`
	RequestedBy string   `json:"requested_by"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/exports" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleExportCreate(w, r)
		return
	}
	id := strings.TrimPrefix(path, "/api/v1/exports/")
	if id == path || id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, ok := h.Exports.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	if strings.TrimSpace(req.Dashboard) == "" {
		writeError(w, http.StatusBadRequest, "dashboard required")
		return
	}
	eng, err := h.Catalog.Engine(req.Dashboard)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	formats := make([]export.Format, 0, len(req.Formats))
	for _, f := range req.Formats {
		format, err := export.ParseFormat(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unsupported export format")
			return
		}
		formats = append(formats, format)
	}

	record, err := h.Exports.Enqueue(r.Context(), export.Input{
		Bundle:      eng.Bundle(),
		Formats:     formats,
		Chart:       req.Chart,
		Grid:        req.Grid,
		RequestedBy: req.RequestedBy,
	})
	switch {
	case errors.Is(err, export.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var notFound core.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrNotOpened):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.Logger.Error("engine lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
