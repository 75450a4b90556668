package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/syncservice"
	"github.com/starford/marksync/internal/trigger"
)

// Handler holds API route handlers.
type Handler struct {
	svc   *syncservice.Service
	queue Requester
}

// NewHandler creates a new Handler.
func NewHandler(svc *syncservice.Service, queue Requester) *Handler {
	return &Handler{svc: svc, queue: queue}
}

// Sync handles POST /api/sync.
//
// Without a body the request is queued behind the debounce and answered with
// 202. A body selecting a direction, a dry run or wait runs the cycle in the
// request and returns its result.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if !req.synchronous() {
		if h.queue == nil {
			writeError(w, http.StatusServiceUnavailable, "trigger queue unavailable")
			return
		}
		h.queue.Request(trigger.Request{Source: "manual"})
		writeJSON(w, http.StatusAccepted, SyncQueuedResponse{Queued: true})
		return
	}

	var dir models.Direction
	if req.Direction != "" {
		d, err := models.ParseDirection(req.Direction)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dir = d
	}

	res, err := h.svc.RunNow(r.Context(), "manual", dir, req.DryRun)
	switch {
	case errors.Is(err, apperr.ErrBusy):
		writeError(w, http.StatusConflict, "a sync cycle is already running")
	case errors.Is(err, apperr.ErrInvalidConfig):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "sync failed: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// ListCycles handles GET /api/cycles.
func (h *Handler) ListCycles(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cycles, err := h.svc.Cycles(limit)
	if err != nil {
		slog.Error("api: list cycles failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, CycleListResponse{Cycles: cycles})
}

// GetCycle handles GET /api/cycles/{id}.
func (h *Handler) GetCycle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cycle id")
		return
	}
	rec, err := h.svc.Cycle(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		slog.Error("api: get cycle failed", slog.Int64("id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Timeline handles GET /api/timeline.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Timeline(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "timeline not created yet")
			return
		}
		slog.Error("api: read timeline failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
