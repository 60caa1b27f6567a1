package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shl-matching/internal/match"
	"github.com/shl-matching/internal/store"
)

// RunStore reads persisted matching runs
type RunStore interface {
	GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error)
	ListResults(ctx context.Context, id uuid.UUID) ([]match.MatchResult, error)
}

// RunsHandler serves the run history
type RunsHandler struct {
	Store  RunStore
	Logger *zap.Logger
}

// GetRun returns one persisted run with its quality report
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRunResults returns the results of a persisted run
func (h *RunsHandler) ListRunResults(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	if _, err := h.Store.GetRun(r.Context(), id); err != nil {
		h.storeError(w, err)
		return
	}
	results, err := h.Store.ListResults(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	if results == nil {
		results = []match.MatchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *RunsHandler) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *RunsHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if h.Logger != nil {
		h.Logger.Error("Run store query failed", zap.Error(err))
	}
	writeError(w, http.StatusInternalServerError, "Database error")
}
