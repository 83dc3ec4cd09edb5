package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/omnidoc/omnidoc/internal/learned"
)

// Learned list pagination bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// LearnedAdmin is the slice of the learned store the API uses.
// Satisfied by *learned.Store.
type LearnedAdmin interface {
	List(ctx context.Context, limit int) ([]learned.Entry, error)
	Delete(ctx context.Context, question string) (bool, error)
	GetStats(ctx context.Context) (learned.Stats, error)
}

// LearnedHandler handles learned-store administration endpoints.
type LearnedHandler struct {
	store  LearnedAdmin
	logger *slog.Logger
}

// NewLearnedHandler creates a learned-store handler.
func NewLearnedHandler(store LearnedAdmin, logger *slog.Logger) *LearnedHandler {
	return &LearnedHandler{store: store, logger: logger}
}

// RegisterRoutes registers learned-store routes on the given mux.
func (h *LearnedHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/learned", h.list)
	mux.HandleFunc("GET /api/learned/stats", h.stats)
	mux.HandleFunc("DELETE /api/learned", h.delete)
}

// list returns learned answers, newest first.
func (h *LearnedHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)

	entries, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list learned answers", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list learned answers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
		"limit":   limit,
	})
}

// stats returns learned-store statistics.
func (h *LearnedHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get learned stats", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "stats_failed", "failed to get statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// delete removes the learned answer for the question given in the
// "question" query parameter. Matching uses the same normalization as
// lookup.
func (h *LearnedHandler) delete(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("question")
	if question == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question query parameter is required")
		return
	}

	deleted, err := h.store.Delete(r.Context(), question)
	if err != nil {
		h.logger.Error("failed to delete learned answer", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete learned answer")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not_found", "no learned answer for that question")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil || val < minVal {
		return defaultVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
