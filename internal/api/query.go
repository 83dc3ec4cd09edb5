package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/omnidoc/omnidoc/internal/answer"
)

// MaxQuestionLength bounds the accepted question size in bytes.
const MaxQuestionLength = 4096

// maxBodyBytes bounds the request body read.
const maxBodyBytes = 16 * 1024

// AnswerEngine is the slice of the orchestration engine the API uses.
// Satisfied by *answer.Engine.
type AnswerEngine interface {
	AnswerLocally(ctx context.Context, question string) (*answer.Result, error)
	AnswerWithFallback(ctx context.Context, question string, saveIfConfident bool) (*answer.Result, error)
}

// QueryHandler handles answer endpoints.
type QueryHandler struct {
	engine AnswerEngine
	logger *slog.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(engine AnswerEngine, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.query)
	mux.HandleFunc("POST /api/query/fallback", h.fallback)
}

type queryRequest struct {
	Question string `json:"question"`

	// Save controls whether a confident fallback answer is learned.
	// Only honored by the fallback endpoint. Defaults to true.
	Save *bool `json:"save,omitempty"`
}

// decodeQuery parses and bounds-checks the request body.
func decodeQuery(w http.ResponseWriter, r *http.Request) (*queryRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return nil, false
	}
	if len(req.Question) > MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "question_too_long", "question exceeds maximum length")
		return nil, false
	}
	return &req, true
}

// query answers from the learned cache and local documents.
func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	res, err := h.engine.AnswerLocally(r.Context(), req.Question)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// fallback answers from general knowledge, learning the answer when
// allowed and confident.
func (h *QueryHandler) fallback(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	save := true
	if req.Save != nil {
		save = *req.Save
	}

	res, err := h.engine.AnswerWithFallback(r.Context(), req.Question, save)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeEngineError maps pipeline errors to HTTP statuses.
func (h *QueryHandler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, answer.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "empty_question", "question cannot be empty")
	case errors.Is(err, answer.ErrRetrieval):
		h.logger.Error("retrieval failed",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "retrieval_failed", "document search is unavailable")
	case errors.Is(err, answer.ErrGeneration):
		h.logger.Error("generation failed",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "generation_failed", "answer generation is unavailable")
	default:
		h.logger.Error("query failed",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
