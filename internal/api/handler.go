// Package api exposes the metric query pipeline over a thin JSON surface.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"metriclens/internal/service/semantic"
)

type metricService interface {
	Query(ctx context.Context, req semantic.QueryRequest) (*semantic.QueryResult, error)
	Explain(req semantic.QueryRequest) (*semantic.Explanation, error)
}

// Handler serves the metric query endpoints.
type Handler struct {
	service metricService
	logger  *slog.Logger
}

// NewHandler creates a Handler over the semantic service.
func NewHandler(service metricService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes builds the HTTP router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.handleHealth)
	r.Post("/v1/metrics/query", h.handleQuery)
	r.Post("/v1/metrics/explain", h.handleExplain)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	queryID := uuid.NewString()

	result, err := h.service.Query(r.Context(), req)
	if err != nil {
		h.logger.Warn("metric query failed", "query_id", queryID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{
		QueryID: queryID,
		Columns: result.Columns,
		Rows:    result.Rows,
	})
}

func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	explanation, err := h.service.Explain(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (semantic.QueryRequest, bool) {
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return semantic.QueryRequest{}, false
	}
	return body.toService(), true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
