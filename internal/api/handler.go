package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/quote"
	"github.com/guardquote/ml-engine/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	service      *quote.Service
	version      string
	maxBatchSize int
	logger       *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(service *quote.Service, version string, maxBatchSize int, logger *slog.Logger) *Handler {
	if maxBatchSize <= 0 {
		maxBatchSize = domain.DefaultConfig().Server.MaxBatchSize
	}
	return &Handler{
		service:      service,
		version:      version,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// Quote handles POST /quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuoteRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GenerateQuote(restContext(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(resp))
}

// QuoteRuleBased handles POST /quote/rule-based.
func (h *Handler) QuoteRuleBased(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuoteRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GenerateQuoteRuleBased(restContext(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(resp))
}

// RiskAssessment handles POST /risk-assessment.
func (h *Handler) RiskAssessment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuoteRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.service.AssessRisk(restContext(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRiskResponse(resp))
}

// Health returns liveness. It answers 200 in fallback mode too.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        health.Status,
		"model_loaded":  health.ModelLoaded,
		"model_version": health.ModelVersion,
		"mode":          health.Mode,
		"version":       h.version,
	})
}

// Ready returns whether every backing component answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	components, ready := h.service.Readiness(r.Context())
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":      ready,
		"components": components,
	})
}

// EventTypes handles GET /event-types.
func (h *Handler) EventTypes(w http.ResponseWriter, r *http.Request) {
	infos := h.service.EventTypes()
	out := make([]EventTypeResponse, len(infos))
	for i, info := range infos {
		out[i] = EventTypeResponse{
			Code:        eventTypes.ToWire(info.Code),
			Name:        info.Name,
			Description: info.Description,
			BaseRate:    info.BaseRate,
			RiskWeight:  info.RiskWeight,
			MinGuards:   info.MinGuards,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_types": out,
		"count":       len(out),
	})
}

// ModelInfo handles GET /model-info.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ModelInfo())
}

// ReloadModel handles POST /model/reload. A failed reload leaves the
// current model in service and reports it alongside the error.
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.ReloadModel(r.Context())
	if err != nil {
		h.logger.Error("model reload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": err.Error(),
			"model": info,
		})
		return
	}

	h.logger.Info("model reloaded", "version", info.Version)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "model reloaded successfully",
		"model":   info,
	})
}

// GetPrediction handles GET /predictions/{id}.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "prediction ID is required"})
		return
	}

	rec, err := h.service.GetPrediction(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListRecommendationRules handles GET /recommendation-rules.
func (h *Handler) ListRecommendationRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.service.RecommendationRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRecommendationRule handles POST /recommendation-rules. The rule is
// validated, stored and applied immediately.
func (h *Handler) CreateRecommendationRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.RecommendationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON request body"})
		return
	}

	if err := h.service.SaveRecommendationRule(r.Context(), &rule); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("recommendation rule saved", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "rule saved and applied",
	})
}

// ReloadRecommendationRules handles POST /recommendation-rules/reload.
func (h *Handler) ReloadRecommendationRules(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ReloadRecommendationRules(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

func (h *Handler) decodeQuoteRequest(w http.ResponseWriter, r *http.Request) (*domain.QuoteRequest, bool) {
	var body QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON request body"})
		return nil, false
	}
	return body.toDomain(GetRequestID(r.Context())), true
}

// writeError maps service errors to status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Details: verr.Fields})
	case errors.Is(err, domain.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, quote.ErrAuditDisabled), errors.Is(err, quote.ErrRulesReadOnly):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func restContext(r *http.Request) context.Context {
	return quote.WithTransport(r.Context(), quote.TransportREST)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
