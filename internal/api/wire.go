package api

import (
	"time"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/enummap"
)

// eventTypes maps the REST event type codes. Unknown codes price as corporate.
var eventTypes = func() *enummap.Table[string, domain.EventType] {
	infos := domain.DefaultEventTypes()
	pairs := make([]enummap.Pair[string, domain.EventType], len(infos))
	for i, info := range infos {
		pairs[i] = enummap.Pair[string, domain.EventType]{Wire: string(info.Code), Domain: info.Code}
	}
	return enummap.New(string(domain.EventCorporate), domain.EventCorporate, pairs...)
}()

// riskLevels maps the REST risk level names. Unknown levels read as medium.
var riskLevels = func() *enummap.Table[string, domain.RiskLevel] {
	pairs := make([]enummap.Pair[string, domain.RiskLevel], len(domain.RiskLevels))
	for i, l := range domain.RiskLevels {
		pairs[i] = enummap.Pair[string, domain.RiskLevel]{Wire: string(l), Domain: l}
	}
	return enummap.New(string(domain.RiskMedium), domain.RiskMedium, pairs...)
}()

// QuoteRequest is the request body for the quote and risk endpoints.
type QuoteRequest struct {
	RequestID       string    `json:"request_id,omitempty"`
	EventType       string    `json:"event_type"`
	LocationZip     string    `json:"location_zip"`
	NumGuards       int       `json:"num_guards"`
	Hours           float64   `json:"hours"`
	EventDate       time.Time `json:"event_date"`
	IsArmed         bool      `json:"is_armed"`
	RequiresVehicle bool      `json:"requires_vehicle"`
	CrowdSize       int       `json:"crowd_size"`
}

// toDomain converts the body. A missing or unknown event type reads as
// corporate, the same as an unspecified RPC event type.
func (r *QuoteRequest) toDomain(fallbackID string) *domain.QuoteRequest {
	req := &domain.QuoteRequest{
		RequestID:       r.RequestID,
		EventType:       eventTypes.ToDomain(r.EventType),
		LocationZip:     r.LocationZip,
		NumGuards:       r.NumGuards,
		Hours:           r.Hours,
		EventDate:       r.EventDate,
		IsArmed:         r.IsArmed,
		RequiresVehicle: r.RequiresVehicle,
		CrowdSize:       r.CrowdSize,
	}
	if req.RequestID == "" {
		req.RequestID = fallbackID
	}
	return req
}

// QuoteResponse is a quote with its risk level in wire form.
type QuoteResponse struct {
	*domain.QuoteResponse
	RiskLevel string `json:"risk_level"`
}

func newQuoteResponse(r *domain.QuoteResponse) *QuoteResponse {
	return &QuoteResponse{QuoteResponse: r, RiskLevel: riskLevels.ToWire(r.RiskLevel)}
}

// RiskResponse is a risk assessment with its risk level in wire form.
type RiskResponse struct {
	*domain.RiskAssessment
	RiskLevel string `json:"risk_level"`
}

func newRiskResponse(r *domain.RiskAssessment) *RiskResponse {
	return &RiskResponse{RiskAssessment: r, RiskLevel: riskLevels.ToWire(r.RiskLevel)}
}

// EventTypeResponse is one entry of GET /event-types.
type EventTypeResponse struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	BaseRate    float64 `json:"base_rate"`
	RiskWeight  float64 `json:"risk_weight"`
	MinGuards   int     `json:"min_guards"`
}

// BatchLine is one NDJSON line of a batch response. Exactly one of Quote,
// Risk and Error is set.
type BatchLine struct {
	Index int            `json:"index"`
	Quote *QuoteResponse `json:"quote,omitempty"`
	Risk  *RiskResponse  `json:"risk,omitempty"`
	Error string         `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Details []domain.FieldError `json:"details,omitempty"`
}
