package domain

import (
	"encoding/json"
	"time"
)

// PredictionKind names the operation that produced a PredictionRecord.
type PredictionKind string

const (
	KindQuote          PredictionKind = "quote"
	KindQuoteRuleBased PredictionKind = "quote_rule_based"
	KindRisk           PredictionKind = "risk"
)

// PredictionRecord is the audit log entry written for every served prediction.
type PredictionRecord struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"request_id"`
	Kind        PredictionKind  `json:"kind"`
	Transport   string          `json:"transport"`
	ModelUsed   string          `json:"model_used"`
	Path        PredictionPath  `json:"path"`
	EventType   EventType       `json:"event_type"`
	LocationZip string          `json:"location_zip"`
	FinalPrice  float64         `json:"final_price"`
	RiskLevel   RiskLevel       `json:"risk_level"`
	RiskScore   float64         `json:"risk_score"`
	Confidence  float64         `json:"confidence"`
	CreatedAt   time.Time       `json:"created_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// ModelInfo describes the artifact currently served by the predictor.
type ModelInfo struct {
	Status             string             `json:"status"` // "loaded" or "not_loaded"
	Loaded             bool               `json:"loaded"`
	Message            string             `json:"message,omitempty"`
	Reason             string             `json:"reason,omitempty"`
	Path               string             `json:"path,omitempty"`
	Version            string             `json:"version,omitempty"`
	PriceModelName     string             `json:"price_model_name,omitempty"`
	TrainedAt          string             `json:"trained_at,omitempty"`
	SampleCount        int                `json:"sample_count,omitempty"`
	PriceFeaturesCount int                `json:"price_features_count,omitempty"`
	RiskFeaturesCount  int                `json:"risk_features_count,omitempty"`
	HasAcceptanceModel bool               `json:"has_acceptance_model"`
	Metrics            map[string]float64 `json:"metrics,omitempty"`
	LoadedAt           time.Time          `json:"loaded_at,omitempty"`
}
