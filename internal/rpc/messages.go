package rpc

// EventType is the wire enumeration of event types.
type EventType int32

const (
	EventTypeUnspecified EventType = iota
	EventTypeCorporate
	EventTypeConcert
	EventTypeSports
	EventTypePrivate
	EventTypeConstruction
	EventTypeRetail
	EventTypeResidential
	EventTypeTechSummit
	EventTypeMusicFestival
	EventTypeRetailLP
	EventTypeVIPProtection
	EventTypeIndustrial
	EventTypeSocialWedding
	EventTypeGovRally
)

// RiskLevel is the wire enumeration of risk levels.
type RiskLevel int32

const (
	RiskLevelUnspecified RiskLevel = iota
	RiskLevelLow
	RiskLevelMedium
	RiskLevelHigh
	RiskLevelCritical
)

// Timestamp is seconds and nanoseconds since the Unix epoch, UTC.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos,omitempty"`
}

// QuoteRequest is the input of quote and risk calls.
type QuoteRequest struct {
	RequestID       string    `json:"request_id,omitempty"`
	EventType       EventType `json:"event_type"`
	LocationZip     string    `json:"location_zip"`
	NumGuards       int32     `json:"num_guards"`
	Hours           float64   `json:"hours"`
	EventDate       Timestamp `json:"event_date"`
	IsArmed         bool      `json:"is_armed"`
	RequiresVehicle bool      `json:"requires_vehicle"`
	CrowdSize       int32     `json:"crowd_size"`
}

// RiskRequest carries the same fields as QuoteRequest.
type RiskRequest = QuoteRequest

// QuoteBreakdown itemises a quote.
type QuoteBreakdown struct {
	BaseHourlyRate     float64  `json:"base_hourly_rate"`
	ArmedPremium       float64  `json:"armed_premium"`
	AdjustedHourlyRate float64  `json:"adjusted_hourly_rate"`
	LaborCost          float64  `json:"labor_cost"`
	VehicleCost        float64  `json:"vehicle_cost"`
	RiskFactors        []string `json:"risk_factors"`
	ModelUsed          string   `json:"model_used"`
	NumGuards          int32    `json:"num_guards"`
	Hours              float64  `json:"hours"`
	IsArmed            bool     `json:"is_armed"`
	HasVehicle         bool     `json:"has_vehicle"`
}

// QuoteResponse is a priced quote. Error is set only on batch elements
// that failed, in which case the other fields are empty.
type QuoteResponse struct {
	RequestID             string          `json:"request_id"`
	PredictionID          string          `json:"prediction_id,omitempty"`
	BasePrice             float64         `json:"base_price"`
	RiskMultiplier        float64         `json:"risk_multiplier"`
	FinalPrice            float64         `json:"final_price"`
	RiskLevel             RiskLevel       `json:"risk_level"`
	RiskScore             float64         `json:"risk_score"`
	ConfidenceScore       float64         `json:"confidence_score"`
	AcceptanceProbability *float64        `json:"acceptance_probability,omitempty"`
	Breakdown             *QuoteBreakdown `json:"breakdown,omitempty"`
	ModelUsed             string          `json:"model_used"`
	Path                  string          `json:"path"`
	ProcessingTimeMs      int64           `json:"processing_time_ms"`
	Error                 string          `json:"error,omitempty"`
}

// RiskResponse is a risk assessment, with the same batch error convention
// as QuoteResponse.
type RiskResponse struct {
	RequestID        string    `json:"request_id"`
	PredictionID     string    `json:"prediction_id,omitempty"`
	RiskLevel        RiskLevel `json:"risk_level"`
	RiskScore        float64   `json:"risk_score"`
	Confidence       float64   `json:"confidence"`
	Factors          []string  `json:"factors"`
	Recommendations  []string  `json:"recommendations"`
	ModelUsed        string    `json:"model_used"`
	Path             string    `json:"path"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Error            string    `json:"error,omitempty"`
}

type HealthRequest struct{}

type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	ModelLoaded  bool   `json:"model_loaded"`
	ModelVersion string `json:"model_version"`
	Mode         string `json:"mode"`
}

type ModelInfoRequest struct{}

type ModelInfoResponse struct {
	Status             string             `json:"status"`
	Message            string             `json:"message,omitempty"`
	Reason             string             `json:"reason,omitempty"`
	Version            string             `json:"version,omitempty"`
	PriceModelName     string             `json:"price_model_name,omitempty"`
	TrainedAt          string             `json:"trained_at,omitempty"`
	SampleCount        int32              `json:"sample_count,omitempty"`
	PriceFeaturesCount int32              `json:"price_features_count,omitempty"`
	RiskFeaturesCount  int32              `json:"risk_features_count,omitempty"`
	HasAcceptanceModel bool               `json:"has_acceptance_model"`
	Metrics            map[string]float64 `json:"metrics,omitempty"`
}

type EventTypesRequest struct{}

type EventTypeInfo struct {
	Type        EventType `json:"type"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BaseRate    float64   `json:"base_rate"`
	RiskWeight  float64   `json:"risk_weight"`
	MinGuards   int32     `json:"min_guards"`
}

type EventTypesResponse struct {
	EventTypes []EventTypeInfo `json:"event_types"`
}
