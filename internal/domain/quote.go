package domain

import (
	"math"
	"time"
)

// RiskLevel is the four-bucket classification of a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevels lists the levels in ascending order. A classifier's class index
// maps into this slice.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Ordinal returns the position of the level in RiskLevels, or -1.
func (l RiskLevel) Ordinal() int {
	for i, lvl := range RiskLevels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// RiskLevelFor buckets a score: < 0.25 low, < 0.5 medium, < 0.75 high, else critical.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score < 0.25:
		return RiskLow
	case score < 0.5:
		return RiskMedium
	case score < 0.75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// PredictionPath records which computation produced a result.
type PredictionPath string

const (
	PathModel     PredictionPath = "model"
	PathFallback  PredictionPath = "fallback"
	PathRuleBased PredictionPath = "rule_based"
)

// QuoteRequest is the input shared by quote generation and risk assessment.
type QuoteRequest struct {
	RequestID       string    `json:"request_id,omitempty"`
	EventType       EventType `json:"event_type" validate:"required"`
	LocationZip     string    `json:"location_zip" validate:"required,min=5,max=10"`
	NumGuards       int       `json:"num_guards" validate:"gte=1,lte=100"`
	Hours           float64   `json:"hours" validate:"gte=1,lte=24"`
	EventDate       time.Time `json:"event_date" validate:"required"`
	IsArmed         bool      `json:"is_armed"`
	RequiresVehicle bool      `json:"requires_vehicle"`
	CrowdSize       int       `json:"crowd_size" validate:"gte=0"`
}

// IsNight reports whether the assignment starts in the night window (22:00-05:59).
func (r *QuoteRequest) IsNight() bool {
	h := r.EventDate.Hour()
	return h >= 22 || h < 6
}

// IsWeekend reports whether the assignment falls on Saturday or Sunday.
func (r *QuoteRequest) IsWeekend() bool {
	return r.DayOfWeek() >= 5
}

// DayOfWeek returns the weekday with Monday as 0 and Sunday as 6.
func (r *QuoteRequest) DayOfWeek() int {
	return (int(r.EventDate.Weekday()) + 6) % 7
}

// QuoteBreakdown itemises how a price was reached.
type QuoteBreakdown struct {
	BaseHourlyRate     float64  `json:"base_hourly_rate"`
	ArmedPremium       float64  `json:"armed_premium"`
	AdjustedHourlyRate float64  `json:"adjusted_hourly_rate"`
	LaborCost          float64  `json:"labor_cost"`
	VehicleCost        float64  `json:"vehicle_cost"`
	RiskFactors        []string `json:"risk_factors"`
	ModelUsed          string   `json:"model_used"`
	NumGuards          int      `json:"num_guards"`
	Hours              float64  `json:"hours"`
	IsArmed            bool     `json:"is_armed"`
	HasVehicle         bool     `json:"has_vehicle"`
}

// QuoteResponse is the priced result of a QuoteRequest.
type QuoteResponse struct {
	RequestID             string         `json:"request_id"`
	PredictionID          string         `json:"prediction_id,omitempty"`
	BasePrice             float64        `json:"base_price"`
	RiskMultiplier        float64        `json:"risk_multiplier"`
	FinalPrice            float64        `json:"final_price"`
	RiskLevel             RiskLevel      `json:"risk_level"`
	RiskScore             float64        `json:"risk_score"`
	ConfidenceScore       float64        `json:"confidence_score"`
	AcceptanceProbability *float64       `json:"acceptance_probability,omitempty"`
	Breakdown             QuoteBreakdown `json:"breakdown"`
	ModelUsed             string         `json:"model_used"`
	Path                  PredictionPath `json:"path"`
	ProcessingTimeMs      int64          `json:"processing_time_ms"`
}

// RiskAssessment is the risk evaluation of a QuoteRequest.
type RiskAssessment struct {
	RequestID        string         `json:"request_id"`
	PredictionID     string         `json:"prediction_id,omitempty"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	RiskScore        float64        `json:"risk_score"`
	Confidence       float64        `json:"confidence"`
	Factors          []string       `json:"factors"`
	Recommendations  []string       `json:"recommendations"`
	ModelUsed        string         `json:"model_used"`
	Path             PredictionPath `json:"path"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
