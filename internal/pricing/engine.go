// Package pricing provides the deterministic rule-based pricing and risk engine.
package pricing

import (
	"fmt"
	"math"

	"github.com/guardquote/ml-engine/internal/catalog"
	"github.com/guardquote/ml-engine/internal/domain"
)

// Pricing constants.
const (
	ArmedPremium   = 15.00 // per guard-hour
	VehiclePremium = 50.00 // per guard
)

// Risk score terms, applied in this order.
const (
	nightRisk           = 0.15
	weekendRisk         = 0.10
	crowdRiskCap        = 0.30
	crowdRiskDivisor    = 10000.0
	armedRisk           = 0.20
	vehicleRisk         = 0.05
	largeCrowdThreshold = 1000
)

const (
	baseConfidence  = 0.85
	crowdConfidence = 0.10
)

// ModelName identifies results computed by this engine.
const ModelName = "rule-based"

// Engine prices and scores requests from the event type catalog. It is
// stateless apart from the catalog and safe for concurrent use.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates a rule engine over the given catalog.
func NewEngine(c *catalog.Catalog) *Engine {
	if c == nil {
		c = catalog.Default()
	}
	return &Engine{catalog: c}
}

// Catalog returns the reference tables the engine prices from.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// EventInfo returns the catalog entry for t, or the default rates for unknown codes.
func (e *Engine) EventInfo(t domain.EventType) domain.EventTypeInfo {
	if info, ok := e.catalog.EventType(t); ok {
		return info
	}
	return domain.EventTypeInfo{
		Code:       t,
		BaseRate:   domain.DefaultBaseRate,
		RiskWeight: domain.DefaultRiskWeight,
		MinGuards:  1,
	}
}

// Score computes the risk score in [0, 1] and the factors that contributed to it.
func (e *Engine) Score(req *domain.QuoteRequest) (float64, []string) {
	info := e.EventInfo(req.EventType)
	score := info.RiskWeight
	factors := []string{}

	if req.IsNight() {
		score += nightRisk
		factors = append(factors, "Night shift premium")
	}

	if req.IsWeekend() {
		score += weekendRisk
		factors = append(factors, "Weekend assignment")
	}

	if req.CrowdSize > 0 {
		score += math.Min(float64(req.CrowdSize)/crowdRiskDivisor, crowdRiskCap)
		if req.CrowdSize > largeCrowdThreshold {
			factors = append(factors, fmt.Sprintf("Large crowd (%d people)", req.CrowdSize))
		}
	}

	if req.IsArmed {
		score += armedRisk
		factors = append(factors, "Armed security required")
	}

	if req.RequiresVehicle {
		score += vehicleRisk
		factors = append(factors, "Vehicle patrol included")
	}

	if req.NumGuards < info.MinGuards {
		factors = append(factors, fmt.Sprintf("Below recommended minimum of %d guards", info.MinGuards))
	}

	return math.Max(0, math.Min(score, 1)), factors
}

// Confidence returns the engine's self-reported confidence for a request.
func Confidence(req *domain.QuoteRequest) float64 {
	c := baseConfidence
	if req.CrowdSize > 0 {
		c += crowdConfidence
	}
	return domain.Round(c, 2)
}

// Multiplier converts a risk score into a price multiplier.
func Multiplier(score float64) float64 {
	return 1 + score*0.5
}

// Quote prices a request.
func (e *Engine) Quote(req *domain.QuoteRequest) *domain.QuoteResponse {
	info := e.EventInfo(req.EventType)
	score, factors := e.Score(req)
	multiplier := Multiplier(score)

	armed := 0.0
	if req.IsArmed {
		armed = ArmedPremium
	}

	hourly := (info.BaseRate + armed) * multiplier
	guardHours := req.Hours * float64(req.NumGuards)
	labor := hourly * guardHours

	vehicle := 0.0
	if req.RequiresVehicle {
		vehicle = VehiclePremium * float64(req.NumGuards)
	}

	return &domain.QuoteResponse{
		RequestID:       req.RequestID,
		BasePrice:       domain.Round((info.BaseRate+armed)*guardHours, 2),
		RiskMultiplier:  domain.Round(multiplier, 3),
		FinalPrice:      domain.Round(labor+vehicle, 2),
		RiskLevel:       domain.RiskLevelFor(score),
		RiskScore:       domain.Round(score, 3),
		ConfidenceScore: Confidence(req),
		Breakdown: domain.QuoteBreakdown{
			BaseHourlyRate:     info.BaseRate,
			ArmedPremium:       armed,
			AdjustedHourlyRate: domain.Round(hourly, 2),
			LaborCost:          domain.Round(labor, 2),
			VehicleCost:        vehicle,
			RiskFactors:        factors,
			ModelUsed:          ModelName,
			NumGuards:          req.NumGuards,
			Hours:              req.Hours,
			IsArmed:            req.IsArmed,
			HasVehicle:         req.RequiresVehicle,
		},
		ModelUsed: ModelName,
		Path:      domain.PathRuleBased,
	}
}

// Assess scores a request without pricing it. Recommendations are left to the caller.
func (e *Engine) Assess(req *domain.QuoteRequest) *domain.RiskAssessment {
	score, factors := e.Score(req)
	if len(factors) == 0 {
		factors = []string{"Standard assignment"}
	}

	return &domain.RiskAssessment{
		RequestID:  req.RequestID,
		RiskLevel:  domain.RiskLevelFor(score),
		RiskScore:  domain.Round(score, 3),
		Confidence: Confidence(req),
		Factors:    factors,
		ModelUsed:  ModelName,
		Path:       domain.PathRuleBased,
	}
}
