package rpc

import (
	"time"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/enummap"
)

// eventTypes maps the wire event types. UNSPECIFIED and unknown values
// price as corporate.
var eventTypes = enummap.New(EventTypeCorporate, domain.EventCorporate,
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeCorporate, Domain: domain.EventCorporate},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeConcert, Domain: domain.EventConcert},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeSports, Domain: domain.EventSports},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypePrivate, Domain: domain.EventPrivate},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeConstruction, Domain: domain.EventConstruction},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeRetail, Domain: domain.EventRetail},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeResidential, Domain: domain.EventResidential},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeTechSummit, Domain: domain.EventTechSummit},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeMusicFestival, Domain: domain.EventMusicFestival},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeRetailLP, Domain: domain.EventRetailLP},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeVIPProtection, Domain: domain.EventVIPProtection},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeIndustrial, Domain: domain.EventIndustrial},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeSocialWedding, Domain: domain.EventSocialWedding},
	enummap.Pair[EventType, domain.EventType]{Wire: EventTypeGovRally, Domain: domain.EventGovRally},
)

// riskLevels maps the wire risk levels. UNSPECIFIED and unknown values read as medium.
var riskLevels = enummap.New(RiskLevelMedium, domain.RiskMedium,
	enummap.Pair[RiskLevel, domain.RiskLevel]{Wire: RiskLevelLow, Domain: domain.RiskLow},
	enummap.Pair[RiskLevel, domain.RiskLevel]{Wire: RiskLevelMedium, Domain: domain.RiskMedium},
	enummap.Pair[RiskLevel, domain.RiskLevel]{Wire: RiskLevelHigh, Domain: domain.RiskHigh},
	enummap.Pair[RiskLevel, domain.RiskLevel]{Wire: RiskLevelCritical, Domain: domain.RiskCritical},
)

// NewTimestamp converts t to its wire form.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time returns the timestamp in UTC. The empty timestamp is the zero time,
// which request validation rejects as missing.
func (ts Timestamp) Time() time.Time {
	if ts.Seconds == 0 && ts.Nanos == 0 {
		return time.Time{}
	}
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// NewQuoteRequest converts a domain request to its wire form.
func NewQuoteRequest(r *domain.QuoteRequest) *QuoteRequest {
	return &QuoteRequest{
		RequestID:       r.RequestID,
		EventType:       eventTypes.ToWire(r.EventType),
		LocationZip:     r.LocationZip,
		NumGuards:       int32(r.NumGuards),
		Hours:           r.Hours,
		EventDate:       NewTimestamp(r.EventDate),
		IsArmed:         r.IsArmed,
		RequiresVehicle: r.RequiresVehicle,
		CrowdSize:       int32(r.CrowdSize),
	}
}

func (r *QuoteRequest) toDomain(fallbackID string) *domain.QuoteRequest {
	id := r.RequestID
	if id == "" {
		id = fallbackID
	}
	return &domain.QuoteRequest{
		RequestID:       id,
		EventType:       eventTypes.ToDomain(r.EventType),
		LocationZip:     r.LocationZip,
		NumGuards:       int(r.NumGuards),
		Hours:           r.Hours,
		EventDate:       r.EventDate.Time(),
		IsArmed:         r.IsArmed,
		RequiresVehicle: r.RequiresVehicle,
		CrowdSize:       int(r.CrowdSize),
	}
}

func newQuoteResponse(r *domain.QuoteResponse) *QuoteResponse {
	b := r.Breakdown
	return &QuoteResponse{
		RequestID:             r.RequestID,
		PredictionID:          r.PredictionID,
		BasePrice:             r.BasePrice,
		RiskMultiplier:        r.RiskMultiplier,
		FinalPrice:            r.FinalPrice,
		RiskLevel:             riskLevels.ToWire(r.RiskLevel),
		RiskScore:             r.RiskScore,
		ConfidenceScore:       r.ConfidenceScore,
		AcceptanceProbability: r.AcceptanceProbability,
		Breakdown: &QuoteBreakdown{
			BaseHourlyRate:     b.BaseHourlyRate,
			ArmedPremium:       b.ArmedPremium,
			AdjustedHourlyRate: b.AdjustedHourlyRate,
			LaborCost:          b.LaborCost,
			VehicleCost:        b.VehicleCost,
			RiskFactors:        b.RiskFactors,
			ModelUsed:          b.ModelUsed,
			NumGuards:          int32(b.NumGuards),
			Hours:              b.Hours,
			IsArmed:            b.IsArmed,
			HasVehicle:         b.HasVehicle,
		},
		ModelUsed:        r.ModelUsed,
		Path:             string(r.Path),
		ProcessingTimeMs: r.ProcessingTimeMs,
	}
}

func newRiskResponse(r *domain.RiskAssessment) *RiskResponse {
	return &RiskResponse{
		RequestID:        r.RequestID,
		PredictionID:     r.PredictionID,
		RiskLevel:        riskLevels.ToWire(r.RiskLevel),
		RiskScore:        r.RiskScore,
		Confidence:       r.Confidence,
		Factors:          r.Factors,
		Recommendations:  r.Recommendations,
		ModelUsed:        r.ModelUsed,
		Path:             string(r.Path),
		ProcessingTimeMs: r.ProcessingTimeMs,
	}
}

func newModelInfoResponse(info domain.ModelInfo) *ModelInfoResponse {
	return &ModelInfoResponse{
		Status:             info.Status,
		Message:            info.Message,
		Reason:             info.Reason,
		Version:            info.Version,
		PriceModelName:     info.PriceModelName,
		TrainedAt:          info.TrainedAt,
		SampleCount:        int32(info.SampleCount),
		PriceFeaturesCount: int32(info.PriceFeaturesCount),
		RiskFeaturesCount:  int32(info.RiskFeaturesCount),
		HasAcceptanceModel: info.HasAcceptanceModel,
		Metrics:            info.Metrics,
	}
}

// DomainRiskLevel converts a wire risk level.
func DomainRiskLevel(l RiskLevel) domain.RiskLevel {
	return riskLevels.ToDomain(l)
}

// DomainEventType converts a wire event type.
func DomainEventType(e EventType) domain.EventType {
	return eventTypes.ToDomain(e)
}

// WireEventType converts a domain event type. Unknown types map to corporate.
func WireEventType(e domain.EventType) EventType {
	return eventTypes.ToWire(e)
}
