// Package features turns quote requests into the numeric vectors the trained
// models consume.
package features

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/guardquote/ml-engine/internal/catalog"
	"github.com/guardquote/ml-engine/internal/domain"
)

// ErrSchemaMismatch is returned when an artifact expects a different feature layout.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

// PriceFeatureNames is the column order of the price vector.
var PriceFeatureNames = []string{
	"event_type_encoded",
	"state_encoded",
	"risk_zone_encoded",
	"zip_region",
	"num_guards",
	"hours_per_guard",
	"total_guard_hours",
	"crowd_size",
	"day_of_week",
	"hour_of_day",
	"month",
	"is_weekend",
	"is_night_shift",
	"is_armed",
	"has_vehicle",
}

// RiskFeatureNames is the column order of the risk vector. It carries no
// location granularity below state.
var RiskFeatureNames = []string{
	"event_type_encoded",
	"state_encoded",
	"num_guards",
	"hours_per_guard",
	"crowd_size",
	"day_of_week",
	"hour_of_day",
	"month",
	"is_weekend",
	"is_night_shift",
	"is_armed",
}

// AcceptFeatureNames is the column order of the acceptance vector.
var AcceptFeatureNames = append(append([]string{}, RiskFeatureNames...), "final_price")

// Built-in category lists, in the sorted order a label encoder fits them.
var (
	DefaultEventTypeClasses = []string{"concert", "construction", "corporate", "private", "residential", "retail", "sports"}
	DefaultStateClasses     = []string{"AZ", "CA", "CO", "FL", "GA", "IL", "MA", "NV", "NY", "TX", "WA"}
	DefaultRiskZoneClasses  = []string{"critical", "high", "low", "medium"}
)

// Categories used for values an encoder has never seen.
const (
	defaultEventClass = "private"
	defaultZipRegion  = 900
)

// Input is a request plus the location context derived from it.
type Input struct {
	EventType  domain.EventType
	State      string
	RiskZone   domain.RiskZone
	Zip        string
	NumGuards  int
	Hours      float64
	CrowdSize  int
	EventDate  time.Time
	IsArmed    bool
	HasVehicle bool
}

// NewInput resolves the request's ZIP against the catalog.
func NewInput(req *domain.QuoteRequest, c *catalog.Catalog) Input {
	state, zone := domain.DefaultState, domain.DefaultRiskZone
	if c != nil {
		state, zone = c.Resolve(req.LocationZip)
	}
	return Input{
		EventType:  req.EventType,
		State:      state,
		RiskZone:   zone,
		Zip:        req.LocationZip,
		NumGuards:  req.NumGuards,
		Hours:      req.Hours,
		CrowdSize:  req.CrowdSize,
		EventDate:  req.EventDate,
		IsArmed:    req.IsArmed,
		HasVehicle: req.RequiresVehicle,
	}
}

// Encoder builds feature vectors with a fixed set of category encoders.
// It holds no mutable state.
type Encoder struct {
	eventTypes *LabelEncoder
	states     *LabelEncoder
	riskZones  *LabelEncoder
}

// NewEncoder creates an encoder from fitted class lists. Empty lists fall
// back to the built-in classes.
func NewEncoder(eventTypes, states, riskZones []string) *Encoder {
	if len(eventTypes) == 0 {
		eventTypes = DefaultEventTypeClasses
	}
	if len(states) == 0 {
		states = DefaultStateClasses
	}
	if len(riskZones) == 0 {
		riskZones = DefaultRiskZoneClasses
	}
	return &Encoder{
		eventTypes: NewLabelEncoder(eventTypes, defaultEventClass),
		states:     NewLabelEncoder(states, domain.DefaultState),
		riskZones:  NewLabelEncoder(riskZones, string(domain.DefaultRiskZone)),
	}
}

// Price returns the price vector in PriceFeatureNames order.
func (e *Encoder) Price(in Input) []float64 {
	t := in.EventDate
	return []float64{
		float64(e.eventTypes.Encode(string(in.EventType))),
		float64(e.states.Encode(in.State)),
		float64(e.riskZones.Encode(string(in.RiskZone))),
		float64(ZipRegion(in.Zip)),
		float64(in.NumGuards),
		in.Hours,
		float64(in.NumGuards) * in.Hours,
		float64(in.CrowdSize),
		float64(dayOfWeek(t)),
		float64(t.Hour()),
		float64(t.Month()),
		flag(dayOfWeek(t) >= 5),
		flag(isNight(t)),
		flag(in.IsArmed),
		flag(in.HasVehicle),
	}
}

// Risk returns the risk vector in RiskFeatureNames order.
func (e *Encoder) Risk(in Input) []float64 {
	t := in.EventDate
	return []float64{
		float64(e.eventTypes.Encode(string(in.EventType))),
		float64(e.states.Encode(in.State)),
		float64(in.NumGuards),
		in.Hours,
		float64(in.CrowdSize),
		float64(dayOfWeek(t)),
		float64(t.Hour()),
		float64(t.Month()),
		flag(dayOfWeek(t) >= 5),
		flag(isNight(t)),
		flag(in.IsArmed),
	}
}

// Accept returns the acceptance vector in AcceptFeatureNames order.
func (e *Encoder) Accept(in Input, finalPrice float64) []float64 {
	return append(e.Risk(in), finalPrice)
}

// ZipRegion returns the numeric value of the first three ZIP digits, or 900.
func ZipRegion(zip string) int {
	if len(zip) < 3 {
		return defaultZipRegion
	}
	n, err := strconv.Atoi(zip[:3])
	if err != nil {
		return defaultZipRegion
	}
	return n
}

// CheckSchema verifies that an artifact's feature names match the encoder's layout.
func CheckSchema(kind string, got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: %s model expects %d features, encoder produces %d", ErrSchemaMismatch, kind, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: %s feature %d is %q, encoder produces %q", ErrSchemaMismatch, kind, i, got[i], want[i])
		}
	}
	return nil
}

func dayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func isNight(t time.Time) bool {
	return t.Hour() >= 22 || t.Hour() < 6
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
