// Package domain defines the core interfaces and types for the GuardQuote ML engine.
package domain

// EventType identifies the kind of assignment a quote is requested for.
type EventType string

// Classic event types. These are the categories the trained model knows about.
const (
	EventCorporate    EventType = "corporate"
	EventConcert      EventType = "concert"
	EventSports       EventType = "sports"
	EventPrivate      EventType = "private"
	EventConstruction EventType = "construction"
	EventRetail       EventType = "retail"
	EventResidential  EventType = "residential"
)

// Extended catalog event types.
const (
	EventTechSummit    EventType = "tech_summit"
	EventMusicFestival EventType = "music_festival"
	EventRetailLP      EventType = "retail_lp"
	EventVIPProtection EventType = "vip_protection"
	EventIndustrial    EventType = "industrial"
	EventSocialWedding EventType = "social_wedding"
	EventGovRally      EventType = "gov_rally"
)

// Fallback pricing attributes for event types missing from the catalog.
const (
	DefaultBaseRate   = 30.00
	DefaultRiskWeight = 0.30
)

// EventTypeInfo is one row of the event type reference table.
type EventTypeInfo struct {
	Code        EventType `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BaseRate    float64   `json:"base_rate"`
	RiskWeight  float64   `json:"risk_weight"`
	MinGuards   int       `json:"min_guards"`
}

// HighActivity reports whether the event type draws dense, energetic crowds.
func (e EventType) HighActivity() bool {
	switch e {
	case EventConcert, EventSports, EventMusicFestival, EventGovRally:
		return true
	}
	return false
}

// DefaultEventTypes returns the built-in event type catalog.
func DefaultEventTypes() []EventTypeInfo {
	return []EventTypeInfo{
		{Code: EventCorporate, Name: "Corporate", Description: "Office buildings, corporate events and conferences", BaseRate: 35.00, RiskWeight: 0.20, MinGuards: 1},
		{Code: EventConcert, Name: "Concert", Description: "Concerts and live music venues", BaseRate: 45.00, RiskWeight: 0.70, MinGuards: 1},
		{Code: EventSports, Name: "Sports", Description: "Sporting events and stadiums", BaseRate: 42.00, RiskWeight: 0.60, MinGuards: 1},
		{Code: EventPrivate, Name: "Private", Description: "Private parties and gatherings", BaseRate: 30.00, RiskWeight: 0.30, MinGuards: 1},
		{Code: EventConstruction, Name: "Construction", Description: "Construction site security", BaseRate: 32.00, RiskWeight: 0.40, MinGuards: 1},
		{Code: EventRetail, Name: "Retail", Description: "Retail stores and shopping centers", BaseRate: 28.00, RiskWeight: 0.35, MinGuards: 1},
		{Code: EventResidential, Name: "Residential", Description: "Residential communities and buildings", BaseRate: 25.00, RiskWeight: 0.25, MinGuards: 1},
		{Code: EventTechSummit, Name: "Tech Summit", Description: "Technology conferences with executive attendees", BaseRate: 55.00, RiskWeight: 0.35, MinGuards: 2},
		{Code: EventMusicFestival, Name: "Music Festival", Description: "Multi-stage outdoor festivals", BaseRate: 65.00, RiskWeight: 0.80, MinGuards: 4},
		{Code: EventRetailLP, Name: "Retail Loss Prevention", Description: "Loss prevention and theft deterrence", BaseRate: 32.00, RiskWeight: 0.45, MinGuards: 1},
		{Code: EventVIPProtection, Name: "VIP Protection", Description: "Close protection for high-profile individuals", BaseRate: 110.00, RiskWeight: 0.25, MinGuards: 1},
		{Code: EventIndustrial, Name: "Industrial", Description: "Plants, warehouses and logistics yards", BaseRate: 45.00, RiskWeight: 0.55, MinGuards: 2},
		{Code: EventSocialWedding, Name: "Social / Wedding", Description: "Weddings and private social events", BaseRate: 40.00, RiskWeight: 0.15, MinGuards: 1},
		{Code: EventGovRally, Name: "Government Rally", Description: "Political rallies and public demonstrations", BaseRate: 58.00, RiskWeight: 0.95, MinGuards: 6},
	}
}
