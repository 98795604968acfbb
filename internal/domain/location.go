package domain

// RiskZone is the crime/incident classification of a service area.
type RiskZone string

const (
	ZoneLow      RiskZone = "low"
	ZoneMedium   RiskZone = "medium"
	ZoneHigh     RiskZone = "high"
	ZoneCritical RiskZone = "critical"
)

// Defaults applied when a ZIP code is not in the location table.
const (
	DefaultState    = "CA"
	DefaultRiskZone = ZoneMedium
)

// Location is one row of the service-area reference table.
type Location struct {
	Zip            string   `json:"zip"`
	City           string   `json:"city"`
	State          string   `json:"state"`
	County         string   `json:"county,omitempty"`
	Region         string   `json:"region,omitempty"`
	RiskZone       RiskZone `json:"risk_zone"`
	RateMultiplier float64  `json:"rate_multiplier"`
}

// DefaultLocations returns the built-in service-area table.
func DefaultLocations() []Location {
	return []Location{
		{Zip: "94102", City: "San Francisco", State: "CA", County: "San Francisco", Region: "west", RiskZone: ZoneHigh, RateMultiplier: 1.45},
		{Zip: "90001", City: "Los Angeles", State: "CA", County: "Los Angeles", Region: "west", RiskZone: ZoneHigh, RateMultiplier: 1.35},
		{Zip: "10001", City: "New York", State: "NY", County: "New York", Region: "northeast", RiskZone: ZoneCritical, RateMultiplier: 1.40},
		{Zip: "10019", City: "Manhattan", State: "NY", County: "New York", Region: "northeast", RiskZone: ZoneCritical, RateMultiplier: 1.50},
		{Zip: "78701", City: "Austin", State: "TX", County: "Travis", Region: "south", RiskZone: ZoneMedium, RateMultiplier: 1.15},
		{Zip: "33101", City: "Miami", State: "FL", County: "Miami-Dade", Region: "south", RiskZone: ZoneHigh, RateMultiplier: 1.30},
		{Zip: "60601", City: "Chicago", State: "IL", County: "Cook", Region: "midwest", RiskZone: ZoneHigh, RateMultiplier: 1.35},
		{Zip: "98101", City: "Seattle", State: "WA", County: "King", Region: "west", RiskZone: ZoneMedium, RateMultiplier: 1.30},
		{Zip: "02101", City: "Boston", State: "MA", County: "Suffolk", Region: "northeast", RiskZone: ZoneHigh, RateMultiplier: 1.35},
		{Zip: "20001", City: "Washington", State: "DC", County: "District of Columbia", Region: "northeast", RiskZone: ZoneCritical, RateMultiplier: 1.45},
		{Zip: "30301", City: "Atlanta", State: "GA", County: "Fulton", Region: "south", RiskZone: ZoneMedium, RateMultiplier: 1.20},
		{Zip: "80201", City: "Denver", State: "CO", County: "Denver", Region: "west", RiskZone: ZoneMedium, RateMultiplier: 1.15},
		{Zip: "85001", City: "Phoenix", State: "AZ", County: "Maricopa", Region: "west", RiskZone: ZoneLow, RateMultiplier: 1.10},
		{Zip: "89101", City: "Las Vegas", State: "NV", County: "Clark", Region: "west", RiskZone: ZoneHigh, RateMultiplier: 1.35},
		{Zip: "75201", City: "Dallas", State: "TX", County: "Dallas", Region: "south", RiskZone: ZoneMedium, RateMultiplier: 1.18},
	}
}
