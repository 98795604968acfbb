// Package catalog holds the event type and location reference tables.
package catalog

import (
	"sort"
	"sync"

	"github.com/guardquote/ml-engine/internal/domain"
)

// Catalog is a concurrency-safe, replaceable view over the reference tables.
type Catalog struct {
	mu        sync.RWMutex
	events    map[domain.EventType]domain.EventTypeInfo
	order     []domain.EventTypeInfo
	locations map[string]domain.Location
}

// New builds a catalog from reference rows.
func New(events []domain.EventTypeInfo, locations []domain.Location) *Catalog {
	c := &Catalog{}
	c.Replace(events, locations)
	return c
}

// Default returns a catalog over the built-in tables.
func Default() *Catalog {
	return New(domain.DefaultEventTypes(), domain.DefaultLocations())
}

// Replace swaps both tables. Rows keep their input order for listing.
func (c *Catalog) Replace(events []domain.EventTypeInfo, locations []domain.Location) {
	byCode := make(map[domain.EventType]domain.EventTypeInfo, len(events))
	order := make([]domain.EventTypeInfo, 0, len(events))
	for _, e := range events {
		if _, dup := byCode[e.Code]; dup {
			continue
		}
		byCode[e.Code] = e
		order = append(order, e)
	}

	byZip := make(map[string]domain.Location, len(locations))
	for _, l := range locations {
		byZip[l.Zip] = l
	}

	c.mu.Lock()
	c.events = byCode
	c.order = order
	c.locations = byZip
	c.mu.Unlock()
}

// EventType looks up an event type.
func (c *Catalog) EventType(code domain.EventType) (domain.EventTypeInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.events[code]
	return info, ok
}

// EventTypes lists every event type in catalog order.
func (c *Catalog) EventTypes() []domain.EventTypeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.EventTypeInfo, len(c.order))
	copy(out, c.order)
	return out
}

// Location looks up a ZIP code. ZIP+4 codes match on their first five digits.
func (c *Catalog) Location(zip string) (domain.Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if loc, ok := c.locations[zip]; ok {
		return loc, true
	}
	if len(zip) > 5 {
		loc, ok := c.locations[zip[:5]]
		return loc, ok
	}
	return domain.Location{}, false
}

// Locations lists every location sorted by ZIP.
func (c *Catalog) Locations() []domain.Location {
	c.mu.RLock()
	out := make([]domain.Location, 0, len(c.locations))
	for _, l := range c.locations {
		out = append(out, l)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Zip < out[j].Zip })
	return out
}

// Resolve derives the state and risk zone for a ZIP, with defaults for unknown codes.
func (c *Catalog) Resolve(zip string) (string, domain.RiskZone) {
	if loc, ok := c.Location(zip); ok {
		return loc.State, loc.RiskZone
	}
	return domain.DefaultState, domain.DefaultRiskZone
}
