package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardquote/ml-engine/internal/domain"
)

func TestCatalog(t *testing.T) {
	c := Default()

	t.Run("EventTypeLookup", func(t *testing.T) {
		info, ok := c.EventType(domain.EventCorporate)
		require.True(t, ok)
		assert.Equal(t, 35.00, info.BaseRate)
		assert.Equal(t, 0.20, info.RiskWeight)

		_, ok = c.EventType("laser_tag")
		assert.False(t, ok)
	})

	t.Run("EventTypesKeepOrder", func(t *testing.T) {
		events := c.EventTypes()
		require.Len(t, events, len(domain.DefaultEventTypes()))
		assert.Equal(t, domain.EventCorporate, events[0].Code)
	})

	t.Run("ResolveKnownZip", func(t *testing.T) {
		state, zone := c.Resolve("10019")
		assert.Equal(t, "NY", state)
		assert.Equal(t, domain.ZoneCritical, zone)
	})

	t.Run("ResolveZipPlusFour", func(t *testing.T) {
		state, zone := c.Resolve("85001-1234")
		assert.Equal(t, "AZ", state)
		assert.Equal(t, domain.ZoneLow, zone)
	})

	t.Run("ResolveUnknownZip", func(t *testing.T) {
		state, zone := c.Resolve("00000")
		assert.Equal(t, domain.DefaultState, state)
		assert.Equal(t, domain.DefaultRiskZone, zone)
	})

	t.Run("Replace", func(t *testing.T) {
		c := Default()
		c.Replace([]domain.EventTypeInfo{{Code: "drill", Name: "Drill", BaseRate: 10}}, nil)

		assert.Len(t, c.EventTypes(), 1)
		_, ok := c.EventType(domain.EventCorporate)
		assert.False(t, ok)
		assert.Empty(t, c.Locations())
	})
}
