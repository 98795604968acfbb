package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLow},
		{0.2499, RiskLow},
		{0.25, RiskMedium},
		{0.4999, RiskMedium},
		{0.5, RiskHigh},
		{0.7499, RiskHigh},
		{0.75, RiskCritical},
		{1, RiskCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevelFor(tt.score), "score %v", tt.score)
	}
}

func TestRiskLevelOrdinal(t *testing.T) {
	for i, lvl := range RiskLevels {
		assert.Equal(t, i, lvl.Ordinal())
	}
	assert.Equal(t, -1, RiskLevel("severe").Ordinal())
}

func TestQuoteRequestCalendar(t *testing.T) {
	t.Run("DayOfWeekStartsMonday", func(t *testing.T) {
		monday := &QuoteRequest{EventDate: time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)}
		sunday := &QuoteRequest{EventDate: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)}

		assert.Equal(t, 0, monday.DayOfWeek())
		assert.Equal(t, 6, sunday.DayOfWeek())
		assert.False(t, monday.IsWeekend())
		assert.True(t, sunday.IsWeekend())
	})

	t.Run("NightWindow", func(t *testing.T) {
		for hour, want := range map[int]bool{21: false, 22: true, 0: true, 5: true, 6: false} {
			req := &QuoteRequest{EventDate: time.Date(2026, time.March, 9, hour, 0, 0, 0, time.UTC)}
			assert.Equal(t, want, req.IsNight(), "hour %d", hour)
		}
	})
}

func TestQuoteRequestValidate(t *testing.T) {
	valid := func() *QuoteRequest {
		return &QuoteRequest{
			EventType:   EventCorporate,
			LocationZip: "94102",
			NumGuards:   2,
			Hours:       8,
			EventDate:   time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC),
		}
	}

	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*QuoteRequest)
		field  string
	}{
		{"ZeroGuards", func(r *QuoteRequest) { r.NumGuards = 0 }, "num_guards"},
		{"TooManyGuards", func(r *QuoteRequest) { r.NumGuards = 101 }, "num_guards"},
		{"ShortShift", func(r *QuoteRequest) { r.Hours = 0.5 }, "hours"},
		{"LongShift", func(r *QuoteRequest) { r.Hours = 25 }, "hours"},
		{"NegativeCrowd", func(r *QuoteRequest) { r.CrowdSize = -1 }, "crowd_size"},
		{"ShortZip", func(r *QuoteRequest) { r.LocationZip = "941" }, "location_zip"},
		{"MissingDate", func(r *QuoteRequest) { r.EventDate = time.Time{} }, "event_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)

			err := req.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 616.0, Round(38.50000000000001*16, 2))
	assert.Equal(t, 0.123, Round(0.12345, 3))
	assert.Equal(t, 2.5, Round(2.499999, 2))
}
