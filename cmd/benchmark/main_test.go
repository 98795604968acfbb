package main

import (
	"strings"
	"testing"
	"time"
)

func TestParseSamples(t *testing.T) {
	data := `event_type,location_zip,num_guards,hours,event_date,is_armed,requires_vehicle,crowd_size,price
corporate,94102,2,8,2026-03-10T14:00:00Z,false,false,0,760.50
concert,10001,4,6,2026-03-14T20:00:00Z,true,true,2500,
broken,row
sports,60601,3,5,not-a-date,false,false,0,500
`
	samples, err := parseSamples(strings.NewReader(data), 0)
	if err != nil {
		t.Fatalf("parseSamples failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}

	first := samples[0]
	if first.Request.EventType != "corporate" || first.Request.NumGuards != 2 || first.Request.Hours != 8 {
		t.Errorf("unexpected first request: %+v", first.Request)
	}
	if !first.Labelled || first.Price != 760.50 {
		t.Errorf("expected label 760.50, got %v (%v)", first.Price, first.Labelled)
	}

	second := samples[1]
	if !second.Request.IsArmed || !second.Request.RequiresVehicle || second.Request.CrowdSize != 2500 {
		t.Errorf("unexpected second request: %+v", second.Request)
	}
	if second.Labelled {
		t.Error("expected unlabelled second sample")
	}
	if !second.Request.EventDate.Equal(time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected event date %v", second.Request.EventDate)
	}
}

func TestParseSamplesLimitAndHeader(t *testing.T) {
	data := "event_type,location_zip,num_guards,hours,event_date\n" +
		"corporate,94102,2,8,2026-03-10T14:00:00Z\n" +
		"corporate,94102,2,8,2026-03-11T14:00:00Z\n"

	samples, err := parseSamples(strings.NewReader(data), 1)
	if err != nil {
		t.Fatalf("parseSamples failed: %v", err)
	}
	if len(samples) != 1 {
		t.Errorf("expected limit of 1, got %d", len(samples))
	}

	if _, err := parseSamples(strings.NewReader("event_type,hours\n"), 0); err == nil {
		t.Error("expected error for missing columns")
	}
}

func TestPercentile(t *testing.T) {
	var d []time.Duration
	for i := 1; i <= 100; i++ {
		d = append(d, time.Duration(i)*time.Millisecond)
	}

	tests := []struct {
		p    float64
		want time.Duration
	}{
		{50, 50 * time.Millisecond},
		{95, 95 * time.Millisecond},
		{99, 99 * time.Millisecond},
		{100, 100 * time.Millisecond},
		{0, 1 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := percentile(d, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile of empty = %v", got)
	}
}
