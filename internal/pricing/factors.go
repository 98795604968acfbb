package pricing

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/guardquote/ml-engine/internal/domain"
)

const (
	largeCrowdFactor  = 1000
	mediumCrowdFactor = 500
)

var printer = message.NewPrinter(language.English)

// RiskFactors describes a request's risk drivers in plain text. The result
// depends only on the request, never on which model scored it.
func RiskFactors(req *domain.QuoteRequest) []string {
	var factors []string

	if req.EventType.HighActivity() {
		factors = append(factors, fmt.Sprintf("High-activity event type: %s", req.EventType))
	}

	switch {
	case req.CrowdSize > largeCrowdFactor:
		factors = append(factors, printer.Sprintf("Large crowd expected: %d people", req.CrowdSize))
	case req.CrowdSize > mediumCrowdFactor:
		factors = append(factors, printer.Sprintf("Medium crowd size: %d people", req.CrowdSize))
	}

	if req.IsWeekend() {
		factors = append(factors, "Weekend event (higher demand)")
	}
	if req.IsNight() {
		factors = append(factors, "Night shift required")
	}
	if req.IsArmed {
		factors = append(factors, "Armed security requested")
	}

	if len(factors) == 0 {
		return []string{"Standard risk profile"}
	}
	return factors
}
