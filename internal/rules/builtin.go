package rules

import "github.com/guardquote/ml-engine/internal/domain"

// BuiltinRules returns the recommendation rules used when none are stored.
func BuiltinRules() []*domain.RecommendationRule {
	return []*domain.RecommendationRule{
		{
			ID:         "additional-guards",
			Name:       "Additional guards",
			Expression: `risk_level in ["high", "critical"]`,
			Message:    "Consider additional guards for high-risk scenario",
			Priority:   10,
			Enabled:    true,
		},
		{
			ID:         "armed-large-crowd",
			Name:       "Armed security for large crowds",
			Expression: `crowd_size > 500 && !is_armed`,
			Message:    "Armed security recommended for large crowds",
			Priority:   20,
			Enabled:    true,
		},
		{
			ID:         "night-equipment",
			Name:       "Night equipment",
			Expression: `is_night`,
			Message:    "Ensure proper lighting and communication equipment",
			Priority:   30,
			Enabled:    true,
		},
		{
			ID:         "law-enforcement",
			Name:       "Law enforcement coordination",
			Expression: `risk_level == "critical"`,
			Message:    "Coordinate with local law enforcement",
			Priority:   40,
			Enabled:    true,
		},
	}
}
