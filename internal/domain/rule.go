package domain

// RecommendationRule maps a CEL condition over an assessed request to an
// advisory message.
type RecommendationRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// CEL expression; must evaluate to bool
	Expression string `json:"expression"`

	// Message returned when the expression is true
	Message string `json:"message"`

	// Lower priority values are emitted first
	Priority int `json:"priority"`

	Enabled bool `json:"enabled"`
}

// DefaultRecommendation is returned when no rule matches.
const DefaultRecommendation = "Standard protocols apply"
