package quote

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/rules"
)

// RecommendationRules returns the loaded rules in evaluation order.
func (s *Service) RecommendationRules() []*domain.RecommendationRule {
	return s.rules.GetLoadedRules()
}

// SaveRecommendationRule validates and stores a rule, then reloads the rule set.
func (s *Service) SaveRecommendationRule(ctx context.Context, rule *domain.RecommendationRule) error {
	if s.repo == nil {
		return ErrRulesReadOnly
	}
	if err := s.rules.ValidateRule(rule); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if err := s.repo.SaveRecommendationRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	_, err := s.ReloadRecommendationRules(ctx)
	return err
}

// ReloadRecommendationRules loads the stored rules, or the built-in rules when
// none are stored, and returns how many are enabled.
func (s *Service) ReloadRecommendationRules(ctx context.Context) (int, error) {
	configs := rules.BuiltinRules()
	if s.repo != nil {
		stored, err := s.repo.ListRecommendationRules(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list rules: %w", err)
		}
		if len(stored) > 0 {
			configs = stored
		}
	}

	if err := s.rules.ReloadRules(configs); err != nil {
		return 0, err
	}

	count := s.rules.RulesCount()
	s.logger.InfoContext(ctx, "recommendation rules loaded", "count", count)
	return count, nil
}
