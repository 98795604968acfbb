// Package rules provides the CEL-Go based recommendation engine.
package rules

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/guardquote/ml-engine/internal/domain"
)

// Engine turns an assessed request into advisory recommendations.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules []*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RecommendationRule
	Program cel.Program
}

// Input is the data a rule can see.
type Input struct {
	Request *domain.QuoteRequest
	Level   domain.RiskLevel
	Score   float64
}

// NewEngine creates a recommendation engine with no rules loaded.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("event_type", cel.StringType),
		cel.Variable("location_zip", cel.StringType),
		cel.Variable("num_guards", cel.IntType),
		cel.Variable("hours", cel.DoubleType),
		cel.Variable("crowd_size", cel.IntType),
		cel.Variable("is_armed", cel.BoolType),
		cel.Variable("requires_vehicle", cel.BoolType),
		cel.Variable("is_night", cel.BoolType),
		cel.Variable("is_weekend", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// NewDefaultEngine creates an engine loaded with BuiltinRules.
func NewDefaultEngine() (*Engine, error) {
	e, err := NewEngine()
	if err != nil {
		return nil, err
	}
	if err := e.ReloadRules(BuiltinRules()); err != nil {
		return nil, err
	}
	return e, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.RecommendationRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	if cfg.Message == "" {
		return fmt.Errorf("rule %s: message is required", cfg.ID)
	}

	_, err := e.compileRule(cfg)
	return err
}

// ReloadRules replaces the loaded rules. Disabled rules are skipped. On error
// the previous rules stay loaded.
func (e *Engine) ReloadRules(configs []*domain.RecommendationRule) error {
	compiled := make([]*CompiledRule, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		c, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}

	slices.SortStableFunc(compiled, func(a, b *CompiledRule) int {
		return a.Config.Priority - b.Config.Priority
	})

	e.mu.Lock()
	e.compiledRules = compiled
	e.mu.Unlock()
	return nil
}

// Recommend returns the message of every matching rule in priority order,
// or DefaultRecommendation when none match. Rules that fail to evaluate are
// skipped.
func (e *Engine) Recommend(in Input) []string {
	e.mu.RLock()
	rules := e.compiledRules
	e.mu.RUnlock()

	req := in.Request
	activation := map[string]any{
		"risk_level":       string(in.Level),
		"risk_score":       in.Score,
		"event_type":       string(req.EventType),
		"location_zip":     req.LocationZip,
		"num_guards":       int64(req.NumGuards),
		"hours":            req.Hours,
		"crowd_size":       int64(req.CrowdSize),
		"is_armed":         req.IsArmed,
		"requires_vehicle": req.RequiresVehicle,
		"is_night":         req.IsNight(),
		"is_weekend":       req.IsWeekend(),
	}

	var out []string
	for _, rule := range rules {
		val, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		if b, ok := val.(types.Bool); ok && bool(b) {
			out = append(out, rule.Config.Message)
		}
	}

	if len(out) == 0 {
		return []string{domain.DefaultRecommendation}
	}
	return out
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the loaded rule configurations in evaluation order.
func (e *Engine) GetLoadedRules() []*domain.RecommendationRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RecommendationRule, len(e.compiledRules))
	for i, compiled := range e.compiledRules {
		rules[i] = compiled.Config
	}
	return rules
}

func (e *Engine) compileRule(cfg *domain.RecommendationRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
