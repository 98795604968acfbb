package predictor

import (
	"context"
	"sync"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/pricing"
)

// Lazy defers loading the artifact until the first call that needs it.
// Concurrent first callers wait for a single load.
type Lazy struct {
	once   sync.Once
	p      *Predictor
	path   string
	engine *pricing.Engine
	opts   []Option
}

// NewLazy returns a predictor that loads path on first use.
func NewLazy(path string, engine *pricing.Engine, opts ...Option) *Lazy {
	return &Lazy{path: path, engine: engine, opts: opts}
}

// Get returns the underlying predictor, loading it if needed.
func (l *Lazy) Get() *Predictor {
	l.once.Do(func() {
		l.p = New(l.path, l.engine, l.opts...)
	})
	return l.p
}

// PredictPrice loads the artifact if needed and predicts the final price.
func (l *Lazy) PredictPrice(ctx context.Context, req *domain.QuoteRequest) PricePrediction {
	return l.Get().PredictPrice(ctx, req)
}

// PredictRisk loads the artifact if needed and predicts the risk level.
func (l *Lazy) PredictRisk(ctx context.Context, req *domain.QuoteRequest) RiskPrediction {
	return l.Get().PredictRisk(ctx, req)
}

// PredictAcceptance loads the artifact if needed and estimates acceptance at finalPrice.
func (l *Lazy) PredictAcceptance(ctx context.Context, req *domain.QuoteRequest, finalPrice float64) (float64, bool) {
	return l.Get().PredictAcceptance(ctx, req, finalPrice)
}

// Reload loads the artifact if needed, then re-reads it from disk.
func (l *Lazy) Reload(ctx context.Context) error {
	return l.Get().Reload(ctx)
}

// Info describes the artifact in service, loading it first if needed.
func (l *Lazy) Info() domain.ModelInfo {
	return l.Get().Info()
}

// Version returns the artifact version, loading it first if needed.
func (l *Lazy) Version() string {
	return l.Get().Version()
}

// Engine returns the rule engine without triggering a load.
func (l *Lazy) Engine() *pricing.Engine {
	return l.engine
}
