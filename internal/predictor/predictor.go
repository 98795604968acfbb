// Package predictor serves price and risk predictions from a trained model
// artifact, falling back to the rule engine when no usable model is loaded.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/features"
	"github.com/guardquote/ml-engine/internal/model"
	"github.com/guardquote/ml-engine/internal/pricing"
)

// FallbackModelName identifies results computed without the trained model.
const FallbackModelName = "rule-based-fallback"

const (
	minPrice                = 100.00
	priceConfidence         = 0.88
	crowdPriceConfidence    = 0.95
	fallbackPriceConfidence = 0.75
	fallbackRiskConfidence  = 0.70
)

// ErrNonFinite is returned when a model produces NaN or Inf.
var ErrNonFinite = errors.New("model produced a non-finite value")

// State is the predictor's serving mode.
type State int

const (
	StateFallback State = iota
	StateLoaded
)

func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "fallback"
}

// PricePrediction is the predicted final price of a request.
type PricePrediction struct {
	Price      float64
	Confidence float64
	ModelUsed  string
	Path       domain.PredictionPath
}

// RiskPrediction is the predicted risk of a request.
type RiskPrediction struct {
	Level      domain.RiskLevel
	Score      float64
	Confidence float64
	Factors    []string
	ModelUsed  string
	Path       domain.PredictionPath
}

// Observer receives prediction outcomes. Implemented by the metrics recorder.
type Observer interface {
	ObservePrediction(kind string, path domain.PredictionPath)
	ObserveDegraded(kind string)
	ObserveModelState(loaded bool)
}

type nopObserver struct{}

func (nopObserver) ObservePrediction(string, domain.PredictionPath) {}
func (nopObserver) ObserveDegraded(string)                          {}
func (nopObserver) ObserveModelState(bool)                          {}

// snapshot is everything one artifact load produced. It is immutable once
// published, so readers never see a half-swapped model.
type snapshot struct {
	state    State
	artifact *model.Artifact
	models   *model.Models
	encoder  *features.Encoder
	reason   string
	loadedAt time.Time
}

// Predictor is safe for concurrent use.
type Predictor struct {
	path     string
	engine   *pricing.Engine
	current  atomic.Pointer[snapshot]
	reloadMu sync.Mutex
	logger   *slog.Logger
	observer Observer
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Predictor) { p.logger = l }
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(p *Predictor) { p.observer = o }
}

// New loads the artifact at path. It never fails: a missing or unusable
// artifact leaves the predictor in fallback mode with the reason recorded.
func New(path string, engine *pricing.Engine, opts ...Option) *Predictor {
	p := &Predictor{
		path:     path,
		engine:   engine,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}

	snap, err := p.load()
	if err != nil {
		snap = &snapshot{state: StateFallback, reason: err.Error(), loadedAt: time.Now().UTC()}
		p.logger.Warn("model artifact unavailable, using rule-based fallback",
			"path", path,
			"reason", err,
		)
	} else {
		p.logger.Info("model artifact loaded",
			"path", path,
			"version", snap.artifact.Version,
			"price_model", snap.artifact.PriceModelName,
			"trained_at", snap.artifact.TrainedAt,
		)
	}

	p.current.Store(snap)
	p.observer.ObserveModelState(snap.state == StateLoaded)
	return p
}

// load reads, checks and compiles the artifact.
func (p *Predictor) load() (*snapshot, error) {
	a, err := model.Load(p.path)
	if err != nil {
		return nil, err
	}

	if err := features.CheckSchema("price", a.PriceFeatures, features.PriceFeatureNames); err != nil {
		return nil, err
	}
	if err := features.CheckSchema("risk", a.RiskFeatures, features.RiskFeatureNames); err != nil {
		return nil, err
	}
	if a.AcceptModel != nil {
		if err := features.CheckSchema("accept", a.AcceptFeatures, features.AcceptFeatureNames); err != nil {
			return nil, err
		}
	}

	models, err := a.Compile()
	if err != nil {
		return nil, err
	}
	if n := models.Risk.NumClasses(); n != len(domain.RiskLevels) {
		return nil, fmt.Errorf("%w: risk model has %d classes, want %d", model.ErrArtifactCorrupt, n, len(domain.RiskLevels))
	}

	return &snapshot{
		state:    StateLoaded,
		artifact: a,
		models:   models,
		encoder:  features.NewEncoder(a.Encoders.EventType, a.Encoders.State, a.Encoders.RiskZone),
		loadedAt: time.Now().UTC(),
	}, nil
}

// Reload re-reads the artifact and swaps it in atomically. In-flight
// predictions finish on the snapshot they started with. On failure the
// current snapshot stays in service and the error is returned.
func (p *Predictor) Reload(ctx context.Context) error {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	snap, err := p.load()
	if err != nil {
		p.logger.WarnContext(ctx, "model reload failed, keeping current model",
			"path", p.path,
			"state", p.State().String(),
			"error", err,
		)
		return fmt.Errorf("failed to reload model: %w", err)
	}

	p.current.Store(snap)
	p.observer.ObserveModelState(true)
	p.logger.InfoContext(ctx, "model artifact reloaded",
		"path", p.path,
		"version", snap.artifact.Version,
	)
	return nil
}

// State returns the current serving mode.
func (p *Predictor) State() State {
	return p.current.Load().state
}

// Engine returns the rule engine used for fallback.
func (p *Predictor) Engine() *pricing.Engine {
	return p.engine
}

// Version returns the loaded artifact version, or FallbackModelName.
func (p *Predictor) Version() string {
	snap := p.current.Load()
	if snap.state != StateLoaded {
		return FallbackModelName
	}
	return snap.artifact.Version
}

// PredictPrice predicts the final price of a request.
func (p *Predictor) PredictPrice(ctx context.Context, req *domain.QuoteRequest) PricePrediction {
	snap := p.current.Load()
	if snap.state == StateLoaded {
		pred, err := p.modelPrice(snap, req)
		if err == nil {
			p.observer.ObservePrediction("price", domain.PathModel)
			return pred
		}
		p.degrade(ctx, "price", req, err)
	}

	p.observer.ObservePrediction("price", domain.PathFallback)
	return PricePrediction{
		Price:      p.engine.Quote(req).FinalPrice,
		Confidence: fallbackPriceConfidence,
		ModelUsed:  FallbackModelName,
		Path:       domain.PathFallback,
	}
}

// PredictRisk predicts the risk level of a request.
func (p *Predictor) PredictRisk(ctx context.Context, req *domain.QuoteRequest) RiskPrediction {
	snap := p.current.Load()
	if snap.state == StateLoaded {
		pred, err := p.modelRisk(snap, req)
		if err == nil {
			p.observer.ObservePrediction("risk", domain.PathModel)
			return pred
		}
		p.degrade(ctx, "risk", req, err)
	}

	p.observer.ObservePrediction("risk", domain.PathFallback)
	score, _ := p.engine.Score(req)
	return RiskPrediction{
		Level:      domain.RiskLevelFor(score),
		Score:      domain.Round(score, 3),
		Confidence: fallbackRiskConfidence,
		Factors:    pricing.RiskFactors(req),
		ModelUsed:  FallbackModelName,
		Path:       domain.PathFallback,
	}
}

// PredictAcceptance estimates the probability that a client accepts a quote
// at finalPrice. ok is false when no acceptance model is available.
func (p *Predictor) PredictAcceptance(ctx context.Context, req *domain.QuoteRequest, finalPrice float64) (prob float64, ok bool) {
	snap := p.current.Load()
	if snap.state != StateLoaded || snap.models.Accept == nil {
		return 0, false
	}

	defer func() {
		if r := recover(); r != nil {
			p.degrade(ctx, "accept", req, fmt.Errorf("acceptance model panicked: %v", r))
			prob, ok = 0, false
		}
	}()

	x := snap.encoder.Accept(features.NewInput(req, p.engine.Catalog()), finalPrice)
	accepted, err := acceptProbability(snap.models.Accept.PredictProba(x))
	if err != nil {
		p.degrade(ctx, "accept", req, err)
		return 0, false
	}
	return domain.Round(accepted, 3), true
}

// acceptProbability picks the "accepted" class probability out of a
// classifier result.
func acceptProbability(proba []float64, err error) (float64, error) {
	switch {
	case err != nil:
		return 0, fmt.Errorf("acceptance model: %w", err)
	case len(proba) < 2:
		return 0, fmt.Errorf("acceptance model returned %d classes, want 2", len(proba))
	case !finite(proba[1]):
		return 0, fmt.Errorf("%w: acceptance probability %v", ErrNonFinite, proba[1])
	}
	return proba[1], nil
}

// Info describes the artifact currently in service.
func (p *Predictor) Info() domain.ModelInfo {
	snap := p.current.Load()
	if snap.state != StateLoaded {
		return domain.ModelInfo{
			Status:   "not_loaded",
			Message:  "Models not loaded - using rule-based fallback",
			Reason:   snap.reason,
			Path:     p.path,
			LoadedAt: snap.loadedAt,
		}
	}

	a := snap.artifact
	return domain.ModelInfo{
		Status:             "loaded",
		Loaded:             true,
		Path:               p.path,
		Version:            a.Version,
		PriceModelName:     a.PriceModelName,
		TrainedAt:          a.TrainedAt,
		SampleCount:        a.SampleCount,
		PriceFeaturesCount: len(a.PriceFeatures),
		RiskFeaturesCount:  len(a.RiskFeatures),
		HasAcceptanceModel: a.AcceptModel != nil,
		Metrics:            a.Metrics,
		LoadedAt:           snap.loadedAt,
	}
}

func (p *Predictor) modelPrice(snap *snapshot, req *domain.QuoteRequest) (pred PricePrediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("price model panicked: %v", r)
		}
	}()

	x := snap.encoder.Price(features.NewInput(req, p.engine.Catalog()))
	v, err := snap.models.Price.Predict(x)
	if err != nil {
		return pred, err
	}
	if !finite(v) {
		return pred, fmt.Errorf("%w: price %v", ErrNonFinite, v)
	}

	confidence := priceConfidence
	if req.CrowdSize > 0 {
		confidence = crowdPriceConfidence
	}

	return PricePrediction{
		Price:      domain.Round(math.Max(v, minPrice), 2),
		Confidence: confidence,
		ModelUsed:  snap.artifact.PriceModelName,
		Path:       domain.PathModel,
	}, nil
}

func (p *Predictor) modelRisk(snap *snapshot, req *domain.QuoteRequest) (pred RiskPrediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("risk model panicked: %v", r)
		}
	}()

	x := snap.encoder.Risk(features.NewInput(req, p.engine.Catalog()))
	proba, err := snap.models.Risk.PredictProba(x)
	if err != nil {
		return pred, err
	}
	if len(proba) != len(domain.RiskLevels) {
		return pred, fmt.Errorf("risk model returned %d probabilities", len(proba))
	}
	for _, v := range proba {
		if !finite(v) {
			return pred, fmt.Errorf("%w: risk probability %v", ErrNonFinite, v)
		}
	}

	class := model.Argmax(proba)
	name := snap.artifact.RiskModelName
	if name == "" {
		name = snap.artifact.RiskModel.Kind
	}

	return RiskPrediction{
		Level:      domain.RiskLevels[class],
		Score:      domain.Round(proba[class], 3),
		Confidence: domain.Round(proba[class], 3),
		Factors:    pricing.RiskFactors(req),
		ModelUsed:  name,
		Path:       domain.PathModel,
	}, nil
}

// degrade records a per-call model failure. The predictor stays loaded.
func (p *Predictor) degrade(ctx context.Context, kind string, req *domain.QuoteRequest, err error) {
	p.observer.ObserveDegraded(kind)
	p.logger.WarnContext(ctx, "model prediction failed, serving rule-based result",
		"kind", kind,
		"request_id", req.RequestID,
		"event_type", req.EventType,
		"error", err,
	)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
