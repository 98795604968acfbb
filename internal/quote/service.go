// Package quote implements the quote and risk business contract shared by
// every transport.
package quote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/predictor"
	"github.com/guardquote/ml-engine/internal/pricing"
	"github.com/guardquote/ml-engine/internal/rules"
)

// Predictor is the model-or-fallback decision point.
// Satisfied by *predictor.Predictor and *predictor.Lazy.
type Predictor interface {
	PredictPrice(ctx context.Context, req *domain.QuoteRequest) predictor.PricePrediction
	PredictRisk(ctx context.Context, req *domain.QuoteRequest) predictor.RiskPrediction
	PredictAcceptance(ctx context.Context, req *domain.QuoteRequest, finalPrice float64) (float64, bool)
	Reload(ctx context.Context) error
	Info() domain.ModelInfo
	Version() string
}

// Recorder receives service-level measurements.
type Recorder interface {
	RecordRequest(transport, operation, outcome string, d time.Duration)
	RecordCache(operation string, hit bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, string, string, time.Duration) {}
func (nopRecorder) RecordCache(string, bool)                            {}

// Operation names used for metrics, logs and audit records.
const (
	OpQuote          = "quote"
	OpQuoteRuleBased = "quote_rule_based"
	OpRisk           = "risk"
)

// Service prices and assesses requests. The repository, cache and event bus
// are optional; when present they are used best-effort and never fail a
// prediction.
type Service struct {
	predictor Predictor
	engine    *pricing.Engine
	rules     *rules.Engine
	repo      domain.Repository
	cache     domain.Cache
	cacheTTL  time.Duration
	bus       domain.EventBus
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRepository enables the prediction audit log and stored recommendation rules.
func WithRepository(r domain.Repository) Option {
	return func(s *Service) { s.repo = r }
}

// WithCache caches model-served predictions for ttl.
func WithCache(c domain.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithEventBus publishes prediction and reload events.
func WithEventBus(b domain.EventBus) Option {
	return func(s *Service) { s.bus = b }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates the shared service. A nil rules engine falls back to the
// built-in recommendation rules.
func NewService(p Predictor, engine *pricing.Engine, re *rules.Engine, opts ...Option) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	if engine == nil {
		engine = pricing.NewEngine(nil)
	}
	if re == nil {
		var err error
		if re, err = rules.NewDefaultEngine(); err != nil {
			return nil, fmt.Errorf("failed to create recommendation engine: %w", err)
		}
	}

	s := &Service{
		predictor: p,
		engine:    engine,
		rules:     re,
		recorder:  nopRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GenerateQuote prices a request through the predictor.
func (s *Service) GenerateQuote(ctx context.Context, req *domain.QuoteRequest) (*domain.QuoteResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		s.finish(ctx, OpQuote, start, err)
		return nil, err
	}

	key := s.cacheKey(OpQuote, req)
	var resp domain.QuoteResponse
	if s.cacheGet(ctx, OpQuote, key, &resp) {
		resp.RequestID = req.RequestID
	} else {
		resp = *s.predictQuote(ctx, req)
		if resp.Path == domain.PathModel {
			s.cacheSet(ctx, key, &resp)
		}
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	resp.PredictionID = s.audit(ctx, OpQuote, req, quoteRecord(&resp), &resp)
	s.publish(ctx, domain.TopicQuoteGenerated, resp.PredictionID, &resp)
	s.finish(ctx, OpQuote, start, nil)
	return &resp, nil
}

// GenerateQuoteRuleBased prices a request with the rule engine only.
func (s *Service) GenerateQuoteRuleBased(ctx context.Context, req *domain.QuoteRequest) (*domain.QuoteResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		s.finish(ctx, OpQuoteRuleBased, start, err)
		return nil, err
	}

	resp := s.engine.Quote(req)
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	resp.PredictionID = s.audit(ctx, OpQuoteRuleBased, req, quoteRecord(resp), resp)
	s.publish(ctx, domain.TopicQuoteGenerated, resp.PredictionID, resp)
	s.finish(ctx, OpQuoteRuleBased, start, nil)
	return resp, nil
}

// AssessRisk scores a request through the predictor and attaches recommendations.
func (s *Service) AssessRisk(ctx context.Context, req *domain.QuoteRequest) (*domain.RiskAssessment, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		s.finish(ctx, OpRisk, start, err)
		return nil, err
	}

	key := s.cacheKey(OpRisk, req)
	var resp domain.RiskAssessment
	if s.cacheGet(ctx, OpRisk, key, &resp) {
		resp.RequestID = req.RequestID
	} else {
		risk := s.predictor.PredictRisk(ctx, req)
		resp = domain.RiskAssessment{
			RequestID:  req.RequestID,
			RiskLevel:  risk.Level,
			RiskScore:  risk.Score,
			Confidence: risk.Confidence,
			Factors:    risk.Factors,
			Recommendations: s.rules.Recommend(rules.Input{
				Request: req,
				Level:   risk.Level,
				Score:   risk.Score,
			}),
			ModelUsed: risk.ModelUsed,
			Path:      risk.Path,
		}
		if resp.Path == domain.PathModel {
			s.cacheSet(ctx, key, &resp)
		}
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	resp.PredictionID = s.audit(ctx, OpRisk, req, riskRecord(&resp), &resp)
	s.publish(ctx, domain.TopicRiskAssessed, resp.PredictionID, &resp)
	s.finish(ctx, OpRisk, start, nil)
	return &resp, nil
}

// predictQuote combines the price and risk predictions into a quote.
func (s *Service) predictQuote(ctx context.Context, req *domain.QuoteRequest) *domain.QuoteResponse {
	price := s.predictor.PredictPrice(ctx, req)
	risk := s.predictor.PredictRisk(ctx, req)

	multiplier := pricing.Multiplier(risk.Score)
	info := s.engine.EventInfo(req.EventType)

	armed := 0.0
	if req.IsArmed {
		armed = pricing.ArmedPremium
	}
	vehicle := 0.0
	if req.RequiresVehicle {
		vehicle = pricing.VehiclePremium * float64(req.NumGuards)
	}
	// a floored model price can fall below the vehicle premium
	labor := max(price.Price-vehicle, 0)
	guardHours := req.Hours * float64(req.NumGuards)

	resp := &domain.QuoteResponse{
		RequestID:       req.RequestID,
		BasePrice:       domain.Round(price.Price/multiplier, 2),
		RiskMultiplier:  domain.Round(multiplier, 3),
		FinalPrice:      price.Price,
		RiskLevel:       risk.Level,
		RiskScore:       risk.Score,
		ConfidenceScore: price.Confidence,
		Breakdown: domain.QuoteBreakdown{
			BaseHourlyRate:     info.BaseRate,
			ArmedPremium:       armed,
			AdjustedHourlyRate: domain.Round(labor/guardHours, 2),
			LaborCost:          domain.Round(labor, 2),
			VehicleCost:        vehicle,
			RiskFactors:        risk.Factors,
			ModelUsed:          price.ModelUsed,
			NumGuards:          req.NumGuards,
			Hours:              req.Hours,
			IsArmed:            req.IsArmed,
			HasVehicle:         req.RequiresVehicle,
		},
		ModelUsed: price.ModelUsed,
		Path:      price.Path,
	}

	if prob, ok := s.predictor.PredictAcceptance(ctx, req, price.Price); ok {
		resp.AcceptanceProbability = &prob
	}
	return resp
}

// GetPrediction returns an audit record by id.
func (s *Service) GetPrediction(ctx context.Context, id string) (*domain.PredictionRecord, error) {
	if s.repo == nil {
		return nil, ErrAuditDisabled
	}
	return s.repo.GetPrediction(ctx, id)
}

// EventTypes returns the event type catalog sorted by code.
func (s *Service) EventTypes() []domain.EventTypeInfo {
	return s.engine.Catalog().EventTypes()
}

// ModelInfo describes the artifact in service.
func (s *Service) ModelInfo() domain.ModelInfo {
	return s.predictor.Info()
}

// ReloadModel re-reads the artifact. On failure the current model stays in service.
func (s *Service) ReloadModel(ctx context.Context) (domain.ModelInfo, error) {
	if err := s.predictor.Reload(ctx); err != nil {
		return s.predictor.Info(), err
	}

	info := s.predictor.Info()
	s.publish(ctx, domain.TopicModelReloaded, "", info)
	return info, nil
}

func (s *Service) cacheKey(op string, req *domain.QuoteRequest) string {
	if s.cache == nil {
		return ""
	}
	keyed := *req
	keyed.RequestID = ""
	data, _ := json.Marshal(&keyed)
	sum := sha256.Sum256(data)
	return op + ":" + s.predictor.Version() + ":" + hex.EncodeToString(sum[:])
}

func (s *Service) cacheGet(ctx context.Context, op, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache get failed", "key", key, "error", err)
	}
	hit := err == nil && data != nil && json.Unmarshal(data, dst) == nil
	s.recorder.RecordCache(op, hit)
	return hit
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

// audit writes the prediction log entry and returns its id, or "" when the
// log is disabled or the write failed.
func (s *Service) audit(ctx context.Context, op string, req *domain.QuoteRequest, rec *domain.PredictionRecord, payload any) string {
	if s.repo == nil {
		return ""
	}

	rec.ID = uuid.New().String()
	rec.RequestID = req.RequestID
	rec.Kind = domain.PredictionKind(op)
	rec.Transport = TransportFrom(ctx)
	rec.EventType = req.EventType
	rec.LocationZip = req.LocationZip
	rec.CreatedAt = time.Now().UTC()
	if data, err := json.Marshal(payload); err == nil {
		rec.Payload = data
	}

	if err := s.repo.SavePrediction(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to save prediction",
			"operation", op,
			"request_id", req.RequestID,
			"error", err,
		)
		return ""
	}
	return rec.ID
}

func (s *Service) publish(ctx context.Context, topic, predictionID string, v any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(event{PredictionID: predictionID, Transport: TransportFrom(ctx), Data: v})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, topic, payload); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "topic", topic, "error", err)
	}
}

func (s *Service) finish(ctx context.Context, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "invalid"
	}
	d := time.Since(start)
	s.recorder.RecordRequest(TransportFrom(ctx), op, outcome, d)
	s.logger.DebugContext(ctx, "prediction served",
		"operation", op,
		"transport", TransportFrom(ctx),
		"outcome", outcome,
		"duration_ms", d.Milliseconds(),
	)
}

// event is the bus payload for prediction and reload notifications.
type event struct {
	PredictionID string `json:"prediction_id,omitempty"`
	Transport    string `json:"transport,omitempty"`
	Data         any    `json:"data"`
}

func quoteRecord(r *domain.QuoteResponse) *domain.PredictionRecord {
	return &domain.PredictionRecord{
		ModelUsed:  r.ModelUsed,
		Path:       r.Path,
		FinalPrice: r.FinalPrice,
		RiskLevel:  r.RiskLevel,
		RiskScore:  r.RiskScore,
		Confidence: r.ConfidenceScore,
	}
}

func riskRecord(r *domain.RiskAssessment) *domain.PredictionRecord {
	return &domain.PredictionRecord{
		ModelUsed:  r.ModelUsed,
		Path:       r.Path,
		RiskLevel:  r.RiskLevel,
		RiskScore:  r.RiskScore,
		Confidence: r.Confidence,
	}
}
