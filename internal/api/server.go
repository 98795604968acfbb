package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/quote"
)

// Metrics is the recorder the server reports to and exposes on /metrics.
type Metrics interface {
	HTTPRecorder
	Handler() http.Handler
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// Option configures a Server.
type Option func(*options)

type options struct {
	metrics   Metrics
	rateLimit domain.RateLimitConfig
	tracing   domain.TracingConfig
	logger    *slog.Logger
	version   string
}

// WithMetrics records request metrics and serves GET /metrics.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRateLimit enables per-client rate limiting on the /api/v1 routes.
func WithRateLimit(cfg domain.RateLimitConfig) Option {
	return func(o *options) { o.rateLimit = cfg }
}

// WithTracing records a span per request when cfg.Enabled.
func WithTracing(cfg domain.TracingConfig) Option {
	return func(o *options) { o.tracing = cfg }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithVersion sets the build version reported by /health.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, service *quote.Service, opts ...Option) *Server {
	o := options{logger: slog.Default(), version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	handler := NewHandler(service, o.version, cfg.MaxBatchSize, o.logger)
	router := chi.NewRouter()

	allowed := cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	// Global middleware stack
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader, TraceIDHeader, "Authorization"},
		ExposedHeaders: []string{RequestIDHeader, TraceIDHeader},
		MaxAge:         86400,
	}))
	router.Use(middleware.RealIP)
	router.Use(RecoverMiddleware(o.logger))
	router.Use(TracingMiddleware(o.tracing))
	router.Use(LoggingMiddleware(o.logger, o.metrics))
	router.Use(middleware.Compress(5))

	if o.metrics != nil {
		router.Method(http.MethodGet, "/metrics", o.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Probes are never rate limited
		r.Get("/health", handler.Health)
		r.Get("/ready", handler.Ready)

		r.Group(func(r chi.Router) {
			if o.rateLimit.Enabled {
				r.Use(RateLimitMiddleware(o.rateLimit))
			}

			// Pricing and risk
			r.Post("/quote", handler.Quote)
			r.Post("/quote/rule-based", handler.QuoteRuleBased)
			r.Post("/risk-assessment", handler.RiskAssessment)
			r.Post("/quotes/batch", handler.QuotesBatch)
			r.Post("/risk-assessment/batch", handler.RiskBatch)

			// Reference data and model
			r.Get("/event-types", handler.EventTypes)
			r.Get("/model-info", handler.ModelInfo)
			r.Post("/model/reload", handler.ReloadModel)

			// Prediction log
			r.Get("/predictions/{id}", handler.GetPrediction)

			// Recommendation rules
			r.Get("/recommendation-rules", handler.ListRecommendationRules)
			r.Post("/recommendation-rules", handler.CreateRecommendationRule)
			r.Post("/recommendation-rules/reload", handler.ReloadRecommendationRules)
		})
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
