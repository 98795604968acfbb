// Package metrics exposes engine measurements to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guardquote/ml-engine/internal/domain"
)

const namespace = "guardquote_ml"

// Recorder implements predictor.Observer and quote.Recorder using Prometheus.
type Recorder struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	predictions  *prometheus.CounterVec
	degraded     *prometheus.CounterVec
	modelLoaded  prometheus.Gauge
	httpRequests *prometheus.CounterVec
}

// New creates a recorder on its own registry, with the Go and process
// collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates a recorder that registers into reg.
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of quote and risk requests served",
			},
			[]string{"transport", "operation", "outcome"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of quote and risk requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"transport", "operation"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Prediction cache lookups by result",
			},
			[]string{"operation", "result"},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Predictions by kind and the path that produced them",
			},
			[]string{"kind", "path"},
		),
		degraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_degraded_total",
				Help:      "Model predictions that failed and were answered by the fallback",
			},
			[]string{"kind"},
		),
		modelLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_loaded",
				Help:      "1 when a trained model is in service, 0 in fallback mode",
			},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordRequest records one served request.
func (r *Recorder) RecordRequest(transport, operation, outcome string, d time.Duration) {
	r.requests.WithLabelValues(transport, operation, outcome).Inc()
	r.latency.WithLabelValues(transport, operation).Observe(d.Seconds())
}

// RecordCache records a prediction cache lookup.
func (r *Recorder) RecordCache(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(operation, result).Inc()
}

// RecordHTTP records a completed HTTP request.
func (r *Recorder) RecordHTTP(method, route string, status int) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// ObservePrediction records which path produced a prediction.
func (r *Recorder) ObservePrediction(kind string, path domain.PredictionPath) {
	r.predictions.WithLabelValues(kind, string(path)).Inc()
}

// ObserveDegraded records a model failure answered by the fallback.
func (r *Recorder) ObserveDegraded(kind string) {
	r.degraded.WithLabelValues(kind).Inc()
}

// ObserveModelState records whether a trained model is in service.
func (r *Recorder) ObserveModelState(loaded bool) {
	if loaded {
		r.modelLoaded.Set(1)
	} else {
		r.modelLoaded.Set(0)
	}
}
