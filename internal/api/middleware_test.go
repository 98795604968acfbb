package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/guardquote/ml-engine/internal/domain"
)

// countingTracer counts started spans and otherwise behaves as a no-op.
type countingTracer struct {
	noop.Tracer
	starts *atomic.Int32
}

func (t countingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.starts.Add(1)
	return t.Tracer.Start(ctx, name, opts...)
}

type countingProvider struct {
	noop.TracerProvider
	tracer countingTracer
}

func (p countingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer { return p.tracer }

func TestTracingMiddleware(t *testing.T) {
	starts := &atomic.Int32{}
	otel.SetTracerProvider(countingProvider{tracer: countingTracer{starts: starts}})

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("Disabled", func(t *testing.T) {
		starts.Store(0)
		h := TracingMiddleware(domain.TracingConfig{Enabled: false})(ok)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set(RequestIDHeader, "trace-off")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Zero(t, starts.Load())
		assert.Equal(t, "trace-off", rr.Header().Get(RequestIDHeader))
		assert.Equal(t, "trace-off", rr.Header().Get(TraceIDHeader))
	})

	t.Run("Enabled", func(t *testing.T) {
		starts.Store(0)
		h := TracingMiddleware(domain.TracingConfig{Enabled: true, ServiceName: "guardquote-ml"})(ok)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

		assert.Equal(t, int32(1), starts.Load())
		assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	})
}

func TestLoggingSeesForwardedAddress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	server := createTestServer(t, serverOptions{logger: logger})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var found bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == "http request" {
			found = true
			assert.Equal(t, "203.0.113.9", entry["remote_addr"])
		}
	}
	assert.True(t, found)
}

func TestRateLimiterEvictsWhenFull(t *testing.T) {
	l := newRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	l.max = 3
	now := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)

	for i := range 3 {
		l.get(fmt.Sprintf("10.0.0.%d", i), now.Add(time.Duration(i)*time.Second))
	}
	l.get("10.0.0.1", now.Add(5*time.Second))

	// all entries are recent, so the least recently seen one goes
	l.get("10.0.0.9", now.Add(6*time.Second))
	assert.Len(t, l.clients, 3)
	assert.NotContains(t, l.clients, "10.0.0.0")
	assert.Contains(t, l.clients, "10.0.0.1")
	assert.Contains(t, l.clients, "10.0.0.9")

	// idle entries are pruned first
	l.get("10.0.0.8", now.Add(63*time.Second))
	assert.Len(t, l.clients, 3)
	assert.NotContains(t, l.clients, "10.0.0.2")
	assert.Contains(t, l.clients, "10.0.0.1")
	assert.Contains(t, l.clients, "10.0.0.8")
}
