package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/predictor"
	"github.com/guardquote/ml-engine/internal/quote"
)

var (
	_ predictor.Observer = (*Recorder)(nil)
	_ quote.Recorder     = (*Recorder)(nil)
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordRequest("rest", "quote", "ok", 15*time.Millisecond)
	r.RecordRequest("rest", "quote", "ok", 5*time.Millisecond)
	r.RecordRequest("rpc", "risk", "invalid", time.Millisecond)
	r.RecordCache("quote", true)
	r.RecordCache("quote", false)
	r.RecordCache("quote", false)
	r.ObservePrediction("price", domain.PathModel)
	r.ObservePrediction("price", domain.PathFallback)
	r.ObserveDegraded("risk")
	r.ObserveModelState(true)
	r.RecordHTTP("POST", "/api/v1/quote", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("rest", "quote", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("rpc", "risk", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("quote", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("quote", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("price", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.degraded.WithLabelValues("risk")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.modelLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("POST", "/api/v1/quote", "200")))

	r.ObserveModelState(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.modelLoaded))
}

func TestHandler(t *testing.T) {
	r := New()
	r.RecordRequest("bus", "quote", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `guardquote_ml_requests_total{operation="quote",outcome="ok",transport="bus"} 1`))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
