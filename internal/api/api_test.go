package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardquote/ml-engine/internal/catalog"
	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/metrics"
	"github.com/guardquote/ml-engine/internal/model/modeltest"
	"github.com/guardquote/ml-engine/internal/predictor"
	"github.com/guardquote/ml-engine/internal/pricing"
	"github.com/guardquote/ml-engine/internal/quote"
	"github.com/guardquote/ml-engine/internal/repository"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type serverOptions struct {
	artifact  string
	noRepo    bool
	maxBatch  int
	rateLimit domain.RateLimitConfig
	logger    *slog.Logger
}

// createTestServer wires a server over the fixture model and an in-memory repository.
func createTestServer(t *testing.T, so serverOptions) *Server {
	t.Helper()

	if so.artifact == "" {
		so.artifact = modeltest.Write(t, modeltest.Artifact())
	}
	engine := pricing.NewEngine(catalog.Default())

	var svcOpts []quote.Option
	if !so.noRepo {
		repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		svcOpts = append(svcOpts, quote.WithRepository(repo))
	}
	svc, err := quote.NewService(predictor.New(so.artifact, engine), engine, nil, svcOpts...)
	require.NoError(t, err)

	cfg := domain.DefaultConfig().Server
	if so.maxBatch > 0 {
		cfg.MaxBatchSize = so.maxBatch
	}
	if so.logger == nil {
		so.logger = discard
	}
	return NewServer(cfg, svc,
		WithLogger(so.logger),
		WithVersion("test-v1"),
		WithMetrics(metrics.New()),
		WithRateLimit(so.rateLimit),
	)
}

func corporateBody() QuoteRequest {
	return QuoteRequest{
		EventType:   "corporate",
		LocationZip: "94102",
		NumGuards:   2,
		Hours:       8,
		EventDate:   time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC),
	}
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func TestQuoteEndpoint(t *testing.T) {
	server := createTestServer(t, serverOptions{})

	t.Run("Success", func(t *testing.T) {
		body := corporateBody()
		body.RequestID = "req-42"
		rr := do(t, server, http.MethodPost, "/api/v1/quote", body)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp QuoteResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "req-42", resp.RequestID)
		assert.Equal(t, 740.00, resp.FinalPrice)
		assert.Equal(t, "low", resp.RiskLevel)
		assert.Equal(t, domain.PathModel, resp.Path)
		assert.NotEmpty(t, resp.PredictionID)
		assert.NotNil(t, resp.AcceptanceProbability)
		assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	})

	t.Run("RequestIDFromHeader", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(corporateBody()))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quote", &buf)
		req.Header.Set(RequestIDHeader, "hdr-7")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp QuoteResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "hdr-7", resp.RequestID)
		assert.Equal(t, "hdr-7", rr.Header().Get(RequestIDHeader))
	})

	t.Run("UnknownEventTypePricesAsCorporate", func(t *testing.T) {
		want := do(t, server, http.MethodPost, "/api/v1/quote/rule-based", corporateBody())
		var exp QuoteResponse
		require.NoError(t, json.Unmarshal(want.Body.Bytes(), &exp))

		for _, code := range []string{"moon_landing", ""} {
			body := corporateBody()
			body.EventType = code
			rr := do(t, server, http.MethodPost, "/api/v1/quote/rule-based", body)
			require.Equal(t, http.StatusOK, rr.Code, code)

			var got QuoteResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, exp.FinalPrice, got.FinalPrice, code)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		body := corporateBody()
		body.NumGuards = 0
		body.Hours = 25
		rr := do(t, server, http.MethodPost, "/api/v1/quote", body)
		require.Equal(t, http.StatusBadRequest, rr.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "invalid request")
		require.Len(t, resp.Details, 2)
		assert.Equal(t, "num_guards", resp.Details[0].Field)
		assert.Equal(t, "hours", resp.Details[1].Field)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/v1/quote", "not-json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRuleBasedQuoteEndpoint(t *testing.T) {
	server := createTestServer(t, serverOptions{})

	rr := do(t, server, http.MethodPost, "/api/v1/quote/rule-based", corporateBody())
	require.Equal(t, http.StatusOK, rr.Code)

	var resp QuoteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, domain.PathRuleBased, resp.Path)
	assert.Equal(t, pricing.ModelName, resp.ModelUsed)
}

func TestRiskAssessmentEndpoint(t *testing.T) {
	server := createTestServer(t, serverOptions{})

	body := corporateBody()
	body.IsArmed = true
	body.CrowdSize = 2000
	rr := do(t, server, http.MethodPost, "/api/v1/risk-assessment", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp RiskResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "critical", resp.RiskLevel)
	assert.Contains(t, resp.Recommendations, "Coordinate with local law enforcement")
	assert.Contains(t, resp.Factors, "Large crowd expected: 2,000 people")
}

func readLines(t *testing.T, rr *httptest.ResponseRecorder) []BatchLine {
	t.Helper()
	var lines []BatchLine
	sc := bufio.NewScanner(rr.Body)
	for sc.Scan() {
		var line BatchLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		lines = append(lines, line)
	}
	return lines
}

func ndjson(t *testing.T, bodies ...QuoteRequest) string {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, b := range bodies {
		require.NoError(t, enc.Encode(b))
	}
	return buf.String()
}

func TestBatchEndpoints(t *testing.T) {
	server := createTestServer(t, serverOptions{maxBatch: 3})

	t.Run("QuotesInOrderWithElementError", func(t *testing.T) {
		bad := corporateBody()
		bad.NumGuards = 0
		armed := corporateBody()
		armed.IsArmed = true

		rr := do(t, server, http.MethodPost, "/api/v1/quotes/batch", ndjson(t, corporateBody(), bad, armed))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, NDJSONContentType, rr.Header().Get("Content-Type"))

		lines := readLines(t, rr)
		require.Len(t, lines, 3)
		for i, line := range lines {
			assert.Equal(t, i, line.Index)
		}
		require.NotNil(t, lines[0].Quote)
		assert.Equal(t, 740.00, lines[0].Quote.FinalPrice)
		assert.Nil(t, lines[1].Quote)
		assert.Contains(t, lines[1].Error, "num_guards")
		require.NotNil(t, lines[2].Quote)
		assert.Equal(t, 940.00, lines[2].Quote.FinalPrice)
		assert.Equal(t, "high", lines[2].Quote.RiskLevel)
	})

	t.Run("BatchMatchesSingleCall", func(t *testing.T) {
		single := do(t, server, http.MethodPost, "/api/v1/risk-assessment", corporateBody())
		var want RiskResponse
		require.NoError(t, json.Unmarshal(single.Body.Bytes(), &want))

		rr := do(t, server, http.MethodPost, "/api/v1/risk-assessment/batch", ndjson(t, corporateBody()))
		lines := readLines(t, rr)
		require.Len(t, lines, 1)
		require.NotNil(t, lines[0].Risk)
		assert.Equal(t, want.RiskLevel, lines[0].Risk.RiskLevel)
		assert.Equal(t, want.RiskScore, lines[0].Risk.RiskScore)
		assert.Equal(t, want.Factors, lines[0].Risk.Factors)
		assert.Equal(t, want.Recommendations, lines[0].Risk.Recommendations)
	})

	t.Run("MalformedLineContinues", func(t *testing.T) {
		for name, bad := range map[string]string{
			"Syntax":    "{broken",
			"WrongType": `{"num_guards":"two"}`,
		} {
			t.Run(name, func(t *testing.T) {
				armed := corporateBody()
				armed.IsArmed = true
				first := ndjson(t, corporateBody())
				rest := ndjson(t, corporateBody(), armed)
				body := first + bad + "\n" + rest

				server := createTestServer(t, serverOptions{maxBatch: 10})
				rr := do(t, server, http.MethodPost, "/api/v1/quotes/batch", body)

				lines := readLines(t, rr)
				require.Len(t, lines, 4)
				for i, line := range lines {
					assert.Equal(t, i, line.Index)
				}
				assert.NotNil(t, lines[0].Quote)
				assert.Nil(t, lines[1].Quote)
				assert.Contains(t, lines[1].Error, "invalid batch line 2")
				require.NotNil(t, lines[2].Quote)
				assert.Equal(t, 740.00, lines[2].Quote.FinalPrice)
				require.NotNil(t, lines[3].Quote)
				assert.Equal(t, 940.00, lines[3].Quote.FinalPrice)
			})
		}
	})

	t.Run("BlankLinesIgnored", func(t *testing.T) {
		body := "\n" + ndjson(t, corporateBody()) + "\n\n"
		rr := do(t, server, http.MethodPost, "/api/v1/quotes/batch", body)

		lines := readLines(t, rr)
		require.Len(t, lines, 1)
		assert.NotNil(t, lines[0].Quote)
	})

	t.Run("OversizedBatch", func(t *testing.T) {
		body := ndjson(t, corporateBody(), corporateBody(), corporateBody(), corporateBody())
		rr := do(t, server, http.MethodPost, "/api/v1/quotes/batch", body)

		lines := readLines(t, rr)
		require.Len(t, lines, 4)
		assert.Contains(t, lines[3].Error, "maximum of 3")
	})

	t.Run("Empty", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/v1/quotes/batch", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, readLines(t, rr))
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("Model", func(t *testing.T) {
		server := createTestServer(t, serverOptions{})
		rr := do(t, server, http.MethodGet, "/api/v1/health", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, true, resp["model_loaded"])
		assert.Equal(t, "model", resp["mode"])
		assert.Equal(t, "test-v1", resp["version"])
	})

	t.Run("FallbackStillServes", func(t *testing.T) {
		server := createTestServer(t, serverOptions{artifact: "/nonexistent/model.json"})

		rr := do(t, server, http.MethodGet, "/api/v1/health", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"mode":"fallback"`)

		rr = do(t, server, http.MethodPost, "/api/v1/quote", corporateBody())
		require.Equal(t, http.StatusOK, rr.Code)
		var resp QuoteResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, domain.PathFallback, resp.Path)
		assert.Equal(t, predictor.FallbackModelName, resp.ModelUsed)
	})

	t.Run("Ready", func(t *testing.T) {
		server := createTestServer(t, serverOptions{})
		rr := do(t, server, http.MethodGet, "/api/v1/ready", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"repository":"ok"`)
	})
}

func TestReferenceEndpoints(t *testing.T) {
	server := createTestServer(t, serverOptions{})

	t.Run("EventTypes", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/api/v1/event-types", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			EventTypes []EventTypeResponse `json:"event_types"`
			Count      int                 `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 14, resp.Count)
		assert.Len(t, resp.EventTypes, 14)
	})

	t.Run("ModelInfo", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/api/v1/model-info", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var info domain.ModelInfo
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
		assert.Equal(t, "loaded", info.Status)
		assert.Equal(t, modeltest.Version, info.Version)
		assert.Equal(t, modeltest.PriceModelName, info.PriceModelName)
	})

	t.Run("ModelReload", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/v1/model/reload", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), modeltest.Version)
	})

	t.Run("ModelReloadFailureKeepsFallback", func(t *testing.T) {
		fallback := createTestServer(t, serverOptions{artifact: "/nonexistent/model.json"})
		rr := do(t, fallback, http.MethodPost, "/api/v1/model/reload", nil)
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), `"status":"not_loaded"`)
	})
}

func TestPredictionEndpoint(t *testing.T) {
	server := createTestServer(t, serverOptions{})

	rr := do(t, server, http.MethodPost, "/api/v1/quote", corporateBody())
	require.Equal(t, http.StatusOK, rr.Code)
	var q QuoteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &q))

	t.Run("Found", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/api/v1/predictions/"+q.PredictionID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var rec domain.PredictionRecord
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
		assert.Equal(t, q.PredictionID, rec.ID)
		assert.Equal(t, quote.TransportREST, rec.Transport)
		assert.Equal(t, domain.KindQuote, rec.Kind)
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/api/v1/predictions/missing", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("NoRepository", func(t *testing.T) {
		bare := createTestServer(t, serverOptions{noRepo: true})
		rr := do(t, bare, http.MethodGet, "/api/v1/predictions/any", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestRecommendationRuleEndpoints(t *testing.T) {
	server := createTestServer(t, serverOptions{})

	t.Run("ListBuiltins", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/api/v1/recommendation-rules", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"count":4`)
	})

	t.Run("CreateAppliesImmediately", func(t *testing.T) {
		rule := domain.RecommendationRule{
			ID:         "vip-escort",
			Name:       "VIP escort",
			Expression: `event_type == "vip_protection"`,
			Message:    "Assign a close-protection lead",
			Priority:   1,
			Enabled:    true,
		}
		rr := do(t, server, http.MethodPost, "/api/v1/recommendation-rules", rule)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		body := corporateBody()
		body.EventType = "vip_protection"
		rr = do(t, server, http.MethodPost, "/api/v1/risk-assessment", body)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Assign a close-protection lead")
	})

	t.Run("InvalidExpression", func(t *testing.T) {
		rule := domain.RecommendationRule{Name: "bad", Expression: "crowd_size +", Message: "x", Enabled: true}
		rr := do(t, server, http.MethodPost, "/api/v1/recommendation-rules", rule)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Reload", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/v1/recommendation-rules/reload", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"count":1`)
	})

	t.Run("ReadOnlyWithoutRepository", func(t *testing.T) {
		bare := createTestServer(t, serverOptions{noRepo: true})
		rule := domain.RecommendationRule{Name: "n", Expression: "true", Message: "m", Enabled: true}
		rr := do(t, bare, http.MethodPost, "/api/v1/recommendation-rules", rule)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Metrics", func(t *testing.T) {
		server := createTestServer(t, serverOptions{})
		do(t, server, http.MethodPost, "/api/v1/quote", corporateBody())

		rr := do(t, server, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `guardquote_ml_http_requests_total{code="200",method="POST",route="/api/v1/quote"} 1`)
	})

	t.Run("RateLimit", func(t *testing.T) {
		server := createTestServer(t, serverOptions{rateLimit: domain.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 0.001,
			Burst:             1,
		}})

		first := do(t, server, http.MethodGet, "/api/v1/event-types", nil)
		assert.Equal(t, http.StatusOK, first.Code)

		second := do(t, server, http.MethodGet, "/api/v1/event-types", nil)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.NotEmpty(t, second.Header().Get("Retry-After"))

		// probes bypass the limiter
		health := do(t, server, http.MethodGet, "/api/v1/health", nil)
		assert.Equal(t, http.StatusOK, health.Code)
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		server := createTestServer(t, serverOptions{})
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/quote", nil)
		req.Header.Set("Origin", "https://app.guardquote.io")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Recover", func(t *testing.T) {
		h := RecoverMiddleware(discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.True(t, strings.Contains(rr.Body.String(), "internal server error"))
	})
}
