package predictor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardquote/ml-engine/internal/catalog"
	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/model"
	"github.com/guardquote/ml-engine/internal/model/modeltest"
	"github.com/guardquote/ml-engine/internal/pricing"
)

var tuesdayAfternoon = time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)

func corporateRequest() *domain.QuoteRequest {
	return &domain.QuoteRequest{
		RequestID:   "req-1",
		EventType:   domain.EventCorporate,
		LocationZip: "94102",
		NumGuards:   2,
		Hours:       8,
		EventDate:   tuesdayAfternoon,
	}
}

type recordingObserver struct {
	mu          sync.Mutex
	predictions map[string]int
	degraded    map[string]int
	states      []bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{predictions: map[string]int{}, degraded: map[string]int{}}
}

func (o *recordingObserver) ObservePrediction(kind string, path domain.PredictionPath) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.predictions[kind+"/"+string(path)]++
}

func (o *recordingObserver) ObserveDegraded(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degraded[kind]++
}

func (o *recordingObserver) ObserveModelState(loaded bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, loaded)
}

func engine() *pricing.Engine {
	return pricing.NewEngine(catalog.Default())
}

func TestPredictor_Loaded(t *testing.T) {
	path := modeltest.Write(t, modeltest.Artifact())
	p := New(path, engine())
	ctx := context.Background()

	require.Equal(t, StateLoaded, p.State())
	assert.Equal(t, modeltest.Version, p.Version())

	t.Run("Price", func(t *testing.T) {
		pred := p.PredictPrice(ctx, corporateRequest())

		// 100 + 40*16
		assert.Equal(t, 740.00, pred.Price)
		assert.Equal(t, 0.88, pred.Confidence)
		assert.Equal(t, modeltest.PriceModelName, pred.ModelUsed)
		assert.Equal(t, domain.PathModel, pred.Path)
	})

	t.Run("PriceWithCrowdRaisesConfidence", func(t *testing.T) {
		req := corporateRequest()
		req.CrowdSize = 300

		pred := p.PredictPrice(ctx, req)

		assert.Equal(t, 743.00, pred.Price)
		assert.Equal(t, 0.95, pred.Confidence)
	})

	t.Run("PriceIsFlooredAt100", func(t *testing.T) {
		a := modeltest.Artifact()
		a.PriceModel.Intercept = -5000
		low := New(modeltest.Write(t, a), engine())

		pred := low.PredictPrice(ctx, corporateRequest())

		assert.Equal(t, 100.00, pred.Price)
		assert.Equal(t, domain.PathModel, pred.Path)
	})

	t.Run("RiskUnarmed", func(t *testing.T) {
		pred := p.PredictRisk(ctx, corporateRequest())

		assert.Equal(t, domain.RiskLow, pred.Level)
		assert.Equal(t, 0.8, pred.Score)
		assert.Equal(t, 0.8, pred.Confidence)
		assert.Equal(t, []string{"Standard risk profile"}, pred.Factors)
		assert.Equal(t, model.KindRandomForest, pred.ModelUsed)
		assert.Equal(t, domain.PathModel, pred.Path)
	})

	t.Run("RiskArmedLargeCrowd", func(t *testing.T) {
		req := corporateRequest()
		req.IsArmed = true
		req.CrowdSize = 2000

		pred := p.PredictRisk(ctx, req)

		assert.Equal(t, domain.RiskCritical, pred.Level)
		assert.Equal(t, 0.9, pred.Score)
		assert.Contains(t, pred.Factors, "Armed security requested")
		assert.Contains(t, pred.Factors, "Large crowd expected: 2,000 people")
	})

	t.Run("RiskModelName", func(t *testing.T) {
		a := modeltest.Artifact()
		a.RiskModelName = "Random Forest Classifier"
		named := New(modeltest.Write(t, a), engine())

		assert.Equal(t, "Random Forest Classifier", named.PredictRisk(ctx, corporateRequest()).ModelUsed)
	})

	t.Run("Acceptance", func(t *testing.T) {
		prob, ok := p.PredictAcceptance(ctx, corporateRequest(), 1000)

		require.True(t, ok)
		// sigmoid(1 - 1) = 0.5
		assert.Equal(t, 0.5, prob)
	})

	t.Run("Info", func(t *testing.T) {
		info := p.Info()

		assert.Equal(t, "loaded", info.Status)
		assert.True(t, info.Loaded)
		assert.Equal(t, modeltest.Version, info.Version)
		assert.Equal(t, 15, info.PriceFeaturesCount)
		assert.Equal(t, 11, info.RiskFeaturesCount)
		assert.True(t, info.HasAcceptanceModel)
		assert.Equal(t, 0.91, info.Metrics["price_r2"])
	})
}

func TestPredictor_Fallback(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingArtifact", func(t *testing.T) {
		obs := newRecordingObserver()
		p := New(filepath.Join(t.TempDir(), "missing.json"), engine(), WithObserver(obs))

		require.Equal(t, StateFallback, p.State())

		price := p.PredictPrice(ctx, corporateRequest())
		assert.Equal(t, 616.00, price.Price)
		assert.Equal(t, 0.75, price.Confidence)
		assert.Equal(t, FallbackModelName, price.ModelUsed)
		assert.Equal(t, domain.PathFallback, price.Path)

		risk := p.PredictRisk(ctx, corporateRequest())
		assert.Equal(t, domain.RiskLow, risk.Level)
		assert.Equal(t, 0.2, risk.Score)
		assert.Equal(t, 0.70, risk.Confidence)
		assert.Equal(t, FallbackModelName, risk.ModelUsed)

		_, ok := p.PredictAcceptance(ctx, corporateRequest(), 616)
		assert.False(t, ok)

		info := p.Info()
		assert.Equal(t, "not_loaded", info.Status)
		assert.False(t, info.Loaded)
		assert.Equal(t, "Models not loaded - using rule-based fallback", info.Message)
		assert.Contains(t, info.Reason, "not found")

		assert.Equal(t, []bool{false}, obs.states)
		assert.Equal(t, 1, obs.predictions["price/fallback"])
	})

	t.Run("CorruptArtifact", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		p := New(path, engine())

		assert.Equal(t, StateFallback, p.State())
		assert.Equal(t, FallbackModelName, p.Version())
	})

	t.Run("SchemaMismatch", func(t *testing.T) {
		a := modeltest.Artifact()
		a.PriceFeatures[0], a.PriceFeatures[1] = a.PriceFeatures[1], a.PriceFeatures[0]

		p := New(modeltest.Write(t, a), engine())

		assert.Equal(t, StateFallback, p.State())
		assert.Contains(t, p.Info().Reason, "schema mismatch")
	})

	t.Run("WrongRiskClassCount", func(t *testing.T) {
		a := modeltest.Artifact()
		a.RiskModel.NumClasses = 3
		for i := range a.RiskModel.Trees[0].Nodes {
			if v := a.RiskModel.Trees[0].Nodes[i].Value; v != nil {
				a.RiskModel.Trees[0].Nodes[i].Value = v[:3]
			}
		}
		a.RiskModel.Trees[0].Nodes[1].Value = []float64{1, 1, 0}

		p := New(modeltest.Write(t, a), engine())

		assert.Equal(t, StateFallback, p.State())
	})
}

func TestPredictor_TransientFailureDegradesSingleCall(t *testing.T) {
	a := modeltest.Artifact()
	a.PriceModel.Coef[7] = 1e308 // crowd_size overflows to +Inf
	obs := newRecordingObserver()
	p := New(modeltest.Write(t, a), engine(), WithObserver(obs))
	ctx := context.Background()

	req := corporateRequest()
	req.CrowdSize = 10

	pred := p.PredictPrice(ctx, req)

	assert.Equal(t, domain.PathFallback, pred.Path)
	assert.Equal(t, FallbackModelName, pred.ModelUsed)
	assert.Equal(t, 1, obs.degraded["price"])
	assert.Equal(t, StateLoaded, p.State())

	// requests the model can serve still use it
	ok := p.PredictPrice(ctx, corporateRequest())
	assert.Equal(t, domain.PathModel, ok.Path)
	assert.Equal(t, 740.00, ok.Price)
}

func TestAcceptProbability(t *testing.T) {
	p, err := acceptProbability([]float64{0.25, 0.75}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.75, p)

	_, err = acceptProbability(nil, model.ErrDimension)
	assert.ErrorIs(t, err, model.ErrDimension)

	_, err = acceptProbability([]float64{1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 1 classes")
	assert.NotContains(t, err.Error(), "<nil>")

	_, err = acceptProbability([]float64{0.5, math.NaN()}, nil)
	assert.ErrorIs(t, err, ErrNonFinite)
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestPredictor_Reload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "guard_quote_models.json")
	p := New(path, engine())
	require.Equal(t, StateFallback, p.State())

	t.Run("LoadsNewArtifact", func(t *testing.T) {
		require.NoError(t, model.Save(path, modeltest.Artifact()))

		require.NoError(t, p.Reload(ctx))

		assert.Equal(t, StateLoaded, p.State())
		assert.Equal(t, 740.00, p.PredictPrice(ctx, corporateRequest()).Price)
	})

	t.Run("FailedReloadKeepsCurrentModel", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

		err := p.Reload(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrArtifactCorrupt)
		assert.Equal(t, StateLoaded, p.State())
		assert.Equal(t, modeltest.Version, p.Version())
	})

	t.Run("ConcurrentPredictionsDuringReload", func(t *testing.T) {
		next := modeltest.Artifact()
		next.Version = "test-2026.2"
		next.PriceModel.Intercept = 200
		require.NoError(t, model.Save(path, next))

		var wg sync.WaitGroup
		var bad atomic.Int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					price := p.PredictPrice(ctx, corporateRequest()).Price
					if price != 740 && price != 840 {
						bad.Add(1)
					}
				}
			}()
		}
		require.NoError(t, p.Reload(ctx))
		wg.Wait()

		assert.Zero(t, bad.Load())
		assert.Equal(t, "test-2026.2", p.Version())
	})
}

func TestLazy(t *testing.T) {
	path := modeltest.Write(t, modeltest.Artifact())
	obs := newRecordingObserver()
	l := NewLazy(path, engine(), WithObserver(obs))

	assert.Empty(t, obs.states)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.PredictPrice(context.Background(), corporateRequest())
		}()
	}
	wg.Wait()

	assert.Equal(t, []bool{true}, obs.states)
	assert.Same(t, l.Get(), l.Get())
	assert.Equal(t, "loaded", l.Info().Status)
}
