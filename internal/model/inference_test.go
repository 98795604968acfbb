package model_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardquote/ml-engine/internal/model"
	"github.com/guardquote/ml-engine/internal/model/modeltest"
)

func compile(t *testing.T, a *model.Artifact) *model.Models {
	t.Helper()
	models, err := a.Compile()
	require.NoError(t, err)
	return models
}

func TestLinearRegressor(t *testing.T) {
	models := compile(t, modeltest.Artifact())

	x := make([]float64, 15)
	x[6] = 16 // total guard hours
	got, err := models.Price.Predict(x)
	require.NoError(t, err)
	assert.InDelta(t, 740.0, got, 1e-9)

	_, err = models.Price.Predict(x[:4])
	assert.True(t, errors.Is(err, model.ErrDimension))
}

func TestForestClassifier(t *testing.T) {
	models := compile(t, modeltest.Artifact())

	tests := []struct {
		name    string
		armed   float64
		crowd   float64
		class   int
		topProb float64
	}{
		{"UnarmedIsLow", 0, 5000, 0, 0.8},
		{"ArmedSmallCrowdIsHigh", 1, 1000, 2, 0.75},
		{"ArmedLargeCrowdIsCritical", 1, 1001, 3, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := make([]float64, 11)
			x[10] = tt.armed
			x[4] = tt.crowd

			proba, err := models.Risk.PredictProba(x)
			require.NoError(t, err)
			require.Len(t, proba, 4)
			assert.Equal(t, tt.class, model.Argmax(proba))
			assert.InDelta(t, tt.topProb, proba[tt.class], 1e-9)
		})
	}
}

func TestBoostedRegressor(t *testing.T) {
	a := modeltest.Artifact()
	a.PriceModel = &model.ModelSpec{
		Kind:         model.KindGradientBoosting,
		InitValue:    500,
		LearningRate: 0.5,
		Trees: []model.Tree{
			{Nodes: []model.Node{
				{Feature: 13, Threshold: 0.5, Left: 1, Right: 2},
				{Left: -1, Right: -1, Value: []float64{-100}},
				{Left: -1, Right: -1, Value: []float64{300}},
			}},
			{Nodes: []model.Node{{Left: -1, Right: -1, Value: []float64{20}}}},
		},
	}
	models := compile(t, a)

	x := make([]float64, 15)
	got, _ := models.Price.Predict(x)
	assert.InDelta(t, 500-50+10, got, 1e-9)

	x[13] = 1
	got, _ = models.Price.Predict(x)
	assert.InDelta(t, 500+150+10, got, 1e-9)
}

func TestRandomForestRegressorAverages(t *testing.T) {
	a := modeltest.Artifact()
	a.PriceModel = &model.ModelSpec{
		Kind: model.KindRandomForest,
		Trees: []model.Tree{
			{Nodes: []model.Node{{Left: -1, Right: -1, Value: []float64{400}}}},
			{Nodes: []model.Node{{Left: -1, Right: -1, Value: []float64{600}}}},
		},
	}
	got, err := compile(t, a).Price.Predict(make([]float64, 15))
	require.NoError(t, err)
	assert.InDelta(t, 500.0, got, 1e-9)
}

func TestScaledModel(t *testing.T) {
	a := modeltest.Artifact()
	a.PriceModel.Scaled = true
	a.PriceScaler = &model.Scaler{Mean: make([]float64, 15), Scale: make([]float64, 15)}
	for i := range a.PriceScaler.Scale {
		a.PriceScaler.Scale[i] = 2
	}
	a.PriceScaler.Scale[7] = 0 // zero variance column is left unscaled

	x := make([]float64, 15)
	x[6] = 16
	x[7] = 1000
	got, err := compile(t, a).Price.Predict(x)
	require.NoError(t, err)
	assert.InDelta(t, 100+40*8+0.01*1000, got, 1e-9)
}

func TestLogisticClassifiers(t *testing.T) {
	t.Run("Binary", func(t *testing.T) {
		models := compile(t, modeltest.Artifact())
		x := make([]float64, 12)
		x[11] = 1000

		proba, err := models.Accept.PredictProba(x)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, proba[1], 1e-9)
		assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-9)
	})

	t.Run("Multinomial", func(t *testing.T) {
		a := modeltest.Artifact()
		coefs := make([][]float64, 4)
		for i := range coefs {
			coefs[i] = make([]float64, 11)
		}
		coefs[3][4] = 0.001 // crowd pushes toward critical
		a.RiskModel = &model.ModelSpec{Kind: model.KindLogistic, Coefs: coefs, Intercepts: []float64{1, 0, 0, 0}}
		models := compile(t, a)

		x := make([]float64, 11)
		proba, err := models.Risk.PredictProba(x)
		require.NoError(t, err)
		assert.Equal(t, 0, model.Argmax(proba))

		x[4] = 5000
		proba, _ = models.Risk.PredictProba(x)
		assert.Equal(t, 3, model.Argmax(proba))

		sum := 0.0
		for _, p := range proba {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.False(t, math.IsNaN(proba[3]))
	})
}
