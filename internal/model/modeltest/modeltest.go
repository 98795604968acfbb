// Package modeltest builds small, hand-checkable model artifacts for tests.
package modeltest

import (
	"path/filepath"
	"testing"

	"github.com/guardquote/ml-engine/internal/features"
	"github.com/guardquote/ml-engine/internal/model"
)

// Version is the version string of the fixture artifact.
const Version = "test-2026.1"

// PriceModelName is the price model name of the fixture artifact.
const PriceModelName = "Ridge Regression"

// Artifact returns a valid artifact whose outputs are easy to compute by hand:
//
//	price  = 100 + 40*total_guard_hours + 0.01*crowd_size + 200*is_armed
//	risk   = unarmed -> low (0.8); armed, crowd <= 1000 -> high (0.75); armed, crowd > 1000 -> critical (0.9)
//	accept = sigmoid(1 - 0.001*final_price)
func Artifact() *model.Artifact {
	priceCoef := make([]float64, len(features.PriceFeatureNames))
	priceCoef[6] = 40   // total_guard_hours
	priceCoef[7] = 0.01 // crowd_size
	priceCoef[13] = 200 // is_armed

	acceptCoef := make([]float64, len(features.AcceptFeatureNames))
	acceptCoef[len(acceptCoef)-1] = -0.001

	return &model.Artifact{
		Version:        Version,
		TrainedAt:      "2026-01-15T00:00:00Z",
		SampleCount:    5000,
		PriceModelName: PriceModelName,
		PriceModel: &model.ModelSpec{
			Kind:      model.KindLinear,
			Coef:      priceCoef,
			Intercept: 100,
		},
		PriceFeatures: append([]string{}, features.PriceFeatureNames...),
		RiskModel: &model.ModelSpec{
			Kind:       model.KindRandomForest,
			NumClasses: 4,
			Trees: []model.Tree{{Nodes: []model.Node{
				{Feature: 10, Threshold: 0.5, Left: 1, Right: 2}, // is_armed
				{Left: -1, Right: -1, Value: []float64{8, 2, 0, 0}},
				{Feature: 4, Threshold: 1000, Left: 3, Right: 4}, // crowd_size
				{Left: -1, Right: -1, Value: []float64{0, 1, 3, 0}},
				{Left: -1, Right: -1, Value: []float64{0, 0, 1, 9}},
			}}},
		},
		RiskFeatures: append([]string{}, features.RiskFeatureNames...),
		AcceptModel: &model.ModelSpec{
			Kind:      model.KindLogistic,
			Coef:      acceptCoef,
			Intercept: 1,
		},
		AcceptFeatures: append([]string{}, features.AcceptFeatureNames...),
		Encoders: model.Encoders{
			EventType: append([]string{}, features.DefaultEventTypeClasses...),
			State:     append([]string{}, features.DefaultStateClasses...),
			RiskZone:  append([]string{}, features.DefaultRiskZoneClasses...),
		},
		Metrics: map[string]float64{
			"price_r2":      0.91,
			"price_mae":     84.2,
			"risk_accuracy": 0.87,
		},
	}
}

// Write saves a to a fresh temp directory and returns the file path.
func Write(t testing.TB, a *model.Artifact) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guard_quote_models.json")
	if err := model.Save(path, a); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	return path
}
