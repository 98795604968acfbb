package model_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardquote/ml-engine/internal/model"
	"github.com/guardquote/ml-engine/internal/model/modeltest"
)

func TestLoad(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		_, err := model.Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.True(t, errors.Is(err, model.ErrArtifactNotFound))
	})

	t.Run("CorruptJSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"price_model": [`), 0644))

		_, err := model.Load(path)
		assert.True(t, errors.Is(err, model.ErrArtifactCorrupt))
	})

	t.Run("MissingRiskModel", func(t *testing.T) {
		a := modeltest.Artifact()
		a.RiskModel = nil
		path := filepath.Join(t.TempDir(), "partial.json")
		require.NoError(t, model.Save(path, a))

		_, err := model.Load(path)
		assert.True(t, errors.Is(err, model.ErrArtifactCorrupt))
	})

	t.Run("SaveThenLoad", func(t *testing.T) {
		path := modeltest.Write(t, modeltest.Artifact())

		a, err := model.Load(path)
		require.NoError(t, err)
		assert.Equal(t, modeltest.Version, a.Version)
		assert.Equal(t, 5000, a.SampleCount)
		assert.Len(t, a.PriceFeatures, 15)
		assert.Len(t, a.RiskFeatures, 11)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temp files must not be left behind")
	})
}

func TestCompile(t *testing.T) {
	t.Run("FixtureCompiles", func(t *testing.T) {
		models, err := modeltest.Artifact().Compile()
		require.NoError(t, err)
		assert.NotNil(t, models.Price)
		assert.NotNil(t, models.Risk)
		assert.NotNil(t, models.Accept)
		assert.Equal(t, 4, models.Risk.NumClasses())
	})

	t.Run("AcceptModelOptional", func(t *testing.T) {
		a := modeltest.Artifact()
		a.AcceptModel = nil
		a.AcceptFeatures = nil

		models, err := a.Compile()
		require.NoError(t, err)
		assert.Nil(t, models.Accept)
	})

	tests := []struct {
		name   string
		mutate func(*model.Artifact)
	}{
		{"WrongCoefficientCount", func(a *model.Artifact) { a.PriceModel.Coef = a.PriceModel.Coef[:3] }},
		{"UnknownKind", func(a *model.Artifact) { a.PriceModel.Kind = "svm" }},
		{"ScaledWithoutScaler", func(a *model.Artifact) { a.PriceModel.Scaled = true }},
		{"TreeCycle", func(a *model.Artifact) { a.RiskModel.Trees[0].Nodes[2].Left = 0 }},
		{"LeafWrongWidth", func(a *model.Artifact) { a.RiskModel.Trees[0].Nodes[1].Value = []float64{1} }},
		{"SplitOnMissingFeature", func(a *model.Artifact) { a.RiskModel.Trees[0].Nodes[0].Feature = 40 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := modeltest.Artifact()
			tt.mutate(a)
			_, err := a.Compile()
			assert.True(t, errors.Is(err, model.ErrArtifactCorrupt), "got %v", err)
		})
	}
}
