package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardquote/ml-engine/internal/catalog"
	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/model/modeltest"
	"github.com/guardquote/ml-engine/internal/predictor"
	"github.com/guardquote/ml-engine/internal/pricing"
	"github.com/guardquote/ml-engine/internal/quote"
	"github.com/guardquote/ml-engine/internal/repository"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "guardquote-ml "+Version)
}

func TestArtifactInspect(t *testing.T) {
	t.Run("Servable", func(t *testing.T) {
		path := modeltest.Write(t, modeltest.Artifact())
		out, err := execute(t, "artifact", "inspect", path)
		require.NoError(t, err)

		var info domain.ModelInfo
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.True(t, info.Loaded)
		assert.Equal(t, modeltest.Version, info.Version)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := execute(t, "artifact", "inspect", filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not servable")
	})
}

func TestUnknownProfile(t *testing.T) {
	_, err := execute(t, "--profile", "staging", "artifact", "inspect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile")
}

func TestLoadCatalog(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	defer repo.Close()

	cat, err := loadCatalog(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, cat.EventTypes(), len(domain.DefaultEventTypes()))
	assert.Len(t, cat.Locations(), len(domain.DefaultLocations()))

	// seeding twice keeps one row per code
	cat, err = loadCatalog(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, cat.EventTypes(), len(domain.DefaultEventTypes()))

	state, zone := cat.Resolve("10019")
	assert.Equal(t, "NY", state)
	assert.Equal(t, domain.ZoneCritical, zone)
}

type loadCounter struct {
	loads atomic.Int32
}

func (*loadCounter) ObservePrediction(string, domain.PredictionPath) {}
func (*loadCounter) ObserveDegraded(string)                          {}
func (c *loadCounter) ObserveModelState(bool)                        { c.loads.Add(1) }

func TestModelModeKeepsLazyPredictorUnloaded(t *testing.T) {
	engine := pricing.NewEngine(catalog.Default())
	counter := &loadCounter{}
	p := predictor.NewLazy(modeltest.Write(t, modeltest.Artifact()), engine, predictor.WithObserver(counter))
	svc, err := quote.NewService(p, engine, nil)
	require.NoError(t, err)

	assert.Equal(t, "lazy", modelMode(domain.ModelConfig{LazyLoad: true}, svc))
	assert.Zero(t, counter.loads.Load())

	assert.Equal(t, string(domain.PathModel), modelMode(domain.ModelConfig{}, svc))
	assert.Equal(t, int32(1), counter.loads.Load())
}
