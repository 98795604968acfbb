// Package model reads and writes trained model artifacts and runs inference
// over them.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrArtifactNotFound is returned when no artifact exists at the configured path.
	ErrArtifactNotFound = errors.New("model artifact not found")

	// ErrArtifactCorrupt is returned when an artifact cannot be decoded or compiled.
	ErrArtifactCorrupt = errors.New("model artifact corrupt")
)

// Artifact is the on-disk bundle produced by a training run. The training
// pipeline and this package must agree on every key.
type Artifact struct {
	Version     string `json:"version"`
	TrainedAt   string `json:"trained_at"`
	SampleCount int    `json:"sample_count"`

	PriceModelName string     `json:"price_model_name"`
	PriceModel     *ModelSpec `json:"price_model"`
	PriceScaler    *Scaler    `json:"price_scaler,omitempty"`
	PriceFeatures  []string   `json:"price_features"`

	RiskModelName string     `json:"risk_model_name,omitempty"`
	RiskModel     *ModelSpec `json:"risk_model"`
	RiskScaler    *Scaler    `json:"risk_scaler,omitempty"`
	RiskFeatures  []string   `json:"risk_features"`

	AcceptModel    *ModelSpec `json:"accept_model,omitempty"`
	AcceptScaler   *Scaler    `json:"accept_scaler,omitempty"`
	AcceptFeatures []string   `json:"accept_features,omitempty"`

	Encoders Encoders           `json:"encoders"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// Encoders holds the fitted category lists, in training order.
type Encoders struct {
	EventType []string `json:"event_type"`
	State     []string `json:"state"`
	RiskZone  []string `json:"risk_zone"`
}

// Models is the compiled, ready-to-run form of an artifact.
type Models struct {
	Price  Regressor
	Risk   Classifier
	Accept Classifier // nil when the artifact has no acceptance model
}

// Load reads an artifact from disk. A missing file yields ErrArtifactNotFound;
// anything unreadable or structurally invalid yields ErrArtifactCorrupt.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrArtifactCorrupt, path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrArtifactCorrupt, path, err)
	}

	if err := a.validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Save writes an artifact atomically: readers see either the old file or the new one.
func Save(path string, a *Artifact) error {
	if a == nil {
		return fmt.Errorf("artifact is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install artifact: %w", err)
	}
	return nil
}

func (a *Artifact) validate() error {
	switch {
	case a.PriceModel == nil:
		return fmt.Errorf("%w: price_model is missing", ErrArtifactCorrupt)
	case a.RiskModel == nil:
		return fmt.Errorf("%w: risk_model is missing", ErrArtifactCorrupt)
	case len(a.PriceFeatures) == 0:
		return fmt.Errorf("%w: price_features is empty", ErrArtifactCorrupt)
	case len(a.RiskFeatures) == 0:
		return fmt.Errorf("%w: risk_features is empty", ErrArtifactCorrupt)
	case a.AcceptModel != nil && len(a.AcceptFeatures) == 0:
		return fmt.Errorf("%w: accept_features is empty", ErrArtifactCorrupt)
	}
	return nil
}

// Compile builds runnable models and checks their dimensions against the
// artifact's feature lists.
func (a *Artifact) Compile() (*Models, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}

	price, err := a.PriceModel.regressor(len(a.PriceFeatures))
	if err != nil {
		return nil, fmt.Errorf("%w: price model: %v", ErrArtifactCorrupt, err)
	}
	price, err = withScaler(price, a.PriceModel, a.PriceScaler, len(a.PriceFeatures))
	if err != nil {
		return nil, fmt.Errorf("%w: price model: %v", ErrArtifactCorrupt, err)
	}

	risk, err := a.RiskModel.classifier(len(a.RiskFeatures))
	if err != nil {
		return nil, fmt.Errorf("%w: risk model: %v", ErrArtifactCorrupt, err)
	}
	risk, err = withClassifierScaler(risk, a.RiskModel, a.RiskScaler, len(a.RiskFeatures))
	if err != nil {
		return nil, fmt.Errorf("%w: risk model: %v", ErrArtifactCorrupt, err)
	}

	models := &Models{Price: price, Risk: risk}

	if a.AcceptModel != nil {
		accept, err := a.AcceptModel.classifier(len(a.AcceptFeatures))
		if err != nil {
			return nil, fmt.Errorf("%w: accept model: %v", ErrArtifactCorrupt, err)
		}
		accept, err = withClassifierScaler(accept, a.AcceptModel, a.AcceptScaler, len(a.AcceptFeatures))
		if err != nil {
			return nil, fmt.Errorf("%w: accept model: %v", ErrArtifactCorrupt, err)
		}
		models.Accept = accept
	}

	return models, nil
}
