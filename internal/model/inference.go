package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimension is returned when an input vector has the wrong length.
var ErrDimension = errors.New("feature vector dimension mismatch")

// Model kinds understood by the loader.
const (
	KindLinear           = "linear"
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
	KindLogistic         = "logistic"
)

// Regressor predicts a continuous value.
type Regressor interface {
	Predict(x []float64) (float64, error)
}

// Classifier predicts a probability per class.
type Classifier interface {
	PredictProba(x []float64) ([]float64, error)
	NumClasses() int
}

// ModelSpec is the serialized form of a fitted model. Which fields are used
// depends on Kind.
type ModelSpec struct {
	Kind   string `json:"kind"`
	Scaled bool   `json:"scaled,omitempty"`

	// linear regression and binary logistic
	Coef      []float64 `json:"coef,omitempty"`
	Intercept float64   `json:"intercept,omitempty"`

	// multinomial logistic
	Coefs      [][]float64 `json:"coefs,omitempty"`
	Intercepts []float64   `json:"intercepts,omitempty"`

	// tree ensembles
	InitValue    float64 `json:"init_value,omitempty"`
	LearningRate float64 `json:"learning_rate,omitempty"`
	Trees        []Tree  `json:"trees,omitempty"`

	NumClasses int `json:"num_classes,omitempty"`
}

// Tree is a flattened binary decision tree. Node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split (Left >= 0) or a leaf (Left < 0). Samples with
// x[Feature] <= Threshold go left.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Scaler standardizes features as (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Transform returns a scaled copy of x.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("%w: scaler expects %d, got %d", ErrDimension, len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

func (s *Scaler) check(n int) error {
	if len(s.Mean) != n || len(s.Scale) != n {
		return fmt.Errorf("scaler has %d/%d entries, want %d", len(s.Mean), len(s.Scale), n)
	}
	return nil
}

func (s *ModelSpec) regressor(n int) (Regressor, error) {
	switch s.Kind {
	case KindLinear:
		if len(s.Coef) != n {
			return nil, fmt.Errorf("linear model has %d coefficients, want %d", len(s.Coef), n)
		}
		return &linearRegressor{coef: s.Coef, intercept: s.Intercept}, nil

	case KindRandomForest, KindGradientBoosting:
		if err := checkTrees(s.Trees, n, 1); err != nil {
			return nil, err
		}
		if s.Kind == KindRandomForest {
			return &forestRegressor{trees: s.Trees, n: n}, nil
		}
		lr := s.LearningRate
		if lr == 0 {
			lr = 0.1
		}
		return &boostedRegressor{init: s.InitValue, learningRate: lr, trees: s.Trees, n: n}, nil

	default:
		return nil, fmt.Errorf("unsupported regressor kind %q", s.Kind)
	}
}

func (s *ModelSpec) classifier(n int) (Classifier, error) {
	switch s.Kind {
	case KindRandomForest:
		if s.NumClasses < 2 {
			return nil, fmt.Errorf("forest classifier needs at least 2 classes, got %d", s.NumClasses)
		}
		if err := checkTrees(s.Trees, n, s.NumClasses); err != nil {
			return nil, err
		}
		return &forestClassifier{trees: s.Trees, classes: s.NumClasses, n: n}, nil

	case KindLogistic:
		if len(s.Coefs) > 0 {
			if len(s.Intercepts) != len(s.Coefs) {
				return nil, fmt.Errorf("logistic model has %d intercepts for %d classes", len(s.Intercepts), len(s.Coefs))
			}
			for i, row := range s.Coefs {
				if len(row) != n {
					return nil, fmt.Errorf("logistic class %d has %d coefficients, want %d", i, len(row), n)
				}
			}
			return &softmaxClassifier{coefs: s.Coefs, intercepts: s.Intercepts}, nil
		}
		if len(s.Coef) != n {
			return nil, fmt.Errorf("logistic model has %d coefficients, want %d", len(s.Coef), n)
		}
		return &binaryLogistic{coef: s.Coef, intercept: s.Intercept}, nil

	default:
		return nil, fmt.Errorf("unsupported classifier kind %q", s.Kind)
	}
}

func checkTrees(trees []Tree, nFeatures, valueLen int) error {
	if len(trees) == 0 {
		return fmt.Errorf("ensemble has no trees")
	}
	for ti, t := range trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, node := range t.Nodes {
			if node.Left < 0 {
				if len(node.Value) != valueLen {
					return fmt.Errorf("tree %d leaf %d has %d values, want %d", ti, ni, len(node.Value), valueLen)
				}
				continue
			}
			// children must point forward, which rules out cycles
			if node.Left <= ni || node.Right <= ni || node.Left >= len(t.Nodes) || node.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children", ti, ni)
			}
			if node.Feature < 0 || node.Feature >= nFeatures {
				return fmt.Errorf("tree %d node %d splits on feature %d of %d", ti, ni, node.Feature, nFeatures)
			}
		}
	}
	return nil
}

func withScaler(r Regressor, spec *ModelSpec, s *Scaler, n int) (Regressor, error) {
	if !spec.Scaled {
		return r, nil
	}
	if s == nil {
		return nil, fmt.Errorf("model is marked scaled but has no scaler")
	}
	if err := s.check(n); err != nil {
		return nil, err
	}
	return &scaledRegressor{scaler: s, inner: r}, nil
}

func withClassifierScaler(c Classifier, spec *ModelSpec, s *Scaler, n int) (Classifier, error) {
	if !spec.Scaled {
		return c, nil
	}
	if s == nil {
		return nil, fmt.Errorf("model is marked scaled but has no scaler")
	}
	if err := s.check(n); err != nil {
		return nil, err
	}
	return &scaledClassifier{scaler: s, inner: c}, nil
}

// leaf walks a tree to the leaf reached by x.
func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for steps := 0; steps < len(t.Nodes); steps++ {
		node := &t.Nodes[i]
		if node.Left < 0 {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
	return t.Nodes[i].Value
}

type linearRegressor struct {
	coef      []float64
	intercept float64
}

func (m *linearRegressor) Predict(x []float64) (float64, error) {
	if len(x) != len(m.coef) {
		return 0, fmt.Errorf("%w: want %d, got %d", ErrDimension, len(m.coef), len(x))
	}
	return m.intercept + dot(m.coef, x), nil
}

type forestRegressor struct {
	trees []Tree
	n     int
}

func (m *forestRegressor) Predict(x []float64) (float64, error) {
	if len(x) != m.n {
		return 0, fmt.Errorf("%w: want %d, got %d", ErrDimension, m.n, len(x))
	}
	sum := 0.0
	for i := range m.trees {
		sum += m.trees[i].leaf(x)[0]
	}
	return sum / float64(len(m.trees)), nil
}

type boostedRegressor struct {
	init         float64
	learningRate float64
	trees        []Tree
	n            int
}

func (m *boostedRegressor) Predict(x []float64) (float64, error) {
	if len(x) != m.n {
		return 0, fmt.Errorf("%w: want %d, got %d", ErrDimension, m.n, len(x))
	}
	out := m.init
	for i := range m.trees {
		out += m.learningRate * m.trees[i].leaf(x)[0]
	}
	return out, nil
}

type forestClassifier struct {
	trees   []Tree
	classes int
	n       int
}

func (m *forestClassifier) NumClasses() int { return m.classes }

// PredictProba averages each tree's normalized leaf distribution.
func (m *forestClassifier) PredictProba(x []float64) ([]float64, error) {
	if len(x) != m.n {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrDimension, m.n, len(x))
	}
	proba := make([]float64, m.classes)
	for i := range m.trees {
		value := m.trees[i].leaf(x)
		total := 0.0
		for _, v := range value {
			total += v
		}
		if total <= 0 {
			return nil, fmt.Errorf("tree %d leaf has no class weight", i)
		}
		for c, v := range value {
			proba[c] += v / total
		}
	}
	for c := range proba {
		proba[c] /= float64(len(m.trees))
	}
	return proba, nil
}

type softmaxClassifier struct {
	coefs      [][]float64
	intercepts []float64
}

func (m *softmaxClassifier) NumClasses() int { return len(m.coefs) }

func (m *softmaxClassifier) PredictProba(x []float64) ([]float64, error) {
	if len(x) != len(m.coefs[0]) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrDimension, len(m.coefs[0]), len(x))
	}
	logits := make([]float64, len(m.coefs))
	for c, row := range m.coefs {
		logits[c] = m.intercepts[c] + dot(row, x)
	}
	return softmax(logits), nil
}

type binaryLogistic struct {
	coef      []float64
	intercept float64
}

func (m *binaryLogistic) NumClasses() int { return 2 }

func (m *binaryLogistic) PredictProba(x []float64) ([]float64, error) {
	if len(x) != len(m.coef) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrDimension, len(m.coef), len(x))
	}
	p := 1 / (1 + math.Exp(-(m.intercept + dot(m.coef, x))))
	return []float64{1 - p, p}, nil
}

type scaledRegressor struct {
	scaler *Scaler
	inner  Regressor
}

func (m *scaledRegressor) Predict(x []float64) (float64, error) {
	xs, err := m.scaler.Transform(x)
	if err != nil {
		return 0, err
	}
	return m.inner.Predict(xs)
}

type scaledClassifier struct {
	scaler *Scaler
	inner  Classifier
}

func (m *scaledClassifier) NumClasses() int { return m.inner.NumClasses() }

func (m *scaledClassifier) PredictProba(x []float64) ([]float64, error) {
	xs, err := m.scaler.Transform(x)
	if err != nil {
		return nil, err
	}
	return m.inner.PredictProba(xs)
}

// Argmax returns the index of the largest value.
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func softmax(logits []float64) []float64 {
	top := logits[Argmax(logits)]
	out := make([]float64, len(logits))
	sum := 0.0
	for i, l := range logits {
		out[i] = math.Exp(l - top)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
