// Package predictor scores image features with logistic models. Built-in
// weights can be overridden per model by a <model>_latest.json artifact.
package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/synaptica-ai/radiology-console/pkg/ml/linear"
)

const (
	ModelPneumonia    = "pneumonia"
	ModelCardiomegaly = "cardiomegaly"
)

type Artifact struct {
	Model struct {
		Type         string          `json:"type"`
		Algorithm    string          `json:"algorithm"`
		Version      string          `json:"version"`
		FeatureNames []string        `json:"feature_names"`
		Weights      linear.Weights  `json:"weights"`
		Metrics      *linear.Metrics `json:"metrics,omitempty"`
	} `json:"model"`
}

func builtin(bias float64, coeffs ...float64) Artifact {
	var a Artifact
	a.Model.Type = "classification"
	a.Model.Algorithm = "logistic_regression"
	a.Model.Version = "builtin"
	a.Model.FeatureNames = FeatureNames
	a.Model.Weights = linear.Weights{Bias: bias, Coefficients: coeffs}
	return a
}

var builtins = map[string]Artifact{
	// mean, contrast, lower-zone opacity, cardiac width
	ModelPneumonia:    builtin(-1.8, 1.2, -3.0, 7.5, 0.4),
	ModelCardiomegaly: builtin(-3.2, 0.4, -1.0, 0.8, 6.5),
}

type Predictor struct {
	dir   string
	cache map[string]cachedArtifact
	mu    sync.RWMutex
}

type cachedArtifact struct {
	artifact Artifact
	modTime  int64
}

// NewPredictor looks for artifacts in dir. An empty dir uses built-in
// weights only.
func NewPredictor(dir string) *Predictor {
	return &Predictor{
		dir:   dir,
		cache: make(map[string]cachedArtifact),
	}
}

// Predict returns P(positive) for model given features.
func (p *Predictor) Predict(model string, features map[string]float64) (float64, error) {
	artifact, err := p.loadArtifact(model)
	if err != nil {
		return 0, err
	}
	names := artifact.Model.FeatureNames
	coeffs := artifact.Model.Weights.Coefficients
	if len(names) == 0 {
		return 0, fmt.Errorf("artifact %s missing feature names", model)
	}
	if len(coeffs) != len(names) {
		return 0, fmt.Errorf("artifact %s has %d coefficients for %d features", model, len(coeffs), len(names))
	}
	sample, err := vector(names, features)
	if err != nil {
		return 0, err
	}
	return linear.Predict(artifact.Model.Weights, sample), nil
}

func vector(names []string, features map[string]float64) ([]float64, error) {
	sample := make([]float64, len(names))
	for i, name := range names {
		value, ok := features[name]
		if !ok {
			return nil, fmt.Errorf("missing feature %s", name)
		}
		sample[i] = value
	}
	return sample, nil
}

// Version reports which weights Predict would use for model.
func (p *Predictor) Version(model string) string {
	a, err := p.loadArtifact(model)
	if err != nil || a.Model.Version == "" {
		return "unknown"
	}
	return a.Model.Version
}

func (p *Predictor) loadArtifact(model string) (Artifact, error) {
	fallback, hasBuiltin := builtins[model]
	if p.dir == "" {
		if !hasBuiltin {
			return Artifact{}, fmt.Errorf("unknown model %s", model)
		}
		return fallback, nil
	}

	latest := filepath.Join(p.dir, fmt.Sprintf("%s_latest.json", model))
	info, err := os.Stat(latest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && hasBuiltin {
			return fallback, nil
		}
		return Artifact{}, err
	}
	mod := info.ModTime().UnixNano()

	p.mu.RLock()
	cached, ok := p.cache[model]
	p.mu.RUnlock()
	if ok && cached.modTime == mod {
		return cached.artifact, nil
	}

	content, err := os.ReadFile(latest)
	if err != nil {
		return Artifact{}, err
	}
	var artifact Artifact
	if err := json.Unmarshal(content, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("parse artifact %s: %w", latest, err)
	}
	p.mu.Lock()
	p.cache[model] = cachedArtifact{artifact: artifact, modTime: mod}
	p.mu.Unlock()
	return artifact, nil
}
