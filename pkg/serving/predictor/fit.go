package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/ml/linear"
)

// Sample is one labelled film reduced to its features.
type Sample struct {
	Path     string
	Features map[string]float64
	Positive bool
}

// LoadSamples decodes every image under dir/positive and dir/negative.
// Files that fail to decode are skipped with a warning.
func LoadSamples(ctx context.Context, dir string) ([]Sample, error) {
	type job struct {
		path     string
		positive bool
	}
	var jobs []job
	for _, sub := range []string{"positive", "negative"} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		if err != nil {
			return nil, fmt.Errorf("read %s films: %w", sub, err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			jobs = append(jobs, job{path: filepath.Join(dir, sub, e.Name()), positive: sub == "positive"})
		}
	}

	results := make([]*Sample, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(j.path)
			if err != nil {
				return err
			}
			grid, _, err := Decode(data)
			if err != nil {
				logger.Log.WithError(err).WithField("path", j.path).Warn("skipping undecodable film")
				return nil
			}
			results[i] = &Sample{Path: j.path, Features: grid.Features(), Positive: j.positive}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, len(results))
	for _, s := range results {
		if s != nil {
			samples = append(samples, *s)
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Path < samples[j].Path })
	return samples, nil
}

// Fit trains weights for model over samples and returns a loadable artifact.
func Fit(model, version string, samples []Sample, opts linear.Options) (Artifact, error) {
	if _, ok := builtins[model]; !ok {
		return Artifact{}, fmt.Errorf("unknown model %s", model)
	}
	var positives int
	xs := make([][]float64, 0, len(samples))
	ys := make([]float64, 0, len(samples))
	for _, s := range samples {
		x, err := vector(FeatureNames, s.Features)
		if err != nil {
			return Artifact{}, fmt.Errorf("%s: %w", s.Path, err)
		}
		xs = append(xs, x)
		if s.Positive {
			ys = append(ys, 1)
			positives++
		} else {
			ys = append(ys, 0)
		}
	}
	if positives == 0 || positives == len(samples) {
		return Artifact{}, fmt.Errorf("need both positive and negative films, got %d of %d positive", positives, len(samples))
	}

	weights, metrics, err := linear.Fit(xs, ys, opts)
	if err != nil {
		return Artifact{}, err
	}
	a := builtin(weights.Bias, weights.Coefficients...)
	a.Model.Version = version
	a.Model.Metrics = &metrics
	return a, nil
}

// WriteArtifact installs a as <model>_latest.json in dir. The file is
// renamed into place so a running predictor never reads a partial write.
func WriteArtifact(dir, model string, a Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, model+"-*.json.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_latest.json", model))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
