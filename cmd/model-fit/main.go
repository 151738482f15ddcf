// model-fit trains scorer weights from labelled films and installs them
// where the analysis service picks them up.
//
// Usage:
//
//	model-fit --model=pneumonia --films=<dir with positive/ and negative/> [--out=$MODEL_ARTIFACT_DIR]
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/radiology-console/pkg/common/config"
	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/format"
	"github.com/synaptica-ai/radiology-console/pkg/ml/linear"
	"github.com/synaptica-ai/radiology-console/pkg/serving/predictor"
)

type fitOptions struct {
	model        string
	films        string
	out          string
	version      string
	epochs       int
	learningRate float64
	l2           float64
}

func newFitCmd() *cobra.Command {
	opts := &fitOptions{}
	cmd := &cobra.Command{
		Use:          "model-fit",
		Short:        "Fit a film scorer and install it as the latest artifact",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFit(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.model, "model", predictor.ModelPneumonia, "Model to fit: pneumonia or cardiomegaly")
	f.StringVar(&opts.films, "films", "", "Directory holding positive/ and negative/ films (required)")
	f.StringVar(&opts.out, "out", "", "Artifact directory (default $MODEL_ARTIFACT_DIR)")
	f.StringVar(&opts.version, "version", "", "Version label (default fit-<timestamp>)")
	f.IntVar(&opts.epochs, "epochs", 2000, "Gradient descent epochs")
	f.Float64Var(&opts.learningRate, "learning-rate", 1, "Gradient descent step size")
	f.Float64Var(&opts.l2, "l2", 0.001, "L2 penalty on coefficients")
	_ = cmd.MarkFlagRequired("films")
	return cmd
}

func runFit(cmd *cobra.Command, opts *fitOptions) error {
	logger.Init()
	logger.SetOutput(os.Stderr)
	cfg := config.Load()
	if opts.out == "" {
		opts.out = cfg.ModelArtifactDir
	}
	if opts.version == "" {
		opts.version = "fit-" + time.Now().UTC().Format("20060102T150405Z")
	}

	samples, err := predictor.LoadSamples(cmd.Context(), opts.films)
	if err != nil {
		return err
	}
	artifact, err := predictor.Fit(opts.model, opts.version, samples, linear.Options{
		Epochs:       opts.epochs,
		LearningRate: opts.learningRate,
		L2:           opts.l2,
		Tolerance:    1e-7,
	})
	if err != nil {
		return err
	}
	path, err := predictor.WriteArtifact(opts.out, opts.model, artifact)
	if err != nil {
		return err
	}

	m := artifact.Model.Metrics
	tb := format.NewTable(format.ASCII)
	tb.Title("Model " + opts.model + " " + opts.version)
	tb.Header("Metric", "Value")
	tb.Row("Films", len(samples))
	tb.Row("Epochs", m.Epochs)
	tb.Row("Loss", fmt.Sprintf("%.4f", m.Loss))
	tb.Row("Accuracy", format.Percent(m.Accuracy))
	tb.Row("Precision", format.Percent(m.Precision))
	tb.Row("Recall", format.Percent(m.Recall))
	tb.Row("Artifact", path)
	fmt.Fprintln(cmd.OutOrStdout(), tb.String())

	logger.Log.WithFields(map[string]interface{}{
		"model":    opts.model,
		"version":  opts.version,
		"films":    len(samples),
		"accuracy": m.Accuracy,
	}).Info("Model artifact installed")
	return nil
}

func main() {
	if err := newFitCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
