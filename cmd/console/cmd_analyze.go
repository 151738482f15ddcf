package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/screens"
	"github.com/synaptica-ai/radiology-console/pkg/workflow"
)

type analyzeOptions struct {
	file       string
	kind       string
	openReport bool
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	ao := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Upload a chest film for analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, opts, ao)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&ao.file, "file", "f", "", "Image to upload (required)")
	f.StringVarP(&ao.kind, "type", "t", string(models.AnalysisPneumonia), "Analysis type: pneumonia, cardiomegaly or heart")
	f.BoolVar(&ao.openReport, "open-report", false, "Show the full report after a successful analysis")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *rootOptions, ao *analyzeOptions) error {
	analysisType, err := models.ParseAnalysisType(ao.kind)
	if err != nil {
		return err
	}

	client := opts.client(cmd.Context())
	screen := screens.NewAnalyze(client, workflow.NewLocalPicker(opts.cfg.MaxUploadBytes))
	if err := screen.SelectFile(ao.file); err != nil {
		return err
	}
	if err := screen.SelectType(analysisType); err != nil {
		return err
	}

	view, ok := screen.Submit(cmd.Context())
	if !ok {
		return errors.New("submission refused: select an image and an analysis type")
	}
	fmt.Fprint(cmd.OutOrStdout(), screens.RenderAnalyze(view, opts.mode))
	if view.Phase == workflow.PhaseFailed {
		return errors.New(view.Error)
	}

	if ao.openReport && view.ReportCaseID != "" {
		redactor, err := opts.redactor()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout())
		showReport(cmd, opts, redactor, view.ReportCaseID)
	}
	return nil
}
