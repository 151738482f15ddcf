package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/radiology-console/pkg/datastore"
	"github.com/synaptica-ai/radiology-console/pkg/redact"
	"github.com/synaptica-ai/radiology-console/pkg/screens"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report <case-id>",
		Short: "Show the detailed report for one case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			redactor, err := opts.redactor()
			if err != nil {
				return err
			}
			view := showReport(cmd, opts, redactor, args[0])
			if view.State == datastore.StateFailed && !view.NotFound {
				return errors.New(view.Error)
			}
			return nil
		},
	}
}

func showReport(cmd *cobra.Command, opts *rootOptions, redactor *redact.Redactor, caseID string) screens.ReportView {
	rep := screens.NewReport(opts.client(cmd.Context()), redactor)
	defer rep.Close()

	rep.Open(caseID)
	view := rep.Load(cmd.Context())
	fmt.Fprint(cmd.OutOrStdout(), screens.RenderReport(view, opts.mode))
	return view
}
