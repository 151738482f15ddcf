package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/radiology-console/pkg/datastore"
	"github.com/synaptica-ai/radiology-console/pkg/screens"
)

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "List analysed cases, newest first, with summary statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := opts.dataset()
			if err != nil {
				return err
			}
			dash := screens.NewDashboard(opts.client(cmd.Context()), ds.Cases)
			defer dash.Close()

			view := dash.Load(cmd.Context())
			fmt.Fprint(cmd.OutOrStdout(), screens.RenderDashboard(view, opts.mode))
			if view.State == datastore.StateFailed {
				return errors.New(view.Error)
			}
			return nil
		},
	}
}
