package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/radiology-console/pkg/screens"
)

type statusOptions struct {
	watch    bool
	interval time.Duration
	count    int
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	so := &statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show analysis service health and profiler metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, opts, so)
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&so.watch, "watch", "w", false, "Keep polling until interrupted")
	f.DurationVar(&so.interval, "interval", 0, "Polling interval (default $STATUS_POLL_INTERVAL)")
	f.IntVar(&so.count, "count", 0, "Stop watching after this many refreshes (0 = until interrupted)")
	return cmd
}

func runStatus(cmd *cobra.Command, opts *rootOptions, so *statusOptions) error {
	ds, err := opts.dataset()
	if err != nil {
		return err
	}
	interval := so.interval
	if interval <= 0 {
		interval = opts.cfg.StatusPollInterval
	}

	sys := screens.NewSystem(opts.client(cmd.Context()), ds.Status, interval)
	defer sys.Close()
	out := cmd.OutOrStdout()

	if !so.watch {
		fmt.Fprint(out, screens.RenderSystem(sys.Refresh(cmd.Context()), opts.mode))
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	seen := 0
	sys.Start(func(v screens.SystemView) {
		mu.Lock()
		defer mu.Unlock()
		seen++
		fmt.Fprintf(out, "--- %s ---\n", time.Now().Format(time.TimeOnly))
		fmt.Fprint(out, screens.RenderSystem(v, opts.mode))
		if so.count > 0 && seen >= so.count {
			cancel()
		}
	})

	<-ctx.Done()
	sys.Stop()
	return nil
}
