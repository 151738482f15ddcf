package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/radiology-console/pkg/backend"
	"github.com/synaptica-ai/radiology-console/pkg/common/config"
	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/format"
	"github.com/synaptica-ai/radiology-console/pkg/gateway/auth"
	"github.com/synaptica-ai/radiology-console/pkg/gateway/httpclient"
	"github.com/synaptica-ai/radiology-console/pkg/redact"
	"github.com/synaptica-ai/radiology-console/pkg/seed"
)

// rootOptions are the persistent flags shared by every subcommand. Empty
// values fall back to the environment configuration.
type rootOptions struct {
	backendURL string
	timeout    time.Duration
	output     string
	seedFile   string
	rulesFile  string

	cfg  *config.Config
	mode format.Mode
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Radiology review console",
		Long:  "Browse analysed cases, open detailed reports, watch service health\nand submit chest films for analysis.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage:      true,
		Version:           version,
		PersistentPreRunE: opts.init,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.backendURL, "backend-url", "", "Analysis service base URL (default $BACKEND_URL)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (default $REQUEST_TIMEOUT)")
	f.StringVarP(&opts.output, "output", "o", "table", "Output format: table or markdown")
	f.StringVar(&opts.seedFile, "seed-file", "", "YAML sample dataset shown when the service is unreachable (default $SEED_FILE)")
	f.StringVar(&opts.rulesFile, "redaction-rules", "", "YAML PHI redaction rules (default $REDACTION_RULES_FILE)")

	cmd.AddCommand(newDashboardCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newEventsCmd(opts))
	return cmd
}

func (o *rootOptions) init(cmd *cobra.Command, _ []string) error {
	logger.Init()
	// stdout carries the rendered screens
	logger.SetOutput(os.Stderr)

	o.cfg = config.Load()
	if o.backendURL == "" {
		o.backendURL = o.cfg.BackendURL
	}
	if o.timeout <= 0 {
		o.timeout = o.cfg.RequestTimeout
	}
	if o.seedFile == "" {
		o.seedFile = o.cfg.SeedFile
	}
	if o.rulesFile == "" {
		o.rulesFile = o.cfg.RedactionRulesFile
	}

	mode, ok := format.ParseMode(o.output)
	if !ok {
		return fmt.Errorf("unknown output format %q (want table or markdown)", o.output)
	}
	o.mode = mode
	return nil
}

func (o *rootOptions) client(ctx context.Context) *backend.Client {
	httpClient := auth.HTTPClient(ctx, auth.ClientConfig{
		Issuer:       o.cfg.OIDCIssuer,
		ClientID:     o.cfg.OIDCClientID,
		ClientSecret: o.cfg.OIDCClientSecret,
		StaticToken:  o.cfg.ServiceAPIToken,
	}, httpclient.New(o.timeout))
	return backend.NewClient(o.backendURL, httpClient)
}

func (o *rootOptions) dataset() (seed.Dataset, error) {
	return seed.Load(o.seedFile, time.Now())
}

func (o *rootOptions) redactor() (*redact.Redactor, error) {
	rules, err := redact.LoadRules(o.rulesFile)
	if err != nil {
		return nil, err
	}
	return redact.New(rules)
}
