package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/radiology-console/pkg/common/kafka"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/format"
)

type eventsOptions struct {
	brokers []string
	topic   string
	group   string
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	eo := &eventsOptions{}
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow analysis.completed events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvents(cmd, opts, eo)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&eo.brokers, "brokers", nil, "Kafka brokers (default $KAFKA_BROKERS)")
	f.StringVar(&eo.topic, "topic", "", "Topic (default $KAFKA_TOPIC)")
	f.StringVar(&eo.group, "group", "", "Consumer group (default $KAFKA_GROUP_ID)")
	return cmd
}

func runEvents(cmd *cobra.Command, opts *rootOptions, eo *eventsOptions) error {
	brokers := eo.brokers
	if len(brokers) == 0 {
		brokers = opts.cfg.KafkaBrokers
	}
	if len(brokers) == 0 {
		return errors.New("no Kafka brokers configured: pass --brokers or set KAFKA_BROKERS")
	}
	topic := firstNonEmpty(eo.topic, opts.cfg.KafkaTopic)
	group := firstNonEmpty(eo.group, opts.cfg.KafkaGroupID)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(brokers, topic, group)
	defer consumer.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Following %s on %s (Ctrl-C to stop)\n", topic, strings.Join(brokers, ","))

	err := consumer.Consume(ctx, func(_ context.Context, e models.AnalysisCompletedEvent) error {
		fmt.Fprintln(out, formatEvent(e))
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func formatEvent(e models.AnalysisCompletedEvent) string {
	return fmt.Sprintf("%s  %s  %-12s %-12s %s",
		e.Timestamp.Local().Format("2006-01-02 15:04:05"),
		format.ShortID(e.CaseID),
		e.AnalysisType,
		e.Diagnosis,
		format.Percent(e.Probability),
	)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
