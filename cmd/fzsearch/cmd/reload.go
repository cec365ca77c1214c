package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/kafka"
)

// publisherFunc opens the publisher for the reload topic. Tests replace it.
type publisherFunc func(cfg config.KafkaConfig, topic string) kafka.Publisher

func newReloadCmd(opts *globalOptions, open publisherFunc) *cobra.Command {
	if open == nil {
		open = func(cfg config.KafkaConfig, topic string) kafka.Publisher {
			return kafka.NewProducer(cfg, topic)
		}
	}
	var reason string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask every running search service to rebuild its index",
		Long: `Publish an event to the index-reload topic. Each search replica
consumes the topic independently and rebuilds from its source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !cfg.Kafka.Enabled {
				return fmt.Errorf("reload requires kafka.enabled")
			}

			event := consumer.ReloadEvent{
				Reason:      reason,
				RequestedBy: requester(),
				RequestedAt: time.Now().UTC(),
			}
			publisher := open(cfg.Kafka, cfg.Kafka.Topics.IndexReload)
			defer publisher.Close()
			if err := publisher.Publish(cmd.Context(), kafka.Event{Key: event.RequestedBy, Value: event}); err != nil {
				return fmt.Errorf("publishing reload event: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reload requested on topic %s\n", cfg.Kafka.Topics.IndexReload)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "manual", "Reason recorded with the event")
	return cmd
}

func requester() string {
	host, err := os.Hostname()
	if err != nil {
		return "fzsearch"
	}
	return "fzsearch@" + host
}
