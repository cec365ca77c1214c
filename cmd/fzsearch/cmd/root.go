// Package cmd provides the fzsearch CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/postgres"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd creates the root command and all subcommands.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "fzsearch",
		Short: "Fuzzy full-text search over line-oriented documents",
		Long: `fzsearch builds an in-memory inverted index over a document collection
(one document per line) and answers one-word and free-text queries with
approximate (bitap) term matching.

Commands that read documents use --file when given and the configured
source otherwise.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (defaults apply when empty)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newMatchCmd())
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newReloadCmd(opts, nil))
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// buildIndex reads file, or the configured source when file is empty, and
// indexes it.
func buildIndex(ctx context.Context, opts *globalOptions, file string) (*index.Index, string, error) {
	var src source.Source
	if file != "" {
		src = source.NewFileSource(file)
	} else {
		cfg, err := opts.load()
		if err != nil {
			return nil, "", err
		}
		switch cfg.Source.Kind {
		case config.SourcePostgres:
			db, err := postgres.New(ctx, cfg.Postgres)
			if err != nil {
				return nil, "", err
			}
			defer db.Close()
			src = source.NewPostgresSource(db)
		default:
			src = source.NewFileSource(cfg.Source.Path)
		}
	}
	docs, err := src.ReadDocuments(ctx)
	if err != nil {
		return nil, "", err
	}
	return index.Build(docs), src.Describe(), nil
}
