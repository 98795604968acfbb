package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/guardquote/ml-engine/internal/config"
	"github.com/guardquote/ml-engine/internal/domain"
)

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	opts   config.Options
	cfg    *domain.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "guardquote-ml",
		Short:        "Security quote pricing and risk prediction engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.opts)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger, err := config.NewLogger(cfg.Logging, os.Stdout)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.opts.File, "config", "c", "", "config file (default ./config.yaml)")
	root.PersistentFlags().StringVar(&a.opts.Profile, "profile", "", "deployment profile: standalone or production")

	root.AddCommand(
		newServeCommand(a),
		newArtifactCommand(a),
		newQuoteCommand(a),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// no config needed
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "guardquote-ml %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
