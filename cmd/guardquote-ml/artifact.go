package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guardquote/ml-engine/internal/catalog"
	"github.com/guardquote/ml-engine/internal/predictor"
	"github.com/guardquote/ml-engine/internal/pricing"
)

func newArtifactCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Work with trained model artifacts",
	}

	inspect := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Load an artifact and print what the engine would serve",
		Long: "Loads the artifact with the same checks the server applies and prints its\n" +
			"model info. Exits non-zero when the server would fall back to rule-based pricing.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Model.ArtifactPath
			if len(args) == 1 {
				path = args[0]
			}

			p := predictor.New(path, pricing.NewEngine(catalog.Default()), predictor.WithLogger(a.logger))
			info := p.Info()

			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !info.Loaded {
				return fmt.Errorf("artifact %s is not servable: %s", path, info.Reason)
			}
			return nil
		},
	}

	cmd.AddCommand(inspect)
	return cmd
}
