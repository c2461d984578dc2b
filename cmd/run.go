package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full pipeline end to end",
	Long:  "Runs ingest, features, fit, evaluate, and export in order against the configured store. Each stage gets its own run record.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		stages := []struct {
			name string
			fn   stageFunc
		}{
			{"ingest", stageIngest},
			{"features", stageFeatures},
			{"fit", stageFit},
			{"evaluate", stageEvaluate},
			{"export", stageExport},
		}
		for _, s := range stages {
			if err := runStage(ctx, st, s.name, s.fn); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
