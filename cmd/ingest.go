package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/hedonic-cli/internal/fetcher"
	"github.com/sells-group/hedonic-cli/internal/ingest"
	"github.com/sells-group/hedonic-cli/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Acquire and stage all source datasets",
	Long:  "Downloads the parcel sale CSV, the six geographic layers, and ACS tract demographics, validates coordinates against the configured bounds, and stages everything in the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		return runStage(ctx, st, "ingest", stageIngest)
	},
}

func stageIngest(ctx context.Context, st store.Store) (map[string]any, error) {
	fetch := fetcher.New(
		fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			RatePerSec: cfg.Fetch.RatePerSec,
			Burst:      cfg.Fetch.Burst,
		},
		fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		},
	)

	ds, err := ingest.LoadAll(ctx, fetch, cfg)
	if err != nil {
		return nil, err
	}

	if err := st.SaveParcels(ctx, ds.Parcels); err != nil {
		return nil, err
	}
	metrics := map[string]any{"parcels": len(ds.Parcels)}
	for name, layer := range ds.Layers {
		if err := st.SaveLayer(ctx, layer); err != nil {
			return nil, err
		}
		metrics[name] = len(layer.Features)
	}
	return metrics, nil
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
