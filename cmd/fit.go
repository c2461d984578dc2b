package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hedonic-cli/internal/hedonic"
	"github.com/sells-group/hedonic-cli/internal/parcel"
	"github.com/sells-group/hedonic-cli/internal/partition"
	"github.com/sells-group/hedonic-cli/internal/report"
	"github.com/sells-group/hedonic-cli/internal/store"
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the OLS price model on the training partition",
	Long:  "Splits the modeling set into stratified train/test partitions under the configured seed, fits the declared feature set by ordinary least squares on the training side, and stages the model.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		return runStage(ctx, st, "fit", stageFit)
	},
}

// loadSplit restores the engineered frame and re-derives the train/test
// partition. The split is deterministic under the configured seed, so fit and
// evaluate agree on it without persisting assignments.
func loadSplit(ctx context.Context, st store.Store) (*parcel.Frame, partition.Split, error) {
	parcels, err := st.LoadParcels(ctx)
	if err != nil {
		return nil, partition.Split{}, err
	}
	frame := parcel.RestoreFrame(parcels)

	split, err := partition.StratifiedSplit(frame.Modeling(), cfg.Split.TrainRatio, cfg.Split.Seed)
	if err != nil {
		return nil, partition.Split{}, err
	}
	return frame, split, nil
}

func stageFit(ctx context.Context, st store.Store) (map[string]any, error) {
	_, split, err := loadSplit(ctx, st)
	if err != nil {
		return nil, err
	}

	m, err := hedonic.Fit(split.Train, cfg.Model.Features)
	if err != nil {
		return nil, err
	}
	if err := st.SaveModel(ctx, m); err != nil {
		return nil, err
	}

	zap.L().Info("model fitted",
		zap.Int("train", len(split.Train)),
		zap.Int("test", len(split.Test)),
		zap.Float64("r2", m.R2),
	)
	if err := report.WriteModelTable(os.Stdout, m); err != nil {
		return nil, err
	}

	return map[string]any{
		"train":  len(split.Train),
		"test":   len(split.Test),
		"r2":     m.R2,
		"adj_r2": m.AdjR2,
	}, nil
}

func init() {
	rootCmd.AddCommand(fitCmd)
}
