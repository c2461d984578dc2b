package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hedonic-cli/internal/config"
	"github.com/sells-group/hedonic-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hedonic-cli",
	Short: "Hedonic house-price modeling pipeline",
	Long:  "Acquires Philadelphia parcel sales and geographic context layers, engineers spatial features, fits an OLS price model, and evaluates it with cross-validation and spatial diagnostics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore opens the configured staging backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// stageFunc is one pipeline stage. The returned metrics land on the run record.
type stageFunc func(ctx context.Context, st store.Store) (map[string]any, error)

// runStage wraps a stage in run bookkeeping: a run record is created before
// the stage and completed (or failed) after it.
func runStage(ctx context.Context, st store.Store, stage string, fn stageFunc) error {
	run, err := st.CreateRun(ctx, stage)
	if err != nil {
		return err
	}
	zap.L().Info("stage started", zap.String("stage", stage), zap.String("run_id", run.ID))

	metrics, err := fn(ctx, st)
	if err != nil {
		_ = st.CompleteRun(ctx, run.ID, store.RunFailed, map[string]any{"error": err.Error()})
		return err
	}
	if err := st.CompleteRun(ctx, run.ID, store.RunCompleted, metrics); err != nil {
		return err
	}
	zap.L().Info("stage completed", zap.String("stage", stage), zap.String("run_id", run.ID))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
