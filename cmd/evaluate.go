package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/hedonic-cli/internal/evaluate"
	"github.com/sells-group/hedonic-cli/internal/report"
	"github.com/sells-group/hedonic-cli/internal/store"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the fitted model on the test partition",
	Long:  "Predicts the held-out test partition, reports MAE/MAPE overall and by neighborhood and income context, runs repeated cross-validation over the modeling set, and tests residuals for spatial autocorrelation.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		return runStage(ctx, st, "evaluate", stageEvaluate)
	},
}

func stageEvaluate(ctx context.Context, st store.Store) (map[string]any, error) {
	frame, split, err := loadSplit(ctx, st)
	if err != nil {
		return nil, err
	}
	m, err := st.LoadModel(ctx)
	if err != nil {
		return nil, err
	}

	preds, err := evaluate.Score(m, split.Test, cfg.Eval.IncomeThreshold)
	if err != nil {
		return nil, err
	}
	if err := st.SavePredictions(ctx, preds); err != nil {
		return nil, err
	}

	overall := evaluate.Aggregate(preds)
	byHood := evaluate.ByNeighborhood(preds)
	byIncome := evaluate.ByIncomeBucket(preds)

	cv, err := evaluate.CrossValidate(frame.Modeling(), m.Features, cfg.Split.Folds, cfg.Split.Seed, cfg.Eval.IncomeThreshold)
	if err != nil {
		return nil, err
	}

	residuals, coords := evaluate.ResidualField(preds)
	mr, err := evaluate.Moran(residuals, coords, cfg.Eval.MoranK, cfg.Eval.Permutations, cfg.Split.Seed)
	if err != nil {
		return nil, err
	}

	names, corr, err := report.CorrelationMatrix(frame, m.Features)
	if err != nil {
		return nil, err
	}

	fmt.Println("\n== Error metrics ==")
	if err := report.WriteMetricsTable(os.Stdout, overall, byHood, byIncome); err != nil {
		return nil, err
	}
	fmt.Println("\n== Cross-validation ==")
	if err := report.WriteCVTable(os.Stdout, cv); err != nil {
		return nil, err
	}
	fmt.Println("\n== Residual spatial autocorrelation ==")
	if err := report.WriteMoranTable(os.Stdout, mr); err != nil {
		return nil, err
	}
	fmt.Println("\n== Feature correlations ==")
	if err := report.WriteCorrelationTable(os.Stdout, names, corr); err != nil {
		return nil, err
	}

	return map[string]any{
		"mae":      overall.MAE,
		"mape":     overall.MAPE,
		"cv_mean":  cv.Mean,
		"cv_std":   cv.StdDev,
		"moran_i":  mr.I,
		"pseudo_p": mr.PseudoP,
	}, nil
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}
