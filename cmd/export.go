package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hedonic-cli/internal/evaluate"
	"github.com/sells-group/hedonic-cli/internal/ingest"
	"github.com/sells-group/hedonic-cli/internal/report"
	"github.com/sells-group/hedonic-cli/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write evaluation artifacts and challenge predictions",
	Long:  "Writes the challenge prediction CSV, the model YAML, the evaluation workbook, plots, and the tract income-context shapefile to the output directory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		return runStage(ctx, st, "export", stageExport)
	},
}

func stageExport(ctx context.Context, st store.Store) (map[string]any, error) {
	frame, _, err := loadSplit(ctx, st)
	if err != nil {
		return nil, err
	}
	m, err := st.LoadModel(ctx)
	if err != nil {
		return nil, err
	}
	preds, err := st.LoadPredictions(ctx)
	if err != nil {
		return nil, err
	}
	if len(preds) == 0 {
		return nil, eris.New("export: no staged predictions; run evaluate first")
	}

	dir := cfg.Output.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create output dir %s", dir)
	}

	// Challenge predictions: every held-out record gets a price.
	challenge := frame.Challenge()
	rows := make([]report.ChallengePrediction, len(challenge))
	for i, p := range challenge {
		rows[i] = report.ChallengePrediction{ID: p.ID, Predicted: m.Predict(p)}
	}
	if err := report.WritePredictionsCSV(rows, filepath.Join(dir, "challenge_predictions.csv")); err != nil {
		return nil, err
	}

	if err := report.WriteModelYAML(m, filepath.Join(dir, "model.yaml")); err != nil {
		return nil, err
	}

	// CV and Moran are deterministic under the seed, so the workbook
	// recomputes them rather than persisting a second copy.
	cv, err := evaluate.CrossValidate(frame.Modeling(), m.Features, cfg.Split.Folds, cfg.Split.Seed, cfg.Eval.IncomeThreshold)
	if err != nil {
		return nil, err
	}
	residuals, coords := evaluate.ResidualField(preds)
	mr, err := evaluate.Moran(residuals, coords, cfg.Eval.MoranK, cfg.Eval.Permutations, cfg.Split.Seed)
	if err != nil {
		return nil, err
	}

	overall := evaluate.Aggregate(preds)
	byHood := evaluate.ByNeighborhood(preds)
	byIncome := evaluate.ByIncomeBucket(preds)
	if err := report.WriteWorkbook(m, overall, byHood, byIncome, cv, mr, filepath.Join(dir, "evaluation.xlsx")); err != nil {
		return nil, err
	}

	if err := report.ObservedVsPredicted(preds, filepath.Join(dir, "observed_vs_predicted.png")); err != nil {
		return nil, err
	}
	if err := report.CVHistogram(cv, filepath.Join(dir, "cv_mae_hist.png")); err != nil {
		return nil, err
	}
	if err := report.ResidualMap(preds, filepath.Join(dir, "residual_map.png")); err != nil {
		return nil, err
	}

	tracts, err := st.LoadLayer(ctx, ingest.LayerTracts)
	if err != nil {
		return nil, err
	}
	if err := report.WriteTractShapefile(tracts, cfg.Eval.IncomeThreshold, filepath.Join(dir, "tracts_income.shp")); err != nil {
		return nil, err
	}

	zap.L().Info("artifacts written",
		zap.String("dir", dir),
		zap.Int("challenge_predictions", len(rows)),
	)
	return map[string]any{
		"dir":                   dir,
		"challenge_predictions": len(rows),
	}, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
