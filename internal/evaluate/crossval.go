package evaluate

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/hedonic-cli/internal/hedonic"
	"github.com/sells-group/hedonic-cli/internal/parcel"
	"github.com/sells-group/hedonic-cli/internal/partition"
)

// CVResult summarizes the per-fold MAE distribution of repeated
// cross-validation. This measures stability of the fixed model, not
// hyperparameter search.
type CVResult struct {
	Folds   int       `json:"folds"`
	FoldMAE []float64 `json:"fold_mae"`
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"std_dev"`
	Min     float64   `json:"min"`
	Q1      float64   `json:"q1"`
	Median  float64   `json:"median"`
	Q3      float64   `json:"q3"`
	Max     float64   `json:"max"`
}

// CrossValidate refits the model once per fold (training on the remaining
// folds) and collects each fold's test MAE. Fold assignment is deterministic
// under the seed.
func CrossValidate(modeling []*parcel.Parcel, features []string, folds int, seed int64, incomeThreshold float64) (*CVResult, error) {
	idxFolds, err := partition.Folds(len(modeling), folds, seed)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "evaluate.cv"))
	inFold := make([]bool, len(modeling))
	maes := make([]float64, 0, folds)

	for fi, fold := range idxFolds {
		for _, i := range fold {
			inFold[i] = true
		}

		train := make([]*parcel.Parcel, 0, len(modeling)-len(fold))
		test := make([]*parcel.Parcel, 0, len(fold))
		for i, p := range modeling {
			if inFold[i] {
				test = append(test, p)
			} else {
				train = append(train, p)
			}
		}

		m, err := hedonic.Fit(train, features)
		if err != nil {
			return nil, eris.Wrapf(err, "evaluate: cv fold %d fit", fi)
		}
		preds, err := Score(m, test, incomeThreshold)
		if err != nil {
			return nil, eris.Wrapf(err, "evaluate: cv fold %d score", fi)
		}
		maes = append(maes, Aggregate(preds).MAE)

		for _, i := range fold {
			inFold[i] = false
		}
	}

	sorted := make([]float64, len(maes))
	copy(sorted, maes)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(maes, nil)
	res := &CVResult{
		Folds:   folds,
		FoldMAE: maes,
		Mean:    mean,
		StdDev:  std,
		Min:     sorted[0],
		Q1:      stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:      stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:     sorted[len(sorted)-1],
	}

	log.Info("cross-validation complete",
		zap.Int("folds", folds),
		zap.Float64("mean_mae", res.Mean),
		zap.Float64("std_mae", res.StdDev),
	)
	return res, nil
}
