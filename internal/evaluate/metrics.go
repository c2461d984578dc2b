// Package evaluate scores the fitted model: per-record errors, grouped
// aggregates, repeated cross-validation, and spatial autocorrelation of
// residuals.
package evaluate

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hedonic-cli/internal/hedonic"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// Income context buckets.
const (
	BucketHigh = "High"
	BucketLow  = "Low"
)

// Prediction is one scored test-set record.
type Prediction struct {
	ID           string  `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Observed     float64 `json:"observed"`
	Predicted    float64 `json:"predicted"`
	Err          float64 `json:"err"`
	AbsErr       float64 `json:"abs_err"`
	APE          float64 `json:"ape"`
	Neighborhood string  `json:"neighborhood"`
	IncomeBucket string  `json:"income_bucket"`
}

// Metrics aggregates prediction errors.
type Metrics struct {
	N    int     `json:"n"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
}

// IncomeBucket classifies a tract's median income against the threshold.
// A value exactly at the threshold is High.
func IncomeBucket(medianIncome, threshold float64) string {
	if medianIncome >= threshold {
		return BucketHigh
	}
	return BucketLow
}

// Score predicts every test parcel and derives its error metrics. Test
// parcels must carry a positive observed price.
func Score(m *hedonic.Model, test []*parcel.Parcel, incomeThreshold float64) ([]Prediction, error) {
	if len(test) == 0 {
		return nil, eris.New("evaluate: empty test set")
	}

	preds := make([]Prediction, len(test))
	for i, p := range test {
		if p.SalePrice <= 0 {
			return nil, eris.Errorf("evaluate: test parcel %s has non-positive price", p.ID)
		}
		yhat := m.Predict(p)
		e := yhat - p.SalePrice
		abs := e
		if abs < 0 {
			abs = -abs
		}
		preds[i] = Prediction{
			ID:           p.ID,
			X:            p.X,
			Y:            p.Y,
			Observed:     p.SalePrice,
			Predicted:    yhat,
			Err:          e,
			AbsErr:       abs,
			APE:          abs / p.SalePrice,
			Neighborhood: p.Cat["neighborhood"],
			IncomeBucket: IncomeBucket(p.Num["median_income"], incomeThreshold),
		}
	}
	return preds, nil
}

// ResidualField extracts the absolute residuals and coordinates fed to the
// spatial autocorrelation test. Error magnitude is what clusters when the
// model systematically misses an area; signed errors cancel there.
func ResidualField(preds []Prediction) ([]float64, [][2]float64) {
	values := make([]float64, len(preds))
	coords := make([][2]float64, len(preds))
	for i, p := range preds {
		values[i] = p.AbsErr
		coords[i] = [2]float64{p.X, p.Y}
	}
	return values, coords
}

// Aggregate computes MAE/MAPE over a prediction set.
func Aggregate(preds []Prediction) Metrics {
	if len(preds) == 0 {
		return Metrics{}
	}
	var sumAbs, sumAPE float64
	for _, p := range preds {
		sumAbs += p.AbsErr
		sumAPE += p.APE
	}
	n := float64(len(preds))
	return Metrics{N: len(preds), MAE: sumAbs / n, MAPE: sumAPE / n}
}

// Group is one keyed aggregate.
type Group struct {
	Key     string
	Metrics Metrics
}

// GroupBy aggregates predictions under the given key function, sorted by key.
func GroupBy(preds []Prediction, key func(Prediction) string) []Group {
	buckets := make(map[string][]Prediction)
	for _, p := range preds {
		k := key(p)
		buckets[k] = append(buckets[k], p)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		out = append(out, Group{Key: k, Metrics: Aggregate(buckets[k])})
	}
	return out
}

// ByNeighborhood aggregates MAE/MAPE per neighborhood.
func ByNeighborhood(preds []Prediction) []Group {
	return GroupBy(preds, func(p Prediction) string { return p.Neighborhood })
}

// ByIncomeBucket aggregates MAE/MAPE per income-context bucket.
func ByIncomeBucket(preds []Prediction) []Group {
	return GroupBy(preds, func(p Prediction) string { return p.IncomeBucket })
}
