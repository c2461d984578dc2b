package evaluate

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hedonic-cli/internal/parcel"
)

func cvParcels(n int, seed int64) []*parcel.Parcel {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*parcel.Parcel, n)
	for i := 0; i < n; i++ {
		area := 800 + rng.Float64()*2000
		out[i] = &parcel.Parcel{
			ID:        fmt.Sprintf("cv%04d", i),
			SalePrice: 20000 + 100*area + 2000*rng.NormFloat64(),
			Label:     parcel.LabelModeling,
			Num:       map[string]float64{"livable_area": area},
		}
	}
	return out
}

func TestCrossValidate(t *testing.T) {
	modeling := cvParcels(200, 11)

	cv, err := CrossValidate(modeling, []string{"livable_area"}, 10, 1897, 77454)
	require.NoError(t, err)

	assert.Equal(t, 10, cv.Folds)
	require.Len(t, cv.FoldMAE, 10)
	for i, mae := range cv.FoldMAE {
		assert.Greater(t, mae, 0.0, "fold %d", i)
	}

	assert.LessOrEqual(t, cv.Min, cv.Q1)
	assert.LessOrEqual(t, cv.Q1, cv.Median)
	assert.LessOrEqual(t, cv.Median, cv.Q3)
	assert.LessOrEqual(t, cv.Q3, cv.Max)
	assert.Greater(t, cv.Mean, 0.0)

	// Noise scale 2000 bounds the achievable MAE from both sides.
	assert.Greater(t, cv.Mean, 500.0)
	assert.Less(t, cv.Mean, 5000.0)
}

func TestCrossValidateDeterministic(t *testing.T) {
	modeling := cvParcels(100, 12)

	a, err := CrossValidate(modeling, []string{"livable_area"}, 5, 7, 77454)
	require.NoError(t, err)
	b, err := CrossValidate(modeling, []string{"livable_area"}, 5, 7, 77454)
	require.NoError(t, err)

	assert.Equal(t, a.FoldMAE, b.FoldMAE)
}

func TestCrossValidateTooFewRecords(t *testing.T) {
	_, err := CrossValidate(cvParcels(3, 13), []string{"livable_area"}, 10, 1, 77454)
	assert.Error(t, err)
}
