package partition

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// makeParcels builds n modeling parcels spread over a few strata.
func makeParcels(n int) []*parcel.Parcel {
	out := make([]*parcel.Parcel, n)
	for i := 0; i < n; i++ {
		out[i] = &parcel.Parcel{
			ID:                fmt.Sprintf("p%04d", i),
			SalePrice:         100000 + float64(i),
			ExteriorCondition: i % 4,
			Fireplaces:        i % 3,
			GarageSpaces:      i % 2,
			Label:             parcel.LabelModeling,
		}
	}
	return out
}

func TestStratumKey(t *testing.T) {
	tests := []struct {
		name     string
		p        parcel.Parcel
		expected string
	}{
		{name: "all zero", p: parcel.Parcel{}, expected: "0|0|0"},
		{name: "fireplace presence is binary", p: parcel.Parcel{ExteriorCondition: 3, Fireplaces: 4}, expected: "3|1|0"},
		{name: "garage presence is binary", p: parcel.Parcel{GarageSpaces: 2}, expected: "0|0|1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StratumKey(&tt.p))
		})
	}
}

func TestStratifiedSplitCounts(t *testing.T) {
	parcels := makeParcels(1000)
	split, err := StratifiedSplit(parcels, 0.6, 1897)
	require.NoError(t, err)

	assert.Len(t, split.Train, 600)
	assert.Len(t, split.Test, 400)
}

func TestStratifiedSplitCoverage(t *testing.T) {
	parcels := makeParcels(257)
	split, err := StratifiedSplit(parcels, 0.6, 42)
	require.NoError(t, err)

	seen := make(map[string]int, len(parcels))
	for _, p := range split.Train {
		seen[p.ID]++
	}
	for _, p := range split.Test {
		seen[p.ID]++
	}
	require.Len(t, seen, len(parcels))
	for id, n := range seen {
		assert.Equal(t, 1, n, "parcel %s assigned %d times", id, n)
	}
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	a, err := StratifiedSplit(makeParcels(500), 0.6, 7)
	require.NoError(t, err)
	b, err := StratifiedSplit(makeParcels(500), 0.6, 7)
	require.NoError(t, err)

	require.Len(t, b.Train, len(a.Train))
	for i := range a.Train {
		assert.Equal(t, a.Train[i].ID, b.Train[i].ID)
	}
}

func TestStratifiedSplitInputOrderIndependent(t *testing.T) {
	forward := makeParcels(300)
	reversed := makeParcels(300)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}

	a, err := StratifiedSplit(forward, 0.6, 9)
	require.NoError(t, err)
	b, err := StratifiedSplit(reversed, 0.6, 9)
	require.NoError(t, err)

	idsOf := func(ps []*parcel.Parcel) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}
	assert.ElementsMatch(t, idsOf(a.Train), idsOf(b.Train))
}

func TestStratifiedSplitPreservesStrata(t *testing.T) {
	parcels := makeParcels(1000)
	split, err := StratifiedSplit(parcels, 0.6, 1897)
	require.NoError(t, err)

	total := make(map[string]int)
	train := make(map[string]int)
	for _, p := range parcels {
		total[StratumKey(p)]++
	}
	for _, p := range split.Train {
		train[StratumKey(p)]++
	}
	for k, n := range total {
		got := float64(train[k]) / float64(n)
		assert.InDelta(t, 0.6, got, 0.05, "stratum %s train share %.3f", k, got)
	}
}

func TestStratifiedSplitRejectsBadRatio(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
	}{
		{name: "zero", ratio: 0},
		{name: "one", ratio: 1},
		{name: "negative", ratio: -0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StratifiedSplit(makeParcels(10), tt.ratio, 1)
			assert.Error(t, err)
		})
	}
}

func TestFoldsPartition(t *testing.T) {
	folds, err := Folds(600, 100, 1897)
	require.NoError(t, err)
	require.Len(t, folds, 100)

	seen := make(map[int]int, 600)
	for _, f := range folds {
		assert.Equal(t, 6, len(f))
		for _, i := range f {
			seen[i]++
		}
	}
	require.Len(t, seen, 600)
	for i, n := range seen {
		assert.Equal(t, 1, n, "index %d in %d folds", i, n)
	}
}

func TestFoldsDeterministic(t *testing.T) {
	a, err := Folds(50, 5, 3)
	require.NoError(t, err)
	b, err := Folds(50, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFoldsErrors(t *testing.T) {
	_, err := Folds(10, 1, 1)
	assert.Error(t, err, "fewer than 2 folds")

	_, err = Folds(3, 5, 1)
	assert.Error(t, err, "more folds than records")
}
