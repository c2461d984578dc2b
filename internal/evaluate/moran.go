package evaluate

import (
	"math/rand"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/hedonic-cli/internal/feature"
)

// MoranResult holds the observed Moran's I of a variable over a k-nearest-
// neighbor weights matrix, with its Monte Carlo permutation context.
type MoranResult struct {
	I            float64 `json:"i"`
	K            int     `json:"k"`
	Permutations int     `json:"permutations"`
	PermMean     float64 `json:"perm_mean"`
	// Rank is the observed statistic's position from the bottom among the
	// permuted values plus itself, in [1, permutations+1]. Extreme positive
	// autocorrelation ranks at the top.
	Rank    int     `json:"rank"`
	PseudoP float64 `json:"pseudo_p"`
}

// Moran computes Moran's I of values over a row-standardized k-nearest-
// neighbor spatial weights matrix (self excluded, uniform weights), and runs
// a seeded permutation test. A zero-variance input is degenerate: I is 0 and
// the pseudo p-value is 1.
func Moran(values []float64, coords [][2]float64, k, permutations int, seed int64) (*MoranResult, error) {
	n := len(values)
	if n != len(coords) {
		return nil, eris.Errorf("evaluate: moran: %d values for %d coordinates", n, len(coords))
	}
	if k <= 0 || k >= n {
		return nil, eris.Errorf("evaluate: moran: k=%d out of range for n=%d", k, n)
	}
	if permutations <= 0 {
		return nil, eris.Errorf("evaluate: moran: permutations must be positive")
	}

	// Neighbor structure is fixed across permutations.
	ix := feature.NewIndex(coords)
	neighbors := make([][]int, n)
	for i, c := range coords {
		nn := ix.Nearest(c[0], c[1], k+1)
		ids := make([]int, 0, k)
		for _, m := range nn {
			if m.Idx == i {
				continue
			}
			if len(ids) == k {
				break
			}
			ids = append(ids, m.Idx)
		}
		neighbors[i] = ids
	}

	mean := stat.Mean(values, nil)
	z := make([]float64, n)
	var m2 float64
	for i, v := range values {
		z[i] = v - mean
		m2 += z[i] * z[i]
	}
	if m2 == 0 {
		return &MoranResult{K: k, Permutations: permutations, Rank: 1, PseudoP: 1}, nil
	}

	observed := moranStat(z, neighbors, m2)

	rng := rand.New(rand.NewSource(seed))
	perm := make([]float64, n)
	copy(perm, z)

	var below, atOrAbove int
	var permSum float64
	for p := 0; p < permutations; p++ {
		rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		pi := moranStat(perm, neighbors, m2)
		permSum += pi
		if pi < observed {
			below++
		} else {
			atOrAbove++
		}
	}

	return &MoranResult{
		I:            observed,
		K:            k,
		Permutations: permutations,
		PermMean:     permSum / float64(permutations),
		Rank:         below + 1,
		PseudoP:      float64(atOrAbove+1) / float64(permutations+1),
	}, nil
}

// moranStat computes I given centered values, the neighbor lists, and the
// centered sum of squares. Row standardization makes the weight sum equal n,
// so the n/S0 factor cancels to 1.
func moranStat(z []float64, neighbors [][]int, m2 float64) float64 {
	var num float64
	for i, ids := range neighbors {
		if len(ids) == 0 {
			continue
		}
		w := 1 / float64(len(ids))
		for _, j := range ids {
			num += w * z[i] * z[j]
		}
	}
	return num / m2
}
