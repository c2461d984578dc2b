// Package partition splits the modeling set into train/test subsets and
// cross-validation folds. All assignment is deterministic under a fixed seed.
package partition

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// Split holds the train/test partition of the modeling set.
type Split struct {
	Train []*parcel.Parcel
	Test  []*parcel.Parcel
}

// StratumKey derives the categorical stratum for a parcel: the joint
// combination of exterior condition, fireplace presence, and garage presence.
func StratumKey(p *parcel.Parcel) string {
	fireplace := 0
	if p.Fireplaces > 0 {
		fireplace = 1
	}
	garage := 0
	if p.GarageSpaces > 0 {
		garage = 1
	}
	return fmt.Sprintf("%d|%d|%d", p.ExteriorCondition, fireplace, garage)
}

// StratifiedSplit partitions parcels into train/test preserving stratum
// proportions. Per-stratum train counts use floor allocation with the global
// remainder distributed by largest fractional part (ties by stratum key), so
// train+test always equals the input count exactly. Input order does not
// matter: strata are shuffled after an ID sort under the seed.
func StratifiedSplit(parcels []*parcel.Parcel, ratio float64, seed int64) (Split, error) {
	if ratio <= 0 || ratio >= 1 {
		return Split{}, eris.Errorf("partition: train ratio %.2f out of (0, 1)", ratio)
	}
	if len(parcels) < 2 {
		return Split{}, eris.Errorf("partition: need at least 2 records, got %d", len(parcels))
	}

	strata := make(map[string][]*parcel.Parcel)
	for _, p := range parcels {
		k := StratumKey(p)
		strata[k] = append(strata[k], p)
	}

	keys := make([]string, 0, len(strata))
	for k := range strata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Floor allocation first, then hand out the remainder by largest
	// fractional part so the global train count hits round(ratio·n).
	target := int(math.Round(ratio * float64(len(parcels))))
	type alloc struct {
		key  string
		take int
		frac float64
	}
	allocs := make([]alloc, 0, len(keys))
	var floorSum int
	for _, k := range keys {
		exact := ratio * float64(len(strata[k]))
		base := int(math.Floor(exact))
		allocs = append(allocs, alloc{key: k, take: base, frac: exact - float64(base)})
		floorSum += base
	}

	remainder := target - floorSum
	order := make([]int, len(allocs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if allocs[order[a]].frac != allocs[order[b]].frac {
			return allocs[order[a]].frac > allocs[order[b]].frac
		}
		return allocs[order[a]].key < allocs[order[b]].key
	})
	for i := 0; i < remainder && i < len(order); i++ {
		allocs[order[i]].take++
	}

	rng := rand.New(rand.NewSource(seed))
	var split Split
	for _, a := range allocs {
		group := strata[a.key]
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })

		take := a.take
		if take > len(group) {
			take = len(group)
		}
		split.Train = append(split.Train, group[:take]...)
		split.Test = append(split.Test, group[take:]...)
	}

	if len(split.Train)+len(split.Test) != len(parcels) {
		return Split{}, eris.Errorf("partition: split %d+%d does not cover %d records",
			len(split.Train), len(split.Test), len(parcels))
	}
	return split, nil
}

// Folds assigns parcels to k cross-validation folds by seeded shuffle and
// round-robin. Returns per-fold index slices into the input; every index
// appears in exactly one fold.
func Folds(n, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, eris.Errorf("partition: need at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, eris.Errorf("partition: %d records cannot fill %d folds", n, k)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	folds := make([][]int, k)
	for i, v := range idx {
		f := i % k
		folds[f] = append(folds[f], v)
	}
	return folds, nil
}
