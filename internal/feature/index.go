package feature

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// xyPoint is a planar point with the index of the feature it represents.
type xyPoint struct {
	x, y float64
	idx  int
}

func (p xyPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(xyPoint)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	default:
		panic("feature: illegal dimension")
	}
}

func (p xyPoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance, per kdtree convention.
func (p xyPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(xyPoint)
	dx := p.x - q.x
	dy := p.y - q.y
	return dx*dx + dy*dy
}

// xyPoints implements kdtree.Interface.
type xyPoints []xyPoint

func (p xyPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p xyPoints) Len() int                              { return len(p) }
func (p xyPoints) Pivot(d kdtree.Dim) int                { return xyPlane{Dim: d, pts: p}.Pivot() }
func (p xyPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// xyPlane implements kdtree.SortSlicer for a fixed dimension.
type xyPlane struct {
	kdtree.Dim
	pts xyPoints
}

func (p xyPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.pts[i].x < p.pts[j].x
	case 1:
		return p.pts[i].y < p.pts[j].y
	default:
		panic("feature: illegal dimension")
	}
}

func (p xyPlane) Len() int { return len(p.pts) }

// Pivot sorts the plane on its dimension and takes the middle element.
// A randomized median-of-medians pivot would vary the tree shape across
// identical runs and with it which distance-tied neighbors survive a
// k-nearest query.
func (p xyPlane) Pivot() int {
	sort.Sort(p)
	return p.Len() / 2
}

func (p xyPlane) Slice(start, end int) kdtree.SortSlicer {
	p.pts = p.pts[start:end]
	return p
}

func (p xyPlane) Swap(i, j int) { p.pts[i], p.pts[j] = p.pts[j], p.pts[i] }

// Neighbor is one nearest-neighbor match.
type Neighbor struct {
	Idx  int
	Dist float64
}

// Index is a kd-tree over a planar point set.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds an index over the given coordinates.
func NewIndex(coords [][2]float64) *Index {
	pts := make(xyPoints, len(coords))
	for i, c := range coords {
		pts[i] = xyPoint{x: c[0], y: c[1], idx: i}
	}
	return &Index{tree: kdtree.New(pts, false), n: len(pts)}
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.n }

// Nearest returns up to k nearest points to (x, y), sorted by ascending
// distance, ties broken by index. Distances are Euclidean (unsquared).
func (ix *Index) Nearest(x, y float64, k int) []Neighbor {
	if ix.n == 0 || k <= 0 {
		return nil
	}
	if k > ix.n {
		k = ix.n
	}
	keep := kdtree.NewNKeeper(k)
	ix.tree.NearestSet(keep, xyPoint{x: x, y: y, idx: -1})

	out := make([]Neighbor, 0, k)
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		p := c.Comparable.(xyPoint)
		out = append(out, Neighbor{Idx: p.idx, Dist: math.Sqrt(c.Dist)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dist != out[j].Dist {
			return out[i].Dist < out[j].Dist
		}
		return out[i].Idx < out[j].Idx
	})
	return out
}

// CountWithin returns the number of indexed points within radius of (x, y).
func (ix *Index) CountWithin(x, y, radius float64) int {
	if ix.n == 0 || radius < 0 {
		return 0
	}
	// DistKeeper bounds use the squared-distance metric.
	keep := kdtree.NewDistKeeper(radius * radius)
	ix.tree.NearestSet(keep, xyPoint{x: x, y: y, idx: -1})

	var count int
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		count++
	}
	return count
}
