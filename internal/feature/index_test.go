package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearest(t *testing.T) {
	ix := NewIndex([][2]float64{
		{0, 0}, {3, 0}, {0, 4}, {10, 10},
	})

	nn := ix.Nearest(0, 0, 3)
	require.Len(t, nn, 3)

	assert.Equal(t, 0, nn[0].Idx)
	assert.InDelta(t, 0, nn[0].Dist, 1e-9)
	assert.Equal(t, 1, nn[1].Idx)
	assert.InDelta(t, 3, nn[1].Dist, 1e-9)
	assert.Equal(t, 2, nn[2].Idx)
	assert.InDelta(t, 4, nn[2].Dist, 1e-9)
}

func TestNearestClampsK(t *testing.T) {
	ix := NewIndex([][2]float64{{0, 0}, {1, 1}})
	nn := ix.Nearest(0, 0, 10)
	assert.Len(t, nn, 2)
}

func TestNearestEmptyIndex(t *testing.T) {
	ix := NewIndex(nil)
	assert.Nil(t, ix.Nearest(0, 0, 3))
}

func TestNearestSortedByDistance(t *testing.T) {
	coords := [][2]float64{
		{5, 5}, {1, 1}, {9, 9}, {2, 2}, {7, 7}, {3, 3},
	}
	ix := NewIndex(coords)

	nn := ix.Nearest(0, 0, len(coords))
	require.Len(t, nn, len(coords))
	for i := 1; i < len(nn); i++ {
		assert.GreaterOrEqual(t, nn[i].Dist, nn[i-1].Dist)
	}
}

func TestNearestDeterministicAcrossBuilds(t *testing.T) {
	coords := make([][2]float64, 0, 38)
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			coords = append(coords, [2]float64{float64(i), float64(j)})
		}
	}
	// Duplicate coordinates force distance ties between distinct indices.
	coords = append(coords, [2]float64{2, 2}, [2]float64{3, 3})

	a := NewIndex(coords)
	b := NewIndex(coords)
	for i, c := range coords {
		assert.Equal(t, a.Nearest(c[0], c[1], 4), b.Nearest(c[0], c[1], 4), "query %d", i)
	}
}

func TestCountWithin(t *testing.T) {
	ix := NewIndex([][2]float64{
		{0, 0}, {1, 0}, {0, 2}, {5, 5},
	})

	tests := []struct {
		name     string
		radius   float64
		expected int
	}{
		{name: "zero radius hits exact point", radius: 0, expected: 1},
		{name: "radius one", radius: 1, expected: 2},
		{name: "radius two", radius: 2, expected: 3},
		{name: "covers all", radius: 100, expected: 4},
		{name: "negative radius", radius: -1, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ix.CountWithin(0, 0, tt.radius))
		})
	}
}

func TestIndexLen(t *testing.T) {
	assert.Equal(t, 3, NewIndex([][2]float64{{0, 0}, {1, 1}, {2, 2}}).Len())
	assert.Equal(t, 0, NewIndex(nil).Len())
}
