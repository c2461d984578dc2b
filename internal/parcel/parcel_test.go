package parcel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParcels() []*Parcel {
	return []*Parcel{
		{ID: "c", SalePrice: 150000, LivableArea: 1200, Fireplaces: 1, Label: LabelModeling},
		{ID: "a", SalePrice: 90000, LivableArea: 900, Label: LabelModeling},
		{ID: "b", SalePrice: 0, LivableArea: 1100, Label: LabelModeling},
		{ID: "d", SalePrice: 0, LivableArea: 1000, Label: LabelChallenge},
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name     string
		p        Parcel
		expected bool
	}{
		{name: "modeling with price", p: Parcel{Label: LabelModeling, SalePrice: 1}, expected: true},
		{name: "modeling without price", p: Parcel{Label: LabelModeling, SalePrice: 0}, expected: false},
		{name: "challenge with price", p: Parcel{Label: LabelChallenge, SalePrice: 1}, expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.p.Eligible())
		})
	}
}

func TestNewFrameSeedsBaseColumns(t *testing.T) {
	f := NewFrame(testParcels())

	assert.ElementsMatch(t, []string{
		"livable_area", "year_built", "exterior_condition",
		"interior_condition", "fireplaces", "garage_spaces",
	}, f.NumColumns())

	col, err := f.NumColumn("livable_area")
	require.NoError(t, err)
	assert.Equal(t, []float64{1200, 900, 1100, 1000}, col)
}

func TestAttachNum(t *testing.T) {
	f := NewFrame(testParcels())

	require.NoError(t, f.AttachNum("crime_count", []float64{3, 0, 1, 2}))
	col, err := f.NumColumn("crime_count")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 1, 2}, col)
	assert.Contains(t, f.NumColumns(), "crime_count")

	// Re-attaching does not duplicate the declaration.
	require.NoError(t, f.AttachNum("crime_count", []float64{1, 1, 1, 1}))
	var seen int
	for _, c := range f.NumColumns() {
		if c == "crime_count" {
			seen++
		}
	}
	assert.Equal(t, 1, seen)
}

func TestAttachNumLengthMismatch(t *testing.T) {
	f := NewFrame(testParcels())
	err := f.AttachNum("bad", []float64{1, 2})
	assert.Error(t, err)
}

func TestAttachCat(t *testing.T) {
	f := NewFrame(testParcels())
	require.NoError(t, f.AttachCat("neighborhood", []string{"x", "y", "x", "z"}))
	assert.Equal(t, []string{"neighborhood"}, f.CatColumns())
	assert.Equal(t, "y", f.Parcels[1].Cat["neighborhood"])

	assert.Error(t, f.AttachCat("bad", []string{"only one"}))
}

func TestNumColumnUndeclared(t *testing.T) {
	f := NewFrame(testParcels())
	_, err := f.NumColumn("nope")
	assert.Error(t, err)
}

func TestModelingFiltersAndSorts(t *testing.T) {
	f := NewFrame(testParcels())
	m := f.Modeling()

	require.Len(t, m, 2)
	assert.Equal(t, "a", m[0].ID)
	assert.Equal(t, "c", m[1].ID)
}

func TestChallenge(t *testing.T) {
	f := NewFrame(testParcels())
	c := f.Challenge()

	require.Len(t, c, 1)
	assert.Equal(t, "d", c[0].ID)
}

func TestRestoreFrame(t *testing.T) {
	f := NewFrame(testParcels())
	require.NoError(t, f.AttachNum("crime_count", []float64{3, 0, 1, 2}))
	require.NoError(t, f.AttachCat("neighborhood", []string{"x", "y", "x", "z"}))

	restored := RestoreFrame(f.Parcels)

	assert.Contains(t, restored.NumColumns(), "crime_count")
	assert.Contains(t, restored.NumColumns(), "livable_area")
	assert.Equal(t, []string{"neighborhood"}, restored.CatColumns())

	col, err := restored.NumColumn("crime_count")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 1, 2}, col)
}
