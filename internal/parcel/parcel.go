// Package parcel defines the in-memory data model for the pricing pipeline:
// parcel sale records, the column-tracking frame they travel in, and the
// geographic layers features are derived from.
package parcel

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Label marks how a parcel record participates in the pipeline.
type Label string

const (
	// LabelModeling marks records eligible for training and evaluation.
	LabelModeling Label = "modeling"
	// LabelChallenge marks held-out records that only receive predictions.
	LabelChallenge Label = "challenge"
)

// Parcel is a single real-estate sale record. Structural attributes come
// from the source CSV; engineered columns are attached via Num and Cat.
type Parcel struct {
	ID                string  `csv:"parcel_id" json:"id"`
	SalePrice         float64 `csv:"sale_price" json:"sale_price"`
	X                 float64 `csv:"x" json:"x"`
	Y                 float64 `csv:"y" json:"y"`
	LivableArea       float64 `csv:"livable_area" json:"livable_area"`
	YearBuilt         int     `csv:"year_built" json:"year_built"`
	ExteriorCondition int     `csv:"exterior_condition" json:"exterior_condition"`
	InteriorCondition int     `csv:"interior_condition" json:"interior_condition"`
	Fireplaces        int     `csv:"fireplaces" json:"fireplaces"`
	GarageSpaces      int     `csv:"garage_spaces" json:"garage_spaces"`
	Label             Label   `csv:"label" json:"label"`

	// Num holds numeric feature columns keyed by column name.
	Num map[string]float64 `csv:"-" json:"num,omitempty"`
	// Cat holds categorical feature columns keyed by column name.
	Cat map[string]string `csv:"-" json:"cat,omitempty"`
}

// baseColumns are the structural attributes exposed as numeric columns so the
// model matrix can address every regressor by name.
var baseColumns = []string{
	"livable_area", "year_built", "exterior_condition",
	"interior_condition", "fireplaces", "garage_spaces",
}

// SeedBaseColumns copies the structural attributes into the Num map.
func (p *Parcel) SeedBaseColumns() {
	if p.Num == nil {
		p.Num = make(map[string]float64, len(baseColumns))
	}
	if p.Cat == nil {
		p.Cat = make(map[string]string)
	}
	p.Num["livable_area"] = p.LivableArea
	p.Num["year_built"] = float64(p.YearBuilt)
	p.Num["exterior_condition"] = float64(p.ExteriorCondition)
	p.Num["interior_condition"] = float64(p.InteriorCondition)
	p.Num["fireplaces"] = float64(p.Fireplaces)
	p.Num["garage_spaces"] = float64(p.GarageSpaces)
}

// Eligible reports whether the parcel may enter the modeling set.
func (p *Parcel) Eligible() bool {
	return p.Label == LabelModeling && p.SalePrice > 0
}

// Frame is an ordered set of parcels plus the declared feature columns.
// Every declared column has a value on every parcel: attachment is all-or-
// nothing, so a non-match shows up as the feature's fill value, never as a
// missing row.
type Frame struct {
	Parcels []*Parcel

	numCols []string
	catCols []string
}

// NewFrame wraps parcels in a frame and seeds the structural columns.
func NewFrame(parcels []*Parcel) *Frame {
	for _, p := range parcels {
		p.SeedBaseColumns()
	}
	f := &Frame{Parcels: parcels}
	f.numCols = append(f.numCols, baseColumns...)
	return f
}

// AttachNum declares a numeric column and writes one value per parcel.
func (f *Frame) AttachNum(name string, col []float64) error {
	if len(col) != len(f.Parcels) {
		return eris.Errorf("frame: column %s has %d values for %d parcels", name, len(col), len(f.Parcels))
	}
	for i, p := range f.Parcels {
		p.Num[name] = col[i]
	}
	f.numCols = appendUnique(f.numCols, name)
	return nil
}

// AttachCat declares a categorical column and writes one value per parcel.
func (f *Frame) AttachCat(name string, col []string) error {
	if len(col) != len(f.Parcels) {
		return eris.Errorf("frame: column %s has %d values for %d parcels", name, len(col), len(f.Parcels))
	}
	for i, p := range f.Parcels {
		p.Cat[name] = col[i]
	}
	f.catCols = appendUnique(f.catCols, name)
	return nil
}

// NumColumn materializes a declared numeric column in parcel order.
func (f *Frame) NumColumn(name string) ([]float64, error) {
	if !contains(f.numCols, name) {
		return nil, eris.Errorf("frame: numeric column %s not declared", name)
	}
	col := make([]float64, len(f.Parcels))
	for i, p := range f.Parcels {
		col[i] = p.Num[name]
	}
	return col, nil
}

// NumColumns returns the declared numeric column names in attachment order.
func (f *Frame) NumColumns() []string {
	out := make([]string, len(f.numCols))
	copy(out, f.numCols)
	return out
}

// CatColumns returns the declared categorical column names.
func (f *Frame) CatColumns() []string {
	out := make([]string, len(f.catCols))
	copy(out, f.catCols)
	return out
}

// Modeling returns the modeling-eligible parcels sorted by ID so downstream
// seeded shuffles are reproducible regardless of load order.
func (f *Frame) Modeling() []*Parcel {
	var out []*Parcel
	for _, p := range f.Parcels {
		if p.Eligible() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Challenge returns the held-out parcels awaiting prediction.
func (f *Frame) Challenge() []*Parcel {
	var out []*Parcel
	for _, p := range f.Parcels {
		if p.Label == LabelChallenge {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RestoreFrame rebuilds a frame from staged parcels, re-declaring every
// column present on the records. Used when a later stage loads the
// engineered dataset back from the store.
func RestoreFrame(parcels []*Parcel) *Frame {
	f := NewFrame(parcels)

	numSet := make(map[string]bool)
	catSet := make(map[string]bool)
	for _, p := range parcels {
		for k := range p.Num {
			numSet[k] = true
		}
		for k := range p.Cat {
			catSet[k] = true
		}
	}

	var numCols, catCols []string
	for k := range numSet {
		numCols = append(numCols, k)
	}
	for k := range catSet {
		catCols = append(catCols, k)
	}
	sort.Strings(numCols)
	sort.Strings(catCols)

	for _, c := range numCols {
		f.numCols = appendUnique(f.numCols, c)
	}
	for _, c := range catCols {
		f.catCols = appendUnique(f.catCols, c)
	}
	return f
}

func appendUnique(cols []string, name string) []string {
	if contains(cols, name) {
		return cols
	}
	return append(cols, name)
}

func contains(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
