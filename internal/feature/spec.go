// Package feature engineers spatial columns onto parcel frames. Each Spec is
// a tagged variant: a kind plus the parameters that kind needs. Applying a
// spec computes one column with an explicit fill value for non-matches, so a
// parcel never silently drops out of the frame.
package feature

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hedonic-cli/internal/config"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// Kind tags the feature variant.
type Kind string

const (
	// KindCount counts layer events within a radius of each parcel.
	KindCount Kind = "count"
	// KindKNN averages the distance to the k nearest layer events.
	KindKNN Kind = "knn"
	// KindContain inherits an attribute of the containing polygon.
	KindContain Kind = "contain"
	// KindRatio divides two previously attached count columns.
	KindRatio Kind = "ratio"
	// KindLag averages a target value over the k nearest modeling parcels.
	KindLag Kind = "lag"
)

// Spec declares one engineered feature.
type Spec struct {
	Kind Kind
	Name string // output column name

	Layer       string  // count, knn, contain: source layer
	FilterAttr  string  // optional layer pre-filter
	FilterVal   string
	Radius      float64 // count: buffer radius in planar units
	K           int     // knn, lag: neighbor count
	Attr        string  // contain: polygon attribute to inherit
	Numeric     bool    // contain: attach attribute as numeric column
	Numerator   string  // ratio: numerator column
	Denominator string  // ratio: denominator column

	FillNum float64 // fill for numeric non-matches
	FillCat string  // fill for categorical non-matches
}

// Apply computes the declared column over the frame and attaches it.
func (s Spec) Apply(f *parcel.Frame, layers map[string]*parcel.Layer) error {
	switch s.Kind {
	case KindCount:
		return s.applyCount(f, layers)
	case KindKNN:
		return s.applyKNN(f, layers)
	case KindContain:
		return s.applyContain(f, layers)
	case KindRatio:
		return s.applyRatio(f)
	case KindLag:
		return s.applyLag(f)
	default:
		return eris.Errorf("feature: unknown kind %q", s.Kind)
	}
}

func (s Spec) layer(layers map[string]*parcel.Layer) (*parcel.Layer, error) {
	l, ok := layers[s.Layer]
	if !ok {
		return nil, eris.Errorf("feature: %s: layer %s not loaded", s.Name, s.Layer)
	}
	if s.FilterAttr != "" {
		l = l.Filter(s.FilterAttr, s.FilterVal)
	}
	return l, nil
}

func (s Spec) applyCount(f *parcel.Frame, layers map[string]*parcel.Layer) error {
	l, err := s.layer(layers)
	if err != nil {
		return err
	}
	ix := NewIndex(l.Points())

	col := make([]float64, len(f.Parcels))
	for i, p := range f.Parcels {
		col[i] = float64(ix.CountWithin(p.X, p.Y, s.Radius))
	}
	return f.AttachNum(s.Name, col)
}

func (s Spec) applyKNN(f *parcel.Frame, layers map[string]*parcel.Layer) error {
	if s.K <= 0 {
		return eris.Errorf("feature: %s: knn requires k > 0", s.Name)
	}
	l, err := s.layer(layers)
	if err != nil {
		return err
	}
	ix := NewIndex(l.Points())

	col := make([]float64, len(f.Parcels))
	for i, p := range f.Parcels {
		nn := ix.Nearest(p.X, p.Y, s.K)
		if len(nn) == 0 {
			col[i] = s.FillNum
			continue
		}
		var sum float64
		for _, n := range nn {
			sum += n.Dist
		}
		col[i] = sum / float64(len(nn))
	}
	return f.AttachNum(s.Name, col)
}

func (s Spec) applyContain(f *parcel.Frame, layers map[string]*parcel.Layer) error {
	l, err := s.layer(layers)
	if err != nil {
		return err
	}
	if l.Kind != parcel.KindPolygon {
		return eris.Errorf("feature: %s: contain requires a polygon layer", s.Name)
	}

	var unmatched int
	if s.Numeric {
		col := make([]float64, len(f.Parcels))
		for i, p := range f.Parcels {
			if m := l.FindContaining(p.X, p.Y); m != nil {
				col[i] = m.NumAttrs[s.Attr]
			} else {
				col[i] = s.FillNum
				unmatched++
			}
		}
		if err := f.AttachNum(s.Name, col); err != nil {
			return err
		}
	} else {
		col := make([]string, len(f.Parcels))
		for i, p := range f.Parcels {
			if m := l.FindContaining(p.X, p.Y); m != nil {
				col[i] = m.Attrs[s.Attr]
			} else {
				col[i] = s.FillCat
				unmatched++
			}
		}
		if err := f.AttachCat(s.Name, col); err != nil {
			return err
		}
	}

	if unmatched > 0 {
		zap.L().Warn("feature: parcels outside all polygons filled",
			zap.String("feature", s.Name),
			zap.Int("unmatched", unmatched),
		)
	}
	return nil
}

// applyRatio divides two attached count columns. A zero or missing
// denominator yields the fill value, never Inf or NaN.
func (s Spec) applyRatio(f *parcel.Frame) error {
	num, err := f.NumColumn(s.Numerator)
	if err != nil {
		return eris.Wrapf(err, "feature: %s", s.Name)
	}
	den, err := f.NumColumn(s.Denominator)
	if err != nil {
		return eris.Wrapf(err, "feature: %s", s.Name)
	}

	col := make([]float64, len(f.Parcels))
	for i := range col {
		if den[i] == 0 {
			col[i] = s.FillNum
			continue
		}
		col[i] = num[i] / den[i]
	}
	return f.AttachNum(s.Name, col)
}

// applyLag attaches the mean sale price of the k nearest modeling parcels,
// uniform weights, excluding the parcel itself.
func (s Spec) applyLag(f *parcel.Frame) error {
	if s.K <= 0 {
		return eris.Errorf("feature: %s: lag requires k > 0", s.Name)
	}

	modeling := f.Modeling()
	if len(modeling) < 2 {
		return eris.Errorf("feature: %s: lag requires at least 2 modeling parcels", s.Name)
	}

	coords := make([][2]float64, len(modeling))
	byIdx := make(map[string]int, len(modeling))
	for i, p := range modeling {
		coords[i] = [2]float64{p.X, p.Y}
		byIdx[p.ID] = i
	}
	ix := NewIndex(coords)

	col := make([]float64, len(f.Parcels))
	for i, p := range f.Parcels {
		// Query one extra neighbor so dropping self still leaves k.
		nn := ix.Nearest(p.X, p.Y, s.K+1)
		self, isModeling := byIdx[p.ID]

		var sum float64
		var kept int
		for _, n := range nn {
			if isModeling && n.Idx == self {
				continue
			}
			if kept == s.K {
				break
			}
			sum += modeling[n.Idx].SalePrice
			kept++
		}
		if kept == 0 {
			col[i] = s.FillNum
			continue
		}
		col[i] = sum / float64(kept)
	}
	return f.AttachNum(s.Name, col)
}

// DefaultSpecs is the pipeline's declared feature set, in application order.
// Ratio specs come after the count columns they divide.
func DefaultSpecs(cfg config.FeatureConfig) []Spec {
	specs := []Spec{
		{Kind: KindCount, Name: "crime_count", Layer: "crime", Radius: cfg.CrimeRadius},
		{Kind: KindCount, Name: "park_count", Layer: "parks", Radius: cfg.ParkRadius},
	}

	for k := 1; k <= cfg.KNNMax; k++ {
		specs = append(specs, Spec{
			Kind:  KindKNN,
			Name:  fmt.Sprintf("crime_nn%d", k),
			Layer: "crime",
			K:     k,
		})
	}

	specs = append(specs,
		Spec{Kind: KindCount, Name: "store_high_count", Layer: "stores",
			FilterAttr: "produce", FilterVal: "high", Radius: cfg.ParkRadius},
		Spec{Kind: KindCount, Name: "store_low_count", Layer: "stores",
			FilterAttr: "produce", FilterVal: "low", Radius: cfg.ParkRadius},
		Spec{Kind: KindRatio, Name: "produce_ratio",
			Numerator: "store_high_count", Denominator: "store_low_count"},

		Spec{Kind: KindContain, Name: "neighborhood", Layer: "neighborhoods",
			Attr: "name", FillCat: "unknown"},
		Spec{Kind: KindContain, Name: "catchment", Layer: "catchments",
			Attr: "id", FillCat: "unknown"},
		Spec{Kind: KindContain, Name: "tract_geoid", Layer: "tracts",
			Attr: "geoid", FillCat: "unknown"},
		Spec{Kind: KindContain, Name: "median_income", Layer: "tracts",
			Attr: "median_income", Numeric: true},

		Spec{Kind: KindLag, Name: "price_lag", K: cfg.LagK},
	)
	return specs
}
