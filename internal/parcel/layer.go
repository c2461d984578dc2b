package parcel

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// LayerKind distinguishes point-event layers from boundary layers.
type LayerKind string

const (
	// KindPoint marks layers of point events (crime incidents, stores).
	KindPoint LayerKind = "point"
	// KindPolygon marks boundary layers (neighborhoods, catchments, tracts).
	KindPolygon LayerKind = "polygon"
)

// LayerFeature is one geometry of a layer with its attributes. Polygon
// features carry a precomputed centroid so proximity features can treat
// every layer as a point set.
type LayerFeature struct {
	Geom     geom.T
	Attrs    map[string]string
	NumAttrs map[string]float64
	Centroid geom.Coord
}

// Layer is a named, read-only geographic dataset.
type Layer struct {
	Name     string
	Kind     LayerKind
	Features []LayerFeature
}

// NewPointFeature builds a point feature at (x, y).
func NewPointFeature(x, y float64, attrs map[string]string) LayerFeature {
	return LayerFeature{
		Geom:     geom.NewPointFlat(geom.XY, []float64{x, y}),
		Attrs:    attrs,
		Centroid: geom.Coord{x, y},
	}
}

// NewPolygonFeature builds a polygon feature and computes its centroid.
// Accepts Polygon and MultiPolygon geometries.
func NewPolygonFeature(g geom.T, attrs map[string]string) (LayerFeature, error) {
	var polys []*geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		polys = []*geom.Polygon{t}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
	default:
		return LayerFeature{}, eris.Errorf("layer: unsupported polygon geometry %T", g)
	}
	if len(polys) == 0 {
		return LayerFeature{}, eris.New("layer: polygon geometry has no rings")
	}
	return LayerFeature{
		Geom:     g,
		Attrs:    attrs,
		Centroid: xy.PolygonsCentroid(polys[0], polys[1:]...),
	}, nil
}

// Contains reports whether the feature's polygon contains the point.
// Shapefile ring parts load as independent polygons, so membership in any
// exterior ring counts.
func (f *LayerFeature) Contains(x, y float64) bool {
	pt := geom.Coord{x, y}
	switch t := f.Geom.(type) {
	case *geom.Polygon:
		return polygonContains(t, pt)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), pt) {
				return true
			}
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
		return false
	}
	// Interior rings are holes.
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), pt, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// Points returns one representative coordinate per feature: the point itself
// for point layers, the centroid for polygon layers.
func (l *Layer) Points() [][2]float64 {
	pts := make([][2]float64, len(l.Features))
	for i, f := range l.Features {
		pts[i] = [2]float64{f.Centroid[0], f.Centroid[1]}
	}
	return pts
}

// Filter returns a shallow copy of the layer containing only the features
// whose attribute attr equals value.
func (l *Layer) Filter(attr, value string) *Layer {
	out := &Layer{Name: l.Name + ":" + value, Kind: l.Kind}
	for _, f := range l.Features {
		if f.Attrs[attr] == value {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// FindContaining returns the first feature containing (x, y) in layer order,
// or nil. First-match resolution keeps overlapping boundaries deterministic
// and never duplicates parcel rows.
func (l *Layer) FindContaining(x, y float64) *LayerFeature {
	for i := range l.Features {
		if l.Features[i].Contains(x, y) {
			return &l.Features[i]
		}
	}
	return nil
}
