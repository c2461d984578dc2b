package ingest

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// ReadShapefileLayer reads a shapefile into a Layer of the given kind. All
// DBF attributes are carried as trimmed strings keyed by lower-cased field
// name. Records with nil or unsupported geometry are skipped.
func ReadShapefileLayer(shpPath, name string, kind parcel.LayerKind) (*parcel.Layer, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}

	layer := &parcel.Layer{Name: name, Kind: kind}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(fieldNames))
		for i, fn := range fieldNames {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				attrs[fn] = val
			}
		}

		switch s := shape.(type) {
		case *shp.Point:
			if kind != parcel.KindPoint {
				skipped++
				continue
			}
			layer.Features = append(layer.Features, parcel.NewPointFeature(s.X, s.Y, attrs))

		case *shp.Polygon:
			if kind != parcel.KindPolygon {
				skipped++
				continue
			}
			mp := polygonToMultiPolygon(s)
			if mp == nil {
				skipped++
				continue
			}
			f, err := parcel.NewPolygonFeature(mp, attrs)
			if err != nil {
				skipped++
				continue
			}
			layer.Features = append(layer.Features, f)

		default:
			skipped++
		}
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped shapefile records",
			zap.String("layer", name),
			zap.Int("skipped", skipped),
		)
	}

	if len(layer.Features) == 0 {
		return nil, eris.Errorf("ingest: layer %s loaded zero features from %s", name, shpPath)
	}
	return layer, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Each ring part becomes its own polygon.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("ingest: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}

		if err := mp.Push(poly); err != nil {
			zap.L().Debug("ingest: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// ValidateLayerBounds rejects a layer whose representative points fall
// outside the planar envelope.
func ValidateLayerBounds(layer *parcel.Layer, b Bounds) error {
	for i, pt := range layer.Points() {
		if !b.Contains(pt[0], pt[1]) {
			return eris.Errorf("ingest: layer %s feature %d at (%.1f, %.1f) outside planar bounds",
				layer.Name, i, pt[0], pt[1])
		}
	}
	return nil
}
