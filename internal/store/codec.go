package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// encodedFeature is one layer feature row shared by both backends.
type encodedFeature struct {
	geom     []byte
	attrs    []byte
	numAttrs []byte
}

func encodeFeature(f *parcel.LayerFeature) (encodedFeature, error) {
	g, err := wkb.Marshal(f.Geom, wkb.NDR)
	if err != nil {
		return encodedFeature{}, eris.Wrap(err, "store: encode feature geometry")
	}
	attrs, err := json.Marshal(f.Attrs)
	if err != nil {
		return encodedFeature{}, eris.Wrap(err, "store: encode feature attrs")
	}
	numAttrs, err := json.Marshal(f.NumAttrs)
	if err != nil {
		return encodedFeature{}, eris.Wrap(err, "store: encode feature numeric attrs")
	}
	return encodedFeature{geom: g, attrs: attrs, numAttrs: numAttrs}, nil
}

func decodeFeature(kind parcel.LayerKind, e encodedFeature) (parcel.LayerFeature, error) {
	g, err := wkb.Unmarshal(e.geom)
	if err != nil {
		return parcel.LayerFeature{}, eris.Wrap(err, "store: decode feature geometry")
	}

	var attrs map[string]string
	if err := json.Unmarshal(e.attrs, &attrs); err != nil {
		return parcel.LayerFeature{}, eris.Wrap(err, "store: decode feature attrs")
	}
	var numAttrs map[string]float64
	if err := json.Unmarshal(e.numAttrs, &numAttrs); err != nil {
		return parcel.LayerFeature{}, eris.Wrap(err, "store: decode feature numeric attrs")
	}

	var f parcel.LayerFeature
	switch kind {
	case parcel.KindPoint:
		pt, ok := g.(*geom.Point)
		if !ok {
			return parcel.LayerFeature{}, eris.Errorf("store: point layer has %T geometry", g)
		}
		f = parcel.NewPointFeature(pt.X(), pt.Y(), attrs)
	case parcel.KindPolygon:
		f, err = parcel.NewPolygonFeature(g, attrs)
		if err != nil {
			return parcel.LayerFeature{}, err
		}
	default:
		return parcel.LayerFeature{}, eris.Errorf("store: unknown layer kind %q", kind)
	}
	f.NumAttrs = numAttrs
	return f, nil
}
