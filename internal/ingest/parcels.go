package ingest

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// ReadParcels decodes parcel sale records from CSV. Records with an empty
// identifier are rejected; labels default to modeling.
func ReadParcels(r io.Reader) ([]*parcel.Parcel, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read parcel CSV header")
	}

	var parcels []*parcel.Parcel
	for {
		var p parcel.Parcel
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "ingest: decode parcel record")
		}
		if p.ID == "" {
			return nil, eris.Errorf("ingest: parcel record %d has empty identifier", len(parcels)+1)
		}
		if p.Label == "" {
			p.Label = parcel.LabelModeling
		}
		if p.Label != parcel.LabelModeling && p.Label != parcel.LabelChallenge {
			return nil, eris.Errorf("ingest: parcel %s has unknown label %q", p.ID, p.Label)
		}
		parcels = append(parcels, &p)
	}

	if len(parcels) == 0 {
		return nil, eris.New("ingest: parcel CSV contains no records")
	}
	return parcels, nil
}

// Bounds is the planar envelope loaded coordinates must fall in.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether (x, y) is inside the envelope.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// ValidateParcelBounds rejects the load if any parcel falls outside the
// configured planar CRS envelope. An out-of-range coordinate almost always
// means the source shipped in the wrong coordinate system.
func ValidateParcelBounds(parcels []*parcel.Parcel, b Bounds) error {
	for _, p := range parcels {
		if !b.Contains(p.X, p.Y) {
			return eris.Errorf("ingest: parcel %s at (%.1f, %.1f) outside planar bounds", p.ID, p.X, p.Y)
		}
	}
	return nil
}
