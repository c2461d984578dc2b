package report

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/hedonic-cli/internal/evaluate"
	"github.com/sells-group/hedonic-cli/internal/hedonic"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// ChallengePrediction is one row of the final prediction export: identifier
// and predicted price only.
type ChallengePrediction struct {
	ID        string  `csv:"parcel_id"`
	Predicted float64 `csv:"predicted_price"`
}

// WritePredictionsCSV writes the challenge prediction export.
func WritePredictionsCSV(rows []ChallengePrediction, path string) error {
	if len(rows) == 0 {
		return eris.New("report: no challenge predictions to export")
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "report: marshal predictions")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

// WriteModelYAML writes the fitted model summary artifact.
func WriteModelYAML(m *hedonic.Model, path string) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "report: marshal model")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

// WriteWorkbook writes the evaluation workbook: model terms, overall and
// grouped metrics, the CV distribution, and the Moran diagnostic.
func WriteWorkbook(m *hedonic.Model, overall evaluate.Metrics, byNeighborhood, byIncome []evaluate.Group, cv *evaluate.CVResult, mr *evaluate.MoranResult, path string) error {
	f := xlsx.NewFile()

	model, err := f.AddSheet("Model")
	if err != nil {
		return eris.Wrap(err, "report: add model sheet")
	}
	hdr := model.AddRow()
	for _, h := range []string{"term", "coef", "std_err", "t", "p"} {
		hdr.AddCell().Value = h
	}
	for _, t := range m.Terms {
		row := model.AddRow()
		row.AddCell().Value = t.Name
		row.AddCell().SetFloat(t.Coef)
		row.AddCell().SetFloat(t.StdErr)
		row.AddCell().SetFloat(t.TStat)
		row.AddCell().SetFloat(t.PValue)
	}
	r2 := model.AddRow()
	r2.AddCell().Value = "r2"
	r2.AddCell().SetFloat(m.R2)

	metrics, err := f.AddSheet("Metrics")
	if err != nil {
		return eris.Wrap(err, "report: add metrics sheet")
	}
	mh := metrics.AddRow()
	for _, h := range []string{"group", "n", "mae", "mape"} {
		mh.AddCell().Value = h
	}
	writeMetricRow(metrics, "overall", overall)
	for _, g := range byIncome {
		writeMetricRow(metrics, "income="+g.Key, g.Metrics)
	}
	for _, g := range byNeighborhood {
		writeMetricRow(metrics, "hood="+g.Key, g.Metrics)
	}

	cvs, err := f.AddSheet("CrossValidation")
	if err != nil {
		return eris.Wrap(err, "report: add cv sheet")
	}
	ch := cvs.AddRow()
	ch.AddCell().Value = "fold"
	ch.AddCell().Value = "mae"
	for i, v := range cv.FoldMAE {
		row := cvs.AddRow()
		row.AddCell().SetInt(i)
		row.AddCell().SetFloat(v)
	}

	moran, err := f.AddSheet("Moran")
	if err != nil {
		return eris.Wrap(err, "report: add moran sheet")
	}
	for _, kv := range []struct {
		k string
		v float64
	}{
		{"i", mr.I},
		{"perm_mean", mr.PermMean},
		{"rank", float64(mr.Rank)},
		{"pseudo_p", mr.PseudoP},
	} {
		row := moran.AddRow()
		row.AddCell().Value = kv.k
		row.AddCell().SetFloat(kv.v)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func writeMetricRow(sheet *xlsx.Sheet, key string, m evaluate.Metrics) {
	row := sheet.AddRow()
	row.AddCell().Value = key
	row.AddCell().SetInt(m.N)
	row.AddCell().SetFloat(m.MAE)
	row.AddCell().SetFloat(m.MAPE)
}

// WriteTractShapefile exports the tract boundary layer with its joined
// demographics so downstream GIS tools can style the income context.
func WriteTractShapefile(tracts *parcel.Layer, incomeThreshold float64, path string) error {
	if tracts == nil || len(tracts.Features) == 0 {
		return eris.New("report: tract layer is empty")
	}

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}

	writeErr := writeTractRecords(w, tracts, incomeThreshold)
	w.Close()
	if writeErr != nil {
		return writeErr
	}
	return FixShapefileDBF(path)
}

func writeTractRecords(w *shp.Writer, tracts *parcel.Layer, incomeThreshold float64) error {
	fields := []shp.Field{
		shp.StringField("GEOID", 20),
		shp.FloatField("MEDINC", 18, 2),
		shp.StringField("CONTEXT", 8),
	}
	w.SetFields(fields)

	for i := range tracts.Features {
		f := &tracts.Features[i]
		poly := toShpPolygon(f.Geom)
		if poly == nil {
			continue
		}
		n := w.Write(poly)
		income := f.NumAttrs["median_income"]
		if err := w.WriteAttribute(int(n), 0, f.Attrs["geoid"]); err != nil {
			return eris.Wrap(err, "report: write tract geoid")
		}
		if err := w.WriteAttribute(int(n), 1, income); err != nil {
			return eris.Wrap(err, "report: write tract income")
		}
		if err := w.WriteAttribute(int(n), 2, evaluate.IncomeBucket(income, incomeThreshold)); err != nil {
			return eris.Wrap(err, "report: write tract context")
		}
	}
	return nil
}

// FixShapefileDBF renames the attribute table go-shp's writer drops next to
// "<base>.shp" as "<base>dbf" (it trims the extension dot) to the
// "<base>.dbf" name every reader expects.
func FixShapefileDBF(path string) error {
	base := strings.TrimSuffix(path, ".shp")
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "report: rename attribute table for %s", path)
	}
	return nil
}

// toShpPolygon converts a go-geom polygonal geometry back to a shapefile
// polygon record.
func toShpPolygon(g geom.T) *shp.Polygon {
	var rings [][]shp.Point

	appendPoly := func(p *geom.Polygon) {
		for r := 0; r < p.NumLinearRings(); r++ {
			flat := p.LinearRing(r).FlatCoords()
			ring := make([]shp.Point, 0, len(flat)/2)
			for c := 0; c+1 < len(flat); c += 2 {
				ring = append(ring, shp.Point{X: flat[c], Y: flat[c+1]})
			}
			if len(ring) > 0 {
				rings = append(rings, ring)
			}
		}
	}

	switch t := g.(type) {
	case *geom.Polygon:
		appendPoly(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			appendPoly(t.Polygon(i))
		}
	default:
		return nil
	}

	if len(rings) == 0 {
		return nil
	}
	poly := shp.Polygon(*shp.NewPolyLine(rings))
	return &poly
}
