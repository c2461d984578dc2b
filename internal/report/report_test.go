package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/hedonic-cli/internal/evaluate"
	"github.com/sells-group/hedonic-cli/internal/hedonic"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

func testModel() *hedonic.Model {
	return &hedonic.Model{
		Features: []string{"livable_area"},
		Terms: []hedonic.Term{
			{Name: "intercept", Coef: 25000, StdErr: 1000, TStat: 25, PValue: 0},
			{Name: "livable_area", Coef: 120, StdErr: 4, TStat: 30, PValue: 0},
		},
		R2:    0.82,
		AdjR2: 0.81,
		N:     600,
	}
}

func TestWriteModelTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteModelTable(&buf, testModel()))

	out := buf.String()
	assert.Contains(t, out, "intercept")
	assert.Contains(t, out, "livable_area")
	assert.Contains(t, out, "0.8200")
}

func TestWriteMetricsTable(t *testing.T) {
	var buf bytes.Buffer
	overall := evaluate.Metrics{N: 400, MAE: 28000, MAPE: 0.21}
	byHood := []evaluate.Group{{Key: "fishtown", Metrics: evaluate.Metrics{N: 40, MAE: 25000, MAPE: 0.18}}}
	byIncome := []evaluate.Group{{Key: evaluate.BucketHigh, Metrics: evaluate.Metrics{N: 100, MAE: 30000, MAPE: 0.15}}}

	require.NoError(t, WriteMetricsTable(&buf, overall, byHood, byIncome))

	out := buf.String()
	assert.Contains(t, out, "overall")
	assert.Contains(t, out, "hood=fishtown")
	assert.Contains(t, out, "income=High")
	assert.Contains(t, out, "28,000", "thousands separator")
	assert.Contains(t, out, "21.0%")
}

func TestCorrelationMatrix(t *testing.T) {
	parcels := []*parcel.Parcel{
		{ID: "a", SalePrice: 100, LivableArea: 10, Label: parcel.LabelModeling},
		{ID: "b", SalePrice: 200, LivableArea: 20, Label: parcel.LabelModeling},
		{ID: "c", SalePrice: 300, LivableArea: 30, Label: parcel.LabelModeling},
		{ID: "d", SalePrice: 400, LivableArea: 40, Label: parcel.LabelModeling},
	}
	f := parcel.NewFrame(parcels)

	names, m, err := CorrelationMatrix(f, []string{"livable_area"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sale_price", "livable_area"}, names)
	assert.InDelta(t, 1, m[0][0], 1e-9)
	assert.InDelta(t, 1, m[0][1], 1e-9, "perfectly linear columns")
	assert.InDelta(t, m[0][1], m[1][0], 1e-9, "symmetric")
}

func TestCorrelationMatrixTooFewRecords(t *testing.T) {
	f := parcel.NewFrame([]*parcel.Parcel{
		{ID: "a", SalePrice: 1, Label: parcel.LabelModeling},
	})
	_, _, err := CorrelationMatrix(f, nil)
	assert.Error(t, err)
}

func TestWriteCorrelationTable(t *testing.T) {
	var buf bytes.Buffer
	names := []string{"sale_price", "crime_nn3"}
	m := [][]float64{{1, -0.4}, {-0.4, 1}}

	require.NoError(t, WriteCorrelationTable(&buf, names, m))
	assert.Contains(t, buf.String(), "-0.400")
}

func TestWritePredictionsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preds.csv")
	rows := []ChallengePrediction{
		{ID: "P001", Predicted: 152000.5},
		{ID: "P002", Predicted: 98000},
	}
	require.NoError(t, WritePredictionsCSV(rows, path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "parcel_id,predicted_price", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "P001,"))
}

func TestWritePredictionsCSVEmpty(t *testing.T) {
	assert.Error(t, WritePredictionsCSV(nil, filepath.Join(t.TempDir(), "x.csv")))
}

func TestWriteModelYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, WriteModelYAML(testModel(), path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "livable_area")
	assert.Contains(t, out, "r2:")
}

func TestWriteTractShapefile(t *testing.T) {
	poly, err := parcel.NewPolygonFeature(
		geom.NewPolygonFlat(geom.XY, []float64{
			2700000, 250000,
			2701000, 250000,
			2701000, 251000,
			2700000, 251000,
			2700000, 250000,
		}, []int{10}),
		map[string]string{"geoid": "42101000100"},
	)
	require.NoError(t, err)
	poly.NumAttrs = map[string]float64{"median_income": 81000}

	tracts := &parcel.Layer{Name: "tracts", Kind: parcel.KindPolygon, Features: []parcel.LayerFeature{poly}}
	path := filepath.Join(t.TempDir(), "tracts_income.shp")
	require.NoError(t, WriteTractShapefile(tracts, 77454, path))

	// The attribute table must land at "<base>.dbf" or readers see no fields.
	_, err = os.Stat(strings.TrimSuffix(path, ".shp") + ".dbf")
	require.NoError(t, err)

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.Next())
	assert.Equal(t, "42101000100", strings.TrimSpace(strings.TrimRight(r.Attribute(0), "\x00")))
	assert.Equal(t, "High", strings.TrimSpace(strings.TrimRight(r.Attribute(2), "\x00")))
}

func TestWriteTractShapefileEmptyLayer(t *testing.T) {
	err := WriteTractShapefile(&parcel.Layer{Name: "tracts"}, 77454, filepath.Join(t.TempDir(), "x.shp"))
	assert.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.xlsx")
	cv := &evaluate.CVResult{Folds: 2, FoldMAE: []float64{100, 200}, Mean: 150}
	mr := &evaluate.MoranResult{I: 0.3, K: 5, Permutations: 999, Rank: 990, PseudoP: 0.011}
	overall := evaluate.Metrics{N: 10, MAE: 150, MAPE: 0.1}

	require.NoError(t, WriteWorkbook(testModel(), overall, nil, nil, cv, mr, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
