package ingest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/hedonic-cli/internal/config"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// stubFetcher serves a canned body and records the requested URL.
type stubFetcher struct {
	body string
	url  string
	err  error
}

func (s *stubFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.url = url
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (s *stubFetcher) DownloadToFile(_ context.Context, _, _ string) (int64, error) {
	return 0, nil
}

const acsResponse = `[
	["B19013_001E","B15003_022E","B01003_001E","state","county","tract"],
	["81000","1200","4500","42","101","000100"],
	["-666666666","800","3100","42","101","000200"],
	[null,"0","0","42","101","000300"]
]`

func censusCfg() config.CensusConfig {
	return config.CensusConfig{
		APIKey:  "test-key",
		BaseURL: "https://api.census.gov/data",
		Year:    2019,
		State:   "42",
		County:  "101",
	}
}

func TestFetchTractDemographics(t *testing.T) {
	f := &stubFetcher{body: acsResponse}

	demo, err := FetchTractDemographics(context.Background(), f, censusCfg())
	require.NoError(t, err)
	require.Len(t, demo, 3)

	assert.Contains(t, f.url, "2019/acs/acs5")
	assert.Contains(t, f.url, "key=test-key")
	assert.Contains(t, f.url, "state%3A42+county%3A101")

	d := demo["42101000100"]
	assert.Equal(t, 81000.0, d.MedianIncome)
	assert.Equal(t, 1200.0, d.Bachelors)
	assert.Equal(t, 4500.0, d.Population)

	assert.Equal(t, 0.0, demo["42101000200"].MedianIncome, "suppressed negatives become zero")
	assert.Equal(t, 0.0, demo["42101000300"].MedianIncome, "null cells become zero")
}

func TestFetchTractDemographicsRequiresKey(t *testing.T) {
	cfg := censusCfg()
	cfg.APIKey = ""
	_, err := FetchTractDemographics(context.Background(), &stubFetcher{}, cfg)
	assert.Error(t, err)
}

func TestFetchTractDemographicsBadResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>rate limited</html>"},
		{name: "header only", body: `[["B19013_001E","state","county","tract"]]`},
		{name: "missing column", body: `[["state","county","tract"],["42","101","000100"]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FetchTractDemographics(context.Background(), &stubFetcher{body: tt.body}, censusCfg())
			assert.Error(t, err)
		})
	}
}

func TestJoinTractDemographics(t *testing.T) {
	ring := []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}
	matched, err := parcel.NewPolygonFeature(
		geom.NewPolygonFlat(geom.XY, ring, []int{10}),
		map[string]string{"geoid": "42101000100"},
	)
	require.NoError(t, err)
	orphan, err := parcel.NewPolygonFeature(
		geom.NewPolygonFlat(geom.XY, ring, []int{10}),
		map[string]string{"geoid": "42101999999"},
	)
	require.NoError(t, err)

	tracts := &parcel.Layer{
		Name:     "tracts",
		Kind:     parcel.KindPolygon,
		Features: []parcel.LayerFeature{matched, orphan},
	}
	JoinTractDemographics(tracts, map[string]TractDemographics{
		"42101000100": {GEOID: "42101000100", MedianIncome: 81000, Bachelors: 1200, Population: 4500},
	})

	assert.Equal(t, 81000.0, tracts.Features[0].NumAttrs["median_income"])
	assert.Equal(t, 4500.0, tracts.Features[0].NumAttrs["population"])
	assert.Equal(t, 0.0, tracts.Features[1].NumAttrs["median_income"], "unmatched tracts zero-fill")
}
