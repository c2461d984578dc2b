package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hedonic-cli/internal/config"
	"github.com/sells-group/hedonic-cli/internal/fetcher"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// ACS variable codes fetched per tract.
const (
	acsMedianIncome = "B19013_001E"
	acsBachelors    = "B15003_022E"
	acsPopulation   = "B01003_001E"
)

// TractDemographics holds the ACS attributes joined onto a tract boundary.
type TractDemographics struct {
	GEOID        string
	MedianIncome float64
	Bachelors    float64
	Population   float64
}

// FetchTractDemographics queries the census ACS 5-year API for tract-level
// demographics of the configured county. The API key is required.
func FetchTractDemographics(ctx context.Context, f fetcher.Fetcher, cfg config.CensusConfig) (map[string]TractDemographics, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("ingest: census api key not configured")
	}

	q := url.Values{}
	q.Set("get", fmt.Sprintf("%s,%s,%s", acsMedianIncome, acsBachelors, acsPopulation))
	q.Set("for", "tract:*")
	q.Set("in", fmt.Sprintf("state:%s county:%s", cfg.State, cfg.County))
	q.Set("key", cfg.APIKey)
	u := fmt.Sprintf("%s/%d/acs/acs5?%s", cfg.BaseURL, cfg.Year, q.Encode())

	body, err := f.Download(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: fetch ACS demographics")
	}
	defer func() { _ = body.Close() }()

	// The census API returns a JSON array of string arrays, header row first.
	var rows [][]*string
	if err := json.NewDecoder(body).Decode(&rows); err != nil {
		return nil, eris.Wrap(err, "ingest: decode ACS response")
	}
	if len(rows) < 2 {
		return nil, eris.New("ingest: ACS response has no data rows")
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		if h != nil {
			idx[*h] = i
		}
	}
	for _, col := range []string{acsMedianIncome, acsBachelors, acsPopulation, "state", "county", "tract"} {
		if _, ok := idx[col]; !ok {
			return nil, eris.Errorf("ingest: ACS response missing column %s", col)
		}
	}

	out := make(map[string]TractDemographics, len(rows)-1)
	for _, row := range rows[1:] {
		geoid := cell(row, idx["state"]) + cell(row, idx["county"]) + cell(row, idx["tract"])
		out[geoid] = TractDemographics{
			GEOID:        geoid,
			MedianIncome: cellFloat(row, idx[acsMedianIncome]),
			Bachelors:    cellFloat(row, idx[acsBachelors]),
			Population:   cellFloat(row, idx[acsPopulation]),
		}
	}

	zap.L().Info("ingest: fetched ACS tract demographics",
		zap.Int("tracts", len(out)),
		zap.Int("year", cfg.Year),
	)
	return out, nil
}

// JoinTractDemographics attaches ACS values to the tract layer by GEOID.
// Tracts with no ACS row keep zero-valued demographics rather than dropping.
func JoinTractDemographics(tracts *parcel.Layer, demo map[string]TractDemographics) {
	var unmatched int
	for i := range tracts.Features {
		f := &tracts.Features[i]
		if f.NumAttrs == nil {
			f.NumAttrs = make(map[string]float64, 3)
		}
		d, ok := demo[f.Attrs["geoid"]]
		if !ok {
			unmatched++
		}
		f.NumAttrs["median_income"] = d.MedianIncome
		f.NumAttrs["bachelors"] = d.Bachelors
		f.NumAttrs["population"] = d.Population
	}
	if unmatched > 0 {
		zap.L().Warn("ingest: tracts without ACS match zero-filled", zap.Int("unmatched", unmatched))
	}
}

func cell(row []*string, i int) string {
	if i < 0 || i >= len(row) || row[i] == nil {
		return ""
	}
	return *row[i]
}

func cellFloat(row []*string, i int) float64 {
	v, err := strconv.ParseFloat(cell(row, i), 64)
	if err != nil || v < 0 {
		// The census API encodes suppressed values as large negatives.
		return 0
	}
	return v
}
