// Package ingest acquires the pipeline's source datasets: parcel sale
// records, boundary and point-event shapefiles, and ACS tract demographics.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hedonic-cli/internal/config"
	"github.com/sells-group/hedonic-cli/internal/fetcher"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// Layer names used throughout the pipeline.
const (
	LayerNeighborhoods = "neighborhoods"
	LayerCatchments    = "catchments"
	LayerTracts        = "tracts"
	LayerCrime         = "crime"
	LayerParks         = "parks"
	LayerStores        = "stores"
)

// Dataset is everything acquisition produces.
type Dataset struct {
	Parcels []*parcel.Parcel
	Layers  map[string]*parcel.Layer
}

// layerSource pairs a layer name with its source and geometry kind.
type layerSource struct {
	name string
	src  string
	kind parcel.LayerKind
}

// LoadAll acquires every configured source. Independent sources download
// concurrently; any failure aborts the whole load (one-shot batch, no retry).
func LoadAll(ctx context.Context, f fetcher.Fetcher, cfg *config.Config) (*Dataset, error) {
	log := zap.L().With(zap.String("component", "ingest"))

	bounds := Bounds{
		MinX: cfg.CRS.MinX, MinY: cfg.CRS.MinY,
		MaxX: cfg.CRS.MaxX, MaxY: cfg.CRS.MaxY,
	}

	sources := []layerSource{
		{LayerNeighborhoods, cfg.Sources.Neighborhoods, parcel.KindPolygon},
		{LayerCatchments, cfg.Sources.Catchments, parcel.KindPolygon},
		{LayerTracts, cfg.Sources.Tracts, parcel.KindPolygon},
		{LayerCrime, cfg.Sources.Crime, parcel.KindPoint},
		{LayerParks, cfg.Sources.Parks, parcel.KindPoint},
		{LayerStores, cfg.Sources.Stores, parcel.KindPoint},
	}
	for _, s := range sources {
		if s.src == "" {
			return nil, eris.Errorf("ingest: source %s not configured", s.name)
		}
	}
	if cfg.Sources.Parcels == "" {
		return nil, eris.New("ingest: parcels source not configured")
	}

	ds := &Dataset{Layers: make(map[string]*parcel.Layer, len(sources))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		path, err := resolveSource(gctx, f, cfg.Sources.Parcels, cfg.Sources.TempDir, ".csv")
		if err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "ingest: open parcels %s", path)
		}
		defer func() { _ = file.Close() }()

		parcels, err := ReadParcels(file)
		if err != nil {
			return err
		}
		if err := ValidateParcelBounds(parcels, bounds); err != nil {
			return err
		}
		mu.Lock()
		ds.Parcels = parcels
		mu.Unlock()
		log.Info("loaded parcels", zap.Int("records", len(parcels)))
		return nil
	})

	for _, s := range sources {
		g.Go(func() error {
			path, err := resolveSource(gctx, f, s.src, cfg.Sources.TempDir, ".shp")
			if err != nil {
				return err
			}
			layer, err := ReadShapefileLayer(path, s.name, s.kind)
			if err != nil {
				return err
			}
			if err := ValidateLayerBounds(layer, bounds); err != nil {
				return err
			}
			mu.Lock()
			ds.Layers[s.name] = layer
			mu.Unlock()
			log.Info("loaded layer",
				zap.String("layer", s.name),
				zap.Int("features", len(layer.Features)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Tract demographics join happens after the boundary load so the ACS
	// fetch can key on the loaded GEOIDs.
	demo, err := FetchTractDemographics(ctx, f, cfg.Census)
	if err != nil {
		return nil, err
	}
	JoinTractDemographics(ds.Layers[LayerTracts], demo)

	return ds, nil
}

// resolveSource turns a source string into a local file path: remote sources
// are downloaded under tempDir, zip archives are extracted and searched for
// the wanted extension.
func resolveSource(ctx context.Context, f fetcher.Fetcher, src, tempDir, wantExt string) (string, error) {
	path := src
	if fetcher.IsRemote(src) {
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return "", eris.Wrap(err, "ingest: create temp dir")
		}
		path = filepath.Join(tempDir, filepath.Base(src))
		if _, err := f.DownloadToFile(ctx, src, path); err != nil {
			return "", eris.Wrapf(err, "ingest: download %s", src)
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		extractDir := strings.TrimSuffix(path, filepath.Ext(path))
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			return "", eris.Wrap(err, "ingest: create extract dir")
		}
		if _, err := fetcher.ExtractZIP(path, extractDir); err != nil {
			return "", eris.Wrapf(err, "ingest: extract %s", path)
		}
		return fetcher.FindByExt(extractDir, wantExt)
	}

	if _, err := os.Stat(path); err != nil {
		return "", eris.Wrapf(err, "ingest: source %s not readable", path)
	}
	return path, nil
}
