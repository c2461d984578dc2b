package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hedonic-cli/internal/feature"
	"github.com/sells-group/hedonic-cli/internal/ingest"
	"github.com/sells-group/hedonic-cli/internal/parcel"
	"github.com/sells-group/hedonic-cli/internal/store"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Engineer spatial feature columns onto staged parcels",
	Long:  "Loads the staged parcels and layers, computes every declared spatial feature (counts, nearest-neighbor distances, polygon attributes, the price lag), and re-stages the enriched records.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		return runStage(ctx, st, "features", stageFeatures)
	},
}

var layerNames = []string{
	ingest.LayerNeighborhoods,
	ingest.LayerCatchments,
	ingest.LayerTracts,
	ingest.LayerCrime,
	ingest.LayerParks,
	ingest.LayerStores,
}

func stageFeatures(ctx context.Context, st store.Store) (map[string]any, error) {
	parcels, err := st.LoadParcels(ctx)
	if err != nil {
		return nil, err
	}
	frame := parcel.NewFrame(parcels)

	layers := make(map[string]*parcel.Layer, len(layerNames))
	for _, name := range layerNames {
		l, err := st.LoadLayer(ctx, name)
		if err != nil {
			return nil, err
		}
		layers[name] = l
	}

	for _, spec := range feature.DefaultSpecs(cfg.Feature) {
		if err := spec.Apply(frame, layers); err != nil {
			return nil, err
		}
		zap.L().Debug("feature attached", zap.String("feature", spec.Name))
	}

	if err := st.SaveParcels(ctx, frame.Parcels); err != nil {
		return nil, err
	}
	return map[string]any{
		"parcels":     len(frame.Parcels),
		"numeric":     len(frame.NumColumns()),
		"categorical": len(frame.CatColumns()),
	}, nil
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}
