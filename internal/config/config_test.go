package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "hedonic.db", cfg.Store.DatabaseURL)

	assert.Equal(t, 2019, cfg.Census.Year)
	assert.Equal(t, "42", cfg.Census.State)
	assert.Equal(t, "101", cfg.Census.County)

	assert.Equal(t, 2272, cfg.CRS.EPSG)
	assert.Equal(t, 2640000.0, cfg.CRS.MinX)
	assert.Equal(t, 330000.0, cfg.CRS.MaxY)

	assert.Equal(t, 660.0, cfg.Feature.CrimeRadius)
	assert.Equal(t, 2640.0, cfg.Feature.ParkRadius)
	assert.Equal(t, 5, cfg.Feature.KNNMax)
	assert.Equal(t, 5, cfg.Feature.LagK)

	assert.Equal(t, []string{
		"livable_area", "fireplaces", "crime_nn3", "park_count", "price_lag",
	}, cfg.Model.Features)

	assert.Equal(t, int64(1897), cfg.Split.Seed)
	assert.Equal(t, 0.6, cfg.Split.TrainRatio)
	assert.Equal(t, 100, cfg.Split.Folds)

	assert.Equal(t, 77454.0, cfg.Eval.IncomeThreshold)
	assert.Equal(t, 5, cfg.Eval.MoranK)
	assert.Equal(t, 999, cfg.Eval.Permutations)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HEDONIC_SPLIT_SEED", "42")
	t.Setenv("HEDONIC_STORE_DRIVER", "postgres")
	t.Setenv("HEDONIC_CENSUS_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Split.Seed)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "secret", cfg.Census.APIKey)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	assert.Error(t, InitLogger(LogConfig{Level: "loud", Format: "json"}))
}
