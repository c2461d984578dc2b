package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Census  CensusConfig  `yaml:"census" mapstructure:"census"`
	CRS     CRSConfig     `yaml:"crs" mapstructure:"crs"`
	Feature FeatureConfig `yaml:"feature" mapstructure:"feature"`
	Model   ModelConfig   `yaml:"model" mapstructure:"model"`
	Split   SplitConfig   `yaml:"split" mapstructure:"split"`
	Eval    EvalConfig    `yaml:"eval" mapstructure:"eval"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the staging database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourcesConfig lists the input datasets. Each entry is a local path or an
// http(s):// / ftp:// URL; remote zips are downloaded and extracted under
// TempDir before loading.
type SourcesConfig struct {
	Parcels       string `yaml:"parcels" mapstructure:"parcels"`
	Neighborhoods string `yaml:"neighborhoods" mapstructure:"neighborhoods"`
	Catchments    string `yaml:"catchments" mapstructure:"catchments"`
	Tracts        string `yaml:"tracts" mapstructure:"tracts"`
	Crime         string `yaml:"crime" mapstructure:"crime"`
	Parks         string `yaml:"parks" mapstructure:"parks"`
	Stores        string `yaml:"stores" mapstructure:"stores"`
	TempDir       string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// CensusConfig holds ACS demographic API settings.
type CensusConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Year    int    `yaml:"year" mapstructure:"year"`
	State   string `yaml:"state" mapstructure:"state"`
	County  string `yaml:"county" mapstructure:"county"`
}

// CRSConfig declares the planar coordinate system inputs must arrive in and
// the bounds loaded geometries are validated against. Units are survey feet.
type CRSConfig struct {
	EPSG int     `yaml:"epsg" mapstructure:"epsg"`
	MinX float64 `yaml:"min_x" mapstructure:"min_x"`
	MinY float64 `yaml:"min_y" mapstructure:"min_y"`
	MaxX float64 `yaml:"max_x" mapstructure:"max_x"`
	MaxY float64 `yaml:"max_y" mapstructure:"max_y"`
}

// FeatureConfig holds feature engineering parameters.
type FeatureConfig struct {
	CrimeRadius float64 `yaml:"crime_radius" mapstructure:"crime_radius"`
	ParkRadius  float64 `yaml:"park_radius" mapstructure:"park_radius"`
	KNNMax      int     `yaml:"knn_max" mapstructure:"knn_max"`
	LagK        int     `yaml:"lag_k" mapstructure:"lag_k"`
}

// ModelConfig declares the fixed regression feature set.
type ModelConfig struct {
	Features []string `yaml:"features" mapstructure:"features"`
}

// SplitConfig configures the train/test partition and cross-validation.
type SplitConfig struct {
	Seed       int64   `yaml:"seed" mapstructure:"seed"`
	TrainRatio float64 `yaml:"train_ratio" mapstructure:"train_ratio"`
	Folds      int     `yaml:"folds" mapstructure:"folds"`
}

// EvalConfig configures evaluation and spatial diagnostics.
type EvalConfig struct {
	IncomeThreshold float64 `yaml:"income_threshold" mapstructure:"income_threshold"`
	MoranK          int     `yaml:"moran_k" mapstructure:"moran_k"`
	Permutations    int     `yaml:"permutations" mapstructure:"permutations"`
}

// FetchConfig configures remote source downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// OutputConfig configures export destinations.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HEDONIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "hedonic.db")
	for _, k := range []string{
		"sources.parcels", "sources.neighborhoods", "sources.catchments",
		"sources.tracts", "sources.crime", "sources.parks", "sources.stores",
	} {
		v.SetDefault(k, "")
	}
	v.SetDefault("sources.temp_dir", "/tmp/hedonic")
	// An empty default keeps the key visible to env overrides.
	v.SetDefault("census.api_key", "")
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.year", 2019)
	v.SetDefault("census.state", "42")
	v.SetDefault("census.county", "101")
	v.SetDefault("crs.epsg", 2272)
	v.SetDefault("crs.min_x", 2640000)
	v.SetDefault("crs.min_y", 190000)
	v.SetDefault("crs.max_x", 2770000)
	v.SetDefault("crs.max_y", 330000)
	v.SetDefault("feature.crime_radius", 660)
	v.SetDefault("feature.park_radius", 2640)
	v.SetDefault("feature.knn_max", 5)
	v.SetDefault("feature.lag_k", 5)
	v.SetDefault("model.features", []string{
		"livable_area", "fireplaces", "crime_nn3", "park_count", "price_lag",
	})
	v.SetDefault("split.seed", 1897)
	v.SetDefault("split.train_ratio", 0.6)
	v.SetDefault("split.folds", 100)
	v.SetDefault("eval.income_threshold", 77454)
	v.SetDefault("eval.moran_k", 5)
	v.SetDefault("eval.permutations", 999)
	v.SetDefault("fetch.user_agent", "hedonic-cli")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("fetch.burst", 5)
	v.SetDefault("output.dir", "out")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
