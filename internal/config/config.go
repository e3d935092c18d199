// Package config defines the overlay service configuration and how it is
// layered from defaults, a YAML file and the environment.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/joeblew999/plat-overlay/internal/catalog"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/pkg/logger"
	"github.com/joeblew999/plat-overlay/pkg/metrics"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DataDir resolves relative dataset paths and holds the DuckDB file.
	DataDir string `koanf:"data_dir"`

	// FetchTimeout bounds each dataset retrieval. Zero means no limit.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// FallbackColor paints layers whose descriptor color is missing or invalid.
	FallbackColor string `koanf:"fallback_color"`

	Cluster ClusterConfig `koanf:"cluster"`
	DuckDB  DuckDBConfig  `koanf:"duckdb"`
	Metrics MetricsConfig `koanf:"metrics"`

	// Catalog overrides the built-in dataset list when non-empty.
	Catalog catalog.Catalog `koanf:"catalog"`
}

// ClusterConfig tunes point clustering.
type ClusterConfig struct {
	Enabled   bool    `koanf:"enabled"`
	MaxZoom   int     `koanf:"max_zoom"`
	MaxRadius float64 `koanf:"max_radius"`
	MinRadius float64 `koanf:"min_radius"`
}

// DuckDBConfig controls the optional feature store.
type DuckDBConfig struct {
	Enabled    bool     `koanf:"enabled"`
	Name       string   `koanf:"name"`
	Extensions []string `koanf:"extensions"`
}

// MetricsConfig names the Prometheus series. Empty fields keep the
// defaults of pkg/metrics.
type MetricsConfig struct {
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
	// FetchBuckets are the fetch duration histogram buckets, in seconds.
	FetchBuckets []float64 `koanf:"fetch_buckets"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		DataDir:       "./data",
		FetchTimeout:  60 * time.Second,
		FallbackColor: layer.FallbackColor,
		Cluster: ClusterConfig{
			Enabled:   true,
			MaxZoom:   18,
			MaxRadius: 80,
			MinRadius: 10,
		},
		DuckDB: DuckDBConfig{
			Enabled: true,
			Name:    "overlay",
		},
	}
}

// EffectiveCatalog returns the configured catalog, or the built-in one when
// none is configured.
func (c *Config) EffectiveCatalog() catalog.Catalog {
	if len(c.Catalog) == 0 {
		return catalog.Default()
	}
	return c.Catalog
}

// Clusterer returns the configured point clusterer, or nil when clustering
// is switched off.
func (c *Config) Clusterer() layer.Clusterer {
	if !c.Cluster.Enabled {
		return nil
	}
	return &layer.GridClusterer{
		Max:       c.Cluster.MaxZoom,
		MaxRadius: c.Cluster.MaxRadius,
		MinRadius: c.Cluster.MinRadius,
	}
}

// MetricsOptions turns the metrics section into manager options.
func (c *Config) MetricsOptions() []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(c.Metrics.Namespace),
		metrics.WithSubsystem(c.Metrics.Subsystem),
		metrics.WithHistogramBuckets(c.Metrics.FetchBuckets),
	}
}

// Validate checks values that would otherwise fail far from where they
// were set.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("%w: fetch_timeout must not be negative", ErrInvalidConfig)
	}
	if _, err := catalog.ParseColor(c.FallbackColor); err != nil {
		return fmt.Errorf("%w: fallback_color: %v", ErrInvalidConfig, err)
	}
	if c.Cluster.Enabled {
		if c.Cluster.MaxZoom < 1 || c.Cluster.MaxZoom > layer.ZoomLimit {
			return fmt.Errorf("%w: cluster.max_zoom must be in 1..%d", ErrInvalidConfig, layer.ZoomLimit)
		}
		if c.Cluster.MinRadius <= 0 || c.Cluster.MaxRadius < c.Cluster.MinRadius {
			return fmt.Errorf("%w: cluster radii must satisfy 0 < min_radius <= max_radius", ErrInvalidConfig)
		}
	}
	if !sort.Float64sAreSorted(c.Metrics.FetchBuckets) {
		return fmt.Errorf("%w: metrics.fetch_buckets must be ascending", ErrInvalidConfig)
	}
	if len(c.Catalog) > 0 {
		if err := c.Catalog.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}
