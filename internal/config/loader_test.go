package config_test

import (
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/joeblew999/plat-overlay/internal/catalog"
	"github.com/joeblew999/plat-overlay/internal/config"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/pkg/metrics"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load("")

			convey.Convey("Then the defaults come back", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
				convey.So(cfg.FetchTimeout, convey.ShouldEqual, 60*time.Second)
				convey.So(cfg.FallbackColor, convey.ShouldEqual, layer.FallbackColor)
				convey.So(cfg.Cluster.MaxZoom, convey.ShouldEqual, 18)
				convey.So(cfg.EffectiveCatalog(), convey.ShouldResemble, catalog.Default())
				convey.So(cfg.Clusterer(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When loading a YAML file", func() {
			path := writeFile(t, `
log_level: debug
fetch_timeout: 5s
cluster:
  enabled: false
duckdb:
  enabled: false
catalog:
  - name: plants
    url: plants.geojson
    color: "#00FF00"
  - name: pipes
    url: https://example.com/pipes.geojson
`)
			cfg, err := config.Load(path)

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.FetchTimeout, convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.Clusterer(), convey.ShouldBeNil)
				convey.So(cfg.DuckDB.Enabled, convey.ShouldBeFalse)
				convey.So(cfg.EffectiveCatalog().Names(), convey.ShouldResemble, []string{"plants", "pipes"})
				convey.So(cfg.Catalog[0].Color, convey.ShouldEqual, "#00ff00")
			})
		})

		convey.Convey("When env vars are set on top of a file", func() {
			path := writeFile(t, "log_level: debug\ncluster:\n  max_zoom: 16\n")
			_ = os.Setenv("OVERLAY_LOG_LEVEL", "warn")
			_ = os.Setenv("OVERLAY_CLUSTER__MAX_ZOOM", "14")
			_ = os.Setenv("OVERLAY_DATA_DIR", "/srv/overlay")
			convey.Reset(func() {
				_ = os.Unsetenv("OVERLAY_LOG_LEVEL")
				_ = os.Unsetenv("OVERLAY_CLUSTER__MAX_ZOOM")
				_ = os.Unsetenv("OVERLAY_DATA_DIR")
			})

			cfg, err := config.Load(path)

			convey.Convey("Then env wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
				convey.So(cfg.Cluster.MaxZoom, convey.ShouldEqual, 14)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/srv/overlay")
			})
		})

		convey.Convey("When the metrics section renames the series", func() {
			path := writeFile(t, "metrics:\n  namespace: ops\n  subsystem: maps\n  fetch_buckets: [0.5, 2, 10]\n")
			cfg, err := config.Load(path)

			convey.Convey("Then the manager options carry them", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Metrics.FetchBuckets, convey.ShouldResemble, []float64{0.5, 2, 10})
				convey.So(len(cfg.MetricsOptions()), convey.ShouldEqual, 3)

				m := metrics.NewManager(cfg.MetricsOptions()...)
				m.RecordSearch()
				rec := httptest.NewRecorder()
				m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "ops_maps_search_queries_total 1")
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When values are invalid", func() {
			cases := []struct{ name, body string }{
				{"level", "log_level: chatty\n"},
				{"color", "fallback_color: blue\n"},
				{"radii", "cluster:\n  min_radius: 50\n  max_radius: 10\n"},
				{"max zoom past the features limit", "cluster:\n  max_zoom: 25\n"},
				{"bucket order", "metrics:\n  fetch_buckets: [1, 0.5]\n"},
				{"catalog", "catalog:\n  - name: a\n    url: x\n  - name: a\n    url: y\n"},
			}
			for _, c := range cases {
				convey.Convey("Then a bad "+c.name+" is rejected", func() {
					_, err := config.Load(writeFile(t, c.body))
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			}
		})
	})
}
