package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/joeblew999/plat-overlay/internal/catalog"
	"github.com/joeblew999/plat-overlay/internal/config"
)

const points = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-99.1,19.4]},"properties":{"name":"Foo"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-99.2,19.5]},"properties":{"name":"Bar"}}
]}`

func newServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.geojson"), []byte(points), 0o644); err != nil {
		t.Fatal(err)
	}
	app := config.New()
	app.DataDir = dir
	app.DuckDB.Name = "" // in-memory
	app.Catalog = catalog.Catalog{
		{Name: "A", URL: "a.geojson", Color: "#008000"},
		{Name: "B", URL: "missing.geojson"},
	}
	s, err := New(Config{Host: "localhost", Port: "0", App: app})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer(t *testing.T) {
	Convey("Given a server over a local catalog", t, func() {
		s := newServer(t)
		Reset(func() { s.Close(context.Background()) })

		Convey("The OpenAPI document lists the layer routes", func() {
			doc := s.OpenAPI()
			So(doc.Paths, ShouldContainKey, "/api/v1/layers/{name}/visibility")
			So(doc.Paths, ShouldContainKey, "/api/v1/viewer/events")
		})

		Convey("The root links to the API", func() {
			w := get(t, s, "/")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.Join(w.Result().Header.Values("Link"), ","), ShouldContainSubstring, "/api/v1/layers")
		})

		Convey("Local datasets are listed against the catalog", func() {
			w := get(t, s, "/api/v1/sources")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"inCatalog":"A"`)
		})

		Convey("After loading", func() {
			s.Start(context.Background())
			select {
			case <-s.Session().Loaded():
			case <-time.After(5 * time.Second):
				t.Fatal("load did not finish")
			}

			Convey("Loaded layers are in the feature store", func() {
				w := get(t, s, "/api/v1/tables")
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Tables []string          `json:"tables"`
					Layers map[string]string `json:"layers"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Tables, ShouldContain, "layer_a")
				So(body.Layers["A"], ShouldEqual, "layer_a")
			})

			Convey("Metrics report the progress", func() {
				w := get(t, s, "/metrics")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "plat_overlay_load_progress_percent 100")
			})

			Convey("The viewer page renders", func() {
				w := get(t, s, "/viewer")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `id="cards"`)
			})
		})
	})
}

func TestServerMetricsConfig(t *testing.T) {
	Convey("Given a server with renamed series on a shared registry", t, func() {
		app := config.New()
		app.DataDir = t.TempDir()
		app.DuckDB.Enabled = false
		app.Catalog = catalog.Catalog{{Name: "A", URL: "missing.geojson"}}
		app.Metrics = config.MetricsConfig{
			Namespace:    "ops",
			Subsystem:    "maps",
			FetchBuckets: []float64{0.5, 5},
		}
		registry := prometheus.NewRegistry()

		s, err := New(Config{Host: "localhost", Port: "0", App: app, Registry: registry})
		So(err, ShouldBeNil)
		Reset(func() { s.Close(context.Background()) })

		So(s.Session().Load(context.Background()), ShouldBeNil)

		Convey("The shared registry carries the renamed series and buckets", func() {
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			names := map[string]*dto.MetricFamily{}
			for _, f := range families {
				names[f.GetName()] = f
			}
			So(names, ShouldContainKey, "ops_maps_fetch_outcomes_total")
			hist := names["ops_maps_fetch_duration_seconds"]
			So(hist, ShouldNotBeNil)
			So(len(hist.GetMetric()[0].GetHistogram().GetBucket()), ShouldEqual, 2)
		})

		Convey("The metrics route serves that registry", func() {
			w := get(t, s, "/metrics")
			So(w.Body.String(), ShouldContainSubstring, "ops_maps_load_progress_percent 100")
		})
	})
}

func TestServerFragmentsDir(t *testing.T) {
	Convey("Given a server rendering fragments from disk", t, func() {
		fragments := t.TempDir()
		page := filepath.Join(fragments, "viewer-page.html")
		So(os.WriteFile(page, []byte(`{{define "viewer-page"}}first{{end}}`), 0o644), ShouldBeNil)

		app := config.New()
		app.DataDir = t.TempDir()
		app.DuckDB.Enabled = false
		s, err := New(Config{Host: "localhost", Port: "0", App: app, FragmentsDir: fragments})
		So(err, ShouldBeNil)
		Reset(func() { s.Close(context.Background()) })

		So(get(t, s, "/viewer").Body.String(), ShouldEqual, "first")

		Convey("Edits show up on the next page load", func() {
			So(os.WriteFile(page, []byte(`{{define "viewer-page"}}second{{end}}`), 0o644), ShouldBeNil)
			So(get(t, s, "/viewer").Body.String(), ShouldEqual, "second")
		})
	})
}
