package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/joeblew999/plat-overlay/internal/api"
	"github.com/joeblew999/plat-overlay/internal/catalog"
	"github.com/joeblew999/plat-overlay/internal/fetch"
	"github.com/joeblew999/plat-overlay/internal/humastar"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/internal/search"
	"github.com/joeblew999/plat-overlay/internal/service"
)

const points = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-99.1,19.4]},"properties":{"name":"Foo terminal","capacity":12}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-99.2,19.5]},"properties":{"name":"Bar"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-99.3,19.6]},"properties":{"name":"Baz"}}
]}`

const polygons = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]},"properties":{"name":"foo zone"}}
]}`

func newSession(t *testing.T) *service.Session {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{"a.geojson": points, "b.geojson": polygons} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cat := catalog.Catalog{
		{Name: "A", URL: "a.geojson", Color: "#008000"},
		{Name: "B", URL: "b.geojson", Color: "#ff0000"},
		{Name: "C", URL: "missing.geojson", Color: "#0000ff"},
	}
	s, err := service.NewSession(cat, service.WithRetriever(fetch.NewRetriever(http.DefaultClient, dir)))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newAPI(t *testing.T, s *service.Session) humatest.TestAPI {
	links := humastar.NewLinks()
	cfg := huma.DefaultConfig("plat-overlay test", api.Version)
	cfg.Transformers = append(cfg.Transformers, humastar.LinkTransformer(links))
	h := humago.New(http.NewServeMux(), cfg)
	api.RegisterRoutes(h, &api.Services{Session: s})
	links.Build(h)
	return humatest.Wrap(t, h)
}

func TestFeaturesZoomLimit(t *testing.T) {
	Convey("The features route accepts every zoom a clusterer may use", t, func() {
		tapi := newAPI(t, newSession(t))
		op := tapi.OpenAPI().Paths["/api/v1/layers/{name}/features"].Get
		var zoom *huma.Param
		for _, p := range op.Parameters {
			if p.Name == "zoom" {
				zoom = p
			}
		}
		So(zoom, ShouldNotBeNil)
		So(zoom.Schema.Maximum, ShouldNotBeNil)
		So(*zoom.Schema.Maximum, ShouldEqual, float64(layer.ZoomLimit))
	})
}

func decode(t *testing.T, raw []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func TestRoutesBeforeLoad(t *testing.T) {
	Convey("Given a session that has not loaded", t, func() {
		s := newSession(t)
		tapi := newAPI(t, s)

		Convey("Health answers and reports not loaded", func() {
			resp := tapi.Get("/health")
			So(resp.Code, ShouldEqual, http.StatusOK)
			var body api.HealthBody
			decode(t, resp.Body.Bytes(), &body)
			So(body.Status, ShouldEqual, "ok")
			So(body.Loaded, ShouldBeFalse)
		})

		Convey("Layers and search are unavailable", func() {
			So(tapi.Get("/api/v1/layers").Code, ShouldEqual, http.StatusServiceUnavailable)
			So(tapi.Get("/api/v1/search?q=foo").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Outcomes are all pending", func() {
			var outs []service.OutcomeSummary
			decode(t, tapi.Get("/api/v1/outcomes").Body.Bytes(), &outs)
			So(len(outs), ShouldEqual, 3)
			So(outs[0].Status, ShouldEqual, "pending")
		})

		Convey("The feature store is unavailable without a store", func() {
			So(tapi.Get("/api/v1/tables").Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestRoutesAfterLoad(t *testing.T) {
	Convey("Given a loaded session", t, func() {
		s := newSession(t)
		So(s.Load(context.Background()), ShouldBeNil)
		Reset(func() { s.Close(context.Background()) })
		tapi := newAPI(t, s)

		Convey("Progress is complete", func() {
			var p service.ProgressSnapshot
			decode(t, tapi.Get("/api/v1/progress").Body.Bytes(), &p)
			So(p.Percent, ShouldEqual, 100)
			So(p.Loaded, ShouldBeTrue)
			So(p.Total, ShouldEqual, 3)
		})

		Convey("The failed dataset is listed in outcomes but not in layers", func() {
			var outs []service.OutcomeSummary
			decode(t, tapi.Get("/api/v1/outcomes").Body.Bytes(), &outs)
			So(outs[2].Name, ShouldEqual, "C")
			So(outs[2].Status, ShouldEqual, "failure")
			So(outs[2].Error, ShouldNotBeEmpty)

			var layers []service.LayerSummary
			decode(t, tapi.Get("/api/v1/layers").Body.Bytes(), &layers)
			So(len(layers), ShouldEqual, 2)
			So(layers[0].Name, ShouldEqual, "A")
			So(layers[0].Kind, ShouldEqual, layer.Clustered)
			So(layers[1].Kind, ShouldEqual, layer.Plain)
			So(tapi.Get("/api/v1/layers/C").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A visible layer offers a hide action", func() {
			resp := tapi.Get("/api/v1/layers/A")
			So(resp.Code, ShouldEqual, http.StatusOK)
			links := strings.Join(resp.Result().Header.Values("Link"), ",")
			So(links, ShouldContainSubstring, `rel="hide"`)
			So(links, ShouldContainSubstring, `rel="self"`)
		})

		Convey("Setting visibility returns the new state", func() {
			resp := tapi.Put("/api/v1/layers/A/visibility", map[string]any{"visible": false})
			So(resp.Code, ShouldEqual, http.StatusOK)
			var l service.LayerSummary
			decode(t, resp.Body.Bytes(), &l)
			So(l.Visible, ShouldBeFalse)
			So(strings.Join(resp.Result().Header.Values("Link"), ","), ShouldContainSubstring, `rel="show"`)

			Convey("And toggling flips it back", func() {
				resp := tapi.Post("/api/v1/layers/A/toggle")
				So(resp.Code, ShouldEqual, http.StatusOK)
				decode(t, resp.Body.Bytes(), &l)
				So(l.Visible, ShouldBeTrue)
			})

			Convey("And the card grid shows it hidden", func() {
				v, ok := s.Cards().Displayed("A")
				So(ok, ShouldBeTrue)
				So(v, ShouldBeFalse)
			})
		})

		Convey("Features at max zoom are unclustered", func() {
			resp := tapi.Get("/api/v1/layers/A/features?zoom=18")
			So(resp.Code, ShouldEqual, http.StatusOK)
			var fc struct {
				Features []json.RawMessage `json:"features"`
			}
			decode(t, resp.Body.Bytes(), &fc)
			So(len(fc.Features), ShouldEqual, 3)
		})

		Convey("A popup lists properties sorted by key", func() {
			var p layer.Popup
			decode(t, tapi.Get("/api/v1/layers/A/features/0").Body.Bytes(), &p)
			So(p.Title, ShouldEqual, "A")
			So(len(p.Rows), ShouldEqual, 2)
			So(p.Rows[0].Key, ShouldEqual, "capacity")
			So(p.Rows[0].Value, ShouldEqual, "12")
			So(tapi.Get("/api/v1/layers/A/features/99").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Search is case-insensitive and paginated", func() {
			resp := tapi.Get("/api/v1/search?q=FOO&limit=1")
			So(resp.Code, ShouldEqual, http.StatusOK)
			var page humastar.PageBody[search.Match]
			decode(t, resp.Body.Bytes(), &page)
			So(page.Total, ShouldEqual, 2)
			So(len(page.Data), ShouldEqual, 1)
			So(page.Data[0].Layer, ShouldEqual, "A")
			So(strings.Join(resp.Result().Header.Values("Link"), ","), ShouldContainSubstring,
				`</api/v1/search?q=FOO&offset=1&limit=1>; rel="next"`)

			Convey("A blank term is rejected", func() {
				So(tapi.Get("/api/v1/search?q=").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("Hidden layers are not searched", func() {
			tapi.Put("/api/v1/layers/B/visibility", map[string]any{"visible": false})
			var page humastar.PageBody[search.Match]
			decode(t, tapi.Get("/api/v1/search?q=foo").Body.Bytes(), &page)
			So(page.Total, ShouldEqual, 1)
		})

		Convey("Info names the session", func() {
			var info api.InfoBody
			decode(t, tapi.Get("/api/v1/info").Body.Bytes(), &info)
			So(info.Session, ShouldEqual, s.ID)
			So(info.Datasets, ShouldEqual, 3)
			So(info.DB, ShouldBeFalse)
		})
	})
}
