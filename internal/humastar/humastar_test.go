package humastar

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/joeblew999/plat-overlay/internal/templates"
)

func TestDecodeSignals(t *testing.T) {
	type toggle struct {
		Visible *bool `json:"visible"`
	}

	Convey("Signals posted by the page decode into a struct", t, func() {
		got, err := DecodeSignals[toggle]([]byte(`{"visible": false, "loaded": true}`))
		So(err, ShouldBeNil)
		So(got.Visible, ShouldNotBeNil)
		So(*got.Visible, ShouldBeFalse)

		Convey("An absent signal stays nil", func() {
			got, err := DecodeSignals[toggle]([]byte(`{"loaded": true}`))
			So(err, ShouldBeNil)
			So(got.Visible, ShouldBeNil)
		})

		Convey("An empty body is the zero value", func() {
			got, err := DecodeSignals[toggle](nil)
			So(err, ShouldBeNil)
			So(got.Visible, ShouldBeNil)
		})

		Convey("A malformed body is a 400", func() {
			_, err := DecodeSignals[toggle]([]byte("{"))
			var se huma.StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.GetStatus(), ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPageLinks(t *testing.T) {
	Convey("A middle page links first, prev, next and last", t, func() {
		p := PageBody[string]{Total: 25, Offset: 10, Limit: 10}
		links := p.PaginationLinks("/api/v1/search")
		So(links, ShouldContain, `</api/v1/search?offset=0&limit=10>; rel="first"`)
		So(links, ShouldContain, `</api/v1/search?offset=0&limit=10>; rel="prev"`)
		So(links, ShouldContain, `</api/v1/search?offset=20&limit=10>; rel="next"`)
		So(links, ShouldContain, `</api/v1/search?offset=20&limit=10>; rel="last"`)
	})

	Convey("A base path with a query keeps it", t, func() {
		p := PageBody[string]{Total: 3, Offset: 0, Limit: 2}
		links := p.PaginationLinks("/api/v1/search?q=foo")
		So(links, ShouldContain, `</api/v1/search?q=foo&offset=2&limit=2>; rel="next"`)
		So(links, ShouldNotContain, `</api/v1/search?q=foo&offset=0&limit=2>; rel="prev"`)
	})

	Convey("Paginate clamps to the slice", t, func() {
		all := []int{1, 2, 3, 4, 5}
		So(Paginate(all, 3, 10).Data, ShouldResemble, []int{4, 5})
		So(Paginate(all, 9, 2).Data, ShouldBeEmpty)
		So(Paginate(all, 0, 2).Total, ShouldEqual, 5)
	})
}

func TestActionsFor(t *testing.T) {
	Convey("Action definitions resolve against a layer name", t, func() {
		acts := ActionsFor("gas_lp", []ActionDef{
			{Rel: "hide", Pattern: "/api/v1/layers/%s/visibility", Method: "PUT", Title: "Hide layer"},
		})
		So(len(acts), ShouldEqual, 1)
		So(acts[0].LinkHeader(), ShouldEqual,
			`</api/v1/layers/gas_lp/visibility>; rel="hide"; method="PUT"; title="Hide layer"`)
	})
}

func TestList(t *testing.T) {
	Convey("Given the embedded fragments", t, func() {
		r, err := templates.NewEmbedded()
		So(err, ShouldBeNil)
		h := Handler{Renderer: r}

		Convey("No items renders the empty state", func() {
			html := h.List("layer-card", nil, EmptyState{Title: "No layers", Message: "Nothing loaded"})
			So(html, ShouldContainSubstring, "No layers")
		})

		Convey("Each item is rendered in order", func() {
			html := h.List("control-item", []any{
				map[string]any{"Name": "a", "Color": "#000000", "Visible": true},
				map[string]any{"Name": "b", "Color": "#000000", "Visible": false},
			}, EmptyState{})
			So(html, ShouldContainSubstring, `id="control-a"`)
			So(html, ShouldContainSubstring, `id="control-b"`)
		})
	})
}

type itemOutput struct {
	Body struct {
		Name string `json:"name"`
	}
}

type itemsOutput struct {
	Body []string
}

type nameInput struct {
	Name string `path:"name"`
}

func newLinkedAPI(t *testing.T, collection string) (humatest.TestAPI, *Links) {
	links := NewLinks()
	cfg := huma.DefaultConfig("links test", "0.0.0")
	cfg.Transformers = append(cfg.Transformers, LinkTransformer(links))
	api := humago.New(http.NewServeMux(), cfg)

	huma.Get(api, EntryPath, func(ctx context.Context, _ *EmptyInput) (*struct{}, error) {
		return &struct{}{}, nil
	})
	huma.Get(api, collection, func(ctx context.Context, _ *EmptyInput) (*itemsOutput, error) {
		return &itemsOutput{Body: []string{"a"}}, nil
	})
	huma.Post(api, collection, func(ctx context.Context, _ *EmptyInput) (*struct{}, error) {
		return &struct{}{}, nil
	})
	huma.Put(api, collection+"/{name}", func(ctx context.Context, in *nameInput) (*itemOutput, error) {
		out := &itemOutput{}
		out.Body.Name = in.Name
		return out, nil
	})
	huma.Post(api, "/api/v1/viewer/ping", func(ctx context.Context, _ *EmptyInput) (*struct{}, error) {
		return &struct{}{}, nil
	}, huma.OperationTags(viewerTag))

	links.Build(api)
	return humatest.Wrap(t, api), links
}

func TestLinks(t *testing.T) {
	Convey("Given two APIs with their own link tables", t, func() {
		layers, layerLinks := newLinkedAPI(t, "/api/v1/layers")
		sources, sourceLinks := newLinkedAPI(t, "/api/v1/sources")

		Convey("Each entry point links only its own collections", func() {
			So(layerLinks.Root(), ShouldContain, `</api/v1/layers>; rel="layers"`)
			So(layerLinks.Root(), ShouldNotContain, `</api/v1/sources>; rel="sources"`)
			So(sourceLinks.Root(), ShouldContain, `</api/v1/sources>; rel="sources"`)
			So(sourceLinks.Root(), ShouldNotContain, `</api/v1/layers>; rel="layers"`)
		})

		Convey("Responses carry the table of the API that served them", func() {
			got := strings.Join(layers.Get("/api/v1/layers").Result().Header.Values("Link"), ",")
			So(got, ShouldContainSubstring, `</api/v1/layers/{name}>; rel="item"`)
			So(got, ShouldContainSubstring, `</health>; rel="up"`)
			So(got, ShouldNotContainSubstring, "sources")

			got = strings.Join(sources.Put("/api/v1/sources/x").Result().Header.Values("Link"), ",")
			So(got, ShouldContainSubstring, `</api/v1/sources>; rel="collection"`)
			So(got, ShouldContainSubstring, `rel="edit"`)
			So(got, ShouldContainSubstring, `</api/v1/sources/x>; rel="self"`)
		})

		Convey("Only the relations the API serves are generated", func() {
			all := strings.Join(layerLinks.For("/api/v1/layers"), ",")
			So(all, ShouldNotContainSubstring, "create-form")
			So(all, ShouldNotContainSubstring, "edit-form")
			So(layerLinks.For("/api/v1/viewer/ping"), ShouldBeEmpty)
		})

		Convey("The OpenAPI document records the relations", func() {
			resp := layers.OpenAPI().Paths["/api/v1/layers"].Get.Responses["200"]
			So(resp.Links, ShouldContainKey, "item")
		})
	})
}
