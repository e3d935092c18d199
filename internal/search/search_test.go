package search

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/joeblew999/plat-overlay/internal/catalog"
	"github.com/joeblew999/plat-overlay/internal/fetch"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/internal/registry"
	"github.com/joeblew999/plat-overlay/pkg/metrics"
)

const plantsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-100,20]},"properties":{"name":"Foo Plant","operator":"acme"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-101,21]},"properties":{"name":"Bar","alias":"FOOBAR","km":12}}
]}`

const pipesJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[2,4]]},"properties":{"name":"food line"}}
]}`

func register(t *testing.T, reg *registry.Registry, name, raw string) {
	t.Helper()
	fc, err := fetch.Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	out := &fetch.Outcome{Name: name, Status: fetch.Success, GeometryKinds: fetch.KindsOf(fc), Collection: fc}
	d := catalog.Descriptor{Name: name}
	r, err := layer.NewBuilder().Build(context.Background(), d, out)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(context.Background(), d, r); err != nil {
		t.Fatal(err)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	Convey("Given two visible layers", t, func() {
		reg := registry.New(registry.WithOrder([]string{"plants", "pipes"}))
		register(t, reg, "pipes", pipesJSON)
		register(t, reg, "plants", plantsJSON)
		ix := New(reg, metrics.NewManager())

		Convey("Matches are case-insensitive and ordered by layer, feature, key", func() {
			got := ix.Search("foo")
			So(len(got), ShouldEqual, 3)
			So(got[0].Layer, ShouldEqual, "plants")
			So(got[0].Key, ShouldEqual, "name")
			So(got[0].Value, ShouldEqual, "Foo Plant")
			So(got[1].FeatureIndex, ShouldEqual, 1)
			So(got[1].Key, ShouldEqual, "alias")
			So(got[2].Layer, ShouldEqual, "pipes")
		})

		Convey("Locators point at the feature", func() {
			got := ix.Search("food")
			So(len(got), ShouldEqual, 1)
			So(got[0].Locator.Center[0], ShouldEqual, 1)
			So(got[0].Locator.Center[1], ShouldEqual, 2)
			So(got[0].Locator.Bound, ShouldResemble, [4]float64{0, 0, 2, 4})
		})

		Convey("Non-string values are searchable", func() {
			got := ix.Search("12")
			So(len(got), ShouldEqual, 1)
			So(got[0].Key, ShouldEqual, "km")
		})

		Convey("Hidden layers are not scanned", func() {
			So(reg.SetVisible(ctx, "plants", false), ShouldBeNil)
			got := ix.Search("foo")
			So(len(got), ShouldEqual, 1)
			So(got[0].Layer, ShouldEqual, "pipes")

			Convey("and come back once shown", func() {
				So(reg.SetVisible(ctx, "plants", true), ShouldBeNil)
				So(len(ix.Search("foo")), ShouldEqual, 3)
			})
		})

		Convey("Empty terms and misses return nothing", func() {
			So(ix.Search(""), ShouldBeEmpty)
			So(ix.Search("zzz"), ShouldBeEmpty)
		})

		Convey("Surrounding spaces are part of the term", func() {
			got := ix.Search(" plant")
			So(len(got), ShouldEqual, 1)
			So(got[0].Value, ShouldEqual, "Foo Plant")
			So(ix.Search("plant "), ShouldBeEmpty)
		})
	})
}
