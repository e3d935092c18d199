package db

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory store", t, func() {
		s, err := Open(Config{})
		So(err, ShouldBeNil)
		Reset(func() { s.Close() })

		fc := geojson.NewFeatureCollection()
		a := geojson.NewFeature(orb.Point{-99.1, 19.4})
		a.Properties["name"] = "Norte"
		fc.Append(a)
		b := geojson.NewFeature(orb.LineString{{0, 0}, {2, 2}})
		b.Properties["name"] = "Ducto"
		fc.Append(b)

		So(s.Ingest(ctx, "Gas LP", fc), ShouldBeNil)

		Convey("The layer gets a sanitized table", func() {
			tables, err := s.Tables(ctx)
			So(err, ShouldBeNil)
			So(tables, ShouldContain, "layer_gas_lp")
		})

		Convey("Features are queryable", func() {
			res, err := s.Query(ctx, `SELECT feature_index, geometry_type, lon FROM layer_gas_lp ORDER BY feature_index`)
			So(err, ShouldBeNil)
			So(res.Columns, ShouldResemble, []string{"feature_index", "geometry_type", "lon"})
			So(len(res.Rows), ShouldEqual, 2)
			So(res.Rows[0]["geometry_type"], ShouldEqual, "Point")
			So(res.Rows[1]["lon"], ShouldEqual, 1.0)
		})

		Convey("A different layer with the same sanitized name gets its own table", func() {
			other := geojson.NewFeatureCollection()
			other.Append(geojson.NewFeature(orb.Point{1, 1}))
			So(s.Ingest(ctx, "gas_lp", other), ShouldBeNil)

			So(s.LayerTables(), ShouldResemble, map[string]string{
				"Gas LP": "layer_gas_lp",
				"gas_lp": "layer_gas_lp_2",
			})
			res, err := s.Query(ctx, `SELECT count(*) AS n FROM layer_gas_lp`)
			So(err, ShouldBeNil)
			So(res.Rows[0]["n"], ShouldEqual, int64(2))
			res, err = s.Query(ctx, `SELECT count(*) AS n FROM layer_gas_lp_2`)
			So(err, ShouldBeNil)
			So(res.Rows[0]["n"], ShouldEqual, int64(1))
		})

		Convey("Ingesting again replaces the table", func() {
			So(s.Ingest(ctx, "Gas LP", geojson.NewFeatureCollection()), ShouldBeNil)
			res, err := s.Query(ctx, `SELECT count(*) AS n FROM layer_gas_lp`)
			So(err, ShouldBeNil)
			So(res.Rows[0]["n"], ShouldEqual, int64(0))
		})
	})
}
