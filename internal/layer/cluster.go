package layer

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

const tileSize = 256

// ZoomLimit is the deepest zoom features can be requested at. A clusterer's
// MaxZoom must not exceed it or the unclustered view is unreachable.
const ZoomLimit = 24

// Properties set on features produced by clustering.
const (
	PropCluster        = "cluster"
	PropPointCount     = "point_count"
	PropFeatureIndex   = "feature_index"
	PropFeatureIndexes = "feature_indexes"
)

// Clusterer groups point features for display at a zoom level.
type Clusterer interface {
	// Cluster returns the features of fc as drawn at zoom. Non-point
	// features pass through unchanged.
	Cluster(fc *geojson.FeatureCollection, zoom int) *geojson.FeatureCollection
	// MaxZoom is the zoom at and above which every feature is drawn on its own.
	MaxZoom() int
}

// GridClusterer buckets points into square pixel cells whose size shrinks
// as the zoom level grows.
type GridClusterer struct {
	Max       int     // clustering is disabled at this zoom
	MaxRadius float64 // cell size in pixels at zoom 0
	MinRadius float64 // cell size in pixels at Max-1
}

// NewGridClusterer returns a clusterer with the usual web-map defaults.
func NewGridClusterer() *GridClusterer {
	return &GridClusterer{Max: 18, MaxRadius: 80, MinRadius: 10}
}

// MaxZoom implements Clusterer.
func (g *GridClusterer) MaxZoom() int { return g.Max }

// Radius returns the grouping radius in pixels at zoom, or 0 when
// clustering is disabled there.
func (g *GridClusterer) Radius(zoom int) float64 {
	if zoom >= g.Max {
		return 0
	}
	if zoom < 0 {
		zoom = 0
	}
	if g.Max <= 1 {
		return g.MaxRadius
	}
	t := float64(zoom) / float64(g.Max-1)
	return g.MaxRadius + (g.MinRadius-g.MaxRadius)*t
}

type cell struct{ x, y int64 }

type bucket struct {
	sum     orb.Point
	indexes []int
}

// Cluster implements Clusterer.
func (g *GridClusterer) Cluster(fc *geojson.FeatureCollection, zoom int) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	radius := g.Radius(zoom)

	buckets := map[cell]*bucket{}
	var order []cell

	for i, f := range fc.Features {
		pt, ok := markerPoint(f)
		if !ok || radius <= 0 {
			out.Append(indexed(f, i))
			continue
		}
		px := maptile.Fraction(pt, maptile.Zoom(zoom))
		c := cell{
			x: int64(math.Floor(px[0] * tileSize / radius)),
			y: int64(math.Floor(px[1] * tileSize / radius)),
		}
		b, ok := buckets[c]
		if !ok {
			b = &bucket{}
			buckets[c] = b
			order = append(order, c)
		}
		b.sum[0] += pt[0]
		b.sum[1] += pt[1]
		b.indexes = append(b.indexes, i)
	}

	for _, c := range order {
		b := buckets[c]
		if len(b.indexes) == 1 {
			out.Append(indexed(fc.Features[b.indexes[0]], b.indexes[0]))
			continue
		}
		n := float64(len(b.indexes))
		cf := geojson.NewFeature(orb.Point{b.sum[0] / n, b.sum[1] / n})
		cf.Properties[PropCluster] = true
		cf.Properties[PropPointCount] = len(b.indexes)
		cf.Properties[PropFeatureIndexes] = b.indexes
		out.Append(cf)
	}
	return out
}

// markerPoint returns where a point-like feature is drawn.
func markerPoint(f *geojson.Feature) (orb.Point, bool) {
	if f == nil || f.Geometry == nil {
		return orb.Point{}, false
	}
	switch g := f.Geometry.(type) {
	case orb.Point:
		return g, true
	case orb.MultiPoint:
		if len(g) == 0 {
			return orb.Point{}, false
		}
		return g.Bound().Center(), true
	}
	return orb.Point{}, false
}

// indexed copies f with its position in the source collection recorded so
// a client can ask for the popup of what it clicked.
func indexed(f *geojson.Feature, i int) *geojson.Feature {
	cp := *f
	cp.Properties = f.Properties.Clone()
	if cp.Properties == nil {
		cp.Properties = geojson.Properties{}
	}
	cp.Properties[PropFeatureIndex] = i
	return &cp
}

// ClusterSizes lists the member count of every drawn marker, largest first.
func ClusterSizes(fc *geojson.FeatureCollection) []int {
	var sizes []int
	for _, f := range fc.Features {
		if n, ok := f.Properties[PropPointCount].(int); ok {
			sizes = append(sizes, n)
		} else {
			sizes = append(sizes, 1)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	return sizes
}
