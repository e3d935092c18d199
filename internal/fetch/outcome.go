// Package fetch retrieves every catalog dataset concurrently and reports a
// per-dataset outcome without letting one failure affect its siblings.
package fetch

import (
	"sort"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Status is the terminal state of one retrieval.
type Status int

const (
	Success Status = iota + 1
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// GeometryKind is a GeoJSON geometry type name, e.g. "Point" or "Polygon".
type GeometryKind string

const (
	KindPoint              GeometryKind = "Point"
	KindMultiPoint         GeometryKind = "MultiPoint"
	KindLineString         GeometryKind = "LineString"
	KindMultiLineString    GeometryKind = "MultiLineString"
	KindPolygon            GeometryKind = "Polygon"
	KindMultiPolygon       GeometryKind = "MultiPolygon"
	KindGeometryCollection GeometryKind = "GeometryCollection"
)

// KindSet is the set of geometry kinds present in a collection.
type KindSet map[GeometryKind]struct{}

// Has reports whether k is in the set.
func (s KindSet) Has(k GeometryKind) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the kinds in lexical order.
func (s KindSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// Outcome is produced once per descriptor and never mutated afterwards.
type Outcome struct {
	Name          string
	Status        Status
	FeatureCount  int
	GeometryKinds KindSet
	Err           error
	Took          time.Duration

	// Collection is the decoded payload, set only on Success.
	Collection *geojson.FeatureCollection
}

// OK reports whether the retrieval succeeded.
func (o *Outcome) OK() bool { return o.Status == Success }

// KindsOf collects the geometry kinds of a feature collection. Features
// with a null geometry contribute nothing.
func KindsOf(fc *geojson.FeatureCollection) KindSet {
	kinds := KindSet{}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		kinds[GeometryKind(f.Geometry.GeoJSONType())] = struct{}{}
	}
	return kinds
}
