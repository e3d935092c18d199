// Package search scans the properties of visible layers for a term.
package search

import (
	"strings"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/internal/registry"
	"github.com/joeblew999/plat-overlay/pkg/metrics"
)

// Locator tells a map where a match is.
type Locator struct {
	Center orb.Point  `json:"center" doc:"Longitude/latitude of the feature's bounding box center"`
	Bound  [4]float64 `json:"bbox" doc:"minLon, minLat, maxLon, maxLat"`
}

// Match is one property value containing the search term.
type Match struct {
	Layer        string  `json:"layer" doc:"Layer name"`
	FeatureIndex int     `json:"featureIndex" doc:"Feature index within the layer"`
	Key          string  `json:"key" doc:"Property name"`
	Value        string  `json:"value" doc:"Property value"`
	Locator      Locator `json:"locator"`
}

// Source lists the layers eligible for search.
type Source interface {
	VisibleEntries() []registry.Entry
}

// Index answers searches against a live registry. It keeps no state and
// scans on every call.
type Index struct {
	src     Source
	metrics *metrics.Manager
}

// New creates an index over src.
func New(src Source, m *metrics.Manager) *Index {
	return &Index{src: src, metrics: m}
}

// Search returns every property value containing term, ignoring case, over
// visible layers only. Results are ordered by layer, then feature, then key.
// An empty term matches nothing.
func (ix *Index) Search(term string) []Match {
	ix.metrics.RecordSearch()
	if term == "" {
		return nil
	}
	needle := strings.ToLower(term)

	var out []Match
	for _, e := range ix.src.VisibleEntries() {
		for i, f := range e.Renderable.Features() {
			if f == nil {
				continue
			}
			var loc *Locator
			for _, k := range layer.SortedKeys(f.Properties) {
				v := layer.FormatValue(f.Properties[k])
				if !strings.Contains(strings.ToLower(v), needle) {
					continue
				}
				if loc == nil {
					l := locate(f.Geometry)
					loc = &l
				}
				out = append(out, Match{
					Layer:        e.Descriptor.Name,
					FeatureIndex: i,
					Key:          k,
					Value:        v,
					Locator:      *loc,
				})
			}
		}
	}
	return out
}

func locate(g orb.Geometry) Locator {
	if g == nil {
		return Locator{}
	}
	b := g.Bound()
	return Locator{
		Center: b.Center(),
		Bound:  [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
	}
}
