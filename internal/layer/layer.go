// Package layer classifies decoded datasets and turns them into drawable
// renderables, clustering point layers when a clusterer is available.
package layer

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/paulmach/orb/geojson"
)

// Renderable is the drawable form of one successfully loaded dataset.
// It is immutable once built.
type Renderable struct {
	Name      string
	Kind      Kind
	PointLike bool
	Style     Style

	collection *geojson.FeatureCollection
	clusterer  Clusterer
}

// FeatureCount returns the number of features in the source collection.
func (r *Renderable) FeatureCount() int { return len(r.Features()) }

// Features returns the source features. Callers must not modify them.
func (r *Renderable) Features() []*geojson.Feature {
	if r.collection == nil {
		return nil
	}
	return r.collection.Features
}

// Properties returns the property table of feature i.
func (r *Renderable) Properties(i int) (geojson.Properties, bool) {
	fs := r.Features()
	if i < 0 || i >= len(fs) {
		return nil, false
	}
	return fs[i].Properties, true
}

// PopupRow is one key/value line of a popup.
type PopupRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Popup is what a user sees after clicking a feature.
type Popup struct {
	Title string     `json:"title" doc:"Layer name"`
	Index int        `json:"index" doc:"Feature index within the layer"`
	Rows  []PopupRow `json:"rows" doc:"Feature properties sorted by key"`
}

// Popup builds the property table for feature i, headed by the layer name.
func (r *Renderable) Popup(i int) (Popup, bool) {
	props, ok := r.Properties(i)
	if !ok {
		return Popup{}, false
	}
	p := Popup{Title: r.Name, Index: i, Rows: make([]PopupRow, 0, len(props))}
	for _, k := range SortedKeys(props) {
		p.Rows = append(p.Rows, PopupRow{Key: k, Value: FormatValue(props[k])})
	}
	return p, true
}

// FeatureCollection returns what should be drawn at zoom. Clustered layers
// are grouped by their clusterer; plain layers return every feature. The
// style travels as a foreign member named "style".
func (r *Renderable) FeatureCollection(zoom int) *geojson.FeatureCollection {
	var fc *geojson.FeatureCollection
	if r.Kind == Clustered && r.clusterer != nil && r.collection != nil {
		fc = r.clusterer.Cluster(r.collection, zoom)
	} else {
		fc = geojson.NewFeatureCollection()
		for i, f := range r.Features() {
			fc.Append(indexed(f, i))
		}
	}
	fc.ExtraMembers = geojson.Properties{
		"name":  r.Name,
		"kind":  string(r.Kind),
		"style": r.Style,
	}
	return fc
}

// SortedKeys returns the keys of props in lexical order.
func SortedKeys(props geojson.Properties) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatValue renders a property value the way it is shown and searched.
// Scalars print plainly, nested objects and arrays as compact JSON, and
// null as the empty string.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
