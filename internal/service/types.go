// Package service wires the overlay pipeline into a per-session object:
// fetch every dataset, build and register layers, track progress and expose
// the loaded registry to search and the toggle views.
package service

import (
	"github.com/joeblew999/plat-overlay/internal/fetch"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/internal/registry"
)

// LayerSummary describes a registered layer to a rendering collaborator.
type LayerSummary struct {
	Name         string      `json:"name" doc:"Layer name" example:"gas_lp"`
	Color        string      `json:"color" doc:"Layer color (CSS)" example:"#008000"`
	Kind         layer.Kind  `json:"kind" enum:"plain,clustered" doc:"How the layer is drawn" example:"clustered"`
	FeatureCount int         `json:"featureCount" doc:"Number of features" example:"1245"`
	PointLike    bool        `json:"pointLike" doc:"Whether any feature is a Point or MultiPoint"`
	Visible      bool        `json:"visible" doc:"Whether the layer is drawn"`
	Style        layer.Style `json:"style" doc:"Paint applied to every feature"`
}

func summarize(e registry.Entry) LayerSummary {
	r := e.Renderable
	return LayerSummary{
		Name:         e.Descriptor.Name,
		Color:        r.Style.Color,
		Kind:         r.Kind,
		FeatureCount: e.FeatureCount,
		PointLike:    r.PointLike,
		Visible:      e.Visible,
		Style:        r.Style,
	}
}

// ProgressSnapshot is the load progress at one instant.
type ProgressSnapshot struct {
	Percent int  `json:"percent" minimum:"0" maximum:"100" doc:"Settled datasets as a rounded percentage" example:"70"`
	Settled int  `json:"settled" doc:"Datasets settled so far" example:"7"`
	Total   int  `json:"total" doc:"Datasets in the catalog" example:"10"`
	Loaded  bool `json:"loaded" doc:"Whether every dataset has settled and layers are available"`
}

// OutcomeSummary is the diagnostic view of one retrieval.
type OutcomeSummary struct {
	Name          string   `json:"name" doc:"Layer name" example:"gas_lp"`
	Status        string   `json:"status" enum:"pending,success,failure" doc:"Retrieval status"`
	FeatureCount  int      `json:"featureCount" doc:"Number of features decoded"`
	GeometryKinds []string `json:"geometryKinds" doc:"Geometry types present"`
	Error         string   `json:"error,omitempty" doc:"Failure reason"`
	DurationMS    int64    `json:"durationMs" doc:"Time to settle in milliseconds"`
}

func summarizeOutcome(o fetch.Outcome) OutcomeSummary {
	s := OutcomeSummary{
		Name:          o.Name,
		Status:        o.Status.String(),
		FeatureCount:  o.FeatureCount,
		GeometryKinds: o.GeometryKinds.Sorted(),
		DurationMS:    o.Took.Milliseconds(),
	}
	if o.Status == 0 {
		s.Status = "pending"
	}
	if o.Err != nil {
		s.Error = o.Err.Error()
	}
	return s
}
