// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-overlay/internal/db"
	"github.com/joeblew999/plat-overlay/internal/humastar"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/internal/registry"
	"github.com/joeblew999/plat-overlay/internal/search"
	"github.com/joeblew999/plat-overlay/internal/service"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Session *service.Session
	Store   *db.Store // nil when the feature store is disabled
	Sources *service.SourceService
	DataDir string
}

// RegisterRoutes registers every JSON route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(svc).RegisterRoutes(api)
	NewDBHandler(svc.Store).RegisterRoutes(api)
}

// Types

type NameInput struct {
	Name string `path:"name" doc:"Layer name" example:"gas_lp"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
	Loaded  bool   `json:"loaded" doc:"Whether every dataset has settled"`
}

// LayerBody is one layer plus the actions its current state allows.
type LayerBody struct {
	service.LayerSummary
}

var (
	showAction = humastar.ActionDef{Rel: "show", Pattern: "/api/v1/layers/%s/visibility", Method: "PUT", Title: "Show layer"}
	hideAction = humastar.ActionDef{Rel: "hide", Pattern: "/api/v1/layers/%s/visibility", Method: "PUT", Title: "Hide layer"}
	toggleDef  = humastar.ActionDef{Rel: "toggle", Pattern: "/api/v1/layers/%s/toggle", Method: "POST", Title: "Toggle layer"}
	featureDef = humastar.ActionDef{Rel: "features", Pattern: "/api/v1/layers/%s/features", Method: "GET", Title: "Drawable features"}
)

// Actions implements humastar.Actor.
func (b LayerBody) Actions() []humastar.Action {
	defs := []humastar.ActionDef{showAction, toggleDef, featureDef}
	if b.Visible {
		defs[0] = hideAction
	}
	return humastar.ActionsFor(b.Name, defs)
}

type LayerOutput struct {
	Body LayerBody
}

type LayersOutput struct {
	Body []service.LayerSummary
}

type VisibilityInput struct {
	NameInput
	Body struct {
		Visible bool `json:"visible" doc:"Whether the layer should be drawn"`
	}
}

// FeaturesInput's zoom maximum must match layer.ZoomLimit.
type FeaturesInput struct {
	NameInput
	Zoom int `query:"zoom" minimum:"0" maximum:"24" default:"18" doc:"Map zoom level clusters are resolved at"`
}

type FeaturesOutput struct {
	Body *geojson.FeatureCollection
}

type PopupInput struct {
	NameInput
	Index int `path:"index" minimum:"0" doc:"Feature index within the layer"`
}

type SearchInput struct {
	Q      string `query:"q" doc:"Case-insensitive substring matched against property values" example:"foo"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Matches to skip"`
	Limit  int    `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

type SearchOutput struct {
	Body humastar.PageBody[search.Match]
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterProgress registers load progress routes.
func (h *APIHandler) RegisterProgress(api huma.API) {
	huma.Get(api, "/api/v1/progress", h.GetProgress, huma.OperationTags("progress"))
	huma.Get(api, "/api/v1/outcomes", h.GetOutcomes, huma.OperationTags("progress"))
}

// RegisterLayers registers layer listing and visibility routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{name}", h.GetLayer, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{name}/visibility", h.PutVisibility, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{name}/toggle", h.ToggleLayer, huma.OperationTags("layers"))
}

// RegisterFeatures registers drawable feature and popup routes.
func (h *APIHandler) RegisterFeatures(api huma.API) {
	huma.Get(api, "/api/v1/layers/{name}/features", h.GetFeatures, huma.OperationTags("features"))
	huma.Get(api, "/api/v1/layers/{name}/features/{index}", h.GetPopup, huma.OperationTags("features"))
}

// RegisterSearch registers the property search route.
func (h *APIHandler) RegisterSearch(api huma.API) {
	huma.Get(api, humastar.SearchPath, h.Search, huma.OperationTags("search"))
}

// RegisterSources registers the local dataset listing.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{
		Status:  "ok",
		Version: Version,
		Loaded:  h.svc.Session.IsLoaded(),
	}}, nil
}

func (h *APIHandler) GetProgress(ctx context.Context, input *struct{}) (*struct{ Body service.ProgressSnapshot }, error) {
	return &struct{ Body service.ProgressSnapshot }{Body: h.svc.Session.Progress()}, nil
}

func (h *APIHandler) GetOutcomes(ctx context.Context, input *struct{}) (*struct{ Body []service.OutcomeSummary }, error) {
	return &struct{ Body []service.OutcomeSummary }{Body: h.svc.Session.Outcomes()}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	layers, err := h.svc.Session.Layers()
	if err != nil {
		return nil, toHTTP(err)
	}
	return &LayersOutput{Body: layers}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *NameInput) (*LayerOutput, error) {
	l, err := h.svc.Session.Layer(input.Name)
	if err != nil {
		return nil, toHTTP(err)
	}
	return &LayerOutput{Body: LayerBody{l}}, nil
}

func (h *APIHandler) PutVisibility(ctx context.Context, input *VisibilityInput) (*LayerOutput, error) {
	l, err := h.svc.Session.SetVisible(ctx, input.Name, input.Body.Visible)
	if err != nil {
		return nil, toHTTP(err)
	}
	return &LayerOutput{Body: LayerBody{l}}, nil
}

func (h *APIHandler) ToggleLayer(ctx context.Context, input *NameInput) (*LayerOutput, error) {
	l, err := h.svc.Session.Toggle(ctx, input.Name)
	if err != nil {
		return nil, toHTTP(err)
	}
	return &LayerOutput{Body: LayerBody{l}}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *FeaturesInput) (*FeaturesOutput, error) {
	fc, err := h.svc.Session.Features(input.Name, input.Zoom)
	if err != nil {
		return nil, toHTTP(err)
	}
	return &FeaturesOutput{Body: fc}, nil
}

func (h *APIHandler) GetPopup(ctx context.Context, input *PopupInput) (*struct{ Body layer.Popup }, error) {
	p, err := h.svc.Session.Popup(input.Name, input.Index)
	if err != nil {
		return nil, toHTTP(err)
	}
	return &struct{ Body layer.Popup }{Body: p}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Sources == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	files, err := h.svc.Sources.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("listing sources", err)
	}
	return &struct{ Body []service.SourceFile }{Body: files}, nil
}

func (h *APIHandler) Search(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if input.Q == "" {
		return nil, huma.Error400BadRequest("search term is required")
	}
	matches, err := h.svc.Session.Search(input.Q)
	if err != nil {
		return nil, toHTTP(err)
	}
	return &SearchOutput{Body: humastar.Paginate(matches, input.Offset, input.Limit)}, nil
}

// toHTTP maps service errors to Huma status errors.
func toHTTP(err error) error {
	switch {
	case errors.Is(err, service.ErrNotLoaded):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, registry.ErrUnknownLayer), errors.Is(err, service.ErrFeatureNotFound):
		return huma.Error404NotFound(err.Error())
	default:
		return huma.Error500InternalServerError("request failed", err)
	}
}
