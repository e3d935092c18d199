package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	svc *Services
}

func NewInfoHandler(svc *Services) *InfoHandler {
	return &InfoHandler{svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Session  string   `json:"session" doc:"Current load session ID"`
	DataDir  string   `json:"data_dir" doc:"Directory relative dataset paths resolve against"`
	DB       bool     `json:"db" doc:"Whether the feature store is available"`
	Datasets int      `json:"datasets" doc:"Number of catalog entries"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"geojson", "clustering", "search", "datastar"}
	if h.svc.Store != nil {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-overlay",
		Version:  Version,
		Session:  h.svc.Session.ID,
		DataDir:  h.svc.DataDir,
		DB:       h.svc.Store != nil,
		Datasets: len(h.svc.Session.Catalog()),
		Features: features,
	}}, nil
}
