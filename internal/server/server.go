// Package server assembles the overlay HTTP server from configuration.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joeblew999/plat-overlay/internal/api"
	"github.com/joeblew999/plat-overlay/internal/api/viewer"
	"github.com/joeblew999/plat-overlay/internal/config"
	"github.com/joeblew999/plat-overlay/internal/db"
	"github.com/joeblew999/plat-overlay/internal/fetch"
	"github.com/joeblew999/plat-overlay/internal/humastar"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/internal/service"
	"github.com/joeblew999/plat-overlay/internal/templates"
	"github.com/joeblew999/plat-overlay/pkg/logger"
	"github.com/joeblew999/plat-overlay/pkg/metrics"
)

// Config holds the server configuration.
type Config struct {
	Host string
	Port string
	App  *config.Config

	// FragmentsDir, when set, loads HTML fragments from disk instead of the
	// embedded copies.
	FragmentsDir string

	// Retriever overrides how datasets are fetched.
	Retriever fetch.Retriever

	// Registry, when set, receives the overlay metrics instead of a private
	// registry.
	Registry *prometheus.Registry
}

// Server is the overlay HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	session  *service.Session
	store    *db.Store
	metrics  *metrics.Manager
	renderer *templates.Renderer
	links    *humastar.Links
	log      logger.Logger
}

// New builds the session and every route. Nothing is fetched until Start.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		cfg.App = config.New()
	}
	app := cfg.App
	log := logger.Named("server")

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-overlay API", api.Version)
	humaConfig.Info.Description = "Energy infrastructure overlays: load progress, layer visibility, drawable features and property search."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	links := humastar.NewLinks()
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer(links))

	humaAPI := humago.New(mux, humaConfig)

	renderer, err := newRenderer(cfg.FragmentsDir)
	if err != nil {
		return nil, fmt.Errorf("loading fragments: %w", err)
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		metrics:  metrics.NewManager(append(app.MetricsOptions(), metrics.WithPrometheusRegistry(cfg.Registry))...),
		renderer: renderer,
		links:    links,
		log:      log,
	}

	if app.DuckDB.Enabled {
		store, err := db.Open(db.Config{
			DataDir:    app.DataDir,
			DBName:     app.DuckDB.Name,
			Extensions: app.DuckDB.Extensions,
		})
		if err != nil {
			log.Warn(context.Background(), "feature store unavailable", logger.Error(err))
		} else {
			s.store = store
		}
	}

	retriever := cfg.Retriever
	if retriever == nil {
		retriever = fetch.NewRetriever(&http.Client{Timeout: app.FetchTimeout}, app.DataDir)
	}
	opts := []service.Option{
		service.WithRetriever(retriever),
		service.WithBuilder(layer.NewBuilder(
			layer.WithClusterer(app.Clusterer()),
			layer.WithFallbackColor(app.FallbackColor),
			layer.WithLogger(logger.Named("layer")),
			layer.WithMetrics(s.metrics),
		)),
		service.WithLogger(logger.Named("session")),
		service.WithMetrics(s.metrics),
	}
	if s.store != nil {
		opts = append(opts, service.WithStore(s.store))
	}
	session, err := service.NewSession(app.EffectiveCatalog(), opts...)
	if err != nil {
		s.Close(context.Background())
		return nil, err
	}
	s.session = session

	s.routes()
	return s, nil
}

func newRenderer(dir string) (*templates.Renderer, error) {
	if dir != "" {
		return templates.New(dir)
	}
	return templates.NewEmbedded()
}

// Start loads the catalog in the background.
func (s *Server) Start(ctx context.Context) {
	s.session.Start(ctx)
}

// Session returns the server's load session.
func (s *Server) Session() *service.Session { return s.session }

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI { return s.humaAPI.OpenAPI() }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close tears down the session and the feature store.
func (s *Server) Close(ctx context.Context) error {
	if s.session != nil {
		s.session.Close(ctx)
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, &api.Services{
		Session: s.session,
		Store:   s.store,
		Sources: service.NewSourceService(s.config.App.DataDir, s.session.Catalog()),
		DataDir: s.config.App.DataDir,
	})

	// Viewer SSE routes using Huma + Datastar SDK
	viewer.NewEventHandler(s.session, s.renderer).RegisterRoutes(s.humaAPI)
	viewer.NewToggleHandler(s.session, s.renderer).RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI)

	s.mux.Handle("/metrics", s.metrics.Handler())
	page := viewer.Page(s.session, s.renderer)
	if dir := s.config.FragmentsDir; dir != "" {
		page = s.reloading(dir, page)
	}
	s.mux.HandleFunc("/viewer", page)
	s.mux.HandleFunc("/", s.handleRoot)
}

// reloading re-reads fragments from dir before each page load so they can be
// edited without a restart.
func (s *Server) reloading(dir string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.renderer.Reload(dir); err != nil {
			s.log.Warn(r.Context(), "fragments not reloaded", logger.String("dir", dir), logger.Error(err))
		}
		next(w, r)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-overlay",
		"status":  "running",
		"session": s.session.ID,
	})
}
