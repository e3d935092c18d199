package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-overlay/internal/catalog"
	"github.com/joeblew999/plat-overlay/internal/fetch"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/internal/progress"
	"github.com/joeblew999/plat-overlay/internal/registry"
	"github.com/joeblew999/plat-overlay/internal/search"
	"github.com/joeblew999/plat-overlay/internal/view"
	"github.com/joeblew999/plat-overlay/pkg/logger"
	"github.com/joeblew999/plat-overlay/pkg/metrics"
)

var (
	// ErrNotLoaded is returned by operations that need every dataset settled.
	ErrNotLoaded = errors.New("layers not loaded yet")
	// ErrFeatureNotFound is returned for a feature index outside a layer.
	ErrFeatureNotFound = errors.New("feature not found")
)

// FeatureStore receives a copy of every successfully loaded layer.
type FeatureStore interface {
	Ingest(ctx context.Context, layer string, fc *geojson.FeatureCollection) error
}

// Option configures a Session.
type Option func(*Session)

// WithRetriever sets how dataset bytes are fetched.
func WithRetriever(r fetch.Retriever) Option {
	return func(s *Session) { s.retriever = r }
}

// WithBuilder sets the layer builder.
func WithBuilder(b *layer.Builder) Option {
	return func(s *Session) { s.builder = b }
}

// WithSurface sets the rendering surface. A nil surface is allowed: the
// registry then tracks visibility without drawing.
func WithSurface(sf registry.Surface) Option {
	return func(s *Session) { s.surface = sf }
}

// WithStore mirrors loaded layers into a feature store.
func WithStore(fs FeatureStore) Option {
	return func(s *Session) { s.store = fs }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Session) { s.metrics = m }
}

// WithBus publishes session events on b instead of a private bus.
func WithBus(b *EventBus) Option {
	return func(s *Session) {
		if b != nil {
			s.bus = b
		}
	}
}

// Session owns one load of the catalog and everything built from it.
type Session struct {
	ID string

	cat       catalog.Catalog
	retriever fetch.Retriever
	builder   *layer.Builder
	surface   registry.Surface
	store     FeatureStore
	log       logger.Logger
	metrics   *metrics.Manager
	bus       *EventBus

	tracker *progress.Tracker
	reg     *registry.Registry
	index   *search.Index

	once   sync.Once
	loaded chan struct{}

	mu       sync.RWMutex
	outcomes map[string]fetch.Outcome
	cards    *view.CardGrid
	control  *view.LayerControl
	relay    *registry.Subscription
}

// NewSession validates the catalog and prepares a session. Nothing is
// fetched until Load.
func NewSession(cat catalog.Catalog, opts ...Option) (*Session, error) {
	cat = append(catalog.Catalog(nil), cat...)
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		cat:      cat,
		surface:  layer.NewMapSurface(),
		log:      logger.Discard(),
		bus:      NewEventBus(),
		loaded:   make(chan struct{}),
		outcomes: make(map[string]fetch.Outcome, len(cat)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retriever == nil {
		s.retriever = fetch.NewRetriever(http.DefaultClient, "")
	}
	if s.builder == nil {
		s.builder = layer.NewBuilder(layer.WithLogger(s.log), layer.WithMetrics(s.metrics))
	}

	s.tracker = progress.NewTracker(len(cat))
	s.reg = registry.New(
		registry.WithSurface(s.surface),
		registry.WithOrder(cat.Names()),
		registry.WithLogger(s.log),
		registry.WithMetrics(s.metrics),
	)
	s.index = search.New(s.reg, s.metrics)
	return s, nil
}

// Catalog returns the session's catalog.
func (s *Session) Catalog() catalog.Catalog { return s.cat }

// Bus returns the event bus viewers subscribe to.
func (s *Session) Bus() *EventBus { return s.bus }

// Load fetches every dataset and returns once all have settled and the
// views exist. Later calls wait for the first to finish and do nothing.
// Individual dataset failures are reported through Outcomes, not here.
func (s *Session) Load(ctx context.Context) error {
	s.once.Do(func() { s.load(ctx) })
	return ctx.Err()
}

// Start runs Load in the background.
func (s *Session) Start(ctx context.Context) {
	go func() { _ = s.Load(ctx) }()
}

func (s *Session) load(ctx context.Context) {
	s.log.Info(ctx, "loading overlays", logger.String("session", s.ID), logger.Int("datasets", len(s.cat)))

	s.tracker.Subscribe(func(pct int) {
		s.metrics.SetProgress(pct)
		s.bus.Publish(Event{Resource: ResourceProgress, Action: "updated"})
	})

	orch := fetch.New(s.retriever,
		fetch.WithReporter(s.tracker),
		fetch.WithLogger(s.log),
		fetch.WithMetrics(s.metrics),
	)
	orch.Run(ctx, s.cat, s.settle)

	// Views only exist once every dataset has settled.
	publish := func(resource string) view.ChangeFunc {
		return func(it view.Item) {
			s.bus.Publish(Event{Resource: resource, Action: "updated", ID: it.Name})
		}
	}
	s.mu.Lock()
	s.cards = view.NewCardGrid(s.reg, view.WithOnChange(publish(ResourceCards)))
	s.control = view.NewLayerControl(s.reg, view.WithOnChange(publish(ResourceControl)))
	s.relay = s.reg.Subscribe("session-"+s.ID, func(ev registry.Event) {
		s.bus.Publish(Event{Resource: ResourceLayers, Action: "updated", ID: ev.Name})
	})
	s.mu.Unlock()

	s.metrics.SetProgress(s.tracker.Percent())
	close(s.loaded)
	s.bus.Publish(Event{Resource: ResourceProgress, Action: "loaded"})

	settled, total := s.tracker.Counts()
	s.log.Info(ctx, "overlays loaded",
		logger.String("session", s.ID),
		logger.Int("settled", settled),
		logger.Int("total", total),
		logger.Int("layers", s.reg.Len()))
}

// settle runs once per dataset, concurrently across datasets.
func (s *Session) settle(ctx context.Context, d catalog.Descriptor, o *fetch.Outcome) {
	s.mu.Lock()
	s.outcomes[d.Name] = *o
	s.mu.Unlock()

	if !o.OK() {
		return
	}
	r, err := s.builder.Build(ctx, d, o)
	if err != nil {
		s.log.Warn(ctx, "layer not built", logger.String("layer", d.Name), logger.Error(err))
		return
	}
	if err := s.reg.Register(ctx, d, r); err != nil {
		s.log.Warn(ctx, "layer not registered", logger.String("layer", d.Name), logger.Error(err))
		return
	}
	if s.store != nil {
		if err := s.store.Ingest(ctx, d.Name, o.Collection); err != nil {
			s.log.Warn(ctx, "layer not stored", logger.String("layer", d.Name), logger.Error(err))
		}
	}
}

// Loaded is closed once every dataset has settled and the views exist.
func (s *Session) Loaded() <-chan struct{} { return s.loaded }

// IsLoaded reports whether Loaded is closed.
func (s *Session) IsLoaded() bool {
	select {
	case <-s.loaded:
		return true
	default:
		return false
	}
}

// Progress returns the current load progress.
func (s *Session) Progress() ProgressSnapshot {
	settled, total := s.tracker.Counts()
	return ProgressSnapshot{
		Percent: s.tracker.Percent(),
		Settled: settled,
		Total:   total,
		Loaded:  s.IsLoaded(),
	}
}

// Outcomes returns one summary per catalog entry, in catalog order.
// Unsettled entries are reported as pending.
func (s *Session) Outcomes() []OutcomeSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OutcomeSummary, 0, len(s.cat))
	for _, d := range s.cat {
		o, ok := s.outcomes[d.Name]
		if !ok {
			o = fetch.Outcome{Name: d.Name}
		}
		out = append(out, summarizeOutcome(o))
	}
	return out
}

// Layers lists the registered layers in catalog order.
func (s *Session) Layers() ([]LayerSummary, error) {
	if !s.IsLoaded() {
		return nil, ErrNotLoaded
	}
	entries := s.reg.Entries()
	out := make([]LayerSummary, len(entries))
	for i, e := range entries {
		out[i] = summarize(e)
	}
	return out, nil
}

// Layer returns one registered layer.
func (s *Session) Layer(name string) (LayerSummary, error) {
	e, err := s.entry(name)
	if err != nil {
		return LayerSummary{}, err
	}
	return summarize(e), nil
}

func (s *Session) entry(name string) (registry.Entry, error) {
	if !s.IsLoaded() {
		return registry.Entry{}, ErrNotLoaded
	}
	e, ok := s.reg.Entry(name)
	if !ok {
		return registry.Entry{}, fmt.Errorf("%w: %s", registry.ErrUnknownLayer, name)
	}
	return e, nil
}

// SetVisible shows or hides a layer and returns its new summary.
func (s *Session) SetVisible(ctx context.Context, name string, visible bool) (LayerSummary, error) {
	if !s.IsLoaded() {
		return LayerSummary{}, ErrNotLoaded
	}
	if err := s.reg.SetVisible(ctx, name, visible); err != nil {
		return LayerSummary{}, err
	}
	return s.Layer(name)
}

// Toggle flips a layer and returns its new summary.
func (s *Session) Toggle(ctx context.Context, name string) (LayerSummary, error) {
	if !s.IsLoaded() {
		return LayerSummary{}, ErrNotLoaded
	}
	if _, err := s.reg.Toggle(ctx, name); err != nil {
		return LayerSummary{}, err
	}
	return s.Layer(name)
}

// Features returns what a map should draw for name at zoom.
func (s *Session) Features(name string, zoom int) (*geojson.FeatureCollection, error) {
	e, err := s.entry(name)
	if err != nil {
		return nil, err
	}
	return e.Renderable.FeatureCollection(zoom), nil
}

// Popup returns the property table of one feature.
func (s *Session) Popup(name string, index int) (layer.Popup, error) {
	e, err := s.entry(name)
	if err != nil {
		return layer.Popup{}, err
	}
	p, ok := e.Renderable.Popup(index)
	if !ok {
		return layer.Popup{}, fmt.Errorf("%w: %s[%d]", ErrFeatureNotFound, name, index)
	}
	return p, nil
}

// Search scans visible layers for term.
func (s *Session) Search(term string) ([]search.Match, error) {
	if !s.IsLoaded() {
		return nil, ErrNotLoaded
	}
	return s.index.Search(term), nil
}

// Cards returns the card grid, or nil before Loaded.
func (s *Session) Cards() *view.CardGrid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cards
}

// Control returns the layer control, or nil before Loaded.
func (s *Session) Control() *view.LayerControl {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.control
}

// Close tears the session down: views stop listening and every layer is
// detached from the surface.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.cards != nil {
		s.cards.Close()
	}
	if s.control != nil {
		s.control.Close()
	}
	if s.relay != nil {
		s.relay.Close()
	}
	s.mu.Unlock()
	s.reg.Close(ctx)
	s.log.Info(ctx, "session closed", logger.String("session", s.ID))
}
