// Package registry is the single source of truth for which layers are
// visible. It keeps the rendering surface in step with that state and tells
// every other subscriber when a layer changes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-overlay/internal/catalog"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/pkg/logger"
	"github.com/joeblew999/plat-overlay/pkg/metrics"
)

var (
	ErrUnknownLayer         = errors.New("unknown layer")
	ErrDuplicateLayer       = errors.New("layer already registered")
	ErrRenderSurfaceMissing = errors.New("render surface missing")
)

// Surface draws renderables. The attached set always equals the set of
// visible entries.
type Surface interface {
	Attach(r *layer.Renderable) error
	Detach(name string) error
}

// Event reports a visibility change. Origin is the subscription that caused
// it, or empty for changes made directly on the registry.
type Event struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Origin  string `json:"origin,omitempty"`
}

// Listener receives events synchronously, in mutation order. It may call
// IsVisible and the read accessors but must not change visibility.
type Listener func(Event)

// Entry is one registered layer.
type Entry struct {
	Descriptor   catalog.Descriptor
	Renderable   *layer.Renderable
	Visible      bool
	FeatureCount int
}

// Registry holds one entry per successfully loaded layer.
type Registry struct {
	emit sync.Mutex // held across mutation and delivery
	mu   sync.RWMutex

	surface Surface
	rank    map[string]int
	entries map[string]*Entry
	subs    []*Subscription

	missingOnce sync.Once
	log         logger.Logger
	metrics     *metrics.Manager
}

// Option configures a Registry.
type Option func(*Registry)

// WithSurface sets the rendering surface.
func WithSurface(s Surface) Option {
	return func(r *Registry) { r.surface = s }
}

// WithOrder fixes iteration order to the given names, usually the catalog
// order. Names registered but not listed sort last by name.
func WithOrder(names []string) Option {
	return func(r *Registry) {
		for i, n := range names {
			r.rank[n] = i
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		rank:    make(map[string]int),
		entries: make(map[string]*Entry),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a layer in the Visible state and attaches it. No event is
// emitted. Safe to call from concurrent settle handlers.
func (r *Registry) Register(ctx context.Context, d catalog.Descriptor, rend *layer.Renderable) error {
	if rend == nil {
		return fmt.Errorf("registering %s: nil renderable", d.Name)
	}
	r.emit.Lock()
	defer r.emit.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLayer, d.Name)
	}
	if err := r.attachLocked(ctx, rend); err != nil {
		return fmt.Errorf("attaching %s: %w", d.Name, err)
	}
	r.entries[d.Name] = &Entry{
		Descriptor:   d,
		Renderable:   rend,
		Visible:      true,
		FeatureCount: rend.FeatureCount(),
	}
	r.gaugeLocked()
	return nil
}

// IsVisible reports the visibility of name and whether it is registered.
func (r *Registry) IsVisible(name string) (visible, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return false, false
	}
	return e.Visible, true
}

// SetVisible changes the visibility of name and notifies every subscriber.
// Setting the current value does nothing and emits nothing.
func (r *Registry) SetVisible(ctx context.Context, name string, visible bool) error {
	return r.setVisible(ctx, name, visible, nil)
}

// Toggle flips the visibility of name and returns the new value.
func (r *Registry) Toggle(ctx context.Context, name string) (bool, error) {
	return r.toggle(ctx, name, nil)
}

func (r *Registry) toggle(ctx context.Context, name string, origin *Subscription) (bool, error) {
	r.emit.Lock()
	defer r.emit.Unlock()

	cur, ok := r.IsVisible(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownLayer, name)
	}
	if err := r.setVisibleLocked(ctx, name, !cur, origin); err != nil {
		return cur, err
	}
	return !cur, nil
}

func (r *Registry) setVisible(ctx context.Context, name string, visible bool, origin *Subscription) error {
	r.emit.Lock()
	defer r.emit.Unlock()
	return r.setVisibleLocked(ctx, name, visible, origin)
}

// setVisibleLocked requires r.emit. The origin's commit hook, if any, runs
// before other subscribers hear about the change.
func (r *Registry) setVisibleLocked(ctx context.Context, name string, visible bool, origin *Subscription) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLayer, name)
	}
	if e.Visible == visible {
		r.mu.Unlock()
		return nil
	}

	var err error
	if visible {
		err = r.attachLocked(ctx, e.Renderable)
	} else {
		err = r.detachLocked(ctx, name)
	}
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("setting %s visible=%t: %w", name, visible, err)
	}
	e.Visible = visible
	r.gaugeLocked()
	subs := append([]*Subscription(nil), r.subs...)
	r.mu.Unlock()

	ev := Event{Name: name, Visible: visible}
	if origin != nil {
		ev.Origin = origin.id
	}
	r.metrics.RecordVisibilityChange(name)
	r.log.Debug(ctx, "visibility changed",
		logger.String("layer", name), logger.Bool("visible", visible), logger.String("origin", ev.Origin))

	if origin != nil {
		origin.commit(ctx, ev)
	}
	for _, s := range subs {
		if s == origin {
			continue
		}
		s.deliver(ctx, ev)
	}
	return nil
}

func (r *Registry) attachLocked(ctx context.Context, rend *layer.Renderable) error {
	if r.surface == nil {
		r.warnMissing(ctx)
		return nil
	}
	return r.surface.Attach(rend)
}

func (r *Registry) detachLocked(ctx context.Context, name string) error {
	if r.surface == nil {
		r.warnMissing(ctx)
		return nil
	}
	return r.surface.Detach(name)
}

func (r *Registry) warnMissing(ctx context.Context) {
	r.missingOnce.Do(func() {
		r.log.Warn(ctx, "no rendering surface, tracking visibility only", logger.Error(ErrRenderSurfaceMissing))
	})
}

func (r *Registry) gaugeLocked() {
	visible := 0
	for _, e := range r.entries {
		if e.Visible {
			visible++
		}
	}
	r.metrics.SetLayers(len(r.entries), visible)
}

// Entry returns a copy of the entry called name.
func (r *Registry) Entry(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns copies of every entry in catalog order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.sortEntries(out)
	return out
}

// VisibleEntries returns copies of the visible entries in catalog order.
func (r *Registry) VisibleEntries() []Entry {
	all := r.Entries()
	out := all[:0]
	for _, e := range all {
		if e.Visible {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of registered layers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		ri, iok := r.rank[es[i].Descriptor.Name]
		rj, jok := r.rank[es[j].Descriptor.Name]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return es[i].Descriptor.Name < es[j].Descriptor.Name
		}
	})
}

// Subscribe registers fn for events caused by anyone but the returned
// subscription. An empty id is replaced with a random one.
func (r *Registry) Subscribe(id string, fn Listener) *Subscription {
	if id == "" {
		id = uuid.NewString()
	}
	s := &Subscription{id: id, reg: r, fn: fn}
	r.mu.Lock()
	r.subs = append(r.subs, s)
	r.mu.Unlock()
	return s
}

func (r *Registry) unsubscribe(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.subs {
		if cur == s {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

// Close detaches every visible layer and drops all subscribers.
func (r *Registry) Close(ctx context.Context) {
	r.emit.Lock()
	defer r.emit.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		if e.Visible && r.surface != nil {
			if err := r.surface.Detach(name); err != nil {
				r.log.Warn(ctx, "detach on close failed", logger.String("layer", name), logger.Error(err))
			}
		}
	}
	r.entries = make(map[string]*Entry)
	r.subs = nil
	r.metrics.SetLayers(0, 0)
}
