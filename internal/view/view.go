// Package view holds the toggle surfaces a user sees: a grid of cards with
// switches and a map-style layer control. Both display a copy of registry
// state and change it only through their registry subscription.
package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-overlay/internal/registry"
)

// Item is the displayed state of one layer.
type Item struct {
	Name         string `json:"name"`
	Color        string `json:"color"`
	FeatureCount int    `json:"featureCount"`
	Visible      bool   `json:"visible"`
}

// ChangeFunc is called after an item's displayed state changes. It runs
// while the registry is delivering an event and must not block.
type ChangeFunc func(Item)

// Option configures a representation.
type Option func(*representation)

// WithOnChange sets the change hook.
func WithOnChange(fn ChangeFunc) Option {
	return func(r *representation) { r.onChange = fn }
}

type representation struct {
	kind string
	sub  *registry.Subscription
	reg  *registry.Registry

	mu    sync.RWMutex
	items []Item
	index map[string]int

	onChange ChangeFunc
}

func newRepresentation(kind string, reg *registry.Registry, opts ...Option) *representation {
	r := &representation{kind: kind, reg: reg, index: make(map[string]int)}
	for _, opt := range opts {
		opt(r)
	}

	// Subscribe before taking the snapshot so no change falls in between.
	// Events that arrive meanwhile wait on r.mu and then re-read.
	r.mu.Lock()
	r.sub = reg.Subscribe(kind+"-"+uuid.NewString(), r.handle)
	r.sub.OnCommit(func(ev registry.Event) { r.display(ev.Name, ev.Visible) })
	for _, e := range reg.Entries() {
		r.index[e.Descriptor.Name] = len(r.items)
		r.items = append(r.items, Item{
			Name:         e.Descriptor.Name,
			Color:        e.Renderable.Style.Color,
			FeatureCount: e.FeatureCount,
			Visible:      e.Visible,
		})
	}
	r.mu.Unlock()
	return r
}

// handle re-reads the registry rather than trusting the event payload.
func (r *representation) handle(ev registry.Event) {
	v, ok := r.reg.IsVisible(ev.Name)
	if !ok {
		return
	}
	r.display(ev.Name, v)
}

func (r *representation) display(name string, visible bool) {
	r.mu.Lock()
	i, ok := r.index[name]
	if !ok || r.items[i].Visible == visible {
		r.mu.Unlock()
		return
	}
	r.items[i].Visible = visible
	it := r.items[i]
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(it)
	}
}

// set and toggle update this representation's own display through the
// commit hook, in order with events from everyone else.
func (r *representation) set(ctx context.Context, name string, visible bool) error {
	return r.sub.SetVisible(ctx, name, visible)
}

func (r *representation) toggle(ctx context.Context, name string) (bool, error) {
	return r.sub.Toggle(ctx, name)
}

// ID returns the subscription id, which is the origin of events this
// representation causes.
func (r *representation) ID() string { return r.sub.ID() }

// Kind names the representation.
func (r *representation) Kind() string { return r.kind }

// Items returns the displayed state in catalog order.
func (r *representation) Items() []Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Item(nil), r.items...)
}

// Displayed returns what the representation currently shows for name.
func (r *representation) Displayed(name string) (visible, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return false, false
	}
	return r.items[i].Visible, true
}

// Close stops listening to the registry.
func (r *representation) Close() { r.sub.Close() }

func (r *representation) String() string {
	return fmt.Sprintf("%s(%d layers)", r.kind, len(r.Items()))
}
