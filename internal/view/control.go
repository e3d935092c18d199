package view

import (
	"context"

	"github.com/joeblew999/plat-overlay/internal/registry"
)

// KindLayerControl names the layer control representation.
const KindLayerControl = "layer-control"

// LayerControl is the map's overlay checklist.
type LayerControl struct {
	*representation
}

// NewLayerControl builds the control from the registry's current entries.
func NewLayerControl(reg *registry.Registry, opts ...Option) *LayerControl {
	return &LayerControl{newRepresentation(KindLayerControl, reg, opts...)}
}

// Add checks an overlay.
func (c *LayerControl) Add(ctx context.Context, name string) error {
	return c.set(ctx, name, true)
}

// Remove unchecks an overlay.
func (c *LayerControl) Remove(ctx context.Context, name string) error {
	return c.set(ctx, name, false)
}

// Toggle flips an overlay's checkbox.
func (c *LayerControl) Toggle(ctx context.Context, name string) (bool, error) {
	return c.toggle(ctx, name)
}
