package view

import (
	"context"

	"github.com/joeblew999/plat-overlay/internal/registry"
)

// KindCardGrid names the card grid representation.
const KindCardGrid = "card-grid"

// CardGrid shows one card per layer with its feature count and a switch.
type CardGrid struct {
	*representation
}

// NewCardGrid builds the grid from the registry's current entries.
func NewCardGrid(reg *registry.Registry, opts ...Option) *CardGrid {
	return &CardGrid{newRepresentation(KindCardGrid, reg, opts...)}
}

// Switch is the user setting a card's switch on or off.
func (g *CardGrid) Switch(ctx context.Context, name string, on bool) error {
	return g.set(ctx, name, on)
}

// Toggle is the user clicking a card's switch.
func (g *CardGrid) Toggle(ctx context.Context, name string) (bool, error) {
	return g.toggle(ctx, name)
}
