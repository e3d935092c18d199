// Package viewer contains the Datastar SSE handlers behind the viewer page:
// the load progress bar, the card grid and the layer control.
package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-overlay/internal/humastar"
	"github.com/joeblew999/plat-overlay/internal/service"
	"github.com/joeblew999/plat-overlay/internal/templates"
	"github.com/joeblew999/plat-overlay/internal/view"
)

// Element ids the fragments are patched into.
const (
	progressSelector = "#load-progress"
	cardsSelector    = "#cards"
	controlSelector  = "#layer-control"
)

// EventHandler streams session changes to the viewer page.
type EventHandler struct {
	humastar.Handler
	session *service.Session
}

// NewEventHandler creates a new event handler.
func NewEventHandler(session *service.Session, renderer *templates.Renderer) *EventHandler {
	return &EventHandler{
		Handler: humastar.Handler{Renderer: renderer},
		session: session,
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/events", h.Events,
		huma.OperationTags("viewer"),
	)
}

// Events sends the current state, then one patch per bus event until the
// client goes away.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sub := h.session.Bus().Subscribe()
		defer h.session.Bus().Unsubscribe(sub)

		if err := h.patchProgress(sse); err != nil {
			return
		}
		if h.session.IsLoaded() {
			if err := h.patchViews(sse); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Ready():
				for _, ev := range sub.Drain() {
					if err := h.apply(sse, ev); err != nil {
						return
					}
				}
			}
		}
	}), nil
}

func (h *EventHandler) apply(sse humastar.SSE, ev service.Event) error {
	switch ev.Resource {
	case service.ResourceProgress:
		if err := h.patchProgress(sse); err != nil {
			return err
		}
		if ev.Action == "loaded" {
			return h.patchViews(sse)
		}
	case service.ResourceCards:
		if cards := h.session.Cards(); cards != nil {
			return h.replaceItem(sse, cards.Items(), ev.ID, "layer-card", "#card-")
		}
	case service.ResourceControl:
		if control := h.session.Control(); control != nil {
			return h.replaceItem(sse, control.Items(), ev.ID, "control-item", "#control-")
		}
	case service.ResourceLayers:
		return sse.Dispatch("layer-changed", map[string]any{"name": ev.ID})
	}
	return nil
}

func (h *EventHandler) patchProgress(sse humastar.SSE) error {
	return sse.Outer(h.Fragment("progress", h.session.Progress()), progressSelector)
}

// patchViews draws both views in full and tells the page loading is over.
func (h *EventHandler) patchViews(sse humastar.SSE) error {
	cards, control := h.session.Cards(), h.session.Control()
	if cards == nil || control == nil {
		return nil
	}
	err := sse.Inner(h.List("layer-card", anyItems(cards.Items()), humastar.EmptyState{
		Title:   "No layers loaded",
		Message: "Every dataset failed to load",
	}), cardsSelector)
	if err != nil {
		return err
	}
	err = sse.Inner(h.List("control-item", anyItems(control.Items()), humastar.EmptyState{
		Title: "No overlays",
	}), controlSelector)
	if err != nil {
		return err
	}
	return sse.Set(map[string]any{"loaded": true})
}

func (h *EventHandler) replaceItem(sse humastar.SSE, items []view.Item, name, tmpl, idPrefix string) error {
	it, ok := itemNamed(items, name)
	if !ok {
		return nil
	}
	return sse.Outer(h.Fragment(tmpl, it), idPrefix+it.Name)
}

func itemNamed(items []view.Item, name string) (view.Item, bool) {
	for _, it := range items {
		if it.Name == name {
			return it, true
		}
	}
	return view.Item{}, false
}

func anyItems(items []view.Item) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}
