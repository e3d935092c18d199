package viewer

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-overlay/internal/humastar"
	"github.com/joeblew999/plat-overlay/internal/service"
	"github.com/joeblew999/plat-overlay/internal/templates"
)

// ToggleHandler receives switch and checkbox clicks from the viewer page.
// Each view updates its own element in the response; the other view is
// patched over the event stream.
type ToggleHandler struct {
	humastar.Handler
	session *service.Session
}

// NewToggleHandler creates a new toggle handler.
func NewToggleHandler(session *service.Session, renderer *templates.Renderer) *ToggleHandler {
	return &ToggleHandler{
		Handler: humastar.Handler{Renderer: renderer},
		session: session,
	}
}

func (h *ToggleHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/viewer/cards/{name}/toggle", h.ToggleCard, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/control/{name}/toggle", h.ToggleControl, huma.OperationTags("viewer"))
}

// ToggleInput names the layer; the optional "visible" signal sets the
// switch to a value instead of flipping it.
type ToggleInput struct {
	Name    string `path:"name" doc:"Layer name" example:"gas_lp"`
	RawBody []byte
}

// toggleSignals is the part of the page's signals a toggle reads.
type toggleSignals struct {
	Visible *bool `json:"visible"`
}

func (in *ToggleInput) signals() (toggleSignals, error) {
	return humastar.DecodeSignals[toggleSignals](in.RawBody)
}

func (h *ToggleHandler) ToggleCard(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	cards := h.session.Cards()
	if cards == nil {
		return nil, huma.Error503ServiceUnavailable(service.ErrNotLoaded.Error())
	}
	if _, ok := cards.Displayed(input.Name); !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("layer %q not found", input.Name))
	}
	signals, err := input.signals()
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		var err error
		if signals.Visible != nil {
			err = cards.Switch(ctx, input.Name, *signals.Visible)
		} else {
			_, err = cards.Toggle(ctx, input.Name)
		}
		if err != nil {
			sse.Fail(err)
			return
		}
		if it, ok := itemNamed(cards.Items(), input.Name); ok {
			sse.Outer(h.Fragment("layer-card", it), "#card-"+it.Name)
		}
	}), nil
}

func (h *ToggleHandler) ToggleControl(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	control := h.session.Control()
	if control == nil {
		return nil, huma.Error503ServiceUnavailable(service.ErrNotLoaded.Error())
	}
	if _, ok := control.Displayed(input.Name); !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("layer %q not found", input.Name))
	}
	signals, err := input.signals()
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		var err error
		switch {
		case signals.Visible == nil:
			_, err = control.Toggle(ctx, input.Name)
		case *signals.Visible:
			err = control.Add(ctx, input.Name)
		default:
			err = control.Remove(ctx, input.Name)
		}
		if err != nil {
			sse.Fail(err)
			return
		}
		if it, ok := itemNamed(control.Items(), input.Name); ok {
			sse.Outer(h.Fragment("control-item", it), "#control-"+it.Name)
		}
	}), nil
}
