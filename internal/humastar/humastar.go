// Package humastar lets Huma operations answer Datastar requests.
//
// A viewer handler embeds [Handler], renders fragments with it and writes
// them through an [SSE] stream; signals posted back by the page are decoded
// with [DecodeSignals]. The same package owns the hypermedia Link headers
// of the JSON API (see [Links], [Action] and [PageBody]).
//
//	func (h *CardHandler) List(ctx context.Context, _ *humastar.EmptyInput) (*huma.StreamResponse, error) {
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Inner(h.List("layer-card", items, humastar.EmptyState{Title: "No layers"}), "#cards")
//	    }), nil
//	}
package humastar

import (
	"bytes"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-overlay/internal/templates"
)

// Handler is embedded by handlers that answer with rendered fragments.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn as a Huma streaming response.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			r, w := humago.Unwrap(ctx)
			fn(SSE{gen: datastar.NewSSE(w, r)})
		},
	}
}

// Fragment renders one template. A failed render yields "".
func (h *Handler) Fragment(tmpl string, data any) string {
	html, err := h.Renderer.Render(tmpl, data)
	if err != nil {
		return ""
	}
	return html
}

// EmptyState is what the "empty-state" fragment shows for an empty list.
type EmptyState struct {
	Title   string
	Message string
}

// List renders tmpl once per item, or empty when there are none.
func (h *Handler) List(tmpl string, items []any, empty EmptyState) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		h.Renderer.RenderToBuffer(&buf, "empty-state", empty)
		return buf.String()
	}
	for _, item := range items {
		h.Renderer.RenderToBuffer(&buf, tmpl, item)
	}
	return buf.String()
}

// SSE writes Datastar events. Every method fails once the client is gone.
type SSE struct {
	gen *datastar.ServerSentEventGenerator
}

// Inner replaces the children of selector.
func (s SSE) Inner(html, selector string) error {
	return s.gen.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Outer replaces the element at selector.
func (s SSE) Outer(html, selector string) error {
	return s.gen.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeOuter(),
		datastar.WithViewTransitions(),
	)
}

// Set patches page signals.
func (s SSE) Set(signals map[string]any) error {
	return s.gen.MarshalAndPatchSignals(signals)
}

// Fail shows err in the page's error signal.
func (s SSE) Fail(err error) error {
	return s.Set(map[string]any{"error": err.Error()})
}

// Dispatch fires a DOM event the map script listens for.
func (s SSE) Dispatch(event string, detail any) error {
	return s.gen.DispatchCustomEvent(event, detail)
}

// EmptyInput is the input of operations without parameters.
type EmptyInput struct{}

// DecodeSignals reads the signals Datastar posts as a JSON body into T.
// Unknown signals are ignored; an empty body yields the zero T.
func DecodeSignals[T any](body []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(body)) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, huma.Error400BadRequest("invalid signals: " + err.Error())
	}
	return v, nil
}
