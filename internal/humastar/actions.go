package humastar

import (
	"fmt"
	"strings"
)

// Action is a state-dependent hypermedia link, emitted as an RFC 8288 Link
// header with method and title parameters:
//
//	</api/v1/layers/gas_lp/visibility>; rel="hide"; method="PUT"; title="Hide layer"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// Actor is implemented by response bodies whose available actions depend on
// their state, such as a layer offering "show" only while hidden.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	for _, p := range [][2]string{{"method", a.Method}, {"title", a.Title}} {
		if p[1] != "" {
			fmt.Fprintf(&b, `; %s="%s"`, p[0], p[1])
		}
	}
	return b.String()
}

// ActionDef is an Action whose Href is a pattern with one %s for the
// resource name.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
}

// For resolves the definition against one resource.
func (d ActionDef) For(name string) Action {
	return Action{
		Rel:    d.Rel,
		Href:   fmt.Sprintf(d.Pattern, name),
		Method: d.Method,
		Title:  d.Title,
	}
}

// ActionsFor resolves every definition against one resource.
func ActionsFor(name string, defs []ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = d.For(name)
	}
	return actions
}
