package humastar

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// SearchPath is the operation linked with rel="search".
const SearchPath = "/api/v1/search"

// EntryPath is the API entry point; the server root reuses its links.
const EntryPath = "/health"

// viewerTag marks Datastar operations, which get no JSON hypermedia.
const viewerTag = "viewer"

// Links is the table of RFC 8288 Link headers for one API, keyed by
// operation path. The zero value is empty and ready to use.
type Links struct {
	mu     sync.RWMutex
	byPath map[string][]string
}

// NewLinks returns an empty table. Pass it to LinkTransformer when the API is
// configured and call Build once every route is registered.
func NewLinks() *Links {
	return &Links{}
}

// Build derives the table from api's OpenAPI document and records the same
// relations as response links in the document.
//
// Relations: items link to their collection (collection, up); collections
// link to their item template (item), to the entry point (up) and to search;
// the entry point links to every collection by its last path segment, to the
// OpenAPI document and docs, and to search. Items with a PUT get edit.
func (l *Links) Build(api huma.API) {
	doc := api.OpenAPI()
	t := table{}

	var collections, items []string
	for p, pi := range doc.Paths {
		if isViewer(pi) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	sort.Strings(collections)
	sort.Strings(items)
	_, hasSearch := doc.Paths[SearchPath]

	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := doc.Paths[parent]; ok {
			t.add(item, parent, "collection")
			t.add(item, parent, "up")
		}
		if doc.Paths[item].Put != nil {
			t.add(item, item, "edit")
		}
	}

	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				t.add(coll, item, "item")
			}
		}
		if coll == EntryPath {
			continue
		}
		t.add(coll, EntryPath, "up")
		t.add(EntryPath, coll, lastSegment(coll))
		if hasSearch && coll != SearchPath {
			t.add(coll, SearchPath, "search")
		}
	}

	t.add(EntryPath, "/openapi.json", "describedby")
	t.add(EntryPath, "/openapi.json", "service-desc")
	t.add(EntryPath, "/docs", "service-doc")
	if hasSearch {
		t.add(EntryPath, SearchPath, "search")
	}

	for p, pi := range doc.Paths {
		if rels := t[p]; len(rels) > 0 {
			documentLinks(pi, rels)
		}
	}

	l.mu.Lock()
	l.byPath = t.headers()
	l.mu.Unlock()
}

// For returns the Link headers of the operation at path p.
func (l *Links) For(p string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byPath[p]
}

// Root returns the links served on the server root.
func (l *Links) Root() []string {
	return l.For(EntryPath)
}

// LinkTransformer adds Link headers to every Huma response: the static
// relations in links, a self link on item paths, page links for a Pager body
// and action links for an Actor body.
func LinkTransformer(links *Links) huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		// Page links keep every query parameter but the window.
		if p, ok := v.(Pager); ok {
			u := ctx.URL()
			q := u.Query()
			q.Del("offset")
			q.Del("limit")
			base := u.Path
			if enc := q.Encode(); enc != "" {
				base += "?" + enc
			}
			for _, link := range p.PaginationLinks(base) {
				ctx.AppendHeader("Link", link)
			}
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

type relation struct {
	target, rel string
}

// table collects relations per path, deduplicated, in insertion order.
type table map[string][]relation

func (t table) add(from, to, rel string) {
	r := relation{target: to, rel: rel}
	for _, existing := range t[from] {
		if existing == r {
			return
		}
	}
	t[from] = append(t[from], r)
}

func (t table) headers() map[string][]string {
	out := make(map[string][]string, len(t))
	for p, rels := range t {
		for _, r := range rels {
			out[p] = append(out[p], fmt.Sprintf(`<%s>; rel="%s"`, r.target, r.rel))
		}
	}
	return out
}

func isViewer(pi *huma.PathItem) bool {
	for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Delete} {
		if op == nil {
			continue
		}
		for _, tag := range op.Tags {
			if tag == viewerTag {
				return true
			}
		}
	}
	return false
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}

// documentLinks records rels as OpenAPI links on each operation's first 2xx
// response.
func documentLinks(pi *huma.PathItem, rels []relation) {
	for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Delete} {
		if op == nil {
			continue
		}
		resp := successResponse(op)
		if resp == nil {
			continue
		}
		if resp.Links == nil {
			resp.Links = map[string]*huma.Link{}
		}
		for _, r := range rels {
			resp.Links[r.rel] = &huma.Link{
				OperationRef: r.target,
				Description:  "Related: " + r.rel,
			}
		}
	}
}

func successResponse(op *huma.Operation) *huma.Response {
	codes := make([]string, 0, len(op.Responses))
	for code := range op.Responses {
		if strings.HasPrefix(code, "2") {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil
	}
	sort.Strings(codes)
	return op.Responses[codes[0]]
}
