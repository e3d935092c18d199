// Package templates renders the HTML fragments the viewer patches in over SSE.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"path/filepath"
	"sync"
)

//go:embed fragments/*.html
var fragments embed.FS

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// NewEmbedded returns a renderer over the fragments compiled into the binary.
func NewEmbedded() (*Renderer, error) {
	tmpl, err := parseFS(fragments, "fragments/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// New returns a renderer over every *.html file in fragmentsDir.
func New(fragmentsDir string) (*Renderer, error) {
	tmpl, err := parseDir(fragmentsDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

func parseFS(fsys fs.FS, pattern string) (*template.Template, error) {
	return template.ParseFS(fsys, pattern)
}

func parseDir(dir string) (*template.Template, error) {
	return template.ParseGlob(filepath.Join(dir, "*.html"))
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload replaces the templates with the *.html files in fragmentsDir, for
// editing fragments without a rebuild.
func (r *Renderer) Reload(fragmentsDir string) error {
	tmpl, err := parseDir(fragmentsDir)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	return nil
}
