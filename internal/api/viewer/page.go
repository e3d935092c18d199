package viewer

import (
	"net/http"

	"github.com/joeblew999/plat-overlay/internal/service"
	"github.com/joeblew999/plat-overlay/internal/templates"
)

// PageData fills the viewer page shell; everything else arrives over SSE.
type PageData struct {
	Title    string
	Progress service.ProgressSnapshot
}

// Page serves the viewer page shell.
func Page(session *service.Session, renderer *templates.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		html, err := renderer.Render("viewer-page", PageData{
			Title:    "Energy infrastructure overlays",
			Progress: session.Progress(),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}
}
