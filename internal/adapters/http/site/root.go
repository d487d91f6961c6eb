// Package site serves the embedded landing page with the live ranking.
package site

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the landing page to r at GET /.
func Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Get("/", NewRootHandler().HandleRoot)
}

// RootHandler serves the landing page.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}
