package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ImageSource reports where snapshots are stored.
type ImageSource interface {
	ImagesDir() string
}

// ImagesHandler serves stored player snapshots.
type ImagesHandler struct {
	src ImageSource
}

// NewImagesHandler creates a new images handler.
func NewImagesHandler(src ImageSource) *ImagesHandler {
	return &ImagesHandler{src: src}
}

// HandleImage handles GET /src/{file}. Only plain file names inside the
// snapshot directory are served.
func (h *ImagesHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	dir := h.src.ImagesDir()
	if dir == "" || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(dir, name)
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}
