package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// handleFrontend serves built assets from the static root. Extension-less
// paths outside /api are client-side routes and get the SPA index.
func (s *Server) handleFrontend(w http.ResponseWriter, r *http.Request) {
	p := path.Clean("/" + r.URL.Path)
	if p == "/api" || strings.HasPrefix(p, "/api/") || s.static == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	asset := filepath.Join(s.static, filepath.FromSlash(p))
	if info, err := os.Stat(asset); err == nil && !info.IsDir() {
		http.ServeFile(w, r, asset)
		return
	}

	if strings.Contains(path.Base(p), ".") {
		http.NotFound(w, r)
		return
	}
	index := filepath.Join(s.static, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}
