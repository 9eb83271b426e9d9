package server

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// NoCacheStatic serves the web client's static assets with caching disabled,
// so a redeployed client takes effect on the next page load.
//
// Requests for "/" serve index.html. Implements the [Handler] interface.
type NoCacheStatic struct {
	dir string
}

// NewNoCacheStatic creates a static handler rooted at dir.
func NewNoCacheStatic(dir string) *NoCacheStatic {
	return &NoCacheStatic{dir: dir}
}

// Routes returns the HTTP routes this handler serves.
func (h *NoCacheStatic) Routes() []string {
	return []string{"/"}
}

// ServeHTTP serves the requested file relative to the static root.
func (h *NoCacheStatic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean(r.URL.Path)
	if name == "/" || name == "." {
		name = "/index.html"
	}
	if strings.Contains(name, "..") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	http.ServeFile(w, r, filepath.Join(h.dir, filepath.FromSlash(name)))
}
