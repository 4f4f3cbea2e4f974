package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// StaticHandler serves the built dashboard. Paths that do not match a file
// fall back to index.html so client side routes resolve.
type StaticHandler struct {
	dir   string
	files http.Handler
}

func NewStaticHandler(dir string) *StaticHandler {
	return &StaticHandler{
		dir:   dir,
		files: http.FileServer(http.Dir(dir)),
	}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	if name != "/" {
		info, err := os.Stat(filepath.Join(h.dir, filepath.FromSlash(name)))
		if err == nil && !info.IsDir() {
			h.files.ServeHTTP(w, r)
			return
		}
	}

	index := filepath.Join(h.dir, "index.html")
	f, err := os.Open(index)
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found", nil)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found", nil)
		return
	}
	http.ServeContent(w, r, "index.html", info.ModTime(), f)
}
