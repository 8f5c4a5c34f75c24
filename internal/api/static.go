package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// spaHandler serves files from dir and falls back to index.html for any
// path that is not a file
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
	path := filepath.Join(h.dir, filepath.FromSlash(clean))

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
		return
	}

	http.FileServer(http.Dir(h.dir)).ServeHTTP(w, r)
}
