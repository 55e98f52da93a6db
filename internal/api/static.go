package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// staticHandler serves the web front-end from dir. Paths that do not name a
// file fall back to index.html so client-side routes survive a reload.
func staticHandler(dir string) http.Handler {
	root := os.DirFS(dir)
	files := http.FileServerFS(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, BasePath+"/") {
			http.NotFound(w, r)
			return
		}

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			files.ServeHTTP(w, r)
			return
		}

		info, err := fs.Stat(root, name)
		switch {
		case err == nil && !info.IsDir():
			files.ServeHTTP(w, r)
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		default:
			http.ServeFileFS(w, r, root, "index.html")
		}
	})
}
