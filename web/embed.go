// Package web embeds the chat client (dist/) and serves it as a single-page
// application.
package web

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"path"
)

const indexFile = "index.html"

//go:embed all:dist
var distFS embed.FS

// SPAHandler serves the embedded chat client.
func SPAHandler() http.Handler {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return NewSPAHandler(sub)
}

// NewSPAHandler serves files from fsys. Paths that name no file get
// index.html so the client can route them.
func NewSPAHandler(fsys fs.FS) http.Handler {
	files := http.FileServerFS(fsys)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)[1:]
		if name == "" {
			name = indexFile
		}

		info, err := fs.Stat(fsys, name)
		switch {
		case err == nil && !info.IsDir():
			files.ServeHTTP(w, r)
		case err == nil || errors.Is(err, fs.ErrNotExist):
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeFileFS(w, r, fsys, indexFile)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	})
}
