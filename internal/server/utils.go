package server

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
)

const indexPage = "/index.html"

// isHTMLPath reports whether the request path names an HTML document.
func isHTMLPath(urlPath string) bool {
	return strings.HasSuffix(urlPath, ".html")
}

// isIndexPath reports whether the path ends in /index.html, which
// http.FileServer would otherwise redirect to the directory.
func isIndexPath(urlPath string) bool {
	return strings.HasSuffix(urlPath, indexPage)
}

// serveIndexFile answers a request for .../index.html directly: the file
// itself, or the same 404/403 http.FileServer would send. It reports false
// when the caller should fall back to the file server.
func serveIndexFile(w http.ResponseWriter, r *http.Request, root http.FileSystem) bool {
	f, err := root.Open(r.URL.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "404 page not found", http.StatusNotFound)
		return true
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "403 Forbidden", http.StatusForbidden)
		return true
	case err != nil:
		return false
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}
