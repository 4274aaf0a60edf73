package server

import (
	"net/http"
	"strings"
	"time"
)

// Values sent on every response.
const (
	cacheControlValue = "no-cache, no-store, must-revalidate"
	pragmaValue       = "no-cache"
	expiresValue      = "0"
	htmlContentType   = "text/html"
)

// now is replaced in tests.
var now = time.Now

// NoCache makes every response from next uncacheable. The headers are applied
// when the response header is finalized, so they override whatever next set,
// including on error responses.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never let the delegate answer 304 from a stale validator.
		r.Header.Del("If-Modified-Since")
		r.Header.Del("If-None-Match")

		nw := &noCacheWriter{
			ResponseWriter: w,
			forceHTML:      isHTMLPath(r.URL.Path),
		}
		next.ServeHTTP(nw, r)
		if !nw.wroteHeader {
			nw.WriteHeader(http.StatusOK)
		}
	})
}

type noCacheWriter struct {
	http.ResponseWriter
	forceHTML   bool
	wroteHeader bool
}

func (w *noCacheWriter) WriteHeader(code int) {
	// 1xx responses are not final.
	if !w.wroteHeader && (code >= 200 || code == http.StatusSwitchingProtocols) {
		w.wroteHeader = true
		applyNoCache(w.Header(), w.forceHTML)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *noCacheWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *noCacheWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *noCacheWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func applyNoCache(h http.Header, forceHTML bool) {
	h.Set("Cache-Control", cacheControlValue)
	h.Set("Pragma", pragmaValue)
	h.Set("Expires", expiresValue)
	h.Set("Last-Modified", now().UTC().Format(http.TimeFormat))

	// Multi-range bodies keep their multipart type.
	if forceHTML && !strings.HasPrefix(h.Get("Content-Type"), "multipart/") {
		h.Set("Content-Type", htmlContentType)
	}
}
