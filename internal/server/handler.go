package server

import (
	"net/http"
	"regexp"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/afero"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
)

// Handler returns the full request pipeline:
// access log -> no-cache -> routes (events, files [-> gzip -> minify]).
func (s *Server) Handler() http.Handler {
	var files http.Handler = fileHandler(s.fs, s.cfg.Root)
	if s.cfg.Minify {
		files = newMinifier().Middleware(files)
	}
	if s.cfg.Compress {
		files = gzhttp.GzipHandler(files)
	}

	mux := http.NewServeMux()
	if s.reloader != nil {
		mux.Handle("/events", s.reloader)
	}
	mux.Handle("/", files)

	var h http.Handler = NoCache(mux)
	h = s.logRequests(h)
	return h
}

// fileHandler serves root out of fs with http.FileServer.
func fileHandler(fs afero.Fs, root string) http.Handler {
	dir := afero.NewHttpFs(fs).Dir(root)
	fileServer := http.FileServer(dir)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isIndexPath(r.URL.Path) && serveIndexFile(w, r, dir) {
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile("[/+]json$"), json.Minify)
	return m
}

// logRequests records every response in the metrics and, when enabled,
// the access log.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.stats.RecordResponse(rec.status, rec.bytes)
		if s.cfg.AccessLog {
			s.logger.Info("Request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration", time.Since(start),
			)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader && code >= 200 {
		r.wroteHeader = true
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
