package server

import (
	"compress/gzip"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/devserver/internal/config"
	"github.com/Kush-Singh-26/devserver/internal/testutil"
)

func newTestServer(t *testing.T, files map[string]string, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Root = testutil.SiteRoot
	cfg.OpenBrowser = false
	cfg.AccessLog = false
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg,
		WithFs(testutil.CreateSiteFs(t, files)),
		WithOutput(io.Discard),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHandler_IndexHTML(t *testing.T) {
	s := newTestServer(t, map[string]string{"index.html": "<p>hi</p>"}, nil)
	rec := serve(t, s.Handler(), http.MethodGet, "/index.html")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html" {
		t.Errorf("Content-Type = %q, want %q", got, "text/html")
	}
	if got := rec.Body.String(); got != "<p>hi</p>" {
		t.Errorf("body = %q, want %q", got, "<p>hi</p>")
	}
	testutil.AssertNoCacheHeaders(t, rec.Header())
}

func TestHandler_Root(t *testing.T) {
	s := newTestServer(t, map[string]string{"index.html": "<p>hi</p>"}, nil)
	rec := serve(t, s.Handler(), http.MethodGet, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "<p>hi</p>" {
		t.Errorf("body = %q, want %q", got, "<p>hi</p>")
	}
	testutil.AssertNoCacheHeaders(t, rec.Header())
}

func TestHandler_RootWithoutIndexListsDirectory(t *testing.T) {
	s := newTestServer(t, map[string]string{"about.html": "<p>about</p>"}, nil)
	rec := serve(t, s.Handler(), http.MethodGet, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "about.html") {
		t.Errorf("directory listing should mention about.html, got %q", rec.Body.String())
	}
	testutil.AssertNoCacheHeaders(t, rec.Header())
}

func TestHandler_NestedIndexHTML(t *testing.T) {
	s := newTestServer(t, map[string]string{"docs/index.html": "<h1>docs</h1>"}, nil)
	rec := serve(t, s.Handler(), http.MethodGet, "/docs/index.html")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "<h1>docs</h1>" {
		t.Errorf("body = %q", got)
	}
}

func TestHandler_ContentTypes(t *testing.T) {
	files := map[string]string{
		"page.html":   "<!doctype html><title>x</title>",
		"data.html":   "{\"not\": \"html\"}",
		"style.css":   "body { color: red; }",
		"app.js":      "console.log(1);",
		"readme.txt":  "hello",
		"logo.svg":    "<svg xmlns=\"http://www.w3.org/2000/svg\"></svg>",
		"config.json": "{}",
	}
	s := newTestServer(t, files, nil)
	h := s.Handler()

	for name := range files {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, h, http.MethodGet, "/"+name)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			want := mime.TypeByExtension(name[strings.LastIndex(name, "."):])
			if strings.HasSuffix(name, ".html") {
				want = "text/html"
			}
			if got := rec.Header().Get("Content-Type"); got != want {
				t.Errorf("Content-Type = %q, want %q", got, want)
			}
			if got := rec.Body.String(); got != files[name] {
				t.Errorf("body = %q, want %q", got, files[name])
			}
			testutil.AssertNoCacheHeaders(t, rec.Header())
		})
	}
}

func TestHandler_LastModifiedIgnoresFileTime(t *testing.T) {
	fs := testutil.CreateSiteFs(t, map[string]string{"old.txt": "old"})
	old := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := fs.Chtimes(testutil.SiteRoot+"/old.txt", old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Root = testutil.SiteRoot
	cfg.AccessLog = false
	s := New(cfg, WithFs(fs), WithOutput(io.Discard))

	rec := serve(t, s.Handler(), http.MethodGet, "/old.txt")
	lm, err := http.ParseTime(rec.Header().Get("Last-Modified"))
	if err != nil {
		t.Fatalf("Last-Modified: %v", err)
	}
	if !lm.After(old.Add(24 * time.Hour)) {
		t.Errorf("Last-Modified = %v, want the response time rather than the file time", lm)
	}
}

func TestHandler_ConditionalRequestGetsFullBody(t *testing.T) {
	s := newTestServer(t, map[string]string{"a.txt": "fresh"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/a.txt", nil)
	req.Header.Set("If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "fresh" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "fresh")
	}
}

func TestHandler_Errors(t *testing.T) {
	s := newTestServer(t, map[string]string{"index.html": "<p>hi</p>"}, nil)
	h := s.Handler()

	tests := []struct {
		path     string
		status   int
		wantHTML bool
	}{
		{"/missing.css", http.StatusNotFound, false},
		{"/missing.html", http.StatusNotFound, true},
		{"/nested/missing/index.html", http.StatusNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(t, h, http.MethodGet, tt.path)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			testutil.AssertNoCacheHeaders(t, rec.Header())
			if tt.wantHTML && rec.Header().Get("Content-Type") != "text/html" {
				t.Errorf("Content-Type = %q, want text/html", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestHandler_Head(t *testing.T) {
	s := newTestServer(t, map[string]string{"index.html": "<p>hi</p>"}, nil)
	rec := serve(t, s.Handler(), http.MethodHead, "/index.html")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body length = %d, want 0", rec.Body.Len())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html" {
		t.Errorf("Content-Type = %q, want text/html", got)
	}
	testutil.AssertNoCacheHeaders(t, rec.Header())
}

func TestHandler_RangeRequest(t *testing.T) {
	s := newTestServer(t, map[string]string{"digits.txt": "0123456789"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/digits.txt", nil)
	req.Header.Set("Range", "bytes=2-4")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if rec.Body.String() != "234" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "234")
	}
	testutil.AssertNoCacheHeaders(t, rec.Header())
}

func TestHandler_TraversalStaysInRoot(t *testing.T) {
	fs := testutil.CreateSiteFs(t, map[string]string{"index.html": "ok"})
	if err := afero.WriteFile(fs, "/secret/key.txt", []byte("key"), 0644); err != nil {
		t.Fatal(err)
	}
	h := fileHandler(fs, testutil.SiteRoot)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secret/key.txt"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK || strings.Contains(rec.Body.String(), "key") {
		t.Errorf("status = %d body = %q, traversal outside root must not succeed", rec.Code, rec.Body.String())
	}
}

func TestHandler_Gzip(t *testing.T) {
	big := strings.Repeat("body { color: red; }\n", 200)
	s := newTestServer(t, map[string]string{"style.css": big}, func(c *config.Config) {
		c.Compress = true
	})

	req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
	testutil.AssertNoCacheHeaders(t, rec.Header())

	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if string(data) != big {
		t.Error("decompressed body does not match file")
	}
}

func TestHandler_Minify(t *testing.T) {
	src := "<html>\n  <body>\n    <p>hi</p>\n  </body>\n</html>\n"
	s := newTestServer(t, map[string]string{"page.html": src}, func(c *config.Config) {
		c.Minify = true
	})
	rec := serve(t, s.Handler(), http.MethodGet, "/page.html")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() >= len(src) {
		t.Errorf("minified body (%d bytes) should be smaller than source (%d bytes)", rec.Body.Len(), len(src))
	}
	if !strings.Contains(rec.Body.String(), "<p>hi") {
		t.Errorf("minified body lost content: %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html" {
		t.Errorf("Content-Type = %q, want text/html", got)
	}
	testutil.AssertNoCacheHeaders(t, rec.Header())
}

func TestHandler_EventsOnlyWithWatch(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := serve(t, s.Handler(), http.MethodGet, "/events")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without -watch", rec.Code)
	}
}

func TestHandler_RecordsMetrics(t *testing.T) {
	s := newTestServer(t, map[string]string{"index.html": "<p>hi</p>"}, func(c *config.Config) {
		c.AccessLog = true
	})
	h := s.Handler()

	serve(t, h, http.MethodGet, "/index.html")
	serve(t, h, http.MethodGet, "/missing.txt")

	if got := s.Stats().Requests(); got != 2 {
		t.Errorf("Requests = %d, want 2", got)
	}
	if got := s.Stats().Errors(); got != 1 {
		t.Errorf("Errors = %d, want 1", got)
	}
	if got := s.Stats().Bytes(); got < int64(len("<p>hi</p>")) {
		t.Errorf("Bytes = %d, want at least %d", got, len("<p>hi</p>"))
	}
}
