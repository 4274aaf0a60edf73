package testutil

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// SiteRoot is where CreateSiteFs places files.
const SiteRoot = "/site"

// CreateSiteFs creates an in-memory filesystem with files under SiteRoot.
// Keys are paths relative to the root.
func CreateSiteFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll(SiteRoot, 0755); err != nil {
		t.Fatalf("Failed to create site root: %v", err)
	}
	for path, content := range files {
		full := filepath.Join(SiteRoot, path)
		if err := fs.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", path, err)
		}
		if err := afero.WriteFile(fs, full, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
	return fs
}

// AssertNoCacheHeaders checks the four headers every response must carry.
func AssertNoCacheHeaders(t *testing.T, h http.Header) {
	t.Helper()

	want := map[string]string{
		"Cache-Control": "no-cache, no-store, must-revalidate",
		"Pragma":        "no-cache",
		"Expires":       "0",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}

	lm := h.Get("Last-Modified")
	if lm == "" {
		t.Error("Last-Modified header missing")
		return
	}
	ts, err := http.ParseTime(lm)
	if err != nil {
		t.Errorf("Last-Modified %q is not an HTTP date: %v", lm, err)
		return
	}
	if d := time.Since(ts); d < -time.Minute || d > time.Minute {
		t.Errorf("Last-Modified = %v, want current time", ts)
	}
}
