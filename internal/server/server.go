// Package server is the no-cache development file server: the request
// pipeline that serves the site directory and the launcher that owns the
// process lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/devserver/internal/config"
	"github.com/Kush-Singh-26/devserver/internal/metrics"
)

// ErrRootNotDirectory is returned when the configured root is not a directory.
var ErrRootNotDirectory = errors.New("not a directory")

const bannerRule = "=================================================="

// Server serves cfg.Root with caching disabled.
type Server struct {
	cfg      config.Config
	fs       afero.Fs
	chdir    bool
	out      io.Writer
	logger   *slog.Logger
	opener   BrowserOpener
	stats    *metrics.ServeMetrics
	reloader *Reloader
}

type Option func(*Server)

// WithFs serves from fs instead of the OS filesystem. The working directory
// is then left alone.
func WithFs(fs afero.Fs) Option {
	return func(s *Server) {
		s.fs = fs
		s.chdir = false
	}
}

// WithOutput sets where the operator banner goes (default: stdout).
func WithOutput(w io.Writer) Option {
	return func(s *Server) { s.out = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBrowserOpener replaces the function used to open the browser.
func WithBrowserOpener(fn BrowserOpener) Option {
	return func(s *Server) { s.opener = fn }
}

func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		chdir:  true,
		out:    os.Stdout,
		logger: slog.Default(),
		opener: openDefaultBrowser,
		stats:  metrics.NewServeMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Watch {
		s.reloader = NewReloader(cfg.Root, cfg.DebounceDuration, s.logger)
	}
	return s
}

// Stats returns the counters for responses served so far.
func (s *Server) Stats() *metrics.ServeMetrics {
	return s.stats
}

// Run enters the root directory, binds the port and serves until ctx is
// cancelled. It returns nil after a clean shutdown and an error if startup
// fails; use IsAddrInUse to single out a port conflict.
func (s *Server) Run(ctx context.Context) error {
	if err := s.enterRoot(); err != nil {
		return err
	}

	s.printBanner()

	ln, err := s.Listen()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(s.out, "✅ Server running on port %d\n", s.cfg.Port)
	_, _ = fmt.Fprintln(s.out, "🔄 Press Ctrl+C to stop")
	_, _ = fmt.Fprintln(s.out)

	if s.reloader != nil {
		if err := s.reloader.Start(); err != nil {
			// Serving still works without live reload.
			s.logger.Warn("Live reload disabled", "error", err)
		}
	}

	if s.cfg.OpenBrowser {
		go s.openBrowserAfter(ctx, s.cfg.BrowserDelay, s.cfg.URL())
	}

	return s.Serve(ctx, ln)
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	return listen(s.cfg.Addr())
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully and prints the farewell.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		s.closeReloader()
		return fmt.Errorf("server stopped unexpectedly: %w", err)
	case <-ctx.Done():
	}

	_, _ = fmt.Fprintln(s.out, "\n🛑 Shutting down server...")

	// Event streams never end on their own.
	s.closeReloader()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", "error", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn("HTTP server error", "error", err)
	}

	s.stats.Print(s.out)
	_, _ = fmt.Fprintln(s.out, "👋 Goodbye!")
	return nil
}

func (s *Server) closeReloader() {
	if s.reloader == nil {
		return
	}
	if err := s.reloader.Close(); err != nil {
		s.logger.Warn("Failed to close file watcher", "error", err)
	}
}

// enterRoot checks the root directory and makes it the working directory.
func (s *Server) enterRoot() error {
	info, err := s.fs.Stat(s.cfg.Root)
	if err != nil {
		return fmt.Errorf("serve directory %s: %w", s.cfg.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("serve directory %s: %w", s.cfg.Root, ErrRootNotDirectory)
	}
	if s.chdir {
		if err := os.Chdir(s.cfg.Root); err != nil {
			return fmt.Errorf("failed to enter %s: %w", s.cfg.Root, err)
		}
	}
	return nil
}

func (s *Server) printBanner() {
	url := strings.TrimSuffix(s.cfg.URL(), "/")

	lines := []string{
		"🦊 Website - Development Server",
		bannerRule,
		"📍 Serving directory: " + s.cfg.Root,
		"🌐 URL: " + url,
		"🚫 No-Cache Headers: Enabled",
	}
	if s.cfg.Host == "" || s.cfg.Host == "0.0.0.0" {
		lines = append(lines, "📡 Listening on all interfaces")
	}
	if s.cfg.Watch {
		lines = append(lines, "🔁 Live reload: Enabled via /events")
	}
	if s.cfg.Compress {
		lines = append(lines, "🗜️  Gzip: Enabled")
	}
	if s.cfg.Minify {
		lines = append(lines, "✂️  Minify: Enabled")
	}
	lines = append(lines,
		"📝 Changes are visible immediately!",
		bannerRule,
		"⚡ Starting server...",
	)

	for _, l := range lines {
		_, _ = fmt.Fprintln(s.out, l)
	}
}
