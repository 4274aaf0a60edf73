package server

import (
	"context"
	"time"

	"github.com/pkg/browser"
)

// BrowserOpener opens url in the user's browser.
type BrowserOpener func(url string) error

func openDefaultBrowser(url string) error {
	return browser.OpenURL(url)
}

// openBrowserAfter waits for delay then opens url once. It gives up if ctx is
// cancelled first. Failures are logged and otherwise ignored.
func (s *Server) openBrowserAfter(ctx context.Context, delay time.Duration, url string) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := s.opener(url); err != nil {
		s.logger.Warn("Failed to open browser", "url", url, "error", err)
	}
}
