package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Kush-Singh-26/devserver/internal/watch"
)

// Reloader tells connected browsers to reload over Server-Sent Events
// whenever something under dir changes.
type Reloader struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger

	watcher   *watch.Watcher
	done      chan struct{}
	closeOnce sync.Once

	clientMu sync.Mutex
	clients  map[chan struct{}]struct{}
}

func NewReloader(dir string, debounce time.Duration, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		dir:      dir,
		debounce: debounce,
		logger:   logger,
		done:     make(chan struct{}),
		clients:  make(map[chan struct{}]struct{}),
	}
}

// Start begins watching dir.
func (rl *Reloader) Start() error {
	w, err := watch.New(rl.dir, rl.debounce, func(ev watch.Event) {
		rl.logger.Debug("Reloading clients", "path", ev.Name, "op", ev.Op.String())
		rl.broadcast()
	}, rl.logger)
	if err != nil {
		return err
	}
	rl.watcher = w
	w.Start()
	return nil
}

// Close stops the watcher and ends every open event stream.
func (rl *Reloader) Close() error {
	var err error
	rl.closeOnce.Do(func() {
		close(rl.done)
		if rl.watcher != nil {
			err = rl.watcher.Close()
		}
	})
	return err
}

func (rl *Reloader) broadcast() {
	rl.clientMu.Lock()
	defer rl.clientMu.Unlock()
	for clientChan := range rl.clients {
		select {
		case clientChan <- struct{}{}:
		default:
			// A reload is already pending for this client.
		}
	}
}

// ServeHTTP streams reload events to one client until it disconnects.
func (rl *Reloader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan struct{}, 1)
	rl.clientMu.Lock()
	rl.clients[clientChan] = struct{}{}
	rl.clientMu.Unlock()

	defer func() {
		rl.clientMu.Lock()
		delete(rl.clients, clientChan)
		rl.clientMu.Unlock()
	}()

	_, _ = fmt.Fprintf(w, "data: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-rl.done:
			return
		case <-clientChan:
			_, _ = fmt.Fprintf(w, "data: reload\n\n")
			flusher.Flush()
		}
	}
}
