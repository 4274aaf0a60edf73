// Package metrics tracks what the dev server has served since startup.
package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// ServeMetrics is safe for concurrent use by request handlers.
type ServeMetrics struct {
	StartTime time.Time

	requests atomic.Int64
	errors   atomic.Int64
	bytes    atomic.Int64
}

// NewServeMetrics creates a new metrics instance.
func NewServeMetrics() *ServeMetrics {
	return &ServeMetrics{
		StartTime: time.Now(),
	}
}

// RecordResponse counts one finished response. Statuses >= 400 count as errors.
func (m *ServeMetrics) RecordResponse(status int, bytes int64) {
	m.requests.Add(1)
	if status >= 400 {
		m.errors.Add(1)
	}
	m.bytes.Add(bytes)
}

func (m *ServeMetrics) Requests() int64 { return m.requests.Load() }
func (m *ServeMetrics) Errors() int64   { return m.errors.Load() }
func (m *ServeMetrics) Bytes() int64    { return m.bytes.Load() }

// Uptime returns the time since the metrics were created.
func (m *ServeMetrics) Uptime() time.Duration {
	return time.Since(m.StartTime)
}

// String returns a single-line summary.
func (m *ServeMetrics) String() string {
	return fmt.Sprintf("📊 Served %d requests (%d errors, %s) in %v",
		m.Requests(),
		m.Errors(),
		formatBytes(m.Bytes()),
		m.Uptime().Round(time.Second),
	)
}

// Print writes the summary to w.
func (m *ServeMetrics) Print(w io.Writer) {
	_, _ = fmt.Fprintln(w, m.String())
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
