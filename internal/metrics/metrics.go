// Package metrics exposes Prometheus collectors for the stream engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles a self-contained Prometheus registry with the collectors
// incremented by the stream engine. Streams share one instance; Default
// returns a process-wide one for callers that do not inject their own.
type Metrics struct {
	reg *prometheus.Registry

	BytesRead        prometheus.Counter
	BytesWritten     prometheus.Counter
	ChunksPrefetched prometheus.Counter
	ChunksDiscarded  prometheus.Counter
	PartsUploaded    prometheus.Counter
	FlushesInflight  prometheus.Gauge
}

// New creates a Metrics instance with a fresh registry and registers all
// collectors on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "objstream",
			Subsystem: "stream",
			Name:      "read_bytes_total",
			Help:      "Total bytes returned to readers.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "objstream",
			Subsystem: "stream",
			Name:      "written_bytes_total",
			Help:      "Total bytes accepted from writers.",
		}),
		ChunksPrefetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "objstream",
			Subsystem: "stream",
			Name:      "prefetched_chunks_total",
			Help:      "Total read-ahead chunks submitted to worker pools.",
		}),
		ChunksDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "objstream",
			Subsystem: "stream",
			Name:      "discarded_chunks_total",
			Help:      "Total prefetched chunks dropped by reseeks before use.",
		}),
		PartsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "objstream",
			Subsystem: "stream",
			Name:      "uploaded_parts_total",
			Help:      "Total multi-part or range flushes submitted.",
		}),
		FlushesInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "objstream",
			Subsystem: "stream",
			Name:      "inflight_flushes",
			Help:      "Flush operations currently awaiting backend acknowledgment.",
		}),
	}

	reg.MustRegister(
		m.BytesRead,
		m.BytesWritten,
		m.ChunksPrefetched,
		m.ChunksDiscarded,
		m.PartsUploaded,
		m.FlushesInflight,
	)
	return m
}

// Handler returns an http.Handler serving the internal registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

var (
	defaultOnce sync.Once
	defaultInst *Metrics
)

// Default returns the shared process-wide Metrics instance.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultInst = New()
	})
	return defaultInst
}
