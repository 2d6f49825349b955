package stream

import (
	"log/slog"

	"github.com/objstream/objstream-go/internal/metrics"
)

// Options tunes stream construction. The zero value selects backend
// defaults everywhere.
type Options struct {
	// BufferSize is the chunk size for prefetch reads and multi-part
	// writes. It is clamped to the backend's declared bounds.
	BufferSize int

	// MaxBuffers bounds in-flight buffers: prefetched chunks in read mode,
	// unacknowledged part flushes in write mode. 0 means unbounded in
	// write mode; in read mode it defaults to ceil(size/BufferSize).
	MaxBuffers int

	// MaxWorkers sizes the per-stream worker pool. 0 selects the backend
	// default.
	MaxWorkers int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// bufferSize resolves and clamps the configured buffer size against the
// backend limits.
func (o Options) bufferSize(l Limits) int {
	size := o.BufferSize
	if size <= 0 {
		size = l.DefaultBufferSize
		if size <= 0 {
			size = DefaultBufferSize
		}
	}
	if l.MinBufferSize > 0 && size < l.MinBufferSize {
		size = l.MinBufferSize
	}
	if l.MaxBufferSize > 0 && size > l.MaxBufferSize {
		size = l.MaxBufferSize
	}
	return size
}

func (o Options) workers(l Limits) int {
	if o.MaxWorkers > 0 {
		return o.MaxWorkers
	}
	return l.DefaultWorkers
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) metrics() *metrics.Metrics {
	if o.Metrics != nil {
		return o.Metrics
	}
	return metrics.Default()
}
