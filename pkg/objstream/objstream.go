// Package objstream is the public API: it opens POSIX-like streams on
// objects behind mounted storage backends and provides whole-file
// convenience operations on top of them.
package objstream

import (
	"context"
	"errors"
	"log/slog"

	"github.com/objstream/objstream-go/internal/cache"
	"github.com/objstream/objstream-go/internal/errs"
	"github.com/objstream/objstream-go/internal/metrics"
	"github.com/objstream/objstream-go/internal/storage"
	"github.com/objstream/objstream-go/internal/stream"
)

// Client opens streams through a mount registry. A Client is safe for
// concurrent use; each opened File is single-owner.
type Client struct {
	reg      *storage.Registry
	heads    *cache.HeadCache
	log      *slog.Logger
	met      *metrics.Metrics
	defaults stream.Options
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger streams report through.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithMetrics sets the metrics registry streams report into.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.met = m }
}

// WithStreamDefaults sets the buffer size, buffer cap and worker count
// applied when an Open call passes no explicit option.
func WithStreamDefaults(bufferSize, maxBuffers, maxWorkers int) ClientOption {
	return func(c *Client) {
		c.defaults.BufferSize = bufferSize
		c.defaults.MaxBuffers = maxBuffers
		c.defaults.MaxWorkers = maxWorkers
	}
}

// WithHeadCache replaces the default header cache.
func WithHeadCache(hc *cache.HeadCache) ClientOption {
	return func(c *Client) { c.heads = hc }
}

// New returns a Client routing paths through reg.
func New(reg *storage.Registry, opts ...ClientOption) *Client {
	c := &Client{
		reg:   reg,
		heads: cache.New(0, 0),
		log:   slog.Default(),
		met:   metrics.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.defaults.Logger = c.log
	c.defaults.Metrics = c.met
	return c
}

// Mounts returns the registered mount prefixes, longest first.
func (c *Client) Mounts() []string {
	return c.reg.Prefixes()
}

// Close closes the header cache and every mounted backend.
func (c *Client) Close() error {
	c.heads.Close()
	return c.reg.Close()
}

// OpenOption tunes one Open call.
type OpenOption func(*stream.Options)

// WithBufferSize sets the chunk size for prefetch reads and part writes.
func WithBufferSize(n int) OpenOption {
	return func(o *stream.Options) { o.BufferSize = n }
}

// WithMaxBuffers bounds in-flight buffers: prefetched chunks when reading,
// unacknowledged flushes when writing.
func WithMaxBuffers(n int) OpenOption {
	return func(o *stream.Options) { o.MaxBuffers = n }
}

// WithMaxWorkers sizes the stream's worker pool.
func WithMaxWorkers(n int) OpenOption {
	return func(o *stream.Options) { o.MaxWorkers = n }
}

// Open opens path with a POSIX-style mode string ("r", "w", "a", "x", with
// an ignored "b" suffix). The stream variant follows the backend's
// capabilities: backends with in-place range writes get range-flushing
// streams, backends with multi-part uploads get part-flushing streams, and
// everything else buffers the whole object. ctx is bound to the File and
// applies to all of its operations.
func (c *Client) Open(ctx context.Context, path, mode string, opts ...OpenOption) (*File, error) {
	m, err := stream.ParseMode(mode)
	if err != nil {
		return nil, errs.PathError("open", path, err)
	}

	backend, key, err := c.reg.Resolve(path)
	if err != nil {
		return nil, errs.PathError("open", path, err)
	}
	obj := backend.Object(key)

	options := c.defaults
	for _, opt := range opts {
		opt(&options)
	}

	s, err := c.openStream(ctx, obj, m, options)
	if err != nil {
		return nil, err
	}
	return &File{ctx: ctx, s: s, c: c, path: path}, nil
}

func (c *Client) openStream(ctx context.Context, obj stream.Object, m stream.Mode, options stream.Options) (streamer, error) {
	ro, isRange := obj.(stream.RangeObject)
	_, isPart := obj.(stream.PartObject)

	switch m {
	case stream.ModeAppend:
		if isRange {
			return stream.NewRandomWriteRaw(ctx, ro, m, options)
		}
		return stream.NewRaw(ctx, obj, m, options)

	case stream.ModeWrite, stream.ModeExclusive:
		if isRange {
			return stream.NewRandomWriteBuffered(ctx, ro, m, options)
		}
		if isPart {
			return stream.NewBuffered(ctx, obj, m, options)
		}
		return stream.NewRaw(ctx, obj, m, options)

	default:
		return stream.NewBuffered(ctx, obj, m, options)
	}
}

// Stat returns the object header for path, serving repeated calls from the
// header cache until it expires or a write through this client drops it.
func (c *Client) Stat(ctx context.Context, path string) (stream.Header, error) {
	if h, ok := c.heads.Get(path); ok {
		return h, nil
	}
	backend, key, err := c.reg.Resolve(path)
	if err != nil {
		return stream.Header{}, errs.PathError("stat", path, err)
	}
	h, err := backend.Object(key).Head(ctx)
	if err != nil {
		return stream.Header{}, errs.PathError("stat", path, err)
	}
	c.heads.Put(path, h)
	return h, nil
}

// Exists reports whether path names an existing object.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.Stat(ctx, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errs.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes the object at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	backend, key, err := c.reg.Resolve(path)
	if err != nil {
		return errs.PathError("delete", path, err)
	}
	if err := backend.Object(key).Delete(ctx); err != nil {
		return errs.PathError("delete", path, err)
	}
	c.heads.Invalidate(path)
	return nil
}
