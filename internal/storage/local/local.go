// Package local implements the storage backend over a local filesystem
// directory. Besides serving file:// mounts it is the reference backend for
// end-to-end tests, since it supports in-place range writes without any
// external service.
package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/objstream/objstream-go/internal/stream"
)

// Backend stores each object as a file under a root directory.
type Backend struct {
	root   string
	limits stream.Limits
}

// New returns a backend rooted at dir, creating it when absent.
func New(dir string) (*Backend, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Backend{
		root: abs,
		limits: stream.Limits{
			DefaultBufferSize: stream.DefaultBufferSize,
		},
	}, nil
}

// Object returns a handle for key relative to the root.
func (b *Backend) Object(key string) stream.Object {
	return &object{
		key:  key,
		path: filepath.Join(b.root, filepath.FromSlash(key)),
		b:    b,
	}
}

// Limits reports the backend buffer bounds.
func (b *Backend) Limits() stream.Limits { return b.limits }

// Close is a no-op; the backend holds no resources between calls.
func (b *Backend) Close() error { return nil }

// object implements stream.Object and stream.RangeObject on one file.
type object struct {
	key  string
	path string
	b    *Backend
}

func (o *object) Name() string          { return o.key }
func (o *object) Limits() stream.Limits { return o.b.limits }

func (o *object) Head(context.Context) (stream.Header, error) {
	fi, err := os.Stat(o.path)
	if err != nil {
		return stream.Header{}, err
	}
	if fi.IsDir() {
		return stream.Header{}, os.ErrNotExist
	}
	return stream.Header{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (o *object) ReadRange(_ context.Context, start, end int64) ([]byte, error) {
	f, err := os.Open(o.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if start >= size {
		return nil, nil
	}
	if end <= 0 || end > size {
		end = size
	}

	p := make([]byte, end-start)
	n, err := f.ReadAt(p, start)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return p[:n], nil
}

func (o *object) ReadAll(context.Context) ([]byte, error) {
	return os.ReadFile(o.path)
}

func (o *object) Flush(_ context.Context, data []byte) error {
	if err := o.mkdirs(); err != nil {
		return err
	}
	return os.WriteFile(o.path, data, 0o644)
}

func (o *object) Create(ctx context.Context) error {
	return o.Flush(ctx, nil)
}

func (o *object) Delete(context.Context) error {
	return os.Remove(o.path)
}

// FlushRange writes data at [start, end) in place, creating the file when
// absent and never truncating existing content.
func (o *object) FlushRange(_ context.Context, data []byte, start, _ int64) error {
	if err := o.mkdirs(); err != nil {
		return err
	}
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.WriteAt(data, start)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func (o *object) mkdirs() error {
	dir := filepath.Dir(o.path)
	if dir == o.b.root {
		return nil
	}
	err := os.MkdirAll(dir, 0o755)
	if err != nil && !errors.Is(err, os.ErrExist) {
		return err
	}
	return nil
}
