package objstream

import (
	"context"
	"io"
	"sync"

	"github.com/objstream/objstream-go/internal/stream"
)

// streamer is the surface shared by every stream variant.
type streamer interface {
	Read(ctx context.Context, p []byte) (int, error)
	ReadAll(ctx context.Context) ([]byte, error)
	Peek(ctx context.Context, size int) ([]byte, error)
	Write(ctx context.Context, p []byte) (int, error)
	Seek(ctx context.Context, offset int64, whence int) (int64, error)
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
	Tell() int64
	Stat(ctx context.Context) (stream.Header, error)
	Name() string
	Mode() stream.Mode
	Readable() bool
	Writable() bool
}

// File is an open stream bound to the context it was opened with, so it
// satisfies io.Reader, io.Writer, io.Seeker, io.ReaderAt and io.Closer
// directly.
type File struct {
	ctx  context.Context
	s    streamer
	c    *Client
	path string

	// atMu serializes ReadAt's seek-read-restore against itself.
	atMu sync.Mutex
}

// Name returns the full path the file was opened on.
func (f *File) Name() string { return f.path }

// Mode returns the open mode.
func (f *File) Mode() stream.Mode { return f.s.Mode() }

// Readable reports whether the file can be read from.
func (f *File) Readable() bool { return f.s.Readable() }

// Writable reports whether the file accepts writes.
func (f *File) Writable() bool { return f.s.Writable() }

func (f *File) Read(p []byte) (int, error) {
	return f.s.Read(f.ctx, p)
}

// ReadAll reads from the current position to EOF.
func (f *File) ReadAll() ([]byte, error) {
	return f.s.ReadAll(f.ctx)
}

// Peek returns up to size bytes without advancing the position.
func (f *File) Peek(size int) ([]byte, error) {
	return f.s.Peek(f.ctx, size)
}

func (f *File) Write(p []byte) (int, error) {
	return f.s.Write(f.ctx, p)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.s.Seek(f.ctx, offset, whence)
}

// Flush transmits buffered writes without closing the file.
func (f *File) Flush() error {
	if err := f.s.Flush(f.ctx); err != nil {
		return err
	}
	if f.s.Writable() {
		f.c.heads.Invalidate(f.path)
	}
	return nil
}

// ReadAt reads len(p) bytes starting at off and restores the stream
// position afterwards. It returns io.EOF with a short count when the
// object ends before off+len(p).
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.atMu.Lock()
	defer f.atMu.Unlock()

	cur := f.s.Tell()
	if _, err := f.s.Seek(f.ctx, off, io.SeekStart); err != nil {
		return 0, err
	}
	n := 0
	var err error
	for n < len(p) && err == nil {
		var m int
		m, err = f.s.Read(f.ctx, p[n:])
		n += m
	}
	if _, serr := f.s.Seek(f.ctx, cur, io.SeekStart); err == nil {
		err = serr
	}
	return n, err
}

// Tell returns the current stream position.
func (f *File) Tell() int64 { return f.s.Tell() }

// Stat returns the object header.
func (f *File) Stat() (stream.Header, error) {
	return f.s.Stat(f.ctx)
}

// Close flushes buffered writes and releases the stream. It is idempotent.
func (f *File) Close() error {
	err := f.s.Close(f.ctx)
	if f.s.Writable() {
		f.c.heads.Invalidate(f.path)
	}
	return err
}
