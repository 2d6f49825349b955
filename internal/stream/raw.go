package stream

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/objstream/objstream-go/internal/errs"
	"github.com/objstream/objstream-go/internal/metrics"
)

// Raw is the single-shot unbuffered stream. In write mode it buffers the
// entire object in memory and transmits it in one flush; in read mode it
// serves every read with a byte-range backend call.
//
// A Raw stream is single-owner: it is not safe for concurrent callers.
type Raw struct {
	obj  Object
	name string
	mode Mode
	log  *slog.Logger
	met  *metrics.Metrics

	readable bool
	writable bool
	seekable bool

	// mu is the seek lock. The write buffer is only mutated under it.
	mu     sync.Mutex
	seek   int64
	wbuf   []byte
	closed bool

	// ofBuffered marks a raw stream owned by a wrapping buffered stream,
	// whose close drives the raw lifecycle instead.
	ofBuffered bool

	// suffix marks the random-write variant, whose buffer holds only the
	// unflushed tail [seek-len(wbuf), seek) instead of the whole object.
	suffix bool

	// flushFn transmits the buffer. Whole-object by default, overridden by
	// the random-write variant with a range flush.
	flushFn func(context.Context) error

	headMu sync.Mutex
	headOK bool
	header Header
}

// NewRaw opens a raw stream on obj.
//
// Mode "a" reads the whole existing object into the write buffer (a stated
// design constraint of the whole-object flush model); mode "x" fails with
// ErrExists when the object is already present; mode "w" creates an empty
// object immediately so concurrent existence checks observe it. Read mode
// fetches and caches the object header.
func NewRaw(ctx context.Context, obj Object, mode Mode, opts Options) (*Raw, error) {
	r := newRaw(obj, mode, opts)
	r.flushFn = r.flushWhole
	if err := r.init(ctx, true); err != nil {
		return nil, err
	}
	return r, nil
}

func newRaw(obj Object, mode Mode, opts Options) *Raw {
	r := &Raw{
		obj:      obj,
		name:     obj.Name(),
		mode:     mode,
		log:      opts.logger(),
		met:      opts.metrics(),
		seekable: true,
	}
	if mode.Writable() {
		r.writable = true
	} else {
		r.readable = true
	}
	return r
}

// init performs the open-time backend handshake. materialize selects
// whether append mode loads the existing content into the write buffer.
func (r *Raw) init(ctx context.Context, materialize bool) error {
	if !r.writable {
		if _, err := r.head(ctx); err != nil {
			return errs.PathError("open", r.name, err)
		}
		return nil
	}

	switch r.mode {
	case ModeAppend:
		h, err := r.head(ctx)
		switch {
		case err == nil:
			if materialize {
				data, err := r.obj.ReadAll(ctx)
				if err != nil {
					return errs.PathError("open", r.name, err)
				}
				r.wbuf = data
				r.seek = int64(len(data))
			} else {
				r.seek = h.Size
			}
		case errors.Is(err, errs.ErrNotFound):
			if err := r.obj.Create(ctx); err != nil {
				return errs.PathError("open", r.name, err)
			}
		default:
			return errs.PathError("open", r.name, err)
		}
	case ModeExclusive:
		_, err := r.head(ctx)
		switch {
		case err == nil:
			return errs.PathError("open", r.name, errs.ErrExists)
		case errors.Is(err, errs.ErrNotFound):
			if err := r.obj.Create(ctx); err != nil {
				return errs.PathError("open", r.name, err)
			}
		default:
			return errs.PathError("open", r.name, err)
		}
	default:
		if err := r.obj.Create(ctx); err != nil {
			return errs.PathError("open", r.name, err)
		}
	}
	return nil
}

// Name returns the path the stream was opened on.
func (r *Raw) Name() string { return r.name }

// Mode returns the open mode.
func (r *Raw) Mode() Mode { return r.mode }

// Readable reports whether the stream can be read from.
func (r *Raw) Readable() bool { return r.readable }

// Writable reports whether the stream accepts writes.
func (r *Raw) Writable() bool { return r.writable }

// Seekable reports whether the stream supports random access.
func (r *Raw) Seekable() bool { return r.seekable }

// head returns the object header, fetching it at most once.
func (r *Raw) head(ctx context.Context) (Header, error) {
	r.headMu.Lock()
	defer r.headMu.Unlock()
	if r.headOK {
		return r.header, nil
	}
	h, err := r.obj.Head(ctx)
	if err != nil {
		return Header{}, err
	}
	r.header = h
	r.headOK = true
	return h, nil
}

// resetHead drops the cached header so the next query refetches it.
func (r *Raw) resetHead() {
	r.headMu.Lock()
	r.headOK = false
	r.headMu.Unlock()
}

// Size returns the object size from the cached header.
func (r *Raw) Size(ctx context.Context) (int64, error) {
	h, err := r.head(ctx)
	if err != nil {
		return 0, errs.PathError("stat", r.name, err)
	}
	return h.Size, nil
}

// Stat returns the cached object header.
func (r *Raw) Stat(ctx context.Context) (Header, error) {
	h, err := r.head(ctx)
	if err != nil {
		return Header{}, errs.PathError("stat", r.name, err)
	}
	return h, nil
}

// Tell returns the current stream position.
func (r *Raw) Tell() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seek
}

// Read reads up to len(p) bytes at the current position with one backend
// range call. Short reads at EOF are not errors; a read at EOF returns
// io.EOF.
func (r *Raw) Read(ctx context.Context, p []byte) (int, error) {
	if !r.readable {
		return 0, errs.Unsupported("read", r.name)
	}
	if len(p) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	start := r.seek
	r.mu.Unlock()

	data, err := r.obj.ReadRange(ctx, start, start+int64(len(p)))
	if err != nil {
		return 0, errs.PathError("read", r.name, err)
	}
	n := copy(p, data)

	r.mu.Lock()
	r.seek = start + int64(n)
	r.mu.Unlock()

	r.met.BytesRead.Add(float64(n))
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAll reads from the current position to EOF.
func (r *Raw) ReadAll(ctx context.Context) ([]byte, error) {
	if !r.readable {
		return nil, errs.Unsupported("read", r.name)
	}

	r.mu.Lock()
	start := r.seek
	r.mu.Unlock()

	var (
		data []byte
		err  error
	)
	if start > 0 && r.seekable {
		data, err = r.obj.ReadRange(ctx, start, 0)
	} else {
		data, err = r.obj.ReadAll(ctx)
	}
	if err != nil {
		return nil, errs.PathError("read", r.name, err)
	}

	r.mu.Lock()
	r.seek = start + int64(len(data))
	r.mu.Unlock()

	r.met.BytesRead.Add(float64(len(data)))
	return data, nil
}

// Peek returns up to size bytes from the current position without advancing
// it. A size of 0 or less reads to EOF.
func (r *Raw) Peek(ctx context.Context, size int) ([]byte, error) {
	if !r.readable {
		return nil, errs.Unsupported("read", r.name)
	}
	r.mu.Lock()
	start := r.seek
	r.mu.Unlock()

	end := int64(0)
	if size > 0 {
		end = start + int64(size)
	}
	data, err := r.obj.ReadRange(ctx, start, end)
	if err != nil {
		return nil, errs.PathError("read", r.name, err)
	}
	return data, nil
}

// Seek changes the stream position. io.SeekEnd resolves against the write
// buffer length in write mode and the remote size otherwise. In write mode,
// seeking past the buffered length zero-pads the gap for sparse writes.
func (r *Raw) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	if !r.seekable {
		return 0, errs.Unsupported("seek", r.name)
	}
	if r.suffix {
		// Pending range data must land before the position moves.
		if err := r.Flush(ctx); err != nil {
			return 0, err
		}
	}
	return r.updateSeek(ctx, offset, whence)
}

func (r *Raw) updateSeek(ctx context.Context, offset int64, whence int) (int64, error) {
	var pos int64
	r.mu.Lock()
	cur := r.seek
	buffered := int64(len(r.wbuf))
	r.mu.Unlock()

	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = cur + offset
	case io.SeekEnd:
		if r.writable && !r.suffix {
			pos = buffered + offset
		} else {
			h, err := r.head(ctx)
			if err != nil {
				return 0, errs.PathError("seek", r.name, err)
			}
			pos = h.Size + offset
		}
	default:
		return 0, errs.PathError("seek", r.name,
			errs.InvalidArgument("whence value %d unsupported", whence))
	}
	if pos < 0 {
		return 0, errs.PathError("seek", r.name,
			errs.InvalidArgument("negative position %d", pos))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writable && !r.suffix {
		// Sparse write support: fill the gap with zeros.
		for int64(len(r.wbuf)) < pos {
			r.wbuf = append(r.wbuf, make([]byte, pos-int64(len(r.wbuf)))...)
		}
	}
	r.seek = pos
	return pos, nil
}

// Write copies p into the in-memory buffer at the current position, growing
// it with zero-fill as needed. Nothing is transmitted before Flush or
// Close. The random-write variant appends to its pending tail instead.
func (r *Raw) Write(_ context.Context, p []byte) (int, error) {
	if !r.writable {
		return 0, errs.Unsupported("write", r.name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, errs.PathError("write", r.name, fs.ErrClosed)
	}

	if r.suffix {
		r.wbuf = append(r.wbuf, p...)
	} else {
		start := r.seek
		end := start + int64(len(p))
		if grow := end - int64(len(r.wbuf)); grow > 0 {
			r.wbuf = append(r.wbuf, make([]byte, grow)...)
		}
		copy(r.wbuf[start:end], p)
	}
	r.seek += int64(len(p))
	r.met.BytesWritten.Add(float64(len(p)))
	return len(p), nil
}

// Flush transmits the write buffer to the storage.
func (r *Raw) Flush(ctx context.Context) error {
	if !r.writable {
		return nil
	}
	return r.flushFn(ctx)
}

// flushWhole sends the entire buffer as the complete object content.
func (r *Raw) flushWhole(ctx context.Context) error {
	r.mu.Lock()
	buf := r.wbuf
	r.mu.Unlock()

	r.log.Debug("flushing object", "path", r.name, "bytes", len(buf))
	if err := r.obj.Flush(ctx, buf); err != nil {
		return errs.PathError("flush", r.name, err)
	}
	r.resetHead()
	return nil
}

// Close flushes buffered writes and closes the stream. Close is idempotent
// and never re-flushes. A raw stream owned by a buffered stream is closed
// by its owner instead.
func (r *Raw) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed || r.ofBuffered {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	dirty := r.writable && len(r.wbuf) > 0
	r.mu.Unlock()

	if dirty {
		return r.Flush(ctx)
	}
	return nil
}

// setSeek resynchronizes the raw position from a wrapping buffered stream.
func (r *Raw) setSeek(pos int64) {
	r.mu.Lock()
	r.seek = pos
	r.mu.Unlock()
}

// loadBuffer hands a final partial payload to the raw stream for single-shot
// flushing, bypassing multi-part machinery for small objects.
func (r *Raw) loadBuffer(data []byte) {
	r.mu.Lock()
	r.wbuf = data
	r.seek = int64(len(data))
	r.mu.Unlock()
}
