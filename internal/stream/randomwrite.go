package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/objstream/objstream-go/internal/errs"
	"github.com/objstream/objstream-go/internal/worker"
)

// NewRandomWriteRaw opens a raw stream on a backend supporting partial
// in-place updates. Flushes carry an explicit [start, end) derived from the
// current position and pending buffer length, so append mode positions at
// the current size without materializing the object, and Seek flushes
// pending data before moving.
func NewRandomWriteRaw(ctx context.Context, obj RangeObject, mode Mode, opts Options) (*Raw, error) {
	r := newRaw(obj, mode, opts)
	r.suffix = true
	r.flushFn = func(ctx context.Context) error {
		return flushRangeRaw(ctx, r, obj)
	}
	if err := r.init(ctx, false); err != nil {
		return nil, err
	}
	return r, nil
}

// flushRangeRaw transmits the pending tail [seek-len(buf), seek) and resets
// the buffer.
func flushRangeRaw(ctx context.Context, r *Raw, obj RangeObject) error {
	r.mu.Lock()
	buf := r.wbuf
	end := r.seek
	start := end - int64(len(buf))
	r.wbuf = nil
	r.mu.Unlock()

	if len(buf) == 0 {
		return nil
	}
	r.log.Debug("range flush", "path", r.name, "start", start, "end", end)
	if err := obj.FlushRange(ctx, buf, start, end); err != nil {
		return errs.PathError("flush", r.name, err)
	}
	r.resetHead()
	return nil
}

// NewRandomWriteBuffered opens a buffered stream whose write path flushes
// arbitrary byte ranges instead of multi-part upload parts.
func NewRandomWriteBuffered(ctx context.Context, obj RangeObject, mode Mode, opts Options) (*Buffered, error) {
	if mode == ModeAppend {
		return nil, errs.Unsupported("open", obj.Name())
	}
	var writer writeStrategy
	if mode.Writable() {
		writer = &rangeWriter{obj: obj}
	}
	raw, err := NewRandomWriteRaw(ctx, obj, mode, opts)
	if err != nil {
		return nil, err
	}
	return newBuffered(ctx, raw, writer, opts)
}

// rangeWriter transmits buffers as range flushes and tracks the remote
// object size as concurrent flushes land out of order.
type rangeWriter struct {
	obj RangeObject

	// sizeMu guards the size fields; flushes run concurrently on the pool.
	sizeMu  sync.Mutex
	synched bool
	size    int64
}

func (w *rangeWriter) flush(ctx context.Context, b *Buffered, num int, data []byte) (*worker.Future[Part], error) {
	// The caller holds the seek lock and has not yet counted data as
	// flushed, so b.flushed is this part's start offset. Deriving it from
	// the part number would go wrong once a mid-stream Flush emits a
	// partial part.
	start := b.flushed
	end := start + int64(len(data))

	b.met.FlushesInflight.Inc()
	return worker.Submit(b.pool, func() (Part, error) {
		defer b.met.FlushesInflight.Dec()
		if err := w.flushRange(ctx, b, data, start, end); err != nil {
			return Part{}, err
		}
		return Part{Num: num, Size: int64(len(data))}, nil
	}), nil
}

// flushRange writes [start, end). The first flush synchronizes the
// authoritative size from the backend (0 when the object does not yet
// exist); a flush whose start exceeds the known size waits for earlier
// ranges to land, preserving the no-gaps invariant; every successful flush
// only ever grows the size.
func (w *rangeWriter) flushRange(ctx context.Context, b *Buffered, data []byte, start, end int64) error {
	w.sizeMu.Lock()
	if !w.synched {
		w.synched = true
		size, err := w.obj.Head(ctx)
		switch {
		case err == nil:
			w.size = size.Size
		case errors.Is(err, errs.ErrNotFound):
			w.size = 0
		default:
			w.sizeMu.Unlock()
			return err
		}
	}
	w.sizeMu.Unlock()

	for start > w.currentSize() {
		time.Sleep(flushWait)
	}

	if err := w.obj.FlushRange(ctx, data, start, end); err != nil {
		return err
	}

	w.sizeMu.Lock()
	if end > w.size {
		w.size = end
	}
	w.sizeMu.Unlock()
	return nil
}

func (w *rangeWriter) currentSize() int64 {
	w.sizeMu.Lock()
	defer w.sizeMu.Unlock()
	return w.size
}

// finalize has nothing to assemble: ranges land directly in the object.
// Waiting on the part futures already happened in the caller.
func (w *rangeWriter) finalize(context.Context, *Buffered, []Part) error {
	return nil
}
