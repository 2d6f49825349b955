package stream

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/objstream/objstream-go/internal/errs"
	"github.com/objstream/objstream-go/internal/metrics"
	"github.com/objstream/objstream-go/internal/worker"
)

// flushWait is the fixed poll interval used while waiting on the in-flight
// flush cap and on remote size catch-up. Polling instead of a condition
// variable is a deliberate tradeoff.
const flushWait = 10 * time.Millisecond

// writeStrategy is how a buffered stream transmits full buffers. The closed
// set of implementations (multipartWriter, rangeWriter) is selected by the
// constructors, never by runtime introspection of the stream.
type writeStrategy interface {
	// flush submits data as part num asynchronously and returns its future.
	// data is owned by the flush from this point on.
	flush(ctx context.Context, b *Buffered, num int, data []byte) (*worker.Future[Part], error)

	// finalize assembles the object once every part future has resolved.
	// parts are sorted by part number, not arrival order.
	finalize(ctx context.Context, b *Buffered, parts []Part) error
}

// chunk is one prefetched byte range of the read queue, keyed by its start
// offset. It is owned by its future until resolved, then by the queue until
// fully consumed.
type chunk struct {
	fut      *worker.Future[[]byte]
	data     []byte
	resolved bool
}

// resolve blocks until the prefetch completes. Errors are surfaced lazily,
// when the chunk is actually consumed, and are not cached so every consumer
// observes them.
func (c *chunk) resolve() ([]byte, error) {
	if !c.resolved {
		data, err := c.fut.Result()
		if err != nil {
			return nil, err
		}
		c.data = data
		c.resolved = true
		c.fut = nil
	}
	return c.data, nil
}

// Buffered wraps a Raw stream with chunked read-ahead prefetch in read mode
// and asynchronous multi-part write buffering in write mode.
//
// Like Raw, a Buffered stream is single-owner; only its worker pool tasks
// run concurrently with the owner.
type Buffered struct {
	raw  *Raw
	name string
	log  *slog.Logger
	met  *metrics.Metrics

	// pool runs every asynchronous backend call for this stream.
	pool *worker.Pool

	bufferSize int
	maxBuffers int

	// mu is the seek lock; queue, write buffer and positions are only
	// mutated under it.
	mu     sync.Mutex
	closed bool

	// Read state. anchor is the window origin set by the last preload;
	// chunk offsets are anchor + k*bufferSize.
	seek      int64
	size      int64
	anchor    int64
	preloaded bool
	queue     map[int64]*chunk

	// Write state. partCount counts parts handed to the writer; part
	// indices are 1-based and sequential. flushed counts the bytes those
	// parts carried, which differs from partCount*bufferSize once a
	// mid-stream Flush emits a partial part.
	wbuf       []byte
	bufferSeek int
	partCount  int
	flushed    int64
	futures    []*worker.Future[Part]
	writer     writeStrategy
}

// NewBuffered opens a buffered stream on obj. Write mode requires a backend
// with multi-part support; append mode requires the raw or random-write
// stream since the final object cannot be assembled from parts behind an
// existing tail.
func NewBuffered(ctx context.Context, obj Object, mode Mode, opts Options) (*Buffered, error) {
	if mode == ModeAppend {
		return nil, errs.Unsupported("open", obj.Name())
	}
	var writer writeStrategy
	if mode.Writable() {
		po, ok := obj.(PartObject)
		if !ok {
			return nil, errs.Unsupported("open", obj.Name())
		}
		writer = &multipartWriter{obj: po}
	}
	raw, err := NewRaw(ctx, obj, mode, opts)
	if err != nil {
		return nil, err
	}
	return newBuffered(ctx, raw, writer, opts)
}

func newBuffered(ctx context.Context, raw *Raw, writer writeStrategy, opts Options) (*Buffered, error) {
	raw.ofBuffered = true
	limits := raw.obj.Limits()

	b := &Buffered{
		raw:        raw,
		name:       raw.name,
		log:        opts.logger(),
		met:        opts.metrics(),
		pool:       worker.New(opts.workers(limits)),
		bufferSize: opts.bufferSize(limits),
		maxBuffers: opts.MaxBuffers,
	}

	if raw.writable {
		b.wbuf = make([]byte, b.bufferSize)
		b.writer = writer
		return b, nil
	}

	size, err := raw.Size(ctx)
	if err != nil {
		return nil, err
	}
	b.size = size
	if b.maxBuffers <= 0 {
		b.maxBuffers = int((size + int64(b.bufferSize) - 1) / int64(b.bufferSize))
	}
	b.queue = make(map[int64]*chunk)
	return b, nil
}

// Name returns the path the stream was opened on.
func (b *Buffered) Name() string { return b.name }

// Mode returns the open mode.
func (b *Buffered) Mode() Mode { return b.raw.mode }

// Raw returns the underlying raw stream.
func (b *Buffered) Raw() *Raw { return b.raw }

// Readable reports whether the stream can be read from.
func (b *Buffered) Readable() bool { return b.raw.readable }

// Writable reports whether the stream accepts writes.
func (b *Buffered) Writable() bool { return b.raw.writable }

// Stat returns the object header cached by the raw stream.
func (b *Buffered) Stat(ctx context.Context) (Header, error) { return b.raw.Stat(ctx) }

// Tell returns the current position: the read offset in read mode, the
// total bytes buffered so far in write mode.
func (b *Buffered) Tell() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.raw.writable {
		return b.flushed + int64(b.bufferSeek)
	}
	return b.seek
}

// preloadRange rebuilds the prefetch window over
// [seek, seek+bufferSize*maxBuffers), truncated at EOF. New offsets are
// submitted to the pool; offsets outside the window are dropped without
// cancellation, so an in-flight call completes but its result is discarded.
// Callers hold the seek lock.
func (b *Buffered) preloadRange(ctx context.Context) {
	size := int64(b.bufferSize)
	start := b.seek
	end := start + size*int64(b.maxBuffers)
	b.anchor = start

	for off := range b.queue {
		if off < start || off >= end || (off-start)%size != 0 {
			delete(b.queue, off)
			b.met.ChunksDiscarded.Inc()
			b.log.Warn("discarding stale prefetch", "path", b.name, "offset", off)
		}
	}
	for off := start; off < end && off < b.size; off += size {
		if _, ok := b.queue[off]; !ok {
			b.queue[off] = b.submitRange(ctx, off, off+size)
		}
	}
}

func (b *Buffered) submitRange(ctx context.Context, start, end int64) *chunk {
	b.met.ChunksPrefetched.Inc()
	b.log.Debug("prefetch scheduled", "path", b.name, "start", start, "end", end)
	obj := b.raw.obj
	return &chunk{fut: worker.Submit(b.pool, func() ([]byte, error) {
		return obj.ReadRange(ctx, start, end)
	})}
}

// Read reads into p from the prefetch queue, blocking only on chunks whose
// futures are still pending. Bytes are returned contiguous and in request
// order regardless of chunk completion order.
func (b *Buffered) Read(ctx context.Context, p []byte) (int, error) {
	if !b.raw.readable {
		return 0, errs.Unsupported("read", b.name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errs.PathError("read", b.name, fs.ErrClosed)
	}
	return b.readLocked(ctx, p)
}

// readLocked walks chunks from the current seek, copying overlaps into p.
// Fully consumed chunks are removed and replaced by the chunk maxBuffers
// positions ahead to keep the window full. Callers hold the seek lock.
func (b *Buffered) readLocked(ctx context.Context, p []byte) (int, error) {
	if b.seek >= b.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	if !b.preloaded {
		b.preloadRange(ctx)
		b.preloaded = true
	}

	size := int64(b.bufferSize)
	sizeLeft := len(p)
	bEnd := 0

	for sizeLeft > 0 {
		start := (b.seek - b.anchor) % size
		qIndex := b.seek - start
		c, ok := b.queue[qIndex]
		if !ok {
			break
		}
		data, err := c.resolve()
		if err != nil {
			return bEnd, errs.PathError("read", b.name, err)
		}
		if len(data) == 0 || start >= int64(len(data)) {
			break
		}

		end := int(start) + sizeLeft
		if end >= len(data) {
			end = len(data)
			delete(b.queue, qIndex)
			next := qIndex + size*int64(b.maxBuffers)
			if next < b.size {
				b.queue[next] = b.submitRange(ctx, next, next+size)
			}
		}

		n := end - int(start)
		copy(p[bEnd:bEnd+n], data[start:end])
		sizeLeft -= n
		b.seek += int64(n)
		bEnd += n

		// A short chunk means EOF; nothing follows it.
		if len(data) < b.bufferSize && int(start)+n == len(data) {
			break
		}
	}

	b.raw.setSeek(b.seek)
	b.met.BytesRead.Add(float64(bEnd))
	if bEnd == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return bEnd, nil
}

// ReadChunk returns the next whole prefetched chunk without an extra copy
// when the position is chunk-aligned, falling back to a copying read
// otherwise. At EOF it returns io.EOF.
func (b *Buffered) ReadChunk(ctx context.Context) ([]byte, error) {
	if !b.raw.readable {
		return nil, errs.Unsupported("read", b.name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errs.PathError("read", b.name, fs.ErrClosed)
	}
	if b.seek >= b.size {
		return nil, io.EOF
	}
	if !b.preloaded {
		b.preloadRange(ctx)
		b.preloaded = true
	}

	size := int64(b.bufferSize)
	if (b.seek-b.anchor)%size != 0 {
		p := make([]byte, b.bufferSize)
		n, err := b.readLocked(ctx, p)
		return p[:n], err
	}

	c, ok := b.queue[b.seek]
	if !ok {
		return nil, io.EOF
	}
	data, err := c.resolve()
	if err != nil {
		return nil, errs.PathError("read", b.name, err)
	}
	delete(b.queue, b.seek)
	next := b.seek + size*int64(b.maxBuffers)
	if next < b.size {
		b.queue[next] = b.submitRange(ctx, next, next+size)
	}
	b.seek += int64(len(data))
	b.raw.setSeek(b.seek)
	b.met.BytesRead.Add(float64(len(data)))
	return data, nil
}

// ReadAll reads from the current position to EOF.
func (b *Buffered) ReadAll(ctx context.Context) ([]byte, error) {
	if !b.raw.readable {
		return nil, errs.Unsupported("read", b.name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errs.PathError("read", b.name, fs.ErrClosed)
	}

	remaining := b.size - b.seek
	if remaining <= 0 {
		return nil, nil
	}
	p := make([]byte, remaining)
	n, err := b.readLocked(ctx, p)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return p[:n], nil
}

// Peek returns bytes from the current position without advancing it,
// resynchronizing the raw stream and reading the range directly.
func (b *Buffered) Peek(ctx context.Context, size int) ([]byte, error) {
	if !b.raw.readable {
		return nil, errs.Unsupported("read", b.name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.raw.setSeek(b.seek)
	return b.raw.Peek(ctx, size)
}

// Seek changes the read position and rebuilds the prefetch window. Seeking
// a write-mode buffered stream is unsupported.
func (b *Buffered) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	if b.raw.writable {
		return 0, errs.Unsupported("seek", b.name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, err := b.raw.Seek(ctx, offset, whence)
	if err != nil {
		return 0, err
	}
	b.seek = pos
	b.preloadRange(ctx)
	b.preloaded = true
	return pos, nil
}

// pending counts unresolved flush futures. Callers hold the seek lock.
func (b *Buffered) pending() int {
	n := 0
	for _, f := range b.futures {
		if !f.Done() {
			n++
		}
	}
	return n
}

// Write copies p into the write buffer, handing every filled buffer to the
// write strategy as the next sequential part. When maxBuffers is set, the
// call blocks in a fixed-interval poll until fewer than maxBuffers flushes
// remain unresolved (explicit backpressure).
func (b *Buffered) Write(ctx context.Context, p []byte) (int, error) {
	if !b.raw.writable {
		return 0, errs.Unsupported("write", b.name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errs.PathError("write", b.name, fs.ErrClosed)
	}

	size := len(p)
	sizeLeft := size
	end := b.bufferSeek

	for sizeLeft > 0 {
		start := end
		end = start + sizeLeft
		flush := false
		if end > b.bufferSize {
			end = b.bufferSize
			flush = true
		}
		n := end - start
		bStart := size - sizeLeft
		copy(b.wbuf[start:end], p[bStart:bStart+n])
		sizeLeft -= n

		if flush {
			b.bufferSeek = end
			b.partCount++
			if b.maxBuffers > 0 {
				for b.pending() >= b.maxBuffers {
					time.Sleep(flushWait)
				}
			}
			if err := b.flushPart(ctx); err != nil {
				return size - sizeLeft, err
			}
			b.wbuf = make([]byte, b.bufferSize)
			end = 0
		}
	}

	b.bufferSeek = end
	b.met.BytesWritten.Add(float64(size))
	return size, nil
}

// flushPart hands the filled buffer to the write strategy. The buffer
// becomes read-only for the duration of the flush; Write reallocates it.
// Callers hold the seek lock.
func (b *Buffered) flushPart(ctx context.Context) error {
	data := b.wbuf[:b.bufferSeek]
	b.log.Debug("part flush scheduled",
		"path", b.name, "part", b.partCount, "bytes", len(data))
	fut, err := b.writer.flush(ctx, b, b.partCount, data)
	if err != nil {
		return errs.PathError("write", b.name, err)
	}
	b.flushed += int64(len(data))
	b.futures = append(b.futures, fut)
	b.met.PartsUploaded.Inc()
	return nil
}

// flushRawOrBuffered flushes the current buffer content: as another part
// when the stream already produced full parts, otherwise through the raw
// stream's single-shot flush so small objects skip multi-part machinery.
// Callers hold the seek lock.
func (b *Buffered) flushRawOrBuffered(ctx context.Context) error {
	switch {
	case b.bufferSeek > 0 && b.partCount > 0:
		b.partCount++
		return b.flushPart(ctx)
	case b.bufferSeek > 0:
		b.raw.loadBuffer(b.wbuf[:b.bufferSeek])
		if err := b.raw.Flush(ctx); err != nil {
			return err
		}
		b.flushed += int64(b.bufferSeek)
	}
	return nil
}

// Flush transmits the buffered content and resets the write buffer.
func (b *Buffered) Flush(ctx context.Context) error {
	if !b.raw.writable {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.flushRawOrBuffered(ctx); err != nil {
		return err
	}
	b.wbuf = make([]byte, b.bufferSize)
	b.bufferSeek = 0
	return nil
}

// Close flushes buffered writes, waits for every in-flight part and
// finalizes the object. It is idempotent and never re-flushes. Closing
// never cancels in-flight work; it waits for it.
func (b *Buffered) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.raw.mu.Lock()
	b.raw.closed = true
	b.raw.mu.Unlock()

	if !b.raw.writable {
		b.queue = nil
		b.mu.Unlock()
		return nil
	}

	err := b.flushRawOrBuffered(ctx)
	finalize := b.partCount > 0 && err == nil
	b.mu.Unlock()
	if err != nil {
		return err
	}
	if finalize {
		return b.closeWritable(ctx)
	}
	return nil
}

// closeWritable waits on every part future and assembles the results by
// part index, not arrival order.
func (b *Buffered) closeWritable(ctx context.Context) error {
	parts := make([]Part, 0, len(b.futures))
	for _, f := range b.futures {
		p, err := f.Result()
		if err != nil {
			return errs.PathError("close", b.name, err)
		}
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Num < parts[j].Num })

	if err := b.writer.finalize(ctx, b, parts); err != nil {
		return errs.PathError("close", b.name, err)
	}
	return nil
}

// multipartWriter transmits buffers as multi-part upload parts and
// finalizes by completing the upload.
type multipartWriter struct {
	obj    PartObject
	inited bool
}

func (w *multipartWriter) flush(ctx context.Context, b *Buffered, num int, data []byte) (*worker.Future[Part], error) {
	if !w.inited {
		if err := w.obj.InitParts(ctx); err != nil {
			return nil, err
		}
		w.inited = true
	}
	b.met.FlushesInflight.Inc()
	return worker.Submit(b.pool, func() (Part, error) {
		defer b.met.FlushesInflight.Dec()
		return w.obj.FlushPart(ctx, num, data)
	}), nil
}

func (w *multipartWriter) finalize(ctx context.Context, b *Buffered, parts []Part) error {
	// Backend implementations attempt an abort before returning a
	// finalize failure; no further cleanup happens here.
	return w.obj.CompleteParts(ctx, parts)
}
