package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/objstream/objstream-go/internal/errs"
)

// memObject is an in-memory Object and PartObject used by the stream tests.
// Knobs let tests inject latency and failures per call.
type memObject struct {
	mu     sync.Mutex
	name   string
	limits Limits

	exists bool
	data   []byte

	// multipart state
	mpuActive bool
	parts     map[int][]byte
	aborted   bool
	completed []int // part numbers in the order finalize received them

	// failure/latency knobs
	headErr      error
	rangeErrAt   int64 // ReadRange start offset that fails, -1 disables
	partDelay    func(num int) time.Duration
	completeErr  error
	readAllCalls int
	flushCalls   int
	createCalls  int
	rangeCalls   int

	// concurrency tracking for backpressure tests
	inflight    int
	maxInflight int
}

func newMemObject(name string) *memObject {
	return &memObject{
		name:       name,
		rangeErrAt: -1,
		limits:     Limits{DefaultBufferSize: 16},
	}
}

func newMemObjectWith(name string, data []byte) *memObject {
	o := newMemObject(name)
	o.exists = true
	o.data = append([]byte(nil), data...)
	return o
}

func (o *memObject) Name() string   { return o.name }
func (o *memObject) Limits() Limits { return o.limits }

func (o *memObject) Head(context.Context) (Header, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.headErr != nil {
		return Header{}, o.headErr
	}
	if !o.exists {
		return Header{}, fmt.Errorf("head %s: %w", o.name, errs.ErrNotFound)
	}
	return Header{Size: int64(len(o.data)), ModTime: time.Now()}, nil
}

func (o *memObject) ReadRange(_ context.Context, start, end int64) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rangeCalls++
	if o.rangeErrAt >= 0 && start == o.rangeErrAt {
		return nil, fmt.Errorf("range [%d,%d): %w", start, end, errs.ErrPermission)
	}
	if !o.exists {
		return nil, fmt.Errorf("read %s: %w", o.name, errs.ErrNotFound)
	}
	size := int64(len(o.data))
	if start >= size {
		return nil, nil
	}
	if end <= 0 || end > size {
		end = size
	}
	return append([]byte(nil), o.data[start:end]...), nil
}

func (o *memObject) ReadAll(context.Context) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.readAllCalls++
	if !o.exists {
		return nil, fmt.Errorf("read %s: %w", o.name, errs.ErrNotFound)
	}
	return append([]byte(nil), o.data...), nil
}

func (o *memObject) Flush(_ context.Context, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushCalls++
	o.exists = true
	o.data = append([]byte(nil), data...)
	return nil
}

func (o *memObject) Create(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.createCalls++
	o.exists = true
	o.data = nil
	return nil
}

func (o *memObject) Delete(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exists = false
	o.data = nil
	return nil
}

func (o *memObject) InitParts(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mpuActive = true
	o.parts = make(map[int][]byte)
	return nil
}

func (o *memObject) FlushPart(_ context.Context, num int, data []byte) (Part, error) {
	o.mu.Lock()
	o.inflight++
	if o.inflight > o.maxInflight {
		o.maxInflight = o.inflight
	}
	delay := time.Duration(0)
	if o.partDelay != nil {
		delay = o.partDelay(num)
	}
	o.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight--
	if !o.mpuActive {
		return Part{}, fmt.Errorf("part %d: no upload in progress", num)
	}
	o.parts[num] = append([]byte(nil), data...)
	return Part{Num: num, ETag: fmt.Sprintf("etag-%d", num), Size: int64(len(data))}, nil
}

// CompleteParts assembles the object in the order the caller provided,
// so tests observe whether the stream sorted by part index.
func (o *memObject) CompleteParts(_ context.Context, parts []Part) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.completeErr != nil {
		o.aborted = true
		return o.completeErr
	}
	var assembled []byte
	for _, p := range parts {
		o.completed = append(o.completed, p.Num)
		assembled = append(assembled, o.parts[p.Num]...)
	}
	o.data = assembled
	o.exists = true
	o.mpuActive = false
	return nil
}

func (o *memObject) AbortParts(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.aborted = true
	o.mpuActive = false
	return nil
}

func (o *memObject) bytes() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]byte(nil), o.data...)
}

// memRangeObject adds in-place range writes over the same store. It rejects
// ranges that would leave a gap, which lets tests assert the no-gaps
// invariant of random-write streams.
type memRangeObject struct {
	memObject
	ranges [][2]int64 // landed flush ranges, in arrival order

	// rangeDelay stalls the flush of the range starting at the given
	// offset, for adversarial scheduling in ordering tests.
	rangeDelay func(start int64) time.Duration
}

func newMemRangeObject(name string) *memRangeObject {
	o := &memRangeObject{}
	o.name = name
	o.rangeErrAt = -1
	o.limits = Limits{DefaultBufferSize: 16}
	return o
}

func newMemRangeObjectWith(name string, data []byte) *memRangeObject {
	o := newMemRangeObject(name)
	o.exists = true
	o.data = append([]byte(nil), data...)
	return o
}

func (o *memRangeObject) FlushRange(_ context.Context, data []byte, start, end int64) error {
	if o.rangeDelay != nil {
		if d := o.rangeDelay(start); d > 0 {
			time.Sleep(d)
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.exists && start > 0 {
		return fmt.Errorf("range flush at %d on absent object: %w", start, errs.ErrNotFound)
	}
	if start > int64(len(o.data)) {
		return fmt.Errorf("range flush [%d,%d) leaves a gap past size %d", start, end, len(o.data))
	}
	o.exists = true
	o.ranges = append(o.ranges, [2]int64{start, end})
	if end > int64(len(o.data)) {
		o.data = append(o.data, make([]byte, end-int64(len(o.data)))...)
	}
	copy(o.data[start:end], data)
	return nil
}
