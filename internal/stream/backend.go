// Package stream implements POSIX-like streaming I/O over object storage
// backends: the raw unbuffered stream, the buffered stream with read-ahead
// prefetch and multi-part write buffering, and the random-range-write
// variants used by backends that support partial in-place updates.
package stream

import (
	"context"
	"time"
)

// Header carries the metadata returned by a backend head call.
type Header struct {
	Size     int64
	ModTime  time.Time
	ETag     string
	Metadata map[string]string
}

// Limits declares the buffer bounds and defaults of a backend.
type Limits struct {
	// DefaultBufferSize is used when the caller does not set a buffer size.
	DefaultBufferSize int

	// MinBufferSize and MaxBufferSize clamp caller-provided buffer sizes.
	// A MaxBufferSize of 0 means no upper bound.
	MinBufferSize int
	MaxBufferSize int

	// DefaultWorkers sizes the per-stream worker pool when the caller does
	// not set max workers. 0 lets the pool pick a CPU-based default.
	DefaultWorkers int
}

// DefaultBufferSize applies when a backend declares no default (8 MiB).
const DefaultBufferSize = 8 << 20

// Object is the per-object backend handle consumed by streams. All calls
// normalize failures to the errs taxonomy; implementations perform no
// retries.
type Object interface {
	// Name returns the path or URL the handle was resolved from.
	Name() string

	// Limits returns the backend's buffer bounds and defaults.
	Limits() Limits

	// Head fetches object metadata. It is idempotent and returns
	// errs.ErrNotFound or errs.ErrPermission on failure.
	Head(ctx context.Context) (Header, error)

	// ReadRange reads [start, end). An end of 0 reads to EOF. Reading at
	// or past EOF returns an empty slice and no error.
	ReadRange(ctx context.Context, start, end int64) ([]byte, error)

	// ReadAll reads the whole object.
	ReadAll(ctx context.Context) ([]byte, error)

	// Flush writes data as the complete object content.
	Flush(ctx context.Context, data []byte) error

	// Create writes an empty object so concurrent existence checks
	// observe it.
	Create(ctx context.Context) error

	// Delete removes the object.
	Delete(ctx context.Context) error
}

// Part identifies one unit of a multi-part upload. Num is 1-based and
// sequential; ETag is the backend acknowledgment used at finalization.
type Part struct {
	Num  int
	ETag string
	Size int64
}

// PartObject is implemented by backends that assemble objects from
// independently uploaded parts (S3 multipart uploads).
type PartObject interface {
	Object

	// InitParts starts a multi-part upload for the object.
	InitParts(ctx context.Context) error

	// FlushPart uploads one part. Parts may land out of order; num orders
	// them at finalization.
	FlushPart(ctx context.Context, num int, data []byte) (Part, error)

	// CompleteParts finalizes the object from parts, which the caller has
	// sorted by part number. On failure implementations attempt a
	// best-effort abort before returning the error.
	CompleteParts(ctx context.Context, parts []Part) error

	// AbortParts abandons the multi-part upload.
	AbortParts(ctx context.Context) error
}

// RangeObject is implemented by backends that support writing an arbitrary
// [start, end) byte range in place (page/append blobs, local files).
type RangeObject interface {
	Object

	// FlushRange writes data over [start, end) of the object, creating it
	// when absent. FlushRange(ctx, nil, 0, 0) creates an empty object.
	FlushRange(ctx context.Context, data []byte, start, end int64) error
}
