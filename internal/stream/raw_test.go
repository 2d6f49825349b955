package stream

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objstream/objstream-go/internal/errs"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"r": ModeRead, "rb": ModeRead,
		"w": ModeWrite, "wb": ModeWrite,
		"a": ModeAppend, "ab": ModeAppend,
		"x": ModeExclusive, "xb": ModeExclusive,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "z", "rw", "r+", "bb"} {
		_, err := ParseMode(in)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument, in)
	}
}

func TestRawWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	obj := newMemObject("o")

	w, err := NewRaw(ctx, obj, ModeWrite, Options{})
	require.NoError(t, err)
	assert.True(t, obj.exists, "open in write mode must create the object immediately")

	for _, part := range []string{"hello ", "object ", "storage"} {
		n, err := w.Write(ctx, []byte(part))
		require.NoError(t, err)
		assert.Equal(t, len(part), n)
	}
	assert.Equal(t, int64(len("hello object storage")), w.Tell())
	require.NoError(t, w.Close(ctx))

	r, err := NewRaw(ctx, obj, ModeRead, Options{})
	require.NoError(t, err)
	got, err := r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello object storage", string(got))
}

func TestRawReadRange(t *testing.T) {
	ctx := context.Background()
	obj := newMemObjectWith("o", []byte("0123456789"))

	r, err := NewRaw(ctx, obj, ModeRead, Options{})
	require.NoError(t, err)

	p := make([]byte, 4)
	n, err := r.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(p))
	assert.Equal(t, int64(4), r.Tell())

	_, err = r.Seek(ctx, -2, io.SeekEnd)
	require.NoError(t, err)
	n, err = r.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "short read at EOF is not an error")
	assert.Equal(t, "89", string(p[:n]))

	_, err = r.Read(ctx, p)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRawOpenReadMissing(t *testing.T) {
	ctx := context.Background()
	obj := newMemObject("absent")

	_, err := NewRaw(ctx, obj, ModeRead, Options{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRawOpenReadPermission(t *testing.T) {
	ctx := context.Background()
	obj := newMemObject("forbidden")
	obj.headErr = errs.ErrPermission

	_, err := NewRaw(ctx, obj, ModeRead, Options{})
	assert.ErrorIs(t, err, errs.ErrPermission)
}

func TestRawExclusiveExisting(t *testing.T) {
	ctx := context.Background()
	obj := newMemObjectWith("o", []byte("x"))

	_, err := NewRaw(ctx, obj, ModeExclusive, Options{})
	assert.ErrorIs(t, err, errs.ErrExists)
	assert.Equal(t, "x", string(obj.bytes()), "failed exclusive open must not touch the object")
}

func TestRawExclusiveNew(t *testing.T) {
	ctx := context.Background()
	obj := newMemObject("o")

	w, err := NewRaw(ctx, obj, ModeExclusive, Options{})
	require.NoError(t, err)
	assert.True(t, obj.exists)
	_, err = w.Write(ctx, []byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, "data", string(obj.bytes()))
}

func TestRawAppendMaterializes(t *testing.T) {
	ctx := context.Background()
	obj := newMemObjectWith("o", []byte("0123456789abcdef"))

	w, err := NewRaw(ctx, obj, ModeAppend, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, obj.readAllCalls, "append mode reads the whole object up front")
	assert.Equal(t, int64(16), w.Tell())

	_, err = w.Write(ctx, []byte("tail"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, "0123456789abcdeftail", string(obj.bytes()))
}

func TestRawAppendMissingCreates(t *testing.T) {
	ctx := context.Background()
	obj := newMemObject("o")

	w, err := NewRaw(ctx, obj, ModeAppend, Options{})
	require.NoError(t, err)
	assert.True(t, obj.exists)
	assert.Equal(t, int64(0), w.Tell())
	require.NoError(t, w.Close(ctx))
}

func TestRawSparseSeekZeroFill(t *testing.T) {
	ctx := context.Background()
	obj := newMemObject("o")

	w, err := NewRaw(ctx, obj, ModeWrite, Options{})
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("ab"))
	require.NoError(t, err)
	pos, err := w.Seek(ctx, 5, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
	_, err = w.Write(ctx, []byte("cd"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	assert.Equal(t, []byte("ab\x00\x00\x00cd"), obj.bytes())
}

func TestRawSeekNegative(t *testing.T) {
	ctx := context.Background()
	obj := newMemObjectWith("o", []byte("abc"))

	r, err := NewRaw(ctx, obj, ModeRead, Options{})
	require.NoError(t, err)
	_, err = r.Seek(ctx, -1, io.SeekStart)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = r.Seek(ctx, 0, 42)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestRawWrongModeOps(t *testing.T) {
	ctx := context.Background()

	r, err := NewRaw(ctx, newMemObjectWith("o", []byte("x")), ModeRead, Options{})
	require.NoError(t, err)
	_, err = r.Write(ctx, []byte("y"))
	assert.ErrorIs(t, err, errs.ErrUnsupported)

	w, err := NewRaw(ctx, newMemObject("o"), ModeWrite, Options{})
	require.NoError(t, err)
	_, err = w.Read(ctx, make([]byte, 1))
	assert.ErrorIs(t, err, errs.ErrUnsupported)
	_, err = w.ReadAll(ctx)
	assert.ErrorIs(t, err, errs.ErrUnsupported)
}

func TestRawCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	obj := newMemObject("o")

	w, err := NewRaw(ctx, obj, ModeWrite, Options{})
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, w.Close(ctx))
	flushes := obj.flushCalls
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, flushes, obj.flushCalls, "second close must not re-flush")
}

func TestRawCloseNothingWritten(t *testing.T) {
	ctx := context.Background()
	obj := newMemObject("o")

	w, err := NewRaw(ctx, obj, ModeWrite, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, 0, obj.flushCalls, "empty close transmits nothing beyond create")
	assert.True(t, obj.exists)
}

func TestRawPeek(t *testing.T) {
	ctx := context.Background()
	obj := newMemObjectWith("o", []byte("0123456789"))

	r, err := NewRaw(ctx, obj, ModeRead, Options{})
	require.NoError(t, err)
	got, err := r.Peek(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(got))
	assert.Equal(t, int64(0), r.Tell(), "peek must not advance the position")
}

func TestRawHeadCached(t *testing.T) {
	ctx := context.Background()
	obj := newMemObjectWith("o", []byte("abc"))

	r, err := NewRaw(ctx, obj, ModeRead, Options{})
	require.NoError(t, err)

	// Mutate behind the stream's back: the cached header must win.
	obj.mu.Lock()
	obj.data = append(obj.data, "more"...)
	obj.mu.Unlock()

	size, err := r.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestRawErrorsCarryPath(t *testing.T) {
	ctx := context.Background()
	obj := newMemObject("bucket/key")

	_, err := NewRaw(ctx, obj, ModeRead, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Contains(t, err.Error(), "bucket/key")
}
