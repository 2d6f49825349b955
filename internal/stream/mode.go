package stream

import (
	"strings"

	"github.com/objstream/objstream-go/internal/errs"
)

// Mode is the open mode of a stream.
type Mode uint8

const (
	// ModeRead opens an existing object for reading.
	ModeRead Mode = iota

	// ModeWrite creates or replaces the object.
	ModeWrite

	// ModeAppend opens the object positioned at its current end, creating
	// it when absent.
	ModeAppend

	// ModeExclusive creates the object, failing when it already exists.
	ModeExclusive
)

// ParseMode parses a POSIX-style mode string: "r", "w", "a" or "x", with an
// optional and ignored "b" suffix. Anything else is an invalid argument.
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSuffix(s, "b") {
	case "r":
		return ModeRead, nil
	case "w":
		return ModeWrite, nil
	case "a":
		return ModeAppend, nil
	case "x":
		return ModeExclusive, nil
	default:
		return 0, errs.InvalidArgument("unrecognized mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeWrite:
		return "w"
	case ModeAppend:
		return "a"
	case ModeExclusive:
		return "x"
	}
	return "?"
}

// Writable reports whether the mode buffers writes.
func (m Mode) Writable() bool {
	return m == ModeWrite || m == ModeAppend || m == ModeExclusive
}
