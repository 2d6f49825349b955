// Package errs defines the closed error taxonomy shared by all storage
// backends and the stream engine.
//
// Backend call sites normalize SDK and driver failures into these sentinels;
// everything else propagates wrapped but opaque. The stream engine matches
// them with errors.Is and never inspects backend error types directly.
package errs

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound reports that the object does not exist on the storage.
	ErrNotFound = fs.ErrNotExist

	// ErrPermission reports that the storage denied access to the object.
	ErrPermission = fs.ErrPermission

	// ErrExists reports that the object already exists (mode "x" opens).
	ErrExists = fs.ErrExist

	// ErrUnsupported reports an operation the stream or backend does not
	// support (for example writing to a read-mode stream).
	ErrUnsupported = errors.ErrUnsupported

	// ErrInvalidArgument reports a bad argument, such as an unrecognized
	// open mode. Fatal at construction, never retried.
	ErrInvalidArgument = fs.ErrInvalid
)

// PathError wraps err in a *fs.PathError carrying the operation and object
// path. A nil err returns nil.
func PathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &fs.PathError{Op: op, Path: path, Err: err}
}

// Unsupported returns an ErrUnsupported wrapped with the operation name and
// object path.
func Unsupported(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: ErrUnsupported}
}

// InvalidArgument returns an ErrInvalidArgument with a formatted reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidArgument)...)
}
