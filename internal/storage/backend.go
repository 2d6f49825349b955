// Package storage defines the backend interface implemented by each object
// store and the mount registry that routes full paths to backends.
package storage

import (
	"sort"
	"strings"
	"sync"

	"github.com/objstream/objstream-go/internal/errs"
	"github.com/objstream/objstream-go/internal/stream"
)

// Backend is a mounted object store. Implementations return objects bound
// to a key relative to the mount prefix.
type Backend interface {
	// Object returns a handle for key. The call performs no I/O; existence
	// is checked by the stream layer on open.
	Object(key string) stream.Object

	// Limits reports the backend's buffer size bounds and worker default.
	Limits() stream.Limits

	// Close releases backend resources (connection pools, clients).
	Close() error
}

type mountEntry struct {
	prefix  string
	backend Backend
}

// Registry routes full object paths to mounted backends by longest prefix
// match. It is safe for concurrent use; mounts are typically registered at
// startup and resolved for every open.
type Registry struct {
	mu     sync.RWMutex
	mounts []mountEntry // sorted by descending prefix length
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register mounts backend at prefix, replacing any previous mount with the
// same prefix. A trailing slash on the prefix is ignored.
func (r *Registry) Register(prefix string, backend Backend) {
	prefix = strings.TrimSuffix(prefix, "/")
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.mounts {
		if m.prefix == prefix {
			r.mounts[i].backend = backend
			return
		}
	}
	r.mounts = append(r.mounts, mountEntry{prefix: prefix, backend: backend})
	sort.Slice(r.mounts, func(i, j int) bool {
		return len(r.mounts[i].prefix) > len(r.mounts[j].prefix)
	})
}

// Resolve returns the backend mounted at the longest prefix of path and the
// key relative to that prefix. An unmatched path is an invalid argument.
func (r *Registry) Resolve(path string) (Backend, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mounts {
		if !strings.HasPrefix(path, m.prefix) {
			continue
		}
		key := strings.TrimPrefix(path[len(m.prefix):], "/")
		if key == "" {
			return nil, "", errs.InvalidArgument("path %q names a mount, not an object", path)
		}
		return m.backend, key, nil
	}
	return nil, "", errs.InvalidArgument("no mount matches path %q", path)
}

// Prefixes returns the registered mount prefixes, longest first.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.mounts))
	for i, m := range r.mounts {
		out[i] = m.prefix
	}
	return out
}

// Close closes every mounted backend, returning the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, m := range r.mounts {
		if err := m.backend.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.mounts = nil
	return first
}
