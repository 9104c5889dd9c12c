// Package backend provides the public factory for tabula storage backends
// while keeping their implementations internal.
package backend

import (
	"fmt"

	"github.com/mesh-intelligence/tabula/internal/fsstore"
	"github.com/mesh-intelligence/tabula/internal/memstore"
	"github.com/mesh-intelligence/tabula/internal/sqlite"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// New creates a detached backend for the named backend type.
// Returns ErrBackendUnknown for unrecognized names.
func New(name string) (types.Backend, error) {
	switch name {
	case types.BackendFilesystem:
		return fsstore.NewBackend(), nil
	case types.BackendSQLite:
		return sqlite.NewBackend(), nil
	case types.BackendMemory:
		return memstore.NewBackend(), nil
	case "":
		return nil, types.ErrBackendEmpty
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, name)
	}
}

// Open creates the backend named by config and attaches it.
// The caller must Detach the returned backend.
//
// Example:
//
//	b, err := backend.Open(types.Config{
//	    Backend: types.BackendFilesystem,
//	    DataDir: "tables",
//	})
//	defer b.Detach()
func Open(config types.Config) (types.Backend, error) {
	b, err := New(config.Backend)
	if err != nil {
		return nil, err
	}
	if err := b.Attach(config); err != nil {
		return nil, fmt.Errorf("attach %s backend: %w", config.Backend, err)
	}
	return b, nil
}
