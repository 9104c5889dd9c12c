// Package memstore implements an in-memory storage backend. Content lives
// for the lifetime of the process; it backs tests and throwaway servers.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

type snapshot struct {
	name    string
	data    []byte
	created time.Time
}

// Backend implements types.Backend with maps guarded by a mutex.
type Backend struct {
	mu        sync.RWMutex
	attached  bool
	docs      map[string][]byte
	snapshots map[string][]snapshot
}

// NewBackend creates an empty, detached memory backend.
func NewBackend() *Backend {
	return &Backend{
		docs:      make(map[string][]byte),
		snapshots: make(map[string][]snapshot),
	}
}

// Attach validates config and marks the backend usable. Content written
// before a Detach survives a later Attach.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	b.attached = true
	return nil
}

// Detach marks the backend detached. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = false
	return nil
}

func clone(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// ReadDocument returns a copy of the document's bytes.
func (b *Backend) ReadDocument(doc string) ([]byte, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	data, ok := b.docs[doc]
	if !ok {
		return nil, types.ErrDocumentNotFound
	}
	return clone(data), nil
}

// WriteDocument stores a copy of data.
func (b *Backend) WriteDocument(doc string, data []byte) error {
	if err := types.ValidateDocumentName(doc); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrBackendDetached
	}
	b.docs[doc] = clone(data)
	return nil
}

// ListDocuments returns document names in ascending order.
func (b *Backend) ListDocuments() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	docs := make([]string, 0, len(b.docs))
	for name := range b.docs {
		docs = append(docs, name)
	}
	sort.Strings(docs)
	return docs, nil
}

// CreateSnapshot appends a snapshot unless the name is taken.
func (b *Backend) CreateSnapshot(doc, name string, data []byte) error {
	if err := validate(doc, name); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrBackendDetached
	}
	for _, s := range b.snapshots[doc] {
		if s.name == name {
			return types.ErrSnapshotExists
		}
	}
	b.snapshots[doc] = append(b.snapshots[doc], snapshot{
		name:    name,
		data:    clone(data),
		created: time.Now(),
	})
	return nil
}

// ReadSnapshot returns a copy of a snapshot's bytes.
func (b *Backend) ReadSnapshot(doc, name string) ([]byte, error) {
	if err := validate(doc, name); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	for _, s := range b.snapshots[doc] {
		if s.name == name {
			return clone(s.data), nil
		}
	}
	return nil, types.ErrSnapshotNotFound
}

// ListSnapshots returns snapshots in creation order.
func (b *Backend) ListSnapshots(doc string) ([]types.SnapshotInfo, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	infos := make([]types.SnapshotInfo, 0, len(b.snapshots[doc]))
	for _, s := range b.snapshots[doc] {
		infos = append(infos, types.SnapshotInfo{
			Name:    s.name,
			Size:    int64(len(s.data)),
			ModTime: s.created,
		})
	}
	return infos, nil
}

// DeleteSnapshot drops a snapshot if present.
func (b *Backend) DeleteSnapshot(doc, name string) error {
	if err := validate(doc, name); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrBackendDetached
	}
	list := b.snapshots[doc]
	for i, s := range list {
		if s.name == name {
			b.snapshots[doc] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func validate(doc, name string) error {
	if err := types.ValidateDocumentName(doc); err != nil {
		return err
	}
	return types.ValidateSnapshotName(name)
}
