package types

import (
	"errors"
	"time"
)

// Backend defines the storage contract behind the version store: a keyed
// collection of documents and, per document, a keyed collection of snapshot
// blobs. Callers attach to a backend, use it, and detach when done.
type Backend interface {
	// Attach connects the backend to the storage described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached if
	// called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, operations return ErrBackendDetached.
	Detach() error

	// ReadDocument returns the current bytes of a document.
	// Returns ErrDocumentNotFound if the document has never been written.
	ReadDocument(doc string) ([]byte, error)

	// WriteDocument replaces the document content. Readers never observe a
	// partially written document.
	WriteDocument(doc string, data []byte) error

	// ListDocuments returns the names of all stored documents, sorted.
	ListDocuments() ([]string, error)

	// CreateSnapshot stores data under name in the document's snapshot
	// collection. Returns ErrSnapshotExists if the name is taken; an existing
	// snapshot is never overwritten.
	CreateSnapshot(doc, name string, data []byte) error

	// ReadSnapshot returns the stored bytes of a snapshot.
	// Returns ErrSnapshotNotFound if it does not exist.
	ReadSnapshot(doc, name string) ([]byte, error)

	// ListSnapshots returns every snapshot in the document's collection in
	// backend order. A document without snapshots yields an empty slice.
	ListSnapshots(doc string) ([]SnapshotInfo, error)

	// DeleteSnapshot removes a snapshot. A missing snapshot is not an error.
	DeleteSnapshot(doc, name string) error
}

// SnapshotInfo is the backend's view of a stored snapshot.
type SnapshotInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Backend lifecycle errors.
var (
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)

// Storage errors.
var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrSnapshotExists      = errors.New("snapshot already exists")
	ErrInvalidDocumentName = errors.New("invalid document name")
	ErrInvalidSnapshotName = errors.New("invalid snapshot name")
	ErrInvalidRow          = errors.New("row index out of range")
	ErrInvalidColumn       = errors.New("column index out of range")
)
