package types

import "time"

// SnapshotKind distinguishes why a snapshot was taken.
type SnapshotKind string

// Snapshot kinds. Save snapshots are subject to rotation; backups taken
// before a restore are not, unless a backup cap is configured.
const (
	SnapshotSave    SnapshotKind = "save"
	SnapshotBackup  SnapshotKind = "backup"
	SnapshotUnknown SnapshotKind = "unknown"
)

func (k SnapshotKind) String() string {
	return string(k)
}

// Snapshot is an immutable stored copy of a document at one point in time.
type Snapshot struct {
	// ID is the snapshot name, unique within the document's collection.
	ID string `json:"id"`

	// Kind is save, backup or unknown (foreign files in the collection).
	Kind SnapshotKind `json:"kind"`

	// CreatedAt is the creation time, second resolution.
	CreatedAt time.Time `json:"created_at"`

	// Seq disambiguates snapshots of the same kind created in the same second.
	Seq int `json:"seq,omitempty"`

	// SizeBytes is the stored content size.
	SizeBytes int64 `json:"size_bytes"`
}
