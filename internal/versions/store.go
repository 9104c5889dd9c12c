// Package versions manages the snapshot history of tabula documents: a
// snapshot before every save, a retention cap, point-in-time restore with a
// backup of the overwritten content, and diff previews against any snapshot.
package versions

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mesh-intelligence/tabula/internal/diff"
	"github.com/mesh-intelligence/tabula/internal/tablecsv"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Store runs snapshot lifecycle operations against a Backend. It holds no
// per-document state, so independent processes may share one data directory.
type Store struct {
	backend     types.Backend
	maxVersions int
	maxBackups  int
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxVersions sets how many save-snapshots Save keeps per document.
// Zero or negative disables rotation.
func WithMaxVersions(n int) Option {
	return func(s *Store) { s.maxVersions = n }
}

// WithMaxBackups caps pre-restore backups per document. Zero, the default,
// keeps every backup.
func WithMaxBackups(n int) Option {
	return func(s *Store) { s.maxBackups = n }
}

// WithClock replaces time.Now for snapshot naming.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a Store on an attached backend.
func New(backend types.Backend, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		maxVersions: types.DefaultMaxVersions,
		now:         time.Now,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxVersions returns the save-snapshot retention cap used by Save.
func (s *Store) MaxVersions() int {
	return s.maxVersions
}

func validate(doc, snapshotID string) error {
	if err := types.ValidateDocumentName(doc); err != nil {
		return err
	}
	return types.ValidateSnapshotName(snapshotID)
}

// Snapshot copies the document's current bytes into a new save-snapshot and
// returns its ID. It returns an empty ID and no error when the document does
// not exist yet.
func (s *Store) Snapshot(doc string) (string, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return "", err
	}
	data, err := s.backend.ReadDocument(doc)
	if errors.Is(err, types.ErrDocumentNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", doc, err)
	}
	id, err := s.createSnapshot(doc, types.SnapshotSave, data)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", doc, err)
	}
	s.logger.Debug("snapshot created", "doc", doc, "snapshot", id, "bytes", len(data))
	return id, nil
}

// createSnapshot stores data under a new name for the current second. The
// sequence suffix starts above the highest one already used for that kind
// and second, so a name freed by rotation is never handed out again.
func (s *Store) createSnapshot(doc string, kind types.SnapshotKind, data []byte) (string, error) {
	now := s.now()
	start, err := s.nextSeq(doc, kind, now)
	if err != nil {
		return "", err
	}
	for seq := start; seq < start+maxNameAttempts; seq++ {
		name := snapshotName(kind, now, seq)
		err := s.backend.CreateSnapshot(doc, name, data)
		if err == nil {
			snapshotsCreated.WithLabelValues(kind.String()).Inc()
			return name, nil
		}
		if !errors.Is(err, types.ErrSnapshotExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no free name after %d attempts", types.ErrSnapshotExists, maxNameAttempts)
}

// nextSeq returns one past the highest sequence of the kind's snapshots
// stamped with the same second as t, or zero when there are none.
func (s *Store) nextSeq(doc string, kind types.SnapshotKind, t time.Time) (int, error) {
	infos, err := s.backend.ListSnapshots(doc)
	if err != nil {
		return 0, fmt.Errorf("list snapshots of %s: %w", doc, err)
	}
	stamp := t.Format(timestampLayout)
	next := 0
	for _, info := range infos {
		k, created, seq, ok := parseSnapshotName(info.Name)
		if !ok || k != kind || created.Format(timestampLayout) != stamp {
			continue
		}
		next = max(next, seq+1)
	}
	return next, nil
}

// Rotate deletes every save-snapshot of doc beyond the maxVersions newest
// and returns how many were deleted. Backups and foreign files are left
// alone. maxVersions of zero or less disables rotation.
func (s *Store) Rotate(doc string, maxVersions int) (int, error) {
	return s.rotate(doc, types.SnapshotSave, maxVersions)
}

func (s *Store) rotate(doc string, kind types.SnapshotKind, keep int) (int, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return 0, err
	}
	if keep <= 0 {
		return 0, nil
	}
	snaps, err := s.ListSnapshots(doc)
	if err != nil {
		return 0, err
	}

	var kept, deleted int
	var errs []error
	for _, snap := range snaps {
		if snap.Kind != kind {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		if err := s.backend.DeleteSnapshot(doc, snap.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		snapshotsRotated.WithLabelValues(kind.String()).Add(float64(deleted))
		s.logger.Debug("snapshots rotated", "doc", doc, "kind", kind, "deleted", deleted)
	}
	if err := errors.Join(errs...); err != nil {
		return deleted, fmt.Errorf("rotate %s: %w", doc, err)
	}
	return deleted, nil
}

// ListSnapshots returns all snapshots of doc, newest first. Snapshots are
// ordered by the time encoded in their name, then by sequence; ties keep the
// backend's listing order.
func (s *Store) ListSnapshots(doc string) ([]types.Snapshot, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return nil, err
	}
	infos, err := s.backend.ListSnapshots(doc)
	if err != nil {
		return nil, fmt.Errorf("list snapshots of %s: %w", doc, err)
	}
	snaps := make([]types.Snapshot, len(infos))
	for i, info := range infos {
		snaps[i] = describe(info)
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		a, b := snaps[i], snaps[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Seq > b.Seq
	})
	return snaps, nil
}

// Restore overwrites doc with the content of snapshotID. When doc exists its
// current content is first kept as a pre-restore backup. A failed backup is
// logged and does not stop the restore.
func (s *Store) Restore(doc, snapshotID string) error {
	if err := validate(doc, snapshotID); err != nil {
		return err
	}
	data, err := s.backend.ReadSnapshot(doc, snapshotID)
	if err != nil {
		if errors.Is(err, types.ErrSnapshotNotFound) {
			restoresTotal.WithLabelValues("not_found").Inc()
		} else {
			restoresTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("restore %s from %s: %w", doc, snapshotID, err)
	}

	s.backupBeforeRestore(doc)

	if err := s.backend.WriteDocument(doc, data); err != nil {
		restoresTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("restore %s from %s: %w", doc, snapshotID, err)
	}
	restoresTotal.WithLabelValues("ok").Inc()
	s.logger.Info("document restored", "doc", doc, "snapshot", snapshotID)
	return nil
}

func (s *Store) backupBeforeRestore(doc string) {
	current, err := s.backend.ReadDocument(doc)
	if errors.Is(err, types.ErrDocumentNotFound) {
		return
	}
	if err != nil {
		backupFailures.Inc()
		s.logger.Warn("pre-restore backup skipped", "doc", doc, "error", err)
		return
	}
	id, err := s.createSnapshot(doc, types.SnapshotBackup, current)
	if err != nil {
		backupFailures.Inc()
		s.logger.Warn("pre-restore backup failed", "doc", doc, "error", err)
		return
	}
	s.logger.Debug("pre-restore backup created", "doc", doc, "snapshot", id)

	if s.maxBackups > 0 {
		if _, err := s.rotate(doc, types.SnapshotBackup, s.maxBackups); err != nil {
			s.logger.Warn("backup rotation failed", "doc", doc, "error", err)
		}
	}
}

// DeleteSnapshot removes a snapshot permanently. Deleting a missing snapshot
// succeeds.
func (s *Store) DeleteSnapshot(doc, snapshotID string) error {
	if err := validate(doc, snapshotID); err != nil {
		return err
	}
	if err := s.backend.DeleteSnapshot(doc, snapshotID); err != nil {
		return fmt.Errorf("delete snapshot %s of %s: %w", snapshotID, doc, err)
	}
	s.logger.Info("snapshot deleted", "doc", doc, "snapshot", snapshotID)
	return nil
}

// DiffResult is an edit script from a snapshot to the current document.
type DiffResult struct {
	CompareName string         `json:"compare_name"`
	Found       bool           `json:"found"`
	Note        string         `json:"note,omitempty"`
	Ops         []types.EditOp `json:"ops"`
	Summary     diff.Summary   `json:"summary"`
}

// Diff compares the lines of snapshotID (base) with the document's current
// lines (target). A missing snapshot gives an empty result with Found false
// and an explanatory Note. A missing document compares against no lines.
func (s *Store) Diff(doc, snapshotID string) (DiffResult, error) {
	if err := validate(doc, snapshotID); err != nil {
		return DiffResult{}, err
	}
	result := DiffResult{CompareName: snapshotID, Ops: []types.EditOp{}}

	old, err := s.backend.ReadSnapshot(doc, snapshotID)
	if errors.Is(err, types.ErrSnapshotNotFound) {
		result.Note = "snapshot not found"
		return result, nil
	}
	if err != nil {
		return DiffResult{}, fmt.Errorf("diff %s against %s: %w", doc, snapshotID, err)
	}
	current, err := s.backend.ReadDocument(doc)
	if err != nil && !errors.Is(err, types.ErrDocumentNotFound) {
		return DiffResult{}, fmt.Errorf("diff %s against %s: %w", doc, snapshotID, err)
	}
	if errors.Is(err, types.ErrDocumentNotFound) {
		result.Note = "document not found; compared against empty content"
	}

	result.Found = true
	result.Ops = diff.Lines(diff.SplitLines(old), diff.SplitLines(current))
	result.Summary = diff.Stats(result.Ops)
	diffLines.Observe(float64(len(result.Ops)))
	return result, nil
}

// ReadDocument returns the document's rows. A missing document has no rows.
func (s *Store) ReadDocument(doc string) ([]types.Row, error) {
	data, err := s.ReadRaw(doc)
	if errors.Is(err, types.ErrDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := tablecsv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", doc, err)
	}
	return rows, nil
}

// WriteDocument replaces the document with rows without taking a snapshot.
func (s *Store) WriteDocument(doc string, rows []types.Row) error {
	if err := types.ValidateDocumentName(doc); err != nil {
		return err
	}
	data, err := tablecsv.Encode(rows)
	if err != nil {
		return fmt.Errorf("write %s: %w", doc, err)
	}
	if err := s.backend.WriteDocument(doc, data); err != nil {
		return fmt.Errorf("write %s: %w", doc, err)
	}
	return nil
}

// Save snapshots the current document, applies the retention cap and writes
// rows. It returns the new snapshot's ID, empty on a document's first save.
// A failed snapshot aborts the save; a failed rotation is only logged.
func (s *Store) Save(doc string, rows []types.Row) (string, error) {
	start := time.Now()
	defer func() { saveDuration.Observe(time.Since(start).Seconds()) }()

	if err := types.ValidateDocumentName(doc); err != nil {
		return "", err
	}
	data, err := tablecsv.Encode(rows)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", doc, err)
	}

	id, err := s.Snapshot(doc)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", doc, err)
	}
	if id != "" {
		if _, err := s.Rotate(doc, s.maxVersions); err != nil {
			s.logger.Warn("snapshot rotation failed", "doc", doc, "error", err)
		}
	}

	if err := s.backend.WriteDocument(doc, data); err != nil {
		return id, fmt.Errorf("save %s: %w", doc, err)
	}
	s.logger.Info("document saved", "doc", doc, "rows", len(rows), "snapshot", id)
	return id, nil
}

// ReadRaw returns the document's stored bytes.
// Returns ErrDocumentNotFound if it has never been saved.
func (s *Store) ReadRaw(doc string) ([]byte, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return nil, err
	}
	data, err := s.backend.ReadDocument(doc)
	if errors.Is(err, types.ErrDocumentNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", doc, err)
	}
	return data, nil
}

// ReadSnapshot returns a snapshot's stored bytes.
func (s *Store) ReadSnapshot(doc, snapshotID string) ([]byte, error) {
	if err := validate(doc, snapshotID); err != nil {
		return nil, err
	}
	data, err := s.backend.ReadSnapshot(doc, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s of %s: %w", snapshotID, doc, err)
	}
	return data, nil
}

// ListDocuments returns the names of all stored documents.
func (s *Store) ListDocuments() ([]string, error) {
	docs, err := s.backend.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}
