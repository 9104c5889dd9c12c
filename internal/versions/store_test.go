package versions

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/internal/fsstore"
	"github.com/mesh-intelligence/tabula/internal/memstore"
	"github.com/mesh-intelligence/tabula/internal/sqlite"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

const doc = "data.csv"

type fakeClock struct{ t time.Time }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemBackend(t *testing.T) types.Backend {
	t.Helper()
	b := memstore.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendMemory}))
	t.Cleanup(func() { b.Detach() })
	return b
}

// backends returns one attached instance of every backend implementation.
func backends(t *testing.T) map[string]func(t *testing.T) types.Backend {
	return map[string]func(t *testing.T) types.Backend{
		types.BackendMemory: newMemBackend,
		types.BackendFilesystem: func(t *testing.T) types.Backend {
			b := fsstore.NewBackend()
			require.NoError(t, b.Attach(types.Config{Backend: types.BackendFilesystem, DataDir: t.TempDir()}))
			t.Cleanup(func() { b.Detach() })
			return b
		},
		types.BackendSQLite: func(t *testing.T) types.Backend {
			b := sqlite.NewBackend()
			require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
			t.Cleanup(func() { b.Detach() })
			return b
		},
	}
}

func rawDoc(t *testing.T, b types.Backend) string {
	t.Helper()
	data, err := b.ReadDocument(doc)
	require.NoError(t, err)
	return string(data)
}

func TestSnapshot_MissingDocumentIsNoop(t *testing.T) {
	b := newMemBackend(t)
	s := New(b)

	id, err := s.Snapshot(doc)
	require.NoError(t, err)
	assert.Empty(t, id)

	snaps, err := s.ListSnapshots(doc)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestSnapshot_NamesAndCollisions(t *testing.T) {
	b := newMemBackend(t)
	clock := newClock()
	s := New(b, WithClock(clock.Now))
	require.NoError(t, b.WriteDocument(doc, []byte("h\n")))

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Snapshot(doc)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{
		"data_20260102_030405.csv",
		"data_20260102_030405_1.csv",
		"data_20260102_030405_2.csv",
	}, ids)

	snaps, err := s.ListSnapshots(doc)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, "data_20260102_030405_2.csv", snaps[0].ID)
	assert.Equal(t, "data_20260102_030405_1.csv", snaps[1].ID)
	assert.Equal(t, "data_20260102_030405.csv", snaps[2].ID)
	for _, snap := range snaps {
		assert.Equal(t, types.SnapshotSave, snap.Kind)
		assert.Equal(t, int64(2), snap.SizeBytes)
		assert.True(t, snap.CreatedAt.Equal(clock.Now()))
	}
}

func TestRotationInvariant(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cases := []struct{ saves, keep int }{
				{saves: 3, keep: 5},
				{saves: 5, keep: 5},
				{saves: 25, keep: 20},
				{saves: 7, keep: 1},
			}
			for _, tc := range cases {
				t.Run(fmt.Sprintf("%d saves keep %d", tc.saves, tc.keep), func(t *testing.T) {
					b := open(t)
					clock := newClock()
					s := New(b, WithClock(clock.Now), WithMaxVersions(tc.keep))
					require.NoError(t, s.WriteDocument(doc, []types.Row{{"v0"}}))

					var created []string
					for i := 1; i <= tc.saves; i++ {
						clock.Advance(time.Second)
						id, err := s.Save(doc, []types.Row{{fmt.Sprintf("v%d", i)}})
						require.NoError(t, err)
						created = append(created, id)
					}

					snaps, err := s.ListSnapshots(doc)
					require.NoError(t, err)

					want := min(tc.saves, tc.keep)
					require.Len(t, snaps, want)
					for i, snap := range snaps {
						assert.Equal(t, created[len(created)-1-i], snap.ID)
					}
				})
			}
		})
	}
}

func TestRotation_SameSecondNeverReusesFreedName(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			clock := newClock()
			s := New(b, WithClock(clock.Now), WithMaxVersions(1))
			_, err := s.Save(doc, []types.Row{{"v0"}})
			require.NoError(t, err)

			var created []string
			for i := 1; i <= 3; i++ {
				id, err := s.Save(doc, []types.Row{{fmt.Sprintf("v%d", i)}})
				require.NoError(t, err)
				created = append(created, id)
			}
			assert.Equal(t, []string{
				"data_20260102_030405.csv",
				"data_20260102_030405_1.csv",
				"data_20260102_030405_2.csv",
			}, created)

			snaps, err := s.ListSnapshots(doc)
			require.NoError(t, err)
			require.Len(t, snaps, 1)
			assert.Equal(t, created[2], snaps[0].ID)

			data, err := s.ReadSnapshot(doc, snaps[0].ID)
			require.NoError(t, err)
			assert.Equal(t, "v2\n", string(data))
		})
	}
}

func TestSave_FirstSaveHasNoSnapshot(t *testing.T) {
	b := newMemBackend(t)
	s := New(b)

	id, err := s.Save(doc, []types.Row{{"h1", "h2"}, {"a"}})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, "h1,h2\na\n", rawDoc(t, b))

	rows, err := s.ReadDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, []types.Row{{"h1", "h2"}, {"a"}}, rows, "ragged rows are stored as given")
}

func TestSave_SnapshotHoldsPreviousContent(t *testing.T) {
	b := newMemBackend(t)
	s := New(b, WithClock(newClock().Now))
	require.NoError(t, s.WriteDocument(doc, []types.Row{{"h"}, {"old"}}))

	id, err := s.Save(doc, []types.Row{{"h"}, {"new"}})
	require.NoError(t, err)

	prev, err := s.ReadSnapshot(doc, id)
	require.NoError(t, err)
	assert.Equal(t, "h\nold\n", string(prev))
	assert.Equal(t, "h\nnew\n", rawDoc(t, b))
}

func TestRotate(t *testing.T) {
	b := newMemBackend(t)
	clock := newClock()
	s := New(b, WithClock(clock.Now))
	require.NoError(t, b.WriteDocument(doc, []byte("x\n")))

	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		_, err := s.Snapshot(doc)
		require.NoError(t, err)
	}
	require.NoError(t, b.CreateSnapshot(doc, "pre_restore_20260102_030000.csv", []byte("b")))
	require.NoError(t, b.CreateSnapshot(doc, "manual-copy.csv", []byte("m")))

	deleted, err := s.Rotate(doc, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted, "zero disables rotation")

	deleted, err = s.Rotate(doc, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	snaps, err := s.ListSnapshots(doc)
	require.NoError(t, err)
	kinds := map[types.SnapshotKind]int{}
	for _, snap := range snaps {
		kinds[snap.Kind]++
	}
	assert.Equal(t, 2, kinds[types.SnapshotSave])
	assert.Equal(t, 1, kinds[types.SnapshotBackup], "backups are exempt")
	assert.Equal(t, 1, kinds[types.SnapshotUnknown], "foreign files are exempt")
}

func TestRestore_RoundTripAndBackup(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			clock := newClock()
			s := New(b, WithClock(clock.Now))

			require.NoError(t, b.WriteDocument(doc, []byte("h1,h2\r\nA,1\r\n")))
			clock.Advance(time.Second)
			snapID, err := s.Save(doc, []types.Row{{"h1", "h2"}, {"B", "2"}})
			require.NoError(t, err)
			require.NotEmpty(t, snapID)

			clock.Advance(time.Second)
			require.NoError(t, s.Restore(doc, snapID))
			assert.Equal(t, "h1,h2\r\nA,1\r\n", rawDoc(t, b), "restore is byte for byte")

			snaps, err := s.ListSnapshots(doc)
			require.NoError(t, err)
			require.Len(t, snaps, 2)
			backup := snaps[0]
			assert.Equal(t, types.SnapshotBackup, backup.Kind)
			assert.True(t, strings.HasPrefix(backup.ID, "pre_restore_"))

			data, err := s.ReadSnapshot(doc, backup.ID)
			require.NoError(t, err)
			assert.Equal(t, "h1,h2\nB,2\n", string(data), "backup holds the overwritten content")
		})
	}
}

func TestRestore_MissingDocumentSkipsBackup(t *testing.T) {
	b := newMemBackend(t)
	s := New(b)
	require.NoError(t, b.CreateSnapshot(doc, "data_20260101_000000.csv", []byte("h\nv\n")))

	require.NoError(t, s.Restore(doc, "data_20260101_000000.csv"))
	assert.Equal(t, "h\nv\n", rawDoc(t, b))

	snaps, err := s.ListSnapshots(doc)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestRestore_MissingSnapshot(t *testing.T) {
	b := newMemBackend(t)
	s := New(b)
	require.NoError(t, b.WriteDocument(doc, []byte("keep\n")))

	err := s.Restore(doc, "data_20200101_000000.csv")
	assert.ErrorIs(t, err, types.ErrSnapshotNotFound)
	assert.Equal(t, "keep\n", rawDoc(t, b))

	snaps, err := s.ListSnapshots(doc)
	require.NoError(t, err)
	assert.Empty(t, snaps, "no backup for a failed restore")
}

// backupFailingBackend refuses to store pre-restore backups.
type backupFailingBackend struct {
	types.Backend
}

func (b backupFailingBackend) CreateSnapshot(doc, name string, data []byte) error {
	if strings.HasPrefix(name, backupPrefix) {
		return errors.New("disk full")
	}
	return b.Backend.CreateSnapshot(doc, name, data)
}

func TestRestore_BackupFailureDoesNotBlock(t *testing.T) {
	inner := newMemBackend(t)
	b := backupFailingBackend{Backend: inner}
	s := New(b)
	require.NoError(t, inner.WriteDocument(doc, []byte("current\n")))
	require.NoError(t, inner.CreateSnapshot(doc, "data_20260101_000000.csv", []byte("old\n")))

	require.NoError(t, s.Restore(doc, "data_20260101_000000.csv"))
	assert.Equal(t, "old\n", rawDoc(t, inner))
}

func TestRestore_MaxBackups(t *testing.T) {
	b := newMemBackend(t)
	clock := newClock()
	s := New(b, WithClock(clock.Now), WithMaxBackups(2))
	require.NoError(t, b.WriteDocument(doc, []byte("x\n")))
	require.NoError(t, b.CreateSnapshot(doc, "data_20260101_000000.csv", []byte("old\n")))

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		require.NoError(t, s.Restore(doc, "data_20260101_000000.csv"))
	}

	snaps, err := s.ListSnapshots(doc)
	require.NoError(t, err)
	backups := 0
	for _, snap := range snaps {
		if snap.Kind == types.SnapshotBackup {
			backups++
		}
	}
	assert.Equal(t, 2, backups)
}

func TestRestore_BackupsUnboundedByDefault(t *testing.T) {
	b := newMemBackend(t)
	clock := newClock()
	s := New(b, WithClock(clock.Now), WithMaxVersions(1))
	require.NoError(t, b.WriteDocument(doc, []byte("x\n")))
	require.NoError(t, b.CreateSnapshot(doc, "data_20260101_000000.csv", []byte("old\n")))

	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		require.NoError(t, s.Restore(doc, "data_20260101_000000.csv"))
	}

	snaps, err := s.ListSnapshots(doc)
	require.NoError(t, err)
	assert.Len(t, snaps, 5)
}

func TestDeleteSnapshot_Idempotent(t *testing.T) {
	b := newMemBackend(t)
	s := New(b)
	require.NoError(t, b.CreateSnapshot(doc, "data_20260101_000000.csv", []byte("v\n")))

	require.NoError(t, s.DeleteSnapshot(doc, "data_20260101_000000.csv"))
	require.NoError(t, s.DeleteSnapshot(doc, "data_20260101_000000.csv"))

	snaps, err := s.ListSnapshots(doc)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestDiff_AgainstIdenticalContent(t *testing.T) {
	b := newMemBackend(t)
	s := New(b, WithClock(newClock().Now))
	rows := []types.Row{{"h1", "h2"}, {"a", "b"}, {"c", "d"}}
	require.NoError(t, s.WriteDocument(doc, rows))
	id, err := s.Snapshot(doc)
	require.NoError(t, err)

	res, err := s.Diff(doc, id)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, id, res.CompareName)
	require.Len(t, res.Ops, 3)
	for i, line := range []string{"h1,h2", "a,b", "c,d"} {
		assert.Equal(t, types.OpEqual, res.Ops[i].Tag)
		assert.Equal(t, line, res.Ops[i].Line)
	}
	assert.True(t, res.Summary.Identical())
}

func TestDiff_ChangedContent(t *testing.T) {
	b := newMemBackend(t)
	s := New(b, WithClock(newClock().Now))
	require.NoError(t, s.WriteDocument(doc, []types.Row{{"h"}, {"a"}, {"b"}, {"c"}}))
	id, err := s.Save(doc, []types.Row{{"h"}, {"b"}, {"c"}, {"d"}})
	require.NoError(t, err)

	res, err := s.Diff(doc, id)
	require.NoError(t, err)

	var deleted, inserted []string
	for _, op := range res.Ops {
		switch op.Tag {
		case types.OpDelete:
			deleted = append(deleted, op.Line)
		case types.OpInsert:
			inserted = append(inserted, op.Line)
		}
	}
	assert.Equal(t, []string{"a"}, deleted)
	assert.Equal(t, []string{"d"}, inserted)
	assert.Equal(t, 1, res.Summary.Deleted)
	assert.Equal(t, 1, res.Summary.Added)
}

func TestDiff_MissingSnapshot(t *testing.T) {
	b := newMemBackend(t)
	s := New(b)
	require.NoError(t, b.WriteDocument(doc, []byte("h\n")))

	res, err := s.Diff(doc, "data_20000101_000000.csv")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.NotEmpty(t, res.Note)
	assert.Empty(t, res.Ops)
}

func TestDiff_MissingDocument(t *testing.T) {
	b := newMemBackend(t)
	s := New(b)
	require.NoError(t, b.CreateSnapshot(doc, "data_20260101_000000.csv", []byte("h\nv\n")))

	res, err := s.Diff(doc, "data_20260101_000000.csv")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 2, res.Summary.Deleted)
}

// spyBackend counts calls that reach storage.
type spyBackend struct {
	types.Backend
	calls int
}

func (b *spyBackend) ReadDocument(d string) ([]byte, error) {
	b.calls++
	return b.Backend.ReadDocument(d)
}

func (b *spyBackend) ReadSnapshot(d, n string) ([]byte, error) {
	b.calls++
	return b.Backend.ReadSnapshot(d, n)
}

func (b *spyBackend) DeleteSnapshot(d, n string) error {
	b.calls++
	return b.Backend.DeleteSnapshot(d, n)
}

func (b *spyBackend) ListSnapshots(d string) ([]types.SnapshotInfo, error) {
	b.calls++
	return b.Backend.ListSnapshots(d)
}

func TestValidationBeforeIO(t *testing.T) {
	spy := &spyBackend{Backend: newMemBackend(t)}
	s := New(spy)

	_, err := s.Snapshot("../etc/passwd")
	assert.ErrorIs(t, err, types.ErrInvalidDocumentName)

	err = s.Restore(doc, "../../data.csv")
	assert.ErrorIs(t, err, types.ErrInvalidSnapshotName)

	err = s.DeleteSnapshot(doc, "a/b.csv")
	assert.ErrorIs(t, err, types.ErrInvalidSnapshotName)

	_, err = s.Diff("bad name.csv", "data_20260101_000000.csv")
	assert.ErrorIs(t, err, types.ErrInvalidDocumentName)

	_, err = s.ListSnapshots("data.txt")
	assert.ErrorIs(t, err, types.ErrInvalidDocumentName)

	_, err = s.Save("x.exe", nil)
	assert.ErrorIs(t, err, types.ErrInvalidDocumentName)

	assert.Zero(t, spy.calls)
}

func TestReadDocument_Missing(t *testing.T) {
	s := New(newMemBackend(t))

	rows, err := s.ReadDocument(doc)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = s.ReadRaw(doc)
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)
}

func TestListDocuments(t *testing.T) {
	b := newMemBackend(t)
	s := New(b)
	_, err := s.Save("b.csv", []types.Row{{"h"}})
	require.NoError(t, err)
	_, err = s.Save("a.csv", []types.Row{{"h"}})
	require.NoError(t, err)

	docs, err := s.ListDocuments()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv", "b.csv"}, docs)
}
