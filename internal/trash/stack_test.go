package trash

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// rowTable is a slice of rows implementing Table.
type rowTable struct {
	rows []types.Row
}

func (t *rowTable) Len() int { return len(t.rows) }

func (t *rowTable) Insert(index int, cells types.Row) {
	t.rows = slices.Insert(t.rows, index, cells)
}

func (t *rowTable) firstCells() []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[0]
	}
	return out
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func TestPush(t *testing.T) {
	table := &rowTable{}
	s := New(table)

	cells := types.Row{"a", "b"}
	e := s.Push(cells, 3)
	cells[0] = "changed"

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 3, e.Index)
	assert.Equal(t, types.Row{"a", "b"}, e.Cells, "entry keeps its own copy")
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, DefaultCapacity, s.Capacity())
}

func TestPush_IDsAreUnique(t *testing.T) {
	s := New(&rowTable{})
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		e := s.Push(types.Row{"x"}, i)
		require.False(t, seen[e.ID])
		seen[e.ID] = true
	}
}

func TestPush_EvictsOldestAtCapacity(t *testing.T) {
	s := New(&rowTable{})
	for i := 0; i <= DefaultCapacity; i++ {
		s.Push(types.Row{fmt.Sprint(i)}, i)
	}

	entries := s.Entries()
	require.Len(t, entries, DefaultCapacity)
	assert.Equal(t, types.Row{"1"}, entries[0].Cells, "first push was evicted")
	assert.Equal(t, types.Row{fmt.Sprint(DefaultCapacity)}, entries[len(entries)-1].Cells)
}

func TestWithCapacity(t *testing.T) {
	s := New(&rowTable{}, WithCapacity(2))
	s.Push(types.Row{"a"}, 0)
	s.Push(types.Row{"b"}, 0)
	s.Push(types.Row{"c"}, 0)

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, types.Row{"b"}, entries[0].Cells)
	assert.Equal(t, types.Row{"c"}, entries[1].Cells)

	assert.Equal(t, DefaultCapacity, New(&rowTable{}, WithCapacity(0)).Capacity())
}

func TestRestoreByID(t *testing.T) {
	table := &rowTable{rows: []types.Row{{"r0"}, {"r2"}}}
	s := New(table)
	e := s.Push(types.Row{"r1"}, 1)

	assert.True(t, s.RestoreByID(e.ID))
	assert.Equal(t, []string{"r0", "r1", "r2"}, table.firstCells())
	assert.Zero(t, s.Len())

	assert.False(t, s.RestoreByID(e.ID), "second restore finds nothing")
	assert.False(t, s.RestoreByID("missing"))
}

func TestRestoreByID_ClampsIndex(t *testing.T) {
	table := &rowTable{rows: []types.Row{{"a"}, {"b"}}}
	s := New(table)
	e := s.Push(types.Row{"z"}, 9)

	require.True(t, s.RestoreByID(e.ID))
	assert.Equal(t, []string{"a", "b", "z"}, table.firstCells())
}

func TestRestoreLast(t *testing.T) {
	// Rows r0..r4; delete r1, then r3 (now at index 2), then r0.
	table := &rowTable{rows: []types.Row{{"r2"}, {"r4"}}}
	s := New(table)
	s.Push(types.Row{"r1"}, 1)
	s.Push(types.Row{"r3"}, 2)
	s.Push(types.Row{"r0"}, 0)

	e, ok := s.RestoreLast()
	require.True(t, ok)
	assert.Equal(t, types.Row{"r0"}, e.Cells)
	assert.Equal(t, []string{"r0", "r2", "r4"}, table.firstCells())

	e, ok = s.RestoreLast()
	require.True(t, ok)
	assert.Equal(t, types.Row{"r3"}, e.Cells)
	assert.Equal(t, []string{"r0", "r2", "r3", "r4"}, table.firstCells())
	assert.Equal(t, 1, s.Len())
}

func TestRestoreLast_AfterRestoreByID(t *testing.T) {
	table := &rowTable{rows: []types.Row{{"a"}}}
	s := New(table)
	older := s.Push(types.Row{"x"}, 1)
	newest := s.Push(types.Row{"y"}, 7)
	require.True(t, s.RestoreByID(newest.ID))

	e, ok := s.RestoreLast()
	require.True(t, ok)
	assert.Equal(t, older.ID, e.ID, "the newest remaining entry is restored")
	assert.Equal(t, []string{"a", "x", "y"}, table.firstCells())

	_, ok = s.RestoreLast()
	assert.False(t, ok)
	assert.Equal(t, 3, table.Len())
}

func TestRestoreByID_IntoEmptyTable(t *testing.T) {
	table := &rowTable{}
	s := New(table)
	e := s.Push(types.Row{"only"}, 5)

	require.True(t, s.RestoreByID(e.ID))
	assert.Equal(t, []string{"only"}, table.firstCells())
}

func TestPurgeByID(t *testing.T) {
	table := &rowTable{}
	s := New(table)
	a := s.Push(types.Row{"a"}, 0)
	b := s.Push(types.Row{"b"}, 1)

	assert.True(t, s.PurgeByID(a.ID))
	assert.False(t, s.PurgeByID(a.ID))
	assert.Zero(t, table.Len(), "purge never touches the table")

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, b.ID, entries[0].ID)
}

func TestRestoreAll_AscendingIndexOrder(t *testing.T) {
	// Ten rows; rows 5, 2 and 8 were deleted in that order.
	table := &rowTable{}
	for _, i := range []int{0, 1, 3, 4, 6, 7, 9} {
		table.rows = append(table.rows, types.Row{fmt.Sprint(i)})
	}
	s := New(table)
	s.Push(types.Row{"5"}, 5)
	s.Push(types.Row{"2"}, 2)
	s.Push(types.Row{"8"}, 8)

	n := s.RestoreAll()

	assert.Equal(t, 3, n)
	assert.Zero(t, s.Len())
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}, table.firstCells())
	assert.Zero(t, s.RestoreAll(), "second call is a no-op")
}

func TestRestoreAll_EqualIndexesKeepPushOrder(t *testing.T) {
	table := &rowTable{}
	s := New(table)
	s.Push(types.Row{"first"}, 0)
	s.Push(types.Row{"second"}, 0)

	s.RestoreAll()
	assert.Equal(t, []string{"second", "first"}, table.firstCells())
}

func TestClear(t *testing.T) {
	p := NewMemoryPersister()
	s := New(&rowTable{}, WithPersister(p, "doc"))
	s.Push(types.Row{"a"}, 0)

	data, err := p.Load("doc")
	require.NoError(t, err)
	require.NotNil(t, data)

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Pending())

	data, err = p.Load("doc")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestPending_ExpiresLazily(t *testing.T) {
	clock := newClock()
	s := New(&rowTable{}, WithClock(clock.Now))

	a := s.Push(types.Row{"a"}, 0)
	clock.Advance(20 * time.Second)
	b := s.Push(types.Row{"b"}, 0)

	pending := s.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)

	clock.Advance(10 * time.Second)
	pending = s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
	assert.Equal(t, 2, s.Len(), "expiry keeps the entry")

	clock.Advance(time.Minute)
	assert.Empty(t, s.Pending())
	assert.Equal(t, 2, s.Len())
}

func TestPending_Dismiss(t *testing.T) {
	s := New(&rowTable{}, WithClock(newClock().Now), WithUndoTimeout(time.Second))
	e := s.Push(types.Row{"a"}, 0)
	s.Dismiss(e.ID)
	assert.Empty(t, s.Pending())
	assert.Equal(t, 1, s.Len())
}

func TestSerializeRoundTrip(t *testing.T) {
	clock := newClock()
	s := New(&rowTable{}, WithClock(clock.Now))
	a := s.Push(types.Row{"a", ""}, 4)
	clock.Advance(time.Second)
	b := s.Push(types.Row{}, 0)

	data, err := s.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(
		`[{"id":%q,"cells":["a",""],"index":4,"ts":%d},{"id":%q,"cells":[],"index":0,"ts":%d}]`,
		a.ID, a.CreatedAt.UnixMilli(), b.ID, b.CreatedAt.UnixMilli()), string(data))

	other := New(&rowTable{})
	require.NoError(t, other.Deserialize(data))
	entries := other.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, a.ID, entries[0].ID)
	assert.Equal(t, types.Row{"a", ""}, entries[0].Cells)
	assert.Equal(t, 4, entries[0].Index)
	assert.True(t, entries[0].CreatedAt.Equal(a.CreatedAt))
	assert.Empty(t, other.Pending(), "deserialized entries have no undo window")
}

func TestDeserialize_KeepsNewestWithinCapacity(t *testing.T) {
	s := New(&rowTable{}, WithCapacity(2))
	data := []byte(`[{"id":"1","cells":["a"],"index":0,"ts":1},{"id":"2","cells":["b"],"index":1,"ts":2},{"id":"3","cells":["c"],"index":2,"ts":3}]`)

	require.NoError(t, s.Deserialize(data))
	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0].ID)
	assert.Equal(t, "3", entries[1].ID)
}

func TestDeserialize_InvalidLeavesStackUnchanged(t *testing.T) {
	s := New(&rowTable{})
	s.Push(types.Row{"a"}, 0)

	assert.Error(t, s.Deserialize([]byte("{not json")))
	assert.Equal(t, 1, s.Len())
}

func TestPersister_ReloadsState(t *testing.T) {
	p := NewMemoryPersister()
	s := New(&rowTable{}, WithPersister(p, "data.csv"))
	e := s.Push(types.Row{"a"}, 2)

	reloaded := New(&rowTable{}, WithPersister(p, "data.csv"))
	entries := reloaded.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, e.ID, entries[0].ID)

	reloaded.PurgeByID(e.ID)
	again := New(&rowTable{}, WithPersister(p, "data.csv"))
	assert.Zero(t, again.Len())
}

func TestPersister_CorruptStateStartsEmpty(t *testing.T) {
	p := NewMemoryPersister()
	require.NoError(t, p.Store("k", []byte("garbage")))

	s := New(&rowTable{}, WithPersister(p, "k"))
	assert.Zero(t, s.Len())
}
