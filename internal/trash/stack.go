// Package trash keeps recently deleted rows of an editing session so they
// can be restored, one at a time or all at once. The stack is bounded; the
// oldest entry is evicted when a push would exceed the capacity.
//
// A Stack is not safe for concurrent use. Callers serialize access the same
// way they serialize access to the rows it restores into.
package trash

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Defaults for a new Stack.
const (
	DefaultCapacity    = 200
	DefaultUndoTimeout = 30 * time.Second
)

// Table is the live row set entries are restored into. Indexes count data
// rows only; the header is not part of the table.
type Table interface {
	Len() int
	Insert(index int, cells types.Row)
}

// Stack is a bounded, ordered collection of trash entries, oldest first.
type Stack struct {
	table       Table
	capacity    int
	undoTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger

	persister Persister
	key       string

	entries []types.TrashEntry
	// deadlines holds the quick-undo expiry of entries whose window is open.
	deadlines map[string]time.Time
}

// Option configures a Stack.
type Option func(*Stack)

// WithCapacity sets the maximum number of entries. Values below one are
// ignored.
func WithCapacity(n int) Option {
	return func(s *Stack) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithUndoTimeout sets how long a pushed entry stays in Pending.
func WithUndoTimeout(d time.Duration) Option {
	return func(s *Stack) { s.undoTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Stack) { s.now = now }
}

// WithPersister stores the serialized stack under key after every mutation.
// New loads any state already stored under key.
func WithPersister(p Persister, key string) Option {
	return func(s *Stack) {
		s.persister = p
		s.key = key
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stack) { s.logger = logger }
}

// New creates an empty stack that restores into table.
func New(table Table, opts ...Option) *Stack {
	s := &Stack{
		table:       table,
		capacity:    DefaultCapacity,
		undoTimeout: DefaultUndoTimeout,
		now:         time.Now,
		logger:      slog.New(slog.DiscardHandler),
		deadlines:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

// Push records a deleted row and opens its quick-undo window. When the
// stack is full the oldest entry is evicted first.
func (s *Stack) Push(cells types.Row, index int) types.TrashEntry {
	for len(s.entries) >= s.capacity {
		evicted := s.entries[0]
		s.entries = s.entries[1:]
		delete(s.deadlines, evicted.ID)
		s.logger.Debug("trash entry evicted", "id", evicted.ID, "index", evicted.Index)
	}

	now := s.now()
	entry := types.TrashEntry{
		ID:        newID(),
		Cells:     cells.Clone(),
		Index:     max(index, 0),
		CreatedAt: now,
	}
	s.entries = append(s.entries, entry)
	if s.undoTimeout > 0 {
		s.deadlines[entry.ID] = now.Add(s.undoTimeout)
	}
	s.persist()
	return entry
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Pending returns the entries whose quick-undo window is still open, oldest
// first. An expired window only hides the entry from Pending; it stays in
// the stack.
func (s *Stack) Pending() []types.TrashEntry {
	now := s.now()
	var out []types.TrashEntry
	for _, e := range s.entries {
		deadline, ok := s.deadlines[e.ID]
		if !ok {
			continue
		}
		if !now.Before(deadline) {
			delete(s.deadlines, e.ID)
			continue
		}
		out = append(out, cloneEntry(e))
	}
	return out
}

// Dismiss closes the quick-undo window of id early.
func (s *Stack) Dismiss(id string) {
	delete(s.deadlines, id)
}

func (s *Stack) indexOf(id string) int {
	return slices.IndexFunc(s.entries, func(e types.TrashEntry) bool { return e.ID == id })
}

func (s *Stack) remove(i int) types.TrashEntry {
	e := s.entries[i]
	s.entries = slices.Delete(s.entries, i, i+1)
	delete(s.deadlines, e.ID)
	return e
}

// insert puts cells back at index, clamped to the current table length.
func (s *Stack) insert(e types.TrashEntry) {
	at := min(max(e.Index, 0), s.table.Len())
	s.table.Insert(at, e.Cells.Clone())
}

// RestoreByID removes the entry and reinserts its row. It reports false when
// no entry has that ID.
func (s *Stack) RestoreByID(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.insert(s.remove(i))
	s.persist()
	return true
}

// RestoreLast removes the most recently pushed entry and reinserts its row
// at its clamped index. It reports false when the stack is empty.
func (s *Stack) RestoreLast() (types.TrashEntry, bool) {
	if len(s.entries) == 0 {
		return types.TrashEntry{}, false
	}
	e := s.remove(len(s.entries) - 1)
	s.insert(e)
	s.persist()
	return cloneEntry(e), true
}

// PurgeByID removes the entry permanently. It reports false when no entry
// has that ID.
func (s *Stack) PurgeByID(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.remove(i)
	s.persist()
	return true
}

// RestoreAll reinserts every entry in ascending original index order, so
// rows deleted from the top of a table go back above rows deleted below
// them, and empties the stack. It returns the number of rows restored.
func (s *Stack) RestoreAll() int {
	if len(s.entries) == 0 {
		return 0
	}
	ordered := slices.Clone(s.entries)
	slices.SortStableFunc(ordered, func(a, b types.TrashEntry) int {
		return a.Index - b.Index
	})
	for _, e := range ordered {
		s.insert(e)
	}
	s.entries = nil
	clear(s.deadlines)
	s.persist()
	return len(ordered)
}

// Clear purges every entry and removes any persisted state.
func (s *Stack) Clear() {
	s.entries = nil
	clear(s.deadlines)
	if s.persister == nil {
		return
	}
	if err := s.persister.Remove(s.key); err != nil {
		s.logger.Warn("trash state not removed", "key", s.key, "error", err)
	}
}

// Entries returns a copy of all entries, oldest first.
func (s *Stack) Entries() []types.TrashEntry {
	out := make([]types.TrashEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Len returns the number of entries.
func (s *Stack) Len() int {
	return len(s.entries)
}

// Capacity returns the maximum number of entries.
func (s *Stack) Capacity() int {
	return s.capacity
}

func cloneEntry(e types.TrashEntry) types.TrashEntry {
	e.Cells = e.Cells.Clone()
	return e
}

// wireEntry is the serialized form of an entry. ts is milliseconds since
// the Unix epoch.
type wireEntry struct {
	ID    string   `json:"id"`
	Cells []string `json:"cells"`
	Index int      `json:"index"`
	TS    int64    `json:"ts"`
}

// Serialize encodes the entries, oldest first, as a JSON array.
func (s *Stack) Serialize() ([]byte, error) {
	wire := make([]wireEntry, len(s.entries))
	for i, e := range s.entries {
		cells := []string(e.Cells)
		if cells == nil {
			cells = []string{}
		}
		wire[i] = wireEntry{ID: e.ID, Cells: cells, Index: e.Index, TS: e.CreatedAt.UnixMilli()}
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding trash: %w", err)
	}
	return data, nil
}

// Deserialize replaces the entries with the decoded array. Restored entries
// have no quick-undo window. When data holds more entries than the capacity
// only the newest are kept. On error the stack is unchanged.
func (s *Stack) Deserialize(data []byte) error {
	var wire []wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding trash: %w", err)
	}
	if len(wire) > s.capacity {
		wire = wire[len(wire)-s.capacity:]
	}
	entries := make([]types.TrashEntry, 0, len(wire))
	for _, w := range wire {
		if w.ID == "" {
			w.ID = newID()
		}
		entries = append(entries, types.TrashEntry{
			ID:        w.ID,
			Cells:     types.Row(w.Cells),
			Index:     max(w.Index, 0),
			CreatedAt: time.UnixMilli(w.TS),
		})
	}
	s.entries = entries
	clear(s.deadlines)
	return nil
}

func (s *Stack) load() {
	if s.persister == nil {
		return
	}
	data, err := s.persister.Load(s.key)
	if err != nil {
		s.logger.Warn("trash state not loaded", "key", s.key, "error", err)
		return
	}
	if data == nil {
		return
	}
	if err := s.Deserialize(data); err != nil {
		s.logger.Warn("trash state discarded", "key", s.key, "error", err)
	}
}

func (s *Stack) persist() {
	if s.persister == nil {
		return
	}
	data, err := s.Serialize()
	if err == nil {
		err = s.persister.Store(s.key, data)
	}
	if err != nil {
		s.logger.Warn("trash state not stored", "key", s.key, "error", err)
	}
}
