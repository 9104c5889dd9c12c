// Package editor holds the in-memory state of one document being edited:
// its header, its data rows and the trash of rows deleted since the last
// save.
package editor

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/tabula/internal/trash"
	"github.com/mesh-intelligence/tabula/internal/versions"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Session is a document loaded for editing. Row indexes count data rows
// only, starting at zero below the header. A Session is not safe for
// concurrent use.
type Session struct {
	store  *versions.Store
	doc    string
	header types.Row
	rows   []types.Row
	trash  *trash.Stack
	dirty  bool
}

type config struct {
	trashOpts []trash.Option
}

// Option configures a Session.
type Option func(*config)

// WithTrash passes options to the session's trash stack.
func WithTrash(opts ...trash.Option) Option {
	return func(c *config) { c.trashOpts = append(c.trashOpts, opts...) }
}

// Open loads doc from store. A document that does not exist yet opens with
// no header and no rows.
func Open(store *versions.Store, doc string, opts ...Option) (*Session, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	all, err := store.ReadDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", doc, err)
	}
	s := &Session{store: store, doc: doc}
	if len(all) > 0 {
		s.header = all[0].Clone()
		s.rows = types.CloneRows(all[1:])
	}
	s.trash = trash.New(s, cfg.trashOpts...)
	return s, nil
}

// Doc returns the document name.
func (s *Session) Doc() string { return s.doc }

// Dirty reports whether the rows changed since the last load or save.
func (s *Session) Dirty() bool { return s.dirty }

// Header returns a copy of the header row.
func (s *Session) Header() types.Row { return s.header.Clone() }

// Width returns the header's column count.
func (s *Session) Width() int { return len(s.header) }

// Rows returns copies of the data rows padded to the header width.
func (s *Session) Rows() []types.Row {
	out := make([]types.Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Pad(len(s.header))
	}
	return out
}

// Len returns the number of data rows.
func (s *Session) Len() int { return len(s.rows) }

// Insert places cells at index, clamped to [0, Len()].
func (s *Session) Insert(index int, cells types.Row) {
	index = min(max(index, 0), len(s.rows))
	s.rows = slices.Insert(s.rows, index, cells.Clone())
	s.dirty = true
}

// InsertBlank inserts a row of empty cells at index, clamped to
// [0, Len()], and returns where it landed.
func (s *Session) InsertBlank(index int) int {
	index = min(max(index, 0), len(s.rows))
	s.Insert(index, make(types.Row, len(s.header)))
	return index
}

// DeleteRow moves data row i into the trash.
func (s *Session) DeleteRow(i int) (types.TrashEntry, error) {
	if i < 0 || i >= len(s.rows) {
		return types.TrashEntry{}, fmt.Errorf("%w: %d of %d", types.ErrInvalidRow, i, len(s.rows))
	}
	cells := s.rows[i]
	s.rows = slices.Delete(s.rows, i, i+1)
	s.dirty = true
	return s.trash.Push(cells, i), nil
}

// SetCell sets one cell of data row row. Short rows are padded up to col.
func (s *Session) SetCell(row, col int, value string) error {
	if row < 0 || row >= len(s.rows) {
		return fmt.Errorf("%w: %d of %d", types.ErrInvalidRow, row, len(s.rows))
	}
	if col < 0 || col >= max(len(s.header), len(s.rows[row])) {
		return fmt.Errorf("%w: %d", types.ErrInvalidColumn, col)
	}
	if col >= len(s.rows[row]) {
		s.rows[row] = s.rows[row].Pad(col + 1)
	}
	s.rows[row][col] = value
	s.dirty = true
	return nil
}

// Trash returns the session's trash stack.
func (s *Session) Trash() *trash.Stack { return s.trash }

// Save writes the header and the data rows, padded to the header width,
// through the version store, then empties the trash. It returns the ID of
// the snapshot taken of the previous content, empty on a first save.
func (s *Session) Save() (string, error) {
	var rows []types.Row
	if s.header != nil || len(s.rows) > 0 {
		rows = append([]types.Row{s.header.Clone()}, s.Rows()...)
	}
	id, err := s.store.Save(s.doc, rows)
	if err != nil {
		return "", err
	}
	s.trash.Clear()
	s.dirty = false
	return id, nil
}
