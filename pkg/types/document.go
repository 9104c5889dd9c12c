package types

// Row is one line of a document: an ordered sequence of cell values.
// Stored rows may be shorter than the header.
type Row []string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Pad returns a copy of the row extended with empty cells up to width.
// Rows already at or beyond width are copied unchanged.
func (r Row) Pad(width int) Row {
	n := len(r)
	if width > n {
		n = width
	}
	out := make(Row, n)
	copy(out, r)
	return out
}

// HeaderWidth returns the column count of the first row, or zero when rows
// is empty.
func HeaderWidth(rows []Row) int {
	if len(rows) == 0 {
		return 0
	}
	return len(rows[0])
}

// PadRows returns a copy of rows where every data row is padded with empty
// cells to the header width. The header itself is copied as is.
func PadRows(rows []Row) []Row {
	width := HeaderWidth(rows)
	out := make([]Row, len(rows))
	for i, r := range rows {
		if i == 0 {
			out[i] = r.Clone()
			continue
		}
		out[i] = r.Pad(width)
	}
	return out
}

// CloneRows returns a deep copy of rows.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
