package types

import "time"

// TrashEntry is a soft-deleted row kept for recovery within one editing
// session.
type TrashEntry struct {
	// ID is a UUID v7, generated on push.
	ID string

	// Cells are the row's values at deletion time.
	Cells Row

	// Index is the row's position among the data rows when it was deleted.
	Index int

	// CreatedAt is the deletion time.
	CreatedAt time.Time
}
