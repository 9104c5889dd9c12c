package types

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	documentNameRe = regexp.MustCompile(`(?i)^[A-Za-z0-9._-]+\.csv$`)
	snapshotNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// ValidateDocumentName rejects anything other than a plain basename made of
// letters, digits, dot, underscore and hyphen, ending in .csv.
func ValidateDocumentName(name string) error {
	if !documentNameRe.MatchString(name) {
		return ErrInvalidDocumentName
	}
	return nil
}

// ValidateSnapshotName rejects names with path separators or characters
// outside letters, digits, dot, underscore and hyphen.
func ValidateSnapshotName(name string) error {
	if name == "." || name == ".." || !snapshotNameRe.MatchString(name) {
		return ErrInvalidSnapshotName
	}
	return nil
}

// DocumentBase returns the document name without its extension; it keys the
// document's snapshot collection.
func DocumentBase(doc string) string {
	return strings.TrimSuffix(doc, filepath.Ext(doc))
}
