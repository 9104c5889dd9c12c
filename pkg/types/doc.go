// Package types defines the Backend interface, document, snapshot and trash
// entity types, identifier validation, and the standard error values for the
// tabula document store.
package types
