// Package sqlite implements the SQLite storage backend for tabula.
package sqlite

// Schema DDL. Statements are idempotent so an existing database is reused.
const (
	createDocuments = `CREATE TABLE IF NOT EXISTS documents (
    name TEXT PRIMARY KEY,
    content BLOB NOT NULL,
    updated_at TEXT NOT NULL
);`

	createSnapshots = `CREATE TABLE IF NOT EXISTS snapshots (
    document TEXT NOT NULL,
    name TEXT NOT NULL,
    content BLOB NOT NULL,
    size INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (document, name)
);`
)

// Index DDL for common queries.
const (
	idxSnapshotsDocument = `CREATE INDEX IF NOT EXISTS idx_snapshots_document ON snapshots(document);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createDocuments,
	createSnapshots,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxSnapshotsDocument,
}
