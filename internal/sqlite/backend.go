package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// dbFileName is the database file inside DataDir.
const dbFileName = "tabula.db"

// busyTimeoutMS bounds how long a writer waits for another process's lock.
const busyTimeoutMS = 5000

// Backend implements types.Backend with documents and snapshots stored as
// blobs in one SQLite database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens (creating if needed) the database in DataDir and applies the
// schema. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return err
	}
	// A single connection keeps per-connection pragmas in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS)); err != nil {
		db.Close()
		return fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return fmt.Errorf("enabling WAL: %w", err)
	}
	for _, ddl := range append(append([]string{}, schemaDDL...), indexDDL...) {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach closes the database. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// conn returns the open database, or ErrBackendDetached. The caller must hold
// b.mu.
func (b *Backend) conn() (*sql.DB, error) {
	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	return b.db, nil
}

// ReadDocument returns a document's content.
func (b *Backend) ReadDocument(doc string) ([]byte, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	var content []byte
	err = db.QueryRow("SELECT content FROM documents WHERE name = ?", doc).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", doc, err)
	}
	return content, nil
}

// WriteDocument upserts a document's content.
func (b *Backend) WriteDocument(doc string, data []byte) error {
	if err := types.ValidateDocumentName(doc); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	db, err := b.conn()
	if err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err = db.Exec(`
		INSERT INTO documents (name, content, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at`,
		doc, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing document %s: %w", doc, err)
	}
	return nil
}

// ListDocuments returns all document names in ascending order.
func (b *Backend) ListDocuments() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query("SELECT name FROM documents ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning document name: %w", err)
		}
		docs = append(docs, name)
	}
	return docs, rows.Err()
}

// CreateSnapshot inserts a snapshot; an existing name yields ErrSnapshotExists.
func (b *Backend) CreateSnapshot(doc, name string, data []byte) error {
	if err := validate(doc, name); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	db, err := b.conn()
	if err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	res, err := db.Exec(`
		INSERT INTO snapshots (document, name, content, size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document, name) DO NOTHING`,
		doc, name, data, len(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting snapshot %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting snapshot %s: %w", name, err)
	}
	if n == 0 {
		return types.ErrSnapshotExists
	}
	return nil
}

// ReadSnapshot returns a snapshot's content.
func (b *Backend) ReadSnapshot(doc, name string) ([]byte, error) {
	if err := validate(doc, name); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	var content []byte
	err = db.QueryRow(
		"SELECT content FROM snapshots WHERE document = ? AND name = ?", doc, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", name, err)
	}
	return content, nil
}

// ListSnapshots returns the document's snapshots in insertion order.
func (b *Backend) ListSnapshots(doc string) ([]types.SnapshotInfo, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT name, size, created_at FROM snapshots WHERE document = ? ORDER BY rowid", doc)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	infos := []types.SnapshotInfo{}
	for rows.Next() {
		var info types.SnapshotInfo
		var createdAt string
		if err := rows.Scan(&info.Name, &info.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		info.ModTime, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing snapshot created_at: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteSnapshot removes a snapshot row. Missing rows are ignored.
func (b *Backend) DeleteSnapshot(doc, name string) error {
	if err := validate(doc, name); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	db, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := db.Exec(
		"DELETE FROM snapshots WHERE document = ? AND name = ?", doc, name); err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", name, err)
	}
	return nil
}

func validate(doc, name string) error {
	if err := types.ValidateDocumentName(doc); err != nil {
		return err
	}
	return types.ValidateSnapshotName(name)
}
