// Package fsstore implements the filesystem storage backend: documents are
// CSV files in the data directory and each document's snapshots live in
// versions/<name>_versions/ beside them.
package fsstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

const (
	versionsDirName = "versions"
	versionsSuffix  = "_versions"
)

// Backend implements types.Backend on a directory tree.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	dataDir  string
}

// NewBackend creates a new filesystem backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach creates the data directory and its versions root if needed.
// Returns ErrAlreadyAttached if already attached.
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
	if err := os.MkdirAll(filepath.Join(dataDir, versionsDirName), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	b.dataDir = dataDir
	b.attached = true
	return nil
}

// Detach marks the backend detached. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attached = false
	return nil
}

// DataDir returns the attached data directory.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dataDir
}

// root returns the data directory or ErrBackendDetached.
func (b *Backend) root() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return "", types.ErrBackendDetached
	}
	return b.dataDir, nil
}

func (b *Backend) documentPath(doc string) (string, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return "", err
	}
	root, err := b.root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, doc), nil
}

func (b *Backend) versionsDir(doc string) (string, error) {
	if err := types.ValidateDocumentName(doc); err != nil {
		return "", err
	}
	root, err := b.root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, versionsDirName, types.DocumentBase(doc)+versionsSuffix), nil
}

func (b *Backend) snapshotPath(doc, name string) (string, error) {
	if err := types.ValidateSnapshotName(name); err != nil {
		return "", err
	}
	dir, err := b.versionsDir(doc)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ReadDocument returns the document file's bytes.
func (b *Backend) ReadDocument(doc string) ([]byte, error) {
	path, err := b.documentPath(doc)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", doc, err)
	}
	return data, nil
}

// WriteDocument atomically replaces the document file.
func (b *Backend) WriteDocument(doc string, data []byte) error {
	path, err := b.documentPath(doc)
	if err != nil {
		return err
	}
	if err := WriteAtomic(path, data); err != nil {
		return fmt.Errorf("writing %s: %w", doc, err)
	}
	return nil
}

// ListDocuments returns the names of the CSV files in the data directory.
func (b *Backend) ListDocuments() ([]string, error) {
	root, err := b.root()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	var docs []string
	for _, e := range entries {
		if e.IsDir() || types.ValidateDocumentName(e.Name()) != nil {
			continue
		}
		docs = append(docs, e.Name())
	}
	sort.Strings(docs)
	return docs, nil
}

// CreateSnapshot writes a new snapshot file, refusing to replace one.
func (b *Backend) CreateSnapshot(doc, name string, data []byte) error {
	path, err := b.snapshotPath(doc, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating versions directory: %w", err)
	}
	if err := createExclusive(path, data); err != nil {
		if errors.Is(err, types.ErrSnapshotExists) {
			return err
		}
		return fmt.Errorf("writing snapshot %s: %w", name, err)
	}
	return nil
}

// ReadSnapshot returns a snapshot file's bytes.
func (b *Backend) ReadSnapshot(doc, name string) ([]byte, error) {
	path, err := b.snapshotPath(doc, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", name, err)
	}
	return data, nil
}

// ListSnapshots returns the .csv files in the document's versions directory
// in directory order. Temp files are skipped.
func (b *Backend) ListSnapshots(doc string) ([]types.SnapshotInfo, error) {
	dir, err := b.versionsDir(doc)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []types.SnapshotInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	infos := make([]types.SnapshotInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".csv") {
			continue
		}
		fi, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// Removed by a concurrent rotation.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat snapshot %s: %w", name, err)
		}
		infos = append(infos, types.SnapshotInfo{
			Name:    name,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	return infos, nil
}

// DeleteSnapshot removes a snapshot file. Missing files are ignored.
func (b *Backend) DeleteSnapshot(doc, name string) error {
	path, err := b.snapshotPath(doc, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting snapshot %s: %w", name, err)
	}
	return nil
}
