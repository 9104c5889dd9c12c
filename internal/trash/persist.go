package trash

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mesh-intelligence/tabula/internal/fsstore"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Persister stores serialized stacks by key. Load returns nil data and no
// error when nothing is stored under key.
type Persister interface {
	Load(key string) ([]byte, error)
	Store(key string, data []byte) error
	Remove(key string) error
}

// MemoryPersister keeps state in process memory. It lives as long as the
// process, like a browser tab's session storage.
type MemoryPersister struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[string][]byte)}
}

func (p *MemoryPersister) Load(key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (p *MemoryPersister) Store(key string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = append([]byte(nil), data...)
	return nil
}

func (p *MemoryPersister) Remove(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return nil
}

// FilePersister keeps each key in <dir>/<key>.json. Keys use the snapshot
// name alphabet so they cannot escape dir.
type FilePersister struct {
	dir string
}

// NewFilePersister creates the directory if needed and returns a persister
// rooted there.
func NewFilePersister(dir string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating trash directory: %w", err)
	}
	return &FilePersister{dir: dir}, nil
}

func (p *FilePersister) path(key string) (string, error) {
	if err := types.ValidateSnapshotName(key); err != nil {
		return "", fmt.Errorf("trash key %q: %w", key, err)
	}
	return filepath.Join(p.dir, key+".json"), nil
}

func (p *FilePersister) Load(key string) ([]byte, error) {
	path, err := p.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading trash state: %w", err)
	}
	return data, nil
}

func (p *FilePersister) Store(key string, data []byte) error {
	path, err := p.path(key)
	if err != nil {
		return err
	}
	return fsstore.WriteAtomic(path, data)
}

func (p *FilePersister) Remove(key string) error {
	path, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing trash state: %w", err)
	}
	return nil
}
