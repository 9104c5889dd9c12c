package fsstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// writeTemp writes data to a synced temp file next to path and returns its
// name. The caller owns the temp file.
func writeTemp(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tabula-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return tmpName, nil
}

// WriteAtomic replaces path with data using the temp-file, fsync, rename
// pattern so readers see either the old or the new content.
func WriteAtomic(path string, data []byte) error {
	tmpName, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// createExclusive writes data to path only if path does not exist yet.
// The content is published with a hard link, which fails atomically when the
// name is taken. Filesystems without hard links fall back to a stat check
// followed by rename, which is not race free.
func createExclusive(path string, data []byte) error {
	tmpName, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmpName)

	err = os.Link(tmpName, path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return types.ErrSnapshotExists
	}

	if _, statErr := os.Stat(path); statErr == nil {
		return types.ErrSnapshotExists
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
