package types

import "errors"

// Config holds backend selection and parameters for Backend.Attach and the
// version store built on top of it.
type Config struct {
	Backend     string `json:"backend" yaml:"backend"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	MaxVersions int    `json:"max_versions" yaml:"max_versions"`
	MaxBackups  int    `json:"max_backups" yaml:"max_backups"`
}

// Supported backend names.
const (
	BackendFilesystem = "filesystem"
	BackendSQLite     = "sqlite"
	BackendMemory     = "memory"
)

// DefaultMaxVersions is the retention cap for save-snapshots per document.
const DefaultMaxVersions = 20

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrMaxVersionsInvalid = errors.New("max versions must not be negative")
	ErrMaxBackupsInvalid  = errors.New("max backups must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendFilesystem: true,
	BackendSQLite:     true,
	BackendMemory:     true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.MaxVersions < 0 {
		return ErrMaxVersionsInvalid
	}
	if c.MaxBackups < 0 {
		return ErrMaxBackupsInvalid
	}
	return nil
}
