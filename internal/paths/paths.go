// Package paths resolves where tabula keeps its configuration and its
// documents.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName names the per-user configuration directory.
const appName = "tabula"

// DefaultDataDirName is the CWD-relative data directory used when nothing
// else selects one.
const DefaultDataDirName = "tables"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "TABULA_CONFIG_DIR"
	EnvDataDir   = "TABULA_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// xdgDir returns $<env>/tabula, falling back to ~/<fallback...>/tabula.
func xdgDir(env string, fallback ...string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	parts := append(append([]string{home}, fallback...), appName)
	return filepath.Join(parts...), nil
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/tabula (fallback ~/.config/tabula)
// macOS:   ~/Library/Application Support/tabula
// Windows: %APPDATA%/tabula
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// ResolveConfigDir applies flag > TABULA_CONFIG_DIR > DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir applies flag > config data_dir > TABULA_DATA_DIR >
// $(CWD)/tables.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, dir := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if dir != "" {
			return filepath.Abs(dir)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// TrashDir returns where file-backed trash state lives for dataDir.
func TrashDir(dataDir string) string {
	return filepath.Join(dataDir, ".trash")
}
