package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tabula/internal/paths"
	"github.com/mesh-intelligence/tabula/pkg/backend"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend            string `yaml:"backend"`
	DataDir            string `yaml:"data_dir,omitempty"`
	MaxVersions        int    `yaml:"max_versions"`
	MaxBackups         int    `yaml:"max_backups"`
	Listen             string `yaml:"listen"`
	UndoTimeout        string `yaml:"undo_timeout"`
	TrashCapacity      int    `yaml:"trash_capacity"`
	SessionIdleTimeout string `yaml:"session_idle_timeout"`
	LogLevel           string `yaml:"log_level"`
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize tabula storage",
		Long:  "Create the configuration and data directories, then initialize the storage backend.",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	c, err := backendConfig()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, configFileExt)
	written, err := writeConfigIfMissing(configPath, c.DataDir)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	b, err := backend.Open(c)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if err := b.Detach(); err != nil {
		return fmt.Errorf("finalize storage: %w", err)
	}

	if flags.jsonMode {
		return printJSON(cmd, map[string]any{
			"config":         configPath,
			"config_written": written,
			"backend":        c.Backend,
			"data_dir":       c.DataDir,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tabula initialized (%s backend, data in %s)\n", c.Backend, c.DataDir)
	return nil
}

// writeConfigIfMissing creates config.yaml with the current settings if the
// file does not exist. It reports whether a file was written.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}

	data, err := yaml.Marshal(&configFile{
		Backend:            cfg.Backend,
		DataDir:            dataDir,
		MaxVersions:        cfg.MaxVersions,
		MaxBackups:         cfg.MaxBackups,
		Listen:             cfg.Listen,
		UndoTimeout:        cfg.UndoTimeout.String(),
		TrashCapacity:      cfg.TrashCapacity,
		SessionIdleTimeout: cfg.SessionIdle.String(),
		LogLevel:           cfg.LogLevel,
	})
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}
