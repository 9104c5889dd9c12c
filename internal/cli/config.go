package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/tabula/internal/trash"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
)

// Config keys in config.yaml.
const (
	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyMaxVersions   = "max_versions"
	cfgKeyMaxBackups    = "max_backups"
	cfgKeyListen        = "listen"
	cfgKeyUndoTimeout   = "undo_timeout"
	cfgKeyTrashCapacity = "trash_capacity"
	cfgKeySessionIdle   = "session_idle_timeout"
	cfgKeyLogLevel      = "log_level"
)

const (
	defaultBackend     = types.BackendFilesystem
	defaultListen      = ":8080"
	defaultSessionIdle = 30 * time.Minute
)

// settings is the effective configuration after defaults and config.yaml.
type settings struct {
	Backend       string
	DataDir       string
	MaxVersions   int
	MaxBackups    int
	Listen        string
	UndoTimeout   time.Duration
	TrashCapacity int
	SessionIdle   time.Duration
	LogLevel      string
}

// loadConfig reads config.yaml from configDir with Viper. A missing file
// leaves every setting at its default.
func loadConfig(configDir string) (settings, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyMaxVersions, types.DefaultMaxVersions)
	v.SetDefault(cfgKeyMaxBackups, 0)
	v.SetDefault(cfgKeyListen, defaultListen)
	v.SetDefault(cfgKeyUndoTimeout, trash.DefaultUndoTimeout)
	v.SetDefault(cfgKeyTrashCapacity, trash.DefaultCapacity)
	v.SetDefault(cfgKeySessionIdle, defaultSessionIdle)
	v.SetDefault(cfgKeyLogLevel, "info")

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	return settings{
		Backend:       v.GetString(cfgKeyBackend),
		DataDir:       v.GetString(cfgKeyDataDir),
		MaxVersions:   v.GetInt(cfgKeyMaxVersions),
		MaxBackups:    v.GetInt(cfgKeyMaxBackups),
		Listen:        v.GetString(cfgKeyListen),
		UndoTimeout:   v.GetDuration(cfgKeyUndoTimeout),
		TrashCapacity: v.GetInt(cfgKeyTrashCapacity),
		SessionIdle:   v.GetDuration(cfgKeySessionIdle),
		LogLevel:      v.GetString(cfgKeyLogLevel),
	}, nil
}
