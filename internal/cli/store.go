package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/paths"
	"github.com/mesh-intelligence/tabula/internal/versions"
	"github.com/mesh-intelligence/tabula/pkg/backend"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// backendConfig assembles the backend configuration from flags and cfg.
func backendConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	c := types.Config{
		Backend:     cfg.Backend,
		DataDir:     dataDir,
		MaxVersions: cfg.MaxVersions,
		MaxBackups:  cfg.MaxBackups,
	}
	if err := c.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	return newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
}

// openStore attaches the configured backend and wraps it in a version
// store. The caller must call the returned close function.
func openStore(cmd *cobra.Command) (*versions.Store, func(), error) {
	c, err := backendConfig()
	if err != nil {
		return nil, nil, err
	}
	b, err := backend.Open(c)
	if err != nil {
		return nil, nil, err
	}
	store := versions.New(b,
		versions.WithMaxVersions(c.MaxVersions),
		versions.WithMaxBackups(c.MaxBackups),
		versions.WithLogger(commandLogger(cmd)),
	)
	return store, func() { b.Detach() }, nil
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
