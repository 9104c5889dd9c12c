package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/paths"
	"github.com/mesh-intelligence/tabula/internal/server"
	"github.com/mesh-intelligence/tabula/internal/trash"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve documents, versions and editing sessions over HTTP",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			logger := commandLogger(cmd)
			opts := []server.Option{
				server.WithLogger(logger),
				server.WithSessionIdleTimeout(cfg.SessionIdle),
				server.WithTrashOptions(
					trash.WithCapacity(cfg.TrashCapacity),
					trash.WithUndoTimeout(cfg.UndoTimeout),
				),
			}
			if cfg.Backend != types.BackendMemory {
				c, err := backendConfig()
				if err != nil {
					return err
				}
				p, err := trash.NewFilePersister(paths.TrashDir(c.DataDir))
				if err != nil {
					return err
				}
				opts = append(opts, server.WithTrashPersister(p))
			}

			addr := cfg.Listen
			if listen != "" {
				addr = listen
			}
			if err := server.New(store, opts...).Run(cmd.Context(), addr); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, :8080)")
	return cmd
}
