package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/mesh-intelligence/tabula"

// Version is the tabula release. Builds may override it with
// -ldflags "-X github.com/mesh-intelligence/tabula/internal/cli.Version=...".
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tabula version",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.jsonMode {
				return printJSON(cmd, map[string]string{"version": Version, "module": modulePath})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tabula v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
