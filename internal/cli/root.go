// Package cli implements the tabula command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/paths"
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

var flags rootFlags

// cfg is the configuration loaded by the root command before any
// subcommand runs.
var cfg settings

// NewRootCmd creates the top-level "tabula" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tabula",
		Short: "A versioned store for CSV documents",
		Long: "Tabula keeps CSV documents with a snapshot before every save,\n" +
			"a bounded history, diffs against any snapshot and restore with backup.",
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			configDir, err := paths.ResolveConfigDir(flags.configDir)
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}
			loaded, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/tables)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newDocsCmd(),
		newShowCmd(),
		newExportCmd(),
		newSaveCmd(),
		newVersionsCmd(),
		newDiffCmd(),
		newRestoreCmd(),
		newRmVersionCmd(),
		newServeCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
// SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes args and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "tabula:", err)
		return exitCode(err)
	}
	return exitSuccess
}
