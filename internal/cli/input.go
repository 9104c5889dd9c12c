package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// readInput reads the file named by args[0], or the command's stdin when
// args is empty or names "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, usageError{fmt.Errorf("read %s: %w", args[0], err)}
	}
	return data, nil
}
