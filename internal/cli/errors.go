package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

var errConfirmationRequired = errors.New("destructive operation: pass --yes to confirm")

// usageError marks bad arguments or flags.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// usageArgs wraps an argument validator so its failures count as user
// errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// userErrors are failures caused by what the user asked for rather than by
// the system.
var userErrors = []error{
	errConfirmationRequired,
	types.ErrInvalidDocumentName,
	types.ErrInvalidSnapshotName,
	types.ErrInvalidRow,
	types.ErrInvalidColumn,
	types.ErrDocumentNotFound,
	types.ErrSnapshotNotFound,
	types.ErrBackendEmpty,
	types.ErrBackendUnknown,
	types.ErrMaxVersionsInvalid,
	types.ErrMaxBackupsInvalid,
}

// exitCode maps err to exitUserError or exitSysError.
func exitCode(err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		return exitUserError
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}
