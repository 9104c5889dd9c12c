package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/diff"
)

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <doc>",
		Short: "List the snapshots of a document, newest first",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			snaps, err := store.ListSnapshots(args[0])
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd, snaps)
			}
			if len(snaps) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no versions of %s\n", args[0])
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tCREATED\tSIZE")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%s\t%s\t%s (%s)\t%s\n",
					s.ID, s.Kind,
					s.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(s.CreatedAt),
					humanize.Bytes(uint64(s.SizeBytes)))
			}
			return tw.Flush()
		},
	}
}

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <doc> <snapshot>",
		Short: "Show the line changes from a snapshot to the current document",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := store.Diff(args[0], args[1])
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			if !res.Found {
				fmt.Fprintf(out, "%s: %s\n", res.CompareName, res.Note)
				return nil
			}
			if err := diff.Write(out, res.Ops); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d unchanged, %d removed, %d added\n",
				res.Summary.Equal, res.Summary.Deleted, res.Summary.Added)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore <doc> <snapshot>",
		Short: "Replace a document with a snapshot",
		Long: "Replace a document with a snapshot's content. The current content is kept\n" +
			"as a pre_restore_ snapshot first. Requires --yes.",
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errConfirmationRequired
			}
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Restore(args[0], args[1]); err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd, map[string]string{"doc": args[0], "restored": args[1]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm overwriting the document")
	return cmd
}

func newRmVersionCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rm-version <doc> <snapshot>",
		Short: "Delete a snapshot permanently",
		Long:  "Delete a snapshot permanently. Deleting a snapshot that does not exist succeeds. Requires --yes.",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errConfirmationRequired
			}
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.DeleteSnapshot(args[0], args[1]); err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd, map[string]string{"doc": args[0], "deleted": args[1]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s of %s\n", args[1], args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
