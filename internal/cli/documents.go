package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/tablecsv"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List stored documents",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			docs, err := store.ListDocuments()
			if err != nil {
				return err
			}
			if flags.jsonMode {
				if docs == nil {
					docs = []string{}
				}
				return printJSON(cmd, docs)
			}
			for _, doc := range docs {
				fmt.Fprintln(cmd.OutOrStdout(), doc)
			}
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <doc>",
		Short: "Print a document as a table",
		Long:  "Print a document's rows, padded to the header width. A document that was never saved prints nothing.",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			rows, err := store.ReadDocument(args[0])
			if err != nil {
				return err
			}
			rows = types.PadRows(rows)
			if flags.jsonMode {
				return printJSON(cmd, map[string]any{"doc": args[0], "rows": rows})
			}
			return writeTable(cmd.OutOrStdout(), rows)
		},
	}
}

// writeTable prints rows as tab-aligned columns.
func writeTable(w io.Writer, rows []types.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func newExportCmd() *cobra.Command {
	var snapshot string
	cmd := &cobra.Command{
		Use:   "export <doc>",
		Short: "Write a document or one of its snapshots as CSV to stdout",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			var data []byte
			if snapshot != "" {
				data, err = store.ReadSnapshot(args[0], snapshot)
			} else {
				data, err = store.ReadRaw(args[0])
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&snapshot, "version", "", "export this snapshot instead of the current document")
	return cmd
}

func newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <doc> [file|-]",
		Short: "Save CSV content as the new version of a document",
		Long: "Read CSV from file, or from stdin when the file is \"-\" or omitted,\n" +
			"snapshot the current document, apply the retention cap and write the new content.\n" +
			"Data rows are padded to the header width.",
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[1:])
			if err != nil {
				return err
			}
			rows, err := tablecsv.Decode(data)
			if err != nil {
				return usageError{err}
			}

			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			id, err := store.Save(args[0], types.PadRows(rows))
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd, map[string]any{"doc": args[0], "rows": len(rows), "snapshot": id})
			}
			if id == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d rows, first version)\n", args[0], len(rows))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d rows, previous content in %s)\n", args[0], len(rows), id)
			return nil
		},
	}
}
