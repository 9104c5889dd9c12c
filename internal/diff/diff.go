// Package diff computes line edit scripts between two versions of a text
// document using a longest-common-subsequence table.
package diff

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Lines returns the minimal edit script that transforms base into target.
// Lines are compared byte for byte. Every line of both inputs appears in the
// result exactly once, as Equal, Delete or Insert.
//
// The LCS table holds lengths for every suffix pair and costs O(len(base) *
// len(target)) time and memory, which suits line-oriented files of moderate
// size.
func Lines(base, target []string) []types.EditOp {
	n, m := len(base), len(target)
	width := m + 1
	lcs := make([]int, (n+1)*width)
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if base[i] == target[j] {
				lcs[i*width+j] = lcs[(i+1)*width+j+1] + 1
			} else {
				lcs[i*width+j] = max(lcs[(i+1)*width+j], lcs[i*width+j+1])
			}
		}
	}

	ops := make([]types.EditOp, 0, max(n, m))
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case base[i] == target[j]:
			ops = append(ops, types.EditOp{Tag: types.OpEqual, Line: base[i]})
			i++
			j++
		case lcs[(i+1)*width+j] > lcs[i*width+j+1]:
			ops = append(ops, types.EditOp{Tag: types.OpDelete, Line: base[i]})
			i++
		default:
			// Ties go to Insert.
			ops = append(ops, types.EditOp{Tag: types.OpInsert, Line: target[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, types.EditOp{Tag: types.OpDelete, Line: base[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, types.EditOp{Tag: types.OpInsert, Line: target[j]})
	}
	return ops
}

// SplitLines splits content into lines the way a line-by-line file reader
// sees them: a trailing "\r" is stripped from each line and a final newline
// does not produce an extra empty line. Empty content has no lines.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	data = bytes.TrimSuffix(data, []byte("\n"))
	parts := strings.Split(string(data), "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return parts
}

// Summary counts the operations of an edit script by tag.
type Summary struct {
	Equal   int `json:"equal"`
	Deleted int `json:"deleted"`
	Added   int `json:"added"`
}

// Identical reports whether the script contains no changes.
func (s Summary) Identical() bool {
	return s.Deleted == 0 && s.Added == 0
}

// Stats summarizes ops.
func Stats(ops []types.EditOp) Summary {
	var s Summary
	for _, op := range ops {
		switch op.Tag {
		case types.OpEqual:
			s.Equal++
		case types.OpDelete:
			s.Deleted++
		case types.OpInsert:
			s.Added++
		}
	}
	return s
}

// markers prefixes each rendered line with its change marker.
var markers = map[types.OpTag]string{
	types.OpEqual:  "  ",
	types.OpDelete: "- ",
	types.OpInsert: "+ ",
}

// Write renders ops one per line with a two-character marker: blank for
// unchanged, "- " for removed and "+ " for added lines.
func Write(w io.Writer, ops []types.EditOp) error {
	for _, op := range ops {
		if _, err := fmt.Fprintf(w, "%s%s\n", markers[op.Tag], op.Line); err != nil {
			return fmt.Errorf("writing diff line: %w", err)
		}
	}
	return nil
}
