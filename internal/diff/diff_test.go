package diff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// rebuild concatenates the lines of ops whose tag is in keep.
func rebuild(ops []types.EditOp, keep ...types.OpTag) []string {
	var out []string
	for _, op := range ops {
		for _, k := range keep {
			if op.Tag == k {
				out = append(out, op.Line)
				break
			}
		}
	}
	return out
}

func linesWithTag(ops []types.EditOp, tag types.OpTag) []string {
	return rebuild(ops, tag)
}

func TestLines_Identical(t *testing.T) {
	in := []string{"h1,h2", "a,b", "c,d"}
	ops := Lines(in, in)

	require.Len(t, ops, len(in))
	for i, op := range ops {
		assert.Equal(t, types.OpEqual, op.Tag)
		assert.Equal(t, in[i], op.Line)
	}
}

func TestLines_EmptyInputs(t *testing.T) {
	t.Run("both empty", func(t *testing.T) {
		assert.Empty(t, Lines(nil, nil))
	})

	t.Run("empty base is all insert", func(t *testing.T) {
		ops := Lines(nil, []string{"x", "y"})
		assert.Equal(t, []types.EditOp{
			{Tag: types.OpInsert, Line: "x"},
			{Tag: types.OpInsert, Line: "y"},
		}, ops)
	})

	t.Run("empty target is all delete", func(t *testing.T) {
		ops := Lines([]string{"x", "y"}, nil)
		assert.Equal(t, []types.EditOp{
			{Tag: types.OpDelete, Line: "x"},
			{Tag: types.OpDelete, Line: "y"},
		}, ops)
	})
}

func TestLines_TiePrefersInsert(t *testing.T) {
	ops := Lines([]string{"a"}, []string{"b"})
	assert.Equal(t, []types.EditOp{
		{Tag: types.OpInsert, Line: "b"},
		{Tag: types.OpDelete, Line: "a"},
	}, ops)
}

func TestLines_Completeness(t *testing.T) {
	cases := []struct {
		name   string
		base   []string
		target []string
	}{
		{"replace middle", []string{"h", "a", "c"}, []string{"h", "b", "c"}},
		{"append", []string{"h", "a"}, []string{"h", "a", "b", "c"}},
		{"remove head", []string{"h", "a", "b"}, []string{"a", "b"}},
		{"reorder", []string{"1", "2", "3", "4"}, []string{"4", "3", "2", "1"}},
		{"duplicates", []string{"x", "x", "y", "x"}, []string{"x", "y", "x", "x"}},
		{"whitespace matters", []string{"a ", "b"}, []string{"a", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := Lines(tc.base, tc.target)
			assert.Equal(t, tc.base, nilIfEmpty(rebuild(ops, types.OpEqual, types.OpDelete)))
			assert.Equal(t, tc.target, nilIfEmpty(rebuild(ops, types.OpEqual, types.OpInsert)))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestLines_Minimal(t *testing.T) {
	base := []string{"a", "b", "c", "d", "e"}
	target := []string{"a", "c", "d", "x", "e"}
	ops := Lines(base, target)

	s := Stats(ops)
	assert.Equal(t, 4, s.Equal)
	assert.Equal(t, 1, s.Deleted)
	assert.Equal(t, 1, s.Added)
	assert.False(t, s.Identical())
}

func TestLines_ChangedContentScenario(t *testing.T) {
	a := []string{"h1,h2", "a,b", "c,d"}
	b := []string{"h1,h2", "c,d", "e,f"}
	ops := Lines(a, b)

	assert.Equal(t, []string{"a,b"}, linesWithTag(ops, types.OpDelete))
	assert.Equal(t, []string{"e,f"}, linesWithTag(ops, types.OpInsert))
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"blank line kept", "a\n\nb\n", []string{"a", "", "b"}},
		{"single newline", "\n", []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines([]byte(tt.in)))
		})
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []types.EditOp{
		{Tag: types.OpEqual, Line: "h"},
		{Tag: types.OpDelete, Line: "old"},
		{Tag: types.OpInsert, Line: "new"},
	})
	require.NoError(t, err)
	assert.Equal(t, "  h\n- old\n+ new\n", buf.String())
}
