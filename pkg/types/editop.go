package types

import "fmt"

// OpTag is the kind of a single edit script operation.
type OpTag int

// Edit script operation tags.
const (
	OpEqual OpTag = iota
	OpDelete
	OpInsert
)

var opTagNames = map[OpTag]string{
	OpEqual:  "equal",
	OpDelete: "delete",
	OpInsert: "insert",
}

func (t OpTag) String() string {
	if name, ok := opTagNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the tag by name so edit scripts read well as JSON.
func (t OpTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tag name written by MarshalText.
func (t *OpTag) UnmarshalText(text []byte) error {
	for tag, name := range opTagNames {
		if name == string(text) {
			*t = tag
			return nil
		}
	}
	return fmt.Errorf("unknown edit op tag %q", text)
}

// EditOp is one line of an edit script.
type EditOp struct {
	Tag  OpTag  `json:"tag"`
	Line string `json:"line"`
}
