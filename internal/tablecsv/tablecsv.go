// Package tablecsv converts between document rows and their CSV encoding.
// Ragged rows are allowed in both directions.
package tablecsv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Decode parses CSV content into rows. Rows keep their own cell count.
func Decode(data []byte) ([]types.Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []types.Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing csv: %w", err)
		}
		rows = append(rows, types.Row(rec))
	}
	return rows, nil
}

// blankRecord is how a row without content is written. A bare empty line
// would be skipped by the reader and the row lost.
const blankRecord = "\"\"\n"

// Encode renders rows as CSV with "\n" line endings. A row with no cells or
// a single empty cell is written as a quoted empty field and decodes back
// to one empty cell.
func Encode(rows []types.Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if len(row) == 0 || (len(row) == 1 && row[0] == "") {
			w.Flush()
			buf.WriteString(blankRecord)
			continue
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}
