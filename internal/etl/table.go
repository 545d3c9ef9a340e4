// Package etl loads raw customer tables, normalizes heterogeneous
// schemas to a canonical column set, and derives the behavioral
// features the rest of the pipeline consumes.
package etl

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/customer-lifecycle/internal/common"
)

// Table is a raw tabular record set as loaded from a source. Values
// are kept as strings until normalization decides their types.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ExtraColumns returns the input columns the normalizer does not
// consume, in their original order. These pass through enrichment
// unchanged and are emitted after the canonical columns on export.
func (t *Table) ExtraColumns() []string {
	recognized := recognizedColumns(detectSchema(t))
	var extras []string
	for _, c := range t.Columns {
		if _, ok := recognized[c]; !ok {
			extras = append(extras, c)
		}
	}
	return extras
}

// LoadCSV reads a CSV file into a Table. The first row is the header.
// Ragged or unreadable input is a fatal load error; no partial table
// is returned.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnreadableSource, err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(f)
}

// ReadCSV reads CSV data from r into a Table.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, common.ErrEmptyDataset
		}
		return nil, fmt.Errorf("%w: %v", common.ErrUnreadableSource, err)
	}

	table := &Table{Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMalformedRow, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
