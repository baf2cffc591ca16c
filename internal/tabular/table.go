// Package tabular reads uploaded sample sheets into header and rows.
package tabular

import (
	"errors"
	"io"
)

// ErrEmptyTable is returned when a file has no header row.
var ErrEmptyTable = errors.New("table has no header row")

// Table is a rectangular view of an uploaded sheet. Rows shorter than the
// header are padded with empty cells.
type Table struct {
	Header []string   `json:"header" msgpack:"header"`
	Rows   [][]string `json:"rows" msgpack:"rows"`
	// TotalRows counts every data row, including those dropped by a limit.
	TotalRows int `json:"totalRows" msgpack:"totalRows"`
}

// Reader decodes one file format.
type Reader interface {
	Name() string
	// Extensions lists the lower-case extensions, without dot, this reader handles.
	Extensions() []string
	// Read decodes at most limit data rows; limit <= 0 reads all of them.
	Read(r io.Reader, limit int) (*Table, error)
}

// appendRow normalizes row width and honors limit.
func (t *Table) appendRow(row []string, limit int) {
	t.TotalRows++
	if limit > 0 && len(t.Rows) >= limit {
		return
	}
	if len(row) < len(t.Header) {
		padded := make([]string, len(t.Header))
		copy(padded, row)
		row = padded
	} else if len(row) > len(t.Header) {
		row = row[:len(t.Header)]
	}
	t.Rows = append(t.Rows, row)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
