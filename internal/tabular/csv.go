package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSVReader handles comma-separated sheets with a header row.
type CSVReader struct{}

func NewCSVReader() *CSVReader { return &CSVReader{} }

func (p *CSVReader) Name() string { return "csv" }

func (p *CSVReader) Extensions() []string { return []string{"csv"} }

func (p *CSVReader) Read(r io.Reader, limit int) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Header: header, Rows: make([][]string, 0)}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if isBlank(row) {
			continue
		}
		t.appendRow(row, limit)
	}
	return t, nil
}
