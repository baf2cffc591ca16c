package tabular

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXReader reads the first sheet of a workbook.
type XLSXReader struct{}

func NewXLSXReader() *XLSXReader { return &XLSXReader{} }

func (p *XLSXReader) Name() string { return "xlsx" }

func (p *XLSXReader) Extensions() []string { return []string{"xlsx"} }

func (p *XLSXReader) Read(r io.Reader, limit int) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	var t *Table
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
		}
		if t == nil {
			if isBlank(cols) {
				continue
			}
			t = &Table{Header: cols, Rows: make([][]string, 0)}
			continue
		}
		if isBlank(cols) {
			continue
		}
		t.appendRow(cols, limit)
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrEmptyTable
	}
	return t, nil
}
