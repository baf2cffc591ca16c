// Package export serializes prediction rows for download.
package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/oncoscope/backend/internal/models"
)

// Download file names and content types.
const (
	CSVFileName      = "cancer_predictions.csv"
	CSVContentType   = "text/csv; charset=utf-8"
	XLSXFileName     = "cancer_predictions.xlsx"
	XLSXContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	DefaultSheetName = "Predictions"
)

// Columns returns Class, Confidence, then every other column of records in
// first-seen order.
func Columns(records []models.ResultRecord) []string {
	cols, _ := models.DiscoverColumns(records)
	return cols
}

// ToDelimitedText renders records as comma-separated text. Every field is
// the JSON encoding of its raw value, so embedded commas, quotes and line
// breaks stay inside one field. A nil columns slice uses Columns(records).
func ToDelimitedText(records []models.ResultRecord, columns []string) (string, error) {
	var buf bytes.Buffer
	if err := WriteDelimited(&buf, records, columns); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteDelimited streams the delimited text to w. Rows are separated by a
// single newline and the last row has no trailing newline.
func WriteDelimited(w io.Writer, records []models.ResultRecord, columns []string) error {
	if columns == nil {
		columns = Columns(records)
	}
	bw := bufio.NewWriter(w)

	header := make([]string, len(columns))
	for i, c := range columns {
		h, err := headerCell(c)
		if err != nil {
			return err
		}
		header[i] = h
	}
	if _, err := bw.WriteString(strings.Join(header, ",")); err != nil {
		return err
	}

	cells := make([]string, len(columns))
	for _, r := range records {
		for i, c := range columns {
			cell, err := encodeCell(r, c)
			if err != nil {
				return err
			}
			cells[i] = cell
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if _, err := bw.WriteString(strings.Join(cells, ",")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// encodeCell JSON-encodes a field; a missing field is the empty string.
func encodeCell(r models.ResultRecord, column string) (string, error) {
	v, ok := r.Get(column)
	if !ok {
		return `""`, nil
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// headerCell leaves plain names bare and JSON-quotes names that would
// break the header row.
func headerCell(name string) (string, error) {
	if !strings.ContainsAny(name, ",\"\r\n") {
		return name, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(name); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
