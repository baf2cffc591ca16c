package tabular

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// JSONReader reads an array of flat objects. Columns follow first-seen key
// order across all objects.
type JSONReader struct{}

func NewJSONReader() *JSONReader { return &JSONReader{} }

func (p *JSONReader) Name() string { return "json" }

func (p *JSONReader) Extensions() []string { return []string{"json"} }

func (p *JSONReader) Read(r io.Reader, limit int) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("reading json: expected array of objects")
	}

	var (
		header []string
		seen   = make(map[string]int)
		objs   []map[string]string
	)
	for dec.More() {
		obj, keys, err := readObject(dec)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = len(header)
				header = append(header, k)
			}
		}
		objs = append(objs, obj)
	}
	if len(header) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{Header: header, Rows: make([][]string, 0)}
	for _, obj := range objs {
		row := make([]string, len(header))
		for k, v := range obj {
			row[seen[k]] = v
		}
		t.appendRow(row, limit)
	}
	return t, nil
}

func readObject(dec *json.Decoder) (map[string]string, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("reading json: expected object, got %v", tok)
	}

	obj := make(map[string]string)
	var keys []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("reading json: %w", err)
		}
		key := kt.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("reading json value %q: %w", key, err)
		}
		v, err := cellString(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("reading json value %q: %w", key, err)
		}
		if _, dup := obj[key]; !dup {
			keys = append(keys, key)
		}
		obj[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}
	return obj, keys, nil
}

func cellString(raw json.RawMessage) (string, error) {
	var v any
	d := json.NewDecoder(bytesReader(raw))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return "", err
	}
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("nested values are not supported")
	}
}
