package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Mandatory result columns.
const (
	FieldClass      = "Class"
	FieldConfidence = "Confidence"
)

// ErrMalformedRecord is returned when a record does not match the
// prediction contract.
var ErrMalformedRecord = errors.New("malformed record")

// Field is one named extension column of a record.
type Field struct {
	Name  string
	Value Value
}

// ResultRecord is one prediction row. Class and Confidence are always
// present; every other column is kept in Fields in service order.
type ResultRecord struct {
	Class      string
	Confidence float64
	Fields     []Field
}

// NewResultRecord builds a record from ordered extension fields.
func NewResultRecord(class string, confidence float64, fields ...Field) ResultRecord {
	return ResultRecord{Class: class, Confidence: confidence, Fields: fields}
}

// Get returns the value of a column, including Class and Confidence.
func (r ResultRecord) Get(name string) (Value, bool) {
	switch name {
	case FieldClass:
		return StringValue(r.Class), true
	case FieldConfidence:
		return NumberValue(r.Confidence), true
	}
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Values returns every cell of the record.
func (r ResultRecord) Values() []Value {
	out := make([]Value, 0, len(r.Fields)+2)
	out = append(out, StringValue(r.Class), NumberValue(r.Confidence))
	for _, f := range r.Fields {
		out = append(out, f.Value)
	}
	return out
}

// set replaces an existing extension field or appends a new one.
func (r *ResultRecord) set(name string, v Value) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = v
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: v})
}

// MarshalJSON writes Class, Confidence, then the extension fields in order.
func (r ResultRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(name string, v Value) error {
		key, err := marshalString(name)
		if err != nil {
			return err
		}
		val, err := v.MarshalJSON()
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}
	if err := write(FieldClass, StringValue(r.Class)); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := write(FieldConfidence, NumberValue(r.Confidence)); err != nil {
		return nil, err
	}
	for _, f := range r.Fields {
		buf.WriteByte(',')
		if err := write(f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes one record object, preserving column order and
// enforcing the Class/Confidence contract.
func (r *ResultRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: record is not an object", ErrMalformedRecord)
	}

	out := ResultRecord{}
	var hasClass, hasConfidence bool
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}

		switch key {
		case FieldClass:
			if isNull(raw) || json.Unmarshal(raw, &out.Class) != nil {
				return fmt.Errorf("%w: Class must be a string", ErrMalformedRecord)
			}
			hasClass = true
		case FieldConfidence:
			var f float64
			if isNull(raw) || json.Unmarshal(raw, &f) != nil {
				return fmt.Errorf("%w: Confidence must be a number", ErrMalformedRecord)
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("%w: Confidence %v outside [0, 1]", ErrMalformedRecord, f)
			}
			out.Confidence = f
			hasConfidence = true
		default:
			var v Value
			if err := v.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("column %q: %w", key, err)
			}
			out.set(key, v)
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	if !hasClass {
		return fmt.Errorf("%w: missing Class", ErrMalformedRecord)
	}
	if !hasConfidence {
		return fmt.Errorf("%w: missing Confidence", ErrMalformedRecord)
	}
	*r = out
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
