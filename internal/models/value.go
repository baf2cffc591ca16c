// Package models contains domain types for the prediction dashboard.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueKind tells whether a Value holds a string or a number.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindNumber
)

// Value is a single cell of a result row: either a string or a number.
type Value struct {
	kind ValueKind
	str  string
	num  float64
}

// StringValue wraps a string cell.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue wraps a numeric cell.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Kind returns the kind of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsNumber reports whether the value is numeric.
func (v Value) IsNumber() bool { return v.kind == KindNumber }

// Number returns the numeric payload (0 for strings).
func (v Value) Number() float64 { return v.num }

// String returns the display form used for searching and sorting.
// Numbers use the shortest round-trip decimal, switching to exponent
// notation outside [1e-6, 1e21).
func (v Value) String() string {
	if v.kind == KindNumber {
		return FormatNumber(v.num)
	}
	return v.str
}

// Raw returns the underlying string or float64.
func (v Value) Raw() any {
	if v.kind == KindNumber {
		return v.num
	}
	return v.str
}

// FormatNumber renders f the way a JSON encoder would.
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b := strconv.AppendFloat(nil, f, format, -1, 64)
	if format == 'e' {
		// e-07 -> e-7
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return string(b)
}

// MarshalJSON encodes the value as a JSON string or number.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber {
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("unsupported number %v", v.num)
		}
		return []byte(FormatNumber(v.num)), nil
	}
	return marshalString(v.str)
}

// UnmarshalJSON accepts strings and numbers. null decodes to the empty
// string and booleans to "true"/"false"; arrays and objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrMalformedRecord)
	}
	switch data[0] {
	case 'n':
		*v = StringValue("")
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		*v = StringValue(strconv.FormatBool(b))
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		*v = StringValue(s)
		return nil
	case '[', '{':
		return fmt.Errorf("%w: nested values are not supported", ErrMalformedRecord)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("%w: invalid number %q", ErrMalformedRecord, data)
	}
	*v = NumberValue(f)
	return nil
}

// marshalString JSON-encodes s without HTML escaping.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
