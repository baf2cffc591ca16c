package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultRecord_UnmarshalJSON(t *testing.T) {
	t.Run("preserves column order", func(t *testing.T) {
		var r ResultRecord
		err := json.Unmarshal([]byte(`{"gene_b":2,"gene_a":"x","Class":"Lung","Confidence":0.95,"Sample":"S-1"}`), &r)
		require.NoError(t, err)

		assert.Equal(t, "Lung", r.Class)
		assert.Equal(t, 0.95, r.Confidence)
		require.Len(t, r.Fields, 3)
		assert.Equal(t, "gene_b", r.Fields[0].Name)
		assert.Equal(t, "gene_a", r.Fields[1].Name)
		assert.Equal(t, "Sample", r.Fields[2].Name)
		assert.True(t, r.Fields[0].Value.IsNumber())
		assert.Equal(t, "x", r.Fields[1].Value.String())
	})

	t.Run("null and bool become strings", func(t *testing.T) {
		var r ResultRecord
		require.NoError(t, json.Unmarshal([]byte(`{"Class":"Normal","Confidence":1,"a":null,"b":true}`), &r))

		a, ok := r.Get("a")
		require.True(t, ok)
		assert.Equal(t, "", a.String())
		b, _ := r.Get("b")
		assert.Equal(t, "true", b.String())
	})

	tests := []struct {
		name string
		body string
	}{
		{"missing class", `{"Confidence":0.5}`},
		{"missing confidence", `{"Class":"Lung"}`},
		{"class not a string", `{"Class":3,"Confidence":0.5}`},
		{"confidence not a number", `{"Class":"Lung","Confidence":"high"}`},
		{"confidence above one", `{"Class":"Lung","Confidence":1.2}`},
		{"confidence below zero", `{"Class":"Lung","Confidence":-0.1}`},
		{"nested value", `{"Class":"Lung","Confidence":0.1,"x":[1,2]}`},
		{"not an object", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r ResultRecord
			err := json.Unmarshal([]byte(tt.body), &r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord), "got %v", err)
		})
	}
}

func TestResultRecord_MarshalJSON(t *testing.T) {
	r := NewResultRecord("Breast", 0.85,
		Field{Name: "Note", Value: StringValue("a<b")},
		Field{Name: "Age", Value: NumberValue(54)},
	)
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"Class":"Breast","Confidence":0.85,"Note":"a<b","Age":54}`, string(data))

	var back ResultRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)
}

func TestResultRecord_Get(t *testing.T) {
	r := NewResultRecord("Liver", 0.4, Field{Name: "id", Value: StringValue("7")})

	v, ok := r.Get(FieldClass)
	assert.True(t, ok)
	assert.Equal(t, "Liver", v.String())

	v, ok = r.Get(FieldConfidence)
	assert.True(t, ok)
	assert.True(t, v.IsNumber())
	assert.Equal(t, 0.4, v.Number())

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Len(t, r.Values(), 3)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{0.95, "0.95"},
		{-12.5, "-12.5"},
		{1000000, "1000000"},
		{1e21, "1e+21"},
		{0.0000001, "1e-7"},
		{0.000001, "0.000001"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in), "FormatNumber(%v)", tt.in)
	}
}

func TestDiscoverColumns(t *testing.T) {
	records := []ResultRecord{
		NewResultRecord("A", 0.1, Field{Name: "x", Value: NumberValue(1)}, Field{Name: "y", Value: NumberValue(2)}),
		NewResultRecord("B", 0.2, Field{Name: "y", Value: NumberValue(3)}, Field{Name: "z", Value: NumberValue(4)}),
	}

	cols, drift := DiscoverColumns(records)
	assert.Equal(t, []string{"Class", "Confidence", "x", "y", "z"}, cols)
	assert.Equal(t, []string{"z"}, drift)

	cols, drift = DiscoverColumns(nil)
	assert.Equal(t, []string{"Class", "Confidence"}, cols)
	assert.Empty(t, drift)

	b := NewBatch(nil)
	assert.Equal(t, 0, b.Len())
	assert.NotNil(t, b.Records)
}
