package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCSVReader(t *testing.T) {
	input := "\ufeffSample,GeneA,Note\nS1,1.5,\"a,b\"\n\nS2,2\n"

	tbl, err := NewCSVReader().Read(strings.NewReader(input), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sample", "GeneA", "Note"}, tbl.Header)
	assert.Equal(t, [][]string{{"S1", "1.5", "a,b"}, {"S2", "2", ""}}, tbl.Rows)
	assert.Equal(t, 2, tbl.TotalRows)
}

func TestCSVReader_Limit(t *testing.T) {
	input := "a\n1\n2\n3\n"

	tbl, err := NewCSVReader().Read(strings.NewReader(input), 2)
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 2)
	assert.Equal(t, 3, tbl.TotalRows)
}

func TestCSVReader_Empty(t *testing.T) {
	_, err := NewCSVReader().Read(strings.NewReader(""), 0)
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestJSONReader(t *testing.T) {
	input := `[{"Sample":"S1","GeneA":1.25},{"GeneB":true,"Sample":"S2","GeneA":null}]`

	tbl, err := NewJSONReader().Read(strings.NewReader(input), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sample", "GeneA", "GeneB"}, tbl.Header)
	assert.Equal(t, [][]string{{"S1", "1.25", ""}, {"S2", "", "true"}}, tbl.Rows)
}

func TestJSONReader_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not array", `{"a":1}`},
		{"nested", `[{"a":{"b":1}}]`},
		{"scalar element", `[1]`},
		{"truncated", `[{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJSONReader().Read(strings.NewReader(tt.input), 0)
			assert.Error(t, err)
		})
	}
}

func TestXLSXReader(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Sample", "GeneA"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"S1", 3}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"S2", 4.5}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, err := NewXLSXReader().Read(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sample", "GeneA"}, tbl.Header)
	assert.Equal(t, [][]string{{"S1", "3"}, {"S2", "4.5"}}, tbl.Rows)
}

func TestRegistry_FindReader(t *testing.T) {
	r := NewRegistry()

	for _, ext := range []string{"csv", ".CSV", "xlsx", "json"} {
		p, err := r.FindReader(ext)
		require.NoError(t, err, ext)
		assert.NotEmpty(t, p.Name())
	}

	_, err := r.FindReader("txt")
	assert.Error(t, err)
}
