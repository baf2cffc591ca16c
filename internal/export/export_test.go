package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/oncoscope/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestToDelimitedText_QuotesDelimiters(t *testing.T) {
	records := []models.ResultRecord{
		models.NewResultRecord("A", 0.5, models.Field{Name: "Note", Value: models.StringValue("x,y")}),
	}

	text, err := ToDelimitedText(records, Columns(records))
	require.NoError(t, err)
	assert.Equal(t, "Class,Confidence,Note\n\"A\",0.5,\"x,y\"", text)

	rows, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"A", "0.5", "x,y"}, rows[1])
}

func TestToDelimitedText_RowBoundaries(t *testing.T) {
	records := []models.ResultRecord{
		models.NewResultRecord("B", 1, models.Field{Name: "Note", Value: models.StringValue("line1\nline2")}),
		models.NewResultRecord("C", 0, models.Field{Name: "Note", Value: models.StringValue("<tag>")}),
	}

	text, err := ToDelimitedText(records, nil)
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"B",1,"line1\nline2"`, lines[1])
	assert.Equal(t, `"C",0,"<tag>"`, lines[2])
}

func TestToDelimitedText_ColumnsAndMissingFields(t *testing.T) {
	records := []models.ResultRecord{
		models.NewResultRecord("Lung", 0.9, models.Field{Name: "g1", Value: models.NumberValue(1.25)}),
		models.NewResultRecord("Liver", 0.3, models.Field{Name: "g2", Value: models.StringValue("late")}),
	}

	text, err := ToDelimitedText(records, nil)
	require.NoError(t, err)
	assert.Equal(t, "Class,Confidence,g1,g2\n\"Lung\",0.9,1.25,\"\"\n\"Liver\",0.3,\"\",\"late\"", text)
}

func TestToDelimitedText_Empty(t *testing.T) {
	text, err := ToDelimitedText(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Class,Confidence", text)
}

func TestToDelimitedText_HeaderQuoting(t *testing.T) {
	text, err := ToDelimitedText(nil, []string{"Class", "Confidence", "a,b"})
	require.NoError(t, err)
	assert.Equal(t, `Class,Confidence,"a,b"`, text)
}

func TestWriteXLSX(t *testing.T) {
	records := []models.ResultRecord{
		models.NewResultRecord("Lung", 0.95, models.Field{Name: "Sample", Value: models.StringValue("S-1")}),
		models.NewResultRecord("Breast", 0.4),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, records, nil, ""))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DefaultSheetName}, f.GetSheetList())
	rows, err := f.GetRows(DefaultSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Class", "Confidence", "Sample"}, rows[0])
	assert.Equal(t, []string{"Lung", "0.95", "S-1"}, rows[1])
	assert.Equal(t, []string{"Breast", "0.4"}, rows[2])
}
