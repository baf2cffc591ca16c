package export

import (
	"fmt"
	"io"

	"github.com/oncoscope/backend/internal/models"
	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes records as a single-sheet workbook. Numeric values become
// numeric cells; missing fields are left blank.
func WriteXLSX(w io.Writer, records []models.ResultRecord, columns []string, sheet string) error {
	if columns == nil {
		columns = Columns(records)
	}
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, c); err != nil {
			return err
		}
	}

	for r, rec := range records {
		rowIdx := r + 2
		for c, col := range columns {
			v, ok := rec.Get(col)
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, rowIdx)
			if err := f.SetCellValue(sheet, cell, v.Raw()); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
