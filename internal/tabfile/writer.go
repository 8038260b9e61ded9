package tabfile

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// WriteWorkbook writes the sheets to a workbook file, one sheet per entry,
// header row first. Cell values are written as text to avoid reinterpreting
// identifiers as numbers on reload.
func WriteWorkbook(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("write workbook %s: no sheets", filepath.Base(path))
	}

	book := excelize.NewFile()
	defer book.Close()

	for i, sheet := range sheets {
		name := sheet.Name
		if i == 0 {
			// Rename the default sheet instead of deleting it afterwards.
			if err := book.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := book.NewSheet(name); err != nil {
				return fmt.Errorf("create sheet %s: %w", name, err)
			}
		}

		header := make([]any, len(sheet.Data.Columns))
		for j, col := range sheet.Data.Columns {
			header[j] = col
		}
		if err := book.SetSheetRow(name, "A1", &header); err != nil {
			return fmt.Errorf("write header %s: %w", name, err)
		}

		for rowIdx, row := range sheet.Data.Rows {
			cells := make([]any, len(sheet.Data.Columns))
			for j, col := range sheet.Data.Columns {
				cells[j] = row[col]
			}
			anchor, err := excelize.CoordinatesToCellName(1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("cell anchor %s: %w", name, err)
			}
			if err := book.SetSheetRow(name, anchor, &cells); err != nil {
				return fmt.Errorf("write row %s: %w", name, err)
			}
		}
	}

	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", filepath.Base(path), err)
	}
	return nil
}
