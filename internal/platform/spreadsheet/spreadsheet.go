// Package spreadsheet writes single-sheet XLSX workbooks.
package spreadsheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of an XLSX workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column is one header cell and its width in characters. Zero width keeps
// the default.
type Column struct {
	Header string
	Width  float64
}

// Sheet is a header row followed by data rows. Each row has one value per
// column; nil values leave the cell empty.
type Sheet struct {
	Name    string
	Columns []Column
	Rows    [][]interface{}
}

// Build renders the sheet as an XLSX file with a bold, frozen header row.
func Build(s Sheet) ([]byte, error) {
	if s.Name == "" {
		s.Name = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close()

	if s.Name != "Sheet1" {
		if err := f.SetSheetName("Sheet1", s.Name); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, col := range s.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(s.Name, cell, col.Header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(s.Name, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}
		if col.Width > 0 {
			name, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetColWidth(s.Name, name, name, col.Width); err != nil {
				return nil, fmt.Errorf("set width of %s: %w", name, err)
			}
		}
	}

	for r, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", r+1, len(row), len(s.Columns))
		}
		for i, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(s.Name, cell, v); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(s.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
