package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet pairs a tab name with its tabular content.
type Sheet struct {
	Name string
	Data Dataset
}

// XLSXExporter renders datasets into xlsx workbooks.
type XLSXExporter struct{}

// NewXLSXExporter builds an xlsx exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render produces a single-sheet workbook for the dataset.
func (e *XLSXExporter) Render(data Dataset, sheetName string) ([]byte, error) {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return e.RenderWorkbook([]Sheet{{Name: sheetName, Data: data}})
}

// RenderWorkbook produces a workbook with one tab per sheet.
func (e *XLSXExporter) RenderWorkbook(sheets []Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one sheet")
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if len(sheet.Data.Headers) == 0 {
			return nil, fmt.Errorf("xlsx sheet %q requires at least one header", sheet.Name)
		}
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("rename xlsx sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("add xlsx sheet: %w", err)
			}
		}

		header := make([]interface{}, len(sheet.Data.Headers))
		for j, h := range sheet.Data.Headers {
			header[j] = h
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return nil, fmt.Errorf("write xlsx headers: %w", err)
		}
		for r, row := range sheet.Data.Rows {
			record := make([]interface{}, len(sheet.Data.Headers))
			for j, h := range sheet.Data.Headers {
				record[j] = row[h]
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, fmt.Errorf("address xlsx row: %w", err)
			}
			if err := f.SetSheetRow(name, cell, &record); err != nil {
				return nil, fmt.Errorf("write xlsx row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
