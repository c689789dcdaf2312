package xlsx

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
)

type workbook struct {
	file        *excelize.File
	headerStyle int
}

func newWorkbook(firstSheet string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", firstSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	return &workbook{file: f, headerStyle: style}, nil
}

func (w *workbook) addSheet(name string) error {
	if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	return nil
}

func (w *workbook) header(sheet string, cells []any) error {
	if err := w.row(sheet, 1, cells); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(cells), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := w.file.SetCellStyle(sheet, "A1", last, w.headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(cells))
	if err != nil {
		return fmt.Errorf("header column: %w", err)
	}
	if err := w.file.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func (w *workbook) row(sheet string, index int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, index)
	if err != nil {
		return fmt.Errorf("row %d: %w", index, err)
	}
	if err := w.file.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, index, err)
	}
	return nil
}

func (w *workbook) bytes() ([]byte, error) {
	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *workbook) close() {
	_ = w.file.Close()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
