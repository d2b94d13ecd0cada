// Package export writes rendered tables to spreadsheet files.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"salas/internal/view"
)

const maxSheetName = 31

// Writer fills the single sheet of a workbook row by row.
type Writer struct {
	file       *excelize.File
	sheet      string
	currentRow int
}

// NewWriter creates a workbook whose default sheet is renamed to sheet.
func NewWriter(sheet string) (*Writer, error) {
	f := excelize.NewFile()
	name := sheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet %s: %w", name, err)
	}
	return &Writer{file: f, sheet: name, currentRow: 1}, nil
}

// WriteHeader writes bold column headers on the current row.
func (w *Writer) WriteHeader(columns []string) error {
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, col); err != nil {
			return err
		}
	}
	if len(columns) > 0 {
		style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
			endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
			_ = w.file.SetCellStyle(w.sheet, startCell, endCell, style)
		}
	}
	w.currentRow++
	return nil
}

// WriteRow writes one data row. Numeric-looking cells are stored as numbers.
func (w *Writer) WriteRow(cells []string) error {
	for i, val := range cells {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, cellValue(val)); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}

// Bytes serialises the workbook.
func (w *Writer) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.file.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases resources.
func (w *Writer) Close() error {
	return w.file.Close()
}

// Table renders t as a single-sheet workbook.
func Table(t view.Table) ([]byte, error) {
	title := t.Title
	if title == "" {
		title = "Reporte"
	}
	w, err := NewWriter(title)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	if err := w.WriteHeader(t.Columns); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		if err := w.WriteRow(row.Cells); err != nil {
			return nil, err
		}
	}
	return w.Bytes()
}

// FileName builds a safe .xlsx name for a report.
func FileName(name, from, to string) string {
	parts := []string{name}
	if from != "" {
		parts = append(parts, from)
	}
	if to != "" {
		parts = append(parts, to)
	}
	return strings.Join(parts, "_") + ".xlsx"
}

func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

func cellValue(s string) any {
	if s == "" || strings.Trim(s, "0123456789.-") != "" {
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
