// Package export writes transcript sheets as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/satriahrh/keynotes/internal/transcript"
)

// ContentTypeXLSX is the MIME type of the workbook written by WriteXLSX
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	defaultSheetName = "Sheet1"
	columnWidth      = 24
	textColumnWidth  = 80
)

// WriteXLSX writes sheet as a single-worksheet workbook.
// Data cells are top-aligned with wrapped text so long transcript lines stay readable.
func WriteXLSX(w io.Writer, sheet transcript.Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	name := sheet.Name
	if name == "" {
		name = defaultSheetName
	}
	if name != defaultSheetName {
		if err := f.SetSheetName(defaultSheetName, name); err != nil {
			return fmt.Errorf("failed to name worksheet: %w", err)
		}
	}

	if err := f.SetSheetRow(name, "A1", toCells(sheet.Header)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, toCells(row)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := styleSheet(f, name, sheet); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func styleSheet(f *excelize.File, name string, sheet transcript.Sheet) error {
	if len(sheet.Header) == 0 {
		return nil
	}

	lastCol, err := excelize.ColumnNumberToName(len(sheet.Header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(name, "A", lastCol, columnWidth); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	for i, column := range sheet.Header {
		if column != "Transcript" && column != "KeyNotes" {
			continue
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, col, col, textColumnWidth); err != nil {
			return fmt.Errorf("failed to size text column: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(name, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	if len(sheet.Rows) == 0 {
		return nil
	}

	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create body style: %w", err)
	}
	last := fmt.Sprintf("%s%d", lastCol, len(sheet.Rows)+1)
	if err := f.SetCellStyle(name, "A2", last, bodyStyle); err != nil {
		return fmt.Errorf("failed to style rows: %w", err)
	}
	return nil
}

func toCells(values []string) *[]interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return &cells
}
