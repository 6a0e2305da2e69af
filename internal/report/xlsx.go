// Package report renders the accumulated-time report as a spreadsheet or an
// HTML chart.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/units"
)

// SheetName is the worksheet holding the report table.
const SheetName = "Accumulated Time"

// Headers returns the report table header row: the animal column, then a
// seconds and a formatted column for each state.
func Headers() []string {
	headers := []string{"Animal"}
	for _, state := range livestock.States {
		headers = append(headers, string(state)+" (s)", string(state))
	}
	return headers
}

// Rows returns one row per animal in SortedAnimalIDs order, matching
// Headers. States the animal was never observed in are left blank.
func Rows(snap livestock.Snapshot) [][]interface{} {
	rows := make([][]interface{}, 0, len(snap))
	for _, id := range livestock.SortedAnimalIDs(snap) {
		row := []interface{}{string(id)}
		for _, state := range livestock.States {
			acc, ok := snap.Get(id, state)
			if !ok {
				row = append(row, nil, nil)
				continue
			}
			row = append(row, units.Round(acc.TotalSeconds, 2), livestock.FormatDuration(acc.TotalSeconds))
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteXLSX writes snap as a single-sheet workbook to w.
func WriteXLSX(w io.Writer, snap livestock.Snapshot, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headers := Headers()
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", lastCol, 16); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	rows := Rows(snap)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	footer, err := excelize.CoordinatesToCellName(1, len(rows)+3)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, footer, "Generated "+generated.UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
