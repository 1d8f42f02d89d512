package export

import (
	"fmt"
	"math"

	"github.com/piwi3910/CutYield/internal/model"
	"github.com/xuri/excelize/v2"
)

// Worksheet names used by ExportCutList.
const (
	CutListSheet = "Cut list"
	SummarySheet = "Summary"
)

var cutListHeader = []interface{}{"#", "Piece", "Width", "Height", "Cut width", "Cut height", "X", "Y", "Rotated"}

// ExportCutList writes the placements as a workbook for the saw operator:
// one row per placed piece on the "Cut list" sheet, and the run totals,
// missing sizes and reusable offcuts on the "Summary" sheet.
func ExportCutList(path string, result model.PackingResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), CutListSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeCutList(f, result, bold); err != nil {
		return err
	}
	if err := writeSummary(f, result, bold); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeCutList(f *excelize.File, result model.PackingResult, bold int) error {
	if err := f.SetSheetRow(CutListSheet, "A1", &cutListHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(CutListSheet, "A1", "I1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(CutListSheet, "B", "B", 22); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	for i, p := range result.Placements {
		rotated := "no"
		if p.Rotated {
			rotated = "yes"
		}
		row := []interface{}{
			i + 1,
			p.Piece.Label,
			p.Piece.Width,
			p.Piece.Height,
			p.PlacedWidth(),
			p.PlacedHeight(),
			p.X,
			p.Y,
			rotated,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(CutListSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, result model.PackingResult, bold int) error {
	rows := [][]interface{}{
		{"Sheet", model.FormatSize(result.Sheet.Width, result.Sheet.Height)},
		{"Kerf (mm)", result.Kerf},
		{"Requested", result.RequestedCount()},
		{"Placed", len(result.Placements)},
		{"Utilization (%)", roundTo(result.UtilizationPercent, 2)},
		{"Used area (mm²)", result.UsedArea()},
		{},
	}

	groups := result.UnplacedSummary()
	if len(groups) > 0 {
		rows = append(rows, []interface{}{"Does not fit", "Count"})
		for _, g := range groups {
			rows = append(rows, []interface{}{model.FormatSize(g.Width, g.Height), g.Count})
		}
		rows = append(rows, []interface{}{})
	}

	offcuts := model.DetectOffcuts(result, model.MinOffcutDimension)
	if len(offcuts) > 0 {
		rows = append(rows, []interface{}{"Offcut", "X", "Y"})
		for _, o := range offcuts {
			rows = append(rows, []interface{}{model.FormatSize(o.Width, o.Height), o.X, o.Y})
		}
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
		if err := f.SetCellStyle(SummarySheet, cell, cell, bold); err != nil {
			return fmt.Errorf("failed to style summary row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 20)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
