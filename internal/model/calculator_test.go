package model

import (
	"math"
	"testing"
)

func TestEstimateSheetsBasic(t *testing.T) {
	pieces := []Piece{
		{Width: 500, Height: 300},
		{Width: 500, Height: 300},
	}
	est := EstimateSheets(pieces, NewStockSheet("S", 1000, 1000), 4)

	expected := 504.0 * 304.0 * 2
	if math.Abs(est.TotalPieceArea-expected) > 0.1 {
		t.Errorf("expected total area %.1f, got %.1f", expected, est.TotalPieceArea)
	}
	if est.SheetsNeededMin != 1 {
		t.Errorf("expected 1 sheet, got %d", est.SheetsNeededMin)
	}
}

func TestEstimateSheetsRoundsUp(t *testing.T) {
	pieces := []Piece{{Width: 1000, Height: 1000}, {Width: 10, Height: 10}}
	est := EstimateSheets(pieces, NewStockSheet("S", 1000, 1000), 0)
	if est.SheetsNeededMin != 2 {
		t.Errorf("expected 2 sheets, got %d", est.SheetsNeededMin)
	}
}

func TestEstimateSheetsDegenerateSheet(t *testing.T) {
	est := EstimateSheets([]Piece{{Width: 10, Height: 10}}, StockSheet{}, 0)
	if est.SheetsNeededMin != 0 || est.SheetArea != 0 {
		t.Errorf("expected empty estimate for zero-area sheet, got %+v", est)
	}
}
