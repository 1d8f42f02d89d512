package model

import "math"

// SheetEstimate holds an area-based estimate of how many sheets a piece list needs.
type SheetEstimate struct {
	TotalPieceArea    float64 `json:"total_piece_area"`    // Area of all pieces incl. kerf allowance (sq mm)
	SheetArea         float64 `json:"sheet_area"`          // Area of one sheet (sq mm)
	SheetsNeededExact float64 `json:"sheets_needed_exact"` // Exact fractional number of sheets
	SheetsNeededMin   int     `json:"sheets_needed_min"`   // Lower bound (ceiling of exact)
	Kerf              float64 `json:"kerf"`
}

// EstimateSheets computes a lower bound on the number of sheets needed to cut
// every piece, charging one kerf along each side of every piece. Greedy
// packing usually needs more; the bound is shown next to the unplaced list.
func EstimateSheets(pieces []Piece, sheet StockSheet, kerf float64) SheetEstimate {
	var total float64
	for _, p := range pieces {
		total += (p.Width + kerf) * (p.Height + kerf)
	}

	area := sheet.Area()
	if area <= 0 {
		return SheetEstimate{TotalPieceArea: total, Kerf: kerf}
	}

	exact := total / area
	return SheetEstimate{
		TotalPieceArea:    total,
		SheetArea:         area,
		SheetsNeededExact: exact,
		SheetsNeededMin:   int(math.Ceil(exact)),
		Kerf:              kerf,
	}
}
