package model

import (
	"sort"

	"github.com/google/uuid"
)

// Offcut represents a usable rectangular remnant left on the sheet after cutting.
type Offcut struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`      // Bottom-left corner, mm from the left edge
	Y      float64 `json:"y"`      // Bottom-left corner, mm from the bottom edge
	Width  float64 `json:"width"`  // mm
	Height float64 `json:"height"` // mm
}

// Area returns the area of the offcut in square mm.
func (o Offcut) Area() float64 {
	return o.Width * o.Height
}

// ToStockSheet converts an offcut into a stock sheet for a follow-up job.
func (o Offcut) ToStockSheet() StockSheet {
	return NewStockSheet("Offcut "+FormatSize(o.Width, o.Height), o.Width, o.Height)
}

// MinOffcutDimension is the default minimum width and height (in mm) for a
// remnant to be worth keeping. Smaller remnants are waste.
const MinOffcutDimension = 50.0

// DetectOffcuts lists the free regions left after a run whose sides are both
// at least minDim, largest first. Free regions can overlap each other, so the
// offcuts are candidates to pick from rather than a partition of the sheet.
func DetectOffcuts(result PackingResult, minDim float64) []Offcut {
	var offcuts []Offcut
	for _, r := range result.FreeRegions {
		if r.Width < minDim || r.Height < minDim {
			continue
		}
		offcuts = append(offcuts, Offcut{
			ID:     uuid.New().String()[:8],
			X:      r.X,
			Y:      r.Y,
			Width:  r.Width,
			Height: r.Height,
		})
	}

	sort.SliceStable(offcuts, func(i, j int) bool {
		return offcuts[i].Area() > offcuts[j].Area()
	})
	return offcuts
}
