package model

import "fmt"

// Job ties a sheet, a kerf and a piece list together for save/load and
// for validation at the input boundary.
type Job struct {
	Name   string      `json:"name"`
	Sheet  StockSheet  `json:"sheet"`
	Kerf   float64     `json:"kerf"`
	Pieces []PieceSpec `json:"pieces"`
}

func NewJob() Job {
	return Job{
		Name:   "Untitled",
		Sheet:  NewStockSheet("Sheet", 3500, 2500),
		Kerf:   DefaultKerf,
		Pieces: []PieceSpec{},
	}
}

// Validate checks the job before it reaches the optimizer, which assumes
// strictly positive dimensions and a non-negative kerf.
func (j Job) Validate() error {
	if j.Sheet.Width <= 0 || j.Sheet.Height <= 0 {
		return ErrInvalidSheet
	}
	if j.Kerf < 0 {
		return ErrInvalidKerf
	}
	if len(j.Pieces) == 0 {
		return ErrNoPieces
	}
	total := 0
	for i, p := range j.Pieces {
		if p.Width <= 0 || p.Height <= 0 || p.Quantity <= 0 {
			return fmt.Errorf("piece %d (%s x%d): %w", i+1, FormatSize(p.Width, p.Height), p.Quantity, ErrInvalidPiece)
		}
		// Checked per spec before summing so huge quantities cannot overflow the total.
		if p.Quantity > MaxPieces || total+p.Quantity > MaxPieces {
			return fmt.Errorf("%w: more than %d requested", ErrTooManyPieces, MaxPieces)
		}
		total += p.Quantity
	}
	return nil
}

// MaxPieces bounds the expanded piece count of one job.
const MaxPieces = 10000

// TotalQuantity returns the number of individual pieces the job requests.
func (j Job) TotalQuantity() int {
	total := 0
	for _, p := range j.Pieces {
		total += p.Quantity
	}
	return total
}
