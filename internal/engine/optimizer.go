package engine

import (
	"math"
	"sort"

	"github.com/piwi3910/CutYield/internal/model"
)

// Optimizer runs the greedy best-fit cutting layout for a single sheet.
// It holds settings only, so one Optimizer can serve concurrent runs.
type Optimizer struct {
	Settings model.CutSettings
}

func New(settings model.CutSettings) *Optimizer {
	return &Optimizer{Settings: settings}
}

// Optimize places pieces on the sheet and reports placements, unplaced
// pieces and utilization. Inputs are assumed valid: positive sheet and
// piece dimensions, non-negative kerf.
func (o *Optimizer) Optimize(sheet model.StockSheet, pieces []model.Piece) model.PackingResult {
	valid, oversize := Partition(sheet, pieces)
	ordered := PlacementOrder(valid)

	pool := NewPool(sheet)
	var placements []model.Placement
	reasons := make(map[int]model.UnplacedReason)
	for _, ip := range oversize {
		reasons[ip.Index] = model.ReasonOversize
	}

	for _, ip := range ordered {
		next, placement, ok := pool.Place(ip.Piece, sheet, o.Settings.Kerf)
		if !ok {
			reasons[ip.Index] = model.ReasonNoFit
			continue
		}
		pool = next
		placements = append(placements, placement)
	}

	// Unplaced pieces are reported in input order.
	var unplaced []model.Unplaced
	for i, p := range pieces {
		if reason, ok := reasons[i]; ok {
			unplaced = append(unplaced, model.Unplaced{Piece: p, Reason: reason})
		}
	}

	return Report(sheet, o.Settings.Kerf, placements, unplaced, pool)
}

// IndexedPiece is a piece together with its position in the request list.
type IndexedPiece struct {
	Index int
	Piece model.Piece
}

// Partition splits pieces into those that fit the sheet in at least one
// orientation and those that fit in neither. Oversize pieces never enter the
// placement loop.
func Partition(sheet model.StockSheet, pieces []model.Piece) (valid, oversize []IndexedPiece) {
	for i, p := range pieces {
		fitsNormal := p.Width <= sheet.Width && p.Height <= sheet.Height
		fitsRotated := p.Height <= sheet.Width && p.Width <= sheet.Height
		if fitsNormal || fitsRotated {
			valid = append(valid, IndexedPiece{Index: i, Piece: p})
		} else {
			oversize = append(oversize, IndexedPiece{Index: i, Piece: p})
		}
	}
	return valid, oversize
}

// PlacementOrder returns the pieces sorted by long side, largest first.
// The sort is stable so equal long sides keep request order.
func PlacementOrder(valid []IndexedPiece) []IndexedPiece {
	ordered := make([]IndexedPiece, len(valid))
	copy(ordered, valid)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Piece.LongSide() > ordered[j].Piece.LongSide()
	})
	return ordered
}

// Pool is the ordered set of free regions. Existing entries are never
// reordered; regions produced by a split are appended at the end, so on
// equal waste the older region wins.
type Pool []model.FreeRegion

// NewPool returns a pool holding one region that spans the whole sheet.
func NewPool(sheet model.StockSheet) Pool {
	return Pool{{X: 0, Y: 0, Width: sheet.Width, Height: sheet.Height}}
}

// Candidate is a region and orientation considered by the best-fit scan.
type Candidate struct {
	Region  int     // Index into the pool
	Width   float64 // Placed width
	Height  float64 // Placed height
	Rotated bool
	Waste   float64 // Free width left in the region
}

// BestFit scans every region (pool order) and both orientations (requested,
// then swapped) for the placement leaving the least free width in its region.
// Only a strictly smaller waste replaces the current best, so the first
// candidate found wins ties.
func (p Pool) BestFit(piece model.Piece) (Candidate, bool) {
	best := Candidate{Region: -1, Waste: math.Inf(1)}

	orientations := [2]struct {
		w, h    float64
		rotated bool
	}{
		{piece.Width, piece.Height, false},
		{piece.Height, piece.Width, true},
	}

	for i, s := range p {
		for _, o := range orientations {
			if !s.Fits(o.w, o.h) {
				continue
			}
			waste := s.Width - o.w
			if waste < best.Waste {
				best = Candidate{Region: i, Width: o.w, Height: o.h, Rotated: o.rotated, Waste: waste}
			}
		}
	}
	return best, best.Region >= 0
}

// Place commits the best-fit placement for piece and returns the new pool.
// The receiver is left untouched. When nothing fits, ok is false and the
// returned pool is the receiver.
func (p Pool) Place(piece model.Piece, sheet model.StockSheet, kerf float64) (next Pool, placement model.Placement, ok bool) {
	best, found := p.BestFit(piece)
	if !found {
		return p, model.Placement{}, false
	}

	chosen := p[best.Region]
	remainders := Split(chosen, best.Width, best.Height, sheet, kerf)

	next = make(Pool, 0, len(p)-1+len(remainders))
	next = append(next, p[:best.Region]...)
	next = append(next, p[best.Region+1:]...)
	next = append(next, remainders...)

	placement = model.Placement{
		Piece:   piece,
		X:       chosen.X,
		Y:       chosen.Y,
		Rotated: best.Rotated,
	}
	return next, placement, true
}

// Split returns the free regions left in s after a tw x th piece is cut at
// its origin: a right remainder spanning the full height of s and a bottom
// remainder only as wide as the piece. The area diagonal to the piece is
// not tracked. Kerf is charged only when material remains before the sheet
// edge, and empty remainders are dropped.
func Split(s model.FreeRegion, tw, th float64, sheet model.StockSheet, kerf float64) []model.FreeRegion {
	gapW := 0.0
	if s.X+tw+kerf < sheet.Width {
		gapW = kerf
	}
	gapH := 0.0
	if s.Y+th+kerf < sheet.Height {
		gapH = kerf
	}

	var out []model.FreeRegion
	if rw := s.Width - (tw + gapW); rw > 0 {
		out = append(out, model.FreeRegion{
			X:      s.X + tw + gapW,
			Y:      s.Y,
			Width:  rw,
			Height: s.Height,
		})
	}
	if bh := s.Height - (th + gapH); bh > 0 {
		out = append(out, model.FreeRegion{
			X:      s.X,
			Y:      s.Y + th + gapH,
			Width:  tw,
			Height: bh,
		})
	}
	return out
}

// Report assembles the run result and computes utilization as placed area
// over sheet area, in percent.
func Report(sheet model.StockSheet, kerf float64, placements []model.Placement, unplaced []model.Unplaced, pool Pool) model.PackingResult {
	result := model.PackingResult{
		Sheet:       sheet,
		Kerf:        kerf,
		Placements:  placements,
		Unplaced:    unplaced,
		FreeRegions: []model.FreeRegion(pool),
	}
	if area := sheet.Area(); area > 0 {
		result.UtilizationPercent = result.UsedArea() / area * 100
	}
	return result
}
