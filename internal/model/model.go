package model

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// StockSheet represents the sheet of material the layout is cut from.
type StockSheet struct {
	Label  string  `json:"label"`
	Width  float64 `json:"width"`  // mm
	Height float64 `json:"height"` // mm
}

func NewStockSheet(label string, w, h float64) StockSheet {
	return StockSheet{
		Label:  label,
		Width:  w,
		Height: h,
	}
}

// Area returns the sheet area in square mm.
func (s StockSheet) Area() float64 {
	return s.Width * s.Height
}

// Piece represents one requested copy of a rectangular piece.
type Piece struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Width  float64 `json:"width"`  // mm, as requested
	Height float64 `json:"height"` // mm, as requested
}

func NewPiece(label string, w, h float64) Piece {
	return Piece{
		ID:     uuid.New().String()[:8],
		Label:  label,
		Width:  w,
		Height: h,
	}
}

// LongSide returns the larger of the two requested dimensions.
func (p Piece) LongSide() float64 {
	if p.Width > p.Height {
		return p.Width
	}
	return p.Height
}

// PieceSpec is one line of a piece list: a size requested Quantity times.
type PieceSpec struct {
	Label    string  `json:"label,omitempty"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Quantity int     `json:"quantity"`
}

// DefaultPieceLabel prefixes generated piece labels when a spec has no name.
const DefaultPieceLabel = "Pc"

// ExpandPieces turns piece specs into individual pieces in input order.
// Pieces are numbered 1..n across the whole list so every label is unique,
// e.g. "Pc 3 (150x500)".
func ExpandPieces(specs []PieceSpec) []Piece {
	var pieces []Piece
	for _, s := range specs {
		base := s.Label
		if base == "" {
			base = DefaultPieceLabel
		}
		for i := 0; i < s.Quantity; i++ {
			label := fmt.Sprintf("%s %d (%s)", base, len(pieces)+1, FormatSize(s.Width, s.Height))
			pieces = append(pieces, NewPiece(label, s.Width, s.Height))
		}
	}
	return pieces
}

// FormatDim formats a dimension without trailing zeros ("150", "12.5").
func FormatDim(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatSize formats a width/height pair as "WxH".
func FormatSize(w, h float64) string {
	return FormatDim(w) + "x" + FormatDim(h)
}

// CutSettings holds the optimizer configuration.
type CutSettings struct {
	Kerf float64 `json:"kerf"` // Blade width in mm
}

// DefaultKerf is the blade width used when none is configured.
const DefaultKerf = 4.0

func DefaultSettings() CutSettings {
	return CutSettings{Kerf: DefaultKerf}
}

// Placement represents a piece bound to a position and orientation on the sheet.
type Placement struct {
	Piece   Piece   `json:"piece"`
	X       float64 `json:"x"`       // Bottom-left corner, mm from the left edge
	Y       float64 `json:"y"`       // Bottom-left corner, mm from the bottom edge
	Rotated bool    `json:"rotated"` // Whether the piece was turned 90°
}

// PlacedWidth returns the effective width considering rotation.
func (p Placement) PlacedWidth() float64 {
	if p.Rotated {
		return p.Piece.Height
	}
	return p.Piece.Width
}

// PlacedHeight returns the effective height considering rotation.
func (p Placement) PlacedHeight() float64 {
	if p.Rotated {
		return p.Piece.Width
	}
	return p.Piece.Height
}

// Area returns the area covered by the placed piece.
func (p Placement) Area() float64 {
	return p.PlacedWidth() * p.PlacedHeight()
}

// FreeRegion is an axis-aligned area of the sheet not occupied by any placement.
type FreeRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the region area in square mm.
func (r FreeRegion) Area() float64 {
	return r.Width * r.Height
}

// Fits reports whether a w x h rectangle fits in the region without rotation.
func (r FreeRegion) Fits(w, h float64) bool {
	return w <= r.Width && h <= r.Height
}

// UnplacedReason explains why a requested piece was not placed.
type UnplacedReason int

const (
	ReasonOversize UnplacedReason = iota // Larger than the sheet in both orientations
	ReasonNoFit                          // No free region could hold it when attempted
)

func (r UnplacedReason) String() string {
	switch r {
	case ReasonOversize:
		return "oversize"
	case ReasonNoFit:
		return "no fit"
	default:
		return "unknown"
	}
}

// Unplaced is a requested piece that did not make it onto the sheet.
type Unplaced struct {
	Piece  Piece          `json:"piece"`
	Reason UnplacedReason `json:"reason"`
}

// UnplacedGroup counts unplaced pieces sharing the same requested size.
type UnplacedGroup struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Count  int     `json:"count"`
}

func (g UnplacedGroup) String() string {
	return fmt.Sprintf("%d pcs of %s", g.Count, FormatSize(g.Width, g.Height))
}

// PackingResult holds the outcome of one optimization run.
type PackingResult struct {
	Sheet              StockSheet   `json:"sheet"`
	Kerf               float64      `json:"kerf"`
	Placements         []Placement  `json:"placements"`   // Placement order
	Unplaced           []Unplaced   `json:"unplaced"`     // Input order
	FreeRegions        []FreeRegion `json:"free_regions"` // Pool state after the last placement
	UtilizationPercent float64      `json:"utilization_percent"`
}

// UsedArea returns the total area covered by placed pieces.
func (r PackingResult) UsedArea() float64 {
	var total float64
	for _, p := range r.Placements {
		total += p.Area()
	}
	return total
}

// TotalArea returns the stock sheet area.
func (r PackingResult) TotalArea() float64 {
	return r.Sheet.Area()
}

// RequestedCount returns the number of pieces that went into the run.
func (r PackingResult) RequestedCount() int {
	return len(r.Placements) + len(r.Unplaced)
}

// UnplacedSummary groups unplaced pieces by requested size, keeping the
// order in which each size was first seen.
func (r PackingResult) UnplacedSummary() []UnplacedGroup {
	type sizeKey struct {
		w, h float64
	}
	index := make(map[sizeKey]int)
	var groups []UnplacedGroup
	for _, u := range r.Unplaced {
		key := sizeKey{u.Piece.Width, u.Piece.Height}
		if i, ok := index[key]; ok {
			groups[i].Count++
			continue
		}
		index[key] = len(groups)
		groups = append(groups, UnplacedGroup{Width: key.w, Height: key.h, Count: 1})
	}
	return groups
}

// Headline returns the one-line run summary, e.g. "Yield: 50.91% | Placed: 46/46".
func (r PackingResult) Headline() string {
	return fmt.Sprintf("Yield: %.2f%% | Placed: %d/%d", r.UtilizationPercent, len(r.Placements), r.RequestedCount())
}

// Complete reports whether every requested piece was placed.
func (r PackingResult) Complete() bool {
	return len(r.Unplaced) == 0
}
