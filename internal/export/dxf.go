package export

import (
	"fmt"
	"math"

	"github.com/piwi3910/CutYield/internal/model"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
)

// DXF layer names.
const (
	LayerSheet   = "SHEET"
	LayerPieces  = "PIECES"
	LayerLabels  = "LABELS"
	LayerOffcuts = "OFFCUTS"
)

// ExportDXF writes the layout as a DXF drawing in millimetres. DXF shares the
// bottom-left origin of the layout, so coordinates are written unchanged.
// The sheet outline, piece outlines, piece labels and reusable offcuts each
// go on their own layer.
func ExportDXF(path string, result model.PackingResult) error {
	if result.Sheet.Width <= 0 || result.Sheet.Height <= 0 {
		return fmt.Errorf("cannot export DXF: %w", model.ErrInvalidSheet)
	}

	d := dxf.NewDrawing()

	if _, err := d.AddLayer(LayerSheet, color.White, dxf.DefaultLineType, true); err != nil {
		return fmt.Errorf("failed to add layer %s: %w", LayerSheet, err)
	}
	if _, err := d.LwPolyline(true, rectVertices(0, 0, result.Sheet.Width, result.Sheet.Height)...); err != nil {
		return fmt.Errorf("failed to draw sheet outline: %w", err)
	}

	if _, err := d.AddLayer(LayerPieces, color.Yellow, dxf.DefaultLineType, true); err != nil {
		return fmt.Errorf("failed to add layer %s: %w", LayerPieces, err)
	}
	for _, p := range result.Placements {
		if _, err := d.LwPolyline(true, rectVertices(p.X, p.Y, p.PlacedWidth(), p.PlacedHeight())...); err != nil {
			return fmt.Errorf("failed to draw %q: %w", p.Piece.Label, err)
		}
	}

	if _, err := d.AddLayer(LayerLabels, color.Cyan, dxf.DefaultLineType, true); err != nil {
		return fmt.Errorf("failed to add layer %s: %w", LayerLabels, err)
	}
	for _, p := range result.Placements {
		h := textHeight(p.PlacedWidth(), p.PlacedHeight())
		if _, err := d.Text(model.ShortLabel(p.Piece.Label), p.X+h/2, p.Y+h/2, 0, h); err != nil {
			return fmt.Errorf("failed to label %q: %w", p.Piece.Label, err)
		}
	}

	if _, err := d.AddLayer(LayerOffcuts, color.Green, dxf.DefaultLineType, true); err != nil {
		return fmt.Errorf("failed to add layer %s: %w", LayerOffcuts, err)
	}
	for _, o := range model.DetectOffcuts(result, model.MinOffcutDimension) {
		if _, err := d.LwPolyline(true, rectVertices(o.X, o.Y, o.Width, o.Height)...); err != nil {
			return fmt.Errorf("failed to draw offcut: %w", err)
		}
	}

	if err := d.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save DXF: %w", err)
	}
	return nil
}

// rectVertices returns the four corners of a rectangle, counter-clockwise
// from its bottom-left corner.
func rectVertices(x, y, w, h float64) [][]float64 {
	return [][]float64{
		{x, y},
		{x + w, y},
		{x + w, y + h},
		{x, y + h},
	}
}

// textHeight picks a label height that fits inside a w x h piece.
func textHeight(w, h float64) float64 {
	return math.Max(1, math.Min(40, math.Min(w, h)/6))
}
