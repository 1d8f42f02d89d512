// Package export renders packing results to files: a PDF layout sheet, QR
// piece labels, DXF drawings, an Excel cut list, a PNG preview and an HTML
// kerf comparison chart.
package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"github.com/piwi3910/CutYield/internal/model"
)

// pieceColor represents an RGB color for a placed piece.
type pieceColor struct {
	R, G, B int
}

// pieceColors is the fill palette shared by the PDF and PNG renderers.
var pieceColors = []pieceColor{
	{R: 255, G: 167, B: 38},  // orange
	{R: 76, G: 175, B: 80},   // green
	{R: 33, G: 150, B: 243},  // blue
	{R: 156, G: 39, B: 176},  // purple
	{R: 0, G: 188, B: 212},   // cyan
	{R: 255, G: 235, B: 59},  // yellow
	{R: 121, G: 85, B: 72},   // brown
	{R: 233, G: 30, B: 99},   // pink
}

func colorFor(i int) pieceColor {
	return pieceColors[i%len(pieceColors)]
}

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 12.0
	marginRight  = 12.0
	marginTop    = 12.0
	marginBottom = 12.0
	headerHeight = 10.0
	drawAreaTop  = marginTop + headerHeight + 6.0
	missingBlock = 22.0

	legendColWidth  = 40.0
	legendRowHeight = 3.6
	legendMaxCols   = 3
)

// ExportPDF writes the cutting layout of result to a PDF file at path,
// creating parent directories as needed.
func ExportPDF(path string, result model.PackingResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create PDF file: %w", err)
	}
	if err := WritePDF(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WritePDF renders the cutting layout of result as a single A4 landscape
// page: a to-scale drawing of the sheet, the placed-pieces legend and the
// list of pieces that did not fit.
func WritePDF(w io.Writer, result model.PackingResult) error {
	if result.Sheet.Width <= 0 || result.Sheet.Height <= 0 {
		return fmt.Errorf("cannot render layout: %w", model.ErrInvalidSheet)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.SetTitle("Cutting layout", false)
	pdf.AddPage()

	legend := model.Legend(result)
	legendCols := legendColumns(len(legend))
	legendWidth := float64(legendCols) * legendColWidth

	renderHeadline(pdf, result)

	drawWidth := pageWidth - marginLeft - marginRight - legendWidth - 8
	drawHeight := pageHeight - drawAreaTop - marginBottom - missingBlock
	scale := math.Min(drawWidth/result.Sheet.Width, drawHeight/result.Sheet.Height)
	canvasW := result.Sheet.Width * scale
	canvasH := result.Sheet.Height * scale
	offsetX := marginLeft + 6
	offsetY := drawAreaTop

	renderSheet(pdf, result, scale, offsetX, offsetY, canvasW, canvasH)
	drawDimensionAnnotations(pdf, result.Sheet, offsetX, offsetY, canvasW, canvasH)
	drawLegend(pdf, legend, pageWidth-marginRight-legendWidth, drawAreaTop, legendCols)
	drawMissing(pdf, result, offsetY+canvasH+7)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// renderHeadline draws the yield headline: red when pieces are missing,
// green when every piece was placed.
func renderHeadline(pdf *fpdf.Fpdf, result model.PackingResult) {
	pdf.SetFont("Helvetica", "B", 14)
	if result.Complete() {
		pdf.SetTextColor(0, 100, 0)
	} else {
		pdf.SetTextColor(200, 0, 0)
	}
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, result.Headline(), "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(80, 80, 80)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	info := fmt.Sprintf("Sheet %s mm | Kerf %s mm | Used %.0f of %.0f mm²",
		model.FormatSize(result.Sheet.Width, result.Sheet.Height), model.FormatDim(result.Kerf),
		result.UsedArea(), result.TotalArea())
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 5, info, "", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// renderSheet draws the sheet outline and every placement. Layout
// coordinates have their origin at the bottom-left corner of the sheet, so
// y is flipped against the page.
func renderSheet(pdf *fpdf.Fpdf, result model.PackingResult, scale, offsetX, offsetY, canvasW, canvasH float64) {
	pdf.SetFillColor(245, 245, 240)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.6)
	pdf.Rect(offsetX, offsetY, canvasW, canvasH, "FD")

	for i, p := range result.Placements {
		col := colorFor(i)
		pw := p.PlacedWidth() * scale
		ph := p.PlacedHeight() * scale
		px := offsetX + p.X*scale
		py := offsetY + (result.Sheet.Height-p.Y-p.PlacedHeight())*scale

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.SetDrawColor(30, 30, 30)
		pdf.SetLineWidth(0.2)
		pdf.Rect(px, py, pw, ph, "FD")

		label := model.ShortLabel(p.Piece.Label)
		pdf.SetFont("Helvetica", "B", labelFontSize(pw, ph))
		labelW := pdf.GetStringWidth(label)
		if labelW < pw-1 && ph > 3 {
			pdf.SetTextColor(0, 0, 0)
			pdf.SetXY(px+(pw-labelW)/2, py+ph/2-1.5)
			pdf.CellFormat(labelW, 3, label, "", 0, "C", false, 0, "")
		}
	}
}

// drawDimensionAnnotations adds width and height labels outside the sheet rectangle.
func drawDimensionAnnotations(pdf *fpdf.Fpdf, sheet model.StockSheet, offsetX, offsetY, canvasW, canvasH float64) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(80, 80, 80)

	widthLabel := model.FormatDim(sheet.Width) + " mm"
	wLabelW := pdf.GetStringWidth(widthLabel)
	pdf.SetXY(offsetX+(canvasW-wLabelW)/2, offsetY+canvasH+1)
	pdf.CellFormat(wLabelW, 4, widthLabel, "", 0, "C", false, 0, "")

	heightLabel := model.FormatDim(sheet.Height) + " mm"
	pdf.TransformBegin()
	pdf.TransformRotate(90, offsetX-3, offsetY+canvasH/2)
	hLabelW := pdf.GetStringWidth(heightLabel)
	pdf.SetXY(offsetX-3-hLabelW/2, offsetY+canvasH/2-2)
	pdf.CellFormat(hLabelW, 4, heightLabel, "", 0, "C", false, 0, "")
	pdf.TransformEnd()

	pdf.SetTextColor(0, 0, 0)
}

// legendColumns returns how many table columns the legend needs to fit the
// page height.
func legendColumns(rows int) int {
	perCol := legendRowsPerColumn()
	cols := (rows + perCol - 1) / perCol
	if cols < 1 {
		return 1
	}
	if cols > legendMaxCols {
		return legendMaxCols
	}
	return cols
}

func legendRowsPerColumn() int {
	return int(math.Floor((pageHeight - drawAreaTop - marginBottom - legendRowHeight) / legendRowHeight))
}

// drawLegend renders the placed-pieces table ("Pc" / "Dim."), wrapping into
// up to legendMaxCols columns. Rows that still do not fit are summarised.
func drawLegend(pdf *fpdf.Fpdf, rows []model.LegendRow, x, y float64, cols int) {
	perCol := legendRowsPerColumn()
	capacity := perCol * cols
	shown := rows
	overflow := 0
	if len(rows) > capacity {
		shown = rows[:capacity-1]
		overflow = len(rows) - len(shown)
	}

	labelW := legendColWidth * 0.5
	dimW := legendColWidth*0.5 - 1

	for c := 0; c < cols; c++ {
		cx := x + float64(c)*legendColWidth
		pdf.SetFont("Helvetica", "B", 7)
		pdf.SetFillColor(230, 230, 230)
		pdf.SetXY(cx, y)
		pdf.CellFormat(labelW, legendRowHeight, "Pc", "1", 0, "C", true, 0, "")
		pdf.CellFormat(dimW, legendRowHeight, "Dim.", "1", 0, "C", true, 0, "")
	}

	pdf.SetFont("Helvetica", "", 7)
	for i, row := range shown {
		cx := x + float64(i/perCol)*legendColWidth
		cy := y + float64(i%perCol+1)*legendRowHeight
		pdf.SetXY(cx, cy)
		pdf.CellFormat(labelW, legendRowHeight, row.Label, "1", 0, "C", false, 0, "")
		pdf.CellFormat(dimW, legendRowHeight, row.Dimensions, "1", 0, "C", false, 0, "")
	}

	if overflow > 0 {
		i := len(shown)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.SetXY(x+float64(i/perCol)*legendColWidth, y+float64(i%perCol+1)*legendRowHeight)
		pdf.CellFormat(labelW+dimW, legendRowHeight, fmt.Sprintf("... and %d more", overflow), "1", 0, "C", false, 0, "")
	}
}

// drawMissing lists the unplaced sizes with their counts and an area-based
// estimate of how many sheets the whole request needs.
func drawMissing(pdf *fpdf.Fpdf, result model.PackingResult, y float64) {
	groups := result.UnplacedSummary()
	if len(groups) == 0 {
		return
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(200, 0, 0)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(120, 5, "Does not fit:", "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(0, 0, 0)
	text := ""
	for i, g := range groups {
		if i > 0 {
			text += ", "
		}
		text += g.String()
	}
	pdf.SetXY(marginLeft, y+5)
	pdf.MultiCell(pageWidth-marginLeft-marginRight-legendMaxCols*legendColWidth, 4, text, "", "L", false)

	estimate := model.EstimateSheets(requestedPieces(result), result.Sheet, result.Kerf)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(100, 100, 100)
	pdf.SetX(marginLeft)
	pdf.CellFormat(120, 4, fmt.Sprintf("Estimated sheets for the full list: at least %d", estimate.SheetsNeededMin), "", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// requestedPieces returns every piece that went into the run.
func requestedPieces(result model.PackingResult) []model.Piece {
	pieces := make([]model.Piece, 0, result.RequestedCount())
	for _, p := range result.Placements {
		pieces = append(pieces, p.Piece)
	}
	for _, u := range result.Unplaced {
		pieces = append(pieces, u.Piece)
	}
	return pieces
}

// labelFontSize returns an appropriate font size based on the rectangle dimensions.
func labelFontSize(w, h float64) float64 {
	minDim := math.Min(w, h)
	switch {
	case minDim > 30:
		return 8
	case minDim > 12:
		return 7
	default:
		return 5
	}
}
