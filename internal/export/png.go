package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/piwi3910/CutYield/internal/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// DefaultPreviewWidth is the PNG width used when the caller passes zero.
const DefaultPreviewWidth = 1200

var (
	previewBackground = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	previewSheet      = color.RGBA{R: 245, G: 245, B: 240, A: 255}
	previewOutline    = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	previewText       = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// previewMargin is the blank border around the sheet, in pixels.
const previewMargin = 10

// RenderPNG draws a raster preview of the layout, widthPx pixels wide with
// the sheet's aspect ratio, and writes it to w as PNG.
func RenderPNG(w io.Writer, result model.PackingResult, widthPx int) error {
	img, err := RenderImage(result, widthPx)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// RenderImage draws the layout into a new RGBA image. The layout origin is
// the bottom-left corner of the sheet while image rows grow downwards, so
// y is flipped.
func RenderImage(result model.PackingResult, widthPx int) (*image.RGBA, error) {
	sheet := result.Sheet
	if sheet.Width <= 0 || sheet.Height <= 0 {
		return nil, fmt.Errorf("cannot render preview: %w", model.ErrInvalidSheet)
	}
	if widthPx <= 0 {
		widthPx = DefaultPreviewWidth
	}
	if widthPx <= 2*previewMargin {
		return nil, fmt.Errorf("preview width %d is too small", widthPx)
	}

	scale := float64(widthPx-2*previewMargin) / sheet.Width
	canvasW := widthPx - 2*previewMargin
	canvasH := int(sheet.Height*scale + 0.5)
	if canvasH < 1 {
		canvasH = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, widthPx, canvasH+2*previewMargin))
	draw.Draw(img, img.Bounds(), image.NewUniform(previewBackground), image.Point{}, draw.Src)

	sheetRect := image.Rect(previewMargin, previewMargin, previewMargin+canvasW, previewMargin+canvasH)
	draw.Draw(img, sheetRect, image.NewUniform(previewSheet), image.Point{}, draw.Src)
	strokeRect(img, sheetRect, 2)

	toPixels := func(x, y, w, h float64) image.Rectangle {
		x0 := previewMargin + int(x*scale+0.5)
		y0 := previewMargin + int((sheet.Height-y-h)*scale+0.5)
		x1 := previewMargin + int((x+w)*scale+0.5)
		y1 := previewMargin + int((sheet.Height-y)*scale+0.5)
		return image.Rect(x0, y0, x1, y1)
	}

	for i, p := range result.Placements {
		r := toPixels(p.X, p.Y, p.PlacedWidth(), p.PlacedHeight())
		c := colorFor(i)
		draw.Draw(img, r, image.NewUniform(color.RGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 255}), image.Point{}, draw.Src)
		strokeRect(img, r, 1)
		drawCenteredText(img, r, model.ShortLabel(p.Piece.Label))
	}

	return img, nil
}

// strokeRect outlines r with a border of the given thickness in pixels,
// rasterised as a ring: the outer path clockwise, the inner one
// counter-clockwise so its coverage cancels.
func strokeRect(img *image.RGBA, r image.Rectangle, thickness float32) {
	b := img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())

	x0, y0 := float32(r.Min.X), float32(r.Min.Y)
	x1, y1 := float32(r.Max.X), float32(r.Max.Y)

	z.MoveTo(x0, y0)
	z.LineTo(x1, y0)
	z.LineTo(x1, y1)
	z.LineTo(x0, y1)
	z.ClosePath()

	if x1-x0 > 2*thickness && y1-y0 > 2*thickness {
		z.MoveTo(x0+thickness, y0+thickness)
		z.LineTo(x0+thickness, y1-thickness)
		z.LineTo(x1-thickness, y1-thickness)
		z.LineTo(x1-thickness, y0+thickness)
		z.ClosePath()
	}

	z.Draw(img, b, image.NewUniform(previewOutline), image.Point{})
}

// drawCenteredText writes label in the middle of r when it fits.
func drawCenteredText(img *image.RGBA, r image.Rectangle, label string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(previewText), Face: face}

	textW := d.MeasureString(label).Ceil()
	textH := face.Metrics().Ascent.Ceil()
	if textW > r.Dx()-4 || textH > r.Dy()-4 {
		return
	}

	x := r.Min.X + (r.Dx()-textW)/2
	y := r.Min.Y + (r.Dy()+textH)/2
	d.Dot = fixed.P(x, y)
	d.DrawString(label)
}
