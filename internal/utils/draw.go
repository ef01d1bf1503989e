package utils

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// BoxLayer is a set of rectangles drawn in one color.
type BoxLayer struct {
	Rects     []image.Rectangle
	Color     color.Color
	Thickness int
}

// DrawOverlay returns a copy of img with each layer's rectangle outlines
// drawn on top, in order.
func DrawOverlay(img image.Image, layers ...BoxLayer) *image.NRGBA {
	out := imaging.Clone(img)
	for _, l := range layers {
		for _, r := range l.Rects {
			DrawRect(out, r, l.Color, l.Thickness)
		}
	}
	return out
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst draw.Image, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Canon().Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}
