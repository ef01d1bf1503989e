package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrawRect(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	red := color.RGBA{R: 255, A: 255}

	DrawRect(dst, image.Rect(2, 2, 10, 10), red, 1)

	assert.Equal(t, red, dst.RGBAAt(2, 2))
	assert.Equal(t, red, dst.RGBAAt(9, 5))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(5, 5), "interior untouched")
}

func TestDrawRect_ClipsAndCanonicalizes(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	DrawRect(dst, image.Rect(15, 15, -5, -5), color.White, 0)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, dst.RGBAAt(0, 0))

	empty := image.NewRGBA(image.Rect(0, 0, 10, 10))
	DrawRect(empty, image.Rect(20, 20, 30, 30), color.White, 1)
	assert.Equal(t, make([]uint8, len(empty.Pix)), empty.Pix)
}

func TestDrawOverlay_LayersInOrder(t *testing.T) {
	src := solidImage(30, 30, color.Black)
	green := color.NRGBA{G: 255, A: 255}
	gray := color.NRGBA{R: 128, G: 128, B: 128, A: 255}

	out := DrawOverlay(src,
		BoxLayer{Rects: []image.Rectangle{image.Rect(0, 0, 30, 30)}, Color: gray},
		BoxLayer{Rects: []image.Rectangle{image.Rect(0, 0, 10, 10)}, Color: green, Thickness: 2},
	)

	assert.Equal(t, green, out.NRGBAAt(0, 0), "later layer wins")
	assert.Equal(t, gray, out.NRGBAAt(29, 29))
	assert.Equal(t, color.RGBA{A: 255}, src.RGBAAt(0, 0), "source unchanged")
}
