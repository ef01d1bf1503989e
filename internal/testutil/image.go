package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// CardWidth and CardHeight match the aspect of an ID-1 card at model input size.
const (
	CardWidth  = 600
	CardHeight = 375
)

// CardColor is the fill of generated card frames.
var CardColor = color.NRGBA{R: 30, G: 60, B: 120, A: 255}

// CreateTestImage creates a uniform image of the given size.
func CreateTestImage(width, height int, c color.Color) *image.NRGBA {
	return imaging.New(width, height, c)
}

// CardFrame returns a blank card-sized frame.
func CardFrame() *image.NRGBA {
	return CreateTestImage(CardWidth, CardHeight, CardColor)
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// SaveImage writes img as PNG to path, creating the directory.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, EncodePNG(t, img), 0o600))
}

// WriteFrames writes n blank card frames named frame_XX.png into dir and
// returns their paths in order.
func WriteFrames(t *testing.T, dir string, n int) []string {
	t.Helper()

	paths := make([]string, n)
	for i := range n {
		paths[i] = filepath.Join(dir, "frame_"+twoDigits(i)+".png")
		SaveImage(t, CardFrame(), paths[i])
	}
	return paths
}

func twoDigits(i int) string {
	return string([]byte{byte('0' + i/10%10), byte('0' + i%10)})
}
