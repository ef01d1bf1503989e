package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.png", true},
		{"d.bmp", true},
		{"e.tiff", true},
		{"f.webp", true},
		{"g.pdf", false},
		{"noext", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsSupportedImage(c.path), c.path)
	}
}

func solidImage(w, h int, col color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	return img
}

func writeTempImage(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	var buf bytes.Buffer
	switch filepath.Ext(name) {
	case ".png":
		require.NoError(t, png.Encode(&buf, img))
	case ".bmp":
		require.NoError(t, bmp.Encode(&buf, img))
	case ".tiff":
		require.NoError(t, tiff.Encode(&buf, img, nil))
	default:
		t.Fatalf("unsupported test format %s", name)
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestLoadImageAndMetadata(t *testing.T) {
	for _, name := range []string{"frame.png", "frame.bmp", "frame.tiff"} {
		t.Run(name, func(t *testing.T) {
			p := writeTempImage(t, name, solidImage(10, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255}))

			img, meta, err := LoadImage(p)
			require.NoError(t, err)
			assert.Equal(t, 10, img.Bounds().Dx())
			assert.Equal(t, 20, meta.Height)
			assert.Equal(t, p, meta.Path)
			assert.Positive(t, meta.SizeBytes)
			assert.InDelta(t, 0.5, meta.AspectRatio, 1e-9)
		})
	}
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	require.Error(t, err)

	_, _, err = LoadImage("scan.pdf")
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)
}

func TestDecodeImageBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(6, 4, color.White)))

	img, meta, err := DecodeImageBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 6, img.Bounds().Dx())
	assert.Equal(t, int64(buf.Len()), meta.SizeBytes)

	_, _, err = DecodeImageBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestValidateImageConstraints(t *testing.T) {
	c := DefaultImageConstraints()
	assert.NoError(t, ValidateImageConstraints(solidImage(600, 375, color.White), c))
	assert.Error(t, ValidateImageConstraints(solidImage(8, 8, color.White), c))
	assert.Error(t, ValidateImageConstraints(nil, c))

	c.MaxWidth = 100
	assert.Error(t, ValidateImageConstraints(solidImage(101, 50, color.White), c))
}
