package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/cardscan/internal/mempool"
	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds the frames accepted for scanning. Zero maxima mean unbounded.
type ImageConstraints struct {
	MaxWidth  int
	MaxHeight int
	MinWidth  int
	MinHeight int
}

// DefaultImageConstraints returns the limits applied to uploaded frames.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MaxWidth:  8192,
		MaxHeight: 8192,
		MinWidth:  16,
		MinHeight: 16,
	}
}

// ResizeExact scales img to exactly width x height with bilinear filtering,
// ignoring the aspect ratio.
func ResizeExact(img image.Image, width, height int) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{
			Operation: "resize",
			Err:       fmt.Errorf("invalid target dimensions: %dx%d", width, height),
		}
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, width, height, imaging.Linear), nil
}

// NormalizeImage converts img to a [3, H, W] float tensor with
// (value - mean) / std applied to each 0-255 RGB channel. Alpha is dropped.
func NormalizeImage(img image.Image, mean, std float32) ([]float32, error) {
	nrgba, err := normalizeSource(img, std)
	if err != nil {
		return nil, err
	}
	b := nrgba.Bounds()
	data := make([]float32, 3*b.Dx()*b.Dy())
	normalizeInto(data, nrgba, mean, std)
	return data, nil
}

// NormalizeImagePooled is NormalizeImage with the output taken from mempool.
// The caller should return the buffer via mempool.PutFloat32 when done.
func NormalizeImagePooled(img image.Image, mean, std float32) ([]float32, error) {
	nrgba, err := normalizeSource(img, std)
	if err != nil {
		return nil, err
	}
	b := nrgba.Bounds()
	data := mempool.GetFloat32(3 * b.Dx() * b.Dy())
	normalizeInto(data, nrgba, mean, std)
	return data, nil
}

func normalizeSource(img image.Image, std float32) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}
	if std == 0 {
		return nil, &ImageProcessingError{Operation: "normalize", Err: errors.New("std must be non-zero")}
	}
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ImageProcessingError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}
	return nrgba, nil
}

// normalizeInto writes the R, G and B planes of src into dst.
func normalizeInto(dst []float32, src *image.NRGBA, mean, std float32) {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	plane := width * height
	for y := range height {
		row := src.Pix[y*src.Stride:]
		for x := range width {
			px := row[x*4 : x*4+3]
			idx := y*width + x
			dst[idx] = (float32(px[0]) - mean) / std
			dst[plane+idx] = (float32(px[1]) - mean) / std
			dst[2*plane+idx] = (float32(px[2]) - mean) / std
		}
	}
}
