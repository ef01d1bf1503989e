package detector

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a tensor does not have the length implied
// by the model geometry.
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// RearrangedLen returns the number of values a head produces for the given
// feature maps.
func RearrangedLen(maps []FeatureMapSpec, priorsPerCell, valuesPerPrior int) int {
	n := 0
	for _, fm := range maps {
		n += fm.Width * fm.Height * priorsPerCell * valuesPerPrior
	}
	return n
}

// Rearrange converts a head output made of per-layer channel-first blocks
// (C = priorsPerCell*valuesPerPrior, H, W) into one row of valuesPerPrior
// values per prior, ordered layer, row, column, anchor.
func Rearrange(raw []float32, maps []FeatureMapSpec, priorsPerCell, valuesPerPrior int) ([]float32, error) {
	dst := make([]float32, RearrangedLen(maps, priorsPerCell, valuesPerPrior))
	if err := RearrangeInto(dst, raw, maps, priorsPerCell, valuesPerPrior); err != nil {
		return nil, err
	}
	return dst, nil
}

// RearrangeInto is Rearrange writing into dst, which must have the rearranged length.
func RearrangeInto(dst, raw []float32, maps []FeatureMapSpec, priorsPerCell, valuesPerPrior int) error {
	want := RearrangedLen(maps, priorsPerCell, valuesPerPrior)
	if len(raw) != want {
		return fmt.Errorf("%w: head has %d values, want %d", ErrShapeMismatch, len(raw), want)
	}
	if len(dst) != want {
		return fmt.Errorf("%w: destination has %d values, want %d", ErrShapeMismatch, len(dst), want)
	}

	channels := priorsPerCell * valuesPerPrior
	offset := 0
	for _, fm := range maps {
		plane := fm.Width * fm.Height
		for y := range fm.Height {
			for x := range fm.Width {
				cell := y*fm.Width + x
				out := offset + cell*channels
				for c := range channels {
					dst[out+c] = raw[offset+c*plane+cell]
				}
			}
		}
		offset += plane * channels
	}
	return nil
}

// Arrange is the inverse of Rearrange: it lays per-prior rows back out as
// per-layer channel-first blocks, the way the network emits them.
func Arrange(rows []float32, maps []FeatureMapSpec, priorsPerCell, valuesPerPrior int) ([]float32, error) {
	want := RearrangedLen(maps, priorsPerCell, valuesPerPrior)
	if len(rows) != want {
		return nil, fmt.Errorf("%w: rows have %d values, want %d", ErrShapeMismatch, len(rows), want)
	}
	raw := make([]float32, want)
	channels := priorsPerCell * valuesPerPrior
	offset := 0
	for _, fm := range maps {
		plane := fm.Width * fm.Height
		for cell := range plane {
			for c := range channels {
				raw[offset+c*plane+cell] = rows[offset+cell*channels+c]
			}
		}
		offset += plane * channels
	}
	return raw, nil
}
