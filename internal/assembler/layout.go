package assembler

import (
	"slices"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/chewxy/math32"
)

// positionalMedian sorts values in place and returns the element at len/2.
// Even-length input is not averaged. Empty input yields 0.
func positionalMedian(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	slices.Sort(values)
	return values[len(values)/2]
}

// IsQuickRead reports whether boxes look like a four-row card using the
// default spread.
func IsQuickRead(boxes []detector.DetectionBox) bool {
	return DefaultConfig().IsQuickRead(boxes)
}

// IsQuickRead reports whether exactly 16 boxes are spread vertically enough to
// be four rows: the summed distance of their pixel centers from the median
// center must exceed QuickReadSpread median heights.
func (c Config) IsQuickRead(boxes []detector.DetectionBox) bool {
	if len(boxes) != QuickReadDigits {
		return false
	}

	centers := make([]float32, len(boxes))
	heights := make([]float32, len(boxes))
	for i, b := range boxes {
		p := b.Pixels()
		centers[i] = p.CenterY()
		heights[i] = math32.Abs(p.Height())
	}

	medianCenter := positionalMedian(centers)
	medianHeight := positionalMedian(heights)

	var deviation float32
	for _, cy := range centers {
		deviation += math32.Abs(medianCenter - cy)
	}
	return deviation > c.QuickReadSpread*medianHeight
}
