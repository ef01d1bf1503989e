package assembler

import (
	"slices"
	"strings"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/chewxy/math32"
)

// LineStats are the positional medians of a detection list in pixels.
type LineStats struct {
	YMin    float32 `json:"y_min" yaml:"y_min"`
	YMax    float32 `json:"y_max" yaml:"y_max"`
	Width   float32 `json:"width" yaml:"width"`
	Height  float32 `json:"height" yaml:"height"`
	CenterY float32 `json:"center_y" yaml:"center_y"`
}

// MedianStats computes the medians used by the line filter. Empty input
// yields all zeros.
func MedianStats(boxes []detector.DetectedOcrBox) LineStats {
	if len(boxes) == 0 {
		return LineStats{}
	}
	yMin := make([]float32, len(boxes))
	yMax := make([]float32, len(boxes))
	widths := make([]float32, len(boxes))
	for i, b := range boxes {
		yMin[i] = b.Top
		yMax[i] = b.Bottom
		widths[i] = math32.Abs(b.Width())
	}
	s := LineStats{
		YMin:  positionalMedian(yMin),
		YMax:  positionalMedian(yMax),
		Width: positionalMedian(widths),
	}
	s.Height = math32.Abs(s.YMax - s.YMin)
	s.CenterY = (s.YMax + s.YMin) / 2
	return s
}

// Keeps reports whether box sits on the median line and is not oversized.
func (s LineStats) Keeps(box detector.DetectedOcrBox, tolerance float32) bool {
	return math32.Abs(box.CenterY()-s.CenterY) <= s.Height &&
		box.Height() <= tolerance*s.Height &&
		box.Width() <= tolerance*s.Width
}

// AssembleMedian reads a general layout with the default tolerance.
func AssembleMedian(boxes []detector.DetectionBox) (string, []detector.DetectedOcrBox) {
	return DefaultConfig().AssembleMedian(boxes)
}

// AssembleMedian reads boxes as one line of digits. Boxes far from the median
// line or larger than Tolerance times the median size are dropped; the rest
// are read left to right. It also returns every box in export form, sorted by
// left edge, for diagnostics.
func (c Config) AssembleMedian(boxes []detector.DetectionBox) (string, []detector.DetectedOcrBox) {
	sorted := slices.Clone(boxes)
	slices.SortStableFunc(sorted, byLeft)

	objectBoxes := make([]detector.DetectedOcrBox, len(sorted))
	for i, b := range sorted {
		objectBoxes[i] = detector.NewDetectedOcrBox(b)
	}

	stats := MedianStats(objectBoxes)

	var sb strings.Builder
	for _, b := range objectBoxes {
		if stats.Keeps(b, c.Tolerance) {
			sb.WriteByte(digitChar(b.Label))
		}
	}
	return sb.String(), objectBoxes
}
