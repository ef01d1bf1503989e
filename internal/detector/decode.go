package detector

import (
	"fmt"

	"github.com/chewxy/math32"
)

// DecodeBoxes turns location regressions into corner-form rectangles in place.
// locations holds one row of (cx, cy, w, h) offsets per prior.
func DecodeBoxes(locations []float32, priors []PriorBox, centerVariance, sizeVariance float32) error {
	if len(locations) != len(priors)*NumCoordinates {
		return fmt.Errorf("%w: %d location values for %d priors", ErrShapeMismatch, len(locations), len(priors))
	}
	AdjustLocations(locations, priors, centerVariance, sizeVariance)
	ToCornerForm(locations)
	return nil
}

// AdjustLocations applies the regressions to the priors, leaving rows in
// center form (cx, cy, w, h).
func AdjustLocations(locations []float32, priors []PriorBox, centerVariance, sizeVariance float32) {
	for i, p := range priors {
		row := locations[i*NumCoordinates : (i+1)*NumCoordinates : (i+1)*NumCoordinates]
		row[0] = p.CenterX + row[0]*centerVariance*p.Width
		row[1] = p.CenterY + row[1]*centerVariance*p.Height
		row[2] = p.Width * math32.Exp(row[2]*sizeVariance)
		row[3] = p.Height * math32.Exp(row[3]*sizeVariance)
	}
}

// ToCornerForm converts center-form rows (cx, cy, w, h) into (left, top, right, bottom).
func ToCornerForm(boxes []float32) {
	for i := 0; i+NumCoordinates <= len(boxes); i += NumCoordinates {
		cx, cy := boxes[i], boxes[i+1]
		halfW, halfH := boxes[i+2]/2, boxes[i+3]/2
		boxes[i] = cx - halfW
		boxes[i+1] = cy - halfH
		boxes[i+2] = cx + halfW
		boxes[i+3] = cy + halfH
	}
}

// EncodeBox is the inverse of the decoder for a single box: it returns the
// regression that decodes to r against prior p.
func EncodeBox(r Rect, p PriorBox, centerVariance, sizeVariance float32) [NumCoordinates]float32 {
	return [NumCoordinates]float32{
		(r.CenterX() - p.CenterX) / (centerVariance * p.Width),
		(r.CenterY() - p.CenterY) / (centerVariance * p.Height),
		math32.Log(r.Width()/p.Width) / sizeVariance,
		math32.Log(r.Height()/p.Height) / sizeVariance,
	}
}

// rectAt reads row i of a corner-form box matrix.
func rectAt(boxes []float32, i int) Rect {
	o := i * NumCoordinates
	return Rect{Left: boxes[o], Top: boxes[o+1], Right: boxes[o+2], Bottom: boxes[o+3]}
}
