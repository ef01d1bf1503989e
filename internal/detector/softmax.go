package detector

import "github.com/chewxy/math32"

// Softmax2D normalizes every row of a row-major matrix with cols columns into
// a probability distribution. The row maximum is subtracted before
// exponentiating so large logits do not overflow.
func Softmax2D(scores []float32, cols int) {
	if cols <= 0 {
		return
	}
	for start := 0; start+cols <= len(scores); start += cols {
		softmaxRow(scores[start : start+cols])
	}
}

func softmaxRow(row []float32) {
	maxVal := row[0]
	for _, v := range row[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float32
	for i, v := range row {
		e := math32.Exp(v - maxVal)
		row[i] = e
		sum += e
	}
	for i := range row {
		row[i] /= sum
	}
}
