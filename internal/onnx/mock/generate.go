// Package mock produces synthetic SSD outputs and a scriptable stand-in for
// the inference model, so post-processing can be tested without ONNX Runtime.
package mock

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/chewxy/math32"
)

// Default logits used for a synthetic detection; softmax gives ~0.997.
const (
	HighLogit float32 = 8
	LowLogit  float32 = 0
)

// Digit is a box the synthetic network should report.
type Digit struct {
	Class int           // raw class index, 1-10 (10 is the second zero class)
	Rect  detector.Rect // normalized corner form
	Logit float32       // winning logit, HighLogit when zero
}

// ClassFor returns the raw class index for a digit character. Zeros use the
// alias class so the remap is exercised.
func ClassFor(r rune) (int, error) {
	switch {
	case r == '0':
		return detector.ZeroAliasClass, nil
	case r >= '1' && r <= '9':
		return int(r - '0'), nil
	default:
		return 0, fmt.Errorf("not a digit: %q", r)
	}
}

// EncodeOutputs builds the raw location and class heads, laid out per layer
// channel-first, that decode to exactly the given digits. Each digit is bound
// to the unused prior whose center is nearest to the digit's center; every
// other prior votes for the background class.
func EncodeOutputs(digits []Digit, cfg detector.Config) (detector.Outputs, error) {
	priors := detector.PriorsFor(cfg.FeatureMaps, cfg.InputWidth, cfg.InputHeight)
	if len(digits) > len(priors) {
		return detector.Outputs{}, errors.New("more digits than priors")
	}
	classes := cfg.Extract.NumClasses

	locs := make([]float32, len(priors)*detector.NumCoordinates)
	scores := make([]float32, len(priors)*classes)
	for i := range priors {
		scores[i*classes+detector.BackgroundClass] = HighLogit
	}

	used := make(map[int]bool, len(digits))
	for _, d := range digits {
		if d.Class <= detector.BackgroundClass || d.Class >= classes {
			return detector.Outputs{}, fmt.Errorf("class %d out of range", d.Class)
		}
		if d.Rect.Width() <= 0 || d.Rect.Height() <= 0 {
			return detector.Outputs{}, fmt.Errorf("degenerate rectangle %+v", d.Rect)
		}
		idx := nearestPrior(priors, d.Rect, used)
		used[idx] = true

		enc := detector.EncodeBox(d.Rect, priors[idx], cfg.CenterVariance, cfg.SizeVariance)
		copy(locs[idx*detector.NumCoordinates:], enc[:])

		logit := d.Logit
		if logit == 0 {
			logit = HighLogit
		}
		row := scores[idx*classes : (idx+1)*classes]
		for c := range row {
			row[c] = LowLogit
		}
		row[d.Class] = logit
	}

	rawLocs, err := detector.Arrange(locs, cfg.FeatureMaps, cfg.PriorsPerActivation, detector.NumCoordinates)
	if err != nil {
		return detector.Outputs{}, err
	}
	rawScores, err := detector.Arrange(scores, cfg.FeatureMaps, cfg.PriorsPerActivation, classes)
	if err != nil {
		return detector.Outputs{}, err
	}
	return detector.Outputs{Locations: rawLocs, Classes: rawScores}, nil
}

func nearestPrior(priors []detector.PriorBox, r detector.Rect, used map[int]bool) int {
	best, bestDist := -1, float32(math32.MaxFloat32)
	cx, cy := r.CenterX(), r.CenterY()
	for i, p := range priors {
		if used[i] {
			continue
		}
		dx, dy := p.CenterX-cx, p.CenterY-cy
		if d := dx*dx + dy*dy; d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// LineDigits lays number out as one horizontal line of equally spaced boxes
// between x = 0.1 and x = 0.9, starting at top with the given height.
func LineDigits(number string, top, height float32) ([]Digit, error) {
	n := len(number)
	if n == 0 {
		return nil, nil
	}
	pitch := float32(0.8) / float32(n)
	width := pitch * 0.7
	digits := make([]Digit, 0, n)
	for i, r := range number {
		class, err := ClassFor(r)
		if err != nil {
			return nil, err
		}
		left := 0.1 + float32(i)*pitch
		digits = append(digits, Digit{
			Class: class,
			Rect:  detector.Rect{Left: left, Top: top, Right: left + width, Bottom: top + height},
		})
	}
	return digits, nil
}

// GridDigits lays a 16 digit number out as four rows of four, the layout of
// cards printed in stacked groups.
func GridDigits(number string) ([]Digit, error) {
	if len(number) != 16 {
		return nil, fmt.Errorf("grid layout needs 16 digits, got %d", len(number))
	}
	digits := make([]Digit, 0, 16)
	for i, r := range number {
		class, err := ClassFor(r)
		if err != nil {
			return nil, err
		}
		row, col := i/4, i%4
		left := 0.3 + float32(col)*0.1
		top := 0.15 + float32(row)*0.2
		digits = append(digits, Digit{
			Class: class,
			Rect:  detector.Rect{Left: left, Top: top, Right: left + 0.07, Bottom: top + 0.1},
		})
	}
	return digits, nil
}

// Shuffle returns digits in a fixed scrambled order, so assemblers cannot
// rely on the order the network reports boxes in.
func Shuffle(digits []Digit) []Digit {
	out := make([]Digit, 0, len(digits))
	for i := len(digits) - 1; i >= 0; i -= 2 {
		out = append(out, digits[i])
	}
	for i := len(digits) - 2; i >= 0; i -= 2 {
		out = append(out, digits[i])
	}
	return out
}

// Detections converts digits into detector boxes directly, skipping the
// network encoding.
func Detections(digits []Digit, size detector.Size) []detector.DetectionBox {
	out := make([]detector.DetectionBox, 0, len(digits))
	for _, d := range digits {
		out = append(out, detector.DetectionBox{
			Rect:       d.Rect,
			Label:      detector.RemapLabel(d.Class),
			Confidence: 0.99,
			ImageSize:  size,
		})
	}
	return out
}
