package detector

import (
	"slices"
	"sync"

	"github.com/chewxy/math32"
)

// PriorBox is an anchor in center form, normalized to the model input.
type PriorBox struct {
	CenterX float32 `json:"center_x" yaml:"center_x"`
	CenterY float32 `json:"center_y" yaml:"center_y"`
	Width   float32 `json:"width" yaml:"width"`
	Height  float32 `json:"height" yaml:"height"`
}

// FeatureMapSpec describes one SSD output layer and the anchors laid over it.
type FeatureMapSpec struct {
	Width       int     `json:"width" yaml:"width"`               // cells along x
	Height      int     `json:"height" yaml:"height"`             // cells along y
	ShrinkX     float32 `json:"shrink_x" yaml:"shrink_x"`         // input pixels per cell along x
	ShrinkY     float32 `json:"shrink_y" yaml:"shrink_y"`         // input pixels per cell along y
	BoxMin      float32 `json:"box_min" yaml:"box_min"`           // smallest anchor side in input pixels
	BoxMax      float32 `json:"box_max" yaml:"box_max"`           // largest anchor side in input pixels
	AspectRatio float32 `json:"aspect_ratio" yaml:"aspect_ratio"` // height stretch applied to the tall anchors
}

// DefaultFeatureMaps returns the two layers of the shipped model.
func DefaultFeatureMaps() []FeatureMapSpec {
	return []FeatureMapSpec{
		{Width: 38, Height: 24, ShrinkX: 16, ShrinkY: 16, BoxMin: 14, BoxMax: 30, AspectRatio: 3},
		{Width: 19, Height: 12, ShrinkX: 31, ShrinkY: 31, BoxMin: 30, BoxMax: 45, AspectRatio: 3},
	}
}

var defaultPriors = sync.OnceValue(func() []PriorBox {
	return GeneratePriors(DefaultFeatureMaps(), InputWidth, InputHeight)
})

// Priors returns the prior set of the shipped model. It is generated on first
// use and the same slice is returned to every caller; callers must not modify it.
func Priors() []PriorBox {
	return defaultPriors()
}

// PriorsFor returns the shared prior set when maps match the shipped model and
// a freshly generated one otherwise.
func PriorsFor(maps []FeatureMapSpec, inputWidth, inputHeight int) []PriorBox {
	if inputWidth == InputWidth && inputHeight == InputHeight && slices.Equal(maps, DefaultFeatureMaps()) {
		return Priors()
	}
	return GeneratePriors(maps, inputWidth, inputHeight)
}

// GeneratePriors lays PriorsPerActivation anchors over every cell of every
// feature map. Order is layer, row, column, anchor; it matches the row order
// produced by Rearrange.
func GeneratePriors(maps []FeatureMapSpec, inputWidth, inputHeight int) []PriorBox {
	total := 0
	for _, fm := range maps {
		total += fm.Width * fm.Height * PriorsPerActivation
	}
	priors := make([]PriorBox, 0, total)

	iw, ih := float32(inputWidth), float32(inputHeight)
	for _, fm := range maps {
		scaleX := iw / fm.ShrinkX
		scaleY := ih / fm.ShrinkY
		ratio := math32.Sqrt(fm.AspectRatio)
		mid := math32.Sqrt(fm.BoxMax * fm.BoxMin)

		for j := range fm.Height {
			for i := range fm.Width {
				cx := (float32(i) + 0.5) / scaleX
				cy := (float32(j) + 0.5) / scaleY

				priors = append(priors,
					clampPrior(PriorBox{CenterX: cx, CenterY: cy, Width: fm.BoxMin / iw, Height: fm.BoxMin / ih}),
					clampPrior(PriorBox{CenterX: cx, CenterY: cy, Width: mid / iw, Height: mid / ih * ratio}),
					clampPrior(PriorBox{CenterX: cx, CenterY: cy, Width: fm.BoxMin / iw, Height: fm.BoxMin / ih * ratio}),
				)
			}
		}
	}
	return priors
}

func clampPrior(p PriorBox) PriorBox {
	return PriorBox{
		CenterX: clamp01(p.CenterX),
		CenterY: clamp01(p.CenterY),
		Width:   clamp01(p.Width),
		Height:  clamp01(p.Height),
	}
}

func clamp01(v float32) float32 {
	return math32.Min(math32.Max(v, 0), 1)
}
