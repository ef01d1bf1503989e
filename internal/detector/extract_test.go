package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scoreMatrix builds a probability matrix where row i puts probs[i] on class
// classes[i] and spreads the rest over the background.
func scoreMatrix(classes []int, probs []float32) []float32 {
	m := make([]float32, len(classes)*NumClasses)
	for i, c := range classes {
		m[i*NumClasses+BackgroundClass] = 1 - probs[i]
		m[i*NumClasses+c] += probs[i]
	}
	return m
}

func boxMatrix(rects ...Rect) []float32 {
	m := make([]float32, 0, len(rects)*NumCoordinates)
	for _, r := range rects {
		m = append(m, r.Left, r.Top, r.Right, r.Bottom)
	}
	return m
}

var testSize = Size{Width: 600, Height: 375}

func TestRemapLabel(t *testing.T) {
	assert.Equal(t, 0, RemapLabel(10))
	for c := 1; c <= 9; c++ {
		assert.Equal(t, c, RemapLabel(c))
	}
}

func TestExtract_ZeroAliasClassBecomesZero(t *testing.T) {
	scores := scoreMatrix([]int{ZeroAliasClass}, []float32{0.9})
	boxes := boxMatrix(Rect{Left: 0.1, Top: 0.1, Right: 0.2, Bottom: 0.2})

	dets := Extract(scores, boxes, testSize, DefaultExtractOptions())
	require.Len(t, dets, 1)
	assert.Equal(t, 0, dets[0].Label)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	assert.Equal(t, testSize, dets[0].ImageSize)
}

func TestExtract_ThresholdIsExclusive(t *testing.T) {
	scores := scoreMatrix([]int{3, 3}, []float32{0.5, 0.51})
	boxes := boxMatrix(
		Rect{Left: 0.1, Top: 0.1, Right: 0.2, Bottom: 0.2},
		Rect{Left: 0.5, Top: 0.1, Right: 0.6, Bottom: 0.2},
	)

	dets := Extract(scores, boxes, testSize, DefaultExtractOptions())
	require.Len(t, dets, 1)
	assert.InDelta(t, 0.51, dets[0].Confidence, 1e-6)
}

func TestExtract_SuppressesOverlapsWithinClass(t *testing.T) {
	a := Rect{Left: 0.1, Top: 0.1, Right: 0.2, Bottom: 0.3}
	b := Rect{Left: 0.11, Top: 0.1, Right: 0.21, Bottom: 0.3} // IoU ~0.82 with a
	c := Rect{Left: 0.5, Top: 0.1, Right: 0.6, Bottom: 0.3}

	scores := scoreMatrix([]int{7, 7, 7}, []float32{0.8, 0.95, 0.7})
	dets := Extract(scores, boxMatrix(a, b, c), testSize, DefaultExtractOptions())

	require.Len(t, dets, 2)
	assert.Equal(t, b, dets[0].Rect, "best box first")
	assert.Equal(t, c, dets[1].Rect)
}

func TestExtract_DoesNotSuppressAcrossClasses(t *testing.T) {
	a := Rect{Left: 0.1, Top: 0.1, Right: 0.2, Bottom: 0.3}
	scores := scoreMatrix([]int{2, 5}, []float32{0.9, 0.9})

	dets := Extract(scores, boxMatrix(a, a), testSize, DefaultExtractOptions())
	require.Len(t, dets, 2)
	assert.Equal(t, 2, dets[0].Label)
	assert.Equal(t, 5, dets[1].Label)
}

func TestExtract_TopKPerClass(t *testing.T) {
	var rects []Rect
	var classes []int
	var probs []float32
	for i := range 6 {
		x := float32(i) * 0.15
		rects = append(rects, Rect{Left: x, Top: 0.1, Right: x + 0.1, Bottom: 0.2})
		classes = append(classes, 4)
		probs = append(probs, 0.6+float32(i)*0.05)
	}
	opts := DefaultExtractOptions()
	opts.TopK = 3

	dets := Extract(scoreMatrix(classes, probs), boxMatrix(rects...), testSize, opts)
	require.Len(t, dets, 3)
	assert.InDelta(t, 0.85, dets[0].Confidence, 1e-6)
	assert.InDelta(t, 0.80, dets[1].Confidence, 1e-6)
	assert.InDelta(t, 0.75, dets[2].Confidence, 1e-6)
}

func TestExtract_TiesKeepPriorOrder(t *testing.T) {
	a := Rect{Left: 0.1, Top: 0.1, Right: 0.2, Bottom: 0.3}
	b := Rect{Left: 0.105, Top: 0.1, Right: 0.205, Bottom: 0.3}
	scores := scoreMatrix([]int{6, 6}, []float32{0.9, 0.9})

	for range 10 {
		dets := Extract(scores, boxMatrix(a, b), testSize, DefaultExtractOptions())
		require.Len(t, dets, 1)
		assert.Equal(t, a, dets[0].Rect, "the lower prior index wins a tie")
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	assert.Empty(t, Extract(nil, nil, testSize, DefaultExtractOptions()))
	assert.Empty(t, Extract([]float32{1}, nil, testSize, ExtractOptions{}))
}

func TestIoU(t *testing.T) {
	a := Rect{Left: 0, Top: 0, Right: 2, Bottom: 2}
	b := Rect{Left: 1, Top: 1, Right: 3, Bottom: 3}
	assert.InDelta(t, 1.0/7.0, IoU(a, b), 1e-6)
	assert.InDelta(t, 1.0, IoU(a, a), 1e-6)
	assert.Zero(t, IoU(a, Rect{Left: 5, Top: 5, Right: 6, Bottom: 6}))
}

func TestDetectionBox_Pixels(t *testing.T) {
	d := DetectionBox{Rect: Rect{Left: 0.1, Top: 0.2, Right: 0.5, Bottom: 0.6}, ImageSize: Size{Width: 600, Height: 375}}
	p := d.Pixels()
	assert.InDelta(t, 60, p.Left, 1e-4)
	assert.InDelta(t, 75, p.Top, 1e-4)
	assert.InDelta(t, 300, p.Right, 1e-4)
	assert.InDelta(t, 225, p.Bottom, 1e-4)

	o := NewDetectedOcrBox(d)
	assert.InDelta(t, 240, o.Width(), 1e-3)
	assert.InDelta(t, 150, o.Height(), 1e-3)
	assert.InDelta(t, 150, o.CenterY(), 1e-3)
}
