package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriors_Count(t *testing.T) {
	priors := Priors()
	assert.Len(t, priors, 3420)
	assert.Equal(t, DefaultConfig().NumPriors(), len(priors))
}

func TestPriors_SharedInstance(t *testing.T) {
	a := Priors()
	b := Priors()
	require.NotEmpty(t, a)
	assert.Same(t, &a[0], &b[0], "every caller should see the same cached slice")

	c := PriorsFor(DefaultFeatureMaps(), InputWidth, InputHeight)
	assert.Same(t, &a[0], &c[0])
}

func TestPriors_FirstCell(t *testing.T) {
	priors := Priors()

	// Cell (0,0) of the 38x24 layer, shrinkage 16.
	cx := float32(0.5) * 16 / 600
	cy := float32(0.5) * 16 / 375

	assert.InDelta(t, cx, priors[0].CenterX, 1e-6)
	assert.InDelta(t, cy, priors[0].CenterY, 1e-6)
	assert.InDelta(t, 14.0/600, priors[0].Width, 1e-6)
	assert.InDelta(t, 14.0/375, priors[0].Height, 1e-6)

	// Middle anchor uses sqrt(min*max) and is stretched by sqrt(3).
	assert.InDelta(t, 20.4939/600, priors[1].Width, 1e-5)
	assert.InDelta(t, 20.4939/375*1.7320508, priors[1].Height, 1e-5)

	// Tall anchor keeps the minimum width.
	assert.InDelta(t, 14.0/600, priors[2].Width, 1e-6)
	assert.InDelta(t, 14.0/375*1.7320508, priors[2].Height, 1e-6)
}

func TestPriors_RowMajorOrder(t *testing.T) {
	priors := Priors()
	// Second cell of the first row moves along x only.
	assert.Greater(t, priors[3].CenterX, priors[0].CenterX)
	assert.Equal(t, priors[0].CenterY, priors[3].CenterY)
	// First cell of the second row sits one row below.
	row := 38 * PriorsPerActivation
	assert.Equal(t, priors[0].CenterX, priors[row].CenterX)
	assert.Greater(t, priors[row].CenterY, priors[0].CenterY)
}

func TestPriors_SecondLayerStart(t *testing.T) {
	priors := Priors()
	first := 38 * 24 * PriorsPerActivation
	assert.InDelta(t, float32(0.5)*31/600, priors[first].CenterX, 1e-6)
	assert.InDelta(t, 30.0/600, priors[first].Width, 1e-6)
}

func TestPriors_Clamped(t *testing.T) {
	for i, p := range Priors() {
		for _, v := range []float32{p.CenterX, p.CenterY, p.Width, p.Height} {
			if v < 0 || v > 1 {
				t.Fatalf("prior %d has component %f outside [0,1]", i, v)
			}
		}
	}
}

func TestPriorsFor_CustomMaps(t *testing.T) {
	maps := []FeatureMapSpec{{Width: 2, Height: 1, ShrinkX: 10, ShrinkY: 10, BoxMin: 5, BoxMax: 10, AspectRatio: 1}}
	priors := PriorsFor(maps, 20, 10)
	require.Len(t, priors, 6)
	assert.InDelta(t, 0.25, priors[0].CenterX, 1e-6)
	assert.InDelta(t, 0.75, priors[3].CenterX, 1e-6)
	assert.InDelta(t, 0.5, priors[0].CenterY, 1e-6)
}
