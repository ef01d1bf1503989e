package assembler

import (
	"math/rand/v2"
	"testing"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frame = detector.Size{Width: 600, Height: 375}

// pixelBox builds a detection from a pixel rectangle on a 600x375 frame.
func pixelBox(label int, left, top, right, bottom float32) detector.DetectionBox {
	w, h := float32(frame.Width), float32(frame.Height)
	return detector.DetectionBox{
		Rect:       detector.Rect{Left: left / w, Top: top / h, Right: right / w, Bottom: bottom / h},
		Label:      label,
		Confidence: 0.9,
		ImageSize:  frame,
	}
}

// gridBoxes lays number out as four rows of four digits, rows 80px apart.
func gridBoxes(t *testing.T, number string) []detector.DetectionBox {
	t.Helper()
	require.Len(t, number, QuickReadDigits)
	boxes := make([]detector.DetectionBox, 0, len(number))
	for i, r := range number {
		row, col := i/QuickReadPerRow, i%QuickReadPerRow
		left := float32(100 + col*100 + row*5)
		top := float32(40 + row*80)
		boxes = append(boxes, pixelBox(int(r-'0'), left, top, left+40, top+30))
	}
	return boxes
}

// lineBoxes lays number out as one horizontal line.
func lineBoxes(number string, top float32) []detector.DetectionBox {
	boxes := make([]detector.DetectionBox, 0, len(number))
	for i, r := range number {
		left := float32(30 + i*34)
		boxes = append(boxes, pixelBox(int(r-'0'), left, top, left+28, top+40))
	}
	return boxes
}

func shuffled(boxes []detector.DetectionBox, seed uint64) []detector.DetectionBox {
	out := append([]detector.DetectionBox(nil), boxes...)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestIsQuickRead_FourRows(t *testing.T) {
	assert.True(t, IsQuickRead(gridBoxes(t, "4556737586899855")))
}

func TestIsQuickRead_TightLineIsGeneral(t *testing.T) {
	assert.False(t, IsQuickRead(lineBoxes("4556737586899855", 170)))
}

func TestIsQuickRead_RequiresSixteenBoxes(t *testing.T) {
	grid := gridBoxes(t, "4556737586899855")
	assert.False(t, IsQuickRead(grid[:15]))
	assert.False(t, IsQuickRead(append(grid, grid[0])))
	assert.False(t, IsQuickRead(nil))
}

func TestIsQuickRead_ThresholdUsesPixelHeight(t *testing.T) {
	// Two rows of eight, 12px apart, 40px tall: the deviation is 8*12 = 96,
	// above 2 * 40 = 80.
	var boxes []detector.DetectionBox
	for i := range 8 {
		left := float32(30 + i*60)
		boxes = append(boxes,
			pixelBox(1, left, 150, left+28, 190),
			pixelBox(2, left+30, 162, left+58, 202))
	}
	assert.True(t, IsQuickRead(boxes))

	strict := Config{Tolerance: DefaultTolerance, QuickReadSpread: 2.5}
	assert.False(t, strict.IsQuickRead(boxes), "96 < 2.5 * 40")
}

func TestAssembleQuickRead_ReassemblesShuffledGrid(t *testing.T) {
	const number = "4556737586899855"
	grid := gridBoxes(t, number)
	for seed := range uint64(10) {
		assert.Equal(t, number, AssembleQuickRead(shuffled(grid, seed)), "seed %d", seed)
	}
}

func TestAssembleQuickRead_WrongCount(t *testing.T) {
	grid := gridBoxes(t, "4556737586899855")
	assert.Empty(t, AssembleQuickRead(grid[:12]))
}

func TestAssembleQuickRead_DoesNotReorderInput(t *testing.T) {
	grid := shuffled(gridBoxes(t, "4556737586899855"), 3)
	before := append([]detector.DetectionBox(nil), grid...)
	AssembleQuickRead(grid)
	assert.Equal(t, before, grid)
}

func TestAssembleMedian_LeftToRight(t *testing.T) {
	const number = "4242424242424242"
	digits, objectBoxes := AssembleMedian(shuffled(lineBoxes(number, 170), 7))
	assert.Equal(t, number, digits)
	require.Len(t, objectBoxes, len(number))
	for i := 1; i < len(objectBoxes); i++ {
		assert.LessOrEqual(t, objectBoxes[i-1].Left, objectBoxes[i].Left)
	}
}

func TestAssembleMedian_ExcludesVerticalOutlier(t *testing.T) {
	boxes := lineBoxes("12345678", 170)
	boxes = append(boxes, pixelBox(9, 150, 20, 178, 60))

	digits, objectBoxes := AssembleMedian(boxes)
	assert.Equal(t, "12345678", digits)
	assert.Len(t, objectBoxes, 9, "outliers are still exported")
}

func TestAssembleMedian_ExcludesOversizedBoxes(t *testing.T) {
	boxes := lineBoxes("1234", 170)
	// Same line, 1.5x as tall as the others.
	boxes = append(boxes, pixelBox(7, 200, 160, 228, 220))
	// Same line, twice as wide.
	boxes = append(boxes, pixelBox(8, 240, 170, 296, 210))

	digits, _ := AssembleMedian(boxes)
	assert.Equal(t, "1234", digits)
}

func TestAssembleMedian_Empty(t *testing.T) {
	digits, objectBoxes := AssembleMedian(nil)
	assert.Empty(t, digits)
	assert.Empty(t, objectBoxes)
	assert.Equal(t, LineStats{}, MedianStats(nil))
}

func TestMedianStats_PositionalMedian(t *testing.T) {
	boxes := []detector.DetectedOcrBox{
		{Left: 0, Right: 10, Top: 10, Bottom: 50},
		{Left: 0, Right: 20, Top: 20, Bottom: 60},
		{Left: 0, Right: 30, Top: 30, Bottom: 70},
		{Left: 0, Right: 40, Top: 40, Bottom: 80},
	}
	s := MedianStats(boxes)
	// Index len/2 of each sorted collection, no averaging.
	assert.InDelta(t, 30, s.YMin, 1e-6)
	assert.InDelta(t, 70, s.YMax, 1e-6)
	assert.InDelta(t, 30, s.Width, 1e-6)
	assert.InDelta(t, 40, s.Height, 1e-6)
	assert.InDelta(t, 50, s.CenterY, 1e-6)
}

func TestLineStats_KeepsBoundaryInclusive(t *testing.T) {
	s := LineStats{YMin: 100, YMax: 140, Width: 20, Height: 40, CenterY: 120}
	assert.True(t, s.Keeps(detector.DetectedOcrBox{Top: 140, Bottom: 180, Right: 24}, 1.2), "center exactly one height away")
	assert.False(t, s.Keeps(detector.DetectedOcrBox{Top: 141, Bottom: 181, Right: 20}, 1.2))
	assert.True(t, s.Keeps(detector.DetectedOcrBox{Top: 96, Bottom: 144, Right: 24}, 1.2), "height and width at 1.2x")
}

func TestAssemble_ValidationPolicy(t *testing.T) {
	valid := lineBoxes("4242424242424242", 170)
	invalid := lineBoxes("4242424242424241", 170)
	a := New(DefaultConfig(), nil)

	tests := []struct {
		name        string
		boxes       []detector.DetectionBox
		strict      bool
		wantDigits  string
		wantPresent bool
		wantValid   bool
	}{
		{"valid strict", valid, true, "4242424242424242", true, true},
		{"valid lenient", valid, false, "4242424242424242", true, true},
		{"invalid strict", invalid, true, "", false, false},
		{"invalid lenient", invalid, false, "4242424242424241", true, false},
		{"empty strict", nil, true, "", false, false},
		{"empty lenient", nil, false, "", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Assemble(tt.boxes, tt.strict)
			assert.Equal(t, tt.wantDigits, res.Digits)
			assert.Equal(t, tt.wantPresent, res.Present)
			assert.Equal(t, tt.wantValid, res.Valid)
			assert.False(t, res.QuickRead)

			digits, ok := res.Value()
			assert.Equal(t, tt.wantDigits, digits)
			assert.Equal(t, tt.wantPresent, ok)
		})
	}
}

func TestAssemble_QuickReadHasNoObjectBoxes(t *testing.T) {
	a := New(DefaultConfig(), nil)
	res := a.Assemble(shuffled(gridBoxes(t, "4556737586899855"), 1), true)
	assert.True(t, res.QuickRead)
	assert.True(t, res.Present)
	assert.Equal(t, "4556737586899855", res.Digits)
	assert.Empty(t, res.ObjectBoxes)

	line := a.Assemble(lineBoxes("4556737586899855", 170), true)
	assert.False(t, line.QuickRead)
	assert.Len(t, line.ObjectBoxes, 16)
}

func TestAssemble_CustomValidator(t *testing.T) {
	var seen []string
	a := New(DefaultConfig(), ValidatorFunc(func(d string) bool {
		seen = append(seen, d)
		return len(d) == 3
	}))

	res := a.Assemble(lineBoxes("123", 170), true)
	assert.True(t, res.Present)
	assert.Equal(t, "123", res.Digits)
	assert.Equal(t, []string{"123"}, seen)
}

func TestAssemble_ZeroAliasReadsAsZero(t *testing.T) {
	boxes := lineBoxes("1111", 170)
	boxes[2].Label = detector.RemapLabel(detector.ZeroAliasClass)

	res := New(DefaultConfig(), ValidatorFunc(func(string) bool { return true })).Assemble(boxes, true)
	assert.Equal(t, "1101", res.Digits)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Tolerance: 0, QuickReadSpread: 2}.Validate())
	assert.Error(t, Config{Tolerance: 1.2, QuickReadSpread: -1}.Validate())
}
