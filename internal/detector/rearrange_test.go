package detector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRearrange_SingleLayer(t *testing.T) {
	// 2x1 map, one anchor, two values: channel-first planes are
	// c0 = [a0 b0], c1 = [a1 b1] for cells a and b.
	maps := []FeatureMapSpec{{Width: 2, Height: 1}}
	raw := []float32{1, 2, 10, 20}

	got, err := Rearrange(raw, maps, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 10, 2, 20}, got)
}

func TestRearrange_TwoLayers(t *testing.T) {
	maps := []FeatureMapSpec{{Width: 1, Height: 2}, {Width: 1, Height: 1}}
	// layer 0: 2 cells, 2 channels -> planes [0 1], [2 3]
	// layer 1: 1 cell, 2 channels -> [4], [5]
	raw := []float32{0, 1, 2, 3, 4, 5}

	got, err := Rearrange(raw, maps, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 1, 3, 4, 5}, got)
}

func TestRearrange_ArrangeRoundTrip(t *testing.T) {
	maps := DefaultFeatureMaps()
	n := RearrangedLen(maps, PriorsPerActivation, NumClasses)
	rows := make([]float32, n)
	for i := range rows {
		rows[i] = float32(i)
	}

	raw, err := Arrange(rows, maps, PriorsPerActivation, NumClasses)
	require.NoError(t, err)
	back, err := Rearrange(raw, maps, PriorsPerActivation, NumClasses)
	require.NoError(t, err)
	assert.Equal(t, rows, back)
}

func TestRearrange_ShapeMismatch(t *testing.T) {
	_, err := Rearrange(make([]float32, 7), DefaultFeatureMaps(), PriorsPerActivation, NumCoordinates)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	err = RearrangeInto(make([]float32, 3), make([]float32, 4), []FeatureMapSpec{{Width: 2, Height: 1}}, 1, 2)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestRearrangedLen(t *testing.T) {
	assert.Equal(t, 3420*NumCoordinates, RearrangedLen(DefaultFeatureMaps(), PriorsPerActivation, NumCoordinates))
	assert.Equal(t, 3420*NumClasses, RearrangedLen(DefaultFeatureMaps(), PriorsPerActivation, NumClasses))
}
