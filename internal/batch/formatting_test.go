package batch

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSummary() Summary {
	return Summary{
		Digits:  visa,
		Present: true,
		Votes:   3,
		Frames:  6,
		Read:    5,
		Failed:  1,
		Tally:   []Entry{{visa42, 2}, {visa, 3}},
	}
}

func TestFormatSummary_Text(t *testing.T) {
	out, err := FormatSummary(sampleSummary(), "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Card number: 4111 1111 1111 1111 (Visa)")
	assert.Contains(t, out, "Votes: 3 of 6 frames")
	assert.Contains(t, out, "5 read, 1 failed, 0 skipped")
	assert.Contains(t, out, visa42)

	out, err = FormatSummary(Summary{Frames: 2}, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "No card number read"))
	assert.NotContains(t, out, "Tally")
}

func TestFormatSummary_JSON(t *testing.T) {
	out, err := FormatSummary(sampleSummary(), "json")
	require.NoError(t, err)

	var got Summary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, sampleSummary(), got)
}

func TestFormatSummary_YAML(t *testing.T) {
	out, err := FormatSummary(sampleSummary(), "yaml")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, visa, got["digits"])
	assert.Equal(t, 3, got["votes"])
}

func TestFormatSummary_CSV(t *testing.T) {
	out, err := FormatSummary(sampleSummary(), "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "digits,count,winner,valid,issuer", lines[0])
	assert.Equal(t, visa42+",2,false,true,Visa", lines[1])
	assert.Equal(t, visa+",3,true,true,Visa", lines[2])
}

func TestFormatSummary_Unknown(t *testing.T) {
	_, err := FormatSummary(sampleSummary(), "xml")
	require.Error(t, err)
}
