package batch

import (
	"errors"
	"testing"

	"github.com/MeKo-Tech/cardscan/internal/assembler"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

func reading(digits string) pipeline.FrameResult {
	return pipeline.FrameResult{Result: assembler.Result{Digits: digits, Present: true}}
}

func TestSession_Votes(t *testing.T) {
	s := NewSession()
	s.Observe(reading("4111111111111111"))
	s.Observe(reading("4111111111111112"))
	s.Observe(reading("4111111111111111"))
	s.Observe(reading(""))
	s.Observe(pipeline.FrameResult{})
	s.Observe(pipeline.FrameResult{Err: errors.New("boom")})
	s.Skip()

	sum := s.Summary()
	assert.True(t, sum.Present)
	assert.Equal(t, "4111111111111111", sum.Digits)
	assert.Equal(t, 2, sum.Votes)
	assert.Equal(t, 7, sum.Frames)
	assert.Equal(t, 7, s.Frames())
	assert.Equal(t, 3, sum.Read)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, []Entry{{"4111111111111111", 2}, {"4111111111111112", 1}}, sum.Tally)
}

func TestSession_Reset(t *testing.T) {
	s := NewSession()
	s.Observe(reading("4111111111111111"))
	s.Skip()
	s.Reset()

	sum := s.Summary()
	assert.False(t, sum.Present)
	assert.Empty(t, sum.Digits)
	assert.Zero(t, sum.Frames)
	assert.Zero(t, sum.Skipped)
	assert.Empty(t, sum.Tally)
}
