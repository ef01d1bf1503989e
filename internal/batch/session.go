package batch

import (
	"time"

	"github.com/MeKo-Tech/cardscan/internal/pipeline"
)

// Session accumulates the frame results of one burst as they arrive. It is
// not safe for concurrent use.
type Session struct {
	tally   Tally
	frames  int
	read    int
	failed  int
	skipped int
	start   time.Time
}

// NewSession starts an empty burst.
func NewSession() *Session {
	return &Session{start: time.Now()}
}

// Skip counts a frame that was never read, for example a nil or undecodable
// frame.
func (s *Session) Skip() {
	s.frames++
	s.skipped++
}

// Observe counts one frame result. Failed frames and frames without a
// reading do not vote.
func (s *Session) Observe(res pipeline.FrameResult) {
	s.frames++
	switch {
	case res.Failed():
		s.failed++
	case res.Present && res.Digits != "":
		s.read++
		s.tally.Add(res.Digits)
	}
}

// Frames returns how many frames were counted so far.
func (s *Session) Frames() int { return s.frames }

// Summary returns the vote so far.
func (s *Session) Summary() Summary {
	sum := Summary{
		Frames:   s.frames,
		Read:     s.read,
		Failed:   s.failed,
		Skipped:  s.skipped,
		Tally:    s.tally.Entries(),
		Duration: time.Since(s.start),
	}
	sum.Digits, sum.Votes, sum.Present = s.tally.Best()
	return sum
}

// Reset clears the session and restarts its clock.
func (s *Session) Reset() {
	s.tally.Reset()
	s.frames, s.read, s.failed, s.skipped = 0, 0, 0, 0
	s.start = time.Now()
}
