// Package batch reads a card number from a burst of frames by majority vote
// and discovers frame files for it.
package batch

import (
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/cardnum"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
)

// FramePredictor reads one frame. *pipeline.Predictor implements it.
type FramePredictor interface {
	Run(img image.Image, strict bool) pipeline.FrameResult
}

// Summary is the outcome of one burst.
type Summary struct {
	Digits  string `json:"digits" yaml:"digits"`
	Present bool   `json:"present" yaml:"present"`
	// Votes is how many frames produced Digits.
	Votes int `json:"votes" yaml:"votes"`

	Frames  int     `json:"frames" yaml:"frames"`
	Read    int     `json:"read" yaml:"read"`
	Failed  int     `json:"failed" yaml:"failed"`
	Skipped int     `json:"skipped" yaml:"skipped"`
	Tally   []Entry `json:"tally" yaml:"tally"`

	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Value returns the winning reading and whether there is one.
func (s Summary) Value() (string, bool) { return s.Digits, s.Present }

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDispatcher sets where the completion callback of Run is executed.
func WithDispatcher(d Dispatcher) Option {
	return func(a *Aggregator) {
		if d != nil {
			a.dispatcher = d
		}
	}
}

// WithStrict sets the validation policy passed to every frame.
func WithStrict(strict bool) Option {
	return func(a *Aggregator) { a.strict = strict }
}

// Aggregator runs bursts of frames through a predictor and votes on the
// result.
type Aggregator struct {
	predictor  FramePredictor
	dispatcher Dispatcher
	strict     bool
}

// NewAggregator returns an aggregator. By default frames are read in strict
// mode and the completion callback runs on the burst goroutine.
func NewAggregator(p FramePredictor, opts ...Option) *Aggregator {
	a := &Aggregator{predictor: p, dispatcher: Inline, strict: true}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Strict reports the validation policy used for frames.
func (a *Aggregator) Strict() bool { return a.strict }

// Run reads frames on one background goroutine, strictly in order, and
// hands the most frequent reading to onComplete through the dispatcher
// once every frame is done. onComplete receives ("", false) when no frame
// produced a reading. There is no way to cancel a running burst.
func (a *Aggregator) Run(frames []image.Image, onComplete func(digits string, ok bool)) {
	a.RunSummary(frames, func(s Summary) {
		if onComplete != nil {
			onComplete(s.Value())
		}
	})
}

// RunSummary is Run with the full summary handed to onComplete.
func (a *Aggregator) RunSummary(frames []image.Image, onComplete func(Summary)) {
	go func() {
		s := a.Collect(frames)
		if onComplete != nil {
			a.dispatcher.Dispatch(func() { onComplete(s) })
		}
	}()
}

// Collect reads frames on the calling goroutine and returns the summary.
// Nil frames are skipped. Failed frames and frames without a reading do not
// vote.
func (a *Aggregator) Collect(frames []image.Image) Summary {
	sess := NewSession()
	for i, img := range frames {
		if img == nil {
			sess.Skip()
			continue
		}
		res := a.predictor.Run(img, a.strict)
		if res.Failed() {
			slog.Debug("Burst frame failed", "frame", i, "error", res.Err)
		}
		sess.Observe(res)
	}

	s := sess.Summary()
	slog.Info("Burst complete",
		"frames", s.Frames,
		"read", s.Read,
		"failed", s.Failed,
		"distinct", len(s.Tally),
		"present", s.Present,
		"number", cardnum.Mask(s.Digits),
		"votes", s.Votes,
		"duration_ms", s.Duration.Milliseconds())
	return s
}
