package pipeline

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/assembler"
	"github.com/MeKo-Tech/cardscan/internal/cardnum"
	"github.com/MeKo-Tech/cardscan/internal/common"
	"github.com/MeKo-Tech/cardscan/internal/detector"
)

// modelContext owns the inference model and the priors it decodes against.
// It is only touched with Predictor.mu held.
type modelContext struct {
	factory ModelFactory
	threads int
	model   Model
	priors  []detector.PriorBox
	builds  int
}

// ensure builds the model if there is none. Priors are resolved once.
func (c *modelContext) ensure(cfg detector.Config) error {
	if c.priors == nil {
		c.priors = detector.PriorsFor(cfg.FeatureMaps, cfg.InputWidth, cfg.InputHeight)
	}
	if c.model != nil {
		return nil
	}
	c.builds++
	m, err := c.factory()
	if err != nil {
		return err
	}
	if m == nil {
		return ErrModelUnavailable
	}
	if c.threads > 0 {
		m.SetNumThreads(c.threads)
	}
	c.model = m
	return nil
}

// reset closes and drops the model so the next ensure builds a new one.
func (c *modelContext) reset() {
	if c.model == nil {
		return
	}
	if err := c.model.Close(); err != nil {
		slog.Warn("Failed to close inference model", "error", err)
	}
	c.model = nil
}

// Predictor reads card numbers from single frames.
//
// Each frame goes through init (build the model if needed), run (inference,
// post-processing, assembly) and, if run fails, exactly one retry with a
// freshly built model. A failed retry marks the predictor as having had an
// unrecoverable failure; the frame result is then absent. Calls are
// serialized.
type Predictor struct {
	mu          sync.Mutex
	cfg         Config
	ctx         modelContext
	asm         *assembler.Assembler
	objectBoxes []detector.DetectedOcrBox

	failed atomic.Bool
	frames atomic.Int64
}

// NewPredictor returns a predictor that builds models with factory. A nil
// validator means assembler.CardNumberValidator.
func NewPredictor(cfg Config, factory ModelFactory, validator assembler.Validator) *Predictor {
	return &Predictor{
		cfg: cfg,
		ctx: modelContext{factory: factory, threads: cfg.NumThreads},
		asm: assembler.New(cfg.Assembler, validator),
	}
}

// Config returns the predictor configuration.
func (p *Predictor) Config() Config { return p.cfg }

// Predict reads img and returns the digits and whether a result is present.
func (p *Predictor) Predict(img image.Image, strict bool) (string, bool) {
	return p.Run(img, strict).Value()
}

// Run processes one frame through the init, run and retry states.
func (p *Predictor) Run(img image.Image, strict bool) FrameResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	timer := common.NewNamedTimer("frame")
	p.frames.Add(1)

	p.init()
	res, err := p.runOnce(img, strict, 1)
	if err != nil {
		slog.Info("Frame failed, recreating inference model", "error", err)
		p.ctx.reset()
		p.init()
		res, err = p.runOnce(img, strict, 2)
		res.Retried = true
		if err != nil {
			p.failed.Store(true)
			slog.Error("Unrecoverable frame failure", "error", err)
			res = FrameResult{Retried: true, Err: err}
		}
	}

	p.objectBoxes = res.ObjectBoxes
	res.Processing.TotalNs = timer.Stop().Nanoseconds()
	return res
}

// init ensures the model exists. Construction failures are logged only; the
// missing model is reported by the run that follows.
func (p *Predictor) init() {
	if err := p.ctx.ensure(p.cfg.Model.Detector); err != nil {
		slog.Error("Failed to create inference model", "error", err)
	}
}

func (p *Predictor) runOnce(img image.Image, strict bool, attempt int) (FrameResult, error) {
	var res FrameResult
	if img == nil {
		return res, &FrameError{Stage: StageClassify, Attempt: attempt, Err: ErrNilFrame}
	}
	if p.ctx.model == nil {
		return res, &FrameError{Stage: StageInit, Attempt: attempt, Err: ErrModelUnavailable}
	}

	size := detector.SizeOf(img)
	res.Width, res.Height = size.Width, size.Height

	start := time.Now()
	if err := p.ctx.model.Classify(img); err != nil {
		return res, &FrameError{Stage: StageClassify, Attempt: attempt, Err: err}
	}
	res.Processing.InferenceNs = time.Since(start).Nanoseconds()

	start = time.Now()
	dets, err := detector.PostProcess(p.ctx.model.Outputs(), p.ctx.priors, size, p.cfg.Model.Detector)
	if err != nil {
		return res, &FrameError{Stage: StagePostProcess, Attempt: attempt, Err: fmt.Errorf("post-process: %w", err)}
	}
	res.Detections = len(dets)
	res.Result = p.asm.Assemble(dets, strict)
	res.Processing.PostProcessNs = time.Since(start).Nanoseconds()

	if res.Valid {
		slog.Debug("Card number passed", "number", cardnum.Mask(res.Digits), "quick_read", res.QuickRead)
	} else {
		slog.Debug("Card number failed", "detections", len(dets), "quick_read", res.QuickRead, "strict", strict)
	}
	slog.Debug("Frame processed",
		"inference_ms", res.Processing.InferenceNs/1000000,
		"postprocess_ms", res.Processing.PostProcessNs/1000000)
	return res, nil
}

// HadUnrecoverableFailure reports whether any frame failed after its retry.
// Once set it stays set for the life of the predictor.
func (p *Predictor) HadUnrecoverableFailure() bool {
	return p.failed.Load()
}

// ObjectBoxes returns the diagnostic boxes of the last frame. It is empty
// after a quick read or a failed frame.
func (p *Predictor) ObjectBoxes() []detector.DetectedOcrBox {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]detector.DetectedOcrBox(nil), p.objectBoxes...)
}

// Stats reports counters for health endpoints.
type Stats struct {
	Frames                  int64 `json:"frames"`
	ModelBuilds             int   `json:"model_builds"`
	ModelLoaded             bool  `json:"model_loaded"`
	HadUnrecoverableFailure bool  `json:"had_unrecoverable_failure"`
}

// Stats returns a snapshot of the predictor counters.
func (p *Predictor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Frames:                  p.frames.Load(),
		ModelBuilds:             p.ctx.builds,
		ModelLoaded:             p.ctx.model != nil,
		HadUnrecoverableFailure: p.failed.Load(),
	}
}

// Close releases the model. The predictor may be used again; the next frame
// builds a new model.
func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.model == nil {
		return nil
	}
	err := p.ctx.model.Close()
	p.ctx.model = nil
	return err
}
