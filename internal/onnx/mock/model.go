package mock

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/disintegration/imaging"
)

// ErrInjected is the failure returned by scripted models and factories.
var ErrInjected = errors.New("injected inference failure")

// ClassifyFunc produces the outputs for a frame.
type ClassifyFunc func(img image.Image) (detector.Outputs, error)

// Model is an in-memory inference model whose outputs come from a ClassifyFunc.
type Model struct {
	mu       sync.Mutex
	classify ClassifyFunc
	out      detector.Outputs
	threads  int
	calls    int
	closed   bool
}

// NewModel returns a model backed by fn.
func NewModel(fn ClassifyFunc) *Model {
	return &Model{classify: fn}
}

// Classify runs the scripted function and stores its outputs.
func (m *Model) Classify(img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.closed {
		return errors.New("model is closed")
	}
	out, err := m.classify(img)
	if err != nil {
		return err
	}
	m.out = out
	return nil
}

// Outputs returns the heads of the last successful Classify.
func (m *Model) Outputs() detector.Outputs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out
}

// SetNumThreads records the requested thread count.
func (m *Model) SetNumThreads(n int) {
	m.mu.Lock()
	m.threads = n
	m.mu.Unlock()
}

// Threads returns the last thread count set.
func (m *Model) Threads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threads
}

// Calls returns how many times Classify ran.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the model closed; later Classify calls fail.
func (m *Model) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Frames maps frames to the digits the synthetic network sees in them.
// Unknown frames produce an empty (all background) output.
type Frames struct {
	mu     sync.RWMutex
	cfg    detector.Config
	digits map[image.Image][]Digit
}

// NewFrames creates an empty frame table encoding with cfg.
func NewFrames(cfg detector.Config) *Frames {
	return &Frames{cfg: cfg, digits: make(map[image.Image][]Digit)}
}

// Add registers a new blank frame showing digits and returns it.
func (f *Frames) Add(digits []Digit) image.Image {
	img := NewFrame(f.cfg.InputWidth, f.cfg.InputHeight)
	f.mu.Lock()
	f.digits[img] = digits
	f.mu.Unlock()
	return img
}

// Classify implements ClassifyFunc.
func (f *Frames) Classify(img image.Image) (detector.Outputs, error) {
	f.mu.RLock()
	digits := f.digits[img]
	f.mu.RUnlock()
	return EncodeOutputs(digits, f.cfg)
}

// NewFrame returns a blank white frame of the given size.
func NewFrame(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.White)
}

// Factory builds models from fn and lets tests inject construction and
// classification failures.
type Factory struct {
	mu             sync.Mutex
	fn             ClassifyFunc
	failBuilds     int
	failClassifies int
	models         []*Model
}

// NewFactory returns a factory whose models classify with fn.
func NewFactory(fn ClassifyFunc) *Factory {
	return &Factory{fn: fn}
}

// FailBuilds makes the next n constructions fail.
func (f *Factory) FailBuilds(n int) *Factory {
	f.mu.Lock()
	f.failBuilds = n
	f.mu.Unlock()
	return f
}

// FailClassifies makes the next n Classify calls, across all models, fail.
func (f *Factory) FailClassifies(n int) *Factory {
	f.mu.Lock()
	f.failClassifies = n
	f.mu.Unlock()
	return f
}

// Build constructs a model or returns ErrInjected.
func (f *Factory) Build() (*Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBuilds > 0 {
		f.failBuilds--
		return nil, ErrInjected
	}
	m := NewModel(func(img image.Image) (detector.Outputs, error) {
		f.mu.Lock()
		fail := f.failClassifies > 0
		if fail {
			f.failClassifies--
		}
		f.mu.Unlock()
		if fail {
			return detector.Outputs{}, ErrInjected
		}
		return f.fn(img)
	})
	f.models = append(f.models, m)
	return m, nil
}

// Models returns every model built so far, oldest first.
func (f *Factory) Models() []*Model {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Model(nil), f.models...)
}

// Tagged maps frames to digits by a tag written into the red channel of the
// top-left pixel, so the mapping survives a PNG encode and decode.
type Tagged struct {
	mu     sync.Mutex
	cfg    detector.Config
	digits map[uint8][]Digit
	next   uint8
}

// NewTagged creates an empty tagged frame table encoding with cfg.
func NewTagged(cfg detector.Config) *Tagged {
	return &Tagged{cfg: cfg, digits: make(map[uint8][]Digit), next: 1}
}

// Add registers a new frame showing digits and returns it. At most 255
// frames can be registered.
func (t *Tagged) Add(digits []Digit) *image.NRGBA {
	t.mu.Lock()
	tag := t.next
	t.next++
	t.digits[tag] = digits
	t.mu.Unlock()

	img := NewFrame(t.cfg.InputWidth, t.cfg.InputHeight)
	img.SetNRGBA(0, 0, color.NRGBA{R: tag, A: 255})
	return img
}

// Classify implements ClassifyFunc. Untagged frames are all background.
func (t *Tagged) Classify(img image.Image) (detector.Outputs, error) {
	b := img.Bounds()
	r, g, bl, _ := img.At(b.Min.X, b.Min.Y).RGBA()
	var digits []Digit
	if g == 0 && bl == 0 {
		t.mu.Lock()
		digits = t.digits[uint8(r>>8)]
		t.mu.Unlock()
	}
	return EncodeOutputs(digits, t.cfg)
}
