package pipeline

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/cardscan/internal/assembler"
	"github.com/MeKo-Tech/cardscan/internal/models"
	"github.com/MeKo-Tech/cardscan/internal/onnx"
)

// DefaultNumThreads is the intra-op thread count given to every new model.
const DefaultNumThreads = 4

// Config holds configuration for the predictor and its components.
type Config struct {
	ModelsDir  string
	Model      onnx.ModelConfig
	NumThreads int
	Assembler  assembler.Config
}

// DefaultConfig returns a default predictor config with component defaults.
func DefaultConfig() Config {
	cfg := Config{
		ModelsDir:  models.GetModelsDir(""),
		Model:      onnx.DefaultModelConfig(),
		NumThreads: DefaultNumThreads,
		Assembler:  assembler.DefaultConfig(),
	}
	cfg.Model.ModelPath = models.GetSSDModelPath(cfg.ModelsDir)
	return cfg
}

// Builder constructs a Predictor with fluent configuration.
type Builder struct {
	cfg       Config
	factory   ModelFactory
	validator assembler.Validator
	modelSet  bool
}

// NewBuilder creates a new builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithModelsDir sets the models directory and re-resolves the model path
// unless one was set explicitly.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	if !b.modelSet {
		b.cfg.Model.ModelPath = models.GetSSDModelPath(b.cfg.ModelsDir)
	}
	return b
}

// WithModelPath overrides the model path directly.
func (b *Builder) WithModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Model.ModelPath = path
		b.modelSet = true
	}
	return b
}

// WithThreads sets the intra-op thread count (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.NumThreads = n
		b.cfg.Model.NumThreads = n
	}
	return b
}

// WithInputSize sets the network input size the priors are generated for.
func (b *Builder) WithInputSize(width, height int) *Builder {
	if width > 0 && height > 0 {
		b.cfg.Model.Detector.InputWidth = width
		b.cfg.Model.Detector.InputHeight = height
	}
	return b
}

// WithNormalization sets the input mean and std.
func (b *Builder) WithNormalization(mean, std float32) *Builder {
	if std != 0 {
		b.cfg.Model.Mean = mean
		b.cfg.Model.Std = std
	}
	return b
}

// WithThresholds sets the class probability and NMS IoU thresholds.
func (b *Builder) WithThresholds(prob, iou float32) *Builder {
	if prob > 0 {
		b.cfg.Model.Detector.Extract.ProbThreshold = prob
	}
	if iou > 0 {
		b.cfg.Model.Detector.Extract.IoUThreshold = iou
	}
	return b
}

// WithTopK caps the boxes kept per digit class.
func (b *Builder) WithTopK(k int) *Builder {
	if k > 0 {
		b.cfg.Model.Detector.Extract.TopK = k
	}
	return b
}

// WithVariances sets the box decoding variances.
func (b *Builder) WithVariances(center, size float32) *Builder {
	if center > 0 {
		b.cfg.Model.Detector.CenterVariance = center
	}
	if size > 0 {
		b.cfg.Model.Detector.SizeVariance = size
	}
	return b
}

// WithTolerance sets the median filter size tolerance.
func (b *Builder) WithTolerance(t float32) *Builder {
	if t > 0 {
		b.cfg.Assembler.Tolerance = t
	}
	return b
}

// WithQuickReadSpread sets the four-row layout threshold.
func (b *Builder) WithQuickReadSpread(s float32) *Builder {
	if s > 0 {
		b.cfg.Assembler.QuickReadSpread = s
	}
	return b
}

// WithGPU enables CUDA acceleration.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Model.GPU.UseGPU = enabled
	return b
}

// WithGPUDevice sets the CUDA device ID.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.cfg.Model.GPU.DeviceID = deviceID
	return b
}

// WithGPUMemoryLimit sets the GPU memory limit in bytes.
func (b *Builder) WithGPUMemoryLimit(limitBytes uint64) *Builder {
	b.cfg.Model.GPU.GPUMemLimit = limitBytes
	return b
}

// WithValidator replaces the card number validator.
func (b *Builder) WithValidator(v assembler.Validator) *Builder {
	b.validator = v
	return b
}

// WithModelFactory replaces the ONNX model construction, mainly for tests.
func (b *Builder) WithModelFactory(f ModelFactory) *Builder {
	b.factory = f
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the configuration. A missing model file is not an error
// here; it surfaces when the first frame is run.
func (b *Builder) Validate() error {
	if b.cfg.NumThreads < 0 {
		return fmt.Errorf("num threads must be >= 0, got %d", b.cfg.NumThreads)
	}
	if b.factory == nil && b.cfg.Model.ModelPath == "" {
		return errors.New("model path is empty")
	}
	if err := b.cfg.Model.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := b.cfg.Assembler.Validate(); err != nil {
		return fmt.Errorf("assembler: %w", err)
	}
	if err := onnx.ValidateGPUConfig(b.cfg.Model.GPU); err != nil {
		return fmt.Errorf("gpu: %w", err)
	}
	return nil
}

// Build validates the configuration and returns a Predictor. No model is
// loaded until the first frame.
func (b *Builder) Build() (*Predictor, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	factory := b.factory
	if factory == nil {
		factory = ONNXModelFactory(b.cfg.Model)
	}
	return NewPredictor(b.cfg, factory, b.validator), nil
}

// ONNXModelFactory builds SSD models from cfg.
func ONNXModelFactory(cfg onnx.ModelConfig) ModelFactory {
	return func() (Model, error) {
		m, err := onnx.NewSSDModel(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}
