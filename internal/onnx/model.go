package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/MeKo-Tech/cardscan/internal/mempool"
	"github.com/MeKo-Tech/cardscan/internal/utils"
	"github.com/yalue/onnxruntime_go"
)

// ModelConfig configures the SSD digit model session.
type ModelConfig struct {
	ModelPath       string          // Path to the ONNX model
	NumThreads      int             // Intra-op threads (0 = runtime default)
	Mean            float32         // Subtracted from 0-255 channel values (default: 127.5)
	Std             float32         // Divides the centered values (default: 128.5)
	LocationsOutput string          // Output name of the box head; detected when empty
	ClassesOutput   string          // Output name of the class head; detected when empty
	Detector        detector.Config // Geometry used to size and identify the heads
	GPU             GPUConfig
}

// DefaultModelConfig returns the configuration of the shipped model.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Mean:     127.5,
		Std:      128.5,
		Detector: detector.DefaultConfig(),
		GPU:      DefaultGPUConfig(),
	}
}

func (c ModelConfig) validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return fmt.Errorf("model file not found: %s", c.ModelPath)
	}
	if c.Std == 0 {
		return errors.New("std must be non-zero")
	}
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	return ValidateGPUConfig(c.GPU)
}

// SSDModel runs the digit detector through ONNX Runtime. After Classify the
// two raw heads are available from Outputs.
type SSDModel struct {
	mu         sync.Mutex
	config     ModelConfig
	session    *onnxruntime_go.DynamicAdvancedSession
	inputInfo  onnxruntime_go.InputOutputInfo
	outputs    [2]string // locations, classes
	threads    int
	rebuild    bool
	lastOutput detector.Outputs
}

// NewSSDModel loads the model and creates its session.
func NewSSDModel(config ModelConfig) (*SSDModel, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	slog.Debug("Initializing SSD model",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"num_threads", config.NumThreads)

	if err := initRuntime(config.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputInfo, outputs, err := inspectModel(config)
	if err != nil {
		return nil, err
	}

	m := &SSDModel{
		config:    config,
		inputInfo: inputInfo,
		outputs:   outputs,
		threads:   config.NumThreads,
	}
	if err := m.createSession(); err != nil {
		return nil, err
	}
	slog.Debug("SSD model initialized", "input", inputInfo.Name, "locations", outputs[0], "classes", outputs[1])
	return m, nil
}

// inspectModel checks the model has one 4D input and two outputs, and decides
// which output is which.
func inspectModel(config ModelConfig) (onnxruntime_go.InputOutputInfo, [2]string, error) {
	var names [2]string
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(config.ModelPath)
	if err != nil {
		return onnxruntime_go.InputOutputInfo{}, names, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return onnxruntime_go.InputOutputInfo{}, names, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return onnxruntime_go.InputOutputInfo{}, names, fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}
	if len(outputs) != 2 {
		return onnxruntime_go.InputOutputInfo{}, names, fmt.Errorf("expected 2 outputs, got %d", len(outputs))
	}

	names[0], names[1] = config.LocationsOutput, config.ClassesOutput
	if names[0] != "" && names[1] != "" {
		return inputs[0], names, nil
	}
	names = identifyOutputs(outputs, config.Detector)
	return inputs[0], names, nil
}

// identifyOutputs tells the heads apart by element count, then by name, and
// finally falls back to the model's order (classes first, then locations).
func identifyOutputs(outputs []onnxruntime_go.InputOutputInfo, cfg detector.Config) [2]string {
	priors := int64(cfg.NumPriors())
	locCount := priors * detector.NumCoordinates
	clsCount := priors * int64(cfg.Extract.NumClasses)

	var names [2]string
	for _, o := range outputs {
		switch shapeElements(o.Dimensions) {
		case locCount:
			names[0] = o.Name
		case clsCount:
			names[1] = o.Name
		}
	}
	if names[0] != "" && names[1] != "" {
		return names
	}

	names = [2]string{}
	for _, o := range outputs {
		lower := strings.ToLower(o.Name)
		switch {
		case strings.Contains(lower, "loc") || strings.Contains(lower, "box"):
			names[0] = o.Name
		case strings.Contains(lower, "class") || strings.Contains(lower, "score") || strings.Contains(lower, "conf"):
			names[1] = o.Name
		}
	}
	if names[0] != "" && names[1] != "" {
		return names
	}
	return [2]string{outputs[1].Name, outputs[0].Name}
}

func (m *SSDModel) createSession() error {
	options, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if err := configureGPU(options, m.config.GPU); err != nil {
		return fmt.Errorf("failed to configure GPU: %w", err)
	}
	if m.threads > 0 {
		if err := options.SetIntraOpNumThreads(m.threads); err != nil {
			return fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(m.config.ModelPath,
		[]string{m.inputInfo.Name}, m.outputs[:], options)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}
	if m.session != nil {
		_ = m.session.Destroy()
	}
	m.session = session
	m.rebuild = false
	return nil
}

// SetNumThreads changes the intra-op thread count; the session is rebuilt
// on the next Classify.
func (m *SSDModel) SetNumThreads(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n != m.threads {
		m.threads = n
		m.rebuild = true
	}
}

// Classify runs the model on img and stores both heads.
func (m *SSDModel) Classify(img image.Image) error {
	if img == nil {
		return errors.New("input image is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return errors.New("model session is closed")
	}
	if m.rebuild {
		if err := m.createSession(); err != nil {
			return err
		}
	}

	tensor, err := m.preprocess(img)
	if err != nil {
		return fmt.Errorf("preprocessing failed: %w", err)
	}
	defer mempool.PutFloat32(tensor.Data)

	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxruntime_go.Value{nil, nil}
	if err := m.session.Run([]onnxruntime_go.Value{input}, outputs); err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()

	locs, err := copyFloat32(outputs[0])
	if err != nil {
		return fmt.Errorf("locations output: %w", err)
	}
	classes, err := copyFloat32(outputs[1])
	if err != nil {
		return fmt.Errorf("classes output: %w", err)
	}
	m.lastOutput = detector.Outputs{Locations: locs, Classes: classes}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		lo, hi, mean := TensorStats(classes)
		slog.Debug("SSD inference done", "class_min", lo, "class_max", hi, "class_mean", mean)
	}
	return nil
}

// Outputs returns the heads of the last Classify.
func (m *SSDModel) Outputs() detector.Outputs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOutput
}

// Close destroys the session. The runtime environment stays initialized.
func (m *SSDModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	if err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// ModelInfo describes the loaded model for diagnostics.
func (m *SSDModel) ModelInfo() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]interface{}{
		"model_path":       m.config.ModelPath,
		"input_name":       m.inputInfo.Name,
		"input_shape":      m.inputInfo.Dimensions,
		"locations_output": m.outputs[0],
		"classes_output":   m.outputs[1],
		"num_threads":      m.threads,
		"gpu_enabled":      m.config.GPU.UseGPU,
	}
}

// preprocess resizes img to the model input and normalizes it into a pooled
// NCHW buffer; the caller returns Data to mempool.
func (m *SSDModel) preprocess(img image.Image) (Tensor, error) {
	w, h := m.config.Detector.InputWidth, m.config.Detector.InputHeight
	resized, err := utils.ResizeExact(img, w, h)
	if err != nil {
		return Tensor{}, err
	}
	data, err := utils.NormalizeImagePooled(resized, m.config.Mean, m.config.Std)
	if err != nil {
		return Tensor{}, err
	}
	t, err := NewImageTensor(data, 3, h, w)
	if err != nil {
		mempool.PutFloat32(data)
		return Tensor{}, err
	}
	if err := VerifyImageTensor(t); err != nil {
		mempool.PutFloat32(data)
		return Tensor{}, err
	}
	return t, nil
}

func copyFloat32(v onnxruntime_go.Value) ([]float32, error) {
	t, ok := v.(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("expected float32 tensor, got %T", v)
	}
	return append([]float32(nil), t.GetData()...), nil
}
