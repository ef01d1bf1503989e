package config

import (
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cardscan/internal/assembler"
	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/MeKo-Tech/cardscan/internal/models"
	"github.com/MeKo-Tech/cardscan/internal/onnx"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
)

// DefaultConfig returns a configuration with the defaults of every component.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	model := onnx.DefaultModelConfig()
	asm := assembler.DefaultConfig()

	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Model: ModelConfig{
			NumThreads:  pipeline.DefaultNumThreads,
			InputWidth:  det.InputWidth,
			InputHeight: det.InputHeight,
			Mean:        model.Mean,
			Std:         model.Std,
		},
		Detector: DetectorConfig{
			ProbThreshold:  det.Extract.ProbThreshold,
			IoUThreshold:   det.Extract.IoUThreshold,
			TopK:           det.Extract.TopK,
			CenterVariance: det.CenterVariance,
			SizeVariance:   det.SizeVariance,
		},
		Assembler: AssemblerConfig{
			Tolerance:       asm.Tolerance,
			QuickReadSpread: asm.QuickReadSpread,
			Strict:          true,
		},
		Output: OutputConfig{
			Format:       "text",
			OverlayColor: "#FF0000",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			MaxBurstFrames:  30,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 120,
				RequestsPerHour:   3000,
				MaxRequestsPerDay: 20000,
				MaxDataPerDay:     2 << 30,
			},
		},
		Burst: BurstConfig{
			Strict: true,
		},
		GPU: GPUConfig{
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "yaml", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if _, err := ParseHexColor(c.Output.OverlayColor); err != nil {
		return fmt.Errorf("invalid output.overlay_color: %w", err)
	}

	if c.Model.NumThreads < 0 {
		return fmt.Errorf("invalid model.num_threads: %d (must not be negative)", c.Model.NumThreads)
	}
	if c.Model.Std == 0 {
		return errors.New("invalid model.std: must be non-zero")
	}
	if err := validateThreshold(c.Detector.ProbThreshold, "detector.prob_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.IoUThreshold, "detector.iou_threshold"); err != nil {
		return err
	}
	if err := c.toDetectorConfig().Validate(); err != nil {
		return fmt.Errorf("invalid detector settings: %w", err)
	}
	if err := c.toAssemblerConfig().Validate(); err != nil {
		return fmt.Errorf("invalid assembler settings: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.MaxBurstFrames <= 0 {
		return fmt.Errorf("invalid max burst frames: %d (must be positive)", c.Server.MaxBurstFrames)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if rl := c.Server.RateLimit; rl.Enabled && (rl.RequestsPerMinute <= 0 || rl.RequestsPerHour <= 0) {
		return fmt.Errorf("invalid rate limit: %d/min, %d/hour (must be positive)", rl.RequestsPerMinute, rl.RequestsPerHour)
	}

	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d", c.GPU.Device)
	}
	if _, err := ParseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

// ToPipelineBuilder returns a predictor builder carrying the configuration.
// Call Validate first; the builder silently ignores zero values.
func (c *Config) ToPipelineBuilder() *pipeline.Builder {
	b := pipeline.NewBuilder().
		WithModelsDir(models.GetModelsDir(c.ModelsDir)).
		WithModelPath(c.Model.Path).
		WithThreads(c.Model.NumThreads).
		WithInputSize(c.Model.InputWidth, c.Model.InputHeight).
		WithNormalization(c.Model.Mean, c.Model.Std).
		WithThresholds(c.Detector.ProbThreshold, c.Detector.IoUThreshold).
		WithTopK(c.Detector.TopK).
		WithVariances(c.Detector.CenterVariance, c.Detector.SizeVariance).
		WithTolerance(c.Assembler.Tolerance).
		WithQuickReadSpread(c.Assembler.QuickReadSpread)

	if c.GPU.Enabled {
		// Validate has already rejected malformed limits.
		limit, _ := ParseMemoryLimit(c.GPU.MemoryLimit)
		b = b.WithGPU(true).WithGPUDevice(c.GPU.Device).WithGPUMemoryLimit(limit)
	}
	return b
}

// ToPipelineConfig converts the config to the predictor configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return c.ToPipelineBuilder().Config()
}

func (c *Config) toDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.InputWidth = c.Model.InputWidth
	cfg.InputHeight = c.Model.InputHeight
	cfg.CenterVariance = c.Detector.CenterVariance
	cfg.SizeVariance = c.Detector.SizeVariance
	cfg.Extract.ProbThreshold = c.Detector.ProbThreshold
	cfg.Extract.IoUThreshold = c.Detector.IoUThreshold
	cfg.Extract.TopK = c.Detector.TopK
	return cfg
}

func (c *Config) toAssemblerConfig() assembler.Config {
	return assembler.Config{
		Tolerance:       c.Assembler.Tolerance,
		QuickReadSpread: c.Assembler.QuickReadSpread,
	}
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float32, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// ParseMemoryLimit parses a memory limit such as "512MB" or "1.5GB" into
// bytes. "" and "auto" mean no limit and yield 0.
func ParseMemoryLimit(limit string) (uint64, error) {
	limit = strings.TrimSpace(strings.ToUpper(limit))
	if limit == "" || limit == "AUTO" {
		return 0, nil
	}

	// Longest suffix first so "MB" is not read as "B".
	units := []struct {
		suffix     string
		multiplier uint64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if numStr, ok := strings.CutSuffix(limit, u.suffix); ok {
			num, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
			if err != nil || num < 0 {
				return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
			}
			return uint64(num * float64(u.multiplier)), nil
		}
	}

	num, err := strconv.ParseUint(limit, 10, 64)
	if err != nil {
		return 0, errors.New("memory limit must be a byte count or end with one of: TB, GB, MB, KB, B")
	}
	return num, nil
}

// ParseHexColor parses "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("color %q must have the form #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q is not hexadecimal", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
