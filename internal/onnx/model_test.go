package onnx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewSSDModel_InvalidConfig(t *testing.T) {
	model := filepath.Join(t.TempDir(), "ssd_ocr.onnx")
	if err := os.WriteFile(model, []byte("not a model"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*ModelConfig)
	}{
		{name: "empty path", mutate: func(c *ModelConfig) { c.ModelPath = "" }},
		{name: "missing file", mutate: func(c *ModelConfig) { c.ModelPath = model + ".missing" }},
		{name: "zero std", mutate: func(c *ModelConfig) { c.Std = 0 }},
		{name: "bad geometry", mutate: func(c *ModelConfig) { c.Detector.InputWidth = 0 }},
		{name: "bad gpu", mutate: func(c *ModelConfig) { c.GPU = GPUConfig{UseGPU: true, DeviceID: -2} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultModelConfig()
			cfg.ModelPath = model
			tt.mutate(&cfg)
			if _, err := NewSSDModel(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDefaultModelConfig(t *testing.T) {
	cfg := DefaultModelConfig()
	if cfg.Mean != 127.5 || cfg.Std != 128.5 {
		t.Errorf("normalization = (%v, %v)", cfg.Mean, cfg.Std)
	}
	if cfg.Detector.InputWidth != 600 || cfg.Detector.InputHeight != 375 {
		t.Errorf("input = %dx%d", cfg.Detector.InputWidth, cfg.Detector.InputHeight)
	}
}
