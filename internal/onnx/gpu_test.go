package onnx

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDefaultGPUConfig(t *testing.T) {
	config := DefaultGPUConfig()

	if config.UseGPU {
		t.Error("Expected UseGPU to be false by default")
	}
	if config.DeviceID != 0 {
		t.Errorf("Expected DeviceID to be 0, got %d", config.DeviceID)
	}
	if config.GPUMemLimit != 0 {
		t.Errorf("Expected GPUMemLimit to be 0, got %d", config.GPUMemLimit)
	}
	if config.ArenaExtendStrategy != "kNextPowerOfTwo" {
		t.Errorf("Expected ArenaExtendStrategy to be 'kNextPowerOfTwo', got %s", config.ArenaExtendStrategy)
	}
	if config.CUDNNConvAlgoSearch != "DEFAULT" {
		t.Errorf("Expected CUDNNConvAlgoSearch to be 'DEFAULT', got %s", config.CUDNNConvAlgoSearch)
	}
}

func TestValidateGPUConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GPUConfig
		wantErr bool
	}{
		{name: "valid CPU config", config: DefaultGPUConfig()},
		{
			name: "valid GPU config",
			config: GPUConfig{
				UseGPU:              true,
				ArenaExtendStrategy: "kSameAsRequested",
				CUDNNConvAlgoSearch: "HEURISTIC",
			},
		},
		{name: "negative device ID", config: GPUConfig{UseGPU: true, DeviceID: -1}, wantErr: true},
		{name: "bad arena strategy", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "grow"}, wantErr: true},
		{name: "bad conv search", config: GPUConfig{UseGPU: true, CUDNNConvAlgoSearch: "FAST"}, wantErr: true},
		{name: "invalid values ignored on CPU", config: GPUConfig{DeviceID: -1, ArenaExtendStrategy: "grow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGPUConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGPUConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCudaSettings(t *testing.T) {
	settings := cudaSettings(GPUConfig{
		UseGPU:              true,
		DeviceID:            1,
		GPUMemLimit:         1 << 30,
		ArenaExtendStrategy: "kNextPowerOfTwo",
	})

	if settings["device_id"] != "1" {
		t.Errorf("device_id = %q, want 1", settings["device_id"])
	}
	if settings["gpu_mem_limit"] != "1073741824" {
		t.Errorf("gpu_mem_limit = %q", settings["gpu_mem_limit"])
	}
	if _, ok := settings["cudnn_conv_algo_search"]; ok {
		t.Error("empty conv search should not be set")
	}
}

func TestLibraryName(t *testing.T) {
	name, err := libraryName()
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		if err != nil {
			t.Fatalf("libraryName: %v", err)
		}
		if !strings.Contains(name, "onnxruntime") {
			t.Errorf("unexpected library name %q", name)
		}
	default:
		if err == nil {
			t.Error("expected error on unsupported OS")
		}
	}
}

func TestLibraryCandidates_EnvFirst(t *testing.T) {
	t.Setenv(EnvLibraryPath, "/custom/libonnxruntime.so")

	paths := libraryCandidates(false)
	if len(paths) == 0 || paths[0] != "/custom/libonnxruntime.so" {
		t.Fatalf("expected env override first, got %v", paths)
	}
	for _, p := range paths {
		if strings.Contains(p, "gpu") {
			t.Errorf("CPU candidates should not include GPU paths: %s", p)
		}
	}

	gpuPaths := libraryCandidates(true)
	if len(gpuPaths) <= len(paths) {
		t.Errorf("GPU candidates should extend CPU ones: %d vs %d", len(gpuPaths), len(paths))
	}
}

func TestSetONNXLibraryPath_FindsEnvLibrary(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("stub"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvLibraryPath, lib)

	if err := SetONNXLibraryPath(false); err != nil {
		t.Fatalf("SetONNXLibraryPath: %v", err)
	}
}

func TestFindProjectRoot(t *testing.T) {
	root, err := findProjectRoot()
	if err != nil {
		t.Skipf("not inside module: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Errorf("project root %s has no go.mod", root)
	}
}
