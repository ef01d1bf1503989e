//nolint:lll
package config

// Config is the complete configuration of the cardscan application. It is
// loaded from a config file, CARDSCAN_* environment variables and
// command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Model     ModelConfig     `mapstructure:"model" yaml:"model" json:"model"`
	Detector  DetectorConfig  `mapstructure:"detector" yaml:"detector" json:"detector"`
	Assembler AssemblerConfig `mapstructure:"assembler" yaml:"assembler" json:"assembler"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Burst     BurstConfig     `mapstructure:"burst" yaml:"burst" json:"burst"`
	GPU       GPUConfig       `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// ModelConfig contains the inference model settings.
type ModelConfig struct {
	Path        string  `mapstructure:"path" yaml:"path" json:"path"`
	NumThreads  int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	InputWidth  int     `mapstructure:"input_width" yaml:"input_width" json:"input_width"`
	InputHeight int     `mapstructure:"input_height" yaml:"input_height" json:"input_height"`
	Mean        float32 `mapstructure:"mean" yaml:"mean" json:"mean"`
	Std         float32 `mapstructure:"std" yaml:"std" json:"std"`
}

// DetectorConfig contains the SSD decoding and extraction settings.
type DetectorConfig struct {
	ProbThreshold  float32 `mapstructure:"prob_threshold" yaml:"prob_threshold" json:"prob_threshold"`
	IoUThreshold   float32 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	TopK           int     `mapstructure:"top_k" yaml:"top_k" json:"top_k"`
	CenterVariance float32 `mapstructure:"center_variance" yaml:"center_variance" json:"center_variance"`
	SizeVariance   float32 `mapstructure:"size_variance" yaml:"size_variance" json:"size_variance"`
}

// AssemblerConfig contains the digit assembly settings.
type AssemblerConfig struct {
	Tolerance       float32 `mapstructure:"tolerance" yaml:"tolerance" json:"tolerance"`
	QuickReadSpread float32 `mapstructure:"quick_read_spread" yaml:"quick_read_spread" json:"quick_read_spread"`
	Strict          bool    `mapstructure:"strict" yaml:"strict" json:"strict"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir   string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayColor string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	MaxBurstFrames  int             `mapstructure:"max_burst_frames" yaml:"max_burst_frames" json:"max_burst_frames"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool            `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BurstConfig contains multi-frame read settings.
type BurstConfig struct {
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Strict          bool     `mapstructure:"strict" yaml:"strict" json:"strict"`
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns" json:"exclude_patterns"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
