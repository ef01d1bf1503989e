package server

import (
	"errors"
	"image"
	"image/color"
	"net/http"

	"github.com/MeKo-Tech/cardscan/internal/batch"
	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// framePredictor is what the server needs from a predictor.
// *pipeline.Predictor implements it.
type framePredictor interface {
	batch.FramePredictor
	HadUnrecoverableFailure() bool
	Stats() pipeline.Stats
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	predictor      framePredictor
	modelsDir      string
	corsOrigin     string
	maxUploadMB    int64
	maxBurstFrames int
	strict         bool
	overlayEnabled bool
	overlayColor   color.Color
	rateLimiter    *RateLimiter
}

// RateLimitConfig holds per-client limits. Zero values disable a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	MaxBurstFrames int
	TimeoutSec     int
	Strict         bool
	OverlayEnabled bool
	OverlayColor   color.Color
	RateLimit      RateLimitConfig
	PipelineConfig pipeline.Config
	// ModelFactory overrides the ONNX model factory built from
	// PipelineConfig.Model.
	ModelFactory pipeline.ModelFactory
}

// Response types for API endpoints.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version,omitempty"`
	Time      string          `json:"time"`
	Predictor *pipeline.Stats `json:"predictor,omitempty"`
}

type ModelInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
}

// FrameResponse is the JSON form of one frame read.
type FrameResponse struct {
	Digits     string                    `json:"digits"`
	Present    bool                      `json:"present"`
	Valid      bool                      `json:"valid"`
	QuickRead  bool                      `json:"quick_read"`
	Formatted  string                    `json:"formatted,omitempty"`
	Issuer     string                    `json:"issuer,omitempty"`
	Detections int                       `json:"detections"`
	Retried    bool                      `json:"retried"`
	Boxes      []detector.DetectedOcrBox `json:"boxes,omitempty"`
	Width      int                       `json:"width"`
	Height     int                       `json:"height"`
	Error      string                    `json:"error,omitempty"`
	Processing struct {
		InferenceMs   float64 `json:"inference_ms"`
		PostProcessMs float64 `json:"postprocess_ms"`
		TotalMs       float64 `json:"total_ms"`
	} `json:"processing"`
}

type ScanResponse struct {
	Success bool           `json:"success"`
	Result  *FrameResponse `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// BurstResult is the JSON form of a burst summary.
type BurstResult struct {
	batch.Summary
	Formatted  string  `json:"formatted,omitempty"`
	Issuer     string  `json:"issuer,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

type BurstResponse struct {
	Success bool         `json:"success"`
	Result  *BurstResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// NewServer creates a new card scan server. No model is loaded until the
// first frame arrives.
func NewServer(config Config) (*Server, error) {
	cfg := config.PipelineConfig
	if cfg.Model.ModelPath == "" && config.ModelFactory == nil {
		return nil, errors.New("server: model path is empty")
	}
	factory := config.ModelFactory
	if factory == nil {
		factory = pipeline.ONNXModelFactory(cfg.Model)
	}

	s := &Server{
		predictor:      pipeline.NewPredictor(cfg, factory, nil),
		modelsDir:      cfg.ModelsDir,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		maxBurstFrames: config.MaxBurstFrames,
		strict:         config.Strict,
		overlayEnabled: config.OverlayEnabled,
		overlayColor:   config.OverlayColor,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.maxBurstFrames <= 0 {
		s.maxBurstFrames = 30
	}
	if s.overlayColor == nil {
		s.overlayColor = color.NRGBA{R: 255, A: 255}
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.predictor != nil {
		return s.predictor.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))
	mux.HandleFunc("/scan", s.corsMiddleware(s.rateLimitMiddleware(s.scanHandler)))
	mux.HandleFunc("/burst", s.corsMiddleware(s.rateLimitMiddleware(s.burstHandler)))
	mux.HandleFunc("/ws/scan", s.rateLimitMiddleware(s.scanWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// decodeFrame decodes an uploaded frame and checks its dimensions.
func decodeFrame(data []byte) (image.Image, error) {
	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
		return nil, err
	}
	return img, nil
}
