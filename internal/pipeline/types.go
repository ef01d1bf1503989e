package pipeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/cardscan/internal/assembler"
	"github.com/MeKo-Tech/cardscan/internal/detector"
)

// Model is the inference collaborator: Classify runs the network on a frame
// and Outputs returns the raw heads of that run.
type Model interface {
	Classify(img image.Image) error
	Outputs() detector.Outputs
	SetNumThreads(n int)
	Close() error
}

// ModelFactory constructs a fresh Model. It is called lazily on the first
// frame and again when a failed frame is retried.
type ModelFactory func() (Model, error)

// ErrModelUnavailable is reported when a frame is run without a model, for
// example because the last construction failed.
var ErrModelUnavailable = errors.New("inference model unavailable")

// ErrNilFrame is reported for a nil image.
var ErrNilFrame = errors.New("frame is nil")

// Stage names the step of a frame that failed.
type Stage string

const (
	StageInit        Stage = "init"
	StageClassify    Stage = "classify"
	StagePostProcess Stage = "postprocess"
)

// FrameError is the failure of one frame attempt.
type FrameError struct {
	Stage   Stage
	Attempt int // 1 for the first run, 2 for the retry
	Err     error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s failed (attempt %d): %v", e.Stage, e.Attempt, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// FrameResult is the full outcome of Predictor.Run.
type FrameResult struct {
	assembler.Result

	Width      int   `json:"width" yaml:"width"`
	Height     int   `json:"height" yaml:"height"`
	Detections int   `json:"detections" yaml:"detections"`
	Retried    bool  `json:"retried" yaml:"retried"`
	Err        error `json:"-" yaml:"-"`

	Processing struct {
		InferenceNs   int64 `json:"inference_ns" yaml:"inference_ns"`
		PostProcessNs int64 `json:"postprocess_ns" yaml:"postprocess_ns"`
		TotalNs       int64 `json:"total_ns" yaml:"total_ns"`
	} `json:"processing" yaml:"processing"`
}

// Failed reports whether the frame ended in an unrecoverable failure.
func (r FrameResult) Failed() bool { return r.Err != nil }

// ErrorMessage returns the failure message, or "" on success.
func (r FrameResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
