package detector

import (
	"errors"
	"fmt"
)

// Model geometry of the SSD digit detector.
const (
	InputWidth          = 600
	InputHeight         = 375
	NumClasses          = 11 // background + digits 1-9 + a second zero class
	PriorsPerActivation = 3
	NumCoordinates      = 4
	BackgroundClass     = 0
	ZeroAliasClass      = 10
)

// ExtractOptions tunes DetectionExtractor.
type ExtractOptions struct {
	ProbThreshold float32 // minimum class probability, exclusive (default: 0.5)
	IoUThreshold  float32 // suppress boxes overlapping a kept one by more than this (default: 0.5)
	TopK          int     // maximum boxes kept per class (default: 20)
	NumClasses    int     // columns in the score matrix, class 0 is background
}

// Config holds the post-processing parameters of the detector.
type Config struct {
	InputWidth          int
	InputHeight         int
	FeatureMaps         []FeatureMapSpec
	PriorsPerActivation int
	CenterVariance      float32 // default: 0.1
	SizeVariance        float32 // default: 0.2
	Extract             ExtractOptions
}

// DefaultExtractOptions returns the thresholds the model was tuned with.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		ProbThreshold: 0.5,
		IoUThreshold:  0.5,
		TopK:          20,
		NumClasses:    NumClasses,
	}
}

// DefaultConfig returns the configuration matching the shipped model.
func DefaultConfig() Config {
	return Config{
		InputWidth:          InputWidth,
		InputHeight:         InputHeight,
		FeatureMaps:         DefaultFeatureMaps(),
		PriorsPerActivation: PriorsPerActivation,
		CenterVariance:      0.1,
		SizeVariance:        0.2,
		Extract:             DefaultExtractOptions(),
	}
}

// NumPriors returns the number of prior boxes implied by the feature maps.
func (c Config) NumPriors() int {
	n := 0
	for _, fm := range c.FeatureMaps {
		n += fm.Width * fm.Height * c.PriorsPerActivation
	}
	return n
}

// Validate checks the configuration for values the decoder cannot work with.
func (c Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("invalid input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if len(c.FeatureMaps) == 0 {
		return errors.New("at least one feature map is required")
	}
	if c.PriorsPerActivation != PriorsPerActivation {
		return fmt.Errorf("priors per activation must be %d, got %d", PriorsPerActivation, c.PriorsPerActivation)
	}
	if c.CenterVariance <= 0 || c.SizeVariance <= 0 {
		return errors.New("variances must be positive")
	}
	e := c.Extract
	if e.ProbThreshold < 0 || e.ProbThreshold > 1 {
		return fmt.Errorf("probability threshold must be in [0,1], got %.2f", e.ProbThreshold)
	}
	if e.IoUThreshold < 0 || e.IoUThreshold > 1 {
		return fmt.Errorf("IoU threshold must be in [0,1], got %.2f", e.IoUThreshold)
	}
	if e.TopK <= 0 {
		return fmt.Errorf("top-k must be positive, got %d", e.TopK)
	}
	if e.NumClasses < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", e.NumClasses)
	}
	return nil
}
