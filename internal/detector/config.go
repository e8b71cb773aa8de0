package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/textspot/internal/models"
	"github.com/MeKo-Tech/textspot/internal/onnx"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// Config holds configuration for the text detector.
type Config struct {
	ModelPath      string             // Path to ONNX EAST model
	InputWidth     int                // Network input width (default: 256)
	InputHeight    int                // Network input height (default: 256)
	Stride         int                // Input pixels per output cell (default: 4)
	ScoreThreshold float32            // Minimum cell score (default: 0.5)
	NMSThreshold   float64            // Overlap threshold for suppression (default: 0.3)
	PixelInclusive bool               // +1 area convention in NMS
	Mean           [3]float32         // Per-channel mean subtracted after channel reordering
	SwapRB         bool               // Feed RGB instead of BGR
	Layers         tensors.LayerNames // Output names of the three maps
	NumThreads     int                // Number of CPU threads (default: 0 for auto)
	GPU            onnx.GPUConfig     // GPU acceleration configuration
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:      models.GetDetectionModelPath(""),
		InputWidth:     256,
		InputHeight:    256,
		Stride:         DefaultStride,
		ScoreThreshold: 0.5,
		NMSThreshold:   0.3,
		Mean:           [3]float32{103.94, 116.78, 123.68},
		Layers:         tensors.DefaultEASTLayers(),
		GPU:            onnx.DefaultGPUConfig(),
	}
}

// Validate checks the configuration without touching the model file.
func (c Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("input size must be positive, got %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.Stride <= 0 || c.InputWidth%c.Stride != 0 || c.InputHeight%c.Stride != 0 {
		return fmt.Errorf("%w: %d does not divide input %dx%d", ErrInvalidStride, c.Stride, c.InputWidth, c.InputHeight)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("score threshold must be in [0,1], got %v", c.ScoreThreshold)
	}
	if c.NMSThreshold < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, c.NMSThreshold)
	}
	if c.Layers.Scores == "" || c.Layers.Geometry == "" || c.Layers.Angles == "" {
		return errors.New("all three output layer names are required")
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num threads must be >= 0, got %d", c.NumThreads)
	}
	return nil
}

// NMSOptions returns the suppression settings for this configuration.
func (c Config) NMSOptions() NMSOptions {
	return NMSOptions{Threshold: c.NMSThreshold, PixelInclusive: c.PixelInclusive}
}

// DecodeOptions returns the grid decoding settings for this configuration.
func (c Config) DecodeOptions() DecodeOptions {
	return DecodeOptions{
		Stride:         c.Stride,
		ScoreThreshold: c.ScoreThreshold,
		InputWidth:     c.InputWidth,
		InputHeight:    c.InputHeight,
	}
}

// UpdateModelPath points ModelPath at the EAST model inside modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetDetectionModelPath(modelsDir)
}
