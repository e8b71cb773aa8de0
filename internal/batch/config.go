package batch

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/MeKo-Tech/textspot/internal/pipeline"
)

// Config holds all configuration for batch decoding.
type Config struct {
	Pipeline pipeline.Config

	// Frame size regions are reported in; zero uses the pipeline video size.
	FrameWidth  int
	FrameHeight int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Parallel decoding settings
	Workers int // 0 = runtime.NumCPU()
	// Abort on the first failing dump instead of recording it.
	FailFast bool
}

// DefaultConfig decodes *.json dumps, skipping expectation files.
func DefaultConfig() Config {
	return Config{
		Pipeline:        pipeline.DefaultConfig(),
		IncludePatterns: []string{"*.json"},
		ExcludePatterns: []string{"*.expected.json"},
		Workers:         runtime.NumCPU(),
	}
}

// Validate checks the batch settings and the decode configuration.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.FrameWidth < 0 || c.FrameHeight < 0 {
		return fmt.Errorf("frame size must not be negative, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	for _, p := range append(append([]string{}, c.IncludePatterns...), c.ExcludePatterns...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	if err := c.Pipeline.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := c.Pipeline.Recognizer.Validate(); err != nil {
		return fmt.Errorf("recognizer: %w", err)
	}
	return nil
}

func (c Config) workers(jobs int) int {
	w := c.Workers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	return max(1, min(w, jobs))
}
