package pipeline

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/textspot/internal/crop"
	"github.com/MeKo-Tech/textspot/internal/detector"
	"github.com/MeKo-Tech/textspot/internal/models"
	"github.com/MeKo-Tech/textspot/internal/recognizer"
)

// Config holds configuration for the pipeline and its components.
type Config struct {
	ModelsDir string

	// The detector sees the preview frame; rectangles are scaled to the
	// video frame for cropping.
	PreviewWidth  int
	PreviewHeight int
	VideoWidth    int
	VideoHeight   int

	Detector      detector.Config
	Recognizer    recognizer.Config
	CropMode      crop.Mode
	MaxWorkers    int     // parallel crop recognition (0 = runtime.NumCPU())
	MinConfidence float64 // regions whose text confidence is lower are dropped
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		ModelsDir:     models.GetModelsDir(""),
		PreviewWidth:  256,
		PreviewHeight: 256,
		VideoWidth:    512,
		VideoHeight:   512,
		Detector:      detector.DefaultConfig(),
		Recognizer:    recognizer.DefaultConfig(),
		CropMode:      crop.ModeRotate,
		MaxWorkers:    runtime.NumCPU(),
	}
}

// ScaleRatios returns video/preview per axis.
func (c Config) ScaleRatios() (float64, float64) {
	return c.FrameRatios(c.VideoWidth, c.VideoHeight)
}

// FrameRatios returns frame/preview per axis for an arbitrary frame size.
func (c Config) FrameRatios(frameW, frameH int) (float64, float64) {
	return float64(frameW) / float64(c.PreviewWidth), float64(frameH) / float64(c.PreviewHeight)
}

// Validate checks sizes and component configs without touching model files.
func (c Config) Validate() error {
	if c.PreviewWidth <= 0 || c.PreviewHeight <= 0 {
		return fmt.Errorf("preview size must be positive, got %dx%d", c.PreviewWidth, c.PreviewHeight)
	}
	if c.VideoWidth <= 0 || c.VideoHeight <= 0 {
		return fmt.Errorf("video size must be positive, got %dx%d", c.VideoWidth, c.VideoHeight)
	}
	if c.PreviewWidth != c.Detector.InputWidth || c.PreviewHeight != c.Detector.InputHeight {
		return fmt.Errorf("preview %dx%d must match detector input %dx%d",
			c.PreviewWidth, c.PreviewHeight, c.Detector.InputWidth, c.Detector.InputHeight)
	}
	if _, err := crop.ParseMode(string(c.CropMode)); err != nil {
		return err
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max workers must be >= 0, got %d", c.MaxWorkers)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %v", c.MinConfidence)
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := c.Recognizer.Validate(); err != nil {
		return fmt.Errorf("recognizer: %w", err)
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFrom starts from an existing configuration.
func NewBuilderFrom(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithModelsDir sets the models directory and updates component model paths.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	b.cfg.Detector.UpdateModelPath(b.cfg.ModelsDir)
	b.cfg.Recognizer.UpdateModelPath(b.cfg.ModelsDir)
	return b
}

// WithDetectorModelPath overrides the detector model path directly.
func (b *Builder) WithDetectorModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Detector.ModelPath = path
	}
	return b
}

// WithRecognizerModelPath overrides the recognizer model path directly.
func (b *Builder) WithRecognizerModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Recognizer.ModelPath = path
	}
	return b
}

// WithAlphabetPath sets an alphabet file for the recognizer.
func (b *Builder) WithAlphabetPath(path string) *Builder {
	if path != "" {
		b.cfg.Recognizer.DictPath = path
	}
	return b
}

// WithThresholds sets the cell score and NMS overlap thresholds.
func (b *Builder) WithThresholds(score float32, nms float64) *Builder {
	b.cfg.Detector.ScoreThreshold = score
	b.cfg.Detector.NMSThreshold = nms
	return b
}

// WithCropMode selects rotate or warp cropping.
func (b *Builder) WithCropMode(mode crop.Mode) *Builder {
	if mode != "" {
		b.cfg.CropMode = mode
	}
	return b
}

// WithThreads sets intra-op thread counts for both models (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.Detector.NumThreads = n
		b.cfg.Recognizer.NumThreads = n
	}
	return b
}

// WithParallelWorkers sets the number of crops recognized concurrently.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.MaxWorkers = workers
	}
	return b
}

// WithGPU enables GPU acceleration for both models.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Detector.GPU.UseGPU = enabled
	b.cfg.Recognizer.GPU.UseGPU = enabled
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the configuration and that both model files exist.
func (b *Builder) Validate() error {
	if err := b.cfg.Validate(); err != nil {
		return err
	}
	if b.cfg.Detector.ModelPath == "" {
		return errors.New("detector model path is empty")
	}
	if b.cfg.Recognizer.ModelPath == "" {
		return errors.New("recognizer model path is empty")
	}
	if err := models.ValidateModelExists(b.cfg.Detector.ModelPath); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := models.ValidateModelExists(b.cfg.Recognizer.ModelPath); err != nil {
		return fmt.Errorf("recognizer: %w", err)
	}
	return nil
}

// Build validates the configuration and loads both models.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	det, err := detector.NewDetector(b.cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	rec, err := recognizer.NewRecognizer(b.cfg.Recognizer)
	if err != nil {
		_ = det.Close()
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}
	return &Pipeline{cfg: b.cfg, Detector: det, Recognizer: rec}, nil
}
