package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/textspot/internal/crop"
	"github.com/MeKo-Tech/textspot/internal/detector"
	"github.com/MeKo-Tech/textspot/internal/models"
	"github.com/MeKo-Tech/textspot/internal/onnx"
	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/recognizer"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	p := pipeline.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Pipeline: PipelineConfig{
			PreviewWidth:  p.PreviewWidth,
			PreviewHeight: p.PreviewHeight,
			VideoWidth:    p.VideoWidth,
			VideoHeight:   p.VideoHeight,
			CropMode:      string(p.CropMode),
			MaxWorkers:    p.MaxWorkers,
			MinConfidence: p.MinConfidence,
			Detector:      defaultDetectorConfig(p.Detector),
			Recognizer:    defaultRecognizerConfig(p.Recognizer),
		},
		Output: OutputConfig{
			Format: "json",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit:       120,
			OverlayEnabled:  true,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: "auto",
		},
	}
}

func defaultDetectorConfig(cfg detector.Config) DetectorConfig {
	return DetectorConfig{
		Stride:         cfg.Stride,
		ScoreThreshold: cfg.ScoreThreshold,
		NMSThreshold:   cfg.NMSThreshold,
		PixelInclusive: cfg.PixelInclusive,
		NumThreads:     cfg.NumThreads,
		Layers:         cfg.Layers,
	}
}

func defaultRecognizerConfig(cfg recognizer.Config) RecognizerConfig {
	return RecognizerConfig{
		Alphabet:     cfg.AlphabetName,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Grayscale:    cfg.Grayscale,
		ClassesFirst: cfg.ClassesFirst,
		Lowercase:    cfg.Clean.Lowercase,
		Normalize:    cfg.Clean.NormalizeForm,
		Typographic:  cfg.Clean.Typographic,
		NumThreads:   cfg.NumThreads,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if err := validateThreshold(float64(c.Pipeline.Detector.ScoreThreshold), "detector.score_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Pipeline.Detector.NMSThreshold, "detector.nms_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Pipeline.MinConfidence, "pipeline.min_confidence"); err != nil {
		return err
	}
	if c.Pipeline.Detector.Stride <= 0 {
		return fmt.Errorf("invalid detector stride: %d (must be positive)", c.Pipeline.Detector.Stride)
	}
	if _, err := crop.ParseMode(c.Pipeline.CropMode); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit: %d (must be >= 0)", c.Server.RateLimit)
	}
	if c.Pipeline.MaxWorkers < 0 {
		return fmt.Errorf("invalid max workers: %d (must be >= 0)", c.Pipeline.MaxWorkers)
	}

	if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return c.ToPipelineConfig().Validate()
}

// ToPipelineConfig converts the config to the internal pipeline configuration.
// Explicit model paths win over ModelsDir.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ModelsDir = c.ModelsDir
	cfg.PreviewWidth = c.Pipeline.PreviewWidth
	cfg.PreviewHeight = c.Pipeline.PreviewHeight
	cfg.VideoWidth = c.Pipeline.VideoWidth
	cfg.VideoHeight = c.Pipeline.VideoHeight
	cfg.CropMode = crop.Mode(c.Pipeline.CropMode)
	cfg.MaxWorkers = c.Pipeline.MaxWorkers
	cfg.MinConfidence = c.Pipeline.MinConfidence
	cfg.Detector = c.toDetectorConfig()
	cfg.Recognizer = c.toRecognizerConfig()
	return cfg
}

// toDetectorConfig converts to detector.Config. The network input follows
// the preview size.
func (c *Config) toDetectorConfig() detector.Config {
	d := c.Pipeline.Detector
	cfg := detector.DefaultConfig()
	cfg.UpdateModelPath(c.ModelsDir)
	if d.ModelPath != "" {
		cfg.ModelPath = d.ModelPath
	}
	cfg.InputWidth = c.Pipeline.PreviewWidth
	cfg.InputHeight = c.Pipeline.PreviewHeight
	cfg.Stride = d.Stride
	cfg.ScoreThreshold = d.ScoreThreshold
	cfg.NMSThreshold = d.NMSThreshold
	cfg.PixelInclusive = d.PixelInclusive
	cfg.NumThreads = d.NumThreads
	if d.Layers.Scores != "" || d.Layers.Geometry != "" || d.Layers.Angles != "" {
		cfg.Layers = d.Layers
	}
	cfg.GPU = c.toGPUConfig()
	return cfg
}

// toRecognizerConfig converts to recognizer.Config.
func (c *Config) toRecognizerConfig() recognizer.Config {
	r := c.Pipeline.Recognizer
	cfg := recognizer.DefaultConfig()
	cfg.UpdateModelPath(c.ModelsDir)
	if r.ModelPath != "" {
		cfg.ModelPath = r.ModelPath
	}
	cfg.DictPath = r.DictPath
	if r.Alphabet != "" {
		cfg.AlphabetName = r.Alphabet
	}
	cfg.Width = r.Width
	cfg.Height = r.Height
	cfg.Grayscale = r.Grayscale
	cfg.ClassesFirst = r.ClassesFirst
	cfg.OutputName = r.OutputName
	cfg.Clean.Lowercase = r.Lowercase
	if r.Normalize != "" {
		cfg.Clean.NormalizeForm = r.Normalize
	}
	cfg.Clean.Typographic = r.Typographic
	cfg.NumThreads = r.NumThreads
	cfg.GPU = c.toGPUConfig()
	return cfg
}

// toGPUConfig converts to onnx.GPUConfig. An unparsable memory limit is
// treated as unlimited; Validate reports it.
func (c *Config) toGPUConfig() onnx.GPUConfig {
	cfg := onnx.DefaultGPUConfig()
	cfg.UseGPU = c.GPU.Enabled
	cfg.DeviceID = c.GPU.Device
	if limit, err := parseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		cfg.GPUMemLimit = limit
	}
	return cfg
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit parses a GPU memory limit such as "1GB" or "512MB" into
// bytes. "" and "auto" mean unlimited (0).
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(limit))
	units := []struct {
		suffix string
		mult   float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.mult), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB")
}
