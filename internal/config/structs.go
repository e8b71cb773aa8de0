//nolint:lll
package config

import "github.com/MeKo-Tech/textspot/internal/tensors"

// Config represents the complete configuration for the textspot application.
// It covers every command (decode, image, serve) and is loaded from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// PipelineConfig contains frame sizes and per-stage settings.
type PipelineConfig struct {
	PreviewWidth  int     `mapstructure:"preview_width" yaml:"preview_width" json:"preview_width"`
	PreviewHeight int     `mapstructure:"preview_height" yaml:"preview_height" json:"preview_height"`
	VideoWidth    int     `mapstructure:"video_width" yaml:"video_width" json:"video_width"`
	VideoHeight   int     `mapstructure:"video_height" yaml:"video_height" json:"video_height"`
	CropMode      string  `mapstructure:"crop_mode" yaml:"crop_mode" json:"crop_mode"`
	MaxWorkers    int     `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`

	// Detection settings
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`

	// Recognition settings
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`

	// Warmup iterations run after the models load
	WarmupIterations int `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
}

// DetectorConfig contains EAST detection settings.
type DetectorConfig struct {
	ModelPath      string             `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	Stride         int                `mapstructure:"stride" yaml:"stride" json:"stride"`
	ScoreThreshold float32            `mapstructure:"score_threshold" yaml:"score_threshold" json:"score_threshold"`
	NMSThreshold   float64            `mapstructure:"nms_threshold" yaml:"nms_threshold" json:"nms_threshold"`
	PixelInclusive bool               `mapstructure:"pixel_inclusive" yaml:"pixel_inclusive" json:"pixel_inclusive"`
	NumThreads     int                `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	Layers         tensors.LayerNames `mapstructure:"layers" yaml:"layers" json:"layers"`
}

// RecognizerConfig contains CTC recognition settings.
type RecognizerConfig struct {
	ModelPath    string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath     string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	Alphabet     string `mapstructure:"alphabet" yaml:"alphabet" json:"alphabet"`
	Width        int    `mapstructure:"width" yaml:"width" json:"width"`
	Height       int    `mapstructure:"height" yaml:"height" json:"height"`
	Grayscale    bool   `mapstructure:"grayscale" yaml:"grayscale" json:"grayscale"`
	ClassesFirst bool   `mapstructure:"classes_first" yaml:"classes_first" json:"classes_first"`
	OutputName   string `mapstructure:"output_name" yaml:"output_name" json:"output_name"`
	Lowercase    bool   `mapstructure:"lowercase" yaml:"lowercase" json:"lowercase"`
	Normalize    string `mapstructure:"normalize" yaml:"normalize" json:"normalize"`
	Typographic  bool   `mapstructure:"typographic" yaml:"typographic" json:"typographic"`
	NumThreads   int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       int    `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"` // requests per minute per IP, 0 disables
	OverlayEnabled  bool   `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
