package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "textspot"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "TEXTSPOT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, which is where
// the root command binds its flags.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load loads configuration from the search paths, environment variables and
// defaults, then validates it. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load without the final validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile loads configuration from a specific file path. An empty path
// searches the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for flag binding.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps TEXTSPOT_PIPELINE_DETECTOR_STRIDE and
// friends onto dotted keys.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so env overrides reach Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	p := d.Pipeline
	l.v.SetDefault("pipeline.preview_width", p.PreviewWidth)
	l.v.SetDefault("pipeline.preview_height", p.PreviewHeight)
	l.v.SetDefault("pipeline.video_width", p.VideoWidth)
	l.v.SetDefault("pipeline.video_height", p.VideoHeight)
	l.v.SetDefault("pipeline.crop_mode", p.CropMode)
	l.v.SetDefault("pipeline.max_workers", p.MaxWorkers)
	l.v.SetDefault("pipeline.min_confidence", p.MinConfidence)
	l.v.SetDefault("pipeline.warmup_iterations", p.WarmupIterations)

	l.v.SetDefault("pipeline.detector.model_path", p.Detector.ModelPath)
	l.v.SetDefault("pipeline.detector.stride", p.Detector.Stride)
	l.v.SetDefault("pipeline.detector.score_threshold", p.Detector.ScoreThreshold)
	l.v.SetDefault("pipeline.detector.nms_threshold", p.Detector.NMSThreshold)
	l.v.SetDefault("pipeline.detector.pixel_inclusive", p.Detector.PixelInclusive)
	l.v.SetDefault("pipeline.detector.num_threads", p.Detector.NumThreads)
	l.v.SetDefault("pipeline.detector.layers.scores", p.Detector.Layers.Scores)
	l.v.SetDefault("pipeline.detector.layers.geometry", p.Detector.Layers.Geometry)
	l.v.SetDefault("pipeline.detector.layers.angles", p.Detector.Layers.Angles)

	l.v.SetDefault("pipeline.recognizer.model_path", p.Recognizer.ModelPath)
	l.v.SetDefault("pipeline.recognizer.dict_path", p.Recognizer.DictPath)
	l.v.SetDefault("pipeline.recognizer.alphabet", p.Recognizer.Alphabet)
	l.v.SetDefault("pipeline.recognizer.width", p.Recognizer.Width)
	l.v.SetDefault("pipeline.recognizer.height", p.Recognizer.Height)
	l.v.SetDefault("pipeline.recognizer.grayscale", p.Recognizer.Grayscale)
	l.v.SetDefault("pipeline.recognizer.classes_first", p.Recognizer.ClassesFirst)
	l.v.SetDefault("pipeline.recognizer.output_name", p.Recognizer.OutputName)
	l.v.SetDefault("pipeline.recognizer.lowercase", p.Recognizer.Lowercase)
	l.v.SetDefault("pipeline.recognizer.normalize", p.Recognizer.Normalize)
	l.v.SetDefault("pipeline.recognizer.typographic", p.Recognizer.Typographic)
	l.v.SetDefault("pipeline.recognizer.num_threads", p.Recognizer.NumThreads)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)
	l.v.SetDefault("output.overlay_dir", d.Output.OverlayDir)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit", d.Server.RateLimit)
	l.v.SetDefault("server.overlay_enabled", d.Server.OverlayEnabled)

	l.v.SetDefault("gpu.enabled", d.GPU.Enabled)
	l.v.SetDefault("gpu.device", d.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", d.GPU.MemoryLimit)
}

// GetResolvedConfig returns the current resolved settings for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// GenerateDefaultConfigFile writes the default configuration as YAML.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	data, err := ToYAML(DefaultConfig())
	if err != nil {
		return err
	}
	//nolint:gosec // G306: config files are meant to be readable
	return os.WriteFile(filename, data, 0o644)
}

// ToYAML renders a configuration the way config show prints it.
func ToYAML(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/"+ConfigFileName)
}
