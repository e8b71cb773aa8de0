package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "textspot.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	if l := NewLoader(); l == nil || l.v == nil {
		t.Fatal("NewLoader() returned an unusable loader")
	}
	if l := NewLoaderWithViper(nil); l.v == nil {
		t.Fatal("NewLoaderWithViper(nil) should create a viper instance")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level %q, got %q", infoLevel, cfg.LogLevel)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.Detector.Layers.Scores == "" {
		t.Error("Expected default layer names")
	}
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
verbose: true
models_dir: /custom/models
server:
  host: 0.0.0.0
  port: 9090
pipeline:
  crop_mode: warp
  detector:
    score_threshold: 0.4
    pixel_inclusive: true
  recognizer:
    alphabet: default
`)
	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.LogLevel != debugLevel || !cfg.Verbose {
		t.Errorf("Global settings not loaded: %+v", cfg)
	}
	if cfg.ModelsDir != "/custom/models" {
		t.Errorf("Expected models dir '/custom/models', got %s", cfg.ModelsDir)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("Server settings not loaded: %+v", cfg.Server)
	}
	if cfg.Pipeline.CropMode != "warp" {
		t.Errorf("Expected warp, got %q", cfg.Pipeline.CropMode)
	}
	if cfg.Pipeline.Detector.ScoreThreshold != 0.4 || !cfg.Pipeline.Detector.PixelInclusive {
		t.Errorf("Detector settings not loaded: %+v", cfg.Pipeline.Detector)
	}
	if cfg.Pipeline.Recognizer.Alphabet != "default" {
		t.Errorf("Expected default alphabet, got %q", cfg.Pipeline.Recognizer.Alphabet)
	}
	// untouched keys keep their defaults
	if cfg.Pipeline.Detector.Stride != 4 {
		t.Errorf("Expected default stride 4, got %d", cfg.Pipeline.Detector.Stride)
	}
}

func TestLoadWithInvalidYAMLFile(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n  invalid indentation\n    more bad indentation\n")
	if _, err := NewLoaderWithViper(viper.New()).LoadWithFile(path); err == nil {
		t.Error("LoadWithFile() expected error for invalid YAML, got nil")
	}
}

func TestLoadWithNonExistentFile(t *testing.T) {
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile("/nonexistent/path/to/config.yaml")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("LoadWithFile() expected missing file error, got %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	path := writeConfig(t, "log_level: invalid_level\nserver:\n  port: 0\n")

	if _, err := NewLoaderWithViper(viper.New()).LoadWithFile(path); err == nil {
		t.Error("LoadWithFile() expected validation error, got nil")
	}

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if cfg.LogLevel != "invalid_level" || cfg.Server.Port != 0 {
		t.Errorf("Expected raw values, got %q/%d", cfg.LogLevel, cfg.Server.Port)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TEXTSPOT_LOG_LEVEL", "warn")
	t.Setenv("TEXTSPOT_PIPELINE_DETECTOR_NMS_THRESHOLD", "0.45")
	t.Setenv("TEXTSPOT_SERVER_PORT", "7070")

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected warn from env, got %q", cfg.LogLevel)
	}
	if cfg.Pipeline.Detector.NMSThreshold != 0.45 {
		t.Errorf("Expected nms 0.45 from env, got %v", cfg.Pipeline.Detector.NMSThreshold)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Expected port 7070 from env, got %d", cfg.Server.Port)
	}
}

func TestLoaderSetGet(t *testing.T) {
	l := NewLoaderWithViper(viper.New())
	l.Set("output.format", "csv")
	if got := l.Get("output.format"); got != "csv" {
		t.Errorf("Get() = %v, want csv", got)
	}
	path := writeConfig(t, "log_level: error\n")
	if _, err := l.LoadWithFile(path); err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if l.GetConfigFileUsed() != path {
		t.Errorf("GetConfigFileUsed() = %q, want %q", l.GetConfigFileUsed(), path)
	}
	if _, ok := l.GetResolvedConfig()["pipeline"]; !ok {
		t.Error("Resolved config should contain the pipeline section")
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textspot.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("generated file is not valid YAML: %v", err)
	}
	if back.Pipeline.Detector.Layers != DefaultConfig().Pipeline.Detector.Layers {
		t.Errorf("Layer names did not round-trip: %+v", back.Pipeline.Detector.Layers)
	}

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("generated file does not load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("First search path should be '.', got %q", paths[0])
	}
	want := []string{filepath.Join("/xdg", "textspot"), "/etc/textspot"}
	for _, w := range want {
		found := false
		for _, p := range paths {
			if p == w {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected %q in search paths %v", w, paths)
		}
	}
}
