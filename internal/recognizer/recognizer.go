package recognizer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/textspot/internal/mempool"
	"github.com/MeKo-Tech/textspot/internal/models"
	"github.com/MeKo-Tech/textspot/internal/onnx"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// Alphabet presets selectable by name.
const (
	AlphabetDefault  = "default"
	AlphabetOpenVINO = "openvino"
)

// Config holds configuration for the text recognizer.
type Config struct {
	ModelPath    string         // Path to ONNX recognition model
	DictPath     string         // Optional alphabet file; overrides AlphabetName
	AlphabetName string         // "default" (blank first) or "openvino" (blank last)
	Width        int            // Crop width fed to the model (default: 120)
	Height       int            // Crop height fed to the model (default: 32)
	Grayscale    bool           // Feed a single luminance channel
	Scale        float32        // Pixel multiplier; 0 keeps 0..255
	ClassesFirst bool           // Output laid out as [C,T] instead of [T,C]
	OutputName   string         // Model output to decode; empty takes the only output
	Clean        CleanOptions   // Text cleanup after decoding
	NumThreads   int            // Number of CPU threads (0 for default)
	GPU          onnx.GPUConfig // GPU acceleration configuration
}

// DefaultConfig returns a default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:    models.GetRecognitionModelPath(""),
		AlphabetName: AlphabetOpenVINO,
		Width:        120,
		Height:       32,
		Grayscale:    true,
		Clean:        DefaultCleanOptions(),
		GPU:          onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPath points ModelPath at the recognizer inside modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetRecognitionModelPath(modelsDir)
}

// Validate checks the configuration without touching the model file.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("crop size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num threads must be >= 0, got %d", c.NumThreads)
	}
	if c.DictPath == "" {
		switch c.AlphabetName {
		case "", AlphabetDefault, AlphabetOpenVINO:
		default:
			return fmt.Errorf("%w: unknown preset %q", ErrAlphabet, c.AlphabetName)
		}
	}
	if !validNormalizeForm(c.Clean.NormalizeForm) {
		return fmt.Errorf("unknown normalization form %q", c.Clean.NormalizeForm)
	}
	return nil
}

// ResolveAlphabet loads DictPath or returns the named preset.
func (c Config) ResolveAlphabet() (Alphabet, error) {
	if c.DictPath != "" {
		return LoadAlphabet(c.DictPath)
	}
	switch c.AlphabetName {
	case "", AlphabetDefault:
		return DefaultAlphabet(), nil
	case AlphabetOpenVINO:
		return OpenVINOAlphabet(), nil
	}
	return Alphabet{}, fmt.Errorf("%w: unknown preset %q", ErrAlphabet, c.AlphabetName)
}

// Runner executes a model on one input tensor and returns its outputs by name.
type Runner interface {
	Run(input tensors.Tensor) (map[string]tensors.Tensor, error)
	Close() error
}

// Result is the recognition output for one crop.
type Result struct {
	Text           string  `json:"text"`
	Raw            string  `json:"raw,omitempty"` // decoded text before cleanup
	Confidence     float64 `json:"confidence"`
	Indices        []int   `json:"indices,omitempty"`
	Steps          int     `json:"steps"`
	ProcessingTime int64   `json:"processing_time_ns"`
}

// Recognizer performs CTC text recognition on rectified crops.
type Recognizer struct {
	config   Config
	alphabet Alphabet
	runner   Runner
	mu       sync.RWMutex
}

// NewRecognizer creates a recognizer backed by an ONNX Runtime session.
func NewRecognizer(config Config) (*Recognizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	var outputs []string
	if config.OutputName != "" {
		outputs = []string{config.OutputName}
	}
	sess, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   config.ModelPath,
		NumThreads:  config.NumThreads,
		GPU:         config.GPU,
		OutputNames: outputs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer session: %w", err)
	}
	if config.OutputName == "" {
		names := sess.OutputNames()
		if len(names) != 1 {
			_ = sess.Close()
			return nil, fmt.Errorf("model has %d outputs, set an output name", len(names))
		}
		config.OutputName = names[0]
	}
	r, err := NewRecognizerWithRunner(config, sess)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}
	return r, nil
}

// NewRecognizerWithRunner creates a recognizer around an existing runner.
// The runner may be nil when only RecognizeSequence is used.
func NewRecognizerWithRunner(config Config, runner Runner) (*Recognizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	alphabet, err := config.ResolveAlphabet()
	if err != nil {
		return nil, err
	}
	slog.Debug("Recognizer ready",
		"model_path", config.ModelPath,
		"crop", fmt.Sprintf("%dx%d", config.Width, config.Height),
		"classes", alphabet.Size(),
		"blank", alphabet.Blank)
	return &Recognizer{config: config, alphabet: alphabet, runner: runner}, nil
}

// Close releases resources used by the recognizer.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runner == nil {
		return nil
	}
	err := r.runner.Close()
	r.runner = nil
	return err
}

// GetConfig returns a copy of the recognizer's configuration.
func (r *Recognizer) GetConfig() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Alphabet returns the alphabet used for decoding.
func (r *Recognizer) Alphabet() Alphabet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alphabet
}

// RecognizeImage resizes a rectified crop, runs the model and decodes the output.
func (r *Recognizer) RecognizeImage(crop image.Image) (*Result, error) {
	start := time.Now()

	r.mu.RLock()
	runner := r.runner
	cfg := r.config
	r.mu.RUnlock()
	if runner == nil {
		return nil, errors.New("recognizer is closed")
	}

	resized, err := ResizeForRecognition(crop, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	input, buf := NormalizeForRecognition(resized, cfg.Grayscale, cfg.Scale)
	defer mempool.PutFloat32(buf)

	outputs, err := runner.Run(input)
	if err != nil {
		return nil, fmt.Errorf("recognition inference failed: %w", err)
	}
	out, err := pickOutput(outputs, cfg.OutputName)
	if err != nil {
		return nil, err
	}

	res, err := r.RecognizeSequence(out)
	if err != nil {
		return nil, err
	}
	res.ProcessingTime = time.Since(start).Nanoseconds()
	return res, nil
}

// RecognizeSequence decodes a raw recognition tensor without running a model.
func (r *Recognizer) RecognizeSequence(t tensors.Tensor) (*Result, error) {
	start := time.Now()
	cfg := r.GetConfig()
	dec, err := DecodeTensor(t, r.Alphabet(), cfg.ClassesFirst)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:           PostProcessText(dec.Text, cfg.Clean),
		Raw:            dec.Text,
		Confidence:     dec.Confidence,
		Indices:        dec.Indices,
		Steps:          len(dec.Steps),
		ProcessingTime: time.Since(start).Nanoseconds(),
	}, nil
}

func pickOutput(outputs map[string]tensors.Tensor, name string) (tensors.Tensor, error) {
	if name != "" {
		t, ok := outputs[name]
		if !ok {
			return tensors.Tensor{}, fmt.Errorf("%w: %s", tensors.ErrMissingTensor, name)
		}
		return t, nil
	}
	if len(outputs) != 1 {
		return tensors.Tensor{}, fmt.Errorf("expected 1 recognizer output, got %d", len(outputs))
	}
	var out tensors.Tensor
	for _, t := range outputs {
		out = t
	}
	return out, nil
}
