package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// SessionConfig describes a model session.
type SessionConfig struct {
	ModelPath   string
	NumThreads  int
	GPU         GPUConfig
	OutputNames []string // empty selects every model output
}

// Session wraps a dynamic ONNX Runtime session with one float32 input.
type Session struct {
	session *onnxruntime_go.DynamicAdvancedSession
	input   onnxruntime_go.InputOutputInfo
	outputs []string
	mu      sync.RWMutex
}

// InitEnvironment locates the shared library and initializes ONNX Runtime once.
func InitEnvironment(useGPU bool) error {
	if err := SetONNXLibraryPath(useGPU); err != nil {
		return fmt.Errorf("failed to set ONNX Runtime library path: %w", err)
	}
	if !onnxruntime_go.IsInitialized() {
		if err := onnxruntime_go.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	}
	return nil
}

// NewSession loads a model and prepares a session for it.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if err := ValidateGPUConfig(cfg.GPU); err != nil {
		return nil, err
	}
	if err := InitEnvironment(cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("expected 1 model input, got %d", len(inputs))
	}

	names := cfg.OutputNames
	if len(names) == 0 {
		for _, o := range outputs {
			names = append(names, o.Name)
		}
	}
	for _, n := range names {
		if !slices.ContainsFunc(outputs, func(o onnxruntime_go.InputOutputInfo) bool { return o.Name == n }) {
			return nil, fmt.Errorf("model has no output named %q", n)
		}
	}

	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if err := ConfigureSessionForGPU(opts, cfg.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	sess, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, names, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	slog.Debug("ONNX session created",
		"model_path", cfg.ModelPath,
		"input", inputs[0].Name,
		"input_shape", inputs[0].Dimensions,
		"outputs", names,
		"gpu_enabled", cfg.GPU.UseGPU)

	return &Session{session: sess, input: inputs[0], outputs: names}, nil
}

// InputShape returns the model's declared input shape; dynamic dimensions are -1.
func (s *Session) InputShape() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone([]int64(s.input.Dimensions))
}

// OutputNames returns the outputs produced by Run, in order.
func (s *Session) OutputNames() []string {
	return slices.Clone(s.outputs)
}

// Run feeds one input tensor and returns every selected output by name.
func (s *Session) Run(input tensors.Tensor) (map[string]tensors.Tensor, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input tensor: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	in, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer destroy(in, "input")

	outputs := make([]onnxruntime_go.Value, len(s.outputs))
	if err := s.session.Run([]onnxruntime_go.Value{in}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	result := make(map[string]tensors.Tensor, len(outputs))
	for i, v := range outputs {
		if v == nil {
			continue
		}
		ft, ok := v.(*onnxruntime_go.Tensor[float32])
		if !ok {
			destroy(v, s.outputs[i])
			return nil, fmt.Errorf("output %q is not a float32 tensor", s.outputs[i])
		}
		result[s.outputs[i]] = tensors.Tensor{
			Data:  slices.Clone(ft.GetData()),
			Shape: slices.Clone([]int64(ft.GetShape())),
		}
		destroy(v, s.outputs[i])
	}
	return result, nil
}

// Close releases the session. The ONNX environment stays initialized.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

func destroy(v onnxruntime_go.Value, name string) {
	if err := v.Destroy(); err != nil {
		slog.Warn("failed to destroy tensor", "tensor", name, "error", err)
	}
}
