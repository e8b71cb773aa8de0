package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/yalue/onnxruntime_go"
)

// GPUConfig holds configuration for CUDA acceleration of a session.
type GPUConfig struct {
	UseGPU                bool   // Enable GPU acceleration
	DeviceID              int    // CUDA device ID (default: 0)
	GPUMemLimit           uint64 // GPU memory limit in bytes (0 = unlimited)
	ArenaExtendStrategy   string // "kNextPowerOfTwo" or "kSameAsRequested"
	CUDNNConvAlgoSearch   string // "EXHAUSTIVE", "HEURISTIC" or "DEFAULT"
	DoCopyInDefaultStream bool
}

// DefaultGPUConfig returns a CPU-only configuration with CUDA defaults filled
// in for when UseGPU is switched on.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		ArenaExtendStrategy:   "kNextPowerOfTwo",
		CUDNNConvAlgoSearch:   "DEFAULT",
		DoCopyInDefaultStream: true,
	}
}

// cudaSettings renders the config as CUDA provider options.
func (c GPUConfig) cudaSettings() map[string]string {
	s := map[string]string{
		"device_id":                 strconv.Itoa(c.DeviceID),
		"do_copy_in_default_stream": "0",
	}
	if c.DoCopyInDefaultStream {
		s["do_copy_in_default_stream"] = "1"
	}
	if c.GPUMemLimit > 0 {
		s["gpu_mem_limit"] = strconv.FormatUint(c.GPUMemLimit, 10)
	}
	if c.ArenaExtendStrategy != "" {
		s["arena_extend_strategy"] = c.ArenaExtendStrategy
	}
	if c.CUDNNConvAlgoSearch != "" {
		s["cudnn_conv_algo_search"] = c.CUDNNConvAlgoSearch
	}
	return s
}

// ConfigureSessionForGPU appends the CUDA execution provider to opts. It is
// a no-op when the GPU is not requested.
func ConfigureSessionForGPU(opts *onnxruntime_go.SessionOptions, cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}

	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("failed to destroy CUDA provider options", "error", err)
		}
	}()

	if err := cudaOpts.Update(cfg.cudaSettings()); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	slog.Debug("CUDA execution provider enabled", "device", cfg.DeviceID, "mem_limit", cfg.GPUMemLimit)
	return nil
}

// GetRecommendedGPUMemLimit returns the limit used for "auto": 2 GiB, which
// fits both models with room for the CUDA arena.
func GetRecommendedGPUMemLimit() uint64 {
	return 2 << 30
}

// ValidateGPUConfig checks the CUDA options. CPU-only configs are always valid.
func ValidateGPUConfig(cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}
	if cfg.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", cfg.DeviceID)
	}
	switch cfg.ArenaExtendStrategy {
	case "", "kNextPowerOfTwo", "kSameAsRequested":
	default:
		return fmt.Errorf("invalid arena extend strategy: %s (must be 'kNextPowerOfTwo' or "+
			"'kSameAsRequested')", cfg.ArenaExtendStrategy)
	}
	switch cfg.CUDNNConvAlgoSearch {
	case "", "EXHAUSTIVE", "HEURISTIC", "DEFAULT":
	default:
		return fmt.Errorf("invalid CUDNN conv algo search: %s (must be 'EXHAUSTIVE', 'HEURISTIC', or "+
			"'DEFAULT')", cfg.CUDNNConvAlgoSearch)
	}
	return nil
}
