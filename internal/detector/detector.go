package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/nfnt/resize"

	"github.com/MeKo-Tech/textspot/internal/mempool"
	"github.com/MeKo-Tech/textspot/internal/onnx"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// Runner executes a model on one input tensor and returns its outputs by name.
// *onnx.Session satisfies it.
type Runner interface {
	Run(input tensors.Tensor) (map[string]tensors.Tensor, error)
	Close() error
}

// Detector performs EAST text detection.
type Detector struct {
	config Config
	runner Runner
	mu     sync.RWMutex
}

// NewDetector creates a detector backed by an ONNX Runtime session.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"input", fmt.Sprintf("%dx%d", config.InputWidth, config.InputHeight),
		"stride", config.Stride,
		"gpu_enabled", config.GPU.UseGPU)

	sess, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   config.ModelPath,
		NumThreads:  config.NumThreads,
		GPU:         config.GPU,
		OutputNames: []string{config.Layers.Scores, config.Layers.Geometry, config.Layers.Angles},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create detector session: %w", err)
	}
	return NewDetectorWithRunner(config, sess)
}

// NewDetectorWithRunner creates a detector around an existing runner.
func NewDetectorWithRunner(config Config, runner Runner) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	return &Detector{config: config, runner: runner}, nil
}

// Close releases resources used by the detector.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.runner == nil {
		return nil
	}
	err := d.runner.Close()
	d.runner = nil
	return err
}

// GetConfig returns a copy of the detector's configuration.
func (d *Detector) GetConfig() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// Detect runs the network on img and returns suppressed detections in the
// network input coordinate space (InputWidth×InputHeight).
func (d *Detector) Detect(img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	start := time.Now()

	d.mu.RLock()
	runner := d.runner
	cfg := d.config
	d.mu.RUnlock()
	if runner == nil {
		return nil, errors.New("detector is closed")
	}

	input, buf := preprocess(img, cfg)
	defer mempool.PutFloat32(buf)

	outputs, err := runner.Run(input)
	if err != nil {
		return nil, fmt.Errorf("detection inference failed: %w", err)
	}
	bundle, err := tensors.Dump{Tensors: outputs}.Detection(cfg.Layers)
	if err != nil {
		return nil, err
	}

	res, err := DetectBundle(bundle, cfg)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	res.OriginalWidth, res.OriginalHeight = b.Dx(), b.Dy()
	res.ProcessingTime = time.Since(start).Nanoseconds()
	return res, nil
}

// DetectBundle decodes and suppresses a detection bundle without running a model.
func DetectBundle(bundle tensors.DetectionBundle, cfg Config) (*Result, error) {
	start := time.Now()
	cands, err := DecodeWithOptions(bundle, cfg.DecodeOptions())
	if err != nil {
		return nil, err
	}
	survivors, err := SuppressCandidates(cands, cfg.NMSOptions())
	if err != nil {
		return nil, err
	}

	slog.Debug("Detection decoded",
		"grid", fmt.Sprintf("%dx%d", bundle.Width(), bundle.Height()),
		"candidates", len(cands),
		"survivors", len(survivors))

	return &Result{
		Detections:     ToDetections(survivors),
		Candidates:     len(cands),
		GridWidth:      bundle.Width(),
		GridHeight:     bundle.Height(),
		InputWidth:     bundle.Width() * cfg.Stride,
		InputHeight:    bundle.Height() * cfg.Stride,
		ProcessingTime: time.Since(start).Nanoseconds(),
	}, nil
}

// preprocess resizes img to the network input and writes planar BGR (or RGB
// with SwapRB) values in 0..255 minus the channel mean. The returned buffer
// comes from mempool and must be released after inference.
func preprocess(img image.Image, cfg Config) (tensors.Tensor, []float32) {
	w, h := cfg.InputWidth, cfg.InputHeight
	resized := img
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		resized = resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
	}

	plane := w * h
	buf := mempool.GetFloat32(3 * plane)
	b := resized.Bounds()
	for y := range h {
		for x := range w {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			c0, c2 := float32(bl>>8), float32(r>>8)
			if cfg.SwapRB {
				c0, c2 = c2, c0
			}
			idx := y*w + x
			buf[idx] = c0 - cfg.Mean[0]
			buf[plane+idx] = float32(g>>8) - cfg.Mean[1]
			buf[2*plane+idx] = c2 - cfg.Mean[2]
		}
	}
	return tensors.Tensor{Data: buf, Shape: []int64{1, 3, int64(h), int64(w)}}, buf
}

// Warmup runs a number of forward passes with a blank image to reduce first-run latency.
func (d *Detector) Warmup(iterations int) error {
	cfg := d.GetConfig()
	img := image.NewRGBA(image.Rect(0, 0, cfg.InputWidth, cfg.InputHeight))
	for range iterations {
		if _, err := d.Detect(img); err != nil {
			return fmt.Errorf("warmup failed: %w", err)
		}
	}
	return nil
}
