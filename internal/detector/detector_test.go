package detector

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/textspot/internal/onnx/mock"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

type fakeRunner struct {
	outputs map[string]tensors.Tensor
	err     error
	inputs  []tensors.Tensor
	closed  bool
}

func (f *fakeRunner) Run(in tensors.Tensor) (map[string]tensors.Tensor, error) {
	f.inputs = append(f.inputs, tensors.Tensor{Data: append([]float32(nil), in.Data...), Shape: in.Shape})
	return f.outputs, f.err
}

func (f *fakeRunner) Close() error {
	f.closed = true
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ModelPath = "unused.onnx"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 256, cfg.InputWidth)
	assert.Equal(t, 4, cfg.Stride)
	assert.InDelta(t, 0.5, cfg.ScoreThreshold, 1e-9)
	assert.InDelta(t, 0.3, cfg.NMSThreshold, 1e-9)
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero input":       func(c *Config) { c.InputWidth = 0 },
		"stride mismatch":  func(c *Config) { c.Stride = 3 },
		"score threshold":  func(c *Config) { c.ScoreThreshold = 1.5 },
		"nms threshold":    func(c *Config) { c.NMSThreshold = -1 },
		"missing layer":    func(c *Config) { c.Layers.Angles = "" },
		"negative threads": func(c *Config) { c.NumThreads = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDetect_WithFakeRunner(t *testing.T) {
	cfg := testConfig()
	out := mock.NewEASTOutput(64, 64)
	out.FillBox(40, 40, 120, 72, cfg.Stride, 0.95)
	out.FillBox(160, 200, 220, 230, cfg.Stride, 0.8)

	runner := &fakeRunner{outputs: out.Dump(cfg.Layers).Tensors}
	det, err := NewDetectorWithRunner(cfg, runner)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 512, 512))
	res, err := det.Detect(img)
	require.NoError(t, err)

	require.Len(t, runner.inputs, 1)
	assert.Equal(t, []int64{1, 3, 256, 256}, runner.inputs[0].Shape)

	require.Len(t, res.Detections, 2)
	assert.Greater(t, res.Candidates, 2)
	assert.Equal(t, 256, res.InputWidth)
	assert.Equal(t, 512, res.OriginalWidth)
	assert.InDelta(t, 80.0, res.Detections[0].Rect.Center.X, 1e-4)
	assert.InDelta(t, 56.0, res.Detections[0].Rect.Center.Y, 1e-4)
	assert.NoError(t, ValidateDetections(res.Detections, res.InputWidth, res.InputHeight))

	require.NoError(t, det.Close())
	assert.True(t, runner.closed)
	_, err = det.Detect(img)
	assert.Error(t, err)
}

func TestDetect_Preprocess(t *testing.T) {
	cfg := testConfig()
	cfg.Mean = [3]float32{}
	runner := &fakeRunner{outputs: mock.NewEASTOutput(64, 64).Dump(cfg.Layers).Tensors}
	det, err := NewDetectorWithRunner(cfg, runner)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := range 256 {
		for x := range 256 {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 10, A: 255})
		}
	}
	_, err = det.Detect(img)
	require.NoError(t, err)

	in := runner.inputs[0].Data
	plane := 256 * 256
	assert.Equal(t, float32(10), in[0], "channel 0 is blue")
	assert.Equal(t, float32(100), in[plane])
	assert.Equal(t, float32(200), in[2*plane])
}

func TestDetect_RunnerError(t *testing.T) {
	det, err := NewDetectorWithRunner(testConfig(), &fakeRunner{err: errors.New("boom")})
	require.NoError(t, err)
	_, err = det.Detect(image.NewRGBA(image.Rect(0, 0, 10, 10)))
	assert.ErrorContains(t, err, "boom")
}

func TestDetect_MissingOutput(t *testing.T) {
	det, err := NewDetectorWithRunner(testConfig(), &fakeRunner{outputs: map[string]tensors.Tensor{}})
	require.NoError(t, err)
	_, err = det.Detect(image.NewRGBA(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, err, tensors.ErrMissingTensor)
}

func TestDetectBundle(t *testing.T) {
	cfg := testConfig()
	out := mock.NewEASTOutput(64, 64)
	out.SetCell(1, 2, 0.9, [4]float32{2, 3, 2, 3}, 0)
	b, err := tensors.NewDetectionBundle(out.Scores, out.Geometry, out.Angles)
	require.NoError(t, err)

	res, err := DetectBundle(b, cfg)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, 1, res.Candidates)

	data, err := res.ToJSON()
	require.NoError(t, err)
	back, err := ResultFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, res.Detections[0].Rect, back.Detections[0].Rect)
}

func TestNewDetector_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/east.onnx"
	_, err := NewDetector(cfg)
	assert.Error(t, err)
}

func TestNewDetectorWithRunner_Nil(t *testing.T) {
	_, err := NewDetectorWithRunner(testConfig(), nil)
	assert.Error(t, err)
}
