package recognizer

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
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

func uniformImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 120, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
	assert.True(t, cfg.Grayscale)

	a, err := cfg.ResolveAlphabet()
	require.NoError(t, err)
	assert.Equal(t, 36, a.Blank)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.AlphabetName = "klingon"
	require.ErrorIs(t, cfg.Validate(), ErrAlphabet)

	cfg = DefaultConfig()
	cfg.NumThreads = -1
	require.Error(t, cfg.Validate())
}

func TestRecognizeImage_FakeRunner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputName = "logits"
	a := OpenVINOAlphabet()
	// "exit" with blanks between repeated steps
	path := []int{14, 14, 36, 33, 18, 18, 29, 36}
	runner := &fakeRunner{outputs: map[string]tensors.Tensor{
		"logits": mock.NewGreedyPathLogits(path, a.Size(), false, 5, -5),
	}}
	r, err := NewRecognizerWithRunner(cfg, runner)
	require.NoError(t, err)

	res, err := r.RecognizeImage(uniformImage(60, 20, color.White))
	require.NoError(t, err)
	assert.Equal(t, "exit", res.Text)
	assert.Equal(t, len(path), res.Steps)
	assert.Greater(t, res.Confidence, 0.99)

	require.Len(t, runner.inputs, 1)
	in := runner.inputs[0]
	assert.Equal(t, []int64{1, 1, 32, 120}, in.Shape)
	assert.InDelta(t, 255, in.Data[0], 1)
}

func TestRecognizeImage_ColourBGR(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grayscale = false
	cfg.Scale = 1.0 / 255
	runner := &fakeRunner{outputs: map[string]tensors.Tensor{
		"out": mock.NewGreedyPathLogits([]int{36}, 37, false, 1, 0),
	}}
	r, err := NewRecognizerWithRunner(cfg, runner)
	require.NoError(t, err)

	_, err = r.RecognizeImage(uniformImage(8, 8, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	in := runner.inputs[0]
	assert.Equal(t, []int64{1, 3, 32, 120}, in.Shape)
	plane := 32 * 120
	assert.InDelta(t, 0, in.Data[0], 1e-3)       // blue
	assert.InDelta(t, 1, in.Data[2*plane], 1e-3) // red
}

func TestRecognizeImage_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputName = "logits"

	runner := &fakeRunner{err: errors.New("boom")}
	r, err := NewRecognizerWithRunner(cfg, runner)
	require.NoError(t, err)
	_, err = r.RecognizeImage(uniformImage(4, 4, color.Black))
	require.ErrorContains(t, err, "boom")

	runner = &fakeRunner{outputs: map[string]tensors.Tensor{}}
	r, err = NewRecognizerWithRunner(cfg, runner)
	require.NoError(t, err)
	_, err = r.RecognizeImage(uniformImage(4, 4, color.Black))
	require.ErrorIs(t, err, tensors.ErrMissingTensor)

	_, err = r.RecognizeImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.Error(t, err)

	require.NoError(t, r.Close())
	assert.True(t, runner.closed)
	_, err = r.RecognizeImage(uniformImage(4, 4, color.Black))
	require.ErrorContains(t, err, "closed")
}

func TestRecognizeSequence_NoRunner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlphabetName = AlphabetDefault
	r, err := NewRecognizerWithRunner(cfg, nil)
	require.NoError(t, err)

	logits := mock.NewGreedyPathLogits([]int{0, 34, 34, 0, 30, 0}, 37, false, 1, 0)
	res, err := r.RecognizeSequence(logits)
	require.NoError(t, err)
	assert.Equal(t, "xt", res.Text)
	assert.Equal(t, "xt", res.Raw)
	assert.NoError(t, r.Close())
}

func TestRecognizeSequence_WrongClasses(t *testing.T) {
	r, err := NewRecognizerWithRunner(DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = r.RecognizeSequence(mock.NewGreedyPathLogits([]int{1, 2}, 10, false, 1, 0))
	var se *tensors.ShapeError
	require.ErrorAs(t, err, &se)
}

func TestNewRecognizer_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	_, err := NewRecognizer(cfg)
	require.Error(t, err)
}

func TestNewRecognizerWithRunner_BadDict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DictPath = filepath.Join(t.TempDir(), "missing.txt")
	_, err := NewRecognizerWithRunner(cfg, nil)
	require.Error(t, err)
}

func TestResizeForRecognition(t *testing.T) {
	out, err := ResizeForRecognition(uniformImage(300, 40, color.Gray{Y: 128}), 120, 32)
	require.NoError(t, err)
	assert.Equal(t, 120, out.Bounds().Dx())
	assert.Equal(t, 32, out.Bounds().Dy())

	_, err = ResizeForRecognition(nil, 120, 32)
	require.Error(t, err)
	_, err = ResizeForRecognition(uniformImage(4, 4, color.White), 0, 32)
	require.Error(t, err)
}
