package detector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/textspot/internal/geometry"
	"github.com/MeKo-Tech/textspot/internal/onnx/mock"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

func bundleFrom(t *testing.T, out mock.EASTOutput) tensors.DetectionBundle {
	t.Helper()
	b, err := tensors.NewDetectionBundle(out.Scores, out.Geometry, out.Angles)
	require.NoError(t, err)
	return b
}

func TestDecode_SingleCell(t *testing.T) {
	out := mock.NewEASTOutput(4, 4)
	out.SetCell(1, 2, 0.9, [4]float32{2, 3, 2, 3}, 0)

	cands, err := Decode(bundleFrom(t, out), 4, 0.5)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, geometry.Box{MinX: 5, MinY: 2, MaxX: 11, MaxY: 6}, c.Box)
	assert.InDelta(t, 0.9, c.Score, 1e-6)
	assert.Equal(t, 0.0, c.Angle)

	for _, th := range []float64{0, 0.3, 0.8, 1} {
		s, err := SuppressCandidates(cands, NMSOptions{Threshold: th})
		require.NoError(t, err)
		require.Len(t, s, 1)
		assert.Equal(t, c.Box, s[0].Box)
		assert.Equal(t, c.Score, s[0].Score)
	}
}

func TestDecode_ThresholdBoundary(t *testing.T) {
	out := mock.NewEASTOutput(2, 2)
	out.SetCell(0, 0, 0.5, [4]float32{1, 1, 1, 1}, 0)
	out.SetCell(1, 1, math.Nextafter32(0.5, 0), [4]float32{1, 1, 1, 1}, 0)

	cands, err := Decode(bundleFrom(t, out), 4, 0.5)
	require.NoError(t, err)
	require.Len(t, cands, 1, "score == threshold is accepted, one ulp below is not")
	assert.Equal(t, 0.5, cands[0].Score)
}

func TestDecode_Empty(t *testing.T) {
	out := mock.NewEASTOutput(8, 8)
	cands, err := Decode(bundleFrom(t, out), 4, 0.5)
	require.NoError(t, err)
	assert.NotNil(t, cands)
	assert.Empty(t, cands)
}

func TestDecode_RotatedCell(t *testing.T) {
	out := mock.NewEASTOutput(4, 4)
	angle := float32(math.Pi / 2)
	out.SetCell(2, 1, 0.7, [4]float32{1, 2, 3, 4}, angle)

	cands, err := Decode(bundleFrom(t, out), 4, 0.5)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	// cos=0, sin=1: endX = 4 + 3, endY = 8 - 2; w = 6, h = 4
	box := cands[0].Box
	assert.InDelta(t, 1.0, box.MinX, 1e-5)
	assert.InDelta(t, 2.0, box.MinY, 1e-5)
	assert.InDelta(t, 7.0, box.MaxX, 1e-5)
	assert.InDelta(t, 6.0, box.MaxY, 1e-5)
	assert.InDelta(t, math.Pi/2, cands[0].Angle, 1e-6)
}

func TestDecode_RowMajorOrder(t *testing.T) {
	out := mock.NewEASTOutput(3, 3)
	out.SetCell(2, 0, 0.6, [4]float32{1, 1, 1, 1}, 0)
	out.SetCell(0, 2, 0.9, [4]float32{1, 1, 1, 1}, 0)
	out.SetCell(0, 1, 0.8, [4]float32{1, 1, 1, 1}, 0)

	cands, err := Decode(bundleFrom(t, out), 4, 0.5)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.InDelta(t, 0.8, cands[0].Score, 1e-6)
	assert.InDelta(t, 0.9, cands[1].Score, 1e-6)
	assert.InDelta(t, 0.6, cands[2].Score, 1e-6)
}

func TestDecode_StrideValidation(t *testing.T) {
	b := bundleFrom(t, mock.NewEASTOutput(64, 64))

	_, err := Decode(b, 0, 0.5)
	assert.True(t, errors.Is(err, ErrInvalidStride))

	_, err = DecodeWithOptions(b, DecodeOptions{Stride: 4, ScoreThreshold: 0.5, InputWidth: 256, InputHeight: 256})
	assert.NoError(t, err)

	_, err = DecodeWithOptions(b, DecodeOptions{Stride: 4, ScoreThreshold: 0.5, InputWidth: 320, InputHeight: 256})
	assert.ErrorIs(t, err, ErrInvalidStride)

	_, err = DecodeWithOptions(b, DecodeOptions{Stride: 4, ScoreThreshold: 0.5, InputWidth: 256, InputHeight: 128})
	assert.ErrorIs(t, err, ErrInvalidStride)
}

func TestDecode_MalformedBundle(t *testing.T) {
	b := bundleFrom(t, mock.NewEASTOutput(4, 4))
	b.Angles = tensors.Grid{H: 3, W: 4, Data: make([]float32, 12)}

	cands, err := Decode(b, 4, 0.5)
	var se *tensors.ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "angles", se.Tensor)
	assert.Nil(t, cands)
}
