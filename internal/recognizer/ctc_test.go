package recognizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/textspot/internal/onnx/mock"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

func abAlphabet(t *testing.T) Alphabet {
	t.Helper()
	a, err := NewAlphabet("ab", -1)
	require.NoError(t, err)
	return a
}

func oneHot(t *testing.T, indices []int, classes int) tensors.Sequence {
	t.Helper()
	rows := make([][]float32, len(indices))
	for i, idx := range indices {
		rows[i] = make([]float32, classes)
		rows[i][idx] = 1
	}
	seq, err := tensors.SequenceFromRows(rows)
	require.NoError(t, err)
	return seq
}

func TestCollapse(t *testing.T) {
	// 1,1,0,2,2,2,3,0,3 -> 1,2,3,3
	idx := []int{1, 1, 0, 2, 2, 2, 3, 0, 3}
	pr := []float64{.8, .7, .1, .9, .85, .8, .6, .1, .5}
	outIdx, outPr := Collapse(idx, pr, 0)
	assert.Equal(t, []int{1, 2, 3, 3}, outIdx)
	assert.Equal(t, []float64{.8, .9, .6, .5}, outPr)
}

func TestCollapse_BlankLast(t *testing.T) {
	outIdx, _ := Collapse([]int{0, 0, 36, 0, 5}, nil, 36)
	assert.Equal(t, []int{0, 0, 5}, outIdx)
}

func TestDecodeGreedy_CollapsesBeforeBlankRemoval(t *testing.T) {
	// a a blank b b b a
	seq := oneHot(t, []int{1, 1, 0, 2, 2, 2, 1}, 3)
	dec, err := DecodeGreedy(seq, abAlphabet(t))
	require.NoError(t, err)
	assert.Equal(t, "aba", dec.Text)
	assert.Equal(t, []int{1, 2, 1}, dec.Indices)
	assert.Equal(t, []int{1, 1, 0, 2, 2, 2, 1}, dec.Steps)
	assert.InDelta(t, 1.0, dec.Confidence, 1e-9)
}

func TestDecodeGreedy_BlankSeparatesRepeats(t *testing.T) {
	seq := oneHot(t, []int{1, 0, 1}, 3)
	dec, err := DecodeGreedy(seq, abAlphabet(t))
	require.NoError(t, err)
	assert.Equal(t, "aa", dec.Text)
}

func TestDecodeGreedy_Empty(t *testing.T) {
	dec, err := DecodeGreedy(tensors.Sequence{C: 37}, DefaultAlphabet())
	require.NoError(t, err)
	assert.Empty(t, dec.Text)
	assert.Empty(t, dec.Indices)
	assert.Zero(t, dec.Confidence)

	// zero steps with a mismatched class count is still empty
	dec, err = DecodeGreedy(tensors.Sequence{C: 5}, DefaultAlphabet())
	require.NoError(t, err)
	assert.Empty(t, dec.Text)
}

func TestDecodeGreedy_AllBlank(t *testing.T) {
	seq := oneHot(t, []int{0, 0, 0}, 3)
	dec, err := DecodeGreedy(seq, abAlphabet(t))
	require.NoError(t, err)
	assert.Empty(t, dec.Text)
	assert.Zero(t, dec.Confidence)
}

func TestDecodeGreedy_TieKeepsLowestIndex(t *testing.T) {
	seq, err := tensors.SequenceFromRows([][]float32{{0.1, 0.45, 0.45}})
	require.NoError(t, err)
	dec, err := DecodeGreedy(seq, abAlphabet(t))
	require.NoError(t, err)
	assert.Equal(t, "a", dec.Text)
}

func TestDecodeGreedy_ClassMismatch(t *testing.T) {
	seq := oneHot(t, []int{1}, 4)
	_, err := DecodeGreedy(seq, abAlphabet(t))
	var se *tensors.ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "sequence", se.Tensor)
}

func TestDecodeGreedy_LogitsConfidence(t *testing.T) {
	seq, err := tensors.SequenceFromRows([][]float32{{0, 2, 0}})
	require.NoError(t, err)
	dec, err := DecodeGreedy(seq, abAlphabet(t))
	require.NoError(t, err)
	want := math.Exp(2) / (math.Exp(2) + 2)
	assert.InDelta(t, want, dec.Confidence, 1e-5)
}

func TestDecodeTensor_Layouts(t *testing.T) {
	a := OpenVINOAlphabet()
	// "go" then blank then "go"
	path := []int{16, 16, 24, 36, 16, 24, 24}
	for _, classesFirst := range []bool{false, true} {
		logits := mock.NewGreedyPathLogits(path, a.Size(), classesFirst, 8, -2)
		dec, err := DecodeTensor(logits, a, classesFirst)
		require.NoError(t, err)
		assert.Equal(t, "gogo", dec.Text, "classesFirst=%v", classesFirst)
	}
}

func TestDecodeTensor_DefaultRecognitionShape(t *testing.T) {
	a := DefaultAlphabet()
	path := make([]int, 30)
	path[3], path[4], path[10] = 11, 11, 12 // "ab"
	logits := mock.NewGreedyPathLogits(path, a.Size(), false, 0.9, 0.1/36)
	assert.Equal(t, []int64{30, 1, 37}, logits.Shape)
	dec, err := DecodeTensor(logits, a, false)
	require.NoError(t, err)
	assert.Equal(t, "ab", dec.Text)
	assert.InDelta(t, 0.9, dec.Confidence, 1e-6)
}

func TestSequenceConfidence(t *testing.T) {
	assert.Zero(t, SequenceConfidence(nil))
	assert.InDelta(t, 0.8, SequenceConfidence([]float64{0.9, 0.7}), 1e-9)
}
