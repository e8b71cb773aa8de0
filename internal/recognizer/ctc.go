package recognizer

import (
	"fmt"

	"github.com/MeKo-Tech/textspot/internal/tensors"
	"github.com/chewxy/math32"
)

// Decoded is the result of greedy CTC decoding of one sequence.
type Decoded struct {
	Text       string    `json:"text"`
	Indices    []int     `json:"indices"`    // kept class indices, blanks and repeats removed
	Confidence float64   `json:"confidence"` // mean probability of the kept symbols
	Steps      []int     `json:"-"`          // raw argmax per time step
	Probs      []float64 `json:"-"`
}

// argmax returns the index of the largest value. Ties keep the lowest index.
func argmax(v []float32) (int, float32) {
	if len(v) == 0 {
		return -1, 0
	}
	idx := 0
	maxVal := v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > maxVal {
			maxVal = v[i]
			idx = i
		}
	}
	return idx, maxVal
}

// probOf returns the probability of v[idx]. Rows that already sum to one
// within [0,1] are taken as probabilities; others go through a softmax.
func probOf(v []float32, idx int) float64 {
	if len(v) == 0 || idx < 0 || idx >= len(v) {
		return 0
	}
	var sum float32
	minV, maxV := v[0], v[0]
	for _, x := range v {
		sum += x
		minV = math32.Min(minV, x)
		maxV = math32.Max(maxV, x)
	}
	if sum > 0.99 && sum < 1.01 && minV >= 0 && maxV <= 1 {
		return float64(v[idx])
	}
	var denom float32
	for _, x := range v {
		denom += math32.Exp(x - maxV)
	}
	if denom == 0 || math32.IsNaN(denom) {
		return 0
	}
	return float64(math32.Exp(v[idx]-maxV) / denom)
}

// Collapse walks raw per-step indices and keeps an index only when it is not
// blank and differs from the previous step's raw index.
func Collapse(steps []int, probs []float64, blank int) ([]int, []float64) {
	outIdx := make([]int, 0, len(steps))
	outProb := make([]float64, 0, len(steps))
	prev := -1
	for i, idx := range steps {
		if idx != blank && idx != prev {
			outIdx = append(outIdx, idx)
			if i < len(probs) {
				outProb = append(outProb, probs[i])
			} else {
				outProb = append(outProb, 0)
			}
		}
		prev = idx
	}
	return outIdx, outProb
}

// SequenceConfidence is the mean of the kept symbol probabilities.
func SequenceConfidence(probs []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	var s float64
	for _, p := range probs {
		s += p
	}
	return s / float64(len(probs))
}

// DecodeGreedy decodes a T×C sequence with best-path CTC. A sequence with no
// time steps decodes to the empty string.
func DecodeGreedy(seq tensors.Sequence, a Alphabet) (Decoded, error) {
	if seq.T == 0 {
		return Decoded{Indices: []int{}}, nil
	}
	if seq.C != a.Size() {
		return Decoded{}, &tensors.ShapeError{
			Tensor: "sequence",
			Want:   fmt.Sprintf("[T,%d]", a.Size()),
			Got:    []int64{int64(seq.T), int64(seq.C)},
		}
	}
	if len(seq.Data) != seq.T*seq.C {
		return Decoded{}, &tensors.ShapeError{
			Tensor: "sequence",
			Want:   fmt.Sprintf("%d values", seq.T*seq.C),
			Got:    []int64{int64(len(seq.Data))},
		}
	}

	steps := make([]int, seq.T)
	probs := make([]float64, seq.T)
	for t := range seq.T {
		row := seq.Row(t)
		idx, _ := argmax(row)
		steps[t] = idx
		probs[t] = probOf(row, idx)
	}
	kept, keptProbs := Collapse(steps, probs, a.Blank)

	text := make([]byte, 0, len(kept))
	for _, idx := range kept {
		text = append(text, a.Symbol(idx)...)
	}
	return Decoded{
		Text:       string(text),
		Indices:    kept,
		Confidence: SequenceConfidence(keptProbs),
		Steps:      steps,
		Probs:      probs,
	}, nil
}

// DecodeTensor reshapes a raw recognition output and decodes it.
func DecodeTensor(t tensors.Tensor, a Alphabet, classesFirst bool) (Decoded, error) {
	seq, err := tensors.NewSequence(t, classesFirst)
	if err != nil {
		return Decoded{}, err
	}
	return DecodeGreedy(seq, a)
}
