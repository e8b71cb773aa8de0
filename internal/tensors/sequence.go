package tensors

// Sequence is a T×C grid of per-time-step class scores.
type Sequence struct {
	T, C int
	Data []float32
}

// Row returns the class scores for time step t.
func (s Sequence) Row(t int) []float32 { return s.Data[t*s.C : (t+1)*s.C] }

// NewSequence views a recognition output as T×C. Accepted shapes are [T,C],
// [1,T,C] and [T,1,C]. When classesFirst is set the tensor is [C,T] or
// [1,C,T] and is transposed into a new buffer.
func NewSequence(t Tensor, classesFirst bool) (Sequence, error) {
	if err := t.Validate(); err != nil {
		return Sequence{}, &ShapeError{Tensor: "sequence", Got: append([]int64(nil), t.Shape...), Reason: err.Error()}
	}
	var a, b int
	switch s := t.Shape; {
	case len(s) == 2:
		a, b = int(s[0]), int(s[1])
	case len(s) == 3 && s[0] == 1:
		a, b = int(s[1]), int(s[2])
	case len(s) == 3 && s[1] == 1 && !classesFirst:
		a, b = int(s[0]), int(s[2])
	default:
		return Sequence{}, shapeErr("sequence", "[T,C], [1,T,C] or [T,1,C]", t.Shape)
	}
	if !classesFirst {
		return Sequence{T: a, C: b, Data: t.Data}, nil
	}

	c, steps := a, b
	out := make([]float32, len(t.Data))
	for ci := range c {
		for ti := range steps {
			out[ti*c+ci] = t.Data[ci*steps+ti]
		}
	}
	return Sequence{T: steps, C: c, Data: out}, nil
}

// SequenceFromRows builds a sequence from per-step rows of equal length.
func SequenceFromRows(rows [][]float32) (Sequence, error) {
	if len(rows) == 0 {
		return Sequence{}, nil
	}
	c := len(rows[0])
	data := make([]float32, 0, len(rows)*c)
	for _, r := range rows {
		if len(r) != c {
			return Sequence{}, shapeErr("sequence", "rows of equal length", []int64{int64(len(rows)), int64(len(r))})
		}
		data = append(data, r...)
	}
	return Sequence{T: len(rows), C: c, Data: data}, nil
}
