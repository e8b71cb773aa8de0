package tensors

import "fmt"

// Grid is a single H×W plane.
type Grid struct {
	H, W int
	Data []float32
}

// At returns the value at (row, col).
func (g Grid) At(row, col int) float32 { return g.Data[row*g.W+col] }

// Row returns row r as a slice into Data.
func (g Grid) Row(r int) []float32 { return g.Data[r*g.W : (r+1)*g.W] }

func (g Grid) valid() bool {
	n, ok := product(g.H, g.W)
	return ok && len(g.Data) == n
}

// Volume is a C×H×W stack of planes.
type Volume struct {
	C, H, W int
	Data    []float32
}

// Channel returns plane c as a Grid sharing Data.
func (v Volume) Channel(c int) Grid {
	n := v.H * v.W
	return Grid{H: v.H, W: v.W, Data: v.Data[c*n : (c+1)*n]}
}

func (v Volume) valid() bool {
	n, ok := product(v.C, v.H, v.W)
	return ok && len(v.Data) == n
}

// trimLeadingOnes drops leading unit dimensions until the shape has rank keep.
func trimLeadingOnes(shape []int64, keep int) []int64 {
	for len(shape) > keep && shape[0] == 1 {
		shape = shape[1:]
	}
	return shape
}

// AsGrid views t as an H×W plane. Shapes [H,W], [1,H,W] and [1,1,H,W] are accepted.
func AsGrid(t Tensor, name string) (Grid, error) {
	if err := t.Validate(); err != nil {
		return Grid{}, &ShapeError{Tensor: name, Got: append([]int64(nil), t.Shape...), Reason: err.Error()}
	}
	s := trimLeadingOnes(t.Shape, 2)
	if len(s) != 2 {
		return Grid{}, shapeErr(name, "[1,1,H,W] or [H,W]", t.Shape)
	}
	return Grid{H: int(s[0]), W: int(s[1]), Data: t.Data}, nil
}

// AsVolume views t as a channels×H×W stack. Shapes [C,H,W] and [1,C,H,W] are accepted.
func AsVolume(t Tensor, channels int, name string) (Volume, error) {
	if err := t.Validate(); err != nil {
		return Volume{}, &ShapeError{Tensor: name, Got: append([]int64(nil), t.Shape...), Reason: err.Error()}
	}
	s := trimLeadingOnes(t.Shape, 3)
	if len(s) != 3 || int(s[0]) != channels {
		return Volume{}, shapeErr(name, fmt.Sprintf("[1,%d,H,W]", channels), t.Shape)
	}
	return Volume{C: channels, H: int(s[1]), W: int(s[2]), Data: t.Data}, nil
}
