// Package tensors provides typed views over raw network outputs. Every view is
// validated once at construction so downstream decoders can index without
// further shape checks.
package tensors

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"gorgonia.org/tensor"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Data  []float32 `json:"data"`
	Shape []int64   `json:"shape"`
}

// New builds a tensor and checks that data matches the shape.
func New(data []float32, shape ...int64) (Tensor, error) {
	t := Tensor{Data: data, Shape: shape}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
// data must be length C*H*W in NCHW order.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	return New(data, 1, int64(c), int64(h), int64(w))
}

// MaxDim is the largest dimension a tensor may declare.
const MaxDim = math.MaxInt32

// NumElements returns the product of the shape dimensions. It fails on a
// negative dimension, a dimension above MaxDim, or a product that does not
// fit in an int.
func NumElements(shape []int64) (int, error) {
	dims := make([]int, len(shape))
	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("dimension %d must be >= 0, got %d", i, d)
		}
		if d > MaxDim {
			return 0, fmt.Errorf("dimension %d exceeds %d, got %d", i, MaxDim, d)
		}
		dims[i] = int(d)
	}
	n, ok := product(dims...)
	if !ok {
		return 0, fmt.Errorf("shape %v overflows the element count", shape)
	}
	return n, nil
}

// product multiplies dims, reporting false on a negative value or when any
// partial product of the non-zero dims overflows.
func product(dims ...int) (int, bool) {
	n, nz := 1, 1
	for _, d := range dims {
		if d < 0 {
			return 0, false
		}
		if d == 0 {
			n = 0
			continue
		}
		hi, lo := bits.Mul64(uint64(nz), uint64(d))
		if hi != 0 || lo > math.MaxInt {
			return 0, false
		}
		nz = int(lo)
		n *= d
	}
	return n, true
}

// Validate checks that dimensions are non-negative and data length matches.
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return errors.New("tensor has no shape")
	}
	want, err := NumElements(t.Shape)
	if err != nil {
		return err
	}
	if len(t.Data) != want {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), want, t.Shape)
	}
	return nil
}

// Dense wraps the tensor data in a gorgonia dense tensor without copying.
func (t Tensor) Dense() *tensor.Dense {
	shape := make([]int, len(t.Shape))
	for i, d := range t.Shape {
		shape[i] = int(d)
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(t.Data))
}

// FromDense copies a gorgonia dense tensor of float32 or float64 values.
func FromDense(d *tensor.Dense) (Tensor, error) {
	if d == nil {
		return Tensor{}, errors.New("nil dense tensor")
	}
	if d.IsMaterializable() {
		// views share the parent's backing array
		if m, ok := d.Materialize().(*tensor.Dense); ok {
			d = m
		}
	}

	shape := make([]int64, len(d.Shape()))
	for i, v := range d.Shape() {
		shape[i] = int64(v)
	}

	var data []float32
	switch raw := d.Data().(type) {
	case []float32:
		data = append([]float32(nil), raw...)
	case []float64:
		data = make([]float32, len(raw))
		for i, v := range raw {
			data[i] = float32(v)
		}
	case float32:
		data = []float32{raw}
	case float64:
		data = []float32{float32(raw)}
	default:
		return Tensor{}, fmt.Errorf("unsupported dense dtype %v", d.Dtype())
	}
	if len(shape) == 0 {
		shape = []int64{int64(len(data))}
	}
	return New(data, shape...)
}

// Stats computes min, max and mean for debug output.
func Stats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal := data[0], data[0]
	var sum float64
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
		sum += float64(v)
	}
	return minVal, maxVal, float32(sum / float64(len(data)))
}
