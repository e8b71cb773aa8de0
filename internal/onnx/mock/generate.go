// Package mock builds synthetic network outputs for tests and demos.
package mock

import (
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// EASTOutput is a synthetic EAST detection output with NCHW shapes
// [1,1,H,W] scores, [1,4,H,W] geometry and [1,1,H,W] angles.
type EASTOutput struct {
	Scores   tensors.Tensor
	Geometry tensors.Tensor
	Angles   tensors.Tensor
	Height   int
	Width    int
}

// NewEASTOutput creates an all-zero output for an h×w grid.
func NewEASTOutput(h, w int) EASTOutput {
	if h < 0 || w < 0 {
		h, w = 0, 0
	}
	plane := h * w
	return EASTOutput{
		Scores:   tensors.Tensor{Data: make([]float32, plane), Shape: []int64{1, 1, int64(h), int64(w)}},
		Geometry: tensors.Tensor{Data: make([]float32, 4*plane), Shape: []int64{1, 4, int64(h), int64(w)}},
		Angles:   tensors.Tensor{Data: make([]float32, plane), Shape: []int64{1, 1, int64(h), int64(w)}},
		Height:   h,
		Width:    w,
	}
}

// SetCell writes one cell. dist holds the top, right, bottom and left distances.
func (o EASTOutput) SetCell(row, col int, score float32, dist [4]float32, angle float32) {
	if row < 0 || col < 0 || row >= o.Height || col >= o.Width {
		return
	}
	plane := o.Height * o.Width
	idx := row*o.Width + col
	o.Scores.Data[idx] = clamp01(score)
	o.Angles.Data[idx] = angle
	for c, d := range dist {
		o.Geometry.Data[c*plane+idx] = d
	}
}

// FillBox marks every cell whose reference point (col*stride, row*stride)
// lies inside the axis-aligned pixel box [x0,x1)×[y0,y1) with the given
// score, and sets distances so each cell decodes to that same box.
func (o EASTOutput) FillBox(x0, y0, x1, y1 float32, stride int, score float32) {
	s := float32(stride)
	for row := range o.Height {
		for col := range o.Width {
			px, py := float32(col)*s, float32(row)*s
			if px < x0 || px >= x1 || py < y0 || py >= y1 {
				continue
			}
			o.SetCell(row, col, score, [4]float32{py - y0, x1 - px, y1 - py, px - x0}, 0)
		}
	}
}

// Dump packages the output with the given layer names.
func (o EASTOutput) Dump(names tensors.LayerNames) tensors.Dump {
	return tensors.Dump{Tensors: map[string]tensors.Tensor{
		names.Scores:   o.Scores,
		names.Geometry: o.Geometry,
		names.Angles:   o.Angles,
	}}
}

// NewGreedyPathLogits constructs a recognition output for a single sequence
// with time steps T and classes C such that greedy argmax yields the given
// indices. If classesFirst is true, shape is [1, C, T], otherwise [T, 1, C].
func NewGreedyPathLogits(indices []int, classes int, classesFirst bool, high, low float32) tensors.Tensor {
	if classes <= 0 {
		return tensors.Tensor{Data: nil, Shape: []int64{0, 1, 0}}
	}
	t := len(indices)
	data := make([]float32, t*classes)
	for ti, c := range indices {
		for cls := range classes {
			v := low
			if cls == c {
				v = high
			}
			if classesFirst {
				data[cls*t+ti] = v
			} else {
				data[ti*classes+cls] = v
			}
		}
	}
	if classesFirst {
		return tensors.Tensor{Data: data, Shape: []int64{1, int64(classes), int64(t)}}
	}
	return tensors.Tensor{Data: data, Shape: []int64{int64(t), 1, int64(classes)}}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
