package detector

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/MeKo-Tech/textspot/internal/geometry"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// DefaultStride maps the 64×64 output grid of the 256×256 EAST network back to input pixels.
const DefaultStride = 4

// ErrInvalidStride is returned when the stride is not positive or does not
// map the output grid onto the declared input size.
var ErrInvalidStride = errors.New("invalid stride")

// Candidate is one grid cell that passed the score threshold.
type Candidate struct {
	Box   geometry.Box // unrotated envelope in input pixels
	Angle float64      // raw network angle, radians
	Score float64
}

// DecodeOptions controls grid decoding.
type DecodeOptions struct {
	Stride         int
	ScoreThreshold float32
	// InputWidth and InputHeight, when set, must equal the grid size times Stride.
	InputWidth  int
	InputHeight int
}

// Decode turns a detection bundle into candidates for every cell with
// score >= threshold, in row-major order.
func Decode(b tensors.DetectionBundle, stride int, threshold float32) ([]Candidate, error) {
	return DecodeWithOptions(b, DecodeOptions{Stride: stride, ScoreThreshold: threshold})
}

// DecodeWithOptions is Decode with input-size validation.
func DecodeWithOptions(b tensors.DetectionBundle, opts DecodeOptions) ([]Candidate, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := checkStride(b, opts); err != nil {
		return nil, err
	}

	top := b.Geometry.Channel(tensors.DistTop)
	right := b.Geometry.Channel(tensors.DistRight)
	bottom := b.Geometry.Channel(tensors.DistBottom)
	left := b.Geometry.Channel(tensors.DistLeft)
	stride := float32(opts.Stride)

	out := make([]Candidate, 0)
	for row := range b.Height() {
		scores := b.Scores.Row(row)
		for col, score := range scores {
			if !(score >= opts.ScoreThreshold) {
				continue
			}
			offX, offY := float32(col)*stride, float32(row)*stride

			angle := b.Angles.At(row, col)
			sin, cos := math32.Sincos(angle)

			t, r := top.At(row, col), right.At(row, col)
			bt, l := bottom.At(row, col), left.At(row, col)
			h := t + bt
			w := r + l

			endX := offX + cos*r + sin*bt
			endY := offY - sin*r + cos*bt

			out = append(out, Candidate{
				Box: geometry.Box{
					MinX: float64(endX - w),
					MinY: float64(endY - h),
					MaxX: float64(endX),
					MaxY: float64(endY),
				},
				Angle: float64(angle),
				Score: float64(score),
			})
		}
	}
	return out, nil
}

func checkStride(b tensors.DetectionBundle, opts DecodeOptions) error {
	if opts.Stride <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStride, opts.Stride)
	}
	if opts.InputWidth > 0 && b.Width()*opts.Stride != opts.InputWidth {
		return fmt.Errorf("%w: grid width %d × stride %d != input width %d",
			ErrInvalidStride, b.Width(), opts.Stride, opts.InputWidth)
	}
	if opts.InputHeight > 0 && b.Height()*opts.Stride != opts.InputHeight {
		return fmt.Errorf("%w: grid height %d × stride %d != input height %d",
			ErrInvalidStride, b.Height(), opts.Stride, opts.InputHeight)
	}
	return nil
}
