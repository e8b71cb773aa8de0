package detector

import (
	"errors"
	"fmt"
	"math"
	"sort"

	flatbush "github.com/bmharper/flatbush-go"

	"github.com/MeKo-Tech/textspot/internal/geometry"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// ErrInvalidThreshold is returned for a negative or NaN overlap threshold.
var ErrInvalidThreshold = errors.New("invalid overlap threshold")

// NMSOptions configures Suppress.
type NMSOptions struct {
	// Threshold is the overlap above which a lower-scored box is discarded.
	Threshold float64
	// PixelInclusive treats box corners as inclusive pixel indices, adding 1
	// to every width and height before computing areas and intersections.
	PixelInclusive bool
}

func (o NMSOptions) eps() float64 {
	if o.PixelInclusive {
		return 1
	}
	return 0
}

// Survivor is a box that survived suppression.
type Survivor struct {
	Index int          `json:"index"` // position in the input slices
	Box   geometry.Box `json:"box"`
	Score float64      `json:"score"`
	Angle float64      `json:"angle"`
}

// Suppress runs greedy non-max suppression and returns survivors in
// acceptance order, highest score first.
//
// Overlap is intersection / area of the box being tested, not IoU: a small box
// lying inside an accepted one is always removed, while a large box that
// merely contains an accepted one may survive.
//
// Indices are sorted by ascending score with a stable sort and the last one is
// accepted each round, so among equal scores the later input wins. Boxes with
// zero or negative area, non-finite coordinates or a NaN score can neither
// suppress nor survive and are dropped. A nil angles slice yields zero angles.
func Suppress(boxes []geometry.Box, scores, angles []float64, opts NMSOptions) ([]Survivor, error) {
	n := len(boxes)
	if len(scores) != n {
		return nil, &tensors.ShapeError{Tensor: "scores", Want: fmt.Sprintf("[%d]", n), Got: []int64{int64(len(scores))}}
	}
	if angles != nil && len(angles) != n {
		return nil, &tensors.ShapeError{Tensor: "angles", Want: fmt.Sprintf("[%d]", n), Got: []int64{int64(len(angles))}}
	}
	if math.IsNaN(opts.Threshold) || opts.Threshold < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, opts.Threshold)
	}

	eps := opts.eps()
	areas := make([]float64, n)
	order := make([]int, 0, n)
	for i, b := range boxes {
		areas[i] = b.Area(eps)
		if b.Width()+eps <= 0 || b.Height()+eps <= 0 || !b.Finite() || math.IsNaN(scores[i]) {
			continue
		}
		order = append(order, i)
	}

	survivors := make([]Survivor, 0)
	if len(order) == 0 {
		return survivors, nil
	}

	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	// slot k in the index holds boxes[order[k]]
	fb := flatbush.NewFlatbush[float64]()
	fb.Reserve(len(order))
	for _, i := range order {
		b := boxes[i]
		fb.Add(b.MinX-eps, b.MinY-eps, b.MaxX+eps, b.MaxY+eps)
	}
	fb.Finish()

	done := make([]bool, n)
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		if done[i] {
			continue
		}
		done[i] = true

		angle := 0.0
		if angles != nil {
			angle = angles[i]
		}
		survivors = append(survivors, Survivor{Index: i, Box: boxes[i], Score: scores[i], Angle: angle})

		bi := boxes[i]
		for _, slot := range fb.Search(bi.MinX, bi.MinY, bi.MaxX, bi.MaxY) {
			j := order[slot]
			if done[j] {
				continue
			}
			if bi.IntersectionArea(boxes[j], eps)/areas[j] > opts.Threshold {
				done[j] = true
			}
		}
	}
	return survivors, nil
}

// SuppressCandidates runs Suppress over decoded candidates.
func SuppressCandidates(cands []Candidate, opts NMSOptions) ([]Survivor, error) {
	boxes := make([]geometry.Box, len(cands))
	scores := make([]float64, len(cands))
	angles := make([]float64, len(cands))
	for i, c := range cands {
		boxes[i] = c.Box
		scores[i] = c.Score
		angles[i] = c.Angle
	}
	return Suppress(boxes, scores, angles, opts)
}
