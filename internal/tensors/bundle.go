package tensors

import "fmt"

// GeometryChannels is the number of distance planes in an EAST geometry map:
// top, right, bottom and left distances from the cell reference point.
const GeometryChannels = 4

// Geometry channel indices.
const (
	DistTop = iota
	DistRight
	DistBottom
	DistLeft
)

// DetectionBundle holds one detection pass: the score map, the geometry
// distances and the angle map, all sharing the same H×W grid.
type DetectionBundle struct {
	Scores   Grid
	Geometry Volume
	Angles   Grid
}

// NewDetectionBundle builds a bundle from raw tensors and validates it.
func NewDetectionBundle(scores, geometry, angles Tensor) (DetectionBundle, error) {
	s, err := AsGrid(scores, "scores")
	if err != nil {
		return DetectionBundle{}, err
	}
	g, err := AsVolume(geometry, GeometryChannels, "geometry")
	if err != nil {
		return DetectionBundle{}, err
	}
	a, err := AsGrid(angles, "angles")
	if err != nil {
		return DetectionBundle{}, err
	}
	b := DetectionBundle{Scores: s, Geometry: g, Angles: a}
	if err := b.Validate(); err != nil {
		return DetectionBundle{}, err
	}
	return b, nil
}

// Height returns the grid height.
func (b DetectionBundle) Height() int { return b.Scores.H }

// Width returns the grid width.
func (b DetectionBundle) Width() int { return b.Scores.W }

// Validate checks channel count and that all three maps share one grid.
func (b DetectionBundle) Validate() error {
	h, w := int64(b.Scores.H), int64(b.Scores.W)
	if !b.Scores.valid() {
		return shapeErr("scores", "H×W with matching data", []int64{h, w})
	}
	if !b.Angles.valid() || b.Angles.H != b.Scores.H || b.Angles.W != b.Scores.W {
		return shapeErr("angles", fmt.Sprintf("[%d,%d]", h, w), []int64{int64(b.Angles.H), int64(b.Angles.W)})
	}
	g := b.Geometry
	if !g.valid() || g.C != GeometryChannels || g.H != b.Scores.H || g.W != b.Scores.W {
		return shapeErr("geometry", fmt.Sprintf("[%d,%d,%d]", GeometryChannels, h, w),
			[]int64{int64(g.C), int64(g.H), int64(g.W)})
	}
	return nil
}
