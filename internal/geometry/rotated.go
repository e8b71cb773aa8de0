package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidScale is returned when a scale factor is not a positive finite number.
var ErrInvalidScale = errors.New("scale factor must be positive and finite")

// RotatedRect is a rectangle given by its centre, half extents and a rotation
// angle. Angle is in radians and applied with the standard rotation matrix in
// image coordinates, where y points down. A positive angle therefore turns the
// rectangle clockwise as displayed on screen. CropSpec.AngleDegrees carries the
// same sign; undoing it with a clockwise image rotation means rotating by the
// negated value, once.
type RotatedRect struct {
	Center     Point   `json:"center"`
	HalfWidth  float64 `json:"half_width"`
	HalfHeight float64 `json:"half_height"`
	Angle      float64 `json:"angle"`
}

// NewRotatedRect builds a rectangle from its unrotated envelope and the raw
// angle produced by the detection network. The raw angle is negated here and
// nowhere else, so every consumer of Angle sees the same convention.
func NewRotatedRect(box Box, rawAngle float64) RotatedRect {
	return RotatedRect{
		Center:     box.Center(),
		HalfWidth:  math.Abs(box.MaxX-box.MinX) / 2,
		HalfHeight: math.Abs(box.MaxY-box.MinY) / 2,
		Angle:      0 - rawAngle, // +0 rather than -0 for unrotated boxes
	}
}

// Width returns the full rectangle width.
func (r RotatedRect) Width() float64 { return 2 * r.HalfWidth }

// Height returns the full rectangle height.
func (r RotatedRect) Height() float64 { return 2 * r.HalfHeight }

// Unrotated returns the four corners before rotation in A, B, C, D order:
//
//	D ---------- C
//	|            |
//	A ---------- B
//
// A and B sit at cy+hh, which is the lower edge in image coordinates.
func (r RotatedRect) Unrotated() [4]Point {
	cx, cy := r.Center.X, r.Center.Y
	return [4]Point{
		{X: cx - r.HalfWidth, Y: cy + r.HalfHeight},
		{X: cx + r.HalfWidth, Y: cy + r.HalfHeight},
		{X: cx + r.HalfWidth, Y: cy - r.HalfHeight},
		{X: cx - r.HalfWidth, Y: cy - r.HalfHeight},
	}
}

// Corners returns the rotated corners in the same order as Unrotated. Each
// corner is mapped through the affine rotation about the centre
//
//	| cos  -sin  cx(1-cos) + cy*sin |
//	| sin   cos  cy(1-cos) - cx*sin |
func (r RotatedRect) Corners() [4]Point {
	sin, cos := math.Sincos(r.Angle)
	cx, cy := r.Center.X, r.Center.Y
	tx := cx*(1-cos) + cy*sin
	ty := cy*(1-cos) - cx*sin

	var out [4]Point
	for i, p := range r.Unrotated() {
		out[i] = Point{
			X: cos*p.X - sin*p.Y + tx,
			Y: sin*p.X + cos*p.Y + ty,
		}
	}
	return out
}

// Bounds returns the axis-aligned envelope of the rotated corners.
func (r RotatedRect) Bounds() Box {
	c := r.Corners()
	return BoundingBox(c[:])
}

// Scale multiplies centre and half extents by f. The angle is unchanged.
func (r RotatedRect) Scale(f float64) (RotatedRect, error) {
	if err := checkScale(f); err != nil {
		return RotatedRect{}, err
	}
	r.Center = Point{X: r.Center.X * f, Y: r.Center.Y * f}
	r.HalfWidth *= f
	r.HalfHeight *= f
	return r, nil
}

// ScaleX multiplies the horizontal centre coordinate and half width by f.
func (r RotatedRect) ScaleX(f float64) (RotatedRect, error) {
	if err := checkScale(f); err != nil {
		return RotatedRect{}, err
	}
	r.Center.X *= f
	r.HalfWidth *= f
	return r, nil
}

// ScaleY multiplies the vertical centre coordinate and half height by f.
func (r RotatedRect) ScaleY(f float64) (RotatedRect, error) {
	if err := checkScale(f); err != nil {
		return RotatedRect{}, err
	}
	r.Center.Y *= f
	r.HalfHeight *= f
	return r, nil
}

// ScaleXY applies ScaleX(fx) followed by ScaleY(fy).
func (r RotatedRect) ScaleXY(fx, fy float64) (RotatedRect, error) {
	out, err := r.ScaleX(fx)
	if err != nil {
		return RotatedRect{}, err
	}
	return out.ScaleY(fy)
}

func checkScale(f float64) error {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidScale, f)
	}
	return nil
}

// CropSpec describes a rotated rectangle for the crop stage. Both angle
// fields hold the same counterclockwise rotation as RotatedRect.Angle.
type CropSpec struct {
	Center       Point   `json:"center"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	AngleRadians float64 `json:"angle_rad"`
	AngleDegrees float64 `json:"angle_deg"`
}

// CropSpec returns the centre/size/angle form of the rectangle.
func (r RotatedRect) CropSpec() CropSpec {
	return CropSpec{
		Center:       r.Center,
		Width:        r.Width(),
		Height:       r.Height(),
		AngleRadians: r.Angle,
		AngleDegrees: r.Angle * 180 / math.Pi,
	}
}

func (r RotatedRect) String() string {
	return fmt.Sprintf("RotatedRect(center=(%.2f, %.2f), width=%.2f, height=%.2f, angle=%.4f)",
		r.Center.X, r.Center.Y, r.Width(), r.Height(), r.Angle)
}
