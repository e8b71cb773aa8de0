package geometry

import (
	"image"
	"math"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Int returns the point truncated to integer pixel coordinates.
func (p Point) Int() image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64 `json:"x0"`
	MinY float64 `json:"y0"`
	MaxX float64 `json:"x1"`
	MaxY float64 `json:"y1"`
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns (w+eps)*(h+eps). eps is 0 for continuous coordinates and 1
// when corners are inclusive pixel indices.
func (b Box) Area(eps float64) float64 {
	return (b.Width() + eps) * (b.Height() + eps)
}

// IntersectionArea returns the area shared by b and o, or 0 if they do not overlap.
func (b Box) IntersectionArea(o Box, eps float64) float64 {
	w := math.Min(b.MaxX, o.MaxX) - math.Max(b.MinX, o.MinX) + eps
	h := math.Min(b.MaxY, o.MaxY) - math.Max(b.MinY, o.MinY) + eps
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Center returns the box midpoint.
func (b Box) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Finite reports whether every coordinate is a finite number.
func (b Box) Finite() bool {
	for _, v := range [...]float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ToRect converts a Box to an image.Rectangle, clamped to image bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}
