package geometry

import "math"

// OrderPoints returns the quad as top-left, top-right, bottom-right,
// bottom-left. Top-left has the smallest x+y and bottom-right the largest;
// top-right has the smallest y-x and bottom-left the largest.
func OrderPoints(pts [4]Point) [4]Point {
	tl, br, tr, bl := 0, 0, 0, 0
	for i, p := range pts {
		s, d := p.X+p.Y, p.Y-p.X
		if s < pts[tl].X+pts[tl].Y {
			tl = i
		}
		if s > pts[br].X+pts[br].Y {
			br = i
		}
		if d < pts[tr].Y-pts[tr].X {
			tr = i
		}
		if d > pts[bl].Y-pts[bl].X {
			bl = i
		}
	}
	return [4]Point{pts[tl], pts[tr], pts[br], pts[bl]}
}

// QuadSize returns the output size for rectifying an ordered quad: the
// longer of each pair of opposite edges, truncated to whole pixels.
func QuadSize(q [4]Point) (int, int) {
	tl, tr, br, bl := q[0], q[1], q[2], q[3]
	widthA := dist(br, bl)
	widthB := dist(tr, tl)
	heightA := dist(tr, br)
	heightB := dist(tl, bl)
	return max(int(widthA), int(widthB)), max(int(heightA), int(heightB))
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
