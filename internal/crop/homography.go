package crop

import (
	"math"

	"github.com/MeKo-Tech/textspot/internal/geometry"
)

// computeHomography solves for the 3x3 matrix H (h22 = 1) mapping p[i] to q[i].
func computeHomography(p, q [4]geometry.Point) ([9]float64, bool) {
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		X, Y := p[i].X, p[i].Y
		x, y := q[i].X, q[i].Y
		r := 2 * i
		a[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
		b[r] = x
		a[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
		b[r+1] = y
	}
	h, ok := solve8(a, b)
	if !ok {
		return [9]float64{}, false
	}
	return [9]float64{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, true
}

// solve8 runs Gauss-Jordan elimination with partial pivoting.
func solve8(m [8][8]float64, v [8]float64) ([8]float64, bool) {
	for col := range 8 {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return [8]float64{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		v[col], v[pivot] = v[pivot], v[col]

		div := m[col][col]
		for c := col; c < 8; c++ {
			m[col][c] /= div
		}
		v[col] /= div

		for r := range 8 {
			if r == col || m[r][col] == 0 {
				continue
			}
			f := m[r][col]
			for c := col; c < 8; c++ {
				m[r][c] -= f * m[col][c]
			}
			v[r] -= f * v[col]
		}
	}
	return v, true
}

func applyHomography(h [9]float64, x, y float64) (float64, float64, bool) {
	den := h[6]*x + h[7]*y + h[8]
	if den == 0 {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / den, (h[3]*x + h[4]*y + h[5]) / den, true
}
