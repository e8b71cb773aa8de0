package crop

import (
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/textspot/internal/geometry"
)

// FourPointTransform rectifies the quadrilateral quad of img into an upright
// image. The points may come in any order; they are sorted into top-left,
// top-right, bottom-right, bottom-left and the output takes the longer of
// each pair of opposite edges as its size.
func FourPointTransform(img image.Image, quad [4]geometry.Point) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	ordered := geometry.OrderPoints(quad)
	w, h := geometry.QuadSize(ordered)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: quad yields %dx%d", ErrEmptyCrop, w, h)
	}
	return warpPerspective(img, ordered, w, h)
}

// Warp rectifies the rotated corners of r.
func Warp(img image.Image, r geometry.RotatedRect) (*image.RGBA, error) {
	return FourPointTransform(img, r.Corners())
}

// warpPerspective maps the dst rectangle (0,0)-(w-1,h-1) onto the ordered
// source quad and samples img bilinearly. Samples outside img are black.
func warpPerspective(img image.Image, quad [4]geometry.Point, w, h int) (*image.RGBA, error) {
	dst := [4]geometry.Point{
		{X: 0, Y: 0},
		{X: float64(w - 1), Y: 0},
		{X: float64(w - 1), Y: float64(h - 1)},
		{X: 0, Y: float64(h - 1)},
	}
	H, ok := computeHomography(dst, quad)
	if !ok {
		return nil, fmt.Errorf("%w: degenerate quad", ErrEmptyCrop)
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := img.Bounds()
	for y := range h {
		for x := range w {
			sx, sy, ok := applyHomography(H, float64(x), float64(y))
			if !ok {
				out.SetRGBA(x, y, color.RGBA{A: 255})
				continue
			}
			out.SetRGBA(x, y, bilinear(img, sx+float64(sb.Min.X), sy+float64(sb.Min.Y)))
		}
	}
	return out, nil
}

func bilinear(src image.Image, x, y float64) color.RGBA {
	b := src.Bounds()
	if x < float64(b.Min.X) || y < float64(b.Min.Y) || x > float64(b.Max.X-1) || y > float64(b.Max.Y-1) {
		return color.RGBA{A: 255}
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, b.Max.X-1), min(y0+1, b.Max.Y-1)
	fx, fy := x-float64(x0), y-float64(y0)

	c00 := toRGBA(src.At(x0, y0))
	c10 := toRGBA(src.At(x1, y0))
	c01 := toRGBA(src.At(x0, y1))
	c11 := toRGBA(src.At(x1, y1))
	mix := func(a, b, c, d float64) uint8 {
		return uint8(lerp(lerp(a, b, fx), lerp(c, d, fx), fy) + 0.5)
	}
	return color.RGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: mix(c00.A, c10.A, c01.A, c11.A),
	}
}

type rgba struct{ R, G, B, A float64 }

func toRGBA(c color.Color) rgba {
	r, g, b, a := c.RGBA()
	return rgba{R: float64(r >> 8), G: float64(g >> 8), B: float64(b >> 8), A: float64(a >> 8)}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
