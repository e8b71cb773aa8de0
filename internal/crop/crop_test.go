package crop

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/textspot/internal/geometry"
)

var red = color.RGBA{R: 255, A: 255}

// paintRect fills the pixels whose centres fall inside r with red on white.
func paintRect(w, h int, r geometry.RotatedRect) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	sin, cos := math.Sincos(-r.Angle)
	for y := range h {
		for x := range w {
			dx := float64(x) + 0.5 - r.Center.X
			dy := float64(y) + 0.5 - r.Center.Y
			ux := cos*dx - sin*dy
			uy := sin*dx + cos*dy
			if math.Abs(ux) <= r.HalfWidth && math.Abs(uy) <= r.HalfHeight {
				img.SetRGBA(x, y, red)
			} else {
				img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}
	return img
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 200 && g>>8 < 80 && b>>8 < 80
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeRotate, m)
	m, err = ParseMode("warp")
	require.NoError(t, err)
	assert.Equal(t, ModeWarp, m)
	_, err = ParseMode("smear")
	require.Error(t, err)
}

func TestRotatedCrop_Axis(t *testing.T) {
	r := geometry.RotatedRect{Center: geometry.Point{X: 30, Y: 15}, HalfWidth: 10, HalfHeight: 5}
	img := paintRect(64, 32, r)

	out, err := RotatedCrop(img, r.CropSpec())
	require.NoError(t, err)
	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 10, out.Bounds().Dy())
	for _, p := range []image.Point{{1, 1}, {10, 5}, {18, 8}} {
		assert.True(t, isRed(out.At(p.X, p.Y)), "pixel %v", p)
	}
}

func TestRotatedCrop_Diagonal(t *testing.T) {
	r := geometry.RotatedRect{Center: geometry.Point{X: 50, Y: 50}, HalfWidth: 20, HalfHeight: 4, Angle: math.Pi / 4}
	img := paintRect(100, 100, r)

	out, err := RotatedCrop(img, r.CropSpec())
	require.NoError(t, err)
	assert.Equal(t, 40, out.Bounds().Dx())
	assert.Equal(t, 8, out.Bounds().Dy())
	for _, p := range []image.Point{{5, 4}, {20, 4}, {34, 4}} {
		assert.True(t, isRed(out.At(p.X, p.Y)), "pixel %v", p)
	}
}

func TestRotatedCrop_Errors(t *testing.T) {
	_, err := RotatedCrop(nil, geometry.CropSpec{Width: 4, Height: 4})
	require.ErrorIs(t, err, ErrNilImage)

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	_, err = RotatedCrop(img, geometry.CropSpec{Center: geometry.Point{X: 5, Y: 5}, Width: 0.2, Height: 4})
	require.ErrorIs(t, err, ErrEmptyCrop)

	_, err = RotatedCrop(img, geometry.CropSpec{Center: geometry.Point{X: 500, Y: 500}, Width: 4, Height: 4})
	require.ErrorIs(t, err, ErrEmptyCrop)
}

func TestFourPointTransform_AxisAligned(t *testing.T) {
	r := geometry.RotatedRect{Center: geometry.Point{X: 32, Y: 16}, HalfWidth: 12, HalfHeight: 6}
	img := paintRect(64, 32, r)

	// Deliberately shuffled corners.
	c := r.Corners()
	out, err := FourPointTransform(img, [4]geometry.Point{c[2], c[0], c[3], c[1]})
	require.NoError(t, err)
	assert.Equal(t, 24, out.Bounds().Dx())
	assert.Equal(t, 12, out.Bounds().Dy())
	assert.True(t, isRed(out.At(12, 6)))
	assert.True(t, isRed(out.At(2, 2)))
}

func TestWarp_Diagonal(t *testing.T) {
	r := geometry.RotatedRect{Center: geometry.Point{X: 50, Y: 50}, HalfWidth: 20, HalfHeight: 5, Angle: -math.Pi / 6}
	img := paintRect(100, 100, r)

	out, err := Warp(img, r)
	require.NoError(t, err)
	b := out.Bounds()
	assert.InDelta(t, 40, b.Dx(), 1)
	assert.InDelta(t, 10, b.Dy(), 1)
	assert.True(t, isRed(out.At(b.Dx()/2, b.Dy()/2)))
	assert.True(t, isRed(out.At(4, b.Dy()/2)))
	assert.True(t, isRed(out.At(b.Dx()-5, b.Dy()/2)))
}

func TestFourPointTransform_Degenerate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	p := geometry.Point{X: 3, Y: 3}
	_, err := FourPointTransform(img, [4]geometry.Point{p, p, p, p})
	require.ErrorIs(t, err, ErrEmptyCrop)

	_, err = FourPointTransform(nil, [4]geometry.Point{})
	require.ErrorIs(t, err, ErrNilImage)
}

func TestCrop_Dispatch(t *testing.T) {
	r := geometry.RotatedRect{Center: geometry.Point{X: 16, Y: 16}, HalfWidth: 8, HalfHeight: 4}
	img := paintRect(32, 32, r)
	for _, m := range []Mode{ModeRotate, ModeWarp} {
		out, err := Crop(img, r, m)
		require.NoError(t, err, m)
		assert.True(t, isRed(out.At(out.Bounds().Min.X+8, out.Bounds().Min.Y+4)), m)
	}
	_, err := Crop(img, r, Mode("melt"))
	require.Error(t, err)
}

func TestComputeHomography_Identity(t *testing.T) {
	q := [4]geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5}, {X: 0, Y: 5}}
	h, ok := computeHomography(q, q)
	require.True(t, ok)
	x, y, ok := applyHomography(h, 3, 4)
	require.True(t, ok)
	assert.InDelta(t, 3, x, 1e-9)
	assert.InDelta(t, 4, y, 1e-9)
}
