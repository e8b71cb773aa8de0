// Package crop cuts rectified text crops out of a frame given the rotated
// rectangles produced by detection.
package crop

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/textspot/internal/geometry"
)

var (
	// ErrNilImage is returned when no source image is given.
	ErrNilImage = errors.New("input image is nil")
	// ErrEmptyCrop is returned when a rectangle covers less than one pixel.
	ErrEmptyCrop = errors.New("empty crop")
)

// Mode selects how a rotated rectangle is turned into an upright crop.
type Mode string

const (
	// ModeRotate rotates the frame about the rectangle centre and cuts an
	// axis-aligned window.
	ModeRotate Mode = "rotate"
	// ModeWarp maps the four rotated corners through a perspective transform.
	ModeWarp Mode = "warp"
)

// ParseMode accepts "rotate", "warp" or "" (rotate).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRotate:
		return ModeRotate, nil
	case ModeWarp:
		return ModeWarp, nil
	}
	return "", fmt.Errorf("unknown crop mode %q", s)
}

// Crop returns the upright crop of r from img using mode.
func Crop(img image.Image, r geometry.RotatedRect, mode Mode) (image.Image, error) {
	var (
		out image.Image
		err error
	)
	switch mode {
	case "", ModeRotate:
		out, err = RotatedCrop(img, r.CropSpec())
	case ModeWarp:
		out, err = Warp(img, r)
	default:
		return nil, fmt.Errorf("unknown crop mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RotatedCrop undoes the rotation of spec about its centre and returns the
// width×height window around that centre. spec.AngleDegrees is clockwise on
// screen and bild rotates clockwise, so the frame is turned by its negation.
func RotatedCrop(img image.Image, spec geometry.CropSpec) (*image.NRGBA, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	w, h := int(math.Round(spec.Width)), int(math.Round(spec.Height))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyCrop, w, h)
	}

	b := img.Bounds()
	cx := int(math.Round(spec.Center.X)) - b.Min.X
	cy := int(math.Round(spec.Center.Y)) - b.Min.Y
	upright := transform.Rotate(img, -spec.AngleDegrees, &transform.RotationOptions{
		Pivot: &image.Point{X: cx, Y: cy},
	})

	window := image.Rect(cx-w/2, cy-h/2, cx-w/2+w, cy-h/2+h)
	if window.Intersect(upright.Bounds()).Empty() {
		return nil, fmt.Errorf("%w: window %v outside frame", ErrEmptyCrop, window)
	}
	// Parts of the window beyond the frame stay transparent.
	visible := window.Intersect(upright.Bounds())
	out := imaging.New(w, h, color.Transparent)
	return imaging.Paste(out, imaging.Crop(upright, visible), visible.Min.Sub(window.Min)), nil
}
