package recognizer

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/textspot/internal/mempool"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// ResizeForRecognition stretches a crop to exactly width×height. Crops coming
// from rotated rectangles are already tight around the text, so the aspect
// ratio is not preserved.
func ResizeForRecognition(img image.Image, width, height int) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty crop %dx%d", b.Dx(), b.Dy())
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// NormalizeForRecognition converts a resized crop to a [1,C,H,W] tensor.
// Grayscale crops produce one channel; colour crops produce planar BGR.
// Values stay in 0..255 unless scale is non-zero, in which case each value
// is multiplied by it. The returned buffer comes from mempool.
func NormalizeForRecognition(img *image.NRGBA, grayscale bool, scale float32) (tensors.Tensor, []float32) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if scale == 0 {
		scale = 1
	}
	channels := 3
	if grayscale {
		img = imaging.Grayscale(img)
		channels = 1
	}

	plane := w * h
	buf := mempool.GetFloat32(channels * plane)
	for y := range h {
		row := img.Pix[y*img.Stride:]
		for x := range w {
			p := row[x*4 : x*4+4]
			idx := y*w + x
			if grayscale {
				buf[idx] = float32(p[0]) * scale
				continue
			}
			buf[idx] = float32(p[2]) * scale
			buf[plane+idx] = float32(p[1]) * scale
			buf[2*plane+idx] = float32(p[0]) * scale
		}
	}
	return tensors.Tensor{
		Data:  buf,
		Shape: []int64{1, int64(channels), int64(h), int64(w)},
	}, buf
}
