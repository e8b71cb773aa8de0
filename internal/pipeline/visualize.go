package pipeline

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// ScoreColor maps a detection score to a red-to-green ramp.
func ScoreColor(score float64) colorful.Color {
	s := math.Max(0, math.Min(1, score))
	return colorful.Hsv(120*s, 0.9, 0.95).Clamped()
}

// RenderOverlay draws each region's rotated outline, coloured by detection
// score, and its text above the topmost corner.
func RenderOverlay(img image.Image, res *ImageResult) image.Image {
	if img == nil {
		return nil
	}
	dc := gg.NewContextForImage(img)
	if res == nil {
		return dc.Image()
	}
	origin := img.Bounds().Min
	ox, oy := float64(origin.X), float64(origin.Y)

	dc.SetLineWidth(2)
	for _, r := range res.Regions {
		dc.SetColor(ScoreColor(r.DetConfidence))
		for i, p := range r.Corners {
			if i == 0 {
				dc.MoveTo(p.X-ox, p.Y-oy)
				continue
			}
			dc.LineTo(p.X-ox, p.Y-oy)
		}
		dc.ClosePath()
		dc.Stroke()

		if r.Text == "" {
			continue
		}
		top := r.Corners[0]
		for _, p := range r.Corners[1:] {
			if p.Y < top.Y {
				top = p
			}
		}
		dc.DrawStringAnchored(r.Text, top.X-ox, top.Y-oy-2, 0, 0)
	}
	return dc.Image()
}
