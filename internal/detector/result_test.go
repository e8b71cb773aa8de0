package detector

import (
	"testing"

	"github.com/MeKo-Tech/textspot/internal/geometry"
)

func makeDetections() []Detection {
	return ToDetections([]Survivor{
		{Box: geometry.Box{MinX: 10, MinY: 10, MaxX: 50, MaxY: 40}, Score: 0.9},
		{Box: geometry.Box{MinX: 60, MinY: 5, MaxX: 80, MaxY: 20}, Score: 0.8, Angle: 0.1},
	})
}

func TestValidateDetections(t *testing.T) {
	dets := makeDetections()
	if err := ValidateDetections(dets, 100, 60); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if err := ValidateDetections(dets, 0, 60); err == nil {
		t.Fatalf("expected error for zero width")
	}

	out := makeDetections()
	out[0].Rect.Center.X = 1000
	if err := ValidateDetections(out, 100, 60); err == nil {
		t.Fatalf("expected validation error for centre out of bounds")
	}

	flat := makeDetections()
	flat[1].Rect.HalfHeight = 0
	if err := ValidateDetections(flat, 100, 60); err == nil {
		t.Fatalf("expected validation error for zero height")
	}
}

func TestDetectionCorners(t *testing.T) {
	d := makeDetections()[0]
	c := d.Corners()
	// Unrotated: A is bottom-left, C is top-right.
	if c[0] != (geometry.Point{X: 10, Y: 40}) || c[2] != (geometry.Point{X: 50, Y: 10}) {
		t.Fatalf("unexpected corners: %v", c)
	}
	if d.Box != (geometry.Box{MinX: 10, MinY: 10, MaxX: 50, MaxY: 40}) {
		t.Fatalf("envelope not kept: %+v", d.Box)
	}
}
