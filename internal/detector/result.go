package detector

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/textspot/internal/geometry"
)

// Detection is an accepted text region.
type Detection struct {
	Rect  geometry.RotatedRect `json:"rect"`
	Box   geometry.Box         `json:"box"` // unrotated envelope the rect was built from
	Score float64              `json:"score"`
}

// Corners returns the rotated corner points of the region.
func (d Detection) Corners() [4]geometry.Point { return d.Rect.Corners() }

// ToDetections converts survivors into rotated rectangles, keeping their order.
func ToDetections(survivors []Survivor) []Detection {
	out := make([]Detection, len(survivors))
	for i, s := range survivors {
		out[i] = Detection{Rect: geometry.NewRotatedRect(s.Box, s.Angle), Box: s.Box, Score: s.Score}
	}
	return out
}

// Result is the output of one detection pass.
type Result struct {
	Detections     []Detection `json:"detections"`
	Candidates     int         `json:"candidates"`
	GridWidth      int         `json:"grid_width"`
	GridHeight     int         `json:"grid_height"`
	InputWidth     int         `json:"input_width"`
	InputHeight    int         `json:"input_height"`
	OriginalWidth  int         `json:"original_width,omitempty"`
	OriginalHeight int         `json:"original_height,omitempty"`
	ProcessingTime int64       `json:"processing_time_ns"`
}

// ToJSON encodes the result with indentation.
func (r *Result) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ResultFromJSON parses a result produced by ToJSON.
func ResultFromJSON(data []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ValidateDetections checks that every rect has positive extents and its
// centre lies within a width×height frame.
func ValidateDetections(dets []Detection, width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New("invalid image dimensions for validation")
	}
	for i, d := range dets {
		r := d.Rect
		if r.HalfWidth <= 0 || r.HalfHeight <= 0 {
			return fmt.Errorf("detection %d has non-positive size", i)
		}
		if r.Center.X < 0 || r.Center.Y < 0 || r.Center.X > float64(width) || r.Center.Y > float64(height) {
			return fmt.Errorf("detection %d centre out of bounds", i)
		}
	}
	return nil
}
