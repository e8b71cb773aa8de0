package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ToJSON serializes a result to pretty JSON.
func ToJSON(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToPlainText returns one line per non-empty region text in detection order.
func ToPlainText(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	lines := make([]string, 0, len(res.Regions)+len(res.Unpaired))
	for _, r := range res.Regions {
		if t := strings.TrimSpace(r.Text); t != "" {
			lines = append(lines, t)
		}
	}
	for _, t := range res.Unpaired {
		if t = strings.TrimSpace(t); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// ToCSV exports one row per region: centre, size, angle in degrees, scores and text.
func ToCSV(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"index", "cx", "cy", "w", "h", "angle_deg", "det_conf", "text", "rec_conf"})
	for _, r := range res.Regions {
		_ = w.Write([]string{
			fmt.Sprint(r.Index),
			fmt.Sprintf("%.2f", r.Crop.Center.X),
			fmt.Sprintf("%.2f", r.Crop.Center.Y),
			fmt.Sprintf("%.2f", r.Crop.Width),
			fmt.Sprintf("%.2f", r.Crop.Height),
			fmt.Sprintf("%.2f", r.Crop.AngleDegrees),
			fmt.Sprintf("%.3f", r.DetConfidence),
			r.Text,
			fmt.Sprintf("%.3f", r.RecConfidence),
		})
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ValidateImageResult checks region centres lie inside the frame and
// confidences are in [0,1].
func ValidateImageResult(res *ImageResult) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Width <= 0 || res.Height <= 0 {
		return errors.New("invalid image dimensions")
	}
	for i, r := range res.Regions {
		c := r.Rect.Center
		if c.X < 0 || c.Y < 0 || c.X > float64(res.Width) || c.Y > float64(res.Height) {
			return fmt.Errorf("region %d centre out of bounds", i)
		}
		if r.DetConfidence < 0 || r.DetConfidence > 1 {
			return fmt.Errorf("region %d det conf out of range", i)
		}
		if r.RecConfidence < 0 || r.RecConfidence > 1 {
			return fmt.Errorf("region %d rec conf out of range", i)
		}
	}
	return nil
}
