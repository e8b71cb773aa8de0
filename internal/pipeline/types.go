package pipeline

import "github.com/MeKo-Tech/textspot/internal/geometry"

// RegionResult combines one detected rectangle with its recognized text.
// Geometry is in frame coordinates.
type RegionResult struct {
	Index         int                  `json:"index"` // detection order after NMS
	Rect          geometry.RotatedRect `json:"rect"`
	Corners       [4]geometry.Point    `json:"corners"`
	Crop          geometry.CropSpec    `json:"crop"`
	DetConfidence float64              `json:"det_confidence"`

	Text          string  `json:"text"`
	RawText       string  `json:"raw_text,omitempty"`
	RecConfidence float64 `json:"rec_confidence"`
	Error         string  `json:"error,omitempty"`
	RecognizeNs   int64   `json:"recognize_ns,omitempty"`
}

// ImageResult is the per-frame output.
type ImageResult struct {
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	PreviewWidth  int            `json:"preview_width"`
	PreviewHeight int            `json:"preview_height"`
	ScaleX        float64        `json:"scale_x"`
	ScaleY        float64        `json:"scale_y"`
	Candidates    int            `json:"candidates"`
	Regions       []RegionResult `json:"regions"`
	// Recognition sequences that had no matching region.
	Unpaired   []string `json:"unpaired,omitempty"`
	Processing struct {
		DetectionNs   int64 `json:"detection_ns"`
		RecognitionNs int64 `json:"recognition_ns"`
		TotalNs       int64 `json:"total_ns"`
	} `json:"processing"`
}
