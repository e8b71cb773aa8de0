package pipeline

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/textspot/internal/detector"
	"github.com/MeKo-Tech/textspot/internal/recognizer"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// DecodeBundle runs decoding, suppression and scaling on raw detection maps
// without any model. Sequence i, when present, is decoded as the text of
// region i; sequences beyond the region count are reported as Unpaired.
// A zero frame size uses the configured video size.
func DecodeBundle(cfg Config, bundle tensors.DetectionBundle, seqs []tensors.Tensor, frameW, frameH int) (*ImageResult, error) {
	start := time.Now()
	if frameW <= 0 || frameH <= 0 {
		frameW, frameH = cfg.VideoWidth, cfg.VideoHeight
	}

	// Dumps may come from any network resolution; the grid size and stride
	// define the input space.
	dcfg := cfg.Detector
	dcfg.InputWidth, dcfg.InputHeight = 0, 0
	det, err := detector.DetectBundle(bundle, dcfg)
	if err != nil {
		return nil, err
	}
	inW, inH := det.InputWidth, det.InputHeight
	if inW <= 0 || inH <= 0 {
		inW, inH = cfg.PreviewWidth, cfg.PreviewHeight
	}
	fx := float64(frameW) / float64(inW)
	fy := float64(frameH) / float64(inH)
	res, err := newImageResult(cfg, det, frameW, frameH, fx, fy)
	if err != nil {
		return nil, err
	}
	res.PreviewWidth, res.PreviewHeight = inW, inH
	res.Processing.DetectionNs = det.ProcessingTime

	if len(seqs) > 0 {
		recStart := time.Now()
		rec, err := recognizer.NewRecognizerWithRunner(cfg.Recognizer, nil)
		if err != nil {
			return nil, err
		}
		for i, s := range seqs {
			out, err := rec.RecognizeSequence(s)
			if err != nil {
				return nil, fmt.Errorf("sequence %d: %w", i, err)
			}
			if i < len(res.Regions) {
				r := &res.Regions[i]
				r.Text, r.RawText, r.RecConfidence = out.Text, out.Raw, out.Confidence
				continue
			}
			res.Unpaired = append(res.Unpaired, out.Text)
		}
		res.Processing.RecognitionNs = time.Since(recStart).Nanoseconds()
	}
	res.Processing.TotalNs = time.Since(start).Nanoseconds()
	return res, nil
}

// DecodeDump resolves the detection maps and recognition sequences of a
// tensor dump and decodes them with DecodeBundle.
func DecodeDump(cfg Config, dump tensors.Dump, frameW, frameH int) (*ImageResult, error) {
	bundle, err := dump.Detection(cfg.Detector.Layers)
	if err != nil {
		return nil, err
	}
	if dump.ClassesFirst {
		cfg.Recognizer.ClassesFirst = true
	}
	return DecodeBundle(cfg, bundle, dump.Sequences, frameW, frameH)
}
