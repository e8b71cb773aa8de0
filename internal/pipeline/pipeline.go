// Package pipeline wires detection, cropping and recognition into a
// frame-in, text-out flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/textspot/internal/crop"
	"github.com/MeKo-Tech/textspot/internal/detector"
	"github.com/MeKo-Tech/textspot/internal/geometry"
	"github.com/MeKo-Tech/textspot/internal/recognizer"
)

// Pipeline wires together the detector and recognizer.
type Pipeline struct {
	cfg        Config
	Detector   *detector.Detector
	Recognizer *recognizer.Recognizer
}

// NewWithComponents builds a pipeline around existing components.
func NewWithComponents(cfg Config, det *detector.Detector, rec *recognizer.Recognizer) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if det == nil || rec == nil {
		return nil, errors.New("detector and recognizer are required")
	}
	return &Pipeline{cfg: cfg, Detector: det, Recognizer: rec}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases both models.
func (p *Pipeline) Close() error {
	var errs []error
	if p.Detector != nil {
		errs = append(errs, p.Detector.Close())
	}
	if p.Recognizer != nil {
		errs = append(errs, p.Recognizer.Close())
	}
	return errors.Join(errs...)
}

// ProcessImage detects text on a preview-sized copy of img, scales the
// rectangles back to img, and recognizes each crop. Regions keep detection
// order.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (*ImageResult, error) {
	if p == nil || p.Detector == nil || p.Recognizer == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	b := img.Bounds()
	cfg := p.cfg

	preview := imaging.Resize(img, cfg.PreviewWidth, cfg.PreviewHeight, imaging.Lanczos)
	detStart := time.Now()
	det, err := p.Detector.Detect(preview)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	detNs := time.Since(detStart).Nanoseconds()

	fx, fy := cfg.FrameRatios(b.Dx(), b.Dy())
	res, err := newImageResult(cfg, det, b.Dx(), b.Dy(), fx, fy)
	if err != nil {
		return nil, err
	}
	res.Processing.DetectionNs = detNs

	recStart := time.Now()
	if err := p.recognizeRegions(ctx, img, res.Regions); err != nil {
		return nil, err
	}
	res.Processing.RecognitionNs = time.Since(recStart).Nanoseconds()
	res.Regions = filterConfidence(res.Regions, cfg.MinConfidence)
	res.Processing.TotalNs = time.Since(start).Nanoseconds()

	slog.Debug("Image processed",
		"size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"candidates", res.Candidates,
		"regions", len(res.Regions),
		"total_ms", float64(res.Processing.TotalNs)/1e6)
	return res, nil
}

// newImageResult scales detections by (fx, fy) into frame-space regions.
func newImageResult(cfg Config, det *detector.Result, w, h int, fx, fy float64) (*ImageResult, error) {
	res := &ImageResult{
		Width:         w,
		Height:        h,
		PreviewWidth:  cfg.PreviewWidth,
		PreviewHeight: cfg.PreviewHeight,
		ScaleX:        fx,
		ScaleY:        fy,
		Candidates:    det.Candidates,
		Regions:       make([]RegionResult, 0, len(det.Detections)),
	}
	for i, d := range det.Detections {
		rect, err := d.Rect.ScaleXY(fx, fy)
		if err != nil {
			return nil, fmt.Errorf("scale detection %d: %w", i, err)
		}
		res.Regions = append(res.Regions, newRegion(i, rect, d.Score))
	}
	return res, nil
}

func newRegion(i int, rect geometry.RotatedRect, score float64) RegionResult {
	return RegionResult{
		Index:         i,
		Rect:          rect,
		Corners:       rect.Corners(),
		Crop:          rect.CropSpec(),
		DetConfidence: score,
	}
}

type regionJob struct {
	index int
}

// recognizeRegions crops and recognizes regions in place using a bounded
// worker pool. A failure on one crop is recorded on that region; only
// context cancellation aborts the whole frame.
func (p *Pipeline) recognizeRegions(ctx context.Context, img image.Image, regions []RegionResult) error {
	if len(regions) == 0 {
		return nil
	}
	workers := p.cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(regions))

	jobs := make(chan regionJob)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				p.recognizeRegion(img, &regions[job.index])
			}
		}()
	}

	var cancelled error
send:
	for i := range regions {
		select {
		case jobs <- regionJob{index: i}:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break send
		}
	}
	close(jobs)
	wg.Wait()
	if cancelled != nil {
		return cancelled
	}
	return ctx.Err()
}

func (p *Pipeline) recognizeRegion(img image.Image, r *RegionResult) {
	patch, err := crop.Crop(img, r.Rect, p.cfg.CropMode)
	if err != nil {
		r.Error = err.Error()
		return
	}
	rec, err := p.Recognizer.RecognizeImage(patch)
	if err != nil {
		r.Error = err.Error()
		return
	}
	r.Text = rec.Text
	r.RawText = rec.Raw
	r.RecConfidence = rec.Confidence
	r.RecognizeNs = rec.ProcessingTime
}

func filterConfidence(regions []RegionResult, minConf float64) []RegionResult {
	if minConf <= 0 {
		return regions
	}
	out := regions[:0]
	for _, r := range regions {
		if r.Error != "" || r.RecConfidence >= minConf {
			out = append(out, r)
		}
	}
	return out
}
