package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/utils"
)

const formatOverlay = "overlay"

// imageHandler runs the full detection and recognition pipeline on an
// uploaded image.
func (s *Server) imageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		s.writeErrorResponse(w, "models not loaded; only /v1/decode is available", http.StatusServiceUnavailable)
		return
	}

	img, err := s.parseImageRequest(w, r)
	if err != nil {
		return
	}

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	res, err := s.pipeline.ProcessImage(ctx, img)
	if err != nil {
		processRequestsTotal.WithLabelValues("image", "error").Inc()
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.writeErrorResponse(w, fmt.Sprintf("processing failed: %v", err), status)
		return
	}
	observeResult("image", time.Since(start).Seconds(), len(res.Regions))

	format := requestFormat(r)
	if format == formatOverlay || r.FormValue("overlay") == "1" {
		s.handleOverlayOutput(w, img, res)
		return
	}
	s.writeResult(w, format, res)
}

// parseImageRequest reads the "image" part of a multipart form. On failure
// the error response has already been written.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, err
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, err
	}
	if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, err
	}
	return img, nil
}

// handleOverlayOutput renders the detected regions onto the upload as PNG.
func (s *Server) handleOverlayOutput(w http.ResponseWriter, img image.Image, res *pipeline.ImageResult) {
	if !s.overlayEnabled {
		http.Error(w, "overlay output disabled", http.StatusForbidden)
		return
	}
	ov := pipeline.RenderOverlay(img, res)
	if ov == nil {
		http.Error(w, "overlay failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, ov)
}
