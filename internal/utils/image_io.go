// Package utils loads frames from disk for the image command and server.
package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// ImageError wraps a failure in one image operation.
type ImageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("image %s: %v", e.Operation, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path        string
	Format      string
	SizeBytes   int64
	Width       int
	Height      int
	AspectRatio float64
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, ImageMetadata{}, &ImageError{
			Operation: "load", Path: path,
			Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path)),
		}
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Path: path, Err: err}
	}
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageMetadata{}, &ImageError{Operation: "decode", Path: path, Err: err}
	}

	b := img.Bounds()
	return img, ImageMetadata{
		Path:        path,
		Format:      format,
		SizeBytes:   fi.Size(),
		Width:       b.Dx(),
		Height:      b.Dy(),
		AspectRatio: float64(b.Dx()) / float64(b.Dy()),
	}, nil
}

// ImageConstraints bounds the frames the pipeline accepts.
type ImageConstraints struct {
	MinWidth  int
	MinHeight int
}

// DefaultImageConstraints requires at least one 4-pixel detection cell per axis.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{MinWidth: 4, MinHeight: 4}
}

// ValidateImageConstraints checks dimensions against the provided constraints.
// Frames larger than the preview are fine; the pipeline scales them down.
func ValidateImageConstraints(img image.Image, constraints ImageConstraints) error {
	if img == nil {
		return &ImageError{Operation: "validate", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Dx() < constraints.MinWidth || b.Dy() < constraints.MinHeight {
		return &ImageError{
			Operation: "validate",
			Err: fmt.Errorf("image too small: %dx%d < %dx%d",
				b.Dx(), b.Dy(), constraints.MinWidth, constraints.MinHeight),
		}
	}
	return nil
}
