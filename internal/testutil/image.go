package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common frame dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// PreviewSize matches the detector input.
	PreviewSize = ImageSize{256, 256}
	// VideoSize matches the default full-size frame.
	VideoSize = ImageSize{512, 512}
	// HDSize is a non-square camera frame.
	HDSize = ImageSize{1280, 720}
)

// TestImageConfig holds configuration for generating synthetic frames.
type TestImageConfig struct {
	Text       string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
	Scale      int     // integer upscale of the rendered glyphs
	Rotation   float64 // degrees, counterclockwise
}

// DefaultTestImageConfig returns a white video-size frame with black text.
func DefaultTestImageConfig() TestImageConfig {
	return TestImageConfig{
		Text:       "stop",
		Size:       VideoSize,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
		Scale:      4,
	}
}

// GenerateTextImage renders centred text. Glyphs are drawn at the font's
// native size and upscaled so they are large enough for the detector.
func GenerateTextImage(cfg TestImageConfig) (*image.NRGBA, error) {
	if cfg.Size.Width <= 0 || cfg.Size.Height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", cfg.Size.Width, cfg.Size.Height)
	}
	if cfg.FontFace == nil {
		cfg.FontFace = basicfont.Face7x13
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}

	textW := font.MeasureString(cfg.FontFace, cfg.Text).Ceil()
	textH := cfg.FontFace.Metrics().Height.Ceil()
	label := image.NewRGBA(image.Rect(0, 0, textW+2, textH+2))
	draw.Draw(label, label.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  label,
		Src:  &image.Uniform{cfg.Foreground},
		Face: cfg.FontFace,
		Dot:  fixed.P(1, 1+cfg.FontFace.Metrics().Ascent.Ceil()),
	}
	d.DrawString(cfg.Text)

	scaled := imaging.Resize(label, label.Bounds().Dx()*cfg.Scale, label.Bounds().Dy()*cfg.Scale, imaging.NearestNeighbor)
	if cfg.Rotation != 0 {
		scaled = imaging.Rotate(scaled, cfg.Rotation, cfg.Background)
	}

	frame := imaging.New(cfg.Size.Width, cfg.Size.Height, cfg.Background)
	pos := image.Pt((cfg.Size.Width-scaled.Bounds().Dx())/2, (cfg.Size.Height-scaled.Bounds().Dy())/2)
	return imaging.Paste(frame, scaled, pos), nil
}

// CreateTestImage creates a uniform frame.
func CreateTestImage(width, height int, c color.Color) image.Image {
	return imaging.New(width, height, c)
}

// SaveImage saves an image, choosing the encoder from the extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save %s", path)
}

// LoadImageFile decodes an image file.
func LoadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: test image paths are controlled by the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
