package cmd

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/textspot/internal/batch"
	"github.com/MeKo-Tech/textspot/internal/config"
	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/utils"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image FILE...",
	Short: "Detect and read text in image files",
	Long: `Run the full pipeline on one or more image files.

Each image is resized to the preview size for EAST detection. Detected
rectangles are scaled back to the image, cropped and read by the CTC
recognizer. Both ONNX models must be present in the models directory.

Supported formats: JPEG, PNG, BMP, WebP

Examples:
  textspot image frame.jpg
  textspot image *.png --format json
  textspot image frame.jpg --overlay-dir overlays --crop-mode warp`,
	Args: cobra.ArbitraryArgs,
	RunE: runImage,
}

func runImage(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no input files provided")
	}
	cfg := GetConfig()
	format := cfg.Output.Format
	if err := validateFormat(format); err != nil {
		return err
	}
	for _, pth := range args {
		if !utils.IsSupportedImage(pth) {
			return fmt.Errorf("unsupported image format: %s", pth)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pl, err := pipeline.NewBuilderFrom(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()
	if n := cfg.Pipeline.WarmupIterations; n > 0 {
		if err := pl.Detector.Warmup(n); err != nil {
			return fmt.Errorf("detector warmup failed: %w", err)
		}
	}

	results := make([]batch.Item, 0, len(args))
	for _, pth := range args {
		img, meta, err := utils.LoadImage(pth)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", pth, err)
		}
		if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
			return err
		}
		res, err := pl.ProcessImage(cmd.Context(), img)
		if err != nil {
			return fmt.Errorf("processing %s failed: %w", pth, err)
		}
		if dir := cfg.Output.OverlayDir; dir != "" {
			outPath, err := saveOverlay(dir, meta.Path, pipeline.RenderOverlay(img, res))
			if err != nil {
				return err
			}
			slog.Info("Saved overlay", "path", outPath)
		}
		results = append(results, batch.Item{File: meta.Path, Result: res})
	}

	out, err := formatResults(format, results)
	if err != nil {
		return err
	}
	return writeOutput(cmd, out, cfg.Output.File)
}

// saveOverlay writes <dir>/<name>_overlay.png.
func saveOverlay(dir, src string, overlay image.Image) (string, error) {
	if overlay == nil {
		return "", fmt.Errorf("no overlay rendered for %s", src)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create overlay dir: %w", err)
	}
	base := filepath.Base(src)
	outPath := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
	if err := imaging.Save(overlay, outPath); err != nil {
		return "", fmt.Errorf("failed to save overlay: %w", err)
	}
	return outPath, nil
}

func addImageFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	f := cmd.Flags()
	f.StringP("format", "f", d.Output.Format, "output format (json, text, csv)")
	f.StringP("output", "o", "", "output file (default: stdout)")
	f.String("overlay-dir", "", "directory to write overlay images (drawn boxes and text)")
	f.String("det-model", "", "override detection model path")
	f.String("rec-model", "", "override recognition model path")
	f.String("dict", "", "alphabet file with one symbol per line")
	f.String("crop-mode", d.Pipeline.CropMode, "crop strategy: rotate or warp")
	f.Float64("min-rec-conf", d.Pipeline.MinConfidence, "drop regions with lower recognition confidence (0..1)")
	f.Int("workers", d.Pipeline.MaxWorkers, "crops recognized in parallel")
	f.Int("warmup", d.Pipeline.WarmupIterations, "detector warmup iterations before processing")
	f.Bool("gpu", false, "enable GPU acceleration using CUDA")
	f.Int("gpu-device", 0, "CUDA device ID to use")
	f.String("gpu-mem-limit", d.GPU.MemoryLimit, "GPU memory limit (e.g., '2GB', '512MB', 'auto')")
}

// bindImageFlags binds all image flags to viper configuration keys.
func bindImageFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.overlay_dir", "overlay-dir"},
		{"pipeline.detector.model_path", "det-model"},
		{"pipeline.recognizer.model_path", "rec-model"},
		{"pipeline.recognizer.dict_path", "dict"},
		{"pipeline.crop_mode", "crop-mode"},
		{"pipeline.min_confidence", "min-rec-conf"},
		{"pipeline.max_workers", "workers"},
		{"pipeline.warmup_iterations", "warmup"},
		{"gpu.enabled", "gpu"},
		{"gpu.device", "gpu-device"},
		{"gpu.memory_limit", "gpu-mem-limit"},
	}
	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(imageCmd)

	addImageFlags(imageCmd)
	bindImageFlags(imageCmd)
}
