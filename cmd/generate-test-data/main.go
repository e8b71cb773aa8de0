package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/textspot/internal/testutil"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateDumps  = flag.Bool("dumps", true, "Generate tensor dumps with expected results")
		generateImages = flag.Bool("images", true, "Generate synthetic text frames")
		only           = flag.String("scenario", "", "Generate a single dump scenario by name")
		verbose        = flag.Bool("v", false, "Verbose output")
		help           = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate test data for textspot testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # Generate all test data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -images=false            # Generate only dumps\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -scenario separate_words # Regenerate one dump\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if *verbose {
		slog.Info("Options", "dumps", *generateDumps, "images", *generateImages, "scenario", *only, "root", root)
	}

	if *generateDumps {
		n, err := writeDumps(filepath.Join(root, "testdata", "dumps"), *only)
		if err != nil {
			slog.Error("Failed to generate dumps", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated tensor dumps", "count", n)
	}

	if *generateImages && *only == "" {
		n, err := writeImages(filepath.Join(root, "testdata", "images"))
		if err != nil {
			slog.Error("Failed to generate images", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated synthetic frames", "count", n)
	}

	slog.Info("Test data generation completed")
}

func writeDumps(dir, only string) (int, error) {
	scenarios := testutil.Scenarios()
	if only != "" {
		sc, err := testutil.Scenario(only)
		if err != nil {
			return 0, err
		}
		scenarios = []testutil.DumpScenario{sc}
	}
	for _, sc := range scenarios {
		if err := testutil.WriteScenario(dir, sc); err != nil {
			return 0, err
		}
		slog.Debug("Wrote scenario", "name", sc.Name, "path", testutil.DumpPath(dir, sc.Name))
	}
	return len(scenarios), nil
}

// writeImages renders a few signs at the detector and video resolutions.
func writeImages(dir string) (int, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("failed to create images directory: %w", err)
	}
	cfg := testutil.DefaultTestImageConfig()
	frames := []struct {
		name     string
		text     string
		size     testutil.ImageSize
		rotation float64
	}{
		{"stop_preview", "stop", testutil.PreviewSize, 0},
		{"stop_video", "stop", testutil.VideoSize, 0},
		{"exit_tilted", "exit", testutil.VideoSize, 15},
		{"platform_hd", "platform 9", testutil.HDSize, 0},
	}
	for _, f := range frames {
		cfg.Text, cfg.Size, cfg.Rotation = f.text, f.size, f.rotation
		img, err := testutil.GenerateTextImage(cfg)
		if err != nil {
			return 0, fmt.Errorf("failed to generate %s: %w", f.name, err)
		}
		if err := imaging.Save(img, filepath.Join(dir, f.name+".png")); err != nil {
			return 0, fmt.Errorf("failed to save %s: %w", f.name, err)
		}
	}
	return len(frames), nil
}
