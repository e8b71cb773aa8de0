package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeKo-Tech/textspot/internal/batch"
	"github.com/MeKo-Tech/textspot/internal/config"
)

// decodeCmd represents the decode command.
var decodeCmd = &cobra.Command{
	Use:   "decode [DUMP]",
	Short: "Decode saved EAST and CTC network outputs",
	Long: `Decode a JSON dump of network outputs into rotated text rectangles and text.

The dump holds the three EAST output maps by layer name and, optionally, one
recognition output per crop. Rectangles are decoded from every grid cell whose
score reaches the threshold, suppressed with NMS and scaled to the frame size.
No model files or ONNX Runtime are needed.

Examples:
  textspot decode --input outputs.json
  textspot decode outputs.json --score-threshold 0.7 --nms-threshold 0.2
  textspot decode outputs.json --width 1280 --height 720 --format csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func runDecode(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	if input == "" && len(args) == 1 {
		input = args[0]
	}
	if input == "" {
		return errors.New("no tensor dump provided (use --input or pass a path)")
	}

	cfg := GetConfig()
	applyDecodeFlags(cmd, cfg)

	format := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	if err := validateFormat(format); err != nil {
		return err
	}
	outputFile := cfg.Output.File
	if cmd.Flags().Changed("output") {
		outputFile, _ = cmd.Flags().GetString("output")
	}
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	if width < 0 || height < 0 {
		return fmt.Errorf("frame size must not be negative, got %dx%d", width, height)
	}

	res, err := batch.DecodeFile(input, batch.Config{
		Pipeline:    cfg.ToPipelineConfig(),
		FrameWidth:  width,
		FrameHeight: height,
	})
	if err != nil {
		return err
	}
	slog.Debug("Dump decoded",
		"input", input,
		"candidates", res.Candidates,
		"regions", len(res.Regions),
		"unpaired", len(res.Unpaired))

	out, err := formatResults(format, []batch.Item{{File: input, Result: res}})
	if err != nil {
		return err
	}
	return writeOutput(cmd, out, outputFile)
}

// applyDecodeFlags copies explicitly set flags over the loaded configuration.
func applyDecodeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	det := &cfg.Pipeline.Detector
	rec := &cfg.Pipeline.Recognizer
	if f.Changed("stride") {
		det.Stride, _ = f.GetInt("stride")
	}
	if f.Changed("score-threshold") {
		det.ScoreThreshold, _ = f.GetFloat32("score-threshold")
	}
	if f.Changed("nms-threshold") {
		det.NMSThreshold, _ = f.GetFloat64("nms-threshold")
	}
	if f.Changed("pixel-inclusive") {
		det.PixelInclusive, _ = f.GetBool("pixel-inclusive")
	}
	if f.Changed("alphabet") {
		rec.Alphabet, _ = f.GetString("alphabet")
	}
	if f.Changed("dict") {
		rec.DictPath, _ = f.GetString("dict")
	}
	if f.Changed("classes-first") {
		rec.ClassesFirst, _ = f.GetBool("classes-first")
	}
	if f.Changed("lowercase") {
		rec.Lowercase, _ = f.GetBool("lowercase")
	}
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	d := config.DefaultConfig()
	f := decodeCmd.Flags()
	f.StringP("input", "i", "", "tensor dump to decode (JSON)")
	f.StringP("format", "f", d.Output.Format, "output format (json, text, csv)")
	f.StringP("output", "o", "", "output file (default: stdout)")
	addDecodeFlags(f, d)
}

// addDecodeFlags registers the frame size and decode tuning flags read by
// applyDecodeFlags.
func addDecodeFlags(f *pflag.FlagSet, d config.Config) {
	det := d.Pipeline.Detector
	f.Int("width", 0, "frame width rectangles are scaled to (default: configured video width)")
	f.Int("height", 0, "frame height rectangles are scaled to (default: configured video height)")
	f.Int("stride", det.Stride, "input pixels per detection grid cell")
	f.Float32("score-threshold", det.ScoreThreshold, "minimum cell score for a candidate (0..1)")
	f.Float64("nms-threshold", det.NMSThreshold, "overlap above which a box is suppressed")
	f.Bool("pixel-inclusive", det.PixelInclusive, "count box edges as pixels (+1) in areas")
	f.String("alphabet", d.Pipeline.Recognizer.Alphabet, "alphabet preset (default, openvino)")
	f.String("dict", "", "alphabet file with one symbol per line")
	f.Bool("classes-first", false, "recognition outputs are laid out as [C,T]")
	f.Bool("lowercase", d.Pipeline.Recognizer.Lowercase, "lowercase recognized text")
}
