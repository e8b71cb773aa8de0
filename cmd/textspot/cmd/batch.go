package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/textspot/internal/batch"
	"github.com/MeKo-Tech/textspot/internal/config"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch PATH...",
	Short: "Decode every tensor dump in files or directories",
	Long: `Decode many JSON tensor dumps concurrently.

Directories are searched for files matching --include and not matching
--exclude (base-name globs). Results keep discovery order. A failing dump is
reported in the output and makes the command exit non-zero unless
--keep-going is set; --fail-fast stops at the first failure.

Examples:
  textspot batch testdata/dumps
  textspot batch recordings --recursive --workers 8 --format csv --stats
  textspot batch a.json b.json --nms-threshold 0.5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
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

	bcfg := batch.DefaultConfig()
	bcfg.Pipeline = cfg.ToPipelineConfig()
	bcfg.FrameWidth, _ = cmd.Flags().GetInt("width")
	bcfg.FrameHeight, _ = cmd.Flags().GetInt("height")
	bcfg.Recursive, _ = cmd.Flags().GetBool("recursive")
	bcfg.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bcfg.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bcfg.Workers, _ = cmd.Flags().GetInt("workers")
	bcfg.FailFast, _ = cmd.Flags().GetBool("fail-fast")

	res, err := batch.Run(cmd.Context(), args, bcfg)
	if err != nil {
		return err
	}

	out, err := formatResults(format, res.Items)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, out, outputFile); err != nil {
		return err
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		fmt.Fprint(cmd.ErrOrStderr(), batch.FormatStats(res))
	}

	keepGoing, _ := cmd.Flags().GetBool("keep-going")
	if res.Failed() && !keepGoing {
		var failed []string
		for _, it := range res.Items {
			if it.Error != "" {
				failed = append(failed, it.File)
			}
		}
		return fmt.Errorf("%d of %d dumps failed: %s", res.Stats.Failed, res.Stats.Files, strings.Join(failed, ", "))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	d := config.DefaultConfig()
	b := batch.DefaultConfig()
	f := batchCmd.Flags()
	f.StringP("format", "f", d.Output.Format, "output format (json, text, csv)")
	f.StringP("output", "o", "", "output file (default: stdout)")
	f.BoolP("recursive", "r", false, "search directories recursively")
	f.StringSlice("include", b.IncludePatterns, "file name globs to decode")
	f.StringSlice("exclude", b.ExcludePatterns, "file name globs to skip")
	f.IntP("workers", "w", 0, "parallel decoders (0 = number of CPUs)")
	f.Bool("fail-fast", false, "stop at the first failing dump")
	f.Bool("keep-going", false, "exit zero even when some dumps fail")
	f.Bool("stats", false, "print timing and memory statistics to stderr")
	addDecodeFlags(f, d)
}
