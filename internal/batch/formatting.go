package batch

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/textspot/internal/pipeline"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "text"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatJSON, FormatText, FormatCSV}

// ValidateFormat rejects unknown output formats.
func ValidateFormat(format string) error {
	if !slices.Contains(Formats, format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(Formats, ", "))
	}
	return nil
}

// Format renders one entry per item. A single JSON item is written as an
// object, several as an array. CSV and text label each file when there is
// more than one; failed items appear as "# error: ..." lines.
func Format(format string, items []Item) (string, error) {
	switch format {
	case FormatJSON:
		var v any = items
		if len(items) == 1 {
			v = items[0]
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(b) + "\n", nil
	case FormatCSV:
		return formatEach(items, "# %s\n", pipeline.ToCSV)
	case FormatText:
		return formatEach(items, "%s:\n", pipeline.ToPlainText)
	}
	return "", ValidateFormat(format)
}

func formatEach(items []Item, header string, render func(*pipeline.ImageResult) (string, error)) (string, error) {
	var sb strings.Builder
	for _, it := range items {
		if len(items) > 1 {
			fmt.Fprintf(&sb, header, it.File)
		}
		if it.Result == nil {
			fmt.Fprintf(&sb, "# error: %s\n", it.Error)
			continue
		}
		s, err := render(it.Result)
		if err != nil {
			return "", fmt.Errorf("format %s: %w", it.File, err)
		}
		sb.WriteString(s)
		if s != "" && !strings.HasSuffix(s, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// FormatStats renders the run summary printed after a batch.
func FormatStats(r *Result) string {
	var sb strings.Builder
	sb.WriteString("Batch statistics:\n")
	fmt.Fprintf(&sb, "  Files:      %d\n", r.Stats.Files)
	fmt.Fprintf(&sb, "  Decoded:    %d\n", r.Stats.Decoded)
	fmt.Fprintf(&sb, "  Failed:     %d\n", r.Stats.Failed)
	fmt.Fprintf(&sb, "  Candidates: %d\n", r.Stats.Candidates)
	fmt.Fprintf(&sb, "  Regions:    %d\n", r.Stats.Regions)
	fmt.Fprintf(&sb, "  Workers:    %d\n", r.Workers)
	for _, s := range r.Stages {
		fmt.Fprintf(&sb, "  %-11s %v\n", s.Name+":", s.Duration)
	}
	fmt.Fprintf(&sb, "  Memory:     %s\n", r.Memory)
	fmt.Fprintf(&sb, "  Throughput: %.1f dumps/sec\n", r.Stats.ThroughputPerSec)
	return sb.String()
}
