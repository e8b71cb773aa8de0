package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/textspot/internal/batch"
)

func validateFormat(format string) error {
	return batch.ValidateFormat(format)
}

// formatResults renders one result per input file.
func formatResults(format string, items []batch.Item) (string, error) {
	return batch.Format(format, items)
}

// writeOutput prints to stdout or writes to file when one is given.
func writeOutput(cmd *cobra.Command, content, file string) error {
	if file == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, err := fmt.Fprintf(cmd.ErrOrStderr(), "Results written to %s\n", file)
	return err
}
