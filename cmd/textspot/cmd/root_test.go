package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/textspot/internal/version"
)

// resetFlags restores every flag in the command tree so tests do not see
// values left over from earlier executions of the shared rootCmd.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			var def []string
			if trimmed := strings.Trim(f.DefValue, "[]"); trimmed != "" {
				def = strings.Split(trimmed, ",")
			}
			_ = sv.Replace(def)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs rootCmd with args and returns stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "textspot", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Same(t, rootCmd, GetRootCommand())
}

func TestRootCommandHelp(t *testing.T) {
	out, _, err := executeCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "EAST network")
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	out, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "textspot version "+version.Version)

	out, _, err = executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Commit: "+version.GitCommit)
}

func TestRootCommandSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"decode", "batch", "image", "serve", "config", "version"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	_, stderr, err := executeCommand(t, "--invalid-flag")
	require.Error(t, err)
	assert.Contains(t, stderr, "unknown flag")
}

func TestRootCommandNoArgs(t *testing.T) {
	out, _, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "verbose", "log-level", "models-dir", "version"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", rootCmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
		"bogus": "INFO",
		"":      "INFO",
	}
	for name, want := range tests {
		assert.Equal(t, want, logLevel(name).String(), name)
	}
}

func TestConfigPaths(t *testing.T) {
	out, _, err := executeCommand(t, "config", "paths")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, ".", lines[0])
	assert.Equal(t, "/etc/textspot", lines[len(lines)-1])
}
