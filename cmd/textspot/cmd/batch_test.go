package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/textspot/internal/batch"
	"github.com/MeKo-Tech/textspot/internal/testutil"
)

func writeScenarios(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		sc, err := testutil.Scenario(name)
		require.NoError(t, err)
		require.NoError(t, testutil.WriteScenario(dir, sc))
	}
	return dir
}

func TestBatchCommand_Directory(t *testing.T) {
	dir := writeScenarios(t, "separate_words", "single_cell", "empty")
	out, _, err := executeCommand(t, "batch", dir, "--width", "64", "--height", "64")
	require.NoError(t, err)

	var items []batch.Item
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 3, "expectation files are excluded")
	// Directory contents are sorted by name.
	assert.Equal(t, testutil.DumpPath(dir, "empty"), items[0].File)
	assert.Equal(t, testutil.DumpPath(dir, "separate_words"), items[1].File)
	assert.Equal(t, testutil.DumpPath(dir, "single_cell"), items[2].File)
	require.Len(t, items[1].Result.Regions, 2)
	assert.Equal(t, "stop", items[1].Result.Regions[0].Text)
}

func TestBatchCommand_TextAndStats(t *testing.T) {
	dir := writeScenarios(t, "separate_words")
	out, stderr, err := executeCommand(t, "batch", dir, "--format", "text", "--stats", "--workers", "2")
	require.NoError(t, err)
	assert.Equal(t, "stop\nexit\n", out)
	assert.Contains(t, stderr, "Batch statistics:")
	assert.Contains(t, stderr, "Decoded:    1")
	assert.Contains(t, stderr, "Workers:    1")
}

func TestBatchCommand_Failures(t *testing.T) {
	dir := writeScenarios(t, "single_cell")
	bad := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))

	out, _, err := executeCommand(t, "batch", dir, "--format", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 dumps failed")
	assert.Contains(t, err.Error(), "broken.json")
	assert.Contains(t, out, "# error: load ")

	_, _, err = executeCommand(t, "batch", dir, "--keep-going")
	require.NoError(t, err)

	_, _, err = executeCommand(t, "batch", dir, "--fail-fast", "--workers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
}

func TestBatchCommand_Errors(t *testing.T) {
	dir := writeScenarios(t, "single_cell")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no args", []string{"batch"}, "requires at least 1 arg"},
		{"missing path", []string{"batch", filepath.Join(dir, "nope")}, "cannot access"},
		{"nothing matches", []string{"batch", dir, "--include", "*.npz"}, "no tensor dumps found"},
		{"bad format", []string{"batch", dir, "--format", "xml"}, "invalid output format"},
		{"bad pattern", []string{"batch", dir, "--include", "[", "--keep-going"}, "invalid pattern"},
		{"negative workers", []string{"batch", dir, "--workers", "-1"}, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
