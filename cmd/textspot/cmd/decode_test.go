package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/textspot/internal/onnx/mock"
	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// writeDump saves a 4×4 grid with one 6×4 box at (8,4) in a 16×16 input,
// plus one recognition output reading "ab".
func writeDump(t *testing.T) string {
	t.Helper()
	out := mock.NewEASTOutput(4, 4)
	out.SetCell(1, 2, 0.9, [4]float32{2, 3, 2, 3}, 0)
	dump := out.Dump(tensors.DefaultEASTLayers())
	dump.Sequences = []tensors.Tensor{mock.NewGreedyPathLogits([]int{10, 36, 11}, 37, false, 1, 0)}

	path := filepath.Join(t.TempDir(), "outputs.json")
	require.NoError(t, tensors.SaveDump(path, dump))
	return path
}

func TestDecodeCommand_JSON(t *testing.T) {
	path := writeDump(t)
	out, _, err := executeCommand(t, "decode", "--input", path, "--format", "json", "--width", "16", "--height", "16")
	require.NoError(t, err)

	var got struct {
		File   string               `json:"file"`
		Result pipeline.ImageResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, path, got.File)
	require.Len(t, got.Result.Regions, 1)
	r := got.Result.Regions[0]
	assert.InDelta(t, 8.0, r.Crop.Center.X, 1e-6)
	assert.InDelta(t, 4.0, r.Crop.Center.Y, 1e-6)
	assert.InDelta(t, 6.0, r.Crop.Width, 1e-6)
	assert.InDelta(t, 4.0, r.Crop.Height, 1e-6)
	assert.Equal(t, "ab", r.Text)
	assert.Empty(t, got.Result.Unpaired)
}

func TestDecodeCommand_PositionalAndText(t *testing.T) {
	path := writeDump(t)
	out, _, err := executeCommand(t, "decode", path, "--format", "text")
	require.NoError(t, err)
	assert.Equal(t, "ab\n", out)
}

func TestDecodeCommand_CSV(t *testing.T) {
	path := writeDump(t)
	out, _, err := executeCommand(t, "decode", path, "-f", "csv", "--width", "16", "--height", "16")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "index,cx,cy"))
	assert.True(t, strings.HasPrefix(lines[1], "0,8.00,4.00,6.00,4.00,0.00,0.900,ab,"), lines[1])
}

func TestDecodeCommand_ScoreThreshold(t *testing.T) {
	path := writeDump(t)
	out, _, err := executeCommand(t, "decode", path, "--format", "json", "--score-threshold", "0.95")
	require.NoError(t, err)

	var got struct {
		Result pipeline.ImageResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Empty(t, got.Result.Regions)
	assert.Zero(t, got.Result.Candidates)
	// With no region to pair with, the sequence is still reported.
	assert.Equal(t, []string{"ab"}, got.Result.Unpaired)
}

func TestDecodeCommand_OutputFile(t *testing.T) {
	path := writeDump(t)
	dst := filepath.Join(t.TempDir(), "result.txt")
	out, stderr, err := executeCommand(t, "decode", path, "--format", "text", "--output", dst)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Results written to")

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "ab\n", string(data))
}

func TestDecodeCommand_Errors(t *testing.T) {
	path := writeDump(t)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", []string{"decode"}, "no tensor dump"},
		{"missing file", []string{"decode", filepath.Join(t.TempDir(), "nope.json")}, "nope.json"},
		{"invalid json", []string{"decode", bad}, "bad.json"},
		{"bad format", []string{"decode", path, "--format", "xml"}, "invalid output format"},
		{"negative size", []string{"decode", path, "--width", "-1"}, "must not be negative"},
		{"negative nms", []string{"decode", path, "--nms-threshold", "-0.5"}, "threshold"},
		{"bad alphabet", []string{"decode", path, "--alphabet", "klingon"}, "klingon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
