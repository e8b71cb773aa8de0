package batch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/textspot/internal/common"
	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/testutil"
)

func decodedItem(t *testing.T, name string) Item {
	t.Helper()
	sc, err := testutil.Scenario(name)
	require.NoError(t, err)
	res, err := pipeline.DecodeDump(pipeline.DefaultConfig(), sc.Dump, sc.Width, sc.Height)
	require.NoError(t, err)
	return Item{File: name + ".json", Result: res}
}

func TestFormat_JSONSingleIsObject(t *testing.T) {
	out, err := Format(FormatJSON, []Item{decodedItem(t, "single_cell")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.True(t, strings.HasSuffix(out, "}\n"))

	var it Item
	require.NoError(t, json.Unmarshal([]byte(out), &it))
	assert.Equal(t, "single_cell.json", it.File)
	assert.Equal(t, "ab", it.Result.Regions[0].Text)
}

func TestFormat_JSONManyIsArray(t *testing.T) {
	items := []Item{decodedItem(t, "single_cell"), {File: "bad.json", Error: "boom"}}
	out, err := Format(FormatJSON, items)
	require.NoError(t, err)

	var got []Item
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Nil(t, got[1].Result)
	assert.Equal(t, "boom", got[1].Error)
}

func TestFormat_Text(t *testing.T) {
	out, err := Format(FormatText, []Item{decodedItem(t, "separate_words")})
	require.NoError(t, err)
	assert.Equal(t, "stop\nexit\n", out)

	out, err = Format(FormatText, []Item{
		decodedItem(t, "single_cell"),
		{File: "bad.json", Error: "boom"},
	})
	require.NoError(t, err)
	assert.Equal(t, "single_cell.json:\nab\nbad.json:\n# error: boom\n", out)
}

func TestFormat_CSV(t *testing.T) {
	out, err := Format(FormatCSV, []Item{decodedItem(t, "single_cell"), decodedItem(t, "empty")})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "# single_cell.json", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "index,cx,cy"))
	assert.True(t, strings.HasPrefix(lines[2], "0,8.00,4.00,6.00,4.00,0.00,0.900,ab,"))
	assert.Equal(t, "# empty.json", lines[3])
}

func TestFormat_Unknown(t *testing.T) {
	_, err := Format("xml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
	require.NoError(t, ValidateFormat(FormatCSV))
}

func TestFormatStats(t *testing.T) {
	r := &Result{
		Workers:  4,
		Duration: 2 * time.Second,
		Stages:   []common.Stage{{Name: "discover", Duration: time.Millisecond}},
		Stats:    Stats{Files: 3, Decoded: 2, Failed: 1, Regions: 5, ThroughputPerSec: 1},
	}
	s := FormatStats(r)
	assert.Contains(t, s, "Files:      3")
	assert.Contains(t, s, "Failed:     1")
	assert.Contains(t, s, "discover:")
	assert.Contains(t, s, "1.0 dumps/sec")
}

func TestSummarize(t *testing.T) {
	items := []Item{decodedItem(t, "separate_words"), {File: "x", Error: "e"}}
	s := summarize(items, time.Second)
	assert.Equal(t, Stats{Files: 2, Decoded: 1, Failed: 1, Regions: 2, Candidates: 36, ThroughputPerSec: 1}, s)
	assert.Zero(t, summarize(nil, 0).ThroughputPerSec)
}
