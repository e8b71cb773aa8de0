package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/textspot/internal/onnx/mock"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// Class indices in the OpenVINO alphabet (digits, then a-z, blank last).
const (
	classA     = 10
	classB     = 11
	classE     = 14
	classI     = 18
	classO     = 24
	classP     = 25
	classS     = 28
	classT     = 29
	classX     = 33
	classBlank = 36
	numClasses = 37
)

// ScenarioStride is the cell stride every scenario is built for.
const ScenarioStride = 4

// ExpectedRegion is one region a scenario must decode to, in frame pixels.
type ExpectedRegion struct {
	CX       float64 `json:"cx"`
	CY       float64 `json:"cy"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	AngleDeg float64 `json:"angle_deg"`
	Text     string  `json:"text,omitempty"`
}

// Expected describes the decode result of a scenario.
type Expected struct {
	NMSThreshold float64          `json:"nms_threshold"`
	Candidates   int              `json:"candidates"`
	Regions      []ExpectedRegion `json:"regions"`
	Unpaired     []string         `json:"unpaired,omitempty"`
}

// DumpScenario is a synthetic network output with a known decode result.
// Scenarios use the default EAST layer names and the OpenVINO alphabet.
type DumpScenario struct {
	Name        string
	Description string
	Width       int // frame size the regions are reported in
	Height      int
	Dump        tensors.Dump
	Expected    Expected
}

func sequences(paths ...[]int) []tensors.Tensor {
	out := make([]tensors.Tensor, 0, len(paths))
	for _, p := range paths {
		out = append(out, mock.NewGreedyPathLogits(p, numClasses, false, 5, -5))
	}
	return out
}

func singleCell(angle float32) mock.EASTOutput {
	out := mock.NewEASTOutput(4, 4)
	out.SetCell(1, 2, 0.9, [4]float32{2, 3, 2, 3}, angle)
	return out
}

func overlappingPair() mock.EASTOutput {
	out := mock.NewEASTOutput(16, 16)
	out.FillBox(8, 8, 40, 24, ScenarioStride, 0.9)
	out.FillBox(12, 8, 44, 24, ScenarioStride, 0.8)
	return out
}

// Scenarios returns the catalogue of synthetic dumps. Each call builds fresh
// tensors, so callers may modify the result.
func Scenarios() []DumpScenario {
	layers := tensors.DefaultEASTLayers()

	single := singleCell(0).Dump(layers)
	single.Sequences = sequences([]int{classA, classBlank, classB})

	words := mock.NewEASTOutput(16, 16)
	words.FillBox(4, 4, 28, 16, ScenarioStride, 0.95)
	words.FillBox(36, 40, 60, 52, ScenarioStride, 0.7)
	wordsDump := words.Dump(layers)
	wordsDump.Sequences = sequences(
		[]int{classS, classS, classBlank, classT, classO, classO, classBlank, classP},
		[]int{classE, classX, classI, classT},
	)

	surplus := singleCell(0).Dump(layers)
	surplus.Sequences = sequences([]int{classA, classBlank, classB}, []int{classE, classX, classI, classT})

	return []DumpScenario{
		{
			Name:        "single_cell",
			Description: "one confident cell decoding to a 6x4 box with text",
			Width:       16, Height: 16,
			Dump: single,
			Expected: Expected{
				NMSThreshold: 0.3,
				Candidates:   1,
				Regions:      []ExpectedRegion{{CX: 8, CY: 4, Width: 6, Height: 4, Text: "ab"}},
			},
		},
		{
			Name:        "rotated",
			Description: "one cell with a 0.25 rad angle",
			Width:       16, Height: 16,
			Dump: singleCell(0.25).Dump(layers),
			Expected: Expected{
				NMSThreshold: 0.3,
				Candidates:   1,
				Regions:      []ExpectedRegion{{CX: 8.4015, CY: 3.1956, Width: 6, Height: 4, AngleDeg: -14.3239}},
			},
		},
		{
			Name:        "overlapping_pair",
			Description: "two overlapping boxes merged by suppression",
			Width:       64, Height: 64,
			Dump: overlappingPair().Dump(layers),
			Expected: Expected{
				NMSThreshold: 0.3,
				Candidates:   36,
				Regions:      []ExpectedRegion{{CX: 24, CY: 16, Width: 32, Height: 16}},
			},
		},
		{
			Name:        "overlapping_pair_loose",
			Description: "the same boxes kept apart by a 0.9 overlap threshold",
			Width:       64, Height: 64,
			Dump: overlappingPair().Dump(layers),
			Expected: Expected{
				NMSThreshold: 0.9,
				Candidates:   36,
				Regions: []ExpectedRegion{
					{CX: 24, CY: 16, Width: 32, Height: 16},
					{CX: 28, CY: 16, Width: 32, Height: 16},
				},
			},
		},
		{
			Name:        "separate_words",
			Description: "two disjoint words in descending score order",
			Width:       64, Height: 64,
			Dump: wordsDump,
			Expected: Expected{
				NMSThreshold: 0.3,
				Candidates:   36,
				Regions: []ExpectedRegion{
					{CX: 16, CY: 10, Width: 24, Height: 12, Text: "stop"},
					{CX: 48, CY: 46, Width: 24, Height: 12, Text: "exit"},
				},
			},
		},
		{
			Name:        "surplus_sequence",
			Description: "more recognition outputs than regions",
			Width:       16, Height: 16,
			Dump: surplus,
			Expected: Expected{
				NMSThreshold: 0.3,
				Candidates:   1,
				Regions:      []ExpectedRegion{{CX: 8, CY: 4, Width: 6, Height: 4, Text: "ab"}},
				Unpaired:     []string{"exit"},
			},
		},
		{
			Name:        "empty",
			Description: "no cell above the score threshold",
			Width:       32, Height: 32,
			Dump: mock.NewEASTOutput(8, 8).Dump(layers),
			Expected: Expected{
				NMSThreshold: 0.3,
				Regions:      []ExpectedRegion{},
			},
		},
	}
}

// Scenario returns the named scenario.
func Scenario(name string) (DumpScenario, error) {
	for _, sc := range Scenarios() {
		if sc.Name == name {
			return sc, nil
		}
	}
	return DumpScenario{}, fmt.Errorf("unknown scenario %q", name)
}

// DumpPath returns <dir>/<name>.json.
func DumpPath(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

// ExpectedPath returns <dir>/<name>.expected.json.
func ExpectedPath(dir, name string) string {
	return filepath.Join(dir, name+".expected.json")
}

// WriteScenario saves the dump and its expected result into dir.
func WriteScenario(dir string, sc DumpScenario) error {
	if err := EnsureDir(dir); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := tensors.SaveDump(DumpPath(dir, sc.Name), sc.Dump); err != nil {
		return fmt.Errorf("save dump %s: %w", sc.Name, err)
	}
	data, err := json.MarshalIndent(sc.Expected, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ExpectedPath(dir, sc.Name), append(data, '\n'), 0o600)
}

// LoadExpected reads an expected-result file written by WriteScenario.
func LoadExpected(path string) (Expected, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: fixture path
	if err != nil {
		return Expected{}, err
	}
	var exp Expected
	if err := json.Unmarshal(data, &exp); err != nil {
		return Expected{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return exp, nil
}
