package support

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/textspot/internal/batch"
	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/testutil"
)

const geometryTolerance = 1e-3

// lastResult parses the most recent decode result from the CLI or server.
func (testCtx *TestContext) lastResult() (*pipeline.ImageResult, error) {
	if testCtx.LastHTTPResponse != "" {
		var resp struct {
			Success bool                  `json:"success"`
			Result  *pipeline.ImageResult `json:"result"`
			Error   string                `json:"error"`
		}
		if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
			return nil, fmt.Errorf("invalid response JSON: %w\n%s", err, testCtx.LastHTTPResponse)
		}
		if !resp.Success || resp.Result == nil {
			return nil, fmt.Errorf("request failed: %s", resp.Error)
		}
		return resp.Result, nil
	}
	var out struct {
		File   string                `json:"file"`
		Result *pipeline.ImageResult `json:"result"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &out); err != nil {
		return nil, fmt.Errorf("invalid result JSON: %w\n%s", err, testCtx.LastStdout)
	}
	if out.Result == nil {
		return nil, fmt.Errorf("no result in output:\n%s", testCtx.LastStdout)
	}
	return out.Result, nil
}

func near(a, b float64) bool { return math.Abs(a-b) <= geometryTolerance }

// matchExpected compares a decode result with a scenario expectation.
func matchExpected(res *pipeline.ImageResult, exp testutil.Expected) error {
	if res.Candidates != exp.Candidates {
		return fmt.Errorf("expected %d candidates, got %d", exp.Candidates, res.Candidates)
	}
	if len(res.Regions) != len(exp.Regions) {
		return fmt.Errorf("expected %d regions, got %d", len(exp.Regions), len(res.Regions))
	}
	for i, want := range exp.Regions {
		got := res.Regions[i]
		if !near(got.Rect.Center.X, want.CX) || !near(got.Rect.Center.Y, want.CY) {
			return fmt.Errorf("region %d: expected centre (%g, %g), got (%g, %g)",
				i, want.CX, want.CY, got.Rect.Center.X, got.Rect.Center.Y)
		}
		if !near(got.Rect.Width(), want.Width) || !near(got.Rect.Height(), want.Height) {
			return fmt.Errorf("region %d: expected size %gx%g, got %gx%g",
				i, want.Width, want.Height, got.Rect.Width(), got.Rect.Height())
		}
		if !near(got.Crop.AngleDegrees, want.AngleDeg) {
			return fmt.Errorf("region %d: expected angle %g, got %g", i, want.AngleDeg, got.Crop.AngleDegrees)
		}
		if got.Text != want.Text {
			return fmt.Errorf("region %d: expected text %q, got %q", i, want.Text, got.Text)
		}
	}
	if fmt.Sprint(res.Unpaired) != fmt.Sprint(exp.Unpaired) {
		return fmt.Errorf("expected unpaired %v, got %v", exp.Unpaired, res.Unpaired)
	}
	return nil
}

// theResultShouldMatchScenario compares with the expectation file on disk.
func (testCtx *TestContext) theResultShouldMatchScenario(name string) error {
	exp, err := testutil.LoadExpected(testutil.ExpectedPath(testCtx.DumpsDir, name))
	if err != nil {
		return err
	}
	res, err := testCtx.lastResult()
	if err != nil {
		return err
	}
	return matchExpected(res, exp)
}

func (testCtx *TestContext) theResultShouldHaveRegions(n int) error {
	res, err := testCtx.lastResult()
	if err != nil {
		return err
	}
	if len(res.Regions) != n {
		return fmt.Errorf("expected %d regions, got %d", n, len(res.Regions))
	}
	return nil
}

func (testCtx *TestContext) theResultShouldReportCandidates(n int) error {
	res, err := testCtx.lastResult()
	if err != nil {
		return err
	}
	if res.Candidates != n {
		return fmt.Errorf("expected %d candidates, got %d", n, res.Candidates)
	}
	return nil
}

func (testCtx *TestContext) regionShouldRead(i int, text string) error {
	res, err := testCtx.lastResult()
	if err != nil {
		return err
	}
	if i < 0 || i >= len(res.Regions) {
		return fmt.Errorf("region %d out of range (have %d)", i, len(res.Regions))
	}
	if res.Regions[i].Text != text {
		return fmt.Errorf("region %d: expected %q, got %q", i, text, res.Regions[i].Text)
	}
	return nil
}

func (testCtx *TestContext) regionShouldBeCentredAt(i int, x, y float64) error {
	res, err := testCtx.lastResult()
	if err != nil {
		return err
	}
	if i < 0 || i >= len(res.Regions) {
		return fmt.Errorf("region %d out of range (have %d)", i, len(res.Regions))
	}
	c := res.Regions[i].Rect.Center
	if !near(c.X, x) || !near(c.Y, y) {
		return fmt.Errorf("region %d: expected centre (%g, %g), got (%g, %g)", i, x, y, c.X, c.Y)
	}
	return nil
}

func (testCtx *TestContext) theUnpairedTextShouldBe(text string) error {
	res, err := testCtx.lastResult()
	if err != nil {
		return err
	}
	if len(res.Unpaired) != 1 || res.Unpaired[0] != text {
		return fmt.Errorf("expected unpaired [%s], got %v", text, res.Unpaired)
	}
	return nil
}

// RegisterDecodeSteps registers result assertions shared by CLI and server.
func (testCtx *TestContext) RegisterDecodeSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the result should match scenario "([^"]*)"$`, testCtx.theResultShouldMatchScenario)
	sc.Step(`^the result should have (\d+) regions?$`, testCtx.theResultShouldHaveRegions)
	sc.Step(`^the result should report (\d+) candidates?$`, testCtx.theResultShouldReportCandidates)
	sc.Step(`^region (\d+) should read "([^"]*)"$`, testCtx.regionShouldRead)
	sc.Step(`^region (\d+) should be centred at \(([-0-9.]+), ([-0-9.]+)\)$`, testCtx.regionShouldBeCentredAt)
	sc.Step(`^the unpaired text should be "([^"]*)"$`, testCtx.theUnpairedTextShouldBe)
	sc.Step(`^the batch output should list (\d+) dumps$`, testCtx.theBatchOutputShouldList)
	sc.Step(`^batch item "([^"]*)" should have (\d+) regions?$`, testCtx.batchItemShouldHaveRegions)
	sc.Step(`^batch item "([^"]*)" should report an error$`, testCtx.batchItemShouldReportError)
}

// batchItems parses a JSON array printed by the batch command.
func (testCtx *TestContext) batchItems() ([]batch.Item, error) {
	var items []batch.Item
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &items); err != nil {
		return nil, fmt.Errorf("invalid batch JSON: %w\n%s", err, testCtx.LastStdout)
	}
	return items, nil
}

// batchItem finds the item decoded from <name>.json.
func (testCtx *TestContext) batchItem(name string) (batch.Item, error) {
	items, err := testCtx.batchItems()
	if err != nil {
		return batch.Item{}, err
	}
	for _, it := range items {
		if filepath.Base(it.File) == name+".json" {
			return it, nil
		}
	}
	return batch.Item{}, fmt.Errorf("no batch item for %q among %d items", name, len(items))
}

func (testCtx *TestContext) theBatchOutputShouldList(n int) error {
	items, err := testCtx.batchItems()
	if err != nil {
		return err
	}
	if len(items) != n {
		return fmt.Errorf("expected %d batch items, got %d", n, len(items))
	}
	return nil
}

func (testCtx *TestContext) batchItemShouldHaveRegions(name string, n int) error {
	it, err := testCtx.batchItem(name)
	if err != nil {
		return err
	}
	if it.Result == nil {
		return fmt.Errorf("%s failed: %s", name, it.Error)
	}
	if len(it.Result.Regions) != n {
		return fmt.Errorf("%s: expected %d regions, got %d", name, n, len(it.Result.Regions))
	}
	return nil
}

func (testCtx *TestContext) batchItemShouldReportError(name string) error {
	it, err := testCtx.batchItem(name)
	if err != nil {
		return err
	}
	if it.Error == "" {
		return fmt.Errorf("%s: expected an error", name)
	}
	return nil
}
