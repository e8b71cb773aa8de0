package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/textspot/internal/testutil"
)

var dumpPlaceholder = regexp.MustCompile(`\{dump:([a-z_]+)\}`)

// theTextspotBinaryIsAvailable checks that the CLI resolves on PATH.
func (testCtx *TestContext) theTextspotBinaryIsAvailable() error {
	if _, err := exec.LookPath("textspot"); err != nil {
		return fmt.Errorf("textspot binary not found on PATH: %w", err)
	}
	return nil
}

// theSyntheticTensorDumpsAreAvailable writes every scenario into the temp dir.
func (testCtx *TestContext) theSyntheticTensorDumpsAreAvailable() error {
	for _, sc := range testutil.Scenarios() {
		if err := testutil.WriteScenario(testCtx.DumpsDir, sc); err != nil {
			return err
		}
	}
	return nil
}

// aFileWithContent writes an arbitrary file into the temp dir.
func (testCtx *TestContext) aFileWithContent(name string, content *godog.DocString) error {
	return os.WriteFile(filepath.Join(testCtx.TempDir, name), []byte(content.Content), 0o600)
}

// substituteCommandVariables expands {tmp}, {dumps} and {dump:NAME}.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
	command = strings.ReplaceAll(command, "{dumps}", testCtx.DumpsDir)
	return dumpPlaceholder.ReplaceAllStringFunc(command, func(m string) string {
		return testCtx.dumpPath(dumpPlaceholder.FindStringSubmatch(m)[1])
	})
}

// iRunCommand executes a command and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}
	return nil
}

// iDecodeScenario runs the decode command with the scenario's frame size and
// overlap threshold.
func (testCtx *TestContext) iDecodeScenario(name string) error {
	sc, err := testutil.Scenario(name)
	if err != nil {
		return err
	}
	return testCtx.iRunCommand(fmt.Sprintf("textspot decode %s --width %d --height %d --nms-threshold %g",
		testCtx.dumpPath(name), sc.Width, sc.Height, sc.Expected.NMSThreshold))
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput())
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput())
	}
	return nil
}

// theOutputShouldContain verifies stdout or stderr contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput(), expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput())
	}
	return nil
}

// theOutputShouldBe compares stdout exactly.
func (testCtx *TestContext) theOutputShouldBe(expected *godog.DocString) error {
	want := strings.TrimSpace(expected.Content)
	got := strings.TrimSpace(testCtx.LastStdout)
	if got != want {
		return fmt.Errorf("output mismatch\nwant: %q\ngot:  %q", want, got)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies stdout is a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastStdout)) {
		return fmt.Errorf("output is not valid JSON:\n%s", testCtx.LastStdout)
	}
	return nil
}

// theFileShouldExist checks a path relative to the temp dir.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.substituteCommandVariables(name)
	if !filepath.IsAbs(path) {
		path = filepath.Join(testCtx.TempDir, path)
	}
	if !testutil.FileExists(path) {
		return fmt.Errorf("file %s does not exist", path)
	}
	return nil
}

// RegisterCommonSteps registers command and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the textspot binary is available$`, testCtx.theTextspotBinaryIsAvailable)
	sc.Step(`^the synthetic tensor dumps are available$`, testCtx.theSyntheticTensorDumpsAreAvailable)
	sc.Step(`^a file "([^"]*)" with content:$`, testCtx.aFileWithContent)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^I decode scenario "([^"]*)"$`, testCtx.iDecodeScenario)

	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be:$`, testCtx.theOutputShouldBe)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
}
