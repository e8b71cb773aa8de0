package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/textspot/internal/testutil"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastStdout    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	WorkingDir string
	TempDir    string
	DumpsDir   string
	EnvVars    []string

	// In-process decode server
	HTTPTestServer *HTTPTestServerWrapper

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a new test context rooted at the project directory.
func NewTestContext() (*TestContext, error) {
	workingDir, err := testutil.GetProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "textspot-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		WorkingDir: workingDir,
		TempDir:    tempDir,
		DumpsDir:   filepath.Join(tempDir, "dumps"),
		EnvVars:    []string{},
	}, nil
}

// Cleanup stops the server and removes the temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// LastOutput returns stdout followed by stderr.
func (testCtx *TestContext) LastOutput() string {
	return testCtx.LastStdout + testCtx.LastStderr
}

// dumpPath returns the path of a written scenario dump.
func (testCtx *TestContext) dumpPath(name string) string {
	return testutil.DumpPath(testCtx.DumpsDir, name)
}
