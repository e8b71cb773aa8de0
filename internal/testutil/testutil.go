// Package testutil holds fixtures shared by unit and integration tests:
// project paths, model and runtime skips, synthetic frames and tensor dumps.
package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/textspot/internal/models"
	"github.com/MeKo-Tech/textspot/internal/onnx"
)

// GetProjectRoot returns the project root directory by finding go.mod.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("could not find go.mod file starting from %s", filepath.Dir(filename))
}

// GetTestDataDir returns the path to the testdata directory.
func GetTestDataDir(t *testing.T) string {
	t.Helper()
	root, err := GetProjectRoot()
	require.NoError(t, err, "Failed to find project root")
	return filepath.Join(root, "testdata")
}

// GetDumpsDir returns the directory holding generated tensor dumps.
func GetDumpsDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(GetTestDataDir(t), "dumps")
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// DirExists checks if a directory exists.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// modelsDir prefers TEXTSPOT_MODELS_DIR, then models/ under the project root.
func modelsDir() string {
	if env := os.Getenv(models.EnvModelsDir); env != "" {
		return env
	}
	if root, err := GetProjectRoot(); err == nil {
		return filepath.Join(root, models.DefaultModelsDir)
	}
	return models.GetModelsDir("")
}

// RequireDetectionModel returns the EAST model path or skips the test.
func RequireDetectionModel(t *testing.T) string {
	t.Helper()
	path := models.GetDetectionModelPath(modelsDir())
	if !FileExists(path) {
		t.Skipf("Detection model not available at %s, skipping", path)
	}
	return path
}

// RequireRecognitionModel returns the CTC model path or skips the test.
func RequireRecognitionModel(t *testing.T) string {
	t.Helper()
	path := models.GetRecognitionModelPath(modelsDir())
	if !FileExists(path) {
		t.Skipf("Recognition model not available at %s, skipping", path)
	}
	return path
}

// RequireONNXRuntime skips the test unless the shared library can be found.
func RequireONNXRuntime(t *testing.T) string {
	t.Helper()
	path, err := onnx.FindLibrary(false)
	if err != nil {
		t.Skipf("ONNX Runtime not available: %v", err)
	}
	return path
}
