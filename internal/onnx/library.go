package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/textspot/internal/models"
)

// EnvLibraryPath names an ONNX Runtime shared library to use before any
// search path.
const EnvLibraryPath = "TEXTSPOT_ONNXRUNTIME_LIB"

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// ErrLibraryNotFound is returned when no candidate library file exists.
var ErrLibraryNotFound = errors.New("ONNX Runtime library not found")

// getSystemLibraryPaths returns system library paths, GPU builds first when useGPU is set.
func getSystemLibraryPaths(useGPU bool) []string {
	paths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	if useGPU {
		paths = append([]string{"/opt/onnxruntime/gpu/lib/libonnxruntime.so"}, paths...)
	}
	return paths
}

// getLibraryName returns the library filename for the current OS.
func getLibraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LibraryCandidates lists the paths FindLibrary tries, in order: the
// TEXTSPOT_ONNXRUNTIME_LIB override, system paths, then onnxruntime/ under
// the project root.
func LibraryCandidates(useGPU bool) []string {
	var paths []string
	if env := os.Getenv(EnvLibraryPath); env != "" {
		paths = append(paths, env)
	}
	paths = append(paths, getSystemLibraryPaths(useGPU)...)

	root, err := models.FindProjectRoot()
	if err != nil {
		return paths
	}
	name, err := getLibraryName()
	if err != nil {
		return paths
	}
	if useGPU {
		paths = append(paths, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
	}
	return append(paths, filepath.Join(root, "onnxruntime", "lib", name))
}

// FindLibrary returns the first existing library candidate.
func FindLibrary(useGPU bool) (string, error) {
	candidates := LibraryCandidates(useGPU)
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (tried %d paths, set %s to override)", ErrLibraryNotFound, len(candidates), EnvLibraryPath)
}

// SetONNXLibraryPath points onnxruntime_go at the library FindLibrary picks.
func SetONNXLibraryPath(useGPU bool) error {
	path, err := FindLibrary(useGPU)
	if err != nil {
		return err
	}
	slog.Debug("Using ONNX Runtime library", "path", path, "gpu", useGPU)
	onnxruntime_go.SetSharedLibraryPath(path)
	return nil
}
