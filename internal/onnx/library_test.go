package onnx

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
)

// fakeProject creates <tmp>/project/go.mod with a fake CPU library and
// changes into it.
func fakeProject(t *testing.T) (string, string) {
	t.Helper()
	projectDir := filepath.Join(t.TempDir(), "project")
	libName, err := getLibraryName()
	if err != nil {
		t.Skipf("Unsupported OS: %s", runtime.GOOS)
	}
	libDir := filepath.Join(projectDir, "onnxruntime", "lib")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatalf("Failed to create lib directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, "go.mod"), []byte("module test\n\ngo 1.25\n"), 0o644); err != nil {
		t.Fatalf("Failed to create go.mod: %v", err)
	}
	libPath := filepath.Join(libDir, libName)
	if err := os.WriteFile(libPath, []byte("fake library"), 0o644); err != nil {
		t.Fatalf("Failed to create fake library: %v", err)
	}
	t.Chdir(projectDir)
	return projectDir, libPath
}

func TestGetSystemLibraryPaths(t *testing.T) {
	cpu := getSystemLibraryPaths(false)
	gpu := getSystemLibraryPaths(true)
	if len(cpu) != 3 {
		t.Errorf("getSystemLibraryPaths(false) returned %d paths, want 3", len(cpu))
	}
	if len(gpu) != len(cpu)+1 {
		t.Errorf("getSystemLibraryPaths(true) returned %d paths, want %d", len(gpu), len(cpu)+1)
	}
	if gpu[0] != "/opt/onnxruntime/gpu/lib/libonnxruntime.so" {
		t.Errorf("GPU library should come first, got %s", gpu[0])
	}
}

func TestGetLibraryName(t *testing.T) {
	name, err := getLibraryName()
	want := map[string]string{osLinux: libLinux, osDarwin: libDarwin, osWindows: libWindows}[runtime.GOOS]
	if want == "" {
		if err == nil {
			t.Errorf("getLibraryName() should fail on %s", runtime.GOOS)
		}
		return
	}
	if err != nil || name != want {
		t.Errorf("getLibraryName() = %q, %v; want %q", name, err, want)
	}
}

func TestLibraryCandidates_Order(t *testing.T) {
	projectDir, libPath := fakeProject(t)
	override := filepath.Join(t.TempDir(), "custom.so")
	t.Setenv(EnvLibraryPath, override)

	paths := LibraryCandidates(true)
	if paths[0] != override {
		t.Errorf("first candidate = %s, want env override %s", paths[0], override)
	}
	if paths[len(paths)-1] != libPath {
		t.Errorf("last candidate = %s, want project CPU library %s", paths[len(paths)-1], libPath)
	}
	gpuLib := filepath.Join(projectDir, "onnxruntime", "gpu", "lib", filepath.Base(libPath))
	if idx := slices.Index(paths, gpuLib); idx != len(paths)-2 {
		t.Errorf("project GPU library at %d, want just before the CPU one: %v", idx, paths)
	}
	if slices.Contains(LibraryCandidates(false), gpuLib) {
		t.Error("CPU search should not include the GPU library")
	}
}

func TestFindLibrary_EnvOverride(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvLibraryPath, lib)

	got, err := FindLibrary(false)
	if err != nil {
		t.Fatalf("FindLibrary() failed: %v", err)
	}
	if got != lib {
		t.Errorf("FindLibrary() = %s, want %s", got, lib)
	}
	if err := SetONNXLibraryPath(false); err != nil {
		t.Errorf("SetONNXLibraryPath() failed: %v", err)
	}
}

func TestFindLibrary_ProjectFallback(t *testing.T) {
	_, libPath := fakeProject(t)
	t.Setenv(EnvLibraryPath, "")

	got, err := FindLibrary(false)
	if err != nil {
		t.Fatalf("FindLibrary() failed: %v", err)
	}
	// A system install wins over the project copy.
	if !slices.Contains(getSystemLibraryPaths(false), got) && got != libPath {
		t.Errorf("FindLibrary() = %s, want %s", got, libPath)
	}
}

func TestFindLibrary_NotFound(t *testing.T) {
	for _, p := range getSystemLibraryPaths(false) {
		if _, err := os.Stat(p); err == nil {
			t.Skipf("system library present at %s", p)
		}
	}
	t.Chdir(t.TempDir())
	t.Setenv(EnvLibraryPath, filepath.Join(t.TempDir(), "missing.so"))

	_, err := FindLibrary(false)
	if !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("FindLibrary() error = %v, want ErrLibraryNotFound", err)
	}
}
