package models

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Model file names.
const (
	// DetectionEAST is the EAST text detector exported at 256×256.
	DetectionEAST = "east_text_detection_256x256.onnx"

	// RecognitionTR12 is text-recognition-0012 taking a 120×32 grayscale crop.
	RecognitionTR12 = "text-recognition-0012.onnx"

	// AlphabetDefault lists the 36 symbols of the default recognizer, one per line.
	AlphabetDefault = "alphabet_0-9a-z.txt"
)

// Model type categories for organized directory structure.
const (
	TypeDetection   = "detection"
	TypeRecognition = "recognition"
	TypeAlphabets   = "alphabets"
)

// DefaultModelsDir is used when neither a flag nor the environment names one.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "TEXTSPOT_MODELS_DIR"

// ErrModelNotFound is returned when a model or alphabet file is missing.
var ErrModelNotFound = errors.New("model file not found")

// FindProjectRoot walks up from the working directory to the nearest go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// ModelInfo contains metadata about a model.
type ModelInfo struct {
	Name        string
	Type        string
	Description string
	Filename    string
}

// GetModelsDir picks the models directory: the explicit argument, then
// TEXTSPOT_MODELS_DIR, then <project root>/models, then ./models.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := FindProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath prefers <dir>/<type>/<file> and falls back to <dir>/<file>.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(baseDir, filename)
}

// GetDetectionModelPath returns the path of the EAST detector.
func GetDetectionModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeDetection, DetectionEAST)
}

// GetRecognitionModelPath returns the path of the CTC recognizer.
func GetRecognitionModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeRecognition, RecognitionTR12)
}

// GetAlphabetPath returns the path of an alphabet file.
func GetAlphabetPath(modelsDir, filename string) string {
	return ResolveModelPath(modelsDir, TypeAlphabets, filename)
}

// ValidateModelExists reports ErrModelNotFound for a missing or directory path.
func ValidateModelExists(modelPath string) error {
	fi, err := os.Stat(modelPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	case err != nil:
		return fmt.Errorf("stat %s: %w", modelPath, err)
	case fi.IsDir():
		return fmt.Errorf("%w: %s is a directory", ErrModelNotFound, modelPath)
	}
	return nil
}

// ListAvailableModels returns the models the pipeline knows how to load.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "east",
			Type:        TypeDetection,
			Description: "EAST scene text detector, 256x256 input, stride 4",
			Filename:    DetectionEAST,
		},
		{
			Name:        "text-recognition-0012",
			Type:        TypeRecognition,
			Description: "CTC text recognizer, 120x32 grayscale input, 37 classes",
			Filename:    RecognitionTR12,
		},
		{
			Name:        "alphabet-default",
			Type:        TypeAlphabets,
			Description: "Digits and lowercase latin letters",
			Filename:    AlphabetDefault,
		},
	}
}

// ModelStatus is a known model resolved against a models directory.
type ModelStatus struct {
	ModelInfo
	Path    string
	Present bool
	Size    int64
}

// Inventory resolves every known model under modelsDir.
func Inventory(modelsDir string) []ModelStatus {
	infos := ListAvailableModels()
	out := make([]ModelStatus, len(infos))
	for i, info := range infos {
		st := ModelStatus{ModelInfo: info, Path: ResolveModelPath(modelsDir, info.Type, info.Filename)}
		if fi, err := os.Stat(st.Path); err == nil && !fi.IsDir() {
			st.Present, st.Size = true, fi.Size()
		}
		out[i] = st
	}
	return out
}
