package inference

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Backend is the runtime used to execute a model.
type Backend string

const (
	// BackendAuto picks the runtime from the model file extension.
	BackendAuto Backend = "auto"
	// BackendONNX runs .onnx models on ONNX Runtime.
	BackendONNX Backend = "onnx"
	// BackendTFLite runs .tflite models on TensorFlow Lite.
	BackendTFLite Backend = "tflite"
)

// Config selects and configures the runtime for a model.
type Config struct {
	// Backend specifies the backend to use.
	Backend Backend `json:"backend" yaml:"backend"`
	// ModelPath is the model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath is the onnxruntime shared library. Empty uses the platform default.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// Threads is the runtime thread count. Zero keeps the backend default.
	Threads int `json:"threads" yaml:"threads"`
}

// Resolve returns the concrete backend for the config.
//
// Returns:
//   - Backend: BackendONNX or BackendTFLite.
//   - error: If the backend is unknown or cannot be inferred from the extension.
func (c Config) Resolve() (Backend, error) {
	switch c.Backend {
	case BackendONNX, BackendTFLite:
		return c.Backend, nil
	case BackendAuto, "":
		switch strings.ToLower(filepath.Ext(c.ModelPath)) {
		case ".onnx":
			return BackendONNX, nil
		case ".tflite":
			return BackendTFLite, nil
		}
		return "", errors.Errorf("cannot infer backend from %q", c.ModelPath)
	}
	return "", errors.Errorf("no matching backend registered: %s", c.Backend)
}
