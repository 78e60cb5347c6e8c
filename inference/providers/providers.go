// Package providers - Runtime backend selection for model loading.
package providers

import (
	"os"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/onnx"
	"github.com/nvr-ai/go-detect/inference/tflite"
	"github.com/nvr-ai/go-detect/models/model"
	"go.uber.org/zap"
)

// Open loads the model on the configured backend.
//
// Arguments:
//   - cfg: The backend configuration.
//   - logger: The logger passed to the backend.
//
// Returns:
//   - *inference.Model: The loaded model.
//   - error: A *model.LoadError if the backend cannot be selected or the model cannot be loaded.
func Open(cfg inference.Config, logger *zap.Logger) (*inference.Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := cfg.Resolve()
	if err != nil {
		return nil, &model.LoadError{Path: cfg.ModelPath, Op: "backend", Err: err}
	}

	switch backend {
	case inference.BackendTFLite:
		return tflite.Open(cfg.ModelPath, tflite.Config{Threads: cfg.Threads}, logger)
	default:
		lib := cfg.LibraryPath
		if lib == "" {
			lib = GetSharedLibPath()
			if _, err := os.Stat(lib); err != nil {
				logger.Debug("bundled onnxruntime not found, using system search path", zap.String("path", lib))
				lib = ""
			}
		}
		return onnx.Open(cfg.ModelPath, onnx.Config{LibraryPath: lib, Threads: cfg.Threads}, logger)
	}
}
