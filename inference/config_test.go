package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfigResolve infers the backend from the extension unless one is set explicitly.
func TestConfigResolve(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		want    Backend
		wantErr bool
	}{
		{"onnx extension", Config{ModelPath: "models/yolo11n.onnx"}, BackendONNX, false},
		{"tflite extension", Config{Backend: BackendAuto, ModelPath: "yolo11n_float32.TFLITE"}, BackendTFLite, false},
		{"explicit backend wins", Config{Backend: BackendTFLite, ModelPath: "model.bin"}, BackendTFLite, false},
		{"unknown extension", Config{ModelPath: "model.pt"}, "", true},
		{"unknown backend", Config{Backend: "openvino", ModelPath: "model.onnx"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.config.Resolve()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
