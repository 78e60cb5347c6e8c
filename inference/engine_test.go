package inference

import (
	"testing"

	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// TestEngineFunc adapts a plain function into an Engine.
func TestEngineFunc(t *testing.T) {
	out := tensor.New(tensor.WithShape(1, 1, 6), tensor.WithBacking(make([]float32, 6)))

	var seen *preprocess.Tensor
	var e Engine = EngineFunc(func(in *preprocess.Tensor) (model.Tensors, error) {
		seen = in
		return model.Tensors{out}, nil
	})

	in := &preprocess.Tensor{Float32: make([]float32, 12), Shape: []int{1, 2, 2, 3}}
	got, err := e.Infer(in)
	require.NoError(t, err)
	assert.Same(t, in, seen)
	assert.Equal(t, model.Tensors{out}, got)
	assert.NoError(t, e.Close())
}

// TestModelDescribe passes the model path through to descriptor load errors.
func TestModelDescribe(t *testing.T) {
	m := &Model{
		Path:    "yolo11n.onnx",
		Input:   model.TensorInfo{Name: "images", Dims: []int64{1, 3, 640, 640}, Type: model.DataTypeFloat32},
		Outputs: []model.TensorInfo{{Name: "output0", Dims: []int64{1, 84, 8400}, Type: model.DataTypeFloat32}},
	}

	desc, err := m.Describe(model.Options{Normalization: &model.Normalization{Mean: 0, Std: 255}, MasksNum: -1})
	require.NoError(t, err)
	assert.Equal(t, model.ConventionGrid, desc.Convention)

	_, err = m.Describe(model.Options{MasksNum: -1})
	var loadErr *model.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "yolo11n.onnx", loadErr.Path)
}
