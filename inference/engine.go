// Package inference - Inference engine contract and loaded model handle.
package inference

import (
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
)

// Engine runs a loaded model on one input tensor.
//
// Engines are not required to be safe for concurrent use; the detector serializes calls.
type Engine interface {
	// Infer runs the model and returns its raw outputs in model output order.
	Infer(input *preprocess.Tensor) (model.Tensors, error)
	// Close releases native resources. It is called exactly once.
	Close() error
}

// EngineFunc adapts a function to the Engine interface. Close is a no-op.
type EngineFunc func(input *preprocess.Tensor) (model.Tensors, error)

// Infer implements Engine.
func (f EngineFunc) Infer(input *preprocess.Tensor) (model.Tensors, error) {
	return f(input)
}

// Close implements Engine.
func (f EngineFunc) Close() error {
	return nil
}

// Model is a loaded model: its engine plus the tensor metadata read at load time.
type Model struct {
	// Path is the model file.
	Path string
	// Backend names the runtime that loaded the model.
	Backend string
	// Engine runs the model.
	Engine Engine
	// Input is the single image input.
	Input model.TensorInfo
	// Outputs lists the outputs in runtime order.
	Outputs []model.TensorInfo
	// Names holds class names embedded in the model metadata, possibly empty.
	Names []string
}

// Describe builds the model descriptor from the load-time tensor metadata.
//
// Arguments:
//   - opts: The settings not recoverable from the tensors.
//
// Returns:
//   - *model.Descriptor: The descriptor.
//   - error: A *model.LoadError if the tensors do not describe a supported model.
func (m *Model) Describe(opts model.Options) (*model.Descriptor, error) {
	opts.Path = m.Path
	return model.NewDescriptor(m.Input, m.Outputs, opts)
}
