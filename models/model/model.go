// Package model - Model tensor descriptors, output conventions and the decoder contract.
package model

import (
	"fmt"
	"strings"

	"github.com/nvr-ai/go-detect/models/postprocess"
	"gorgonia.org/tensor"
)

// DataType is the element type of a model tensor.
type DataType string

const (
	// DataTypeFloat32 is a 32-bit floating point tensor.
	DataTypeFloat32 DataType = "float32"
	// DataTypeUint8 is an 8-bit quantized tensor.
	DataTypeUint8 DataType = "uint8"
	// DataTypeOther is any element type the pipeline cannot feed or decode.
	DataTypeOther DataType = "other"
)

// Layout is the dimension order of an image input tensor.
type Layout string

const (
	// LayoutNHWC is [batch, height, width, channels].
	LayoutNHWC Layout = "nhwc"
	// LayoutNCHW is [batch, channels, height, width].
	LayoutNCHW Layout = "nchw"
)

// Convention identifies how the primary output tensor encodes detections.
type Convention string

const (
	// ConventionAuto infers the convention from the primary output shape.
	ConventionAuto Convention = ""
	// ConventionRanked is a fixed-size ranked candidate list of
	// [left, top, right, bottom, confidence, class] rows. No suppression needed.
	ConventionRanked Convention = "ranked"
	// ConventionGrid is a channel-major [1, channels, elements] grid of
	// cx, cy, w, h, per-class scores and optional mask weights. Needs suppression.
	ConventionGrid Convention = "grid"
)

// RankedRowSize is the number of values per RankedCandidates row.
const RankedRowSize = 6

// GridBoxChannels is the number of leading box channels in a DenseGrid output.
const GridBoxChannels = 4

// TensorInfo describes one model input or output.
type TensorInfo struct {
	// Name is the runtime tensor name, or its index for runtimes without names.
	Name string `json:"name" yaml:"name"`
	// Dims is the tensor shape. Dynamic dimensions are reported as non-positive values.
	Dims []int64 `json:"dims" yaml:"dims"`
	// Type is the element type.
	Type DataType `json:"type" yaml:"type"`
}

// String implements fmt.Stringer.
func (t TensorInfo) String() string {
	dims := make([]string, len(t.Dims))
	for i, d := range t.Dims {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s[%s]:%s", t.Name, strings.Join(dims, ","), t.Type)
}

// Elements returns the product of all dimensions.
func (t TensorInfo) Elements() int {
	n := 1
	for _, d := range t.Dims {
		n *= int(d)
	}
	return n
}

// Normalization is the per-model pixel transform value' = (value - Mean) / Std.
type Normalization struct {
	Mean float32 `json:"mean" yaml:"mean"`
	Std  float32 `json:"std" yaml:"std"`
}

// Tensors holds raw output tensors in Descriptor.Outputs order.
type Tensors []*tensor.Dense

// Decoder turns raw output tensors into pixel-space candidates.
//
// Implementations are selected once per model from its Descriptor.
type Decoder interface {
	// Decode converts the raw outputs of one inference into candidates scaled to
	// an imageWidth x imageHeight frame.
	Decode(outputs Tensors, imageWidth, imageHeight int) ([]postprocess.Candidate, error)
	// Suppress reports whether the decoded candidates still need Non-Maximum Suppression.
	Suppress() bool
}

// Float32s extracts the float32 backing data of a tensor, checking its element count.
//
// Arguments:
//   - outputs: The raw outputs of one inference.
//   - index: The output position.
//   - name: The output name, used in errors.
//   - want: The expected number of elements.
//
// Returns:
//   - []float32: The tensor data.
//   - error: A *ShapeMismatchError if the output is missing, not float32, or has the wrong size.
func Float32s(outputs Tensors, index int, name string, want int) ([]float32, error) {
	if index >= len(outputs) || outputs[index] == nil {
		return nil, &ShapeMismatchError{Output: name, Reason: "output missing"}
	}

	data, ok := outputs[index].Data().([]float32)
	if !ok {
		return nil, &ShapeMismatchError{
			Output: name,
			Reason: fmt.Sprintf("element type %s, want float32", outputs[index].Dtype()),
		}
	}
	if len(data) != want {
		return nil, &ShapeMismatchError{Output: name, Want: want, Got: len(data)}
	}

	return data, nil
}
