package model

import (
	"github.com/pkg/errors"
)

// Descriptor is the immutable, load-time description of a model's input and outputs.
type Descriptor struct {
	// Input is the single image input.
	Input TensorInfo
	// Width, Height and Channels are the input image dimensions.
	Width, Height, Channels int
	// Layout is the input dimension order.
	Layout Layout
	// Normalization is nil for uint8 inputs.
	Normalization *Normalization
	// Outputs lists every output; Outputs[0] carries the detections.
	Outputs []TensorInfo
	// Convention is how Outputs[0] encodes detections.
	Convention Convention
	// NumChannel is the DenseGrid channel count, or RankedRowSize.
	NumChannel int
	// NumElements is the DenseGrid element count, or the number of ranked rows.
	NumElements int
	// NumClasses is the number of class score channels.
	NumClasses int
	// MasksNum is the number of trailing mask weight channels in a DenseGrid output.
	MasksNum int
}

// NewDescriptor validates tensor metadata and derives the model geometry.
//
// The input must be a 4D image tensor. A dimension 1 of 1 or 3 followed by two larger
// dimensions is read as NCHW, anything else as NHWC. The output convention is taken
// from opts or detected from Outputs[0]: a trailing dimension of 6 is RankedCandidates,
// a 3D [1, C, E] shape with E > C is DenseGrid.
//
// Arguments:
//   - input: The image input tensor.
//   - outputs: The output tensors in runtime order.
//   - opts: Settings not recoverable from the tensors.
//
// Returns:
//   - *Descriptor: The validated descriptor.
//   - error: A *LoadError describing the first failed check.
func NewDescriptor(input TensorInfo, outputs []TensorInfo, opts Options) (*Descriptor, error) {
	fail := func(format string, args ...any) (*Descriptor, error) {
		return nil, &LoadError{Path: opts.Path, Op: "describe", Err: errors.Errorf(format, args...)}
	}

	if len(input.Dims) != 4 {
		return fail("input %s: want 4 dimensions", input)
	}
	for _, d := range input.Dims {
		if d <= 0 {
			return fail("input %s: dimensions must be positive", input)
		}
	}

	d := &Descriptor{Input: input, Outputs: outputs}

	dims := input.Dims
	if (dims[1] == 3 || dims[1] == 1) && dims[2] > dims[1] && dims[3] > dims[1] {
		d.Layout = LayoutNCHW
		d.Channels, d.Height, d.Width = int(dims[1]), int(dims[2]), int(dims[3])
	} else {
		d.Layout = LayoutNHWC
		d.Height, d.Width, d.Channels = int(dims[1]), int(dims[2]), int(dims[3])
	}
	if d.Channels != 1 && d.Channels != 3 {
		return fail("input %s: unsupported channel count %d", input, d.Channels)
	}

	switch input.Type {
	case DataTypeFloat32:
		if opts.Normalization == nil {
			return fail("input %s: float32 input requires a normalization", input)
		}
		if opts.Normalization.Std <= 0 {
			return fail("input %s: normalization std must be positive, got %v", input, opts.Normalization.Std)
		}
		n := *opts.Normalization
		d.Normalization = &n
	case DataTypeUint8:
		if opts.Normalization != nil {
			return fail("input %s: quantized input does not take a normalization", input)
		}
	default:
		return fail("input %s: unsupported input type", input)
	}

	if len(outputs) == 0 {
		return fail("model has no outputs")
	}
	primary := outputs[0]
	for _, v := range primary.Dims {
		if v <= 0 {
			return fail("output %s: dimensions must be positive", primary)
		}
	}

	d.Convention = opts.Convention
	if d.Convention == ConventionAuto {
		d.Convention = DetectConvention(primary)
	}

	switch d.Convention {
	case ConventionRanked:
		if len(primary.Dims) < 2 || primary.Dims[len(primary.Dims)-1] != RankedRowSize {
			return fail("output %s: ranked output needs rows of %d values", primary, RankedRowSize)
		}
		d.NumChannel = RankedRowSize
		d.NumElements = primary.Elements() / RankedRowSize
	case ConventionGrid:
		if len(primary.Dims) != 3 || primary.Dims[0] != 1 {
			return fail("output %s: grid output must be [1, channels, elements]", primary)
		}
		d.NumChannel, d.NumElements = int(primary.Dims[1]), int(primary.Dims[2])

		d.MasksNum = opts.MasksNum
		if d.MasksNum < 0 {
			d.MasksNum = detectMasksNum(outputs)
		}
		d.NumClasses = d.NumChannel - GridBoxChannels - d.MasksNum
		if d.NumClasses <= 0 {
			return fail("output %s: %d channels leave no class scores with %d mask weights",
				primary, d.NumChannel, d.MasksNum)
		}
	default:
		return fail("output %s: cannot determine output convention", primary)
	}

	return d, nil
}

// DetectConvention infers the output convention from the primary output shape.
// It returns ConventionAuto when the shape matches neither convention.
func DetectConvention(primary TensorInfo) Convention {
	dims := primary.Dims
	switch {
	case len(dims) >= 2 && dims[len(dims)-1] == RankedRowSize:
		return ConventionRanked
	case len(dims) == 3 && dims[2] > dims[1]:
		return ConventionGrid
	}
	return ConventionAuto
}

// detectMasksNum reads the mask prototype count from a second 4D output, in either
// [1, masks, h, w] or [1, h, w, masks] order.
func detectMasksNum(outputs []TensorInfo) int {
	if len(outputs) < 2 || len(outputs[1].Dims) != 4 {
		return 0
	}
	dims := outputs[1].Dims
	if dims[1] < dims[2] && dims[1] < dims[3] {
		return int(dims[1])
	}
	return int(dims[3])
}

// InputElements returns Width * Height * Channels.
func (d *Descriptor) InputElements() int {
	return d.Width * d.Height * d.Channels
}

// InputShape returns the input shape in the descriptor's layout.
func (d *Descriptor) InputShape() []int {
	if d.Layout == LayoutNCHW {
		return []int{1, d.Channels, d.Height, d.Width}
	}
	return []int{1, d.Height, d.Width, d.Channels}
}
