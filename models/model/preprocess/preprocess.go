// Package preprocess - Frame to input tensor conversion.
package preprocess

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/pkg/errors"
)

// Interpolation selects the resampling filter used to fit frames to the model input.
type Interpolation string

const (
	// InterpolationBilinear is bilinear resampling.
	InterpolationBilinear Interpolation = "bilinear"
	// InterpolationNearest is nearest-neighbor resampling, the cheapest option.
	InterpolationNearest Interpolation = "nearest"
)

func (i Interpolation) function() (resize.InterpolationFunction, error) {
	switch i {
	case InterpolationBilinear, "":
		return resize.Bilinear, nil
	case InterpolationNearest:
		return resize.NearestNeighbor, nil
	}
	return 0, errors.Errorf("unknown interpolation %q", i)
}

// Tensor is a model input buffer. Exactly one of Float32 and Uint8 is set.
type Tensor struct {
	// Float32 holds normalized values for float models.
	Float32 []float32
	// Uint8 holds raw channel values for quantized models.
	Uint8 []uint8
	// Shape is the input shape in the model's layout.
	Shape []int
}

// Len returns the number of elements in the populated buffer.
func (t *Tensor) Len() int {
	if t.Float32 != nil {
		return len(t.Float32)
	}
	return len(t.Uint8)
}

// Preprocessor converts frames into input tensors for one model.
type Preprocessor struct {
	desc   *model.Descriptor
	interp resize.InterpolationFunction
}

// New creates a preprocessor for the given model.
//
// Arguments:
//   - desc: The model descriptor. Its dimensions, layout, type and normalization are used.
//   - interp: The resampling filter. The empty value selects bilinear.
//
// Returns:
//   - *Preprocessor: The preprocessor.
//   - error: If the interpolation is unknown.
func New(desc *model.Descriptor, interp Interpolation) (*Preprocessor, error) {
	fn, err := interp.function()
	if err != nil {
		return nil, err
	}

	return &Preprocessor{desc: desc, interp: fn}, nil
}

// Preprocess resizes the frame to the model input size without preserving aspect ratio,
// normalizes float inputs with (value - mean) / std and lays the result out in the
// model's dimension order. Single-channel models receive luma. The frame is not modified.
//
// Arguments:
//   - img: The frame.
//
// Returns:
//   - *Tensor: A fresh buffer with exactly Width * Height * Channels elements.
//   - error: If the frame has no pixels.
func (p *Preprocessor) Preprocess(img image.Image) (*Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("frame has no pixels")
	}

	d := p.desc
	resized := resize.Resize(uint(d.Width), uint(d.Height), img, p.interp)

	out := &Tensor{Shape: d.InputShape()}
	n := d.InputElements()

	var set func(i int, v uint8)
	if d.Input.Type == model.DataTypeUint8 {
		out.Uint8 = make([]uint8, n)
		set = func(i int, v uint8) { out.Uint8[i] = v }
	} else {
		out.Float32 = make([]float32, n)
		mean, std := d.Normalization.Mean, d.Normalization.Std
		set = func(i int, v uint8) { out.Float32[i] = (float32(v) - mean) / std }
	}

	b := resized.Bounds()
	plane := d.Width * d.Height

	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			px := pixel(resized, b.Min.X+x, b.Min.Y+y)

			var channels [3]uint8
			if d.Channels == 1 {
				channels[0] = color.GrayModel.Convert(px).(color.Gray).Y
			} else {
				channels[0], channels[1], channels[2] = px.R, px.G, px.B
			}

			pos := y*d.Width + x
			for c := 0; c < d.Channels; c++ {
				if d.Layout == model.LayoutNCHW {
					set(c*plane+pos, channels[c])
				} else {
					set(pos*d.Channels+c, channels[c])
				}
			}
		}
	}

	return out, nil
}

// pixel reads an 8-bit RGBA value, taking the fast path for *image.RGBA.
func pixel(img image.Image, x, y int) color.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		i := rgba.PixOffset(x, y)
		return color.RGBA{R: rgba.Pix[i], G: rgba.Pix[i+1], B: rgba.Pix[i+2], A: rgba.Pix[i+3]}
	}

	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}
