// Package grid - decoder for channel-major dense grid outputs.
//
// YOLOv8/v11 style heads emit [1, C, E]: for every one of E elements, channels 0-3
// hold cx, cy, w, h in normalized coordinates, the next channels hold per-class
// scores and any remaining channels hold segmentation mask weights.
package grid

import (
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
)

// BoxPolicy decides what happens to decoded boxes that extend outside [0,1].
type BoxPolicy string

const (
	// BoxPolicyDrop discards boxes with any corner outside [0,1].
	BoxPolicyDrop BoxPolicy = "drop"
	// BoxPolicyClamp clamps the corners of such boxes into [0,1].
	BoxPolicyClamp BoxPolicy = "clamp"
)

// Decoder decodes DenseGrid outputs.
type Decoder struct {
	output    string
	channels  int
	elements  int
	classes   int
	masks     int
	threshold float32
	policy    BoxPolicy
}

// New creates a grid decoder for the model's primary output.
//
// Arguments:
//   - desc: The model descriptor. Its primary output must use model.ConventionGrid.
//   - threshold: Elements whose best class score is below this value are discarded.
//   - policy: How boxes outside [0,1] are handled. The empty value selects BoxPolicyDrop.
//
// Returns:
//   - *Decoder: The decoder.
//   - error: If the policy is unknown.
func New(desc *model.Descriptor, threshold float32, policy BoxPolicy) (*Decoder, error) {
	switch policy {
	case "":
		policy = BoxPolicyDrop
	case BoxPolicyDrop, BoxPolicyClamp:
	default:
		return nil, errors.Errorf("unknown box policy %q", policy)
	}

	return &Decoder{
		output:    desc.Outputs[0].Name,
		channels:  desc.NumChannel,
		elements:  desc.NumElements,
		classes:   desc.NumClasses,
		masks:     desc.MasksNum,
		threshold: threshold,
		policy:    policy,
	}, nil
}

// Decode picks the best class per element, converts center boxes to corners and
// scales them to pixel space.
//
// Arguments:
//   - outputs: The raw model outputs.
//   - imageWidth: The frame width used to scale horizontal coordinates.
//   - imageHeight: The frame height used to scale vertical coordinates.
//
// Returns:
//   - []postprocess.Candidate: The candidates in element order, with Mask set when
//     the model emits mask weights.
//   - error: A *model.ShapeMismatchError if the primary output is not channels*elements
//     float32 values.
func (d *Decoder) Decode(outputs model.Tensors, imageWidth, imageHeight int) ([]postprocess.Candidate, error) {
	data, err := model.Float32s(outputs, 0, d.output, d.channels*d.elements)
	if err != nil {
		return nil, err
	}

	e := d.elements
	at := func(channel, element int) float32 {
		return data[channel*e+element]
	}

	w, h := float32(imageWidth), float32(imageHeight)
	candidates := make([]postprocess.Candidate, 0, 32)

	for i := 0; i < e; i++ {
		best, class := float32(-1), -1
		for k := 0; k < d.classes; k++ {
			if s := at(model.GridBoxChannels+k, i); s > best {
				best, class = s, k
			}
		}
		if best < d.threshold {
			continue
		}

		box := images.CenterRect(at(0, i), at(1, i), at(2, i), at(3, i))
		if !box.InUnit() {
			if d.policy == BoxPolicyDrop {
				continue
			}
			box = box.Clamp(1, 1)
		}

		var mask []float32
		if d.masks > 0 {
			mask = make([]float32, d.masks)
			base := model.GridBoxChannels + d.classes
			for m := range mask {
				mask[m] = at(base+m, i)
			}
		}

		candidates = append(candidates, postprocess.Candidate{
			Box:   box.Scale(w, h),
			Score: best,
			Class: class,
			Mask:  mask,
			Index: i,
		})
	}

	return candidates, nil
}

// Suppress returns true; grid outputs contain many overlapping candidates per object.
func (d *Decoder) Suppress() bool {
	return true
}
