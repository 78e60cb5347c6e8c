// Package ranked - decoder for fixed-size ranked candidate outputs.
//
// Models such as RT-DETR, D-FINE and NMS-exported YOLO variants emit a list of
// rows [left, top, right, bottom, confidence, class] in normalized coordinates,
// already ranked and deduplicated by the model itself.
package ranked

import (
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// DefaultFloor is the confidence below which rows are skipped as padding.
const DefaultFloor = 0.01

// Decoder decodes RankedCandidates outputs.
type Decoder struct {
	output string
	rows   int
	floor  float32
}

// New creates a ranked decoder for the model's primary output.
//
// Arguments:
//   - desc: The model descriptor. Its primary output must use model.ConventionRanked.
//   - floor: Rows with a confidence below this value are skipped.
//
// Returns:
//   - *Decoder: The decoder.
func New(desc *model.Descriptor, floor float32) *Decoder {
	return &Decoder{
		output: desc.Outputs[0].Name,
		rows:   desc.NumElements,
		floor:  floor,
	}
}

// Decode scales every row above the floor to pixel space.
//
// Arguments:
//   - outputs: The raw model outputs.
//   - imageWidth: The frame width used to scale horizontal coordinates.
//   - imageHeight: The frame height used to scale vertical coordinates.
//
// Returns:
//   - []postprocess.Candidate: The candidates in row order.
//   - error: A *model.ShapeMismatchError if the primary output is not rows*6 float32 values.
func (d *Decoder) Decode(outputs model.Tensors, imageWidth, imageHeight int) ([]postprocess.Candidate, error) {
	data, err := model.Float32s(outputs, 0, d.output, d.rows*model.RankedRowSize)
	if err != nil {
		return nil, err
	}

	w, h := float32(imageWidth), float32(imageHeight)
	candidates := make([]postprocess.Candidate, 0, 16)

	for i := 0; i < d.rows; i++ {
		row := data[i*model.RankedRowSize : (i+1)*model.RankedRowSize]
		confidence := row[4]
		if confidence < d.floor {
			continue
		}

		candidates = append(candidates, postprocess.Candidate{
			Box:   images.Rect{X1: row[0], Y1: row[1], X2: row[2], Y2: row[3]}.Scale(w, h),
			Score: confidence,
			Class: int(row[5]),
			Index: i,
		})
	}

	return candidates, nil
}

// Suppress returns false; ranked outputs are already deduplicated.
func (d *Decoder) Suppress() bool {
	return false
}
