package models

import (
	"github.com/nvr-ai/go-detect/models/grid"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/ranked"
	"github.com/pkg/errors"
)

// DecoderOptions configures the decoder strategies.
type DecoderOptions struct {
	// Floor is the RankedCandidates padding cutoff.
	Floor float32
	// Threshold is the DenseGrid per-element score cutoff.
	Threshold float32
	// BoxPolicy decides how DenseGrid boxes outside [0,1] are handled.
	BoxPolicy grid.BoxPolicy
}

// NewDecoder selects the decoder for a model's output convention. It is called once
// per model; the result is reused for every frame.
//
// Arguments:
//   - desc: The model descriptor.
//   - opts: The decoder settings.
//
// Returns:
//   - model.Decoder: The decoder for desc.Convention.
//   - error: If the convention has no decoder or the options are invalid.
//
// Example:
//
// ```go
//
//	dec, err := NewDecoder(desc, DecoderOptions{Floor: 0.01, Threshold: 0.7})
//	if err != nil {
//	    return err
//	}
//	candidates, err := dec.Decode(outputs, frame.Bounds().Dx(), frame.Bounds().Dy())
//
// ```
func NewDecoder(desc *model.Descriptor, opts DecoderOptions) (model.Decoder, error) {
	switch desc.Convention {
	case model.ConventionRanked:
		return ranked.New(desc, opts.Floor), nil
	case model.ConventionGrid:
		return grid.New(desc, opts.Threshold, opts.BoxPolicy)
	default:
		return nil, errors.Errorf("no decoder for output convention %q", desc.Convention)
	}
}
