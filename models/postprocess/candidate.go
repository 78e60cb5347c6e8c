// Package postprocess - Candidate filtering and suppression for decoded model output.
package postprocess

import "github.com/nvr-ai/go-detect/images"

// Candidate is a decoded, not yet finalized detection.
type Candidate struct {
	// The bounding box in pixel space.
	Box images.Rect
	// The confidence score in [0,1].
	Score float32
	// The predicted class index.
	Class int
	// Mask weights for segmentation models, nil otherwise.
	Mask []float32
	// Index is the position in decode scan order.
	Index int
}
