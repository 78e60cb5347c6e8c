package detector

import (
	"time"

	"github.com/nvr-ai/go-detect/images"
)

// Detection is one reported object.
type Detection struct {
	// Class is the model class id.
	Class int `json:"class"`
	// Name is the resolved label, "unknown" for ids outside the label set.
	Name string `json:"name"`
	// Confidence is the model score in [0,1].
	Confidence float32 `json:"confidence"`
	// Box is in frame pixel coordinates with X1 <= X2 and Y1 <= Y2.
	Box images.Rect `json:"box"`
	// Mask holds the mask weights of segmentation models, nil otherwise.
	Mask []float32 `json:"mask,omitempty"`
}

// Timings are the per-stage durations of one frame.
type Timings struct {
	Preprocess  time.Duration `json:"preprocess"`
	Inference   time.Duration `json:"inference"`
	Postprocess time.Duration `json:"postprocess"`
}

// Total returns the sum of the stage durations.
func (t Timings) Total() time.Duration {
	return t.Preprocess + t.Inference + t.Postprocess
}

// Millis returns the stage durations in milliseconds.
func (t Timings) Millis() (pre, inference, post int64) {
	return t.Preprocess.Milliseconds(), t.Inference.Milliseconds(), t.Postprocess.Milliseconds()
}

// Result is the outcome of one frame.
type Result struct {
	// Seq is the frame sequence number, starting at 1.
	Seq uint64 `json:"seq"`
	// Width and Height are the frame dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`
	// Detections are ordered by descending confidence.
	Detections []Detection `json:"detections"`
	Timings    Timings     `json:"timings"`
}

// Empty reports whether the frame produced no detections.
func (r *Result) Empty() bool {
	return len(r.Detections) == 0
}
