package detector

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrClosed is returned for frames submitted after the detector was closed.
var ErrClosed = errors.New("detector closed")

// ErrNilFrame is returned for a nil image.
var ErrNilFrame = errors.New("nil frame")

// Stage is the pipeline step a frame is in.
type Stage int32

const (
	// StageIdle means no frame is being processed.
	StageIdle Stage = iota
	// StagePreprocessing converts the frame into the input tensor.
	StagePreprocessing
	// StageInferring runs the model.
	StageInferring
	// StageDecoding turns outputs into detections.
	StageDecoding
	// StageDone means the last frame completed.
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePreprocessing:
		return "preprocessing"
	case StageInferring:
		return "inferring"
	case StageDecoding:
		return "decoding"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int32(s))
}

// FrameError reports a failure confined to a single frame. The detector stays usable.
type FrameError struct {
	// Seq is the sequence number of the failed frame.
	Seq uint64
	// Stage is where the frame failed.
	Stage Stage
	// Err is the underlying error.
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d failed while %s: %v", e.Seq, e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Cause returns the underlying error for github.com/pkg/errors.Cause.
func (e *FrameError) Cause() error {
	return e.Err
}
