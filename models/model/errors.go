package model

import "fmt"

// LoadError reports that a model could not be opened or introspected. It is fatal
// for pipeline construction.
type LoadError struct {
	// Path is the model file.
	Path string
	// Op is the step that failed, e.g. "open" or "describe".
	Op string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("model load: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("model load %s: %s: %v", e.Path, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// ShapeMismatchError reports that an output tensor does not match the decoder's
// expectation. It affects a single frame only.
type ShapeMismatchError struct {
	// Output is the output tensor name.
	Output string
	// Want is the expected element count, zero when Reason is set.
	Want int
	// Got is the actual element count.
	Got int
	// Reason describes mismatches that are not about element counts.
	Reason string
}

// Error implements error.
func (e *ShapeMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("output %q shape mismatch: %s", e.Output, e.Reason)
	}
	return fmt.Sprintf("output %q shape mismatch: want %d elements, got %d", e.Output, e.Want, e.Got)
}
