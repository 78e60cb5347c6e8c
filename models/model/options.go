package model

// Options carries the per-model settings that cannot be read from the tensors.
type Options struct {
	// Path is the model file, used in errors only.
	Path string
	// Convention overrides output convention detection when not ConventionAuto.
	Convention Convention
	// MasksNum overrides the mask weight count for DenseGrid outputs. Negative
	// values detect it from a second, 4D output.
	MasksNum int
	// Normalization is required for float32 inputs and rejected for uint8 inputs.
	Normalization *Normalization
}

// DefaultOptions returns options that detect everything detectable.
func DefaultOptions() Options {
	return Options{MasksNum: -1}
}
