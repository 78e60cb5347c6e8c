package detector

import (
	"os"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/grid"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/models/ranked"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultConfidenceThreshold is the minimum confidence of a reported detection.
const DefaultConfidenceThreshold = 0.7

// DefaultIoUThreshold is the overlap at which a lower-scored candidate is suppressed.
const DefaultIoUThreshold = 0.45

// Config represents the configuration for a detector.
type Config struct {
	// Model selects the runtime and model file.
	Model inference.Config `json:"model" yaml:"model"`
	// LabelPath is an optional label file used when the model carries no names.
	LabelPath string `json:"label_path" yaml:"label_path"`
	// LabelFamily selects the placeholder names used when no other source exists.
	LabelFamily models.Family `json:"label_family" yaml:"label_family"`
	// ConfidenceThreshold is the minimum confidence of a reported detection.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// CandidateFloor is the padding cutoff for ranked candidate lists.
	CandidateFloor float32 `json:"candidate_floor" yaml:"candidate_floor"`
	// NMS configures suppression for outputs that need it.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
	// Normalization is required for float32 inputs and must be empty for uint8 inputs.
	Normalization *model.Normalization `json:"normalization,omitempty" yaml:"normalization,omitempty"`
	// Interpolation selects the resampling filter.
	Interpolation preprocess.Interpolation `json:"interpolation" yaml:"interpolation"`
	// Convention forces the output convention. Empty detects it from the output shape.
	Convention model.Convention `json:"convention" yaml:"convention"`
	// BoxPolicy decides how grid boxes outside the unit square are handled.
	BoxPolicy grid.BoxPolicy `json:"box_policy" yaml:"box_policy"`
	// MasksNum overrides the mask weight count. Negative values detect it.
	MasksNum int `json:"masks_num" yaml:"masks_num"`
	// RelevantClasses limits reported detections to these names. Empty reports all.
	RelevantClasses []string `json:"relevant_classes" yaml:"relevant_classes"`
}

// DefaultConfig returns a config with the default thresholds and automatic detection
// of everything the model describes itself.
func DefaultConfig() Config {
	return Config{
		Model:               inference.Config{Backend: inference.BackendAuto},
		LabelFamily:         models.FamilyYOLO,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		CandidateFloor:      ranked.DefaultFloor,
		NMS:                 postprocess.NMSConfig{IoUThreshold: DefaultIoUThreshold},
		Interpolation:       preprocess.InterpolationBilinear,
		BoxPolicy:           grid.BoxPolicyDrop,
		MasksNum:            -1,
	}
}

// LoadConfig reads a YAML config file. Keys missing from the file keep their
// DefaultConfig values.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The validated config.
//   - error: If the file cannot be read or parsed, or the result is invalid.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.Errorf("confidence_threshold %v outside [0,1]", c.ConfidenceThreshold)
	}
	if c.CandidateFloor < 0 || c.CandidateFloor > 1 {
		return errors.Errorf("candidate_floor %v outside [0,1]", c.CandidateFloor)
	}
	if c.NMS.IoUThreshold <= 0 || c.NMS.IoUThreshold > 1 {
		return errors.Errorf("nms.iou_threshold %v outside (0,1]", c.NMS.IoUThreshold)
	}
	if c.Normalization != nil && c.Normalization.Std <= 0 {
		return errors.Errorf("normalization.std must be positive, got %v", c.Normalization.Std)
	}
	if c.MasksNum < -1 {
		return errors.Errorf("masks_num %d invalid", c.MasksNum)
	}

	switch c.Interpolation {
	case "", preprocess.InterpolationBilinear, preprocess.InterpolationNearest:
	default:
		return errors.Errorf("unknown interpolation %q", c.Interpolation)
	}
	switch c.Convention {
	case model.ConventionAuto, model.ConventionRanked, model.ConventionGrid:
	default:
		return errors.Errorf("unknown convention %q", c.Convention)
	}
	switch c.BoxPolicy {
	case "", grid.BoxPolicyDrop, grid.BoxPolicyClamp:
	default:
		return errors.Errorf("unknown box_policy %q", c.BoxPolicy)
	}
	if _, err := models.PlaceholderNames(c.family()); err != nil {
		return err
	}

	return nil
}

func (c Config) family() models.Family {
	if c.LabelFamily == "" {
		return models.FamilyYOLO
	}
	return c.LabelFamily
}

func (c Config) modelOptions() model.Options {
	return model.Options{
		Convention:    c.Convention,
		MasksNum:      c.MasksNum,
		Normalization: c.Normalization,
	}
}
