// Package benchmark - Scenario-driven throughput and stage timing measurements for detectors.
package benchmark

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Resolution is the frame size a scenario feeds to the detector.
type Resolution struct {
	Width  int    `json:"width"  yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	Name   string `json:"name"   yaml:"name"`
}

// Native keeps frames at their decoded size.
var Native = Resolution{Name: "native"}

// CommonResolutions are typical camera stream sizes.
var CommonResolutions = []Resolution{
	{Width: 640, Height: 480, Name: "640x480"},
	{Width: 1280, Height: 720, Name: "1280x720"},
	{Width: 1920, Height: 1080, Name: "1920x1080"},
}

// ParseResolution reads a "WIDTHxHEIGHT" string. "native" selects Native.
func ParseResolution(s string) (Resolution, error) {
	if strings.EqualFold(s, Native.Name) {
		return Native, nil
	}

	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return Resolution{}, errors.Errorf("resolution %q: want WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Resolution{}, errors.Errorf("resolution %q: invalid width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Resolution{}, errors.Errorf("resolution %q: invalid height", s)
	}

	return Resolution{Width: width, Height: height, Name: fmt.Sprintf("%dx%d", width, height)}, nil
}

// Scenario defines one benchmark run.
type Scenario struct {
	Name       string     `json:"name"        yaml:"name"`
	Resolution Resolution `json:"resolution"  yaml:"resolution"`
	// Rotation turns frames counter-clockwise before detection, in degrees.
	Rotation   int `json:"rotation"    yaml:"rotation"`
	Iterations int `json:"iterations"  yaml:"iterations"`
	WarmupRuns int `json:"warmup_runs" yaml:"warmup_runs"`
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Resolution: Native,
			Iterations: 100,
			WarmupRuns: 10,
		},
	}
}

// WithResolution sets the frame size.
func (sb *ScenarioBuilder) WithResolution(r Resolution) *ScenarioBuilder {
	sb.scenario.Resolution = r
	return sb
}

// WithRotation sets the frame rotation in degrees.
func (sb *ScenarioBuilder) WithRotation(degrees int) *ScenarioBuilder {
	sb.scenario.Rotation = degrees
	return sb
}

// WithIterations sets the number of measured frames.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of unmeasured frames run first.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name"        yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios"   yaml:"scenarios"`
}

// ResolutionScenarios returns one scenario per resolution.
func ResolutionScenarios(resolutions []Resolution, rotation, iterations, warmups int) *ScenarioSet {
	set := &ScenarioSet{
		Name:        "resolutions",
		Description: "Compares detector cost across input frame sizes",
	}
	for _, r := range resolutions {
		set.Scenarios = append(set.Scenarios, NewScenarioBuilder(r.Name).
			WithResolution(r).
			WithRotation(rotation).
			WithIterations(iterations).
			WithWarmupRuns(warmups).
			Build())
	}
	return set
}

// SaveScenarioSet writes a scenario set as YAML.
func SaveScenarioSet(set *ScenarioSet, filename string) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return errors.Wrap(err, "encoding scenario set")
	}
	return errors.Wrap(os.WriteFile(filename, data, 0o644), "writing scenario set")
}

// LoadScenarioSet reads a YAML scenario set.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "reading scenario set")
	}

	var set ScenarioSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrapf(err, "parsing scenario set %s", filename)
	}
	for i, s := range set.Scenarios {
		if s.Iterations <= 0 {
			return nil, errors.Errorf("scenario %d (%s): iterations must be positive", i, s.Name)
		}
	}

	return &set, nil
}
