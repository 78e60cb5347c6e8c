package benchmark

import (
	"context"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/profiler"
	"github.com/nvr-ai/go-detect/util"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stage names recorded for every measured frame.
const (
	StagePreprocess  = "preprocess"
	StageInference   = "inference"
	StagePostprocess = "postprocess"
	StageFrame       = "frame"
)

// Runner runs one frame. *detector.Detector implements it.
type Runner interface {
	Run(img image.Image) (*detector.Result, error)
}

// Suite manages and executes benchmark scenarios
type Suite struct {
	runner Runner
	logger *zap.Logger

	mu        sync.RWMutex
	corpus    []image.Image
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - runner: The detector under test.
//   - logger: Receives per-scenario progress. Nil discards it.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(runner Runner, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{runner: runner, logger: logger}
}

// AddFrames appends decoded frames to the corpus.
func (bs *Suite) AddFrames(frames ...image.Image) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.corpus = append(bs.corpus, frames...)
}

// LoadFiles decodes image files in parallel and appends them to the corpus in order.
//
// Returns:
//   - error: The first decode failure, naming the file.
func (bs *Suite) LoadFiles(files []util.ImageFile) error {
	frames := make([]image.Image, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			img, err := images.NewImage(f.Data)
			if err != nil {
				return errors.Wrap(err, f.Path)
			}
			frames[i], err = img.Decode()
			return errors.Wrap(err, f.Path)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	bs.AddFrames(frames...)
	return nil
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// prepare resizes and rotates the corpus for a scenario, outside the measured loop.
func (bs *Suite) prepare(scenario Scenario) ([]image.Image, error) {
	bs.mu.RLock()
	corpus := append([]image.Image(nil), bs.corpus...)
	bs.mu.RUnlock()

	if len(corpus) == 0 {
		return nil, errors.New("no frames loaded")
	}

	frames := make([]image.Image, len(corpus))
	for i, img := range corpus {
		resized := images.Resize(img, scenario.Resolution.Width, scenario.Resolution.Height)
		rotated, err := images.Rotate(resized, scenario.Rotation)
		if err != nil {
			return nil, err
		}
		frames[i] = rotated
	}

	return frames, nil
}

// RunScenario executes a single benchmark scenario. Frame failures are counted, not
// returned; only ErrClosed and context cancellation abort the scenario.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %s: iterations must be positive", scenario.Name)
	}

	frames, err := bs.prepare(scenario)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := bs.runner.Run(frames[i%len(frames)]); errors.Is(err, detector.ErrClosed) {
			return nil, err
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	prof := profiler.New(profiler.Options{MaxSamples: scenario.Iterations}, nil)
	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := bs.runner.Run(frames[i%len(frames)])
		if err != nil {
			if errors.Is(err, detector.ErrClosed) {
				return nil, err
			}
			metrics.Failures++
			continue
		}

		metrics.DetectionCount += len(res.Detections)
		prof.Record(StagePreprocess, res.Timings.Preprocess)
		prof.Record(StageInference, res.Timings.Inference)
		prof.Record(StagePostprocess, res.Timings.Postprocess)
		prof.Record(StageFrame, res.Timings.Total())
	}
	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if metrics.TotalDuration > 0 {
		metrics.FramesPerSecond = float64(scenario.Iterations) / metrics.TotalDuration.Seconds()
	}
	metrics.ErrorRate = float64(metrics.Failures) / float64(scenario.Iterations)
	metrics.Stages = prof.Summaries()
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}

	return metrics, nil
}

// RunAllScenarios executes every scenario in order. A failed scenario is logged and
// reported in the combined error; the others still run.
//
// Returns:
//   - []PerformanceMetrics: The metrics of the scenarios that completed.
//   - error: The scenario failures, combined.
func (bs *Suite) RunAllScenarios(ctx context.Context) ([]PerformanceMetrics, error) {
	bs.mu.RLock()
	scenarios := append([]Scenario(nil), bs.scenarios...)
	bs.mu.RUnlock()

	var errs error
	for _, scenario := range scenarios {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			bs.logger.Warn("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			errs = multierr.Append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("fps", metrics.FramesPerSecond),
			zap.Duration("inference_p50", metrics.Stage(StageInference).P50),
			zap.Int("failures", metrics.Failures),
		)
	}

	return bs.Results(), errs
}

// Results returns all benchmark results
func (bs *Suite) Results() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	return append([]PerformanceMetrics(nil), bs.results...)
}
