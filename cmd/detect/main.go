// Package main is the detect command: run a detection model on images from the shell.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/util"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	flagConfig     = "config"
	flagModel      = "model"
	flagBackend    = "backend"
	flagLibrary    = "onnx-library"
	flagThreads    = "threads"
	flagLabels     = "labels"
	flagFamily     = "label-family"
	flagThreshold  = "threshold"
	flagMean       = "mean"
	flagStd        = "std"
	flagClasses    = "classes"
	flagRotate     = "rotate"
	flagLogLevel   = "log-level"
	flagResolution = "resolution"
	flagIterations = "iterations"
	flagWarmup     = "warmup"
	flagScenarios  = "scenarios"
	flagOutput     = "output"
)

func main() {
	var logger *zap.Logger

	app := &cli.App{
		Name:  "detect",
		Usage: "run object detection models on images",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagConfig, Aliases: []string{"c"}, Usage: "YAML detector config"},
			&cli.StringFlag{Name: flagModel, Aliases: []string{"m"}, Usage: "model file (.onnx or .tflite)"},
			&cli.StringFlag{Name: flagBackend, Usage: "runtime: auto, onnx or tflite"},
			&cli.StringFlag{Name: flagLibrary, Usage: "onnxruntime shared library", EnvVars: []string{providers.LibraryPathEnv}},
			&cli.IntFlag{Name: flagThreads, Usage: "runtime threads"},
			&cli.StringFlag{Name: flagLabels, Aliases: []string{"l"}, Usage: "label file used when the model has no names"},
			&cli.StringFlag{Name: flagFamily, Usage: "placeholder label family: yolo, coco, tf or voc"},
			&cli.Float64Flag{Name: flagThreshold, Usage: "confidence threshold"},
			&cli.Float64Flag{Name: flagMean, Value: 128, Usage: "input normalization mean for float models"},
			&cli.Float64Flag{Name: flagStd, Value: 128, Usage: "input normalization std for float models"},
			&cli.StringSliceFlag{Name: flagClasses, Usage: "only report these class names"},
			&cli.IntFlag{Name: flagRotate, Usage: "rotate frames counter-clockwise by 90, 180 or 270 degrees"},
			&cli.StringFlag{Name: flagLogLevel, Value: "info", Usage: "debug, info, warn or error"},
		},
		Before: func(c *cli.Context) error {
			level, err := zapcore.ParseLevel(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			zc := zap.NewProductionConfig()
			zc.Level = zap.NewAtomicLevelAt(level)
			zc.Encoding = "console"
			logger, err = zc.Build()
			return err
		},
		After: func(*cli.Context) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "image",
				Usage:     "detect objects in one image and print them as JSON",
				ArgsUsage: "<image>",
				Action: func(c *cli.Context) error {
					return detectImage(c, logger)
				},
			},
			{
				Name:      "bench",
				Usage:     "run the images of a directory through benchmark scenarios",
				ArgsUsage: "<directory>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: flagResolution, Value: cli.NewStringSlice("native"), Usage: "frame sizes as WIDTHxHEIGHT or native"},
					&cli.IntFlag{Name: flagIterations, Usage: "measured frames per scenario (default: one per image)"},
					&cli.IntFlag{Name: flagWarmup, Value: 3, Usage: "unmeasured frames per scenario"},
					&cli.StringFlag{Name: flagScenarios, Usage: "YAML scenario set, replacing --resolution"},
					&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "directory for JSON and CSV reports"},
				},
				Action: func(c *cli.Context) error {
					return bench(c, logger)
				},
			},
			{
				Name:  "info",
				Usage: "print the model descriptor and labels",
				Action: func(c *cli.Context) error {
					return info(c, logger)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies the flags on top.
func loadConfig(c *cli.Context) (detector.Config, error) {
	cfg := detector.DefaultConfig()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = detector.LoadConfig(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet(flagModel) {
		cfg.Model.ModelPath = c.String(flagModel)
	}
	if c.IsSet(flagBackend) {
		cfg.Model.Backend = inference.Backend(c.String(flagBackend))
	}
	if c.IsSet(flagLibrary) {
		cfg.Model.LibraryPath = c.String(flagLibrary)
	}
	if c.IsSet(flagThreads) {
		cfg.Model.Threads = c.Int(flagThreads)
	}
	if c.IsSet(flagLabels) {
		cfg.LabelPath = c.String(flagLabels)
	}
	if c.IsSet(flagFamily) {
		cfg.LabelFamily = models.Family(c.String(flagFamily))
	}
	if c.IsSet(flagThreshold) {
		cfg.ConfidenceThreshold = float32(c.Float64(flagThreshold))
	}
	if c.IsSet(flagMean) || c.IsSet(flagStd) {
		cfg.Normalization = &model.Normalization{
			Mean: float32(c.Float64(flagMean)),
			Std:  float32(c.Float64(flagStd)),
		}
	}
	if c.IsSet(flagClasses) {
		cfg.RelevantClasses = c.StringSlice(flagClasses)
	}

	if cfg.Model.ModelPath == "" {
		return cfg, errors.New("no model: set --model or model.model_path in the config")
	}

	return cfg, cfg.Validate()
}

func openDetector(c *cli.Context, logger *zap.Logger) (*detector.Detector, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	m, err := providers.Open(cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	return detector.New(m, cfg,
		detector.WithLogger(logger),
		detector.WithDiagnostics(func(msg string) {
			fmt.Fprintln(c.App.ErrWriter, "note:", msg)
		}),
	)
}

func detectImage(c *cli.Context, logger *zap.Logger) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("image path required")
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	frame, err := images.Rotate(img, c.Int(flagRotate))
	if err != nil {
		return err
	}

	det, err := openDetector(c, logger)
	if err != nil {
		return err
	}
	defer det.Close()

	res, err := det.Run(frame)
	if err != nil {
		return err
	}

	pre, inf, post := res.Timings.Millis()
	logger.Info("detected",
		zap.String("image", path),
		zap.Int("detections", len(res.Detections)),
		zap.Int64("preprocess_ms", pre),
		zap.Int64("inference_ms", inf),
		zap.Int64("postprocess_ms", post),
	)

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func bench(c *cli.Context, logger *zap.Logger) error {
	dir := c.Args().First()
	if dir == "" {
		return errors.New("image directory required")
	}

	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no images in %s", dir)
	}

	var set *benchmark.ScenarioSet
	if path := c.String(flagScenarios); path != "" {
		if set, err = benchmark.LoadScenarioSet(path); err != nil {
			return err
		}
	} else {
		resolutions := make([]benchmark.Resolution, 0, len(c.StringSlice(flagResolution)))
		for _, s := range c.StringSlice(flagResolution) {
			r, err := benchmark.ParseResolution(s)
			if err != nil {
				return err
			}
			resolutions = append(resolutions, r)
		}
		iterations := c.Int(flagIterations)
		if iterations <= 0 {
			iterations = len(files)
		}
		set = benchmark.ResolutionScenarios(resolutions, c.Int(flagRotate), iterations, c.Int(flagWarmup))
	}

	det, err := openDetector(c, logger)
	if err != nil {
		return err
	}
	defer det.Close()

	suite := benchmark.NewSuite(det, logger)
	if err := suite.LoadFiles(files); err != nil {
		return err
	}
	for _, s := range set.Scenarios {
		suite.AddScenario(s)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	results, runErr := suite.RunAllScenarios(ctx)

	if out := c.String(flagOutput); out != "" {
		if err := writeResults(out, results); err != nil {
			return multierr.Append(runErr, err)
		}
	}
	if err := benchmark.WriteCSV(c.App.Writer, results); err != nil {
		return multierr.Append(runErr, err)
	}

	return runErr
}

// writeResults stores the JSON and CSV reports in dir.
func writeResults(dir string, results []benchmark.PerformanceMetrics) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	stamp := time.Now().Format("2006-01-02_15-04-05")

	write := func(name string, fn func(io.Writer, []benchmark.PerformanceMetrics) error) (err error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, f.Close()) }()
		return fn(f, results)
	}

	return multierr.Combine(
		write("benchmark_results_"+stamp+".json", benchmark.WriteJSON),
		write("benchmark_summary_"+stamp+".csv", benchmark.WriteCSV),
	)
}

func info(c *cli.Context, logger *zap.Logger) error {
	det, err := openDetector(c, logger)
	if err != nil {
		return err
	}
	defer det.Close()

	desc := det.Descriptor()
	labels := det.Labels()

	out := struct {
		Input      model.TensorInfo   `json:"input"`
		Outputs    []model.TensorInfo `json:"outputs"`
		Layout     model.Layout       `json:"layout"`
		Convention model.Convention   `json:"convention"`
		Classes    int                `json:"classes,omitempty"`
		Masks      int                `json:"masks,omitempty"`
		Labels     models.LabelSource `json:"label_source"`
		Names      []string           `json:"names"`
	}{
		Input:      desc.Input,
		Outputs:    desc.Outputs,
		Layout:     desc.Layout,
		Convention: desc.Convention,
		Classes:    desc.NumClasses,
		Masks:      desc.MasksNum,
		Labels:     labels.Source(),
		Names:      labels.Names(),
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
