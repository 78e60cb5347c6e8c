// Package detector - Single-image object detection pipeline and latest-frame streaming.
package detector

import (
	"image"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Option customizes a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDiagnostics sets a callback for one-way diagnostics such as the label fallback
// notice. The messages are also logged at warn level.
func WithDiagnostics(fn func(string)) Option {
	return func(d *Detector) {
		d.diagnostics = fn
	}
}

// Detector turns images into labelled detections with one loaded model.
//
// Run may be called from several goroutines; frames are processed one at a time.
type Detector struct {
	cfg         Config
	engine      inference.Engine
	desc        *model.Descriptor
	labels      *models.LabelSet
	pre         *preprocess.Preprocessor
	decoder     model.Decoder
	relevant    map[string]struct{}
	logger      *zap.Logger
	diagnostics func(string)

	mu        sync.Mutex
	stage     atomic.Int32
	seq       atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// New prepares a detector for a loaded model. It validates the model against the
// config, resolves the labels and selects the output decoder. The detector owns the
// model engine from here on: it is released by Close, or immediately if New fails.
//
// Arguments:
//   - m: The loaded model.
//   - cfg: The detector configuration.
//   - opts: Optional settings.
//
// Returns:
//   - *Detector: The ready detector.
//   - error: A *model.LoadError for model and label problems, or a config error.
//
// Example:
//
// ```go
//
//	m, err := providers.Open(cfg.Model, logger)
//	if err != nil {
//	    return err
//	}
//	det, err := detector.New(m, cfg, detector.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer det.Close()
//
// ```
func New(m *inference.Model, cfg Config, opts ...Option) (*Detector, error) {
	if m == nil || m.Engine == nil {
		return nil, &model.LoadError{Op: "open", Err: errors.New("no model engine")}
	}

	d := &Detector{
		cfg:    cfg,
		engine: m.Engine,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.init(m); err != nil {
		if cerr := m.Engine.Close(); cerr != nil {
			d.logger.Warn("releasing model after failed load", zap.Error(cerr))
		}
		return nil, err
	}

	d.logger.Info("detector ready",
		zap.String("model", m.Path),
		zap.String("backend", m.Backend),
		zap.Stringer("input", d.desc.Input),
		zap.String("input_type", string(d.desc.Input.Type)),
		zap.String("output_type", string(d.desc.Outputs[0].Type)),
		zap.String("convention", string(d.desc.Convention)),
		zap.Int("classes", d.desc.NumClasses),
		zap.Int("masks", d.desc.MasksNum),
		zap.String("labels", string(d.labels.Source())),
		zap.Int("label_count", d.labels.Len()),
	)

	return d, nil
}

func (d *Detector) init(m *inference.Model) error {
	if err := d.cfg.Validate(); err != nil {
		return &model.LoadError{Path: m.Path, Op: "config", Err: err}
	}

	desc, err := m.Describe(d.cfg.modelOptions())
	if err != nil {
		return err
	}
	d.desc = desc

	d.labels, err = models.NewLabelSet(models.LabelOptions{
		Metadata: m.Names,
		Path:     d.cfg.LabelPath,
		Family:   d.cfg.family(),
		Notify:   d.diagnose,
	})
	if err != nil {
		return err
	}

	d.pre, err = preprocess.New(desc, d.cfg.Interpolation)
	if err != nil {
		return &model.LoadError{Path: m.Path, Op: "preprocess", Err: err}
	}

	d.decoder, err = models.NewDecoder(desc, models.DecoderOptions{
		Floor:     d.cfg.CandidateFloor,
		Threshold: d.cfg.ConfidenceThreshold,
		BoxPolicy: d.cfg.BoxPolicy,
	})
	if err != nil {
		return &model.LoadError{Path: m.Path, Op: "decoder", Err: err}
	}

	if len(d.cfg.RelevantClasses) > 0 {
		d.relevant = lo.SliceToMap(d.cfg.RelevantClasses, func(name string) (string, struct{}) {
			return name, struct{}{}
		})
	}

	return nil
}

func (d *Detector) diagnose(msg string) {
	d.logger.Warn(msg)
	if d.diagnostics != nil {
		d.diagnostics(msg)
	}
}

// Descriptor returns the model descriptor read at load time.
func (d *Detector) Descriptor() *model.Descriptor {
	return d.desc
}

// Labels returns the resolved label set.
func (d *Detector) Labels() *models.LabelSet {
	return d.labels
}

// Stage returns the pipeline step of the current or last frame.
func (d *Detector) Stage() Stage {
	return Stage(d.stage.Load())
}

func (d *Detector) setStage(s Stage) {
	d.stage.Store(int32(s))
}

// Run detects objects in one image.
//
// Arguments:
//   - img: The frame, in any size. It is not modified.
//
// Returns:
//   - *Result: The detections, possibly none, and the stage timings.
//   - error: ErrClosed after Close, or a *FrameError if this frame failed. A
//     FrameError does not affect later frames.
func (d *Detector) Run(img image.Image) (*Result, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return nil, ErrClosed
	}
	if img == nil {
		return nil, &FrameError{Seq: d.seq.Inc(), Stage: StagePreprocessing, Err: ErrNilFrame}
	}

	bounds := img.Bounds()
	res := &Result{
		Seq:    d.seq.Inc(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
	fail := func(stage Stage, err error) (*Result, error) {
		d.setStage(StageIdle)
		return nil, &FrameError{Seq: res.Seq, Stage: stage, Err: err}
	}

	d.setStage(StagePreprocessing)
	start := time.Now()
	input, err := d.pre.Preprocess(img)
	res.Timings.Preprocess = time.Since(start)
	if err != nil {
		return fail(StagePreprocessing, err)
	}

	d.setStage(StageInferring)
	start = time.Now()
	outputs, err := d.engine.Infer(input)
	res.Timings.Inference = time.Since(start)
	if err != nil {
		return fail(StageInferring, err)
	}

	d.setStage(StageDecoding)
	start = time.Now()
	candidates, err := d.decoder.Decode(outputs, res.Width, res.Height)
	if err != nil {
		return fail(StageDecoding, err)
	}
	candidates = postprocess.Filter(candidates, d.cfg.ConfidenceThreshold)
	if d.decoder.Suppress() {
		candidates = postprocess.Suppress(candidates, d.cfg.NMS)
	}
	res.Detections = d.finalize(candidates, bounds)
	res.Timings.Postprocess = time.Since(start)

	d.setStage(StageDone)

	d.logger.Debug("frame processed",
		zap.Uint64("seq", res.Seq),
		zap.Int("detections", len(res.Detections)),
		zap.Duration("preprocess", res.Timings.Preprocess),
		zap.Duration("inference", res.Timings.Inference),
		zap.Duration("postprocess", res.Timings.Postprocess),
	)

	return res, nil
}

// finalize resolves names, normalizes boxes into the frame and orders by confidence.
func (d *Detector) finalize(candidates []postprocess.Candidate, bounds image.Rectangle) []Detection {
	w, h := float32(bounds.Dx()), float32(bounds.Dy())
	ox, oy := float32(bounds.Min.X), float32(bounds.Min.Y)

	out := make([]Detection, 0, len(candidates))
	for _, c := range candidates {
		name := d.labels.Resolve(c.Class)
		if d.relevant != nil {
			if _, ok := d.relevant[name]; !ok {
				continue
			}
		}

		box := c.Box.Canon().Clamp(w, h)
		box.X1, box.X2 = box.X1+ox, box.X2+ox
		box.Y1, box.Y2 = box.Y1+oy, box.Y2+oy

		out = append(out, Detection{
			Class:      c.Class,
			Name:       name,
			Confidence: c.Score,
			Box:        box,
			Mask:       c.Mask,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })

	return out
}

// Close releases the model. It waits for an in-flight frame to finish, is safe to
// call more than once and logs release errors instead of returning them.
func (d *Detector) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)

		d.mu.Lock()
		defer d.mu.Unlock()

		if err := d.engine.Close(); err != nil {
			d.logger.Warn("releasing model", zap.Error(err))
		}
		d.setStage(StageIdle)
	})
}
