package detector

import (
	"image"
	"sync"

	"github.com/nvr-ai/go-detect/profiler"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Listener receives the outcome of every processed stream frame, in frame order,
// on the stream's worker goroutine.
type Listener interface {
	// OnDetect is called for frames with at least one detection.
	OnDetect(res *Result)
	// OnEmpty is called for frames without detections.
	OnEmpty(res *Result)
	// OnError is called for frames that failed.
	OnError(err error)
}

// ListenerFuncs adapts plain functions into a Listener. Nil fields ignore the event.
type ListenerFuncs struct {
	Detect func(*Result)
	Empty  func(*Result)
	Error  func(error)
}

// OnDetect calls f.Detect.
func (f ListenerFuncs) OnDetect(res *Result) {
	if f.Detect != nil {
		f.Detect(res)
	}
}

// OnEmpty calls f.Empty.
func (f ListenerFuncs) OnEmpty(res *Result) {
	if f.Empty != nil {
		f.Empty(res)
	}
}

// OnError calls f.Error.
func (f ListenerFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// StreamStats summarizes a stream.
type StreamStats struct {
	Submitted uint64 `json:"submitted"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	// Dropped counts frames replaced by a newer frame before processing started.
	Dropped uint64 `json:"dropped"`
	// Stages holds the timing summaries of processed frames.
	Stages []profiler.Summary `json:"stages"`
}

// StreamOption customizes a Stream.
type StreamOption func(*Stream)

// WithProfiler records stage timings into p instead of a private profiler.
func WithProfiler(p *profiler.Profiler) StreamOption {
	return func(s *Stream) {
		if p != nil {
			s.profiler = p
		}
	}
}

// WithStreamLogger sets the stream logger.
func WithStreamLogger(logger *zap.Logger) StreamOption {
	return func(s *Stream) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Stream feeds camera frames to a detector without ever queueing more than one.
// While a frame is being processed, a newly submitted frame replaces any frame still
// waiting, so results always describe the most recent input the detector could take.
type Stream struct {
	det      *Detector
	listener Listener
	profiler *profiler.Profiler
	logger   *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending image.Image
	stopped bool

	done     chan struct{}
	stopOnce sync.Once

	submitted atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewStream starts the worker that runs submitted frames through det. The stream takes
// ownership of det and closes it on Stop.
//
// Arguments:
//   - det: The detector.
//   - listener: Receives every result and frame error.
//   - opts: Optional settings.
//
// Returns:
//   - *Stream: The running stream.
func NewStream(det *Detector, listener Listener, opts ...StreamOption) *Stream {
	s := &Stream{
		det:      det,
		listener: listener,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	if s.profiler == nil {
		s.profiler = profiler.New(profiler.Options{}, s.logger)
	}

	go s.loop()

	return s
}

// Submit hands a frame to the stream without blocking. A frame still waiting from an
// earlier Submit is dropped.
//
// Returns:
//   - error: ErrClosed after Stop, or ErrNilFrame for a nil image.
func (s *Stream) Submit(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrClosed
	}
	if img == nil {
		return ErrNilFrame
	}

	s.submitted.Inc()
	if s.pending != nil {
		s.dropped.Inc()
	}
	s.pending = img
	s.cond.Signal()

	return nil
}

func (s *Stream) loop() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for s.pending == nil && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			if s.pending != nil {
				s.pending = nil
				s.dropped.Inc()
			}
			s.mu.Unlock()
			return
		}
		img := s.pending
		s.pending = nil
		s.mu.Unlock()

		s.process(img)
	}
}

func (s *Stream) process(img image.Image) {
	res, err := s.det.Run(img)
	if err != nil {
		s.failed.Inc()
		s.logger.Debug("frame failed", zap.Error(err))
		s.listener.OnError(err)
		return
	}

	s.processed.Inc()
	s.profiler.Record("preprocess", res.Timings.Preprocess)
	s.profiler.Record("inference", res.Timings.Inference)
	s.profiler.Record("postprocess", res.Timings.Postprocess)

	if res.Empty() {
		s.listener.OnEmpty(res)
		return
	}
	s.listener.OnDetect(res)
}

// Stop lets the in-flight frame finish, discards any waiting frame, then closes the
// detector. It is safe to call more than once.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.cond.Broadcast()
		s.mu.Unlock()

		<-s.done
		s.det.Close()

		s.logger.Info("stream stopped",
			zap.Uint64("submitted", s.submitted.Load()),
			zap.Uint64("processed", s.processed.Load()),
			zap.Uint64("failed", s.failed.Load()),
			zap.Uint64("dropped", s.dropped.Load()),
		)
	})
}

// Stats returns the stream counters and stage timing summaries.
func (s *Stream) Stats() StreamStats {
	return StreamStats{
		Submitted: s.submitted.Load(),
		Processed: s.processed.Load(),
		Failed:    s.failed.Load(),
		Dropped:   s.dropped.Load(),
		Stages:    s.profiler.Summaries(),
	}
}
