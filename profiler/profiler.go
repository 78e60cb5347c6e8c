// Package profiler - Windowed operation timing statistics and periodic reports.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// DefaultMaxSamples is the per-operation window used when none is configured.
const DefaultMaxSamples = 600

// Summary describes the recorded durations of one operation.
type Summary struct {
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// timeTracker keeps the latest durations of one operation.
type timeTracker struct {
	samples []float64
	count   int64
}

// Options configures the profiler.
type Options struct {
	// ReportInterval specifies how often Start emits a report (default: 5s).
	ReportInterval time.Duration
	// MaxSamples is the number of recent samples kept per operation (default: 600).
	MaxSamples int
}

// Profiler records operation durations and summarizes them over a sliding window.
// It is safe for concurrent use.
type Profiler struct {
	reportInterval time.Duration
	maxSamples     int
	logger         *zap.Logger

	mu         sync.Mutex
	operations map[string]*timeTracker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a profiler.
//
// Arguments:
//   - opts: The profiler options. Zero values select the defaults.
//   - logger: The logger that receives reports. Nil discards them.
//
// Returns:
//   - *Profiler: The profiler.
func New(opts Options, logger *zap.Logger) *Profiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 5 * time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = DefaultMaxSamples
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Profiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		logger:         logger,
		operations:     make(map[string]*timeTracker),
	}
}

// Record adds one duration sample for an operation.
func (p *Profiler) Record(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.operations[name]
	if !ok {
		t = &timeTracker{samples: make([]float64, 0, p.maxSamples)}
		p.operations[name] = t
	}

	if len(t.samples) == p.maxSamples {
		copy(t.samples, t.samples[1:])
		t.samples = t.samples[:len(t.samples)-1]
	}
	t.samples = append(t.samples, float64(d))
	t.count++
}

// StartOperation begins timing an operation.
//
// Returns:
//   - func(): Call it when the operation completes to record the elapsed time.
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Summaries returns one summary per recorded operation, sorted by name.
func (p *Profiler) Summaries() []Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Summary, 0, len(p.operations))
	for name, t := range p.operations {
		out = append(out, summarize(name, t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func summarize(name string, t *timeTracker) Summary {
	s := Summary{Name: name, Count: t.count}
	if len(t.samples) == 0 {
		return s
	}

	data := stats.Float64Data(t.samples)
	mean, _ := data.Mean()
	minimum, _ := data.Min()
	maximum, _ := data.Max()
	p50, _ := data.Percentile(50)
	p95, _ := data.Percentile(95)
	p99, _ := data.Percentile(99)

	s.Mean = time.Duration(mean)
	s.Min = time.Duration(minimum)
	s.Max = time.Duration(maximum)
	s.P50 = time.Duration(p50)
	s.P95 = time.Duration(p95)
	s.P99 = time.Duration(p99)

	return s
}

// Report logs the current summaries together with goroutine and heap figures.
func (p *Profiler) Report() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.logger.Info("runtime",
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Uint64("heap_alloc", mem.HeapAlloc),
		zap.Uint32("gc_cycles", mem.NumGC),
	)

	for _, s := range p.Summaries() {
		p.logger.Info("operation",
			zap.String("name", s.Name),
			zap.Int64("count", s.Count),
			zap.Duration("mean", s.Mean),
			zap.Duration("p50", s.P50),
			zap.Duration("p95", s.P95),
			zap.Duration("p99", s.P99),
			zap.Duration("max", s.Max),
		)
	}
}

// Start emits a report every ReportInterval until Stop is called or ctx ends.
// Calling Start on a running profiler is a no-op.
func (p *Profiler) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Report()
			}
		}
	}()
}

// Stop ends periodic reporting and waits for the reporter to exit.
func (p *Profiler) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}
