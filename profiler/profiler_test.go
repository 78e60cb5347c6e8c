package profiler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestSummaries computes window statistics per operation.
func TestSummaries(t *testing.T) {
	p := New(Options{}, nil)
	for i := 1; i <= 100; i++ {
		p.Record("inference", time.Duration(i)*time.Millisecond)
	}
	p.Record("decode", 2*time.Millisecond)

	sums := p.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, "decode", sums[0].Name)

	inf := sums[1]
	assert.Equal(t, int64(100), inf.Count)
	assert.Equal(t, time.Millisecond, inf.Min)
	assert.Equal(t, 100*time.Millisecond, inf.Max)
	assert.InDelta(t, float64(50500*time.Microsecond), float64(inf.Mean), float64(time.Microsecond))
	assert.InDelta(t, float64(50*time.Millisecond), float64(inf.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(inf.P95), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(inf.P99), float64(time.Millisecond))
}

// TestWindow keeps only the most recent samples but counts all of them.
func TestWindow(t *testing.T) {
	p := New(Options{MaxSamples: 3}, nil)
	for _, ms := range []int{100, 1, 2, 3} {
		p.Record("op", time.Duration(ms)*time.Millisecond)
	}

	s := p.Summaries()[0]
	assert.Equal(t, int64(4), s.Count)
	assert.Equal(t, 3*time.Millisecond, s.Max)
	assert.Equal(t, time.Millisecond, s.Min)
}

// TestStartOperation records the elapsed time of a closure.
func TestStartOperation(t *testing.T) {
	p := New(Options{}, nil)
	done := p.StartOperation("sleep")
	time.Sleep(2 * time.Millisecond)
	done()

	s := p.Summaries()[0]
	assert.Equal(t, "sleep", s.Name)
	assert.GreaterOrEqual(t, s.Max, 2*time.Millisecond)
}

// TestReport logs one entry per operation plus a runtime entry, periodically when started.
func TestReport(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := New(Options{ReportInterval: 5 * time.Millisecond}, zap.New(core))
	p.Record("a", time.Millisecond)
	p.Record("b", time.Millisecond)

	p.Report()
	assert.Equal(t, 3, logs.Len())
	assert.Equal(t, 2, logs.FilterMessage("operation").Len())

	p.Start(context.Background())
	p.Start(context.Background())
	require.Eventually(t, func() bool { return logs.Len() >= 6 }, time.Second, time.Millisecond)
	p.Stop()
	p.Stop()
}
