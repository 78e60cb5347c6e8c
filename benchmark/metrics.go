package benchmark

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/nvr-ai/go-detect/profiler"
)

// PerformanceMetrics captures the outcome of one scenario.
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario"`
	Timestamp       time.Time     `json:"timestamp"`
	TotalDuration   time.Duration `json:"total_duration"`
	FramesPerSecond float64       `json:"frames_per_second"`
	// Stages summarizes preprocess, inference, postprocess and whole-frame timings.
	Stages         []profiler.Summary `json:"stages"`
	MemoryStats    MemoryMetrics      `json:"memory_stats"`
	DetectionCount int                `json:"detection_count"`
	Failures       int                `json:"failures"`
	ErrorRate      float64            `json:"error_rate"`
}

// Stage returns the summary of one stage, or a zero summary if it was never recorded.
func (m *PerformanceMetrics) Stage(name string) profiler.Summary {
	for _, s := range m.Stages {
		if s.Name == name {
			return s
		}
	}
	return profiler.Summary{Name: name}
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// WriteJSON writes the full results.
func WriteJSON(w io.Writer, results []PerformanceMetrics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

var csvHeader = []string{
	"scenario", "resolution", "iterations", "fps", "total_ms",
	"preprocess_p50_ms", "inference_p50_ms", "inference_p95_ms", "postprocess_p50_ms",
	"alloc_mb", "detections", "error_rate",
}

// WriteCSV writes one summary row per scenario.
func WriteCSV(w io.Writer, results []PerformanceMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	ms := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 2, 64)
	}

	for i := range results {
		r := &results[i]
		row := []string{
			r.Scenario.Name,
			r.Scenario.Resolution.Name,
			strconv.Itoa(r.Scenario.Iterations),
			strconv.FormatFloat(r.FramesPerSecond, 'f', 2, 64),
			ms(r.TotalDuration),
			ms(r.Stage(StagePreprocess).P50),
			ms(r.Stage(StageInference).P50),
			ms(r.Stage(StageInference).P95),
			ms(r.Stage(StagePostprocess).P50),
			strconv.FormatFloat(float64(r.MemoryStats.AllocBytes)/(1024*1024), 'f', 2, 64),
			strconv.Itoa(r.DetectionCount),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
