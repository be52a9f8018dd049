// Package metrics collects operation measurements for a load run using HDR
// histograms.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine aggregates per-operation measurements from all workers.
//
// Two histograms are kept: operation latency, and scheduling delay (how far
// past its intended deadline each operation actually started). The delay
// histogram is what makes pacing quality visible: a well-behaved run keeps
// it in the low microseconds, while an overloaded target pushes it up even
// though latency alone would not show the pacer falling behind.
//
// Safe for concurrent use; counters and histograms share one mutex since
// workers record at most a few thousand times per second each.
type Engine struct {
	mu          sync.Mutex
	latencyHist *hdrhistogram.Histogram
	delayHist   *hdrhistogram.Histogram

	totalOps   int64
	successOps int64
	failedOps  int64

	startTime time.Time

	config EngineConfig
}

// EngineConfig bounds the histograms.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds.
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds.
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures.
	HistogramSigFigs int
}

// DefaultEngineConfig returns 1µs..1h at 3 significant figures.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a metrics engine with the default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a metrics engine with custom histogram bounds.
func NewEngineWithConfig(config EngineConfig) *Engine {
	return &Engine{
		latencyHist: hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		delayHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		startTime:   time.Now(),
		config:      config,
	}
}

// RecordOperation records one issued operation. schedulingDelay is the gap
// between the operation's intended deadline and its actual start; pass 0
// for unthrottled operations.
func (e *Engine) RecordOperation(latency, schedulingDelay time.Duration, success bool) {
	latencyMicros := clamp(latency.Microseconds(), e.config)
	delayMicros := clamp(schedulingDelay.Microseconds(), e.config)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.latencyHist.RecordValue(latencyMicros)
	e.delayHist.RecordValue(delayMicros)
	e.totalOps++
	if success {
		e.successOps++
	} else {
		e.failedOps++
	}
}

func clamp(micros int64, config EngineConfig) int64 {
	if micros < config.HistogramMin {
		return config.HistogramMin
	}
	if micros > config.HistogramMax {
		return config.HistogramMax
	}
	return micros
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	TotalOps   int64         `json:"totalOps"`
	SuccessOps int64         `json:"successOps"`
	FailedOps  int64         `json:"failedOps"`
	ErrorRate  float64       `json:"errorRate"`
	Throughput float64       `json:"throughput"` // achieved ops/sec since start
	Elapsed    time.Duration `json:"elapsed"`

	Latency         LatencyStats `json:"latency"`
	SchedulingDelay LatencyStats `json:"schedulingDelay"`
}

// LatencyStats summarizes one histogram.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

func statsFromHist(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

// GetSnapshot returns a consistent snapshot of counters and percentiles.
func (e *Engine) GetSnapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := time.Since(e.startTime)

	throughput := 0.0
	if elapsed.Seconds() > 0 {
		throughput = float64(e.totalOps) / elapsed.Seconds()
	}

	errorRate := 0.0
	if e.totalOps > 0 {
		errorRate = float64(e.failedOps) / float64(e.totalOps)
	}

	return &Snapshot{
		TotalOps:        e.totalOps,
		SuccessOps:      e.successOps,
		FailedOps:       e.failedOps,
		ErrorRate:       errorRate,
		Throughput:      throughput,
		Elapsed:         elapsed,
		Latency:         statsFromHist(e.latencyHist),
		SchedulingDelay: statsFromHist(e.delayHist),
	}
}

// Reset clears all metrics and restarts the elapsed clock. Used between
// warmup and the measured run.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.latencyHist.Reset()
	e.delayHist.Reset()
	e.totalOps = 0
	e.successOps = 0
	e.failedOps = 0
	e.startTime = time.Now()
}
