package load

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Controller derives the target aggregate throughput from elapsed run time.
//
// A Controller is logically immutable after construction except for its
// single Start() call, which records the reference instant pacing is measured
// from. Every other accessor recomputes its answer from monotonic time and
// the pure pattern formulas, so any number of workers may read it
// concurrently without locking. The last computed rate is published through a
// single atomic scalar purely as a diagnostic cache; readers never depend on
// another reader having refreshed it.
type Controller struct {
	pattern Pattern
	cfg     SimpleConfig
	table   PhaseTable // used only when pattern == PatternCustom

	initial  float64
	final    float64
	duration time.Duration

	// base is captured at construction; the reference instant is stored as
	// a monotonic offset from it so Start() publishes a single atomic word.
	base        time.Time
	started     atomic.Bool
	startOffset atomic.Int64 // nanoseconds from base, valid once started

	currentRate atomic.Uint64 // math.Float64bits of the last computed rate
}

// NewController builds a controller for a formula-based pattern.
// PatternCustom requires NewCustomController. Negative rates or duration
// fail fast rather than producing silently wrong pacing.
func NewController(pattern Pattern, cfg SimpleConfig) (*Controller, error) {
	if pattern == PatternCustom {
		return nil, fmt.Errorf("custom pattern requires a phase table")
	}
	if _, ok := evaluators[pattern]; !ok {
		return nil, fmt.Errorf("unknown load pattern %q", pattern)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.StepCount == 0 {
		cfg.StepCount = 5
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = 1.0
	}
	if cfg.Base == 0 {
		cfg.Base = math.E
	}

	c := &Controller{
		pattern:  pattern,
		cfg:      cfg,
		initial:  cfg.Initial,
		final:    cfg.Final,
		duration: cfg.Duration,
		base:     time.Now(),
	}
	c.currentRate.Store(math.Float64bits(cfg.Initial))
	return c, nil
}

// NewCustomController builds a controller that evaluates a phase table.
// Initial and final rates and the total duration are derived from the table.
func NewCustomController(table PhaseTable) (*Controller, error) {
	if table.Len() == 0 {
		table = NewPhaseTable(nil)
	}
	c := &Controller{
		pattern:  PatternCustom,
		table:    table,
		initial:  table.InitialRate(),
		final:    table.FinalRate(),
		duration: table.TotalDuration(),
		base:     time.Now(),
	}
	c.currentRate.Store(math.Float64bits(c.initial))
	return c, nil
}

// Start records the reference instant. It is called exactly once per run, by
// the coordinator, after warmup and before workers enter pacing.
func (c *Controller) Start() {
	c.startOffset.Store(int64(time.Since(c.base)))
	c.started.Store(true)
}

// Started reports whether Start has been called.
func (c *Controller) Started() bool {
	return c.started.Load()
}

// elapsed returns time since the reference instant, or 0 before Start.
func (c *Controller) elapsed() time.Duration {
	if !c.started.Load() {
		return 0
	}
	return time.Since(c.base) - time.Duration(c.startOffset.Load())
}

// CurrentThroughput computes the target aggregate rate (ops/sec) at the
// current instant. Safe for concurrent callers: each recomputes
// independently from the same pure formula.
func (c *Controller) CurrentThroughput() float64 {
	rate := c.rateAt(c.elapsed())
	c.currentRate.Store(math.Float64bits(rate))
	return rate
}

// LastRate returns the most recently computed throughput without
// recomputing. Diagnostic only.
func (c *Controller) LastRate() float64 {
	return math.Float64frombits(c.currentRate.Load())
}

func (c *Controller) rateAt(elapsed time.Duration) float64 {
	if c.pattern == PatternCustom {
		return c.table.RateAt(elapsed)
	}
	return Rate(c.pattern, elapsed, c.cfg)
}

// IsCompleted reports whether the shaped window has fully elapsed.
func (c *Controller) IsCompleted() bool {
	return c.elapsed() >= c.duration
}

// RemainingTime returns how much of the shaped window is left, never
// negative.
func (c *Controller) RemainingTime() time.Duration {
	remaining := c.duration - c.elapsed()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PhaseInfo returns a human-readable description of the current position in
// the load shape, for periodic status display.
func (c *Controller) PhaseInfo() string {
	elapsed := c.elapsed()
	rate := c.CurrentThroughput()

	if c.pattern == PatternCustom {
		if label, ok := c.table.LabelAt(elapsed); ok {
			return fmt.Sprintf("Phase: %s, Throughput: %.2f ops/sec, Elapsed: %dms",
				label, rate, elapsed.Milliseconds())
		}
	}

	return fmt.Sprintf("Pattern: %s, Throughput: %.2f ops/sec, Elapsed: %dms/%dms",
		c.pattern, rate, elapsed.Milliseconds(), c.duration.Milliseconds())
}

// Pattern returns the controller's pattern kind.
func (c *Controller) Pattern() Pattern {
	return c.pattern
}

// InitialRate returns the rate at elapsed 0 (derived for custom tables).
func (c *Controller) InitialRate() float64 {
	return c.initial
}

// FinalRate returns the rate at the end of the window (derived for custom
// tables).
func (c *Controller) FinalRate() float64 {
	return c.final
}

// TotalDuration returns the full length of the shaped window.
func (c *Controller) TotalDuration() time.Duration {
	return c.duration
}
