package load

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RunConfig configures a coordinated run.
type RunConfig struct {
	// Threads is the number of workers. The controller's aggregate rate
	// is divided evenly across them.
	Threads int

	// OpCount is the total static-mode operation target, split across
	// workers with the remainder going to the first ones. 0 = unlimited.
	OpCount int64

	// TargetRate is the static-mode aggregate rate in ops/sec.
	// <= 0 means unthrottled. Ignored when a controller is supplied.
	TargetRate float64

	// Warmup is the per-worker unmetered startup window.
	Warmup time.Duration

	// SpinWait selects busy-spin deadline waits for all workers.
	SpinWait bool
}

// Coordinator starts the workers, owns the shared stop flag, and tracks
// overall completion. There is no per-operation dispatch: once released,
// each worker paces itself against the shared controller.
type Coordinator struct {
	cfg        RunConfig
	controller *Controller // nil in static mode
	workers    []*Worker

	stop    atomic.Bool
	running atomic.Bool

	// startNanos publishes the run's start instant (UnixNano) so Stats can
	// read it concurrently with Run. 0 until Run begins.
	startNanos atomic.Int64

	// OnPacingStart, if set, runs after all workers finish warmup and
	// before they are released into pacing. Used to reset measurement
	// state so warmup is excluded from reported numbers.
	OnPacingStart func()
}

// NewCoordinator builds the worker set. controller may be nil for static
// pacing; op is shared by all workers and must be safe for concurrent use.
func NewCoordinator(cfg RunConfig, op Operation, controller *Controller, recorder Recorder) *Coordinator {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}

	c := &Coordinator{
		cfg:        cfg,
		controller: controller,
	}

	perThreadPerMs := 0.0
	if controller == nil && cfg.TargetRate > 0 {
		perThreadPerMs = cfg.TargetRate / float64(cfg.Threads) / 1000.0
	}

	opsPerWorker := int64(0)
	remainder := int64(0)
	if cfg.OpCount > 0 {
		opsPerWorker = cfg.OpCount / int64(cfg.Threads)
		remainder = cfg.OpCount % int64(cfg.Threads)
	}

	for i := 0; i < cfg.Threads; i++ {
		opCount := opsPerWorker
		if int64(i) < remainder {
			opCount++
		}
		w := NewWorker(WorkerConfig{
			ID:                   i,
			Threads:              cfg.Threads,
			OpCount:              opCount,
			TargetPerThreadPerMs: perThreadPerMs,
			Warmup:               cfg.Warmup,
			SpinWait:             cfg.SpinWait,
		}, op, controller, recorder, &c.stop)
		c.workers = append(c.workers, w)
	}

	return c
}

// Run executes the full lifecycle: all workers warm up in parallel, the
// controller's reference instant is set exactly once, and only then are
// workers released into pacing. Blocks until every worker is done and
// returns the first worker error, if any.
func (c *Coordinator) Run(ctx context.Context) error {
	c.running.Store(true)
	c.startNanos.Store(time.Now().UnixNano())
	defer c.running.Store(false)

	release := make(chan struct{})

	var warmupWg sync.WaitGroup
	var wg sync.WaitGroup

	var firstErr error
	var errMu sync.Mutex

	for _, w := range c.workers {
		warmupWg.Add(1)
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()

			w.Warmup(ctx)
			warmupWg.Done()

			<-release

			if err := w.Pace(ctx); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				// One worker failing shouldn't leave the rest running
				// an open-loop schedule forever.
				c.stop.Store(true)
			}
		}(w)
	}

	warmupWg.Wait()

	if c.OnPacingStart != nil {
		c.OnPacingStart()
	}

	// The reference instant is set after warmup so the shaped window
	// excludes it. Exactly once per run.
	if c.controller != nil {
		c.controller.Start()
	}
	close(release)

	wg.Wait()
	return firstErr
}

// Stop requests a cooperative stop. Workers observe it once per cycle;
// in-flight operations run to completion.
func (c *Coordinator) Stop() {
	c.stop.Store(true)
}

// IsRunning reports whether Run is currently executing.
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// RunStats is a point-in-time view of a coordinated run.
type RunStats struct {
	Elapsed       time.Duration
	OpsDone       int64
	Workers       int
	WorkersDone   int
	TargetRate    float64
	RemainingTime time.Duration
	PhaseInfo     string
}

// Stats aggregates per-worker progress and, when dynamic control is active,
// the controller's current rate and phase description.
func (c *Coordinator) Stats() RunStats {
	stats := RunStats{
		Workers:    len(c.workers),
		TargetRate: c.cfg.TargetRate,
	}
	if start := c.startNanos.Load(); start > 0 {
		stats.Elapsed = time.Duration(time.Now().UnixNano() - start)
	}
	for _, w := range c.workers {
		stats.OpsDone += w.OpsDone()
		if w.State() == WorkerDone {
			stats.WorkersDone++
		}
	}
	if c.controller != nil {
		stats.PhaseInfo = c.controller.PhaseInfo()
		stats.TargetRate = c.controller.LastRate()
		stats.RemainingTime = c.controller.RemainingTime()
	}
	return stats
}

// Workers returns the coordinator's workers, for inspection.
func (c *Coordinator) Workers() []*Worker {
	return c.workers
}
