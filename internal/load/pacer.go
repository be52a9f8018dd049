package load

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"
)

// WorkerState represents the lifecycle state of a pacing worker.
type WorkerState int32

const (
	// WorkerIdle indicates the worker has not started yet.
	WorkerIdle WorkerState = iota
	// WorkerWarmup indicates the worker is executing unmetered warmup
	// operations.
	WorkerWarmup
	// WorkerPacing indicates the worker is issuing paced operations.
	WorkerPacing
	// WorkerDone indicates the worker's loop has exited.
	WorkerDone
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerWarmup:
		return "warmup"
	case WorkerPacing:
		return "pacing"
	case WorkerDone:
		return "done"
	default:
		return "unknown"
	}
}

const (
	// ratePollInterval is how often a dynamic worker re-samples the
	// controller. The controller's output does not change meaningfully
	// faster than this, so tighter polling is wasted work.
	ratePollInterval = 100 * time.Millisecond

	// rateTolerance is the minimum change in per-thread ops/ms that a
	// worker adopts. Smaller deltas are floating-point noise; adopting
	// them would churn the pacing epoch for nothing.
	rateTolerance = 0.001
)

// WorkerConfig configures a single pacing worker.
type WorkerConfig struct {
	// ID identifies the worker in errors and diagnostics.
	ID int

	// Threads is the total worker count, the divisor that turns the
	// controller's aggregate rate into this worker's share.
	Threads int

	// OpCount is the static-mode operation target for this worker.
	// 0 means unlimited (run until stopped or the workload is exhausted).
	// Ignored in dynamic mode.
	OpCount int64

	// TargetPerThreadPerMs is the static-mode pacing rate in ops/ms.
	// <= 0 means unthrottled. Ignored in dynamic mode.
	TargetPerThreadPerMs float64

	// Warmup is the unmetered execution window before pacing begins.
	Warmup time.Duration

	// SpinWait busy-spins until each deadline instead of sleeping.
	// Sub-millisecond precision at the cost of a core.
	SpinWait bool
}

// Worker paces operation issuance against a target rate.
//
// All pacing state (epoch, tick, operation counter, poll timestamp) is
// exclusively owned by the worker's goroutine; nothing else reads or writes
// it, so the hot path takes no locks. The only shared state a worker touches
// is the controller (pure concurrent reads) and the stop flag.
type Worker struct {
	cfg        WorkerConfig
	op         Operation
	controller *Controller // nil in static mode
	recorder   Recorder
	stop       *atomic.Bool

	state    atomic.Int32
	totalOps atomic.Int64 // counted operations, excludes warmup

	// Pacing state, owned by the worker goroutine.
	opsDone        int64 // operations completed against the current epoch
	targetOpsPerMs float64
	tick           time.Duration // interval between deadlines, 0 = unthrottled
	epoch          time.Time     // reference instant for deadline arithmetic
	lastPoll       time.Time
}

// NewWorker creates a worker. A nil controller selects static pacing from
// cfg.TargetPerThreadPerMs; a non-nil controller selects dynamic pacing and
// cfg.Threads must be >= 1. The stop flag is shared with the coordinator and
// may be nil for standalone use.
func NewWorker(cfg WorkerConfig, op Operation, controller *Controller, recorder Recorder, stop *atomic.Bool) *Worker {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	w := &Worker{
		cfg:        cfg,
		op:         op,
		controller: controller,
		recorder:   recorder,
		stop:       stop,
	}
	if controller == nil && cfg.TargetPerThreadPerMs > 0 {
		w.adoptRate(cfg.TargetPerThreadPerMs)
	}
	return w
}

// State returns the worker's lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// OpsDone returns the number of counted (post-warmup) operations.
func (w *Worker) OpsDone() int64 {
	return w.totalOps.Load()
}

// Warmup executes operations unmetered until the warmup window elapses, the
// workload is exhausted, or a stop is observed. Warmup operations are not
// counted and not recorded.
func (w *Worker) Warmup(ctx context.Context) {
	w.state.Store(int32(WorkerWarmup))
	if w.cfg.Warmup <= 0 {
		return
	}

	deadline := time.Now().Add(w.cfg.Warmup)
	for time.Now().Before(deadline) {
		if w.stopped(ctx) {
			return
		}
		if err := w.op.Execute(ctx); err != nil {
			// Warmup failures are not surfaced; the pacing loop will
			// report them if they persist.
			return
		}
	}
}

// Pace runs the paced operation loop until completion. In static mode the
// loop ends when OpCount is reached; in dynamic mode when the controller's
// window has elapsed. In both modes a stop signal or workload exhaustion
// ends the loop cleanly, and an operation failure ends it with the error.
func (w *Worker) Pace(ctx context.Context) error {
	w.state.Store(int32(WorkerPacing))
	defer w.state.Store(int32(WorkerDone))

	dynamic := w.controller != nil
	now := time.Now()
	w.epoch = now
	w.opsDone = 0
	w.lastPoll = now

	if dynamic {
		// Seed the tick from the controller's rate at pacing start
		// rather than running the first poll interval unthrottled.
		share := w.controller.CurrentThroughput() / float64(w.cfg.Threads) / 1000.0
		if share > 0 {
			w.adoptRate(share)
		}
	} else if w.targetOpsPerMs > 0 && w.targetOpsPerMs <= 1.0 {
		// Spread slow workers out so their deadlines don't all land on
		// the same instant.
		stagger := time.Duration(rand.Int63n(int64(w.tick)))
		w.sleepUntil(now.Add(stagger))
		w.epoch = time.Now()
	}

	for {
		if w.stopped(ctx) {
			return nil
		}
		if dynamic {
			if w.controller.IsCompleted() {
				return nil
			}
			w.maybePollRate(time.Now())
		} else if w.cfg.OpCount > 0 && w.totalOps.Load() >= w.cfg.OpCount {
			return nil
		}

		var intended time.Time
		if w.tick > 0 {
			intended = w.epoch.Add(time.Duration(w.opsDone) * w.tick)
			w.sleepUntil(intended)
		}

		start := time.Now()
		err := w.op.Execute(ctx)
		latency := time.Since(start)

		if errors.Is(err, ErrNoMoreOps) {
			return nil
		}

		if w.recorder != nil {
			var delay time.Duration
			if !intended.IsZero() {
				if delay = start.Sub(intended); delay < 0 {
					delay = 0
				}
			}
			w.recorder.RecordOperation(latency, delay, err == nil)
		}

		if err != nil {
			return fmt.Errorf("worker %d: operation failed: %w", w.cfg.ID, err)
		}

		w.opsDone++
		w.totalOps.Add(1)
	}
}

// maybePollRate re-samples the controller on the poll cadence and adopts the
// new per-thread share only when it moved by more than the tolerance.
//
// Adoption resets both the pacing epoch and the operation counter. The two
// must move together: the deadline formula epoch+k*tick telescopes k old
// ticks into the new tick length, so keeping either value would issue a
// burst (new tick shorter) or stall the worker (new tick longer).
func (w *Worker) maybePollRate(now time.Time) {
	if now.Sub(w.lastPoll) < ratePollInterval {
		return
	}
	w.lastPoll = now

	total := w.controller.CurrentThroughput()
	share := total / float64(w.cfg.Threads) / 1000.0

	if share > 0 && math.Abs(share-w.targetOpsPerMs) > rateTolerance {
		w.adoptRate(share)
		w.epoch = now
		w.opsDone = 0
	}
}

// adoptRate sets the active per-thread rate and derives the tick length.
func (w *Worker) adoptRate(opsPerMs float64) {
	w.targetOpsPerMs = opsPerMs
	if opsPerMs > 0 {
		w.tick = time.Duration(1e6/opsPerMs) * time.Nanosecond
	} else {
		w.tick = 0
	}
}

// sleepUntil blocks until the deadline on the monotonic clock. The default
// path sleeps and rechecks; with SpinWait it burns the remaining time on the
// CPU for tighter wakeups.
func (w *Worker) sleepUntil(deadline time.Time) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if !w.cfg.SpinWait {
			time.Sleep(remaining)
		}
	}
}

// stopped reports whether a cooperative stop has been observed. Polled once
// per loop iteration; in-flight operations are never interrupted.
func (w *Worker) stopped(ctx context.Context) bool {
	if w.stop != nil && w.stop.Load() {
		return true
	}
	return ctx.Err() != nil
}
