package load

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestCoordinatorSplitsOpCount(t *testing.T) {
	c := NewCoordinator(RunConfig{Threads: 3, OpCount: 10}, &countingOp{}, nil, nil)

	workers := c.Workers()
	if len(workers) != 3 {
		t.Fatalf("workers = %d, want 3", len(workers))
	}
	// The remainder goes to the first workers so the totals add up exactly.
	want := []int64{4, 3, 3}
	var total int64
	for i, w := range workers {
		if w.cfg.OpCount != want[i] {
			t.Errorf("worker %d OpCount = %d, want %d", i, w.cfg.OpCount, want[i])
		}
		total += w.cfg.OpCount
	}
	if total != 10 {
		t.Errorf("total OpCount = %d, want 10", total)
	}
}

func TestCoordinatorRunCompletes(t *testing.T) {
	op := &countingOp{}
	rec := &captureRecorder{}
	c := NewCoordinator(RunConfig{Threads: 3, OpCount: 30}, op, nil, rec)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	stats := c.Stats()
	if stats.OpsDone != 30 {
		t.Errorf("OpsDone = %d, want 30", stats.OpsDone)
	}
	if stats.Workers != 3 || stats.WorkersDone != 3 {
		t.Errorf("workers = %d/%d done, want 3/3", stats.WorkersDone, stats.Workers)
	}
	if c.IsRunning() {
		t.Error("IsRunning = true after Run returned")
	}

	successes, _ := rec.counts()
	if successes != 30 {
		t.Errorf("recorded %d successes, want 30", successes)
	}
}

func TestCoordinatorStartsControllerAfterWarmup(t *testing.T) {
	ctrl, err := NewController(PatternConstant, SimpleConfig{
		Initial:  2000,
		Final:    2000,
		Duration: 80 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewController error: %v", err)
	}

	var pacingStarts atomic.Int64
	var startedAtHook atomic.Bool
	c := NewCoordinator(RunConfig{Threads: 2, Warmup: 40 * time.Millisecond}, &countingOp{}, ctrl, nil)
	c.OnPacingStart = func() {
		pacingStarts.Add(1)
		startedAtHook.Store(ctrl.Started())
	}

	begin := time.Now()
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	elapsed := time.Since(begin)

	if n := pacingStarts.Load(); n != 1 {
		t.Errorf("OnPacingStart called %d times, want 1", n)
	}
	// The hook fires before the controller's reference instant is set, so
	// observers can reset their clocks ahead of the shaped window.
	if startedAtHook.Load() {
		t.Error("controller was started before the pacing hook ran")
	}
	if !ctrl.Started() {
		t.Error("controller was never started")
	}
	// The shaped window excludes warmup, so the run spans both.
	if elapsed < 110*time.Millisecond {
		t.Errorf("run took %v, want warmup + window >= 110ms", elapsed)
	}
}

func TestCoordinatorWarmupOpsNotCounted(t *testing.T) {
	op := &countingOp{}
	c := NewCoordinator(RunConfig{Threads: 2, OpCount: 10, Warmup: 20 * time.Millisecond}, op, nil, nil)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if stats := c.Stats(); stats.OpsDone != 10 {
		t.Errorf("OpsDone = %d, want 10 counted ops", stats.OpsDone)
	}
	if op.calls.Load() <= 10 {
		t.Errorf("op called %d times, want warmup calls on top of the 10 counted", op.calls.Load())
	}
}

func TestCoordinatorFirstErrorStopsRun(t *testing.T) {
	// Unlimited workers: without the shared stop flag the healthy workers
	// would never return after one fails.
	op := &countingOp{failAt: 500}
	c := NewCoordinator(RunConfig{Threads: 4}, op, nil, nil)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, errOpFailed) {
			t.Errorf("Run error = %v, want the operation error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a worker failure")
	}

	for i, w := range c.Workers() {
		if w.State() != WorkerDone {
			t.Errorf("worker %d state = %v, want done", i, w.State())
		}
	}
}

func TestCoordinatorStop(t *testing.T) {
	op := &countingOp{}
	c := NewCoordinator(RunConfig{Threads: 2, TargetRate: 100}, op, nil, nil)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	if !c.IsRunning() {
		t.Fatal("IsRunning = false while Run is executing")
	}
	c.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run error = %v, want nil on cooperative stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

// Stats is read from a progress loop while Run executes in its own
// goroutine, so the start instant must be safe for concurrent access.
func TestCoordinatorStatsWhileRunning(t *testing.T) {
	op := &countingOp{}
	c := NewCoordinator(RunConfig{Threads: 2, TargetRate: 400}, op, nil, nil)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	deadline := time.Now().Add(100 * time.Millisecond)
	var sawElapsed bool
	for time.Now().Before(deadline) {
		if c.Stats().Elapsed > 0 {
			sawElapsed = true
		}
	}
	c.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	if !sawElapsed {
		t.Error("Stats never reported positive elapsed time during the run")
	}
	if c.Stats().Elapsed <= 0 {
		t.Error("Stats.Elapsed not positive after the run")
	}
}

func TestCoordinatorStaticRateShare(t *testing.T) {
	c := NewCoordinator(RunConfig{Threads: 4, TargetRate: 1000, OpCount: 100}, &countingOp{}, nil, nil)

	// 1000 ops/sec across 4 workers is 0.25 ops/ms each, a 4ms tick.
	for i, w := range c.Workers() {
		if w.cfg.TargetPerThreadPerMs != 0.25 {
			t.Errorf("worker %d share = %v ops/ms, want 0.25", i, w.cfg.TargetPerThreadPerMs)
		}
		if w.tick != 4*time.Millisecond {
			t.Errorf("worker %d tick = %v, want 4ms", i, w.tick)
		}
	}

	if stats := c.Stats(); stats.TargetRate != 1000 {
		t.Errorf("TargetRate = %v, want 1000", stats.TargetRate)
	}
}

func TestCoordinatorDynamicRun(t *testing.T) {
	ctrl, err := NewCustomController(NewPhaseTable([]PhaseEntry{
		{Start: 0, Duration: 100 * time.Millisecond, Rate: 1000, Label: "ramp"},
		{Start: 100 * time.Millisecond, Duration: 100 * time.Millisecond, Rate: 2000, Label: "peak"},
	}))
	if err != nil {
		t.Fatalf("NewCustomController error: %v", err)
	}

	op := &countingOp{}
	c := NewCoordinator(RunConfig{Threads: 2}, op, ctrl, nil)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	stats := c.Stats()
	if stats.OpsDone == 0 {
		t.Error("dynamic run issued no operations")
	}
	if stats.WorkersDone != 2 {
		t.Errorf("WorkersDone = %d, want 2", stats.WorkersDone)
	}
	if stats.PhaseInfo == "" {
		t.Error("PhaseInfo is empty for a dynamic run")
	}
	if stats.RemainingTime != 0 {
		t.Errorf("RemainingTime = %v after completion, want 0", stats.RemainingTime)
	}
}
