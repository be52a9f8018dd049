package load

import (
	"context"
	"errors"
	"time"
)

// ErrNoMoreOps is returned by an Operation when the workload has nothing
// left to execute. Workers treat it as a clean completion signal, not a
// failure.
var ErrNoMoreOps = errors.New("no more operations")

// Operation issues a single operation against the system under test.
//
// Implementations run the operation to completion (or failure) before
// returning; the pacer never preempts an in-flight call. Any error other
// than ErrNoMoreOps terminates the issuing worker's loop and is surfaced to
// the coordinator.
type Operation interface {
	Execute(ctx context.Context) error
}

// OperationFunc adapts a function to the Operation interface.
type OperationFunc func(ctx context.Context) error

// Execute implements Operation.
func (f OperationFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Recorder receives per-operation measurements from workers.
//
// schedulingDelay is how far past the intended deadline the operation
// actually started; it is 0 for unthrottled operations.
type Recorder interface {
	RecordOperation(latency, schedulingDelay time.Duration, success bool)
}
