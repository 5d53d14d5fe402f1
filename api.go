// Package queuez provides stateful stream processors and the queues that feed them,
// letting callers add, remove, and query a changing set of long-lived computations
// while items are actively flowing through them.
//
// The core abstraction is the Processor interface: a restartable unit of work with a
// start/stop lifecycle that accepts one item at a time. Queues are Processors too
// (composite pattern), so starting, stopping, and feeding a queue cascades to its
// current members.
//
// Basic usage:
//
//	avg := queuez.NewResultProcessor[int, float64]("avg", &Mean{})
//
//	q := queuez.NewParallelQueue[int](8)
//	defer q.Shutdown()
//
//	_ = q.Add(avg)
//	_ = q.Start()
//	for i := 1; i <= 1000; i++ {
//		if _, err := q.Process(ctx, i); err != nil {
//			return err
//		}
//	}
//	_ = q.Stop() // drains in-flight work
//
//	mean, _ := avg.Result() // final and safe to read
//
// The package provides four dispatch strategies:
//   - SerialQueue: fan-out on the calling goroutine
//   - ParallelQueue: fan-out across a fixed worker pool, drained on stop
//   - BoundedParallelQueue: parallel fan-out with backpressure on submitters
//   - MixedQueue: a serial group and a parallel group fed the same items
package queuez

import "context"

// State is the lifecycle state of a Processor.
type State int32

const (
	// StateCreated is the state of a processor that has never been started.
	StateCreated State = iota
	// StateRunning accepts items.
	StateRunning
	// StateStopped is re-enterable: Start moves a stopped processor back to running
	// and resets its per-run state.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Processor is the unit of stateful stream computation.
// Implementations should:
//   - Reject Process calls unless running, with an error matching ErrInvalidState
//   - Reinitialise per-run state on every Start
//   - Block Stop until no Process call is in flight
//   - Be safe for concurrent use, since parallel queues deliver concurrently
type Processor[T any] interface {
	// ID identifies the processor within a queue.
	ID() string

	// Start transitions Created or Stopped to Running. Starting a running
	// processor is a no-op.
	Start() error

	// Stop transitions Running to Stopped, waiting for in-flight items.
	Stop() error

	// IsRunning is a non-blocking snapshot of the current state.
	IsRunning() bool

	// Process delivers one item and reports whether it was accepted.
	Process(ctx context.Context, item T) (bool, error)
}

// ResultProcessor is a Processor exposing a final aggregate once stopped.
// The result must not depend on the order in which items were delivered.
type ResultProcessor[T, R any] interface {
	Processor[T]

	// Result returns the aggregate of the last run. It fails with
	// ErrInvalidState while running or before the first run.
	Result() (R, error)
}

// Queue is a named, mutable collection of Processors that is itself a Processor.
type Queue[T any] interface {
	Processor[T]

	// Add registers p under its ID, starting it if the queue is running.
	Add(p Processor[T]) error

	// Remove detaches p from dispatch without stopping it.
	Remove(p Processor[T])

	// RemoveAll detaches every member without stopping any of them.
	RemoveAll()

	// Get returns the member registered under id, or nil.
	Get(id string) Processor[T]

	// Count returns the current membership size.
	Count() int

	// Stats returns a snapshot of the queue's counters.
	Stats() Stats

	// Name returns a descriptive name for the queue, useful for debugging.
	Name() string

	// Shutdown stops the queue if running, releases its pool, and makes every
	// later Start, Process, or Add fail with ErrShutdown. It is idempotent.
	Shutdown() error
}

// StatsSource is anything that can report queue statistics.
type StatsSource interface {
	Stats() Stats
	Name() string
}
