package queuez

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MixedQueue feeds every item to two groups: a serial group run on the caller's
// goroutine and a parallel group run on a worker pool. Membership is a single ID
// space across both groups.
//
// Process submits to the parallel group first, then runs the serial group, so
// slow serial members overlap with the pool instead of delaying it.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type MixedQueue[T any] struct {
	*Lifecycle
	serial   *SerialQueue[T]
	parallel *ParallelQueue[T]
	opts     options
	stats    counters
	addMu    sync.Mutex
	shut     atomic.Bool
}

// NewMixedQueue creates a mixed queue from cfg. Workers sizes the parallel group's
// pool; when Bounded is set the parallel group also caps in-flight deliveries at
// Capacity. cfg.Kind is ignored.
//
// Example:
//
//	cfg := queuez.DefaultConfig()
//	cfg.Workers = 8
//	q, err := queuez.NewMixedQueue[int](cfg, queuez.WithName("primes"))
//	if err != nil {
//		return err
//	}
//	_ = q.Add(average)           // cheap, runs inline
//	_ = q.AddParallel(primeCount) // expensive, runs on the pool
func NewMixedQueue[T any](cfg Config, opts ...Option) (*MixedQueue[T], error) {
	cfg.Kind = KindMixed
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions("queue.mixed", "mixed-queue", cfg.Options(opts...))
	capacity := 0
	if cfg.Bounded {
		capacity = cfg.Capacity
	}

	q := &MixedQueue[T]{
		opts:     o,
		serial:   NewSerialQueue[T](groupOptions(o, "serial")...),
		parallel: newParallelQueue[T]("queue.mixed", "mixed-parallel", cfg.Workers, capacity, groupOptions(o, "parallel")),
	}
	q.Lifecycle = NewLifecycle("mixed-queue", o.name, q.onStart, q.onStop)
	return q, nil
}

func groupOptions(o options, group string) []Option {
	return []Option{
		WithName(o.name + "/" + group),
		WithClock(o.clock),
		WithLogger(o.logger),
		WithMetrics(o.metrics),
		WithExecutor(o.executor),
		WithShutdownMode(o.shutdownMode),
		WithSubmitTimeout(o.submitTimeout),
	}
}

// Name returns the queue name.
func (q *MixedQueue[T]) Name() string {
	return q.opts.name
}

// Add registers p in the serial group.
func (q *MixedQueue[T]) Add(p Processor[T]) error {
	return q.addTo(q.serial.queueBase, q.parallel.queueBase, p)
}

// AddParallel registers p in the parallel group.
func (q *MixedQueue[T]) AddParallel(p Processor[T]) error {
	return q.addTo(q.parallel.queueBase, q.serial.queueBase, p)
}

func (q *MixedQueue[T]) addTo(group, other *queueBase[T], p Processor[T]) error {
	if q.shut.Load() {
		return ErrShutdown
	}
	if p == nil {
		return fmt.Errorf("add nil processor: %w", ErrInvalidArgument)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	q.addMu.Lock()
	defer q.addMu.Unlock()

	if other.members.contains(p.ID()) {
		return fmt.Errorf("add %q: registered in %s: %w", p.ID(), other.Name(), ErrDuplicateID)
	}
	return group.Add(p)
}

// Remove detaches p from whichever group holds it.
func (q *MixedQueue[T]) Remove(p Processor[T]) {
	q.serial.Remove(p)
	q.parallel.Remove(p)
}

// RemoveAll detaches every member of both groups.
func (q *MixedQueue[T]) RemoveAll() {
	q.serial.RemoveAll()
	q.parallel.RemoveAll()
}

// Get returns the member registered under id in either group, or nil.
func (q *MixedQueue[T]) Get(id string) Processor[T] {
	if p := q.serial.Get(id); p != nil {
		return p
	}
	return q.parallel.Get(id)
}

// Count returns the membership size of both groups together.
func (q *MixedQueue[T]) Count() int {
	return q.serial.Count() + q.parallel.Count()
}

// SerialCount returns the size of the serial group.
func (q *MixedQueue[T]) SerialCount() int {
	return q.serial.Count()
}

// ParallelCount returns the size of the parallel group.
func (q *MixedQueue[T]) ParallelCount() int {
	return q.parallel.Count()
}

// Workers returns the parallel group's pool size.
func (q *MixedQueue[T]) Workers() int {
	return q.parallel.Workers()
}

// Stats merges the counters of both groups. Dispatched counts items this queue
// fanned out, not the sum of the groups.
func (q *MixedQueue[T]) Stats() Stats {
	s := q.serial.Stats().merge(q.parallel.Stats())
	s.Name = q.opts.name
	s.Dispatched = q.stats.dispatched.Load()
	s.LastDispatch = q.stats.lastDispatch.Load()
	s.StartedAt = q.stats.startedAt.Load()
	s.StoppedAt = q.stats.stoppedAt.Load()
	return s
}

// Process delivers item to both groups and reports whether any member accepted
// or was handed it. Errors from both groups come back joined.
func (q *MixedQueue[T]) Process(ctx context.Context, item T) (bool, error) {
	if q.shut.Load() {
		return false, ErrShutdown
	}
	return q.Guard(func() (bool, error) {
		// The groups run while this queue runs, and this queue cannot stop while
		// Guard is held, so both are dispatched to directly.
		pm := q.parallel.members.snapshot()
		sm := q.serial.members.snapshot()
		if len(pm) == 0 && len(sm) == 0 {
			return false, nil
		}

		q.stats.dispatched.Add(1)
		q.stats.lastDispatch.Store(q.opts.clock.Now())
		q.opts.metrics.ItemDispatched(q.opts.name)

		pOK, pErr := q.parallel.submit(ctx, item, pm)
		sOK, sErr := q.serial.deliver(ctx, item, sm)
		return pOK || sOK, errors.Join(pErr, sErr)
	})
}

func (q *MixedQueue[T]) onStart() error {
	if q.shut.Load() {
		return ErrShutdown
	}
	if err := q.parallel.Start(); err != nil {
		return err
	}
	if err := q.serial.Start(); err != nil {
		return errors.Join(err, q.parallel.Stop())
	}
	q.stats.startedAt.Store(q.opts.clock.Now())
	q.stats.stoppedAt.Store(time.Time{})
	q.opts.log.Debug("queue started", "serial", q.serial.Count(), "parallel", q.parallel.Count())
	return nil
}

// onStop drains the parallel group before stopping the serial one, so results of
// every member are final once Stop returns.
func (q *MixedQueue[T]) onStop() error {
	err := errors.Join(q.parallel.Stop(), q.serial.Stop())
	q.stats.stoppedAt.Store(q.opts.clock.Now())
	q.opts.log.Debug("queue stopped")
	return err
}

// Shutdown stops the queue if it is running, shuts both groups down, and refuses
// all later use. It is idempotent.
func (q *MixedQueue[T]) Shutdown() error {
	if !q.shut.CompareAndSwap(false, true) {
		return nil
	}
	if q.opts.shutdownMode == ShutdownImmediate {
		q.parallel.abortNow()
	}

	err := q.stopRunning()
	err = errors.Join(err, q.parallel.Shutdown(), q.serial.Shutdown())
	q.opts.log.Debug("queue shut down", "mode", q.opts.shutdownMode)
	return err
}

var _ Queue[int] = (*MixedQueue[int])(nil)
