package queuez

import (
	"context"
	"errors"
)

// SerialQueue delivers each item to its members one after another on the calling
// goroutine. It is the simplest strategy and needs no pool.
type SerialQueue[T any] struct {
	*queueBase[T]
}

// NewSerialQueue creates a serial queue in the Created state.
//
// When to use:
//   - Members are cheap and the caller's goroutine is the right place to run them
//   - Deterministic per-member delivery order matters
//   - Running alongside a parallel group inside a MixedQueue
//
// Example:
//
//	q := queuez.NewSerialQueue[int](queuez.WithName("audit"))
//	_ = q.Add(auditor)
//	_ = q.Start()
//	delivered, err := q.Process(ctx, 42)
func NewSerialQueue[T any](opts ...Option) *SerialQueue[T] {
	o := buildOptions("queue.serial", "serial-queue", opts)
	q := &SerialQueue[T]{queueBase: newQueueBase[T](o)}
	q.Lifecycle = NewLifecycle("serial-queue", o.name, q.startMembers, q.stopMembers)
	return q
}

// Process delivers item to a snapshot of the members in registration order and
// reports whether any of them accepted it. A failing member does not stop delivery
// to the rest; every failure comes back joined as *ProcessError values.
func (q *SerialQueue[T]) Process(ctx context.Context, item T) (bool, error) {
	if q.shut.Load() {
		return false, ErrShutdown
	}
	return q.Guard(func() (bool, error) {
		return q.deliver(ctx, item, q.members.snapshot())
	})
}

func (q *SerialQueue[T]) deliver(ctx context.Context, item T, members []Processor[T]) (bool, error) {
	if len(members) == 0 {
		return false, nil
	}
	q.dispatched()
	q.stats.submitted.Add(int64(len(members)))
	q.opts.metrics.Submitted(q.opts.name, len(members))

	var delivered bool
	var errs []error
	for _, m := range members {
		ok, err := m.Process(ctx, item)
		q.stats.completed.Add(1)
		q.opts.metrics.Completed(q.opts.name)
		if err != nil {
			errs = append(errs, q.failed(m.ID(), item, err))
			continue
		}
		delivered = delivered || ok
	}
	return delivered, errors.Join(errs...)
}

// Shutdown stops the queue if it is running and refuses all later use.
func (q *SerialQueue[T]) Shutdown() error {
	if !q.shut.CompareAndSwap(false, true) {
		return nil
	}
	err := q.stopRunning()
	q.members.forgetDetached()
	q.opts.log.Debug("queue shut down")
	return err
}

var _ Queue[int] = (*SerialQueue[int])(nil)
