package queuez

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ParallelQueue fans each item out to its members across a worker pool.
// Process returns once every delivery is enqueued; Stop waits for all of them to
// complete, so results read after Stop are final.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type ParallelQueue[T any] struct {
	*queueBase[T]
	exec          Executor
	pool          *WorkerPool
	sem           chan struct{}
	abort         chan struct{}
	abortOnce     sync.Once
	wg            sync.WaitGroup
	errMu         sync.Mutex
	errs          []error
	mode          ShutdownMode
	submitTimeout time.Duration
}

// NewParallelQueue creates a parallel queue backed by a pool of workers goroutines,
// or by the executor passed with WithExecutor. If workers <= 0 the pool defaults
// to runtime.NumCPU().
//
// When to use:
//   - Members are CPU- or I/O-heavy and independent of each other
//   - Producers must not wait for slow members
//   - Order of delivery within a member does not matter
//
// Example:
//
//	q := queuez.NewParallelQueue[Event](8, queuez.WithName("enrich"))
//	defer q.Shutdown()
//
//	_ = q.Add(geoLookup)
//	_ = q.Add(fraudScore)
//	_ = q.Start()
//	for evt := range events {
//		_, _ = q.Process(ctx, evt)
//	}
//	if err := q.Stop(); err != nil {
//		// every async member failure of the run, joined
//	}
func NewParallelQueue[T any](workers int, opts ...Option) *ParallelQueue[T] {
	return newParallelQueue[T]("queue.parallel", "parallel-queue", workers, 0, opts)
}

func newParallelQueue[T any](component, kind string, workers, capacity int, opts []Option) *ParallelQueue[T] {
	o := buildOptions(component, kind, opts)
	q := &ParallelQueue[T]{
		queueBase:     newQueueBase[T](o),
		abort:         make(chan struct{}),
		mode:          o.shutdownMode,
		submitTimeout: o.submitTimeout,
	}
	if o.executor != nil {
		q.exec = o.executor
	} else {
		q.pool = NewWorkerPool(workers)
		q.exec = q.pool
	}
	if capacity > 0 {
		q.sem = make(chan struct{}, capacity)
	}
	q.Lifecycle = NewLifecycle(kind, o.name, q.onStart, q.onStop)
	return q
}

// Process submits one delivery per current member and reports whether any was
// submitted. Members registered after the snapshot do not receive the item;
// members removed after it still finish it.
func (q *ParallelQueue[T]) Process(ctx context.Context, item T) (bool, error) {
	if q.shut.Load() {
		return false, ErrShutdown
	}
	return q.Guard(func() (bool, error) {
		return q.submit(ctx, item, q.members.snapshot())
	})
}

func (q *ParallelQueue[T]) submit(ctx context.Context, item T, members []Processor[T]) (bool, error) {
	if len(members) == 0 {
		return false, nil
	}

	// Deliveries outlive the call; only the caller's wait for capacity is
	// cancellable through ctx.
	taskCtx := context.WithoutCancel(ctx)

	for i, m := range members {
		if err := q.acquire(ctx); err != nil {
			return q.partial(i, len(members), err)
		}

		q.wg.Add(1)
		q.stats.submitted.Add(1)
		q.stats.inFlight.Add(1)
		q.opts.metrics.Submitted(q.opts.name, 1)

		member := m
		if err := q.exec.Submit(func() { q.run(taskCtx, member, item) }); err != nil {
			q.settle()
			q.opts.metrics.Completed(q.opts.name)
			return q.partial(i, len(members), err)
		}
	}

	q.dispatched()
	return true, nil
}

// partial reports a fan-out that stopped after n of total submissions. Members
// already submitted keep the item.
func (q *ParallelQueue[T]) partial(n, total int, err error) (bool, error) {
	if n > 0 {
		q.dispatched()
	}
	return n > 0, fmt.Errorf("%s: %d of %d members skipped: %w", q.opts.name, total-n, total, err)
}

// acquire takes one capacity slot, blocking while the queue is at its bound.
func (q *ParallelQueue[T]) acquire(ctx context.Context) error {
	if q.sem == nil {
		return nil
	}

	select {
	case q.sem <- struct{}{}:
		return nil
	default:
	}

	var timeout <-chan time.Time
	if q.submitTimeout > 0 {
		timeout = q.opts.clock.After(q.submitTimeout)
	}

	select {
	case q.sem <- struct{}{}:
		return nil
	case <-q.abort:
		return ErrShutdown
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case <-timeout:
		return fmt.Errorf("%w after %s", ErrTimeout, q.submitTimeout)
	}
}

// settle releases the bookkeeping of one submission.
func (q *ParallelQueue[T]) settle() {
	if q.sem != nil {
		<-q.sem
	}
	q.stats.inFlight.Add(-1)
	q.wg.Done()
}

func (q *ParallelQueue[T]) run(ctx context.Context, m Processor[T], item T) {
	defer q.settle()
	defer q.opts.metrics.Completed(q.opts.name)

	select {
	case <-q.abort:
		q.stats.abandoned.Add(1)
		q.opts.metrics.Abandoned(q.opts.name)
		return
	default:
	}

	defer func() {
		if r := recover(); r != nil {
			q.record(m.ID(), item, fmt.Errorf("panic: %v", r))
		}
		q.stats.completed.Add(1)
	}()

	if _, err := m.Process(ctx, item); err != nil {
		q.record(m.ID(), item, err)
	}
}

func (q *ParallelQueue[T]) record(memberID string, item T, err error) {
	pe := q.failed(memberID, item, err)
	q.opts.log.Warn("member failed", "member", memberID, "error", err)

	q.errMu.Lock()
	q.errs = append(q.errs, pe)
	q.errMu.Unlock()
}

func (q *ParallelQueue[T]) onStart() error {
	q.errMu.Lock()
	q.errs = nil
	q.errMu.Unlock()
	return q.startMembers()
}

// onStop runs under the write lock, so no submitter is in flight. It waits for
// every outstanding delivery, then stops the members and reports the run's
// asynchronous failures.
func (q *ParallelQueue[T]) onStop() error {
	began := q.opts.clock.Now()
	q.wg.Wait()
	drained := q.opts.clock.Now().Sub(began)
	q.opts.metrics.Drained(q.opts.name, drained)
	q.opts.log.Debug("queue drained", "duration", drained)

	q.errMu.Lock()
	errs := q.errs
	q.errs = nil
	q.errMu.Unlock()

	return errors.Join(append(errs, q.stopMembers())...)
}

// Shutdown stops the queue if it is running, closes the pool it owns, and refuses
// all later use. In graceful mode outstanding deliveries complete first; in
// immediate mode queued deliveries are abandoned and blocked submitters return
// ErrShutdown. Deliveries already executing always finish. It is idempotent.
func (q *ParallelQueue[T]) Shutdown() error {
	if !q.shut.CompareAndSwap(false, true) {
		return nil
	}
	if q.mode == ShutdownImmediate {
		q.abortNow()
	}

	err := q.stopRunning()
	q.members.forgetDetached()
	if q.pool != nil {
		q.pool.Close()
	}
	q.opts.log.Debug("queue shut down", "mode", q.mode)
	return err
}

func (q *ParallelQueue[T]) abortNow() {
	q.abortOnce.Do(func() { close(q.abort) })
}

// Workers returns the size of the owned pool, or 0 with an external executor.
func (q *ParallelQueue[T]) Workers() int {
	if q.pool == nil {
		return 0
	}
	return q.pool.Workers()
}

// BoundedParallelQueue is a ParallelQueue that caps in-flight deliveries.
// A Process call that would exceed the cap blocks until a delivery completes,
// so a fast producer cannot outrun a slow pool. Nothing is dropped while blocked.
type BoundedParallelQueue[T any] struct {
	*ParallelQueue[T]
}

// NewBoundedParallelQueue creates a parallel queue with at most capacity
// submitted-but-not-completed deliveries. capacity below 1 is raised to 1.
//
// A blocked Process returns early only when:
//   - an immediate Shutdown runs (ErrShutdown)
//   - ctx is done (ErrTimeout wrapping ctx.Err())
//   - the WithSubmitTimeout duration elapses (ErrTimeout)
//
// Example:
//
//	q := queuez.NewBoundedParallelQueue[Row](4, 64)
//	_ = q.Add(writer)
//	_ = q.Start()
//	for row := range rows {
//		// blocks while 64 deliveries are outstanding
//		_, _ = q.Process(ctx, row)
//	}
func NewBoundedParallelQueue[T any](workers, capacity int, opts ...Option) *BoundedParallelQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedParallelQueue[T]{
		ParallelQueue: newParallelQueue[T]("queue.bounded", "bounded-queue", workers, capacity, opts),
	}
}

// Capacity returns the in-flight bound.
func (q *BoundedParallelQueue[T]) Capacity() int {
	return cap(q.sem)
}

// InFlight returns the number of occupied capacity slots.
func (q *BoundedParallelQueue[T]) InFlight() int {
	return len(q.sem)
}

var (
	_ Queue[int] = (*ParallelQueue[int])(nil)
	_ Queue[int] = (*BoundedParallelQueue[int])(nil)
)
