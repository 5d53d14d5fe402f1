package queuez

import "context"

// ProcessorFunc is a stateless Processor backed by a single function.
type ProcessorFunc[T any] struct {
	*Lifecycle
	fn func(context.Context, T) (bool, error)
}

// NewProcessor creates a Processor that calls fn for every item while running.
// fn must be safe for concurrent use when the processor is fed by a parallel queue.
//
// Example:
//
//	seen := atomic.Int64{}
//	counter := queuez.NewProcessor("counter", func(_ context.Context, _ Event) (bool, error) {
//		seen.Add(1)
//		return true, nil
//	})
func NewProcessor[T any](id string, fn func(context.Context, T) (bool, error)) *ProcessorFunc[T] {
	return &ProcessorFunc[T]{
		Lifecycle: NewLifecycle("func", id, nil, nil),
		fn:        fn,
	}
}

// Process delivers item to the wrapped function.
func (p *ProcessorFunc[T]) Process(ctx context.Context, item T) (bool, error) {
	return p.Guard(func() (bool, error) {
		return p.fn(ctx, item)
	})
}

// Accumulator is the per-run state of a ResultProcessor.
// Add may be called concurrently and must be order-independent (sums, counts,
// per-key maxima), because parallel queues do not preserve delivery order.
type Accumulator[T, R any] interface {
	// Reset clears the state at the start of every run.
	Reset()

	// Add folds one item into the state.
	Add(ctx context.Context, item T) (bool, error)

	// Snapshot produces the final result when the run stops.
	Snapshot() R
}

// Accumulating is a ResultProcessor that folds items into an Accumulator and
// freezes a snapshot of it on Stop.
type Accumulating[T, R any] struct {
	*Lifecycle
	acc    Accumulator[T, R]
	result R
}

// NewResultProcessor wraps acc with the standard lifecycle. The accumulator is
// reset on every Start and snapshotted on every Stop.
func NewResultProcessor[T, R any](id string, acc Accumulator[T, R]) *Accumulating[T, R] {
	p := &Accumulating[T, R]{acc: acc}
	p.Lifecycle = NewLifecycle("result", id, p.reset, p.freeze)
	return p
}

func (p *Accumulating[T, R]) reset() error {
	var zero R
	p.result = zero
	p.acc.Reset()
	return nil
}

func (p *Accumulating[T, R]) freeze() error {
	p.result = p.acc.Snapshot()
	return nil
}

// Process folds item into the accumulator.
func (p *Accumulating[T, R]) Process(ctx context.Context, item T) (bool, error) {
	return p.Guard(func() (bool, error) {
		return p.acc.Add(ctx, item)
	})
}

// Result returns the snapshot taken at the last Stop.
func (p *Accumulating[T, R]) Result() (R, error) {
	var r R
	err := p.Stopped("result", func() {
		r = p.result
	})
	return r, err
}

var (
	_ Processor[int]            = (*ProcessorFunc[int])(nil)
	_ ResultProcessor[int, int] = (*Accumulating[int, int])(nil)
)
