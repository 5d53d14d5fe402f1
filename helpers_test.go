package queuez

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// tally sums and counts the integers it sees.
type tally struct {
	sum    atomic.Int64
	count  atomic.Int64
	resets atomic.Int64
}

func (c *tally) Reset() {
	c.sum.Store(0)
	c.count.Store(0)
	c.resets.Add(1)
}

func (c *tally) Add(_ context.Context, v int) (bool, error) {
	c.sum.Add(int64(v))
	c.count.Add(1)
	return true, nil
}

func (c *tally) Snapshot() [2]int64 {
	return [2]int64{c.sum.Load(), c.count.Load()}
}

func newTally(id string) *Accumulating[int, [2]int64] {
	return NewResultProcessor[int, [2]int64](id, &tally{})
}

// recorder keeps every item in arrival order.
type recorder struct {
	mu    sync.Mutex
	items []int
}

func (r *recorder) process(_ context.Context, v int) (bool, error) {
	r.mu.Lock()
	r.items = append(r.items, v)
	r.mu.Unlock()
	return true, nil
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.items...)
}

func newRecording(id string) (*ProcessorFunc[int], *recorder) {
	r := &recorder{}
	return NewProcessor(id, r.process), r
}

// startFailing is a processor whose Start always fails.
type startFailing struct {
	*Lifecycle
}

func newStartFailing(id string) *startFailing {
	return &startFailing{Lifecycle: NewLifecycle("failing", id, func() error { return errBoom }, nil)}
}

func (s *startFailing) Process(context.Context, int) (bool, error) {
	return s.Guard(func() (bool, error) { return true, nil })
}

func feed(t *testing.T, p Processor[int], lo, hi int) {
	t.Helper()
	for i := lo; i <= hi; i++ {
		_, err := p.Process(context.Background(), i)
		require.NoError(t, err)
	}
}

func sumRange(lo, hi int) int64 {
	var s int64
	for i := lo; i <= hi; i++ {
		s += int64(i)
	}
	return s
}
