// Package testing provides processors and helpers for exercising queuez queues.
package testing

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zoobzio/queuez"
)

// ErrRejected is returned by Failing processors.
var ErrRejected = errors.New("rejected")

// Mean accumulates the arithmetic mean of the integers it sees.
type Mean struct {
	sum   atomic.Int64
	count atomic.Int64
}

// Reset clears the running sum.
func (m *Mean) Reset() {
	m.sum.Store(0)
	m.count.Store(0)
}

// Add folds v into the sum.
func (m *Mean) Add(_ context.Context, v int) (bool, error) {
	m.sum.Add(int64(v))
	m.count.Add(1)
	return true, nil
}

// Snapshot returns the mean, or 0 when nothing was seen.
func (m *Mean) Snapshot() float64 {
	n := m.count.Load()
	if n == 0 {
		return 0
	}
	return float64(m.sum.Load()) / float64(n)
}

// NewAverager returns a result processor computing the mean of its items.
func NewAverager(id string) *queuez.Accumulating[int, float64] {
	return queuez.NewResultProcessor[int, float64](id, &Mean{})
}

// PrimeTally records, for every value v it sees, the number of primes <= v.
// The result is order-independent: each entry depends only on its key.
type PrimeTally struct {
	mu     sync.Mutex
	counts map[int]int
}

// Reset clears the tally.
func (p *PrimeTally) Reset() {
	p.mu.Lock()
	p.counts = make(map[int]int)
	p.mu.Unlock()
}

// Add counts the primes up to v. The sieve runs outside the lock.
func (p *PrimeTally) Add(_ context.Context, v int) (bool, error) {
	n := CountPrimes(v)
	p.mu.Lock()
	p.counts[v] = n
	p.mu.Unlock()
	return true, nil
}

// Snapshot returns a copy of the tally.
func (p *PrimeTally) Snapshot() map[int]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int]int, len(p.counts))
	for k, v := range p.counts {
		out[k] = v
	}
	return out
}

// NewPrimeCounter returns a result processor mapping each item to pi(item).
func NewPrimeCounter(id string) *queuez.Accumulating[int, map[int]int] {
	return queuez.NewResultProcessor[int, map[int]int](id, &PrimeTally{})
}

// CountPrimes returns the number of primes <= n by trial division.
func CountPrimes(n int) int {
	count := 0
	for i := 2; i <= n; i++ {
		if isPrime(i) {
			count++
		}
	}
	return count
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	limit := int(math.Sqrt(float64(n)))
	for d := 2; d <= limit; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// Seen is the set of items a Recorder received, with per-item counts.
type Seen[T comparable] map[T]int

// set records every item it is handed.
type set[T comparable] struct {
	mu   sync.Mutex
	seen Seen[T]
}

func (s *set[T]) Reset() {
	s.mu.Lock()
	s.seen = make(Seen[T])
	s.mu.Unlock()
}

func (s *set[T]) Add(_ context.Context, item T) (bool, error) {
	s.mu.Lock()
	s.seen[item]++
	s.mu.Unlock()
	return true, nil
}

func (s *set[T]) Snapshot() Seen[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Seen[T], len(s.seen))
	for k, v := range s.seen {
		out[k] = v
	}
	return out
}

// NewRecorder returns a result processor whose result counts each item received.
func NewRecorder[T comparable](id string) *queuez.Accumulating[T, Seen[T]] {
	return queuez.NewResultProcessor[T, Seen[T]](id, &set[T]{})
}

// NewFailing returns a processor that rejects items for which reject is true.
// A nil reject rejects everything.
func NewFailing[T any](id string, reject func(T) bool) *queuez.ProcessorFunc[T] {
	return queuez.NewProcessor(id, func(_ context.Context, item T) (bool, error) {
		if reject == nil || reject(item) {
			return false, ErrRejected
		}
		return true, nil
	})
}

// NewBlocking returns a processor that waits on release before accepting each
// item, and the channel that releases it. Closing the channel releases all.
func NewBlocking[T any](id string) (*queuez.ProcessorFunc[T], chan struct{}) {
	release := make(chan struct{})
	p := queuez.NewProcessor(id, func(ctx context.Context, _ T) (bool, error) {
		select {
		case <-release:
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	})
	return p, release
}

// Range returns the integers lo..hi inclusive.
func Range(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

// Feed processes every item through q, failing the test on the first error.
func Feed[T any](t *testing.T, q queuez.Processor[T], items []T) {
	t.Helper()

	ctx := context.Background()
	for _, item := range items {
		_, err := q.Process(ctx, item)
		require.NoError(t, err, "process %v", item)
	}
}

// FeedEach processes every item through q, calling between before each one.
// between lets tests mutate membership while items flow.
func FeedEach[T any](t *testing.T, q queuez.Processor[T], items []T, between func(i int, item T)) {
	t.Helper()

	ctx := context.Background()
	for i, item := range items {
		if between != nil {
			between(i, item)
		}
		_, err := q.Process(ctx, item)
		require.NoError(t, err, "process %v", item)
	}
}

// RunCycle starts q, feeds items, and stops it, failing the test on any error.
func RunCycle[T any](t *testing.T, q queuez.Processor[T], items []T) {
	t.Helper()

	require.NoError(t, q.Start())
	Feed(t, q, items)
	require.NoError(t, q.Stop())
}

// Result reads p's result, failing the test on error.
func Result[T, R any](t *testing.T, p queuez.ResultProcessor[T, R]) R {
	t.Helper()

	r, err := p.Result()
	require.NoError(t, err)
	return r
}
