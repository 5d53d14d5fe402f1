package queuez

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMixed(t *testing.T, mutate func(*Config), opts ...Option) *MixedQueue[int] {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = 2
	if mutate != nil {
		mutate(&cfg)
	}
	q, err := NewMixedQueue[int](cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Shutdown() })
	return q
}

func TestMixedQueue_FeedsBothGroups(t *testing.T) {
	q := newTestMixed(t, nil, WithName("mixed"))

	inline := newTally("inline")
	pooled := newTally("pooled")
	require.NoError(t, q.Add(inline))
	require.NoError(t, q.AddParallel(pooled))

	assert.Equal(t, 2, q.Count())
	assert.Equal(t, 1, q.SerialCount())
	assert.Equal(t, 1, q.ParallelCount())
	assert.Equal(t, 2, q.Workers())
	assert.Same(t, inline, q.Get("inline"))
	assert.Same(t, pooled, q.Get("pooled"))

	require.NoError(t, q.Start())
	assert.True(t, inline.IsRunning())
	assert.True(t, pooled.IsRunning())
	feed(t, q, 1, 100)
	require.NoError(t, q.Stop())

	for _, p := range []*Accumulating[int, [2]int64]{inline, pooled} {
		got, err := p.Result()
		require.NoError(t, err)
		assert.Equal(t, [2]int64{sumRange(1, 100), 100}, got, p.ID())
	}

	s := q.Stats()
	assert.Equal(t, "mixed", s.Name)
	assert.Equal(t, 2, s.Members)
	assert.EqualValues(t, 100, s.Dispatched)
	assert.EqualValues(t, 200, s.Completed)
	assert.False(t, s.StoppedAt.IsZero())
}

func TestMixedQueue_SingleIDSpace(t *testing.T) {
	q := newTestMixed(t, nil)

	p := newTally("p")
	require.NoError(t, q.Add(p))
	require.NoError(t, q.Add(p), "re-adding to the same group is a no-op")
	assert.ErrorIs(t, q.AddParallel(p), ErrDuplicateID)
	assert.ErrorIs(t, q.AddParallel(newTally("p")), ErrDuplicateID)
	assert.ErrorIs(t, q.AddParallel(nil), ErrInvalidArgument)

	q.Remove(p)
	require.NoError(t, q.AddParallel(p), "moving groups after removal is allowed")
	assert.Equal(t, 0, q.SerialCount())
	assert.Equal(t, 1, q.ParallelCount())

	q.RemoveAll()
	assert.Zero(t, q.Count())
}

func TestMixedQueue_EmptyReturnsFalse(t *testing.T) {
	q := newTestMixed(t, nil)
	require.NoError(t, q.Start())

	ok, err := q.Process(context.Background(), 1)
	assert.False(t, ok)
	assert.NoError(t, err)
	require.NoError(t, q.Stop())
	assert.Zero(t, q.Stats().Dispatched)
}

func TestMixedQueue_JoinsGroupErrors(t *testing.T) {
	q := newTestMixed(t, nil)
	require.NoError(t, q.Add(NewProcessor("bad-inline", func(context.Context, int) (bool, error) {
		return false, errBoom
	})))
	require.NoError(t, q.AddParallel(NewProcessor("bad-pooled", func(context.Context, int) (bool, error) {
		return false, errBoom
	})))
	require.NoError(t, q.Start())

	ok, err := q.Process(context.Background(), 1)
	assert.True(t, ok, "the parallel group was handed the item")
	assert.ErrorIs(t, err, errBoom)

	stopErr := q.Stop()
	assert.ErrorIs(t, stopErr, errBoom)
	assert.EqualValues(t, 2, q.Stats().Failed)
}

func TestMixedQueue_StartRollsBack(t *testing.T) {
	q := newTestMixed(t, nil)
	pooled := newTally("pooled")
	require.NoError(t, q.AddParallel(pooled))
	require.NoError(t, q.Add(newStartFailing("broken")))

	assert.ErrorIs(t, q.Start(), errBoom)
	assert.False(t, q.IsRunning())
	assert.False(t, pooled.IsRunning())
}

func TestMixedQueue_ProcessRequiresRunning(t *testing.T) {
	q := newTestMixed(t, nil)
	require.NoError(t, q.Add(newTally("a")))

	_, err := q.Process(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, q.Stop(), ErrInvalidState)
}

func TestMixedQueue_BoundedGroup(t *testing.T) {
	q := newTestMixed(t, func(c *Config) {
		c.Bounded = true
		c.Capacity = 1
		c.Workers = 1
	})

	g := newGate("gate")
	require.NoError(t, q.AddParallel(g))
	require.NoError(t, q.Start())
	feed(t, q, 1, 1)
	waitFor(t, g.entered)

	returned := make(chan struct{})
	go func() {
		_, _ = q.Process(context.Background(), 2)
		close(returned)
	}()
	select {
	case <-returned:
		t.Fatal("bounded parallel group did not apply backpressure")
	case <-time.After(30 * time.Millisecond):
	}

	close(g.release)
	<-returned
	require.NoError(t, q.Stop())
}

func TestMixedQueue_ShutdownIsTerminal(t *testing.T) {
	q := newTestMixed(t, func(c *Config) { c.ShutdownMode = ShutdownImmediate })
	a := newTally("a")
	b := newTally("b")
	require.NoError(t, q.Add(a))
	require.NoError(t, q.AddParallel(b))
	require.NoError(t, q.Start())
	feed(t, q, 1, 3)

	require.NoError(t, q.Shutdown())
	require.NoError(t, q.Shutdown())
	assert.False(t, a.IsRunning())
	assert.False(t, b.IsRunning())

	assert.ErrorIs(t, q.Start(), ErrShutdown)
	assert.ErrorIs(t, q.Add(newTally("c")), ErrShutdown)
	assert.ErrorIs(t, q.AddParallel(newTally("d")), ErrShutdown)
	_, err := q.Process(context.Background(), 4)
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestMixedQueue_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = -1
	_, err := NewMixedQueue[int](cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
