package queuez

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessor(t *testing.T) {
	p, rec := newRecording("rec")
	assert.Equal(t, "rec", p.ID())

	_, err := p.Process(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, p.Start())
	ok, err := p.Process(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, p.Stop())

	assert.Equal(t, []int{2}, rec.snapshot())
}

func TestResultProcessor_Lifecycle(t *testing.T) {
	acc := &tally{}
	p := NewResultProcessor[int, [2]int64]("sum", acc)

	_, err := p.Result()
	require.ErrorIs(t, err, ErrInvalidState, "no result before the first run")

	require.NoError(t, p.Start())
	feed(t, p, 1, 10)

	_, err = p.Result()
	require.ErrorIs(t, err, ErrInvalidState, "no result while running")

	require.NoError(t, p.Stop())
	got, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, [2]int64{55, 10}, got)

	t.Run("restart resets", func(t *testing.T) {
		require.NoError(t, p.Start())
		feed(t, p, 1, 3)
		require.NoError(t, p.Stop())

		got, err := p.Result()
		require.NoError(t, err)
		assert.Equal(t, [2]int64{6, 3}, got)
		assert.EqualValues(t, 2, acc.resets.Load())
	})

	t.Run("result is frozen at stop", func(t *testing.T) {
		before, err := p.Result()
		require.NoError(t, err)
		acc.sum.Add(1000)
		after, err := p.Result()
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestResultProcessor_EmptyRun(t *testing.T) {
	p := newTally("empty")
	require.NoError(t, p.Start())
	require.NoError(t, p.Stop())

	got, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, [2]int64{}, got)
}
