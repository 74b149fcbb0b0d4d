package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	var got int
	require.NoError(t, e.Run(context.Background(), func(context.Context) error {
		got = 42
		return nil
	}))
	assert.Equal(t, 42, got)

	boom := errors.New("boom")
	assert.ErrorIs(t, e.Run(context.Background(), func(context.Context) error { return boom }), boom)
}

func TestRunSerialises(t *testing.T) {
	e, err := New(func(o *Options) { o.LockOSThread = true })
	require.NoError(t, err)
	defer e.Close()

	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		counter int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Run(context.Background(), func(context.Context) error {
				active++
				maxSeen = max(maxSeen, active)
				counter++
				active--
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 1, maxSeen)
}

func TestRunRecoversPanic(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	err = e.Run(context.Background(), func(context.Context) error { panic("kaput") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaput", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	require.NoError(t, e.Run(context.Background(), func(context.Context) error { return nil }))
}

func TestRunCanceledContext(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = e.Run(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestClose(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	e.Close()
	e.Close()

	assert.ErrorIs(t, e.Run(context.Background(), func(context.Context) error { return nil }), ErrClosed)
}

func TestInvalidOptions(t *testing.T) {
	_, err := New(func(o *Options) { o.QueueSize = -1 })
	assert.Error(t, err)
}
