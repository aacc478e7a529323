package syncx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExclusive_SingleExecution(t *testing.T) {
	var c Coordinator[string]
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	fn := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "token-2", nil
	}

	const n = 5
	var wg sync.WaitGroup
	results := make([]string, n)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, _ = c.RunExclusive(context.Background(), fn)
	}()
	<-started

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.RunExclusive(context.Background(), fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Give the waiters time to join the flight before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "token-2", r)
	}
}

func TestRunExclusive_ErrorSharedWithWaiters(t *testing.T) {
	var c Coordinator[int]
	boom := errors.New("refresh rejected")
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	fn := func(context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-release
		return 0, boom
	}

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, _, err := c.RunExclusive(context.Background(), fn)
			errs <- err
		}()
		if i == 0 {
			<-started
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, <-errs, boom)
	}
}

func TestRunExclusive_SequentialCallsRunAgain(t *testing.T) {
	var c Coordinator[int]
	var calls atomic.Int32
	fn := func(context.Context) (int, error) { return int(calls.Add(1)), nil }

	v1, shared, err := c.RunExclusive(context.Background(), fn)
	require.NoError(t, err)
	assert.False(t, shared)
	v2, _, err := c.RunExclusive(context.Background(), fn)
	require.NoError(t, err)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}

func TestRunExclusive_CallerCancelDoesNotAbortFlight(t *testing.T) {
	var c Coordinator[int]
	release := make(chan struct{})
	started := make(chan struct{})
	var fnCtxErr atomic.Value

	fn := func(ctx context.Context) (int, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			fnCtxErr.Store(err)
		}
		return 7, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := c.RunExclusive(ctx, fn)
		done <- err
	}()
	<-started

	waiter := make(chan int, 1)
	go func() {
		v, _, _ := c.RunExclusive(context.Background(), fn)
		waiter <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.Equal(t, 7, <-waiter)
	assert.Nil(t, fnCtxErr.Load())
}

func TestCoordinators_AreIndependent(t *testing.T) {
	var a, b Coordinator[int]
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _, _ = a.RunExclusive(context.Background(), func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	v, _, err := b.RunExclusive(context.Background(), func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	close(release)
}
