package lazy

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

func TestGetCachesValue(t *testing.T) {
	var g Group[string]
	var calls atomic.Int32
	load := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "ready", nil
	}

	for range 3 {
		v, err := g.Get(context.Background(), "rt", load)
		require.NoError(t, err)
		assert.Equal(t, "ready", v)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), g.Loads())
	assert.True(t, g.Ready("rt"))
}

func TestGetCoalescesConcurrentLoads(t *testing.T) {
	var g Group[int]
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]int, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = g.Get(context.Background(), "rt", load)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
}

func TestGetFailureSharedThenRetried(t *testing.T) {
	var g Group[int]
	boom := errors.New("boom")
	release := make(chan struct{})
	var calls atomic.Int32
	failing := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, boom
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = g.Get(context.Background(), "rt", failing)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.False(t, g.Ready("rt"))

	v, err := g.Get(context.Background(), "rt", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(2), g.Loads())
}

func TestGetRecoversPanic(t *testing.T) {
	var g Group[int]
	_, err := g.Get(context.Background(), "rt", func(ctx context.Context) (int, error) {
		panic("bad runtime")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "bad runtime")
	assert.False(t, g.Ready("rt"))
}

func TestGetCallerCancelDoesNotCancelLoad(t *testing.T) {
	var g Group[string]
	release := make(chan struct{})
	var loadCtxErr atomic.Value

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Get(ctx, "rt", func(lctx context.Context) (string, error) {
			<-release
			if lctx.Err() != nil {
				loadCtxErr.Store(lctx.Err())
			}
			return "ok", nil
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return g.Ready("rt") }, time.Second, 5*time.Millisecond)
	assert.Nil(t, loadCtxErr.Load())
}

func TestKeysAreIndependent(t *testing.T) {
	var g Group[string]
	a, err := g.Get(context.Background(), "a", func(ctx context.Context) (string, error) { return "A", nil })
	require.NoError(t, err)
	b, err := g.Get(context.Background(), "b", func(ctx context.Context) (string, error) { return "B", nil })
	require.NoError(t, err)

	assert.Equal(t, "A", a)
	assert.Equal(t, "B", b)
	assert.ElementsMatch(t, []string{"A", "B"}, g.Values())
}
