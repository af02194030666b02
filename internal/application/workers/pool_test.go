package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolExecutesTasks(t *testing.T) {
	pool := NewPool(4, 16, nil, zap.NewNop(), time.Minute)
	require.NoError(t, pool.Start())

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		task := func(context.Context) {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		}
		require.NoError(t, pool.Submit(context.Background(), task))
	}
	wg.Wait()

	assert.Equal(t, int64(40), atomic.LoadInt64(&counter))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
}

func TestPoolRejectsSubmitAfterShutdown(t *testing.T) {
	pool := NewPool(2, 4, nil, zap.NewNop(), time.Minute)
	require.NoError(t, pool.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	err := pool.Submit(context.Background(), func(context.Context) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutting down")
}

func TestPoolSubmitHonorsCallerContext(t *testing.T) {
	// Never started and with a full queue, so only the caller's context can
	// unblock Submit.
	pool := NewPool(1, 1, nil, zap.NewNop(), time.Minute)
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) {}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Submit(ctx, func(context.Context) {})
	assert.ErrorIs(t, err, context.Canceled)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, pool.Shutdown(shutdownCtx))
}

func TestPoolSnapshotCountsWorkerStates(t *testing.T) {
	pool := NewPool(3, 4, nil, zap.NewNop(), time.Minute)
	require.NoError(t, pool.Start())

	s := pool.Snapshot()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 3, s.Idle)
	assert.True(t, s.Healthy())
	assert.False(t, s.Saturated())

	// Occupy every worker and watch the census flip to saturated.
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
			<-release
		}))
	}
	require.Eventually(t, func() bool {
		return pool.Snapshot().Saturated()
	}, 5*time.Second, 10*time.Millisecond)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	s = pool.Snapshot()
	assert.Equal(t, 3, s.Stopped)
	assert.False(t, s.Healthy())
}
