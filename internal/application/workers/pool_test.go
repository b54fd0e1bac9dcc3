package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	p := NewPool(size, nil, zap.NewNop(), 0)
	require.NoError(t, p.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func TestPoolRunsJobs(t *testing.T) {
	p := newTestPool(t, 2)

	var ran atomic.Int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) {
			ran.Add(1)
			done <- struct{}{}
		}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.Equal(t, int32(3), ran.Load())
}

func TestPoolSubmitBlocksWhenBusy(t *testing.T) {
	p := newTestPool(t, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	assert.Eventually(t, func() bool {
		return p.Health().GetStatus().BusyWorkers == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func(context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestPoolSurvivesPanics(t *testing.T) {
	p := newTestPool(t, 1)

	require.NoError(t, p.Submit(context.Background(), func(context.Context) {
		panic("boom")
	}))

	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
}

func TestPoolShutdown(t *testing.T) {
	p := NewPool(2, nil, zap.NewNop(), 0)
	require.NoError(t, p.Start())
	assert.True(t, p.Health().IsHealthy())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	err := p.Submit(context.Background(), func(context.Context) {})
	assert.ErrorIs(t, err, ErrPoolStopped)

	status := p.Health().GetStatus()
	assert.Equal(t, 2, status.StoppedWorkers)
	assert.False(t, status.Healthy)
}

func TestHealthMonitorReportsTransitions(t *testing.T) {
	p := NewPool(1, nil, zap.NewNop(), 0)
	require.NoError(t, p.Start())

	var got []bool
	p.Health().OnChange(func(healthy bool) { got = append(got, healthy) })

	p.Health().checkHealth()
	p.Health().checkHealth()
	assert.Equal(t, []bool{true}, got)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	p.Health().checkHealth()
	assert.Equal(t, []bool{true, false}, got)
}
