package watchdog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnceMarksHealthy(t *testing.T) {
	w := NewWatchdog(time.Second)
	var runs int32
	w.RegisterComponent("sweep", time.Minute, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	require.NoError(t, w.RunOnce(context.Background(), "sweep"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.True(t, w.IsHealthy("sweep"))
	assert.False(t, w.IsHealthy("missing"))
	assert.NoError(t, w.RunOnce(context.Background(), "missing"))
}

func TestRepeatedFailuresMarkUnhealthy(t *testing.T) {
	w := NewWatchdog(time.Second)
	fail := true
	w.RegisterComponent("purge", time.Minute, func(context.Context) error {
		if fail {
			return errors.New("disk full")
		}
		return nil
	})

	ctx := context.Background()
	assert.Error(t, w.RunOnce(ctx, "purge"))
	assert.Error(t, w.RunOnce(ctx, "purge"))
	assert.True(t, w.IsHealthy("purge"))
	assert.Error(t, w.RunOnce(ctx, "purge"))
	assert.False(t, w.IsHealthy("purge"))

	fail = false
	require.NoError(t, w.RunOnce(ctx, "purge"))
	assert.True(t, w.IsHealthy("purge"))
}

func TestStaleHeartbeatMarksUnhealthy(t *testing.T) {
	w := NewWatchdog(time.Second)
	base := time.Unix(1700000000, 0)
	now := base
	w.now = func() time.Time { return now }
	w.RegisterComponent("sweep", time.Minute, func(context.Context) error { return nil })

	require.NoError(t, w.RunOnce(context.Background(), "sweep"))

	now = base.Add(2 * time.Minute)
	w.checkAllComponents()
	assert.True(t, w.IsHealthy("sweep"))

	now = base.Add(4 * time.Minute)
	w.checkAllComponents()
	assert.False(t, w.IsHealthy("sweep"))
	assert.Equal(t, map[string]bool{"sweep": false}, w.GetStatus())
}

func TestStartRunsTasksUntilCancelled(t *testing.T) {
	w := NewWatchdog(5 * time.Millisecond)
	var runs int32
	w.RegisterComponent("tick", time.Millisecond, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, time.Millisecond)

	cancel()
	w.Wait()
	assert.True(t, w.IsHealthy("tick"))
}
