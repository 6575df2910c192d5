package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/queue"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := config.Default()
	cfg.PipelineTickMinutes = 0
	log := zerolog.Nop()
	q := queue.New(nil, rdb, cfg, log)
	return New(CoreContext{Queue: q, Config: cfg, Log: log})
}

func TestStartStopIsIdempotent(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Start(context.Background())
	require.True(t, o.IsRunning())
	o.Start(context.Background())
	require.True(t, o.IsRunning())

	o.Stop()
	require.False(t, o.IsRunning())
	o.Stop()
	require.False(t, o.IsRunning())
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	o := newTestOrchestrator(t)
	calls := 0
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		o.loop(ctx, "test", 5*time.Millisecond, func(context.Context) error {
			calls++
			return nil
		})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after cancel")
	}
	require.Greater(t, calls, 0)
}
