package runner_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/pulse/internal/domain"
	"github.com/hperssn/pulse/internal/runner"
)

func TestTicker_Fires(t *testing.T) {
	tk := runner.NewTicker()
	defer tk.Stop()

	var ticks atomic.Int32
	tk.Start(5*time.Millisecond, func() { ticks.Add(1) })

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, tk.Running())
}

func TestTicker_StopHaltsTicks(t *testing.T) {
	tk := runner.NewTicker()

	var ticks atomic.Int32
	tk.Start(5*time.Millisecond, func() { ticks.Add(1) })
	require.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, time.Millisecond)

	tk.Stop()
	assert.False(t, tk.Running())

	before := ticks.Load()
	time.Sleep(40 * time.Millisecond)

	// A tick already past the cancel check may still land.
	assert.LessOrEqual(t, ticks.Load(), before+1)
}

func TestTicker_StartReplacesActiveTimer(t *testing.T) {
	tk := runner.NewTicker()
	defer tk.Stop()

	var first, second atomic.Int32
	tk.Start(5*time.Millisecond, func() { first.Add(1) })
	require.Eventually(t, func() bool { return first.Load() >= 1 }, time.Second, time.Millisecond)

	tk.Start(5*time.Millisecond, func() { second.Add(1) })
	stale := first.Load()

	require.Eventually(t, func() bool { return second.Load() >= 3 }, time.Second, time.Millisecond)
	assert.LessOrEqual(t, first.Load(), stale+1)
}

func TestTicker_StopIsIdempotent(t *testing.T) {
	tk := runner.NewTicker()

	assert.NotPanics(t, func() {
		tk.Stop()
		tk.Start(time.Hour, func() {})
		tk.Stop()
		tk.Stop()
	})
	assert.False(t, tk.Running())
}

func TestTicker_DrivesMachine(t *testing.T) {
	cfg := testConfig()
	cfg.RestDuration = 2
	cfg.TickInterval = 5 * time.Millisecond

	src := &fakeSource{}
	m := runner.New(cfg, src, &recordingDisplay{}, &recordingNotifier{},
		runner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, m.Start(ctx))
	src.emit(64)

	require.Eventually(t, func() bool {
		s, err := m.Snapshot(ctx)
		return err == nil && s.HasBaseline
	}, time.Second, 2*time.Millisecond)

	s, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseMonitoring, s.Phase)
	assert.InDelta(t, 64, s.Baseline, 1e-9)
}
