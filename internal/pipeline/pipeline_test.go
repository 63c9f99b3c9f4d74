package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycoholic/gotrackers/internal/config"
	"github.com/cycoholic/gotrackers/internal/source"
	"github.com/cycoholic/gotrackers/internal/timeutil"
)

func shortBreakTuning() *config.TrackerTuning {
	cfg := config.EmptyTrackerTuning()
	d := "50ms"
	cfg.TrackBreakTime = &d
	return cfg
}

func TestRunProcessesBacklogAndSubscribedBatches(t *testing.T) {
	t.Parallel()

	rs := straightLineRoute(t)
	p := NewPipeline(rs, tuningDefaults(), nil, nil)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.clock = timeutil.NewMockClock(t0) // freeze "now" so the 15m inactivity timer never fires mid-test

	src := source.NewMockSource()
	src.Push([]source.RawPoint{{Time: t0, HasPosition: true, Lat: 0, Lon: 0.001}})

	_, ch := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, src) }()

	var batch []AnalyzedPoint
	select {
	case batch = <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial backlog batch")
	}
	require.Len(t, batch, 1)

	src.Push([]source.RawPoint{{Time: t0.Add(time.Second), HasPosition: true, Lat: 0, Lon: 0.002}})

	select {
	case batch = <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second batch")
	}
	require.Len(t, batch, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestResetClearsStateAndClosesOpenOffRouteExcursion(t *testing.T) {
	t.Parallel()

	rs := straightLineRoute(t)
	p := NewPipeline(rs, tuningDefaults(), nil, nil)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, offIDCh := p.SubscribeOffRoute()

	_, offRoute := p.ProcessPoints([]source.RawPoint{
		{Time: t0, HasPosition: true, Lat: 1, Lon: 0.005},
	})
	require.Len(t, offRoute, 1)

	// ProcessPoints already published the excursion's opening batch; drain
	// it so the receive below can only see Reset's close-out.
	select {
	case <-offIDCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ProcessPoints' off-route batch")
	}

	p.Reset()

	select {
	case batch := <-offIDCh:
		require.Len(t, batch, 1)
		require.NotNil(t, batch[0].OffRouteTrackID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Reset to close the open off-route excursion")
	}

	analyzed, _ := p.ProcessPoints([]source.RawPoint{
		{Time: t0.Add(time.Minute), HasPosition: true, Lat: 0, Lon: 0.003},
	})
	require.Len(t, analyzed, 1)
	assert.Equal(t, 0, analyzed[0].TrackID)
}

func TestRunRespondsToSourceResetSignal(t *testing.T) {
	t.Parallel()

	rs := straightLineRoute(t)
	p := NewPipeline(rs, tuningDefaults(), nil, nil)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.clock = timeutil.NewMockClock(t0)

	src := source.NewMockSource()
	src.Push([]source.RawPoint{{Time: t0, HasPosition: true, Lat: 1, Lon: 0.005}})

	_, offCh := p.SubscribeOffRoute()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, src)

	select {
	case <-offCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial off-route batch")
	}

	// Run subscribes to the source's reset signal right after processing
	// the backlog; give that a moment to land before firing it.
	time.Sleep(50 * time.Millisecond)
	src.PushReset()

	select {
	case <-offCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Reset's off-route close-out after source reset signal")
	}
}

func TestInactivityTimerFiresSyntheticInactivePoint(t *testing.T) {
	t.Parallel()

	rs := straightLineRoute(t)
	p := NewPipeline(rs, shortBreakTuning(), nil, nil)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.clock = timeutil.NewMockClock(t0) // delay is then exactly the 50ms break time

	src := source.NewMockSource()
	src.Push([]source.RawPoint{{Time: t0, HasPosition: true, Lat: 0, Lon: 0.001}})

	_, ch := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, src)

	// First batch: the backlog point itself.
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for backlog batch")
	}

	// Second batch: the timer-fired synthetic Inactive point.
	select {
	case batch := <-ch:
		require.Len(t, batch, 1)
		assert.Equal(t, "Inactive", batch[0].Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inactivity timer to fire")
	}
}
