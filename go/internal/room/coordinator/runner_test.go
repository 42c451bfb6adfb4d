package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/watchroom/go/internal/netclock"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/stretchr/testify/require"
)

func startRunner(t *testing.T) (*Runner, *clockwork.FakeClock, *recordingBroadcaster, context.CancelFunc) {
	t.Helper()
	fake := clockwork.NewFakeClock()
	out := newRecordingBroadcaster()
	coord, err := New(DefaultConfig(), Dependencies{Clock: netclock.NewServer(fake), Broadcaster: out})
	require.NoError(t, err)

	runner := NewRunner(coord, fake)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = runner.Run(ctx) }()
	t.Cleanup(cancel)
	return runner, fake, out, cancel
}

func TestRunnerDoReturnsResult(t *testing.T) {
	runner, _, _, _ := startRunner(t)
	ctx := context.Background()

	require.NoError(t, runner.Do(ctx, func(c *Coordinator) error {
		c.HandleJoin("a")
		return nil
	}))

	err := runner.Do(ctx, func(c *Coordinator) error { return c.SetPaused(true) })
	require.ErrorIs(t, err, ErrNoContent)

	var phase Phase
	require.NoError(t, runner.Do(ctx, func(c *Coordinator) error {
		phase = c.Phase()
		return nil
	}))
	require.Equal(t, PhaseIdle, phase)
}

func TestRunnerTicksOnClock(t *testing.T) {
	runner, fake, out, _ := startRunner(t)
	ctx := context.Background()

	require.NoError(t, runner.Do(ctx, func(c *Coordinator) error {
		c.HandleJoin("a")
		return c.LoadVideo("abc", 0)
	}))

	// the load completes on a later tick
	require.Eventually(t, func() bool {
		fake.Advance(20 * time.Millisecond)
		return len(out.broadcastsOf(events.TypeLoad)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRunnerRejectsWorkAfterStop(t *testing.T) {
	runner, _, _, cancel := startRunner(t)
	cancel()

	select {
	case <-runner.Done():
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}

	err := runner.Do(context.Background(), func(*Coordinator) error { return nil })
	require.ErrorIs(t, err, ErrStopped)
}
