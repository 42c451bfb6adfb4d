package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPausedAt(t *testing.T) {
	tl := PausedAt(12.5)
	require.False(t, tl.Active)
	require.Equal(t, NotStarted, tl.ActivatedAt)
	require.Equal(t, 12.5, tl.CurrentTimestamp(0))
	require.Equal(t, 12.5, tl.CurrentTimestamp(1000))

	require.Equal(t, 0.0, PausedAt(-3).Scrub)
}

func TestTimelineAdvancesLinearlyWhilePlaying(t *testing.T) {
	tl, err := PausedAt(10).UnpauseAt(5, 5)
	require.NoError(t, err)

	for _, pair := range [][2]float64{{5, 5}, {5, 6.25}, {7, 100}, {40.5, 41}} {
		now1, now2 := pair[0], pair[1]
		require.InDelta(t, now2-now1, tl.CurrentTimestamp(now2)-tl.CurrentTimestamp(now1), 1e-9)
	}
	require.InDelta(t, 12.0, tl.CurrentTimestamp(7), 1e-9)
}

func TestTimelineHoldsScrubBeforeActivation(t *testing.T) {
	tl, err := PausedAt(30).UnpauseAt(19, 20)
	require.NoError(t, err)

	require.Equal(t, 30.0, tl.CurrentTimestamp(19))
	require.False(t, tl.IsStarted(19))
	require.False(t, tl.IsStarted(20))
	require.True(t, tl.IsStarted(20.01))
}

func TestPauseFreezesTimeline(t *testing.T) {
	tl, err := PausedAt(0).UnpauseAt(0, 1)
	require.NoError(t, err)

	paused := tl.Pause(4)
	require.False(t, paused.Active)
	require.InDelta(t, 3.0, paused.Scrub, 1e-9)
	for _, later := range []float64{4, 5, 60, 3600} {
		require.InDelta(t, 3.0, paused.CurrentTimestamp(later), 1e-9)
	}

	// pausing twice is a no-op
	require.Equal(t, paused, paused.Pause(99))
}

func TestUnpauseActiveTimelineRejected(t *testing.T) {
	tl, err := PausedAt(8).UnpauseAt(1, 2)
	require.NoError(t, err)

	again, err := tl.UnpauseAt(49, 50)
	require.ErrorIs(t, err, ErrTimelineActive)
	require.Equal(t, tl, again)
}

func TestUnpauseInThePastRejected(t *testing.T) {
	paused := PausedAt(8)

	tl, err := paused.UnpauseAt(10, 9.5)
	require.ErrorIs(t, err, ErrActivationInPast)
	require.Equal(t, paused, tl)

	tl, err = paused.UnpauseAt(10, 10)
	require.NoError(t, err)
	require.True(t, tl.Active)
	require.Equal(t, 10.0, tl.ActivatedAt)
}

func TestContentSession(t *testing.T) {
	closed := ClosedSession()
	require.False(t, closed.Active)
	require.Equal(t, SquareAspect, closed.Aspect)

	s := NewContentSession("abc", Aspect{}, 3)
	require.True(t, s.Active)
	require.Equal(t, DefaultAspect, s.Aspect)
	require.Equal(t, 3.0, s.LoadedAt)
}

func TestParsePlayerState(t *testing.T) {
	st, err := ParsePlayerState("ready")
	require.NoError(t, err)
	require.Equal(t, PlayerStateReady, st)

	_, err = ParsePlayerState("SLEEPING")
	require.Error(t, err)
}
