package netclock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestServerCountsSecondsSinceStart(t *testing.T) {
	fake := clockwork.NewFakeClock()
	srv := NewServer(fake)
	require.Equal(t, 0.0, srv.Now())

	fake.Advance(1500 * time.Millisecond)
	require.InDelta(t, 1.5, srv.Now(), 1e-9)
}

func TestSyncedAdoptsFirstSample(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := NewSynced(fake)
	require.False(t, s.Synced())

	sent := s.LocalNow()
	fake.Advance(200 * time.Millisecond)
	// authority answered at 100.1 half way through the round trip
	s.Observe(sent, 100.1)

	require.True(t, s.Synced())
	require.InDelta(t, 0.2, s.RTT(), 1e-9)
	require.InDelta(t, 100.2, s.Now(), 1e-9)
}

func TestSyncedSmoothsLaterSamples(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := NewSynced(fake)

	s.Observe(s.LocalNow(), 50)
	require.InDelta(t, 50.0, s.Now(), 1e-9)

	// a sample that claims the authority jumped four seconds ahead
	s.Observe(s.LocalNow(), 54)
	require.InDelta(t, 50+4*DefaultSmoothing, s.Now(), 1e-9)
}

func TestSyncedNeverRunsBackwards(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := NewSynced(fake)

	s.Observe(s.LocalNow(), 80)
	before := s.Now()

	// the authority appears to be behind now; the estimate must hold
	s.Observe(s.LocalNow(), 10)
	require.GreaterOrEqual(t, s.Now(), before)

	fake.Advance(time.Second)
	require.GreaterOrEqual(t, s.Now(), before)
}
