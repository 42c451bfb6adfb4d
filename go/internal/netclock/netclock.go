package netclock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Source is a monotonically increasing logical clock measured in seconds.
// All scheduling in the room is expressed in these units.
type Source interface {
	Now() float64
}

// Server is the authority's clock: seconds since the host created it.
type Server struct {
	clock clockwork.Clock
	start time.Time
}

// NewServer starts a logical clock on top of clock.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
func NewServer(clock clockwork.Clock) *Server {
	return &Server{clock: clock, start: clock.Now()}
}

// Now returns the elapsed seconds since the clock was created.
func (s *Server) Now() float64 {
	return s.clock.Since(s.start).Seconds()
}

// DefaultSmoothing is the weight given to a new offset sample.
const DefaultSmoothing = 0.25

// Synced is a participant's estimate of the authority clock. It is corrected
// by time-sync round trips and never runs backwards.
type Synced struct {
	local     *Server
	smoothing float64

	mu      sync.Mutex
	offset  float64
	samples int
	last    float64
	rtt     float64
}

// NewSynced creates an estimate that reads local time from clock.
func NewSynced(clock clockwork.Clock) *Synced {
	return &Synced{local: NewServer(clock), smoothing: DefaultSmoothing}
}

// LocalNow is the participant's own elapsed time, used to stamp sync requests.
func (s *Synced) LocalNow() float64 {
	return s.local.Now()
}

// Observe folds one round trip into the estimate. clientSentAt is the local
// time the request left, serverNow the authority time in the reply.
func (s *Synced) Observe(clientSentAt, serverNow float64) {
	received := s.local.Now()
	rtt := received - clientSentAt
	if rtt < 0 {
		rtt = 0
	}
	sample := serverNow + rtt/2 - received

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.samples == 0 {
		s.offset = sample
	} else {
		s.offset += s.smoothing * (sample - s.offset)
	}
	s.samples++
	s.rtt = rtt
}

// Now returns the estimated authority time.
func (s *Synced) Now() float64 {
	local := s.local.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := local + s.offset
	if now < s.last {
		return s.last
	}
	s.last = now
	return now
}

// Synced reports whether at least one round trip has been observed.
func (s *Synced) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples > 0
}

// RTT is the round trip time of the latest sample, in seconds.
func (s *Synced) RTT() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rtt
}
