package coordinator

import (
	"context"
	"errors"
	"math"

	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/mcdev12/watchroom/go/internal/netclock"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoContent is returned for playback requests while nothing is loaded.
	ErrNoContent = errors.New("no content is loaded")
	// ErrInvalidArgument is returned for ids, timestamps or levels that cannot be applied.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Phase is the externally visible state of the readiness protocol.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseSyncPending Phase = "SYNC_PENDING"
	PhaseConverged   Phase = "CONVERGED"
	PhaseEnded       Phase = "ENDED"
)

// SyncReason labels why a sync epoch began.
type SyncReason string

const (
	ReasonNewVideo     SyncReason = "new_video"
	ReasonClientJoined SyncReason = "client_joined"
	ReasonBadPing      SyncReason = "bad_ping"
	ReasonBadTimestamp SyncReason = "bad_timestamp"
	ReasonTogglePlay   SyncReason = "toggled_play"
	ReasonSeek         SyncReason = "seek"
	ReasonHardSeek     SyncReason = "hard_seek"
	ReasonHardReload   SyncReason = "hard_reload"
)

// Broadcaster delivers commands to participants.
type Broadcaster interface {
	Broadcast(msg events.Message)
	SendTo(clientID string, msg events.Message)
}

// EventRecorder receives room lifecycle events. Implementations must not block.
type EventRecorder interface {
	Record(eventType string, payload any)
}

type noopRecorder struct{}

func (noopRecorder) Record(string, any) {}

// Dependencies are the collaborators a Coordinator is constructed with.
// Clock and Broadcaster are required.
type Dependencies struct {
	Clock       netclock.Source
	Broadcaster Broadcaster
	Fetcher     MetadataFetcher
	Recorder    EventRecorder
	Metrics     MetricsCollector
}

// Coordinator is the authority's readiness state machine. It owns the
// content session, the scrub timeline and the client table.
//
// A Coordinator is not safe for concurrent use: every method must be called
// from one goroutine, normally through a Runner.
type Coordinator struct {
	cfg      Config
	clock    netclock.Source
	out      Broadcaster
	recorder EventRecorder
	metrics  MetricsCollector
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loads  *loader

	content  models.ContentSession
	timeline models.ScrubTimeline
	clients  *ClientTable
	volume   float64
	duration float64

	converged       bool
	ended           bool
	paused          bool
	controlsEnabled bool
	syncStartedAt   float64

	lastState *events.StatePayload
	lastPhase Phase
}

// New creates a coordinator with no content loaded.
func New(cfg Config, deps Dependencies) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil || deps.Broadcaster == nil {
		return nil, errors.New("coordinator requires a clock and a broadcaster")
	}
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NoOpMetricsCollector{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:       cfg,
		clock:     deps.Clock,
		out:       deps.Broadcaster,
		recorder:  deps.Recorder,
		metrics:   deps.Metrics,
		log:       log.With().Str("component", "coordinator").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		loads:     newLoader(ctx, deps.Fetcher, cfg.metadataTimeout()),
		content:   models.ClosedSession(),
		timeline:  models.PausedAt(0),
		clients:   NewClientTable(),
		volume:    cfg.DefaultVolume,
		lastPhase: PhaseIdle,
	}, nil
}

// Close cancels any in-flight metadata fetch.
func (c *Coordinator) Close() {
	c.cancel()
}

// Phase derives the protocol phase from the owned state.
func (c *Coordinator) Phase() Phase {
	switch {
	case !c.content.Active:
		return PhaseIdle
	case c.ended:
		return PhaseEnded
	case c.converged:
		return PhaseConverged
	default:
		return PhaseSyncPending
	}
}

func (c *Coordinator) Content() models.ContentSession {
	return c.content
}

func (c *Coordinator) Timeline() models.ScrubTimeline {
	return c.timeline
}

func (c *Coordinator) Clients() []models.ClientRecord {
	return c.clients.Snapshot()
}

// Tick advances the state machine once. It applies finished metadata
// fetches, runs the bad-ping, convergence and deadline checks, and
// broadcasts the state snapshot if it changed.
func (c *Coordinator) Tick() {
	c.drainLoads()

	if c.content.Active && !c.ended {
		now := c.clock.Now()

		if c.converged {
			if bad := c.clients.BadPings(now, c.cfg.PingTolerance, c.cfg.JoinGracePeriod); len(bad) > 0 {
				c.log.Info().Strs("client_ids", bad).Float64("now", now).Msg("clients missed their ping window")
				c.beginSync(ReasonBadPing)
				c.out.Broadcast(events.ReadyUp(c.currentTimestamp()))
			}
		}

		if !c.converged {
			if c.clients.AllReady() {
				c.converge(now)
			} else if now-c.syncStartedAt > c.cfg.ReadyUpDeadline && c.deadlineApplies(now) {
				c.hardReload(false)
			}
		}
	}

	c.flushState()
}

// deadlineApplies reports whether the clients blocking convergence may force
// a hard reload. With ExemptJoinersFromDeadline set, clients still inside
// their join grace period do not count.
func (c *Coordinator) deadlineApplies(now float64) bool {
	if !c.cfg.ExemptJoinersFromDeadline {
		return true
	}
	for id := range c.clients.NotReady() {
		if !c.clients.InGrace(id, now, c.cfg.JoinGracePeriod) {
			return true
		}
	}
	return false
}

// beginSync starts a new epoch: every status report and ping is forgotten,
// the timeline freezes and the deadline clock restarts.
func (c *Coordinator) beginSync(reason SyncReason) {
	now := c.clock.Now()

	c.ended = false
	c.converged = false
	c.controlsEnabled = false
	c.clients.ResetEpoch()
	c.syncStartedAt = now
	if c.timeline.Active {
		c.timeline = c.timeline.Pause(now)
	}

	c.recordSyncStarted(reason, now)
}

func (c *Coordinator) recordSyncStarted(reason SyncReason, now float64) {
	c.log.Info().
		Str("reason", string(reason)).
		Float64("timestamp", c.timeline.Scrub).
		Float64("now", now).
		Msg("beginning sync")

	c.metrics.RecordSyncStarted(reason)
	c.recorder.Record(events.RoomSyncStarted, events.SyncStartedPayload{
		VideoID:   c.content.ID,
		Reason:    string(reason),
		Timestamp: c.timeline.Scrub,
		StartedAt: now,
	})
}

// converge is called once every client reported Ready in this epoch.
func (c *Coordinator) converge(now float64) {
	activation := now + c.cfg.UnpauseDelay
	if !c.paused {
		timeline, err := c.timeline.UnpauseAt(now, activation)
		if err != nil {
			c.log.Warn().Err(err).Str("timeline", c.timeline.String()).Msg("timeline already active at convergence")
		}
		c.timeline = timeline
	}

	c.clients.RefreshPings(now)
	c.controlsEnabled = true
	c.converged = true

	elapsed := now - c.syncStartedAt
	c.log.Info().
		Int("clients", c.clients.Len()).
		Float64("activates_at", activation).
		Bool("paused", c.paused).
		Float64("elapsed", elapsed).
		Msg("all clients report ready")

	c.metrics.RecordConverged(c.clients.Len(), elapsed)
	c.recorder.Record(events.RoomConverged, events.ConvergedPayload{
		VideoID:     c.content.ID,
		Clients:     c.clients.Len(),
		ActivatesAt: activation,
		Elapsed:     elapsed,
	})
}

// hardReload resends the full load command at the frozen timestamp. It is
// the recovery path for clients that never became ready.
func (c *Coordinator) hardReload(manual bool) {
	now := c.clock.Now()
	notReady := c.clients.NotReady()

	evt := c.log.Warn()
	if manual {
		evt = c.log.Info()
	}
	evt.Int("not_ready", len(notReady)).
		Int("clients", c.clients.Len()).
		Interface("failed", notReady).
		Bool("manual", manual).
		Msg("initiating hard reload")

	c.ended = false
	c.converged = false
	c.controlsEnabled = false
	c.clients.ResetEpoch()
	c.syncStartedAt = now
	c.timeline = c.timeline.Pause(now)
	c.paused = false

	ts := c.timeline.Scrub
	c.out.Broadcast(events.Load(c.content.ID, ts, c.content.Aspect))

	c.metrics.RecordHardReload(manual)
	c.recorder.Record(events.RoomHardReload, events.HardReloadPayload{
		VideoID:   c.content.ID,
		Timestamp: ts,
		NotReady:  notReady,
		Manual:    manual,
	})
}

// hardSeek reloads every client at ts. Used once the session has ended,
// because an ended player cannot resume in place.
func (c *Coordinator) hardSeek(ts float64) {
	c.timeline = models.PausedAt(ts)
	c.beginSync(ReasonHardSeek)
	c.paused = false
	c.out.Broadcast(events.Load(c.content.ID, c.timeline.Scrub, c.content.Aspect))
}

func (c *Coordinator) currentTimestamp() float64 {
	return c.timeline.CurrentTimestamp(c.clock.Now())
}

func (c *Coordinator) snapshot() events.StatePayload {
	return events.StatePayload{
		ContentActive: c.content.Active,
		Timeline:      c.timeline,
		Volume:        c.volume,
	}
}

// flushState broadcasts the state snapshot when it differs from the last one sent.
func (c *Coordinator) flushState() {
	state := c.snapshot()
	if c.lastState == nil || *c.lastState != state {
		c.out.Broadcast(events.State(state))
		c.lastState = &state
	}

	if phase := c.Phase(); phase != c.lastPhase {
		c.log.Debug().Str("from", string(c.lastPhase)).Str("to", string(phase)).Msg("phase changed")
		c.metrics.RecordPhase(phase)
		c.lastPhase = phase
	}
}

// validTimestamp rejects positions no player can seek to.
func validTimestamp(ts float64) bool {
	return !math.IsNaN(ts) && !math.IsInf(ts, 0) && ts >= 0
}
