package agent

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/mcdev12/watchroom/go/internal/netclock"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender delivers status reports and requests to the authority.
type Sender interface {
	Send(msg events.Message) error
}

// Config holds the agent cadences in seconds.
type Config struct {
	TickInterval     float64
	VolumeInterval   float64
	PingInterval     float64
	TimeSyncInterval float64
}

func DefaultConfig() Config {
	return Config{
		TickInterval:     1.0 / 60,
		VolumeInterval:   0.5,
		PingInterval:     0.1,
		TimeSyncInterval: 2,
	}
}

// Agent runs on every participant. It obeys the authority's commands,
// reports the local player state and pings with the observed position.
type Agent struct {
	cfg      Config
	renderer Renderer
	sender   Sender
	clock    clockwork.Clock
	netTime  *netclock.Synced
	log      zerolog.Logger

	mu            sync.Mutex
	clientID      string
	state         models.PlayerState
	position      float64
	duration      float64
	contentActive bool
	timeline      models.ScrubTimeline
	volume        float64
	lastVolume    float64
	lastPing      float64
	lastTimeSync  float64
	messages      []events.UserMessagePayload
}

// New creates an agent. In production, use clockwork.NewRealClock(). In tests, a FakeClock.
func New(cfg Config, renderer Renderer, sender Sender, clock clockwork.Clock) *Agent {
	return &Agent{
		cfg:          cfg,
		renderer:     renderer,
		sender:       sender,
		clock:        clock,
		netTime:      netclock.NewSynced(clock),
		log:          log.With().Str("component", "agent").Logger(),
		state:        models.PlayerStateUnstarted,
		timeline:     models.PausedAt(0),
		lastVolume:   negInf,
		lastPing:     negInf,
		lastTimeSync: negInf,
	}
}

var negInf = math.Inf(-1)

// Run ticks the agent until ctx is done, then unloads the player.
func (a *Agent) Run(ctx context.Context) error {
	ticker := a.clock.NewTicker(time.Duration(a.cfg.TickInterval * float64(time.Second)))
	defer ticker.Stop()
	defer a.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			a.Tick()
		}
	}
}

// Tick posts play once the local player is ready and the authoritative
// timeline has started, and sends the periodic volume, ping and time sync.
func (a *Agent) Tick() {
	local := a.netTime.LocalNow()
	now := a.netTime.Now()

	var cmds []RendererCommand
	var msgs []events.Message

	a.mu.Lock()
	if local-a.lastVolume > a.cfg.VolumeInterval {
		cmds = append(cmds, SetVolume(a.volume))
		a.lastVolume = local
	}

	if a.state == models.PlayerStateReady && a.netTime.Synced() && a.timeline.IsStarted(now) {
		a.log.Debug().Float64("now", now).Str("timeline", a.timeline.String()).Msg("issue play")
		cmds = append(cmds, Play())
	}

	if a.contentActive && a.clientID != "" && now-a.lastPing > a.cfg.PingInterval {
		msgs = append(msgs, events.Ping(events.PingPayload{
			ClientID:  a.clientID,
			Now:       now,
			Timestamp: a.position,
			Duration:  a.duration,
		}))
		a.lastPing = now
	}

	if local-a.lastTimeSync >= a.cfg.TimeSyncInterval {
		msgs = append(msgs, events.TimeSyncRequest(local))
		a.lastTimeSync = local
	}
	a.mu.Unlock()

	a.post(cmds...)
	a.send(msgs...)
}

// HandleMessage applies one command from the authority.
func (a *Agent) HandleMessage(msg events.Message) {
	var err error
	switch msg.Type {
	case events.TypeWelcome:
		var p events.WelcomePayload
		if err = msg.Decode(&p); err == nil {
			a.mu.Lock()
			a.clientID = p.ClientID
			a.lastTimeSync = negInf
			a.mu.Unlock()
			a.log.Info().Str("client_id", p.ClientID).Float64("server_now", p.ServerNow).Msg("joined room")
		}

	case events.TypeTimeSync:
		var p events.TimeSyncPayload
		if err = msg.Decode(&p); err == nil {
			a.netTime.Observe(p.ClientSentAt, p.ServerNow)
			a.log.Debug().Float64("rtt", a.netTime.RTT()).Msg("clock synced")
		}

	case events.TypeGoHome:
		a.mu.Lock()
		a.contentActive = false
		a.state = models.PlayerStateUnstarted
		a.mu.Unlock()
		a.log.Info().Msg("navigating home")
		a.post(NavHome())

	case events.TypeLoad:
		var p events.LoadPayload
		if err = msg.Decode(&p); err == nil {
			a.reload(p)
		}

	case events.TypeReadyUp:
		var p events.ReadyUpPayload
		if err = msg.Decode(&p); err == nil {
			a.log.Info().Float64("timestamp", p.Timestamp).Msg("ready up")
			a.post(ReadyUpAt(p.Timestamp))
		}

	case events.TypeSetVolume:
		var p events.SetVolumePayload
		if err = msg.Decode(&p); err == nil {
			a.mu.Lock()
			a.volume = p.Level
			a.lastVolume = a.netTime.LocalNow()
			a.mu.Unlock()
			a.post(SetVolume(p.Level))
		}

	case events.TypeState:
		var p events.StatePayload
		if err = msg.Decode(&p); err == nil {
			a.mu.Lock()
			a.contentActive = p.ContentActive
			a.timeline = p.Timeline
			a.volume = p.Volume
			a.mu.Unlock()
		}

	case events.TypeMessage:
		var p events.UserMessagePayload
		if err = msg.Decode(&p); err == nil {
			a.mu.Lock()
			a.messages = append(a.messages, p)
			a.mu.Unlock()
			a.log.Info().Str("kind", string(p.Kind)).Msg(p.Text)
		}

	default:
		a.log.Warn().Str("type", string(msg.Type)).Msg("unknown command")
		return
	}

	if err != nil {
		a.log.Warn().Err(err).Str("type", string(msg.Type)).Msg("dropping malformed command")
	}
}

// reload navigates home and then to the content at the commanded position.
func (a *Agent) reload(p events.LoadPayload) {
	a.mu.Lock()
	a.contentActive = true
	a.position = p.Timestamp
	a.mu.Unlock()

	width, height := a.renderer.ChangeAspect(models.Aspect{Width: p.Width, Height: p.Height})
	a.log.Info().
		Str("video_id", p.ID).
		Float64("timestamp", p.Timestamp).
		Int("width", width).
		Int("height", height).
		Msg("nav home then load")
	a.post(NavHome(), LoadYouTube(p.ID, p.Timestamp, width, height))
}

// HandleRendererMessage consumes one JSON message from the player page.
func (a *Agent) HandleRendererMessage(raw []byte) {
	m, err := ParseRendererMessage(raw)
	if err != nil {
		a.log.Warn().Err(err).Msg("dropping renderer message")
		return
	}

	a.mu.Lock()
	if m.CurrentTime != nil {
		a.position = *m.CurrentTime
	}
	if m.Duration != nil {
		a.duration = *m.Duration
	}
	position := a.position
	a.mu.Unlock()

	switch m.Type {
	case MessageInfoCurrentTime:
		return

	case MessageError:
		a.log.Error().Str("error", m.Error).Msg("renderer error")

	case MessagePlayerError:
		reason := EjectReason(m.Code)
		a.log.Warn().Int("code", m.Code).Str("reason", reason).Msg("player error")
		a.send(events.Eject(reason, m.Code))

	case MessageStateChange:
		state, err := models.ParsePlayerState(m.Message)
		if err != nil {
			a.log.Error().Err(err).Msg("unknown stateChange case")
			return
		}

		a.mu.Lock()
		a.state = state
		a.mu.Unlock()

		if state == models.PlayerStateEnded {
			a.send(events.VideoEnded(position))
		}
		a.send(events.StateChange(state))

	default:
		a.log.Debug().Str("type", m.Type).Msg("ignoring renderer message")
	}
}

// Stop unloads the player.
func (a *Agent) Stop() {
	a.mu.Lock()
	a.state = models.PlayerStateUnstarted
	a.contentActive = false
	a.mu.Unlock()
	a.post(NavHome())
}

// Request sends a playback request to the authority.
func (a *Agent) Request(msg events.Message) error {
	return a.sender.Send(msg)
}

// State returns the last local player state.
func (a *Agent) State() models.PlayerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Messages returns the user-visible messages received so far.
func (a *Agent) Messages() []events.UserMessagePayload {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]events.UserMessagePayload(nil), a.messages...)
}

// Now is the agent's estimate of the authority clock.
func (a *Agent) Now() float64 {
	return a.netTime.Now()
}

func (a *Agent) post(cmds ...RendererCommand) {
	if len(cmds) == 0 {
		return
	}
	if err := a.renderer.Post(cmds...); err != nil {
		a.log.Error().Err(err).Msg("failed to post to renderer")
	}
}

func (a *Agent) send(msgs ...events.Message) {
	for _, msg := range msgs {
		if err := a.sender.Send(msg); err != nil {
			a.log.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to send to authority")
		}
	}
}
