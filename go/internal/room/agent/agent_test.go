package agent

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []events.Message
	err  error
}

func (s *fakeSender) Send(msg events.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) ofType(t events.Type) []events.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Message
	for _, m := range s.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

type agentHarness struct {
	agent    *Agent
	renderer *SimulatedRenderer
	sender   *fakeSender
	clock    *clockwork.FakeClock
}

func newAgentHarness(t *testing.T) *agentHarness {
	t.Helper()
	fake := clockwork.NewFakeClock()
	renderer := NewSimulatedRenderer(fake, 30)
	sender := &fakeSender{}
	a := New(DefaultConfig(), renderer, sender, fake)
	renderer.OnMessage(a.HandleRendererMessage)
	return &agentHarness{agent: a, renderer: renderer, sender: sender, clock: fake}
}

// join completes the welcome and a single time sync putting the authority
// clock at serverNow.
func (h *agentHarness) join(t *testing.T, serverNow float64) {
	t.Helper()
	h.agent.HandleMessage(events.Welcome("c1", serverNow))
	h.agent.Tick()

	reqs := h.sender.ofType(events.TypeTimeSyncRequest)
	require.NotEmpty(t, reqs)
	var req events.TimeSyncRequestPayload
	require.NoError(t, reqs[len(reqs)-1].Decode(&req))

	h.agent.HandleMessage(events.TimeSync(req.ClientSentAt, serverNow))
	require.InDelta(t, serverNow, h.agent.Now(), 1e-9)
}

func (h *agentHarness) commands(command string) []RendererCommand {
	var out []RendererCommand
	for _, c := range h.renderer.Posted() {
		if c.Command == command {
			out = append(out, c)
		}
	}
	return out
}

func decodeStateChange(t *testing.T, msg events.Message) models.PlayerState {
	t.Helper()
	var p events.StateChangePayload
	require.NoError(t, msg.Decode(&p))
	return p.State
}

func TestAgentLoadReportsReady(t *testing.T) {
	h := newAgentHarness(t)
	h.join(t, 100)

	h.agent.HandleMessage(events.Load("abc", 10, models.Aspect{Width: 4, Height: 3}))

	pushes := h.commands(commandPush)
	require.Len(t, pushes, 2)
	require.Equal(t, homePath, pushes[0].Path)
	require.Equal(t, "/youtube/abc/10?x=960&y=720", pushes[1].Path)

	require.Equal(t, models.PlayerStateReady, h.agent.State())
	changes := h.sender.ofType(events.TypeStateChange)
	require.Len(t, changes, 1)
	require.Equal(t, models.PlayerStateReady, decodeStateChange(t, changes[0]))
}

func TestAgentPlaysOnlyAfterActivation(t *testing.T) {
	h := newAgentHarness(t)
	h.join(t, 100)
	h.agent.HandleMessage(events.Load("abc", 10, models.DefaultAspect))

	h.agent.HandleMessage(events.State(events.StatePayload{
		ContentActive: true,
		Timeline:      models.ScrubTimeline{Scrub: 10, ActivatedAt: 101, Active: true},
		Volume:        0.125,
	}))

	h.agent.Tick()
	require.Empty(t, h.commands(commandPlay))

	h.clock.Advance(1500 * time.Millisecond)
	h.agent.Tick()
	require.Len(t, h.commands(commandPlay), 1)
	require.Equal(t, models.PlayerStatePlaying, h.agent.State())

	// already playing, no second play
	h.clock.Advance(100 * time.Millisecond)
	h.agent.Tick()
	require.Len(t, h.commands(commandPlay), 1)
}

func TestAgentWaitsForClockSync(t *testing.T) {
	h := newAgentHarness(t)
	h.agent.HandleMessage(events.Welcome("c1", 100))
	h.agent.HandleMessage(events.Load("abc", 0, models.DefaultAspect))
	h.agent.HandleMessage(events.State(events.StatePayload{
		ContentActive: true,
		Timeline:      models.ScrubTimeline{Scrub: 0, ActivatedAt: -5, Active: true},
	}))

	h.agent.Tick()
	require.Empty(t, h.commands(commandPlay))
}

func TestAgentPingsWithObservedPosition(t *testing.T) {
	h := newAgentHarness(t)
	h.join(t, 100)
	h.agent.HandleMessage(events.Load("abc", 10, models.DefaultAspect))
	h.agent.HandleMessage(events.State(events.StatePayload{
		ContentActive: true,
		Timeline:      models.ScrubTimeline{Scrub: 10, ActivatedAt: 100.5, Active: true},
	}))
	h.sender.reset()

	h.clock.Advance(time.Second)
	h.agent.Tick()
	h.clock.Advance(2 * time.Second)
	h.renderer.Poll()
	h.agent.Tick()

	pings := h.sender.ofType(events.TypePing)
	require.Len(t, pings, 2)

	var p events.PingPayload
	require.NoError(t, pings[1].Decode(&p))
	require.Equal(t, "c1", p.ClientID)
	require.InDelta(t, 103, p.Now, 1e-9)
	require.InDelta(t, 12, p.Timestamp, 1e-9)
	require.InDelta(t, 30, p.Duration, 1e-9)
}

func TestAgentDoesNotPingWithoutContent(t *testing.T) {
	h := newAgentHarness(t)
	h.join(t, 100)

	h.clock.Advance(time.Second)
	h.agent.Tick()
	require.Empty(t, h.sender.ofType(events.TypePing))
}

func TestAgentReportsEndOfVideo(t *testing.T) {
	h := newAgentHarness(t)
	h.join(t, 100)
	h.agent.HandleMessage(events.Load("abc", 20, models.DefaultAspect))
	h.agent.HandleMessage(events.State(events.StatePayload{
		ContentActive: true,
		Timeline:      models.ScrubTimeline{Scrub: 20, ActivatedAt: 100, Active: true},
	}))
	h.clock.Advance(100 * time.Millisecond)
	h.agent.Tick()
	h.sender.reset()

	h.clock.Advance(15 * time.Second)
	h.renderer.Poll()

	require.Equal(t, models.PlayerStateEnded, h.agent.State())
	ended := h.sender.ofType(events.TypeVideoEnded)
	require.Len(t, ended, 1)
	var p events.VideoEndedPayload
	require.NoError(t, ended[0].Decode(&p))
	require.InDelta(t, 30, p.Timestamp, 1e-9)

	changes := h.sender.ofType(events.TypeStateChange)
	require.Len(t, changes, 1)
	require.Equal(t, models.PlayerStateEnded, decodeStateChange(t, changes[0]))
}

func TestAgentEjectsOnPlayerError(t *testing.T) {
	h := newAgentHarness(t)
	h.join(t, 100)
	h.agent.HandleMessage(events.Load("abc", 0, models.DefaultAspect))

	h.renderer.Fail(150)

	ejects := h.sender.ofType(events.TypeEject)
	require.Len(t, ejects, 1)
	var p events.EjectPayload
	require.NoError(t, ejects[0].Decode(&p))
	require.Equal(t, 150, p.Code)
	require.Equal(t, "Can't Be Played in Embedded Player", p.Reason)
}

func TestAgentReadyUpSeeksAndPauses(t *testing.T) {
	h := newAgentHarness(t)
	h.join(t, 100)
	h.agent.HandleMessage(events.Load("abc", 0, models.DefaultAspect))
	h.sender.reset()

	h.agent.HandleMessage(events.ReadyUp(42.5))

	readies := h.commands(commandReadyUp)
	require.Len(t, readies, 1)
	require.InDelta(t, 42.5, *readies[0].TimeStamp, 1e-9)
	require.InDelta(t, 42.5, h.renderer.Position(), 1e-9)

	changes := h.sender.ofType(events.TypeStateChange)
	require.Len(t, changes, 1)
	require.Equal(t, models.PlayerStateReady, decodeStateChange(t, changes[0]))
}

func TestAgentAppliesVolume(t *testing.T) {
	h := newAgentHarness(t)
	h.agent.HandleMessage(events.SetVolume(0.2))
	require.InDelta(t, 0.2, h.renderer.Volume(), 1e-9)

	// the periodic refresh re-posts the stored level
	h.clock.Advance(time.Second)
	h.agent.Tick()
	vols := h.commands(commandSetVolume)
	require.Len(t, vols, 2)
	require.InDelta(t, 0.2, *vols[1].Level, 1e-9)
}

func TestAgentGoHomeUnloads(t *testing.T) {
	h := newAgentHarness(t)
	h.join(t, 100)
	h.agent.HandleMessage(events.Load("abc", 0, models.DefaultAspect))

	h.agent.HandleMessage(events.GoHome())

	pushes := h.commands(commandPush)
	require.Equal(t, homePath, pushes[len(pushes)-1].Path)
	require.Equal(t, models.PlayerStateUnstarted, h.agent.State())

	h.clock.Advance(time.Second)
	h.agent.Tick()
	require.Empty(t, h.sender.ofType(events.TypePing))
}

func TestAgentKeepsUserMessages(t *testing.T) {
	h := newAgentHarness(t)
	h.agent.HandleMessage(events.UserMessage("Livestreams not supported yet", events.MessageKindBad))

	msgs := h.agent.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, events.MessageKindBad, msgs[0].Kind)
}

func TestAgentSurvivesSendFailure(t *testing.T) {
	h := newAgentHarness(t)
	h.sender.err = errors.New("connection closed")

	h.agent.HandleMessage(events.Welcome("c1", 0))
	h.agent.Tick()
	h.renderer.Fail(2)
	require.Empty(t, h.sender.ofType(events.TypeEject))
}

func TestRendererHelpers(t *testing.T) {
	require.Equal(t, "/youtube/xyz/1.5", LoadYouTube("xyz", 1.5, 0, 0).Path)

	id, ts, err := parseYouTubePath("/youtube/xyz/37.5?x=1280&y=720")
	require.NoError(t, err)
	require.Equal(t, "xyz", id)
	require.InDelta(t, 37.5, ts, 1e-9)

	_, _, err = parseYouTubePath("/vimeo/xyz/1")
	require.Error(t, err)

	_, err = ParseRendererMessage([]byte(`{"current_time": 3}`))
	require.Error(t, err)

	m, err := ParseRendererMessage([]byte(`{"type":"stateChange","message":"PLAYING","current_time":3.25}`))
	require.NoError(t, err)
	require.Equal(t, MessageStateChange, m.Type)
	require.InDelta(t, 3.25, *m.CurrentTime, 1e-9)

	require.Equal(t, "Bad YouTube Id", EjectReason(2))
	require.Equal(t, "Unknown Error (7)", EjectReason(7))

	r := NewSimulatedRenderer(clockwork.NewFakeClock(), 10)
	w, hgt := r.ChangeAspect(models.DefaultAspect)
	require.Equal(t, 1280, w)
	require.Equal(t, 720, hgt)
	w, _ = r.ChangeAspect(models.SquareAspect)
	require.Equal(t, 720, w)
}
