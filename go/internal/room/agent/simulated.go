package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/watchroom/go/internal/models"
)

// SimulatedRenderer is a headless player. It becomes ready right after a
// load or ready-up, advances its position with the clock while playing and
// reports the end once the position reaches its duration.
type SimulatedRenderer struct {
	clock      clockwork.Clock
	duration   float64
	resolution int

	mu        sync.Mutex
	onMessage func([]byte)
	loaded    bool
	videoID   string
	position  float64
	playing   bool
	startedAt time.Time
	ended     bool
	volume    float64
	posted    []RendererCommand
}

// NewSimulatedRenderer creates a player whose videos last duration seconds.
func NewSimulatedRenderer(clock clockwork.Clock, duration float64) *SimulatedRenderer {
	return &SimulatedRenderer{clock: clock, duration: duration, resolution: 720}
}

// OnMessage registers the receiver of the player's JSON messages.
func (r *SimulatedRenderer) OnMessage(fn func([]byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMessage = fn
}

// ChangeAspect keeps the height fixed and scales the width.
func (r *SimulatedRenderer) ChangeAspect(aspect models.Aspect) (int, int) {
	if !aspect.Valid() {
		aspect = models.DefaultAspect
	}
	height := r.resolution
	width := int(math.Round(float64(height) * aspect.Width / aspect.Height))
	return width, height
}

func (r *SimulatedRenderer) Post(cmds ...RendererCommand) error {
	var out []RendererMessage

	r.mu.Lock()
	for _, cmd := range cmds {
		r.posted = append(r.posted, cmd)
		msgs, err := r.apply(cmd)
		if err != nil {
			r.mu.Unlock()
			r.emit(out)
			return err
		}
		out = append(out, msgs...)
	}
	r.mu.Unlock()

	r.emit(out)
	return nil
}

func (r *SimulatedRenderer) apply(cmd RendererCommand) ([]RendererMessage, error) {
	switch {
	case cmd.Type == commandTypeNav && cmd.Command == commandPush:
		if cmd.Path == homePath {
			r.loaded, r.playing, r.ended = false, false, false
			r.videoID = ""
			return nil, nil
		}
		id, ts, err := parseYouTubePath(cmd.Path)
		if err != nil {
			return nil, err
		}
		r.loaded, r.playing, r.ended = true, false, false
		r.videoID = id
		r.position = math.Min(ts, r.duration)
		return []RendererMessage{r.stateMessage(models.PlayerStateReady)}, nil

	case cmd.Type == commandTypeVideo && cmd.Command == commandPlay:
		if !r.loaded || r.playing || r.ended {
			return nil, nil
		}
		r.playing = true
		r.startedAt = r.clock.Now()
		return []RendererMessage{r.stateMessage(models.PlayerStatePlaying)}, nil

	case cmd.Type == commandTypeVideo && cmd.Command == commandPause:
		if !r.loaded {
			return nil, nil
		}
		r.position = r.currentPosition()
		r.playing = false
		return []RendererMessage{r.stateMessage(models.PlayerStatePaused)}, nil

	case cmd.Type == commandTypeVideo && cmd.Command == commandReadyUp:
		if !r.loaded || cmd.TimeStamp == nil {
			return nil, nil
		}
		r.position = math.Min(*cmd.TimeStamp, r.duration)
		r.playing, r.ended = false, false
		return []RendererMessage{r.stateMessage(models.PlayerStateReady)}, nil

	case cmd.Type == commandTypeVideo && cmd.Command == commandSetVolume:
		if cmd.Level != nil {
			r.volume = *cmd.Level
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported renderer command %s/%s", cmd.Type, cmd.Command)
}

// Poll reports the current time and, once the duration is reached, the end
// of the video.
func (r *SimulatedRenderer) Poll() {
	var out []RendererMessage

	r.mu.Lock()
	if r.loaded {
		pos := r.currentPosition()
		if r.playing && pos >= r.duration && !r.ended {
			r.position = r.duration
			r.playing = false
			r.ended = true
			out = append(out, r.stateMessage(models.PlayerStateEnded))
		} else {
			out = append(out, r.timeMessage(MessageInfoCurrentTime, pos))
		}
	}
	r.mu.Unlock()

	r.emit(out)
}

// Fail makes the player report code as a player error.
func (r *SimulatedRenderer) Fail(code int) {
	r.emit([]RendererMessage{{Type: MessagePlayerError, Code: code}})
}

// Run polls every interval until ctx is done.
func (r *SimulatedRenderer) Run(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Poll()
		}
	}
}

// Posted returns every command received so far.
func (r *SimulatedRenderer) Posted() []RendererCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RendererCommand(nil), r.posted...)
}

// Position is the current playback position.
func (r *SimulatedRenderer) Position() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentPosition()
}

func (r *SimulatedRenderer) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

func (r *SimulatedRenderer) currentPosition() float64 {
	if !r.playing {
		return r.position
	}
	pos := r.position + r.clock.Since(r.startedAt).Seconds()
	return math.Min(pos, r.duration)
}

func (r *SimulatedRenderer) stateMessage(state models.PlayerState) RendererMessage {
	m := r.timeMessage(MessageStateChange, r.currentPosition())
	m.Message = string(state)
	return m
}

func (r *SimulatedRenderer) timeMessage(typ string, pos float64) RendererMessage {
	duration := r.duration
	return RendererMessage{Type: typ, CurrentTime: &pos, Duration: &duration}
}

func (r *SimulatedRenderer) emit(msgs []RendererMessage) {
	r.mu.Lock()
	fn := r.onMessage
	r.mu.Unlock()
	if fn == nil {
		return
	}
	for _, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			continue
		}
		fn(raw)
	}
}

// parseYouTubePath splits /youtube/{id}/{timestamp}?x=&y= into id and timestamp.
func parseYouTubePath(path string) (string, float64, error) {
	path, _, _ = strings.Cut(path, "?")
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "youtube" || parts[1] == "" {
		return "", 0, fmt.Errorf("unsupported path %q", path)
	}
	ts, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad timestamp in path %q: %w", path, err)
	}
	return parts[1], ts, nil
}
