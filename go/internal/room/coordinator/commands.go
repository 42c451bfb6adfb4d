package coordinator

import (
	"fmt"
	"math"
	"strings"

	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/mcdev12/watchroom/go/internal/room/events"
)

// LivestreamMessage is shown to every participant when live content is rejected.
const LivestreamMessage = "Livestreams not supported yet"

// Close reasons recorded with a VideoClosed event
const (
	CloseRequested  = "requested"
	CloseLivestream = "livestream"
	CloseEjected    = "ejected"
)

// LoadVideo starts loading id at timestamp. The metadata lookup runs in the
// background and any earlier pending load is cancelled; the session changes
// on the tick that receives the result.
func (c *Coordinator) LoadVideo(id string, timestamp float64) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: video id is required", ErrInvalidArgument)
	}
	if !validTimestamp(timestamp) {
		return fmt.Errorf("%w: timestamp %v", ErrInvalidArgument, timestamp)
	}

	c.paused = false
	gen := c.loads.start(id, timestamp)

	c.log.Info().
		Str("video_id", id).
		Float64("timestamp", timestamp).
		Uint64("generation", gen).
		Msg("fetching info for video")
	return nil
}

// drainLoads applies every finished metadata fetch without blocking.
func (c *Coordinator) drainLoads() {
	for {
		select {
		case res := <-c.loads.results:
			c.applyLoad(res)
		default:
			return
		}
	}
}

func (c *Coordinator) applyLoad(res loadResult) {
	if !c.loads.current(res) {
		c.log.Debug().
			Str("video_id", res.id).
			Uint64("generation", res.generation).
			Msg("dropping superseded metadata result")
		return
	}
	c.loads.completed()

	aspect := models.DefaultAspect
	switch {
	case res.err != nil:
		c.log.Warn().Err(res.err).Str("video_id", res.id).Msg("metadata fetch failed, using default aspect")
	case res.info == nil:
	case res.info.LiveNow:
		c.log.Warn().Str("video_id", res.id).Msg("rejecting livestream")
		c.out.Broadcast(events.UserMessage(LivestreamMessage, events.MessageKindBad))
		if c.content.Active {
			c.closeVideo(CloseLivestream)
		}
		return
	default:
		aspect = models.Aspect{Width: res.info.Width, Height: res.info.Height}
	}

	now := c.clock.Now()
	c.content = models.NewContentSession(res.id, aspect, now)
	c.timeline = models.PausedAt(res.timestamp)
	c.duration = 0
	c.paused = false
	c.beginSync(ReasonNewVideo)
	c.out.Broadcast(events.Load(c.content.ID, c.timeline.Scrub, c.content.Aspect))

	c.log.Info().
		Str("video_id", res.id).
		Float64("width", c.content.Aspect.Width).
		Float64("height", c.content.Aspect.Height).
		Float64("timestamp", c.timeline.Scrub).
		Msg("loaded video")

	c.recorder.Record(events.RoomVideoLoaded, events.VideoLoadedPayload{
		VideoID:   c.content.ID,
		Timestamp: c.timeline.Scrub,
		Width:     c.content.Aspect.Width,
		Height:    c.content.Aspect.Height,
		LoadedAt:  now,
	})
}

// CloseVideo unloads the current content and sends every participant home.
// Closing with nothing loaded only cancels a pending load.
func (c *Coordinator) CloseVideo() {
	c.loads.abort()
	if !c.content.Active {
		c.log.Debug().Msg("close requested with no active content")
		return
	}
	c.closeVideo(CloseRequested)
}

func (c *Coordinator) closeVideo(reason string) {
	c.loads.abort()

	prev := c.content
	ts := c.currentTimestamp()

	c.content = models.ClosedSession()
	c.timeline = models.PausedAt(0)
	c.converged = false
	c.ended = false
	c.paused = false
	c.controlsEnabled = false
	c.duration = 0
	c.clients.ResetEpoch()

	c.out.Broadcast(events.GoHome())

	c.log.Info().Str("video_id", prev.ID).Str("reason", reason).Float64("timestamp", ts).Msg("closed video")
	c.recorder.Record(events.RoomVideoClosed, events.VideoClosedPayload{
		VideoID:   prev.ID,
		Reason:    reason,
		Timestamp: ts,
	})
}

// Eject closes the session after a participant's player failed and shows
// reason to everyone.
func (c *Coordinator) Eject(clientID, reason string, code int) {
	if !c.content.Active {
		c.log.Debug().Str("client_id", clientID).Str("reason", reason).Msg("ignoring eject with no active content")
		return
	}
	c.log.Warn().Str("client_id", clientID).Str("reason", reason).Int("code", code).Msg("ejecting video")
	c.out.Broadcast(events.UserMessage(reason, events.MessageKindBad))
	c.closeVideo(CloseEjected)
}

// SetPaused toggles playback. Pausing freezes the timeline and tells every
// client to ready up at the frozen position. Resuming is a resync: all
// clients must report ready again before the timeline activates.
func (c *Coordinator) SetPaused(paused bool) error {
	if !c.content.Active {
		c.log.Warn().Bool("paused", paused).Msg("ignoring attempt to toggle pause status when content is not active")
		return ErrNoContent
	}

	if c.ended {
		c.hardSeek(c.currentTimestamp())
		c.paused = paused
		c.recordPaused()
		return nil
	}

	now := c.clock.Now()
	if paused {
		c.timeline = c.timeline.Pause(now)
		c.paused = true
		ts := c.timeline.Scrub
		c.log.Info().Float64("timestamp", ts).Msg("paused scrub")
		c.out.Broadcast(events.ReadyUp(ts))
	} else {
		c.paused = false
		ts := c.timeline.CurrentTimestamp(now)
		c.beginSync(ReasonTogglePlay)
		c.out.Broadcast(events.ReadyUp(ts))
	}
	c.recordPaused()
	return nil
}

func (c *Coordinator) recordPaused() {
	c.recorder.Record(events.RoomPlaybackPaused, events.PlaybackPausedPayload{
		VideoID:   c.content.ID,
		Paused:    c.paused,
		Timestamp: c.timeline.Scrub,
	})
}

// Seek moves playback to timestamp. A live session readies up in place; an
// ended session is reloaded.
func (c *Coordinator) Seek(timestamp float64) error {
	if !validTimestamp(timestamp) {
		return fmt.Errorf("%w: timestamp %v", ErrInvalidArgument, timestamp)
	}
	if !c.content.Active {
		c.log.Warn().Float64("timestamp", timestamp).Msg("ignoring seek when content is not active")
		return ErrNoContent
	}

	if c.ended {
		c.hardSeek(timestamp)
		return nil
	}

	c.timeline = models.PausedAt(timestamp)
	c.beginSync(ReasonSeek)
	c.out.Broadcast(events.ReadyUp(c.timeline.Scrub))
	return nil
}

// Restart seeks to the beginning.
func (c *Coordinator) Restart() error {
	return c.Seek(0)
}

// SetVolume scales level in [0, 1] to the authoritative range.
func (c *Coordinator) SetVolume(level float64) error {
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return fmt.Errorf("%w: volume level %v", ErrInvalidArgument, level)
	}

	volume := math.Min(math.Max(c.cfg.VolumeMax*level, 0), c.cfg.VolumeMax)
	if volume == c.volume {
		return nil
	}
	c.volume = volume
	c.out.Broadcast(events.SetVolume(volume))

	c.log.Debug().Float64("level", level).Float64("volume", volume).Msg("set volume")
	c.recorder.Record(events.RoomVolumeChanged, events.VolumeChangedPayload{Level: volume})
	return nil
}

// HardReload reloads every client at the current position on request.
func (c *Coordinator) HardReload() error {
	if !c.content.Active {
		c.log.Warn().Msg("ignoring hard reload when content is not active")
		return ErrNoContent
	}
	c.hardReload(true)
	return nil
}

// MediaInfo returns a snapshot for menus and the control API.
func (c *Coordinator) MediaInfo() models.MediaInfo {
	level := 0.0
	if c.cfg.VolumeMax > 0 {
		level = c.volume / c.cfg.VolumeMax
	}
	// The timeline keeps running past the end until a client reports it.
	scrub := c.currentTimestamp()
	if c.duration > 0 && scrub > c.duration {
		scrub = c.duration
	}
	return models.MediaInfo{
		Active:          c.content.Active,
		ID:              c.content.ID,
		Paused:          c.paused,
		Scrub:           scrub,
		Duration:        c.duration,
		VolumeLevel:     level,
		VolumeMax:       c.cfg.VolumeMax,
		Phase:           string(c.Phase()),
		ControlsEnabled: c.controlsEnabled,
		Clients:         c.clients.Len(),
	}
}

// LoadPending reports whether a metadata fetch is still outstanding.
func (c *Coordinator) LoadPending() bool {
	return c.loads.pending()
}
