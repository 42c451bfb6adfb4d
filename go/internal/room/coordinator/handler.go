package coordinator

import (
	"math"

	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/mcdev12/watchroom/go/internal/room/events"
)

// HandleJoin registers a new connection. With content active, the newcomer
// is loaded at the current position and every other client readies up at the
// same position. Existing records are kept: this is not a new epoch.
func (c *Coordinator) HandleJoin(clientID string) {
	now := c.clock.Now()
	c.clients.Add(clientID, now)
	c.metrics.RecordClients(c.clients.Len())

	c.log.Info().Str("client_id", clientID).Int("clients", c.clients.Len()).Msg("client joined")
	c.recorder.Record(events.RoomClientJoined, events.ClientPresencePayload{
		ClientID: clientID,
		At:       now,
		Clients:  c.clients.Len(),
	})

	c.out.SendTo(clientID, events.Welcome(clientID, now))
	c.out.SendTo(clientID, events.SetVolume(c.volume))

	if !c.content.Active {
		c.out.SendTo(clientID, events.State(c.snapshot()))
		return
	}

	// Existing reports survive: only the timeline and the deadline clock restart.
	if !c.ended {
		c.timeline = c.timeline.Pause(now)
		c.converged = false
		c.controlsEnabled = false
		c.syncStartedAt = now
		c.recordSyncStarted(ReasonClientJoined, now)
	}
	ts := c.timeline.CurrentTimestamp(now)

	c.out.SendTo(clientID, events.State(c.snapshot()))
	c.out.SendTo(clientID, events.Load(c.content.ID, ts, c.content.Aspect))
	for _, id := range c.clients.IDs() {
		if id != clientID {
			c.out.SendTo(id, events.ReadyUp(ts))
		}
	}

	c.log.Debug().Str("client_id", clientID).Float64("timestamp", ts).Msg("loading late joiner")
}

// HandleLeave prunes the record of a closed connection. Fewer clients can
// only help convergence, so no resync is started.
func (c *Coordinator) HandleLeave(clientID string) {
	if !c.clients.Remove(clientID) {
		c.log.Warn().Str("client_id", clientID).Msg("leave for unknown client")
		return
	}
	c.metrics.RecordClients(c.clients.Len())

	c.log.Info().Str("client_id", clientID).Int("clients", c.clients.Len()).Msg("client left")
	c.recorder.Record(events.RoomClientLeft, events.ClientPresencePayload{
		ClientID: clientID,
		At:       c.clock.Now(),
		Clients:  c.clients.Len(),
	})
}

// HandleClientMessage routes one message from clientID. Malformed or
// misdirected messages are logged and ignored.
func (c *Coordinator) HandleClientMessage(clientID string, msg events.Message) {
	if _, ok := c.clients.Get(clientID); !ok {
		c.log.Warn().Str("client_id", clientID).Str("type", string(msg.Type)).Msg("message from unknown client")
		return
	}

	var err error
	switch msg.Type {
	case events.TypeTimeSyncRequest:
		var p events.TimeSyncRequestPayload
		if err = msg.Decode(&p); err == nil {
			c.out.SendTo(clientID, events.TimeSync(p.ClientSentAt, c.clock.Now()))
		}

	case events.TypePing:
		var p events.PingPayload
		if err = msg.Decode(&p); err == nil {
			c.handlePing(clientID, p)
		}

	case events.TypeStateChange:
		var p events.StateChangePayload
		if err = msg.Decode(&p); err == nil {
			c.handleStateChange(clientID, p)
		}

	case events.TypeVideoEnded:
		var p events.VideoEndedPayload
		if err = msg.Decode(&p); err == nil {
			c.handleVideoEnded(clientID, p.Timestamp)
		}

	case events.TypeEject:
		var p events.EjectPayload
		if err = msg.Decode(&p); err == nil {
			c.Eject(clientID, p.Reason, p.Code)
		}

	case events.TypeLoadVideo:
		var p events.LoadVideoPayload
		if err = msg.Decode(&p); err == nil {
			err = c.LoadVideo(p.ID, p.Timestamp)
		}

	case events.TypeCloseVideo:
		c.CloseVideo()

	case events.TypeSetPaused:
		var p events.SetPausedPayload
		if err = msg.Decode(&p); err == nil {
			err = c.SetPaused(p.Paused)
		}

	case events.TypeReadyUpRequest:
		var p events.ReadyUpRequestPayload
		if err = msg.Decode(&p); err == nil {
			err = c.Seek(p.Timestamp)
		}

	case events.TypeRestartVideo:
		err = c.Restart()

	case events.TypeSetVolumeRequest:
		var p events.SetVolumeRequestPayload
		if err = msg.Decode(&p); err == nil {
			err = c.SetVolume(p.Level)
		}

	case events.TypeHardReload:
		err = c.HardReload()

	default:
		c.log.Warn().Str("client_id", clientID).Str("type", string(msg.Type)).Msg("unknown message type")
		return
	}

	if err != nil {
		c.log.Warn().Err(err).Str("client_id", clientID).Str("type", string(msg.Type)).Msg("rejected client message")
	}
}

// handlePing refreshes liveness and, once converged, checks the reported
// timestamp against the authoritative one.
func (c *Coordinator) handlePing(clientID string, p events.PingPayload) {
	now := c.clock.Now()
	c.clients.RecordPing(clientID, now)

	if p.ClientID != "" && p.ClientID != clientID {
		c.log.Warn().
			Str("client_id", clientID).
			Str("claimed_id", p.ClientID).
			Msg("ping claims another client id")
	}

	if !validTimestamp(p.Timestamp) {
		c.log.Warn().Str("client_id", clientID).Float64("timestamp", p.Timestamp).Msg("ping carries an invalid timestamp")
		return
	}
	if p.Duration > 0 && !math.IsInf(p.Duration, 0) {
		c.duration = p.Duration
	}

	if !c.content.Active || c.ended || !c.converged {
		return
	}
	if c.clients.InGrace(clientID, now, c.cfg.JoinGracePeriod) {
		return
	}

	expected := c.timeline.CurrentTimestamp(now)
	if math.Abs(p.Timestamp-expected) < c.cfg.SyncTolerance {
		return
	}

	c.log.Info().
		Str("client_id", clientID).
		Float64("reported", p.Timestamp).
		Float64("expected", expected).
		Float64("tolerance", c.cfg.SyncTolerance).
		Msg("client reported a bad timestamp in ping")
	c.beginSync(ReasonBadTimestamp)
	c.out.Broadcast(events.ReadyUp(c.timeline.Scrub))
}

func (c *Coordinator) handleStateChange(clientID string, p events.StateChangePayload) {
	state, err := models.ParsePlayerState(string(p.State))
	if err != nil {
		c.log.Warn().Err(err).Str("client_id", clientID).Msg("ignoring state change")
		return
	}
	c.clients.RecordState(clientID, state)
	c.log.Debug().Str("client_id", clientID).Str("state", string(state)).Msg("client state")
}

// handleVideoEnded freezes the timeline where the reporting client stopped.
// Until the next seek, pause or load the session stays ended.
func (c *Coordinator) handleVideoEnded(clientID string, timestamp float64) {
	if !c.content.Active {
		return
	}
	if !validTimestamp(timestamp) {
		c.log.Warn().Str("client_id", clientID).Float64("timestamp", timestamp).Msg("ignoring video end with invalid timestamp")
		return
	}
	if c.ended {
		c.log.Debug().Str("client_id", clientID).Msg("video already ended")
		return
	}

	c.ended = true
	c.timeline = models.PausedAt(timestamp)

	c.log.Info().Str("client_id", clientID).Str("video_id", c.content.ID).Float64("timestamp", timestamp).Msg("video ended")
	c.recorder.Record(events.RoomVideoEnded, events.VideoEndedEventPayload{
		VideoID:   c.content.ID,
		ClientID:  clientID,
		Timestamp: timestamp,
	})
}
