package events

// Room lifecycle event types published through the outbox
const (
	RoomVideoLoaded    = "VideoLoaded"
	RoomVideoClosed    = "VideoClosed"
	RoomVideoEnded     = "VideoEnded"
	RoomSyncStarted    = "SyncStarted"
	RoomConverged      = "Converged"
	RoomHardReload     = "HardReload"
	RoomClientJoined   = "ClientJoined"
	RoomClientLeft     = "ClientLeft"
	RoomVolumeChanged  = "VolumeChanged"
	RoomPlaybackPaused = "PlaybackPaused"
)

// VideoLoadedPayload is the payload for a VideoLoaded event
type VideoLoadedPayload struct {
	VideoID   string  `json:"video_id"`
	Timestamp float64 `json:"timestamp"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	LoadedAt  float64 `json:"loaded_at"`
}

// VideoClosedPayload is the payload for a VideoClosed event
type VideoClosedPayload struct {
	VideoID   string  `json:"video_id"`
	Reason    string  `json:"reason"`
	Timestamp float64 `json:"timestamp"`
}

// VideoEndedEventPayload is the payload for a VideoEnded event
type VideoEndedEventPayload struct {
	VideoID   string  `json:"video_id"`
	ClientID  string  `json:"client_id"`
	Timestamp float64 `json:"timestamp"`
}

// SyncStartedPayload is the payload for a SyncStarted event
type SyncStartedPayload struct {
	VideoID   string  `json:"video_id"`
	Reason    string  `json:"reason"`
	Timestamp float64 `json:"timestamp"`
	StartedAt float64 `json:"started_at"`
}

// ConvergedPayload is the payload for a Converged event
type ConvergedPayload struct {
	VideoID     string  `json:"video_id"`
	Clients     int     `json:"clients"`
	ActivatesAt float64 `json:"activates_at"`
	Elapsed     float64 `json:"elapsed"`
}

// HardReloadPayload is the payload for a HardReload event
type HardReloadPayload struct {
	VideoID   string            `json:"video_id"`
	Timestamp float64           `json:"timestamp"`
	NotReady  map[string]string `json:"not_ready"`
	Manual    bool              `json:"manual"`
}

// ClientPresencePayload is the payload for ClientJoined and ClientLeft events
type ClientPresencePayload struct {
	ClientID string  `json:"client_id"`
	At       float64 `json:"at"`
	Clients  int     `json:"clients"`
}

// VolumeChangedPayload is the payload for a VolumeChanged event
type VolumeChangedPayload struct {
	Level float64 `json:"level"`
}

// PlaybackPausedPayload is the payload for a PlaybackPaused event
type PlaybackPausedPayload struct {
	VideoID   string  `json:"video_id"`
	Paused    bool    `json:"paused"`
	Timestamp float64 `json:"timestamp"`
}
