package events

import "github.com/mcdev12/watchroom/go/internal/models"

// Payload types shared between the coordinator, the agent and the gateway

// WelcomePayload is sent to a participant right after it connects
type WelcomePayload struct {
	ClientID  string  `json:"client_id"`
	ServerNow float64 `json:"server_now"`
}

// LoadPayload tells a participant to navigate to content at a position
type LoadPayload struct {
	ID        string  `json:"id"`
	Timestamp float64 `json:"timestamp"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// ReadyUpPayload tells a participant to seek and pause, awaiting activation
type ReadyUpPayload struct {
	Timestamp float64 `json:"timestamp"`
}

// SetVolumePayload carries the authoritative volume, already scaled to [0, max]
type SetVolumePayload struct {
	Level float64 `json:"level"`
}

// StatePayload is the snapshot of replicated authority state
type StatePayload struct {
	ContentActive bool                 `json:"content_active"`
	Timeline      models.ScrubTimeline `json:"timeline"`
	Volume        float64              `json:"volume"`
}

// MessageKind selects how a user-visible message is styled
type MessageKind string

const (
	MessageKindGood MessageKind = "good"
	MessageKindBad  MessageKind = "bad"
	MessageKindInfo MessageKind = "info"
)

// UserMessagePayload is a short-lived on-screen message
type UserMessagePayload struct {
	Text string      `json:"text"`
	Kind MessageKind `json:"kind"`
}

// TimeSyncPayload answers a TimeSyncRequestPayload
type TimeSyncPayload struct {
	ClientSentAt float64 `json:"client_sent_at"`
	ServerNow    float64 `json:"server_now"`
}

// StateChangePayload reports the participant's local player state
type StateChangePayload struct {
	State models.PlayerState `json:"state"`
}

// PingPayload is the periodic liveness report with the locally observed position
type PingPayload struct {
	ClientID  string  `json:"client_id"`
	Now       float64 `json:"now"`
	Timestamp float64 `json:"timestamp"`
	Duration  float64 `json:"duration"`
}

// VideoEndedPayload reports that the local player reached the end
type VideoEndedPayload struct {
	Timestamp float64 `json:"timestamp"`
}

// EjectPayload asks the authority to close the content after a player error
type EjectPayload struct {
	Reason string `json:"reason"`
	Code   int    `json:"code"`
}

// TimeSyncRequestPayload starts a clock sync round trip
type TimeSyncRequestPayload struct {
	ClientSentAt float64 `json:"client_sent_at"`
}

// LoadVideoPayload requests a new media item
type LoadVideoPayload struct {
	ID        string  `json:"id"`
	Timestamp float64 `json:"timestamp"`
}

// SetPausedPayload requests a pause or resume
type SetPausedPayload struct {
	Paused bool `json:"paused"`
}

// ReadyUpRequestPayload requests a seek to a timestamp
type ReadyUpRequestPayload struct {
	Timestamp float64 `json:"timestamp"`
}

// SetVolumeRequestPayload requests a volume level in [0, 1]
type SetVolumeRequestPayload struct {
	Level float64 `json:"level"`
}

func Welcome(clientID string, serverNow float64) Message {
	return build(TypeWelcome, WelcomePayload{ClientID: clientID, ServerNow: serverNow})
}

func GoHome() Message {
	return Message{Type: TypeGoHome}
}

func Load(id string, timestamp float64, aspect models.Aspect) Message {
	return build(TypeLoad, LoadPayload{ID: id, Timestamp: timestamp, Width: aspect.Width, Height: aspect.Height})
}

func ReadyUp(timestamp float64) Message {
	return build(TypeReadyUp, ReadyUpPayload{Timestamp: timestamp})
}

func SetVolume(level float64) Message {
	return build(TypeSetVolume, SetVolumePayload{Level: level})
}

func State(p StatePayload) Message {
	return build(TypeState, p)
}

func UserMessage(text string, kind MessageKind) Message {
	return build(TypeMessage, UserMessagePayload{Text: text, Kind: kind})
}

func TimeSync(clientSentAt, serverNow float64) Message {
	return build(TypeTimeSync, TimeSyncPayload{ClientSentAt: clientSentAt, ServerNow: serverNow})
}

func StateChange(state models.PlayerState) Message {
	return build(TypeStateChange, StateChangePayload{State: state})
}

func Ping(p PingPayload) Message {
	return build(TypePing, p)
}

func VideoEnded(timestamp float64) Message {
	return build(TypeVideoEnded, VideoEndedPayload{Timestamp: timestamp})
}

func Eject(reason string, code int) Message {
	return build(TypeEject, EjectPayload{Reason: reason, Code: code})
}

func TimeSyncRequest(clientSentAt float64) Message {
	return build(TypeTimeSyncRequest, TimeSyncRequestPayload{ClientSentAt: clientSentAt})
}

func LoadVideo(id string, timestamp float64) Message {
	return build(TypeLoadVideo, LoadVideoPayload{ID: id, Timestamp: timestamp})
}

func CloseVideo() Message {
	return Message{Type: TypeCloseVideo}
}

func SetPaused(paused bool) Message {
	return build(TypeSetPaused, SetPausedPayload{Paused: paused})
}

func ReadyUpRequest(timestamp float64) Message {
	return build(TypeReadyUpRequest, ReadyUpRequestPayload{Timestamp: timestamp})
}

func RestartVideo() Message {
	return Message{Type: TypeRestartVideo}
}

func SetVolumeRequest(level float64) Message {
	return build(TypeSetVolumeRequest, SetVolumeRequestPayload{Level: level})
}

func HardReload() Message {
	return Message{Type: TypeHardReload}
}
