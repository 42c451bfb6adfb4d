package events

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Type identifies the payload carried by a Message.
type Type string

// Authority to participant commands
const (
	TypeWelcome   Type = "welcome"
	TypeGoHome    Type = "go_home"
	TypeLoad      Type = "load"
	TypeReadyUp   Type = "ready_up"
	TypeSetVolume Type = "set_volume"
	TypeState     Type = "state"
	TypeMessage   Type = "message"
	TypeTimeSync  Type = "time_sync"
)

// Participant to authority status reports
const (
	TypeStateChange     Type = "state_change"
	TypePing            Type = "ping"
	TypeVideoEnded      Type = "video_ended"
	TypeEject           Type = "eject"
	TypeTimeSyncRequest Type = "time_sync_request"
)

// Participant to authority requests
const (
	TypeLoadVideo        Type = "load_video"
	TypeCloseVideo       Type = "close_video"
	TypeSetPaused        Type = "set_paused"
	TypeReadyUpRequest   Type = "ready_up_request"
	TypeRestartVideo     Type = "restart_video"
	TypeSetVolumeRequest Type = "set_volume_request"
	TypeHardReload       Type = "hard_reload"
)

// Message is the envelope exchanged over the room transport. Every payload
// carries absolute values so stale or duplicated delivery is harmless.
type Message struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload in an envelope of type t. A nil payload yields an
// envelope without data.
func Encode(t Type, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return Message{Type: t, Data: data}, nil
}

// Decode unmarshals the envelope data into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s message has no data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", m.Type, err)
	}
	return nil
}

// Parse decodes a raw websocket frame into an envelope.
func Parse(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("invalid message envelope: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("message envelope has no type")
	}
	return m, nil
}

// Bytes marshals the envelope for the wire.
func (m Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// build is used by the typed constructors, whose payloads only carry
// validated numbers and strings.
func build(t Type, payload any) Message {
	m, err := Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(t)).Msg("dropping unencodable payload")
		return Message{Type: t}
	}
	return m
}
