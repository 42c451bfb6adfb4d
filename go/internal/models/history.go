package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PlaybackSession is one piece of content as it lived in a room, from load to close
type PlaybackSession struct {
	ID             uuid.UUID  `json:"id"`
	RoomID         string     `json:"room_id"`
	VideoID        string     `json:"video_id"`
	StartTimestamp float64    `json:"start_timestamp"`
	Width          *float64   `json:"width,omitempty"`
	Height         *float64   `json:"height,omitempty"`
	LoadedAt       time.Time  `json:"loaded_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CloseReason    *string    `json:"close_reason,omitempty"`
}

// RoomEvent is a recorded room lifecycle event
type RoomEvent struct {
	ID         uuid.UUID       `json:"id"`
	RoomID     string          `json:"room_id"`
	EventType  string          `json:"event_type"`
	VideoID    *string         `json:"video_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	RecordedAt time.Time       `json:"recorded_at"`
}
