package models

import (
	"fmt"
	"strings"
)

// PlayerState is the decode/player status reported by a participant.
type PlayerState string

const (
	PlayerStateUnstarted PlayerState = "UNSTARTED"
	PlayerStateReady     PlayerState = "READY"
	PlayerStatePaused    PlayerState = "PAUSED"
	PlayerStatePlaying   PlayerState = "PLAYING"
	PlayerStateBuffering PlayerState = "BUFFERING"
	PlayerStateEnded     PlayerState = "ENDED"
)

// ParsePlayerState accepts the upper or lower case name of a state.
func ParsePlayerState(s string) (PlayerState, error) {
	state := PlayerState(strings.ToUpper(strings.TrimSpace(s)))
	if !state.Valid() {
		return "", fmt.Errorf("unknown player state %q", s)
	}
	return state, nil
}

// Valid reports whether s is one of the known states.
func (s PlayerState) Valid() bool {
	switch s {
	case PlayerStateUnstarted, PlayerStateReady, PlayerStatePaused,
		PlayerStatePlaying, PlayerStateBuffering, PlayerStateEnded:
		return true
	}
	return false
}
