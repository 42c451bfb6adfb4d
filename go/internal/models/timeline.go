package models

import (
	"errors"
	"fmt"
	"math"
)

// NotStarted is the activation time carried by a paused timeline.
const NotStarted = -1.0

var (
	// ErrTimelineActive is returned when unpausing a timeline that is already playing.
	ErrTimelineActive = errors.New("timeline must be paused before it can be resumed")
	// ErrActivationInPast is returned when the activation time is earlier than now.
	ErrActivationInPast = errors.New("activation time must not be earlier than now")
)

// ScrubTimeline describes which media timestamp should be playing at a given
// logical time. It is a value: every transition returns a new timeline.
type ScrubTimeline struct {
	Scrub       float64 `json:"scrub"`
	ActivatedAt float64 `json:"activated_at"`
	Active      bool    `json:"active"`
}

// PausedAt returns a paused timeline parked at scrub. Negative positions clamp to zero.
func PausedAt(scrub float64) ScrubTimeline {
	if scrub < 0 || math.IsNaN(scrub) {
		scrub = 0
	}
	return ScrubTimeline{Scrub: scrub, ActivatedAt: NotStarted, Active: false}
}

// Pause freezes the timeline at the timestamp it reports for now.
func (t ScrubTimeline) Pause(now float64) ScrubTimeline {
	return PausedAt(t.CurrentTimestamp(now))
}

// UnpauseAt returns a playing timeline that starts advancing from its scrub
// at the logical time activation. An already playing timeline, or an
// activation earlier than now, leaves t unchanged and returns an error.
func (t ScrubTimeline) UnpauseAt(now, activation float64) (ScrubTimeline, error) {
	if t.Active {
		return t, ErrTimelineActive
	}
	if activation < now || math.IsNaN(activation) {
		return t, ErrActivationInPast
	}
	return ScrubTimeline{Scrub: t.Scrub, ActivatedAt: activation, Active: true}, nil
}

// CurrentTimestamp evaluates the timeline at the logical time now.
func (t ScrubTimeline) CurrentTimestamp(now float64) float64 {
	if !t.Active || now < t.ActivatedAt {
		return t.Scrub
	}
	return t.Scrub + (now - t.ActivatedAt)
}

// IsStarted reports whether playback should already be running at now.
func (t ScrubTimeline) IsStarted(now float64) bool {
	return t.Active && now > t.ActivatedAt
}

func (t ScrubTimeline) String() string {
	return fmt.Sprintf("%.3f %.3f %t", t.Scrub, t.ActivatedAt, t.Active)
}
