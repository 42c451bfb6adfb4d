package models

// MediaInfo is a read-only snapshot of the room for menus and the control API.
type MediaInfo struct {
	Active          bool    `json:"active"`
	ID              string  `json:"id"`
	Paused          bool    `json:"paused"`
	Scrub           float64 `json:"scrub"`
	Duration        float64 `json:"duration"`
	VolumeLevel     float64 `json:"volume_level"`
	VolumeMax       float64 `json:"volume_max"`
	Phase           string  `json:"phase"`
	ControlsEnabled bool    `json:"controls_enabled"`
	Clients         int     `json:"clients"`
}
