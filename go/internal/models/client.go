package models

// ClientRecord is what the authority knows about one connected participant.
// Reported and Pinged are false until the first status report or ping of
// the current sync epoch.
type ClientRecord struct {
	ID            string      `json:"id"`
	JoinedAt      float64     `json:"joined_at"`
	LastPingAt    float64     `json:"last_ping_at"`
	Pinged        bool        `json:"pinged"`
	ReportedState PlayerState `json:"reported_state,omitempty"`
	Reported      bool        `json:"reported"`
}
