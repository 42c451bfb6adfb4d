package coordinator

import (
	"sort"

	"github.com/mcdev12/watchroom/go/internal/models"
)

// ClientTable holds one record per connected participant, keyed by the
// transport's connection id. Records are inserted by Coordinator.HandleJoin
// and removed by Coordinator.HandleLeave only.
type ClientTable struct {
	records map[string]*models.ClientRecord
}

func NewClientTable() *ClientTable {
	return &ClientTable{records: make(map[string]*models.ClientRecord)}
}

// Add inserts a fresh record. An existing record for id is replaced.
func (t *ClientTable) Add(id string, now float64) *models.ClientRecord {
	rec := &models.ClientRecord{ID: id, JoinedAt: now}
	t.records[id] = rec
	return rec
}

// Remove deletes the record for id and reports whether one existed.
func (t *ClientTable) Remove(id string) bool {
	if _, ok := t.records[id]; !ok {
		return false
	}
	delete(t.records, id)
	return true
}

func (t *ClientTable) Get(id string) (*models.ClientRecord, bool) {
	rec, ok := t.records[id]
	return rec, ok
}

func (t *ClientTable) Len() int {
	return len(t.records)
}

// IDs returns the connection ids in a stable order.
func (t *ClientTable) IDs() []string {
	ids := make([]string, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResetEpoch forgets every status report and ping of the previous epoch.
func (t *ClientTable) ResetEpoch() {
	for _, rec := range t.records {
		rec.Reported = false
		rec.ReportedState = ""
		rec.Pinged = false
		rec.LastPingAt = 0
	}
}

// RecordPing marks id as alive at now.
func (t *ClientTable) RecordPing(id string, now float64) bool {
	rec, ok := t.records[id]
	if !ok {
		return false
	}
	rec.LastPingAt = now
	rec.Pinged = true
	return true
}

// RecordState stores the latest status report from id.
func (t *ClientTable) RecordState(id string, state models.PlayerState) bool {
	rec, ok := t.records[id]
	if !ok {
		return false
	}
	rec.ReportedState = state
	rec.Reported = true
	return true
}

// RefreshPings gives every client a fresh ping at now.
func (t *ClientTable) RefreshPings(now float64) {
	for id := range t.records {
		t.RecordPing(id, now)
	}
}

// AllReady reports whether every connected client reported Ready in this
// epoch. An empty table is trivially ready.
func (t *ClientTable) AllReady() bool {
	for _, rec := range t.records {
		if !rec.Reported || rec.ReportedState != models.PlayerStateReady {
			return false
		}
	}
	return true
}

// NotReady maps each client that has not reported Ready to its reported
// state, or "no report".
func (t *ClientTable) NotReady() map[string]string {
	out := make(map[string]string)
	for id, rec := range t.records {
		switch {
		case !rec.Reported:
			out[id] = "no report"
		case rec.ReportedState != models.PlayerStateReady:
			out[id] = string(rec.ReportedState)
		}
	}
	return out
}

// InGrace reports whether id joined less than grace seconds before now.
func (t *ClientTable) InGrace(id string, now, grace float64) bool {
	rec, ok := t.records[id]
	if !ok {
		return false
	}
	return grace > now-rec.JoinedAt
}

// BadPings lists the clients outside their grace period whose last ping in
// this epoch is older than tolerance. Clients that have not pinged in this
// epoch are not judged.
func (t *ClientTable) BadPings(now, tolerance, grace float64) []string {
	var bad []string
	for _, id := range t.IDs() {
		rec := t.records[id]
		if !rec.Pinged || t.InGrace(id, now, grace) {
			continue
		}
		if now-rec.LastPingAt >= tolerance {
			bad = append(bad, id)
		}
	}
	return bad
}

// Snapshot copies the records for read-only use.
func (t *ClientTable) Snapshot() []models.ClientRecord {
	out := make([]models.ClientRecord, 0, len(t.records))
	for _, id := range t.IDs() {
		out = append(out, *t.records[id])
	}
	return out
}
