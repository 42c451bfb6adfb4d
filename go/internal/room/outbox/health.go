package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	LastEventTime     time.Time `json:"last_event_time"`
	EventsProcessed   uint64    `json:"events_processed"`
	PendingEvents     int       `json:"pending_events"`
	WorkerRunning     bool      `json:"worker_running"`
	BrokerConnected   bool      `json:"broker_connected"`
	DatabaseConnected bool      `json:"database_connected"`
	Errors            []string  `json:"errors"`
}

// BrokerConn is the part of a broker connection the health check looks at
type BrokerConn interface {
	Connected() bool
}

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthChecker struct {
	worker    *Worker
	broker    BrokerConn
	db        Pinger
	clock     clockwork.Clock
	threshold time.Duration // How long pending events may wait before unhealthy
}

// NewHealthChecker reports on worker. broker and db are optional.
func NewHealthChecker(worker *Worker, broker BrokerConn, db Pinger, clock clockwork.Clock, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		worker:    worker,
		broker:    broker,
		db:        db,
		clock:     clock,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	status.EventsProcessed, status.LastEventTime = h.worker.Stats()
	status.PendingEvents = h.worker.Pending()

	status.WorkerRunning = h.worker.Running()
	if !status.WorkerRunning {
		status.Healthy = false
		status.Errors = append(status.Errors, "outbox worker not running")
	}

	if h.broker != nil {
		status.BrokerConnected = h.broker.Connected()
		if !status.BrokerConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		} else {
			status.DatabaseConnected = true
		}
	}

	if status.PendingEvents > h.worker.config.QueueSize/2 {
		status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", status.PendingEvents))
	}

	// Only stale while something is waiting
	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		since := h.clock.Since(status.LastEventTime)
		if since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events processed for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write outbox health")
	}
}
