package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is one room lifecycle event awaiting publication
type OutboxEvent struct {
	ID        uuid.UUID
	RoomID    string
	EventType string
	Payload   []byte
	CreatedAt time.Time
	SentAt    *time.Time
}

type EventPublisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}
