package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/mcdev12/watchroom/go/internal/room/outbox"
	"github.com/mcdev12/watchroom/go/internal/sqlutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReplacedReason closes a session that was still open when new content loaded
const ReplacedReason = "replaced"

// Querier defines the writes a recorded event may trigger
type Querier interface {
	InsertEvent(ctx context.Context, arg InsertEventParams) (bool, error)
	OpenSession(ctx context.Context, arg OpenSessionParams) error
	MarkSessionEnded(ctx context.Context, arg MarkSessionEndedParams) (int64, error)
	CloseOpenSessions(ctx context.Context, arg CloseOpenSessionsParams) (int64, error)
}

// Repository stores room events and the playback sessions derived from them
type Repository struct {
	db      *sql.DB
	queries *Queries
	logger  zerolog.Logger
}

// NewRepository creates a new history repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:      db,
		queries: New(db),
		logger:  log.With().Str("component", "history").Logger(),
	}
}

// Publish records event. It lets the repository sit behind the outbox worker
// next to the broker publisher.
func (r *Repository) Publish(ctx context.Context, event outbox.OutboxEvent) error {
	recorded, err := r.RecordEvent(ctx, event)
	if err != nil {
		return err
	}
	if !recorded {
		r.logger.Debug().Str("event_id", event.ID.String()).Msg("event already recorded")
	}
	return nil
}

// RecordEvent stores event and updates sessions in one transaction. It
// returns false when the event id was seen before, in which case nothing
// changes.
func (r *Repository) RecordEvent(ctx context.Context, event outbox.OutboxEvent) (bool, error) {
	var recorded bool
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		var err error
		recorded, err = apply(ctx, q, event)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to record %s event: %w", event.EventType, err)
	}
	return recorded, nil
}

// ListSessions returns the most recent sessions of a room, newest first
func (r *Repository) ListSessions(ctx context.Context, roomID string, limit int32) ([]models.PlaybackSession, error) {
	rows, err := r.queries.ListSessions(ctx, ListSessionsParams{RoomID: roomID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]models.PlaybackSession, len(rows))
	for i, row := range rows {
		sessions[i] = dbSessionToModel(row)
	}
	return sessions, nil
}

// ListEvents returns the most recent events of a room, newest first
func (r *Repository) ListEvents(ctx context.Context, roomID string, limit int32) ([]models.RoomEvent, error) {
	rows, err := r.queries.ListEvents(ctx, ListEventsParams{RoomID: roomID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]models.RoomEvent, len(rows))
	for i, row := range rows {
		out[i] = dbEventToModel(row)
	}
	return out, nil
}

// apply writes event and, for content lifecycle events, the session change it implies
func apply(ctx context.Context, q Querier, event outbox.OutboxEvent) (bool, error) {
	var ref struct {
		VideoID string `json:"video_id"`
	}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &ref); err != nil {
			return false, fmt.Errorf("failed to decode payload: %w", err)
		}
	}

	inserted, err := q.InsertEvent(ctx, InsertEventParams{
		ID:        event.ID,
		RoomID:    event.RoomID,
		EventType: event.EventType,
		VideoID:   sqlutil.ToSqlStringNonEmpty(ref.VideoID),
		Payload:   sqlutil.ToNullRawMessage(event.Payload),
		CreatedAt: event.CreatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert event: %w", err)
	}
	if !inserted {
		return false, nil
	}

	switch event.EventType {
	case events.RoomVideoLoaded:
		var p events.VideoLoadedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return false, fmt.Errorf("failed to decode payload: %w", err)
		}
		reason := ReplacedReason
		if _, err := q.CloseOpenSessions(ctx, CloseOpenSessionsParams{
			RoomID:      event.RoomID,
			ClosedAt:    event.CreatedAt,
			CloseReason: sqlutil.ToSqlString(&reason),
		}); err != nil {
			return false, fmt.Errorf("failed to close previous session: %w", err)
		}
		if err := q.OpenSession(ctx, OpenSessionParams{
			ID:             event.ID,
			RoomID:         event.RoomID,
			VideoID:        p.VideoID,
			StartTimestamp: p.Timestamp,
			Width:          sqlutil.ToSqlPositiveFloat64(p.Width),
			Height:         sqlutil.ToSqlPositiveFloat64(p.Height),
			LoadedAt:       event.CreatedAt,
		}); err != nil {
			return false, fmt.Errorf("failed to open session: %w", err)
		}

	case events.RoomVideoEnded:
		if _, err := q.MarkSessionEnded(ctx, MarkSessionEndedParams{
			RoomID:  event.RoomID,
			VideoID: ref.VideoID,
			EndedAt: event.CreatedAt,
		}); err != nil {
			return false, fmt.Errorf("failed to mark session ended: %w", err)
		}

	case events.RoomVideoClosed:
		var p events.VideoClosedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return false, fmt.Errorf("failed to decode payload: %w", err)
		}
		if _, err := q.CloseOpenSessions(ctx, CloseOpenSessionsParams{
			RoomID:      event.RoomID,
			ClosedAt:    event.CreatedAt,
			CloseReason: sqlutil.ToSqlStringNonEmpty(p.Reason),
		}); err != nil {
			return false, fmt.Errorf("failed to close session: %w", err)
		}
	}

	return true, nil
}

func dbSessionToModel(row RoomSession) models.PlaybackSession {
	return models.PlaybackSession{
		ID:             row.ID,
		RoomID:         row.RoomID,
		VideoID:        row.VideoID,
		StartTimestamp: row.StartTimestamp,
		Width:          sqlutil.FromSqlFloat64Ptr(row.Width),
		Height:         sqlutil.FromSqlFloat64Ptr(row.Height),
		LoadedAt:       row.LoadedAt,
		EndedAt:        sqlutil.FromSqlTime(row.EndedAt),
		ClosedAt:       sqlutil.FromSqlTime(row.ClosedAt),
		CloseReason:    sqlutil.FromSqlStringPtr(row.CloseReason),
	}
}

func dbEventToModel(row RoomEvent) models.RoomEvent {
	return models.RoomEvent{
		ID:         row.ID,
		RoomID:     row.RoomID,
		EventType:  row.EventType,
		VideoID:    sqlutil.FromSqlStringPtr(row.VideoID),
		Payload:    sqlutil.FromNullRawMessage(row.Payload),
		CreatedAt:  row.CreatedAt,
		RecordedAt: row.RecordedAt,
	}
}
