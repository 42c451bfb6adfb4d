package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Schema creates the tables the history repository writes to
const Schema = `
CREATE TABLE IF NOT EXISTS room_events (
    id          UUID PRIMARY KEY,
    room_id     TEXT NOT NULL,
    event_type  TEXT NOT NULL,
    video_id    TEXT,
    payload     JSONB,
    created_at  TIMESTAMPTZ NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS room_events_room_created_idx ON room_events (room_id, created_at);

CREATE TABLE IF NOT EXISTS room_sessions (
    id              UUID PRIMARY KEY,
    room_id         TEXT NOT NULL,
    video_id        TEXT NOT NULL,
    start_timestamp DOUBLE PRECISION NOT NULL DEFAULT 0,
    width           DOUBLE PRECISION,
    height          DOUBLE PRECISION,
    loaded_at       TIMESTAMPTZ NOT NULL,
    ended_at        TIMESTAMPTZ,
    closed_at       TIMESTAMPTZ,
    close_reason    TEXT
);

CREATE INDEX IF NOT EXISTS room_sessions_open_idx ON room_sessions (room_id) WHERE closed_at IS NULL;
`

// DBTX is satisfied by *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries is the hand-written query layer for the history tables
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// RoomEvent is a row of room_events
type RoomEvent struct {
	ID         uuid.UUID
	RoomID     string
	EventType  string
	VideoID    sql.NullString
	Payload    pqtype.NullRawMessage
	CreatedAt  time.Time
	RecordedAt time.Time
}

// RoomSession is a row of room_sessions
type RoomSession struct {
	ID             uuid.UUID
	RoomID         string
	VideoID        string
	StartTimestamp float64
	Width          sql.NullFloat64
	Height         sql.NullFloat64
	LoadedAt       time.Time
	EndedAt        sql.NullTime
	ClosedAt       sql.NullTime
	CloseReason    sql.NullString
}

type InsertEventParams struct {
	ID        uuid.UUID
	RoomID    string
	EventType string
	VideoID   sql.NullString
	Payload   pqtype.NullRawMessage
	CreatedAt time.Time
}

const insertEvent = `
INSERT INTO room_events (id, room_id, event_type, video_id, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING
`

// InsertEvent returns false when the event was already recorded
func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertEvent,
		arg.ID,
		arg.RoomID,
		arg.EventType,
		arg.VideoID,
		arg.Payload,
		arg.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type OpenSessionParams struct {
	ID             uuid.UUID
	RoomID         string
	VideoID        string
	StartTimestamp float64
	Width          sql.NullFloat64
	Height         sql.NullFloat64
	LoadedAt       time.Time
}

const openSession = `
INSERT INTO room_sessions (id, room_id, video_id, start_timestamp, width, height, loaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (q *Queries) OpenSession(ctx context.Context, arg OpenSessionParams) error {
	_, err := q.db.ExecContext(ctx, openSession,
		arg.ID,
		arg.RoomID,
		arg.VideoID,
		arg.StartTimestamp,
		arg.Width,
		arg.Height,
		arg.LoadedAt,
	)
	return err
}

type MarkSessionEndedParams struct {
	RoomID  string
	VideoID string
	EndedAt time.Time
}

const markSessionEnded = `
UPDATE room_sessions
SET ended_at = $3
WHERE room_id = $1 AND video_id = $2 AND closed_at IS NULL AND ended_at IS NULL
`

func (q *Queries) MarkSessionEnded(ctx context.Context, arg MarkSessionEndedParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, markSessionEnded, arg.RoomID, arg.VideoID, arg.EndedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type CloseOpenSessionsParams struct {
	RoomID      string
	ClosedAt    time.Time
	CloseReason sql.NullString
}

const closeOpenSessions = `
UPDATE room_sessions
SET closed_at = $2, close_reason = $3
WHERE room_id = $1 AND closed_at IS NULL
`

func (q *Queries) CloseOpenSessions(ctx context.Context, arg CloseOpenSessionsParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, closeOpenSessions, arg.RoomID, arg.ClosedAt, arg.CloseReason)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type ListEventsParams struct {
	RoomID string
	Limit  int32
}

const listEvents = `
SELECT id, room_id, event_type, video_id, payload, created_at, recorded_at
FROM room_events
WHERE room_id = $1
ORDER BY created_at DESC
LIMIT $2
`

func (q *Queries) ListEvents(ctx context.Context, arg ListEventsParams) ([]RoomEvent, error) {
	rows, err := q.db.QueryContext(ctx, listEvents, arg.RoomID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RoomEvent
	for rows.Next() {
		var i RoomEvent
		if err := rows.Scan(
			&i.ID,
			&i.RoomID,
			&i.EventType,
			&i.VideoID,
			&i.Payload,
			&i.CreatedAt,
			&i.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type ListSessionsParams struct {
	RoomID string
	Limit  int32
}

const listSessions = `
SELECT id, room_id, video_id, start_timestamp, width, height, loaded_at, ended_at, closed_at, close_reason
FROM room_sessions
WHERE room_id = $1
ORDER BY loaded_at DESC
LIMIT $2
`

func (q *Queries) ListSessions(ctx context.Context, arg ListSessionsParams) ([]RoomSession, error) {
	rows, err := q.db.QueryContext(ctx, listSessions, arg.RoomID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RoomSession
	for rows.Next() {
		var i RoomSession
		if err := rows.Scan(
			&i.ID,
			&i.RoomID,
			&i.VideoID,
			&i.StartTimestamp,
			&i.Width,
			&i.Height,
			&i.LoadedAt,
			&i.EndedAt,
			&i.ClosedAt,
			&i.CloseReason,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
