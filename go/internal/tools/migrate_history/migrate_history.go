package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/watchroom/go/internal/dbconfig"
	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/mcdev12/watchroom/go/internal/room/history"
)

// Usage: migrate_history [events.json]
//
// Applies the history schema. When given a file in the format served by
// /history/events, the events in it are imported as well.
func main() {
	ctx := context.Background()

	// 1) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Apply schema
	if _, err := pool.Exec(ctx, history.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("History schema applied to %s@%s/%s\n", cfg.User, cfg.Host, cfg.Database)

	if len(os.Args) < 2 {
		return
	}

	// 3) Load the JSON snapshot
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var list []models.RoomEvent
	if err := json.Unmarshal(data, &list); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 4) Insert and count
	var (
		total    = len(list)
		inserted int
		skipped  int
		errs     int
	)

	for _, ev := range list {
		var payload any
		if len(ev.Payload) > 0 {
			payload = string(ev.Payload)
		}
		cmdTag, err := pool.Exec(ctx, `
            INSERT INTO room_events (
              id, room_id, event_type, video_id, payload, created_at
            ) VALUES (
              $1,$2,$3,$4,$5,$6
            )
            ON CONFLICT (id) DO NOTHING
        `,
			ev.ID, ev.RoomID, ev.EventType, ev.VideoID, payload, ev.CreatedAt,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting event %s: %v\n", ev.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 5) Print summary
	fmt.Printf(
		"Event import complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
