package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

type eventRow struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	Type      string `db:"event_type"`
	CreatedAt int64  `db:"created_at"`
	Metadata  string `db:"metadata"`
}

func (r eventRow) event() Event {
	e := Event{ID: r.ID, UserID: r.UserID, Type: r.Type, At: fromMillis(r.CreatedAt)}
	if r.Metadata != "" && r.Metadata != "{}" {
		_ = json.Unmarshal([]byte(r.Metadata), &e.Metadata)
	}
	return e
}

// RecordEvent appends an event and moves the user's last_activity to the
// event time in the same transaction, creating the user when needed.
func (db *DB) RecordEvent(ctx context.Context, userID int64, eventType string, meta map[string]any) (Event, error) {
	raw := []byte("{}")
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return Event{}, wrap("record event", err)
		}
		raw = b
	}
	at := db.now().UnixMilli()
	ev := Event{UserID: userID, Type: eventType, At: time.UnixMilli(at), Metadata: meta}

	err := db.inTx(ctx, "record event", func(tx *sqlx.Tx) error {
		if _, err := db.ensureUser(ctx, tx, userID, at); err != nil {
			return err
		}
		err := tx.QueryRowxContext(ctx,
			db.q(`INSERT INTO events (user_id, event_type, created_at, metadata) VALUES (?, ?, ?, ?) RETURNING id`),
			userID, eventType, at, string(raw)).Scan(&ev.ID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, db.q(`UPDATE users SET last_activity = ? WHERE id = ?`), at, userID)
		return err
	})
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// CountEvents counts events of one type in [from, to).
func (db *DB) CountEvents(ctx context.Context, eventType string, from, to time.Time) (int, error) {
	var n int
	err := db.x.GetContext(ctx, &n,
		db.q(`SELECT COUNT(*) FROM events WHERE event_type = ? AND created_at >= ? AND created_at < ?`),
		eventType, from.UnixMilli(), to.UnixMilli())
	return n, wrap("count events", err)
}

// CountEventsByType groups events in [from, to) by type. Types without
// events are absent from the map.
func (db *DB) CountEventsByType(ctx context.Context, from, to time.Time) (map[string]int, error) {
	var rows []struct {
		Type  string `db:"event_type"`
		Count int    `db:"n"`
	}
	err := db.x.SelectContext(ctx, &rows,
		db.q(`SELECT event_type, COUNT(*) AS n FROM events
			WHERE created_at >= ? AND created_at < ? GROUP BY event_type`),
		from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, wrap("count events by type", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Type] = r.Count
	}
	return out, nil
}

// UserEventCounts is the per-type histogram of one user's events.
func (db *DB) UserEventCounts(ctx context.Context, userID int64) (map[string]int, error) {
	var rows []struct {
		Type  string `db:"event_type"`
		Count int    `db:"n"`
	}
	err := db.x.SelectContext(ctx, &rows,
		db.q(`SELECT event_type, COUNT(*) AS n FROM events WHERE user_id = ? GROUP BY event_type`), userID)
	if err != nil {
		return nil, wrap("user event counts", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Type] = r.Count
	}
	return out, nil
}

// ListEvents returns a user's newest events first.
func (db *DB) ListEvents(ctx context.Context, userID int64, limit int) ([]Event, error) {
	var rows []eventRow
	err := db.x.SelectContext(ctx, &rows,
		db.q(`SELECT id, user_id, event_type, created_at, metadata FROM events
			WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, wrap("list events", err)
	}
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.event())
	}
	return out, nil
}
