package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type userRow struct {
	ID               int64  `db:"id"`
	Handle           string `db:"handle"`
	Language         string `db:"language"`
	FirstSeen        int64  `db:"first_seen"`
	LastActivity     int64  `db:"last_activity"`
	Blocked          bool   `db:"blocked"`
	LastValuationAt  int64  `db:"last_valuation_at"`
	ManagerContacted bool   `db:"manager_contacted"`
	ReminderSent     bool   `db:"reminder_sent"`
}

func (r userRow) user() User {
	return User{
		ID:               r.ID,
		Handle:           r.Handle,
		Language:         r.Language,
		FirstSeen:        fromMillis(r.FirstSeen),
		LastActivity:     fromMillis(r.LastActivity),
		Blocked:          r.Blocked,
		LastValuationAt:  fromMillis(r.LastValuationAt),
		ManagerContacted: r.ManagerContacted,
		ReminderSent:     r.ReminderSent,
	}
}

const userColumns = `id, handle, language, first_seen, last_activity, blocked,
	last_valuation_at, manager_contacted, reminder_sent`

func (db *DB) ensureUser(ctx context.Context, e sqlx.ExtContext, id int64, at int64) (bool, error) {
	res, err := e.ExecContext(ctx,
		db.q(`INSERT INTO users (id, first_seen, last_activity) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		id, at, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// EnsureUser creates the user on first contact and reports whether it did.
func (db *DB) EnsureUser(ctx context.Context, id int64) (bool, error) {
	created, err := db.ensureUser(ctx, db.x, id, db.now().UnixMilli())
	return created, wrap("ensure user", err)
}

// UpdateUserInfo refreshes last_activity and, when handle is non-empty,
// the stored handle. Missing users are created.
func (db *DB) UpdateUserInfo(ctx context.Context, id int64, handle string) error {
	return db.inTx(ctx, "update user info", func(tx *sqlx.Tx) error {
		now := db.now().UnixMilli()
		if _, err := db.ensureUser(ctx, tx, id, now); err != nil {
			return err
		}
		if handle == "" {
			_, err := tx.ExecContext(ctx, db.q(`UPDATE users SET last_activity = ? WHERE id = ?`), now, id)
			return err
		}
		_, err := tx.ExecContext(ctx,
			db.q(`UPDATE users SET last_activity = ?, handle = ? WHERE id = ?`), now, handle, id)
		return err
	})
}

func (db *DB) SetLanguage(ctx context.Context, id int64, lang string) error {
	return db.inTx(ctx, "set language", func(tx *sqlx.Tx) error {
		now := db.now().UnixMilli()
		if _, err := db.ensureUser(ctx, tx, id, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			db.q(`UPDATE users SET language = ?, last_activity = ? WHERE id = ?`), lang, now, id)
		return err
	})
}

func (db *DB) GetUser(ctx context.Context, id int64) (User, error) {
	var r userRow
	err := db.x.GetContext(ctx, &r, db.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return User{}, wrap("get user", notFound(err))
	}
	return r.user(), nil
}

// Language returns the stored language, "" for unknown users.
func (db *DB) Language(ctx context.Context, id int64) (string, error) {
	var lang string
	err := db.x.GetContext(ctx, &lang, db.q(`SELECT language FROM users WHERE id = ?`), id)
	if err = notFound(err); errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return lang, wrap("language", err)
}

func (db *DB) setBlocked(ctx context.Context, op string, id int64, blocked bool) (bool, error) {
	res, err := db.x.ExecContext(ctx,
		db.q(`UPDATE users SET blocked = ? WHERE id = ? AND blocked <> ?`), blocked, id, blocked)
	if err != nil {
		return false, wrap(op, err)
	}
	n, err := res.RowsAffected()
	return n == 1, wrap(op, err)
}

// MarkBlocked flags the user unreachable. It reports whether the flag changed.
func (db *DB) MarkBlocked(ctx context.Context, id int64) (bool, error) {
	return db.setBlocked(ctx, "mark blocked", id, true)
}

func (db *DB) Unblock(ctx context.Context, id int64) (bool, error) {
	return db.setBlocked(ctx, "unblock", id, false)
}

// ActiveUserIDs snapshots every non-blocked user id in ascending order.
func (db *DB) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := db.x.SelectContext(ctx, &ids, db.q(`SELECT id FROM users WHERE blocked = ? ORDER BY id`), false)
	return ids, wrap("active user ids", err)
}

// ListUsers orders users with a handle first, then by most recent activity.
func (db *DB) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	var rows []userRow
	err := db.x.SelectContext(ctx, &rows, db.q(`SELECT `+userColumns+` FROM users
		ORDER BY CASE WHEN handle <> '' THEN 1 ELSE 0 END DESC, last_activity DESC, id ASC
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, wrap("list users", err)
	}
	out := make([]User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.user())
	}
	return out, nil
}

func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := db.x.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, wrap("count users", err)
}

// CountNewUsers counts users first seen in [from, to).
func (db *DB) CountNewUsers(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := db.x.GetContext(ctx, &n,
		db.q(`SELECT COUNT(*) FROM users WHERE first_seen >= ? AND first_seen < ?`),
		from.UnixMilli(), to.UnixMilli())
	return n, wrap("count new users", err)
}

func (db *DB) CountBlockedUsers(ctx context.Context) (int, error) {
	var n int
	err := db.x.GetContext(ctx, &n, db.q(`SELECT COUNT(*) FROM users WHERE blocked = ?`), true)
	return n, wrap("count blocked users", err)
}
