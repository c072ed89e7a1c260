package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// CreateValuation opens a valuation for the user and resets the user's
// contacted and reminded projection, since a new valuation restarts the
// reminder cycle.
func (db *DB) CreateValuation(ctx context.Context, userID int64, handle, priceRange string) (Valuation, error) {
	at := db.now().UnixMilli()
	v := Valuation{UserID: userID, Handle: handle, PriceRange: priceRange, CreatedAt: time.UnixMilli(at)}
	err := db.inTx(ctx, "create valuation", func(tx *sqlx.Tx) error {
		if _, err := db.ensureUser(ctx, tx, userID, at); err != nil {
			return err
		}
		err := tx.QueryRowxContext(ctx,
			db.q(`INSERT INTO valuations (user_id, handle, price_range, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
			userID, handle, priceRange, at).Scan(&v.ID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, db.q(`UPDATE users
			SET last_valuation_at = ?, manager_contacted = ?, reminder_sent = ? WHERE id = ?`),
			at, false, false, userID)
		return err
	})
	if err != nil {
		return Valuation{}, err
	}
	return v, nil
}

// MarkManagerContacted closes every open valuation of the user and sets the
// user's flag. It returns how many valuations changed.
func (db *DB) MarkManagerContacted(ctx context.Context, userID int64) (int, error) {
	var n int64
	err := db.inTx(ctx, "mark manager contacted", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			db.q(`UPDATE valuations SET manager_contacted = ? WHERE user_id = ? AND manager_contacted = ?`),
			true, userID, false)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, db.q(`UPDATE users SET manager_contacted = ? WHERE id = ?`), true, userID)
		return err
	})
	return int(n), err
}

type candidateRow struct {
	ValuationID int64  `db:"id"`
	UserID      int64  `db:"user_id"`
	Handle      string `db:"handle"`
	PriceRange  string `db:"price_range"`
	CreatedAt   int64  `db:"created_at"`
	Language    string `db:"language"`
}

// ReminderCandidates selects, for each non-blocked user, the latest
// valuation when it is still open and older than olderThan.
func (db *DB) ReminderCandidates(ctx context.Context, olderThan time.Time) ([]ReminderCandidate, error) {
	var rows []candidateRow
	err := db.x.SelectContext(ctx, &rows, db.q(`
		SELECT v.id, v.user_id, v.handle, v.price_range, v.created_at, u.language
		FROM valuations v
		JOIN users u ON u.id = v.user_id
		WHERE u.blocked = ?
		  AND v.manager_contacted = ?
		  AND v.reminder_sent = ?
		  AND v.created_at < ?
		  AND v.id = (
		      SELECT v2.id FROM valuations v2
		      WHERE v2.user_id = v.user_id
		      ORDER BY v2.created_at DESC, v2.id DESC
		      LIMIT 1)
		ORDER BY v.created_at ASC, v.id ASC`),
		false, false, false, olderThan.UnixMilli())
	if err != nil {
		return nil, wrap("reminder candidates", err)
	}
	out := make([]ReminderCandidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReminderCandidate{
			ValuationID: r.ValuationID,
			UserID:      r.UserID,
			Handle:      r.Handle,
			PriceRange:  r.PriceRange,
			CreatedAt:   fromMillis(r.CreatedAt),
			Language:    r.Language,
		})
	}
	return out, nil
}

// ClaimReminder flips reminder_sent on an open valuation. Only the caller
// that changed the row gets true, so concurrent checks cannot both send.
func (db *DB) ClaimReminder(ctx context.Context, valuationID int64, at time.Time) (bool, error) {
	claimed := false
	err := db.inTx(ctx, "claim reminder", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, db.q(`UPDATE valuations SET reminder_sent = ?, reminder_sent_at = ?
			WHERE id = ? AND reminder_sent = ? AND manager_contacted = ?`),
			true, at.UnixMilli(), valuationID, false, false)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n != 1 {
			return err
		}
		claimed = true
		_, err = tx.ExecContext(ctx, db.q(`UPDATE users SET reminder_sent = ?
			WHERE id = (SELECT user_id FROM valuations WHERE id = ?)`), true, valuationID)
		return err
	})
	return claimed, err
}

// ReleaseReminder undoes a claim whose delivery failed.
func (db *DB) ReleaseReminder(ctx context.Context, valuationID int64) error {
	return db.inTx(ctx, "release reminder", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, db.q(`UPDATE valuations SET reminder_sent = ?, reminder_sent_at = 0
			WHERE id = ?`), false, valuationID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, db.q(`UPDATE users SET reminder_sent = ?
			WHERE id = (SELECT user_id FROM valuations WHERE id = ?)`), false, valuationID)
		return err
	})
}

type valuationRow struct {
	ID               int64  `db:"id"`
	UserID           int64  `db:"user_id"`
	Handle           string `db:"handle"`
	PriceRange       string `db:"price_range"`
	CreatedAt        int64  `db:"created_at"`
	ManagerContacted bool   `db:"manager_contacted"`
	ReminderSent     bool   `db:"reminder_sent"`
	ReminderSentAt   int64  `db:"reminder_sent_at"`
}

func (db *DB) GetValuation(ctx context.Context, id int64) (Valuation, error) {
	var r valuationRow
	err := db.x.GetContext(ctx, &r, db.q(`SELECT id, user_id, handle, price_range, created_at,
		manager_contacted, reminder_sent, reminder_sent_at FROM valuations WHERE id = ?`), id)
	if err != nil {
		return Valuation{}, wrap("get valuation", notFound(err))
	}
	return Valuation{
		ID:               r.ID,
		UserID:           r.UserID,
		Handle:           r.Handle,
		PriceRange:       r.PriceRange,
		CreatedAt:        fromMillis(r.CreatedAt),
		ManagerContacted: r.ManagerContacted,
		ReminderSent:     r.ReminderSent,
		ReminderSentAt:   fromMillis(r.ReminderSentAt),
	}, nil
}
