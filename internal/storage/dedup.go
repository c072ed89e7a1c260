package storage

import (
	"context"
	"errors"
	"time"

	"valubot/pkg/logx"
)

// PutDedup records that key is suppressed until the given time. Expired
// rows are pruned every pruneEvery writes.
func (db *DB) PutDedup(ctx context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	_, err := db.x.ExecContext(ctx, db.q(`INSERT INTO notifier_dedup (key, until) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET until = excluded.until`), key, until.UnixMilli())
	if err != nil {
		return wrap("put dedup", err)
	}
	if db.dedupWrites.Add(1)%db.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 200*time.Millisecond)
		if _, err := db.x.ExecContext(pctx, db.q(`DELETE FROM notifier_dedup WHERE until < ?`), db.now().UnixMilli()); err != nil {
			db.log.Debug("dedup prune failed", logx.Err(err))
		}
		cancel()
	}
	return nil
}

func (db *DB) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := db.x.GetContext(ctx, &ms, db.q(`SELECT until FROM notifier_dedup WHERE key = ?`), key)
	if err = notFound(err); errors.Is(err, ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, wrap("get dedup", err)
	}
	return time.UnixMilli(ms), true, nil
}
