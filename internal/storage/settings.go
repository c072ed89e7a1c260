package storage

import (
	"context"
	"errors"
)

type settingRow struct {
	Key         string `db:"key"`
	Value       string `db:"value"`
	Type        string `db:"value_type"`
	Description string `db:"description"`
	UpdatedAt   int64  `db:"updated_at"`
	UpdatedBy   int64  `db:"updated_by"`
}

func (r settingRow) setting() Setting {
	return Setting{
		Key:         r.Key,
		Value:       r.Value,
		Type:        r.Type,
		Description: r.Description,
		UpdatedAt:   fromMillis(r.UpdatedAt),
		UpdatedBy:   r.UpdatedBy,
	}
}

const settingColumns = `key, value, value_type, description, updated_at, updated_by`

func (db *DB) GetSetting(ctx context.Context, key string) (Setting, error) {
	var r settingRow
	err := db.x.GetContext(ctx, &r, db.q(`SELECT `+settingColumns+` FROM system_settings WHERE key = ?`), key)
	if err != nil {
		return Setting{}, wrap("get setting", notFound(err))
	}
	return r.setting(), nil
}

// UpsertSetting writes s; the last writer wins. Empty type and description
// keep the stored ones.
func (db *DB) UpsertSetting(ctx context.Context, s Setting) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = db.now()
	}
	if s.Type == "" {
		s.Type = "string"
	}
	_, err := db.x.ExecContext(ctx, db.q(`INSERT INTO system_settings (`+settingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			value_type = excluded.value_type,
			description = CASE WHEN excluded.description <> '' THEN excluded.description ELSE system_settings.description END,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by`),
		s.Key, s.Value, s.Type, s.Description, s.UpdatedAt.UnixMilli(), s.UpdatedBy)
	return wrap("upsert setting", err)
}

// InsertSettingIfAbsent seeds a default without touching an existing row.
func (db *DB) InsertSettingIfAbsent(ctx context.Context, s Setting) (bool, error) {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = db.now()
	}
	res, err := db.x.ExecContext(ctx, db.q(`INSERT INTO system_settings (`+settingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (key) DO NOTHING`),
		s.Key, s.Value, s.Type, s.Description, s.UpdatedAt.UnixMilli(), s.UpdatedBy)
	if err != nil {
		return false, wrap("seed setting", err)
	}
	n, err := res.RowsAffected()
	return n == 1, wrap("seed setting", err)
}

func (db *DB) ListSettings(ctx context.Context) ([]Setting, error) {
	var rows []settingRow
	if err := db.x.SelectContext(ctx, &rows, `SELECT `+settingColumns+` FROM system_settings ORDER BY key`); err != nil {
		return nil, wrap("list settings", err)
	}
	out := make([]Setting, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.setting())
	}
	return out, nil
}

type notificationRow struct {
	AdminID            int64 `db:"admin_id"`
	NotifyNewUsers     bool  `db:"notify_new_users"`
	NotifyOrders       bool  `db:"notify_orders"`
	NotifyAbandoned    bool  `db:"notify_abandoned"`
	AbandonedThreshold int   `db:"abandoned_threshold"`
	UpdatedAt          int64 `db:"updated_at"`
}

// GetNotificationSettings returns the operator's row; found is false (and
// the defaults are returned) when none was stored yet.
func (db *DB) GetNotificationSettings(ctx context.Context, adminID int64) (NotificationSettings, bool, error) {
	var r notificationRow
	err := db.x.GetContext(ctx, &r, db.q(`SELECT admin_id, notify_new_users, notify_orders,
		notify_abandoned, abandoned_threshold, updated_at
		FROM notification_settings WHERE admin_id = ?`), adminID)
	if err = notFound(err); errors.Is(err, ErrNotFound) {
		return DefaultNotificationSettings(adminID), false, nil
	}
	if err != nil {
		return NotificationSettings{}, false, wrap("get notification settings", err)
	}
	return NotificationSettings{
		AdminID:            r.AdminID,
		NotifyNewUsers:     r.NotifyNewUsers,
		NotifyOrders:       r.NotifyOrders,
		NotifyAbandoned:    r.NotifyAbandoned,
		AbandonedThreshold: r.AbandonedThreshold,
		UpdatedAt:          fromMillis(r.UpdatedAt),
	}, true, nil
}

func (db *DB) UpsertNotificationSettings(ctx context.Context, s NotificationSettings) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = db.now()
	}
	_, err := db.x.ExecContext(ctx, db.q(`INSERT INTO notification_settings
		(admin_id, notify_new_users, notify_orders, notify_abandoned, abandoned_threshold, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (admin_id) DO UPDATE SET
			notify_new_users = excluded.notify_new_users,
			notify_orders = excluded.notify_orders,
			notify_abandoned = excluded.notify_abandoned,
			abandoned_threshold = excluded.abandoned_threshold,
			updated_at = excluded.updated_at`),
		s.AdminID, s.NotifyNewUsers, s.NotifyOrders, s.NotifyAbandoned, s.AbandonedThreshold, s.UpdatedAt.UnixMilli())
	return wrap("upsert notification settings", err)
}
