// Package settings holds runtime-tunable reminder settings backed by the
// system_settings table and mirrored to a .env file.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"valubot/internal/storage"
	"valubot/pkg/logx"
)

const (
	KeyReminderDelay    = "reminder_delay_minutes"
	KeyReminderInterval = "reminder_check_interval"
	KeyReminderEnabled  = "reminder_enabled"
)

var (
	ErrInvalidValue = errors.New("settings: invalid value")
	ErrUnknownKey   = errors.New("settings: unknown key")
)

type definition struct {
	key         string
	def         string
	typ         string
	description string
	validate    func(string) error
}

var definitions = []definition{
	{KeyReminderDelay, "15", "int", "Minutes after a valuation before the reminder", intRange(1, 1440)},
	{KeyReminderInterval, "5", "int", "Minutes between reminder checks", intRange(1, 1440)},
	{KeyReminderEnabled, "true", "bool", "Reminder loop on/off", boolValue},
}

func lookup(key string) (definition, bool) {
	for _, d := range definitions {
		if d.key == key {
			return d, true
		}
	}
	return definition{}, false
}

func intRange(lo, hi int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < lo || n > hi {
			return fmt.Errorf("%w: want an integer in %d..%d", ErrInvalidValue, lo, hi)
		}
		return nil
	}
}

func boolValue(v string) error {
	if v != "true" && v != "false" {
		return fmt.Errorf("%w: want true or false", ErrInvalidValue)
	}
	return nil
}

// Validate checks an operator supplied value for key.
func Validate(key, value string) error {
	d, ok := lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return d.validate(strings.TrimSpace(value))
}

// Reminder is the reminder loop's view of the settings.
type Reminder struct {
	Enabled  bool
	Delay    time.Duration
	Interval time.Duration
}

type Store interface {
	GetSetting(ctx context.Context, key string) (storage.Setting, error)
	UpsertSetting(ctx context.Context, s storage.Setting) error
	InsertSettingIfAbsent(ctx context.Context, s storage.Setting) (bool, error)
}

// WriteBacker persists a changed value outside the database.
type WriteBacker interface {
	WriteKey(ctx context.Context, key, value string) error
}

type Service struct {
	store  Store
	mirror WriteBacker
	log    logx.Logger
}

func New(store Store, log logx.Logger) *Service {
	return &Service{store: store, log: log.With(logx.String("comp", "settings"))}
}

// SetMirror enables .env write-back for mapped keys.
func (s *Service) SetMirror(m WriteBacker) { s.mirror = m }

// Seed inserts defaults for keys that have no row yet.
func (s *Service) Seed(ctx context.Context) error {
	for _, d := range definitions {
		seeded, err := s.store.InsertSettingIfAbsent(ctx, storage.Setting{
			Key: d.key, Value: d.def, Type: d.typ, Description: d.description,
		})
		if err != nil {
			return err
		}
		if seeded {
			s.log.Info("setting seeded", logx.String("key", d.key), logx.String("value", d.def))
		}
	}
	return nil
}

// Get returns the raw stored value; ok is false when no row exists.
func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	st, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return st.Value, true, nil
}

// Set validates and stores value for a known key and mirrors it to the
// .env file. A failed write-back is logged, not returned.
func (s *Service) Set(ctx context.Context, key, value string, updatedBy int64) error {
	value = strings.TrimSpace(value)
	if err := Validate(key, value); err != nil {
		return err
	}
	return s.set(ctx, key, value, updatedBy, true)
}

func (s *Service) set(ctx context.Context, key, value string, updatedBy int64, writeBack bool) error {
	d, _ := lookup(key)
	if err := s.store.UpsertSetting(ctx, storage.Setting{
		Key: key, Value: value, Type: d.typ, UpdatedBy: updatedBy,
	}); err != nil {
		return err
	}
	s.log.Info("setting updated", logx.String("key", key), logx.String("value", value), logx.Int64("by", updatedBy))
	if writeBack && s.mirror != nil {
		if err := s.mirror.WriteKey(ctx, key, value); err != nil {
			s.log.Warn("env write-back failed", logx.String("key", key), logx.Err(err))
		}
	}
	return nil
}

// Int reads key as an integer, falling back to def when missing or
// unparsable.
func (s *Service) Int(ctx context.Context, key string, def int) int {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("setting read failed", logx.String("key", key), logx.Err(err))
		}
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.log.Warn("setting is not an integer; using default",
			logx.String("key", key), logx.String("value", v), logx.Int("default", def))
		return def
	}
	return n
}

func (s *Service) Bool(ctx context.Context, key string, def bool) bool {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("setting read failed", logx.String("key", key), logx.Err(err))
		}
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		s.log.Warn("setting is not a boolean; using default",
			logx.String("key", key), logx.String("value", v), logx.Bool("default", def))
		return def
	}
	return b
}

// Snapshot reads the reminder settings with defaults applied. Stored
// values outside the accepted range fall back to the default.
func (s *Service) Snapshot(ctx context.Context) Reminder {
	delay := s.Int(ctx, KeyReminderDelay, 15)
	if delay < 1 || delay > 1440 {
		delay = 15
	}
	interval := s.Int(ctx, KeyReminderInterval, 5)
	if interval < 1 || interval > 1440 {
		interval = 5
	}
	return Reminder{
		Enabled:  s.Bool(ctx, KeyReminderEnabled, true),
		Delay:    time.Duration(delay) * time.Minute,
		Interval: time.Duration(interval) * time.Minute,
	}
}
