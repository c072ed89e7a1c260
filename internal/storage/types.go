package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and tunes the database.
type Config struct {
	Driver      string
	Path        string // sqlite file
	DSN         string // postgres connection string
	BusyTimeout time.Duration
}

type User struct {
	ID               int64
	Handle           string
	Language         string
	FirstSeen        time.Time
	LastActivity     time.Time
	Blocked          bool
	LastValuationAt  time.Time
	ManagerContacted bool
	ReminderSent     bool
}

type Event struct {
	ID       int64
	UserID   int64
	Type     string
	At       time.Time
	Metadata map[string]any
}

type Valuation struct {
	ID               int64
	UserID           int64
	Handle           string
	PriceRange       string
	CreatedAt        time.Time
	ManagerContacted bool
	ReminderSent     bool
	ReminderSentAt   time.Time
}

// ReminderCandidate is a user's latest open valuation joined with the
// user's language.
type ReminderCandidate struct {
	ValuationID int64
	UserID      int64
	Handle      string
	PriceRange  string
	CreatedAt   time.Time
	Language    string
}

// Report is a cached valuation report keyed by normalized handle.
type Report struct {
	Key           string
	DisplayHandle string
	Structure     string
	Category      string
	Rarity        string
	Demand        string
	Score         float64
	Branding      string
	PriceLow      int
	PriceHigh     int
	CreatedAt     time.Time
}

type Setting struct {
	Key         string
	Value       string
	Type        string
	Description string
	UpdatedAt   time.Time
	UpdatedBy   int64
}

type NotificationSettings struct {
	AdminID            int64
	NotifyNewUsers     bool
	NotifyOrders       bool
	NotifyAbandoned    bool
	AbandonedThreshold int
	UpdatedAt          time.Time
}

// DefaultNotificationSettings is what an operator without a stored row gets.
func DefaultNotificationSettings(adminID int64) NotificationSettings {
	return NotificationSettings{
		AdminID:            adminID,
		NotifyNewUsers:     true,
		NotifyOrders:       true,
		NotifyAbandoned:    true,
		AbandonedThreshold: 10,
	}
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
