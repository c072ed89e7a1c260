package notifier

import (
	"time"

	"valubot/internal/transport"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// Notification channels, used for dedup keys and bus events.
const (
	ChannelNewUser   = "alert.new_user"
	ChannelOrder     = "alert.order"
	ChannelAbandoned = "alert.abandoned"
	ChannelDaily     = "report.daily"
)

type Notification struct {
	Channel string
	Target  transport.ChatTarget
	Text    string
	Options *transport.SendOptions
}

type HistoryItem struct {
	At      time.Time
	Channel string
	ChatID  int64
	Text    string
}

// NotificationEvent is the payload of the notify.* bus topics.
type NotificationEvent struct {
	Channel  string    `json:"channel"`
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
