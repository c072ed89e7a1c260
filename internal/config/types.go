package config

// Config is the on-disk configuration. Every duration is a Go duration
// string ("30s", "1m"); an empty string selects the component default.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Reminder  ReminderConfig  `json:"reminder"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Report    ReportConfig    `json:"report"`

	// EnvFile is the .env file mirrored into the system settings table.
	EnvFile string `json:"env_file,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	PollTimeout  string  `json:"poll_timeout"`

	ManagerURL      string `json:"manager_url"`
	ManagerUsername string `json:"manager_username"`
	GroupURL        string `json:"group_url"`
	ChannelURL      string `json:"channel_url"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the database.
//
//	"storage": { "driver": "sqlite", "path": "./data/valubot.db" }
//	"storage": { "driver": "postgres", "dsn": "postgres://bot@localhost/valubot?sslmode=disable" }
//
// Storage changes need a restart.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type ReminderConfig struct {
	Tick         string `json:"tick,omitempty"`
	SendTimeout  string `json:"send_timeout,omitempty"`
	ErrorBackoff string `json:"error_backoff,omitempty"`
}

type BroadcastConfig struct {
	Delay     string `json:"delay,omitempty"`
	QueueSize int    `json:"queue_size,omitempty"`
	StatusTTL string `json:"status_ttl,omitempty"`
}

// NotifierConfig controls the async operator alert pipeline. An omitted
// section means enabled with defaults.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// ReportConfig schedules the operator reports. Specs accept cron
// expressions, "every:<duration>" and "HH:MM".
type ReportConfig struct {
	Timezone      string `json:"timezone,omitempty"`
	DailySpec     string `json:"daily_spec,omitempty"`
	AbandonedSpec string `json:"abandoned_spec,omitempty"`
}

// DefaultNotifier mirrors what the notifier uses when the section is omitted.
func DefaultNotifier() NotifierConfig {
	return NotifierConfig{
		Enabled:         true,
		Workers:         2,
		QueueSize:       512,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       "500ms",
		RetryMaxDelay:   "10s",
		DedupWindow:     "1m",
		DedupMaxEntries: 2000,
	}
}
