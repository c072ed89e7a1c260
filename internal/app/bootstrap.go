package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"valubot/internal/config"
	"valubot/internal/notifier"
	"valubot/internal/notifier/broadcast"
	"valubot/internal/reminder"
	"valubot/internal/task/scheduler"
	"valubot/internal/transport"
	"valubot/internal/ui"
	"valubot/pkg/logx"
)

const (
	defaultPollTimeout = 10 * time.Second
	defaultJobTimeout  = 2 * time.Minute
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// applyLogging points the Telegram sink at telegram.group_log before the
// level/sink config is applied, so enabling the sink never sees an empty
// target. A blank group_log clears the target.
func applyLogging(svc *logx.Service, cfg *config.Config) {
	var chatID int64
	if raw := strings.TrimSpace(cfg.Telegram.GroupLog); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			chatID = id
		}
	}
	svc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	svc.Apply(mapLoggingConfig(cfg))
}

// logSender delivers log lines through the chat adapter.
func logSender(s transport.Sender) logx.SenderFunc {
	return func(ctx context.Context, chatID int64, threadID int, text string) error {
		_, err := s.SendText(ctx, transport.ChatTarget{ChatID: chatID, ThreadID: threadID}, text, &transport.SendOptions{DisablePreview: true})
		return err
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := config.DefaultNotifier()
	if cfg.Notifier != nil {
		n = *cfg.Notifier
	}
	if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 || n.DedupMaxEntries < 0 {
		return notifier.Config{}, fmt.Errorf("notifier: counts must be >= 0")
	}
	def := config.DefaultNotifier()
	retryBase, err := config.Duration("notifier.retry_base", n.RetryBase, mustDuration(def.RetryBase))
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.Duration("notifier.retry_max_delay", n.RetryMaxDelay, mustDuration(def.RetryMaxDelay))
	if err != nil {
		return notifier.Config{}, err
	}
	dedupWindow, err := config.Duration("notifier.dedup_window", n.DedupWindow, mustDuration(def.DedupWindow))
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:         n.Enabled,
		Workers:         orDefault(n.Workers, def.Workers),
		QueueSize:       orDefault(n.QueueSize, def.QueueSize),
		RatePerSec:      orDefault(n.RatePerSec, def.RatePerSec),
		RetryMax:        n.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: orDefault(n.DedupMaxEntries, def.DedupMaxEntries),
		PersistDedup:    n.PersistDedup,
	}, nil
}

func mapReminderConfig(cfg *config.Config) (reminder.Config, error) {
	r := cfg.Reminder
	tick, err := config.Duration("reminder.tick", r.Tick, reminder.DefaultTick)
	if err != nil {
		return reminder.Config{}, err
	}
	send, err := config.Duration("reminder.send_timeout", r.SendTimeout, reminder.DefaultSendTimeout)
	if err != nil {
		return reminder.Config{}, err
	}
	backoff, err := config.Duration("reminder.error_backoff", r.ErrorBackoff, reminder.DefaultErrorBackoff)
	if err != nil {
		return reminder.Config{}, err
	}
	return reminder.Config{Tick: tick, SendTimeout: send, ErrorBackoff: backoff}, nil
}

func mapBroadcastConfig(cfg *config.Config) (broadcast.Config, error) {
	b := cfg.Broadcast
	if b.QueueSize < 0 {
		return broadcast.Config{}, fmt.Errorf("broadcast.queue_size must be >= 0")
	}
	delay, err := config.Duration("broadcast.delay", b.Delay, broadcast.DefaultDelay)
	if err != nil {
		return broadcast.Config{}, err
	}
	ttl, err := config.Duration("broadcast.status_ttl", b.StatusTTL, broadcast.DefaultStatusTTL)
	if err != nil {
		return broadcast.Config{}, err
	}
	return broadcast.Config{Delay: delay, QueueSize: orDefault(b.QueueSize, broadcast.DefaultQueueSize), StatusTTL: ttl}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Timezone: strings.TrimSpace(cfg.Report.Timezone), DefaultTimeout: defaultJobTimeout}
}

// reportSpecs returns the abandoned-check and daily-report schedules.
func reportSpecs(cfg *config.Config) (abandoned, daily string) {
	abandoned = strings.TrimSpace(cfg.Report.AbandonedSpec)
	if abandoned == "" {
		abandoned = notifier.DefaultAbandonedSpec
	}
	daily = strings.TrimSpace(cfg.Report.DailySpec)
	if daily == "" {
		daily = notifier.DefaultDailySpec
	}
	return abandoned, daily
}

func mapLinks(cfg *config.Config) ui.Links {
	t := cfg.Telegram
	return ui.Links{
		ManagerURL: ui.ManagerLink(t.ManagerURL, t.ManagerUsername),
		ChannelURL: strings.TrimSpace(t.ChannelURL),
		GroupURL:   strings.TrimSpace(t.GroupURL),
	}
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("report.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}

// validateConfig rejects a config before it is committed, at startup and
// on every hot reload.
func validateConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (or set %s)", config.EnvBotToken)
	}
	if _, err := config.Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapReminderConfig(cfg); err != nil {
		return err
	}
	if _, err := mapBroadcastConfig(cfg); err != nil {
		return err
	}
	if _, err := loadLocation(cfg.Report.Timezone); err != nil {
		return err
	}
	abandoned, daily := reportSpecs(cfg)
	if _, err := scheduler.ParseSchedule(abandoned); err != nil {
		return fmt.Errorf("report.abandoned_spec: %w", err)
	}
	if _, err := scheduler.ParseSchedule(daily); err != nil {
		return fmt.Errorf("report.daily_spec: %w", err)
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}
