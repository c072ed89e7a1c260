package admin

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"valubot/internal/settings"
	"valubot/internal/storage"
	"valubot/internal/transport/telegram/router"
	"valubot/pkg/logx"
	"valubot/pkg/tgui"
)

const (
	minThreshold = 1
	maxThreshold = 1000
)

func (p *Plugin) notifSettings(ctx context.Context, adminID int64) (storage.NotificationSettings, error) {
	s, _, err := p.d.Store.GetNotificationSettings(ctx, adminID)
	return s, err
}

func (p *Plugin) onNotif(ctx context.Context, req *router.Request, _ string) error {
	req.Conv.Clear(req.FromID, convOwner)
	return p.edit(ctx, req, "notification settings", func(ctx context.Context) (tgui.Message, error) {
		s, err := p.notifSettings(ctx, req.FromID)
		if err != nil {
			return tgui.Message{}, err
		}
		return notifScreen(s), nil
	})
}

func (p *Plugin) onNotifToggle(ctx context.Context, req *router.Request, which string) error {
	s, err := p.notifSettings(ctx, req.FromID)
	if err != nil {
		return p.fail(ctx, req, "notification settings", err)
	}
	switch which {
	case toggleNewUsers:
		s.NotifyNewUsers = !s.NotifyNewUsers
	case toggleOrders:
		s.NotifyOrders = !s.NotifyOrders
	case toggleAbandoned:
		s.NotifyAbandoned = !s.NotifyAbandoned
	default:
		_ = req.Answer(ctx, "Unknown setting")
		return nil
	}
	if err := p.d.Store.UpsertNotificationSettings(ctx, s); err != nil {
		return p.fail(ctx, req, "save notification settings", err)
	}
	_ = req.Answer(ctx, "✅ Updated")
	return req.Edit(ctx, notifScreen(s))
}

func (p *Plugin) onThreshold(ctx context.Context, req *router.Request, _ string) error {
	req.Conv.Set(req.FromID, convOwner, stepThreshold, nil)
	_ = req.Answer(ctx, "")
	return req.Reply(ctx, tgui.New().Title("✏️", "Abandoned checkout threshold").
		Line("Send a whole number between 1 and 1000.").
		Line("An alert fires when more checkouts than this are abandoned within an hour.").
		Line("/cancel aborts.").Build())
}

func (p *Plugin) inputThreshold(ctx context.Context, req *router.Request) error {
	n, err := strconv.Atoi(strings.TrimSpace(req.Text))
	if err != nil || n < minThreshold || n > maxThreshold {
		return req.ReplyText(ctx, "⚠️ The threshold must be a whole number between 1 and 1000. Try again or /cancel.")
	}
	s, err := p.notifSettings(ctx, req.FromID)
	if err != nil {
		req.Logger.Error("load notification settings failed", logx.Err(err))
		return req.ReplyText(ctx, "❌ Could not load notification settings.")
	}
	s.AbandonedThreshold = n
	if err := p.d.Store.UpsertNotificationSettings(ctx, s); err != nil {
		req.Logger.Error("save notification settings failed", logx.Err(err))
		return req.ReplyText(ctx, "❌ Could not save notification settings.")
	}
	req.Conv.Clear(req.FromID, convOwner)
	return req.Reply(ctx, notifScreen(s))
}

func (p *Plugin) remindersView(ctx context.Context) tgui.Message {
	var last time.Time
	if p.d.Reminders != nil {
		last = p.d.Reminders.LastCheck()
	}
	return remindersScreen(p.d.Settings.Snapshot(ctx), last, p.d.Stats.Location())
}

func (p *Plugin) onReminders(ctx context.Context, req *router.Request, _ string) error {
	req.Conv.Clear(req.FromID, convOwner)
	return req.Edit(ctx, p.remindersView(ctx))
}

func (p *Plugin) onReminderToggle(ctx context.Context, req *router.Request, _ string) error {
	enabled := p.d.Settings.Snapshot(ctx).Enabled
	if err := p.d.Settings.Set(ctx, settings.KeyReminderEnabled, strconv.FormatBool(!enabled), req.FromID); err != nil {
		return p.fail(ctx, req, "toggle reminders", err)
	}
	_ = req.Answer(ctx, "✅ Updated")
	return req.Edit(ctx, p.remindersView(ctx))
}

func (p *Plugin) onReminderDelay(ctx context.Context, req *router.Request, _ string) error {
	req.Conv.Set(req.FromID, convOwner, stepDelay, nil)
	_ = req.Answer(ctx, "")
	return req.Reply(ctx, tgui.New().Title("✏️", "Reminder delay").
		Line("Send the number of minutes (1-1440) to wait after a valuation before the reminder.").
		Line("/cancel aborts.").Build())
}

func (p *Plugin) onReminderInterval(ctx context.Context, req *router.Request, _ string) error {
	req.Conv.Set(req.FromID, convOwner, stepInterval, nil)
	_ = req.Answer(ctx, "")
	return req.Reply(ctx, tgui.New().Title("✏️", "Reminder check interval").
		Line("Send the number of minutes (1-1440) between reminder checks.").
		Line("/cancel aborts.").Build())
}

func (p *Plugin) inputReminder(ctx context.Context, req *router.Request, key string) error {
	err := p.d.Settings.Set(ctx, key, req.Text, req.FromID)
	switch {
	case errors.Is(err, settings.ErrInvalidValue):
		return req.ReplyText(ctx, "⚠️ Send a whole number of minutes between 1 and 1440. Try again or /cancel.")
	case err != nil:
		req.Logger.Error("save setting failed", logx.String("key", key), logx.Err(err))
		return req.ReplyText(ctx, "❌ Could not save the setting.")
	}
	req.Conv.Clear(req.FromID, convOwner)
	return req.Reply(ctx, p.remindersView(ctx))
}

func (p *Plugin) onReminderCheck(ctx context.Context, req *router.Request, _ string) error {
	if p.d.Reminders == nil {
		_ = req.Answer(ctx, "Reminders are not running")
		return nil
	}
	_ = req.Answer(ctx, "🔍 Checking…")
	st, err := p.d.Reminders.CheckNow(ctx)
	if err != nil {
		req.Logger.Error("reminder check failed", logx.Err(err))
		return req.ReplyText(ctx, "❌ Reminder check failed: "+tgui.Esc(err.Error()).String())
	}
	return req.ReplyText(ctx, reminderStatsText(st))
}

func (p *Plugin) onJobs(ctx context.Context, req *router.Request, _ string) error {
	if p.d.Jobs == nil {
		return req.Edit(ctx, withHome("No scheduler is configured."))
	}
	return req.Edit(ctx, jobsScreen(p.d.Jobs.Snapshot(), p.d.Stats.Location()))
}

func (p *Plugin) onJobRun(ctx context.Context, req *router.Request, name string) error {
	if p.d.Jobs == nil {
		_ = req.Answer(ctx, "No scheduler")
		return nil
	}
	if err := p.d.Jobs.RunNow(name); err != nil {
		_ = req.Answer(ctx, "❌ "+err.Error())
		return nil
	}
	_ = req.Answer(ctx, "▶️ Started "+name)
	return nil
}
