// Package admin is the operator panel: statistics, user management,
// notification and reminder settings, scheduled jobs and broadcasts.
//
// Every route is owner-only. Multi-step input (thresholds, reminder
// timings, broadcast drafts) goes through the router's conversation state
// under the "admin" owner; a rejected value leaves both the state and the
// stored settings untouched so the operator can try again.
package admin

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"valubot/internal/analytics"
	"valubot/internal/notifier/broadcast"
	"valubot/internal/reminder"
	"valubot/internal/settings"
	"valubot/internal/storage"
	"valubot/internal/task/scheduler"
	"valubot/internal/transport/telegram/router"
	"valubot/pkg/logx"
	"valubot/pkg/tgui"
)

const (
	ns        = "adm"
	convOwner = "admin"

	stepThreshold = "threshold"
	stepDelay     = "reminder_delay"
	stepInterval  = "reminder_interval"
	stepBroadcast = "broadcast"

	usersPageSize = 10
	historyLimit  = 20
	eventDays     = 7
	draftTTL      = 30 * time.Minute
)

type Stats interface {
	Location() *time.Location
	Today() time.Time
	MainStats(ctx context.Context) (analytics.MainStats, error)
	DaySnapshot(ctx context.Context, day time.Time) (analytics.Snapshot, error)
	LastDays(ctx context.Context, n int) (analytics.Snapshot, error)
	ListUsers(ctx context.Context, page, pageSize int) (analytics.UserPage, error)
	UserSummary(ctx context.Context, userID int64) (analytics.UserSummary, error)
	UserHistory(ctx context.Context, userID int64, limit int) ([]storage.Event, error)
}

type Store interface {
	GetNotificationSettings(ctx context.Context, adminID int64) (storage.NotificationSettings, bool, error)
	UpsertNotificationSettings(ctx context.Context, s storage.NotificationSettings) error
	Unblock(ctx context.Context, id int64) (bool, error)
}

type Settings interface {
	Snapshot(ctx context.Context) settings.Reminder
	Set(ctx context.Context, key, value string, updatedBy int64) error
}

type Reminders interface {
	CheckNow(ctx context.Context) (reminder.Stats, error)
	LastCheck() time.Time
}

type Broadcaster interface {
	Submit(msg broadcast.Message, onDone func(broadcast.JobStatus)) string
}

type Jobs interface {
	Snapshot() scheduler.Snapshot
	RunNow(name string) error
}

// Deps are the services behind the panel. Reminders and Jobs may be nil;
// their screens then say so.
type Deps struct {
	Stats     Stats
	Store     Store
	Settings  Settings
	Reminders Reminders
	Broadcast Broadcaster
	Jobs      Jobs
	Clock     clockwork.Clock
}

type Plugin struct {
	d      Deps
	drafts *tgui.Stash[broadcast.Message]
	log    logx.Logger
}

var _ router.Plugin = (*Plugin)(nil)

func New(d Deps, log logx.Logger) *Plugin {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return &Plugin{
		d:      d,
		drafts: tgui.NewStash[broadcast.Message](d.Clock, draftTTL, 32),
		log:    log.With(logx.String("comp", "plugin.admin")),
	}
}

func (p *Plugin) Name() string { return "admin" }

func (p *Plugin) Commands() []router.Command {
	cmd := func(name, desc string, h router.HandlerFunc) router.Command {
		return router.Command{Name: name, Description: desc, Access: router.AccessOwnerOnly, Handle: h}
	}
	return []router.Command{
		cmd("admin", "Operator panel", p.cmdPanel),
		cmd("stats", "Statistics overview", p.cmdStats),
		cmd("stats_today", "Today's statistics", p.cmdToday),
		cmd("stats_users", "User list", p.cmdUsers),
		cmd("stats_events", "Events by type", p.cmdEvents),
		cmd("cancel", "Abort the current operator input", p.cmdCancel),
	}
}

func (p *Plugin) Callbacks() []router.CallbackRoute {
	route := func(action string, h router.CallbackHandlerFunc) router.CallbackRoute {
		return router.CallbackRoute{NS: ns, Action: action, Handle: h}
	}
	return []router.CallbackRoute{
		route(actHome, p.onHome),
		route(actStats, p.onStats),
		route(actDay, p.onDay),
		route(actEventMenu, p.onEventMenu),
		route(actEvent, p.onEvent),
		route(actUsers, p.onUsers),
		route(actUser, p.onUser),
		route(actHistory, p.onHistory),
		route(actUnblock, p.onUnblock),
		route(actNotif, p.onNotif),
		route(actNotifToggle, p.onNotifToggle),
		route(actThreshold, p.onThreshold),
		route(actReminders, p.onReminders),
		route(actRemToggle, p.onReminderToggle),
		route(actRemDelay, p.onReminderDelay),
		route(actRemInterval, p.onReminderInterval),
		route(actRemCheck, p.onReminderCheck),
		route(actJobs, p.onJobs),
		route(actJobRun, p.onJobRun),
		route(actBroadcast, p.onBroadcast),
		route(actBcSend, p.onBroadcastSend),
		route(actBcDrop, p.onBroadcastDrop),
	}
}

func (p *Plugin) Inputs() []router.InputRoute {
	return []router.InputRoute{{Name: "admin", Access: router.AccessOwnerOnly, Handle: p.onInput}}
}

func (p *Plugin) cmdPanel(ctx context.Context, req *router.Request) error {
	req.Conv.Clear(req.FromID, convOwner)
	return req.Reply(ctx, panelScreen())
}

func (p *Plugin) cmdCancel(ctx context.Context, req *router.Request) error {
	req.Conv.Clear(req.FromID, convOwner)
	return req.ReplyText(ctx, "Input cancelled.")
}

func (p *Plugin) onHome(ctx context.Context, req *router.Request, _ string) error {
	req.Conv.Clear(req.FromID, convOwner)
	return req.Edit(ctx, panelScreen())
}

// onInput consumes the next message of an operator conversation.
func (p *Plugin) onInput(ctx context.Context, req *router.Request) (bool, error) {
	st, ok := req.Conv.Get(req.FromID)
	if !ok || st.Owner != convOwner {
		return false, nil
	}
	switch st.Step {
	case stepThreshold:
		return true, p.inputThreshold(ctx, req)
	case stepDelay:
		return true, p.inputReminder(ctx, req, settings.KeyReminderDelay)
	case stepInterval:
		return true, p.inputReminder(ctx, req, settings.KeyReminderInterval)
	case stepBroadcast:
		return true, p.inputBroadcast(ctx, req)
	}
	req.Conv.Clear(req.FromID, convOwner)
	return false, nil
}

// fail answers a callback with an alert-style toast and logs err.
func (p *Plugin) fail(ctx context.Context, req *router.Request, what string, err error) error {
	req.Logger.Error(what+" failed", logx.Err(err))
	_ = req.Answer(ctx, "❌ Error")
	return nil
}
