package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"valubot/internal/analytics"
	"valubot/internal/events"
	"valubot/internal/storage"
	"valubot/internal/transport"
	"valubot/internal/ui"
	"valubot/pkg/logx"
	"valubot/pkg/tgui"
)

// Enqueuer is the part of Service that Alerts needs.
type Enqueuer interface {
	Notify(ctx context.Context, n Notification) error
}

type AlertStore interface {
	GetNotificationSettings(ctx context.Context, adminID int64) (storage.NotificationSettings, bool, error)
	GetUser(ctx context.Context, id int64) (storage.User, error)
}

// Alerts fans operator alerts out to every operator whose settings allow
// them.
type Alerts struct {
	q      Enqueuer
	store  AlertStore
	owners func() []int64
	log    logx.Logger
}

// NewAlerts reads the operator list through owners on every alert so a
// config reload is picked up.
func NewAlerts(q Enqueuer, store AlertStore, owners func() []int64, log logx.Logger) *Alerts {
	return &Alerts{q: q, store: store, owners: owners, log: log.With(logx.String("comp", "alerts"))}
}

func html() *transport.SendOptions {
	return &transport.SendOptions{ParseMode: "HTML", DisablePreview: true}
}

// fanout enqueues text for every operator that want accepts. Failures are
// logged per operator and joined.
func (a *Alerts) fanout(ctx context.Context, channel string, want func(storage.NotificationSettings) bool, text func(storage.NotificationSettings) string) error {
	var errs []error
	for _, id := range a.owners() {
		st, _, err := a.store.GetNotificationSettings(ctx, id)
		if err != nil {
			a.log.Warn("notification settings unavailable; using defaults", logx.Int64("admin_id", id), logx.Err(err))
			st = storage.DefaultNotificationSettings(id)
		}
		if want != nil && !want(st) {
			continue
		}
		err = a.q.Notify(ctx, Notification{
			Channel: channel,
			Target:  transport.Private(id),
			Text:    text(st),
			Options: html(),
		})
		if err != nil && !errors.Is(err, ErrDisabled) {
			a.log.Warn("alert not queued", logx.String("channel", channel), logx.Int64("admin_id", id), logx.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Alerts) NewUser(ctx context.Context, userID int64, handle string) error {
	text := tgui.New().Title("🆕", "New user").Blank().Line(tgui.UserLabel(handle, userID)).Build().Text
	return a.fanout(ctx, ChannelNewUser,
		func(s storage.NotificationSettings) bool { return s.NotifyNewUsers },
		func(storage.NotificationSettings) string { return text })
}

func (a *Alerts) Order(ctx context.Context, userID int64, handle, nickname, price string) error {
	b := tgui.New().Title("💰", "Order placed!").Blank().
		Line("👤 User: " + tgui.UserLabel(handle, userID))
	if nickname != "" {
		b.Line("📝 Handle: " + nickname)
	}
	if price != "" {
		b.Line("💵 Price: " + price)
	}
	text := b.Build().Text
	return a.fanout(ctx, ChannelOrder,
		func(s storage.NotificationSettings) bool { return s.NotifyOrders },
		func(storage.NotificationSettings) string { return text })
}

// AbandonedCheckouts alerts operators whose own threshold count exceeds.
func (a *Alerts) AbandonedCheckouts(ctx context.Context, count int) error {
	return a.fanout(ctx, ChannelAbandoned,
		func(s storage.NotificationSettings) bool { return s.NotifyAbandoned && count > s.AbandonedThreshold },
		func(s storage.NotificationSettings) string {
			return tgui.New().Title("⚠️", "Attention!").Blank().
				HTML(tgui.Raw(fmt.Sprintf("<b>%d</b> abandoned checkouts in the last hour", count))).
				Line(fmt.Sprintf("Above your threshold (%d)", s.AbandonedThreshold)).
				Build().Text
		})
}

// DailyReport goes to every operator regardless of toggles.
func (a *Alerts) DailyReport(ctx context.Context, st analytics.MainStats) error {
	text := ui.MainStatsText("Daily report", st)
	return a.fanout(ctx, ChannelDaily, nil, func(storage.NotificationSettings) string { return text })
}

// HandleRecorded turns a stored event into operator alerts. It is
// registered with events.Recorder.OnRecorded so no order or signup is lost
// to a lagging subscriber.
func (a *Alerts) HandleRecorded(ctx context.Context, rec events.Recorded) {
	meta := rec.Event.Metadata
	switch rec.Type {
	case events.FirstStart:
		_ = a.NewUser(ctx, rec.Event.UserID, metaString(meta, events.MetaUsername))
	case events.SuccessfulOrder:
		handle := ""
		if u, err := a.store.GetUser(ctx, rec.Event.UserID); err == nil {
			handle = u.Handle
		}
		_ = a.Order(ctx, rec.Event.UserID, handle,
			metaString(meta, events.MetaNickname), metaString(meta, events.MetaPrice))
	}
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}
