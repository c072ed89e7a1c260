package admin

import (
	"context"
	"errors"
	"strconv"

	"valubot/internal/analytics"
	"valubot/internal/events"
	"valubot/internal/storage"
	"valubot/internal/transport/telegram/router"
	"valubot/internal/ui"
	"valubot/pkg/logx"
	"valubot/pkg/tgui"
)

type screenFunc func(ctx context.Context) (tgui.Message, error)

// reply renders a screen as a new message.
func (p *Plugin) reply(ctx context.Context, req *router.Request, what string, f screenFunc) error {
	msg, err := f(ctx)
	if err != nil {
		req.Logger.Error(what+" failed", logx.Err(err))
		return req.ReplyText(ctx, "❌ Could not load "+what+".")
	}
	return req.Reply(ctx, msg)
}

// edit renders a screen in place of the callback's message.
func (p *Plugin) edit(ctx context.Context, req *router.Request, what string, f screenFunc) error {
	msg, err := f(ctx)
	if err != nil {
		return p.fail(ctx, req, what, err)
	}
	return req.Edit(ctx, msg)
}

func (p *Plugin) statsScreen(ctx context.Context) (tgui.Message, error) {
	st, err := p.d.Stats.MainStats(ctx)
	if err != nil {
		return tgui.Message{}, err
	}
	return withHome(ui.MainStatsText("Bot statistics", st)), nil
}

func (p *Plugin) dayScreen(period string) screenFunc {
	return func(ctx context.Context) (tgui.Message, error) {
		today := p.d.Stats.Today()
		var (
			s   analytics.Snapshot
			err error
		)
		switch period {
		case periodYesterday:
			s, err = p.d.Stats.DaySnapshot(ctx, today.AddDate(0, 0, -1))
		case periodWeek:
			s, err = p.d.Stats.LastDays(ctx, 7)
		case periodMonth:
			s, err = p.d.Stats.LastDays(ctx, 30)
		default:
			s, err = p.d.Stats.DaySnapshot(ctx, today)
		}
		if err != nil {
			return tgui.Message{}, err
		}
		return withHome(ui.SnapshotText(s)), nil
	}
}

func (p *Plugin) eventMenu(ctx context.Context) (tgui.Message, error) {
	s, err := p.d.Stats.LastDays(ctx, eventDays)
	if err != nil {
		return tgui.Message{}, err
	}
	return eventMenuScreen(s), nil
}

func (p *Plugin) usersPage(page int) screenFunc {
	return func(ctx context.Context) (tgui.Message, error) {
		up, err := p.d.Stats.ListUsers(ctx, page, usersPageSize)
		if err != nil {
			return tgui.Message{}, err
		}
		return usersScreen(up, p.d.Stats.Location()), nil
	}
}

func (p *Plugin) userCard(id int64) screenFunc {
	return func(ctx context.Context) (tgui.Message, error) {
		s, err := p.d.Stats.UserSummary(ctx, id)
		if err != nil {
			return tgui.Message{}, err
		}
		return userScreen(s, p.d.Stats.Location()), nil
	}
}

func (p *Plugin) cmdStats(ctx context.Context, req *router.Request) error {
	return p.reply(ctx, req, "statistics", p.statsScreen)
}

func (p *Plugin) cmdToday(ctx context.Context, req *router.Request) error {
	return p.reply(ctx, req, "statistics", p.dayScreen(periodToday))
}

func (p *Plugin) cmdUsers(ctx context.Context, req *router.Request) error {
	page := 1
	if len(req.Args) > 0 {
		if n, err := strconv.Atoi(req.Args[0]); err == nil && n > 0 {
			page = n
		}
	}
	return p.reply(ctx, req, "users", p.usersPage(page))
}

func (p *Plugin) cmdEvents(ctx context.Context, req *router.Request) error {
	return p.reply(ctx, req, "events", p.eventMenu)
}

func (p *Plugin) onStats(ctx context.Context, req *router.Request, _ string) error {
	return p.edit(ctx, req, "statistics", p.statsScreen)
}

func (p *Plugin) onDay(ctx context.Context, req *router.Request, period string) error {
	return p.edit(ctx, req, "statistics", p.dayScreen(period))
}

func (p *Plugin) onEventMenu(ctx context.Context, req *router.Request, _ string) error {
	return p.edit(ctx, req, "events", p.eventMenu)
}

func (p *Plugin) onEvent(ctx context.Context, req *router.Request, payload string) error {
	t, ok := events.Parse(payload)
	if !ok {
		_ = req.Answer(ctx, "Unknown event type")
		return nil
	}
	return p.edit(ctx, req, "event stats", func(ctx context.Context) (tgui.Message, error) {
		s, err := p.d.Stats.LastDays(ctx, eventDays)
		if err != nil {
			return tgui.Message{}, err
		}
		return eventScreen(t, s.Count(t)), nil
	})
}

func (p *Plugin) onUsers(ctx context.Context, req *router.Request, payload string) error {
	page, err := strconv.Atoi(payload)
	if err != nil || page < 1 {
		page = 1
	}
	return p.edit(ctx, req, "users", p.usersPage(page))
}

func parseUserID(ctx context.Context, req *router.Request, payload string) (int64, bool) {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		_ = req.Answer(ctx, "Bad user id")
		return 0, false
	}
	return id, true
}

func (p *Plugin) onUser(ctx context.Context, req *router.Request, payload string) error {
	id, ok := parseUserID(ctx, req, payload)
	if !ok {
		return nil
	}
	msg, err := p.userCard(id)(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		_ = req.Answer(ctx, "User not found")
		return nil
	}
	if err != nil {
		return p.fail(ctx, req, "user card", err)
	}
	return req.Edit(ctx, msg)
}

func (p *Plugin) onHistory(ctx context.Context, req *router.Request, payload string) error {
	id, ok := parseUserID(ctx, req, payload)
	if !ok {
		return nil
	}
	return p.edit(ctx, req, "history", func(ctx context.Context) (tgui.Message, error) {
		evs, err := p.d.Stats.UserHistory(ctx, id, historyLimit)
		if err != nil {
			return tgui.Message{}, err
		}
		return historyScreen(id, evs, p.d.Stats.Location()), nil
	})
}

func (p *Plugin) onUnblock(ctx context.Context, req *router.Request, payload string) error {
	id, ok := parseUserID(ctx, req, payload)
	if !ok {
		return nil
	}
	changed, err := p.d.Store.Unblock(ctx, id)
	if err != nil {
		return p.fail(ctx, req, "unblock", err)
	}
	if changed {
		req.Logger.Info("user unblocked", logx.Int64("user_id", id))
		_ = req.Answer(ctx, "✅ Unblocked")
	} else {
		_ = req.Answer(ctx, "User was not blocked")
	}
	return p.edit(ctx, req, "user card", p.userCard(id))
}
