package admin

import (
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"valubot/internal/analytics"
	"valubot/internal/events"
	"valubot/internal/notifier/broadcast"
	"valubot/internal/reminder"
	"valubot/internal/settings"
	"valubot/internal/storage"
	"valubot/internal/task/scheduler"
	"valubot/internal/ui"
	"valubot/pkg/tgui"
)

// Callback actions under ns.
const (
	actHome        = "home"
	actStats       = "stats"
	actDay         = "day"
	actEventMenu   = "evmenu"
	actEvent       = "ev"
	actUsers       = "users"
	actUser        = "user"
	actHistory     = "hist"
	actUnblock     = "unblock"
	actNotif       = "notif"
	actNotifToggle = "ntog"
	actThreshold   = "nthr"
	actReminders   = "rem"
	actRemToggle   = "rtog"
	actRemDelay    = "rdelay"
	actRemInterval = "rint"
	actRemCheck    = "rcheck"
	actJobs        = "jobs"
	actJobRun      = "jrun"
	actBroadcast   = "bc"
	actBcSend      = "bcok"
	actBcDrop      = "bcno"
)

// Snapshot periods for actDay.
const (
	periodToday     = "today"
	periodYesterday = "yesterday"
	periodWeek      = "week"
	periodMonth     = "month"
)

// Notification toggles for actNotifToggle.
const (
	toggleNewUsers  = "new"
	toggleOrders    = "orders"
	toggleAbandoned = "abandoned"
)

func btn(text, action, payload string) tele.Btn {
	return tgui.Btn(text, tgui.Data(ns, action, payload))
}

func backBtn(action, payload string) tele.Btn { return btn("⬅️ Back", action, payload) }

func homeRow() []tele.Btn { return []tele.Btn{backBtn(actHome, "")} }

func panelScreen() tgui.Message {
	kb := tgui.NewInline().
		Row(btn("📊 Overview", actStats, ""), btn("📅 Today", actDay, periodToday)).
		Row(btn("Yesterday", actDay, periodYesterday), btn("Week", actDay, periodWeek), btn("Month", actDay, periodMonth)).
		Row(btn("🎯 Events", actEventMenu, ""), btn("👥 Users", actUsers, "1")).
		Row(btn("🔔 Notifications", actNotif, ""), btn("⏰ Reminders", actReminders, "")).
		Row(btn("📣 Broadcast", actBroadcast, ""), btn("🗓 Jobs", actJobs, ""))
	return tgui.New().Title("🛠", "Operator panel").Line("Choose a section.").Inline(kb).Build()
}

func withHome(text string) tgui.Message {
	return tgui.New().HTML(tgui.Raw(text)).Inline(tgui.NewInline().Row(homeRow()...)).Build()
}

func eventMenuScreen(s analytics.Snapshot) tgui.Message {
	kb := tgui.NewInline()
	for _, t := range events.All() {
		kb.Row(btn(fmt.Sprintf("%s %s (%d)", t.Glyph(), t.Label(), s.Count(t)), actEvent, string(t)))
	}
	kb.Row(homeRow()...)
	return tgui.New().Title("🎯", "Events").
		Line(fmt.Sprintf("Counts for the last %d days. Pick a type for details.", eventDays)).
		Inline(kb).Build()
}

func eventScreen(t events.Type, count int) tgui.Message {
	kb := tgui.NewInline().Row(backBtn(actEventMenu, ""))
	return tgui.New().HTML(tgui.Raw(ui.EventTypeText(t, eventDays, count))).Inline(kb).Build()
}

func usersScreen(page analytics.UserPage, loc *time.Location) tgui.Message {
	kb := tgui.NewInline()
	for _, u := range page.Users {
		kb.Row(btn("👤 "+tgui.UserLabel(u.Handle, u.ID), actUser, strconv.FormatInt(u.ID, 10)))
	}
	if row := tgui.PagerRow(ns, actUsers, page.Page, page.TotalPages); len(row) > 0 {
		kb.Row(row...)
	}
	kb.Row(homeRow()...)
	return tgui.New().HTML(tgui.Raw(ui.UserListText(page, loc))).Inline(kb).Build()
}

func userScreen(s analytics.UserSummary, loc *time.Location) tgui.Message {
	id := strconv.FormatInt(s.User.ID, 10)
	kb := tgui.NewInline().Row(btn("📜 History", actHistory, id))
	if s.User.Blocked {
		kb.Row(btn("♻️ Unblock", actUnblock, id))
	}
	kb.Row(backBtn(actUsers, "1"))
	return tgui.New().HTML(tgui.Raw(ui.UserCardText(s, loc))).Inline(kb).Build()
}

func historyScreen(userID int64, evs []storage.Event, loc *time.Location) tgui.Message {
	kb := tgui.NewInline().Row(backBtn(actUser, strconv.FormatInt(userID, 10)))
	return tgui.New().HTML(tgui.Raw(ui.UserHistoryText(evs, loc))).Inline(kb).Build()
}

func onOff(v bool) string {
	if v {
		return "✅"
	}
	return "❌"
}

func notifScreen(s storage.NotificationSettings) tgui.Message {
	kb := tgui.NewInline().
		Row(btn(onOff(s.NotifyNewUsers)+" New users", actNotifToggle, toggleNewUsers)).
		Row(btn(onOff(s.NotifyOrders)+" Orders", actNotifToggle, toggleOrders)).
		Row(btn(onOff(s.NotifyAbandoned)+" Abandoned checkouts", actNotifToggle, toggleAbandoned)).
		Row(btn(fmt.Sprintf("✏️ Threshold: %d/h", s.AbandonedThreshold), actThreshold, "")).
		Row(homeRow()...)
	return tgui.New().Title("🔔", "Notification settings").
		Line("Choose which alerts you receive.").
		Line(fmt.Sprintf("Abandoned checkout alerts fire above %d per hour.", s.AbandonedThreshold)).
		Inline(kb).Build()
}

func remindersScreen(r settings.Reminder, lastCheck time.Time, loc *time.Location) tgui.Message {
	last := "never"
	if !lastCheck.IsZero() {
		last = lastCheck.In(loc).Format("02.01 15:04:05")
	}
	state := "off"
	if r.Enabled {
		state = "on"
	}
	kb := tgui.NewInline().
		Row(btn(onOff(r.Enabled)+" Reminders", actRemToggle, "")).
		Row(btn("✏️ Delay", actRemDelay, ""), btn("✏️ Interval", actRemInterval, "")).
		Row(btn("🔍 Check now", actRemCheck, "")).
		Row(homeRow()...)
	return tgui.New().Title("⏰", "Reminder settings").
		KV("Status", state).
		KV("Delay", fmt.Sprintf("%d min", int(r.Delay/time.Minute))).
		KV("Check interval", fmt.Sprintf("%d min", int(r.Interval/time.Minute))).
		KV("Last check", last).
		Inline(kb).Build()
}

func reminderStatsText(st reminder.Stats) string {
	return tgui.New().Title("🔍", "Reminder check").
		KV("Candidates", strconv.Itoa(st.Total)).
		KV("Sent", strconv.Itoa(st.Sent)).
		KV("Blocked", strconv.Itoa(st.Blocked)).
		KV("Failed", strconv.Itoa(st.Failed)).
		KV("Skipped", strconv.Itoa(st.Skipped)).
		Build().Text
}

func jobsScreen(s scheduler.Snapshot, loc *time.Location) tgui.Message {
	b := tgui.New().Title("🗓", "Scheduled jobs").KV("Timezone", s.Timezone)
	if !s.Running {
		b.Line("⚠️ Scheduler is not running.")
	}
	kb := tgui.NewInline()
	for _, it := range s.Schedules {
		b.Blank().HTML(tgui.B(it.Name) + tgui.Raw(" ") + tgui.Code(it.Spec))
		if !it.Next.IsZero() {
			b.Line("next " + it.Next.In(loc).Format("02.01 15:04"))
		}
		b.Line(fmt.Sprintf("runs %d, skipped %d", it.Runs, it.Skips))
		if it.LastErr != "" {
			b.Line("last error: " + it.LastErr)
		}
		kb.Row(btn("▶️ "+it.Name, actJobRun, it.Name))
	}
	if n := len(s.History); n > 0 {
		b.Blank().Section("Recent runs")
		for _, h := range s.History[max(0, n-5):] {
			status := "ok"
			if h.Err != "" {
				status = h.Err
			}
			b.Line(fmt.Sprintf("%s %s %s: %s", h.Started.In(loc).Format("02.01 15:04"), h.Name, h.Took.Round(time.Millisecond), status))
		}
	}
	kb.Row(homeRow()...)
	return b.Inline(kb).Build()
}

func broadcastPrompt() tgui.Message {
	return tgui.New().Title("📣", "Broadcast").
		Line("Send the text of the message, or a photo with an optional caption.").
		Line("/cancel aborts.").
		Inline(tgui.NewInline().Row(btn("✖️ Cancel", actHome, ""))).Build()
}

func broadcastConfirm(token string, msg broadcast.Message) tgui.Message {
	kind := "text"
	if msg.Photo != nil {
		kind = "photo"
	}
	kb := tgui.NewInline().Row(btn("✅ Send to everyone", actBcSend, token), btn("✖️ Discard", actBcDrop, token))
	return tgui.New().Title("📣", "Broadcast preview").
		Line(fmt.Sprintf("The %s above goes to every active user.", kind)).
		Inline(kb).Build()
}

func broadcastResultText(st broadcast.JobStatus) string {
	b := tgui.New().Title("📣", "Broadcast finished").
		KV("Recipients", strconv.Itoa(st.Result.Total)).
		KV("Delivered", strconv.Itoa(st.Result.Success)).
		KV("Blocked", strconv.Itoa(st.Result.Blocked)).
		KV("Failed", strconv.Itoa(st.Result.Failed))
	if !st.StartedAt.IsZero() && !st.DoneAt.IsZero() {
		b.KV("Took", st.DoneAt.Sub(st.StartedAt).Round(time.Second).String())
	}
	if st.Err != "" {
		b.Blank().Line("⚠️ " + st.Err)
	}
	return b.Build().Text
}
