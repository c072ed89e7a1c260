package ui

import (
	"fmt"
	"strings"
	"time"

	"valubot/internal/analytics"
	"valubot/internal/events"
	"valubot/internal/storage"
	"valubot/pkg/tgui"
)

const (
	dateLayout     = "02.01.2006"
	dateTimeLayout = "02.01.2006 15:04"
)

// MainStatsText renders the operator statistics overview as HTML.
func MainStatsText(title string, st analytics.MainStats) string {
	t := st.Today
	b := tgui.New().Title("📊", title).Blank().
		HTML(tgui.Raw(fmt.Sprintf("👥 Total users: <b>%d</b> (blocked: %d)", st.TotalUsers, st.BlockedUsers))).
		HTML(tgui.Raw(fmt.Sprintf("🆕 New in 24h: <b>%d</b>", st.NewUsers24h))).
		HTML(tgui.Raw(fmt.Sprintf("🔄 Restarts today: <b>%d</b>", st.RestartsToday))).
		Blank().
		Section("👣 Traffic").
		Line(fmt.Sprintf("• To group: %d", t.Count(events.GoToGroup))).
		Line(fmt.Sprintf("• To manager: %d", t.Count(events.ContactManager))).
		Blank().
		Section("💰 Actions").
		Line(fmt.Sprintf("• Nickname checks: %d", t.Count(events.CheckNickname))).
		Line(fmt.Sprintf("• Checkouts started: %d", t.Count(events.StartCheckout))).
		Line(fmt.Sprintf("• Successful orders: %d", t.Count(events.SuccessfulOrder))).
		Line(fmt.Sprintf("• Abandoned checkouts: %d", t.Count(events.AbandonedCheckout)))
	return b.Build().Text
}

// SnapshotText renders a day or period snapshot. The window end is
// exclusive, so the label shows the day before it.
func SnapshotText(s analytics.Snapshot) string {
	from := s.From.Format(dateLayout)
	to := s.To.AddDate(0, 0, -1).Format(dateLayout)
	label := from
	if from != to {
		label = from + " - " + to
	}
	b := tgui.New().Title("📅", "Statistics for "+label).Blank().
		HTML(tgui.Raw(fmt.Sprintf("— New users: <b>%d</b>", s.NewUsers)))
	for _, t := range events.All() {
		b.Line(fmt.Sprintf("%s %s: %d", t.Glyph(), t.Label(), s.Count(t)))
	}
	return b.Build().Text
}

// EventTypeText renders one event type's count over a window.
func EventTypeText(t events.Type, days, count int) string {
	b := tgui.New().Title(t.Glyph(), t.Label()).Blank().
		HTML(tgui.Raw(fmt.Sprintf("Last %d days: <b>%d</b>", days, count)))
	switch t {
	case events.SuccessfulOrder:
		b.Blank().Line("💰 Completed orders")
	case events.AbandonedCheckout:
		b.Blank().Line("⚠️ Users who started but did not finish a checkout")
	case events.CheckNickname:
		b.Blank().Line("🔍 Handle valuation requests")
	}
	return b.Build().Text
}

// UserListText renders one page of users; loc formats activity times.
func UserListText(p analytics.UserPage, loc *time.Location) string {
	b := tgui.New().Title("👥", "Users").
		HTML(tgui.I(tgui.PageLabel(p.Page, p.TotalPages, p.Total))).Blank()
	if len(p.Users) == 0 {
		return b.Line("No users on this page.").Build().Text
	}
	for _, u := range p.Users {
		mark := ""
		if u.Blocked {
			mark = " 🚫"
		}
		b.Line("• " + tgui.UserLabel(u.Handle, u.ID) + mark)
		b.Line("  └ active " + u.LastActivity.In(loc).Format("02.01 15:04"))
	}
	return b.Build().Text
}

func UserCardText(s analytics.UserSummary, loc *time.Location) string {
	u := s.User
	lang := u.Language
	if lang == "" {
		lang = "en"
	}
	b := tgui.New().Title("👤", tgui.UserLabel(u.Handle, u.ID)).
		HTML(tgui.Raw("🆔 ID: ") + tgui.Code(fmt.Sprint(u.ID))).
		Line("📅 First seen: " + formatTime(u.FirstSeen, loc)).
		Line("⏰ Last activity: " + formatTime(u.LastActivity, loc)).
		Line("🌍 Language: " + strings.ToUpper(lang)).
		Line("🔍 Last valuation: " + formatTime(u.LastValuationAt, loc)).
		Line(fmt.Sprintf("💬 Manager contacted: %s | 🔔 Reminder sent: %s", yesNo(u.ManagerContacted), yesNo(u.ReminderSent)))
	if u.Blocked {
		b.Line("🚫 Blocked the bot")
	}
	if s.TotalEvents > 0 {
		b.Blank().Section(fmt.Sprintf("📊 Events (%d)", s.TotalEvents))
		for _, t := range events.All() {
			if n := s.Events[t]; n > 0 {
				b.Line(fmt.Sprintf("%s %s: %d", t.Glyph(), t.Label(), n))
			}
		}
	}
	return b.Build().Text
}

func UserHistoryText(evs []storage.Event, loc *time.Location) string {
	if len(evs) == 0 {
		return "History is empty."
	}
	b := tgui.New().Section("History").Blank()
	for _, e := range evs {
		t := events.Type(e.Type)
		line := fmt.Sprintf("%s %s %s", t.Glyph(), e.At.In(loc).Format("02.01 15:04"), t.Label())
		if nick, ok := e.Metadata[events.MetaNickname].(string); ok && nick != "" {
			line += " (" + nick + ")"
		}
		if price, ok := e.Metadata[events.MetaPrice]; ok {
			line += fmt.Sprintf(" %v", price)
		}
		b.Line(line)
	}
	return b.Build().Text
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "never"
	}
	return t.In(loc).Format(dateTimeLayout)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
