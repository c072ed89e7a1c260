package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"valubot/internal/i18n"
	"valubot/internal/valuation"
)

func markup(t *testing.T, v any) *tele.ReplyMarkup {
	t.Helper()
	rm, ok := v.(*tele.ReplyMarkup)
	require.True(t, ok, "markup is %T", v)
	return rm
}

func TestManagerLink(t *testing.T) {
	assert.Equal(t, "https://t.me/boss", ManagerLink("", "@boss"))
	assert.Equal(t, "https://x.example", ManagerLink(" https://x.example ", "boss"))
	assert.Empty(t, ManagerLink("", ""))
}

func TestResultEscapesValues(t *testing.T) {
	s := NewStorefront(Links{ChannelURL: "https://t.me/chan"})
	msg := s.Result(i18n.EN, valuation.Report{
		Handle: "@alice123", Structure: "8 characters", Category: "Short & Concise",
		Rarity: "High", Demand: "Strong", Score: 9.1, Branding: "Elite",
		PriceLow: 1500, PriceHigh: 2300,
	})
	assert.Contains(t, msg.Text, "Short &amp; Concise")
	assert.Contains(t, msg.Text, "$1500 – $2300")
	assert.Contains(t, msg.Text, "9.1/10")

	rm := markup(t, msg.Opt.ReplyMarkup)
	require.Len(t, rm.InlineKeyboard, 4)
	assert.Equal(t, "shop:sell", rm.InlineKeyboard[0][0].Data)
	assert.Equal(t, "https://t.me/chan", rm.InlineKeyboard[3][0].URL)
}

func TestLanguagePickerLayout(t *testing.T) {
	rm := markup(t, NewStorefront(Links{}).LanguagePicker(i18n.EN).Opt.ReplyMarkup)
	require.Len(t, rm.InlineKeyboard, 2)
	assert.Len(t, rm.InlineKeyboard[0], 2)
	assert.Equal(t, "shop:lang:es", rm.InlineKeyboard[1][0].Data)
}

func TestMainMenuIsReplyKeyboard(t *testing.T) {
	rm := markup(t, NewStorefront(Links{}).MainMenu(i18n.RU, i18n.LangSet).Opt.ReplyMarkup)
	require.Len(t, rm.ReplyKeyboard, 3)
	assert.Equal(t, i18n.T(i18n.RU, i18n.BtnEvaluate), rm.ReplyKeyboard[0][0].Text)
	assert.True(t, rm.ResizeKeyboard)
}

func TestBlankLinksDropButtons(t *testing.T) {
	s := NewStorefront(Links{})
	assert.Nil(t, s.Channel(i18n.EN).Opt.ReplyMarkup)
	assert.Nil(t, s.Manager(i18n.EN).Opt.ReplyMarkup)

	s.SetLinks(Links{ManagerURL: "https://t.me/boss"})
	rm := markup(t, s.Manager(i18n.ES).Opt.ReplyMarkup)
	assert.Equal(t, "https://t.me/boss", rm.InlineKeyboard[0][0].URL)
}

func TestReminderRoutesThroughContact(t *testing.T) {
	rm := markup(t, NewStorefront(Links{}).Reminder(i18n.EN).Opt.ReplyMarkup)
	assert.Equal(t, "shop:contact", rm.InlineKeyboard[0][0].Data)
}
