// Package ui renders the user-facing storefront screens: localized text
// plus the keyboards that go with it.
package ui

import (
	"strconv"
	"strings"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"valubot/internal/i18n"
	"valubot/internal/valuation"
	"valubot/pkg/tgui"
)

// NS prefixes every storefront callback.
const NS = "shop"

// Storefront callback actions.
const (
	ActLang    = "lang"
	ActAgain   = "again"
	ActSell    = "sell"
	ActContact = "contact"
	ActConfirm = "confirm"
	ActCancel  = "cancel"
	ActBack    = "back"
)

// Links are the outbound URLs shown on buttons. Blank links drop their
// buttons.
type Links struct {
	ManagerURL string
	ChannelURL string
	GroupURL   string
}

// ManagerLink turns a manager username into a t.me link when no explicit
// URL is configured.
func ManagerLink(url, username string) string {
	if url = strings.TrimSpace(url); url != "" {
		return url
	}
	if u := strings.TrimPrefix(strings.TrimSpace(username), "@"); u != "" {
		return "https://t.me/" + u
	}
	return ""
}

// Storefront is safe for concurrent use; links can be swapped on reload.
type Storefront struct {
	links atomic.Pointer[Links]
}

func NewStorefront(l Links) *Storefront {
	s := &Storefront{}
	s.SetLinks(l)
	return s
}

func (s *Storefront) SetLinks(l Links) { s.links.Store(&l) }

func (s *Storefront) Links() Links { return *s.links.Load() }

// LanguagePicker is the /start and "change language" screen.
func (s *Storefront) LanguagePicker(lang i18n.Lang) tgui.Message {
	kb := tgui.NewInline()
	langs := i18n.Supported()
	row := make([]tele.Btn, 0, 2)
	for i, l := range langs {
		row = append(row, tgui.Btn(l.Name(), tgui.Data(NS, ActLang, string(l))))
		if len(row) == 2 || i == len(langs)-1 {
			kb.Row(row...)
			row = row[:0:0]
		}
	}
	return tgui.New().HTML(tgui.Raw(i18n.T(lang, i18n.Welcome))).Inline(kb).Build()
}

// MainMenu sends key's text with the persistent reply keyboard. kv fills
// placeholders as in Text.
func (s *Storefront) MainMenu(lang i18n.Lang, key i18n.Key, kv ...string) tgui.Message {
	kb := tgui.NewReply().
		Row(i18n.T(lang, i18n.BtnEvaluate), i18n.T(lang, i18n.BtnSell)).
		Row(i18n.T(lang, i18n.BtnLang), i18n.T(lang, i18n.BtnMethod)).
		Row(i18n.T(lang, i18n.BtnChannel), i18n.T(lang, i18n.BtnManager))
	return tgui.New().HTML(tgui.Raw(i18n.F(lang, key, escapeValues(kv)...))).Markup(kb.Markup()).Build()
}

// Text is a plain localized message without a keyboard.
func (s *Storefront) Text(lang i18n.Lang, key i18n.Key, kv ...string) tgui.Message {
	return tgui.New().HTML(tgui.Raw(i18n.F(lang, key, escapeValues(kv)...))).Build()
}

func (s *Storefront) Result(lang i18n.Lang, r valuation.Report) tgui.Message {
	text := i18n.F(lang, i18n.Result, escapeValues([]string{
		"username", r.Handle,
		"structure", r.Structure,
		"category", r.Category,
		"rarity", r.Rarity,
		"demand", r.Demand,
		"score", r.ScoreText(),
		"branding", r.Branding,
		"price_low", strconv.Itoa(r.PriceLow),
		"price_high", strconv.Itoa(r.PriceHigh),
	})...)

	kb := tgui.NewInline().
		Row(tgui.Btn(i18n.T(lang, i18n.BtnSellThis), tgui.Data(NS, ActSell, ""))).
		Row(tgui.Btn(i18n.T(lang, i18n.BtnAnother), tgui.Data(NS, ActAgain, ""))).
		Row(tgui.Btn(i18n.T(lang, i18n.BtnContact), tgui.Data(NS, ActContact, "")))
	s.channelRow(kb, lang)
	return tgui.New().HTML(tgui.Raw(text)).Inline(kb).Build()
}

// Checkout is the sell screen for handle.
func (s *Storefront) Checkout(lang i18n.Lang, handle string) tgui.Message {
	kb := tgui.NewInline().
		Row(tgui.Btn(i18n.T(lang, i18n.BtnConfirm), tgui.Data(NS, ActConfirm, ""))).
		Row(tgui.Btn(i18n.T(lang, i18n.BtnProceed), tgui.Data(NS, ActContact, ""))).
		Row(tgui.Btn(i18n.T(lang, i18n.BtnCancel), tgui.Data(NS, ActCancel, "")),
			tgui.Btn(i18n.T(lang, i18n.BtnBack), tgui.Data(NS, ActBack, "")))
	return tgui.New().HTML(tgui.Raw(i18n.F(lang, i18n.SellInfo, escapeValues([]string{"username", handle})...))).
		Inline(kb).Build()
}

func (s *Storefront) Channel(lang i18n.Lang) tgui.Message {
	l := s.Links()
	kb := tgui.NewInline()
	if l.ChannelURL != "" {
		kb.Row(tgui.URLBtn(i18n.T(lang, i18n.BtnGoChannel), l.ChannelURL))
	}
	if l.GroupURL != "" {
		kb.Row(tgui.URLBtn(i18n.T(lang, i18n.BtnGoGroup), l.GroupURL))
	}
	return s.withKeyboard(i18n.T(lang, i18n.ChannelInfo), kb)
}

// Manager is shown after a contact request; the button opens the chat.
func (s *Storefront) Manager(lang i18n.Lang) tgui.Message {
	kb := tgui.NewInline()
	if u := s.Links().ManagerURL; u != "" {
		kb.Row(tgui.URLBtn(i18n.T(lang, i18n.BtnContact), u))
	}
	return s.withKeyboard(i18n.T(lang, i18n.ManagerInfo), kb)
}

// Reminder nudges a user towards the manager. The button goes through
// the contact callback so the contact is recorded.
func (s *Storefront) Reminder(lang i18n.Lang) tgui.Message {
	kb := tgui.NewInline().Row(tgui.Btn(i18n.T(lang, i18n.BtnContact), tgui.Data(NS, ActContact, "")))
	return tgui.New().HTML(tgui.Raw(i18n.T(lang, i18n.Reminder))).Inline(kb).Build()
}

func (s *Storefront) channelRow(kb *tgui.Inline, lang i18n.Lang) {
	if u := s.Links().ChannelURL; u != "" {
		kb.Row(tgui.URLBtn(i18n.T(lang, i18n.BtnChannel), u))
	}
}

func (s *Storefront) withKeyboard(text string, kb *tgui.Inline) tgui.Message {
	b := tgui.New().HTML(tgui.Raw(text))
	if kb.Rows() > 0 {
		b.Inline(kb)
	}
	return b.Build()
}

// escapeValues HTML-escapes the values of key/value pairs.
func escapeValues(kv []string) []string {
	out := make([]string, len(kv))
	for i, v := range kv {
		if i%2 == 1 {
			v = tgui.Esc(v).String()
		}
		out[i] = v
	}
	return out
}
