// Package storefront is the user-facing chat surface: language choice,
// handle valuations and the sell/checkout flow.
package storefront

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"valubot/internal/events"
	"valubot/internal/i18n"
	"valubot/internal/transport/telegram/router"
	"valubot/internal/ui"
	"valubot/internal/valuation"
	"valubot/pkg/logx"
)

// Conversation keys owned by this plugin.
const (
	convOwner     = "shop"
	stepHandle    = "handle"
	stepCheckout  = "checkout"
	dataHandle    = "handle"
	dataPriceText = "price"
)

type Store interface {
	EnsureUser(ctx context.Context, id int64) (bool, error)
	UpdateUserInfo(ctx context.Context, id int64, handle string) error
	SetLanguage(ctx context.Context, id int64, lang string) error
	Language(ctx context.Context, id int64) (string, error)
	MarkManagerContacted(ctx context.Context, userID int64) (int, error)
}

type Appraiser interface {
	Appraise(ctx context.Context, userID int64, handle string) (valuation.Appraisal, error)
}

// Events is the subset of events.Recorder the storefront writes.
type Events interface {
	FirstStart(ctx context.Context, userID int64, username string) error
	BotRestart(ctx context.Context, userID int64, username string) error
	GoToGroup(ctx context.Context, userID int64, groupURL string) error
	ContactManager(ctx context.Context, userID int64, managerUsername string) error
	ExitWithoutAction(ctx context.Context, userID int64) error
	StartCheckout(ctx context.Context, userID int64, nickname string) error
	AbandonedCheckout(ctx context.Context, userID int64, nickname string) error
	SuccessfulOrder(ctx context.Context, userID int64, nickname, price string) error
}

type Plugin struct {
	store   Store
	appr    Appraiser
	events  Events
	screens *ui.Storefront
	manager atomic.Pointer[string]
	log     logx.Logger
}

var _ router.Plugin = (*Plugin)(nil)

func New(store Store, appr Appraiser, ev Events, screens *ui.Storefront, log logx.Logger) *Plugin {
	p := &Plugin{
		store:   store,
		appr:    appr,
		events:  ev,
		screens: screens,
		log:     log.With(logx.String("comp", "plugin.storefront")),
	}
	p.SetManagerUsername("")
	return p
}

// SetManagerUsername sets the name stored with contact_manager events.
func (p *Plugin) SetManagerUsername(u string) {
	u = strings.TrimPrefix(strings.TrimSpace(u), "@")
	p.manager.Store(&u)
}

func (p *Plugin) managerUsername() string { return *p.manager.Load() }

func (p *Plugin) Name() string { return "storefront" }

func (p *Plugin) Commands() []router.Command {
	return []router.Command{{
		Name:        "start",
		Description: "Start the bot and choose a language",
		Access:      router.AccessEveryone,
		Handle:      p.start,
	}}
}

func (p *Plugin) Callbacks() []router.CallbackRoute {
	route := func(action string, h router.CallbackHandlerFunc) router.CallbackRoute {
		return router.CallbackRoute{NS: ui.NS, Action: action, Access: router.CallbackAccessEveryone, Handle: h}
	}
	return []router.CallbackRoute{
		route(ui.ActLang, p.onLanguage),
		route(ui.ActAgain, p.onAgain),
		route(ui.ActSell, p.onSell),
		route(ui.ActContact, p.onContact),
		route(ui.ActConfirm, p.onConfirm),
		route(ui.ActCancel, p.onCancel),
		route(ui.ActBack, p.onBack),
	}
}

func (p *Plugin) Inputs() []router.InputRoute {
	return []router.InputRoute{{Name: "storefront", Access: router.AccessEveryone, Handle: p.onInput}}
}

// lang resolves the user's stored language, then the client language.
func (p *Plugin) lang(ctx context.Context, req *router.Request) i18n.Lang {
	stored, err := p.store.Language(ctx, req.FromID)
	if err != nil {
		req.Logger.Warn("language lookup failed", logx.Err(err))
	}
	if stored != "" {
		return i18n.Parse(stored)
	}
	return i18n.Parse(req.FromLang)
}

func (p *Plugin) start(ctx context.Context, req *router.Request) error {
	created, err := p.store.EnsureUser(ctx, req.FromID)
	if err != nil {
		return err
	}
	// Event helpers log their own failures.
	if created {
		_ = p.events.FirstStart(ctx, req.FromID, req.FromUsername)
	} else {
		_ = p.events.BotRestart(ctx, req.FromID, req.FromUsername)
	}
	if err := p.store.UpdateUserInfo(ctx, req.FromID, req.FromUsername); err != nil {
		req.Logger.Warn("update user info failed", logx.Err(err))
	}
	req.Conv.Clear(req.FromID, convOwner)
	return req.Reply(ctx, p.screens.LanguagePicker(p.lang(ctx, req)))
}

func (p *Plugin) onLanguage(ctx context.Context, req *router.Request, payload string) error {
	l := i18n.Parse(payload)
	if err := p.store.SetLanguage(ctx, req.FromID, string(l)); err != nil {
		return err
	}
	_ = req.Answer(ctx, l.Name())
	p.await(req, stepHandle)
	return req.Reply(ctx, p.screens.MainMenu(l, i18n.LangSet))
}

// onInput takes menu buttons in any language and, otherwise, treats the
// text as a handle unless another plugin owns the conversation.
func (p *Plugin) onInput(ctx context.Context, req *router.Request) (bool, error) {
	text := strings.TrimSpace(req.Text)
	if key, ok := i18n.MatchButton(text); ok {
		return true, p.onMenu(ctx, req, key)
	}
	st, ok := req.Conv.Get(req.FromID)
	if ok && st.Owner != convOwner {
		return false, nil
	}
	lang := p.lang(ctx, req)
	if text == "" {
		if req.Photo != nil && ok {
			return true, req.Reply(ctx, p.screens.Text(lang, i18n.ErrorFormat))
		}
		return false, nil
	}
	return true, p.appraise(ctx, req, lang, text)
}

func (p *Plugin) onMenu(ctx context.Context, req *router.Request, key i18n.Key) error {
	lang := p.lang(ctx, req)
	switch key {
	case i18n.BtnEvaluate:
		if req.FromUsername == "" {
			p.await(req, stepHandle)
			return req.Reply(ctx, p.screens.Text(lang, i18n.NoUsername))
		}
		return p.appraise(ctx, req, lang, req.FromUsername)
	case i18n.BtnSell:
		return p.checkout(ctx, req, lang)
	case i18n.BtnLang:
		return req.Reply(ctx, p.screens.LanguagePicker(lang))
	case i18n.BtnMethod:
		return req.Reply(ctx, p.screens.Text(lang, i18n.Methodology))
	case i18n.BtnChannel:
		l := p.screens.Links()
		target := l.GroupURL
		if target == "" {
			target = l.ChannelURL
		}
		_ = p.events.GoToGroup(ctx, req.FromID, target)
		return req.Reply(ctx, p.screens.Channel(lang))
	case i18n.BtnManager:
		return p.contact(ctx, req, lang)
	}
	return nil
}

func (p *Plugin) appraise(ctx context.Context, req *router.Request, lang i18n.Lang, handle string) error {
	shown := "@" + strings.TrimPrefix(handle, "@")
	if valuation.ValidHandle(handle) {
		if err := req.Reply(ctx, p.screens.Text(lang, i18n.Evaluating, "username", shown)); err != nil {
			return err
		}
	}
	a, err := p.appr.Appraise(ctx, req.FromID, handle)
	switch {
	case errors.Is(err, valuation.ErrInvalidHandle):
		p.await(req, stepHandle)
		return req.Reply(ctx, p.screens.Text(lang, i18n.ErrorFormat))
	case errors.Is(err, valuation.ErrHandleNotFound):
		p.await(req, stepHandle)
		return req.Reply(ctx, p.screens.Text(lang, i18n.ErrorNotFound, "username", shown))
	case err != nil:
		req.Logger.Error("appraise failed", logx.String("handle", handle), logx.Err(err))
		return req.Reply(ctx, p.screens.Text(lang, i18n.ErrorGeneric))
	}
	req.Conv.Set(req.FromID, convOwner, stepHandle, map[string]string{
		dataHandle:    a.Report.Handle,
		dataPriceText: a.Report.PriceRange(),
	})
	return req.Reply(ctx, p.screens.Result(lang, a.Report))
}

// await moves the conversation to step, keeping the last appraised handle.
func (p *Plugin) await(req *router.Request, step string) {
	data := map[string]string{}
	if st, ok := req.Conv.Get(req.FromID); ok && st.Owner == convOwner {
		for k, v := range st.Data {
			data[k] = v
		}
	}
	req.Conv.Set(req.FromID, convOwner, step, data)
}

// lastHandle is the handle of the user's latest report in this session.
func lastHandle(req *router.Request) (handle, price string, ok bool) {
	st, found := req.Conv.Get(req.FromID)
	if !found || st.Owner != convOwner || st.Value(dataHandle) == "" {
		return "", "", false
	}
	return st.Value(dataHandle), st.Value(dataPriceText), true
}

func (p *Plugin) checkout(ctx context.Context, req *router.Request, lang i18n.Lang) error {
	handle, _, ok := lastHandle(req)
	if !ok {
		p.await(req, stepHandle)
		return req.Reply(ctx, p.screens.Text(lang, i18n.AskHandle))
	}
	_ = p.events.StartCheckout(ctx, req.FromID, handle)
	p.await(req, stepCheckout)
	return req.Reply(ctx, p.screens.Checkout(lang, handle))
}

func (p *Plugin) contact(ctx context.Context, req *router.Request, lang i18n.Lang) error {
	_ = p.events.ContactManager(ctx, req.FromID, p.managerUsername())
	n, err := p.store.MarkManagerContacted(ctx, req.FromID)
	if err != nil {
		req.Logger.Warn("mark manager contacted failed", logx.Err(err))
	} else if n > 0 {
		req.Logger.Debug("valuations marked contacted", logx.Int("count", n))
	}
	return req.Reply(ctx, p.screens.Manager(lang))
}

func (p *Plugin) onAgain(ctx context.Context, req *router.Request, _ string) error {
	lang := p.lang(ctx, req)
	p.await(req, stepHandle)
	return req.Reply(ctx, p.screens.Text(lang, i18n.AskHandle))
}

func (p *Plugin) onSell(ctx context.Context, req *router.Request, _ string) error {
	return p.checkout(ctx, req, p.lang(ctx, req))
}

func (p *Plugin) onContact(ctx context.Context, req *router.Request, _ string) error {
	return p.contact(ctx, req, p.lang(ctx, req))
}

func (p *Plugin) onConfirm(ctx context.Context, req *router.Request, _ string) error {
	lang := p.lang(ctx, req)
	handle, price, ok := lastHandle(req)
	if !ok {
		p.await(req, stepHandle)
		return req.Reply(ctx, p.screens.Text(lang, i18n.AskHandle))
	}
	if err := p.events.SuccessfulOrder(ctx, req.FromID, handle, price); err != nil {
		return req.Reply(ctx, p.screens.Text(lang, i18n.ErrorGeneric))
	}
	p.await(req, stepHandle)
	return req.Reply(ctx, p.screens.MainMenu(lang, i18n.OrderDone, "username", handle))
}

func (p *Plugin) onCancel(ctx context.Context, req *router.Request, _ string) error {
	lang := p.lang(ctx, req)
	handle, _, _ := lastHandle(req)
	_ = p.events.AbandonedCheckout(ctx, req.FromID, handle)
	p.await(req, stepHandle)
	return req.Reply(ctx, p.screens.MainMenu(lang, i18n.OrderCanceled))
}

func (p *Plugin) onBack(ctx context.Context, req *router.Request, _ string) error {
	lang := p.lang(ctx, req)
	_ = p.events.ExitWithoutAction(ctx, req.FromID)
	p.await(req, stepHandle)
	return req.Reply(ctx, p.screens.MainMenu(lang, i18n.BackToMenu))
}

var _ Events = (*events.Recorder)(nil)
