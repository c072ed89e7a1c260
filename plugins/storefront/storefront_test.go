package storefront

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valubot/internal/eventbus"
	"valubot/internal/events"
	"valubot/internal/i18n"
	"valubot/internal/storage"
	"valubot/internal/transport"
	"valubot/internal/transport/telegram/router"
	"valubot/internal/ui"
	"valubot/internal/valuation"
	"valubot/pkg/logx"
)

type chat struct {
	mu      sync.Mutex
	sent    []string
	answers []string
}

func (c *chat) Start(context.Context, chan<- transport.Update) error { return nil }
func (c *chat) Stop(context.Context) error                           { return nil }

func (c *chat) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(c.sent)}, nil
}

func (c *chat) SendPhoto(ctx context.Context, to transport.ChatTarget, _ transport.Photo, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return c.SendText(ctx, to, caption, opt)
}

func (c *chat) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	_, err := c.SendText(ctx, transport.Private(ref.ChatID), text, opt)
	return err
}

func (c *chat) AnswerCallback(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = append(c.answers, text)
	return nil
}

func (c *chat) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

// resolver knows every handle except the ones listed as missing.
type resolver struct{ missing map[string]bool }

func (r resolver) ResolveHandle(_ context.Context, h string) (bool, error) {
	return !r.missing[valuation.NormalizeHandle(h)], nil
}

type harness struct {
	db   *storage.DB
	bus  eventbus.Bus
	chat *chat
	conv *router.Conversations
	p    *Plugin
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.Config{
		Driver: storage.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "shop.db"),
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := eventbus.New()
	rec := events.NewRecorder(db, bus, logx.Nop())
	svc := valuation.NewService(db, valuation.NewGenerator(nil), logx.Nop(),
		valuation.WithResolver(resolver{missing: map[string]bool{"ghost_user": true}}),
		valuation.WithEvents(rec))
	screens := ui.NewStorefront(ui.Links{
		ManagerURL: "https://t.me/boss",
		ChannelURL: "https://t.me/chan",
		GroupURL:   "https://t.me/group",
	})
	p := New(db, svc, rec, screens, logx.Nop())
	p.SetManagerUsername("@boss")
	return &harness{db: db, bus: bus, chat: &chat{}, conv: router.NewConversations(nil, 0), p: p}
}

func (h *harness) req(from int64, username, text string) *router.Request {
	return &router.Request{
		Chat:         transport.Private(from),
		FromID:       from,
		FromUsername: username,
		Text:         text,
		Adapter:      h.chat,
		Logger:       logx.Nop(),
		Conv:         h.conv,
	}
}

func (h *harness) eventTypes(t *testing.T, userID int64) []string {
	t.Helper()
	evs, err := h.db.ListEvents(context.Background(), userID, 50)
	require.NoError(t, err)
	out := make([]string, 0, len(evs))
	for i := len(evs) - 1; i >= 0; i-- {
		out = append(out, evs[i].Type)
	}
	return out
}

func (h *harness) input(t *testing.T, from int64, text string) {
	t.Helper()
	handled, err := h.p.onInput(context.Background(), h.req(from, "", text))
	require.NoError(t, err)
	require.True(t, handled)
}

func TestStartRecordsFirstStartThenRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.req(1, "alice", "/start")
	r.FromLang = "ru-RU"
	require.NoError(t, h.p.start(ctx, r))
	assert.Equal(t, i18n.T(i18n.RU, i18n.Welcome), h.chat.last())

	require.NoError(t, h.p.start(ctx, h.req(1, "alice", "/start")))
	assert.Equal(t, []string{"first_start", "bot_restart"}, h.eventTypes(t, 1))

	u, err := h.db.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Handle)
}

func TestLanguageThenAppraisal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.p.onLanguage(ctx, h.req(2, "", ""), "es"))
	lang, err := h.db.Language(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "es", lang)
	assert.Equal(t, i18n.T(i18n.ES, i18n.LangSet), h.chat.last())

	h.input(t, 2, "@Alice_Store")
	assert.Contains(t, h.chat.last(), "@Alice_Store")
	assert.Contains(t, h.eventTypes(t, 2), "check_nickname")

	st, ok := h.conv.Get(2)
	require.True(t, ok)
	assert.Equal(t, "@Alice_Store", st.Value(dataHandle))
	assert.NotEmpty(t, st.Value(dataPriceText))
}

func TestHandleErrors(t *testing.T) {
	h := newHarness(t)

	h.input(t, 3, "ab")
	assert.Equal(t, i18n.T(i18n.EN, i18n.ErrorFormat), h.chat.last())

	h.input(t, 3, "ghost_user")
	assert.Contains(t, h.chat.last(), "@ghost_user")
	assert.True(t, strings.HasPrefix(h.chat.last(), "❌"))
	assert.Empty(t, h.eventTypes(t, 3))
}

func TestCheckoutConfirmPublishesOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch, unsub := h.bus.Subscribe(16, eventbus.TopicEventRecorded)
	defer unsub()

	h.input(t, 4, "sunrise")
	require.NoError(t, h.p.onSell(ctx, h.req(4, "", ""), ""))
	assert.Contains(t, h.chat.last(), "@sunrise")

	require.NoError(t, h.p.onConfirm(ctx, h.req(4, "", ""), ""))
	assert.Contains(t, h.chat.last(), "@sunrise")
	assert.Equal(t, []string{"check_nickname", "start_checkout", "successful_order"}, h.eventTypes(t, 4))

	var order events.Recorded
	for i := 0; i < 3; i++ {
		e := <-ch
		order = e.Data.(events.Recorded)
	}
	assert.Equal(t, events.SuccessfulOrder, order.Type)
	assert.Equal(t, "@sunrise", order.Event.Metadata[events.MetaNickname])
	assert.Contains(t, order.Event.Metadata[events.MetaPrice], "$")
}

func TestCheckoutCancelAndBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.input(t, 5, "sunrise")
	require.NoError(t, h.p.onSell(ctx, h.req(5, "", ""), ""))
	require.NoError(t, h.p.onCancel(ctx, h.req(5, "", ""), ""))
	assert.Equal(t, i18n.T(i18n.EN, i18n.OrderCanceled), h.chat.last())
	require.NoError(t, h.p.onBack(ctx, h.req(5, "", ""), ""))
	assert.Equal(t, i18n.T(i18n.EN, i18n.BackToMenu), h.chat.last())

	assert.Equal(t, []string{"check_nickname", "start_checkout", "abandoned_checkout", "exit_without_action"},
		h.eventTypes(t, 5))
}

func TestSellWithoutHandleAsksForOne(t *testing.T) {
	h := newHarness(t)

	h.input(t, 6, i18n.T(i18n.EN, i18n.BtnSell))
	assert.Equal(t, i18n.T(i18n.EN, i18n.AskHandle), h.chat.last())
	assert.Empty(t, h.eventTypes(t, 6))

	st, ok := h.conv.Get(6)
	require.True(t, ok)
	assert.Equal(t, stepHandle, st.Step)
}

func TestEvaluateButtonWithoutUsername(t *testing.T) {
	h := newHarness(t)
	h.input(t, 7, i18n.T(i18n.RU, i18n.BtnEvaluate))
	assert.Equal(t, i18n.T(i18n.EN, i18n.NoUsername), h.chat.last())
}

func TestManagerAndChannelButtons(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.input(t, 8, "sunrise")
	h.input(t, 8, i18n.T(i18n.ES, i18n.BtnManager))
	h.input(t, 8, i18n.T(i18n.EN, i18n.BtnChannel))

	evs, err := h.db.ListEvents(ctx, 8, 10)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, "go_to_group", evs[0].Type)
	assert.Equal(t, "https://t.me/group", evs[0].Metadata[events.MetaGroupURL])
	assert.Equal(t, "contact_manager", evs[1].Type)
	assert.Equal(t, "boss", evs[1].Metadata[events.MetaManagerUsername])

	u, err := h.db.GetUser(ctx, 8)
	require.NoError(t, err)
	assert.True(t, u.ManagerContacted)
}

func TestInputYieldsToOtherConversations(t *testing.T) {
	h := newHarness(t)
	h.conv.Set(9, "admin", "broadcast", nil)

	handled, err := h.p.onInput(context.Background(), h.req(9, "", "hello there"))
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = h.p.onInput(context.Background(), h.req(9, "", i18n.T(i18n.EN, i18n.BtnMethod)))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, i18n.T(i18n.EN, i18n.Methodology), h.chat.last())
}
