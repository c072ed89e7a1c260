package admin

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"valubot/internal/analytics"
	"valubot/internal/notifier/broadcast"
	"valubot/internal/reminder"
	"valubot/internal/settings"
	"valubot/internal/storage"
	"valubot/internal/task/scheduler"
	"valubot/internal/transport"
	"valubot/internal/transport/telegram/router"
	"valubot/pkg/logx"
	"valubot/pkg/tgui"
)

const operator = int64(100)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sent struct {
	text  string
	photo bool
	opt   *transport.SendOptions
	edit  bool
}

type chat struct {
	mu      sync.Mutex
	msgs    []sent
	answers []string
}

func (c *chat) Start(context.Context, chan<- transport.Update) error { return nil }
func (c *chat) Stop(context.Context) error                           { return nil }

func (c *chat) push(s sent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, s)
}

func (c *chat) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	c.push(sent{text: text, opt: opt})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (c *chat) SendPhoto(_ context.Context, to transport.ChatTarget, _ transport.Photo, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	c.push(sent{text: caption, photo: true, opt: opt})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (c *chat) EditText(_ context.Context, _ transport.MessageRef, text string, opt *transport.SendOptions) error {
	c.push(sent{text: text, opt: opt, edit: true})
	return nil
}

func (c *chat) AnswerCallback(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = append(c.answers, text)
	return nil
}

func (c *chat) last() sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) == 0 {
		return sent{}
	}
	return c.msgs[len(c.msgs)-1]
}

func (c *chat) lastAnswer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.answers) == 0 {
		return ""
	}
	return c.answers[len(c.answers)-1]
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	msgs []broadcast.Message
}

func (f *fakeBroadcaster) Submit(msg broadcast.Message, onDone func(broadcast.JobStatus)) string {
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
	onDone(broadcast.JobStatus{
		ID:        "job1",
		Result:    broadcast.Result{Total: 3, Success: 2, Blocked: 1},
		StartedAt: epoch,
		DoneAt:    epoch.Add(2 * time.Second),
	})
	return "job1"
}

type fakeReminders struct{ checks int }

func (f *fakeReminders) CheckNow(context.Context) (reminder.Stats, error) {
	f.checks++
	return reminder.Stats{Total: 2, Sent: 1, Blocked: 1}, nil
}

func (f *fakeReminders) LastCheck() time.Time { return epoch }

type fakeJobs struct{ ran []string }

func (f *fakeJobs) Snapshot() scheduler.Snapshot {
	return scheduler.Snapshot{Running: true, Timezone: "UTC", Schedules: []scheduler.ScheduleInfo{
		{Name: "daily-report", Spec: "0 9 * * *", Next: epoch.Add(time.Hour)},
	}}
}

func (f *fakeJobs) RunNow(name string) error {
	if name != "daily-report" {
		return errors.New("unknown schedule")
	}
	f.ran = append(f.ran, name)
	return nil
}

type harness struct {
	db    *storage.DB
	set   *settings.Service
	chat  *chat
	conv  *router.Conversations
	bc    *fakeBroadcaster
	rem   *fakeReminders
	jobs  *fakeJobs
	clock *clockwork.FakeClock
	p     *Plugin
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	db, err := storage.Open(ctx, storage.Config{Path: filepath.Join(t.TempDir(), "admin.db")},
		logx.Nop(), storage.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	set := settings.New(db, logx.Nop())
	require.NoError(t, set.Seed(ctx))

	h := &harness{
		db:    db,
		set:   set,
		chat:  &chat{},
		conv:  router.NewConversations(clock, 0),
		bc:    &fakeBroadcaster{},
		rem:   &fakeReminders{},
		jobs:  &fakeJobs{},
		clock: clock,
	}
	h.p = New(Deps{
		Stats:     analytics.New(db, analytics.WithClock(clock), analytics.WithLocation(time.UTC)),
		Store:     db,
		Settings:  set,
		Reminders: h.rem,
		Broadcast: h.bc,
		Jobs:      h.jobs,
		Clock:     clock,
	}, logx.Nop())
	return h
}

func (h *harness) req(text string) *router.Request {
	return &router.Request{
		Chat:       transport.Private(operator),
		FromID:     operator,
		Text:       text,
		MessageID:  7,
		CallbackID: "cb",
		IsOwner:    true,
		Adapter:    h.chat,
		Logger:     logx.Nop(),
		Conv:       h.conv,
	}
}

func (h *harness) input(t *testing.T, text string) {
	t.Helper()
	handled, err := h.p.onInput(context.Background(), h.req(text))
	require.NoError(t, err)
	require.True(t, handled)
}

func inlineData(t *testing.T, s sent) []string {
	t.Helper()
	require.NotNil(t, s.opt)
	rm, ok := s.opt.ReplyMarkup.(*tele.ReplyMarkup)
	require.True(t, ok)
	var out []string
	for _, row := range rm.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestRoutesAreOwnerOnly(t *testing.T) {
	p := newHarness(t).p
	for _, c := range p.Commands() {
		assert.Equal(t, router.AccessOwnerOnly, c.Access, c.Name)
	}
	for _, cb := range p.Callbacks() {
		assert.Equal(t, router.CallbackAccessOwnerOnly, cb.Access, cb.Action)
		d, err := tgui.CheckedData(cb.NS, cb.Action, "0123456789abcdefghij")
		require.NoError(t, err)
		assert.NotEmpty(t, d)
	}
	for _, in := range p.Inputs() {
		assert.Equal(t, router.AccessOwnerOnly, in.Access)
	}
}

func TestNotificationToggle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.p.onNotifToggle(ctx, h.req(""), toggleOrders))
	s, found, err := h.db.GetNotificationSettings(ctx, operator)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, s.NotifyOrders)
	assert.True(t, s.NotifyNewUsers)
	assert.Contains(t, h.chat.last().text, "Notification settings")
	assert.True(t, h.chat.last().edit)

	require.NoError(t, h.p.onNotifToggle(ctx, h.req(""), "bogus"))
	assert.Equal(t, "Unknown setting", h.chat.lastAnswer())
}

func TestThresholdInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.p.onThreshold(ctx, h.req(""), ""))
	for _, bad := range []string{"abc", "0", "1001", "-5"} {
		h.input(t, bad)
		assert.Contains(t, h.chat.last().text, "between 1 and 1000")
	}
	_, found, err := h.db.GetNotificationSettings(ctx, operator)
	require.NoError(t, err)
	assert.False(t, found, "rejected input must not create a row")

	st, ok := h.conv.Get(operator)
	require.True(t, ok)
	assert.Equal(t, stepThreshold, st.Step)

	h.input(t, " 25 ")
	s, _, err := h.db.GetNotificationSettings(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, 25, s.AbandonedThreshold)
	_, ok = h.conv.Get(operator)
	assert.False(t, ok)
}

func TestReminderSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.p.onReminderDelay(ctx, h.req(""), ""))
	h.input(t, "0")
	assert.Contains(t, h.chat.last().text, "between 1 and 1440")
	assert.Equal(t, 15*time.Minute, h.set.Snapshot(ctx).Delay)

	h.input(t, "30")
	assert.Equal(t, 30*time.Minute, h.set.Snapshot(ctx).Delay)
	assert.Contains(t, h.chat.last().text, "30 min")

	require.NoError(t, h.p.onReminderInterval(ctx, h.req(""), ""))
	h.input(t, "10")
	assert.Equal(t, 10*time.Minute, h.set.Snapshot(ctx).Interval)

	require.NoError(t, h.p.onReminderToggle(ctx, h.req(""), ""))
	assert.False(t, h.set.Snapshot(ctx).Enabled)

	require.NoError(t, h.p.onReminderCheck(ctx, h.req(""), ""))
	assert.Equal(t, 1, h.rem.checks)
	assert.Contains(t, h.chat.last().text, "Candidates")
}

func TestBroadcastFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.p.onBroadcast(ctx, h.req(""), ""))
	h.input(t, "   ")
	assert.Contains(t, h.chat.last().text, "Send some text or a photo")

	r := h.req("Big sale <today>")
	r.Photo = &transport.Photo{FileID: "file-1"}
	handled, err := h.p.onInput(ctx, r)
	require.NoError(t, err)
	require.True(t, handled)

	h.chat.mu.Lock()
	preview := h.chat.msgs[len(h.chat.msgs)-2]
	h.chat.mu.Unlock()
	assert.True(t, preview.photo)
	assert.Equal(t, "Big sale <today>", preview.text)

	data := inlineData(t, h.chat.last())
	require.Len(t, data, 2)
	_, action, token, ok := tgui.ParseData(data[0])
	require.True(t, ok)
	assert.Equal(t, actBcSend, action)

	require.NoError(t, h.p.onBroadcastSend(ctx, h.req(""), token))
	require.Len(t, h.bc.msgs, 1)
	assert.Equal(t, "file-1", h.bc.msgs[0].Photo.FileID)
	assert.Equal(t, "Big sale <today>", h.bc.msgs[0].Text)

	h.chat.mu.Lock()
	var result string
	for _, m := range h.chat.msgs {
		if !m.edit && !m.photo {
			result = m.text
		}
	}
	h.chat.mu.Unlock()
	assert.Contains(t, result, "Broadcast finished")
	assert.Contains(t, result, "Delivered")

	require.NoError(t, h.p.onBroadcastSend(ctx, h.req(""), token))
	assert.Len(t, h.bc.msgs, 1, "a draft is sent once")
	assert.Contains(t, h.chat.last().text, "expired")
}

func TestBroadcastDraftExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.p.onBroadcast(ctx, h.req(""), ""))
	h.input(t, "hello")
	_, _, token, _ := tgui.ParseData(inlineData(t, h.chat.last())[0])

	h.clock.Advance(draftTTL + time.Minute)
	require.NoError(t, h.p.onBroadcastSend(ctx, h.req(""), token))
	assert.Empty(t, h.bc.msgs)
}

func TestUnblockUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.db.EnsureUser(ctx, 55)
	require.NoError(t, err)
	_, err = h.db.MarkBlocked(ctx, 55)
	require.NoError(t, err)

	require.NoError(t, h.p.onUser(ctx, h.req(""), "55"))
	assert.Contains(t, inlineData(t, h.chat.last()), tgui.Data(ns, actUnblock, "55"))

	require.NoError(t, h.p.onUnblock(ctx, h.req(""), "55"))
	assert.Equal(t, "✅ Unblocked", h.chat.lastAnswer())
	u, err := h.db.GetUser(ctx, 55)
	require.NoError(t, err)
	assert.False(t, u.Blocked)
	assert.NotContains(t, inlineData(t, h.chat.last()), tgui.Data(ns, actUnblock, "55"))

	require.NoError(t, h.p.onUser(ctx, h.req(""), "999"))
	assert.Equal(t, "User not found", h.chat.lastAnswer())
}

func TestUsersPaging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for id := int64(1); id <= 12; id++ {
		_, err := h.db.EnsureUser(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, h.p.onUsers(ctx, h.req(""), "2"))
	last := h.chat.last()
	assert.Contains(t, last.text, "Page 2/2 (total: 12)")
	assert.Contains(t, inlineData(t, last), tgui.Data(ns, actUsers, "1"))

	require.NoError(t, h.p.cmdUsers(ctx, h.req("")))
	assert.Contains(t, h.chat.last().text, "Page 1/2")
}

func TestEventMenuShowsWeeklyCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := h.db.RecordEvent(ctx, 1, "check_nickname", nil)
		require.NoError(t, err)
	}

	require.NoError(t, h.p.cmdEvents(ctx, h.req("")))
	rm := h.chat.last().opt.ReplyMarkup.(*tele.ReplyMarkup)
	var label string
	for _, row := range rm.InlineKeyboard {
		if row[0].Data == tgui.Data(ns, actEvent, "check_nickname") {
			label = row[0].Text
		}
	}
	assert.Contains(t, label, "(3)")

	require.NoError(t, h.p.onEvent(ctx, h.req(""), "check_nickname"))
	assert.Contains(t, h.chat.last().text, "<b>3</b>")
}

func TestJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.p.onJobs(ctx, h.req(""), ""))
	assert.Contains(t, h.chat.last().text, "daily-report")

	require.NoError(t, h.p.onJobRun(ctx, h.req(""), "daily-report"))
	assert.Equal(t, []string{"daily-report"}, h.jobs.ran)
	require.NoError(t, h.p.onJobRun(ctx, h.req(""), "nope"))
	assert.Contains(t, h.chat.lastAnswer(), "unknown schedule")
}

func TestInputIgnoresForeignConversations(t *testing.T) {
	h := newHarness(t)
	handled, err := h.p.onInput(context.Background(), h.req("hello"))
	require.NoError(t, err)
	assert.False(t, handled)

	h.conv.Set(operator, "shop", "handle", nil)
	handled, err = h.p.onInput(context.Background(), h.req("hello"))
	require.NoError(t, err)
	assert.False(t, handled)
}
