package reminder

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

	"valubot/internal/events"
	"valubot/internal/i18n"
	"valubot/internal/settings"
	"valubot/internal/storage"
	"valubot/internal/transport"
	"valubot/internal/ui"
	"valubot/internal/valuation"
	"valubot/pkg/logx"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSender struct {
	mu    sync.Mutex
	sent  []int64
	fail  map[int64]error
	delay time.Duration
	seen  chan int64
}

func newSender() *recordingSender {
	return &recordingSender{fail: map[int64]error{}, seen: make(chan int64, 16)}
}

func (r *recordingSender) send(ctx context.Context, to transport.ChatTarget, _ string) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	err := r.fail[to.ChatID]
	if err == nil {
		r.sent = append(r.sent, to.ChatID)
	}
	r.mu.Unlock()
	r.seen <- to.ChatID
	return err
}

func (r *recordingSender) delivered() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.sent...)
}

type fixture struct {
	db       *storage.DB
	clock    *clockwork.FakeClock
	settings *settings.Service
	sender   *recordingSender
	sched    *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	db, err := storage.Open(context.Background(), storage.Config{
		Path: filepath.Join(t.TempDir(), "reminder.db"),
	}, logx.Nop(), storage.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := settings.New(db, logx.Nop())
	require.NoError(t, st.Seed(context.Background()))

	snd := newSender()
	sched := New(db, st, transport.SenderFunc(snd.send), ui.NewStorefront(ui.Links{}),
		Config{Tick: 30 * time.Second}, logx.Nop(), WithClock(clock))
	return &fixture{db: db, clock: clock, settings: st, sender: snd, sched: sched}
}

func TestCheckSendsDueReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.db.CreateValuation(ctx, 1, "@due", "$1 – $2")
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	_, err = f.db.CreateValuation(ctx, 2, "@fresh", "$1 – $2")
	require.NoError(t, err)
	f.clock.Advance(6 * time.Minute)

	st, err := f.sched.CheckNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Sent: 1}, st)
	assert.Equal(t, []int64{1}, f.sender.delivered())
	assert.Equal(t, f.clock.Now(), f.sched.LastCheck())

	u, err := f.db.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.True(t, u.ReminderSent)

	st, err = f.sched.CheckNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total, "a sent reminder is never selected again")
}

func TestBlockedRecipientReleasesClaimAndFlagsUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.db.CreateValuation(ctx, 9, "@gone", "x")
	require.NoError(t, err)
	f.sender.fail[9] = errors.Join(errors.New("forbidden"), transport.ErrRecipientBlocked)
	f.clock.Advance(time.Hour)

	st, err := f.sched.CheckNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Blocked: 1}, st)

	got, err := f.db.GetValuation(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, got.ReminderSent)
	u, err := f.db.GetUser(ctx, 9)
	require.NoError(t, err)
	assert.True(t, u.Blocked)
}

func TestFailedDeliveryIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.db.CreateValuation(ctx, 3, "@flaky", "x")
	require.NoError(t, err)
	f.sender.fail[3] = errors.New("timeout")
	f.clock.Advance(time.Hour)

	st, err := f.sched.CheckNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Failed)

	delete(f.sender.fail, 3)
	st, err = f.sched.CheckNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Sent)
}

func TestOverlappingChecksSendOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.delay = 20 * time.Millisecond

	_, err := f.db.CreateValuation(ctx, 5, "@race", "x")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sched.CheckNow(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, []int64{5}, f.sender.delivered())
}

func TestDisabledLoopDoesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.settings.Set(ctx, settings.KeyReminderEnabled, "false", 1))

	_, err := f.db.CreateValuation(ctx, 4, "@off", "x")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	require.NoError(t, f.sched.tick(ctx))
	assert.True(t, f.sched.LastCheck().IsZero())
	assert.Empty(t, f.sender.delivered())
}

func TestTickHonoursInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sched.tick(ctx))
	first := f.sched.LastCheck()
	require.False(t, first.IsZero(), "first tick checks")

	f.clock.Advance(time.Minute)
	require.NoError(t, f.sched.tick(ctx))
	assert.Equal(t, first, f.sched.LastCheck())

	f.clock.Advance(4 * time.Minute)
	require.NoError(t, f.sched.tick(ctx))
	assert.Equal(t, f.clock.Now(), f.sched.LastCheck())
}

// User 42 appraises "alice123"; once the delay passes the loop delivers
// exactly one reminder and a later tick does not repeat it.
func TestAppraiseThenRemindScenario(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.db.EnsureUser(ctx, 42)
	require.NoError(t, err)
	rec := events.NewRecorder(f.db, nil, logx.Nop())
	svc := valuation.NewService(f.db, nil, logx.Nop(), valuation.WithEvents(rec))

	a, err := svc.Appraise(ctx, 42, "alice123")
	require.NoError(t, err)
	assert.Equal(t, "@alice123", a.Valuation.Handle)

	n, err := f.db.CountEvents(ctx, string(events.CheckNickname), epoch, epoch.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	u, err := f.db.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.False(t, u.LastValuationAt.IsZero())
	assert.False(t, u.ReminderSent)
	assert.False(t, u.ManagerContacted)

	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	f.clock.Advance(16 * time.Minute)
	select {
	case id := <-f.sender.seen:
		assert.Equal(t, int64(42), id)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder not delivered")
	}

	require.Eventually(t, func() bool {
		u, err := f.db.GetUser(ctx, 42)
		return err == nil && u.ReminderSent
	}, 2*time.Second, 10*time.Millisecond)

	f.clock.Advance(10 * time.Minute)
	st, err := f.sched.CheckNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
	assert.Equal(t, []int64{42}, f.sender.delivered())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReminderLanguage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var got string
	f.sched.sender = transport.SenderFunc(func(_ context.Context, _ transport.ChatTarget, text string) error {
		got = text
		return nil
	})

	require.NoError(t, f.db.SetLanguage(ctx, 8, "es"))
	_, err := f.db.CreateValuation(ctx, 8, "@hola", "x")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	_, err = f.sched.CheckNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, i18n.T(i18n.ES, i18n.Reminder), got)
}
