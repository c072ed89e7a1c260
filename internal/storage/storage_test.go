package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valubot/pkg/logx"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) (*DB, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	db, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}, logx.Nop(), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, clock
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"}, logx.Nop())
	assert.ErrorContains(t, err, "unknown driver")
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, _ := newTestDB(t)
	require.NoError(t, db.migrate(context.Background()))
}

func TestEnsureUser(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	created, err := db.EnsureUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = db.EnsureUser(ctx, 42)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := db.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, u.FirstSeen.Equal(epoch))

	_, err = db.GetUser(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordEventUpdatesLastActivity(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()
	_, err := db.EnsureUser(ctx, 42)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	from, to := epoch, epoch.Add(time.Hour)
	before, err := db.CountEvents(ctx, "check_nickname", from, to)
	require.NoError(t, err)

	ev, err := db.RecordEvent(ctx, 42, "check_nickname", map[string]any{"nickname": "alice123"})
	require.NoError(t, err)
	assert.NotZero(t, ev.ID)

	after, err := db.CountEvents(ctx, "check_nickname", from, to)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	u, err := db.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, u.LastActivity.Equal(ev.At), "last_activity %v != event %v", u.LastActivity, ev.At)

	events, err := db.ListEvents(ctx, 42, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice123", events[0].Metadata["nickname"])
}

func TestRecordEventCreatesUser(t *testing.T) {
	db, _ := newTestDB(t)
	_, err := db.RecordEvent(context.Background(), 99, "go_to_group", nil)
	require.NoError(t, err)
	n, err := db.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateUserInfoKeepsHandleWhenEmpty(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpdateUserInfo(ctx, 1, "alice"))
	require.NoError(t, db.UpdateUserInfo(ctx, 1, ""))
	u, err := db.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Handle)
}

func TestLanguage(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	lang, err := db.Language(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, lang)

	require.NoError(t, db.SetLanguage(ctx, 5, "ru"))
	lang, err = db.Language(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "ru", lang)
}

func TestBlockedUsersLeaveActiveSnapshot(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	for _, id := range []int64{3, 1, 2} {
		_, err := db.EnsureUser(ctx, id)
		require.NoError(t, err)
	}
	changed, err := db.MarkBlocked(ctx, 2)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = db.MarkBlocked(ctx, 2)
	require.NoError(t, err)
	assert.False(t, changed)

	ids, err := db.ActiveUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	_, err = db.Unblock(ctx, 2)
	require.NoError(t, err)
	ids, err = db.ActiveUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestListUsersOrdering(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpdateUserInfo(ctx, 10, ""))
	clock.Advance(time.Second)
	require.NoError(t, db.UpdateUserInfo(ctx, 20, "bob"))
	clock.Advance(time.Second)
	require.NoError(t, db.UpdateUserInfo(ctx, 30, ""))
	clock.Advance(time.Second)
	require.NoError(t, db.UpdateUserInfo(ctx, 40, "carol"))

	users, err := db.ListUsers(ctx, 10, 0)
	require.NoError(t, err)
	var ids []int64
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []int64{40, 20, 30, 10}, ids)
}

func TestReminderLifecycle(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	v, err := db.CreateValuation(ctx, 42, "alice123", "$1,200 - $2,100")
	require.NoError(t, err)

	cands, err := db.ReminderCandidates(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, cands, "fresh valuation is not yet due")

	clock.Advance(16 * time.Minute)
	cands, err = db.ReminderCandidates(ctx, clock.Now().Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, v.ID, cands[0].ValuationID)

	ok, err := db.ClaimReminder(ctx, v.ID, clock.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.ClaimReminder(ctx, v.ID, clock.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	u, err := db.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, u.ReminderSent)

	require.NoError(t, db.ReleaseReminder(ctx, v.ID))
	got, err := db.GetValuation(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, got.ReminderSent)
	assert.True(t, got.ReminderSentAt.IsZero())
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	v, err := db.CreateValuation(ctx, 1, "handle", "$1 - $2")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.ClaimReminder(ctx, v.ID, epoch)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestManagerContactClosesValuations(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	_, err := db.CreateValuation(ctx, 7, "first", "a")
	require.NoError(t, err)
	_, err = db.CreateValuation(ctx, 7, "second", "b")
	require.NoError(t, err)

	n, err := db.MarkManagerContacted(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	clock.Advance(time.Hour)
	cands, err := db.ReminderCandidates(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, cands)

	u, err := db.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.True(t, u.ManagerContacted)
}

func TestReminderCandidatesUseLatestValuation(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	old, err := db.CreateValuation(ctx, 5, "old", "a")
	require.NoError(t, err)
	ok, err := db.ClaimReminder(ctx, old.ID, clock.Now())
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(time.Minute)
	latest, err := db.CreateValuation(ctx, 5, "new", "b")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	cands, err := db.ReminderCandidates(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, latest.ID, cands[0].ValuationID)

	_, err = db.MarkBlocked(ctx, 5)
	require.NoError(t, err)
	cands, err = db.ReminderCandidates(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestReportInsertOnce(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	first := Report{Key: "alice", DisplayHandle: "@Alice", Structure: "5 characters", Score: 9.1, PriceLow: 1200, PriceHigh: 2000}
	ok, err := db.InsertReport(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	second := first
	second.PriceLow = 3000
	ok, err = db.InsertReport(ctx, second)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := db.GetReport(ctx, "alice")
	require.NoError(t, err)
	got.CreatedAt = time.Time{}
	if diff := cmp.Diff(first, got); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}

	_, err = db.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingsUpsert(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	seeded, err := db.InsertSettingIfAbsent(ctx, Setting{Key: "reminder_enabled", Value: "true", Type: "bool", Description: "on/off"})
	require.NoError(t, err)
	assert.True(t, seeded)

	require.NoError(t, db.UpsertSetting(ctx, Setting{Key: "reminder_enabled", Value: "false", UpdatedBy: 1001}))
	s, err := db.GetSetting(ctx, "reminder_enabled")
	require.NoError(t, err)
	assert.Equal(t, "false", s.Value)
	assert.Equal(t, "on/off", s.Description)
	assert.Equal(t, int64(1001), s.UpdatedBy)

	seeded, err = db.InsertSettingIfAbsent(ctx, Setting{Key: "reminder_enabled", Value: "true"})
	require.NoError(t, err)
	assert.False(t, seeded)

	all, err := db.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNotificationSettingsDefaults(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	s, found, err := db.GetNotificationSettings(ctx, 1001)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, DefaultNotificationSettings(1001), s)

	s.NotifyOrders = false
	s.AbandonedThreshold = 3
	require.NoError(t, db.UpsertNotificationSettings(ctx, s))

	got, found, err := db.GetNotificationSettings(ctx, 1001)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, got.NotifyOrders)
	assert.True(t, got.NotifyNewUsers)
	assert.Equal(t, 3, got.AbandonedThreshold)
}

func TestEventCountsByTypeAndUser(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()

	for _, typ := range []string{"first_start", "check_nickname", "check_nickname"} {
		_, err := db.RecordEvent(ctx, 1, typ, nil)
		require.NoError(t, err)
	}
	clock.Advance(2 * time.Hour)
	_, err := db.RecordEvent(ctx, 2, "check_nickname", nil)
	require.NoError(t, err)

	byType, err := db.CountEventsByType(ctx, epoch, epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"first_start": 1, "check_nickname": 2}, byType)

	perUser, err := db.UserEventCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, perUser["check_nickname"])

	n, err := db.CountNewUsers(ctx, epoch.Add(time.Hour), epoch.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDedupRoundTrip(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	_, ok, err := db.GetDedup(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	until := epoch.Add(time.Minute)
	require.NoError(t, db.PutDedup(ctx, "k", until))
	got, ok, err := db.GetDedup(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(until))
}
