package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valubot/internal/events"
	"valubot/internal/storage"
	"valubot/pkg/logx"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, loc *time.Location) (*Aggregator, *storage.DB, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	db, err := storage.Open(context.Background(), storage.Config{
		Path: filepath.Join(t.TempDir(), "analytics.db"),
	}, logx.Nop(), storage.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, WithClock(clock), WithLocation(loc)), db, clock
}

func TestListUsersPaging(t *testing.T) {
	agg, db, clock := setup(t, time.UTC)
	ctx := context.Background()

	// Created oldest-first from 25 down so id 1 is the most recently active.
	for id := int64(25); id >= 1; id-- {
		_, err := db.EnsureUser(ctx, id)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	ids := func(p UserPage) []int64 {
		out := make([]int64, 0, len(p.Users))
		for _, u := range p.Users {
			out = append(out, u.ID)
		}
		return out
	}

	p2, err := agg.ListUsers(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, ids(p2))
	assert.Equal(t, 25, p2.Total)
	assert.Equal(t, 3, p2.TotalPages)
	assert.True(t, p2.HasPrev())
	assert.True(t, p2.HasNext())

	p3, err := agg.ListUsers(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{21, 22, 23, 24, 25}, ids(p3))
	assert.False(t, p3.HasNext())

	p4, err := agg.ListUsers(ctx, 4, 10)
	require.NoError(t, err)
	assert.Empty(t, p4.Users)
	assert.Equal(t, 4, p4.Page)

	clamped, err := agg.ListUsers(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Page)
	assert.Equal(t, 10, clamped.PageSize)
	assert.Len(t, clamped.Users, 10)
}

func TestListUsersEmpty(t *testing.T) {
	agg, _, _ := setup(t, time.UTC)
	p, err := agg.ListUsers(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, p.TotalPages)
	assert.Empty(t, p.Users)
}

func TestDaySnapshotUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	agg, db, clock := setup(t, loc)
	ctx := context.Background()

	// 15:00 local on March 1st.
	_, err := db.RecordEvent(ctx, 1, string(events.FirstStart), nil)
	require.NoError(t, err)
	_, err = db.RecordEvent(ctx, 1, string(events.CheckNickname), nil)
	require.NoError(t, err)

	// 01:00 local on March 2nd.
	clock.Advance(10 * time.Hour)
	_, err = db.RecordEvent(ctx, 2, string(events.BotRestart), nil)
	require.NoError(t, err)

	today, err := agg.DaySnapshot(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, today.Count(events.BotRestart))
	assert.Zero(t, today.Count(events.CheckNickname))
	assert.Equal(t, 1, today.NewUsers)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, loc), today.From)

	yesterday, err := agg.DaySnapshot(ctx, agg.Today().AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, 1, yesterday.Count(events.FirstStart))
	assert.Equal(t, 1, yesterday.Count(events.CheckNickname))
	assert.Equal(t, 2, yesterday.TotalEvents())
	assert.Len(t, yesterday.Events, len(events.All()))

	week, err := agg.LastDays(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, week.TotalEvents())
	assert.Equal(t, 2, week.NewUsers)

	swapped, err := agg.PeriodSnapshot(ctx, clock.Now(), clock.Now().AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, week.TotalEvents(), swapped.TotalEvents())
}

func TestMainStats(t *testing.T) {
	agg, db, clock := setup(t, time.UTC)
	ctx := context.Background()

	_, err := db.EnsureUser(ctx, 1)
	require.NoError(t, err)
	clock.Advance(25 * time.Hour)
	_, err = db.RecordEvent(ctx, 2, string(events.FirstStart), nil)
	require.NoError(t, err)
	_, err = db.RecordEvent(ctx, 1, string(events.BotRestart), nil)
	require.NoError(t, err)
	_, err = db.MarkBlocked(ctx, 1)
	require.NoError(t, err)

	st, err := agg.MainStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalUsers)
	assert.Equal(t, 1, st.BlockedUsers)
	assert.Equal(t, 1, st.NewUsers24h)
	assert.Equal(t, 1, st.RestartsToday)
}

func TestUserSummaryAndHistory(t *testing.T) {
	agg, db, clock := setup(t, time.UTC)
	ctx := context.Background()

	for range 3 {
		_, err := db.RecordEvent(ctx, 42, string(events.CheckNickname), nil)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	_, err := db.RecordEvent(ctx, 42, string(events.ContactManager), nil)
	require.NoError(t, err)

	s, err := agg.UserSummary(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 4, s.TotalEvents)
	assert.Equal(t, 3, s.Events[events.CheckNickname])
	assert.Equal(t, 1, s.Events[events.ContactManager])

	h, err := agg.UserHistory(ctx, 42, 0)
	require.NoError(t, err)
	require.Len(t, h, 4)
	assert.Equal(t, string(events.ContactManager), h[0].Type)

	_, err = agg.UserSummary(ctx, 7)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAbandonedLastHour(t *testing.T) {
	agg, db, clock := setup(t, time.UTC)
	ctx := context.Background()

	_, err := db.RecordEvent(ctx, 1, string(events.AbandonedCheckout), nil)
	require.NoError(t, err)
	clock.Advance(90 * time.Minute)
	for _, id := range []int64{2, 3} {
		_, err = db.RecordEvent(ctx, id, string(events.AbandonedCheckout), nil)
		require.NoError(t, err)
	}

	n, err := agg.AbandonedLastHour(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
