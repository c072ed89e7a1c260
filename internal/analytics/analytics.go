// Package analytics answers the operator panel's questions from storage.
// Nothing is cached; every call reads the database.
package analytics

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"valubot/internal/events"
	"valubot/internal/storage"
)

const (
	defaultPageSize     = 10
	defaultHistoryLimit = 20
)

type Store interface {
	CountUsers(ctx context.Context) (int, error)
	CountBlockedUsers(ctx context.Context) (int, error)
	CountNewUsers(ctx context.Context, from, to time.Time) (int, error)
	CountEvents(ctx context.Context, eventType string, from, to time.Time) (int, error)
	CountEventsByType(ctx context.Context, from, to time.Time) (map[string]int, error)
	ListUsers(ctx context.Context, limit, offset int) ([]storage.User, error)
	GetUser(ctx context.Context, id int64) (storage.User, error)
	UserEventCounts(ctx context.Context, userID int64) (map[string]int, error)
	ListEvents(ctx context.Context, userID int64, limit int) ([]storage.Event, error)
}

type Aggregator struct {
	store Store
	clock clockwork.Clock
	loc   *time.Location
}

type Option func(*Aggregator)

func WithClock(c clockwork.Clock) Option { return func(a *Aggregator) { a.clock = c } }

// WithLocation sets the timezone that day boundaries are computed in.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

func New(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{store: store, clock: clockwork.NewRealClock(), loc: time.UTC}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Aggregator) Location() *time.Location { return a.loc }

func (a *Aggregator) now() time.Time { return a.clock.Now().In(a.loc) }

// StartOfDay truncates t to local midnight.
func (a *Aggregator) StartOfDay(t time.Time) time.Time {
	t = t.In(a.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.loc)
}

// Today is midnight of the current day.
func (a *Aggregator) Today() time.Time { return a.StartOfDay(a.now()) }

// Snapshot is activity in the half-open window [From, To).
type Snapshot struct {
	From     time.Time
	To       time.Time
	NewUsers int
	Events   map[events.Type]int
}

// Count returns the number of events of type t, zero when none.
func (s Snapshot) Count(t events.Type) int { return s.Events[t] }

func (s Snapshot) TotalEvents() int {
	n := 0
	for _, c := range s.Events {
		n += c
	}
	return n
}

type MainStats struct {
	TotalUsers    int
	BlockedUsers  int
	NewUsers24h   int
	RestartsToday int
	Today         Snapshot
}

type UserPage struct {
	Users      []storage.User
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

func (p UserPage) HasPrev() bool { return p.Page > 1 }
func (p UserPage) HasNext() bool { return p.Page < p.TotalPages }

type UserSummary struct {
	User        storage.User
	Events      map[events.Type]int
	TotalEvents int
}

func (a *Aggregator) TotalUsers(ctx context.Context) (int, error) { return a.store.CountUsers(ctx) }

// NewUsers counts users first seen within window before now.
func (a *Aggregator) NewUsers(ctx context.Context, window time.Duration) (int, error) {
	now := a.now()
	return a.store.CountNewUsers(ctx, now.Add(-window), now.Add(time.Millisecond))
}

func (a *Aggregator) EventCount(ctx context.Context, t events.Type, from, to time.Time) (int, error) {
	return a.store.CountEvents(ctx, string(t), from, to)
}

// DaySnapshot covers the local calendar day containing day.
func (a *Aggregator) DaySnapshot(ctx context.Context, day time.Time) (Snapshot, error) {
	return a.PeriodSnapshot(ctx, day, day)
}

// PeriodSnapshot covers the calendar days fromDay through toDay inclusive.
func (a *Aggregator) PeriodSnapshot(ctx context.Context, fromDay, toDay time.Time) (Snapshot, error) {
	from := a.StartOfDay(fromDay)
	to := a.StartOfDay(toDay).AddDate(0, 0, 1)
	if to.Before(from) {
		from, to = a.StartOfDay(toDay), a.StartOfDay(fromDay).AddDate(0, 0, 1)
	}
	return a.window(ctx, from, to)
}

// LastDays covers the n calendar days ending today.
func (a *Aggregator) LastDays(ctx context.Context, n int) (Snapshot, error) {
	today := a.Today()
	return a.PeriodSnapshot(ctx, today.AddDate(0, 0, -(max(n, 1)-1)), today)
}

func (a *Aggregator) window(ctx context.Context, from, to time.Time) (Snapshot, error) {
	nu, err := a.store.CountNewUsers(ctx, from, to)
	if err != nil {
		return Snapshot{}, err
	}
	byType, err := a.store.CountEventsByType(ctx, from, to)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{From: from, To: to, NewUsers: nu, Events: typed(byType)}, nil
}

func typed(m map[string]int) map[events.Type]int {
	out := make(map[events.Type]int, len(events.All()))
	for _, t := range events.All() {
		out[t] = m[string(t)]
	}
	return out
}

func (a *Aggregator) MainStats(ctx context.Context) (MainStats, error) {
	total, err := a.store.CountUsers(ctx)
	if err != nil {
		return MainStats{}, err
	}
	blocked, err := a.store.CountBlockedUsers(ctx)
	if err != nil {
		return MainStats{}, err
	}
	nu, err := a.NewUsers(ctx, 24*time.Hour)
	if err != nil {
		return MainStats{}, err
	}
	today, err := a.DaySnapshot(ctx, a.now())
	if err != nil {
		return MainStats{}, err
	}
	return MainStats{
		TotalUsers:    total,
		BlockedUsers:  blocked,
		NewUsers24h:   nu,
		RestartsToday: today.Count(events.BotRestart),
		Today:         today,
	}, nil
}

// ListUsers pages through users. page and pageSize below 1 are clamped; a
// page past the end is empty.
func (a *Aggregator) ListUsers(ctx context.Context, page, pageSize int) (UserPage, error) {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	page = max(page, 1)

	total, err := a.store.CountUsers(ctx)
	if err != nil {
		return UserPage{}, err
	}
	out := UserPage{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	if page > out.TotalPages {
		return out, nil
	}
	out.Users, err = a.store.ListUsers(ctx, pageSize, (page-1)*pageSize)
	return out, err
}

func (a *Aggregator) UserSummary(ctx context.Context, userID int64) (UserSummary, error) {
	u, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return UserSummary{}, err
	}
	counts, err := a.store.UserEventCounts(ctx, userID)
	if err != nil {
		return UserSummary{}, err
	}
	s := UserSummary{User: u, Events: typed(counts)}
	for _, n := range counts {
		s.TotalEvents += n
	}
	return s, nil
}

// UserHistory returns a user's newest events, 20 when limit < 1.
func (a *Aggregator) UserHistory(ctx context.Context, userID int64, limit int) ([]storage.Event, error) {
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	return a.store.ListEvents(ctx, userID, limit)
}

// AbandonedLastHour counts abandoned checkouts in the hour before now.
func (a *Aggregator) AbandonedLastHour(ctx context.Context) (int, error) {
	now := a.now()
	return a.store.CountEvents(ctx, string(events.AbandonedCheckout), now.Add(-time.Hour), now.Add(time.Millisecond))
}
