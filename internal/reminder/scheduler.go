// Package reminder nudges users whose latest valuation has aged without
// an operator contact.
package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"valubot/internal/eventbus"
	"valubot/internal/i18n"
	"valubot/internal/settings"
	"valubot/internal/storage"
	"valubot/internal/transport"
	"valubot/pkg/logx"
	"valubot/pkg/tgui"
)

const (
	DefaultTick         = 30 * time.Second
	DefaultSendTimeout  = 10 * time.Second
	DefaultErrorBackoff = 60 * time.Second
)

type Store interface {
	ReminderCandidates(ctx context.Context, olderThan time.Time) ([]storage.ReminderCandidate, error)
	ClaimReminder(ctx context.Context, valuationID int64, at time.Time) (bool, error)
	ReleaseReminder(ctx context.Context, valuationID int64) error
	MarkBlocked(ctx context.Context, id int64) (bool, error)
}

// Settings supplies the live reminder settings; read on every tick.
type Settings interface {
	Snapshot(ctx context.Context) settings.Reminder
}

// Composer renders the localized reminder.
type Composer interface {
	Reminder(lang i18n.Lang) tgui.Message
}

type Config struct {
	Tick         time.Duration
	SendTimeout  time.Duration
	ErrorBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	return c
}

// Stats summarizes one check.
type Stats struct {
	Total   int
	Sent    int
	Blocked int
	Failed  int
	// Skipped candidates were claimed by an overlapping check.
	Skipped int
}

type Scheduler struct {
	store    Store
	settings Settings
	sender   transport.Sender
	composer Composer
	bus      eventbus.Bus
	clock    clockwork.Clock
	log      logx.Logger

	cfgMu sync.RWMutex
	cfg   Config

	// checkMu serializes checks; lastMu guards lastCheck.
	checkMu   sync.Mutex
	lastMu    sync.Mutex
	lastCheck time.Time
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithBus(b eventbus.Bus) Option { return func(s *Scheduler) { s.bus = b } }

func New(store Store, st Settings, sender transport.Sender, composer Composer, cfg Config, log logx.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		settings: st,
		sender:   sender,
		composer: composer,
		clock:    clockwork.NewRealClock(),
		log:      log.With(logx.String("comp", "reminder")),
		cfg:      cfg.withDefaults(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Apply swaps timings on config reload. A new tick period takes effect
// when Run is next started.
func (s *Scheduler) Apply(cfg Config) {
	s.cfgMu.Lock()
	s.cfg = cfg.withDefaults()
	s.cfgMu.Unlock()
}

func (s *Scheduler) config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// LastCheck is when the latest check started; zero before the first one.
func (s *Scheduler) LastCheck() time.Time {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastCheck
}

// Run ticks until ctx is done. Errors inside a tick are logged and
// followed by the error backoff; they never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.config().Tick)
	defer ticker.Stop()
	s.log.Info("reminder loop started", logx.Duration("tick", s.config().Tick))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder loop stopped")
			return ctx.Err()
		case <-ticker.Chan():
		}
		if err := s.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			backoff := s.config().ErrorBackoff
			s.log.Error("reminder tick failed", logx.Err(err), logx.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.clock.After(backoff):
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	snap := s.settings.Snapshot(ctx)
	if !snap.Enabled {
		return nil
	}
	if last := s.LastCheck(); !last.IsZero() && s.clock.Now().Sub(last) < snap.Interval {
		return nil
	}
	_, err := s.check(ctx, snap.Delay)
	return err
}

// CheckNow runs one check immediately, regardless of the enabled flag and
// interval.
func (s *Scheduler) CheckNow(ctx context.Context) (Stats, error) {
	return s.check(ctx, s.settings.Snapshot(ctx).Delay)
}

func (s *Scheduler) check(ctx context.Context, delay time.Duration) (Stats, error) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	now := s.clock.Now()
	s.lastMu.Lock()
	s.lastCheck = now
	s.lastMu.Unlock()

	cands, err := s.store.ReminderCandidates(ctx, now.Add(-delay))
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: len(cands)}
	if len(cands) == 0 {
		s.log.Debug("no pending reminders")
		return st, nil
	}
	s.log.Info("processing reminders", logx.Int("pending", len(cands)))

	for _, c := range cands {
		if ctx.Err() != nil {
			break
		}
		switch s.deliver(ctx, c) {
		case resultSent:
			st.Sent++
		case resultBlocked:
			st.Blocked++
		case resultFailed:
			st.Failed++
		case resultSkipped:
			st.Skipped++
		}
	}

	s.log.Info("reminder check finished",
		logx.Int("total", st.Total), logx.Int("sent", st.Sent),
		logx.Int("blocked", st.Blocked), logx.Int("failed", st.Failed))
	s.publish(eventbus.TopicReminderChecked, st)
	return st, ctx.Err()
}

type result int

const (
	resultSent result = iota
	resultBlocked
	resultFailed
	resultSkipped
)

// deliver claims c, sends and settles the claim. Once claimed, the send
// and the bookkeeping run to completion even if ctx is canceled.
func (s *Scheduler) deliver(ctx context.Context, c storage.ReminderCandidate) result {
	log := s.log.With(logx.Int64("user_id", c.UserID), logx.Int64("valuation_id", c.ValuationID))

	claimed, err := s.store.ClaimReminder(ctx, c.ValuationID, s.clock.Now())
	if err != nil {
		log.Warn("claim reminder failed", logx.Err(err))
		return resultFailed
	}
	if !claimed {
		return resultSkipped
	}

	bg := context.WithoutCancel(ctx)
	sctx, cancel := context.WithTimeout(bg, s.config().SendTimeout)
	_, err = s.composer.Reminder(i18n.Parse(c.Language)).Send(sctx, s.sender, transport.Private(c.UserID))
	cancel()

	switch transport.Classify(err) {
	case transport.Delivered:
		log.Info("reminder sent")
		s.publish(eventbus.TopicReminderSent, c)
		return resultSent
	case transport.Blocked:
		s.release(bg, log, c.ValuationID)
		if _, err := s.store.MarkBlocked(bg, c.UserID); err != nil {
			log.Warn("mark blocked failed", logx.Err(err))
		}
		log.Info("reminder not sent: user blocked the bot")
		s.publish(eventbus.TopicUserBlocked, c.UserID)
		return resultBlocked
	default:
		s.release(bg, log, c.ValuationID)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("reminder send timed out")
		} else {
			log.Warn("reminder send failed", logx.Err(err))
		}
		return resultFailed
	}
}

func (s *Scheduler) release(ctx context.Context, log logx.Logger, id int64) {
	if err := s.store.ReleaseReminder(ctx, id); err != nil {
		log.Error("release reminder claim failed", logx.Err(err))
	}
}

func (s *Scheduler) publish(topic string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: topic, Time: s.clock.Now(), Data: data})
	}
}
