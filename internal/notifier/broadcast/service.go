package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"valubot/internal/eventbus"
	"valubot/internal/runtime/supervisor"
	"valubot/internal/transport"
	"valubot/pkg/logx"
)

type Option func(*Service)

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

func WithBus(b eventbus.Bus) Option { return func(s *Service) { s.bus = b } }

func New(cfg Config, store Store, sender transport.Sender, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		store:  store,
		sender: sender,
		clock:  clockwork.NewRealClock(),
		log:    log.With(logx.String("comp", "broadcast")),
		status: map[string]*JobStatus{},
	}
	for _, o := range opts {
		o(s)
	}
	s.cfg = normalize(cfg)
	return s
}

func normalize(cfg Config) Config {
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	cfg.Delay = max(cfg.Delay, 0)
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = DefaultStatusTTL
	}
	return cfg
}

// Apply swaps the delay and retention. The queue size applies on the next
// Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = normalize(cfg)
	s.mu.Unlock()
}

// Start launches the single job worker. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.sup = supervisor.New(ctx,
		supervisor.WithLogger(s.log),
		supervisor.WithClock(s.clock),
		supervisor.WithCancelOnError(false),
	)
	q := s.queue
	s.sup.GoRestart("broadcast.worker", func(c context.Context) error {
		s.worker(c, q)
		if c.Err() != nil {
			return c.Err()
		}
		return errors.New("broadcast worker exited unexpectedly")
	}, supervisor.WithPublishFirstError(true))
	s.log.Info("broadcast worker started")
}

// Stop cancels the worker. A job in flight stops at its next recipient.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	s.sup, s.queue = nil, nil
	s.mu.Unlock()
	if sup == nil {
		return
	}
	sup.Cancel()
	if err := sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("broadcast stop", logx.Err(err))
	}
}

// Run delivers msg to every non-blocked user, one at a time.
// Per-recipient failures are counted, never returned; the error is
// ErrInfrastructure when the recipient list cannot be read, or the context
// error with the partial result when ctx ends mid-run.
func (s *Service) Run(ctx context.Context, msg Message) (Result, error) {
	return s.run(ctx, msg, nil)
}

func (s *Service) run(ctx context.Context, msg Message, progress func(Result, int)) (Result, error) {
	ids, err := s.store.ActiveUserIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInfrastructure, err)
	}
	s.mu.Lock()
	delay := s.cfg.Delay
	s.mu.Unlock()

	start := s.clock.Now()
	res := Result{Total: len(ids)}
	s.log.Info("broadcast started", logx.Int("total", res.Total), logx.Bool("photo", msg.Photo != nil))

	for i, id := range ids {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return res, s.interrupted(ctx, res, i)
			case <-s.clock.After(delay):
			}
		} else if ctx.Err() != nil {
			return res, s.interrupted(ctx, res, i)
		}

		switch err := s.deliver(ctx, id, msg); transport.Classify(err) {
		case transport.Delivered:
			res.Success++
		case transport.Blocked:
			res.Blocked++
			if _, merr := s.store.MarkBlocked(context.WithoutCancel(ctx), id); merr != nil {
				s.log.Warn("mark blocked failed", logx.Int64("user_id", id), logx.Err(merr))
			} else if s.bus != nil {
				s.bus.Publish(eventbus.Event{Type: eventbus.TopicUserBlocked, Time: s.clock.Now(), Data: id})
			}
		default:
			res.Failed++
			s.log.Warn("broadcast send failed", logx.Int64("user_id", id), logx.Err(err))
		}
		if progress != nil {
			progress(res, i+1)
		}
	}

	s.log.Info("broadcast finished",
		logx.Int("total", res.Total), logx.Int("success", res.Success),
		logx.Int("blocked", res.Blocked), logx.Int("failed", res.Failed),
		logx.Duration("took", s.clock.Since(start)))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TopicBroadcastFinished, Time: s.clock.Now(), Data: res})
	}
	return res, nil
}

func (s *Service) interrupted(ctx context.Context, res Result, done int) error {
	s.log.Warn("broadcast interrupted", logx.Int("done", done), logx.Int("total", res.Total), logx.Err(ctx.Err()))
	return ctx.Err()
}

func (s *Service) deliver(ctx context.Context, userID int64, msg Message) error {
	to := transport.Private(userID)
	var err error
	if msg.Photo != nil {
		_, err = s.sender.SendPhoto(ctx, to, *msg.Photo, msg.Text, msg.Options)
	} else {
		_, err = s.sender.SendText(ctx, to, msg.Text, msg.Options)
	}
	return err
}

func (s *Service) statusTTL() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.StatusTTL
}
