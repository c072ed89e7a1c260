package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"valubot/pkg/logx"
)

type RestartOption func(*restartPolicy)

type restartPolicy struct {
	minBackoff  time.Duration
	maxBackoff  time.Duration
	maxRestarts int
	restartNil  bool
	publishErr  bool
	fatalOnQuit bool
}

// WithRestartBackoff sets the exponential backoff window between runs.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.minBackoff = min
		}
		if max > 0 {
			p.maxBackoff = max
		}
	}
}

// WithMaxRestarts gives up after n failed runs. Zero means unlimited.
func WithMaxRestarts(n int) RestartOption { return func(p *restartPolicy) { p.maxRestarts = n } }

// WithRestartOnCleanExit treats a nil return as a failure to restart from.
func WithRestartOnCleanExit(enabled bool) RestartOption {
	return func(p *restartPolicy) { p.restartNil = enabled }
}

// WithPublishFirstError records the first failure as the supervisor error
// while still restarting.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(p *restartPolicy) { p.publishErr = enabled }
}

// WithFatalOnFinalError records the error once restarts are exhausted.
func WithFatalOnFinalError(enabled bool) RestartOption {
	return func(p *restartPolicy) { p.fatalOnQuit = enabled }
}

const healthyRun = 30 * time.Second

// GoRestart runs fn until the context ends, restarting it after an error or
// a panic with jittered exponential backoff. Runs that lasted longer than
// healthyRun reset the backoff.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	p := restartPolicy{minBackoff: 250 * time.Millisecond, maxBackoff: 30 * time.Second}
	for _, o := range opts {
		o(&p)
	}
	if p.maxBackoff < p.minBackoff {
		p.maxBackoff = p.minBackoff
	}

	s.Go0(name+".restart", func(ctx context.Context) {
		backoff := p.minBackoff
		for attempt := 0; ; attempt++ {
			if ctx.Err() != nil {
				return
			}
			started := s.stats.begin(name, attempt > 0, s.clock.Now())
			err := s.runGuarded(name, fn)

			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				s.stats.end(name, started, s.clock.Now(), nil)
				return
			}
			if err == nil {
				if !p.restartNil {
					s.stats.end(name, started, s.clock.Now(), nil)
					return
				}
				err = errors.New("exited")
			}

			wrapped := fmt.Errorf("%s: %w", name, err)
			now := s.clock.Now()
			s.stats.end(name, started, now, wrapped)
			if p.publishErr {
				s.firstErr.CompareAndSwap(nil, &wrapped)
			}
			if p.maxRestarts > 0 && attempt+1 > p.maxRestarts {
				s.log.Error("goroutine gave up", logx.String("name", name), logx.Int("restarts", attempt), logx.Err(err))
				if p.fatalOnQuit {
					s.fail(wrapped)
				}
				return
			}
			if now.Sub(time.Time(started)) >= healthyRun {
				backoff = p.minBackoff
			}

			wait := min(max(backoff, p.minBackoff), p.maxBackoff)
			if j := int64(wait) / 5; j > 0 {
				wait += time.Duration(rand.Int64N(j + 1))
			}
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", wait), logx.Err(err))

			select {
			case <-ctx.Done():
				return
			case <-s.clock.After(wait):
			}
			backoff = min(backoff*2, p.maxBackoff)
		}
	})
}

// GoRestart0 is GoRestart for functions without an error result; only
// panics trigger a restart unless WithRestartOnCleanExit is set.
func (s *Supervisor) GoRestart0(name string, fn func(ctx context.Context), opts ...RestartOption) {
	if fn == nil {
		return
	}
	s.GoRestart(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}, opts...)
}
