package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"valubot/pkg/logx"
)

// AddSchedule registers job under name, replacing a schedule with the same
// name. schedule accepts everything ParseSchedule does. A zero timeout
// uses the configured default.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job func(ctx context.Context) error) error {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	spec := ps.Cron
	if ps.Kind == SpecInterval {
		spec = "@every " + ps.Every.String()
	} else if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	return s.add(name, spec, timeout, job)
}

func (s *Service) add(name, spec string, timeout time.Duration, job func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("scheduler: name required")
	}
	if job == nil {
		return errors.New("scheduler: job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if old, ok := s.defs[name]; ok {
		if s.c != nil && old.entryID != 0 {
			s.c.Remove(old.entryID)
		}
	} else {
		s.order = append(s.order, name)
	}
	d := &scheduleDef{name: name, spec: spec, timeout: timeout, job: job}
	s.defs[name] = d
	if s.c != nil {
		s.registerLocked(d)
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec), logx.Duration("timeout", timeout))
	return nil
}

// Remove unregisters name and reports whether it existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// RunNow runs name immediately in the caller's goroutine, honouring the
// overlap rule and the schedule's timeout.
func (s *Service) RunNow(name string) error {
	s.mu.Lock()
	d, ok := s.defs[name]
	base := s.baseCtx
	started := s.c != nil
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	if !started {
		return ErrNotStarted
	}
	ran, err := s.fire(base, d)
	if !ran {
		return ErrAlreadyRunning
	}
	return err
}

func (s *Service) registerLocked(d *scheduleDef) {
	base := s.baseCtx
	job := cron.FuncJob(func() { _, _ = s.fire(base, d) })

	if every, ok := strings.CutPrefix(d.spec, "@every "); ok {
		if dur, err := time.ParseDuration(strings.TrimSpace(every)); err == nil && dur > 0 {
			sched, jitter := intervalWithSpread(dur, time.Now().In(s.loc), d.name)
			d.entryID = s.c.Schedule(sched, job)
			s.log.Debug("interval scheduled", logx.String("name", d.name), logx.Duration("spread", jitter))
			return
		}
	}
	id, err := s.c.AddJob(d.spec, job)
	if err != nil {
		s.log.Error("schedule register failed", logx.String("name", d.name), logx.String("spec", d.spec), logx.Err(err))
		return
	}
	d.entryID = id
}
