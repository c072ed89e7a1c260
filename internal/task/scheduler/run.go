package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"valubot/pkg/logx"
)

const skipWarnThrottle = time.Minute

// fire runs one trigger of d. ran is false when the previous run was still
// in progress.
func (s *Service) fire(base context.Context, d *scheduleDef) (ran bool, err error) {
	if !d.running.CompareAndSwap(false, true) {
		d.skips.Add(1)
		s.reportSkip(d.name)
		return false, nil
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer d.running.Store(false)

	ctx, cancel := context.WithTimeout(base, d.timeout)
	defer cancel()

	start := time.Now()
	err = s.call(ctx, d)
	took := time.Since(start)
	d.runs.Add(1)

	item := HistoryItem{Name: d.name, Started: start, Took: took}
	if err != nil {
		item.Err = err.Error()
		s.log.Warn("scheduled job failed", logx.String("name", d.name), logx.Duration("took", took), logx.Err(err))
	} else {
		s.log.Debug("scheduled job done", logx.String("name", d.name), logx.Duration("took", took))
	}
	d.mu.Lock()
	d.lastRun, d.lastErr = start, item.Err
	d.mu.Unlock()
	s.appendHistory(item)
	return true, err
}

func (s *Service) call(ctx context.Context, d *scheduleDef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled job panicked", logx.String("name", d.name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.job(ctx)
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.hmu.Unlock()
}

// reportSkip logs an overlap skip at most once per skipWarnThrottle per
// schedule.
func (s *Service) reportSkip(name string) {
	now := time.Now()
	s.skipMu.Lock()
	last := s.lastSkip[name]
	if !last.IsZero() && now.Sub(last) < skipWarnThrottle {
		s.skipMu.Unlock()
		return
	}
	s.lastSkip[name] = now
	s.skipMu.Unlock()
	s.log.Warn("schedule trigger skipped; previous run still in progress", logx.String("name", name))
}
