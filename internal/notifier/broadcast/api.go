package broadcast

import (
	"time"

	"github.com/rs/xid"

	"valubot/pkg/logx"
)

// Submit queues msg for the background worker and returns the job id.
// onDone, when set, runs on the worker after the job finishes. A job that
// cannot be queued is recorded as finished with ErrQueueFull.
func (s *Service) Submit(msg Message, onDone func(JobStatus)) string {
	now := s.clock.Now()
	id := xid.New().String()
	s.pruneStatus(now)

	s.statusMu.Lock()
	s.status[id] = &JobStatus{ID: id, CreatedAt: now}
	s.statusMu.Unlock()

	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()

	if q != nil {
		select {
		case q <- job{id: id, msg: msg, onDone: onDone}:
			s.log.Debug("broadcast job queued", logx.String("job", id), logx.Int("queue_len", len(q)))
			return id
		default:
		}
	}
	s.log.Warn("broadcast job dropped", logx.String("job", id), logx.Bool("running", q != nil))
	st := s.update(id, func(st *JobStatus) {
		st.DoneAt = now
		st.Err = ErrQueueFull.Error()
	})
	if onDone != nil {
		onDone(st)
	}
	return id
}

// Status returns a copy of the job's progress.
func (s *Service) Status(jobID string) (JobStatus, bool) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st, ok := s.status[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

func (s *Service) update(id string, fn func(*JobStatus)) JobStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	st, ok := s.status[id]
	if !ok {
		return JobStatus{ID: id}
	}
	fn(st)
	return *st
}

// pruneStatus drops finished jobs older than the TTL, then the oldest
// finished jobs above statusMax. Running or queued jobs are kept.
func (s *Service) pruneStatus(now time.Time) {
	ttl := s.statusTTL()
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	for id, st := range s.status {
		if st.Finished() && now.Sub(st.DoneAt) > ttl {
			delete(s.status, id)
		}
	}
	for len(s.status) >= statusMax {
		oldest := ""
		var at time.Time
		for id, st := range s.status {
			if !st.Finished() {
				continue
			}
			if oldest == "" || st.DoneAt.Before(at) {
				oldest, at = id, st.DoneAt
			}
		}
		if oldest == "" {
			return
		}
		delete(s.status, oldest)
	}
}
