package broadcast

import (
	"context"

	"valubot/pkg/logx"
)

func (s *Service) worker(ctx context.Context, queue <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-queue:
			s.exec(ctx, j)
		}
	}
}

func (s *Service) exec(ctx context.Context, j job) {
	s.update(j.id, func(st *JobStatus) {
		st.Running = true
		st.StartedAt = s.clock.Now()
	})

	res, err := s.run(ctx, j.msg, func(r Result, done int) {
		s.update(j.id, func(st *JobStatus) {
			st.Result = r
			st.Done = done
		})
	})

	st := s.update(j.id, func(st *JobStatus) {
		st.Result = res
		st.Running = false
		st.DoneAt = s.clock.Now()
		if err != nil {
			st.Err = err.Error()
		}
	})
	if err != nil {
		s.log.Warn("broadcast job ended early", logx.String("job", j.id), logx.Err(err))
	}
	if j.onDone != nil {
		j.onDone(st)
	}
	s.pruneStatus(s.clock.Now())
}
