package supervisor

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Counters are operational signals, not synchronization.
type Counters struct {
	Active  int64  `json:"active"`
	Started uint64 `json:"started"`
}

// GoroutineStats aggregates every run sharing a name.
type GoroutineStats struct {
	Name         string        `json:"name"`
	Active       int64         `json:"active"`
	Runs         uint64        `json:"runs"`
	Restarts     uint64        `json:"restarts"`
	Panics       uint64        `json:"panics"`
	LastStartAt  time.Time     `json:"last_start_at"`
	LastStopAt   time.Time     `json:"last_stop_at"`
	LastErr      string        `json:"last_err,omitempty"`
	LastPanic    string        `json:"last_panic,omitempty"`
	TotalRuntime time.Duration `json:"total_runtime"`
}

type Snapshot struct {
	Counters   Counters         `json:"counters"`
	FirstError string           `json:"first_error,omitempty"`
	Goroutines []GoroutineStats `json:"goroutines"`
}

type startMark time.Time

type entry struct{ GoroutineStats }

type stats struct {
	started atomic.Uint64
	active  atomic.Int64

	mu     sync.Mutex
	byName map[string]*entry
}

func (st *stats) spawned() {
	st.started.Add(1)
	st.active.Add(1)
}

func (st *stats) exited() { st.active.Add(-1) }

func (st *stats) get(name string) *entry {
	e := st.byName[name]
	if e == nil {
		e = &entry{GoroutineStats{Name: name}}
		st.byName[name] = e
	}
	return e
}

func (st *stats) begin(name string, restart bool, now time.Time) startMark {
	st.mu.Lock()
	e := st.get(name)
	e.Runs++
	e.Active++
	if restart {
		e.Restarts++
	}
	e.LastStartAt = now
	st.mu.Unlock()
	return startMark(now)
}

func (st *stats) end(name string, started startMark, now time.Time, err error) {
	st.mu.Lock()
	e := st.get(name)
	if e.Active > 0 {
		e.Active--
	}
	e.LastStopAt = now
	e.TotalRuntime += now.Sub(time.Time(started))
	if err != nil {
		e.LastErr = err.Error()
	}
	st.mu.Unlock()
}

func (st *stats) panicked(name string, _ time.Time, p any) {
	st.mu.Lock()
	e := st.get(name)
	e.Panics++
	e.LastPanic = fmt.Sprint(p)
	st.mu.Unlock()
}

func (s *Supervisor) Counters() Counters {
	if s == nil {
		return Counters{}
	}
	return Counters{Active: s.stats.active.Load(), Started: s.stats.started.Load()}
}

// Snapshot lists goroutines active first, then most recently started.
func (s *Supervisor) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	snap := Snapshot{Counters: s.Counters()}
	if err := s.Err(); err != nil {
		snap.FirstError = err.Error()
	}
	s.stats.mu.Lock()
	for _, e := range s.stats.byName {
		snap.Goroutines = append(snap.Goroutines, e.GoroutineStats)
	}
	s.stats.mu.Unlock()

	gs := snap.Goroutines
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].Active != gs[j].Active {
			return gs[i].Active > gs[j].Active
		}
		if !gs[i].LastStartAt.Equal(gs[j].LastStartAt) {
			return gs[i].LastStartAt.After(gs[j].LastStartAt)
		}
		return gs[i].Name < gs[j].Name
	})
	return snap
}
