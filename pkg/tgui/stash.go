package tgui

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"
)

// Stash keeps values server-side for a while so callback data can carry a
// 20-character token instead of the value. Tokens never contain ':'.
type Stash[T any] struct {
	mu    sync.Mutex
	clock clockwork.Clock
	ttl   time.Duration
	max   int
	m     map[string]stashEntry[T]
}

type stashEntry[T any] struct {
	v   T
	exp time.Time
}

// NewStash defaults to a 15 minute TTL and 1000 entries.
func NewStash[T any](clock clockwork.Clock, ttl time.Duration, max int) *Stash[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if max <= 0 {
		max = 1000
	}
	return &Stash[T]{clock: clock, ttl: ttl, max: max, m: map[string]stashEntry[T]{}}
}

// Put stores v and returns its token.
func (s *Stash[T]) Put(v T) string {
	tok := xid.New().String()
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	for len(s.m) >= s.max {
		s.evictOldestLocked()
	}
	s.m[tok] = stashEntry[T]{v: v, exp: now.Add(s.ttl)}
	return tok
}

// Get returns the live value for tok.
func (s *Stash[T]) Get(tok string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(tok)
}

// Take returns the value and forgets it, so a token is honoured once.
func (s *Stash[T]) Take(tok string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.getLocked(tok)
	delete(s.m, tok)
	return v, ok
}

func (s *Stash[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *Stash[T]) getLocked(tok string) (T, bool) {
	var zero T
	e, ok := s.m[tok]
	if !ok {
		return zero, false
	}
	if !s.clock.Now().Before(e.exp) {
		delete(s.m, tok)
		return zero, false
	}
	return e.v, true
}

func (s *Stash[T]) sweepLocked(now time.Time) {
	for k, e := range s.m {
		if !now.Before(e.exp) {
			delete(s.m, k)
		}
	}
}

func (s *Stash[T]) evictOldestLocked() {
	var (
		oldest string
		at     time.Time
	)
	for k, e := range s.m {
		if oldest == "" || e.exp.Before(at) {
			oldest, at = k, e.exp
		}
	}
	delete(s.m, oldest)
}
