package router

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultConversationTTL = 30 * time.Minute

// State is what a user is expected to type next.
type State struct {
	Owner string
	Step  string
	Data  map[string]string
	until time.Time
}

// Value returns Data[key], "" when unset.
func (s State) Value(key string) string { return s.Data[key] }

// Conversations tracks per-user input state. Entries expire after the TTL
// of inactivity.
type Conversations struct {
	mu    sync.Mutex
	clock clockwork.Clock
	ttl   time.Duration
	m     map[int64]State
}

func NewConversations(clock clockwork.Clock, ttl time.Duration) *Conversations {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	return &Conversations{clock: clock, ttl: ttl, m: map[int64]State{}}
}

func (c *Conversations) Set(userID int64, owner, step string, data map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	c.m[userID] = State{Owner: owner, Step: step, Data: data, until: now.Add(c.ttl)}
	for id, st := range c.m {
		if !now.Before(st.until) {
			delete(c.m, id)
		}
	}
}

// Get returns the live state; a match refreshes its expiry.
func (c *Conversations) Get(userID int64) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[userID]
	if !ok {
		return State{}, false
	}
	now := c.clock.Now()
	if !now.Before(st.until) {
		delete(c.m, userID)
		return State{}, false
	}
	st.until = now.Add(c.ttl)
	c.m[userID] = st
	return st, true
}

// Clear drops userID's state if it belongs to owner ("" clears any).
func (c *Conversations) Clear(userID int64, owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.m[userID]; ok && (owner == "" || st.Owner == owner) {
		delete(c.m, userID)
	}
}

func (c *Conversations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
