// Package eventbus is an in-process fanout for small lifecycle signals.
//
// Publish never blocks: every subscriber owns a buffered channel and a slow
// subscriber loses events instead of stalling the publisher.
package eventbus

import (
	"strings"
	"sync"
	"time"
)

// Topics published inside the bot.
const (
	TopicEventRecorded     = "event.recorded"
	TopicUserBlocked       = "user.blocked"
	TopicReminderSent      = "reminder.sent"
	TopicReminderChecked   = "reminder.checked"
	TopicBroadcastFinished = "broadcast.finished"
	TopicConfigReloaded    = "config.reloaded"
	TopicNotifyQueued      = "notify.queued"
	TopicNotifySent        = "notify.sent"
	TopicNotifyFailed      = "notify.failed"
	TopicNotifyDropped     = "notify.dropped"
	TopicNotifyDeduped     = "notify.deduped"
)

type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	// Subscribe returns a channel receiving events whose type starts with
	// one of prefixes (all events when none are given).
	Subscribe(buffer int, prefixes ...string) (ch <-chan Event, unsubscribe func())
}

func New() Bus { return &memBus{subs: map[int]*sub{}} }

type sub struct {
	ch       chan Event
	prefixes []string
	closed   bool
}

func (s *sub) wants(topic string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}

type memBus struct {
	mu   sync.RWMutex
	next int
	subs map[int]*sub
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.closed || !s.wants(e.Type) {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int, prefixes ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &sub{ch: make(chan Event, buffer), prefixes: prefixes}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			s.closed = true
			delete(b.subs, id)
			close(s.ch)
			b.mu.Unlock()
		})
	}
}
