package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeFiltersByPrefix(t *testing.T) {
	bus := New()
	notify, unsub := bus.Subscribe(4, "notify.")
	defer unsub()
	all, unsubAll := bus.Subscribe(4)
	defer unsubAll()

	bus.Publish(Event{Type: TopicEventRecorded})
	bus.Publish(Event{Type: TopicNotifySent, Data: 7})

	got := <-notify
	assert.Equal(t, TopicNotifySent, got.Type)
	assert.False(t, got.Time.IsZero())
	assert.Len(t, notify, 0)
	assert.Len(t, all, 2)
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := New()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	bus.Publish(Event{Type: "a"})
	bus.Publish(Event{Type: "b"})
	require.Len(t, ch, 1)
	assert.Equal(t, "a", (<-ch).Type)
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	bus := New()
	ch, unsub := bus.Subscribe(1)
	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	bus.Publish(Event{Type: "after"})
}
