package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valubot/internal/eventbus"
	"valubot/internal/storage"
	"valubot/pkg/logx"
)

func TestTypeTable(t *testing.T) {
	all := All()
	require.Len(t, all, 9)
	for _, typ := range all {
		assert.True(t, typ.Valid(), typ)
		assert.NotEqual(t, fallbackGlyph, typ.Glyph(), typ)
		parsed, ok := Parse(string(typ))
		assert.True(t, ok)
		assert.Equal(t, typ, parsed)
	}
	assert.Equal(t, "🛒", StartCheckout.Glyph())
	assert.Equal(t, fallbackGlyph, Type("mystery").Glyph())
	assert.Equal(t, "mystery", Type("mystery").Label())
	_, ok := Parse("mystery")
	assert.False(t, ok)
}

type fakeStore struct {
	got  []storage.Event
	fail error
}

func (f *fakeStore) RecordEvent(_ context.Context, userID int64, typ string, meta map[string]any) (storage.Event, error) {
	if f.fail != nil {
		return storage.Event{}, f.fail
	}
	ev := storage.Event{ID: int64(len(f.got) + 1), UserID: userID, Type: typ, At: time.Now(), Metadata: meta}
	f.got = append(f.got, ev)
	return ev, nil
}

func TestRecorderPublishes(t *testing.T) {
	store := &fakeStore{}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4, eventbus.TopicEventRecorded)
	defer unsub()

	rec := NewRecorder(store, bus, logx.Nop())
	require.NoError(t, rec.CheckNickname(context.Background(), 42, "alice123", 1200, 2000))

	require.Len(t, store.got, 1)
	assert.Equal(t, map[string]any{MetaNickname: "alice123", MetaPriceLow: 1200, MetaPriceHigh: 2000}, store.got[0].Metadata)

	ev := <-ch
	payload, ok := ev.Data.(Recorded)
	require.True(t, ok)
	assert.Equal(t, CheckNickname, payload.Type)
	assert.Equal(t, int64(42), payload.Event.UserID)
}

func TestRecorderRejectsUnknownType(t *testing.T) {
	rec := NewRecorder(&fakeStore{}, nil, logx.Nop())
	_, err := rec.Record(context.Background(), 1, Type("nope"), nil)
	assert.Error(t, err)
}

func TestRecorderReturnsStoreError(t *testing.T) {
	boom := errors.New("disk full")
	rec := NewRecorder(&fakeStore{fail: boom}, eventbus.New(), logx.Nop())
	assert.ErrorIs(t, rec.ExitWithoutAction(context.Background(), 1), boom)
}

func TestRecorderRunsHandlersForEveryEvent(t *testing.T) {
	bus := eventbus.New()
	_, unsub := bus.Subscribe(1)
	defer unsub()

	store := &fakeStore{}
	rec := NewRecorder(store, bus, logx.Nop())
	var got []Type
	var ctxErrs []error
	rec.OnRecorded(func(ctx context.Context, r Recorded) {
		got = append(got, r.Type)
		ctxErrs = append(ctxErrs, ctx.Err())
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, rec.StartCheckout(ctx, 1, "alice"))
	cancel()
	require.NoError(t, rec.SuccessfulOrder(ctx, 1, "alice", "$10"))
	require.NoError(t, rec.SuccessfulOrder(context.Background(), 2, "bob", "$20"))

	assert.Equal(t, []Type{StartCheckout, SuccessfulOrder, SuccessfulOrder}, got)
	assert.Equal(t, []error{nil, nil, nil}, ctxErrs, "handlers outlive the caller's cancellation")

	store.fail = errors.New("locked")
	require.Error(t, rec.FirstStart(context.Background(), 3, ""))
	assert.Len(t, got, 3, "failed records do not reach handlers")
}
