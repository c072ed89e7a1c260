package events

import (
	"context"
	"fmt"
	"sync"

	"valubot/internal/eventbus"
	"valubot/internal/storage"
	"valubot/pkg/logx"
)

// Metadata keys written by the helpers.
const (
	MetaUsername        = "username"
	MetaGroupURL        = "group_url"
	MetaManagerUsername = "manager_username"
	MetaNickname        = "nickname"
	MetaPriceLow        = "price_low"
	MetaPriceHigh       = "price_high"
	MetaPrice           = "price"
)

type Store interface {
	RecordEvent(ctx context.Context, userID int64, eventType string, meta map[string]any) (storage.Event, error)
}

// Recorded is the payload of eventbus.TopicEventRecorded.
type Recorded struct {
	Event storage.Event
	Type  Type
}

// Handler reacts to a stored event. It runs inside Record on the caller's
// goroutine and must not block.
type Handler func(ctx context.Context, rec Recorded)

type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger

	hmu      sync.RWMutex
	handlers []Handler
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	return &Recorder{store: store, bus: bus, log: log.With(logx.String("comp", "events"))}
}

// OnRecorded registers h for every event stored from now on. Unlike bus
// subscribers, handlers never miss an event.
func (r *Recorder) OnRecorded(h Handler) {
	r.hmu.Lock()
	r.handlers = append(r.handlers, h)
	r.hmu.Unlock()
}

// Record appends the event, runs the handlers and announces it on the bus. Failures are
// logged and returned; chat handlers log and carry on.
func (r *Recorder) Record(ctx context.Context, userID int64, t Type, meta map[string]any) (storage.Event, error) {
	if !t.Valid() {
		return storage.Event{}, fmt.Errorf("events: unknown type %q", t)
	}
	ev, err := r.store.RecordEvent(ctx, userID, string(t), meta)
	if err != nil {
		r.log.Warn("record event failed", logx.Int64("user_id", userID), logx.String("type", string(t)), logx.Err(err))
		return storage.Event{}, err
	}
	r.log.Debug("event recorded", logx.Int64("user_id", userID), logx.String("type", string(t)), logx.Int64("id", ev.ID))
	rec := Recorded{Event: ev, Type: t}
	r.hmu.RLock()
	hs := r.handlers
	r.hmu.RUnlock()
	for _, h := range hs {
		h(context.WithoutCancel(ctx), rec)
	}
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: eventbus.TopicEventRecorded, Time: ev.At, Data: rec})
	}
	return ev, nil
}

func withUsername(username string) map[string]any {
	if username == "" {
		return nil
	}
	return map[string]any{MetaUsername: username}
}

func (r *Recorder) FirstStart(ctx context.Context, userID int64, username string) error {
	_, err := r.Record(ctx, userID, FirstStart, withUsername(username))
	return err
}

func (r *Recorder) BotRestart(ctx context.Context, userID int64, username string) error {
	_, err := r.Record(ctx, userID, BotRestart, withUsername(username))
	return err
}

func (r *Recorder) GoToGroup(ctx context.Context, userID int64, groupURL string) error {
	_, err := r.Record(ctx, userID, GoToGroup, map[string]any{MetaGroupURL: groupURL})
	return err
}

func (r *Recorder) ContactManager(ctx context.Context, userID int64, managerUsername string) error {
	_, err := r.Record(ctx, userID, ContactManager, map[string]any{MetaManagerUsername: managerUsername})
	return err
}

func (r *Recorder) CheckNickname(ctx context.Context, userID int64, nickname string, low, high int) error {
	_, err := r.Record(ctx, userID, CheckNickname, map[string]any{
		MetaNickname:  nickname,
		MetaPriceLow:  low,
		MetaPriceHigh: high,
	})
	return err
}

func (r *Recorder) ExitWithoutAction(ctx context.Context, userID int64) error {
	_, err := r.Record(ctx, userID, ExitWithoutAction, nil)
	return err
}

func (r *Recorder) StartCheckout(ctx context.Context, userID int64, nickname string) error {
	_, err := r.Record(ctx, userID, StartCheckout, map[string]any{MetaNickname: nickname})
	return err
}

func (r *Recorder) AbandonedCheckout(ctx context.Context, userID int64, nickname string) error {
	_, err := r.Record(ctx, userID, AbandonedCheckout, map[string]any{MetaNickname: nickname})
	return err
}

func (r *Recorder) SuccessfulOrder(ctx context.Context, userID int64, nickname, price string) error {
	_, err := r.Record(ctx, userID, SuccessfulOrder, map[string]any{MetaNickname: nickname, MetaPrice: price})
	return err
}
