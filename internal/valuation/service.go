package valuation

import (
	"context"
	"errors"
	"fmt"

	"valubot/internal/storage"
	"valubot/pkg/logx"
)

var (
	ErrInvalidHandle  = errors.New("valuation: invalid handle")
	ErrHandleNotFound = errors.New("valuation: handle not found")
)

type Store interface {
	GetReport(ctx context.Context, key string) (storage.Report, error)
	InsertReport(ctx context.Context, rep storage.Report) (bool, error)
	CreateValuation(ctx context.Context, userID int64, handle, priceRange string) (storage.Valuation, error)
	UpdateUserInfo(ctx context.Context, id int64, handle string) error
}

// Resolver checks that a handle belongs to a real account.
type Resolver interface {
	ResolveHandle(ctx context.Context, handle string) (bool, error)
}

// EventSink records the check_nickname event.
type EventSink interface {
	CheckNickname(ctx context.Context, userID int64, nickname string, low, high int) error
}

type Service struct {
	store    Store
	gen      *Generator
	resolver Resolver
	events   EventSink
	log      logx.Logger
}

type Option func(*Service)

func WithResolver(r Resolver) Option { return func(s *Service) { s.resolver = r } }

func WithEvents(e EventSink) Option { return func(s *Service) { s.events = e } }

func NewService(store Store, gen *Generator, log logx.Logger, opts ...Option) *Service {
	if gen == nil {
		gen = NewGenerator(nil)
	}
	s := &Service{store: store, gen: gen, log: log.With(logx.String("comp", "valuation"))}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetOrCreate returns the cached report for handle, generating and storing
// one on a miss. When a concurrent caller stores first, the generated
// report is still returned to this caller.
func (s *Service) GetOrCreate(ctx context.Context, handle string) (Report, bool, error) {
	key := NormalizeHandle(handle)
	if key == "" {
		return Report{}, false, ErrInvalidHandle
	}
	cached, err := s.store.GetReport(ctx, key)
	switch {
	case err == nil:
		return fromStorage(cached), true, nil
	case !errors.Is(err, storage.ErrNotFound):
		return Report{}, false, err
	}

	rep := s.gen.Generate(handle)
	inserted, err := s.store.InsertReport(ctx, toStorage(key, rep))
	if err != nil {
		return Report{}, false, err
	}
	if !inserted {
		s.log.Debug("report raced; keeping generated copy", logx.String("key", key))
	}
	return rep, false, nil
}

// Appraisal is one completed valuation request.
type Appraisal struct {
	Report    Report
	Cached    bool
	Valuation storage.Valuation
}

// Appraise validates handle, checks it exists, fetches or creates its
// report, opens a valuation for the user and records the check.
func (s *Service) Appraise(ctx context.Context, userID int64, handle string) (Appraisal, error) {
	if !ValidHandle(handle) {
		return Appraisal{}, ErrInvalidHandle
	}
	if s.resolver != nil {
		ok, err := s.resolver.ResolveHandle(ctx, handle)
		if err != nil {
			return Appraisal{}, fmt.Errorf("valuation: resolve %s: %w", handle, err)
		}
		if !ok {
			return Appraisal{}, ErrHandleNotFound
		}
	}

	rep, cached, err := s.GetOrCreate(ctx, handle)
	if err != nil {
		return Appraisal{}, err
	}
	v, err := s.store.CreateValuation(ctx, userID, rep.Handle, rep.PriceRange())
	if err != nil {
		return Appraisal{}, err
	}
	if err := s.store.UpdateUserInfo(ctx, userID, ""); err != nil {
		s.log.Warn("update user info failed", logx.Int64("user_id", userID), logx.Err(err))
	}
	if s.events != nil {
		// Logged by the recorder; a valuation may exist without its event.
		_ = s.events.CheckNickname(ctx, userID, rep.Handle, rep.PriceLow, rep.PriceHigh)
	}
	return Appraisal{Report: rep, Cached: cached, Valuation: v}, nil
}

func toStorage(key string, r Report) storage.Report {
	return storage.Report{
		Key:           key,
		DisplayHandle: r.Handle,
		Structure:     r.Structure,
		Category:      r.Category,
		Rarity:        r.Rarity,
		Demand:        r.Demand,
		Score:         r.Score,
		Branding:      r.Branding,
		PriceLow:      r.PriceLow,
		PriceHigh:     r.PriceHigh,
	}
}

func fromStorage(r storage.Report) Report {
	return Report{
		Handle:    r.DisplayHandle,
		Structure: r.Structure,
		Category:  r.Category,
		Rarity:    r.Rarity,
		Demand:    r.Demand,
		Score:     r.Score,
		Branding:  r.Branding,
		PriceLow:  r.PriceLow,
		PriceHigh: r.PriceHigh,
	}
}
