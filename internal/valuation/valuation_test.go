package valuation

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valubot/internal/storage"
	"valubot/pkg/logx"
)

func TestValidHandle(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"alice123":                          true,
		"@alice123":                         true,
		"abcd":                              true,
		"abc":                               false,
		"1alice":                            false,
		"al ice":                            false,
		"alice-bob":                         false,
		"a_b_c_d_e":                         true,
		"@":                                 false,
		"":                                  false,
		"a234567890123456789012345678901b":  true,
		"a2345678901234567890123456789012x": false,
	}
	for h, want := range tests {
		assert.Equal(t, want, ValidHandle(h), h)
	}
}

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "alice", NormalizeHandle("  @Alice "))
	assert.Equal(t, "bob_1", NormalizeHandle("bob_1"))
}

func TestGenerateBands(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewPCG(1, 2)))
	for range 2000 {
		r := g.Generate("@Alice123")
		require.Equal(t, "@Alice123", r.Handle)
		require.Equal(t, "8 characters", r.Structure)

		require.Zero(t, r.PriceLow%10, r.PriceLow)
		require.GreaterOrEqual(t, r.PriceLow, 1100)
		require.LessOrEqual(t, r.PriceLow, 3500)
		if r.PriceHigh != 4200 {
			require.GreaterOrEqual(t, r.PriceHigh, r.PriceLow+500)
		}
		require.LessOrEqual(t, r.PriceHigh, 4500)

		require.GreaterOrEqual(t, r.Score, 8.2)
		require.LessOrEqual(t, r.Score, 9.9)
		require.Len(t, r.ScoreText(), 3)

		require.Contains(t, Categories, r.Category)
		require.Contains(t, Rarities, r.Rarity)
		require.Contains(t, Demands, r.Demand)
		require.Contains(t, Brandings, r.Branding)
	}
}

func TestRoundTen(t *testing.T) {
	cases := map[int]int{1100: 1100, 1104: 1100, 1105: 1100, 1115: 1120, 1116: 1120, 3495: 3500, 3500: 3500}
	for in, want := range cases {
		assert.Equal(t, want, roundTen(in), in)
	}
}

type fixedRand struct{ n int }

func (f fixedRand) IntN(n int) int   { return min(f.n, n-1) }
func (f fixedRand) Float64() float64 { return 0.999999 }

func TestHighCeiling(t *testing.T) {
	r := NewGenerator(fixedRand{n: 5000}).Generate("alice")
	assert.Equal(t, 3500, r.PriceLow)
	assert.Equal(t, 4200, r.PriceHigh)
	assert.Equal(t, 9.9, r.Score)
}

func newStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.Config{
		Path: filepath.Join(t.TempDir(), "valuation.db"),
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGetOrCreateIsStable(t *testing.T) {
	svc := NewService(newStore(t), NewGenerator(rand.New(rand.NewPCG(7, 7))), logx.Nop())
	ctx := context.Background()

	first, cached, err := svc.GetOrCreate(ctx, "@Alice123")
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := svc.GetOrCreate(ctx, "alice123")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
}

func TestGetOrCreateConcurrentFirstWriterWins(t *testing.T) {
	store := newStore(t)
	svc := NewService(store, nil, logx.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.GetOrCreate(ctx, "racer")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := store.GetReport(ctx, "racer")
	require.NoError(t, err)
	again, cached, err := svc.GetOrCreate(ctx, "racer")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, stored.PriceLow, again.PriceLow)
}

type stubResolver struct {
	exists bool
	err    error
}

func (s stubResolver) ResolveHandle(context.Context, string) (bool, error) { return s.exists, s.err }

type recordedCheck struct {
	user      int64
	nick      string
	low, high int
}

type checkSink struct {
	got  []recordedCheck
	fail error
}

func (c *checkSink) CheckNickname(_ context.Context, userID int64, nick string, low, high int) error {
	c.got = append(c.got, recordedCheck{userID, nick, low, high})
	return c.fail
}

func TestAppraise(t *testing.T) {
	store := newStore(t)
	sink := &checkSink{}
	svc := NewService(store, nil, logx.Nop(), WithResolver(stubResolver{exists: true}), WithEvents(sink))
	ctx := context.Background()

	a, err := svc.Appraise(ctx, 42, "alice123")
	require.NoError(t, err)
	assert.NotZero(t, a.Valuation.ID)
	assert.Equal(t, a.Report.PriceRange(), a.Valuation.PriceRange)
	require.Len(t, sink.got, 1)
	assert.Equal(t, recordedCheck{42, "@alice123", a.Report.PriceLow, a.Report.PriceHigh}, sink.got[0])

	u, err := store.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.False(t, u.LastValuationAt.IsZero())
}

func TestAppraiseSurvivesEventFailure(t *testing.T) {
	store := newStore(t)
	sink := &checkSink{fail: errors.New("database is locked")}
	svc := NewService(store, nil, logx.Nop(), WithEvents(sink))
	ctx := context.Background()

	a, err := svc.Appraise(ctx, 7, "bob_store")
	require.NoError(t, err)
	require.Len(t, sink.got, 1)

	v, err := store.GetValuation(ctx, a.Valuation.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.UserID)
}

func TestAppraiseErrors(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := NewService(store, nil, logx.Nop()).Appraise(ctx, 1, "x!")
	assert.ErrorIs(t, err, ErrInvalidHandle)

	_, err = NewService(store, nil, logx.Nop(), WithResolver(stubResolver{})).Appraise(ctx, 1, "ghost_user")
	assert.ErrorIs(t, err, ErrHandleNotFound)
	_, err = store.GetReport(ctx, "ghost_user")
	assert.ErrorIs(t, err, storage.ErrNotFound, "not-found handles are not cached")

	boom := errors.New("api down")
	_, err = NewService(store, nil, logx.Nop(), WithResolver(stubResolver{err: boom})).Appraise(ctx, 1, "someone")
	assert.ErrorIs(t, err, boom)
}
