package dashboard

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpgo/loan-simulator/internal/cache"
	"github.com/rpgo/loan-simulator/internal/calculation"
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/internal/simulation"
	"github.com/rpgo/loan-simulator/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

const testUser = "user-1"

// syncQueue drops tasks; tests call ComputeAndPersist themselves.
type syncQueue struct{}

func (syncQueue) Enqueue(context.Context, simulation.Task) error { return nil }

type fixture struct {
	dash  *Service
	sims  *simulation.Service
	store *store.Store
	cache *cache.MemoryCache
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "dash.db"))
	require.NoError(t, err)
	st.SetClock(func() time.Time { return testNow })
	t.Cleanup(func() { _ = st.Close() })

	simulation.SetNowFunc(func() time.Time { return testNow })
	t.Cleanup(func() { simulation.SetNowFunc(time.Now) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := calculation.NewProjectionEngine()
	sims := simulation.NewService(st, syncQueue{}, engine, logger)
	mc := cache.NewMemoryCache(time.Minute)
	return &fixture{
		dash:  NewService(st, sims, engine, mc, logger),
		sims:  sims,
		store: st,
		cache: mc,
	}
}

func (f *fixture) addLoan(t *testing.T, id, balance, rate string, term int) {
	t.Helper()
	require.NoError(t, f.store.CreateLoan(context.Background(), &domain.Loan{
		ID:                 id,
		UserID:             testUser,
		Name:               id,
		Principal:          decimal.NewFromInt(20000),
		RemainingBalance:   decimal.RequireFromString(balance),
		AnnualRate:         decimal.RequireFromString(rate),
		TermMonths:         term,
		OriginalTermMonths: term,
		StartMonth:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
}

func TestGet_EmptyPortfolio(t *testing.T) {
	f := setup(t)
	v, err := f.dash.Get(context.Background(), testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", v.Month)
	assert.Zero(t, v.Totals.Loans)
	assert.Nil(t, v.ActiveSimulation)
	assert.Empty(t, v.Baseline.Points)
	assert.NotNil(t, v.CurrentMonthLogs)
}

func TestGet_TotalsAndCurves(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addLoan(t, "car", "9000", "0.069", 60)
	f.addLoan(t, "student", "15000", "0.045", 120)
	require.NoError(t, f.store.UpsertSettings(ctx, &domain.UserSettings{
		UserID:                  testUser,
		MonthlyOverpaymentLimit: decimal.RequireFromString("100.01"),
	}))

	v, err := f.dash.Get(ctx, testUser, testNow)
	require.NoError(t, err)

	assert.Equal(t, 2, v.Totals.Loans)
	assert.Equal(t, 2, v.Totals.OpenLoans)
	assert.True(t, v.Totals.TotalBalance.Equal(decimal.NewFromInt(24000)))
	assert.True(t, v.Totals.TotalStandardPayment.IsPositive())

	assert.True(t, v.WithExtra.ExtraPerLoan.Equal(decimal.NewFromInt(50)))
	assert.Less(t, v.WithExtra.MonthsToPayoff, v.Baseline.MonthsToPayoff)
	assert.True(t, v.WithExtra.TotalInterest.LessThan(v.Baseline.TotalInterest))

	require.NotEmpty(t, v.Baseline.Points)
	first := v.Baseline.Points[0]
	assert.Equal(t, "2025-03-01", first.Month)
	last := v.Baseline.Points[len(v.Baseline.Points)-1]
	assert.True(t, last.Balance.IsZero())
	assert.True(t, last.CumulativeInterest.Equal(v.Baseline.TotalInterest))
}

func TestGet_ActiveSimulationAndLedger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addLoan(t, "car", "9000", "0.069", 60)
	f.addLoan(t, "student", "15000", "0.045", 120)

	limit := decimal.NewFromInt(200)
	res, err := f.sims.QueueSimulation(ctx, testUser, simulation.QueueCommand{
		Strategy:                domain.StrategyAvalanche,
		MonthlyOverpaymentLimit: &limit,
	})
	require.NoError(t, err)
	f.sims.ComputeAndPersist(ctx, testUser, res.SimulationID)
	_, err = f.sims.ActivateSimulation(ctx, testUser, res.SimulationID)
	require.NoError(t, err)

	now := time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)
	v, err := f.dash.Get(ctx, testUser, now)
	require.NoError(t, err)

	require.NotNil(t, v.ActiveSimulation)
	assert.Equal(t, res.SimulationID, v.ActiveSimulation.SimulationID)
	assert.Equal(t, domain.StatusActive, v.ActiveSimulation.Status)
	assert.True(t, v.ActiveSimulation.TotalInterestSaved.IsPositive())

	require.Len(t, v.CurrentMonthLogs, 2)
	for _, l := range v.CurrentMonthLogs {
		assert.Equal(t, domain.PaymentPending, l.PaymentStatus)
		assert.Equal(t, domain.OverpaymentScheduled, l.OverpaymentStatus)
	}

	all, err := f.store.ListExecutionLogs(ctx, testUser, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestGet_UsesCacheUntilInvalidated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addLoan(t, "car", "9000", "0.069", 60)

	first, err := f.dash.Get(ctx, testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Len())

	// a write behind the dashboard's back is invisible until invalidation
	f.addLoan(t, "boat", "5000", "0.08", 48)
	cached, err := f.dash.Get(ctx, testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, first.Totals.Loans, cached.Totals.Loans)
	assert.True(t, first.Totals.TotalBalance.Equal(cached.Totals.TotalBalance))

	require.NoError(t, f.cache.Invalidate(ctx, testUser))
	fresh, err := f.dash.Get(ctx, testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Totals.Loans)

	// a new month never reuses last month's view
	next, err := f.dash.Get(ctx, testUser, testNow.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, "2025-04-01", next.Month)
}

// racingCache lets a write land between the dashboard's generation read
// and its cache write.
type racingCache struct {
	*cache.MemoryCache
	onGeneration func()
}

func (r *racingCache) Generation(ctx context.Context, userID string) (uint64, error) {
	gen, err := r.MemoryCache.Generation(ctx, userID)
	if r.onGeneration != nil {
		r.onGeneration()
		r.onGeneration = nil
	}
	return gen, err
}

func TestGet_InvalidationDuringBuildIsNotCached(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addLoan(t, "car", "9000", "0.069", 60)

	rc := &racingCache{MemoryCache: f.cache}
	dash := NewService(f.store, f.sims, calculation.NewProjectionEngine(), rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rc.onGeneration = func() {
		f.addLoan(t, "boat", "5000", "0.08", 48)
		require.NoError(t, f.cache.Invalidate(ctx, testUser))
	}

	_, err := dash.Get(ctx, testUser, testNow)
	require.NoError(t, err)
	assert.Zero(t, f.cache.Len(), "view built before the invalidation must not be cached")

	// the next read rebuilds and sees the loan added mid-build
	v, err := dash.Get(ctx, testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Totals.Loans)
	assert.Equal(t, 1, f.cache.Len())
}

func TestExtraPerLoan(t *testing.T) {
	tests := []struct {
		budget string
		n      int
		want   string
	}{
		{"100", 3, "33.33"},
		{"100.01", 2, "50"},
		{"0", 2, "0"},
		{"50", 0, "0"},
		{"-10", 2, "0"},
	}
	for _, tt := range tests {
		got := ExtraPerLoan(decimal.RequireFromString(tt.budget), tt.n)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "budget %s over %d: got %s", tt.budget, tt.n, got)
	}
}
