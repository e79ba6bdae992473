// Package dashboard assembles the per-user overview: portfolio totals, the
// active simulation headline, baseline and flat-extra payoff curves and the
// current month's execution ledger. Views are cached per user as JSON and
// dropped by the portfolio service on every mutation.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpgo/loan-simulator/internal/cache"
	"github.com/rpgo/loan-simulator/internal/calculation"
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/internal/store"
	"github.com/rpgo/loan-simulator/pkg/dateutil"
	money "github.com/rpgo/loan-simulator/pkg/decimal"
	"github.com/shopspring/decimal"
)

// Store is the read side the dashboard needs. *store.Store satisfies it.
type Store interface {
	ListLoans(ctx context.Context, userID string) ([]domain.Loan, error)
	GetSettings(ctx context.Context, userID string) (domain.UserSettings, error)
	GetActiveSimulation(ctx context.Context, userID string) (*domain.Simulation, error)
	ListExecutionLogs(ctx context.Context, userID string, from, to time.Time) ([]domain.MonthlyExecutionLog, error)
}

// Reconciler fills the execution ledger before a view is built.
// *simulation.Service satisfies it.
type Reconciler interface {
	EnsureMonthlyExecutionLogs(ctx context.Context, userID string, now time.Time) (int, error)
}

// Totals sums the open loans of a portfolio.
type Totals struct {
	Loans                   int             `json:"loans"`
	OpenLoans               int             `json:"open_loans"`
	TotalPrincipal          decimal.Decimal `json:"total_principal"`
	TotalBalance            decimal.Decimal `json:"total_balance"`
	TotalStandardPayment    decimal.Decimal `json:"total_standard_payment"`
	MonthlyOverpaymentLimit decimal.Decimal `json:"monthly_overpayment_limit"`
}

// Headline is the summary of the active simulation.
type Headline struct {
	SimulationID            string                  `json:"simulation_id"`
	Strategy                domain.Strategy         `json:"strategy"`
	Goal                    domain.Goal             `json:"goal"`
	Status                  domain.SimulationStatus `json:"status"`
	Stale                   bool                    `json:"stale"`
	TotalInterestSaved      decimal.Decimal         `json:"total_interest_saved"`
	BaselineMonthsToPayoff  int                     `json:"baseline_months_to_payoff"`
	ProjectedMonthsToPayoff int                     `json:"projected_months_to_payoff"`
	ProjectedPayoffMonth    string                  `json:"projected_payoff_month"`
}

// CurvePoint is one month of a payoff curve.
type CurvePoint struct {
	Month              string          `json:"month"`
	Balance            decimal.Decimal `json:"balance"`
	CumulativeInterest decimal.Decimal `json:"cumulative_interest"`
}

// Curve is a full payoff curve with its totals.
type Curve struct {
	ExtraPerLoan   decimal.Decimal `json:"extra_per_loan"`
	MonthsToPayoff int             `json:"months_to_payoff"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
	Points         []CurvePoint    `json:"points"`
}

// View is the dashboard payload for one user.
type View struct {
	UserID           string                       `json:"user_id"`
	Month            string                       `json:"month"`
	Totals           Totals                       `json:"totals"`
	ActiveSimulation *Headline                    `json:"active_simulation,omitempty"`
	Baseline         Curve                        `json:"baseline"`
	WithExtra        Curve                        `json:"with_extra"`
	CurrentMonthLogs []domain.MonthlyExecutionLog `json:"current_month_logs"`
	GeneratedAt      time.Time                    `json:"generated_at"`
}

// Service builds dashboard views.
type Service struct {
	store      Store
	reconciler Reconciler
	engine     *calculation.ProjectionEngine
	cache      cache.DashboardCache
	logger     *slog.Logger
}

// NewService wires a dashboard service. A nil cache disables caching and a
// nil engine gets the defaults.
func NewService(st Store, r Reconciler, engine *calculation.ProjectionEngine, c cache.DashboardCache, logger *slog.Logger) *Service {
	if engine == nil {
		engine = calculation.NewProjectionEngine()
	}
	if c == nil {
		c = cache.NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      st,
		reconciler: r,
		engine:     engine,
		cache:      c,
		logger:     logger.With("component", "dashboard"),
	}
}

// Get returns the user's dashboard as of now. The execution ledger is
// reconciled first; when that inserts rows the cached view is dropped.
func (s *Service) Get(ctx context.Context, userID string, now time.Time) (*View, error) {
	inserted, err := s.reconciler.EnsureMonthlyExecutionLogs(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("reconciling execution logs: %w", err)
	}
	month := dateutil.FirstOfMonth(now)

	if inserted == 0 {
		if v, ok := s.cached(ctx, userID, month); ok {
			return v, nil
		}
	}

	// read before building so an invalidation racing the build wins
	gen, genErr := s.cache.Generation(ctx, userID)
	if genErr != nil {
		s.logger.Warn("dashboard cache generation read failed", "user_id", userID, "error", genErr)
	}

	v, err := s.build(ctx, userID, month, now)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding dashboard: %w", err)
	}
	stored, err := s.cache.SetIfGeneration(ctx, userID, data, gen)
	switch {
	case err != nil:
		s.logger.Warn("dashboard cache write failed", "user_id", userID, "error", err)
	case !stored:
		s.logger.Debug("dashboard invalidated while building, not cached", "user_id", userID)
	}
	return v, nil
}

func (s *Service) cached(ctx context.Context, userID string, month time.Time) (*View, bool) {
	data, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("dashboard cache read failed", "user_id", userID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var v View
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("discarding undecodable dashboard cache entry", "user_id", userID, "error", err)
		return nil, false
	}
	// a view built in an earlier month has the wrong ledger slice
	if v.Month != dateutil.FormatISO(month) {
		return nil, false
	}
	return &v, true
}

func (s *Service) build(ctx context.Context, userID string, month, now time.Time) (*View, error) {
	loans, err := s.store.ListLoans(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading loans: %w", err)
	}
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	input, err := calculation.NewProjectionLoans(loans, month)
	if err != nil {
		return nil, fmt.Errorf("preparing loans: %w", err)
	}

	v := &View{
		UserID:      userID,
		Month:       dateutil.FormatISO(month),
		Totals:      totals(loans, input, settings),
		GeneratedAt: now.UTC(),
	}

	sim, err := s.store.GetActiveSimulation(ctx, userID)
	switch {
	case err == nil:
		v.ActiveSimulation = headline(sim)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("loading active simulation: %w", err)
	}

	baseline := calculation.GenerateBaselineProjection(input, calculation.BaselineOptions{
		Start:     month,
		MaxMonths: s.engine.MaxMonths,
	})
	v.Baseline = curve(&baseline, decimal.Zero)

	extra := ExtraPerLoan(settings.MonthlyOverpaymentLimit, len(input))
	withExtra, err := s.engine.ExtraPaymentCurve(loans, month, extra)
	if err != nil {
		return nil, fmt.Errorf("projecting extra payment curve: %w", err)
	}
	v.WithExtra = curve(&withExtra, extra)

	logs, err := s.store.ListExecutionLogs(ctx, userID, month, month)
	if err != nil {
		return nil, fmt.Errorf("loading execution logs: %w", err)
	}
	if logs == nil {
		logs = []domain.MonthlyExecutionLog{}
	}
	v.CurrentMonthLogs = logs
	return v, nil
}

// ExtraPerLoan splits a monthly budget evenly over n loans, rounding each
// share down to the cent so the shares never exceed the budget.
func ExtraPerLoan(budget decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 || !budget.IsPositive() {
		return decimal.Zero
	}
	shares := money.SplitEven(money.NewMoneyFromDecimal(budget).Cents(), n)
	// SplitEven hands leftover cents to the first loans; the last share is the floor.
	return money.FromCents(shares[len(shares)-1]).Decimal
}

func totals(loans []domain.Loan, input []calculation.ProjectionLoan, settings domain.UserSettings) Totals {
	t := Totals{
		Loans:                   len(loans),
		OpenLoans:               len(input),
		TotalPrincipal:          decimal.Zero,
		TotalBalance:            decimal.Zero,
		TotalStandardPayment:    decimal.Zero,
		MonthlyOverpaymentLimit: settings.MonthlyOverpaymentLimit,
	}
	for _, in := range input {
		t.TotalPrincipal = t.TotalPrincipal.Add(in.OriginalAmount)
		t.TotalBalance = t.TotalBalance.Add(in.Balance)
		t.TotalStandardPayment = t.TotalStandardPayment.Add(in.StandardPayment)
	}
	return t
}

func headline(sim *domain.Simulation) *Headline {
	return &Headline{
		SimulationID:            sim.ID,
		Strategy:                sim.Strategy,
		Goal:                    sim.Goal,
		Status:                  sim.Status,
		Stale:                   sim.Stale,
		TotalInterestSaved:      sim.TotalInterestSaved,
		BaselineMonthsToPayoff:  sim.BaselineMonthsToPayoff,
		ProjectedMonthsToPayoff: sim.ProjectedMonthsToPayoff,
		ProjectedPayoffMonth:    sim.ProjectedPayoffMonth,
	}
}

func curve(p *domain.Projection, extra decimal.Decimal) Curve {
	c := Curve{
		ExtraPerLoan:   extra,
		MonthsToPayoff: p.MonthsToPayoff,
		TotalInterest:  p.TotalInterest,
		Points:         make([]CurvePoint, 0, len(p.Months)),
	}
	cumulative := decimal.Zero
	for _, m := range p.Months {
		cumulative = cumulative.Add(m.TotalInterest)
		c.Points = append(c.Points, CurvePoint{
			Month:              m.Month,
			Balance:            m.TotalRemaining,
			CumulativeInterest: cumulative,
		})
	}
	return c
}
