package calculation

import (
	"fmt"
	"time"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// RunOptions describes one baseline-versus-strategy comparison
type RunOptions struct {
	Start                   time.Time
	Strategy                domain.Strategy
	Goal                    domain.Goal
	MonthlyBudget           decimal.Decimal
	ReinvestReducedPayments bool
	PaymentReductionTarget  decimal.Decimal
}

// ProjectionEngine orchestrates baseline and strategy projections
type ProjectionEngine struct {
	MaxMonths int
	Debug     bool // Enable debug output for per-run totals
	Logger    Logger
}

// NewProjectionEngine creates a new projection engine with the default month cap
func NewProjectionEngine() *ProjectionEngine {
	return &ProjectionEngine{
		MaxMonths: DefaultMaxMonths,
		Logger:    NopLogger{},
	}
}

// SetLogger sets the logger for the engine. If nil is provided, a no-op logger is used.
func (pe *ProjectionEngine) SetLogger(l Logger) {
	if l == nil {
		pe.Logger = NopLogger{}
		return
	}
	pe.Logger = l
}

// Run projects the active loans of a set with and without the strategy.
func (pe *ProjectionEngine) Run(loans []domain.Loan, opts RunOptions) (*domain.ProjectionComparison, error) {
	start := dateutil.FirstOfMonth(opts.Start)
	if opts.Start.IsZero() {
		start = dateutil.FirstOfMonth(nowFunc())
	}
	input, err := NewProjectionLoans(loans, start)
	if err != nil {
		return nil, fmt.Errorf("preparing loans: %w", err)
	}
	opts.Start = start
	return pe.RunProjectionLoans(input, opts)
}

// RunProjectionLoans is Run for already-normalized input, such as loans
// rebuilt from simulation snapshots.
func (pe *ProjectionEngine) RunProjectionLoans(input []ProjectionLoan, opts RunOptions) (*domain.ProjectionComparison, error) {
	if opts.Goal == domain.GoalPaymentReduction && !opts.PaymentReductionTarget.IsPositive() {
		return nil, fmt.Errorf("payment reduction goal requires a positive target")
	}
	start := dateutil.FirstOfMonth(opts.Start)

	baseline := GenerateBaselineProjection(input, BaselineOptions{Start: start, MaxMonths: pe.MaxMonths})
	strategy, err := GenerateStrategyProjection(input, StrategyOptions{
		Start:                   start,
		MaxMonths:               pe.MaxMonths,
		Strategy:                opts.Strategy,
		Goal:                    opts.Goal,
		MonthlyBudget:           opts.MonthlyBudget,
		ReinvestReducedPayments: opts.ReinvestReducedPayments,
		PaymentReductionTarget:  opts.PaymentReductionTarget,
	})
	if err != nil {
		return nil, fmt.Errorf("strategy projection: %w", err)
	}
	if !baseline.Completed {
		pe.Logger.Warnf("baseline did not retire all loans within %d months", len(baseline.Months))
	}

	summary := CompareProjections(&baseline, &strategy, start)
	if pe.Debug {
		pe.Logger.Debugf("PROJECTION %s from %s over %d loans", opts.Strategy, summary.StartMonth, len(input))
		pe.Logger.Debugf("  Baseline interest:  $%s in %d months", summary.BaselineInterest.StringFixed(2), summary.BaselineMonthsToPayoff)
		pe.Logger.Debugf("  Strategy interest:  $%s in %d months", summary.StrategyInterest.StringFixed(2), summary.ProjectedMonthsToPayoff)
		pe.Logger.Debugf("  Interest saved:     $%s", summary.TotalInterestSaved.StringFixed(2))
	}

	goal := opts.Goal
	if goal == "" {
		goal = domain.GoalFastestPayoff
	}
	return &domain.ProjectionComparison{
		Strategy:                opts.Strategy,
		Goal:                    goal,
		MonthlyOverpaymentLimit: opts.MonthlyBudget,
		ReinvestReducedPayments: opts.ReinvestReducedPayments,
		Baseline:                baseline,
		StrategyRun:             strategy,
		Summary:                 summary,
	}, nil
}

// ExtraPaymentCurve runs the baseline generator with a flat extra amount per
// loan, used for the dashboard's "what if I just paid more" graph.
func (pe *ProjectionEngine) ExtraPaymentCurve(loans []domain.Loan, start time.Time, extraPerLoan decimal.Decimal) (domain.Projection, error) {
	input, err := NewProjectionLoans(loans, start)
	if err != nil {
		return domain.Projection{}, err
	}
	return GenerateBaselineProjection(input, BaselineOptions{
		Start:        start,
		MaxMonths:    pe.MaxMonths,
		ExtraPayment: extraPerLoan,
	}), nil
}
