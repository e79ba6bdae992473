package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Strategy names an overpayment allocation policy
type Strategy string

const (
	StrategyAvalanche Strategy = "avalanche"
	StrategySnowball  Strategy = "snowball"
	StrategyEqual     Strategy = "equal"
	StrategyRatio     Strategy = "ratio"
)

// Strategies lists the supported allocation policies in display order.
var Strategies = []Strategy{StrategyAvalanche, StrategySnowball, StrategyEqual, StrategyRatio}

// ParseStrategy resolves a case-insensitive strategy name.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Strategies {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Goal selects what an overpayment is meant to achieve
type Goal string

const (
	GoalFastestPayoff    Goal = "fastest_payoff"
	GoalPaymentReduction Goal = "payment_reduction"
)

// ParseGoal resolves a goal name; an empty string means fastest payoff.
func ParseGoal(s string) (Goal, error) {
	switch g := Goal(strings.ToLower(strings.TrimSpace(s))); g {
	case "", GoalFastestPayoff:
		return GoalFastestPayoff, nil
	case GoalPaymentReduction:
		return g, nil
	default:
		return "", fmt.Errorf("unknown goal %q", s)
	}
}

// SimulationStatus is the lifecycle state of a simulation run
type SimulationStatus string

const (
	StatusRunning   SimulationStatus = "running"
	StatusCompleted SimulationStatus = "completed"
	StatusActive    SimulationStatus = "active"
	StatusStale     SimulationStatus = "stale"
	StatusCancelled SimulationStatus = "cancelled"
	StatusError     SimulationStatus = "error"
)

// IsTerminal reports whether a poller can stop waiting on this status.
func (s SimulationStatus) IsTerminal() bool {
	return s != StatusRunning
}

// Simulation is one strategy run for a user together with its headline metrics
type Simulation struct {
	ID                      string           `json:"id"`
	UserID                  string           `json:"user_id"`
	Strategy                Strategy         `json:"strategy"`
	Goal                    Goal             `json:"goal"`
	PaymentReductionTarget  *decimal.Decimal `json:"payment_reduction_target,omitempty"`
	MonthlyOverpaymentLimit decimal.Decimal  `json:"monthly_overpayment_limit"`
	ReinvestReducedPayments bool             `json:"reinvest_reduced_payments"`
	Status                  SimulationStatus `json:"status"`
	IsActive                bool             `json:"is_active"`
	Stale                   bool             `json:"stale"`
	BaselineInterest        decimal.Decimal  `json:"baseline_interest"`
	StrategyInterest        decimal.Decimal  `json:"strategy_interest"`
	TotalInterestSaved      decimal.Decimal  `json:"total_interest_saved"`
	BaselineMonthsToPayoff  int              `json:"baseline_months_to_payoff"`
	ProjectedMonthsToPayoff int              `json:"projected_months_to_payoff"`
	ProjectedPayoffMonth    string           `json:"projected_payoff_month,omitempty"`
	ErrorMessage            string           `json:"error_message,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	StartedAt               *time.Time       `json:"started_at,omitempty"`
	CompletedAt             *time.Time       `json:"completed_at,omitempty"`
	CancelledAt             *time.Time       `json:"cancelled_at,omitempty"`
}

// LoanSnapshot freezes a loan's starting state for a completed simulation
type LoanSnapshot struct {
	SimulationID        string          `json:"simulation_id"`
	LoanID              string          `json:"loan_id"`
	StartingBalance     decimal.Decimal `json:"starting_balance"`
	StartingRate        decimal.Decimal `json:"starting_rate"`
	RemainingTermMonths int             `json:"remaining_term_months"`
	StartingMonth       time.Time       `json:"starting_month"`
	OriginalPrincipal   decimal.Decimal `json:"original_principal"`
	StandardPayment     decimal.Decimal `json:"standard_payment"`
}

// HistoryMetric is the point-in-time capture of a simulation's aggregates
type HistoryMetric struct {
	ID                      string          `json:"id"`
	SimulationID            string          `json:"simulation_id"`
	UserID                  string          `json:"user_id"`
	Strategy                Strategy        `json:"strategy"`
	MonthlyOverpaymentLimit decimal.Decimal `json:"monthly_overpayment_limit"`
	BaselineInterest        decimal.Decimal `json:"baseline_interest"`
	StrategyInterest        decimal.Decimal `json:"strategy_interest"`
	TotalInterestSaved      decimal.Decimal `json:"total_interest_saved"`
	BaselineMonthsToPayoff  int             `json:"baseline_months_to_payoff"`
	ProjectedMonthsToPayoff int             `json:"projected_months_to_payoff"`
	ProjectedPayoffMonth    string          `json:"projected_payoff_month"`
	CapturedAt              time.Time       `json:"captured_at"`
}

// SimulationDetail bundles a simulation with its persisted results
type SimulationDetail struct {
	Simulation Simulation     `json:"simulation"`
	Snapshots  []LoanSnapshot `json:"snapshots"`
	Metric     *HistoryMetric `json:"metric,omitempty"`
}

// PaymentStatus tracks the standard payment of a ledger month
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentPaid       PaymentStatus = "paid"
	PaymentBackfilled PaymentStatus = "backfilled"
)

// OverpaymentStatus tracks the extra payment of a ledger month
type OverpaymentStatus string

const (
	OverpaymentScheduled  OverpaymentStatus = "scheduled"
	OverpaymentExecuted   OverpaymentStatus = "executed"
	OverpaymentSkipped    OverpaymentStatus = "skipped"
	OverpaymentBackfilled OverpaymentStatus = "backfilled"
)

// ReasonAutoBackfill marks ledger rows synthesized for months already past.
const ReasonAutoBackfill = "auto_backfill"

// MonthlyExecutionLog is the per-loan, per-month execution ledger row
type MonthlyExecutionLog struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"user_id"`
	LoanID               string            `json:"loan_id"`
	SimulationID         string            `json:"simulation_id"`
	Month                time.Time         `json:"month"`
	PaymentStatus        PaymentStatus     `json:"payment_status"`
	OverpaymentStatus    OverpaymentStatus `json:"overpayment_status"`
	ScheduledOverpayment decimal.Decimal   `json:"scheduled_overpayment"`
	ActualOverpayment    decimal.Decimal   `json:"actual_overpayment"`
	InterestPortion      decimal.Decimal   `json:"interest_portion"`
	PrincipalPortion     decimal.Decimal   `json:"principal_portion"`
	ReasonCode           string            `json:"reason_code,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
