package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanMonth is one loan's line in a projected month
type LoanMonth struct {
	LoanID          string          `json:"loan_id"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	StandardPayment decimal.Decimal `json:"standard_payment"`
	Interest        decimal.Decimal `json:"interest"`
	Principal       decimal.Decimal `json:"principal"`
	Overpayment     decimal.Decimal `json:"overpayment"`
	Remaining       decimal.Decimal `json:"remaining"`
	PaidOff         bool            `json:"paid_off"`
}

// ProjectionMonth represents the aggregate amortization for a single month
type ProjectionMonth struct {
	Index            int             `json:"index"` // 1-based month number within the projection
	Date             time.Time       `json:"-"`
	Month            string          `json:"month"` // YYYY-MM-DD, first of month
	Budget           decimal.Decimal `json:"budget"`
	TotalInterest    decimal.Decimal `json:"total_interest"`
	TotalPrincipal   decimal.Decimal `json:"total_principal"`
	TotalOverpayment decimal.Decimal `json:"total_overpayment"`
	TotalRemaining   decimal.Decimal `json:"total_remaining"`
	TotalPayment     decimal.Decimal `json:"total_standard_payment"`
	Loans            []LoanMonth     `json:"loans"`
}

// Loan returns the line for loanID, if the loan was still active that month.
func (pm *ProjectionMonth) Loan(loanID string) (LoanMonth, bool) {
	for _, lm := range pm.Loans {
		if lm.LoanID == loanID {
			return lm, true
		}
	}
	return LoanMonth{}, false
}

// Projection is a full month-by-month schedule plus its cumulative totals
type Projection struct {
	Months           []ProjectionMonth `json:"months"`
	MonthsToPayoff   int               `json:"months_to_payoff"`
	TotalInterest    decimal.Decimal   `json:"total_interest"`
	TotalPrincipal   decimal.Decimal   `json:"total_principal"`
	TotalOverpayment decimal.Decimal   `json:"total_overpayment"`
	Completed        bool              `json:"completed"` // false when the month cap was hit first

	// PaymentReductionMonth is the 1-based month the reduction target was
	// reached under the payment_reduction goal, zero otherwise.
	PaymentReductionMonth int             `json:"payment_reduction_month,omitempty"`
	PaymentReduction      decimal.Decimal `json:"payment_reduction"`
}

// LoanPayoffMonth returns the 1-based month in which loanID reached zero, or zero.
func (p *Projection) LoanPayoffMonth(loanID string) int {
	for _, m := range p.Months {
		if lm, ok := m.Loan(loanID); ok && lm.PaidOff {
			return m.Index
		}
	}
	return 0
}

// ProjectionSummary carries the metrics derived by diffing baseline and strategy runs
type ProjectionSummary struct {
	StartMonth              string          `json:"start_month"`
	BaselineInterest        decimal.Decimal `json:"baseline_interest"`
	StrategyInterest        decimal.Decimal `json:"strategy_interest"`
	TotalInterestSaved      decimal.Decimal `json:"total_interest_saved"`
	BaselineMonthsToPayoff  int             `json:"baseline_months_to_payoff"`
	ProjectedMonthsToPayoff int             `json:"projected_months_to_payoff"`
	MonthsSaved             int             `json:"months_saved"`
	BaselinePayoffMonth     string          `json:"baseline_payoff_month"`
	ProjectedPayoffMonth    string          `json:"projected_payoff_month"`
}

// ProjectionComparison is the result of running baseline and strategy over one loan set
type ProjectionComparison struct {
	Strategy                Strategy          `json:"strategy"`
	Goal                    Goal              `json:"goal"`
	MonthlyOverpaymentLimit decimal.Decimal   `json:"monthly_overpayment_limit"`
	ReinvestReducedPayments bool              `json:"reinvest_reduced_payments"`
	Baseline                Projection        `json:"baseline"`
	StrategyRun             Projection        `json:"strategy_run"`
	Summary                 ProjectionSummary `json:"summary"`
}
