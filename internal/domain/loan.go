package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaidOffThreshold is the balance at or below which a loan is treated as retired.
var PaidOffThreshold = decimal.NewFromFloat(0.01)

// Loan represents a fixed-rate amortizing loan owned by a user
type Loan struct {
	ID                 string          `yaml:"id,omitempty" json:"id"`
	UserID             string          `yaml:"-" json:"user_id"`
	Name               string          `yaml:"name" json:"name"`
	Principal          decimal.Decimal `yaml:"principal" json:"principal"`
	RemainingBalance   decimal.Decimal `yaml:"remaining_balance" json:"remaining_balance"`
	AnnualRate         decimal.Decimal `yaml:"annual_rate" json:"annual_rate"` // decimal form; values above 1 are read as percentages
	TermMonths         int             `yaml:"term_months" json:"term_months"`
	OriginalTermMonths int             `yaml:"original_term_months,omitempty" json:"original_term_months"`
	StartMonth         time.Time       `yaml:"start_month" json:"start_month"`
	IsClosed           bool            `yaml:"is_closed,omitempty" json:"is_closed"`
	ClosedMonth        *time.Time      `yaml:"closed_month,omitempty" json:"closed_month,omitempty"`
	CreatedAt          time.Time       `yaml:"-" json:"created_at"`
	UpdatedAt          time.Time       `yaml:"-" json:"updated_at"`
}

// IsActive reports whether the loan still participates in schedule generation.
func (l *Loan) IsActive() bool {
	return !l.IsClosed && l.RemainingBalance.GreaterThan(PaidOffThreshold)
}

// RemainingTermMonths returns the months left on the original amortization
// as of the given month, never less than one.
func (l *Loan) RemainingTermMonths(asOf time.Time) int {
	elapsed := (asOf.Year()-l.StartMonth.Year())*12 + int(asOf.Month()) - int(l.StartMonth.Month())
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := l.TermMonths - elapsed
	if remaining < 1 {
		return 1
	}
	return remaining
}

// UserSettings holds a user's overpayment preferences
type UserSettings struct {
	UserID                  string          `yaml:"-" json:"user_id"`
	MonthlyOverpaymentLimit decimal.Decimal `yaml:"monthly_overpayment_limit" json:"monthly_overpayment_limit"`
	ReinvestReducedPayments bool            `yaml:"reinvest_reduced_payments" json:"reinvest_reduced_payments"`
	UpdatedAt               time.Time       `yaml:"-" json:"updated_at"`
}

// Portfolio is a user's loan set plus settings, as loaded from a portfolio file
type Portfolio struct {
	Loans    []Loan       `yaml:"loans" json:"loans"`
	Settings UserSettings `yaml:"settings" json:"settings"`
}
