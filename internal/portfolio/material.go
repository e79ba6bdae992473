package portfolio

import (
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/pkg/dateutil"
)

// MaterialLoanChange reports whether next differs from prev in any field a
// projection reads. Renames are not material.
func MaterialLoanChange(prev, next *domain.Loan) bool {
	switch {
	case !prev.Principal.Equal(next.Principal):
		return true
	case !prev.RemainingBalance.Equal(next.RemainingBalance):
		return true
	case !prev.AnnualRate.Equal(next.AnnualRate):
		return true
	case prev.TermMonths != next.TermMonths:
		return true
	case !dateutil.SameMonth(prev.StartMonth, next.StartMonth):
		return true
	case prev.IsClosed != next.IsClosed:
		return true
	}
	return false
}

// MaterialSettingsChange reports whether the overpayment budget or the
// reinvest flag changed.
func MaterialSettingsChange(prev, next domain.UserSettings) bool {
	return !prev.MonthlyOverpaymentLimit.Equal(next.MonthlyOverpaymentLimit) ||
		prev.ReinvestReducedPayments != next.ReinvestReducedPayments
}
