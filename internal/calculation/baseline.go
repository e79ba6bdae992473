package calculation

import (
	"fmt"
	"sort"
	"time"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultMaxMonths caps every projection at 50 years.
const DefaultMaxMonths = 600

// ProjectionLoan is the normalized amortization input for one loan
type ProjectionLoan struct {
	ID              string
	OriginalAmount  decimal.Decimal
	Balance         decimal.Decimal
	AnnualRate      decimal.Decimal // normalized decimal form
	TermMonths      int             // months left on the amortization; drives recasting
	StandardPayment decimal.Decimal
}

// NewProjectionLoans converts the active loans of a set into projection
// input as of the given month, ordered by id. Closed and paid-off loans are
// skipped. A loan whose payment cannot be derived is an error.
func NewProjectionLoans(loans []domain.Loan, asOf time.Time) ([]ProjectionLoan, error) {
	out := make([]ProjectionLoan, 0, len(loans))
	for i := range loans {
		l := &loans[i]
		if !l.IsActive() {
			continue
		}
		if l.Principal.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("loan %s: principal must be positive", l.ID)
		}
		pmt, err := DeriveStandardMonthlyPayment(l.Principal, l.AnnualRate, l.TermMonths)
		if err != nil {
			return nil, fmt.Errorf("loan %s: %w", l.ID, err)
		}
		out = append(out, ProjectionLoan{
			ID:              l.ID,
			OriginalAmount:  l.Principal,
			Balance:         roundCents(l.RemainingBalance),
			AnnualRate:      NormalizeAnnualRate(l.AnnualRate),
			TermMonths:      l.RemainingTermMonths(asOf),
			StandardPayment: pmt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ProjectionLoansFromSnapshots rebuilds projection input from the frozen
// starting state of a simulation.
func ProjectionLoansFromSnapshots(snaps []domain.LoanSnapshot) []ProjectionLoan {
	out := make([]ProjectionLoan, 0, len(snaps))
	for _, s := range snaps {
		if s.StartingBalance.LessThanOrEqual(domain.PaidOffThreshold) {
			continue
		}
		out = append(out, ProjectionLoan{
			ID:              s.LoanID,
			OriginalAmount:  s.OriginalPrincipal,
			Balance:         roundCents(s.StartingBalance),
			AnnualRate:      NormalizeAnnualRate(s.StartingRate),
			TermMonths:      s.RemainingTermMonths,
			StandardPayment: s.StandardPayment,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BaselineOptions configures a no-strategy projection
type BaselineOptions struct {
	Start     time.Time
	MaxMonths int
	// ExtraPayment is a flat amount added to every active loan's payment each
	// month. Zero for the true baseline.
	ExtraPayment decimal.Decimal
}

// GenerateBaselineProjection amortizes every loan at its standard payment
// (plus any flat extra) until all balances are retired or MaxMonths is hit.
func GenerateBaselineProjection(loans []ProjectionLoan, opts BaselineOptions) domain.Projection {
	return runSchedule(loans, scheduleConfig{
		start:     opts.Start,
		maxMonths: opts.MaxMonths,
		extra:     opts.ExtraPayment,
	})
}
