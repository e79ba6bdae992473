package output

import (
	"fmt"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultAssumptions lists key modeling assumptions rendered in detailed outputs.
var DefaultAssumptions = []string{
	"Fixed annual rates, interest accrued monthly at rate/12",
	"Payments fall on the first of each month",
	"All amounts rounded to the cent at every month step",
	"Closed and paid-off loans never re-enter a projection",
}

// GenerateAssumptions creates the assumptions list from the comparison's own settings
func GenerateAssumptions(results *domain.ProjectionComparison) []string {
	out := append([]string(nil), DefaultAssumptions...)
	out = append(out, fmt.Sprintf("Monthly overpayment budget: %s allocated by %s", FormatCurrency(results.MonthlyOverpaymentLimit), results.Strategy))
	switch results.Goal {
	case domain.GoalPaymentReduction:
		out = append(out, "Goal: payment reduction (payments recast after each overpayment)")
	default:
		out = append(out, "Goal: fastest payoff (standard payments held constant)")
	}
	if results.ReinvestReducedPayments {
		out = append(out, "Freed-up payments are reinvested into the budget")
	}
	return out
}

var decimalHundred = decimal.NewFromInt(100)
