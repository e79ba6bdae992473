package calculation

import (
	"time"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// CompareProjections derives the headline metrics from a baseline and a
// strategy run that started in the same month. Interest saved is clamped at
// zero.
func CompareProjections(baseline, strategy *domain.Projection, start time.Time) domain.ProjectionSummary {
	startISO := dateutil.FormatISO(start)
	saved := baseline.TotalInterest.Sub(strategy.TotalInterest)
	if saved.IsNegative() {
		saved = decimal.Zero
	}
	return domain.ProjectionSummary{
		StartMonth:              startISO,
		BaselineInterest:        baseline.TotalInterest,
		StrategyInterest:        strategy.TotalInterest,
		TotalInterestSaved:      saved,
		BaselineMonthsToPayoff:  baseline.MonthsToPayoff,
		ProjectedMonthsToPayoff: strategy.MonthsToPayoff,
		MonthsSaved:             baseline.MonthsToPayoff - strategy.MonthsToPayoff,
		BaselinePayoffMonth:     ComputeProjectedPayoffMonth(startISO, baseline.MonthsToPayoff, start),
		ProjectedPayoffMonth:    ComputeProjectedPayoffMonth(startISO, strategy.MonthsToPayoff, start),
	}
}
