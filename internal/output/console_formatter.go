package output

import (
	"bytes"
	"fmt"

	"github.com/rpgo/loan-simulator/internal/domain"
)

// ConsoleFormatter provides a concise console style summary via the formatter interface.
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console-lite" }

func (c ConsoleFormatter) Format(results *domain.ProjectionComparison) ([]byte, error) {
	var buf bytes.Buffer
	s := results.Summary
	fmt.Fprintln(&buf, "LOAN OVERPAYMENT SUMMARY")
	fmt.Fprintln(&buf, "================================")
	fmt.Fprintf(&buf, "Strategy: %s  Goal: %s  Budget: %s/month\n", results.Strategy, results.Goal, FormatCurrency(results.MonthlyOverpaymentLimit))
	fmt.Fprintln(&buf)
	fmt.Fprintf(&buf, "Baseline: interest=%s months=%d payoff=%s\n", FormatCurrency(s.BaselineInterest), s.BaselineMonthsToPayoff, s.BaselinePayoffMonth)
	fmt.Fprintf(&buf, "Strategy: interest=%s months=%d payoff=%s\n", FormatCurrency(s.StrategyInterest), s.ProjectedMonthsToPayoff, s.ProjectedPayoffMonth)
	for _, id := range loanIDs(results) {
		fmt.Fprintf(&buf, "  %s: baseline month %d, strategy month %d\n", id,
			results.Baseline.LoanPayoffMonth(id), results.StrategyRun.LoanPayoffMonth(id))
	}
	h := AnalyzeComparison(results)
	fmt.Fprintln(&buf)
	fmt.Fprintf(&buf, "Interest saved: %s (%s), %s sooner\n", FormatCurrency(h.InterestSaved), FormatPercentage(h.PercentSaved), FormatMonths(h.MonthsSaved))
	return buf.Bytes(), nil
}
