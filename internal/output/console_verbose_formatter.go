package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/shopspring/decimal"
)

// ConsoleVerboseFormatter renders the detailed console report via the pluggable interface.
type ConsoleVerboseFormatter struct {
	// ScheduleRows caps the month-by-month table; zero means 12.
	ScheduleRows int
}

func (c ConsoleVerboseFormatter) Name() string { return "console" }

func (c ConsoleVerboseFormatter) Format(results *domain.ProjectionComparison) ([]byte, error) {
	var buf bytes.Buffer
	s := results.Summary

	fmt.Fprintln(&buf, "=================================================================================")
	fmt.Fprintln(&buf, "DETAILED LOAN OVERPAYMENT ANALYSIS")
	fmt.Fprintln(&buf, "=================================================================================")
	fmt.Fprintln(&buf)
	fmt.Fprintln(&buf, "KEY ASSUMPTIONS:")
	for _, a := range GenerateAssumptions(results) {
		fmt.Fprintf(&buf, "• %s\n", a)
	}
	fmt.Fprintln(&buf)

	fmt.Fprintln(&buf, "BASELINE vs STRATEGY")
	fmt.Fprintln(&buf, "====================")
	fmt.Fprintf(&buf, "%-35s %15s %15s %15s\n", "METRIC", "BASELINE", "STRATEGY", "DIFFERENCE")
	fmt.Fprintln(&buf, strings.Repeat("-", 83))
	cmpLine(&buf, "Total interest", s.BaselineInterest, s.StrategyInterest)
	cmpLine(&buf, "Total overpayment", results.Baseline.TotalOverpayment, results.StrategyRun.TotalOverpayment)
	fmt.Fprintf(&buf, "%-35s %15d %15d %15d\n", "Months to payoff", s.BaselineMonthsToPayoff, s.ProjectedMonthsToPayoff, s.ProjectedMonthsToPayoff-s.BaselineMonthsToPayoff)
	fmt.Fprintf(&buf, "%-35s %15s %15s\n", "Payoff month", s.BaselinePayoffMonth, s.ProjectedPayoffMonth)
	if !results.StrategyRun.Completed {
		fmt.Fprintf(&buf, "WARNING: strategy run hit the %d month cap before every loan was retired\n", len(results.StrategyRun.Months))
	}
	fmt.Fprintln(&buf)

	writeLoanBreakdown(&buf, results)

	if results.Goal == domain.GoalPaymentReduction {
		fmt.Fprintln(&buf, "PAYMENT REDUCTION:")
		fmt.Fprintln(&buf, "------------------")
		fmt.Fprintf(&buf, "  Monthly payment reduced by: %s\n", FormatCurrency(results.StrategyRun.PaymentReduction))
		if results.StrategyRun.PaymentReductionMonth > 0 {
			fmt.Fprintf(&buf, "  Target reached in month:    %d\n", results.StrategyRun.PaymentReductionMonth)
		} else {
			fmt.Fprintln(&buf, "  Target not reached")
		}
		fmt.Fprintln(&buf)
	}

	c.writeSchedule(&buf, &results.StrategyRun)

	h := AnalyzeComparison(results)
	fmt.Fprintln(&buf, "SUMMARY")
	fmt.Fprintln(&buf, "=======")
	fmt.Fprintf(&buf, "Interest saved: %s (%s of baseline interest)\n", FormatCurrency(h.InterestSaved), FormatPercentage(h.PercentSaved))
	fmt.Fprintf(&buf, "Debt free %s sooner\n", FormatMonths(h.MonthsSaved))
	if h.FirstPaidOffLoan != "" {
		fmt.Fprintf(&buf, "First loan retired: %s in month %d\n", h.FirstPaidOffLoan, h.FirstPaidOffIdx)
	}
	if !h.Worthwhile {
		fmt.Fprintln(&buf, "The overpayment budget does not change the outcome.")
	}
	return buf.Bytes(), nil
}

func writeLoanBreakdown(buf *bytes.Buffer, results *domain.ProjectionComparison) {
	fmt.Fprintln(buf, "PER-LOAN BREAKDOWN")
	fmt.Fprintln(buf, "==================")
	fmt.Fprintf(buf, "%-20s %15s %15s %10s %10s %15s\n", "LOAN", "BASE INTEREST", "STRAT INTEREST", "BASE MO", "STRAT MO", "OVERPAID")
	fmt.Fprintln(buf, strings.Repeat("-", 90))
	for _, id := range loanIDs(results) {
		fmt.Fprintf(buf, "%-20s %15s %15s %10d %10d %15s\n",
			id,
			FormatCurrency(loanInterest(&results.Baseline, id)),
			FormatCurrency(loanInterest(&results.StrategyRun, id)),
			results.Baseline.LoanPayoffMonth(id),
			results.StrategyRun.LoanPayoffMonth(id),
			FormatCurrency(loanOverpayment(&results.StrategyRun, id)),
		)
	}
	fmt.Fprintln(buf)
}

func (c ConsoleVerboseFormatter) writeSchedule(buf *bytes.Buffer, p *domain.Projection) {
	rows := c.ScheduleRows
	if rows <= 0 {
		rows = 12
	}
	if rows > len(p.Months) {
		rows = len(p.Months)
	}
	fmt.Fprintf(buf, "STRATEGY SCHEDULE (first %d months)\n", rows)
	fmt.Fprintln(buf, strings.Repeat("-", 83))
	fmt.Fprintf(buf, "%-12s %15s %15s %15s %15s\n", "MONTH", "INTEREST", "PRINCIPAL", "OVERPAYMENT", "REMAINING")
	for _, m := range p.Months[:rows] {
		fmt.Fprintf(buf, "%-12s %15s %15s %15s %15s\n", m.Month,
			FormatCurrency(m.TotalInterest), FormatCurrency(m.TotalPrincipal),
			FormatCurrency(m.TotalOverpayment), FormatCurrency(m.TotalRemaining))
	}
	fmt.Fprintln(buf)
}

func cmpLine(buf *bytes.Buffer, label string, baseline, strategy decimal.Decimal) {
	diff := strategy.Sub(baseline)
	fmt.Fprintf(buf, "%-35s %15s %15s %15s\n", label, FormatCurrency(baseline), FormatCurrency(strategy), FormatCurrency(diff))
}
