package output

import (
	"sort"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/shopspring/decimal"
)

// Highlights encapsulates the headline findings of one comparison.
type Highlights struct {
	InterestSaved    decimal.Decimal
	PercentSaved     decimal.Decimal
	MonthsSaved      int
	FirstPaidOffLoan string
	FirstPaidOffIdx  int
	Worthwhile       bool
}

// AnalyzeComparison derives the headline findings from a comparison.
// Extracted from the console formatters for testability.
func AnalyzeComparison(results *domain.ProjectionComparison) Highlights {
	s := results.Summary
	h := Highlights{
		InterestSaved: s.TotalInterestSaved,
		PercentSaved:  decimal.Zero,
		MonthsSaved:   s.MonthsSaved,
	}
	if s.BaselineInterest.IsPositive() {
		h.PercentSaved = s.TotalInterestSaved.Div(s.BaselineInterest).Mul(decimalHundred).Round(2)
	}
	for _, id := range loanIDs(results) {
		idx := results.StrategyRun.LoanPayoffMonth(id)
		if idx == 0 {
			continue
		}
		if h.FirstPaidOffIdx == 0 || idx < h.FirstPaidOffIdx {
			h.FirstPaidOffIdx = idx
			h.FirstPaidOffLoan = id
		}
	}
	h.Worthwhile = s.TotalInterestSaved.IsPositive() || s.MonthsSaved > 0
	return h
}

// loanIDs lists every loan that appears in either run, sorted.
func loanIDs(results *domain.ProjectionComparison) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range []*domain.Projection{&results.Baseline, &results.StrategyRun} {
		if len(p.Months) == 0 {
			continue
		}
		for _, lm := range p.Months[0].Loans {
			if !seen[lm.LoanID] {
				seen[lm.LoanID] = true
				ids = append(ids, lm.LoanID)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// loanOverpayment sums the overpayment a loan received over a run.
func loanOverpayment(p *domain.Projection, loanID string) decimal.Decimal {
	total := decimal.Zero
	for _, m := range p.Months {
		if lm, ok := m.Loan(loanID); ok {
			total = total.Add(lm.Overpayment)
		}
	}
	return total
}

// loanInterest sums the interest a loan accrued over a run.
func loanInterest(p *domain.Projection, loanID string) decimal.Decimal {
	total := decimal.Zero
	for _, m := range p.Months {
		if lm, ok := m.Loan(loanID); ok {
			total = total.Add(lm.Interest)
		}
	}
	return total
}
