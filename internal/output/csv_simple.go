package output

import (
	"bytes"
	"encoding/csv"

	"github.com/rpgo/loan-simulator/internal/domain"
)

// CSVSummarizer implements the simple summary CSV output (one row per loan
// plus a TOTAL row).
type CSVSummarizer struct{}

func (c CSVSummarizer) Name() string { return "csv" }

func (c CSVSummarizer) Format(results *domain.ProjectionComparison) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"LoanID", "BaselineInterest", "StrategyInterest", "InterestSaved", "BaselinePayoffMonth", "StrategyPayoffMonth", "OverpaymentApplied"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, id := range loanIDs(results) {
		base := loanInterest(&results.Baseline, id)
		strat := loanInterest(&results.StrategyRun, id)
		row := []string{
			id,
			base.StringFixed(2),
			strat.StringFixed(2),
			base.Sub(strat).StringFixed(2),
			intToString(results.Baseline.LoanPayoffMonth(id)),
			intToString(results.StrategyRun.LoanPayoffMonth(id)),
			loanOverpayment(&results.StrategyRun, id).StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	s := results.Summary
	total := []string{
		"TOTAL",
		s.BaselineInterest.StringFixed(2),
		s.StrategyInterest.StringFixed(2),
		s.TotalInterestSaved.StringFixed(2),
		intToString(s.BaselineMonthsToPayoff),
		intToString(s.ProjectedMonthsToPayoff),
		results.StrategyRun.TotalOverpayment.StringFixed(2),
	}
	if err := w.Write(total); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
