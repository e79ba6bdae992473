package output

import (
	"bytes"
	"encoding/csv"

	"github.com/rpgo/loan-simulator/internal/domain"
)

// CSVDetailedExporter writes the month-by-month schedule of both runs, one
// row per run, month and loan.
type CSVDetailedExporter struct{}

func (c CSVDetailedExporter) Name() string { return "detailed-csv" }

func (c CSVDetailedExporter) Format(results *domain.ProjectionComparison) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"Run", "MonthIndex", "Month", "LoanID", "StandardPayment", "Interest", "Principal", "Overpayment", "Remaining", "PaidOff"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	runs := []struct {
		name string
		proj *domain.Projection
	}{
		{"baseline", &results.Baseline},
		{"strategy", &results.StrategyRun},
	}
	for _, run := range runs {
		for _, m := range run.proj.Months {
			for _, lm := range m.Loans {
				row := []string{
					run.name,
					intToString(m.Index),
					m.Month,
					lm.LoanID,
					lm.StandardPayment.StringFixed(2),
					lm.Interest.StringFixed(2),
					lm.Principal.StringFixed(2),
					lm.Overpayment.StringFixed(2),
					lm.Remaining.StringFixed(2),
					boolToString(lm.PaidOff),
				}
				if err := w.Write(row); err != nil {
					return nil, err
				}
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
