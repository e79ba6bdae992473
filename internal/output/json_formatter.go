package output

import (
	"encoding/json"

	"github.com/rpgo/loan-simulator/internal/domain"
	"gopkg.in/yaml.v3"
)

// JSONFormatter serializes the projection comparison as pretty-printed JSON.
type JSONFormatter struct{}

func (j JSONFormatter) Name() string { return "json" }

func (j JSONFormatter) Format(results *domain.ProjectionComparison) ([]byte, error) {
	return json.MarshalIndent(results, "", "  ")
}

// YAMLFormatter emits the headline summary plus per-loan payoff months as YAML.
// Month-by-month rows are left to the JSON and CSV schedule outputs.
type YAMLFormatter struct{}

func (y YAMLFormatter) Name() string { return "yaml" }

type yamlReport struct {
	Strategy                string            `yaml:"strategy"`
	Goal                    string            `yaml:"goal"`
	MonthlyOverpaymentLimit string            `yaml:"monthly_overpayment_limit"`
	ReinvestReducedPayments bool              `yaml:"reinvest_reduced_payments"`
	StartMonth              string            `yaml:"start_month"`
	BaselineInterest        string            `yaml:"baseline_interest"`
	StrategyInterest        string            `yaml:"strategy_interest"`
	TotalInterestSaved      string            `yaml:"total_interest_saved"`
	BaselineMonthsToPayoff  int               `yaml:"baseline_months_to_payoff"`
	ProjectedMonthsToPayoff int               `yaml:"projected_months_to_payoff"`
	MonthsSaved             int               `yaml:"months_saved"`
	BaselinePayoffMonth     string            `yaml:"baseline_payoff_month"`
	ProjectedPayoffMonth    string            `yaml:"projected_payoff_month"`
	Loans                   []yamlLoanPayoffs `yaml:"loans"`
}

type yamlLoanPayoffs struct {
	ID                 string `yaml:"id"`
	BaselinePayoffIdx  int    `yaml:"baseline_payoff_month_index"`
	StrategyPayoffIdx  int    `yaml:"strategy_payoff_month_index"`
	OverpaymentApplied string `yaml:"overpayment_applied"`
}

func (y YAMLFormatter) Format(results *domain.ProjectionComparison) ([]byte, error) {
	s := results.Summary
	r := yamlReport{
		Strategy:                string(results.Strategy),
		Goal:                    string(results.Goal),
		MonthlyOverpaymentLimit: results.MonthlyOverpaymentLimit.StringFixed(2),
		ReinvestReducedPayments: results.ReinvestReducedPayments,
		StartMonth:              s.StartMonth,
		BaselineInterest:        s.BaselineInterest.StringFixed(2),
		StrategyInterest:        s.StrategyInterest.StringFixed(2),
		TotalInterestSaved:      s.TotalInterestSaved.StringFixed(2),
		BaselineMonthsToPayoff:  s.BaselineMonthsToPayoff,
		ProjectedMonthsToPayoff: s.ProjectedMonthsToPayoff,
		MonthsSaved:             s.MonthsSaved,
		BaselinePayoffMonth:     s.BaselinePayoffMonth,
		ProjectedPayoffMonth:    s.ProjectedPayoffMonth,
	}
	for _, id := range loanIDs(results) {
		r.Loans = append(r.Loans, yamlLoanPayoffs{
			ID:                 id,
			BaselinePayoffIdx:  results.Baseline.LoanPayoffMonth(id),
			StrategyPayoffIdx:  results.StrategyRun.LoanPayoffMonth(id),
			OverpaymentApplied: loanOverpayment(&results.StrategyRun, id).StringFixed(2),
		})
	}
	return yaml.Marshal(r)
}
