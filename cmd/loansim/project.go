package main

import (
	"fmt"
	"strings"

	"github.com/rpgo/loan-simulator/internal/calculation"
	"github.com/rpgo/loan-simulator/internal/config"
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/internal/output"
	"github.com/spf13/cobra"
)

var (
	flagProjectStrategy  string
	flagProjectGoal      string
	flagProjectTarget    string
	flagProjectLimit     string
	flagProjectReinvest  bool
	flagProjectStart     string
	flagProjectFormat    string
	flagProjectOutputDir string
	flagProjectRows      int
)

var projectCmd = &cobra.Command{
	Use:   "project <portfolio.yaml>",
	Short: "Compare a strategy against the baseline for a portfolio file",
	Long: "Runs the baseline and strategy projections for the loans in a portfolio file " +
		"without touching the database. Formats: " + strings.Join(output.AvailableFormatterNames(), ", ") + ", all.",
	Args: cobra.ExactArgs(1),
	RunE: runProject,
}

func init() {
	projectCmd.Flags().StringVarP(&flagProjectStrategy, "strategy", "s", string(domain.StrategyAvalanche), "Allocation strategy: avalanche, snowball, equal, ratio")
	projectCmd.Flags().StringVarP(&flagProjectGoal, "goal", "g", string(domain.GoalFastestPayoff), "Goal: fastest_payoff or payment_reduction")
	projectCmd.Flags().StringVar(&flagProjectTarget, "target", "", "Monthly payment reduction target (payment_reduction goal)")
	projectCmd.Flags().StringVar(&flagProjectLimit, "limit", "", "Monthly overpayment budget (defaults to the portfolio settings)")
	projectCmd.Flags().BoolVar(&flagProjectReinvest, "reinvest", false, "Roll freed payments into the budget (defaults to the portfolio settings)")
	projectCmd.Flags().StringVar(&flagProjectStart, "start", "", "First projected month, YYYY-MM (defaults to this month)")
	projectCmd.Flags().StringVarP(&flagProjectFormat, "format", "f", "console", "Output format")
	projectCmd.Flags().StringVarP(&flagProjectOutputDir, "output-dir", "o", "", "Write the report to this directory instead of stdout")
	projectCmd.Flags().IntVar(&flagProjectRows, "rows", 12, "Schedule rows in the console report")
	rootCmd.AddCommand(projectCmd)
}

func runProject(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := config.NewInputParser().LoadPortfolio(args[0])
	if err != nil {
		return err
	}
	opts, err := projectOptions(cmd, p.Settings)
	if err != nil {
		return err
	}

	engine := newEngine(cfg, cfg.Log.NewLogger())
	cmp, err := engine.Run(p.Loans, opts)
	if err != nil {
		return err
	}

	if flagProjectOutputDir != "" {
		files, err := output.GenerateReport(cmp, flagProjectFormat, flagProjectOutputDir)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "  Wrote %s\n", f)
		}
		return nil
	}

	var f output.Formatter
	if output.NormalizeFormatName(flagProjectFormat) == "console" {
		f = output.ConsoleVerboseFormatter{ScheduleRows: flagProjectRows}
	} else {
		f = output.GetFormatterByName(flagProjectFormat)
	}
	if f == nil {
		return output.UnsupportedFormatError(flagProjectFormat)
	}
	data, err := f.Format(cmp)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func projectOptions(cmd *cobra.Command, settings domain.UserSettings) (calculation.RunOptions, error) {
	strategy, err := domain.ParseStrategy(flagProjectStrategy)
	if err != nil {
		return calculation.RunOptions{}, err
	}
	goal, err := domain.ParseGoal(flagProjectGoal)
	if err != nil {
		return calculation.RunOptions{}, err
	}
	opts := calculation.RunOptions{
		Strategy:                strategy,
		Goal:                    goal,
		MonthlyBudget:           settings.MonthlyOverpaymentLimit,
		ReinvestReducedPayments: settings.ReinvestReducedPayments,
	}
	if limit, err := optionalDecimal(cmd, "limit", flagProjectLimit); err != nil {
		return opts, err
	} else if limit != nil {
		opts.MonthlyBudget = *limit
	}
	if cmd.Flags().Changed("reinvest") {
		opts.ReinvestReducedPayments = flagProjectReinvest
	}
	if target, err := optionalDecimal(cmd, "target", flagProjectTarget); err != nil {
		return opts, err
	} else if target != nil {
		opts.PaymentReductionTarget = *target
	}
	if goal == domain.GoalPaymentReduction && !opts.PaymentReductionTarget.IsPositive() {
		return opts, fmt.Errorf("payment_reduction goal requires a positive --target")
	}
	if flagProjectStart != "" {
		start, err := parseMonth(flagProjectStart)
		if err != nil {
			return opts, err
		}
		opts.Start = start
	}
	if opts.MonthlyBudget.IsNegative() {
		return opts, fmt.Errorf("monthly overpayment limit cannot be negative")
	}
	return opts, nil
}
