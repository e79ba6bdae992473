package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rpgo/loan-simulator/internal/dashboard"
	"github.com/rpgo/loan-simulator/internal/output"
	"github.com/spf13/cobra"
)

var flagDashboardJSON bool

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Portfolio totals, payoff curves and this month's ledger",
	RunE:  runDashboard,
}

func init() {
	dashboardCmd.Flags().BoolVar(&flagDashboardJSON, "json", false, "Print the full view as JSON")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		v, err := a.dashboard.Get(ctx, flagUser, time.Now().UTC())
		if err != nil {
			return err
		}
		if flagDashboardJSON {
			return printJSON(cmd.OutOrStdout(), v)
		}
		printDashboard(cmd, v)
		return nil
	})
}

func printDashboard(cmd *cobra.Command, v *dashboard.View) {
	w := cmd.OutOrStdout()
	t := v.Totals
	fmt.Fprintf(w, "  Loans:            %d (%d open)\n", t.Loans, t.OpenLoans)
	fmt.Fprintf(w, "  Balance:          %s of %s\n", output.FormatCurrency(t.TotalBalance), output.FormatCurrency(t.TotalPrincipal))
	fmt.Fprintf(w, "  Standard payment: %s / month\n", output.FormatCurrency(t.TotalStandardPayment))
	fmt.Fprintf(w, "  Overpay limit:    %s / month\n", output.FormatCurrency(t.MonthlyOverpaymentLimit))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Baseline payoff:  %d months, %s interest\n", v.Baseline.MonthsToPayoff, output.FormatCurrency(v.Baseline.TotalInterest))
	fmt.Fprintf(w, "  With extra %s per loan: %d months, %s interest\n",
		output.FormatCurrency(v.WithExtra.ExtraPerLoan), v.WithExtra.MonthsToPayoff, output.FormatCurrency(v.WithExtra.TotalInterest))

	if h := v.ActiveSimulation; h != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Active plan:      %s (%s)\n", h.Strategy, h.SimulationID)
		if h.Stale {
			fmt.Fprintln(w, "  The portfolio changed since this plan was computed; run a new simulation.")
		}
		fmt.Fprintf(w, "  Interest saved:   %s\n", output.FormatCurrency(h.TotalInterestSaved))
	}

	if len(v.CurrentMonthLogs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Ledger for %s:\n", v.Month)
		for _, l := range v.CurrentMonthLogs {
			fmt.Fprintf(w, "    %-20s payment %-10s overpayment %-10s %s\n",
				l.LoanID, l.PaymentStatus, l.OverpaymentStatus, output.FormatCurrency(l.ScheduledOverpayment))
		}
	}
}
