package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/internal/output"
	"github.com/rpgo/loan-simulator/internal/simulation"
	"github.com/spf13/cobra"
)

var (
	flagSimStrategy string
	flagSimGoal     string
	flagSimTarget   string
	flagSimLimit    string
	flagSimReinvest bool
	flagSimWait     bool
	flagSimListMax  int
)

var simulateCmd = &cobra.Command{
	Use:     "simulate",
	Aliases: []string{"sim"},
	Short:   "Queue and manage strategy simulations",
}

var simulateSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue a simulation, cancelling any running one",
	RunE:  runSimulateSubmit,
}

var simulateShowCmd = &cobra.Command{
	Use:   "show <simulation-id>",
	Short: "Show a simulation with its snapshots and metric",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulateShow,
}

var simulateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List simulations, newest first",
	RunE:  runSimulateList,
}

var simulateActivateCmd = &cobra.Command{
	Use:   "activate <simulation-id>",
	Short: "Make a completed simulation the active plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulateActivate,
}

var simulateCancelCmd = &cobra.Command{
	Use:   "cancel <simulation-id>",
	Short: "Cancel a running simulation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulateCancel,
}

var simulateRetryCmd = &cobra.Command{
	Use:   "retry <simulation-id>",
	Short: "Requeue a simulation that ended in error",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulateRetry,
}

func init() {
	f := simulateSubmitCmd.Flags()
	f.StringVarP(&flagSimStrategy, "strategy", "s", string(domain.StrategyAvalanche), "Allocation strategy: avalanche, snowball, equal, ratio")
	f.StringVarP(&flagSimGoal, "goal", "g", string(domain.GoalFastestPayoff), "Goal: fastest_payoff or payment_reduction")
	f.StringVar(&flagSimTarget, "target", "", "Monthly payment reduction target (payment_reduction goal)")
	f.StringVar(&flagSimLimit, "limit", "", "Monthly overpayment budget (defaults to settings)")
	f.BoolVar(&flagSimReinvest, "reinvest", false, "Roll freed payments into the budget (defaults to settings)")
	f.BoolVarP(&flagSimWait, "wait", "w", true, "Wait for the simulation to finish")

	simulateRetryCmd.Flags().BoolVarP(&flagSimWait, "wait", "w", true, "Wait for the simulation to finish")
	simulateListCmd.Flags().IntVar(&flagSimListMax, "limit", 20, "Maximum simulations to list")

	simulateCmd.AddCommand(simulateSubmitCmd, simulateShowCmd, simulateListCmd,
		simulateActivateCmd, simulateCancelCmd, simulateRetryCmd)
	rootCmd.AddCommand(simulateCmd)
}

func runSimulateSubmit(cmd *cobra.Command, _ []string) error {
	qc := simulation.QueueCommand{
		Strategy: domain.Strategy(flagSimStrategy),
		Goal:     domain.Goal(flagSimGoal),
	}
	var err error
	if qc.PaymentReductionTarget, err = optionalDecimal(cmd, "target", flagSimTarget); err != nil {
		return err
	}
	if qc.MonthlyOverpaymentLimit, err = optionalDecimal(cmd, "limit", flagSimLimit); err != nil {
		return err
	}
	if cmd.Flags().Changed("reinvest") {
		qc.ReinvestReducedPayments = &flagSimReinvest
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		res, err := a.sims.QueueSimulation(ctx, flagUser, qc)
		if err != nil {
			return err
		}
		if res.CancelledPrevious {
			fmt.Fprintln(cmd.OutOrStdout(), "  Cancelled the previous running simulation")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Simulation %s %s\n", res.SimulationID, res.Status)
		return waitAndPrint(ctx, cmd, a, res)
	})
}

func runSimulateRetry(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		res, err := a.sims.RetrySimulation(ctx, flagUser, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Simulation %s %s\n", res.SimulationID, res.Status)
		return waitAndPrint(ctx, cmd, a, res)
	})
}

func waitAndPrint(ctx context.Context, cmd *cobra.Command, a *app, res *simulation.QueueResult) error {
	if !flagSimWait || res.Status != domain.StatusRunning {
		return nil
	}
	sim, err := a.sims.WaitForTerminal(ctx, flagUser, res.SimulationID, simulation.BackoffFromConfig(a.cfg.Polling))
	if err != nil {
		return err
	}
	printSimulation(cmd, sim)
	return nil
}

func printSimulation(cmd *cobra.Command, sim *domain.Simulation) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "  Status:            %s\n", sim.Status)
	if sim.Status == domain.StatusError {
		fmt.Fprintf(w, "  Error:             %s\n", sim.ErrorMessage)
		return
	}
	if sim.Status != domain.StatusCompleted && sim.Status != domain.StatusActive && sim.Status != domain.StatusStale {
		return
	}
	fmt.Fprintf(w, "  Strategy:          %s (%s)\n", sim.Strategy, sim.Goal)
	fmt.Fprintf(w, "  Monthly budget:    %s\n", output.FormatCurrency(sim.MonthlyOverpaymentLimit))
	fmt.Fprintf(w, "  Interest saved:    %s\n", output.FormatCurrency(sim.TotalInterestSaved))
	fmt.Fprintf(w, "  Months to payoff:  %d (baseline %d)\n", sim.ProjectedMonthsToPayoff, sim.BaselineMonthsToPayoff)
	if sim.ProjectedPayoffMonth != "" {
		fmt.Fprintf(w, "  Debt free by:      %s\n", sim.ProjectedPayoffMonth)
	}
}

func runSimulateShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		detail, err := a.sims.GetSimulationDetail(ctx, flagUser, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), detail)
	})
}

func runSimulateList(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		sims, err := a.sims.ListSimulations(ctx, flagUser, flagSimListMax)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTRATEGY\tGOAL\tSTATUS\tACTIVE\tSAVED\tCREATED")
		for _, s := range sims {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\t%s\t%s\n",
				s.ID, s.Strategy, s.Goal, s.Status, s.IsActive,
				output.FormatCurrency(s.TotalInterestSaved), s.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	})
}

func runSimulateActivate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		sim, err := a.sims.ActivateSimulation(ctx, flagUser, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Simulation %s is now the active plan\n", sim.ID)
		return nil
	})
}

func runSimulateCancel(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		sim, err := a.sims.CancelSimulation(ctx, flagUser, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Simulation %s %s\n", sim.ID, sim.Status)
		return nil
	})
}
