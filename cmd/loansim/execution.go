package main

import (
	"context"
	"time"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/internal/portfolio"
	"github.com/spf13/cobra"
)

var (
	flagExecMonth       string
	flagExecPayment     string
	flagExecOverpayment string
	flagExecActual      string
	flagExecReason      string
	flagExecFrom        string
	flagExecTo          string
)

var executionCmd = &cobra.Command{
	Use:     "execution",
	Aliases: []string{"ledger"},
	Short:   "Follow the monthly execution ledger of the active plan",
}

var executionRecordCmd = &cobra.Command{
	Use:   "record <loan-id>",
	Short: "Record what was actually paid for a loan in a month",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecutionRecord,
}

var executionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger rows, creating any the active plan is missing",
	RunE:  runExecutionList,
}

func init() {
	f := executionRecordCmd.Flags()
	f.StringVar(&flagExecMonth, "month", "", "Ledger month, YYYY-MM (defaults to this month)")
	f.StringVar(&flagExecPayment, "payment", string(domain.PaymentPaid), "Payment status: pending, paid, backfilled")
	f.StringVar(&flagExecOverpayment, "overpayment", string(domain.OverpaymentExecuted), "Overpayment status: scheduled, executed, skipped, backfilled")
	f.StringVar(&flagExecActual, "actual", "0", "Overpayment actually made")
	f.StringVar(&flagExecReason, "reason", "", "Reason code, e.g. why an overpayment was skipped")

	executionListCmd.Flags().StringVar(&flagExecFrom, "from", "", "First month, YYYY-MM (defaults to 12 months ago)")
	executionListCmd.Flags().StringVar(&flagExecTo, "to", "", "Last month, YYYY-MM (defaults to this month)")

	executionCmd.AddCommand(executionRecordCmd, executionListCmd)
	rootCmd.AddCommand(executionCmd)
}

func runExecutionRecord(cmd *cobra.Command, args []string) error {
	ec := portfolio.ExecutionCommand{
		LoanID:            args[0],
		Month:             time.Now().UTC(),
		PaymentStatus:     domain.PaymentStatus(flagExecPayment),
		OverpaymentStatus: domain.OverpaymentStatus(flagExecOverpayment),
		ReasonCode:        flagExecReason,
	}
	var err error
	if flagExecMonth != "" {
		if ec.Month, err = parseMonth(flagExecMonth); err != nil {
			return err
		}
	}
	if ec.ActualOverpayment, err = parseDecimal("actual", flagExecActual); err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		row, err := a.portfolio.RecordExecution(ctx, flagUser, ec)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), row)
	})
}

func runExecutionList(cmd *cobra.Command, _ []string) error {
	now := time.Now().UTC()
	to := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, -12, 0)
	var err error
	if flagExecFrom != "" {
		if from, err = parseMonth(flagExecFrom); err != nil {
			return err
		}
	}
	if flagExecTo != "" {
		if to, err = parseMonth(flagExecTo); err != nil {
			return err
		}
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if _, err := a.sims.EnsureMonthlyExecutionLogs(ctx, flagUser, now); err != nil {
			return err
		}
		logs, err := a.store.ListExecutionLogs(ctx, flagUser, from, to)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), logs)
	})
}
