package main

import (
	"context"
	"fmt"

	"github.com/rpgo/loan-simulator/internal/output"
	"github.com/spf13/cobra"
)

var (
	flagSettingsLimit    string
	flagSettingsReinvest bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change overpayment settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the monthly overpayment limit or reinvest flag",
	RunE:  runSettingsSet,
}

func init() {
	settingsSetCmd.Flags().StringVar(&flagSettingsLimit, "limit", "", "Monthly overpayment limit")
	settingsSetCmd.Flags().BoolVar(&flagSettingsReinvest, "reinvest", false, "Roll freed payments into the budget")
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		s, err := a.portfolio.GetSettings(ctx, flagUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Monthly overpayment limit: %s\n", output.FormatCurrency(s.MonthlyOverpaymentLimit))
		fmt.Fprintf(cmd.OutOrStdout(), "  Reinvest reduced payments: %v\n", s.ReinvestReducedPayments)
		return nil
	})
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	limit, err := optionalDecimal(cmd, "limit", flagSettingsLimit)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		s, err := a.portfolio.GetSettings(ctx, flagUser)
		if err != nil {
			return err
		}
		if limit != nil {
			s.MonthlyOverpaymentLimit = *limit
		}
		if cmd.Flags().Changed("reinvest") {
			s.ReinvestReducedPayments = flagSettingsReinvest
		}
		updated, err := a.portfolio.UpdateSettings(ctx, flagUser, s)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Monthly overpayment limit: %s\n", output.FormatCurrency(updated.MonthlyOverpaymentLimit))
		fmt.Fprintf(cmd.OutOrStdout(), "  Reinvest reduced payments: %v\n", updated.ReinvestReducedPayments)
		return nil
	})
}
