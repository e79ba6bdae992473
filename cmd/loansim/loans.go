package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rpgo/loan-simulator/internal/config"
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/internal/output"
	"github.com/rpgo/loan-simulator/internal/portfolio"
	"github.com/spf13/cobra"
)

var (
	flagLoanID        string
	flagLoanName      string
	flagLoanPrincipal string
	flagLoanBalance   string
	flagLoanRate      string
	flagLoanTerm      int
	flagLoanStart     string
	flagLoanMonth     string
	flagLoansJSON     bool
)

var loansCmd = &cobra.Command{
	Use:   "loans",
	Short: "Manage the loan portfolio",
}

var loansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loans",
	RunE:  runLoansList,
}

var loansAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a loan",
	RunE:  runLoansAdd,
}

var loansPatchCmd = &cobra.Command{
	Use:   "patch <loan-id>",
	Short: "Change fields of a loan",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoansPatch,
}

var loansCloseCmd = &cobra.Command{
	Use:   "close <loan-id>",
	Short: "Mark a loan paid off",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoansClose,
}

var loansDeleteCmd = &cobra.Command{
	Use:   "delete <loan-id>",
	Short: "Delete a loan and its ledger rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoansDelete,
}

var loansImportCmd = &cobra.Command{
	Use:   "import <portfolio.yaml>",
	Short: "Import loans and settings from a portfolio file",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoansImport,
}

var loansExportCmd = &cobra.Command{
	Use:   "export <portfolio.yaml>",
	Short: "Write the stored portfolio to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoansExport,
}

func init() {
	loansListCmd.Flags().BoolVar(&flagLoansJSON, "json", false, "Print JSON")

	for _, c := range []*cobra.Command{loansAddCmd, loansPatchCmd} {
		c.Flags().StringVar(&flagLoanName, "name", "", "Display name")
		c.Flags().StringVar(&flagLoanPrincipal, "principal", "", "Original principal")
		c.Flags().StringVar(&flagLoanBalance, "balance", "", "Remaining balance (defaults to principal)")
		c.Flags().StringVar(&flagLoanRate, "rate", "", "Annual rate, 0.065 or 6.5")
		c.Flags().IntVar(&flagLoanTerm, "term", 0, "Remaining term in months")
		c.Flags().StringVar(&flagLoanStart, "start", "", "Start month, YYYY-MM")
	}
	loansAddCmd.Flags().StringVar(&flagLoanID, "id", "", "Loan id (generated when empty)")
	_ = loansAddCmd.MarkFlagRequired("principal")
	_ = loansAddCmd.MarkFlagRequired("rate")
	_ = loansAddCmd.MarkFlagRequired("term")

	loansCloseCmd.Flags().StringVar(&flagLoanMonth, "month", "", "Month the loan was closed, YYYY-MM (defaults to this month)")

	loansCmd.AddCommand(loansListCmd, loansAddCmd, loansPatchCmd, loansCloseCmd, loansDeleteCmd, loansImportCmd, loansExportCmd)
	rootCmd.AddCommand(loansCmd)
}

func runLoansList(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		loans, err := a.portfolio.ListLoans(ctx, flagUser)
		if err != nil {
			return err
		}
		if flagLoansJSON {
			return printJSON(cmd.OutOrStdout(), loans)
		}
		if len(loans) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "  No loans. Add one with `loansim loans add`.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tBALANCE\tRATE\tTERM\tSTART\tSTATUS")
		for _, l := range loans {
			status := "open"
			if l.IsClosed {
				status = "closed"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				l.ID, l.Name, output.FormatCurrency(l.RemainingBalance),
				output.FormatPercentage(l.AnnualRate.Shift(2)), l.TermMonths,
				l.StartMonth.Format("2006-01"), status)
		}
		return tw.Flush()
	})
}

func runLoansAdd(cmd *cobra.Command, _ []string) error {
	loan := &domain.Loan{ID: flagLoanID, Name: flagLoanName, TermMonths: flagLoanTerm}
	var err error
	if loan.Principal, err = parseDecimal("principal", flagLoanPrincipal); err != nil {
		return err
	}
	if flagLoanBalance != "" {
		if loan.RemainingBalance, err = parseDecimal("balance", flagLoanBalance); err != nil {
			return err
		}
	}
	if loan.AnnualRate, err = parseDecimal("rate", flagLoanRate); err != nil {
		return err
	}
	if flagLoanStart != "" {
		if loan.StartMonth, err = parseMonth(flagLoanStart); err != nil {
			return err
		}
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		created, err := a.portfolio.CreateLoan(ctx, flagUser, loan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Added loan %s (%s)\n", created.ID, output.FormatCurrency(created.RemainingBalance))
		return nil
	})
}

func runLoansPatch(cmd *cobra.Command, args []string) error {
	patch, err := loanPatchFromFlags(cmd)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		loan, err := a.portfolio.PatchLoan(ctx, flagUser, args[0], patch)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), loan)
	})
}

func loanPatchFromFlags(cmd *cobra.Command) (portfolio.LoanPatch, error) {
	var patch portfolio.LoanPatch
	var err error
	if cmd.Flags().Changed("name") {
		patch.Name = &flagLoanName
	}
	if patch.Principal, err = optionalDecimal(cmd, "principal", flagLoanPrincipal); err != nil {
		return patch, err
	}
	if patch.RemainingBalance, err = optionalDecimal(cmd, "balance", flagLoanBalance); err != nil {
		return patch, err
	}
	if patch.AnnualRate, err = optionalDecimal(cmd, "rate", flagLoanRate); err != nil {
		return patch, err
	}
	if cmd.Flags().Changed("term") {
		patch.TermMonths = &flagLoanTerm
	}
	if cmd.Flags().Changed("start") {
		start, err := parseMonth(flagLoanStart)
		if err != nil {
			return patch, err
		}
		patch.StartMonth = &start
	}
	return patch, nil
}

func runLoansClose(cmd *cobra.Command, args []string) error {
	month := time.Now().UTC()
	if flagLoanMonth != "" {
		m, err := parseMonth(flagLoanMonth)
		if err != nil {
			return err
		}
		month = m
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		loan, err := a.portfolio.CloseLoan(ctx, flagUser, args[0], month)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Closed loan %s as of %s\n", loan.ID, loan.ClosedMonth.Format("2006-01"))
		return nil
	})
}

func runLoansDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.portfolio.DeleteLoan(ctx, flagUser, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Deleted loan %s\n", args[0])
		return nil
	})
}

func runLoansImport(cmd *cobra.Command, args []string) error {
	p, err := config.NewInputParser().LoadPortfolio(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		loans, err := a.portfolio.ImportPortfolio(ctx, flagUser, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Imported %d loans\n", len(loans))
		return nil
	})
}

func runLoansExport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		loans, err := a.portfolio.ListLoans(ctx, flagUser)
		if err != nil {
			return err
		}
		settings, err := a.portfolio.GetSettings(ctx, flagUser)
		if err != nil {
			return err
		}
		if err := output.SavePortfolio(&domain.Portfolio{Loans: loans, Settings: settings}, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Wrote %d loans to %s\n", len(loans), args[0])
		return nil
	})
}
