package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpgo/loan-simulator/internal/calculation"
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/internal/store"
	"github.com/rpgo/loan-simulator/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// EnsureMonthlyExecutionLogs fills the execution ledger of the active,
// non-stale simulation from its starting month through now's month. Every
// missing (month, loan) row is synthesized from the strategy schedule
// re-run on the simulation's snapshots: months before now are backfilled,
// now's month is pending/scheduled. Existing rows are never touched and the
// synthesized rows do not mark anything stale. It returns how many rows
// were inserted.
func (s *Service) EnsureMonthlyExecutionLogs(ctx context.Context, userID string, now time.Time) (int, error) {
	sim, err := s.store.GetActiveSimulation(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading active simulation: %w", err)
	}
	if sim.Stale {
		return 0, nil
	}

	snaps, err := s.store.ListSnapshots(ctx, sim.ID)
	if err != nil {
		return 0, fmt.Errorf("loading snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	start := snaps[0].StartingMonth
	for _, snap := range snaps[1:] {
		if snap.StartingMonth.Before(start) {
			start = snap.StartingMonth
		}
	}
	start = dateutil.FirstOfMonth(start)
	current := dateutil.FirstOfMonth(now)
	months := dateutil.MonthRange(start, current)
	if len(months) == 0 {
		return 0, nil
	}

	existing, err := s.store.ListExecutionLogs(ctx, userID, start, current)
	if err != nil {
		return 0, fmt.Errorf("loading execution logs: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, l := range existing {
		have[ledgerKey(l.LoanID, l.Month)] = true
	}

	loans, err := s.store.ListLoans(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("loading loans: %w", err)
	}
	open := make(map[string]bool, len(loans))
	for i := range loans {
		if !loans[i].IsClosed {
			open[loans[i].ID] = true
		}
	}

	var schedule *domain.Projection
	var missing []domain.MonthlyExecutionLog
	for i, month := range months {
		for _, snap := range snaps {
			if !open[snap.LoanID] || have[ledgerKey(snap.LoanID, month)] {
				continue
			}
			if schedule == nil {
				proj, err := s.scheduleFromSnapshots(sim, snaps, start)
				if err != nil {
					return 0, err
				}
				schedule = &proj
			}
			if i >= len(schedule.Months) {
				break
			}
			lm, ok := schedule.Months[i].Loan(snap.LoanID)
			if !ok {
				// retired earlier in the schedule
				continue
			}
			missing = append(missing, synthesizeLog(sim, lm, month, current))
		}
	}

	inserted, err := s.store.InsertExecutionLogs(ctx, missing)
	if err != nil {
		return 0, fmt.Errorf("inserting execution logs: %w", err)
	}
	if inserted > 0 {
		s.logger.Info("execution logs reconciled",
			"simulation_id", sim.ID,
			"user_id", userID,
			"inserted", inserted,
			"through", dateutil.FormatISO(current))
	}
	return inserted, nil
}

func (s *Service) scheduleFromSnapshots(sim *domain.Simulation, snaps []domain.LoanSnapshot, start time.Time) (domain.Projection, error) {
	target := decimal.Zero
	if sim.PaymentReductionTarget != nil {
		target = *sim.PaymentReductionTarget
	}
	proj, err := calculation.GenerateStrategyProjection(calculation.ProjectionLoansFromSnapshots(snaps), calculation.StrategyOptions{
		Start:                   start,
		MaxMonths:               s.engine.MaxMonths,
		Strategy:                sim.Strategy,
		Goal:                    sim.Goal,
		MonthlyBudget:           sim.MonthlyOverpaymentLimit,
		ReinvestReducedPayments: sim.ReinvestReducedPayments,
		PaymentReductionTarget:  target,
	})
	if err != nil {
		return domain.Projection{}, fmt.Errorf("re-running strategy schedule: %w", err)
	}
	return proj, nil
}

func synthesizeLog(sim *domain.Simulation, lm domain.LoanMonth, month, current time.Time) domain.MonthlyExecutionLog {
	l := domain.MonthlyExecutionLog{
		UserID:               sim.UserID,
		LoanID:               lm.LoanID,
		SimulationID:         sim.ID,
		Month:                month,
		ScheduledOverpayment: lm.Overpayment,
		InterestPortion:      lm.Interest,
		PrincipalPortion:     lm.Principal.Sub(lm.Overpayment),
	}
	if l.PrincipalPortion.IsNegative() {
		l.PrincipalPortion = decimal.Zero
	}
	if month.Before(current) {
		l.PaymentStatus = domain.PaymentBackfilled
		l.OverpaymentStatus = domain.OverpaymentBackfilled
		l.ReasonCode = domain.ReasonAutoBackfill
	} else {
		l.PaymentStatus = domain.PaymentPending
		l.OverpaymentStatus = domain.OverpaymentScheduled
	}
	return l
}

func ledgerKey(loanID string, month time.Time) string {
	return loanID + "|" + dateutil.FormatISO(month)
}
