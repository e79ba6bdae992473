package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrStatusMismatch is returned when a row exists but is not in the status a
// transition requires.
var ErrStatusMismatch = errors.New("store: unexpected simulation status")

const simulationColumns = `id, user_id, strategy, goal, payment_reduction_target,
	monthly_overpayment_limit, reinvest_reduced_payments, status, is_active, stale,
	baseline_interest, strategy_interest, total_interest_saved,
	baseline_months_to_payoff, projected_months_to_payoff, projected_payoff_month,
	error_message, created_at, started_at, completed_at, cancelled_at`

// Results is everything a finished compute writes, in one transaction.
type Results struct {
	UserID                  string
	SimulationID            string
	BaselineInterest        decimal.Decimal
	StrategyInterest        decimal.Decimal
	TotalInterestSaved      decimal.Decimal
	BaselineMonthsToPayoff  int
	ProjectedMonthsToPayoff int
	ProjectedPayoffMonth    string
	CompletedAt             time.Time
	Snapshots               []domain.LoanSnapshot
	Metric                  domain.HistoryMetric
}

// SubmitSimulation cancels the user's running simulation, if any, and
// inserts sim as the new running row. It returns how many rows were cancelled.
func (s *Store) SubmitSimulation(ctx context.Context, sim *domain.Simulation, at time.Time) (int64, error) {
	if sim.ID == "" {
		sim.ID = uuid.NewString()
	}
	sim.Status = domain.StatusRunning
	sim.CreatedAt = at.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("submit simulation: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE simulations SET status = 'cancelled', cancelled_at = ?
		WHERE user_id = ? AND status = 'running'`, formatTime(at), sim.UserID)
	if err != nil {
		return 0, fmt.Errorf("submit simulation: cancel running: %w", err)
	}
	cancelled, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("submit simulation: rows affected: %w", err)
	}

	var target any
	if sim.PaymentReductionTarget != nil {
		target = *sim.PaymentReductionTarget
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO simulations
		(id, user_id, strategy, goal, payment_reduction_target, monthly_overpayment_limit,
		 reinvest_reduced_payments, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'running', ?)`,
		sim.ID, sim.UserID, string(sim.Strategy), string(sim.Goal), target, sim.MonthlyOverpaymentLimit,
		boolInt(sim.ReinvestReducedPayments), formatTime(sim.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("submit simulation: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("submit simulation: commit: %w", err)
	}
	return cancelled, nil
}

// GetSimulation returns one simulation scoped to its owner.
func (s *Store) GetSimulation(ctx context.Context, userID, simID string) (*domain.Simulation, error) {
	return s.getSimulation(ctx, s.db, userID, simID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getSimulation(ctx context.Context, q queryRower, userID, simID string) (*domain.Simulation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+simulationColumns+` FROM simulations WHERE id = ? AND user_id = ?`, simID, userID)
	sim, err := scanSimulation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get simulation: %w", err)
	}
	return sim, nil
}

// GetActiveSimulation returns the user's active simulation, stale or not.
func (s *Store) GetActiveSimulation(ctx context.Context, userID string) (*domain.Simulation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+simulationColumns+` FROM simulations WHERE user_id = ? AND is_active = 1`, userID)
	sim, err := scanSimulation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active simulation: %w", err)
	}
	return sim, nil
}

// ListSimulations returns a user's simulations, newest first. A limit of
// zero or less means no limit.
func (s *Store) ListSimulations(ctx context.Context, userID string, limit int) ([]domain.Simulation, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.querySimulations(ctx, `SELECT `+simulationColumns+` FROM simulations
		WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`, userID, limit)
}

// ListRunning returns every running simulation across users, oldest first.
func (s *Store) ListRunning(ctx context.Context) ([]domain.Simulation, error) {
	return s.querySimulations(ctx, `SELECT `+simulationColumns+` FROM simulations
		WHERE status = 'running' ORDER BY created_at, id`)
}

func (s *Store) querySimulations(ctx context.Context, query string, args ...any) ([]domain.Simulation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query simulations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sims []domain.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("query simulations: %w", err)
		}
		sims = append(sims, *sim)
	}
	return sims, rows.Err()
}

// MarkStarted stamps started_at if the simulation is still running and
// reports whether it was.
func (s *Store) MarkStarted(ctx context.Context, userID, simID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE simulations SET started_at = ?
		WHERE id = ? AND user_id = ? AND status = 'running'`, formatTime(at), simID, userID)
	if err != nil {
		return false, fmt.Errorf("mark started: %w", err)
	}
	return affected(res)
}

// CancelSimulation moves a running simulation to cancelled.
func (s *Store) CancelSimulation(ctx context.Context, userID, simID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE simulations SET status = 'cancelled', cancelled_at = ?
		WHERE id = ? AND user_id = ? AND status = 'running'`, formatTime(at), simID, userID)
	if err != nil {
		return false, fmt.Errorf("cancel simulation: %w", err)
	}
	return affected(res)
}

// MarkError moves a running simulation to error with a message.
func (s *Store) MarkError(ctx context.Context, userID, simID, message string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE simulations SET status = 'error', error_message = ?, completed_at = ?
		WHERE id = ? AND user_id = ? AND status = 'running'`, message, formatTime(at), simID, userID)
	if err != nil {
		return false, fmt.Errorf("mark error: %w", err)
	}
	return affected(res)
}

// ResetErrorToRunning moves a simulation from error back to running. Any
// other running simulation of the user is cancelled first so at most one
// runs. It reports false when the row is not in error.
func (s *Store) ResetErrorToRunning(ctx context.Context, userID, simID string, at time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("reset error: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM simulations WHERE id = ? AND user_id = ?`, simID, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("reset error: %w", err)
	}
	if domain.SimulationStatus(status) != domain.StatusError {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE simulations SET status = 'cancelled', cancelled_at = ?
		WHERE user_id = ? AND status = 'running' AND id <> ?`, formatTime(at), userID, simID); err != nil {
		return false, fmt.Errorf("reset error: cancel running: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE simulations SET status = 'running', error_message = '',
		started_at = NULL, completed_at = NULL
		WHERE id = ? AND user_id = ? AND status = 'error'`, simID, userID)
	if err != nil {
		return false, fmt.Errorf("reset error: %w", err)
	}
	ok, err := affected(res)
	if err != nil || !ok {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("reset error: commit: %w", err)
	}
	return true, nil
}

// PersistResults completes a running simulation and replaces its snapshots
// and history metric. Nothing is written unless the row is still running;
// the returned bool reports whether the write happened.
func (s *Store) PersistResults(ctx context.Context, r *Results) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("persist results: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE simulations SET
		status = 'completed', stale = 0, error_message = '',
		baseline_interest = ?, strategy_interest = ?, total_interest_saved = ?,
		baseline_months_to_payoff = ?, projected_months_to_payoff = ?, projected_payoff_month = ?,
		completed_at = ?
		WHERE id = ? AND user_id = ? AND status = 'running'`,
		r.BaselineInterest, r.StrategyInterest, r.TotalInterestSaved,
		r.BaselineMonthsToPayoff, r.ProjectedMonthsToPayoff, r.ProjectedPayoffMonth,
		formatTime(r.CompletedAt), r.SimulationID, r.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("persist results: complete: %w", err)
	}
	if ok, err := affected(res); err != nil || !ok {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_snapshots WHERE simulation_id = ?`, r.SimulationID); err != nil {
		return false, fmt.Errorf("persist results: clear snapshots: %w", err)
	}
	for _, snap := range r.Snapshots {
		_, err := tx.ExecContext(ctx, `INSERT INTO loan_snapshots
			(simulation_id, loan_id, starting_balance, starting_rate, remaining_term_months,
			 starting_month, original_principal, standard_payment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SimulationID, snap.LoanID, snap.StartingBalance, snap.StartingRate, snap.RemainingTermMonths,
			formatMonth(snap.StartingMonth), snap.OriginalPrincipal, snap.StandardPayment,
		)
		if err != nil {
			return false, fmt.Errorf("persist results: snapshot %s: %w", snap.LoanID, err)
		}
	}

	m := r.Metric
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM history_metrics WHERE simulation_id = ?`, r.SimulationID); err != nil {
		return false, fmt.Errorf("persist results: clear metric: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO history_metrics
		(id, simulation_id, user_id, strategy, monthly_overpayment_limit, baseline_interest,
		 strategy_interest, total_interest_saved, baseline_months_to_payoff,
		 projected_months_to_payoff, projected_payoff_month, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, r.SimulationID, r.UserID, string(m.Strategy), m.MonthlyOverpaymentLimit, m.BaselineInterest,
		m.StrategyInterest, m.TotalInterestSaved, m.BaselineMonthsToPayoff,
		m.ProjectedMonthsToPayoff, m.ProjectedPayoffMonth, formatTime(m.CapturedAt),
	)
	if err != nil {
		return false, fmt.Errorf("persist results: metric: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("persist results: commit: %w", err)
	}
	return true, nil
}

// MarkActiveStale flags the user's active, non-stale simulation as stale in
// a single conditional update. It is a no-op when nothing matches.
func (s *Store) MarkActiveStale(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE simulations SET stale = 1, status = 'stale'
		WHERE user_id = ? AND is_active = 1 AND stale = 0`, userID)
	if err != nil {
		return false, fmt.Errorf("mark active stale: %w", err)
	}
	return affected(res)
}

// Activate makes a completed, non-stale simulation the user's active one,
// demoting the previous active row. It returns ErrNotFound, ErrStatusMismatch
// or ErrActiveConflict when it cannot.
func (s *Store) Activate(ctx context.Context, userID, simID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("activate: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `UPDATE simulations SET is_active = 0,
		status = CASE WHEN status = 'active' THEN 'completed' ELSE status END
		WHERE user_id = ? AND is_active = 1 AND id <> ?`, userID, simID)
	if err != nil {
		return fmt.Errorf("activate: clear previous: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE simulations SET is_active = 1, status = 'active'
		WHERE id = ? AND user_id = ? AND status = 'completed' AND stale = 0`, simID, userID)
	if isUniqueViolation(err) {
		return ErrActiveConflict
	}
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if !ok {
		if _, err := s.getSimulation(ctx, tx, userID, simID); err != nil {
			return err
		}
		return ErrStatusMismatch
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrActiveConflict
		}
		return fmt.Errorf("activate: commit: %w", err)
	}
	return nil
}

// ListSnapshots returns the frozen loan states of a simulation, ordered by loan id.
func (s *Store) ListSnapshots(ctx context.Context, simID string) ([]domain.LoanSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT simulation_id, loan_id, starting_balance, starting_rate,
		remaining_term_months, starting_month, original_principal, standard_payment
		FROM loan_snapshots WHERE simulation_id = ? ORDER BY loan_id`, simID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []domain.LoanSnapshot
	for rows.Next() {
		var snap domain.LoanSnapshot
		var month string
		if err := rows.Scan(&snap.SimulationID, &snap.LoanID, &snap.StartingBalance, &snap.StartingRate,
			&snap.RemainingTermMonths, &month, &snap.OriginalPrincipal, &snap.StandardPayment); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		snap.StartingMonth = parseMonth(month)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// GetHistoryMetric returns the metric row of a simulation.
func (s *Store) GetHistoryMetric(ctx context.Context, simID string) (*domain.HistoryMetric, error) {
	var m domain.HistoryMetric
	var strategy, capturedAt string
	err := s.db.QueryRowContext(ctx, `SELECT id, simulation_id, user_id, strategy, monthly_overpayment_limit,
		baseline_interest, strategy_interest, total_interest_saved, baseline_months_to_payoff,
		projected_months_to_payoff, projected_payoff_month, captured_at
		FROM history_metrics WHERE simulation_id = ?`, simID).
		Scan(&m.ID, &m.SimulationID, &m.UserID, &strategy, &m.MonthlyOverpaymentLimit,
			&m.BaselineInterest, &m.StrategyInterest, &m.TotalInterestSaved, &m.BaselineMonthsToPayoff,
			&m.ProjectedMonthsToPayoff, &m.ProjectedPayoffMonth, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history metric: %w", err)
	}
	m.Strategy = domain.Strategy(strategy)
	m.CapturedAt = parseTime(capturedAt)
	return &m, nil
}

func scanSimulation(r rowScanner) (*domain.Simulation, error) {
	var (
		sim                                 domain.Simulation
		strategy, goal, status, createdAt   string
		target                              decimal.NullDecimal
		reinvest, isActive, stale           int
		startedAt, completedAt, cancelledAt sql.NullString
	)
	err := r.Scan(&sim.ID, &sim.UserID, &strategy, &goal, &target,
		&sim.MonthlyOverpaymentLimit, &reinvest, &status, &isActive, &stale,
		&sim.BaselineInterest, &sim.StrategyInterest, &sim.TotalInterestSaved,
		&sim.BaselineMonthsToPayoff, &sim.ProjectedMonthsToPayoff, &sim.ProjectedPayoffMonth,
		&sim.ErrorMessage, &createdAt, &startedAt, &completedAt, &cancelledAt)
	if err != nil {
		return nil, err
	}
	sim.Strategy = domain.Strategy(strategy)
	sim.Goal = domain.Goal(goal)
	sim.Status = domain.SimulationStatus(status)
	if target.Valid {
		t := target.Decimal
		sim.PaymentReductionTarget = &t
	}
	sim.ReinvestReducedPayments = reinvest != 0
	sim.IsActive = isActive != 0
	sim.Stale = stale != 0
	sim.CreatedAt = parseTime(createdAt)
	sim.StartedAt = parseNullTime(startedAt)
	sim.CompletedAt = parseNullTime(completedAt)
	sim.CancelledAt = parseNullTime(cancelledAt)
	return &sim, nil
}
