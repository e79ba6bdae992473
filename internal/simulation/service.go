// Package simulation drives the simulation lifecycle: submission, detached
// compute, activation, cancellation, retry, staleness and ledger
// reconciliation. The store is the only source of truth for status and every
// transition is a conditional update scoped by the expected prior status.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpgo/loan-simulator/internal/calculation"
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/internal/store"
	"github.com/rpgo/loan-simulator/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// Store is the persistence the lifecycle needs. *store.Store satisfies it.
type Store interface {
	ListLoans(ctx context.Context, userID string) ([]domain.Loan, error)
	GetSettings(ctx context.Context, userID string) (domain.UserSettings, error)

	SubmitSimulation(ctx context.Context, sim *domain.Simulation, at time.Time) (int64, error)
	GetSimulation(ctx context.Context, userID, simID string) (*domain.Simulation, error)
	GetActiveSimulation(ctx context.Context, userID string) (*domain.Simulation, error)
	ListSimulations(ctx context.Context, userID string, limit int) ([]domain.Simulation, error)
	ListRunning(ctx context.Context) ([]domain.Simulation, error)
	MarkStarted(ctx context.Context, userID, simID string, at time.Time) (bool, error)
	CancelSimulation(ctx context.Context, userID, simID string, at time.Time) (bool, error)
	MarkError(ctx context.Context, userID, simID, message string, at time.Time) (bool, error)
	ResetErrorToRunning(ctx context.Context, userID, simID string, at time.Time) (bool, error)
	PersistResults(ctx context.Context, r *store.Results) (bool, error)
	MarkActiveStale(ctx context.Context, userID string) (bool, error)
	Activate(ctx context.Context, userID, simID string) error
	ListSnapshots(ctx context.Context, simID string) ([]domain.LoanSnapshot, error)
	GetHistoryMetric(ctx context.Context, simID string) (*domain.HistoryMetric, error)

	InsertExecutionLogs(ctx context.Context, logs []domain.MonthlyExecutionLog) (int, error)
	ListExecutionLogs(ctx context.Context, userID string, from, to time.Time) ([]domain.MonthlyExecutionLog, error)
}

// QueueCommand is a simulation request. Nil limit and reinvest fields are
// taken from the user's settings.
type QueueCommand struct {
	Strategy                domain.Strategy
	Goal                    domain.Goal
	PaymentReductionTarget  *decimal.Decimal
	MonthlyOverpaymentLimit *decimal.Decimal
	ReinvestReducedPayments *bool
}

// QueueResult is what a submitter gets back immediately.
type QueueResult struct {
	SimulationID      string                  `json:"simulation_id"`
	Status            domain.SimulationStatus `json:"status"`
	CancelledPrevious bool                    `json:"cancelled_previous"`
}

// Service implements the simulation lifecycle.
type Service struct {
	store  Store
	queue  TaskQueue
	engine *calculation.ProjectionEngine
	logger *slog.Logger
}

// NewService wires a lifecycle service. A nil engine gets the defaults.
func NewService(st Store, queue TaskQueue, engine *calculation.ProjectionEngine, logger *slog.Logger) *Service {
	if engine == nil {
		engine = calculation.NewProjectionEngine()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		queue:  queue,
		engine: engine,
		logger: logger.With("component", "simulation"),
	}
}

// QueueSimulation validates the command, cancels the user's running
// simulation, inserts a new running one and schedules its compute.
func (s *Service) QueueSimulation(ctx context.Context, userID string, cmd QueueCommand) (*QueueResult, error) {
	strategy, err := domain.ParseStrategy(string(cmd.Strategy))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	goal, err := domain.ParseGoal(string(cmd.Goal))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	switch {
	case goal == domain.GoalPaymentReduction && (cmd.PaymentReductionTarget == nil || !cmd.PaymentReductionTarget.IsPositive()):
		return nil, fmt.Errorf("%w: payment_reduction goal requires a positive target", ErrValidation)
	case goal != domain.GoalPaymentReduction && cmd.PaymentReductionTarget != nil:
		return nil, fmt.Errorf("%w: payment reduction target only applies to the payment_reduction goal", ErrValidation)
	}

	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	limit := settings.MonthlyOverpaymentLimit
	if cmd.MonthlyOverpaymentLimit != nil {
		limit = *cmd.MonthlyOverpaymentLimit
	}
	if limit.IsNegative() {
		return nil, fmt.Errorf("%w: monthly overpayment limit cannot be negative", ErrValidation)
	}
	reinvest := settings.ReinvestReducedPayments
	if cmd.ReinvestReducedPayments != nil {
		reinvest = *cmd.ReinvestReducedPayments
	}

	sim := &domain.Simulation{
		UserID:                  userID,
		Strategy:                strategy,
		Goal:                    goal,
		PaymentReductionTarget:  cmd.PaymentReductionTarget,
		MonthlyOverpaymentLimit: limit.Round(2),
		ReinvestReducedPayments: reinvest,
	}
	now := nowFunc()
	cancelled, err := s.store.SubmitSimulation(ctx, sim, now)
	if err != nil {
		return nil, fmt.Errorf("submitting simulation: %w", err)
	}

	log := s.logger.With("simulation_id", sim.ID, "user_id", userID)
	log.Info("simulation queued",
		"strategy", strategy,
		"goal", goal,
		"monthly_overpayment_limit", sim.MonthlyOverpaymentLimit.StringFixed(2),
		"cancelled_previous", cancelled > 0)

	if err := s.queue.Enqueue(ctx, Task{UserID: userID, SimulationID: sim.ID}); err != nil {
		log.Error("enqueue failed", "error", err, "error_class", ClassInternal)
		if _, markErr := s.store.MarkError(context.WithoutCancel(ctx), userID, sim.ID, "enqueue failed: "+err.Error(), nowFunc()); markErr != nil {
			log.Error("recording enqueue failure", "error", markErr)
		}
		return &QueueResult{SimulationID: sim.ID, Status: domain.StatusError, CancelledPrevious: cancelled > 0}, nil
	}

	return &QueueResult{SimulationID: sim.ID, Status: domain.StatusRunning, CancelledPrevious: cancelled > 0}, nil
}

// HandleTask adapts ComputeAndPersist to the worker pool.
func (s *Service) HandleTask(ctx context.Context, task Task) {
	s.ComputeAndPersist(ctx, task.UserID, task.SimulationID)
}

// ComputeAndPersist runs the projections for a running simulation and
// stores the results. Failures are logged and recorded as status error;
// nothing is returned to the caller.
func (s *Service) ComputeAndPersist(ctx context.Context, userID, simID string) {
	log := s.logger.With("simulation_id", simID, "user_id", userID)

	err := s.compute(ctx, log, userID, simID)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		// Shutdown, not a computation failure. The row stays running and is
		// picked up again by RecoverRunning.
		log.Warn("compute interrupted", "error", err)
		return
	}

	log.Error("simulation compute failed", "error", err, "error_class", errorClass(err))
	marked, markErr := s.store.MarkError(ctx, userID, simID, err.Error(), nowFunc())
	if markErr != nil {
		log.Error("recording compute failure", "error", markErr)
		return
	}
	if !marked {
		log.Info("simulation left running state before failure was recorded")
	}
}

func (s *Service) compute(ctx context.Context, log *slog.Logger, userID, simID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = computeErr(ClassPanic, fmt.Errorf("%v", r))
		}
	}()

	now := nowFunc()
	running, err := s.store.MarkStarted(ctx, userID, simID, now)
	if err != nil {
		return computeErr(ClassStore, err)
	}
	if !running {
		log.Debug("simulation no longer running, skipping compute")
		return nil
	}

	sim, err := s.store.GetSimulation(ctx, userID, simID)
	if err != nil {
		return computeErr(ClassStore, err)
	}
	loans, err := s.store.ListLoans(ctx, userID)
	if err != nil {
		return computeErr(ClassStore, err)
	}

	start := dateutil.FirstOfMonth(now)
	input, err := calculation.NewProjectionLoans(loans, start)
	if err != nil {
		return computeErr(ClassInput, err)
	}

	opts := calculation.RunOptions{
		Start:                   start,
		Strategy:                sim.Strategy,
		Goal:                    sim.Goal,
		MonthlyBudget:           sim.MonthlyOverpaymentLimit,
		ReinvestReducedPayments: sim.ReinvestReducedPayments,
	}
	if sim.PaymentReductionTarget != nil {
		opts.PaymentReductionTarget = *sim.PaymentReductionTarget
	}
	cmp, err := s.engine.RunProjectionLoans(input, opts)
	if err != nil {
		return computeErr(ClassEngine, err)
	}

	summary := cmp.Summary
	res := &store.Results{
		UserID:                  userID,
		SimulationID:            simID,
		BaselineInterest:        summary.BaselineInterest,
		StrategyInterest:        summary.StrategyInterest,
		TotalInterestSaved:      summary.TotalInterestSaved,
		BaselineMonthsToPayoff:  summary.BaselineMonthsToPayoff,
		ProjectedMonthsToPayoff: summary.ProjectedMonthsToPayoff,
		ProjectedPayoffMonth:    summary.ProjectedPayoffMonth,
		CompletedAt:             nowFunc(),
		Snapshots:               snapshotsFor(simID, input, start),
		Metric: domain.HistoryMetric{
			UserID:                  userID,
			SimulationID:            simID,
			Strategy:                sim.Strategy,
			MonthlyOverpaymentLimit: sim.MonthlyOverpaymentLimit,
			BaselineInterest:        summary.BaselineInterest,
			StrategyInterest:        summary.StrategyInterest,
			TotalInterestSaved:      summary.TotalInterestSaved,
			BaselineMonthsToPayoff:  summary.BaselineMonthsToPayoff,
			ProjectedMonthsToPayoff: summary.ProjectedMonthsToPayoff,
			ProjectedPayoffMonth:    summary.ProjectedPayoffMonth,
			CapturedAt:              nowFunc(),
		},
	}

	written, err := s.store.PersistResults(ctx, res)
	if err != nil {
		return computeErr(ClassStore, err)
	}
	if !written {
		log.Info("simulation changed state during compute, results discarded")
		return nil
	}

	log.Info("simulation completed",
		"loans", len(input),
		"total_interest_saved", summary.TotalInterestSaved.StringFixed(2),
		"projected_months_to_payoff", summary.ProjectedMonthsToPayoff,
		"projected_payoff_month", summary.ProjectedPayoffMonth)
	return nil
}

func snapshotsFor(simID string, input []calculation.ProjectionLoan, start time.Time) []domain.LoanSnapshot {
	snaps := make([]domain.LoanSnapshot, 0, len(input))
	for _, in := range input {
		snaps = append(snaps, domain.LoanSnapshot{
			SimulationID:        simID,
			LoanID:              in.ID,
			StartingBalance:     in.Balance,
			StartingRate:        in.AnnualRate,
			RemainingTermMonths: in.TermMonths,
			StartingMonth:       start,
			OriginalPrincipal:   in.OriginalAmount,
			StandardPayment:     in.StandardPayment,
		})
	}
	return snaps
}

// GetSimulationDetail returns a simulation with its snapshots and metric.
func (s *Service) GetSimulationDetail(ctx context.Context, userID, simID string) (*domain.SimulationDetail, error) {
	sim, err := s.getSimulation(ctx, userID, simID)
	if err != nil {
		return nil, err
	}
	snaps, err := s.store.ListSnapshots(ctx, simID)
	if err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}
	detail := &domain.SimulationDetail{Simulation: *sim, Snapshots: snaps}

	metric, err := s.store.GetHistoryMetric(ctx, simID)
	switch {
	case err == nil:
		detail.Metric = metric
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("loading history metric: %w", err)
	}
	return detail, nil
}

// ListSimulations returns the user's simulations, newest first.
func (s *Service) ListSimulations(ctx context.Context, userID string, limit int) ([]domain.Simulation, error) {
	sims, err := s.store.ListSimulations(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing simulations: %w", err)
	}
	return sims, nil
}

// ActivateSimulation makes a completed, non-stale simulation the user's
// active one. A unique-active conflict from a racing activation is retried once.
func (s *Service) ActivateSimulation(ctx context.Context, userID, simID string) (*domain.Simulation, error) {
	err := s.store.Activate(ctx, userID, simID)
	if errors.Is(err, store.ErrActiveConflict) {
		s.logger.Warn("active simulation conflict, retrying", "simulation_id", simID, "user_id", userID)
		err = s.store.Activate(ctx, userID, simID)
	}
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, simID)
	case errors.Is(err, store.ErrStatusMismatch):
		sim, getErr := s.getSimulation(ctx, userID, simID)
		if getErr != nil {
			return nil, getErr
		}
		if sim.Stale {
			return nil, fmt.Errorf("%w: simulation %s is stale", ErrConflict, simID)
		}
		return nil, fmt.Errorf("%w: simulation %s is %s, not completed", ErrConflict, simID, sim.Status)
	case errors.Is(err, store.ErrActiveConflict):
		return nil, fmt.Errorf("%w: another activation won the race", ErrConflict)
	default:
		return nil, fmt.Errorf("activating simulation: %w", err)
	}

	s.logger.Info("simulation activated", "simulation_id", simID, "user_id", userID)
	return s.getSimulation(ctx, userID, simID)
}

// CancelSimulation cancels a running simulation. An in-flight compute
// notices at its next conditional write and discards its results.
func (s *Service) CancelSimulation(ctx context.Context, userID, simID string) (*domain.Simulation, error) {
	ok, err := s.store.CancelSimulation(ctx, userID, simID, nowFunc())
	if err != nil {
		return nil, fmt.Errorf("cancelling simulation: %w", err)
	}
	sim, err := s.getSimulation(ctx, userID, simID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: simulation %s is %s, not running", ErrPrecondition, simID, sim.Status)
	}
	s.logger.Info("simulation cancelled", "simulation_id", simID, "user_id", userID)
	return sim, nil
}

// RetrySimulation moves an errored simulation back to running and
// re-enqueues it. Retrying one that is already running again is a no-op.
func (s *Service) RetrySimulation(ctx context.Context, userID, simID string) (*QueueResult, error) {
	ok, err := s.store.ResetErrorToRunning(ctx, userID, simID, nowFunc())
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, simID)
	}
	if err != nil {
		return nil, fmt.Errorf("retrying simulation: %w", err)
	}
	if !ok {
		sim, err := s.getSimulation(ctx, userID, simID)
		if err != nil {
			return nil, err
		}
		if sim.Status == domain.StatusRunning {
			return &QueueResult{SimulationID: simID, Status: domain.StatusRunning}, nil
		}
		return nil, fmt.Errorf("%w: simulation %s is %s, not error", ErrPrecondition, simID, sim.Status)
	}

	s.logger.Info("simulation retried", "simulation_id", simID, "user_id", userID)
	if err := s.queue.Enqueue(ctx, Task{UserID: userID, SimulationID: simID}); err != nil {
		return nil, fmt.Errorf("re-enqueueing simulation: %w", err)
	}
	return &QueueResult{SimulationID: simID, Status: domain.StatusRunning}, nil
}

// RecoverRunning re-enqueues every running simulation, so compute is
// at-least-once across restarts. It returns how many were enqueued.
func (s *Service) RecoverRunning(ctx context.Context) (int, error) {
	running, err := s.store.ListRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing running simulations: %w", err)
	}
	for i, sim := range running {
		if err := s.queue.Enqueue(ctx, Task{UserID: sim.UserID, SimulationID: sim.ID}); err != nil {
			return i, fmt.Errorf("re-enqueueing %s: %w", sim.ID, err)
		}
	}
	if len(running) > 0 {
		s.logger.Info("recovered running simulations", "count", len(running))
	}
	return len(running), nil
}

// WaitForTerminal polls a simulation until it leaves running.
func (s *Service) WaitForTerminal(ctx context.Context, userID, simID string, b Backoff) (*domain.Simulation, error) {
	var last *domain.Simulation
	_, err := PollUntilTerminal(ctx, func(ctx context.Context) (domain.SimulationStatus, error) {
		sim, err := s.getSimulation(ctx, userID, simID)
		if err != nil {
			return "", err
		}
		last = sim
		return sim.Status, nil
	}, b)
	if err != nil {
		return last, err
	}
	return last, nil
}

func (s *Service) getSimulation(ctx context.Context, userID, simID string) (*domain.Simulation, error) {
	sim, err := s.store.GetSimulation(ctx, userID, simID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, simID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading simulation: %w", err)
	}
	return sim, nil
}
