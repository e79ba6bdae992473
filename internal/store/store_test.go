package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	s.SetClock(func() time.Time { return testNow })
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestLoan(t *testing.T, s *Store, userID, id string) *domain.Loan {
	t.Helper()
	loan := &domain.Loan{
		ID:                 id,
		UserID:             userID,
		Name:               "Loan " + id,
		Principal:          decimal.NewFromInt(10000),
		RemainingBalance:   decimal.NewFromInt(8000),
		AnnualRate:         decimal.RequireFromString("0.065"),
		TermMonths:         60,
		OriginalTermMonths: 60,
		StartMonth:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateLoan(context.Background(), loan))
	return loan
}

func submitTestSimulation(t *testing.T, s *Store, userID string) *domain.Simulation {
	t.Helper()
	sim := &domain.Simulation{
		UserID:                  userID,
		Strategy:                domain.StrategyAvalanche,
		Goal:                    domain.GoalFastestPayoff,
		MonthlyOverpaymentLimit: decimal.NewFromInt(200),
	}
	_, err := s.SubmitSimulation(context.Background(), sim, testNow)
	require.NoError(t, err)
	return sim
}

func completeTestSimulation(t *testing.T, s *Store, sim *domain.Simulation, loanIDs ...string) {
	t.Helper()
	res := &Results{
		UserID:                  sim.UserID,
		SimulationID:            sim.ID,
		BaselineInterest:        decimal.RequireFromString("1200.50"),
		StrategyInterest:        decimal.RequireFromString("900.25"),
		TotalInterestSaved:      decimal.RequireFromString("300.25"),
		BaselineMonthsToPayoff:  48,
		ProjectedMonthsToPayoff: 40,
		ProjectedPayoffMonth:    "2028-07-01",
		CompletedAt:             testNow,
		Metric: domain.HistoryMetric{
			Strategy:                sim.Strategy,
			MonthlyOverpaymentLimit: sim.MonthlyOverpaymentLimit,
			BaselineInterest:        decimal.RequireFromString("1200.50"),
			StrategyInterest:        decimal.RequireFromString("900.25"),
			TotalInterestSaved:      decimal.RequireFromString("300.25"),
			BaselineMonthsToPayoff:  48,
			ProjectedMonthsToPayoff: 40,
			ProjectedPayoffMonth:    "2028-07-01",
			CapturedAt:              testNow,
		},
	}
	for _, id := range loanIDs {
		res.Snapshots = append(res.Snapshots, domain.LoanSnapshot{
			LoanID:              id,
			StartingBalance:     decimal.NewFromInt(8000),
			StartingRate:        decimal.RequireFromString("0.065"),
			RemainingTermMonths: 46,
			StartingMonth:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			OriginalPrincipal:   decimal.NewFromInt(10000),
			StandardPayment:     decimal.RequireFromString("195.66"),
		})
	}
	ok, err := s.PersistResults(context.Background(), res)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "loansim.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestLoans_CRUD(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loan := createTestLoan(t, s, "u1", "")
	require.NotEmpty(t, loan.ID, "id assigned on create")

	got, err := s.GetLoan(ctx, "u1", loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "8000", got.RemainingBalance.String())
	assert.Equal(t, "0.065", got.AnnualRate.String())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), got.StartMonth)
	assert.Equal(t, testNow, got.CreatedAt)

	_, err = s.GetLoan(ctx, "someone-else", loan.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	closed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	got.IsClosed = true
	got.RemainingBalance = decimal.Zero
	got.ClosedMonth = &closed
	require.NoError(t, s.UpdateLoan(ctx, got))

	again, err := s.GetLoan(ctx, "u1", loan.ID)
	require.NoError(t, err)
	assert.True(t, again.IsClosed)
	require.NotNil(t, again.ClosedMonth)
	assert.Equal(t, closed, *again.ClosedMonth)

	require.NoError(t, s.DeleteLoan(ctx, "u1", loan.ID))
	assert.ErrorIs(t, s.DeleteLoan(ctx, "u1", loan.ID), ErrNotFound)

	missing := *again
	assert.ErrorIs(t, s.UpdateLoan(ctx, &missing), ErrNotFound)
}

func TestLoans_ListScopedToUser(t *testing.T) {
	s := createTestStore(t)
	createTestLoan(t, s, "u1", "b")
	createTestLoan(t, s, "u1", "a")
	createTestLoan(t, s, "u2", "c")

	loans, err := s.ListLoans(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, "a", loans[0].ID)
	assert.Equal(t, "b", loans[1].ID)
}

func TestSettings_DefaultAndUpsert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	settings, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, settings.MonthlyOverpaymentLimit.IsZero())
	assert.False(t, settings.ReinvestReducedPayments)

	settings.MonthlyOverpaymentLimit = decimal.RequireFromString("250.75")
	settings.ReinvestReducedPayments = true
	require.NoError(t, s.UpsertSettings(ctx, &settings))

	settings.MonthlyOverpaymentLimit = decimal.NewFromInt(300)
	require.NoError(t, s.UpsertSettings(ctx, &settings))

	got, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "300", got.MonthlyOverpaymentLimit.String())
	assert.True(t, got.ReinvestReducedPayments)
}

func TestSubmitSimulation_CancelsPreviousRunning(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := submitTestSimulation(t, s, "u1")
	second := &domain.Simulation{UserID: "u1", Strategy: domain.StrategyEqual, Goal: domain.GoalFastestPayoff}
	cancelled, err := s.SubmitSimulation(ctx, second, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cancelled)

	got, err := s.GetSimulation(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)

	running, err := s.ListRunning(ctx)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, second.ID, running[0].ID)

	// another user's submission leaves u1 alone
	submitTestSimulation(t, s, "u2")
	running, err = s.ListRunning(ctx)
	require.NoError(t, err)
	assert.Len(t, running, 2)
}

func TestSimulation_PaymentReductionTargetRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	target := decimal.RequireFromString("75.50")
	sim := &domain.Simulation{
		UserID:                  "u1",
		Strategy:                domain.StrategyRatio,
		Goal:                    domain.GoalPaymentReduction,
		PaymentReductionTarget:  &target,
		ReinvestReducedPayments: true,
	}
	_, err := s.SubmitSimulation(ctx, sim, testNow)
	require.NoError(t, err)

	got, err := s.GetSimulation(ctx, "u1", sim.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PaymentReductionTarget)
	assert.Equal(t, "75.5", got.PaymentReductionTarget.String())
	assert.Equal(t, domain.GoalPaymentReduction, got.Goal)
	assert.True(t, got.ReinvestReducedPayments)
	assert.Nil(t, got.StartedAt)
}

func TestPersistResults_OnlyWhileRunning(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestLoan(t, s, "u1", "loan-a")

	sim := submitTestSimulation(t, s, "u1")
	ok, err := s.CancelSimulation(ctx, "u1", sim.ID, testNow)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.PersistResults(ctx, &Results{UserID: "u1", SimulationID: sim.ID, CompletedAt: testNow,
		Snapshots: []domain.LoanSnapshot{{LoanID: "loan-a", StartingMonth: testNow}}})
	require.NoError(t, err)
	assert.False(t, ok, "cancelled row must not be completed")

	snaps, err := s.ListSnapshots(ctx, sim.ID)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	_, err = s.GetHistoryMetric(ctx, sim.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistResults_WritesSnapshotsAndMetric(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sim := submitTestSimulation(t, s, "u1")
	completeTestSimulation(t, s, sim, "loan-b", "loan-a")

	got, err := s.GetSimulation(ctx, "u1", sim.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "300.25", got.TotalInterestSaved.StringFixed(2))
	assert.Equal(t, 40, got.ProjectedMonthsToPayoff)
	assert.Equal(t, "2028-07-01", got.ProjectedPayoffMonth)
	require.NotNil(t, got.CompletedAt)

	snaps, err := s.ListSnapshots(ctx, sim.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "loan-a", snaps[0].LoanID)
	assert.Equal(t, "195.66", snaps[0].StandardPayment.StringFixed(2))
	assert.Equal(t, 46, snaps[0].RemainingTermMonths)

	metric, err := s.GetHistoryMetric(ctx, sim.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyAvalanche, metric.Strategy)
	assert.Equal(t, "u1", metric.UserID)
}

func TestMarkError_AndReset(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sim := submitTestSimulation(t, s, "u1")
	ok, err := s.MarkError(ctx, "u1", sim.ID, "boom", testNow)
	require.NoError(t, err)
	require.True(t, ok)

	// a second error transition is a no-op
	ok, err = s.MarkError(ctx, "u1", sim.ID, "again", testNow)
	require.NoError(t, err)
	assert.False(t, ok)

	other := submitTestSimulation(t, s, "u1")

	ok, err = s.ResetErrorToRunning(ctx, "u1", sim.ID, testNow)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetSimulation(ctx, "u1", sim.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, got.Status)
	assert.Empty(t, got.ErrorMessage)

	prev, err := s.GetSimulation(ctx, "u1", other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, prev.Status, "retry keeps one running simulation")

	ok, err = s.ResetErrorToRunning(ctx, "u1", sim.ID, testNow)
	require.NoError(t, err)
	assert.False(t, ok, "reset is idempotent")

	_, err = s.ResetErrorToRunning(ctx, "u1", "missing", testNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivate_SwitchesActiveSimulation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := submitTestSimulation(t, s, "u1")
	completeTestSimulation(t, s, first)
	require.NoError(t, s.Activate(ctx, "u1", first.ID))

	second := submitTestSimulation(t, s, "u1")
	completeTestSimulation(t, s, second)
	require.NoError(t, s.Activate(ctx, "u1", second.ID))

	active, err := s.GetActiveSimulation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, domain.StatusActive, active.Status)

	demoted, err := s.GetSimulation(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.False(t, demoted.IsActive)
	assert.Equal(t, domain.StatusCompleted, demoted.Status)
}

func TestActivate_Rejections(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Activate(ctx, "u1", "missing"), ErrNotFound)

	running := submitTestSimulation(t, s, "u1")
	assert.ErrorIs(t, s.Activate(ctx, "u1", running.ID), ErrStatusMismatch)

	completeTestSimulation(t, s, running)
	assert.ErrorIs(t, s.Activate(ctx, "u2", running.ID), ErrNotFound, "scoped to owner")

	require.NoError(t, s.Activate(ctx, "u1", running.ID))
	stale, err := s.MarkActiveStale(ctx, "u1")
	require.NoError(t, err)
	require.True(t, stale)
	assert.ErrorIs(t, s.Activate(ctx, "u1", running.ID), ErrStatusMismatch, "stale cannot be re-activated")
}

func TestMarkActiveStale_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	changed, err := s.MarkActiveStale(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, changed, "no active simulation")

	sim := submitTestSimulation(t, s, "u1")
	completeTestSimulation(t, s, sim)
	require.NoError(t, s.Activate(ctx, "u1", sim.ID))

	changed, err = s.MarkActiveStale(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.MarkActiveStale(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.GetSimulation(ctx, "u1", sim.ID)
	require.NoError(t, err)
	assert.True(t, got.Stale)
	assert.True(t, got.IsActive)
	assert.Equal(t, domain.StatusStale, got.Status)
}

func TestExecutionLogs_InsertSkipsExisting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestLoan(t, s, "u1", "loan-a")

	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	logs := []domain.MonthlyExecutionLog{
		{UserID: "u1", LoanID: "loan-a", Month: march, PaymentStatus: domain.PaymentBackfilled,
			OverpaymentStatus: domain.OverpaymentBackfilled, ScheduledOverpayment: decimal.NewFromInt(200),
			ReasonCode: domain.ReasonAutoBackfill},
	}
	n, err := s.InsertExecutionLogs(ctx, logs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	logs = append(logs, domain.MonthlyExecutionLog{UserID: "u1", LoanID: "loan-a", Month: april,
		PaymentStatus: domain.PaymentPending, OverpaymentStatus: domain.OverpaymentScheduled})
	logs[0].ID = ""
	n, err = s.InsertExecutionLogs(ctx, logs)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "existing (loan, month) is left untouched")

	got, err := s.ListExecutionLogs(ctx, "u1", march, april)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, march, got[0].Month)
	assert.Equal(t, domain.ReasonAutoBackfill, got[0].ReasonCode)
	assert.Equal(t, "200", got[0].ScheduledOverpayment.String())
	assert.Equal(t, domain.OverpaymentScheduled, got[1].OverpaymentStatus)
}

func TestRecordExecution(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestLoan(t, s, "u1", "loan-a")
	month := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.RecordExecution(ctx, ExecutionUpdate{UserID: "u1", LoanID: "loan-a", Month: month})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.InsertExecutionLogs(ctx, []domain.MonthlyExecutionLog{{UserID: "u1", LoanID: "loan-a", Month: month,
		PaymentStatus: domain.PaymentPending, OverpaymentStatus: domain.OverpaymentScheduled}})
	require.NoError(t, err)

	prev, err := s.RecordExecution(ctx, ExecutionUpdate{
		UserID:            "u1",
		LoanID:            "loan-a",
		Month:             month,
		PaymentStatus:     domain.PaymentPaid,
		OverpaymentStatus: domain.OverpaymentExecuted,
		ActualOverpayment: decimal.RequireFromString("180.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OverpaymentScheduled, prev.OverpaymentStatus)

	got, err := s.ListExecutionLogs(ctx, "u1", month, month)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.PaymentPaid, got[0].PaymentStatus)
	assert.Equal(t, "180", got[0].ActualOverpayment.String())
}

func TestDeleteLoan_CascadesExecutionLogs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestLoan(t, s, "u1", "loan-a")
	month := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.InsertExecutionLogs(ctx, []domain.MonthlyExecutionLog{{UserID: "u1", LoanID: "loan-a", Month: month,
		PaymentStatus: domain.PaymentPending, OverpaymentStatus: domain.OverpaymentScheduled}})
	require.NoError(t, err)
	require.NoError(t, s.DeleteLoan(ctx, "u1", "loan-a"))

	got, err := s.ListExecutionLogs(ctx, "u1", month, month)
	require.NoError(t, err)
	assert.Empty(t, got)
}
