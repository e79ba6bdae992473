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

const execLogColumns = `id, user_id, loan_id, simulation_id, month, payment_status,
	overpayment_status, scheduled_overpayment, actual_overpayment, interest_portion,
	principal_portion, reason_code, created_at, updated_at`

// InsertExecutionLogs inserts ledger rows in one transaction, skipping any
// (loan, month) that already has a row. It returns how many were inserted.
func (s *Store) InsertExecutionLogs(ctx context.Context, logs []domain.MonthlyExecutionLog) (int, error) {
	if len(logs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert execution logs: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	inserted := 0
	for i := range logs {
		l := &logs[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO monthly_execution_logs (`+execLogColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(loan_id, month) DO NOTHING`,
			l.ID, l.UserID, l.LoanID, l.SimulationID, formatMonth(l.Month), string(l.PaymentStatus),
			string(l.OverpaymentStatus), l.ScheduledOverpayment, l.ActualOverpayment, l.InterestPortion,
			l.PrincipalPortion, l.ReasonCode, now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert execution log %s/%s: %w", l.LoanID, formatMonth(l.Month), err)
		}
		if ok, err := affected(res); err != nil {
			return 0, fmt.Errorf("insert execution logs: %w", err)
		} else if ok {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert execution logs: commit: %w", err)
	}
	return inserted, nil
}

// ExecutionUpdate records what actually happened for one ledger month.
type ExecutionUpdate struct {
	UserID            string
	LoanID            string
	Month             time.Time
	PaymentStatus     domain.PaymentStatus
	OverpaymentStatus domain.OverpaymentStatus
	ActualOverpayment decimal.Decimal
	ReasonCode        string
}

// RecordExecution applies an update to an existing ledger row and returns
// the row as it was before the change.
func (s *Store) RecordExecution(ctx context.Context, u ExecutionUpdate) (*domain.MonthlyExecutionLog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("record execution: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+execLogColumns+` FROM monthly_execution_logs
		WHERE user_id = ? AND loan_id = ? AND month = ?`, u.UserID, u.LoanID, formatMonth(u.Month))
	prev, err := scanExecutionLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE monthly_execution_logs SET
		payment_status = ?, overpayment_status = ?, actual_overpayment = ?, reason_code = ?, updated_at = ?
		WHERE id = ?`,
		string(u.PaymentStatus), string(u.OverpaymentStatus), u.ActualOverpayment, u.ReasonCode, s.timestamp(), prev.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("record execution: commit: %w", err)
	}
	return prev, nil
}

// ListExecutionLogs returns a user's ledger rows for months in [from, to],
// ordered by month then loan id.
func (s *Store) ListExecutionLogs(ctx context.Context, userID string, from, to time.Time) ([]domain.MonthlyExecutionLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+execLogColumns+` FROM monthly_execution_logs
		WHERE user_id = ? AND month >= ? AND month <= ?
		ORDER BY month, loan_id`, userID, formatMonth(from), formatMonth(to))
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []domain.MonthlyExecutionLog
	for rows.Next() {
		l, err := scanExecutionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("list execution logs: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func scanExecutionLog(r rowScanner) (*domain.MonthlyExecutionLog, error) {
	var (
		l                       domain.MonthlyExecutionLog
		month, payment, overpay string
		createdAt, updatedAt    string
	)
	err := r.Scan(&l.ID, &l.UserID, &l.LoanID, &l.SimulationID, &month, &payment,
		&overpay, &l.ScheduledOverpayment, &l.ActualOverpayment, &l.InterestPortion,
		&l.PrincipalPortion, &l.ReasonCode, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	l.Month = parseMonth(month)
	l.PaymentStatus = domain.PaymentStatus(payment)
	l.OverpaymentStatus = domain.OverpaymentStatus(overpay)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}
