package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rpgo/loan-simulator/internal/domain"
)

const loanColumns = `id, user_id, name, principal, remaining_balance, annual_rate,
	term_months, original_term_months, start_month, is_closed, closed_month,
	created_at, updated_at`

// CreateLoan inserts a loan, assigning an id when none is set.
func (s *Store) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	now := s.now().UTC()
	loan.CreatedAt = now
	loan.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.UserID, loan.Name, loan.Principal, loan.RemainingBalance, loan.AnnualRate,
		loan.TermMonths, loan.OriginalTermMonths, formatMonth(loan.StartMonth), boolInt(loan.IsClosed),
		nullMonth(loan), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

// UpdateLoan overwrites every mutable column of a loan owned by loan.UserID.
func (s *Store) UpdateLoan(ctx context.Context, loan *domain.Loan) error {
	loan.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE loans SET
		name = ?, principal = ?, remaining_balance = ?, annual_rate = ?,
		term_months = ?, original_term_months = ?, start_month = ?,
		is_closed = ?, closed_month = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		loan.Name, loan.Principal, loan.RemainingBalance, loan.AnnualRate,
		loan.TermMonths, loan.OriginalTermMonths, formatMonth(loan.StartMonth),
		boolInt(loan.IsClosed), nullMonth(loan), formatTime(loan.UpdatedAt),
		loan.ID, loan.UserID,
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteLoan removes a loan and, by cascade, its execution log rows.
func (s *Store) DeleteLoan(ctx context.Context, userID, loanID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ? AND user_id = ?`, loanID, userID)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// GetLoan returns one loan scoped to its owner.
func (s *Store) GetLoan(ctx context.Context, userID, loanID string) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ? AND user_id = ?`, loanID, userID)
	loan, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return loan, nil
}

// ListLoans returns every loan of a user, open and closed, ordered by id.
func (s *Store) ListLoans(ctx context.Context, userID string) ([]domain.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var loans []domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("list loans: %w", err)
		}
		loans = append(loans, *loan)
	}
	return loans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(r rowScanner) (*domain.Loan, error) {
	var (
		l                    domain.Loan
		startMonth           string
		isClosed             int
		closedMonth          sql.NullString
		createdAt, updatedAt string
	)
	err := r.Scan(&l.ID, &l.UserID, &l.Name, &l.Principal, &l.RemainingBalance, &l.AnnualRate,
		&l.TermMonths, &l.OriginalTermMonths, &startMonth, &isClosed, &closedMonth,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	l.StartMonth = parseMonth(startMonth)
	l.IsClosed = isClosed != 0
	if closedMonth.Valid && closedMonth.String != "" {
		m := parseMonth(closedMonth.String)
		l.ClosedMonth = &m
	}
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}

func nullMonth(loan *domain.Loan) any {
	if loan.ClosedMonth == nil {
		return nil
	}
	return formatMonth(*loan.ClosedMonth)
}
