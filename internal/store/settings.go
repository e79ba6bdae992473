package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpgo/loan-simulator/internal/domain"
)

// GetSettings returns a user's settings. A user without a row gets a zero
// limit with reinvesting off.
func (s *Store) GetSettings(ctx context.Context, userID string) (domain.UserSettings, error) {
	settings := domain.UserSettings{UserID: userID}
	var reinvest int
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `SELECT monthly_overpayment_limit, reinvest_reduced_payments, updated_at
		FROM user_settings WHERE user_id = ?`, userID).
		Scan(&settings.MonthlyOverpaymentLimit, &reinvest, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("get settings: %w", err)
	}
	settings.ReinvestReducedPayments = reinvest != 0
	settings.UpdatedAt = parseTime(updatedAt)
	return settings, nil
}

// UpsertSettings writes a user's settings row.
func (s *Store) UpsertSettings(ctx context.Context, settings *domain.UserSettings) error {
	settings.UpdatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_settings
		(user_id, monthly_overpayment_limit, reinvest_reduced_payments, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			monthly_overpayment_limit = excluded.monthly_overpayment_limit,
			reinvest_reduced_payments = excluded.reinvest_reduced_payments,
			updated_at = excluded.updated_at`,
		settings.UserID, settings.MonthlyOverpaymentLimit, boolInt(settings.ReinvestReducedPayments),
		formatTime(settings.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
