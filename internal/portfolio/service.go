// Package portfolio owns every write to a user's loans, settings and
// execution ledger. Each mutation that changes a projection input marks the
// active simulation stale, and every mutation drops the user's cached
// dashboard before returning.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpgo/loan-simulator/internal/cache"
	"github.com/rpgo/loan-simulator/internal/config"
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/internal/store"
	"github.com/rpgo/loan-simulator/pkg/dateutil"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid portfolio change")
)

// Store is the persistence portfolio mutations need. *store.Store satisfies it.
type Store interface {
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	UpdateLoan(ctx context.Context, loan *domain.Loan) error
	DeleteLoan(ctx context.Context, userID, loanID string) error
	GetLoan(ctx context.Context, userID, loanID string) (*domain.Loan, error)
	ListLoans(ctx context.Context, userID string) ([]domain.Loan, error)
	GetSettings(ctx context.Context, userID string) (domain.UserSettings, error)
	UpsertSettings(ctx context.Context, settings *domain.UserSettings) error
	RecordExecution(ctx context.Context, u store.ExecutionUpdate) (*domain.MonthlyExecutionLog, error)
}

// StaleMarker flags the user's active simulation as out of date.
// *simulation.Service satisfies it.
type StaleMarker interface {
	MarkActiveSimulationStale(ctx context.Context, userID string) (bool, error)
}

// Service applies portfolio mutations.
type Service struct {
	store  Store
	stale  StaleMarker
	cache  cache.DashboardCache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a portfolio service. A nil cache disables caching.
func NewService(st Store, stale StaleMarker, c cache.DashboardCache, logger *slog.Logger) *Service {
	if c == nil {
		c = cache.NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		stale:  stale,
		cache:  c,
		logger: logger.With("component", "portfolio"),
		now:    time.Now,
	}
}

// SetClock overrides the clock used for default start and close months.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// LoanPatch carries the fields of a partial loan update. Nil fields are left alone.
type LoanPatch struct {
	Name             *string
	Principal        *decimal.Decimal
	RemainingBalance *decimal.Decimal
	AnnualRate       *decimal.Decimal
	TermMonths       *int
	StartMonth       *time.Time
}

// ExecutionCommand records what actually happened for one ledger month.
type ExecutionCommand struct {
	LoanID            string
	Month             time.Time
	PaymentStatus     domain.PaymentStatus
	OverpaymentStatus domain.OverpaymentStatus
	ActualOverpayment decimal.Decimal
	ReasonCode        string
}

// CreateLoan validates and stores a new loan. Missing balance, original
// term and start month are defaulted the way portfolio files are.
func (s *Service) CreateLoan(ctx context.Context, userID string, loan *domain.Loan) (*domain.Loan, error) {
	loan.UserID = userID
	if loan.RemainingBalance.IsZero() && !loan.IsClosed {
		loan.RemainingBalance = loan.Principal
	}
	if loan.OriginalTermMonths == 0 {
		loan.OriginalTermMonths = loan.TermMonths
	}
	if loan.StartMonth.IsZero() {
		loan.StartMonth = s.now()
	}
	loan.StartMonth = dateutil.FirstOfMonth(loan.StartMonth)
	if err := config.ValidateLoan(loan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if loan.Name == "" {
		loan.Name = "Loan"
	}

	if err := s.store.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}
	s.logger.Info("loan created", "user_id", userID, "loan_id", loan.ID)
	if err := s.invalidate(ctx, userID, true); err != nil {
		return nil, err
	}
	return loan, nil
}

// UpdateLoan replaces every mutable field of an existing loan.
func (s *Service) UpdateLoan(ctx context.Context, userID string, loan *domain.Loan) (*domain.Loan, error) {
	prev, err := s.getLoan(ctx, userID, loan.ID)
	if err != nil {
		return nil, err
	}
	loan.UserID = userID
	loan.CreatedAt = prev.CreatedAt
	if loan.OriginalTermMonths == 0 {
		loan.OriginalTermMonths = prev.OriginalTermMonths
	}
	if loan.StartMonth.IsZero() {
		loan.StartMonth = prev.StartMonth
	}
	loan.StartMonth = dateutil.FirstOfMonth(loan.StartMonth)
	return s.save(ctx, prev, loan)
}

// PatchLoan applies a partial update to an existing loan.
func (s *Service) PatchLoan(ctx context.Context, userID, loanID string, patch LoanPatch) (*domain.Loan, error) {
	prev, err := s.getLoan(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	next := *prev
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Principal != nil {
		next.Principal = *patch.Principal
	}
	if patch.RemainingBalance != nil {
		next.RemainingBalance = *patch.RemainingBalance
	}
	if patch.AnnualRate != nil {
		next.AnnualRate = *patch.AnnualRate
	}
	if patch.TermMonths != nil {
		next.TermMonths = *patch.TermMonths
	}
	if patch.StartMonth != nil {
		next.StartMonth = dateutil.FirstOfMonth(*patch.StartMonth)
	}
	return s.save(ctx, prev, &next)
}

// CloseLoan zeroes a loan's balance and retires it from every future
// projection. Closing an already closed loan changes nothing.
func (s *Service) CloseLoan(ctx context.Context, userID, loanID string, month time.Time) (*domain.Loan, error) {
	prev, err := s.getLoan(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	if prev.IsClosed {
		return prev, nil
	}
	if month.IsZero() {
		month = s.now()
	}
	closed := dateutil.FirstOfMonth(month)
	next := *prev
	next.IsClosed = true
	next.RemainingBalance = decimal.Zero
	next.ClosedMonth = &closed
	return s.save(ctx, prev, &next)
}

func (s *Service) save(ctx context.Context, prev, next *domain.Loan) (*domain.Loan, error) {
	if err := config.ValidateLoan(next); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.store.UpdateLoan(ctx, next); err != nil {
		return nil, s.mapStoreErr(err, next.ID)
	}
	material := MaterialLoanChange(prev, next)
	s.logger.Info("loan updated", "user_id", next.UserID, "loan_id", next.ID, "material", material)
	if err := s.invalidate(ctx, next.UserID, material); err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteLoan removes a loan together with its ledger rows.
func (s *Service) DeleteLoan(ctx context.Context, userID, loanID string) error {
	if err := s.store.DeleteLoan(ctx, userID, loanID); err != nil {
		return s.mapStoreErr(err, loanID)
	}
	s.logger.Info("loan deleted", "user_id", userID, "loan_id", loanID)
	return s.invalidate(ctx, userID, true)
}

// ListLoans returns every loan of the user, open and closed.
func (s *Service) ListLoans(ctx context.Context, userID string) ([]domain.Loan, error) {
	return s.store.ListLoans(ctx, userID)
}

// GetSettings returns the user's settings, zero valued when never saved.
func (s *Service) GetSettings(ctx context.Context, userID string) (domain.UserSettings, error) {
	return s.store.GetSettings(ctx, userID)
}

// UpdateSettings stores the user's settings.
func (s *Service) UpdateSettings(ctx context.Context, userID string, settings domain.UserSettings) (domain.UserSettings, error) {
	settings.UserID = userID
	if err := config.ValidateSettings(&settings); err != nil {
		return domain.UserSettings{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	prev, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return domain.UserSettings{}, err
	}
	settings.MonthlyOverpaymentLimit = settings.MonthlyOverpaymentLimit.Round(2)
	if err := s.store.UpsertSettings(ctx, &settings); err != nil {
		return domain.UserSettings{}, err
	}
	material := MaterialSettingsChange(prev, settings)
	s.logger.Info("settings updated", "user_id", userID, "material", material)
	if err := s.invalidate(ctx, userID, material); err != nil {
		return domain.UserSettings{}, err
	}
	return settings, nil
}

// ImportPortfolio creates every loan of a parsed portfolio file and stores
// its settings. The active simulation is marked stale once at the end.
func (s *Service) ImportPortfolio(ctx context.Context, userID string, p *domain.Portfolio) ([]domain.Loan, error) {
	created := make([]domain.Loan, 0, len(p.Loans))
	for i := range p.Loans {
		loan := p.Loans[i]
		loan.UserID = userID
		if err := config.ValidateLoan(&loan); err != nil {
			return created, fmt.Errorf("%w: loan %s: %v", ErrValidation, loan.ID, err)
		}
		if err := s.store.CreateLoan(ctx, &loan); err != nil {
			return created, fmt.Errorf("importing loan %s: %w", loan.ID, err)
		}
		created = append(created, loan)
	}
	settings := p.Settings
	settings.UserID = userID
	if err := s.store.UpsertSettings(ctx, &settings); err != nil {
		return created, fmt.Errorf("importing settings: %w", err)
	}
	s.logger.Info("portfolio imported", "user_id", userID, "loans", len(created))
	return created, s.invalidate(ctx, userID, true)
}

// RecordExecution records the outcome of one ledger month. A skipped or
// backfilled overpayment means reality diverged from the plan, so the
// active simulation is marked stale.
func (s *Service) RecordExecution(ctx context.Context, userID string, cmd ExecutionCommand) (*domain.MonthlyExecutionLog, error) {
	if err := validateExecution(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	month := dateutil.FirstOfMonth(cmd.Month)
	prev, err := s.store.RecordExecution(ctx, store.ExecutionUpdate{
		UserID:            userID,
		LoanID:            cmd.LoanID,
		Month:             month,
		PaymentStatus:     cmd.PaymentStatus,
		OverpaymentStatus: cmd.OverpaymentStatus,
		ActualOverpayment: cmd.ActualOverpayment.Round(2),
		ReasonCode:        cmd.ReasonCode,
	})
	if err != nil {
		return nil, s.mapStoreErr(err, cmd.LoanID+"@"+dateutil.FormatISO(month))
	}

	material := cmd.OverpaymentStatus == domain.OverpaymentSkipped || cmd.OverpaymentStatus == domain.OverpaymentBackfilled
	s.logger.Info("execution recorded",
		"user_id", userID,
		"loan_id", cmd.LoanID,
		"month", dateutil.FormatISO(month),
		"overpayment_status", cmd.OverpaymentStatus,
		"previous_status", prev.OverpaymentStatus,
		"material", material)
	if err := s.invalidate(ctx, userID, material); err != nil {
		return nil, err
	}

	updated := *prev
	updated.PaymentStatus = cmd.PaymentStatus
	updated.OverpaymentStatus = cmd.OverpaymentStatus
	updated.ActualOverpayment = cmd.ActualOverpayment.Round(2)
	updated.ReasonCode = cmd.ReasonCode
	return &updated, nil
}

func validateExecution(cmd ExecutionCommand) error {
	if cmd.LoanID == "" {
		return fmt.Errorf("loan id is required")
	}
	if cmd.Month.IsZero() {
		return fmt.Errorf("month is required")
	}
	switch cmd.PaymentStatus {
	case domain.PaymentPending, domain.PaymentPaid, domain.PaymentBackfilled:
	default:
		return fmt.Errorf("unknown payment status %q", cmd.PaymentStatus)
	}
	switch cmd.OverpaymentStatus {
	case domain.OverpaymentScheduled, domain.OverpaymentExecuted, domain.OverpaymentSkipped, domain.OverpaymentBackfilled:
	default:
		return fmt.Errorf("unknown overpayment status %q", cmd.OverpaymentStatus)
	}
	if cmd.ActualOverpayment.IsNegative() {
		return fmt.Errorf("actual overpayment cannot be negative")
	}
	return nil
}

// invalidate marks the active simulation stale when the change is material
// and always drops the cached dashboard. A cache failure is logged, not
// returned: the write is already committed and the cache TTL bounds the damage.
func (s *Service) invalidate(ctx context.Context, userID string, material bool) error {
	if material && s.stale != nil {
		if _, err := s.stale.MarkActiveSimulationStale(ctx, userID); err != nil {
			return err
		}
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Error("dashboard cache invalidation failed", "user_id", userID, "error", err)
	}
	return nil
}

func (s *Service) getLoan(ctx context.Context, userID, loanID string) (*domain.Loan, error) {
	loan, err := s.store.GetLoan(ctx, userID, loanID)
	if err != nil {
		return nil, s.mapStoreErr(err, loanID)
	}
	return loan, nil
}

func (s *Service) mapStoreErr(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
