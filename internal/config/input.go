package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/pkg/dateutil"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// InputParser handles parsing of application and portfolio files
type InputParser struct {
	now func() time.Time
}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{now: time.Now}
}

// LoadAppConfig loads the application configuration from a YAML file,
// layering it over the defaults. An empty filename returns the defaults.
func (ip *InputParser) LoadAppConfig(filename string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if filename == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := ip.ValidateAppConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ValidateAppConfig validates the loaded application configuration
func (ip *InputParser) ValidateAppConfig(cfg *AppConfig) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	switch cfg.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if cfg.Cache.RedisAddr == "" {
			return fmt.Errorf("redis cache requires redis_addr")
		}
	default:
		return fmt.Errorf("cache backend must be 'memory', 'redis' or 'none'")
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}
	if cfg.Workers.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if cfg.Workers.QueueSize < 1 {
		return fmt.Errorf("worker queue size must be at least 1")
	}
	if cfg.Projection.MaxMonths < 1 || cfg.Projection.MaxMonths > 1200 {
		return fmt.Errorf("projection max_months must be between 1 and 1200")
	}
	if cfg.Polling.InitialInterval <= 0 || cfg.Polling.MaxInterval < cfg.Polling.InitialInterval {
		return fmt.Errorf("polling intervals must be positive with max >= initial")
	}
	if cfg.Polling.Multiplier < 1 {
		return fmt.Errorf("polling multiplier must be at least 1")
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be 'text' or 'json'")
	}
	return nil
}

// LoadPortfolio loads a loan portfolio from a YAML file
func (ip *InputParser) LoadPortfolio(filename string) (*domain.Portfolio, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return ip.ParsePortfolio(data)
}

// ParsePortfolio decodes, defaults and validates portfolio YAML
func (ip *InputParser) ParsePortfolio(data []byte) (*domain.Portfolio, error) {
	var portfolio domain.Portfolio
	if err := yaml.Unmarshal(data, &portfolio); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range portfolio.Loans {
		ip.applyLoanDefaults(i, &portfolio.Loans[i])
	}

	if err := ip.ValidatePortfolio(&portfolio); err != nil {
		return nil, fmt.Errorf("portfolio validation failed: %w", err)
	}
	return &portfolio, nil
}

func (ip *InputParser) applyLoanDefaults(i int, loan *domain.Loan) {
	if loan.ID == "" {
		loan.ID = fmt.Sprintf("loan-%02d", i+1)
	}
	if loan.Name == "" {
		loan.Name = loan.ID
	}
	if loan.RemainingBalance.IsZero() && !loan.IsClosed {
		loan.RemainingBalance = loan.Principal
	}
	if loan.OriginalTermMonths == 0 {
		loan.OriginalTermMonths = loan.TermMonths
	}
	if loan.StartMonth.IsZero() {
		loan.StartMonth = ip.now()
	}
	loan.StartMonth = dateutil.FirstOfMonth(loan.StartMonth)
}

// ValidatePortfolio validates a loan portfolio
func (ip *InputParser) ValidatePortfolio(portfolio *domain.Portfolio) error {
	if len(portfolio.Loans) == 0 {
		return fmt.Errorf("no loans provided")
	}

	seen := make(map[string]bool, len(portfolio.Loans))
	for i := range portfolio.Loans {
		loan := &portfolio.Loans[i]
		if seen[loan.ID] {
			return fmt.Errorf("duplicate loan id %q", loan.ID)
		}
		seen[loan.ID] = true
		if err := ValidateLoan(loan); err != nil {
			return fmt.Errorf("loan %s validation failed: %w", loan.ID, err)
		}
	}

	if err := ValidateSettings(&portfolio.Settings); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}
	return nil
}

// ValidateLoan validates a single loan's data
func ValidateLoan(loan *domain.Loan) error {
	if loan.Principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("principal must be positive")
	}
	if loan.RemainingBalance.LessThan(decimal.Zero) {
		return fmt.Errorf("remaining balance cannot be negative")
	}
	if loan.RemainingBalance.GreaterThan(loan.Principal) {
		return fmt.Errorf("remaining balance cannot exceed principal")
	}
	if loan.AnnualRate.LessThanOrEqual(decimal.Zero) || loan.AnnualRate.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("annual rate must be between 0 and 1 (or 0 and 100 as a percentage)")
	}
	if loan.TermMonths <= 0 {
		return fmt.Errorf("term months must be positive")
	}
	if loan.OriginalTermMonths < 0 {
		return fmt.Errorf("original term months cannot be negative")
	}
	if loan.StartMonth.IsZero() {
		return fmt.Errorf("start month is required")
	}
	if loan.IsClosed && loan.RemainingBalance.IsPositive() {
		return fmt.Errorf("closed loan must have zero balance")
	}
	return nil
}

// ValidateSettings validates user overpayment settings
func ValidateSettings(settings *domain.UserSettings) error {
	if settings.MonthlyOverpaymentLimit.IsNegative() {
		return fmt.Errorf("monthly overpayment limit cannot be negative")
	}
	return nil
}
