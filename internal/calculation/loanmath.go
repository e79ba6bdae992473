package calculation

import (
	"fmt"
	"math"
	"time"

	"github.com/rpgo/loan-simulator/pkg/dateutil"
	money "github.com/rpgo/loan-simulator/pkg/decimal"
	"github.com/shopspring/decimal"
)

var (
	one          = decimal.NewFromInt(1)
	twelve       = decimal.NewFromInt(12)
	oneHundred   = decimal.NewFromInt(100)
	powPrecision = int32(24)
)

// NormalizeAnnualRate converts a rate to decimal form. Values above 1 are
// treated as percentages; zero or negative rates normalize to 0.
func NormalizeAnnualRate(rate decimal.Decimal) decimal.Decimal {
	if rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if rate.GreaterThan(one) {
		return rate.Div(oneHundred)
	}
	return rate
}

// NormalizeAnnualRateFloat is NormalizeAnnualRate for raw float input. NaN
// and infinities normalize to 0.
func NormalizeAnnualRateFloat(rate float64) decimal.Decimal {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return decimal.Zero
	}
	return NormalizeAnnualRate(decimal.NewFromFloat(rate))
}

// MonthlyRate returns the normalized annual rate divided by 12
func MonthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return NormalizeAnnualRate(annualRate).Div(twelve)
}

// DeriveStandardMonthlyPayment calculates the level payment that retires
// principal over termMonths at annualRate:
//
//	PMT = P·r / (1 − (1+r)^−n)
//
// evaluated as P·r·f / (f − 1) with f = (1+r)^n. A zero rate falls back to
// P/n. The result is rounded up to the cent so PMT·n never undershoots P.
func DeriveStandardMonthlyPayment(principal, annualRate decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if termMonths <= 0 {
		return decimal.Zero, fmt.Errorf("term must be positive, got %d months", termMonths)
	}
	if principal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}
	r := MonthlyRate(annualRate)
	n := decimal.NewFromInt(int64(termMonths))
	if r.IsZero() {
		return money.NewMoneyFromDecimal(principal.Div(n)).RoundUp().Decimal, nil
	}
	f := powInt(one.Add(r), termMonths)
	pmt := principal.Mul(r).Mul(f).Div(f.Sub(one))
	return money.NewMoneyFromDecimal(pmt).RoundUp().Decimal, nil
}

// powInt raises base to a non-negative integer power by squaring, rounding
// every intermediate product so long terms stay cheap and deterministic.
func powInt(base decimal.Decimal, exp int) decimal.Decimal {
	result := one
	b := base
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(b).Round(powPrecision)
		}
		b = b.Mul(b).Round(powPrecision)
		exp >>= 1
	}
	return result
}

// IncrementMonth rolls a (year, zero-based month) pair forward one month.
func IncrementMonth(year, monthIndex int) (int, int) {
	return dateutil.IncrementMonth(year, monthIndex)
}

// ComputeProjectedPayoffMonth adds monthsToPayoff whole months to the first
// of the month containing startISO, or containing now when startISO is
// empty or unparseable. The result is YYYY-MM-DD.
func ComputeProjectedPayoffMonth(startISO string, monthsToPayoff int, now time.Time) string {
	base := now
	if startISO != "" {
		if parsed, err := dateutil.ParseISO(startISO); err == nil {
			base = parsed
		}
	}
	return dateutil.FormatISO(dateutil.AddMonths(base, monthsToPayoff))
}

func roundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
