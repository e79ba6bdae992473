package calculation

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAnnualRate(t *testing.T) {
	tests := []struct {
		name     string
		input    decimal.Decimal
		expected string
	}{
		{"decimal form unchanged", decimal.NewFromFloat(0.065), "0.065"},
		{"exactly one stays decimal", decimal.NewFromInt(1), "1"},
		{"percentage divided", decimal.NewFromFloat(6.5), "0.065"},
		{"zero", decimal.Zero, "0"},
		{"negative", decimal.NewFromFloat(-0.02), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAnnualRate(tt.input).String())
		})
	}
}

func TestNormalizeAnnualRateFloat_NonFinite(t *testing.T) {
	assert.True(t, NormalizeAnnualRateFloat(math.NaN()).IsZero())
	assert.True(t, NormalizeAnnualRateFloat(math.Inf(1)).IsZero())
	assert.True(t, NormalizeAnnualRateFloat(math.Inf(-1)).IsZero())
	assert.Equal(t, "0.12", NormalizeAnnualRateFloat(12).String())
}

func TestDeriveStandardMonthlyPayment(t *testing.T) {
	pmt, err := DeriveStandardMonthlyPayment(decimal.NewFromInt(10000), decimal.NewFromFloat(0.12), 24)
	require.NoError(t, err)
	assert.Equal(t, "470.74", pmt.StringFixed(2))

	// percentage input gives the same payment
	pmtPct, err := DeriveStandardMonthlyPayment(decimal.NewFromInt(10000), decimal.NewFromInt(12), 24)
	require.NoError(t, err)
	assert.True(t, pmt.Equal(pmtPct))

	zeroRate, err := DeriveStandardMonthlyPayment(decimal.NewFromInt(1200), decimal.Zero, 12)
	require.NoError(t, err)
	assert.Equal(t, "100.00", zeroRate.StringFixed(2))

	roundedUp, err := DeriveStandardMonthlyPayment(decimal.NewFromInt(1000), decimal.Zero, 3)
	require.NoError(t, err)
	assert.Equal(t, "333.34", roundedUp.StringFixed(2))

	_, err = DeriveStandardMonthlyPayment(decimal.NewFromInt(1000), decimal.NewFromFloat(0.05), 0)
	assert.Error(t, err)
}

func TestDeriveStandardMonthlyPayment_RecoversPrincipal(t *testing.T) {
	cases := []struct {
		principal float64
		rate      float64
		term      int
	}{
		{10000, 0.12, 24},
		{5000, 0.06, 24},
		{250000, 0.0675, 360},
		{18000, 0.0399, 60},
		{1500, 0.2499, 12},
		{999.99, 0.001, 600},
	}
	for _, c := range cases {
		p := decimal.NewFromFloat(c.principal)
		pmt, err := DeriveStandardMonthlyPayment(p, decimal.NewFromFloat(c.rate), c.term)
		require.NoError(t, err)
		total := pmt.Mul(decimal.NewFromInt(int64(c.term)))
		assert.True(t, total.GreaterThanOrEqual(p), "payment %s x %d should cover %s", pmt, c.term, p)
	}
}

func TestIncrementMonth(t *testing.T) {
	y, m := IncrementMonth(2025, 11)
	assert.Equal(t, 2026, y)
	assert.Equal(t, 0, m)
	y, m = IncrementMonth(2025, 4)
	assert.Equal(t, 2025, y)
	assert.Equal(t, 5, m)
}

func TestComputeProjectedPayoffMonth(t *testing.T) {
	now := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2027-01-01", ComputeProjectedPayoffMonth("2025-01-15", 24, now))
	assert.Equal(t, "2026-05-01", ComputeProjectedPayoffMonth("", 2, now))
	assert.Equal(t, "2026-03-01", ComputeProjectedPayoffMonth("garbage", 0, now))
}
