package calculation

import (
	"testing"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func allocLoan(id, rate, balance, interest, capacity string) AllocationLoan {
	return AllocationLoan{
		ID:         id,
		AnnualRate: d(rate),
		Balance:    d(balance),
		Interest:   d(interest),
		Capacity:   d(capacity),
	}
}

func mustAllocator(t *testing.T, s domain.Strategy) Allocator {
	t.Helper()
	a, err := NewAllocator(s)
	require.NoError(t, err)
	require.Equal(t, s, a.GetStrategyName())
	return a
}

func TestNewAllocator_Unknown(t *testing.T) {
	_, err := NewAllocator(domain.Strategy("lottery"))
	assert.Error(t, err)
}

func TestEqualAllocation_SplitsCentsExactly(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("c", "0.05", "5000", "20", "5000"),
		allocLoan("a", "0.05", "5000", "20", "5000"),
		allocLoan("b", "0.05", "5000", "20", "5000"),
	}
	alloc := mustAllocator(t, domain.StrategyEqual).Allocate(loans, d("100"))

	assert.Equal(t, "33.34", alloc["a"].StringFixed(2))
	assert.Equal(t, "33.33", alloc["b"].StringFixed(2))
	assert.Equal(t, "33.33", alloc["c"].StringFixed(2))
	assert.Equal(t, "100.00", alloc.Total().StringFixed(2))
}

func TestEqualAllocation_RedistributesCappedShare(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("a", "0.05", "10", "0.04", "10"),
		allocLoan("b", "0.05", "5000", "20", "5000"),
		allocLoan("c", "0.05", "5000", "20", "5000"),
	}
	alloc := mustAllocator(t, domain.StrategyEqual).Allocate(loans, d("100"))

	assert.Equal(t, "10.00", alloc["a"].StringFixed(2))
	assert.Equal(t, "45.00", alloc["b"].StringFixed(2))
	assert.Equal(t, "45.00", alloc["c"].StringFixed(2))
	assert.Equal(t, "100.00", alloc.Total().StringFixed(2))
}

func TestAvalancheAllocation_HighestRateFirstWithRollover(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("low", "0.03", "9000", "22.50", "9000"),
		allocLoan("high", "0.18", "150", "2.25", "120"),
		allocLoan("mid", "0.09", "4000", "30", "4000"),
	}
	alloc := mustAllocator(t, domain.StrategyAvalanche).Allocate(loans, d("300"))

	assert.Equal(t, "120.00", alloc["high"].StringFixed(2))
	assert.Equal(t, "180.00", alloc["mid"].StringFixed(2))
	_, gotLow := alloc["low"]
	assert.False(t, gotLow, "lowest rate loan should receive nothing")
}

func TestSnowballAllocation_SmallestBalanceFirst(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("big", "0.20", "9000", "150", "9000"),
		allocLoan("small", "0.02", "800", "1.33", "800"),
	}
	alloc := mustAllocator(t, domain.StrategySnowball).Allocate(loans, d("250"))

	assert.Equal(t, "250.00", alloc["small"].StringFixed(2))
	assert.True(t, alloc["big"].IsZero())
}

func TestPriorityAllocation_TiesBreakByID(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("b", "0.10", "1000", "8.33", "1000"),
		allocLoan("a", "0.10", "1000", "8.33", "1000"),
	}
	for _, s := range []domain.Strategy{domain.StrategyAvalanche, domain.StrategySnowball} {
		alloc := mustAllocator(t, s).Allocate(loans, d("50"))
		assert.Equal(t, "50.00", alloc["a"].StringFixed(2), string(s))
		assert.True(t, alloc["b"].IsZero(), string(s))
	}
}

func TestRatioAllocation_ProportionalToInterest(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("a", "0.12", "3000", "30", "3000"),
		allocLoan("b", "0.04", "3000", "10", "3000"),
	}
	alloc := mustAllocator(t, domain.StrategyRatio).Allocate(loans, d("100"))

	assert.Equal(t, "75.00", alloc["a"].StringFixed(2))
	assert.Equal(t, "25.00", alloc["b"].StringFixed(2))
}

func TestRatioAllocation_RemainderCentsStayExact(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("a", "0.10", "1000", "1", "1000"),
		allocLoan("b", "0.10", "1000", "1", "1000"),
		allocLoan("c", "0.10", "1000", "1", "1000"),
	}
	alloc := mustAllocator(t, domain.StrategyRatio).Allocate(loans, d("1"))

	assert.Equal(t, "0.34", alloc["a"].StringFixed(2))
	assert.Equal(t, "1.00", alloc.Total().StringFixed(2))
}

func TestRatioAllocation_ZeroInterestFallsBackToEqual(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("a", "0", "1000", "0", "1000"),
		allocLoan("b", "0", "1000", "0", "1000"),
	}
	alloc := mustAllocator(t, domain.StrategyRatio).Allocate(loans, d("10"))
	assert.Equal(t, "5.00", alloc["a"].StringFixed(2))
	assert.Equal(t, "5.00", alloc["b"].StringFixed(2))
}

func TestAllocation_NeverExceedsCapacityOrBudget(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("a", "0.12", "40", "0.40", "25"),
		allocLoan("b", "0.06", "30", "0.15", "10"),
		allocLoan("c", "0.09", "0", "0", "0"),
	}
	for _, s := range domain.Strategies {
		alloc := mustAllocator(t, s).Allocate(loans, d("500"))
		assert.Equal(t, "35.00", alloc.Total().StringFixed(2), string(s))
		assert.True(t, alloc["a"].LessThanOrEqual(d("25")), string(s))
		assert.True(t, alloc["b"].LessThanOrEqual(d("10")), string(s))
		_, gotClosed := alloc["c"]
		assert.False(t, gotClosed, "%s allocated to a zero-balance loan", s)
	}
}

func TestAllocation_SumsToBudgetWhenCapacityAllows(t *testing.T) {
	loans := []AllocationLoan{
		allocLoan("a", "0.07", "12000", "70", "11500"),
		allocLoan("b", "0.05", "8000", "33.33", "7700"),
		allocLoan("c", "0.11", "2500", "22.92", "2300"),
	}
	for _, s := range domain.Strategies {
		alloc := mustAllocator(t, s).Allocate(loans, d("437.19"))
		assert.Equal(t, "437.19", alloc.Total().StringFixed(2), string(s))
	}
}
