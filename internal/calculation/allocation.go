package calculation

import (
	"fmt"
	"sort"

	"github.com/rpgo/loan-simulator/internal/domain"
	money "github.com/rpgo/loan-simulator/pkg/decimal"
	"github.com/shopspring/decimal"
)

// AllocationLoan is the view of an active loan an allocator sees for one month
type AllocationLoan struct {
	ID         string
	AnnualRate decimal.Decimal
	Balance    decimal.Decimal
	Interest   decimal.Decimal // interest accrued this month
	Capacity   decimal.Decimal // most extra principal the loan can absorb before reaching zero
}

// Allocation maps loan id to the overpayment assigned this month. Loans that
// receive nothing are absent.
type Allocation map[string]decimal.Decimal

// Total sums the allocated amounts.
func (a Allocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range a {
		total = total.Add(amt)
	}
	return total
}

// Allocator defines the interface for overpayment allocation policies.
// Implementations are pure: identical inputs yield identical allocations.
type Allocator interface {
	Allocate(loans []AllocationLoan, budget decimal.Decimal) Allocation
	GetStrategyName() domain.Strategy
}

// NewAllocator returns the allocator for a strategy
func NewAllocator(strategy domain.Strategy) (Allocator, error) {
	switch strategy {
	case domain.StrategyAvalanche:
		return &PriorityAllocator{Strategy: strategy, Less: func(a, b AllocationLoan) bool {
			return a.AnnualRate.GreaterThan(b.AnnualRate)
		}}, nil
	case domain.StrategySnowball:
		return &PriorityAllocator{Strategy: strategy, Less: func(a, b AllocationLoan) bool {
			return a.Balance.LessThan(b.Balance)
		}}, nil
	case domain.StrategyEqual:
		return EqualAllocator{}, nil
	case domain.StrategyRatio:
		return RatioAllocator{}, nil
	default:
		return nil, fmt.Errorf("unsupported strategy %q", strategy)
	}
}

// centsView is the working state shared by the allocators.
type centsView struct {
	loans    []AllocationLoan
	capacity map[string]int64
}

// newCentsView keeps loans that can absorb at least a cent, ordered by id.
func newCentsView(loans []AllocationLoan) centsView {
	v := centsView{capacity: make(map[string]int64, len(loans))}
	for _, l := range loans {
		c := money.NewMoneyFromDecimal(l.Capacity).Cents()
		if c <= 0 {
			continue
		}
		v.loans = append(v.loans, l)
		v.capacity[l.ID] = c
	}
	sort.SliceStable(v.loans, func(i, j int) bool { return v.loans[i].ID < v.loans[j].ID })
	return v
}

func toAllocation(given map[string]int64) Allocation {
	out := make(Allocation, len(given))
	for id, c := range given {
		if c > 0 {
			out[id] = money.FromCents(c).Decimal
		}
	}
	return out
}

// PriorityAllocator pours the whole budget into the first loan by priority
// and rolls whatever that loan cannot absorb down to the next one.
// Avalanche orders by highest rate, snowball by smallest balance.
type PriorityAllocator struct {
	Strategy domain.Strategy
	Less     func(a, b AllocationLoan) bool
}

func (p *PriorityAllocator) GetStrategyName() domain.Strategy { return p.Strategy }

func (p *PriorityAllocator) Allocate(loans []AllocationLoan, budget decimal.Decimal) Allocation {
	v := newCentsView(loans)
	remaining := money.NewMoneyFromDecimal(budget).Cents()
	ordered := append([]AllocationLoan(nil), v.loans...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if p.Less(ordered[i], ordered[j]) {
			return true
		}
		if p.Less(ordered[j], ordered[i]) {
			return false
		}
		return ordered[i].ID < ordered[j].ID
	})

	given := make(map[string]int64, len(ordered))
	for _, l := range ordered {
		if remaining <= 0 {
			break
		}
		amt := min(remaining, v.capacity[l.ID])
		given[l.ID] = amt
		remaining -= amt
	}
	return toAllocation(given)
}

// EqualAllocator splits the budget evenly. Leftover cents go to the first
// loans by id; a share a loan cannot absorb is split again among the rest.
type EqualAllocator struct{}

func (EqualAllocator) GetStrategyName() domain.Strategy { return domain.StrategyEqual }

func (EqualAllocator) Allocate(loans []AllocationLoan, budget decimal.Decimal) Allocation {
	v := newCentsView(loans)
	return toAllocation(fill(v, money.NewMoneyFromDecimal(budget).Cents(), func(pool []AllocationLoan, remaining int64) []int64 {
		return money.SplitEven(remaining, len(pool))
	}))
}

// RatioAllocator weights each loan by its share of this month's interest.
// Weights are recomputed every month as balances change.
type RatioAllocator struct{}

func (RatioAllocator) GetStrategyName() domain.Strategy { return domain.StrategyRatio }

func (RatioAllocator) Allocate(loans []AllocationLoan, budget decimal.Decimal) Allocation {
	v := newCentsView(loans)
	return toAllocation(fill(v, money.NewMoneyFromDecimal(budget).Cents(), interestShares))
}

func interestShares(pool []AllocationLoan, remaining int64) []int64 {
	weights := make([]int64, len(pool))
	var total int64
	for i, l := range pool {
		weights[i] = money.NewMoneyFromDecimal(l.Interest).Cents()
		total += weights[i]
	}
	if total <= 0 {
		return money.SplitEven(remaining, len(pool))
	}

	shares := make([]int64, len(pool))
	var assigned int64
	for i, w := range weights {
		shares[i] = remaining * w / total
		assigned += shares[i]
	}
	// floor division leaves fewer cents than there are weighted loans
	for i := 0; assigned < remaining; i = (i + 1) % len(pool) {
		if weights[i] > 0 {
			shares[i]++
			assigned++
		}
	}
	return shares
}

// fill hands out remaining cents in rounds. Each round asks split for
// per-loan shares, caps them at capacity, and drops saturated loans; the
// capped surplus is offered to the survivors in the next round.
func fill(v centsView, remaining int64, split func(pool []AllocationLoan, remaining int64) []int64) map[string]int64 {
	given := make(map[string]int64, len(v.loans))
	pool := v.loans
	for remaining > 0 && len(pool) > 0 {
		shares := split(pool, remaining)
		next := make([]AllocationLoan, 0, len(pool))
		for i, l := range pool {
			room := v.capacity[l.ID] - given[l.ID]
			amt := min(shares[i], room)
			given[l.ID] += amt
			remaining -= amt
			if given[l.ID] < v.capacity[l.ID] {
				next = append(next, l)
			}
		}
		if len(next) == len(pool) {
			break
		}
		pool = next
	}
	return given
}
