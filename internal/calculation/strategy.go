package calculation

import (
	"fmt"
	"time"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/rpgo/loan-simulator/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// StrategyOptions configures a strategy-adjusted projection
type StrategyOptions struct {
	Start                   time.Time
	MaxMonths               int
	Strategy                domain.Strategy
	Goal                    domain.Goal
	MonthlyBudget           decimal.Decimal
	ReinvestReducedPayments bool
	PaymentReductionTarget  decimal.Decimal
}

// GenerateStrategyProjection amortizes the loans while directing the monthly
// overpayment budget through the strategy's allocator.
//
// With ReinvestReducedPayments the standard payment of every loan that pays
// off joins the budget from the following month, so the effective budget
// never drops below MonthlyBudget and never shrinks.
//
// Under the payment_reduction goal each overpaid loan is recast over its
// remaining term, or over the months its unpaid-down schedule still needs
// when that is shorter, and overpaying stops once the combined standard payment
// has fallen by PaymentReductionTarget. Freed payments are not reinvested
// under that goal since they are the reduction being sought.
func GenerateStrategyProjection(loans []ProjectionLoan, opts StrategyOptions) (domain.Projection, error) {
	allocator, err := NewAllocator(opts.Strategy)
	if err != nil {
		return domain.Projection{}, err
	}
	if opts.MonthlyBudget.IsNegative() {
		return domain.Projection{}, fmt.Errorf("monthly budget cannot be negative: %s", opts.MonthlyBudget.StringFixed(2))
	}
	goal := opts.Goal
	if goal == "" {
		goal = domain.GoalFastestPayoff
	}
	return runSchedule(loans, scheduleConfig{
		start:     opts.Start,
		maxMonths: opts.MaxMonths,
		extra:     decimal.Zero,
		allocator: allocator,
		budget:    opts.MonthlyBudget,
		reinvest:  opts.ReinvestReducedPayments && goal == domain.GoalFastestPayoff,
		recast:    goal == domain.GoalPaymentReduction,
		target:    opts.PaymentReductionTarget,
	}), nil
}

type scheduleConfig struct {
	start     time.Time
	maxMonths int
	extra     decimal.Decimal
	allocator Allocator // nil for baseline runs
	budget    decimal.Decimal
	reinvest  bool
	recast    bool
	target    decimal.Decimal
}

type loanState struct {
	ProjectionLoan
	monthlyRate   decimal.Decimal
	balance       decimal.Decimal
	payment       decimal.Decimal
	remainingTerm int
	// scheduled is where the balance would be with no overpayment at all;
	// recasting never stretches payoff past it.
	scheduled decimal.Decimal
}

func (s *loanState) active() bool {
	return s.balance.GreaterThan(domain.PaidOffThreshold)
}

// runSchedule is the month loop shared by baseline and strategy projections.
// Loans are processed in id order, amounts are rounded to the cent each
// month, and no map iteration feeds the output, so reruns are identical.
func runSchedule(loans []ProjectionLoan, cfg scheduleConfig) domain.Projection {
	maxMonths := cfg.maxMonths
	if maxMonths <= 0 {
		maxMonths = DefaultMaxMonths
	}
	start := dateutil.FirstOfMonth(cfg.start)

	states := make([]*loanState, 0, len(loans))
	initialPayments := decimal.Zero
	for _, l := range loans {
		st := &loanState{
			ProjectionLoan: l,
			monthlyRate:    MonthlyRate(l.AnnualRate),
			balance:        roundCents(l.Balance),
			payment:        l.StandardPayment,
			remainingTerm:  l.TermMonths,
			scheduled:      roundCents(l.Balance),
		}
		if st.active() {
			initialPayments = initialPayments.Add(st.payment)
		}
		states = append(states, st)
	}

	proj := domain.Projection{
		TotalInterest:    decimal.Zero,
		TotalPrincipal:   decimal.Zero,
		TotalOverpayment: decimal.Zero,
		PaymentReduction: decimal.Zero,
	}
	reinvestPool := decimal.Zero
	targetReached := false

	for i := 0; i < maxMonths; i++ {
		active := make([]*loanState, 0, len(states))
		for _, st := range states {
			if st.active() {
				active = append(active, st)
			}
		}
		if len(active) == 0 {
			break
		}

		date := dateutil.AddMonths(start, i)
		month := domain.ProjectionMonth{
			Index:            i + 1,
			Date:             date,
			Month:            dateutil.FormatISO(date),
			Budget:           decimal.Zero,
			TotalInterest:    decimal.Zero,
			TotalPrincipal:   decimal.Zero,
			TotalOverpayment: decimal.Zero,
			TotalRemaining:   decimal.Zero,
			TotalPayment:     decimal.Zero,
			Loans:            make([]domain.LoanMonth, 0, len(active)),
		}

		interest := make([]decimal.Decimal, len(active))
		for k, st := range active {
			interest[k] = roundCents(st.balance.Mul(st.monthlyRate))
		}

		var alloc Allocation
		if cfg.allocator != nil && !targetReached {
			month.Budget = cfg.budget.Add(reinvestPool)
			view := make([]AllocationLoan, len(active))
			for k, st := range active {
				scheduled := st.payment.Add(cfg.extra).Sub(interest[k])
				capacity := st.balance.Sub(scheduled)
				if capacity.IsNegative() {
					capacity = decimal.Zero
				}
				view[k] = AllocationLoan{
					ID:         st.ID,
					AnnualRate: st.AnnualRate,
					Balance:    st.balance,
					Interest:   interest[k],
					Capacity:   capacity,
				}
			}
			alloc = cfg.allocator.Allocate(view, month.Budget)
		}

		for k, st := range active {
			over := alloc[st.ID]
			due := st.payment.Add(cfg.extra)
			principal := due.Add(over).Sub(interest[k])
			if principal.GreaterThan(st.balance) {
				principal = st.balance
			}
			if principal.IsNegative() {
				principal = decimal.Zero
			}
			st.balance = st.balance.Sub(principal)
			paidOff := !st.active()
			if paidOff {
				// a residual cent left by rounding is swept into the final payment
				principal = principal.Add(st.balance)
				st.balance = decimal.Zero
			}

			month.Loans = append(month.Loans, domain.LoanMonth{
				LoanID:          st.ID,
				OriginalAmount:  st.OriginalAmount,
				StandardPayment: st.payment,
				Interest:        interest[k],
				Principal:       principal,
				Overpayment:     over,
				Remaining:       st.balance,
				PaidOff:         paidOff,
			})
			month.TotalInterest = month.TotalInterest.Add(interest[k])
			month.TotalPrincipal = month.TotalPrincipal.Add(principal)
			month.TotalOverpayment = month.TotalOverpayment.Add(over)
			month.TotalRemaining = month.TotalRemaining.Add(st.balance)
			month.TotalPayment = month.TotalPayment.Add(st.payment)

			if st.remainingTerm > 1 {
				st.remainingTerm--
			}
			st.scheduled = amortize(st.scheduled, st.StandardPayment, st.monthlyRate)
			if paidOff {
				if cfg.reinvest {
					reinvestPool = reinvestPool.Add(st.payment)
				}
				continue
			}
			if cfg.recast && over.IsPositive() {
				term := st.remainingTerm
				if left := monthsToRetire(st.scheduled, st.StandardPayment, st.monthlyRate, term); left < term {
					term = left
				}
				if term < 1 {
					term = 1
				}
				if pmt, err := DeriveStandardMonthlyPayment(st.balance, st.AnnualRate, term); err == nil {
					st.payment = pmt
				}
			}
		}

		proj.TotalInterest = proj.TotalInterest.Add(month.TotalInterest)
		proj.TotalPrincipal = proj.TotalPrincipal.Add(month.TotalPrincipal)
		proj.TotalOverpayment = proj.TotalOverpayment.Add(month.TotalOverpayment)
		proj.Months = append(proj.Months, month)

		if cfg.recast {
			current := decimal.Zero
			for _, st := range states {
				if st.active() {
					current = current.Add(st.payment)
				}
			}
			proj.PaymentReduction = initialPayments.Sub(current)
			if !targetReached && cfg.target.IsPositive() && proj.PaymentReduction.GreaterThanOrEqual(cfg.target) {
				targetReached = true
				proj.PaymentReductionMonth = month.Index
			}
		}
	}

	proj.Completed = true
	for _, st := range states {
		if st.active() {
			proj.Completed = false
			break
		}
	}
	proj.MonthsToPayoff = len(proj.Months)
	return proj
}

// amortize applies one standard payment to balance, never going below zero.
func amortize(balance, payment, monthlyRate decimal.Decimal) decimal.Decimal {
	if !balance.GreaterThan(domain.PaidOffThreshold) {
		return decimal.Zero
	}
	interest := roundCents(balance.Mul(monthlyRate))
	balance = balance.Sub(payment.Sub(interest))
	if !balance.GreaterThan(domain.PaidOffThreshold) {
		return decimal.Zero
	}
	return balance
}

// monthsToRetire counts the months payment needs to clear balance, capped at
// maxMonths.
func monthsToRetire(balance, payment, monthlyRate decimal.Decimal, maxMonths int) int {
	n := 0
	for balance.IsPositive() && n < maxMonths {
		next := amortize(balance, payment, monthlyRate)
		if next.GreaterThanOrEqual(balance) {
			return maxMonths
		}
		balance = next
		n++
	}
	return n
}
