/*
allocation.go - FIFO payment allocation across a client's open debts

PURPOSE:
  Splits one client payment across the obligations it pays down.
  The allocator only plans; the pago service applies the plan and
  writes the payment record inside a store transaction.

ORDER:
  1. Unpaid wash jobs, oldest createdAt first
  2. Manual debts, oldest createdAt first
  Ties keep the order the store returned them in (insertion order).

ALGORITHM:
  remaining := amount
  for each obligation with pending > 0:
      apply := min(pending, remaining)
      paid += apply
      settled := paid >= total
      remaining -= apply
      stop when remaining == 0

  Conservation: sum(applied) + leftover == amount.
  A leftover only happens when the amount exceeded the debt, which the
  caller rejects up front, so a non-zero leftover is an invariant violation.

EXAMPLE:
  Jobs of $10 (older) and $15 (newer), payment of $12:
    job 1: applied 10, settled
    job 2: applied 2, pending 13

SEE ALSO:
  - debt.go: The debt the amount is validated against
  - pago/service.go: Applies the plan
*/
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OBLIGATIONS
// =============================================================================

type ObligationKind string

const (
	ObligationWashJob    ObligationKind = "lavado"
	ObligationManualDebt ObligationKind = "deuda_manual"
)

// Obligation is anything a client payment can pay down.
type Obligation struct {
	Kind      ObligationKind
	ID        string
	CreatedAt time.Time
	Total     decimal.Decimal
	Paid      decimal.Decimal
}

func (o Obligation) Pending() decimal.Decimal {
	return o.Total.Sub(o.Paid)
}

// Obligations lists the open obligations in allocation order.
func Obligations(jobs []WashJob, debts []ManualDebt) []Obligation {
	var jobObs, debtObs []Obligation
	for _, j := range jobs {
		if j.Pagado || !j.Pending().IsPositive() {
			continue
		}
		jobObs = append(jobObs, Obligation{
			Kind: ObligationWashJob, ID: string(j.ID), CreatedAt: j.CreatedAt,
			Total: j.Price, Paid: j.PaidAmount,
		})
	}
	for _, d := range debts {
		if d.Settled() {
			continue
		}
		debtObs = append(debtObs, Obligation{
			Kind: ObligationManualDebt, ID: string(d.ID), CreatedAt: d.CreatedAt,
			Total: d.Amount, Paid: d.PaidAmount,
		})
	}
	byCreated := func(obs []Obligation) {
		sort.SliceStable(obs, func(a, b int) bool {
			return obs[a].CreatedAt.Before(obs[b].CreatedAt)
		})
	}
	byCreated(jobObs)
	byCreated(debtObs)
	return append(jobObs, debtObs...)
}

// =============================================================================
// ALLOCATION PLAN
// =============================================================================

// Allocation is the part of a payment applied to one obligation.
type Allocation struct {
	Obligation Obligation
	Applied    decimal.Decimal
	NewPaid    decimal.Decimal
	Settled    bool
}

// AllocationPlan is the outcome of allocating a payment.
type AllocationPlan struct {
	Amount      decimal.Decimal
	Allocations []Allocation
	Applied     decimal.Decimal
	Leftover    decimal.Decimal
}

// PaymentAllocator determines how a payment drains a client's obligations.
type PaymentAllocator struct{}

// Allocate walks the obligations in FIFO order applying min(pending, remaining).
func (pa *PaymentAllocator) Allocate(jobs []WashJob, debts []ManualDebt, amount decimal.Decimal) *AllocationPlan {
	plan := &AllocationPlan{Amount: amount}
	remaining := amount

	for _, ob := range Obligations(jobs, debts) {
		if !remaining.IsPositive() {
			break
		}

		apply := decimal.Min(ob.Pending(), remaining)
		newPaid := ob.Paid.Add(apply)

		plan.Allocations = append(plan.Allocations, Allocation{
			Obligation: ob,
			Applied:    apply,
			NewPaid:    newPaid,
			Settled:    newPaid.GreaterThanOrEqual(ob.Total),
		})
		plan.Applied = plan.Applied.Add(apply)
		remaining = remaining.Sub(apply)
	}

	plan.Leftover = remaining
	return plan
}
