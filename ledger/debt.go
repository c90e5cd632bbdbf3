package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DEBT CALCULATOR - Outstanding balance of a client
// =============================================================================

// Debt is a client's outstanding balance split by source.
type Debt struct {
	WashJobs    decimal.Decimal `json:"lavados"`
	ManualDebts decimal.Decimal `json:"deudasManuales"`
	Total       decimal.Decimal `json:"total"`
}

// CalculateDebt sums (price - paidAmount) over unpaid wash jobs and
// (amount - paidAmount) over manual debts. The total never goes below zero.
// It is a pure function: callers pass freshly loaded documents.
func CalculateDebt(jobs []WashJob, debts []ManualDebt) Debt {
	var d Debt
	for _, j := range jobs {
		if j.Pagado {
			continue
		}
		d.WashJobs = d.WashJobs.Add(j.Price.Sub(j.PaidAmount))
	}
	for _, md := range debts {
		d.ManualDebts = d.ManualDebts.Add(md.Pending())
	}
	d.Total = decimal.Max(decimal.Zero, d.WashJobs.Add(d.ManualDebts))
	return d
}

// ClientDebt loads a client's unpaid jobs and manual debts from s and
// computes the debt. Nothing is cached; every call hits the store.
func ClientDebt(ctx context.Context, s Store, id ClientID) (Debt, error) {
	jobs, err := s.ListWashJobsByClient(ctx, id, true)
	if err != nil {
		return Debt{}, fmt.Errorf("load wash jobs: %w", err)
	}
	debts, err := s.ListManualDebts(ctx, id)
	if err != nil {
		return Debt{}, fmt.Errorf("load manual debts: %w", err)
	}
	return CalculateDebt(jobs, debts), nil
}
