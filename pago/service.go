/*
service.go - Client payment registration

PURPOSE:
  Registers a payment from a client against their outstanding debt.
  The payment drains the client's obligations oldest first (wash jobs,
  then manual debts) and is recorded as one pago with origen "cliente".

FLOW (one store transaction):
  1. Require today's active shift
  2. Load the client, its unpaid jobs and manual debts
  3. Reject the amount if it exceeds the current debt
  4. Plan with ledger.PaymentAllocator and apply every allocation
  5. Insert the payment record

  Every check happens before the first write. Any failure rolls the
  whole sequence back.

SEE ALSO:
  - ledger/allocation.go: The FIFO plan
  - ledger/debt.go: Debt the amount is checked against
*/
package pago

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/ledger"
)

// Service registers and lists payments.
type Service struct {
	store     ledger.TxStore
	cal       *ledger.Calendar
	allocator *ledger.PaymentAllocator
}

func NewService(store ledger.TxStore, cal *ledger.Calendar) *Service {
	return &Service{store: store, cal: cal, allocator: &ledger.PaymentAllocator{}}
}

// RegisterInput is a client payment request.
type RegisterInput struct {
	ClientID ledger.ClientID
	Amount   decimal.Decimal
}

// Receipt describes a registered payment and where the money went.
type Receipt struct {
	Payment     ledger.Payment
	Allocations []ledger.Allocation
	DebtBefore  decimal.Decimal
	DebtAfter   decimal.Decimal
}

// Register applies a client payment FIFO across the client's open debts.
func (s *Service) Register(ctx context.Context, actor ledger.Actor, in RegisterInput) (*Receipt, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	if in.ClientID == "" {
		return nil, ledger.Invalid("clientId", "is required")
	}
	if !in.Amount.IsPositive() {
		return nil, ledger.Invalid("amount", "must be greater than 0")
	}

	var receipt *Receipt
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		shift, err := ledger.RequireActiveShift(ctx, tx, s.cal)
		if err != nil {
			return err
		}

		client, err := tx.GetClient(ctx, in.ClientID)
		if err != nil {
			return fmt.Errorf("load client: %w", err)
		}
		if client == nil {
			return ledger.ErrClientNotFound
		}

		jobs, err := tx.ListWashJobsByClient(ctx, client.ID, true)
		if err != nil {
			return fmt.Errorf("load wash jobs: %w", err)
		}
		debts, err := tx.ListManualDebts(ctx, client.ID)
		if err != nil {
			return fmt.Errorf("load manual debts: %w", err)
		}

		debt := ledger.CalculateDebt(jobs, debts)
		if in.Amount.GreaterThan(debt.Total) {
			return &ledger.PaymentExceedsDebtError{ClientID: client.ID, Debt: debt.Total, Amount: in.Amount}
		}

		plan := s.allocator.Allocate(jobs, debts, in.Amount)
		if err := applyPlan(ctx, tx, jobs, plan); err != nil {
			return err
		}
		if plan.Leftover.IsPositive() {
			log.Error().
				Str("client_id", string(client.ID)).
				Str("amount", in.Amount.String()).
				Str("leftover", plan.Leftover.String()).
				Msg("payment left an unallocated remainder")
		}

		payment := ledger.Payment{
			ID:         ledger.PaymentID(ledger.NewID()),
			ClientID:   client.ID,
			ClientName: client.Name,
			Amount:     in.Amount,
			Origen:     ledger.OriginClient,
			JornadaID:  shift.ID,
			CreatedAt:  s.cal.Current(),
			ReportedBy: actor.Name,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}

		receipt = &Receipt{
			Payment:     payment,
			Allocations: plan.Allocations,
			DebtBefore:  debt.Total,
			DebtAfter:   debt.Total.Sub(plan.Applied),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("payment_id", string(receipt.Payment.ID)).
		Str("client_id", string(in.ClientID)).
		Str("amount", in.Amount.String()).
		Int("allocations", len(receipt.Allocations)).
		Msg("payment registered")
	return receipt, nil
}

func applyPlan(ctx context.Context, tx ledger.Store, jobs []ledger.WashJob, plan *ledger.AllocationPlan) error {
	byID := make(map[ledger.WashJobID]ledger.WashJob, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	for _, a := range plan.Allocations {
		switch a.Obligation.Kind {
		case ledger.ObligationWashJob:
			j := byID[ledger.WashJobID(a.Obligation.ID)]
			j.PaidAmount = a.NewPaid
			j.Pagado = a.Settled
			j.Locked = j.Locked || a.Settled
			if err := tx.UpdateWashJob(ctx, j); err != nil {
				return fmt.Errorf("apply payment to wash job %s: %w", j.ID, err)
			}
		case ledger.ObligationManualDebt:
			id := ledger.ManualDebtID(a.Obligation.ID)
			if err := tx.SetManualDebtPaid(ctx, id, a.NewPaid); err != nil {
				return fmt.Errorf("apply payment to manual debt %s: %w", id, err)
			}
		}
	}
	return nil
}

// List returns payments newest first, optionally for one client.
func (s *Service) List(ctx context.Context, actor ledger.Actor, clientID ledger.ClientID) ([]ledger.Payment, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	return s.store.ListPayments(ctx, ledger.PaymentFilter{ClientID: clientID})
}
