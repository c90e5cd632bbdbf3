/*
service.go - Wash-job (lavado) lifecycle

PURPOSE:
  Creates, edits, deletes and lists wash jobs, keeping the derived
  payment state consistent and emitting "lavado" payments.

CREATE:
  price = 0              free: never pagado, never a payment
  price > 0, not pending paid in full; a "lavado" payment is written in
                         the same transaction as the job
  price > 0, pending     unpaid; needs a client and an admin

EDIT (target id is explicit):
  - A job that ever generated a payment, or is fully paid (locked), can
    only have its vehicle type and description changed. It can never go
    back to pending.
  - An open job may change price (never below what was already paid),
    client (only while nothing was paid) and pending flag. Switching it
    to paid emits a "lavado" payment for the outstanding amount.

DELETE:
  Only when nothing is pending. Removes the payments that reference it.

SEE ALSO:
  - ledger/types.go: WashJob and its status labels
  - pago/service.go: Client payments that pay down pending jobs
*/
package lavado

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/ledger"
)

// AnonymousName is the client snapshot of a job without a client.
const AnonymousName = "Anónimo"

type Service struct {
	store ledger.TxStore
	cal   *ledger.Calendar
}

func NewService(store ledger.TxStore, cal *ledger.Calendar) *Service {
	return &Service{store: store, cal: cal}
}

// Input is the editable content of a wash job.
type Input struct {
	VehicleType string
	Description string
	Price       decimal.Decimal
	ClientID    ledger.ClientID
	// Pending leaves a priced job unpaid, as client debt.
	Pending bool
}

func (in *Input) normalize() error {
	in.VehicleType = strings.TrimSpace(in.VehicleType)
	in.Description = strings.TrimSpace(in.Description)
	if in.VehicleType == "" {
		return ledger.Invalid("vehicleType", "is required")
	}
	if in.Price.IsNegative() {
		return ledger.Invalid("price", "must be 0 or more")
	}
	if in.Price.IsZero() {
		in.Pending = false
	}
	return nil
}

// =============================================================================
// CREATE
// =============================================================================

// Create records a wash job in today's active shift.
func (s *Service) Create(ctx context.Context, actor ledger.Actor, in Input) (*ledger.WashJob, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.Pending {
		if !actor.IsAdmin() {
			return nil, ledger.ErrForbidden
		}
		if in.ClientID == "" {
			return nil, ledger.ErrPendingRequiresClient
		}
	}

	var job ledger.WashJob
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		shift, err := ledger.RequireActiveShift(ctx, tx, s.cal)
		if err != nil {
			return err
		}
		name, err := clientName(ctx, tx, in.ClientID)
		if err != nil {
			return err
		}

		job = ledger.WashJob{
			ID:          ledger.WashJobID(ledger.NewID()),
			VehicleType: in.VehicleType,
			Description: in.Description,
			Price:       in.Price,
			ClientID:    in.ClientID,
			ClientName:  name,
			PaidAmount:  decimal.Zero,
			CreatedAt:   s.cal.Current(),
			ReportedBy:  actor.Name,
		}
		paid := !job.IsFree() && !in.Pending
		if paid {
			job.PaidAmount = job.Price
			job.Pagado = true
			job.PagoGenerado = true
			job.Locked = true
		}

		if err := tx.InsertWashJob(ctx, job); err != nil {
			return err
		}
		if paid {
			return tx.InsertPayment(ctx, s.jobPayment(job, job.Price, shift.ID, actor))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("lavado_id", string(job.ID)).
		Str("price", job.Price.String()).
		Str("status", string(job.Status())).
		Msg("wash job created")
	return &job, nil
}

// =============================================================================
// EDIT
// =============================================================================

// Edit updates the wash job id.
func (s *Service) Edit(ctx context.Context, actor ledger.Actor, id ledger.WashJobID, in Input) (*ledger.WashJob, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var job ledger.WashJob
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		current, err := tx.GetWashJob(ctx, id)
		if err != nil {
			return fmt.Errorf("load wash job: %w", err)
		}
		if current == nil {
			return ledger.ErrWashJobNotFound
		}
		job = *current
		job.VehicleType = in.VehicleType
		job.Description = in.Description

		if current.PagoGenerado || current.Locked {
			if in.Pending || !in.Price.Equal(current.Price) || in.ClientID != current.ClientID {
				return ledger.ErrWashJobLocked
			}
			return tx.UpdateWashJob(ctx, job)
		}

		if in.Price.LessThan(current.PaidAmount) {
			return ledger.Invalid("price", "cannot be lower than the amount already paid")
		}
		if in.ClientID != current.ClientID {
			if current.PaidAmount.IsPositive() {
				return ledger.Invalid("clientId", "cannot change once payments were applied")
			}
			name, err := clientName(ctx, tx, in.ClientID)
			if err != nil {
				return err
			}
			job.ClientID = in.ClientID
			job.ClientName = name
		}
		if in.Pending && job.ClientID == "" {
			return ledger.ErrPendingRequiresClient
		}
		job.Price = in.Price

		switch {
		case job.IsFree():
			job.Pagado = false
		case !in.Pending:
			shift, err := ledger.RequireActiveShift(ctx, tx, s.cal)
			if err != nil {
				return err
			}
			outstanding := job.Pending()
			job.PaidAmount = job.Price
			job.Pagado = true
			job.PagoGenerado = true
			job.Locked = true
			if outstanding.IsPositive() {
				if err := tx.InsertPayment(ctx, s.jobPayment(job, outstanding, shift.ID, actor)); err != nil {
					return err
				}
			}
		default:
			job.Pagado = job.PaidAmount.GreaterThanOrEqual(job.Price)
			job.Locked = job.Pagado
		}
		return tx.UpdateWashJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("lavado_id", string(id)).Str("status", string(job.Status())).Msg("wash job edited")
	return &job, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a settled or free job and the payments that reference it.
func (s *Service) Delete(ctx context.Context, actor ledger.Actor, id ledger.WashJobID) error {
	if !actor.IsAdmin() {
		return ledger.ErrForbidden
	}

	var removed int
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		job, err := tx.GetWashJob(ctx, id)
		if err != nil {
			return fmt.Errorf("load wash job: %w", err)
		}
		if job == nil {
			return ledger.ErrWashJobNotFound
		}
		if pending := job.Price.Sub(job.PaidAmount); pending.IsPositive() {
			return &ledger.OutstandingDebtError{What: "wash job", ID: string(id), Pending: pending}
		}

		removed, err = tx.DeletePaymentsForWashJob(ctx, id)
		if err != nil {
			return err
		}
		return tx.DeleteWashJob(ctx, id)
	})
	if err != nil {
		return err
	}

	log.Info().Str("lavado_id", string(id)).Int("payments_removed", removed).Msg("wash job deleted")
	return nil
}

// =============================================================================
// LISTING
// =============================================================================

// List returns the jobs created in the period containing today, newest first.
func (s *Service) List(ctx context.Context, period ledger.Period) ([]ledger.WashJob, error) {
	r, err := s.cal.PeriodRange(period, s.cal.Today())
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListWashJobsCreated(ctx, r.From, r.To)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	}
	return jobs, nil
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, id ledger.WashJobID) (*ledger.WashJob, error) {
	job, err := s.store.GetWashJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ledger.ErrWashJobNotFound
	}
	return job, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func clientName(ctx context.Context, tx ledger.Store, id ledger.ClientID) (string, error) {
	if id == "" {
		return AnonymousName, nil
	}
	c, err := tx.GetClient(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load client: %w", err)
	}
	if c == nil {
		return "", ledger.ErrClientNotFound
	}
	return c.Name, nil
}

func (s *Service) jobPayment(job ledger.WashJob, amount decimal.Decimal, shiftID ledger.ShiftID, actor ledger.Actor) ledger.Payment {
	return ledger.Payment{
		ID:         ledger.PaymentID(ledger.NewID()),
		ClientID:   job.ClientID,
		ClientName: job.ClientName,
		Amount:     amount,
		Origen:     ledger.OriginWashJob,
		LavadoID:   job.ID,
		JornadaID:  shiftID,
		CreatedAt:  s.cal.Current(),
		ReportedBy: actor.Name,
		Anonimo:    job.Anonymous(),
	}
}
