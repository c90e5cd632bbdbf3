/*
service.go - Shift (jornada) lifecycle and expenses

PURPOSE:
  Opens, reopens and closes the business day. Closing aggregates the
  day's wash jobs, payments and expenses into a resumen plus an
  optional cash reconciliation (cuadre).

LIFECYCLE:
  (none) --Open--> active --Close--> closed --Reopen--> active --Close--> ...

  Open:   only if today has no shift document at all
  Reopen: only today's shift, only when not active; unlimited
  Close:  recomputes and overwrites resumen and cuadre every time;
          allowed on an already closed shift to refresh its figures

CLOSE RANGE:
  [00:00, 23:59:59.999999999] of the shift's own date in the business
  timezone, whatever day the close actually runs.

STALE SHIFTS:
  A shift left active on an earlier date can never be found as "the
  active shift" again. CloseStale closes them as the system user.

SEE ALSO:
  - ledger/summary.go: Summarize and NewCuadre
  - api/scheduler.go: Runs CloseStale periodically
*/
package jornada

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/ledger"
)

type Service struct {
	store ledger.TxStore
	cal   *ledger.Calendar
}

func NewService(store ledger.TxStore, cal *ledger.Calendar) *Service {
	return &Service{store: store, cal: cal}
}

// =============================================================================
// QUERIES
// =============================================================================

// Today returns today's shift document whatever its state, or nil.
func (s *Service) Today(ctx context.Context) (*ledger.Shift, error) {
	return s.store.GetShiftByDate(ctx, s.cal.Today())
}

// Active returns today's shift if it is active, or nil.
func (s *Service) Active(ctx context.Context) (*ledger.Shift, error) {
	return ledger.ActiveShift(ctx, s.store, s.cal)
}

// Get returns a shift by id.
func (s *Service) Get(ctx context.Context, id ledger.ShiftID) (*ledger.Shift, error) {
	shift, err := s.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, ledger.ErrShiftNotFound
	}
	return shift, nil
}

// =============================================================================
// OPEN / REOPEN
// =============================================================================

// Open starts today's shift.
func (s *Service) Open(ctx context.Context, actor ledger.Actor) (*ledger.Shift, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}

	var shift ledger.Shift
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		today := s.cal.Today()
		existing, err := tx.GetShiftByDate(ctx, today)
		if err != nil {
			return fmt.Errorf("load shift: %w", err)
		}
		if existing != nil {
			return ledger.ErrShiftExists
		}

		shift = ledger.Shift{
			ID:       ledger.ShiftID(ledger.NewID()),
			Date:     today,
			Activa:   true,
			Inicio:   s.cal.Current(),
			OpenedBy: actor.Name,
		}
		return tx.InsertShift(ctx, shift)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("jornada_id", string(shift.ID)).Str("date", shift.Date.String()).Str("by", actor.Name).Msg("shift opened")
	return &shift, nil
}

// Reopen makes today's closed shift active again. Its last resumen and
// cuadre stay until the next close.
func (s *Service) Reopen(ctx context.Context, actor ledger.Actor, id ledger.ShiftID) (*ledger.Shift, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}

	var shift ledger.Shift
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		current, err := tx.GetShift(ctx, id)
		if err != nil {
			return fmt.Errorf("load shift: %w", err)
		}
		if current == nil {
			return ledger.ErrShiftNotFound
		}
		if current.Date != s.cal.Today() {
			return ledger.ErrShiftNotToday
		}
		if current.Activa {
			return ledger.ErrShiftAlreadyActive
		}

		now := s.cal.Current()
		shift = *current
		shift.Activa = true
		shift.Cerrada = false
		shift.ReopenedAt = &now
		shift.ReopenedBy = actor.Name
		return tx.UpdateShift(ctx, shift)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("jornada_id", string(id)).Str("by", actor.Name).Msg("shift reopened")
	return &shift, nil
}

// =============================================================================
// CLOSE
// =============================================================================

// CloseResult is a closed shift plus non-blocking warnings.
type CloseResult struct {
	Shift    ledger.Shift
	Warnings []string
}

// Close writes the shift's resumen and cuadre and deactivates it.
// efectivoReal is the counted cash; nil means no cuadre was done.
func (s *Service) Close(ctx context.Context, actor ledger.Actor, id ledger.ShiftID, efectivoReal *decimal.Decimal) (*CloseResult, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	if efectivoReal != nil && efectivoReal.IsNegative() {
		return nil, ledger.Invalid("efectivoReal", "must be 0 or more")
	}

	var result CloseResult
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		current, err := tx.GetShift(ctx, id)
		if err != nil {
			return fmt.Errorf("load shift: %w", err)
		}
		if current == nil {
			return ledger.ErrShiftNotFound
		}

		summary, err := s.summarize(ctx, tx, current.Date)
		if err != nil {
			return err
		}
		cuadre := ledger.NewCuadre(summary.Ingresos, efectivoReal)

		now := s.cal.Current()
		shift := *current
		shift.Activa = false
		shift.Cerrada = true
		shift.Cierre = &now
		shift.ClosedBy = actor.Name
		shift.Resumen = &summary
		shift.Cuadre = &cuadre
		if err := tx.UpdateShift(ctx, shift); err != nil {
			return err
		}

		result.Shift = shift
		if summary.Pendientes > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%d lavado(s) quedaron con saldo pendiente", summary.Pendientes))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sum := result.Shift.Resumen
	log.Info().
		Str("jornada_id", string(id)).
		Str("by", actor.Name).
		Int("lavados", sum.Lavados).
		Int("pendientes", sum.Pendientes).
		Str("ingresos", sum.Ingresos.String()).
		Str("gastos", sum.Gastos.String()).
		Bool("cuadre", result.Shift.Cuadre.HizoCuadre).
		Msg("shift closed")
	return &result, nil
}

// Preview computes the resumen a close would write, without writing it.
func (s *Service) Preview(ctx context.Context, actor ledger.Actor, id ledger.ShiftID) (*ledger.Summary, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	shift, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(ctx, s.store, shift.Date)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// CloseStale closes every shift still active on a past date, without cuadre.
// It returns how many were closed.
func (s *Service) CloseStale(ctx context.Context) (int, error) {
	stale, err := s.store.ListActiveShiftsBefore(ctx, s.cal.Today())
	if err != nil {
		return 0, fmt.Errorf("list stale shifts: %w", err)
	}

	closed := 0
	for _, shift := range stale {
		if _, err := s.Close(ctx, ledger.SystemActor, shift.ID, nil); err != nil {
			log.Error().Err(err).Str("jornada_id", string(shift.ID)).Msg("failed to close stale shift")
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *Service) summarize(ctx context.Context, st ledger.Store, date ledger.DateKey) (ledger.Summary, error) {
	r, err := s.cal.DayRange(date)
	if err != nil {
		return ledger.Summary{}, err
	}
	jobs, err := st.ListWashJobsCreated(ctx, r.From, r.To)
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("load wash jobs: %w", err)
	}
	payments, err := st.ListPayments(ctx, ledger.PaymentFilter{From: r.From, To: r.To})
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("load payments: %w", err)
	}
	expenses, err := st.ListExpenses(ctx, r.From, r.To)
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("load expenses: %w", err)
	}
	return ledger.Summarize(jobs, payments, expenses), nil
}

// =============================================================================
// EXPENSES
// =============================================================================

// ExpenseInput is a new gasto.
type ExpenseInput struct {
	Concepto    string
	Monto       decimal.Decimal
	Observacion string
}

// RecordExpense stores an expense dated now.
func (s *Service) RecordExpense(ctx context.Context, actor ledger.Actor, in ExpenseInput) (*ledger.Expense, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	concepto := strings.TrimSpace(in.Concepto)
	if concepto == "" {
		return nil, ledger.Invalid("concepto", "is required")
	}
	if !in.Monto.IsPositive() {
		return nil, ledger.Invalid("monto", "must be greater than 0")
	}

	e := ledger.Expense{
		ID:          ledger.ExpenseID(ledger.NewID()),
		Concepto:    concepto,
		Monto:       in.Monto,
		Observacion: strings.TrimSpace(in.Observacion),
		Fecha:       s.cal.Current(),
		ReportedBy:  actor.Name,
	}
	if err := s.store.InsertExpense(ctx, e); err != nil {
		return nil, err
	}

	log.Info().Str("gasto_id", string(e.ID)).Str("monto", e.Monto.String()).Msg("expense recorded")
	return &e, nil
}

// ListExpenses returns the expenses of the period containing today.
func (s *Service) ListExpenses(ctx context.Context, actor ledger.Actor, period ledger.Period) ([]ledger.Expense, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	r, err := s.cal.PeriodRange(period, s.cal.Today())
	if err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, r.From, r.To)
}
