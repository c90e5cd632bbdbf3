/*
service.go - Dashboard and history read views

PURPOSE:
  Read-only views over the ledger. Figures are computed from fresh
  store reads on every call and reuse ledger.Summarize, so a history
  total and a shift close over the same day always agree.

DASHBOARD:
  Today's shift, wash jobs, pending jobs and distinct clients with a
  pending job. Income figures (today and the last 7 days) are only
  included for admins.

HISTORY:
  Day, week (Monday based) or month around a given date: closed shifts
  by cierre, jobs, payments, expenses and totals. Not available to gestor.
*/
package reporte

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/ledger"
)

type Service struct {
	store ledger.Store
	cal   *ledger.Calendar
}

func NewService(store ledger.Store, cal *ledger.Calendar) *Service {
	return &Service{store: store, cal: cal}
}

// =============================================================================
// DASHBOARD
// =============================================================================

// DayIncome is one point of the income series.
type DayIncome struct {
	Date     ledger.DateKey  `json:"date"`
	Ingresos decimal.Decimal `json:"ingresos"`
}

type Dashboard struct {
	Date             ledger.DateKey
	Shift            *ledger.Shift
	ShiftActive      bool
	Lavados          int
	Pendientes       int
	ClientesConDeuda int
	// Admin only; nil for other roles.
	IngresosHoy *decimal.Decimal
	Ingresos7d  []DayIncome
}

// incomeDays is the length of the dashboard income series.
const incomeDays = 7

func (s *Service) Dashboard(ctx context.Context, actor ledger.Actor) (*Dashboard, error) {
	today := s.cal.Today()
	d := &Dashboard{Date: today}

	shift, err := s.store.GetShiftByDate(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("load shift: %w", err)
	}
	d.Shift = shift
	d.ShiftActive = shift != nil && shift.IsActiveOn(today)

	r, err := s.cal.DayRange(today)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListWashJobsCreated(ctx, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("load wash jobs: %w", err)
	}
	d.Lavados = len(jobs)
	debtors := make(map[ledger.ClientID]bool)
	for _, j := range jobs {
		if j.PaidAmount.LessThan(j.Price) {
			d.Pendientes++
			if j.ClientID != "" {
				debtors[j.ClientID] = true
			}
		}
	}
	d.ClientesConDeuda = len(debtors)

	if !actor.IsAdmin() {
		return d, nil
	}

	days := s.cal.LastDays(incomeDays)
	first, err := s.cal.DayRange(days[0])
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, ledger.PaymentFilter{From: first.From, To: r.To})
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	byDay := make(map[ledger.DateKey]decimal.Decimal, incomeDays)
	for _, p := range payments {
		k := s.cal.KeyOf(p.CreatedAt)
		byDay[k] = byDay[k].Add(p.Amount)
	}
	for _, k := range days {
		d.Ingresos7d = append(d.Ingresos7d, DayIncome{Date: k, Ingresos: byDay[k]})
	}
	hoy := byDay[today]
	d.IngresosHoy = &hoy
	return d, nil
}

// =============================================================================
// HISTORY
// =============================================================================

type Totals struct {
	Lavados    int             `json:"lavados"`
	Pendientes int             `json:"pendientes"`
	Ingresos   decimal.Decimal `json:"ingresos"`
	Gastos     decimal.Decimal `json:"gastos"`
	Balance    decimal.Decimal `json:"balance"`
}

type History struct {
	Period  ledger.Period
	Range   ledger.Range
	Shifts  []ledger.Shift
	Lavados []ledger.WashJob
	Pagos   []ledger.Payment
	Gastos  []ledger.Expense
	Totals  Totals
}

// History returns the period containing date (today when empty).
func (s *Service) History(ctx context.Context, actor ledger.Actor, period ledger.Period, date ledger.DateKey) (*History, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	if date == "" {
		date = s.cal.Today()
	}
	r, err := s.cal.PeriodRange(period, date)
	if err != nil {
		return nil, err
	}

	h := &History{Period: period, Range: r}
	if h.Shifts, err = s.store.ListShiftsClosed(ctx, r.From, r.To); err != nil {
		return nil, fmt.Errorf("load shifts: %w", err)
	}
	if h.Lavados, err = s.store.ListWashJobsCreated(ctx, r.From, r.To); err != nil {
		return nil, fmt.Errorf("load wash jobs: %w", err)
	}
	if h.Pagos, err = s.store.ListPayments(ctx, ledger.PaymentFilter{From: r.From, To: r.To}); err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	if h.Gastos, err = s.store.ListExpenses(ctx, r.From, r.To); err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	sum := ledger.Summarize(h.Lavados, h.Pagos, h.Gastos)
	h.Totals = Totals{
		Lavados:    sum.Lavados,
		Pendientes: sum.Pendientes,
		Ingresos:   sum.Ingresos,
		Gastos:     sum.Gastos,
		Balance:    sum.BalanceTeorico,
	}
	return h, nil
}
