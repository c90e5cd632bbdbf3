package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// DAY SUMMARY - Figures written on shift close
// =============================================================================

// Summarize aggregates one day's documents into a resumen.
//   - lavados: every job created that day, free ones included
//   - pendientes: jobs with paidAmount < price
//   - ingresos: every payment created that day, whatever its origin
//   - gastos: every expense of that day
func Summarize(jobs []WashJob, payments []Payment, expenses []Expense) Summary {
	s := Summary{Lavados: len(jobs)}
	for _, j := range jobs {
		if j.PaidAmount.LessThan(j.Price) {
			s.Pendientes++
		}
	}
	for _, p := range payments {
		s.Ingresos = s.Ingresos.Add(p.Amount)
	}
	for _, e := range expenses {
		s.Gastos = s.Gastos.Add(e.Monto)
	}
	s.BalanceTeorico = s.Ingresos.Sub(s.Gastos)
	return s
}

// NewCuadre builds the cash reconciliation. Expected cash is the day's
// ingresos. With no counted cash, the cuadre records that none was done.
func NewCuadre(ingresos decimal.Decimal, efectivoReal *decimal.Decimal) Cuadre {
	if efectivoReal == nil {
		return Cuadre{
			HizoCuadre:       false,
			EfectivoEsperado: ingresos,
			EfectivoReal:     ingresos,
			Diferencia:       decimal.Zero,
		}
	}
	return Cuadre{
		HizoCuadre:       true,
		EfectivoEsperado: ingresos,
		EfectivoReal:     *efectivoReal,
		Diferencia:       efectivoReal.Sub(ingresos),
	}
}
