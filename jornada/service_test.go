package jornada_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lavadero/cliente"
	"github.com/warp/lavadero/jornada"
	"github.com/warp/lavadero/lavado"
	"github.com/warp/lavadero/ledger"
	"github.com/warp/lavadero/ledger/store"
	"github.com/warp/lavadero/pago"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	admin  = ledger.Actor{ID: "u-admin", Name: "Admin", Role: ledger.RoleAdmin}
	gestor = ledger.Actor{ID: "u-gestor", Name: "Gestor", Role: ledger.RoleGestor}
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// clock is a calendar whose time the test moves forward.
type clock struct {
	now time.Time
	cal *ledger.Calendar
}

func newClock(start time.Time) *clock {
	c := &clock{now: start}
	c.cal = &ledger.Calendar{Location: start.Location(), Now: func() time.Time { return c.now }}
	return c
}

func (c *clock) advance(d time.Duration) { c.now = c.now.Add(d) }

type env struct {
	ctx      context.Context
	clock    *clock
	store    *store.Memory
	jornadas *jornada.Service
	lavados  *lavado.Service
	pagos    *pago.Service
	clientes *cliente.Service
}

func newEnv(start time.Time) *env {
	st := store.NewMemory()
	c := newClock(start)
	return &env{
		ctx:      context.Background(),
		clock:    c,
		store:    st,
		jornadas: jornada.NewService(st, c.cal),
		lavados:  lavado.NewService(st, c.cal),
		pagos:    pago.NewService(st, c.cal),
		clientes: cliente.NewService(st, c.cal),
	}
}

func jan1(hour int) time.Time {
	return time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
}

// =============================================================================
// OPEN / REOPEN
// =============================================================================

func TestOpen_OncePerDay(t *testing.T) {
	// GIVEN: A shift opened today
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	assert.True(t, shift.Activa)
	assert.Equal(t, ledger.DateKey("2024-01-01"), shift.Date)
	assert.Equal(t, "Admin", shift.OpenedBy)

	// WHEN: Opening again, even after closing
	_, err = e.jornadas.Open(e.ctx, admin)
	assert.ErrorIs(t, err, ledger.ErrShiftExists)

	_, err = e.jornadas.Close(e.ctx, admin, shift.ID, nil)
	require.NoError(t, err)
	_, err = e.jornadas.Open(e.ctx, admin)

	// THEN: Still rejected; reopen is the way back
	assert.ErrorIs(t, err, ledger.ErrShiftExists)
}

func TestOpen_GestorForbidden(t *testing.T) {
	e := newEnv(jan1(8))
	_, err := e.jornadas.Open(e.ctx, gestor)
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}

func TestReopen(t *testing.T) {
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)

	_, err = e.jornadas.Reopen(e.ctx, admin, shift.ID)
	assert.ErrorIs(t, err, ledger.ErrShiftAlreadyActive)

	_, err = e.jornadas.Close(e.ctx, admin, shift.ID, nil)
	require.NoError(t, err)

	e.clock.advance(time.Hour)
	reopened, err := e.jornadas.Reopen(e.ctx, admin, shift.ID)
	require.NoError(t, err)
	assert.True(t, reopened.Activa)
	assert.False(t, reopened.Cerrada)
	require.NotNil(t, reopened.ReopenedAt)
	assert.NotNil(t, reopened.Resumen, "last resumen is kept until the next close")

	active, err := e.jornadas.Active(e.ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, shift.ID, active.ID)
}

func TestReopen_OnlyToday(t *testing.T) {
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	_, err = e.jornadas.Close(e.ctx, admin, shift.ID, nil)
	require.NoError(t, err)

	e.clock.advance(24 * time.Hour)
	_, err = e.jornadas.Reopen(e.ctx, admin, shift.ID)

	assert.ErrorIs(t, err, ledger.ErrShiftNotToday)

	_, err = e.jornadas.Reopen(e.ctx, admin, "missing")
	assert.ErrorIs(t, err, ledger.ErrShiftNotFound)
}

// =============================================================================
// CLOSE
// =============================================================================

func TestClose_SummaryAndCuadre(t *testing.T) {
	// GIVEN: $20 paid job, $15 pending job, $5 expense
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	c, err := e.clientes.Create(e.ctx, admin, cliente.Input{Name: "Ana"})
	require.NoError(t, err)

	_, err = e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Auto", Price: dec(20)})
	require.NoError(t, err)
	_, err = e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Auto", Price: dec(15), ClientID: c.ID, Pending: true})
	require.NoError(t, err)
	_, err = e.jornadas.RecordExpense(e.ctx, admin, jornada.ExpenseInput{Concepto: "Jabón", Monto: dec(5)})
	require.NoError(t, err)

	// WHEN: Closing with $14.46 counted
	e.clock.advance(10 * time.Hour)
	counted := dec(14.46)
	result, err := e.jornadas.Close(e.ctx, admin, shift.ID, &counted)

	// THEN: Resumen, cuadre and a pending warning
	require.NoError(t, err)
	closed := result.Shift
	assert.False(t, closed.Activa)
	assert.True(t, closed.Cerrada)
	require.NotNil(t, closed.Cierre)

	sum := closed.Resumen
	require.NotNil(t, sum)
	assert.Equal(t, 2, sum.Lavados)
	assert.Equal(t, 1, sum.Pendientes)
	assert.True(t, sum.Ingresos.Equal(dec(20)))
	assert.True(t, sum.Gastos.Equal(dec(5)))
	assert.True(t, sum.BalanceTeorico.Equal(dec(15)))

	cu := closed.Cuadre
	require.NotNil(t, cu)
	assert.True(t, cu.HizoCuadre)
	assert.True(t, cu.EfectivoEsperado.Equal(dec(20)))
	assert.Equal(t, "-5.54", cu.Diferencia.StringFixed(2))

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "1 lavado(s)")

	// AND: No active shift remains
	active, err := e.jornadas.Active(e.ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestClose_RecomputesAfterReopen(t *testing.T) {
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	_, err = e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Auto", Price: dec(10)})
	require.NoError(t, err)

	first, err := e.jornadas.Close(e.ctx, admin, shift.ID, nil)
	require.NoError(t, err)
	assert.False(t, first.Shift.Cuadre.HizoCuadre)
	assert.True(t, first.Shift.Cuadre.Diferencia.IsZero())
	assert.True(t, first.Shift.Resumen.Ingresos.Equal(dec(10)))

	_, err = e.jornadas.Reopen(e.ctx, admin, shift.ID)
	require.NoError(t, err)
	_, err = e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Moto", Price: dec(5)})
	require.NoError(t, err)

	second, err := e.jornadas.Close(e.ctx, admin, shift.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Shift.Resumen.Lavados)
	assert.True(t, second.Shift.Resumen.Ingresos.Equal(dec(15)))
}

func TestClose_TwiceWithoutChangesIsIdentical(t *testing.T) {
	// GIVEN: A shift with a paid job, a pending job and an expense
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	_, err = e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Auto", Price: dec(10)})
	require.NoError(t, err)
	c, err := e.clientes.Create(e.ctx, admin, cliente.Input{Name: "Ana"})
	require.NoError(t, err)
	_, err = e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Pickup", Price: dec(15), ClientID: c.ID, Pending: true})
	require.NoError(t, err)
	_, err = e.jornadas.RecordExpense(e.ctx, admin, jornada.ExpenseInput{Concepto: "Jabón", Monto: dec(3)})
	require.NoError(t, err)

	// WHEN: Closing twice with nothing recorded in between
	first, err := e.jornadas.Close(e.ctx, admin, shift.ID, nil)
	require.NoError(t, err)
	e.clock.advance(time.Hour)
	second, err := e.jornadas.Close(e.ctx, admin, shift.ID, nil)
	require.NoError(t, err)

	// THEN: The resumen is the same both times
	a, b := first.Shift.Resumen, second.Shift.Resumen
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.Lavados, b.Lavados)
	assert.Equal(t, a.Pendientes, b.Pendientes)
	assert.True(t, a.Ingresos.Equal(b.Ingresos))
	assert.True(t, a.Gastos.Equal(b.Gastos))
	assert.True(t, a.BalanceTeorico.Equal(b.BalanceTeorico))
	assert.Equal(t, 2, b.Lavados)
	assert.Equal(t, 1, b.Pendientes)
	assert.True(t, b.BalanceTeorico.Equal(dec(7)))
}

func TestClose_SubCentCountKeepsExactDifference(t *testing.T) {
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	_, err = e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Auto", Price: dec(10)})
	require.NoError(t, err)

	counted := decimal.RequireFromString("10.005")
	result, err := e.jornadas.Close(e.ctx, admin, shift.ID, &counted)
	require.NoError(t, err)

	c := result.Shift.Cuadre
	require.NotNil(t, c)
	assert.True(t, c.Diferencia.Equal(c.EfectivoReal.Sub(c.EfectivoEsperado)))
	assert.Equal(t, "0.005", c.Diferencia.String())
}

func TestClose_NegativeCountRejected(t *testing.T) {
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)

	counted := dec(-1)
	_, err = e.jornadas.Close(e.ctx, admin, shift.ID, &counted)

	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestClose_UsesShiftDateNotCloseDate(t *testing.T) {
	// GIVEN: A job on Jan 1 and a shift closed the next morning
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	_, err = e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Auto", Price: dec(12)})
	require.NoError(t, err)

	e.clock.advance(26 * time.Hour)
	result, err := e.jornadas.Close(e.ctx, admin, shift.ID, nil)

	// THEN: The Jan 1 job is counted
	require.NoError(t, err)
	assert.Equal(t, 1, result.Shift.Resumen.Lavados)
	assert.True(t, result.Shift.Resumen.Ingresos.Equal(dec(12)))
}

func TestPreview_DoesNotWrite(t *testing.T) {
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	_, err = e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Auto", Price: dec(7)})
	require.NoError(t, err)

	sum, err := e.jornadas.Preview(e.ctx, admin, shift.ID)
	require.NoError(t, err)
	assert.True(t, sum.Ingresos.Equal(dec(7)))

	stored, err := e.jornadas.Get(e.ctx, shift.ID)
	require.NoError(t, err)
	assert.True(t, stored.Activa)
	assert.Nil(t, stored.Resumen)
}

func TestCloseStale(t *testing.T) {
	// GIVEN: Yesterday's shift was never closed
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	e.clock.advance(24 * time.Hour)

	// WHEN: Closing stale shifts
	n, err := e.jornadas.CloseStale(e.ctx)

	// THEN: It is closed by the system without cuadre
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stored, err := e.jornadas.Get(e.ctx, shift.ID)
	require.NoError(t, err)
	assert.False(t, stored.Activa)
	assert.Equal(t, ledger.SystemActor.Name, stored.ClosedBy)
	assert.False(t, stored.Cuadre.HizoCuadre)

	// AND: A second run finds nothing, and today can be opened
	n, err = e.jornadas.CloseStale(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestRecordExpense(t *testing.T) {
	e := newEnv(jan1(8))

	_, err := e.jornadas.RecordExpense(e.ctx, admin, jornada.ExpenseInput{Concepto: " ", Monto: dec(5)})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = e.jornadas.RecordExpense(e.ctx, admin, jornada.ExpenseInput{Concepto: "Agua", Monto: dec(0)})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = e.jornadas.RecordExpense(e.ctx, gestor, jornada.ExpenseInput{Concepto: "Agua", Monto: dec(3)})
	assert.ErrorIs(t, err, ledger.ErrForbidden)

	g, err := e.jornadas.RecordExpense(e.ctx, admin, jornada.ExpenseInput{Concepto: "Agua", Monto: dec(3)})
	require.NoError(t, err)
	assert.Equal(t, "Admin", g.ReportedBy)

	list, err := e.jornadas.ListExpenses(e.ctx, admin, ledger.PeriodDay)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

// =============================================================================
// END TO END
// =============================================================================

func TestFullDay(t *testing.T) {
	// GIVEN: Shift opened on 2024-01-01
	e := newEnv(jan1(8))
	shift, err := e.jornadas.Open(e.ctx, admin)
	require.NoError(t, err)
	c, err := e.clientes.Create(e.ctx, admin, cliente.Input{Name: "Carlos"})
	require.NoError(t, err)

	// WHEN: A $20 pending job for the client...
	e.clock.advance(time.Hour)
	job, err := e.lavados.Create(e.ctx, admin, lavado.Input{VehicleType: "Pickup", Price: dec(20), ClientID: c.ID, Pending: true})
	require.NoError(t, err)

	debt, err := e.clientes.Debt(e.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, debt.Total.Equal(dec(20)))

	// ...is paid off by the client later that day
	e.clock.advance(2 * time.Hour)
	_, err = e.pagos.Register(e.ctx, admin, pago.RegisterInput{ClientID: c.ID, Amount: dec(20)})
	require.NoError(t, err)

	// THEN: The job is paid and the close reflects one job, $20, nothing pending
	stored, err := e.store.GetWashJob(e.ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, stored.Pagado)
	assert.True(t, stored.Locked)

	e.clock.advance(8 * time.Hour)
	result, err := e.jornadas.Close(e.ctx, admin, shift.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Shift.Resumen.Lavados)
	assert.Equal(t, 0, result.Shift.Resumen.Pendientes)
	assert.True(t, result.Shift.Resumen.Ingresos.Equal(dec(20)))
	assert.Empty(t, result.Warnings)

	debt, err = e.clientes.Debt(e.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, debt.Total.IsZero())
}
