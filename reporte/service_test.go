package reporte_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lavadero/ledger"
	"github.com/warp/lavadero/ledger/store"
	"github.com/warp/lavadero/reporte"
)

var (
	admin  = ledger.Actor{ID: "u-admin", Name: "Admin", Role: ledger.RoleAdmin}
	gestor = ledger.Actor{ID: "u-gestor", Name: "Gestor", Role: ledger.RoleGestor}
	// Wednesday
	now = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func seed(t *testing.T) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()
	yesterday := now.Add(-24 * time.Hour)

	require.NoError(t, st.InsertShift(ctx, ledger.Shift{ID: "s-today", Date: "2024-01-10", Activa: true, Inicio: now}))
	closedAt := yesterday.Add(4 * time.Hour)
	require.NoError(t, st.InsertShift(ctx, ledger.Shift{ID: "s-yday", Date: "2024-01-09", Cerrada: true, Inicio: yesterday, Cierre: &closedAt}))

	jobs := []ledger.WashJob{
		{ID: "a", ClientID: "c1", Price: dec(20), PaidAmount: dec(20), Pagado: true, CreatedAt: now},
		{ID: "b", ClientID: "c1", Price: dec(15), CreatedAt: now},
		{ID: "c", ClientID: "c2", Price: dec(10), PaidAmount: dec(3), CreatedAt: now},
		{ID: "d", Price: dec(0), CreatedAt: now},
		{ID: "old", ClientID: "c3", Price: dec(8), CreatedAt: yesterday},
	}
	for _, j := range jobs {
		require.NoError(t, st.InsertWashJob(ctx, j))
	}
	require.NoError(t, st.InsertPayment(ctx, ledger.Payment{ID: "p1", Amount: dec(20), Origen: ledger.OriginWashJob, CreatedAt: now}))
	require.NoError(t, st.InsertPayment(ctx, ledger.Payment{ID: "p2", Amount: dec(3), Origen: ledger.OriginClient, CreatedAt: now}))
	require.NoError(t, st.InsertPayment(ctx, ledger.Payment{ID: "p3", Amount: dec(9), Origen: ledger.OriginClient, CreatedAt: yesterday}))
	require.NoError(t, st.InsertExpense(ctx, ledger.Expense{ID: "g1", Concepto: "Cera", Monto: dec(4), Fecha: now}))
	return st
}

func TestDashboard_Admin(t *testing.T) {
	svc := reporte.NewService(seed(t), ledger.FixedCalendar(now))

	d, err := svc.Dashboard(context.Background(), admin)

	require.NoError(t, err)
	assert.True(t, d.ShiftActive)
	assert.Equal(t, 4, d.Lavados)
	assert.Equal(t, 2, d.Pendientes)
	assert.Equal(t, 2, d.ClientesConDeuda)
	require.NotNil(t, d.IngresosHoy)
	assert.True(t, d.IngresosHoy.Equal(dec(23)))

	require.Len(t, d.Ingresos7d, 7)
	assert.Equal(t, ledger.DateKey("2024-01-04"), d.Ingresos7d[0].Date)
	assert.True(t, d.Ingresos7d[5].Ingresos.Equal(dec(9)))
	assert.True(t, d.Ingresos7d[6].Ingresos.Equal(dec(23)))
}

func TestDashboard_GestorHidesIncome(t *testing.T) {
	svc := reporte.NewService(seed(t), ledger.FixedCalendar(now))

	d, err := svc.Dashboard(context.Background(), gestor)

	require.NoError(t, err)
	assert.Equal(t, 4, d.Lavados)
	assert.Nil(t, d.IngresosHoy)
	assert.Empty(t, d.Ingresos7d)
}

func TestHistory_Week(t *testing.T) {
	svc := reporte.NewService(seed(t), ledger.FixedCalendar(now))

	h, err := svc.History(context.Background(), admin, ledger.PeriodWeek, "")

	require.NoError(t, err)
	assert.True(t, h.Range.From.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
	assert.Len(t, h.Lavados, 5)
	assert.Len(t, h.Pagos, 3)
	require.Len(t, h.Shifts, 1, "only closed shifts")
	assert.Equal(t, ledger.ShiftID("s-yday"), h.Shifts[0].ID)
	assert.True(t, h.Totals.Ingresos.Equal(dec(32)))
	assert.True(t, h.Totals.Gastos.Equal(dec(4)))
	assert.True(t, h.Totals.Balance.Equal(dec(28)))
	assert.Equal(t, 3, h.Totals.Pendientes)
}

func TestHistory_SpecificDayAndForbidden(t *testing.T) {
	svc := reporte.NewService(seed(t), ledger.FixedCalendar(now))
	ctx := context.Background()

	h, err := svc.History(ctx, admin, ledger.PeriodDay, "2024-01-09")
	require.NoError(t, err)
	assert.Len(t, h.Lavados, 1)
	assert.True(t, h.Totals.Ingresos.Equal(dec(9)))

	_, err = svc.History(ctx, gestor, ledger.PeriodDay, "")
	assert.ErrorIs(t, err, ledger.ErrForbidden)

	_, err = svc.History(ctx, admin, ledger.PeriodDay, "not-a-date")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}
