/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Each scenario must load through the real services and leave the
	ledger in the state its description promises.
*/
package api

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lavadero/ledger"
)

func TestScenario_FullDay(t *testing.T) {
	// GIVEN: The full day scenario
	ts := setupTestServer(t)
	ctx := context.Background()

	// WHEN: Loading it
	require.NoError(t, ts.h.loadFullDayScenario(ctx, superAdmin))

	// THEN: Today's shift is open with six jobs and the expected income
	active, err := ts.h.Jornadas.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)

	summary, err := ts.h.Jornadas.Preview(ctx, superAdmin, active.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Lavados)
	// 20 + 10 paid on the spot, 20 + 18 client payments
	assert.True(t, summary.Ingresos.Equal(decimal.NewFromInt(68)), summary.Ingresos.String())
	assert.True(t, summary.Gastos.Equal(decimal.NewFromFloat(12.5)))
	assert.Equal(t, 1, summary.Pendientes)
}

func TestScenario_FIFO(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, ts.h.loadFIFOScenario(ctx, superAdmin))

	clients, err := ts.h.Clientes.List(ctx, superAdmin, "")
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "Ana López", clients[0].Name)
	assert.True(t, clients[0].Debt.Total.Equal(decimal.NewFromInt(37)))
	assert.True(t, clients[1].Debt.Total.Equal(decimal.NewFromInt(180)))

	// Two past shifts (Dec 30 and 31) are closed, today's is active
	hist, err := ts.h.Reportes.History(ctx, superAdmin, ledger.PeriodMonth, "2023-12-31")
	require.NoError(t, err)
	assert.Len(t, hist.Shifts, 2)
	active, err := ts.h.Jornadas.Active(ctx)
	require.NoError(t, err)
	assert.NotNil(t, active)
}

func TestScenario_AbandonedShiftIsClosedByScheduler(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.h.loadAbandonedShiftScenario(ctx, superAdmin))

	scheduler := NewAutoCloseScheduler(ts.h.Jornadas)
	closed := scheduler.RunNow()

	assert.Equal(t, 1, closed)
	assert.Zero(t, scheduler.RunNow())
}

func TestScenario_LoadOverHTTP(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, ledger.RoleSuperAdmin, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "dia-completo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	current := decode[map[string]map[string]any](t, ts.do(t, ledger.RoleSuperAdmin, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "dia-completo", current["scenario"]["id"])

	// Loading again resets first, so nothing is duplicated
	rec = ts.do(t, ledger.RoleSuperAdmin, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "dia-completo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	clients := decode[[]ClientDTO](t, ts.do(t, ledger.RoleSuperAdmin, http.MethodGet, "/api/clientes", nil))
	assert.Len(t, clients, 2)

	rec = ts.do(t, ledger.RoleSuperAdmin, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_ConcurrentLoadsAndReads(t *testing.T) {
	// GIVEN: Several loads racing with reads of the current scenario
	ts := setupTestServer(t)
	ids := []string{"dia-completo", "fifo", "jornada-abandonada", "dia-completo"}

	codes := make([]int, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(2)
		go func(i int, id string) {
			defer wg.Done()
			codes[i] = ts.do(t, ledger.RoleSuperAdmin, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id}).Code
		}(i, id)
		go func() {
			defer wg.Done()
			ts.do(t, ledger.RoleSuperAdmin, http.MethodGet, "/api/scenarios/current", nil)
		}()
	}
	wg.Wait()

	// THEN: Every load succeeds and one of them is reported as current
	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	current := decode[map[string]map[string]any](t, ts.do(t, ledger.RoleSuperAdmin, http.MethodGet, "/api/scenarios/current", nil))
	assert.Contains(t, ids, current["scenario"]["id"])
}
