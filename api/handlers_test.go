/*
handlers_test.go - HTTP tests for the API handlers

Tests run the real router against an in-memory SQLite store:
- Login and token checks
- Role gates
- A full day: open, pending job, payment, close
- Error status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lavadero/ledger"
	"github.com/warp/lavadero/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

var (
	superAdmin = ledger.Actor{ID: "u-root", Name: "Dueño", Role: ledger.RoleSuperAdmin}
	admin      = ledger.Actor{ID: "u-admin", Name: "Admin", Role: ledger.RoleAdmin}
	gestor     = ledger.Actor{ID: "u-gestor", Name: "Gestor", Role: ledger.RoleGestor}
)

type testServer struct {
	h      *Handler
	router http.Handler
	tokens map[ledger.Role]string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	auth := NewAuth(store, "test-secret", time.Hour)
	h := NewHandler(store, ledger.FixedCalendar(testNow), auth)
	h.DevMode = true

	ts := &testServer{h: h, router: NewRouter(h, RouterOptions{}), tokens: map[ledger.Role]string{}}
	for _, a := range []ledger.Actor{superAdmin, admin, gestor} {
		token, _, err := auth.Issue(a)
		require.NoError(t, err)
		ts.tokens[a.Role] = token
	}
	return ts
}

// do sends a request as role; an empty role sends no token.
func (ts *testServer) do(t *testing.T, role ledger.Role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[role])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin(t *testing.T) {
	// GIVEN: A user with PIN 1234
	ts := setupTestServer(t)
	hash, err := HashPIN("1234")
	require.NoError(t, err)
	require.NoError(t, ts.h.Store.SaveUser(context.Background(), ledger.User{
		ID: "u-ana", Name: "Ana", Role: ledger.RoleGestor, PinHash: hash, Active: true, CreatedAt: testNow,
	}))

	// WHEN: Logging in with the wrong PIN
	rec := ts.do(t, "", http.MethodPost, "/api/auth/login", LoginRequest{UserID: "u-ana", Pin: "9999"})

	// THEN: 401
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// WHEN: Logging in with the right PIN
	rec = ts.do(t, "", http.MethodPost, "/api/auth/login", LoginRequest{UserID: "u-ana", Pin: "1234"})

	// THEN: A token that works on protected routes
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[LoginResponse](t, rec)
	assert.Equal(t, ledger.RoleGestor, resp.User.Role)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	me := httptest.NewRecorder()
	ts.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, ledger.UserID("u-ana"), decode[UserDTO](t, me).ID)

	users := decode[[]UserDTO](t, ts.do(t, "", http.MethodGet, "/api/auth/users", nil))
	require.Len(t, users, 1)
	assert.Equal(t, "Ana", users[0].Name)
}

func TestLogin_ValidationError(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, "", http.MethodPost, "/api/auth/login", map[string]string{"userId": "u-ana", "pin": "12"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "min", resp.Fields["pin"])
}

func TestProtectedRoutes(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, "", http.MethodGet, "/api/dashboard", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, ledger.RoleGestor, http.MethodPost, "/api/jornadas", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, ledger.RoleGestor, http.MethodGet, "/api/clientes", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, ledger.RoleAdmin, http.MethodGet, "/api/scenarios", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, ledger.RoleGestor, http.MethodGet, "/api/jornadas/active", nil).Code)
}

// =============================================================================
// FULL DAY
// =============================================================================

func TestFullDayOverHTTP(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: No shift yet, so jobs are rejected
	rec := ts.do(t, ledger.RoleGestor, http.MethodPost, "/api/lavados", map[string]any{"vehicleType": "Auto", "price": 20})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// WHEN: Admin opens the shift and creates a client
	rec = ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/jornadas", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	shift := decode[ledger.Shift](t, rec)
	assert.True(t, shift.Activa)

	rec = ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/clientes", ClientRequest{Name: "Carlos"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	client := decode[ClientDTO](t, rec)

	// AND: A pending job without client is a bad request, with client it is debt
	rec = ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/lavados", map[string]any{"vehicleType": "Pickup", "price": 20, "pendiente": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/lavados", map[string]any{
		"vehicleType": "Pickup", "price": 20, "clientId": client.ID, "pendiente": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	job := decode[WashJobDTO](t, rec)
	assert.Equal(t, ledger.StatusPending, job.Status)
	assert.True(t, job.Pending.Equal(decimal.NewFromInt(20)))

	debt := decode[DebtDTO](t, ts.do(t, ledger.RoleAdmin, http.MethodGet, "/api/clientes/"+string(client.ID)+"/deuda", nil))
	assert.True(t, debt.Total.Equal(decimal.NewFromInt(20)))

	// AND: Paying more than owed conflicts, paying the debt settles it
	rec = ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/pagos", map[string]any{"clientId": client.ID, "amount": 25})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/pagos", map[string]any{"clientId": client.ID, "amount": "20.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[ReceiptResponse](t, rec)
	assert.True(t, receipt.DeudaActual.IsZero())
	require.Len(t, receipt.Aplicaciones, 1)
	assert.True(t, receipt.Aplicaciones[0].Saldado)

	// AND: Close with the counted cash
	rec = ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/jornadas/"+string(shift.ID)+"/close", map[string]any{"efectivoReal": 20})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[CloseShiftResponse](t, rec)

	// THEN: One job, $20 income, nothing pending, exact cuadre
	assert.False(t, closed.Jornada.Activa)
	require.NotNil(t, closed.Jornada.Resumen)
	assert.Equal(t, 1, closed.Jornada.Resumen.Lavados)
	assert.Equal(t, 0, closed.Jornada.Resumen.Pendientes)
	assert.True(t, closed.Jornada.Resumen.Ingresos.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, closed.Jornada.Cuadre)
	assert.True(t, closed.Jornada.Cuadre.HizoCuadre)
	assert.True(t, closed.Jornada.Cuadre.Diferencia.IsZero())
	assert.Empty(t, closed.Warnings)

	// AND: The shift can't be opened again, only reopened
	assert.Equal(t, http.StatusConflict, ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/jornadas", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/jornadas/"+string(shift.ID)+"/reopen", nil).Code)
}

func TestCloseShift_EmptyBodyMeansNoCuadre(t *testing.T) {
	ts := setupTestServer(t)
	shift := decode[ledger.Shift](t, ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/jornadas", nil))

	rec := ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/jornadas/"+string(shift.ID)+"/close", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[CloseShiftResponse](t, rec)
	assert.False(t, closed.Jornada.Cuadre.HizoCuadre)
}

func TestDeleteWashJob_OutstandingDebtConflicts(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/jornadas", nil).Code)
	client := decode[ClientDTO](t, ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/clientes", ClientRequest{Name: "Ana"}))
	job := decode[WashJobDTO](t, ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/lavados", map[string]any{
		"vehicleType": "Auto", "price": 15, "clientId": client.ID, "pendiente": true,
	}))

	assert.Equal(t, http.StatusConflict, ts.do(t, ledger.RoleAdmin, http.MethodDelete, "/api/lavados/"+string(job.ID), nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, ledger.RoleGestor, http.MethodDelete, "/api/lavados/"+string(job.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, ledger.RoleAdmin, http.MethodDelete, "/api/lavados/missing", nil).Code)
}

func TestPayment_ValidationError(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/pagos", map[string]any{"clientId": "c1", "amount": 0})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "gt", decode[ErrorResponse](t, rec).Fields["amount"])
}

// =============================================================================
// REPORTS
// =============================================================================

func TestDashboard_IncomeOnlyForAdmins(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, ledger.RoleAdmin, http.MethodPost, "/api/jornadas", nil).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, ledger.RoleGestor, http.MethodPost, "/api/lavados", map[string]any{"vehicleType": "Auto", "price": 20}).Code)

	asGestor := decode[map[string]any](t, ts.do(t, ledger.RoleGestor, http.MethodGet, "/api/dashboard", nil))
	asAdmin := decode[map[string]any](t, ts.do(t, ledger.RoleAdmin, http.MethodGet, "/api/dashboard", nil))

	assert.Equal(t, float64(1), asGestor["lavados"])
	assert.NotContains(t, asGestor, "ingresosHoy")
	assert.Equal(t, float64(20), asAdmin["ingresosHoy"])
}

func TestHistory(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusForbidden, ts.do(t, ledger.RoleGestor, http.MethodGet, "/api/historial", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, ledger.RoleAdmin, http.MethodGet, "/api/historial?periodo=year", nil).Code)

	rec := ts.do(t, ledger.RoleAdmin, http.MethodGet, "/api/historial?periodo=week&fecha=2024-01-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hist := decode[HistoryDTO](t, rec)
	assert.Equal(t, ledger.PeriodWeek, hist.Periodo)
	assert.True(t, hist.Desde.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.NotNil(t, hist.Jornadas)
}

// =============================================================================
// CORS
// =============================================================================

func TestCORS_CredentialsOnlyForListedOrigins(t *testing.T) {
	ts := setupTestServer(t)
	get := func(router http.Handler, origin string) http.Header {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Header()
	}

	t.Run("default origins", func(t *testing.T) {
		h := get(ts.router, "http://localhost:5173")
		assert.Equal(t, "http://localhost:5173", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", h.Get("Access-Control-Allow-Credentials"))

		h = get(ts.router, "http://evil.test")
		assert.Empty(t, h.Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard drops credentials", func(t *testing.T) {
		router := NewRouter(ts.h, RouterOptions{AllowedOrigins: []string{"*"}})
		h := get(router, "http://evil.test")
		assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
		assert.Empty(t, h.Get("Access-Control-Allow-Credentials"))
	})
}
