/*
handlers.go - HTTP API handlers for the car-wash ledger

PURPOSE:
  Exposes the shift, wash-job, client, payment and report services via
  REST. Handlers parse the request, take the actor from the session,
  call one service method and serialize the result.

ENDPOINTS:
  Auth:
    POST   /api/auth/login               PIN login, returns a JWT
    GET    /api/auth/users               Active users for the login screen
    GET    /api/auth/me                  Current session

  Shifts (jornadas):
    GET    /api/jornadas/today           Today's shift in any state
    GET    /api/jornadas/active          Today's active shift or null
    POST   /api/jornadas                 Open today's shift
    POST   /api/jornadas/{id}/reopen     Reopen today's closed shift
    POST   /api/jornadas/{id}/close      Close with optional efectivoReal
    GET    /api/jornadas/{id}/preview    Resumen a close would write

  Wash jobs (lavados), clients, payments, expenses, reports:
    See server.go for the full route table.

ERROR HANDLING:
  Service errors map to HTTP status through the ledger error helpers:
  - 400: Validation errors, pending job without client
  - 401: Bad credentials or missing token
  - 403: Role may not perform the operation
  - 404: Unknown client, job, shift or user
  - 409: Shift state conflicts, locked jobs, payment over debt,
         deleting something with outstanding debt
  - 500: Anything else (logged, details hidden)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/cliente"
	"github.com/warp/lavadero/jornada"
	"github.com/warp/lavadero/lavado"
	"github.com/warp/lavadero/ledger"
	"github.com/warp/lavadero/pago"
	"github.com/warp/lavadero/reporte"
	"github.com/warp/lavadero/store/sqlite"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Cal   *ledger.Calendar
	Auth  *Auth

	Jornadas *jornada.Service
	Lavados  *lavado.Service
	Clientes *cliente.Service
	Pagos    *pago.Service
	Reportes *reporte.Service

	// DevMode enables demo scenarios.
	DevMode bool

	// Track currently loaded scenario
	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler wires every service on top of one store and calendar.
func NewHandler(store *sqlite.Store, cal *ledger.Calendar, auth *Auth) *Handler {
	return &Handler{
		Store:    store,
		Cal:      cal,
		Auth:     auth,
		Jornadas: jornada.NewService(store, cal),
		Lavados:  lavado.NewService(store, cal),
		Clientes: cliente.NewService(store, cal),
		Pagos:    pago.NewService(store, cal),
		Reportes: reporte.NewService(store, cal),
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login exchanges a user id and PIN for a token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !bindAndValidate(w, r, &req) {
		return
	}

	token, exp, user, err := h.Auth.Login(r.Context(), ledger.UserID(req.UserID), req.Pin)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	log.Info().Str("user_id", string(user.ID)).Str("role", string(user.Role)).Msg("login")
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      UserDTO{ID: user.ID, Name: user.Name, Role: user.Role},
	})
}

// ListUsers returns the active users to pick from on the login screen.
// GET /api/auth/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = UserDTO{ID: u.ID, Name: u.Name, Role: u.Role}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Me returns the session actor.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	writeJSON(w, http.StatusOK, UserDTO{ID: actor.ID, Name: actor.Name, Role: actor.Role})
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// GetTodayShift returns today's shift whatever its state.
// GET /api/jornadas/today
func (h *Handler) GetTodayShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.Jornadas.Today(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ShiftStatusResponse{
		Jornada: shift,
		Activa:  shift != nil && shift.IsActiveOn(h.Cal.Today()),
	})
}

// GetActiveShift returns today's active shift, or a null jornada.
// GET /api/jornadas/active
func (h *Handler) GetActiveShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.Jornadas.Active(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ShiftStatusResponse{Jornada: shift, Activa: shift != nil})
}

// OpenShift opens today's shift.
// POST /api/jornadas
func (h *Handler) OpenShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.Jornadas.Open(r.Context(), mustActor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

// ReopenShift reopens today's closed shift.
// POST /api/jornadas/{id}/reopen
func (h *Handler) ReopenShift(w http.ResponseWriter, r *http.Request) {
	id := ledger.ShiftID(chi.URLParam(r, "id"))
	shift, err := h.Jornadas.Reopen(r.Context(), mustActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// CloseShift closes a shift. The body is optional.
// POST /api/jornadas/{id}/close
func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	var req CloseShiftRequest
	if !bindOptional(w, r, &req) {
		return
	}

	id := ledger.ShiftID(chi.URLParam(r, "id"))
	result, err := h.Jornadas.Close(r.Context(), mustActor(r), id, req.EfectivoReal)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CloseShiftResponse{Jornada: result.Shift, Warnings: nonNil(result.Warnings)})
}

// PreviewShift returns the resumen a close would write now.
// GET /api/jornadas/{id}/preview
func (h *Handler) PreviewShift(w http.ResponseWriter, r *http.Request) {
	id := ledger.ShiftID(chi.URLParam(r, "id"))
	summary, err := h.Jornadas.Preview(r.Context(), mustActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// WASH JOB HANDLERS
// =============================================================================

// ListWashJobs returns the jobs of the current day, week or month.
// GET /api/lavados?periodo=day|week|month
func (h *Handler) ListWashJobs(w http.ResponseWriter, r *http.Request) {
	period, err := ledger.ParsePeriod(r.URL.Query().Get("periodo"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	jobs, err := h.Lavados.List(r.Context(), period)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWashJobDTOs(jobs))
}

// CreateWashJob records a job in today's active shift.
// POST /api/lavados
func (h *Handler) CreateWashJob(w http.ResponseWriter, r *http.Request) {
	var req WashJobRequest
	if !bindAndValidate(w, r, &req) {
		return
	}
	job, err := h.Lavados.Create(r.Context(), mustActor(r), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWashJobDTO(*job))
}

// UpdateWashJob edits a job.
// PUT /api/lavados/{id}
func (h *Handler) UpdateWashJob(w http.ResponseWriter, r *http.Request) {
	var req WashJobRequest
	if !bindAndValidate(w, r, &req) {
		return
	}
	id := ledger.WashJobID(chi.URLParam(r, "id"))
	job, err := h.Lavados.Edit(r.Context(), mustActor(r), id, req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWashJobDTO(*job))
}

// DeleteWashJob removes a settled or free job and its payments.
// DELETE /api/lavados/{id}
func (h *Handler) DeleteWashJob(w http.ResponseWriter, r *http.Request) {
	id := ledger.WashJobID(chi.URLParam(r, "id"))
	if err := h.Lavados.Delete(r.Context(), mustActor(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns clients with their debt, optionally filtered by name.
// GET /api/clientes?q=
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Clientes.List(r.Context(), mustActor(r), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = ClientDTO{Client: c.Client, Deuda: c.Debt.Total}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient adds a client.
// POST /api/clientes
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !bindAndValidate(w, r, &req) {
		return
	}
	c, err := h.Clientes.Create(r.Context(), mustActor(r), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ClientDTO{Client: *c, Deuda: decimal.Zero})
}

// GetClient returns one client with its debt.
// GET /api/clientes/{id}
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))
	c, err := h.Clientes.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	debt, err := h.Clientes.Debt(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClientDTO{Client: *c, Deuda: debt.Total})
}

// UpdateClient edits a client.
// PUT /api/clientes/{id}
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !bindAndValidate(w, r, &req) {
		return
	}
	id := ledger.ClientID(chi.URLParam(r, "id"))
	c, err := h.Clientes.Update(r.Context(), mustActor(r), id, req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteClient removes a client that owes nothing.
// DELETE /api/clientes/{id}
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))
	if err := h.Clientes.Delete(r.Context(), mustActor(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetClientDebt returns the debt breakdown.
// GET /api/clientes/{id}/deuda
func (h *Handler) GetClientDebt(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))
	debt, err := h.Clientes.Debt(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTO(id, debt))
}

// GetClientStatement returns unpaid jobs, manual debts and payments.
// GET /api/clientes/{id}/estado
func (h *Handler) GetClientStatement(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))
	stmt, err := h.Clientes.Statement(r.Context(), mustActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(stmt))
}

// ListManualDebts returns a client's manual debts, oldest first.
// GET /api/clientes/{id}/deudas
func (h *Handler) ListManualDebts(w http.ResponseWriter, r *http.Request) {
	id := ledger.ClientID(chi.URLParam(r, "id"))
	debts, err := h.Clientes.ListManualDebts(r.Context(), mustActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(debts))
}

// CreateManualDebt adds a manual debt to a client.
// POST /api/clientes/{id}/deudas
func (h *Handler) CreateManualDebt(w http.ResponseWriter, r *http.Request) {
	var req ManualDebtRequest
	if !bindAndValidate(w, r, &req) {
		return
	}
	id := ledger.ClientID(chi.URLParam(r, "id"))
	d, err := h.Clientes.AddManualDebt(r.Context(), mustActor(r), id, cliente.ManualDebtInput{Note: req.Note, Amount: req.Amount})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns payments newest first.
// GET /api/pagos?clientId=
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	clientID := ledger.ClientID(r.URL.Query().Get("clientId"))
	payments, err := h.Pagos.List(r.Context(), mustActor(r), clientID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(payments))
}

// RegisterPayment applies a client payment to its debts, oldest first.
// POST /api/pagos
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !bindAndValidate(w, r, &req) {
		return
	}
	receipt, err := h.Pagos.Register(r.Context(), mustActor(r), pago.RegisterInput{
		ClientID: ledger.ClientID(req.ClientID),
		Amount:   req.Amount,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// ListExpenses returns the expenses of the current period.
// GET /api/gastos?periodo=
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	period, err := ledger.ParsePeriod(r.URL.Query().Get("periodo"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	expenses, err := h.Jornadas.ListExpenses(r.Context(), mustActor(r), period)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(expenses))
}

// CreateExpense records an expense dated now.
// POST /api/gastos
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !bindAndValidate(w, r, &req) {
		return
	}
	e, err := h.Jornadas.RecordExpense(r.Context(), mustActor(r), jornada.ExpenseInput{
		Concepto:    req.Concepto,
		Monto:       req.Monto,
		Observacion: req.Observacion,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetDashboard returns today's figures; income only for admins.
// GET /api/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Reportes.Dashboard(r.Context(), mustActor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

// GetHistory returns shifts, jobs, payments and expenses of a period.
// GET /api/historial?periodo=day|week|month&fecha=YYYY-MM-DD
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := ledger.ParsePeriod(q.Get("periodo"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var date ledger.DateKey
	if raw := q.Get("fecha"); raw != "" {
		if date, err = ledger.ParseDateKey(raw); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	hist, err := h.Reportes.History(r.Context(), mustActor(r), period, date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTO(hist))
}

// =============================================================================
// HELPERS
// =============================================================================

// mustActor returns the session actor. Routes using it sit behind
// Auth.Middleware, so a missing actor is a wiring bug.
func mustActor(r *http.Request) ledger.Actor {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		panic("api: route is missing auth middleware")
	}
	return actor
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a service error to its HTTP status.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  err.Error(),
			Fields: map[string]string{verr.Field: verr.Message},
		})
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ledger.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
	case ledger.IsForbidden(err):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
