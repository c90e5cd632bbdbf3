/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures of the HTTP contract. Documents that already carry
  their persisted field names (ledger.Client, ledger.Payment, ...) are
  embedded as-is; DTOs only add derived fields or shape service results.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients (with validate tags)
  - *Response: Complex response wrappers

MONEY:
  Amounts are decimal.Decimal and serialize as JSON numbers (see
  handlers.go init). Requests accept numbers or numeric strings.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: bindAndValidate
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/cliente"
	"github.com/warp/lavadero/lavado"
	"github.com/warp/lavadero/ledger"
	"github.com/warp/lavadero/pago"
	"github.com/warp/lavadero/reporte"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	UserID string `json:"userId" validate:"required"`
	Pin    string `json:"pin" validate:"required,numeric,min=4,max=8"`
}

type UserDTO struct {
	ID   ledger.UserID `json:"id"`
	Name string        `json:"name"`
	Role ledger.Role   `json:"role"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserDTO   `json:"user"`
}

// =============================================================================
// WASH JOBS
// =============================================================================

type WashJobRequest struct {
	VehicleType string           `json:"vehicleType" validate:"required"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	ClientID    string           `json:"clientId"`
	// Pendiente leaves the job unpaid as client debt.
	Pendiente bool `json:"pendiente"`
}

func (req WashJobRequest) input() lavado.Input {
	return lavado.Input{
		VehicleType: req.VehicleType,
		Description: req.Description,
		Price:       *req.Price,
		ClientID:    ledger.ClientID(req.ClientID),
		Pending:     req.Pendiente,
	}
}

// WashJobDTO adds the derived status and pending balance.
type WashJobDTO struct {
	ledger.WashJob
	Status  ledger.JobStatus `json:"status"`
	Pending decimal.Decimal  `json:"pendiente"`
}

func toWashJobDTO(j ledger.WashJob) WashJobDTO {
	return WashJobDTO{WashJob: j, Status: j.Status(), Pending: j.Pending()}
}

func toWashJobDTOs(jobs []ledger.WashJob) []WashJobDTO {
	out := make([]WashJobDTO, len(jobs))
	for i, j := range jobs {
		out[i] = toWashJobDTO(j)
	}
	return out
}

// =============================================================================
// CLIENTS
// =============================================================================

type ClientRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"max=40"`
	Note  string `json:"note" validate:"max=500"`
}

func (req ClientRequest) input() cliente.Input {
	return cliente.Input{Name: req.Name, Phone: req.Phone, Note: req.Note}
}

type ClientDTO struct {
	ledger.Client
	Deuda decimal.Decimal `json:"deuda"`
}

type DebtDTO struct {
	ClientID       ledger.ClientID `json:"clientId"`
	Lavados        decimal.Decimal `json:"lavados"`
	DeudasManuales decimal.Decimal `json:"deudasManuales"`
	Total          decimal.Decimal `json:"total"`
}

func toDebtDTO(id ledger.ClientID, d ledger.Debt) DebtDTO {
	return DebtDTO{ClientID: id, Lavados: d.WashJobs, DeudasManuales: d.ManualDebts, Total: d.Total}
}

type ManualDebtRequest struct {
	Note   string          `json:"note" validate:"max=500"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

type StatementDTO struct {
	Cliente        ledger.Client       `json:"cliente"`
	Lavados        []WashJobDTO        `json:"lavados"`
	DeudasManuales []ledger.ManualDebt `json:"deudasManuales"`
	Pagos          []ledger.Payment    `json:"pagos"`
	Deuda          DebtDTO             `json:"deuda"`
}

func toStatementDTO(s *cliente.Statement) StatementDTO {
	return StatementDTO{
		Cliente:        s.Client,
		Lavados:        toWashJobDTOs(s.UnpaidJobs),
		DeudasManuales: nonNil(s.ManualDebts),
		Pagos:          nonNil(s.Payments),
		Deuda:          toDebtDTO(s.Client.ID, s.Debt),
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentRequest struct {
	ClientID string          `json:"clientId" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
}

type AllocationDTO struct {
	Tipo        ledger.ObligationKind `json:"tipo"`
	ID          string                `json:"id"`
	Aplicado    decimal.Decimal       `json:"aplicado"`
	NuevoPagado decimal.Decimal       `json:"nuevoPagado"`
	Saldado     bool                  `json:"saldado"`
}

type ReceiptResponse struct {
	Pago          ledger.Payment  `json:"pago"`
	Aplicaciones  []AllocationDTO `json:"aplicaciones"`
	DeudaAnterior decimal.Decimal `json:"deudaAnterior"`
	DeudaActual   decimal.Decimal `json:"deudaActual"`
}

func toReceiptResponse(r *pago.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		Pago:          r.Payment,
		Aplicaciones:  make([]AllocationDTO, len(r.Allocations)),
		DeudaAnterior: r.DebtBefore,
		DeudaActual:   r.DebtAfter,
	}
	for i, a := range r.Allocations {
		resp.Aplicaciones[i] = AllocationDTO{
			Tipo:        a.Obligation.Kind,
			ID:          a.Obligation.ID,
			Aplicado:    a.Applied,
			NuevoPagado: a.NewPaid,
			Saldado:     a.Settled,
		}
	}
	return resp
}

// =============================================================================
// SHIFTS AND EXPENSES
// =============================================================================

type CloseShiftRequest struct {
	// EfectivoReal is the counted cash; omitted means no cuadre.
	EfectivoReal *decimal.Decimal `json:"efectivoReal"`
}

type CloseShiftResponse struct {
	Jornada  ledger.Shift `json:"jornada"`
	Warnings []string     `json:"warnings"`
}

// ShiftStatusResponse answers "is there a shift today".
type ShiftStatusResponse struct {
	Jornada *ledger.Shift `json:"jornada"`
	Activa  bool          `json:"activa"`
}

type ExpenseRequest struct {
	Concepto    string          `json:"concepto" validate:"required,max=200"`
	Monto       decimal.Decimal `json:"monto" validate:"gt=0"`
	Observacion string          `json:"observacion" validate:"max=500"`
}

// =============================================================================
// REPORTS
// =============================================================================

type DashboardDTO struct {
	Fecha            ledger.DateKey      `json:"fecha"`
	Jornada          *ledger.Shift       `json:"jornada"`
	JornadaActiva    bool                `json:"jornadaActiva"`
	Lavados          int                 `json:"lavados"`
	Pendientes       int                 `json:"pendientes"`
	ClientesConDeuda int                 `json:"clientesConDeuda"`
	IngresosHoy      *decimal.Decimal    `json:"ingresosHoy,omitempty"`
	Ingresos7d       []reporte.DayIncome `json:"ingresos7d,omitempty"`
}

func toDashboardDTO(d *reporte.Dashboard) DashboardDTO {
	return DashboardDTO{
		Fecha:            d.Date,
		Jornada:          d.Shift,
		JornadaActiva:    d.ShiftActive,
		Lavados:          d.Lavados,
		Pendientes:       d.Pendientes,
		ClientesConDeuda: d.ClientesConDeuda,
		IngresosHoy:      d.IngresosHoy,
		Ingresos7d:       d.Ingresos7d,
	}
}

type HistoryDTO struct {
	Periodo  ledger.Period    `json:"periodo"`
	Desde    time.Time        `json:"desde"`
	Hasta    time.Time        `json:"hasta"`
	Jornadas []ledger.Shift   `json:"jornadas"`
	Lavados  []WashJobDTO     `json:"lavados"`
	Pagos    []ledger.Payment `json:"pagos"`
	Gastos   []ledger.Expense `json:"gastos"`
	Totales  reporte.Totals   `json:"totales"`
}

func toHistoryDTO(h *reporte.History) HistoryDTO {
	return HistoryDTO{
		Periodo:  h.Period,
		Desde:    h.Range.From,
		Hasta:    h.Range.To,
		Jornadas: nonNil(h.Shifts),
		Lavados:  toWashJobDTOs(h.Lavados),
		Pagos:    nonNil(h.Pagos),
		Gastos:   nonNil(h.Gastos),
		Totales:  h.Totals,
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

// nonNil keeps empty lists as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
