/*
types.go - Core documents of the car-wash ledger

PURPOSE:
  Defines the documents the reconciliation engine works with: clients,
  wash jobs (lavados), manual debts, payments (pagos), expenses (gastos)
  and shifts (jornadas). JSON tags are the persisted field names and
  must not change: existing data depends on them.

MONEY:
  Every amount is a decimal.Decimal. A zero value decimal is a missing
  amount and counts as 0 everywhere.

DERIVED STATE:
  WashJob.Pagado is always PaidAmount >= Price for priced jobs.
  A free job (price 0) is never pagado and never owes anything.
  PagoGenerado is sticky: once a payment was emitted for a job it stays true.

SEE ALSO:
  - debt.go: Outstanding balance from these documents
  - allocation.go: FIFO payment allocation
  - summary.go: Shift close summary and cuadre
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	ClientID     string
	WashJobID    string
	ManualDebtID string
	PaymentID    string
	ExpenseID    string
	ShiftID      string
	UserID       string
)

// =============================================================================
// ACTOR - Who is performing an operation
// =============================================================================

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleGestor     Role = "gestor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleAdmin || r == RoleGestor
}

// Actor is the current session user as exposed by the session provider.
type Actor struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// IsAdmin is true for admin and super_admin.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}

// SystemActor performs unattended operations such as closing stale shifts.
var SystemActor = Actor{ID: "sistema", Name: "sistema", Role: RoleSuperAdmin}

// User is a login account. The PIN is only ever stored as a bcrypt hash.
type User struct {
	ID        UserID    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	PinHash   string    `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Actor returns the session view of the user.
func (u User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

// =============================================================================
// CLIENTS AND DEBTS
// =============================================================================

type Client struct {
	ID        ClientID  `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ManualDebt is a debt entered by hand against a client. It is never
// deleted, only paid down.
type ManualDebt struct {
	ID         ManualDebtID    `json:"id"`
	ClientID   ClientID        `json:"clientId"`
	Note       string          `json:"note"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	CreatedAt  time.Time       `json:"createdAt"`
	ReportedBy string          `json:"reportedBy"`
}

// Pending is amount - paidAmount.
func (d ManualDebt) Pending() decimal.Decimal {
	return d.Amount.Sub(d.PaidAmount)
}

// Settled is true once paidAmount reaches amount.
func (d ManualDebt) Settled() bool {
	return d.PaidAmount.GreaterThanOrEqual(d.Amount)
}

// =============================================================================
// WASH JOBS
// =============================================================================

type JobStatus string

const (
	StatusFree    JobStatus = "Gratis"
	StatusPaid    JobStatus = "Pagado"
	StatusPartial JobStatus = "Parcial"
	StatusPending JobStatus = "Pendiente"
)

// WashJob is one service performed on a vehicle (a lavado).
type WashJob struct {
	ID           WashJobID       `json:"id"`
	VehicleType  string          `json:"vehicleType"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	ClientID     ClientID        `json:"clientId,omitempty"`
	ClientName   string          `json:"clientName"`
	PaidAmount   decimal.Decimal `json:"paidAmount"`
	Pagado       bool            `json:"pagado"`
	PagoGenerado bool            `json:"pagoGenerado"`
	Locked       bool            `json:"locked,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	ReportedBy   string          `json:"reportedBy"`
}

// Pending is price - paidAmount. It is 0 for free and fully paid jobs.
func (j WashJob) Pending() decimal.Decimal {
	p := j.Price.Sub(j.PaidAmount)
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

func (j WashJob) IsFree() bool {
	return !j.Price.IsPositive()
}

func (j WashJob) Anonymous() bool {
	return j.ClientID == ""
}

// Status is the label shown in listings.
func (j WashJob) Status() JobStatus {
	switch {
	case j.IsFree():
		return StatusFree
	case j.PaidAmount.GreaterThanOrEqual(j.Price):
		return StatusPaid
	case j.PaidAmount.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

// =============================================================================
// PAYMENTS AND EXPENSES
// =============================================================================

type PaymentOrigin string

const (
	// OriginClient is a payment registered against a client's debt.
	OriginClient PaymentOrigin = "cliente"
	// OriginWashJob is a payment emitted when a job is paid at create/edit time.
	OriginWashJob PaymentOrigin = "lavado"
)

// Payment is append-only. The only deletion is the cascade from its wash job.
type Payment struct {
	ID         PaymentID       `json:"id"`
	ClientID   ClientID        `json:"clientId,omitempty"`
	ClientName string          `json:"clientName"`
	Amount     decimal.Decimal `json:"amount"`
	Origen     PaymentOrigin   `json:"origen"`
	LavadoID   WashJobID       `json:"lavadoId,omitempty"`
	JornadaID  ShiftID         `json:"jornadaId,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	ReportedBy string          `json:"reportedBy"`
	Anonimo    bool            `json:"anonimo,omitempty"`
}

type Expense struct {
	ID          ExpenseID       `json:"id"`
	Concepto    string          `json:"concepto"`
	Monto       decimal.Decimal `json:"monto"`
	Observacion string          `json:"observacion,omitempty"`
	Fecha       time.Time       `json:"fecha"`
	ReportedBy  string          `json:"reportedBy"`
}

// =============================================================================
// SHIFTS
// =============================================================================

// Summary is the financial resumen written on every close.
type Summary struct {
	Lavados        int             `json:"lavados"`
	Ingresos       decimal.Decimal `json:"ingresos"`
	Gastos         decimal.Decimal `json:"gastos"`
	Pendientes     int             `json:"pendientes"`
	BalanceTeorico decimal.Decimal `json:"balanceTeorico"`
}

// Cuadre is the cash reconciliation recorded with a close.
type Cuadre struct {
	HizoCuadre       bool            `json:"hizoCuadre"`
	EfectivoEsperado decimal.Decimal `json:"efectivoEsperado"`
	EfectivoReal     decimal.Decimal `json:"efectivoReal"`
	Diferencia       decimal.Decimal `json:"diferencia"`
}

// Shift is the jornada for one business day. There is at most one per date.
type Shift struct {
	ID         ShiftID    `json:"id"`
	Date       DateKey    `json:"date"`
	Activa     bool       `json:"activa"`
	Cerrada    bool       `json:"cerrada,omitempty"`
	Inicio     time.Time  `json:"inicio"`
	Cierre     *time.Time `json:"cierre,omitempty"`
	OpenedBy   string     `json:"openedBy"`
	ClosedBy   string     `json:"closedBy,omitempty"`
	ReopenedAt *time.Time `json:"reopenedAt,omitempty"`
	ReopenedBy string     `json:"reopenedBy,omitempty"`
	Resumen    *Summary   `json:"resumen,omitempty"`
	Cuadre     *Cuadre    `json:"cuadre,omitempty"`
}

// IsActiveOn reports whether the shift is the usable active shift for today.
// A shift left active on an earlier date does not count.
func (s Shift) IsActiveOn(today DateKey) bool {
	return s.Activa && s.Date == today
}
