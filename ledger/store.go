/*
store.go - Persistence interfaces for the ledger collections

PURPOSE:
  Defines the interface between the domain logic and the database.
  One sub-interface per collection: clientes (with deudas_manuales),
  lavados, pagos, gastos, jornadas. Store combines them; TxStore adds
  transactions so read-validate-write sequences run as one unit.

NOT FOUND CONTRACT:
  Get* methods return (nil, nil) when the document does not exist.
  Callers turn that into the matching ErrXxxNotFound.

ORDERING:
  Range and per-client queries return documents ordered by createdAt
  ascending, ties broken by insertion order. Payment listings are the
  exception: newest first.

NO CACHING:
  Implementations must not cache figures. Every read goes to the store.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - ledger/store/memory.go: In-memory for tests and development

SEE ALSO:
  - debt.go, allocation.go, summary.go: Pure logic over what these return
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLECTION STORES
// =============================================================================

type ClientStore interface {
	InsertClient(ctx context.Context, c Client) error
	UpdateClient(ctx context.Context, c Client) error
	DeleteClient(ctx context.Context, id ClientID) error
	GetClient(ctx context.Context, id ClientID) (*Client, error)
	// ListClients returns all clients ordered by name.
	ListClients(ctx context.Context) ([]Client, error)

	InsertManualDebt(ctx context.Context, d ManualDebt) error
	// SetManualDebtPaid is the only mutation allowed on a manual debt.
	SetManualDebtPaid(ctx context.Context, id ManualDebtID, paid decimal.Decimal) error
	// ListManualDebts returns a client's manual debts, oldest first.
	ListManualDebts(ctx context.Context, clientID ClientID) ([]ManualDebt, error)
}

type WashJobStore interface {
	InsertWashJob(ctx context.Context, j WashJob) error
	UpdateWashJob(ctx context.Context, j WashJob) error
	DeleteWashJob(ctx context.Context, id WashJobID) error
	GetWashJob(ctx context.Context, id WashJobID) (*WashJob, error)
	// ListWashJobsByClient returns a client's jobs, oldest first.
	// With unpaidOnly, only jobs with pagado = false are returned.
	ListWashJobsByClient(ctx context.Context, clientID ClientID, unpaidOnly bool) ([]WashJob, error)
	// ListWashJobsCreated returns jobs with createdAt in [from, to].
	ListWashJobsCreated(ctx context.Context, from, to time.Time) ([]WashJob, error)
}

// PaymentFilter narrows ListPayments. Zero values mean "any".
type PaymentFilter struct {
	ClientID ClientID
	From     time.Time
	To       time.Time
}

type PaymentStore interface {
	InsertPayment(ctx context.Context, p Payment) error
	// DeletePaymentsForWashJob removes the payments referencing a job and
	// returns how many were removed.
	DeletePaymentsForWashJob(ctx context.Context, id WashJobID) (int, error)
	// ListPayments returns matching payments, newest first.
	ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)
}

type ExpenseStore interface {
	InsertExpense(ctx context.Context, e Expense) error
	// ListExpenses returns expenses with fecha in [from, to], oldest first.
	ListExpenses(ctx context.Context, from, to time.Time) ([]Expense, error)
}

type ShiftStore interface {
	// InsertShift returns ErrShiftExists when the date already has a shift.
	InsertShift(ctx context.Context, s Shift) error
	UpdateShift(ctx context.Context, s Shift) error
	GetShift(ctx context.Context, id ShiftID) (*Shift, error)
	GetShiftByDate(ctx context.Context, date DateKey) (*Shift, error)
	// ListActiveShiftsBefore returns shifts still active on a date before the given one.
	ListActiveShiftsBefore(ctx context.Context, date DateKey) ([]Shift, error)
	// ListShiftsClosed returns shifts whose cierre is in [from, to], newest first.
	ListShiftsClosed(ctx context.Context, from, to time.Time) ([]Shift, error)
}

// =============================================================================
// STORE - All collections
// =============================================================================

type Store interface {
	ClientStore
	WashJobStore
	PaymentStore
	ExpenseStore
	ShiftStore
}

// =============================================================================
// TRANSACTIONAL STORE - For read-validate-write sequences
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// USERS - Login accounts, outside the ledger transaction scope
// =============================================================================

type UserStore interface {
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	// ListUsers returns active users ordered by name.
	ListUsers(ctx context.Context) ([]User, error)
}
