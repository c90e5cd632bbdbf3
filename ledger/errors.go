/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Service packages return these (possibly wrapped) and the HTTP layer
  maps them to status codes with the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - Bad input (amount <= 0, missing field)
  2. Authorization errors - Role not allowed
  3. Not found errors - Referenced document missing
  4. State precondition errors - No active shift, shift exists, debt guard
  5. Store errors - Anything else; logged and surfaced as a generic failure

USAGE:
    if errors.Is(err, ledger.ErrNoActiveShift) {
        // ask the user to open the jornada first
    }

SEE ALSO:
  - api/handlers.go: Maps these to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the actor's role may not perform the operation.
	ErrForbidden = errors.New("operation not allowed for role")

	ErrClientNotFound  = errors.New("client not found")
	ErrWashJobNotFound = errors.New("wash job not found")
	ErrShiftNotFound   = errors.New("shift not found")

	// ErrNoActiveShift is returned when an operation needs today's active shift.
	ErrNoActiveShift = errors.New("no active shift for today")

	// ErrShiftExists is returned when opening a shift for a date that already has one.
	ErrShiftExists = errors.New("a shift already exists for this date")

	// ErrShiftAlreadyActive is returned when reopening a shift that is open.
	ErrShiftAlreadyActive = errors.New("shift is already active")

	// ErrShiftNotToday is returned when reopening a shift of another date.
	ErrShiftNotToday = errors.New("only today's shift can be reopened")

	// ErrWashJobLocked is returned when editing a job whose payment was already generated.
	ErrWashJobLocked = errors.New("wash job already generated a payment")

	// ErrPendingRequiresClient is returned when a priced job is left pending without a client.
	ErrPendingRequiresClient = errors.New("a pending wash job requires a client")

	// ErrPaymentExceedsDebt is returned when a payment is larger than the current debt.
	ErrPaymentExceedsDebt = errors.New("payment exceeds outstanding debt")

	// ErrOutstandingDebt is returned when deleting something that still owes money.
	ErrOutstandingDebt = errors.New("outstanding debt")

	// ErrInvalidCredentials is returned by login for an unknown user or wrong PIN.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PaymentExceedsDebtError carries the figures of a rejected payment.
type PaymentExceedsDebtError struct {
	ClientID ClientID
	Debt     decimal.Decimal
	Amount   decimal.Decimal
}

func (e *PaymentExceedsDebtError) Error() string {
	return fmt.Sprintf("payment %s exceeds debt %s for client %s",
		e.Amount.StringFixed(2), e.Debt.StringFixed(2), e.ClientID)
}

func (e *PaymentExceedsDebtError) Unwrap() error {
	return ErrPaymentExceedsDebt
}

// OutstandingDebtError is returned by deletion guards.
type OutstandingDebtError struct {
	What    string // "client" or "wash job"
	ID      string
	Pending decimal.Decimal
}

func (e *OutstandingDebtError) Error() string {
	return fmt.Sprintf("%s %s still owes %s", e.What, e.ID, e.Pending.StringFixed(2))
}

func (e *OutstandingDebtError) Unwrap() error {
	return ErrOutstandingDebt
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPendingRequiresClient)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrWashJobNotFound) ||
		errors.Is(err, ErrShiftNotFound)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsConflict returns true if the request is well formed but the current
// state does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNoActiveShift) ||
		errors.Is(err, ErrShiftExists) ||
		errors.Is(err, ErrShiftAlreadyActive) ||
		errors.Is(err, ErrShiftNotToday) ||
		errors.Is(err, ErrWashJobLocked) ||
		errors.Is(err, ErrPaymentExceedsDebt) ||
		errors.Is(err, ErrOutstandingDebt)
}
