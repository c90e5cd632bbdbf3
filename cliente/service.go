// Package cliente manages clients, their manual debts and statements.
package cliente

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/ledger"
)

type Service struct {
	store ledger.TxStore
	cal   *ledger.Calendar
}

func NewService(store ledger.TxStore, cal *ledger.Calendar) *Service {
	return &Service{store: store, cal: cal}
}

// Input is the editable content of a client.
type Input struct {
	Name  string
	Phone string
	Note  string
}

func (in *Input) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Note = strings.TrimSpace(in.Note)
	if in.Name == "" {
		return ledger.Invalid("name", "is required")
	}
	return nil
}

// WithDebt is a client and its current outstanding balance.
type WithDebt struct {
	ledger.Client
	Debt ledger.Debt
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Service) Create(ctx context.Context, actor ledger.Actor, in Input) (*ledger.Client, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	c := ledger.Client{
		ID:        ledger.ClientID(ledger.NewID()),
		Name:      in.Name,
		Phone:     in.Phone,
		Note:      in.Note,
		CreatedAt: s.cal.Current(),
	}
	if err := s.store.InsertClient(ctx, c); err != nil {
		return nil, err
	}
	log.Info().Str("client_id", string(c.ID)).Msg("client created")
	return &c, nil
}

// Update changes the client id. Name snapshots on past documents are kept.
func (s *Service) Update(ctx context.Context, actor ledger.Actor, id ledger.ClientID, in Input) (*ledger.Client, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Phone = in.Phone
	c.Note = in.Note
	if err := s.store.UpdateClient(ctx, *c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a client with no outstanding debt.
func (s *Service) Delete(ctx context.Context, actor ledger.Actor, id ledger.ClientID) error {
	if !actor.IsAdmin() {
		return ledger.ErrForbidden
	}

	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		c, err := tx.GetClient(ctx, id)
		if err != nil {
			return fmt.Errorf("load client: %w", err)
		}
		if c == nil {
			return ledger.ErrClientNotFound
		}
		debt, err := ledger.ClientDebt(ctx, tx, id)
		if err != nil {
			return err
		}
		if debt.Total.IsPositive() {
			return &ledger.OutstandingDebtError{What: "client", ID: string(id), Pending: debt.Total}
		}
		return tx.DeleteClient(ctx, id)
	})
	if err != nil {
		return err
	}

	log.Info().Str("client_id", string(id)).Msg("client deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id ledger.ClientID) (*ledger.Client, error) {
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ledger.ErrClientNotFound
	}
	return c, nil
}

// List returns clients ordered by name with their debt. A non-empty query
// keeps clients whose name contains it, case-insensitively.
func (s *Service) List(ctx context.Context, actor ledger.Actor, query string) ([]WithDebt, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]WithDebt, 0, len(clients))
	for _, c := range clients {
		if query != "" && !strings.Contains(strings.ToLower(c.Name), query) {
			continue
		}
		debt, err := ledger.ClientDebt(ctx, s.store, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, WithDebt{Client: c, Debt: debt})
	}
	return out, nil
}

// Debt returns a client's current debt.
func (s *Service) Debt(ctx context.Context, id ledger.ClientID) (ledger.Debt, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return ledger.Debt{}, err
	}
	return ledger.ClientDebt(ctx, s.store, id)
}

// =============================================================================
// MANUAL DEBTS
// =============================================================================

// ManualDebtInput is a debt entered by hand.
type ManualDebtInput struct {
	Note   string
	Amount decimal.Decimal
}

func (s *Service) AddManualDebt(ctx context.Context, actor ledger.Actor, id ledger.ClientID, in ManualDebtInput) (*ledger.ManualDebt, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	if !in.Amount.IsPositive() {
		return nil, ledger.Invalid("amount", "must be greater than 0")
	}

	var d ledger.ManualDebt
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		c, err := tx.GetClient(ctx, id)
		if err != nil {
			return fmt.Errorf("load client: %w", err)
		}
		if c == nil {
			return ledger.ErrClientNotFound
		}
		d = ledger.ManualDebt{
			ID:         ledger.ManualDebtID(ledger.NewID()),
			ClientID:   id,
			Note:       strings.TrimSpace(in.Note),
			Amount:     in.Amount,
			PaidAmount: decimal.Zero,
			CreatedAt:  s.cal.Current(),
			ReportedBy: actor.Name,
		}
		return tx.InsertManualDebt(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("client_id", string(id)).Str("amount", in.Amount.String()).Msg("manual debt added")
	return &d, nil
}

func (s *Service) ListManualDebts(ctx context.Context, actor ledger.Actor, id ledger.ClientID) ([]ledger.ManualDebt, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListManualDebts(ctx, id)
}

// =============================================================================
// STATEMENT
// =============================================================================

// Statement is everything a client owes and has paid.
type Statement struct {
	Client      ledger.Client
	UnpaidJobs  []ledger.WashJob
	ManualDebts []ledger.ManualDebt
	Payments    []ledger.Payment
	Debt        ledger.Debt
}

func (s *Service) Statement(ctx context.Context, actor ledger.Actor, id ledger.ClientID) (*Statement, error) {
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListWashJobsByClient(ctx, id, true)
	if err != nil {
		return nil, err
	}
	debts, err := s.store.ListManualDebts(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, ledger.PaymentFilter{ClientID: id})
	if err != nil {
		return nil, err
	}
	return &Statement{
		Client:      *c,
		UnpaidJobs:  jobs,
		ManualDebts: debts,
		Payments:    payments,
		Debt:        ledger.CalculateDebt(jobs, debts),
	}, nil
}
