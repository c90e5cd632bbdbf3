// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// row keeps the insertion sequence so equal timestamps sort by insertion.
type row[T any] struct {
	seq int64
	doc T
}

type memData struct {
	seq      int64
	clients  map[ledger.ClientID]row[ledger.Client]
	debts    map[ledger.ManualDebtID]row[ledger.ManualDebt]
	jobs     map[ledger.WashJobID]row[ledger.WashJob]
	payments map[ledger.PaymentID]row[ledger.Payment]
	expenses map[ledger.ExpenseID]row[ledger.Expense]
	shifts   map[ledger.ShiftID]row[ledger.Shift]
}

func newMemData() *memData {
	return &memData{
		clients:  make(map[ledger.ClientID]row[ledger.Client]),
		debts:    make(map[ledger.ManualDebtID]row[ledger.ManualDebt]),
		jobs:     make(map[ledger.WashJobID]row[ledger.WashJob]),
		payments: make(map[ledger.PaymentID]row[ledger.Payment]),
		expenses: make(map[ledger.ExpenseID]row[ledger.Expense]),
		shifts:   make(map[ledger.ShiftID]row[ledger.Shift]),
	}
}

func (d *memData) next() int64 {
	d.seq++
	return d.seq
}

func (d *memData) clone() memData {
	c := *newMemData()
	c.seq = d.seq
	copyMap(c.clients, d.clients)
	copyMap(c.debts, d.debts)
	copyMap(c.jobs, d.jobs)
	copyMap(c.payments, d.payments)
	copyMap(c.expenses, d.expenses)
	for k, v := range d.shifts {
		c.shifts[k] = row[ledger.Shift]{seq: v.seq, doc: cloneShift(v.doc)}
	}
	return c
}

func copyMap[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

// Memory is a ledger.TxStore backed by maps.
// Inside WithTx the same type is handed to fn with locking disabled,
// since the transaction already holds the write lock.
type Memory struct {
	mu   *sync.RWMutex
	data *memData
	inTx bool
}

func NewMemory() *Memory {
	return &Memory{mu: &sync.RWMutex{}, data: newMemData()}
}

func (m *Memory) rlock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	view := &Memory{mu: m.mu, data: m.data, inTx: true}

	if err := fn(view); err != nil {
		*m.data = snapshot
		return err
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	defer m.lock()()
	*m.data = *newMemData()
	return nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (m *Memory) InsertClient(_ context.Context, c ledger.Client) error {
	defer m.lock()()
	if _, ok := m.data.clients[c.ID]; ok {
		return fmt.Errorf("client %s already exists", c.ID)
	}
	m.data.clients[c.ID] = row[ledger.Client]{seq: m.data.next(), doc: c}
	return nil
}

func (m *Memory) UpdateClient(_ context.Context, c ledger.Client) error {
	defer m.lock()()
	r, ok := m.data.clients[c.ID]
	if !ok {
		return ledger.ErrClientNotFound
	}
	r.doc = c
	m.data.clients[c.ID] = r
	return nil
}

func (m *Memory) DeleteClient(_ context.Context, id ledger.ClientID) error {
	defer m.lock()()
	delete(m.data.clients, id)
	return nil
}

func (m *Memory) GetClient(_ context.Context, id ledger.ClientID) (*ledger.Client, error) {
	defer m.rlock()()
	r, ok := m.data.clients[id]
	if !ok {
		return nil, nil
	}
	c := r.doc
	return &c, nil
}

func (m *Memory) ListClients(_ context.Context) ([]ledger.Client, error) {
	defer m.rlock()()
	return collect(m.data.clients, nil, func(a, b ledger.Client) bool { return a.Name < b.Name }), nil
}

func (m *Memory) InsertManualDebt(_ context.Context, d ledger.ManualDebt) error {
	defer m.lock()()
	m.data.debts[d.ID] = row[ledger.ManualDebt]{seq: m.data.next(), doc: d}
	return nil
}

func (m *Memory) SetManualDebtPaid(_ context.Context, id ledger.ManualDebtID, paid decimal.Decimal) error {
	defer m.lock()()
	r, ok := m.data.debts[id]
	if !ok {
		return fmt.Errorf("manual debt %s not found", id)
	}
	r.doc.PaidAmount = paid
	m.data.debts[id] = r
	return nil
}

func (m *Memory) ListManualDebts(_ context.Context, clientID ledger.ClientID) ([]ledger.ManualDebt, error) {
	defer m.rlock()()
	return collect(m.data.debts,
		func(d ledger.ManualDebt) bool { return d.ClientID == clientID },
		func(a, b ledger.ManualDebt) bool { return a.CreatedAt.Before(b.CreatedAt) },
	), nil
}

// =============================================================================
// WASH JOBS
// =============================================================================

func (m *Memory) InsertWashJob(_ context.Context, j ledger.WashJob) error {
	defer m.lock()()
	m.data.jobs[j.ID] = row[ledger.WashJob]{seq: m.data.next(), doc: j}
	return nil
}

func (m *Memory) UpdateWashJob(_ context.Context, j ledger.WashJob) error {
	defer m.lock()()
	r, ok := m.data.jobs[j.ID]
	if !ok {
		return ledger.ErrWashJobNotFound
	}
	r.doc = j
	m.data.jobs[j.ID] = r
	return nil
}

func (m *Memory) DeleteWashJob(_ context.Context, id ledger.WashJobID) error {
	defer m.lock()()
	delete(m.data.jobs, id)
	return nil
}

func (m *Memory) GetWashJob(_ context.Context, id ledger.WashJobID) (*ledger.WashJob, error) {
	defer m.rlock()()
	r, ok := m.data.jobs[id]
	if !ok {
		return nil, nil
	}
	j := r.doc
	return &j, nil
}

func (m *Memory) ListWashJobsByClient(_ context.Context, clientID ledger.ClientID, unpaidOnly bool) ([]ledger.WashJob, error) {
	defer m.rlock()()
	return collect(m.data.jobs,
		func(j ledger.WashJob) bool { return j.ClientID == clientID && (!unpaidOnly || !j.Pagado) },
		func(a, b ledger.WashJob) bool { return a.CreatedAt.Before(b.CreatedAt) },
	), nil
}

func (m *Memory) ListWashJobsCreated(_ context.Context, from, to time.Time) ([]ledger.WashJob, error) {
	defer m.rlock()()
	r := ledger.Range{From: from, To: to}
	return collect(m.data.jobs,
		func(j ledger.WashJob) bool { return r.Contains(j.CreatedAt) },
		func(a, b ledger.WashJob) bool { return a.CreatedAt.Before(b.CreatedAt) },
	), nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) InsertPayment(_ context.Context, p ledger.Payment) error {
	defer m.lock()()
	m.data.payments[p.ID] = row[ledger.Payment]{seq: m.data.next(), doc: p}
	return nil
}

func (m *Memory) DeletePaymentsForWashJob(_ context.Context, id ledger.WashJobID) (int, error) {
	defer m.lock()()
	n := 0
	for pid, r := range m.data.payments {
		if r.doc.LavadoID == id {
			delete(m.data.payments, pid)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListPayments(_ context.Context, f ledger.PaymentFilter) ([]ledger.Payment, error) {
	defer m.rlock()()
	out := collect(m.data.payments,
		func(p ledger.Payment) bool {
			if f.ClientID != "" && p.ClientID != f.ClientID {
				return false
			}
			if !f.From.IsZero() && p.CreatedAt.Before(f.From) {
				return false
			}
			if !f.To.IsZero() && p.CreatedAt.After(f.To) {
				return false
			}
			return true
		},
		func(a, b ledger.Payment) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
	reverse(out)
	return out, nil
}

// =============================================================================
// EXPENSES
// =============================================================================

func (m *Memory) InsertExpense(_ context.Context, e ledger.Expense) error {
	defer m.lock()()
	m.data.expenses[e.ID] = row[ledger.Expense]{seq: m.data.next(), doc: e}
	return nil
}

func (m *Memory) ListExpenses(_ context.Context, from, to time.Time) ([]ledger.Expense, error) {
	defer m.rlock()()
	r := ledger.Range{From: from, To: to}
	return collect(m.data.expenses,
		func(e ledger.Expense) bool { return r.Contains(e.Fecha) },
		func(a, b ledger.Expense) bool { return a.Fecha.Before(b.Fecha) },
	), nil
}

// =============================================================================
// SHIFTS
// =============================================================================

func (m *Memory) InsertShift(_ context.Context, s ledger.Shift) error {
	defer m.lock()()
	for _, r := range m.data.shifts {
		if r.doc.Date == s.Date {
			return ledger.ErrShiftExists
		}
	}
	m.data.shifts[s.ID] = row[ledger.Shift]{seq: m.data.next(), doc: cloneShift(s)}
	return nil
}

func (m *Memory) UpdateShift(_ context.Context, s ledger.Shift) error {
	defer m.lock()()
	r, ok := m.data.shifts[s.ID]
	if !ok {
		return ledger.ErrShiftNotFound
	}
	r.doc = cloneShift(s)
	m.data.shifts[s.ID] = r
	return nil
}

func (m *Memory) GetShift(_ context.Context, id ledger.ShiftID) (*ledger.Shift, error) {
	defer m.rlock()()
	r, ok := m.data.shifts[id]
	if !ok {
		return nil, nil
	}
	s := cloneShift(r.doc)
	return &s, nil
}

func (m *Memory) GetShiftByDate(_ context.Context, date ledger.DateKey) (*ledger.Shift, error) {
	defer m.rlock()()
	for _, r := range m.data.shifts {
		if r.doc.Date == date {
			s := cloneShift(r.doc)
			return &s, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListActiveShiftsBefore(_ context.Context, date ledger.DateKey) ([]ledger.Shift, error) {
	defer m.rlock()()
	return cloneShifts(collect(m.data.shifts,
		func(s ledger.Shift) bool { return s.Activa && s.Date.Before(date) },
		func(a, b ledger.Shift) bool { return a.Date < b.Date },
	)), nil
}

func (m *Memory) ListShiftsClosed(_ context.Context, from, to time.Time) ([]ledger.Shift, error) {
	defer m.rlock()()
	r := ledger.Range{From: from, To: to}
	out := collect(m.data.shifts,
		func(s ledger.Shift) bool { return !s.Activa && s.Cierre != nil && r.Contains(*s.Cierre) },
		func(a, b ledger.Shift) bool { return a.Cierre.Before(*b.Cierre) },
	)
	reverse(out)
	return cloneShifts(out), nil
}

// =============================================================================
// HELPERS
// =============================================================================

// collect filters a collection and sorts it by less, then by insertion.
func collect[K comparable, T any](m map[K]row[T], keep func(T) bool, less func(a, b T) bool) []T {
	rows := make([]row[T], 0, len(m))
	for _, r := range m {
		if keep == nil || keep(r.doc) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if less(rows[i].doc, rows[j].doc) {
			return true
		}
		if less(rows[j].doc, rows[i].doc) {
			return false
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.doc
	}
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func cloneShift(s ledger.Shift) ledger.Shift {
	if s.Cierre != nil {
		t := *s.Cierre
		s.Cierre = &t
	}
	if s.ReopenedAt != nil {
		t := *s.ReopenedAt
		s.ReopenedAt = &t
	}
	if s.Resumen != nil {
		r := *s.Resumen
		s.Resumen = &r
	}
	if s.Cuadre != nil {
		c := *s.Cuadre
		s.Cuadre = &c
	}
	return s
}

func cloneShifts(in []ledger.Shift) []ledger.Shift {
	for i := range in {
		in[i] = cloneShift(in[i])
	}
	return in
}
