/*
Package sqlite provides a SQLite-backed implementation of the ledger storage interfaces.

PURPOSE:
  Implements ledger.TxStore (clientes, deudas_manuales, lavados, pagos,
  gastos, jornadas) and ledger.UserStore using SQLite.

KEY TABLES:
  clientes:        Clients
  deudas_manuales: Manual debts, per client
  lavados:         Wash jobs
  pagos:           Payments (append-only, cascade-deleted with their lavado)
  gastos:          Expenses (append-only)
  jornadas:        Shifts, at most one per date (unique index)
  users:           Login accounts

ENCODING:
  Money is TEXT holding the exact decimal string. Timestamps are UTC
  with a fixed-width nanosecond layout so string comparison is time
  comparison and range queries can use plain >= / <=.
  Shift resumen and cuadre are JSON columns.

CONCURRENCY:
  The pool is capped at one connection. Every statement, including the
  ones inside WithTx, is serialized through it, so a read-validate-write
  sequence inside WithTx sees no interleaved writes. Transactions start
  with BEGIN IMMEDIATE to take the write lock up front.

  Inside WithTx, use only the ledger.Store handed to fn. Calling the outer
  Store from inside fn waits for the connection the transaction holds.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better crash recovery.

USAGE:
  store, err := sqlite.New("./data/lavadero.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/lavadero/ledger"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements ledger.Store over a db or a tx.
type queries struct {
	q queryer
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	*queries
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clientes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clientes_name ON clientes(name);

	CREATE TABLE IF NOT EXISTS deudas_manuales (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		reported_by TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_deudas_client_created
		ON deudas_manuales(client_id, created_at);

	-- Wash jobs. client_id is not a foreign key: anonymous jobs have none and
	-- settled jobs outlive a deleted client.
	CREATE TABLE IF NOT EXISTS lavados (
		id TEXT PRIMARY KEY,
		vehicle_type TEXT NOT NULL,
		description TEXT,
		price TEXT NOT NULL,
		client_id TEXT,
		client_name TEXT NOT NULL DEFAULT '',
		paid_amount TEXT NOT NULL DEFAULT '0',
		pagado BOOLEAN NOT NULL DEFAULT FALSE,
		pago_generado BOOLEAN NOT NULL DEFAULT FALSE,
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		reported_by TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_lavados_client_pagado
		ON lavados(client_id, pagado, created_at);
	CREATE INDEX IF NOT EXISTS idx_lavados_created ON lavados(created_at);

	CREATE TABLE IF NOT EXISTS pagos (
		id TEXT PRIMARY KEY,
		client_id TEXT,
		client_name TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		origen TEXT NOT NULL,
		lavado_id TEXT,
		jornada_id TEXT,
		created_at TEXT NOT NULL,
		reported_by TEXT NOT NULL DEFAULT '',
		anonimo BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_pagos_client ON pagos(client_id);
	CREATE INDEX IF NOT EXISTS idx_pagos_lavado ON pagos(lavado_id) WHERE lavado_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_pagos_created ON pagos(created_at);

	CREATE TABLE IF NOT EXISTS gastos (
		id TEXT PRIMARY KEY,
		concepto TEXT NOT NULL,
		monto TEXT NOT NULL,
		observacion TEXT,
		fecha TEXT NOT NULL,
		reported_by TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_gastos_fecha ON gastos(fecha);

	CREATE TABLE IF NOT EXISTS jornadas (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		activa BOOLEAN NOT NULL DEFAULT FALSE,
		cerrada BOOLEAN NOT NULL DEFAULT FALSE,
		inicio TEXT NOT NULL,
		cierre TEXT,
		opened_by TEXT NOT NULL DEFAULT '',
		closed_by TEXT,
		reopened_at TEXT,
		reopened_by TEXT,
		resumen_json TEXT,
		cuadre_json TEXT
	);

	-- One shift per business day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_jornadas_date ON jornadas(date);
	CREATE INDEX IF NOT EXISTS idx_jornadas_cierre ON jornadas(cierre);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		pin_hash TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset clears all ledger data (for testing/demo). Users are kept.
func (s *Store) Reset(ctx context.Context) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	tables := []string{"pagos", "lavados", "deudas_manuales", "clientes", "gastos", "jornadas"}
	for _, table := range tables {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// =============================================================================
// CLIENTS
// =============================================================================

func (q *queries) InsertClient(ctx context.Context, c ledger.Client) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO clientes (id, name, phone, note, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.Name, nullString(c.Phone), nullString(c.Note), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

func (q *queries) UpdateClient(ctx context.Context, c ledger.Client) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE clientes SET name = ?, phone = ?, note = ? WHERE id = ?
	`, c.Name, nullString(c.Phone), nullString(c.Note), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return requireRow(res, ledger.ErrClientNotFound)
}

func (q *queries) DeleteClient(ctx context.Context, id ledger.ClientID) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM clientes WHERE id = ?", id)
	return err
}

const clientColumns = "id, name, phone, note, created_at"

func (q *queries) GetClient(ctx context.Context, id ledger.ClientID) (*ledger.Client, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clientes WHERE id = ?", id)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) ListClients(ctx context.Context) ([]ledger.Client, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT "+clientColumns+" FROM clientes ORDER BY name, rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	return collect(rows, scanClient)
}

func scanClient(sc scanner) (ledger.Client, error) {
	var (
		c           ledger.Client
		phone, note sql.NullString
		createdAt   string
	)
	if err := sc.Scan(&c.ID, &c.Name, &phone, &note, &createdAt); err != nil {
		return c, err
	}
	c.Phone = phone.String
	c.Note = note.String
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// =============================================================================
// MANUAL DEBTS
// =============================================================================

func (q *queries) InsertManualDebt(ctx context.Context, d ledger.ManualDebt) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO deudas_manuales (id, client_id, note, amount, paid_amount, created_at, reported_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.ClientID, d.Note, d.Amount.String(), d.PaidAmount.String(),
		formatTime(d.CreatedAt), d.ReportedBy)
	if err != nil {
		return fmt.Errorf("failed to insert manual debt: %w", err)
	}
	return nil
}

func (q *queries) SetManualDebtPaid(ctx context.Context, id ledger.ManualDebtID, paid decimal.Decimal) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE deudas_manuales SET paid_amount = ? WHERE id = ?", paid.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update manual debt: %w", err)
	}
	return requireRow(res, fmt.Errorf("manual debt %s not found", id))
}

func (q *queries) ListManualDebts(ctx context.Context, clientID ledger.ClientID) ([]ledger.ManualDebt, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, client_id, note, amount, paid_amount, created_at, reported_by
		FROM deudas_manuales
		WHERE client_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query manual debts: %w", err)
	}
	return collect(rows, func(sc scanner) (ledger.ManualDebt, error) {
		var (
			d                ledger.ManualDebt
			amount, paid, at string
		)
		if err := sc.Scan(&d.ID, &d.ClientID, &d.Note, &amount, &paid, &at, &d.ReportedBy); err != nil {
			return d, err
		}
		d.Amount = parseDecimal(amount)
		d.PaidAmount = parseDecimal(paid)
		d.CreatedAt = parseTime(at)
		return d, nil
	})
}

// =============================================================================
// WASH JOBS
// =============================================================================

const washJobColumns = `id, vehicle_type, description, price, client_id, client_name,
	paid_amount, pagado, pago_generado, locked, created_at, reported_by`

func (q *queries) InsertWashJob(ctx context.Context, j ledger.WashJob) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO lavados (`+washJobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.VehicleType, nullString(j.Description), j.Price.String(),
		nullString(string(j.ClientID)), j.ClientName, j.PaidAmount.String(),
		j.Pagado, j.PagoGenerado, j.Locked, formatTime(j.CreatedAt), j.ReportedBy)
	if err != nil {
		return fmt.Errorf("failed to insert wash job: %w", err)
	}
	return nil
}

func (q *queries) UpdateWashJob(ctx context.Context, j ledger.WashJob) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE lavados SET
			vehicle_type = ?, description = ?, price = ?, client_id = ?, client_name = ?,
			paid_amount = ?, pagado = ?, pago_generado = ?, locked = ?
		WHERE id = ?
	`, j.VehicleType, nullString(j.Description), j.Price.String(),
		nullString(string(j.ClientID)), j.ClientName, j.PaidAmount.String(),
		j.Pagado, j.PagoGenerado, j.Locked, j.ID)
	if err != nil {
		return fmt.Errorf("failed to update wash job: %w", err)
	}
	return requireRow(res, ledger.ErrWashJobNotFound)
}

func (q *queries) DeleteWashJob(ctx context.Context, id ledger.WashJobID) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM lavados WHERE id = ?", id)
	return err
}

func (q *queries) GetWashJob(ctx context.Context, id ledger.WashJobID) (*ledger.WashJob, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+washJobColumns+" FROM lavados WHERE id = ?", id)
	j, err := scanWashJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (q *queries) ListWashJobsByClient(ctx context.Context, clientID ledger.ClientID, unpaidOnly bool) ([]ledger.WashJob, error) {
	query := "SELECT " + washJobColumns + " FROM lavados WHERE client_id = ?"
	if unpaidOnly {
		query += " AND pagado = FALSE"
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := q.q.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wash jobs: %w", err)
	}
	return collect(rows, scanWashJob)
}

func (q *queries) ListWashJobsCreated(ctx context.Context, from, to time.Time) ([]ledger.WashJob, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+washJobColumns+` FROM lavados
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, rowid ASC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query wash jobs: %w", err)
	}
	return collect(rows, scanWashJob)
}

func scanWashJob(sc scanner) (ledger.WashJob, error) {
	var (
		j                      ledger.WashJob
		description, clientID  sql.NullString
		price, paid, createdAt string
	)
	err := sc.Scan(&j.ID, &j.VehicleType, &description, &price, &clientID, &j.ClientName,
		&paid, &j.Pagado, &j.PagoGenerado, &j.Locked, &createdAt, &j.ReportedBy)
	if err != nil {
		return j, err
	}
	j.Description = description.String
	j.ClientID = ledger.ClientID(clientID.String)
	j.Price = parseDecimal(price)
	j.PaidAmount = parseDecimal(paid)
	j.CreatedAt = parseTime(createdAt)
	return j, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, client_id, client_name, amount, origen, lavado_id, jornada_id,
	created_at, reported_by, anonimo`

func (q *queries) InsertPayment(ctx context.Context, p ledger.Payment) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO pagos (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, nullString(string(p.ClientID)), p.ClientName, p.Amount.String(), p.Origen,
		nullString(string(p.LavadoID)), nullString(string(p.JornadaID)),
		formatTime(p.CreatedAt), p.ReportedBy, p.Anonimo)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (q *queries) DeletePaymentsForWashJob(ctx context.Context, id ledger.WashJobID) (int, error) {
	res, err := q.q.ExecContext(ctx, "DELETE FROM pagos WHERE lavado_id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete payments: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (q *queries) ListPayments(ctx context.Context, f ledger.PaymentFilter) ([]ledger.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM pagos WHERE 1 = 1"
	var args []any
	if f.ClientID != "" {
		query += " AND client_id = ?"
		args = append(args, f.ClientID)
	}
	if !f.From.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, formatTime(f.To))
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	return collect(rows, func(sc scanner) (ledger.Payment, error) {
		var (
			p                           ledger.Payment
			clientID, lavadoID, jornada sql.NullString
			amount, createdAt           string
		)
		err := sc.Scan(&p.ID, &clientID, &p.ClientName, &amount, &p.Origen, &lavadoID,
			&jornada, &createdAt, &p.ReportedBy, &p.Anonimo)
		if err != nil {
			return p, err
		}
		p.ClientID = ledger.ClientID(clientID.String)
		p.LavadoID = ledger.WashJobID(lavadoID.String)
		p.JornadaID = ledger.ShiftID(jornada.String)
		p.Amount = parseDecimal(amount)
		p.CreatedAt = parseTime(createdAt)
		return p, nil
	})
}

// =============================================================================
// EXPENSES
// =============================================================================

func (q *queries) InsertExpense(ctx context.Context, e ledger.Expense) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO gastos (id, concepto, monto, observacion, fecha, reported_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Concepto, e.Monto.String(), nullString(e.Observacion), formatTime(e.Fecha), e.ReportedBy)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

func (q *queries) ListExpenses(ctx context.Context, from, to time.Time) ([]ledger.Expense, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, concepto, monto, observacion, fecha, reported_by
		FROM gastos
		WHERE fecha >= ? AND fecha <= ?
		ORDER BY fecha ASC, rowid ASC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	return collect(rows, func(sc scanner) (ledger.Expense, error) {
		var (
			e           ledger.Expense
			observacion sql.NullString
			monto, at   string
		)
		if err := sc.Scan(&e.ID, &e.Concepto, &monto, &observacion, &at, &e.ReportedBy); err != nil {
			return e, err
		}
		e.Monto = parseDecimal(monto)
		e.Observacion = observacion.String
		e.Fecha = parseTime(at)
		return e, nil
	})
}

// =============================================================================
// SHIFTS
// =============================================================================

const shiftColumns = `id, date, activa, cerrada, inicio, cierre, opened_by, closed_by,
	reopened_at, reopened_by, resumen_json, cuadre_json`

func (q *queries) InsertShift(ctx context.Context, s ledger.Shift) error {
	args, err := shiftArgs(s)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO jornadas (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{s.ID}, args...)...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrShiftExists
		}
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

func (q *queries) UpdateShift(ctx context.Context, s ledger.Shift) error {
	args, err := shiftArgs(s)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx, `
		UPDATE jornadas SET
			date = ?, activa = ?, cerrada = ?, inicio = ?, cierre = ?, opened_by = ?,
			closed_by = ?, reopened_at = ?, reopened_by = ?, resumen_json = ?, cuadre_json = ?
		WHERE id = ?
	`, append(args, s.ID)...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrShiftExists
		}
		return fmt.Errorf("failed to update shift: %w", err)
	}
	return requireRow(res, ledger.ErrShiftNotFound)
}

// shiftArgs returns every column value after id, in shiftColumns order.
func shiftArgs(s ledger.Shift) ([]any, error) {
	resumen, err := nullJSON(s.Resumen)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resumen: %w", err)
	}
	cuadre, err := nullJSON(s.Cuadre)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cuadre: %w", err)
	}
	return []any{
		s.Date, s.Activa, s.Cerrada, formatTime(s.Inicio), nullTime(s.Cierre),
		s.OpenedBy, nullString(s.ClosedBy), nullTime(s.ReopenedAt), nullString(s.ReopenedBy),
		resumen, cuadre,
	}, nil
}

func (q *queries) GetShift(ctx context.Context, id ledger.ShiftID) (*ledger.Shift, error) {
	return q.getShift(ctx, "id = ?", id)
}

func (q *queries) GetShiftByDate(ctx context.Context, date ledger.DateKey) (*ledger.Shift, error) {
	return q.getShift(ctx, "date = ?", date)
}

func (q *queries) getShift(ctx context.Context, where string, arg any) (*ledger.Shift, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+shiftColumns+" FROM jornadas WHERE "+where, arg)
	s, err := scanShift(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (q *queries) ListActiveShiftsBefore(ctx context.Context, date ledger.DateKey) ([]ledger.Shift, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+shiftColumns+` FROM jornadas
		WHERE activa = TRUE AND date < ?
		ORDER BY date ASC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	return collect(rows, scanShift)
}

func (q *queries) ListShiftsClosed(ctx context.Context, from, to time.Time) ([]ledger.Shift, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+shiftColumns+` FROM jornadas
		WHERE activa = FALSE AND cierre >= ? AND cierre <= ?
		ORDER BY cierre DESC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	return collect(rows, scanShift)
}

func scanShift(sc scanner) (ledger.Shift, error) {
	var (
		s                       ledger.Shift
		inicio                  string
		cierre, closedBy        sql.NullString
		reopenedAt, reopenedBy  sql.NullString
		resumenJSON, cuadreJSON sql.NullString
	)
	err := sc.Scan(&s.ID, &s.Date, &s.Activa, &s.Cerrada, &inicio, &cierre, &s.OpenedBy,
		&closedBy, &reopenedAt, &reopenedBy, &resumenJSON, &cuadreJSON)
	if err != nil {
		return s, err
	}
	s.Inicio = parseTime(inicio)
	s.Cierre = parseNullTime(cierre)
	s.ClosedBy = closedBy.String
	s.ReopenedAt = parseNullTime(reopenedAt)
	s.ReopenedBy = reopenedBy.String

	if resumenJSON.Valid && resumenJSON.String != "" {
		s.Resumen = &ledger.Summary{}
		if err := json.Unmarshal([]byte(resumenJSON.String), s.Resumen); err != nil {
			return s, fmt.Errorf("failed to decode resumen of shift %s: %w", s.ID, err)
		}
	}
	if cuadreJSON.Valid && cuadreJSON.String != "" {
		s.Cuadre = &ledger.Cuadre{}
		if err := json.Unmarshal([]byte(cuadreJSON.String), s.Cuadre); err != nil {
			return s, fmt.Errorf("failed to decode cuadre of shift %s: %w", s.ID, err)
		}
	}
	return s, nil
}

// =============================================================================
// USERS (ledger.UserStore interface)
// =============================================================================

// SaveUser inserts or replaces a login account.
func (s *Store) SaveUser(ctx context.Context, u ledger.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, role, pin_hash, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			pin_hash = excluded.pin_hash,
			active = excluded.active
	`, u.ID, u.Name, u.Role, u.PinHash, u.Active, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, role, pin_hash, active, created_at FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns active users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, role, pin_hash, active, created_at FROM users WHERE active = TRUE ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return collect(rows, scanUser)
}

func scanUser(sc scanner) (ledger.User, error) {
	var (
		u         ledger.User
		createdAt string
	)
	if err := sc.Scan(&u.ID, &u.Name, &u.Role, &u.PinHash, &u.Active, &createdAt); err != nil {
		return u, err
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
