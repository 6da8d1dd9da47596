/*
Package sqlite provides the SQLite-backed implementation of core.TxStore.

PURPOSE:
  Implements every persistence interface the engine consumes using SQLite.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  clients              Client records
  bonuses              Loyalty bonuses (append-only except redemption)
  employees            Staff with commission rates
  invoices             Invoice heads
  invoice_lines        Frozen commission records, one per line
  commission_payments  Append-only payouts, unique idempotency key
  appointments         Calendar records

MUTATION DISCIPLINE:
  Commission records and payments are insert-only; no UPDATE or DELETE
  statements exist for them. Bonuses carry exactly one UPDATE, the
  conditional redemption transition, guarded by `state = 'pendiente'` so
  concurrent redeemers resolve to a single winner.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery
  Foreign keys are on so client deletion cascades to bonuses.

USAGE:
  store, err := sqlite.New("./data/salon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - core/store.go: Interface definitions
  - core/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/solera/salon-engine/core"
)

// Store implements core.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ core.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
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

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		birth_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clients_created_at
		ON clients(created_at DESC);

	CREATE TABLE IF NOT EXISTS bonuses (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT,
		redeemed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_bonuses_client
		ON bonuses(client_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_bonuses_state
		ON bonuses(state);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT,
		commission_rate TEXT NOT NULL DEFAULT '0',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		client_id TEXT,
		subtotal TEXT NOT NULL,
		discount TEXT NOT NULL,
		total TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoice_lines (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		employee_id TEXT,
		description TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		line_total TEXT NOT NULL,
		rate_snapshot TEXT NOT NULL,
		commission_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoice_lines_invoice
		ON invoice_lines(invoice_id);
	CREATE INDEX IF NOT EXISTS idx_invoice_lines_employee
		ON invoice_lines(employee_id);

	CREATE TABLE IF NOT EXISTS commission_payments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_employee
		ON commission_payments(employee_id, created_at);

	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		client_id TEXT,
		at TEXT NOT NULL,
		service TEXT NOT NULL,
		status TEXT NOT NULL,
		pay_status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_at
		ON appointments(at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// CLIENTS (core.ClientStore)
// =============================================================================

func (s *Store) SaveClient(ctx context.Context, c core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveClient(ctx, s.db, c)
}

func (s *Store) saveClient(ctx context.Context, db execer, c core.Client) error {
	query := `
		INSERT INTO clients (id, name, email, phone, birth_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			birth_date = excluded.birth_date
	`
	_, err := db.ExecContext(ctx, query,
		c.ID, c.Name, c.Email, c.Phone,
		nullTime(c.BirthDate), formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, id core.ClientID) (core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getClientLocked(ctx, id)
}

func (s *Store) getClientLocked(ctx context.Context, id core.ClientID) (core.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, birth_date, created_at
		FROM clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, core.ErrClientNotFound
	}
	return c, err
}

func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, birth_date, created_at
		FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []core.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Store) DeleteClient(ctx context.Context, id core.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrClientNotFound
	}
	return nil
}

func scanClient(row rowScanner) (core.Client, error) {
	var (
		c         core.Client
		email     sql.NullString
		phone     sql.NullString
		birth     sql.NullString
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &birth, &createdAt); err != nil {
		return c, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.BirthDate = parseNullTime(birth)
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// =============================================================================
// BONUSES (core.BonusStore)
// =============================================================================

func (s *Store) SaveBonus(ctx context.Context, b core.BonusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveBonus(ctx, s.db, b)
}

func (s *Store) saveBonus(ctx context.Context, db execer, b core.BonusRecord) error {
	query := `
		INSERT INTO bonuses (id, client_id, state, created_at, expires_at, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		b.ID, b.ClientID, b.State,
		formatTime(b.CreatedAt), nullTime(b.ExpiresAt), nullTime(b.RedeemedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save bonus: %w", err)
	}
	return nil
}

func (s *Store) GetBonus(ctx context.Context, id core.BonusID) (core.BonusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, state, created_at, expires_at, redeemed_at
		FROM bonuses WHERE id = ?`, id)
	b, err := scanBonus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BonusRecord{}, core.ErrBonusNotFound
	}
	return b, err
}

func (s *Store) ListBonusesByClient(ctx context.Context, clientID core.ClientID) ([]core.BonusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, state, created_at, expires_at, redeemed_at
		FROM bonuses WHERE client_id = ?
		ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bonuses: %w", err)
	}
	defer rows.Close()

	var bonuses []core.BonusRecord
	for rows.Next() {
		b, err := scanBonus(rows)
		if err != nil {
			return nil, err
		}
		bonuses = append(bonuses, b)
	}
	return bonuses, rows.Err()
}

// MarkRedeemed applies the Pending -> Redeemed transition. The state guard
// in the WHERE clause makes it conditional: a second attempt, or the loser
// of a concurrent race, affects zero rows and reports changed == false.
func (s *Store) MarkRedeemed(ctx context.Context, id core.BonusID, at core.TimePoint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE bonuses SET state = ?, redeemed_at = ?
		WHERE id = ? AND state = ?`,
		core.BonusRedeemed, formatTime(at), id, core.BonusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark bonus redeemed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanBonus(row rowScanner) (core.BonusRecord, error) {
	var (
		b          core.BonusRecord
		createdAt  string
		expiresAt  sql.NullString
		redeemedAt sql.NullString
	)
	if err := row.Scan(&b.ID, &b.ClientID, &b.State, &createdAt, &expiresAt, &redeemedAt); err != nil {
		return b, err
	}
	b.CreatedAt = parseTime(createdAt)
	b.ExpiresAt = parseNullTime(expiresAt)
	b.RedeemedAt = parseNullTime(redeemedAt)
	return b, nil
}

// =============================================================================
// EMPLOYEES (core.EmployeeStore)
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e core.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, role, commission_rate, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			commission_rate = excluded.commission_rate,
			active = excluded.active
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Role, e.CommissionRate.String(), e.Active, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployeeLocked(ctx, id)
}

func (s *Store) getEmployeeLocked(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, role, commission_rate, active, created_at
		FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Employee{}, core.ErrEmployeeNotFound
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, role, commission_rate, active, created_at
		FROM employees ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []core.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func scanEmployee(row rowScanner) (core.Employee, error) {
	var (
		e         core.Employee
		role      sql.NullString
		rate      string
		createdAt string
	)
	if err := row.Scan(&e.ID, &e.Name, &role, &rate, &e.Active, &createdAt); err != nil {
		return e, err
	}
	e.Role = role.String
	e.CommissionRate = parseDecimal(rate)
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// =============================================================================
// INVOICES & COMMISSION RECORDS (core.InvoiceStore)
// =============================================================================

func (s *Store) SaveInvoice(ctx context.Context, inv core.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveInvoice(ctx, s.db, inv)
}

func (s *Store) saveInvoice(ctx context.Context, db execer, inv core.Invoice) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO invoices (id, client_id, subtotal, discount, total, payment_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, nullString(string(inv.ClientID)),
		inv.Subtotal.String(), inv.Discount.String(), inv.Total.String(),
		inv.PaymentMethod, formatTime(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	for _, line := range inv.Lines {
		_, err := db.ExecContext(ctx, `
			INSERT INTO invoice_lines
			(id, invoice_id, employee_id, description, quantity, unit_price,
			 line_total, rate_snapshot, commission_amount, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID, inv.ID, nullString(string(line.EmployeeID)),
			line.Description, line.Quantity, line.UnitPrice.String(),
			line.LineTotal.String(), line.RateSnapshot.String(),
			line.CommissionAmount.String(), formatTime(line.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save invoice line: %w", err)
		}
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id core.InvoiceID) (core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		inv       core.Invoice
		clientID  sql.NullString
		subtotal  string
		discount  string
		total     string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, subtotal, discount, total, payment_method, created_at
		FROM invoices WHERE id = ?`, id).
		Scan(&inv.ID, &clientID, &subtotal, &discount, &total, &inv.PaymentMethod, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, core.ErrInvoiceNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("failed to get invoice: %w", err)
	}
	inv.ClientID = core.ClientID(clientID.String)
	inv.Subtotal = core.MustParseMoney(subtotal)
	inv.Discount = core.MustParseMoney(discount)
	inv.Total = core.MustParseMoney(total)
	inv.CreatedAt = parseTime(createdAt)

	lines, err := s.queryCommissionRecords(ctx, `
		SELECT id, invoice_id, employee_id, description, quantity, unit_price,
		       line_total, rate_snapshot, commission_amount, created_at
		FROM invoice_lines WHERE invoice_id = ?
		ORDER BY created_at`, id)
	if err != nil {
		return core.Invoice{}, err
	}
	inv.Lines = lines
	return inv, nil
}

func (s *Store) ListCommissionRecords(ctx context.Context) ([]core.CommissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCommissionRecords(ctx, `
		SELECT id, invoice_id, employee_id, description, quantity, unit_price,
		       line_total, rate_snapshot, commission_amount, created_at
		FROM invoice_lines ORDER BY created_at`)
}

func (s *Store) ListCommissionRecordsByEmployee(ctx context.Context, id core.EmployeeID) ([]core.CommissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCommissionRecords(ctx, `
		SELECT id, invoice_id, employee_id, description, quantity, unit_price,
		       line_total, rate_snapshot, commission_amount, created_at
		FROM invoice_lines WHERE employee_id = ?
		ORDER BY created_at`, id)
}

func (s *Store) queryCommissionRecords(ctx context.Context, query string, args ...any) ([]core.CommissionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commission records: %w", err)
	}
	defer rows.Close()

	var records []core.CommissionRecord
	for rows.Next() {
		var (
			rec        core.CommissionRecord
			employeeID sql.NullString
			unitPrice  string
			lineTotal  string
			rate       string
			amount     string
			createdAt  string
		)
		err := rows.Scan(&rec.ID, &rec.InvoiceID, &employeeID, &rec.Description,
			&rec.Quantity, &unitPrice, &lineTotal, &rate, &amount, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commission record: %w", err)
		}
		rec.EmployeeID = core.EmployeeID(employeeID.String)
		rec.UnitPrice = core.MustParseMoney(unitPrice)
		rec.LineTotal = core.MustParseMoney(lineTotal)
		rec.RateSnapshot = parseDecimal(rate)
		rec.CommissionAmount = core.MustParseMoney(amount)
		rec.CreatedAt = parseTime(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// PAYMENTS (core.PaymentStore)
// =============================================================================

func (s *Store) AppendPayment(ctx context.Context, p core.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendPayment(ctx, s.db, p)
}

func (s *Store) appendPayment(ctx context.Context, db execer, p core.PaymentRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO commission_payments (id, employee_id, amount, note, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.EmployeeID, p.Amount.String(), p.Note,
		nullString(p.IdempotencyKey), formatTime(p.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context) ([]core.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPayments(ctx, `
		SELECT id, employee_id, amount, note, idempotency_key, created_at
		FROM commission_payments ORDER BY created_at`)
}

func (s *Store) ListPaymentsByEmployee(ctx context.Context, id core.EmployeeID) ([]core.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPayments(ctx, `
		SELECT id, employee_id, amount, note, idempotency_key, created_at
		FROM commission_payments WHERE employee_id = ?
		ORDER BY created_at`, id)
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]core.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []core.PaymentRecord
	for rows.Next() {
		var (
			p         core.PaymentRecord
			amount    string
			note      sql.NullString
			key       sql.NullString
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.EmployeeID, &amount, &note, &key, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount = core.MustParseMoney(amount)
		p.Note = note.String
		p.IdempotencyKey = key.String
		p.CreatedAt = parseTime(createdAt)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// =============================================================================
// APPOINTMENTS (core.AppointmentStore)
// =============================================================================

func (s *Store) SaveAppointment(ctx context.Context, a core.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO appointments (id, client_id, at, service, status, pay_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			at = excluded.at,
			service = excluded.service,
			status = excluded.status,
			pay_status = excluded.pay_status
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, nullString(string(a.ClientID)), formatTime(a.At),
		a.Service, a.Status, a.PayStatus, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save appointment: %w", err)
	}
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, id core.AppointmentID) (core.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, at, service, status, pay_status, created_at
		FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Appointment{}, core.ErrAppointmentNotFound
	}
	return a, err
}

func (s *Store) ListAppointments(ctx context.Context, from, to core.TimePoint) ([]core.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, at, service, status, pay_status, created_at
		FROM appointments
		WHERE at >= ? AND at <= ?
		ORDER BY at ASC`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []core.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

func (s *Store) DeleteAppointment(ctx context.Context, id core.AppointmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrAppointmentNotFound
	}
	return nil
}

func scanAppointment(row rowScanner) (core.Appointment, error) {
	var (
		a         core.Appointment
		clientID  sql.NullString
		at        string
		createdAt string
	)
	if err := row.Scan(&a.ID, &clientID, &at, &a.Service, &a.Status, &a.PayStatus, &createdAt); err != nil {
		return a, err
	}
	a.ClientID = core.ClientID(clientID.String)
	a.At = parseTime(at)
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

// =============================================================================
// TRANSACTIONS (core.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. Writes issued through
// the transactional view go to the transaction; entity lookups read
// committed state via the parent, which is what the engines need for
// their validate-then-write-batch usage.
func (s *Store) WithTx(ctx context.Context, fn func(core.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransactionFailed, err)
	}
	return nil
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

var _ core.Store = (*txStore)(nil)

func (ts *txStore) SaveClient(ctx context.Context, c core.Client) error {
	return ts.parent.saveClient(ctx, ts.tx, c)
}

func (ts *txStore) SaveBonus(ctx context.Context, b core.BonusRecord) error {
	return ts.parent.saveBonus(ctx, ts.tx, b)
}

func (ts *txStore) SaveInvoice(ctx context.Context, inv core.Invoice) error {
	return ts.parent.saveInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) AppendPayment(ctx context.Context, p core.PaymentRecord) error {
	return ts.parent.appendPayment(ctx, ts.tx, p)
}

func (ts *txStore) GetClient(ctx context.Context, id core.ClientID) (core.Client, error) {
	return ts.parent.getClientLocked(ctx, id)
}

func (ts *txStore) GetEmployee(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	return ts.parent.getEmployeeLocked(ctx, id)
}

// The engines only write batches inside transactions; the remaining
// operations are unreachable there and fail loudly if that changes.
func (ts *txStore) ListClients(ctx context.Context) ([]core.Client, error) {
	return nil, errNotInTx
}

func (ts *txStore) DeleteClient(ctx context.Context, id core.ClientID) error {
	return errNotInTx
}

func (ts *txStore) GetBonus(ctx context.Context, id core.BonusID) (core.BonusRecord, error) {
	return core.BonusRecord{}, errNotInTx
}

func (ts *txStore) ListBonusesByClient(ctx context.Context, clientID core.ClientID) ([]core.BonusRecord, error) {
	return nil, errNotInTx
}

func (ts *txStore) MarkRedeemed(ctx context.Context, id core.BonusID, at core.TimePoint) (bool, error) {
	return false, errNotInTx
}

func (ts *txStore) SaveEmployee(ctx context.Context, e core.Employee) error {
	return errNotInTx
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	return nil, errNotInTx
}

func (ts *txStore) GetInvoice(ctx context.Context, id core.InvoiceID) (core.Invoice, error) {
	return core.Invoice{}, errNotInTx
}

func (ts *txStore) ListCommissionRecords(ctx context.Context) ([]core.CommissionRecord, error) {
	return nil, errNotInTx
}

func (ts *txStore) ListCommissionRecordsByEmployee(ctx context.Context, id core.EmployeeID) ([]core.CommissionRecord, error) {
	return nil, errNotInTx
}

func (ts *txStore) ListPayments(ctx context.Context) ([]core.PaymentRecord, error) {
	return nil, errNotInTx
}

func (ts *txStore) ListPaymentsByEmployee(ctx context.Context, id core.EmployeeID) ([]core.PaymentRecord, error) {
	return nil, errNotInTx
}

func (ts *txStore) SaveAppointment(ctx context.Context, a core.Appointment) error {
	return errNotInTx
}

func (ts *txStore) GetAppointment(ctx context.Context, id core.AppointmentID) (core.Appointment, error) {
	return core.Appointment{}, errNotInTx
}

func (ts *txStore) ListAppointments(ctx context.Context, from, to core.TimePoint) ([]core.Appointment, error) {
	return nil, errNotInTx
}

func (ts *txStore) DeleteAppointment(ctx context.Context, id core.AppointmentID) error {
	return errNotInTx
}

var errNotInTx = errors.New("operation not supported inside a transaction")

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout keeps the nanosecond field fixed-width. RFC3339Nano trims
// trailing zeros, which breaks the lexicographic ordering the ORDER BY
// and range queries rely on ("...00.5Z" would sort before "...00.12Z").
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(tp core.TimePoint) string {
	return tp.Time.UTC().Format(timeLayout)
}

func parseTime(s string) core.TimePoint {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return core.TimePoint{Time: t}
}

func nullTime(tp core.TimePoint) any {
	if tp.IsZero() {
		return nil
	}
	return formatTime(tp)
}

func parseNullTime(s sql.NullString) core.TimePoint {
	if !s.Valid || s.String == "" {
		return core.TimePoint{}
	}
	return parseTime(s.String)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
