/*
store.go - Persistence interfaces for the salon record store

PURPOSE:
  Defines the contract between domain logic and the database. The engine
  only needs filtered reads, ordered reads, inserts, and exactly one
  single-field update: the bonus redemption transition. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  ClientStore:      Client CRUD (delete cascades to bonuses)
  BonusStore:       Append bonuses + the one permitted mutation
  EmployeeStore:    Staff records with commission rates
  InvoiceStore:     Invoices with their frozen commission records
  PaymentStore:     Append-only commission payouts
  AppointmentStore: Calendar records
  TxStore:          Atomic multi-record writes

APPEND-STYLE CONTRACT:
  Commission records and payment records have no Update or Delete methods.
  Bonuses have exactly one mutation, MarkRedeemed, which is conditional:
  it only fires while the stored state is still Pending, so concurrent
  redemption attempts resolve to a single winner.

ATOMIC WRITES:
  WithTx() ensures all-or-nothing semantics. Finalizing an invoice writes
  the invoice plus one commission record per line; either everything lands
  or nothing does. Batch settlement uses the same boundary.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - core/store:   In-memory for testing

SEE ALSO:
  - types.go: Record definitions
  - commission/settlement.go, bonus/redeem.go: Main consumers
*/
package core

import "context"

// =============================================================================
// CLIENTS
// =============================================================================

type ClientStore interface {
	// SaveClient inserts or replaces a client record.
	SaveClient(ctx context.Context, c Client) error

	// GetClient returns ErrClientNotFound for missing ids.
	GetClient(ctx context.Context, id ClientID) (Client, error)

	// ListClients returns all clients ordered by CreatedAt descending.
	ListClients(ctx context.Context) ([]Client, error)

	// DeleteClient removes the client and cascades to its bonuses.
	DeleteClient(ctx context.Context, id ClientID) error
}

// =============================================================================
// BONUSES
// =============================================================================

type BonusStore interface {
	// SaveBonus appends a bonus record.
	SaveBonus(ctx context.Context, b BonusRecord) error

	// GetBonus returns ErrBonusNotFound for missing ids.
	GetBonus(ctx context.Context, id BonusID) (BonusRecord, error)

	// ListBonusesByClient returns the client's full history ordered by
	// CreatedAt descending.
	ListBonusesByClient(ctx context.Context, clientID ClientID) ([]BonusRecord, error)

	// MarkRedeemed applies the single permitted mutation
	// Pending -> Redeemed. Returns (false, nil) when the record was no
	// longer Pending: a concurrent or repeated redemption already won.
	MarkRedeemed(ctx context.Context, id BonusID, at TimePoint) (bool, error)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error

	// GetEmployee returns ErrEmployeeNotFound for missing ids.
	GetEmployee(ctx context.Context, id EmployeeID) (Employee, error)

	// ListEmployees returns all employees ordered by name.
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// =============================================================================
// INVOICES & COMMISSION RECORDS
// =============================================================================

type InvoiceStore interface {
	// SaveInvoice inserts the invoice and its commission records. Callers
	// that need atomicity with other writes run this inside WithTx.
	SaveInvoice(ctx context.Context, inv Invoice) error

	// GetInvoice returns the invoice with its lines, or ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, id InvoiceID) (Invoice, error)

	// ListCommissionRecords returns every commission record, ordered by
	// CreatedAt. Settlement aggregates over this; nothing is cached.
	ListCommissionRecords(ctx context.Context) ([]CommissionRecord, error)

	// ListCommissionRecordsByEmployee filters to one employee.
	ListCommissionRecordsByEmployee(ctx context.Context, id EmployeeID) ([]CommissionRecord, error)
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentStore interface {
	// AppendPayment inserts one payout. Fails with
	// ErrDuplicateIdempotencyKey if the key was already used.
	AppendPayment(ctx context.Context, p PaymentRecord) error

	// ListPayments returns every payment record, ordered by CreatedAt.
	ListPayments(ctx context.Context) ([]PaymentRecord, error)

	// ListPaymentsByEmployee filters to one employee.
	ListPaymentsByEmployee(ctx context.Context, id EmployeeID) ([]PaymentRecord, error)
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

type AppointmentStore interface {
	SaveAppointment(ctx context.Context, a Appointment) error

	// GetAppointment returns ErrAppointmentNotFound for missing ids.
	GetAppointment(ctx context.Context, id AppointmentID) (Appointment, error)

	// ListAppointments returns appointments with At in [from, to],
	// ordered by At ascending.
	ListAppointments(ctx context.Context, from, to TimePoint) ([]Appointment, error)

	DeleteAppointment(ctx context.Context, id AppointmentID) error
}

// =============================================================================
// COMBINED STORE + TRANSACTIONS
// =============================================================================

// Store bundles every collection the engine consumes.
type Store interface {
	ClientStore
	BonusStore
	EmployeeStore
	InvoiceStore
	PaymentStore
	AppointmentStore
}

// TxStore wraps Store with transaction support.
// Use this when a write must be atomic across records (invoice
// finalization, batch settlement).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
