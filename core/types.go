/*
Package core provides the shared kernel of the salon engine.

PURPOSE:
  This package contains the domain entities and value types shared by the
  business-rule packages (bonus, commission, stats) and the storage layer.
  Everything here is plain data plus small pure helpers - no persistence,
  no HTTP, no clock reads.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal
  - Client: A salon client with contact info and a bonus history
  - BonusRecord: One loyalty bonus, append-only except Pending->Redeemed
  - Employee: Staff member with a commission rate
  - InvoiceLine / CommissionRecord: Invoice input and its frozen snapshot
  - PaymentRecord: One commission payout, append-only
  - EmployeeBalance: Derived settlement state, never stored

DESIGN PRINCIPLES:
  1. Immutability: Commission and payment records are never modified
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing client/employee IDs
  4. Derivation: Balances and effective bonus status are computed on read,
     never cached alongside the source records

SEE ALSO:
  - time.go: TimePoint used for every timestamp
  - store.go: Persistence interfaces over these types
  - bonus/: Effective bonus status derivation
  - commission/: Snapshot and settlement logic
*/
package core

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount (no currency code; the salon operates in one)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(other Money) Money          { return Money{Value: m.Value.Add(other.Value)} }
func (m Money) Sub(other Money) Money          { return Money{Value: m.Value.Sub(other.Value)} }
func (m Money) Mul(s decimal.Decimal) Money    { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money    { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                     { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool               { return m.Value.IsNegative() }
func (m Money) IsZero() bool                   { return m.Value.IsZero() }
func (m Money) IsPositive() bool               { return m.Value.IsPositive() }
func (m Money) GreaterThan(other Money) bool   { return m.Value.GreaterThan(other.Value) }
func (m Money) LessThan(other Money) bool      { return m.Value.LessThan(other.Value) }
func (m Money) Equal(other Money) bool         { return m.Value.Equal(other.Value) }
func (m Money) String() string                 { return m.Value.String() }

// FloorZero clamps a negative amount at zero. Pending balances use this:
// overpayment is absorbed, never tracked as a credit.
func (m Money) FloorZero() Money {
	if m.IsNegative() {
		return ZeroMoney()
	}
	return m
}

// Percent applies a commission percentage: m * rate / 100.
// No rounding beyond decimal's native precision.
func (m Money) Percent(rate decimal.Decimal) Money {
	return Money{Value: m.Value.Mul(rate).Div(decimal.NewFromInt(100))}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type EmployeeID string
type BonusID string
type InvoiceID string
type AppointmentID string
type PaymentID string
type CommissionID string

// =============================================================================
// CLIENT
// =============================================================================

type Client struct {
	ID        ClientID
	Name      string
	Email     string
	Phone     string
	BirthDate TimePoint // date-only; year is informational
	CreatedAt TimePoint
}

// =============================================================================
// BONUS RECORD - Append-only except the single Pending -> Redeemed mutation
// =============================================================================

// BonusState is the state stored on the record. It is NOT the effective
// status shown to users: Pending records may have lapsed by now, which is
// derived on read (see bonus.Resolve). Stored values match the legacy
// database contents.
type BonusState string

const (
	BonusPending  BonusState = "pendiente"
	BonusRedeemed BonusState = "reclamado"
	BonusExpired  BonusState = "vencido"
)

type BonusRecord struct {
	ID       BonusID
	ClientID ClientID
	State    BonusState

	CreatedAt TimePoint
	// ExpiresAt is optional. When zero the bonus expires 6 months after
	// CreatedAt.
	ExpiresAt TimePoint
	// RedeemedAt is set exactly once, on redemption.
	RedeemedAt TimePoint
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID   EmployeeID
	Name string
	Role string
	// CommissionRate is a percentage in [0, 100]. Snapshotted onto
	// commission records at invoice time; later changes never touch
	// historical records.
	CommissionRate decimal.Decimal
	Active         bool
	CreatedAt      TimePoint
}

// =============================================================================
// INVOICE - Line input and the frozen commission snapshot
// =============================================================================

// InvoiceLine is the caller-provided input for one invoice position.
// EmployeeID may be empty: the sale then carries no commission.
type InvoiceLine struct {
	Description string
	Quantity    int64
	UnitPrice   Money
	EmployeeID  EmployeeID
}

// CommissionRecord is the persisted form of an invoice line. LineTotal,
// RateSnapshot and CommissionAmount are frozen at invoice-finalization time
// and never recomputed.
type CommissionRecord struct {
	ID               CommissionID
	InvoiceID        InvoiceID
	EmployeeID       EmployeeID // empty for lines without staff attribution
	Description      string
	Quantity         int64
	UnitPrice        Money
	LineTotal        Money
	RateSnapshot     decimal.Decimal
	CommissionAmount Money
	CreatedAt        TimePoint
}

type Invoice struct {
	ID            InvoiceID
	ClientID      ClientID // empty for walk-ins
	Subtotal      Money
	Discount      Money
	Total         Money
	PaymentMethod string
	CreatedAt     TimePoint
	Lines         []CommissionRecord
}

// =============================================================================
// PAYMENT RECORD - Append-only commission payouts
// =============================================================================

type PaymentRecord struct {
	ID         PaymentID
	EmployeeID EmployeeID
	Amount     Money
	Note       string
	// IdempotencyKey makes a retried insert a duplicate-key error instead
	// of a double payment.
	IdempotencyKey string
	CreatedAt      TimePoint
}

// =============================================================================
// EMPLOYEE BALANCE - Derived, never stored
// =============================================================================

// EmployeeBalance is recomputed from commission and payment records on every
// read. There is no cached or incrementally-maintained copy to drift.
type EmployeeBalance struct {
	Employee        Employee
	SalesTotal      Money
	CommissionTotal Money
	PaidTotal       Money
	PendingBalance  Money // max(0, CommissionTotal - PaidTotal)
}

// =============================================================================
// APPOINTMENT
// =============================================================================

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "programada"
	AppointmentCompleted AppointmentStatus = "completada"
	AppointmentCancelled AppointmentStatus = "cancelada"
)

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "pagado"
	PaymentPending PaymentStatus = "pendiente"
)

type Appointment struct {
	ID        AppointmentID
	ClientID  ClientID
	At        TimePoint
	Service   string
	Status    AppointmentStatus
	PayStatus PaymentStatus
	CreatedAt TimePoint
}
