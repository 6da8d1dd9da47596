/*
Package commission computes, freezes, and settles staff sales commissions.

PURPOSE:
  Two coupled pieces:

  1. Snapshotting (this file): at invoice-finalization time, each line's
     commission is computed from the employee's CURRENT rate and frozen
     onto a CommissionRecord. Later rate changes never touch history.
  2. Settlement (settlement.go): per-employee balances are re-derived from
     all commission and payment records on every read, and payouts are
     appended against them.

SNAPSHOT RULES:
  - line_total         = quantity * unit_price
  - commission_amount  = line_total * rate_snapshot / 100
  - No employee on the line        -> rate 0, record still written (audit)
  - Employee reference not found   -> rate 0, checkout never blocks on a
                                      single bad reference
  - Plain decimal arithmetic; no currency rounding is enforced (see
    DESIGN.md open questions)

ATOMICITY:
  Finalize writes the invoice and every commission record in one store
  transaction. An invoice cannot exist with its commission records missing,
  and vice versa.

SEE ALSO:
  - settlement.go: Aggregation and payouts over the records written here
  - core/store.go: InvoiceStore / TxStore contracts
*/
package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solera/salon-engine/core"
)

// =============================================================================
// RATE LOOKUP
// =============================================================================

// RateLookup resolves an employee's current commission percentage.
// Implementations return core.ErrEmployeeNotFound for unknown ids; the
// snapshotter maps that to rate 0 rather than failing the invoice.
type RateLookup interface {
	CommissionRate(ctx context.Context, id core.EmployeeID) (decimal.Decimal, error)
}

// StoreRates adapts an EmployeeStore into a RateLookup.
type StoreRates struct {
	Employees core.EmployeeStore
}

func (s StoreRates) CommissionRate(ctx context.Context, id core.EmployeeID) (decimal.Decimal, error) {
	emp, err := s.Employees.GetEmployee(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return emp.CommissionRate, nil
}

// =============================================================================
// SNAPSHOTTER
// =============================================================================

// Snapshot freezes one invoice line into a commission record using the
// given rate. Pure; the rate has already been resolved.
func Snapshot(line core.InvoiceLine, rate decimal.Decimal, at core.TimePoint) core.CommissionRecord {
	lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
	return core.CommissionRecord{
		ID:               core.CommissionID(uuid.New().String()),
		EmployeeID:       line.EmployeeID,
		Description:      line.Description,
		Quantity:         line.Quantity,
		UnitPrice:        line.UnitPrice,
		LineTotal:        lineTotal,
		RateSnapshot:     rate,
		CommissionAmount: lineTotal.Percent(rate),
		CreatedAt:        at,
	}
}

// Snapshotter resolves rates and freezes invoice lines.
type Snapshotter struct {
	Rates RateLookup
}

// SnapshotLines produces one commission record per line. Lines without an
// employee reference, and lines whose employee cannot be found, snapshot
// at rate 0; the record is still produced for audit of the line. Store
// failures other than not-found propagate.
func (s *Snapshotter) SnapshotLines(ctx context.Context, lines []core.InvoiceLine, at core.TimePoint) ([]core.CommissionRecord, error) {
	records := make([]core.CommissionRecord, 0, len(lines))
	for _, line := range lines {
		rate := decimal.Zero
		if line.EmployeeID != "" {
			r, err := s.Rates.CommissionRate(ctx, line.EmployeeID)
			switch {
			case err == nil:
				rate = r
			case errors.Is(err, core.ErrEmployeeNotFound):
				// A single bad reference must not block checkout.
			default:
				return nil, fmt.Errorf("resolve rate for %s: %w", line.EmployeeID, err)
			}
		}
		records = append(records, Snapshot(line, rate, at))
	}
	return records, nil
}

// =============================================================================
// INVOICE FINALIZER
// =============================================================================

// FinalizeInput is the caller-provided invoice head plus its lines.
type FinalizeInput struct {
	ClientID      core.ClientID
	Discount      core.Money
	PaymentMethod string
	Lines         []core.InvoiceLine
}

// Finalizer writes invoices atomically with their commission snapshots.
type Finalizer struct {
	Store core.TxStore
	Rates RateLookup
}

func NewFinalizer(store core.TxStore) *Finalizer {
	return &Finalizer{
		Store: store,
		Rates: StoreRates{Employees: store},
	}
}

// Finalize snapshots every line and persists the invoice plus its
// commission records in a single transaction. Totals are derived from the
// lines: subtotal = sum of line totals, total = subtotal - discount.
func (f *Finalizer) Finalize(ctx context.Context, in FinalizeInput, now core.TimePoint) (core.Invoice, error) {
	if len(in.Lines) == 0 {
		return core.Invoice{}, &core.ValidationError{Field: "lines", Message: "invoice needs at least one line"}
	}
	if in.Discount.IsNegative() {
		return core.Invoice{}, &core.ValidationError{Field: "discount", Message: "must not be negative"}
	}
	for i, line := range in.Lines {
		if line.Quantity <= 0 {
			return core.Invoice{}, &core.ValidationError{Field: fmt.Sprintf("lines[%d].quantity", i), Message: "must be positive"}
		}
		if line.UnitPrice.IsNegative() {
			return core.Invoice{}, &core.ValidationError{Field: fmt.Sprintf("lines[%d].unit_price", i), Message: "must not be negative"}
		}
	}

	snap := Snapshotter{Rates: f.Rates}
	records, err := snap.SnapshotLines(ctx, in.Lines, now)
	if err != nil {
		return core.Invoice{}, err
	}

	inv := core.Invoice{
		ID:            core.InvoiceID(uuid.New().String()),
		ClientID:      in.ClientID,
		Discount:      in.Discount,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     now,
	}
	if inv.PaymentMethod == "" {
		inv.PaymentMethod = "Efectivo"
	}

	subtotal := core.ZeroMoney()
	for i := range records {
		records[i].InvoiceID = inv.ID
		subtotal = subtotal.Add(records[i].LineTotal)
	}
	if in.Discount.GreaterThan(subtotal) {
		return core.Invoice{}, &core.ValidationError{Field: "discount", Message: "must not exceed the subtotal"}
	}
	inv.Subtotal = subtotal
	inv.Total = subtotal.Sub(in.Discount)
	inv.Lines = records

	err = f.Store.WithTx(ctx, func(s core.Store) error {
		return s.SaveInvoice(ctx, inv)
	})
	if err != nil {
		return core.Invoice{}, fmt.Errorf("finalize invoice: %w", err)
	}
	return inv, nil
}
