package commission_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solera/salon-engine/commission"
	"github.com/solera/salon-engine/core"
	"github.com/solera/salon-engine/core/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(year int, month time.Month, d int) core.TimePoint {
	return core.NewTimePoint(year, month, d)
}

func money(v int64) core.Money {
	return core.NewMoneyFromInt(v)
}

func rate(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func newStoreWithStylist(t *testing.T, commissionRate int64) *store.MemoryStore {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SaveEmployee(context.Background(), core.Employee{
		ID:             "emp-valentina",
		Name:           "Valentina Ríos",
		Role:           "estilista",
		CommissionRate: rate(commissionRate),
		Active:         true,
		CreatedAt:      day(2024, time.January, 1),
	}))
	return mem
}

// =============================================================================
// PURE SNAPSHOT TESTS
// =============================================================================

func TestSnapshot_ComputesLineTotalAndCommission(t *testing.T) {
	// GIVEN: Quantity 2 at 50000 each, employee at 30%
	// WHEN: Snapshotting
	// THEN: line_total 100000, commission 30000

	line := core.InvoiceLine{
		Description: "Corte y peinado",
		Quantity:    2,
		UnitPrice:   money(50000),
		EmployeeID:  "emp-valentina",
	}

	rec := commission.Snapshot(line, rate(30), day(2024, time.May, 1))
	assert.True(t, rec.LineTotal.Equal(money(100000)), "line total = %s", rec.LineTotal)
	assert.True(t, rec.CommissionAmount.Equal(money(30000)), "commission = %s", rec.CommissionAmount)
	assert.True(t, rec.RateSnapshot.Equal(rate(30)))
}

func TestSnapshot_ZeroRate_ZeroCommission(t *testing.T) {
	line := core.InvoiceLine{Description: "Producto", Quantity: 1, UnitPrice: money(18000)}

	rec := commission.Snapshot(line, decimal.Zero, day(2024, time.May, 1))
	assert.True(t, rec.CommissionAmount.IsZero())
	assert.True(t, rec.LineTotal.Equal(money(18000)))
}

func TestSnapshot_FractionalRate_KeepsDecimalPrecision(t *testing.T) {
	// GIVEN: 12.5% of 10000
	// THEN: Exactly 1250, no float drift

	line := core.InvoiceLine{Description: "Manicure", Quantity: 1, UnitPrice: money(10000)}

	rec := commission.Snapshot(line, decimal.NewFromFloat(12.5), day(2024, time.May, 1))
	assert.True(t, rec.CommissionAmount.Equal(money(1250)), "commission = %s", rec.CommissionAmount)
}

// =============================================================================
// RATE RESOLUTION
// =============================================================================

func TestSnapshotLines_MissingEmployee_DegradesToRateZero(t *testing.T) {
	// GIVEN: A line referencing an employee that does not exist
	// WHEN: Snapshotting
	// THEN: The record is still produced, at rate 0

	mem := store.NewMemoryStore()
	snap := commission.Snapshotter{Rates: commission.StoreRates{Employees: mem}}

	records, err := snap.SnapshotLines(context.Background(), []core.InvoiceLine{
		{Description: "Corte", Quantity: 1, UnitPrice: money(50000), EmployeeID: "emp-ghost"},
	}, day(2024, time.May, 1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].RateSnapshot.IsZero())
	assert.True(t, records[0].CommissionAmount.IsZero())
	assert.Equal(t, core.EmployeeID("emp-ghost"), records[0].EmployeeID)
}

func TestSnapshotLines_NoEmployee_RateZero(t *testing.T) {
	mem := newStoreWithStylist(t, 30)
	snap := commission.Snapshotter{Rates: commission.StoreRates{Employees: mem}}

	records, err := snap.SnapshotLines(context.Background(), []core.InvoiceLine{
		{Description: "Shampoo premium", Quantity: 2, UnitPrice: money(18000)},
	}, day(2024, time.May, 1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].CommissionAmount.IsZero())
}

// =============================================================================
// SNAPSHOT IMMUTABILITY
// =============================================================================

func TestFinalize_RateChangeDoesNotTouchHistory(t *testing.T) {
	// GIVEN: An invoice finalized while the stylist earns 30%
	// WHEN: The rate later changes to 50% and a second invoice is written
	// THEN: The first invoice's records keep 30%; only new records use 50%

	ctx := context.Background()
	mem := newStoreWithStylist(t, 30)
	finalizer := commission.NewFinalizer(mem)

	first, err := finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines: []core.InvoiceLine{
			{Description: "Corte", Quantity: 1, UnitPrice: money(50000), EmployeeID: "emp-valentina"},
		},
	}, day(2024, time.May, 1))
	require.NoError(t, err)

	// Rate change
	emp, err := mem.GetEmployee(ctx, "emp-valentina")
	require.NoError(t, err)
	emp.CommissionRate = rate(50)
	require.NoError(t, mem.SaveEmployee(ctx, emp))

	second, err := finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines: []core.InvoiceLine{
			{Description: "Corte", Quantity: 1, UnitPrice: money(50000), EmployeeID: "emp-valentina"},
		},
	}, day(2024, time.June, 1))
	require.NoError(t, err)

	stored, err := mem.GetInvoice(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, stored.Lines[0].RateSnapshot.Equal(rate(30)))
	assert.True(t, stored.Lines[0].CommissionAmount.Equal(money(15000)))
	assert.True(t, second.Lines[0].RateSnapshot.Equal(rate(50)))
	assert.True(t, second.Lines[0].CommissionAmount.Equal(money(25000)))
}

// =============================================================================
// FINALIZATION
// =============================================================================

func TestFinalize_DerivesTotalsAndDefaults(t *testing.T) {
	// GIVEN: Two lines and a discount
	// WHEN: Finalizing without a payment method
	// THEN: subtotal = sum of lines, total = subtotal - discount,
	//       payment method defaults to Efectivo

	ctx := context.Background()
	mem := newStoreWithStylist(t, 30)
	finalizer := commission.NewFinalizer(mem)

	inv, err := finalizer.Finalize(ctx, commission.FinalizeInput{
		ClientID: "cli-1",
		Discount: money(10000),
		Lines: []core.InvoiceLine{
			{Description: "Corte", Quantity: 1, UnitPrice: money(50000), EmployeeID: "emp-valentina"},
			{Description: "Shampoo premium", Quantity: 2, UnitPrice: money(18000)},
		},
	}, day(2024, time.May, 1))
	require.NoError(t, err)

	assert.True(t, inv.Subtotal.Equal(money(86000)), "subtotal = %s", inv.Subtotal)
	assert.True(t, inv.Total.Equal(money(76000)), "total = %s", inv.Total)
	assert.Equal(t, "Efectivo", inv.PaymentMethod)
	require.Len(t, inv.Lines, 2)
	for _, line := range inv.Lines {
		assert.Equal(t, inv.ID, line.InvoiceID)
	}
}

func TestFinalize_RejectsEmptyAndMalformedLines(t *testing.T) {
	ctx := context.Background()
	mem := newStoreWithStylist(t, 30)
	finalizer := commission.NewFinalizer(mem)

	_, err := finalizer.Finalize(ctx, commission.FinalizeInput{}, day(2024, time.May, 1))
	assert.True(t, core.IsClientError(err), "empty lines: %v", err)

	_, err = finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines: []core.InvoiceLine{{Description: "Corte", Quantity: 0, UnitPrice: money(100)}},
	}, day(2024, time.May, 1))
	assert.True(t, core.IsClientError(err), "zero quantity: %v", err)

	_, err = finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines: []core.InvoiceLine{{Description: "Corte", Quantity: 1, UnitPrice: money(-1)}},
	}, day(2024, time.May, 1))
	assert.True(t, core.IsClientError(err), "negative price: %v", err)

	// Rejected finalizations leave nothing behind
	records, err := mem.ListCommissionRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFinalize_RejectsDiscountBeyondSubtotal(t *testing.T) {
	// GIVEN: A 50000 invoice
	// WHEN: Finalizing with a 60000 discount, then with a negative one
	// THEN: Both are rejected; the total can never go below zero

	ctx := context.Background()
	mem := newStoreWithStylist(t, 30)
	finalizer := commission.NewFinalizer(mem)

	lines := []core.InvoiceLine{
		{Description: "Corte", Quantity: 1, UnitPrice: money(50000), EmployeeID: "emp-valentina"},
	}

	_, err := finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines:    lines,
		Discount: money(60000),
	}, day(2024, time.May, 1))
	assert.True(t, core.IsClientError(err), "oversized discount: %v", err)

	_, err = finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines:    lines,
		Discount: money(-100),
	}, day(2024, time.May, 1))
	assert.True(t, core.IsClientError(err), "negative discount: %v", err)

	records, err := mem.ListCommissionRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// A discount equal to the subtotal is the boundary and stays valid.
	inv, err := finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines:    lines,
		Discount: money(50000),
	}, day(2024, time.May, 1))
	require.NoError(t, err)
	assert.True(t, inv.Total.IsZero())
}

func TestFinalize_WritesRecordsAtomicallyWithInvoice(t *testing.T) {
	// GIVEN: A finalized invoice
	// WHEN: Listing commission records
	// THEN: Records exist exactly for the invoice's lines

	ctx := context.Background()
	mem := newStoreWithStylist(t, 30)
	finalizer := commission.NewFinalizer(mem)

	inv, err := finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines: []core.InvoiceLine{
			{Description: "Corte", Quantity: 1, UnitPrice: money(50000), EmployeeID: "emp-valentina"},
		},
	}, day(2024, time.May, 1))
	require.NoError(t, err)

	records, err := mem.ListCommissionRecordsByEmployee(ctx, "emp-valentina")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, inv.ID, records[0].InvoiceID)
}
