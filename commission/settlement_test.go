package commission_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solera/salon-engine/commission"
	"github.com/solera/salon-engine/core"
	"github.com/solera/salon-engine/core/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newSettlementFixture seeds a single stylist at 30% with one 100000 sale,
// leaving a commission of 30000.
func newSettlementFixture(t *testing.T) (*commission.SettlementEngine, *store.MemoryStore) {
	ctx := context.Background()
	mem := newStoreWithStylist(t, 30)

	finalizer := commission.NewFinalizer(mem)
	_, err := finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines: []core.InvoiceLine{
			{Description: "Tinte completo", Quantity: 2, UnitPrice: money(50000), EmployeeID: "emp-valentina"},
		},
	}, day(2024, time.May, 1))
	require.NoError(t, err)

	return commission.NewSettlementEngine(mem), mem
}

func balanceOf(t *testing.T, e *commission.SettlementEngine, id core.EmployeeID) core.EmployeeBalance {
	bal, err := e.ComputeBalance(context.Background(), id)
	require.NoError(t, err)
	return bal
}

// =============================================================================
// BALANCE DERIVATION
// =============================================================================

func TestComputeBalance_DerivesFromRecords(t *testing.T) {
	// GIVEN: 100000 in sales at 30%, 20000 already paid
	// THEN: pending = 10000

	engine, _ := newSettlementFixture(t)
	ctx := context.Background()

	_, err := engine.Pay(ctx, commission.PaymentRequest{
		EmployeeID: "emp-valentina",
		Amount:     money(20000),
	}, day(2024, time.May, 2))
	require.NoError(t, err)

	bal := balanceOf(t, engine, "emp-valentina")
	assert.True(t, bal.SalesTotal.Equal(money(100000)))
	assert.True(t, bal.CommissionTotal.Equal(money(30000)))
	assert.True(t, bal.PaidTotal.Equal(money(20000)))
	assert.True(t, bal.PendingBalance.Equal(money(10000)))
}

func TestComputeBalance_OverpaymentFloorsAtZero(t *testing.T) {
	// GIVEN: Commission of 30000, a payout of 50000
	// THEN: pending = 0, not -20000

	engine, _ := newSettlementFixture(t)

	_, err := engine.Pay(context.Background(), commission.PaymentRequest{
		EmployeeID: "emp-valentina",
		Amount:     money(50000),
	}, day(2024, time.May, 2))
	require.NoError(t, err)

	bal := balanceOf(t, engine, "emp-valentina")
	assert.True(t, bal.PendingBalance.IsZero())
	assert.True(t, bal.PaidTotal.Equal(money(50000)))
}

func TestComputeBalances_SkipsUnattributedRecords(t *testing.T) {
	// GIVEN: An invoice whose only line carries no employee
	// THEN: Nobody's balance moves

	ctx := context.Background()
	mem := newStoreWithStylist(t, 30)
	finalizer := commission.NewFinalizer(mem)
	_, err := finalizer.Finalize(ctx, commission.FinalizeInput{
		Lines: []core.InvoiceLine{
			{Description: "Shampoo premium", Quantity: 1, UnitPrice: money(18000)},
		},
	}, day(2024, time.May, 1))
	require.NoError(t, err)

	engine := commission.NewSettlementEngine(mem)
	balances, err := engine.ComputeBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].SalesTotal.IsZero())
	assert.True(t, balances[0].PendingBalance.IsZero())
}

func TestComputeBalances_RepeatedReadsAreStable(t *testing.T) {
	// Balance derivation has no side effects; reading twice gives the
	// same numbers.

	engine, _ := newSettlementFixture(t)
	ctx := context.Background()

	first, err := engine.ComputeBalances(ctx)
	require.NoError(t, err)
	second, err := engine.ComputeBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// =============================================================================
// SINGLE PAYOUTS
// =============================================================================

func TestPay_DefaultsNoteAndGeneratesKey(t *testing.T) {
	engine, _ := newSettlementFixture(t)
	paidAt := day(2024, time.May, 2)

	rec, err := engine.Pay(context.Background(), commission.PaymentRequest{
		EmployeeID: "emp-valentina",
		Amount:     money(10000),
	}, paidAt)
	require.NoError(t, err)
	assert.Equal(t, "Pago manual", rec.Note)
	assert.NotEmpty(t, rec.IdempotencyKey)
	assert.True(t, rec.CreatedAt.Equal(paidAt))
}

func TestPay_RejectsNonPositiveAmounts(t *testing.T) {
	engine, _ := newSettlementFixture(t)
	ctx := context.Background()

	_, err := engine.Pay(ctx, commission.PaymentRequest{EmployeeID: "emp-valentina", Amount: money(0)}, day(2024, time.May, 2))
	assert.True(t, core.IsClientError(err))

	_, err = engine.Pay(ctx, commission.PaymentRequest{EmployeeID: "emp-valentina", Amount: money(-5)}, day(2024, time.May, 2))
	assert.True(t, core.IsClientError(err))
}

func TestPay_UnknownEmployee_NotFound(t *testing.T) {
	engine, _ := newSettlementFixture(t)

	_, err := engine.Pay(context.Background(), commission.PaymentRequest{
		EmployeeID: "emp-ghost",
		Amount:     money(100),
	}, day(2024, time.May, 2))
	assert.ErrorIs(t, err, core.ErrEmployeeNotFound)
}

func TestPay_DuplicateIdempotencyKey_Conflicts(t *testing.T) {
	// GIVEN: A payment recorded under a client-supplied key
	// WHEN: Retrying with the same key
	// THEN: ErrDuplicateIdempotencyKey; the balance moves only once

	engine, _ := newSettlementFixture(t)
	ctx := context.Background()

	req := commission.PaymentRequest{
		EmployeeID:     "emp-valentina",
		Amount:         money(10000),
		IdempotencyKey: "pay-attempt-1",
	}
	_, err := engine.Pay(ctx, req, day(2024, time.May, 2))
	require.NoError(t, err)

	_, err = engine.Pay(ctx, req, day(2024, time.May, 3))
	assert.ErrorIs(t, err, core.ErrDuplicateIdempotencyKey)

	bal := balanceOf(t, engine, "emp-valentina")
	assert.True(t, bal.PaidTotal.Equal(money(10000)))
}

// =============================================================================
// BULK SETTLEMENT
// =============================================================================

func TestPayAll_SettlesEveryPositiveBalanceOnce(t *testing.T) {
	// GIVEN: One stylist owed 30000
	// WHEN: PayAll runs, then runs again immediately
	// THEN: First run pays 30000; second run pays nothing

	engine, _ := newSettlementFixture(t)
	ctx := context.Background()

	settledAt := day(2024, time.May, 31)
	payouts, err := engine.PayAll(ctx, settledAt)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].Amount.Equal(money(30000)))
	assert.Equal(t, "Liquidación masiva", payouts[0].Note)
	assert.True(t, payouts[0].CreatedAt.Equal(settledAt))

	again, err := engine.PayAll(ctx, settledAt.AddDays(1))
	require.NoError(t, err)
	assert.Empty(t, again)

	bal := balanceOf(t, engine, "emp-valentina")
	assert.True(t, bal.PendingBalance.IsZero())
}

func TestPayAll_SkipsSettledEmployees(t *testing.T) {
	// GIVEN: A second employee with no commission records
	// WHEN: PayAll runs
	// THEN: Only the employee with a positive balance is paid

	engine, mem := newSettlementFixture(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveEmployee(ctx, core.Employee{
		ID:        "emp-lucia",
		Name:      "Lucía Paredes",
		Active:    true,
		CreatedAt: day(2024, time.January, 1),
	}))

	payouts, err := engine.PayAll(ctx, day(2024, time.May, 31))
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, core.EmployeeID("emp-valentina"), payouts[0].EmployeeID)
}

func TestPayAll_ConcurrentWithPay_NeverDoublePays(t *testing.T) {
	// GIVEN: Pay and PayAll racing on the same balance
	// WHEN: Both complete
	// THEN: paid_total never exceeds commission_total + the manual amount,
	//       and the pending balance ends at zero

	engine, _ := newSettlementFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.Pay(ctx, commission.PaymentRequest{
			EmployeeID: "emp-valentina",
			Amount:     money(5000),
		}, day(2024, time.May, 31))
	}()
	go func() {
		defer wg.Done()
		engine.PayAll(ctx, day(2024, time.May, 31))
	}()
	wg.Wait()

	bal := balanceOf(t, engine, "emp-valentina")
	assert.True(t, bal.PendingBalance.IsZero())
	assert.False(t, bal.PaidTotal.GreaterThan(money(35000)),
		"paid %s exceeds every serializable outcome", bal.PaidTotal)
}
