/*
settlement.go - Per-employee commission settlement

PURPOSE:
  Aggregates every commission record and every payment record into one
  balance per employee, and appends payouts against it. The balance is
  re-derived from source records on every read - there is no cached copy
  to drift - so correctness comes from the records alone.

BALANCE FORMULA:
  sales_total      = sum of line_total over the employee's records
  commission_total = sum of commission_amount
  paid_total       = sum of amount_paid
  pending_balance  = max(0, commission_total - paid_total)

OVERPAYMENT:
  Pay() does not validate amount <= pending_balance. Overpayment drives
  the pending balance to its floor of zero; the excess is absorbed, not
  tracked as a credit. Inherited behavior, flagged in DESIGN.md.

CONCURRENCY:
  Two overlapping settlements reading the same pre-payment balance would
  both pay it. The engine serializes settlement: Pay() holds a
  per-employee lock, PayAll() holds the engine-wide lock excluding every
  Pay(). Payments also carry idempotency keys, so a retried insert is a
  duplicate-key error rather than a double payout.

SEE ALSO:
  - snapshot.go: Where commission records come from
  - core/store.go: PaymentStore append-only contract
*/
package commission

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/solera/salon-engine/core"
)

// =============================================================================
// SETTLEMENT ENGINE
// =============================================================================

type SettlementEngine struct {
	Store core.TxStore

	// settleMu excludes PayAll from every single-employee Pay; perEmployee
	// serializes Pay calls targeting the same employee.
	settleMu    sync.RWMutex
	perEmployee sync.Map // core.EmployeeID -> *sync.Mutex
}

func NewSettlementEngine(store core.TxStore) *SettlementEngine {
	return &SettlementEngine{Store: store}
}

func (e *SettlementEngine) employeeLock(id core.EmployeeID) *sync.Mutex {
	mu, _ := e.perEmployee.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// =============================================================================
// BALANCE COMPUTATION - Read-only, safe to call repeatedly
// =============================================================================

// ComputeBalances derives the balance of every employee from the full set
// of commission and payment records. No side effects.
func (e *SettlementEngine) ComputeBalances(ctx context.Context) ([]core.EmployeeBalance, error) {
	employees, err := e.Store.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	records, err := e.Store.ListCommissionRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commission records: %w", err)
	}

	payments, err := e.Store.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	type totals struct {
		sales      core.Money
		commission core.Money
		paid       core.Money
	}
	byEmployee := make(map[core.EmployeeID]*totals, len(employees))
	for _, emp := range employees {
		byEmployee[emp.ID] = &totals{
			sales:      core.ZeroMoney(),
			commission: core.ZeroMoney(),
			paid:       core.ZeroMoney(),
		}
	}

	for _, rec := range records {
		t, ok := byEmployee[rec.EmployeeID]
		if !ok {
			// Lines without staff attribution, or records of deleted
			// employees, do not contribute to anyone's balance.
			continue
		}
		t.sales = t.sales.Add(rec.LineTotal)
		t.commission = t.commission.Add(rec.CommissionAmount)
	}

	for _, p := range payments {
		if t, ok := byEmployee[p.EmployeeID]; ok {
			t.paid = t.paid.Add(p.Amount)
		}
	}

	balances := make([]core.EmployeeBalance, 0, len(employees))
	for _, emp := range employees {
		t := byEmployee[emp.ID]
		balances = append(balances, core.EmployeeBalance{
			Employee:        emp,
			SalesTotal:      t.sales,
			CommissionTotal: t.commission,
			PaidTotal:       t.paid,
			PendingBalance:  t.commission.Sub(t.paid).FloorZero(),
		})
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].Employee.Name < balances[j].Employee.Name
	})
	return balances, nil
}

// ComputeBalance derives a single employee's balance.
func (e *SettlementEngine) ComputeBalance(ctx context.Context, id core.EmployeeID) (core.EmployeeBalance, error) {
	emp, err := e.Store.GetEmployee(ctx, id)
	if err != nil {
		return core.EmployeeBalance{}, err
	}

	records, err := e.Store.ListCommissionRecordsByEmployee(ctx, id)
	if err != nil {
		return core.EmployeeBalance{}, fmt.Errorf("list commission records: %w", err)
	}
	payments, err := e.Store.ListPaymentsByEmployee(ctx, id)
	if err != nil {
		return core.EmployeeBalance{}, fmt.Errorf("list payments: %w", err)
	}

	bal := core.EmployeeBalance{
		Employee:        emp,
		SalesTotal:      core.ZeroMoney(),
		CommissionTotal: core.ZeroMoney(),
		PaidTotal:       core.ZeroMoney(),
	}
	for _, rec := range records {
		bal.SalesTotal = bal.SalesTotal.Add(rec.LineTotal)
		bal.CommissionTotal = bal.CommissionTotal.Add(rec.CommissionAmount)
	}
	for _, p := range payments {
		bal.PaidTotal = bal.PaidTotal.Add(p.Amount)
	}
	bal.PendingBalance = bal.CommissionTotal.Sub(bal.PaidTotal).FloorZero()
	return bal, nil
}

// =============================================================================
// PAYOUTS
// =============================================================================

// PaymentRequest describes one payout. IdempotencyKey is optional: when
// the caller supplies one, retrying the same request cannot double-pay;
// when empty a fresh key is generated.
type PaymentRequest struct {
	EmployeeID     core.EmployeeID
	Amount         core.Money
	Note           string
	IdempotencyKey string
}

// Pay appends one payment record for the employee. The amount is not
// checked against the pending balance: overpayment is permitted and
// absorbed by the balance floor.
func (e *SettlementEngine) Pay(ctx context.Context, req PaymentRequest, now core.TimePoint) (core.PaymentRecord, error) {
	if !req.Amount.IsPositive() {
		return core.PaymentRecord{}, &core.ValidationError{Field: "amount", Message: "must be positive"}
	}

	e.settleMu.RLock()
	defer e.settleMu.RUnlock()
	mu := e.employeeLock(req.EmployeeID)
	mu.Lock()
	defer mu.Unlock()

	// A payment against a missing employee must fail, unlike the
	// snapshot path which degrades to rate 0.
	if _, err := e.Store.GetEmployee(ctx, req.EmployeeID); err != nil {
		return core.PaymentRecord{}, err
	}

	rec := e.newPayment(req, now)
	if rec.Note == "" {
		rec.Note = "Pago manual"
	}
	if err := e.Store.AppendPayment(ctx, rec); err != nil {
		return core.PaymentRecord{}, fmt.Errorf("append payment: %w", err)
	}
	return rec, nil
}

// PayAll settles every employee with a positive pending balance in one
// atomic batch: either every payment record is written or none are.
// Calling it twice in immediate succession leaves the second call with
// nothing to pay.
func (e *SettlementEngine) PayAll(ctx context.Context, now core.TimePoint) ([]core.PaymentRecord, error) {
	e.settleMu.Lock()
	defer e.settleMu.Unlock()

	balances, err := e.ComputeBalances(ctx)
	if err != nil {
		return nil, err
	}

	var payouts []core.PaymentRecord
	for _, bal := range balances {
		if !bal.PendingBalance.IsPositive() {
			continue
		}
		payouts = append(payouts, e.newPayment(PaymentRequest{
			EmployeeID: bal.Employee.ID,
			Amount:     bal.PendingBalance,
			Note:       "Liquidación masiva",
		}, now))
	}
	if len(payouts) == 0 {
		return nil, nil
	}

	err = e.Store.WithTx(ctx, func(s core.Store) error {
		for _, p := range payouts {
			if err := s.AppendPayment(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("settle all: %w", err)
	}
	return payouts, nil
}

func (e *SettlementEngine) newPayment(req PaymentRequest, at core.TimePoint) core.PaymentRecord {
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}
	return core.PaymentRecord{
		ID:             core.PaymentID(uuid.New().String()),
		EmployeeID:     req.EmployeeID,
		Amount:         req.Amount,
		Note:           req.Note,
		IdempotencyKey: key,
		CreatedAt:      at,
	}
}
