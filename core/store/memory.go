/*
Package store provides an in-memory implementation of core.TxStore.

PURPOSE:
  Reference implementation of the persistence interfaces, useful for
  tests and demos. Production deployments use store/sqlite.

CONCURRENCY:
  A single RWMutex guards every collection. WithTx snapshots all
  collections up front and restores them if the callback fails, which
  gives the same all-or-nothing behavior as a database transaction.

SEE ALSO:
  - core/store.go: Interface definitions
  - store/sqlite: Durable implementation with the same semantics
*/
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/solera/salon-engine/core"
)

// MemoryStore implements core.TxStore with in-memory maps.
type MemoryStore struct {
	mu           sync.RWMutex
	clients      map[core.ClientID]core.Client
	bonuses      map[core.BonusID]core.BonusRecord
	employees    map[core.EmployeeID]core.Employee
	invoices     map[core.InvoiceID]core.Invoice
	records      []core.CommissionRecord
	payments     []core.PaymentRecord
	paymentKeys  map[string]struct{}
	appointments map[core.AppointmentID]core.Appointment
}

var _ core.TxStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:      make(map[core.ClientID]core.Client),
		bonuses:      make(map[core.BonusID]core.BonusRecord),
		employees:    make(map[core.EmployeeID]core.Employee),
		invoices:     make(map[core.InvoiceID]core.Invoice),
		paymentKeys:  make(map[string]struct{}),
		appointments: make(map[core.AppointmentID]core.Appointment),
	}
}

// =============================================================================
// CLIENTS
// =============================================================================

func (m *MemoryStore) SaveClient(ctx context.Context, c core.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
	return nil
}

func (m *MemoryStore) GetClient(ctx context.Context, id core.ClientID) (core.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return core.Client{}, core.ErrClientNotFound
	}
	return c, nil
}

func (m *MemoryStore) ListClients(ctx context.Context) ([]core.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]core.Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].CreatedAt.After(clients[j].CreatedAt)
	})
	return clients, nil
}

func (m *MemoryStore) DeleteClient(ctx context.Context, id core.ClientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[id]; !ok {
		return core.ErrClientNotFound
	}
	delete(m.clients, id)
	// Cascade, matching the SQLite foreign key behavior.
	for bid, b := range m.bonuses {
		if b.ClientID == id {
			delete(m.bonuses, bid)
		}
	}
	return nil
}

// =============================================================================
// BONUSES
// =============================================================================

func (m *MemoryStore) SaveBonus(ctx context.Context, b core.BonusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bonuses[b.ID] = b
	return nil
}

func (m *MemoryStore) GetBonus(ctx context.Context, id core.BonusID) (core.BonusRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bonuses[id]
	if !ok {
		return core.BonusRecord{}, core.ErrBonusNotFound
	}
	return b, nil
}

func (m *MemoryStore) ListBonusesByClient(ctx context.Context, clientID core.ClientID) ([]core.BonusRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var bonuses []core.BonusRecord
	for _, b := range m.bonuses {
		if b.ClientID == clientID {
			bonuses = append(bonuses, b)
		}
	}
	sort.Slice(bonuses, func(i, j int) bool {
		return bonuses[i].CreatedAt.After(bonuses[j].CreatedAt)
	})
	return bonuses, nil
}

// MarkRedeemed applies the Pending -> Redeemed transition under the write
// lock. A bonus already out of Pending reports changed == false.
func (m *MemoryStore) MarkRedeemed(ctx context.Context, id core.BonusID, at core.TimePoint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bonuses[id]
	if !ok {
		return false, core.ErrBonusNotFound
	}
	if b.State != core.BonusPending {
		return false, nil
	}
	b.State = core.BonusRedeemed
	b.RedeemedAt = at
	m.bonuses[id] = b
	return true, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *MemoryStore) SaveEmployee(ctx context.Context, e core.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *MemoryStore) GetEmployee(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return core.Employee{}, core.ErrEmployeeNotFound
	}
	return e, nil
}

func (m *MemoryStore) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	employees := make([]core.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		employees = append(employees, e)
	}
	sort.Slice(employees, func(i, j int) bool {
		return employees[i].Name < employees[j].Name
	})
	return employees, nil
}

// =============================================================================
// INVOICES & COMMISSION RECORDS
// =============================================================================

func (m *MemoryStore) SaveInvoice(ctx context.Context, inv core.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = inv
	m.records = append(m.records, inv.Lines...)
	return nil
}

func (m *MemoryStore) GetInvoice(ctx context.Context, id core.InvoiceID) (core.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return core.Invoice{}, core.ErrInvoiceNotFound
	}
	return inv, nil
}

func (m *MemoryStore) ListCommissionRecords(ctx context.Context) ([]core.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]core.CommissionRecord, len(m.records))
	copy(records, m.records)
	return records, nil
}

func (m *MemoryStore) ListCommissionRecordsByEmployee(ctx context.Context, id core.EmployeeID) ([]core.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []core.CommissionRecord
	for _, rec := range m.records {
		if rec.EmployeeID == id {
			records = append(records, rec)
		}
	}
	return records, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *MemoryStore) AppendPayment(ctx context.Context, p core.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendPaymentLocked(p)
}

func (m *MemoryStore) appendPaymentLocked(p core.PaymentRecord) error {
	if p.IdempotencyKey != "" {
		if _, seen := m.paymentKeys[p.IdempotencyKey]; seen {
			return core.ErrDuplicateIdempotencyKey
		}
		m.paymentKeys[p.IdempotencyKey] = struct{}{}
	}
	m.payments = append(m.payments, p)
	return nil
}

func (m *MemoryStore) ListPayments(ctx context.Context) ([]core.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payments := make([]core.PaymentRecord, len(m.payments))
	copy(payments, m.payments)
	return payments, nil
}

func (m *MemoryStore) ListPaymentsByEmployee(ctx context.Context, id core.EmployeeID) ([]core.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var payments []core.PaymentRecord
	for _, p := range m.payments {
		if p.EmployeeID == id {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

func (m *MemoryStore) SaveAppointment(ctx context.Context, a core.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments[a.ID] = a
	return nil
}

func (m *MemoryStore) GetAppointment(ctx context.Context, id core.AppointmentID) (core.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return core.Appointment{}, core.ErrAppointmentNotFound
	}
	return a, nil
}

func (m *MemoryStore) ListAppointments(ctx context.Context, from, to core.TimePoint) ([]core.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var appointments []core.Appointment
	for _, a := range m.appointments {
		if a.At.AfterOrEqual(from) && a.At.BeforeOrEqual(to) {
			appointments = append(appointments, a)
		}
	}
	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].At.Before(appointments[j].At)
	})
	return appointments, nil
}

func (m *MemoryStore) DeleteAppointment(ctx context.Context, id core.AppointmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appointments[id]; !ok {
		return core.ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn atomically. Collections are snapshotted before the
// callback runs and restored on failure, so a partial write batch never
// survives an error.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(core.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshotLocked()
	if err := fn(&memoryTx{store: m}); err != nil {
		m.restoreLocked(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	clients      map[core.ClientID]core.Client
	bonuses      map[core.BonusID]core.BonusRecord
	employees    map[core.EmployeeID]core.Employee
	invoices     map[core.InvoiceID]core.Invoice
	records      []core.CommissionRecord
	payments     []core.PaymentRecord
	paymentKeys  map[string]struct{}
	appointments map[core.AppointmentID]core.Appointment
}

func (m *MemoryStore) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{
		clients:      make(map[core.ClientID]core.Client, len(m.clients)),
		bonuses:      make(map[core.BonusID]core.BonusRecord, len(m.bonuses)),
		employees:    make(map[core.EmployeeID]core.Employee, len(m.employees)),
		invoices:     make(map[core.InvoiceID]core.Invoice, len(m.invoices)),
		records:      make([]core.CommissionRecord, len(m.records)),
		payments:     make([]core.PaymentRecord, len(m.payments)),
		paymentKeys:  make(map[string]struct{}, len(m.paymentKeys)),
		appointments: make(map[core.AppointmentID]core.Appointment, len(m.appointments)),
	}
	for k, v := range m.clients {
		snap.clients[k] = v
	}
	for k, v := range m.bonuses {
		snap.bonuses[k] = v
	}
	for k, v := range m.employees {
		snap.employees[k] = v
	}
	for k, v := range m.invoices {
		snap.invoices[k] = v
	}
	copy(snap.records, m.records)
	copy(snap.payments, m.payments)
	for k := range m.paymentKeys {
		snap.paymentKeys[k] = struct{}{}
	}
	for k, v := range m.appointments {
		snap.appointments[k] = v
	}
	return snap
}

func (m *MemoryStore) restoreLocked(snap memorySnapshot) {
	m.clients = snap.clients
	m.bonuses = snap.bonuses
	m.employees = snap.employees
	m.invoices = snap.invoices
	m.records = snap.records
	m.payments = snap.payments
	m.paymentKeys = snap.paymentKeys
	m.appointments = snap.appointments
}

// memoryTx is the view handed to WithTx callbacks. The parent lock is
// already held, so it touches the maps directly.
type memoryTx struct {
	store *MemoryStore
}

var _ core.Store = (*memoryTx)(nil)

func (t *memoryTx) SaveClient(ctx context.Context, c core.Client) error {
	t.store.clients[c.ID] = c
	return nil
}

func (t *memoryTx) GetClient(ctx context.Context, id core.ClientID) (core.Client, error) {
	c, ok := t.store.clients[id]
	if !ok {
		return core.Client{}, core.ErrClientNotFound
	}
	return c, nil
}

func (t *memoryTx) ListClients(ctx context.Context) ([]core.Client, error) {
	clients := make([]core.Client, 0, len(t.store.clients))
	for _, c := range t.store.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].CreatedAt.After(clients[j].CreatedAt)
	})
	return clients, nil
}

func (t *memoryTx) DeleteClient(ctx context.Context, id core.ClientID) error {
	if _, ok := t.store.clients[id]; !ok {
		return core.ErrClientNotFound
	}
	delete(t.store.clients, id)
	for bid, b := range t.store.bonuses {
		if b.ClientID == id {
			delete(t.store.bonuses, bid)
		}
	}
	return nil
}

func (t *memoryTx) SaveBonus(ctx context.Context, b core.BonusRecord) error {
	t.store.bonuses[b.ID] = b
	return nil
}

func (t *memoryTx) GetBonus(ctx context.Context, id core.BonusID) (core.BonusRecord, error) {
	b, ok := t.store.bonuses[id]
	if !ok {
		return core.BonusRecord{}, core.ErrBonusNotFound
	}
	return b, nil
}

func (t *memoryTx) ListBonusesByClient(ctx context.Context, clientID core.ClientID) ([]core.BonusRecord, error) {
	var bonuses []core.BonusRecord
	for _, b := range t.store.bonuses {
		if b.ClientID == clientID {
			bonuses = append(bonuses, b)
		}
	}
	sort.Slice(bonuses, func(i, j int) bool {
		return bonuses[i].CreatedAt.After(bonuses[j].CreatedAt)
	})
	return bonuses, nil
}

func (t *memoryTx) MarkRedeemed(ctx context.Context, id core.BonusID, at core.TimePoint) (bool, error) {
	b, ok := t.store.bonuses[id]
	if !ok {
		return false, core.ErrBonusNotFound
	}
	if b.State != core.BonusPending {
		return false, nil
	}
	b.State = core.BonusRedeemed
	b.RedeemedAt = at
	t.store.bonuses[id] = b
	return true, nil
}

func (t *memoryTx) SaveEmployee(ctx context.Context, e core.Employee) error {
	t.store.employees[e.ID] = e
	return nil
}

func (t *memoryTx) GetEmployee(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	e, ok := t.store.employees[id]
	if !ok {
		return core.Employee{}, core.ErrEmployeeNotFound
	}
	return e, nil
}

func (t *memoryTx) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	employees := make([]core.Employee, 0, len(t.store.employees))
	for _, e := range t.store.employees {
		employees = append(employees, e)
	}
	sort.Slice(employees, func(i, j int) bool {
		return employees[i].Name < employees[j].Name
	})
	return employees, nil
}

func (t *memoryTx) SaveInvoice(ctx context.Context, inv core.Invoice) error {
	t.store.invoices[inv.ID] = inv
	t.store.records = append(t.store.records, inv.Lines...)
	return nil
}

func (t *memoryTx) GetInvoice(ctx context.Context, id core.InvoiceID) (core.Invoice, error) {
	inv, ok := t.store.invoices[id]
	if !ok {
		return core.Invoice{}, core.ErrInvoiceNotFound
	}
	return inv, nil
}

func (t *memoryTx) ListCommissionRecords(ctx context.Context) ([]core.CommissionRecord, error) {
	records := make([]core.CommissionRecord, len(t.store.records))
	copy(records, t.store.records)
	return records, nil
}

func (t *memoryTx) ListCommissionRecordsByEmployee(ctx context.Context, id core.EmployeeID) ([]core.CommissionRecord, error) {
	var records []core.CommissionRecord
	for _, rec := range t.store.records {
		if rec.EmployeeID == id {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (t *memoryTx) AppendPayment(ctx context.Context, p core.PaymentRecord) error {
	return t.store.appendPaymentLocked(p)
}

func (t *memoryTx) ListPayments(ctx context.Context) ([]core.PaymentRecord, error) {
	payments := make([]core.PaymentRecord, len(t.store.payments))
	copy(payments, t.store.payments)
	return payments, nil
}

func (t *memoryTx) ListPaymentsByEmployee(ctx context.Context, id core.EmployeeID) ([]core.PaymentRecord, error) {
	var payments []core.PaymentRecord
	for _, p := range t.store.payments {
		if p.EmployeeID == id {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

func (t *memoryTx) SaveAppointment(ctx context.Context, a core.Appointment) error {
	t.store.appointments[a.ID] = a
	return nil
}

func (t *memoryTx) GetAppointment(ctx context.Context, id core.AppointmentID) (core.Appointment, error) {
	a, ok := t.store.appointments[id]
	if !ok {
		return core.Appointment{}, core.ErrAppointmentNotFound
	}
	return a, nil
}

func (t *memoryTx) ListAppointments(ctx context.Context, from, to core.TimePoint) ([]core.Appointment, error) {
	var appointments []core.Appointment
	for _, a := range t.store.appointments {
		if a.At.AfterOrEqual(from) && a.At.BeforeOrEqual(to) {
			appointments = append(appointments, a)
		}
	}
	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].At.Before(appointments[j].At)
	})
	return appointments, nil
}

func (t *memoryTx) DeleteAppointment(ctx context.Context, id core.AppointmentID) error {
	if _, ok := t.store.appointments[id]; !ok {
		return core.ErrAppointmentNotFound
	}
	delete(t.store.appointments, id)
	return nil
}
