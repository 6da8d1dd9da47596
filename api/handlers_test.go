package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solera/salon-engine/api"
	"github.com/solera/salon-engine/core"
	"github.com/solera/salon-engine/core/store"
	"github.com/solera/salon-engine/notify"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	t      *testing.T
	server *httptest.Server
	store  *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	st := store.NewMemoryStore()
	h := api.NewHandler(st, notify.NewNotifier("", nil))
	srv := httptest.NewServer(api.NewRouter(h, api.RouterOptions{}))
	t.Cleanup(srv.Close)
	return &fixture{t: t, server: srv, store: st}
}

func (f *fixture) do(method, path string, body any) *http.Response {
	f.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.server.Client().Do(req)
	require.NoError(f.t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *fixture) createClient(name string) api.ClientDTO {
	f.t.Helper()

	resp := f.do(http.MethodPost, "/api/clients", map[string]any{"name": name})
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)
	return decode[api.ClientDTO](f.t, resp)
}

func (f *fixture) createEmployee(name string, rate float64) api.EmployeeDTO {
	f.t.Helper()

	resp := f.do(http.MethodPost, "/api/staff", map[string]any{
		"name":            name,
		"role":            "estilista",
		"commission_rate": rate,
	})
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)
	return decode[api.EmployeeDTO](f.t, resp)
}

// =============================================================================
// CLIENTS
// =============================================================================

func TestAPI_CreateClient_IssuesInitialBonus(t *testing.T) {
	// GIVEN: A fresh system
	// WHEN: Creating a client
	// THEN: The response carries a live Pending bonus with the Activo label

	f := newFixture(t)

	client := f.createClient("Mariana López")
	assert.NotEmpty(t, client.ID)
	assert.Equal(t, "pendiente", client.BonusStatus)
	assert.Equal(t, "Activo", client.BonusLabel)
	require.NotNil(t, client.ActiveBonus)
	require.Len(t, client.Bonuses, 1)
	assert.Equal(t, client.ActiveBonus.ID, client.Bonuses[0].ID)
}

func TestAPI_CreateClient_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPost, "/api/clients", map[string]any{"email": "a@b.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(http.MethodPost, "/api/clients", map[string]any{
		"name": "Mariana", "email": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_ListClients(t *testing.T) {
	f := newFixture(t)
	f.createClient("Mariana")
	f.createClient("Paula")

	resp := f.do(http.MethodGet, "/api/clients", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	clients := decode[[]api.ClientDTO](t, resp)
	assert.Len(t, clients, 2)
}

func TestAPI_UpdateClient(t *testing.T) {
	f := newFixture(t)
	created := f.createClient("Mariana")

	resp := f.do(http.MethodPut, "/api/clients/"+created.ID, map[string]any{
		"name":  "Mariana López",
		"phone": "+57 300 123 4567",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[api.ClientDTO](t, resp)
	assert.Equal(t, "Mariana López", updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Len(t, updated.Bonuses, 1)
}

func TestAPI_UpdateClient_NotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPut, "/api/clients/missing", map[string]any{"name": "X"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_DeleteClient(t *testing.T) {
	f := newFixture(t)
	created := f.createClient("Mariana")

	resp := f.do(http.MethodDelete, "/api/clients/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(http.MethodDelete, "/api/clients/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// BONUSES
// =============================================================================

func TestAPI_IssueAndRedeemBonus(t *testing.T) {
	f := newFixture(t)
	client := f.createClient("Mariana")

	resp := f.do(http.MethodPost, "/api/clients/"+client.ID+"/bonuses", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	issued := decode[api.BonusDTO](t, resp)
	assert.Equal(t, "pendiente", issued.Status)

	resp = f.do(http.MethodPost, "/api/bonuses/"+issued.ID+"/redeem", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[api.RedeemResponse](t, resp)
	assert.True(t, first.Redeemed)
	assert.Equal(t, "reclamado", first.Bonus.Status)
	assert.NotEmpty(t, first.Bonus.RedeemedAt)

	// Second redemption is an idempotent no-op
	resp = f.do(http.MethodPost, "/api/bonuses/"+issued.ID+"/redeem", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[api.RedeemResponse](t, resp)
	assert.False(t, second.Redeemed)
	assert.Equal(t, first.Bonus.RedeemedAt, second.Bonus.RedeemedAt)
}

func TestAPI_RedeemBonus_Missing(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPost, "/api/bonuses/missing/redeem", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// STAFF & SETTLEMENT
// =============================================================================

func TestAPI_CreateEmployee_RejectsBadRate(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPost, "/api/staff", map[string]any{
		"name": "Valentina", "commission_rate": 130.0,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_InvoiceToSettlement_FullFlow(t *testing.T) {
	// GIVEN: A stylist at 30% and a finalized 100000 sale
	// WHEN: Paying 10000 and then settling everything
	// THEN: The balance drains to zero across the two payouts

	f := newFixture(t)
	emp := f.createEmployee("Valentina", 30)

	resp := f.do(http.MethodPost, "/api/invoices", map[string]any{
		"lines": []map[string]any{
			{"description": "Corte y peinado", "quantity": 2, "unit_price": 50000.0, "employee_id": emp.ID},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	invoice := decode[api.InvoiceDTO](t, resp)
	assert.Equal(t, "Efectivo", invoice.PaymentMethod)
	assert.InDelta(t, 100000, invoice.Total, 0.001)
	require.Len(t, invoice.Lines, 1)
	assert.InDelta(t, 30000, invoice.Lines[0].CommissionAmount, 0.001)

	// The frozen invoice can be fetched back
	resp = f.do(http.MethodGet, "/api/invoices/"+invoice.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decode[api.InvoiceDTO](t, resp)
	assert.Equal(t, invoice.ID, fetched.ID)

	resp = f.do(http.MethodGet, "/api/staff/balances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances := decode[[]api.BalanceDTO](t, resp)
	require.Len(t, balances, 1)
	assert.InDelta(t, 30000, balances[0].PendingBalance, 0.001)

	resp = f.do(http.MethodPost, fmt.Sprintf("/api/staff/%s/payments", emp.ID), map[string]any{
		"amount": 10000.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	payment := decode[api.PaymentDTO](t, resp)
	assert.Equal(t, "Pago manual", payment.Note)

	resp = f.do(http.MethodPost, "/api/staff/settle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	settled := decode[api.SettleResponse](t, resp)
	require.Len(t, settled.Payments, 1)
	assert.InDelta(t, 20000, settled.TotalPaid, 0.001)

	resp = f.do(http.MethodGet, "/api/staff/balances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances = decode[[]api.BalanceDTO](t, resp)
	require.Len(t, balances, 1)
	assert.InDelta(t, 0, balances[0].PendingBalance, 0.001)
}

func TestAPI_PayEmployee_DuplicateIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	emp := f.createEmployee("Valentina", 30)

	body := map[string]any{"amount": 5000.0, "idempotency_key": "retry-1"}
	resp := f.do(http.MethodPost, fmt.Sprintf("/api/staff/%s/payments", emp.ID), body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(http.MethodPost, fmt.Sprintf("/api/staff/%s/payments", emp.ID), body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_PayEmployee_Validation(t *testing.T) {
	f := newFixture(t)
	emp := f.createEmployee("Valentina", 30)

	resp := f.do(http.MethodPost, fmt.Sprintf("/api/staff/%s/payments", emp.ID), map[string]any{
		"amount": -5.0,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(http.MethodPost, "/api/staff/missing/payments", map[string]any{"amount": 5.0})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_CreateInvoice_RejectsEmptyLines(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPost, "/api/invoices", map[string]any{
		"lines": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

func TestAPI_AppointmentLifecycle(t *testing.T) {
	f := newFixture(t)
	client := f.createClient("Mariana")

	resp := f.do(http.MethodPost, "/api/appointments", map[string]any{
		"client_id": client.ID,
		"at":        core.Now().AddDays(2).String(),
		"service":   "Corte y peinado",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.AppointmentDTO](t, resp)
	assert.Equal(t, "programada", created.Status)
	assert.Equal(t, "pendiente", created.PayStatus)

	// Inside the default window
	resp = f.do(http.MethodGet, "/api/appointments", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decode[[]api.AppointmentDTO](t, resp)
	require.Len(t, listed, 1)

	resp = f.do(http.MethodPut, "/api/appointments/"+created.ID, map[string]any{
		"client_id":  client.ID,
		"at":         created.At,
		"service":    created.Service,
		"status":     "completada",
		"pay_status": "pagado",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[api.AppointmentDTO](t, resp)
	assert.Equal(t, "completada", updated.Status)
	assert.Equal(t, "pagado", updated.PayStatus)

	resp = f.do(http.MethodDelete, "/api/appointments/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_CreateAppointment_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPost, "/api/appointments", map[string]any{
		"at": "2026-09-10", "service": "Corte", "status": "confirmada",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_ListAppointments_ExplicitRange(t *testing.T) {
	f := newFixture(t)

	for _, at := range []string{"2026-06-01", "2026-06-15", "2026-07-10"} {
		resp := f.do(http.MethodPost, "/api/appointments", map[string]any{
			"at": at, "service": "Corte",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := f.do(http.MethodGet, "/api/appointments?from=2026-06-01&to=2026-06-30", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decode[[]api.AppointmentDTO](t, resp)
	assert.Len(t, listed, 2)

	resp = f.do(http.MethodGet, "/api/appointments?from=junk", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// DASHBOARD & ADMIN
// =============================================================================

func TestAPI_DashboardStats(t *testing.T) {
	f := newFixture(t)
	f.createClient("Mariana")
	f.createClient("Paula")

	resp := f.do(http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[map[string]int](t, resp)
	assert.Equal(t, 2, stats["total_clients"])
	assert.Equal(t, 2, stats["new_clients_this_month"])
	assert.Equal(t, 2, stats["active_bonuses"])
}

func TestAPI_Seed_LoadsDemoDataset(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPost, "/api/admin/seed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(http.MethodGet, "/api/clients", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	clients := decode[[]api.ClientDTO](t, resp)
	assert.NotEmpty(t, clients)

	resp = f.do(http.MethodGet, "/api/staff/balances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances := decode[[]api.BalanceDTO](t, resp)
	assert.NotEmpty(t, balances)

	// Seeding twice must not blow up on the idempotent payment
	resp = f.do(http.MethodPost, "/api/admin/seed", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_Health(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
