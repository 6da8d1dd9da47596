/*
handlers.go - HTTP API handlers for the salon engine

PURPOSE:
  Exposes the business-rule engines via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Clients:
    GET    /api/clients                 List clients + resolved bonus state
    POST   /api/clients                 Create client (issues initial bonus)
    PUT    /api/clients/{id}            Update client
    DELETE /api/clients/{id}            Delete client (cascades bonuses)
    POST   /api/clients/{id}/bonuses    Issue a new bonus

  Bonuses:
    POST   /api/bonuses/{id}/redeem     Redeem a bonus (idempotent)

  Staff:
    GET    /api/staff                   List employees
    POST   /api/staff                   Create employee
    GET    /api/staff/balances          Derived settlement balances
    POST   /api/staff/{id}/payments     Pay one employee
    POST   /api/staff/settle            Pay every pending balance

  Invoices:
    POST   /api/invoices                Finalize invoice (freezes commissions)
    GET    /api/invoices/{id}           Fetch invoice with lines

  Appointments:
    GET    /api/appointments            List by range (?from=&to=)
    POST   /api/appointments            Create (+ async webhook)
    PUT    /api/appointments/{id}       Update
    DELETE /api/appointments/{id}       Delete

  Dashboard:
    GET    /api/dashboard/stats         Aggregated dashboard numbers

  Admin:
    POST   /api/admin/seed              Load demo dataset

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator)
  3. Call domain logic (bonus, commission, stats)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (idempotency, unredeemable bonus)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Put the server behind a trusted proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solera/salon-engine/bonus"
	"github.com/solera/salon-engine/commission"
	"github.com/solera/salon-engine/core"
	"github.com/solera/salon-engine/notify"
	"github.com/solera/salon-engine/stats"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      core.TxStore
	Finalizer  *commission.Finalizer
	Settlement *commission.SettlementEngine
	Redeemer   *bonus.Redeemer
	Notifier   *notify.Notifier

	validate *validator.Validate
}

// NewHandler creates a new handler with the given store and notifier.
func NewHandler(store core.TxStore, notifier *notify.Notifier) *Handler {
	return &Handler{
		Store:      store,
		Finalizer:  commission.NewFinalizer(store),
		Settlement: commission.NewSettlementEngine(store),
		Redeemer:   bonus.NewRedeemer(store),
		Notifier:   notifier,
		validate:   validator.New(),
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns every client with its resolved bonus state.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clients, err := h.Store.ListClients(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	now := core.Now()
	dtos := make([]ClientDTO, 0, len(clients))
	for _, c := range clients {
		history, err := h.Store.ListBonusesByClient(ctx, c.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load bonuses", err)
			return
		}
		dtos = append(dtos, toClientDTO(c, bonus.Resolve(c, history, now)))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient creates a client and issues its first bonus atomically.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	now := core.Now()
	client := core.Client{
		ID:        core.ClientID(uuid.New().String()),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		BirthDate: parseDate(req.BirthDate),
		CreatedAt: now,
	}
	first := bonus.NewRecord(client.ID, now)

	err := h.Store.WithTx(r.Context(), func(tx core.Store) error {
		if err := tx.SaveClient(r.Context(), client); err != nil {
			return err
		}
		return tx.SaveBonus(r.Context(), first)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create client", err)
		return
	}

	res := bonus.Resolve(client, []core.BonusRecord{first}, now)
	writeJSON(w, http.StatusCreated, toClientDTO(client, res))
}

// UpdateClient updates contact fields. The creation date and bonus
// history are untouched.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.ClientID(chi.URLParam(r, "id"))

	client, err := h.Store.GetClient(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}

	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	client.Name = req.Name
	client.Email = req.Email
	client.Phone = req.Phone
	client.BirthDate = parseDate(req.BirthDate)

	if err := h.Store.SaveClient(ctx, client); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update client", err)
		return
	}

	history, err := h.Store.ListBonusesByClient(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load bonuses", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client, bonus.Resolve(client, history, core.Now())))
}

// DeleteClient removes a client; its bonuses cascade away with it.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id := core.ClientID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteClient(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IssueBonus creates a fresh Pending bonus for an existing client.
func (h *Handler) IssueBonus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.ClientID(chi.URLParam(r, "id"))

	client, err := h.Store.GetClient(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}

	now := core.Now()
	record := bonus.NewRecord(client.ID, now)
	if err := h.Store.SaveBonus(ctx, record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue bonus", err)
		return
	}

	writeJSON(w, http.StatusCreated, toBonusDTO(bonus.ResolvedBonus{
		Record:    record,
		Status:    bonus.StatusAt(record, now),
		ExpiresAt: bonus.ExpiryOf(record),
	}))
}

// =============================================================================
// BONUS HANDLERS
// =============================================================================

// RedeemBonus marks a bonus redeemed. Redeeming an already-redeemed bonus
// is a no-op reported with redeemed=false; an expired bonus is a conflict.
func (h *Handler) RedeemBonus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.BonusID(chi.URLParam(r, "id"))

	now := core.Now()
	changed, err := h.Redeemer.Redeem(ctx, id, now)
	if err != nil {
		writeDomainError(w, "Failed to redeem bonus", err)
		return
	}

	record, err := h.Store.GetBonus(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get bonus", err)
		return
	}

	writeJSON(w, http.StatusOK, RedeemResponse{
		Redeemed: changed,
		Bonus: toBonusDTO(bonus.ResolvedBonus{
			Record:    record,
			Status:    bonus.StatusAt(record, now),
			ExpiresAt: bonus.ExpiryOf(record),
		}),
	})
}

// =============================================================================
// STAFF HANDLERS
// =============================================================================

// ListStaff returns every employee, sorted by name.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates an employee with a commission rate.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	rate := decimal.NewFromFloat(req.CommissionRate)
	if !core.ValidRate(rate) {
		writeError(w, http.StatusBadRequest, "Invalid commission rate", &core.InvalidRateError{Rate: rate})
		return
	}

	employee := core.Employee{
		ID:             core.EmployeeID(uuid.New().String()),
		Name:           req.Name,
		Role:           req.Role,
		CommissionRate: rate,
		Active:         true,
		CreatedAt:      core.Now(),
	}
	if err := h.Store.SaveEmployee(r.Context(), employee); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(employee))
}

// GetBalances returns the derived settlement state for every employee.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Settlement.ComputeBalances(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balances", err)
		return
	}

	dtos := make([]BalanceDTO, 0, len(balances))
	for _, b := range balances {
		dtos = append(dtos, toBalanceDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PayEmployee records one payout for an employee.
func (h *Handler) PayEmployee(w http.ResponseWriter, r *http.Request) {
	id := core.EmployeeID(chi.URLParam(r, "id"))

	var req PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	payment, err := h.Settlement.Pay(r.Context(), commission.PaymentRequest{
		EmployeeID:     id,
		Amount:         moneyFromFloat(req.Amount),
		Note:           req.Note,
		IdempotencyKey: req.IdempotencyKey,
	}, core.Now())
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// SettleAll pays every positive pending balance in one atomic batch.
func (h *Handler) SettleAll(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Settlement.PayAll(r.Context(), core.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to settle balances", err)
		return
	}

	resp := SettleResponse{Payments: make([]PaymentDTO, 0, len(payments))}
	total := core.ZeroMoney()
	for _, p := range payments {
		resp.Payments = append(resp.Payments, toPaymentDTO(p))
		total = total.Add(p.Amount)
	}
	resp.TotalPaid = moneyFloat(total)
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// CreateInvoice finalizes an invoice, freezing per-line commission
// snapshots at today's rates.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	lines := make([]core.InvoiceLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, core.InvoiceLine{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   moneyFromFloat(l.UnitPrice),
			EmployeeID:  core.EmployeeID(l.EmployeeID),
		})
	}

	invoice, err := h.Finalizer.Finalize(r.Context(), commission.FinalizeInput{
		ClientID:      core.ClientID(req.ClientID),
		Discount:      moneyFromFloat(req.Discount),
		PaymentMethod: req.PaymentMethod,
		Lines:         lines,
	}, core.Now())
	if err != nil {
		writeDomainError(w, "Failed to finalize invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(invoice))
}

// GetInvoice returns one invoice with its frozen lines.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := core.InvoiceID(chi.URLParam(r, "id"))

	invoice, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(invoice))
}

// =============================================================================
// APPOINTMENT HANDLERS
// =============================================================================

// ListAppointments returns appointments inside [from, to]. Both bounds
// accept YYYY-MM-DD or RFC3339; missing bounds default to a wide window
// around now.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	now := core.Now()
	from := now.AddMonths(-1)
	to := now.AddMonths(3)

	if s := r.URL.Query().Get("from"); s != "" {
		tp, err := parseTimestamp(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' (use YYYY-MM-DD or RFC3339)", err)
			return
		}
		from = tp
	}
	if s := r.URL.Query().Get("to"); s != "" {
		tp, err := parseTimestamp(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' (use YYYY-MM-DD or RFC3339)", err)
			return
		}
		to = tp
	}

	appointments, err := h.Store.ListAppointments(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list appointments", err)
		return
	}

	dtos := make([]AppointmentDTO, 0, len(appointments))
	for _, a := range appointments {
		dtos = append(dtos, toAppointmentDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAppointment books an appointment and fires the confirmation
// webhook asynchronously. Booking never waits for, or fails on, the
// webhook.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SaveAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	at, err := parseTimestamp(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'at' (use YYYY-MM-DD or RFC3339)", err)
		return
	}

	appt := core.Appointment{
		ID:        core.AppointmentID(uuid.New().String()),
		ClientID:  core.ClientID(req.ClientID),
		At:        at,
		Service:   req.Service,
		Status:    core.AppointmentScheduled,
		PayStatus: core.PaymentPending,
		CreatedAt: core.Now(),
	}
	if req.Status != "" {
		appt.Status = core.AppointmentStatus(req.Status)
	}
	if req.PayStatus != "" {
		appt.PayStatus = core.PaymentStatus(req.PayStatus)
	}

	if err := h.Store.SaveAppointment(ctx, appt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create appointment", err)
		return
	}

	var client core.Client
	if appt.ClientID != "" {
		client, _ = h.Store.GetClient(ctx, appt.ClientID)
	}
	h.Notifier.AppointmentBooked(appt, client)

	writeJSON(w, http.StatusCreated, toAppointmentDTO(appt))
}

// UpdateAppointment rewrites an existing appointment.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.AppointmentID(chi.URLParam(r, "id"))

	appt, err := h.Store.GetAppointment(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get appointment", err)
		return
	}

	var req SaveAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	at, err := parseTimestamp(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'at' (use YYYY-MM-DD or RFC3339)", err)
		return
	}

	appt.ClientID = core.ClientID(req.ClientID)
	appt.At = at
	appt.Service = req.Service
	if req.Status != "" {
		appt.Status = core.AppointmentStatus(req.Status)
	}
	if req.PayStatus != "" {
		appt.PayStatus = core.PaymentStatus(req.PayStatus)
	}

	if err := h.Store.SaveAppointment(ctx, appt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDTO(appt))
}

// DeleteAppointment removes an appointment.
func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id := core.AppointmentID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteAppointment(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete appointment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// DashboardStats aggregates the dashboard numbers for the current instant.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clients, err := h.Store.ListClients(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	input := make([]stats.ClientWithBonuses, 0, len(clients))
	for _, c := range clients {
		history, err := h.Store.ListBonusesByClient(ctx, c.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load bonuses", err)
			return
		}
		input = append(input, stats.ClientWithBonuses{Client: c, Bonuses: history})
	}

	writeJSON(w, http.StatusOK, stats.Compute(input, core.Now()))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// LoadSeed populates the store with the demo dataset.
func (h *Handler) LoadSeed(w http.ResponseWriter, r *http.Request) {
	if err := Seed(r.Context(), h.Store); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load seed data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, core.ErrBonusNotRedeemable),
		errors.Is(err, core.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, message, err)
	case core.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// parseDate parses a YYYY-MM-DD date; an empty string yields a zero
// TimePoint.
func parseDate(s string) core.TimePoint {
	if s == "" {
		return core.TimePoint{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.TimePoint{}
	}
	return core.TimePoint{Time: t.UTC()}
}

// parseTimestamp accepts RFC3339 or a bare date.
func parseTimestamp(s string) (core.TimePoint, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return core.TimePoint{Time: t.UTC()}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.TimePoint{}, err
	}
	return core.TimePoint{Time: t.UTC()}, nil
}
