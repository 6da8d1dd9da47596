/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through the shared validator instance before touching domain logic.

MONEY:
  Amounts cross the wire as float64. Precision lives in the domain layer
  (decimal.Decimal); the JSON representation is for display only.

SEE ALSO:
  - handlers.go: Uses these types
  - bonus/resolver.go: Source of bonus status and display labels
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/solera/salon-engine/bonus"
	"github.com/solera/salon-engine/core"
)

const dateLayout = "2006-01-02"

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CLIENTS & BONUSES
// =============================================================================

// ClientDTO represents a client in API responses, together with the
// resolved bonus state computed for the current instant.
type ClientDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	BirthDate   string     `json:"birth_date,omitempty"`
	CreatedAt   string     `json:"created_at"`
	BonusStatus string     `json:"bonus_status"`
	BonusLabel  string     `json:"bonus_label"`
	ActiveBonus *BonusDTO  `json:"active_bonus,omitempty"`
	Bonuses     []BonusDTO `json:"bonuses"`
}

// CreateClientRequest is the request to create a client.
type CreateClientRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateClientRequest is the request to update a client.
type UpdateClientRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
}

// BonusDTO represents one bonus with its effective (derived) status.
type BonusDTO struct {
	ID         string `json:"id"`
	ClientID   string `json:"client_id"`
	Status     string `json:"status"`
	Label      string `json:"label"`
	CreatedAt  string `json:"created_at"`
	ExpiresAt  string `json:"expires_at"`
	RedeemedAt string `json:"redeemed_at,omitempty"`
}

// RedeemResponse reports the outcome of a redemption attempt.
// Redeemed is false when the bonus was already redeemed; the call is
// idempotent and still returns 200 in that case.
type RedeemResponse struct {
	Redeemed bool     `json:"redeemed"`
	Bonus    BonusDTO `json:"bonus"`
}

// =============================================================================
// STAFF & SETTLEMENT
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Role           string  `json:"role,omitempty"`
	CommissionRate float64 `json:"commission_rate"`
	Active         bool    `json:"active"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	Name           string  `json:"name" validate:"required"`
	Role           string  `json:"role"`
	CommissionRate float64 `json:"commission_rate" validate:"gte=0,lte=100"`
}

// BalanceDTO is the derived settlement state for one employee.
type BalanceDTO struct {
	Employee        EmployeeDTO `json:"employee"`
	SalesTotal      float64     `json:"sales_total"`
	CommissionTotal float64     `json:"commission_total"`
	PaidTotal       float64     `json:"paid_total"`
	PendingBalance  float64     `json:"pending_balance"`
}

// PayRequest is the request to pay one employee.
type PayRequest struct {
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	Note           string  `json:"note"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// PaymentDTO represents one payout record.
type PaymentDTO struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	Amount     float64 `json:"amount"`
	Note       string  `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// SettleResponse reports a bulk settlement run.
type SettleResponse struct {
	Payments  []PaymentDTO `json:"payments"`
	TotalPaid float64      `json:"total_paid"`
}

// =============================================================================
// INVOICES
// =============================================================================

// InvoiceLineRequest is one invoice position. EmployeeID may be empty for
// lines without staff attribution.
type InvoiceLineRequest struct {
	Description string  `json:"description" validate:"required"`
	Quantity    int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	EmployeeID  string  `json:"employee_id"`
}

// CreateInvoiceRequest is the request to finalize an invoice.
type CreateInvoiceRequest struct {
	ClientID      string               `json:"client_id"`
	Discount      float64              `json:"discount" validate:"gte=0"`
	PaymentMethod string               `json:"payment_method"`
	Lines         []InvoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CommissionLineDTO is the frozen snapshot of one invoice line.
type CommissionLineDTO struct {
	ID               string  `json:"id"`
	EmployeeID       string  `json:"employee_id,omitempty"`
	Description      string  `json:"description"`
	Quantity         int64   `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	LineTotal        float64 `json:"line_total"`
	RateSnapshot     float64 `json:"rate_snapshot"`
	CommissionAmount float64 `json:"commission_amount"`
}

// InvoiceDTO represents an invoice with its lines.
type InvoiceDTO struct {
	ID            string              `json:"id"`
	ClientID      string              `json:"client_id,omitempty"`
	Subtotal      float64             `json:"subtotal"`
	Discount      float64             `json:"discount"`
	Total         float64             `json:"total"`
	PaymentMethod string              `json:"payment_method"`
	CreatedAt     string              `json:"created_at"`
	Lines         []CommissionLineDTO `json:"lines"`
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

// AppointmentDTO represents a calendar entry.
type AppointmentDTO struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id,omitempty"`
	At        string `json:"at"`
	Service   string `json:"service"`
	Status    string `json:"status"`
	PayStatus string `json:"pay_status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SaveAppointmentRequest creates or updates an appointment.
type SaveAppointmentRequest struct {
	ClientID  string `json:"client_id"`
	At        string `json:"at" validate:"required"`
	Service   string `json:"service" validate:"required"`
	Status    string `json:"status" validate:"omitempty,oneof=programada completada cancelada"`
	PayStatus string `json:"pay_status" validate:"omitempty,oneof=pagado pendiente"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toClientDTO(c core.Client, res bonus.Resolution) ClientDTO {
	dto := ClientDTO{
		ID:          string(c.ID),
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		CreatedAt:   c.CreatedAt.String(),
		BonusStatus: string(res.Status),
		BonusLabel:  bonus.Label(res.Status),
		Bonuses:     make([]BonusDTO, 0, len(res.History)),
	}
	if !c.BirthDate.IsZero() {
		dto.BirthDate = c.BirthDate.Time.Format(dateLayout)
	}
	if res.ActiveBonusID != "" {
		for _, rb := range res.History {
			if rb.Record.ID == res.ActiveBonusID {
				active := toBonusDTO(rb)
				dto.ActiveBonus = &active
				break
			}
		}
	}
	for _, rb := range res.History {
		dto.Bonuses = append(dto.Bonuses, toBonusDTO(rb))
	}
	return dto
}

func toBonusDTO(rb bonus.ResolvedBonus) BonusDTO {
	dto := BonusDTO{
		ID:        string(rb.Record.ID),
		ClientID:  string(rb.Record.ClientID),
		Status:    string(rb.Status),
		Label:     bonus.Label(rb.Status),
		CreatedAt: rb.Record.CreatedAt.String(),
		ExpiresAt: rb.ExpiresAt.String(),
	}
	if !rb.Record.RedeemedAt.IsZero() {
		dto.RedeemedAt = rb.Record.RedeemedAt.String()
	}
	return dto
}

func toEmployeeDTO(e core.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:             string(e.ID),
		Name:           e.Name,
		Role:           e.Role,
		CommissionRate: e.CommissionRate.InexactFloat64(),
		Active:         e.Active,
		CreatedAt:      e.CreatedAt.String(),
	}
}

func toBalanceDTO(b core.EmployeeBalance) BalanceDTO {
	return BalanceDTO{
		Employee:        toEmployeeDTO(b.Employee),
		SalesTotal:      moneyFloat(b.SalesTotal),
		CommissionTotal: moneyFloat(b.CommissionTotal),
		PaidTotal:       moneyFloat(b.PaidTotal),
		PendingBalance:  moneyFloat(b.PendingBalance),
	}
}

func toPaymentDTO(p core.PaymentRecord) PaymentDTO {
	return PaymentDTO{
		ID:         string(p.ID),
		EmployeeID: string(p.EmployeeID),
		Amount:     moneyFloat(p.Amount),
		Note:       p.Note,
		CreatedAt:  p.CreatedAt.String(),
	}
}

func toInvoiceDTO(inv core.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:            string(inv.ID),
		ClientID:      string(inv.ClientID),
		Subtotal:      moneyFloat(inv.Subtotal),
		Discount:      moneyFloat(inv.Discount),
		Total:         moneyFloat(inv.Total),
		PaymentMethod: inv.PaymentMethod,
		CreatedAt:     inv.CreatedAt.String(),
		Lines:         make([]CommissionLineDTO, 0, len(inv.Lines)),
	}
	for _, line := range inv.Lines {
		dto.Lines = append(dto.Lines, CommissionLineDTO{
			ID:               string(line.ID),
			EmployeeID:       string(line.EmployeeID),
			Description:      line.Description,
			Quantity:         line.Quantity,
			UnitPrice:        moneyFloat(line.UnitPrice),
			LineTotal:        moneyFloat(line.LineTotal),
			RateSnapshot:     line.RateSnapshot.InexactFloat64(),
			CommissionAmount: moneyFloat(line.CommissionAmount),
		})
	}
	return dto
}

func toAppointmentDTO(a core.Appointment) AppointmentDTO {
	return AppointmentDTO{
		ID:        string(a.ID),
		ClientID:  string(a.ClientID),
		At:        a.At.String(),
		Service:   a.Service,
		Status:    string(a.Status),
		PayStatus: string(a.PayStatus),
		CreatedAt: a.CreatedAt.String(),
	}
}

func moneyFloat(m core.Money) float64 {
	return m.Value.InexactFloat64()
}

func moneyFromFloat(v float64) core.Money {
	return core.Money{Value: decimal.NewFromFloat(v)}
}
