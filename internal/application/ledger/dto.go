package ledger

import (
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Invoice DTOs ====================

// LineItemRequest represents one line of an invoice in create/update requests
type LineItemRequest struct {
	Description string           `json:"description" binding:"required,min=1,max=500"`
	Quantity    decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Currency    string           `json:"currency" binding:"omitempty,currency"` // defaults to the invoice currency
	TaxRate     decimal.Decimal  `json:"tax_rate"`
	Discount    *decimal.Decimal `json:"discount"`
}

// CreateInvoiceRequest represents a request to create a draft invoice
type CreateInvoiceRequest struct {
	ClientID  uuid.UUID         `json:"client_id" binding:"required"`
	ProjectID *uuid.UUID        `json:"project_id"`
	Currency  string            `json:"currency" binding:"omitempty,currency"`
	IssueDate time.Time         `json:"issue_date" binding:"required"`
	DueDate   time.Time         `json:"due_date" binding:"required"`
	Items     []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	Notes     string            `json:"notes" binding:"max=2000"`
}

// UpdateInvoiceRequest represents a partial update of a Draft or Pending invoice.
// Nil fields are left unchanged; a non-nil Items replaces every line.
type UpdateInvoiceRequest struct {
	ClientID     *uuid.UUID        `json:"client_id"`
	ProjectID    *uuid.UUID        `json:"project_id"`
	ClearProject bool              `json:"clear_project"`
	Currency     *string           `json:"currency" binding:"omitempty,currency"`
	IssueDate    *time.Time        `json:"issue_date"`
	DueDate      *time.Time        `json:"due_date"`
	Items        []LineItemRequest `json:"items" binding:"omitempty,dive"`
	Notes        *string           `json:"notes" binding:"omitempty,max=2000"`
}

// RejectInvoiceRequest represents a request to reject a pending invoice
type RejectInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// CancelInvoiceRequest represents a request to cancel an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// RecordPaymentRequest represents a payment received against an invoice
type RecordPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	Currency      string          `json:"currency" binding:"omitempty,currency"` // defaults to the invoice currency
	Method        string          `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CHECK CARD OTHER"`
	PaymentDate   time.Time       `json:"payment_date" binding:"required"`
	TransactionID *string         `json:"transaction_id" binding:"omitempty,max=100"`
	Notes         string          `json:"notes" binding:"max=2000"`
}

// InvoiceListFilter represents filter options for invoice list
type InvoiceListFilter struct {
	ClientID      string           `form:"client_id" binding:"omitempty,uuid"`
	ProjectID     string           `form:"project_id" binding:"omitempty,uuid"`
	Status        string           `form:"status" binding:"omitempty,oneof=DRAFT PENDING APPROVED PARTIALLY_PAID PAID OVERDUE CANCELLED REJECTED"`
	IssueDateFrom *time.Time       `form:"issue_date_from" time_format:"2006-01-02"`
	IssueDateTo   *time.Time       `form:"issue_date_to" time_format:"2006-01-02"`
	MinTotal      *decimal.Decimal `form:"min_total"`
	MaxTotal      *decimal.Decimal `form:"max_total"`
	Page          int              `form:"page" binding:"omitempty,min=1"`
	PageSize      int              `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy       string           `form:"order_by"`
	OrderDir      string           `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// InvoiceItemResponse represents an invoice line in API responses
type InvoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Discount    decimal.Decimal `json:"discount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// InvoiceResponse represents an invoice in API responses.
// Status is the effective status; StoredStatus is what was last persisted.
type InvoiceResponse struct {
	ID              uuid.UUID             `json:"id"`
	InvoiceNumber   string                `json:"invoice_number"`
	ClientID        uuid.UUID             `json:"client_id"`
	ProjectID       *uuid.UUID            `json:"project_id,omitempty"`
	Status          string                `json:"status"`
	StoredStatus    string                `json:"stored_status"`
	Currency        string                `json:"currency"`
	IssueDate       time.Time             `json:"issue_date"`
	DueDate         time.Time             `json:"due_date"`
	Items           []InvoiceItemResponse `json:"items"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	TaxAmount       decimal.Decimal       `json:"tax_amount"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	PaidAmount      decimal.Decimal       `json:"paid_amount"`
	BalanceDue      decimal.Decimal       `json:"balance_due"`
	Overpayment     decimal.Decimal       `json:"overpayment"`
	Notes           string                `json:"notes,omitempty"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
	CancelReason    string                `json:"cancel_reason,omitempty"`
	SubmittedAt     *time.Time            `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time            `json:"approved_at,omitempty"`
	PaidAt          *time.Time            `json:"paid_at,omitempty"`
	CancelledAt     *time.Time            `json:"cancelled_at,omitempty"`
	RejectedAt      *time.Time            `json:"rejected_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Version         int                   `json:"version"`
}

// PaymentResponse represents a recorded payment in API responses
type PaymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	ReceiptNumber string          `json:"receipt_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentDate   time.Time       `json:"payment_date"`
	Method        string          `json:"method"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     uuid.UUID       `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RecordPaymentResponse carries the new payment and the invoice after it
type RecordPaymentResponse struct {
	Payment PaymentResponse `json:"payment"`
	Invoice InvoiceResponse `json:"invoice"`
}

// BalanceResponse represents the amounts still owed on an invoice
type BalanceResponse struct {
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
	Overpayment decimal.Decimal `json:"overpayment"`
}

// StatusResponse represents the time-derived status of an invoice
type StatusResponse struct {
	InvoiceID    uuid.UUID `json:"invoice_id"`
	Status       string    `json:"status"`
	StoredStatus string    `json:"stored_status"`
	IsOverdue    bool      `json:"is_overdue"`
	DueDate      time.Time `json:"due_date"`
	AsOf         time.Time `json:"as_of"`
}

// SweepResult summarises one overdue sweep
type SweepResult struct {
	Checked int `json:"checked"`
	Marked  int `json:"marked"`
	Skipped int `json:"skipped"`
}

// ToInvoiceResponse converts a domain invoice; amounts are rounded to the
// currency minor unit.
func ToInvoiceResponse(inv *ledger.Invoice, now time.Time) InvoiceResponse {
	resp := InvoiceResponse{
		ID:              inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID,
		ProjectID:       inv.ProjectID,
		Status:          inv.EffectiveStatus(now).String(),
		StoredStatus:    inv.Status.String(),
		Currency:        inv.Currency.String(),
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		Items:           make([]InvoiceItemResponse, len(inv.Items)),
		Subtotal:        inv.Subtotal.Round().Amount(),
		TaxAmount:       inv.TaxAmount.Round().Amount(),
		TotalAmount:     inv.TotalAmount.Round().Amount(),
		PaidAmount:      inv.PaidAmount.Round().Amount(),
		BalanceDue:      inv.BalanceDue().Round().Amount(),
		Overpayment:     inv.Overpayment().Round().Amount(),
		Notes:           inv.Notes,
		RejectionReason: inv.RejectionReason,
		CancelReason:    inv.CancelReason,
		SubmittedAt:     inv.SubmittedAt,
		ApprovedAt:      inv.ApprovedAt,
		PaidAt:          inv.PaidAt,
		CancelledAt:     inv.CancelledAt,
		RejectedAt:      inv.RejectedAt,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
		Version:         inv.Version,
	}
	for i, item := range inv.Items {
		resp.Items[i] = InvoiceItemResponse{
			ID:          item.ID,
			LineNumber:  item.LineNumber,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.Amount(),
			TaxRate:     item.TaxRate,
			Discount:    item.Discount.Amount(),
			TaxAmount:   item.Tax().Round().Amount(),
			LineTotal:   item.Total().Round().Amount(),
		}
	}
	return resp
}

// ToInvoiceResponses converts a page of invoices
func ToInvoiceResponses(invoices []ledger.Invoice, now time.Time) []InvoiceResponse {
	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = ToInvoiceResponse(&invoices[i], now)
	}
	return responses
}

// ToPaymentResponse converts a domain payment
func ToPaymentResponse(p *ledger.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		ReceiptNumber: p.ReceiptNumber,
		Amount:        p.Amount.Amount(),
		Currency:      p.Amount.Currency().String(),
		PaymentDate:   p.PaymentDate,
		Method:        string(p.Method),
		TransactionID: p.TransactionID,
		Notes:         p.Notes,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
	}
}
