package ledger

import (
	"time"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Payment is an append-only receipt against an invoice.
// It is never mutated after creation.
type Payment struct {
	ID            uuid.UUID
	InvoiceID     uuid.UUID
	ReceiptNumber string
	Amount        valueobject.Money
	PaymentDate   time.Time
	Method        PaymentMethod
	TransactionID *string
	Notes         string
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
}

// PaymentInput carries the caller-supplied fields of a payment
type PaymentInput struct {
	Amount        valueobject.Money
	Method        PaymentMethod
	PaymentDate   time.Time
	TransactionID *string
	Notes         string
}

func newPayment(invoiceID uuid.UUID, receiptNumber string, in PaymentInput, actor uuid.UUID) (*Payment, error) {
	if receiptNumber == "" {
		return nil, shared.NewValidationError("receipt number is required")
	}
	if !in.Method.IsValid() {
		return nil, shared.NewValidationError("unknown payment method %q", string(in.Method)).
			WithDetail("field", "method")
	}
	if in.PaymentDate.IsZero() {
		return nil, shared.NewValidationError("payment date is required").WithDetail("field", "payment_date")
	}
	return &Payment{
		ID:            uuid.New(),
		InvoiceID:     invoiceID,
		ReceiptNumber: receiptNumber,
		Amount:        in.Amount,
		PaymentDate:   in.PaymentDate,
		Method:        in.Method,
		TransactionID: in.TransactionID,
		Notes:         in.Notes,
		CreatedBy:     actor,
		CreatedAt:     time.Now(),
	}, nil
}
