package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries.
// Status matches the effective status as of AsOf, so OVERDUE finds
// invoices past their due date even before the sweep has marked them.
type InvoiceFilter struct {
	ClientID      *uuid.UUID
	ProjectID     *uuid.UUID
	Status        *InvoiceStatus
	IssueDateFrom *time.Time
	IssueDateTo   *time.Time
	MinTotal      *decimal.Decimal
	MaxTotal      *decimal.Decimal
	AsOf          time.Time
	Page          int
	PageSize      int
	OrderBy       string
	OrderDir      string
}

// InvoiceRepository persists invoices and their payments
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)
	Create(ctx context.Context, invoice *Invoice) error
	// Update saves with optimistic locking on Version-1 and replaces the items
	Update(ctx context.Context, invoice *Invoice) error
	// SavePayment inserts the payment and updates the invoice in one transaction
	SavePayment(ctx context.Context, invoice *Invoice, payment *Payment) error
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	// FindOverdueCandidates returns invoices past due with a balance that
	// are not yet marked OVERDUE
	FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error)
}

// NumberGenerator issues unique document numbers
type NumberGenerator interface {
	NextInvoiceNumber(ctx context.Context, date time.Time) (string, error)
	NextReceiptNumber(ctx context.Context, date time.Time) (string, error)
}
