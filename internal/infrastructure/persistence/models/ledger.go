package models

import (
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// BalanceDue is stored for filtering and reporting; the domain derives it.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber   string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	ClientID        uuid.UUID            `gorm:"type:uuid;not null;index"`
	ProjectID       *uuid.UUID           `gorm:"type:uuid;index"`
	IssueDate       time.Time            `gorm:"type:date;not null;index"`
	DueDate         time.Time            `gorm:"type:date;not null;index"`
	Status          ledger.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	Currency        string               `gorm:"type:varchar(3);not null"`
	Subtotal        decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount       decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount     decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount      decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceDue      decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Notes           string               `gorm:"type:text"`
	RejectionReason string               `gorm:"type:varchar(500)"`
	CancelReason    string               `gorm:"type:varchar(500)"`
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	PaidAt          *time.Time
	CancelledAt     *time.Time
	RejectedAt      *time.Time
	Items           []InvoiceItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *ledger.Invoice {
	currency := valueobject.Currency(m.Currency)
	inv := &ledger.Invoice{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		InvoiceNumber:     m.InvoiceNumber,
		ClientID:          m.ClientID,
		ProjectID:         m.ProjectID,
		IssueDate:         ledger.DateOnly(m.IssueDate),
		DueDate:           ledger.DateOnly(m.DueDate),
		Status:            m.Status,
		Currency:          currency,
		Subtotal:          valueobject.RestoreMoney(m.Subtotal, currency),
		TaxAmount:         valueobject.RestoreMoney(m.TaxAmount, currency),
		TotalAmount:       valueobject.RestoreMoney(m.TotalAmount, currency),
		PaidAmount:        valueobject.RestoreMoney(m.PaidAmount, currency),
		Notes:             m.Notes,
		RejectionReason:   m.RejectionReason,
		CancelReason:      m.CancelReason,
		SubmittedAt:       m.SubmittedAt,
		ApprovedAt:        m.ApprovedAt,
		PaidAt:            m.PaidAt,
		CancelledAt:       m.CancelledAt,
		RejectedAt:        m.RejectedAt,
		Items:             make([]ledger.LineItem, len(m.Items)),
	}
	for i := range m.Items {
		inv.Items[i] = m.Items[i].ToDomain(currency)
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *ledger.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.ClientID = inv.ClientID
	m.ProjectID = inv.ProjectID
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Status = inv.Status
	m.Currency = inv.Currency.String()
	m.Subtotal = inv.Subtotal.Amount()
	m.TaxAmount = inv.TaxAmount.Amount()
	m.TotalAmount = inv.TotalAmount.Amount()
	m.PaidAmount = inv.PaidAmount.Amount()
	m.BalanceDue = inv.BalanceDue().Amount()
	m.Notes = inv.Notes
	m.RejectionReason = inv.RejectionReason
	m.CancelReason = inv.CancelReason
	m.SubmittedAt = inv.SubmittedAt
	m.ApprovedAt = inv.ApprovedAt
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.RejectedAt = inv.RejectedAt
	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i, item := range inv.Items {
		m.Items[i] = InvoiceItemModelFromDomain(inv.ID, item)
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *ledger.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is one line of an invoice. Amounts keep full precision;
// LineTotal is denormalized for exports.
type InvoiceItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNumber  int             `gorm:"not null"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	Discount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the item model to a domain LineItem
func (m *InvoiceItemModel) ToDomain(currency valueobject.Currency) ledger.LineItem {
	return ledger.LineItem{
		ID:          m.ID,
		LineNumber:  m.LineNumber,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   valueobject.RestoreMoney(m.UnitPrice, currency),
		TaxRate:     m.TaxRate,
		Discount:    valueobject.RestoreMoney(m.Discount, currency),
	}
}

// InvoiceItemModelFromDomain maps a domain LineItem
func InvoiceItemModelFromDomain(invoiceID uuid.UUID, item ledger.LineItem) InvoiceItemModel {
	return InvoiceItemModel{
		ID:          item.ID,
		InvoiceID:   invoiceID,
		LineNumber:  item.LineNumber,
		Description: item.Description,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice.Amount(),
		TaxRate:     item.TaxRate,
		Discount:    item.Discount.Amount(),
		LineTotal:   item.Total().Round().Amount(),
	}
}

// InvoicePaymentModel is an append-only payment row
type InvoicePaymentModel struct {
	ID            uuid.UUID            `gorm:"type:uuid;primaryKey"`
	InvoiceID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	ReceiptNumber string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	Amount        decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency      string               `gorm:"type:varchar(3);not null"`
	PaymentDate   time.Time            `gorm:"type:date;not null"`
	Method        ledger.PaymentMethod `gorm:"type:varchar(20);not null"`
	TransactionID *string              `gorm:"type:varchar(100)"`
	Notes         string               `gorm:"type:text"`
	CreatedBy     uuid.UUID            `gorm:"type:uuid;not null"`
	CreatedAt     time.Time            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (InvoicePaymentModel) TableName() string {
	return "invoice_payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *InvoicePaymentModel) ToDomain() *ledger.Payment {
	return &ledger.Payment{
		ID:            m.ID,
		InvoiceID:     m.InvoiceID,
		ReceiptNumber: m.ReceiptNumber,
		Amount:        valueobject.RestoreMoney(m.Amount, valueobject.Currency(m.Currency)),
		PaymentDate:   ledger.DateOnly(m.PaymentDate),
		Method:        m.Method,
		TransactionID: m.TransactionID,
		Notes:         m.Notes,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}

// InvoicePaymentModelFromDomain maps a domain Payment
func InvoicePaymentModelFromDomain(p *ledger.Payment) *InvoicePaymentModel {
	return &InvoicePaymentModel{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		ReceiptNumber: p.ReceiptNumber,
		Amount:        p.Amount.Amount(),
		Currency:      p.Amount.Currency().String(),
		PaymentDate:   ledger.DateOnly(p.PaymentDate),
		Method:        p.Method,
		TransactionID: p.TransactionID,
		Notes:         p.Notes,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
	}
}
