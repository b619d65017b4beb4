package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceExport is the stable read model handed to document writers.
// Amounts are rounded to the currency minor unit and the status is the
// effective status at GeneratedAt.
type InvoiceExport struct {
	InvoiceID       uuid.UUID
	InvoiceNumber   string
	ClientID        uuid.UUID
	ProjectID       *uuid.UUID
	Status          InvoiceStatus
	Currency        string
	IssueDate       time.Time
	DueDate         time.Time
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	PaidAmount      decimal.Decimal
	BalanceDue      decimal.Decimal
	Overpayment     decimal.Decimal
	Notes           string
	Items           []ExportLine
	Payments        []ExportPayment
	GeneratedAt     time.Time
	DisplayTotal    string
	DisplayBalance  string
	DisplayPaid     string
	DisplaySubtotal string
	DisplayTax      string
}

// ExportLine is one rounded invoice line
type ExportLine struct {
	LineNumber  int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// ExportPayment is one recorded payment
type ExportPayment struct {
	ReceiptNumber string
	PaymentDate   time.Time
	Method        PaymentMethod
	Amount        decimal.Decimal
	TransactionID string
}

// NewInvoiceExport builds the read model for inv and its payments as of now
func NewInvoiceExport(inv *Invoice, payments []Payment, now time.Time) InvoiceExport {
	exp := InvoiceExport{
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID,
		ProjectID:       inv.ProjectID,
		Status:          inv.EffectiveStatus(now),
		Currency:        inv.Currency.String(),
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		Subtotal:        inv.Subtotal.Round().Amount(),
		TaxAmount:       inv.TaxAmount.Round().Amount(),
		TotalAmount:     inv.TotalAmount.Round().Amount(),
		PaidAmount:      inv.PaidAmount.Round().Amount(),
		BalanceDue:      inv.BalanceDue().Round().Amount(),
		Overpayment:     inv.Overpayment().Round().Amount(),
		Notes:           inv.Notes,
		Items:           make([]ExportLine, len(inv.Items)),
		Payments:        make([]ExportPayment, len(payments)),
		GeneratedAt:     now,
		DisplayTotal:    inv.TotalAmount.Display(),
		DisplayBalance:  inv.BalanceDue().Display(),
		DisplayPaid:     inv.PaidAmount.Display(),
		DisplaySubtotal: inv.Subtotal.Display(),
		DisplayTax:      inv.TaxAmount.Display(),
	}
	for i, item := range inv.Items {
		exp.Items[i] = ExportLine{
			LineNumber:  item.LineNumber,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.Amount(),
			TaxRate:     item.TaxRate,
			Discount:    item.Discount.Round().Amount(),
			Tax:         item.Tax().Round().Amount(),
			Total:       item.Total().Round().Amount(),
		}
	}
	for i, p := range payments {
		txID := ""
		if p.TransactionID != nil {
			txID = *p.TransactionID
		}
		exp.Payments[i] = ExportPayment{
			ReceiptNumber: p.ReceiptNumber,
			PaymentDate:   p.PaymentDate,
			Method:        p.Method,
			Amount:        p.Amount.Round().Amount(),
			TransactionID: txID,
		}
	}
	return exp
}
