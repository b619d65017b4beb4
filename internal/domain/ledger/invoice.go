package ledger

import (
	"strings"
	"time"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Invoice is the ledger aggregate root. It owns its line items and the
// derived totals; payments are stored separately and only their running
// sum lives here.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber   string
	ClientID        uuid.UUID
	ProjectID       *uuid.UUID
	IssueDate       time.Time
	DueDate         time.Time
	Status          InvoiceStatus
	Currency        valueobject.Currency
	Items           []LineItem
	Subtotal        valueobject.Money
	TaxAmount       valueobject.Money
	TotalAmount     valueobject.Money
	PaidAmount      valueobject.Money
	Notes           string
	RejectionReason string
	CancelReason    string
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	PaidAt          *time.Time
	CancelledAt     *time.Time
	RejectedAt      *time.Time
}

// NewInvoice creates a Draft invoice from its line items
func NewInvoice(
	invoiceNumber string,
	clientID uuid.UUID,
	projectID *uuid.UUID,
	currency valueobject.Currency,
	issueDate, dueDate time.Time,
	items []LineItemInput,
	actor uuid.UUID,
) (*Invoice, error) {
	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, shared.NewValidationError("invoice number is required")
	}
	if err := ValidateDraft(clientID, currency, issueDate, dueDate, items); err != nil {
		return nil, err
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		ClientID:          clientID,
		ProjectID:         projectID,
		IssueDate:         DateOnly(issueDate),
		DueDate:           DateOnly(dueDate),
		Status:            InvoiceStatusDraft,
		Currency:          currency,
		PaidAmount:        valueobject.Zero(currency),
	}
	inv.CreatedBy = actor
	if err := inv.replaceItems(items); err != nil {
		return nil, err
	}
	return inv, nil
}

// ValidateDraft checks everything NewInvoice checks except the number, so a
// caller can reject bad input before drawing from the number sequence.
func ValidateDraft(
	clientID uuid.UUID,
	currency valueobject.Currency,
	issueDate, dueDate time.Time,
	items []LineItemInput,
) error {
	if clientID == uuid.Nil {
		return shared.NewValidationError("client is required").WithDetail("field", "client_id")
	}
	if !currency.IsSupported() {
		return shared.NewValidationError("unsupported currency %q", currency.String()).
			WithDetail("field", "currency")
	}
	if err := validateDates(issueDate, dueDate); err != nil {
		return err
	}
	if len(items) == 0 {
		return shared.NewValidationError("invoice must have at least one line item").WithDetail("field", "items")
	}
	for i, in := range items {
		if _, err := NewLineItem(i+1, in, currency); err != nil {
			return err
		}
	}
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateDates(issueDate, dueDate time.Time) error {
	if issueDate.IsZero() {
		return shared.NewValidationError("issue date is required").WithDetail("field", "issue_date")
	}
	if dueDate.IsZero() {
		return shared.NewValidationError("due date is required").WithDetail("field", "due_date")
	}
	if DateOnly(dueDate).Before(DateOnly(issueDate)) {
		return shared.NewValidationError("due date cannot be before issue date").WithDetail("field", "due_date")
	}
	return nil
}

func (inv *Invoice) replaceItems(inputs []LineItemInput) error {
	if len(inputs) == 0 {
		return shared.NewValidationError("invoice must have at least one line item").WithDetail("field", "items")
	}
	items := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		item, err := NewLineItem(i+1, in, inv.Currency)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	inv.Items = items
	inv.recalculate()
	return nil
}

// recalculate sums line amounts at full precision and rounds once per total
func (inv *Invoice) recalculate() {
	subtotal := valueobject.Zero(inv.Currency)
	tax := valueobject.Zero(inv.Currency)
	for _, item := range inv.Items {
		subtotal, _ = subtotal.Add(item.BaseAmount())
		tax, _ = tax.Add(item.Tax())
	}
	inv.Subtotal = subtotal.Round()
	inv.TaxAmount = tax.Round()
	inv.TotalAmount, _ = inv.Subtotal.Add(inv.TaxAmount)
}

// BalanceDue is total minus paid, floored at zero
func (inv *Invoice) BalanceDue() valueobject.Money {
	balance, err := inv.TotalAmount.Subtract(inv.PaidAmount)
	if err != nil || balance.IsNegative() {
		return valueobject.Zero(inv.Currency)
	}
	return balance
}

// Overpayment is the amount paid beyond the total, zero when none
func (inv *Invoice) Overpayment() valueobject.Money {
	over, err := inv.PaidAmount.Subtract(inv.TotalAmount)
	if err != nil || !over.IsPositive() {
		return valueobject.Zero(inv.Currency)
	}
	return over
}

// InvoiceUpdate holds the fields to change; nil means unchanged
type InvoiceUpdate struct {
	ClientID     *uuid.UUID
	ProjectID    *uuid.UUID
	ClearProject bool
	IssueDate    *time.Time
	DueDate      *time.Time
	Currency     *valueobject.Currency
	Items        []LineItemInput // nil keeps the current items
	Notes        *string
}

// Update edits a Draft or Pending invoice and recomputes totals when
// items or currency change. A currency change needs new items priced in it.
func (inv *Invoice) Update(u InvoiceUpdate, actor uuid.UUID) error {
	if !inv.Status.CanEdit() {
		return shared.NewInvalidStateTransitionError("edit invoice", inv.Status.String())
	}

	issueDate, dueDate := inv.IssueDate, inv.DueDate
	if u.IssueDate != nil {
		issueDate = *u.IssueDate
	}
	if u.DueDate != nil {
		dueDate = *u.DueDate
	}
	if err := validateDates(issueDate, dueDate); err != nil {
		return err
	}
	if u.ClientID != nil && *u.ClientID == uuid.Nil {
		return shared.NewValidationError("client is required").WithDetail("field", "client_id")
	}

	// Work on a copy so a failed item validation leaves the invoice untouched.
	next := *inv
	if u.Currency != nil && *u.Currency != inv.Currency {
		if !u.Currency.IsSupported() {
			return shared.NewValidationError("unsupported currency %q", u.Currency.String()).
				WithDetail("field", "currency")
		}
		if u.Items == nil {
			return shared.NewValidationError("changing currency requires new line items").
				WithDetail("field", "items")
		}
		next.Currency = *u.Currency
		next.PaidAmount = valueobject.Zero(next.Currency)
	}
	if u.Items != nil {
		if err := next.replaceItems(u.Items); err != nil {
			return err
		}
	}

	inv.Currency = next.Currency
	inv.PaidAmount = next.PaidAmount
	inv.Items = next.Items
	inv.Subtotal, inv.TaxAmount, inv.TotalAmount = next.Subtotal, next.TaxAmount, next.TotalAmount
	inv.IssueDate = DateOnly(issueDate)
	inv.DueDate = DateOnly(dueDate)
	if u.ClientID != nil {
		inv.ClientID = *u.ClientID
	}
	if u.ClearProject {
		inv.ProjectID = nil
	} else if u.ProjectID != nil {
		id := *u.ProjectID
		inv.ProjectID = &id
	}
	if u.Notes != nil {
		inv.Notes = *u.Notes
	}
	inv.touch(actor)
	return nil
}

// Submit moves a Draft invoice to Pending
func (inv *Invoice) Submit(actor uuid.UUID) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewInvalidStateTransitionError("submit invoice", inv.Status.String())
	}
	now := time.Now()
	inv.Status = InvoiceStatusPending
	inv.SubmittedAt = &now
	inv.touch(actor)
	return nil
}

// Approve moves a Draft or Pending invoice to Approved
func (inv *Invoice) Approve(actor uuid.UUID) error {
	if !inv.Status.CanApprove() {
		return shared.NewInvalidStateTransitionError("approve invoice", inv.Status.String())
	}
	now := time.Now()
	inv.Status = InvoiceStatusApproved
	inv.ApprovedAt = &now
	inv.touch(actor)
	return nil
}

// Reject moves a Pending invoice to Rejected
func (inv *Invoice) Reject(reason string, actor uuid.UUID) error {
	if inv.Status != InvoiceStatusPending {
		return shared.NewInvalidStateTransitionError("reject invoice", inv.Status.String())
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("rejection reason is required").WithDetail("field", "reason")
	}
	now := time.Now()
	inv.Status = InvoiceStatusRejected
	inv.RejectionReason = reason
	inv.RejectedAt = &now
	inv.touch(actor)
	return nil
}

// Cancel moves a Draft, Pending or Approved invoice to Cancelled
func (inv *Invoice) Cancel(reason string, actor uuid.UUID) error {
	if !inv.Status.CanCancel() {
		return shared.NewInvalidStateTransitionError("cancel invoice", inv.Status.String())
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("cancel reason is required").WithDetail("field", "reason")
	}
	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.CancelReason = reason
	inv.CancelledAt = &now
	inv.touch(actor)
	return nil
}

// RecordPayment applies a payment and derives the new status from the
// cumulative paid amount. Overpayment is accepted; the balance stays at zero.
func (inv *Invoice) RecordPayment(receiptNumber string, in PaymentInput, actor uuid.UUID) (*Payment, error) {
	if err := inv.CheckPayment(in.Amount); err != nil {
		return nil, err
	}

	payment, err := newPayment(inv.ID, receiptNumber, in, actor)
	if err != nil {
		return nil, err
	}

	paid, err := inv.PaidAmount.Add(in.Amount)
	if err != nil {
		return nil, err
	}
	inv.PaidAmount = paid

	if settled, _ := paid.GreaterThanOrEqual(inv.TotalAmount); settled {
		now := time.Now()
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
	} else {
		inv.Status = InvoiceStatusPartiallyPaid
	}
	inv.touch(actor)
	return payment, nil
}

// CheckPayment reports whether a payment of amount could be recorded now
func (inv *Invoice) CheckPayment(amount valueobject.Money) error {
	if !inv.Status.CanReceivePayment() {
		return shared.NewInvalidStateTransitionError("record payment", inv.Status.String())
	}
	if amount.Currency() != inv.Currency {
		return shared.NewCurrencyMismatchError(inv.Currency.String(), amount.Currency().String())
	}
	if !amount.IsPositive() {
		return shared.NewInvalidAmountError("payment amount must be positive, got %s", amount.Amount().String())
	}
	if !amount.IsMinorUnit() {
		return shared.NewInvalidAmountError("payment amount %s is finer than the %s minor unit",
			amount.Amount().String(), amount.Currency().String())
	}
	return nil
}

// IsOverdue reports whether the due date has passed with a balance left
func (inv *Invoice) IsOverdue(now time.Time) bool {
	switch inv.Status {
	case InvoiceStatusApproved, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
	default:
		return false
	}
	return DateOnly(now).After(inv.DueDate) && inv.BalanceDue().IsPositive()
}

// EffectiveStatus is the status as of now, with Overdue derived from the
// due date rather than read from the stored marker.
func (inv *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if inv.IsOverdue(now) {
		return InvoiceStatusOverdue
	}
	if inv.Status == InvoiceStatusOverdue {
		if inv.PaidAmount.IsPositive() {
			return InvoiceStatusPartiallyPaid
		}
		return InvoiceStatusApproved
	}
	return inv.Status
}

// MarkOverdue stores the Overdue marker; returns false when nothing changed
func (inv *Invoice) MarkOverdue(now time.Time) bool {
	if inv.Status == InvoiceStatusOverdue || !inv.IsOverdue(now) {
		return false
	}
	inv.Status = InvoiceStatusOverdue
	inv.touch(uuid.Nil)
	return true
}

func (inv *Invoice) touch(actor uuid.UUID) {
	inv.MarkUpdatedBy(actor)
	inv.Touch()
	inv.IncrementVersion()
}
