package ledger

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"          // Editable, not yet submitted
	InvoiceStatusPending       InvoiceStatus = "PENDING"        // Submitted for approval, still editable
	InvoiceStatusApproved      InvoiceStatus = "APPROVED"       // Approved, awaiting payment
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // 0 < paid < total
	InvoiceStatusPaid          InvoiceStatus = "PAID"           // paid >= total
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"        // Due date passed with balance left
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
	InvoiceStatusRejected      InvoiceStatus = "REJECTED"
)

// AllInvoiceStatuses returns every status in lifecycle order
func AllInvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusPending,
		InvoiceStatusApproved,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
		InvoiceStatusRejected,
	}
}

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusApproved,
		InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue,
		InvoiceStatusCancelled, InvoiceStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is allowed
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled || s == InvoiceStatusRejected
}

// CanEdit returns true if line items and header fields may change
func (s InvoiceStatus) CanEdit() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusPending
}

// CanReceivePayment returns true if payments can be recorded in this status
func (s InvoiceStatus) CanReceivePayment() bool {
	return s == InvoiceStatusApproved || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusOverdue
}

// CanApprove returns true if the invoice may be approved
func (s InvoiceStatus) CanApprove() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusPending
}

// CanCancel returns true if the invoice may be cancelled
func (s InvoiceStatus) CanCancel() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusPending || s == InvoiceStatusApproved
}

// PaymentMethod is how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck,
		PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}
