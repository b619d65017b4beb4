// Package models contains GORM persistence models that map to database tables.
// Domain types carry no ORM tags; each model converts to and from its domain
// aggregate with ToDomain / XModelFromDomain.
//
//   - base.go: BaseModel, AggregateModel (audit + version columns)
//   - ledger.go: invoices, invoice_items, invoice_payments
//   - budget.go, casework.go, program.go: event-emitting aggregates
//   - sequence.go: document_sequences for invoice and receipt numbers
//   - outbox.go: outbox_events for durable event delivery
package models
