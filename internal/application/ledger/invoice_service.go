package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/casehub/backend/internal/infrastructure/locking"
	"github.com/casehub/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultSweepBatchSize = 100
	exportPageSize        = 100
	// MaxExportRows bounds ExportInvoices
	MaxExportRows = 5000
)

// Actions recorded on spans, logs and the transition counter
const (
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionSubmit        = "submit"
	ActionApprove       = "approve"
	ActionReject        = "reject"
	ActionCancel        = "cancel"
	ActionRecordPayment = "record_payment"
	ActionMarkOverdue   = "mark_overdue"
)

// Metrics receives ledger activity. *telemetry.BusinessMetrics implements it.
type Metrics interface {
	RecordInvoiceCreated(ctx context.Context, currency string)
	RecordInvoiceTransition(ctx context.Context, action, status string)
	RecordPayment(ctx context.Context, method, currency string, amount decimal.Decimal)
	RecordOverdueMarked(ctx context.Context, count int)
}

// InvoiceService handles invoice business operations. Every mutation holds
// the per-invoice lock across read, compute and write; the repository's
// version check guards against writers in other processes.
type InvoiceService struct {
	repo            ledger.InvoiceRepository
	numbers         ledger.NumberGenerator
	locks           *locking.KeyedMutex
	metrics         Metrics
	logger          *zap.Logger
	now             func() time.Time
	defaultCurrency valueobject.Currency
	sweepBatchSize  int
}

// InvoiceServiceOption configures InvoiceService
type InvoiceServiceOption func(*InvoiceService)

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides time.Now, used for effective status and numbering
func WithClock(now func() time.Time) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.now = now
	}
}

// WithDefaultCurrency sets the currency used when a request names none
func WithDefaultCurrency(c valueobject.Currency) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.defaultCurrency = c
	}
}

// WithSweepBatchSize sets how many overdue candidates are loaded per round
func WithSweepBatchSize(n int) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if n > 0 {
			s.sweepBatchSize = n
		}
	}
}

// WithLocks shares a KeyedMutex with other services
func WithLocks(locks *locking.KeyedMutex) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.locks = locks
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	repo ledger.InvoiceRepository,
	numbers ledger.NumberGenerator,
	logger *zap.Logger,
	opts ...InvoiceServiceOption,
) *InvoiceService {
	s := &InvoiceService{
		repo:            repo,
		numbers:         numbers,
		locks:           locking.NewKeyedMutex(),
		metrics:         telemetry.NewNoopBusinessMetrics(),
		logger:          logger,
		now:             time.Now,
		defaultCurrency: valueobject.USD,
		sweepBatchSize:  defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates a Draft invoice
func (s *InvoiceService) Create(ctx context.Context, req CreateInvoiceRequest, actor uuid.UUID) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", ActionCreate,
		attribute.String("client.id", req.ClientID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	currency, err := s.currencyOrDefault(req.Currency, s.defaultCurrency)
	if err != nil {
		return nil, err
	}
	items, err := toLineItemInputs(req.Items, currency)
	if err != nil {
		return nil, err
	}
	// Reject before an invoice number is consumed
	if err = ledger.ValidateDraft(req.ClientID, currency, req.IssueDate, req.DueDate, items); err != nil {
		return nil, err
	}

	number, err := s.numbers.NextInvoiceNumber(ctx, s.now())
	if err != nil {
		return nil, err
	}
	inv, err := ledger.NewInvoice(number, req.ClientID, req.ProjectID, currency, req.IssueDate, req.DueDate, items, actor)
	if err != nil {
		return nil, err
	}
	inv.Notes = req.Notes

	if err = s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceCreated(ctx, currency.String())
	s.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("currency", currency.String()),
		zap.String("total", inv.TotalAmount.Round().Amount().String()),
		zap.String("actor_id", actor.String()),
	)
	response := ToInvoiceResponse(inv, s.now())
	return &response, nil
}

// Update edits a Draft or Pending invoice
func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, req UpdateInvoiceRequest, actor uuid.UUID) (*InvoiceResponse, error) {
	return s.mutate(ctx, id, ActionUpdate, actor, func(inv *ledger.Invoice) error {
		update := ledger.InvoiceUpdate{
			ClientID:     req.ClientID,
			ProjectID:    req.ProjectID,
			ClearProject: req.ClearProject,
			IssueDate:    req.IssueDate,
			DueDate:      req.DueDate,
			Notes:        req.Notes,
		}
		currency := inv.Currency
		if req.Currency != nil {
			c, err := valueobject.ParseCurrency(*req.Currency)
			if err != nil {
				return err
			}
			currency = c
			update.Currency = &c
		}
		if req.Items != nil {
			items, err := toLineItemInputs(req.Items, currency)
			if err != nil {
				return err
			}
			update.Items = items
		}
		return inv.Update(update, actor)
	})
}

// Submit moves a Draft invoice to Pending
func (s *InvoiceService) Submit(ctx context.Context, id, actor uuid.UUID) (*InvoiceResponse, error) {
	return s.mutate(ctx, id, ActionSubmit, actor, func(inv *ledger.Invoice) error {
		return inv.Submit(actor)
	})
}

// Approve moves a Draft or Pending invoice to Approved
func (s *InvoiceService) Approve(ctx context.Context, id, actor uuid.UUID) (*InvoiceResponse, error) {
	return s.mutate(ctx, id, ActionApprove, actor, func(inv *ledger.Invoice) error {
		return inv.Approve(actor)
	})
}

// Reject moves a Pending invoice to Rejected
func (s *InvoiceService) Reject(ctx context.Context, id uuid.UUID, req RejectInvoiceRequest, actor uuid.UUID) (*InvoiceResponse, error) {
	return s.mutate(ctx, id, ActionReject, actor, func(inv *ledger.Invoice) error {
		return inv.Reject(req.Reason, actor)
	})
}

// Cancel moves a Draft, Pending or Approved invoice to Cancelled
func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID, req CancelInvoiceRequest, actor uuid.UUID) (*InvoiceResponse, error) {
	return s.mutate(ctx, id, ActionCancel, actor, func(inv *ledger.Invoice) error {
		return inv.Cancel(req.Reason, actor)
	})
}

// RecordPayment applies a payment. The payment row and the invoice update
// are committed together.
func (s *InvoiceService) RecordPayment(ctx context.Context, id uuid.UUID, req RecordPaymentRequest, actor uuid.UUID) (resp *RecordPaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", ActionRecordPayment,
		attribute.String("invoice.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	currency, err := s.currencyOrDefault(req.Currency, inv.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := valueobject.NewMoney(req.Amount, currency)
	if err != nil {
		return nil, err
	}
	// Reject before a receipt number is consumed
	if err = inv.CheckPayment(amount); err != nil {
		return nil, err
	}

	receipt, err := s.numbers.NextReceiptNumber(ctx, s.now())
	if err != nil {
		return nil, err
	}
	payment, err := inv.RecordPayment(receipt, ledger.PaymentInput{
		Amount:        amount,
		Method:        ledger.PaymentMethod(req.Method),
		PaymentDate:   ledger.DateOnly(req.PaymentDate),
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
	}, actor)
	if err != nil {
		return nil, err
	}
	if err = s.repo.SavePayment(ctx, inv, payment); err != nil {
		return nil, err
	}

	s.metrics.RecordPayment(ctx, req.Method, currency.String(), amount.Amount())
	s.metrics.RecordInvoiceTransition(ctx, ActionRecordPayment, inv.Status.String())
	fields := []zap.Field{
		zap.String("invoice_id", inv.ID.String()),
		zap.String("receipt_number", payment.ReceiptNumber),
		zap.String("amount", amount.Display()),
		zap.String("status", inv.Status.String()),
		zap.String("actor_id", actor.String()),
	}
	if over := inv.Overpayment(); over.IsPositive() {
		s.logger.Warn("invoice overpaid", append(fields, zap.String("overpayment", over.Display()))...)
	} else {
		s.logger.Info("payment recorded", fields...)
	}

	return &RecordPaymentResponse{
		Payment: ToPaymentResponse(payment),
		Invoice: ToInvoiceResponse(inv, s.now()),
	}, nil
}

// GetByID gets an invoice by ID
func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv, s.now())
	return &response, nil
}

// GetByNumber gets an invoice by its invoice number
func (s *InvoiceService) GetByNumber(ctx context.Context, invoiceNumber string) (*InvoiceResponse, error) {
	inv, err := s.repo.FindByNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv, s.now())
	return &response, nil
}

// List returns one page of invoices and the total count
func (s *InvoiceService) List(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	now := s.now()
	domainFilter, err := toDomainFilter(filter, now)
	if err != nil {
		return nil, 0, err
	}
	invoices, total, err := s.repo.List(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToInvoiceResponses(invoices, now), total, nil
}

// GetBalance returns what is still owed on an invoice
func (s *InvoiceService) GetBalance(ctx context.Context, id uuid.UUID) (*BalanceResponse, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		InvoiceID:   inv.ID,
		Currency:    inv.Currency.String(),
		TotalAmount: inv.TotalAmount.Round().Amount(),
		PaidAmount:  inv.PaidAmount.Round().Amount(),
		BalanceDue:  inv.BalanceDue().Round().Amount(),
		Overpayment: inv.Overpayment().Round().Amount(),
	}, nil
}

// GetStatus returns the status as of now, deriving Overdue from the due date
func (s *InvoiceService) GetStatus(ctx context.Context, id uuid.UUID) (*StatusResponse, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &StatusResponse{
		InvoiceID:    inv.ID,
		Status:       inv.EffectiveStatus(now).String(),
		StoredStatus: inv.Status.String(),
		IsOverdue:    inv.IsOverdue(now),
		DueDate:      inv.DueDate,
		AsOf:         now,
	}, nil
}

// ListPayments returns the payments of an invoice in recording order
func (s *InvoiceService) ListPayments(ctx context.Context, id uuid.UUID) ([]PaymentResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		responses[i] = ToPaymentResponse(&payments[i])
	}
	return responses, nil
}

// SweepOverdue stores the Overdue marker on every invoice past due with a
// balance as of now. Invoices changed concurrently are skipped and picked up
// by the next sweep.
func (s *InvoiceService) SweepOverdue(ctx context.Context, now time.Time) (result SweepResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "sweep_overdue")
	defer func() { telemetry.EndSpan(span, err) }()

	for {
		candidates, err := s.repo.FindOverdueCandidates(ctx, now, s.sweepBatchSize)
		if err != nil {
			return result, err
		}
		marked := 0
		for i := range candidates {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Checked++
			ok, err := s.markOverdue(ctx, candidates[i].ID, now)
			switch {
			case err == nil && ok:
				marked++
			case err == nil:
			case errors.Is(err, shared.ErrConcurrentModification), errors.Is(err, shared.ErrNotFound):
				result.Skipped++
				s.logger.Warn("overdue sweep skipped invoice",
					zap.String("invoice_id", candidates[i].ID.String()), zap.Error(err))
			default:
				return result, err
			}
		}
		result.Marked += marked
		// A short batch is the last one; a batch where nothing could be
		// marked would be returned again.
		if len(candidates) < s.sweepBatchSize || marked == 0 {
			break
		}
	}

	if result.Marked > 0 {
		s.metrics.RecordOverdueMarked(ctx, result.Marked)
	}
	s.logger.Info("overdue sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("marked", result.Marked),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *InvoiceService) markOverdue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	// Re-read under the lock; a payment may have landed since the query
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !inv.MarkOverdue(now) {
		return false, nil
	}
	if err := s.repo.Update(ctx, inv); err != nil {
		return false, err
	}
	s.metrics.RecordInvoiceTransition(ctx, ActionMarkOverdue, inv.Status.String())
	return true, nil
}

// ExportInvoice builds the export read model of one invoice
func (s *InvoiceService) ExportInvoice(ctx context.Context, id uuid.UUID) (*ledger.InvoiceExport, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	exp := ledger.NewInvoiceExport(inv, payments, s.now())
	return &exp, nil
}

// ExportInvoices builds export read models for every invoice matching the
// filter, ignoring its pagination. At most MaxExportRows are returned.
func (s *InvoiceService) ExportInvoices(ctx context.Context, filter InvoiceListFilter) ([]ledger.InvoiceExport, error) {
	now := s.now()
	domainFilter, err := toDomainFilter(filter, now)
	if err != nil {
		return nil, err
	}
	domainFilter.PageSize = exportPageSize

	var exports []ledger.InvoiceExport
	for page := 1; ; page++ {
		domainFilter.Page = page
		invoices, total, err := s.repo.List(ctx, domainFilter)
		if err != nil {
			return nil, err
		}
		if total > MaxExportRows {
			return nil, shared.NewValidationError("export matches %d invoices, limit is %d", total, MaxExportRows)
		}
		for i := range invoices {
			payments, err := s.repo.ListPayments(ctx, invoices[i].ID)
			if err != nil {
				return nil, err
			}
			exports = append(exports, ledger.NewInvoiceExport(&invoices[i], payments, now))
		}
		if len(invoices) < exportPageSize || int64(len(exports)) >= total {
			break
		}
	}
	return exports, nil
}

// mutate runs fn on the locked, freshly loaded invoice and saves it
func (s *InvoiceService) mutate(
	ctx context.Context,
	id uuid.UUID,
	action string,
	actor uuid.UUID,
	fn func(inv *ledger.Invoice) error,
) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", action,
		attribute.String("invoice.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := inv.Status
	if err = fn(inv); err != nil {
		return nil, err
	}
	if err = s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}

	if action != ActionUpdate {
		s.metrics.RecordInvoiceTransition(ctx, action, inv.Status.String())
	}
	s.logger.Info("invoice "+action,
		zap.String("invoice_id", inv.ID.String()),
		zap.String("from_status", previous.String()),
		zap.String("to_status", inv.Status.String()),
		zap.String("actor_id", actor.String()),
	)
	response := ToInvoiceResponse(inv, s.now())
	return &response, nil
}

func (s *InvoiceService) currencyOrDefault(code string, fallback valueobject.Currency) (valueobject.Currency, error) {
	if code == "" {
		return fallback, nil
	}
	return valueobject.ParseCurrency(code)
}

func toLineItemInputs(reqs []LineItemRequest, currency valueobject.Currency) ([]ledger.LineItemInput, error) {
	items := make([]ledger.LineItemInput, len(reqs))
	for i, r := range reqs {
		itemCurrency := currency
		if r.Currency != "" {
			c, err := valueobject.ParseCurrency(r.Currency)
			if err != nil {
				return nil, err
			}
			itemCurrency = c
		}
		items[i] = ledger.LineItemInput{
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   valueobject.RestoreMoney(r.UnitPrice, itemCurrency),
			TaxRate:     r.TaxRate,
		}
		if r.Discount != nil {
			discount := valueobject.RestoreMoney(*r.Discount, itemCurrency)
			items[i].Discount = &discount
		}
	}
	return items, nil
}

func toDomainFilter(f InvoiceListFilter, now time.Time) (ledger.InvoiceFilter, error) {
	filter := ledger.InvoiceFilter{
		IssueDateFrom: f.IssueDateFrom,
		IssueDateTo:   f.IssueDateTo,
		MinTotal:      f.MinTotal,
		MaxTotal:      f.MaxTotal,
		AsOf:          now,
		Page:          f.Page,
		PageSize:      f.PageSize,
		OrderBy:       f.OrderBy,
		OrderDir:      f.OrderDir,
	}
	if f.ClientID != "" {
		id, err := uuid.Parse(f.ClientID)
		if err != nil {
			return filter, shared.NewValidationError("invalid client_id").WithDetail("field", "client_id")
		}
		filter.ClientID = &id
	}
	if f.ProjectID != "" {
		id, err := uuid.Parse(f.ProjectID)
		if err != nil {
			return filter, shared.NewValidationError("invalid project_id").WithDetail("field", "project_id")
		}
		filter.ProjectID = &id
	}
	if f.Status != "" {
		status := ledger.InvoiceStatus(f.Status)
		if !status.IsValid() {
			return filter, shared.NewValidationError("unknown invoice status %q", f.Status).WithDetail("field", "status")
		}
		filter.Status = &status
	}
	return filter, nil
}
