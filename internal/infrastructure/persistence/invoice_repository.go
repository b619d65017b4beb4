package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/casehub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const invoiceResource = "invoice"

// GormInvoiceRepository implements ledger.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice with its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	var model models.InvoiceModel
	if err := r.withItems(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, invoiceResource, id)
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its externally visible number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*ledger.Invoice, error) {
	var model models.InvoiceModel
	if err := r.withItems(ctx).First(&model, "invoice_number = ?", invoiceNumber).Error; err != nil {
		return nil, translateError(err, invoiceResource, uuid.Nil)
	}
	return model.ToDomain(), nil
}

// List returns one page of invoices matching the filter and the total count
func (r *GormInvoiceRepository) List(ctx context.Context, filter ledger.InvoiceFilter) ([]ledger.Invoice, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	orderBy := ValidateSortField(filter.OrderBy, InvoiceSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var rows []models.InvoiceModel
	err := query.
		Preload("Items", orderItems).
		Order(orderBy + " " + orderDir).
		Order("id").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	invoices := make([]ledger.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, total, nil
}

// Create inserts a new invoice with its items
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *ledger.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(model).Error; err != nil {
			return translateError(err, invoiceResource, invoice.ID)
		}
		if len(model.Items) > 0 {
			if err := tx.Create(&model.Items).Error; err != nil {
				return fmt.Errorf("failed to create invoice items: %w", err)
			}
		}
		return nil
	})
	return err
}

// Update saves header changes with optimistic locking and replaces the items
func (r *GormInvoiceRepository) Update(ctx context.Context, invoice *ledger.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateVersioned(tx, model, invoice.ID, invoice.Version, invoiceResource); err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete invoice items: %w", err)
		}
		if len(model.Items) > 0 {
			if err := tx.Create(&model.Items).Error; err != nil {
				return fmt.Errorf("failed to create invoice items: %w", err)
			}
		}
		return nil
	})
}

// SavePayment inserts the payment and updates the invoice totals and status
// in one transaction, so neither is visible without the other.
func (r *GormInvoiceRepository) SavePayment(ctx context.Context, invoice *ledger.Invoice, payment *ledger.Payment) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateVersioned(tx, model, invoice.ID, invoice.Version, invoiceResource); err != nil {
			return err
		}
		if err := tx.Create(models.InvoicePaymentModelFromDomain(payment)).Error; err != nil {
			return translateError(err, "payment", payment.ID)
		}
		return nil
	})
}

// ListPayments returns the payments of an invoice in the order they were recorded
func (r *GormInvoiceRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]ledger.Payment, error) {
	var rows []models.InvoicePaymentModel
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Order("receipt_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	payments := make([]ledger.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, nil
}

// FindOverdueCandidates returns payable invoices past due with a balance
// that do not yet carry the OVERDUE marker, oldest due date first
func (r *GormInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]ledger.Invoice, error) {
	var rows []models.InvoiceModel
	err := r.withItems(ctx).
		Where("status IN ?", []ledger.InvoiceStatus{ledger.InvoiceStatusApproved, ledger.InvoiceStatusPartiallyPaid}).
		Where("due_date < ?", ledger.DateOnly(asOf)).
		Where("balance_due > 0").
		Order("due_date ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find overdue invoices: %w", err)
	}
	invoices := make([]ledger.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, nil
}

func (r *GormInvoiceRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", orderItems)
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("line_number ASC")
}

// applyFilter adds the filter conditions. Status is matched against the
// effective status as of filter.AsOf, mirroring Invoice.EffectiveStatus.
func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter ledger.InvoiceFilter) *gorm.DB {
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.IssueDateFrom != nil {
		query = query.Where("issue_date >= ?", ledger.DateOnly(*filter.IssueDateFrom))
	}
	if filter.IssueDateTo != nil {
		query = query.Where("issue_date <= ?", ledger.DateOnly(*filter.IssueDateTo))
	}
	if filter.MinTotal != nil {
		query = query.Where("total_amount >= ?", *filter.MinTotal)
	}
	if filter.MaxTotal != nil {
		query = query.Where("total_amount <= ?", *filter.MaxTotal)
	}
	if filter.Status != nil {
		query = applyEffectiveStatus(query, *filter.Status, filter.AsOf)
	}
	return query
}

func applyEffectiveStatus(query *gorm.DB, status ledger.InvoiceStatus, asOf time.Time) *gorm.DB {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	today := ledger.DateOnly(asOf)
	payable := []ledger.InvoiceStatus{
		ledger.InvoiceStatusApproved, ledger.InvoiceStatusPartiallyPaid, ledger.InvoiceStatusOverdue,
	}
	// Overdue: payable, due date passed, balance left
	overdue := query.Session(&gorm.Session{NewDB: true}).
		Where("status IN ?", payable).
		Where("due_date < ?", today).
		Where("balance_due > 0")
	notOverdue := query.Session(&gorm.Session{NewDB: true}).
		Where("due_date >= ?", today).
		Or("balance_due <= 0")

	switch status {
	case ledger.InvoiceStatusOverdue:
		return query.Where(overdue)
	case ledger.InvoiceStatusApproved:
		return query.
			Where(query.Session(&gorm.Session{NewDB: true}).
				Where("status = ?", ledger.InvoiceStatusApproved).
				Or("status = ? AND paid_amount <= 0", ledger.InvoiceStatusOverdue)).
			Where(notOverdue)
	case ledger.InvoiceStatusPartiallyPaid:
		return query.
			Where(query.Session(&gorm.Session{NewDB: true}).
				Where("status = ?", ledger.InvoiceStatusPartiallyPaid).
				Or("status = ? AND paid_amount > 0", ledger.InvoiceStatusOverdue)).
			Where(notOverdue)
	default:
		return query.Where("status = ?", status)
	}
}

var _ ledger.InvoiceRepository = (*GormInvoiceRepository)(nil)
