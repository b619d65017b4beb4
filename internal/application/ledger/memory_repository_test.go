package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// memoryInvoiceRepository is a version-checked in-memory InvoiceRepository
type memoryInvoiceRepository struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]ledger.Invoice
	payments map[uuid.UUID][]ledger.Payment
	writes   int
}

func newMemoryInvoiceRepository() *memoryInvoiceRepository {
	return &memoryInvoiceRepository{
		invoices: make(map[uuid.UUID]ledger.Invoice),
		payments: make(map[uuid.UUID][]ledger.Payment),
	}
}

func cloneInvoice(inv ledger.Invoice) *ledger.Invoice {
	inv.Items = append([]ledger.LineItem(nil), inv.Items...)
	inv.ClearDomainEvents()
	return &inv
}

func (r *memoryInvoiceRepository) FindByID(_ context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.NewNotFoundError("invoice", id.String())
	}
	return cloneInvoice(inv), nil
}

func (r *memoryInvoiceRepository) FindByNumber(_ context.Context, number string) (*ledger.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == number {
			return cloneInvoice(inv), nil
		}
	}
	return nil, shared.NewNotFoundError("invoice", number)
}

func (r *memoryInvoiceRepository) List(_ context.Context, filter ledger.InvoiceFilter) ([]ledger.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []ledger.Invoice
	for _, inv := range r.invoices {
		if filter.ClientID != nil && inv.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != nil && inv.EffectiveStatus(filter.AsOf) != *filter.Status {
			continue
		}
		matched = append(matched, *cloneInvoice(inv))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].InvoiceNumber < matched[j].InvoiceNumber })

	page, size := max(filter.Page, 1), filter.PageSize
	if size <= 0 {
		size = 20
	}
	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (r *memoryInvoiceRepository) Create(_ context.Context, inv *ledger.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = *cloneInvoice(*inv)
	r.writes++
	return nil
}

func (r *memoryInvoiceRepository) update(inv *ledger.Invoice) error {
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return shared.NewNotFoundError("invoice", inv.ID.String())
	}
	if stored.Version != inv.Version-1 {
		return shared.ErrConcurrentModification
	}
	r.invoices[inv.ID] = *cloneInvoice(*inv)
	r.writes++
	return nil
}

func (r *memoryInvoiceRepository) Update(_ context.Context, inv *ledger.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(inv)
}

func (r *memoryInvoiceRepository) SavePayment(_ context.Context, inv *ledger.Invoice, p *ledger.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.update(inv); err != nil {
		return err
	}
	r.payments[inv.ID] = append(r.payments[inv.ID], *p)
	return nil
}

func (r *memoryInvoiceRepository) ListPayments(_ context.Context, id uuid.UUID) ([]ledger.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ledger.Payment(nil), r.payments[id]...), nil
}

func (r *memoryInvoiceRepository) FindOverdueCandidates(_ context.Context, asOf time.Time, limit int) ([]ledger.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ledger.Invoice
	for _, inv := range r.invoices {
		if inv.Status != ledger.InvoiceStatusOverdue && inv.IsOverdue(asOf) {
			out = append(out, *cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryInvoiceRepository) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// sequenceNumbers hands out INV-/RCP- numbers from counters
type sequenceNumbers struct {
	invoices atomic.Int64
	receipts atomic.Int64
}

func (n *sequenceNumbers) NextInvoiceNumber(_ context.Context, date time.Time) (string, error) {
	return fmt.Sprintf("INV-%s-%05d", date.Format("20060102"), n.invoices.Add(1)), nil
}

func (n *sequenceNumbers) NextReceiptNumber(_ context.Context, date time.Time) (string, error) {
	return fmt.Sprintf("RCP-%s-%05d", date.Format("20060102"), n.receipts.Add(1)), nil
}

var (
	_ ledger.InvoiceRepository = (*memoryInvoiceRepository)(nil)
	_ ledger.NumberGenerator   = (*sequenceNumbers)(nil)
)
