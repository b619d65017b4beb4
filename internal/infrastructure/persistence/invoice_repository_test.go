package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	issueDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	dueDate   = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
)

func usd(amount string) valueobject.Money {
	return valueobject.MustNewMoney(amount, valueobject.USD)
}

func newInvoice(t *testing.T, number string, clientID uuid.UUID, price string) *ledger.Invoice {
	t.Helper()
	discount := usd("5")
	inv, err := ledger.NewInvoice(number, clientID, nil, valueobject.USD, issueDate, dueDate,
		[]ledger.LineItemInput{
			{Description: "Case management", Quantity: decimal.NewFromInt(2), UnitPrice: usd(price), TaxRate: decimal.NewFromInt(10)},
			{Description: "Travel", Quantity: decimal.RequireFromString("1.5"), UnitPrice: usd("20"), Discount: &discount},
		}, uuid.New())
	require.NoError(t, err)
	return inv
}

func TestGormInvoiceRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewGormInvoiceRepository(newTestDB(t))
	inv := newInvoice(t, "INV-20260301-00001", uuid.New(), "100")
	require.NoError(t, repo.Create(ctx, inv))

	got, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, got.InvoiceNumber)
	assert.Equal(t, inv.ClientID, got.ClientID)
	assert.Equal(t, ledger.InvoiceStatusDraft, got.Status)
	assert.Equal(t, issueDate, got.IssueDate)
	assert.Equal(t, dueDate, got.DueDate)
	assert.True(t, inv.TotalAmount.Equals(got.TotalAmount), "total %s vs %s", inv.TotalAmount, got.TotalAmount)
	assert.True(t, inv.TaxAmount.Equals(got.TaxAmount))
	assert.Equal(t, 1, got.Version)
	assert.Empty(t, got.GetDomainEvents())

	require.Len(t, got.Items, 2)
	assert.Equal(t, 1, got.Items[0].LineNumber)
	assert.Equal(t, "Travel", got.Items[1].Description)
	assert.True(t, got.Items[1].Discount.Equals(usd("5")))
	assert.True(t, got.Items[1].Quantity.Equal(decimal.RequireFromString("1.5")))

	byNumber, err := repo.FindByNumber(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byNumber.ID)
}

func TestGormInvoiceRepository_NotFound(t *testing.T) {
	repo := NewGormInvoiceRepository(newTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.FindByNumber(context.Background(), "INV-missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInvoiceRepository_DuplicateNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewGormInvoiceRepository(newTestDB(t))
	require.NoError(t, repo.Create(ctx, newInvoice(t, "INV-DUP", uuid.New(), "10")))

	err := repo.Create(ctx, newInvoice(t, "INV-DUP", uuid.New(), "10"))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestGormInvoiceRepository_UpdateReplacesItems(t *testing.T) {
	ctx := context.Background()
	repo := NewGormInvoiceRepository(newTestDB(t))
	inv := newInvoice(t, "INV-UPD", uuid.New(), "100")
	require.NoError(t, repo.Create(ctx, inv))

	loaded, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	notes := "revised"
	require.NoError(t, loaded.Update(ledger.InvoiceUpdate{
		Notes: &notes,
		Items: []ledger.LineItemInput{{Description: "Single line", Quantity: decimal.NewFromInt(1), UnitPrice: usd("42")}},
	}, uuid.New()))
	require.NoError(t, repo.Update(ctx, loaded))

	got, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "revised", got.Notes)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.Items, 1)
	assert.True(t, got.TotalAmount.Equals(usd("42")))
}

func TestGormInvoiceRepository_OptimisticLock(t *testing.T) {
	ctx := context.Background()
	repo := NewGormInvoiceRepository(newTestDB(t))
	inv := newInvoice(t, "INV-LOCK", uuid.New(), "100")
	require.NoError(t, repo.Create(ctx, inv))

	first, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)

	require.NoError(t, first.Submit(uuid.New()))
	require.NoError(t, repo.Update(ctx, first))

	require.NoError(t, second.Approve(uuid.New()))
	err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	got, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPending, got.Status)
}

func TestGormInvoiceRepository_UpdateMissing(t *testing.T) {
	repo := NewGormInvoiceRepository(newTestDB(t))
	inv := newInvoice(t, "INV-GHOST", uuid.New(), "100")
	require.NoError(t, inv.Submit(uuid.New()))

	err := repo.Update(context.Background(), inv)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInvoiceRepository_SavePayment(t *testing.T) {
	ctx := context.Background()
	repo := NewGormInvoiceRepository(newTestDB(t))
	inv := newInvoice(t, "INV-PAY", uuid.New(), "100")
	require.NoError(t, inv.Approve(uuid.New()))
	require.NoError(t, repo.Create(ctx, inv))

	loaded, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	txID := "TX-1"
	payment, err := loaded.RecordPayment("RCP-20260305-00001", ledger.PaymentInput{
		Amount:        usd("50"),
		Method:        ledger.PaymentMethodBankTransfer,
		PaymentDate:   issueDate.AddDate(0, 0, 4),
		TransactionID: &txID,
	}, uuid.New())
	require.NoError(t, err)
	require.NoError(t, repo.SavePayment(ctx, loaded, payment))

	got, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPartiallyPaid, got.Status)
	assert.True(t, got.PaidAmount.Equals(usd("50")))

	payments, err := repo.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "RCP-20260305-00001", payments[0].ReceiptNumber)
	assert.True(t, payments[0].Amount.Equals(usd("50")))
	assert.Equal(t, "TX-1", *payments[0].TransactionID)
	assert.Equal(t, issueDate.AddDate(0, 0, 4), payments[0].PaymentDate)
}

func TestGormInvoiceRepository_SavePaymentRollsBackOnStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewGormInvoiceRepository(newTestDB(t))
	inv := newInvoice(t, "INV-STALE", uuid.New(), "100")
	require.NoError(t, inv.Approve(uuid.New()))
	require.NoError(t, repo.Create(ctx, inv))

	stale, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	fresh, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)

	p1, err := fresh.RecordPayment("RCP-1", ledger.PaymentInput{Amount: usd("10"), Method: ledger.PaymentMethodCash, PaymentDate: issueDate}, uuid.New())
	require.NoError(t, err)
	require.NoError(t, repo.SavePayment(ctx, fresh, p1))

	p2, err := stale.RecordPayment("RCP-2", ledger.PaymentInput{Amount: usd("20"), Method: ledger.PaymentMethodCash, PaymentDate: issueDate}, uuid.New())
	require.NoError(t, err)
	err = repo.SavePayment(ctx, stale, p2)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	payments, err := repo.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1, "payment row must not survive a failed invoice update")
}

func TestGormInvoiceRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewGormInvoiceRepository(newTestDB(t))
	clientA, clientB := uuid.New(), uuid.New()

	cheap := newInvoice(t, "INV-A1", clientA, "10")
	pricey := newInvoice(t, "INV-A2", clientA, "500")
	other := newInvoice(t, "INV-B1", clientB, "100")
	require.NoError(t, pricey.Approve(uuid.New()))
	for _, inv := range []*ledger.Invoice{cheap, pricey, other} {
		require.NoError(t, repo.Create(ctx, inv))
	}

	t.Run("by client", func(t *testing.T) {
		got, total, err := repo.List(ctx, ledger.InvoiceFilter{ClientID: &clientA, OrderBy: "invoice_number", OrderDir: "asc"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		require.Len(t, got, 2)
		assert.Equal(t, "INV-A1", got[0].InvoiceNumber)
		assert.Len(t, got[0].Items, 2)
	})

	t.Run("by total range", func(t *testing.T) {
		lo, hi := decimal.NewFromInt(100), decimal.NewFromInt(300)
		got, total, err := repo.List(ctx, ledger.InvoiceFilter{MinTotal: &lo, MaxTotal: &hi})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Equal(t, "INV-B1", got[0].InvoiceNumber)
	})

	t.Run("pagination keeps the full count", func(t *testing.T) {
		got, total, err := repo.List(ctx, ledger.InvoiceFilter{Page: 2, PageSize: 2, OrderBy: "invoice_number", OrderDir: "asc"})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, got, 1)
		assert.Equal(t, "INV-B1", got[0].InvoiceNumber)
	})

	t.Run("effective overdue status", func(t *testing.T) {
		status := ledger.InvoiceStatusOverdue
		got, _, err := repo.List(ctx, ledger.InvoiceFilter{Status: &status, AsOf: dueDate.AddDate(0, 0, 1)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "INV-A2", got[0].InvoiceNumber)

		got, _, err = repo.List(ctx, ledger.InvoiceFilter{Status: &status, AsOf: dueDate})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("approved excludes invoices that became overdue", func(t *testing.T) {
		status := ledger.InvoiceStatusApproved
		got, _, err := repo.List(ctx, ledger.InvoiceFilter{Status: &status, AsOf: dueDate})
		require.NoError(t, err)
		require.Len(t, got, 1)

		got, _, err = repo.List(ctx, ledger.InvoiceFilter{Status: &status, AsOf: dueDate.AddDate(0, 0, 1)})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown order field falls back to default", func(t *testing.T) {
		_, total, err := repo.List(ctx, ledger.InvoiceFilter{OrderBy: "1; DROP TABLE invoices"})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
	})
}

func TestGormInvoiceRepository_FindOverdueCandidates(t *testing.T) {
	ctx := context.Background()
	repo := NewGormInvoiceRepository(newTestDB(t))

	approved := newInvoice(t, "INV-O1", uuid.New(), "100")
	require.NoError(t, approved.Approve(uuid.New()))
	draft := newInvoice(t, "INV-O2", uuid.New(), "100")
	require.NoError(t, repo.Create(ctx, approved))
	require.NoError(t, repo.Create(ctx, draft))

	got, err := repo.FindOverdueCandidates(ctx, dueDate.AddDate(0, 0, 1), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, approved.ID, got[0].ID)

	got, err = repo.FindOverdueCandidates(ctx, dueDate, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGormInvoiceRepository_ListCountFailure(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices"`).WillReturnError(assert.AnError)

	_, _, err := NewGormInvoiceRepository(db.DB).List(context.Background(), ledger.InvoiceFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to count invoices")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_ListPaymentsFailure(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "invoice_payments" WHERE invoice_id = \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(assert.AnError)

	_, err := NewGormInvoiceRepository(db.DB).ListPayments(context.Background(), id)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
