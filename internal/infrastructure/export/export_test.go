package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleExport(currency string) ledger.InvoiceExport {
	issue := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return ledger.InvoiceExport{
		InvoiceID:     uuid.New(),
		InvoiceNumber: "INV-20260301-00001",
		ClientID:      uuid.MustParse("7d1e3a4e-8d4c-4f44-9a3c-3f0d0b2c9e11"),
		Status:        ledger.InvoiceStatusPartiallyPaid,
		Currency:      currency,
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, 30),
		Subtotal:      decimal.NewFromInt(200),
		TaxAmount:     decimal.NewFromInt(20),
		TotalAmount:   decimal.NewFromInt(220),
		PaidAmount:    decimal.NewFromInt(100),
		BalanceDue:    decimal.NewFromInt(120),
		Notes:         "Thanks <team>",
		Items: []ledger.ExportLine{{
			LineNumber:  1,
			Description: "Counselling, \"March\"",
			Quantity:    decimal.NewFromInt(4),
			UnitPrice:   decimal.NewFromInt(50),
			TaxRate:     decimal.RequireFromString("0.1"),
			Tax:         decimal.NewFromInt(20),
			Total:       decimal.NewFromInt(220),
		}},
		Payments: []ledger.ExportPayment{{
			ReceiptNumber: "RCP-20260305-00001",
			PaymentDate:   issue.AddDate(0, 0, 4),
			Method:        ledger.PaymentMethodBankTransfer,
			Amount:        decimal.NewFromInt(100),
			TransactionID: "TX-1",
		}},
		GeneratedAt:     issue.AddDate(0, 0, 5),
		DisplayTotal:    currency + " 220.00",
		DisplayBalance:  currency + " 120.00",
		DisplayPaid:     currency + " 100.00",
		DisplaySubtotal: currency + " 200.00",
		DisplayTax:      currency + " 20.00",
	}
}

func column(name string) int {
	for i, h := range CSVHeader {
		if h == name {
			return i
		}
	}
	panic("unknown column " + name)
}

func TestCSVWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter().Write(&buf, []ledger.InvoiceExport{sampleExport("USD"), sampleExport("JPY")}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, CSVHeader, rows[0])

	head := rows[1]
	assert.Equal(t, RecordInvoice, head[0])
	assert.Equal(t, "INV-20260301-00001", head[column("invoice_number")])
	assert.Equal(t, "PARTIALLY_PAID", head[column("status")])
	assert.Equal(t, "2026-03-31", head[column("due_date")])
	assert.Equal(t, "220.00", head[column("total_amount")])
	assert.Equal(t, "120.00", head[column("balance_due")])
	assert.Empty(t, head[column("receipt_number")])

	item := rows[2]
	assert.Equal(t, RecordItem, item[0])
	assert.Equal(t, "Counselling, \"March\"", item[column("description")])
	assert.Equal(t, "0.1", item[column("tax_rate")])
	assert.Equal(t, "220.00", item[column("amount")])

	pay := rows[3]
	assert.Equal(t, RecordPayment, pay[0])
	assert.Equal(t, "RCP-20260305-00001", pay[column("receipt_number")])
	assert.Equal(t, "BANK_TRANSFER", pay[column("method")])
	assert.Equal(t, "2026-03-05", pay[column("payment_date")])

	// zero-decimal currency
	assert.Equal(t, "220", rows[4][column("total_amount")])
}

func TestCSVWriter_EmptyList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter().Write(&buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPDFRenderer_RenderHTML(t *testing.T) {
	r, err := NewPDFRenderer(PDFConfig{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer r.Close()

	exp := sampleExport("USD")
	html, err := r.RenderHTML(&exp)
	require.NoError(t, err)

	assert.Contains(t, html, "<title>Invoice INV-20260301-00001</title>")
	assert.Contains(t, html, "PARTIALLY_PAID")
	assert.Contains(t, html, "USD 220.00")
	assert.Contains(t, html, "10%")
	assert.Contains(t, html, "RCP-20260305-00001")
	assert.Contains(t, html, "Thanks &lt;team&gt;")
	assert.NotContains(t, html, "Project")
}

func TestPDFRenderer_Render(t *testing.T) {
	if os.Getenv("CASEHUB_CHROME_TEST") == "" {
		t.Skip("set CASEHUB_CHROME_TEST=1 with a local Chrome to render PDFs")
	}
	r, err := NewPDFRenderer(PDFConfig{
		ChromePath: os.Getenv("CASEHUB_EXPORT_CHROME_PATH"),
		Timeout:    time.Minute,
		NoSandbox:  true,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	defer r.Close()

	exp := sampleExport("EUR")
	pdf, err := r.Render(context.Background(), &exp)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
